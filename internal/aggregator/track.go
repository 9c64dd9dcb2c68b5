// Package aggregator runs the 100ms decision aggregation loop: it scans
// the reading history for plates seen often enough to emit a decision,
// tracks each plate's (x,y) trajectory to estimate direction and speed,
// and applies the numeric/ignorelist/direction-filter rejection chain
// before a decision is sealed.
package aggregator

import (
	"math"
	"sort"
	"time"

	"github.com/stroemhansen/yolocam/internal/decision"
)

// point is one (x,y) sample of a tracked plate's box center.
type point struct {
	x, y int
	t    time.Time
}

// sector is the coarse compass direction a consecutive pair of points
// falls into before left/right disambiguation.
type sector int

const (
	sectorUp sector = iota
	sectorLeft
	sectorDown
	sectorRight
)

// classify buckets the angle between two points into one of four 90°
// compass sectors, each spanning 90° centered on its cardinal direction
// (the "45° sectors" of the spec: the boundary between adjacent sectors
// sits 45° off each cardinal axis). Image Y grows downward, so a purely
// vertical Δy>0 (the plate moving toward the bottom of frame) is "down",
// not "up".
func classify(dx, dy int) sector {
	angle := math.Atan2(float64(dx), float64(dy)) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	switch {
	case angle >= 315 || angle < 45:
		return sectorDown
	case angle >= 45 && angle < 135:
		return sectorRight
	case angle >= 135 && angle < 225:
		return sectorUp
	default:
		return sectorLeft
	}
}

// dedupe sorts samples by timestamp, then removes consecutive samples at
// the same (x,y); direction/speed are undefined for a motionless plate and
// duplicate samples would otherwise bias the sector vote.
func dedupe(pts []point) []point {
	sort.Slice(pts, func(i, j int) bool { return pts[i].t.Before(pts[j].t) })
	out := pts[:0]
	for i, p := range pts {
		if i > 0 && p.x == out[len(out)-1].x && p.y == out[len(out)-1].y {
			continue
		}
		out = append(out, p)
	}
	return out
}

// dropOlderThan removes samples older than maxAge relative to now.
func dropOlderThan(pts []point, now time.Time, maxAge time.Duration) []point {
	out := pts[:0]
	for _, p := range pts {
		if now.Sub(p.t) <= maxAge {
			out = append(out, p)
		}
	}
	return out
}

// estimateDirection computes the winning compass sector across
// consecutive point pairs, then disambiguates a left/right winner into
// front/rear/left/right/both using directionThreshold as a percentage
// hysteresis between total |Δx| and total |Δy|. up maps to rear (moving
// away from the sensor toward the top of frame), down to front.
func estimateDirection(pts []point, directionThreshold int) decision.Direction {
	pts = dedupe(pts)
	if len(pts) < 2 {
		return decision.Unknown
	}

	counts := map[sector]int{}
	var sumAbsDx, sumAbsDy, netDx, netDy int
	for i := 1; i < len(pts); i++ {
		dx := pts[i].x - pts[i-1].x
		dy := pts[i].y - pts[i-1].y
		counts[classify(dx, dy)]++
		sumAbsDx += abs(dx)
		sumAbsDy += abs(dy)
		netDx += dx
		netDy += dy
	}

	winner, best := sectorUp, -1
	for s := sectorUp; s <= sectorRight; s++ {
		if counts[s] > best {
			best = counts[s]
			winner = s
		}
	}

	switch winner {
	case sectorUp:
		return decision.Rear
	case sectorDown:
		return decision.Front
	default:
		return disambiguateLateral(sumAbsDx, sumAbsDy, netDx, netDy, directionThreshold)
	}
}

// disambiguateLateral decides between front/rear/left/right/both when
// the raw sector vote came out left or right: lateral motion dominated
// by |Δx| is a genuine lateral pass (left/right, sign of the net Δx
// picking which one); dominated by |Δy| it is really a front/rear pass
// that only looked lateral briefly, with the sign of net Δy picking
// rear (net upward, toward the top of frame) vs front, same as the
// pure-vertical sector winner; close to even (within the threshold
// percentage) it's both.
func disambiguateLateral(sumAbsDx, sumAbsDy, netDx, netDy, directionThresholdPct int) decision.Direction {
	total := sumAbsDx + sumAbsDy
	if total == 0 {
		return decision.Unknown
	}
	dxPct := 100 * sumAbsDx / total
	dyPct := 100 * sumAbsDy / total
	diff := dxPct - dyPct
	if diff < 0 {
		diff = -diff
	}
	if diff <= directionThresholdPct {
		return decision.Both
	}
	if dxPct > dyPct {
		if netDx >= 0 {
			return decision.Right
		}
		return decision.Left
	}
	if netDy < 0 {
		return decision.Rear
	}
	return decision.Front
}

// estimateSpeed converts the frame's physical height (cm) over its
// pixel resolution height to a cm-per-pixel ratio, then averages the
// per-pair vertical speed in km/h across consecutive samples. Returns
// 0 when either physical mapping is degenerate or there are fewer than
// two samples — a stationary or single-sample plate has no speed.
func estimateSpeed(pts []point, frameHeightCM, resolutionHeightPX int) float64 {
	pts = dedupe(pts)
	if len(pts) < 2 || frameHeightCM <= 0 || resolutionHeightPX <= 0 {
		return 0.0
	}
	cmPerPx := float64(frameHeightCM) / float64(resolutionHeightPX)

	var total float64
	var n int
	for i := 1; i < len(pts); i++ {
		dt := pts[i].t.Sub(pts[i-1].t).Seconds()
		if dt <= 0 {
			continue
		}
		dy := float64(abs(pts[i].y - pts[i-1].y))
		cmPerSec := (dy * cmPerPx) / dt
		kmh := cmPerSec * 3600 / 100000
		total += kmh
		n++
	}
	if n == 0 {
		return 0.0
	}
	return total / float64(n)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
