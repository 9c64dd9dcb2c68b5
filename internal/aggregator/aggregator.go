package aggregator

import (
	"math"
	"regexp"
	"sync"
	"time"

	"github.com/stroemhansen/yolocam/internal/appconfig"
	"github.com/stroemhansen/yolocam/internal/decision"
	"github.com/stroemhansen/yolocam/internal/reading"
)

// candidatePattern is the plate shape the engine's candidate list is
// scanned for during substitution: two letters followed by one or more
// digits.
var candidatePattern = regexp.MustCompile(`^[A-Z]{2}[0-9]+$`)

var numericOnlyPattern = regexp.MustCompile(`^[0-9]+$`)

const directionTrackMaxAge = 30 * time.Second

// ImageSource supplies the full-scene and cropped plate images attached
// to an emitted decision. Implementations read from the capture loop's
// rolling video buffer.
type ImageSource interface {
	// FullScene returns a JPEG-encoded frame from offset idx in the
	// video buffer (idx<=0: lookback; idx>0: forward post-buffer).
	FullScene(idx int) ([]byte, bool)
	// CropPlate returns a JPEG-encoded crop of the given box at size,
	// centered on the box and clamped to frame bounds.
	CropPlate(box reading.Box, size reading.Size) ([]byte, reading.Rectangle, bool)
}

// plateState is the aggregator's per-plate bookkeeping.
type plateState struct {
	track   []point
	pending *decision.Decision
}

// Aggregator runs the 100ms decision loop described by the spec's
// §4.3: it watches the reading history for plates seen often enough to
// emit, tracks each plate's trajectory, and finalizes/filters/seals
// decisions once a plate leaves view (or immediately in access-control
// mode).
type Aggregator struct {
	mu sync.Mutex

	history *reading.History
	queue   *decision.Queue
	images  ImageSource

	plates  map[string]*plateState
	ignore  map[string]time.Duration // plate -> time since last seen while ignored
	address string

	decisionsEmitted int

	// IgnoreListed reports whether plate is on the configured
	// ignorelist; nil means no plate is ever ignorelist-rejected.
	IgnoreListed func(plate string) bool

	// OnFinalize fires for every sealed, non-rejected decision right
	// after it is pushed onto the control-port queue, letting the
	// caller hand the same decision to the active outbox sink and the
	// new-plate/whitelist/blacklist auxiliary signals without polling.
	OnFinalize func(d *decision.Decision)
}

// New builds an Aggregator bound to history and queue. address is the
// device address stamped onto every sealed decision.
func New(address string, history *reading.History, queue *decision.Queue, images ImageSource) *Aggregator {
	return &Aggregator{
		history: history,
		queue:   queue,
		images:  images,
		address: address,
		plates:  make(map[string]*plateState),
		ignore:  make(map[string]time.Duration),
	}
}

// DecisionsEmitted returns the running count of sealed, non-rejected
// decisions — the statistics counter §4.3 step 7 increments.
func (a *Aggregator) DecisionsEmitted() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decisionsEmitted
}

// Tick runs one 100ms aggregation pass: it scans the most recent
// reading for visible plates, updates direction tracks, emits new
// pending decisions for plates that just crossed minRecognitions, and
// finalizes pending decisions for plates no longer visible (or every
// tick, in access-control mode).
func (a *Aggregator) Tick(now time.Time, cam appconfig.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cfg := cam.Lpr
	readings := a.history.Snapshot()
	visible := a.visiblePlates(readings)

	for plate, results := range visible {
		st := a.plates[plate]
		if st == nil {
			st = &plateState{}
			a.plates[plate] = st
		}
		center := boxCenter(results[len(results)-1].Box)
		st.track = append(st.track, point{x: center.X, y: center.Y, t: now})

		if st.pending == nil {
			a.tryEmit(plate, results, st, cfg)
		}
	}

	for plate, st := range a.plates {
		_, stillVisible := visible[plate]
		if st.pending == nil {
			continue
		}
		if !stillVisible || cfg.DecisionModel == appconfig.ModelAccessControl {
			a.finalize(plate, st, cam, now)
		}
	}

	a.houseKeep(now, visible, cfg)
}

// visiblePlates groups the latest reading's passing results by plate.
func (a *Aggregator) visiblePlates(readings []reading.Reading) map[string][]reading.Result {
	out := make(map[string][]reading.Result)
	if len(readings) == 0 {
		return out
	}
	latest := readings[len(readings)-1]
	for _, r := range latest.Results {
		if !r.Passed || r.Plate == "" {
			continue
		}
		out[r.Plate] = append(out[r.Plate], r)
	}
	return out
}

// passingResultsForPlate gathers every still-retained passing result
// for plate across the whole history, bumping Loops as it goes (the
// spec's "collects all passing results still in history, incrementing
// their loops").
func (a *Aggregator) passingResultsForPlate(plate string) []reading.Result {
	var out []reading.Result
	a.history.MutateResults(func(p string, r *reading.Result) {
		if p != plate || !r.Passed {
			return
		}
		r.Loops++
		out = append(out, *r)
	})
	return out
}

// tryEmit checks the emission rule for plate and, if satisfied and the
// plate is not already ignored, seals a new pending decision.
func (a *Aggregator) tryEmit(plate string, _ []reading.Result, st *plateState, cfg appconfig.Lpr) {
	collected := a.passingResultsForPlate(plate)
	if len(collected) < cfg.MinRecognitions {
		return
	}

	min := cfg.MinRecognitions
	switch cfg.DecisionModel {
	case appconfig.ModelAccessControl:
		if len(collected) < 2*min || !anyLooped(collected) {
			return
		}
	default:
		if len(collected) < min || collected[len(collected)-1].Loops <= 2 {
			return
		}
	}

	if _, ignored := a.ignore[plate]; ignored {
		return
	}
	a.ignore[plate] = 0

	chosen := selectSample(collected, cfg.SelectedDecision)

	var fullImage []byte
	if cfg.IncludeFullImage != "" && a.images != nil {
		idx := 0
		if img, ok := a.images.FullScene(idx); ok {
			fullImage = img
		}
	}

	image := ""
	rect := reading.RectangleFromBox(chosen.Box)
	if a.images != nil && cfg.CropDecision.Width > 0 {
		if crop, r, ok := a.images.CropPlate(chosen.Box, cfg.CropDecision); ok {
			image = string(crop)
			rect = r
		}
	}

	d := decision.New(a.address, plate, rect, chosen.Score, chosen.DScore,
		regionMap(chosen.Region), vehicleMap(chosen.Vehicle), candidatesMap(chosen.Candidates), image)
	if fullImage != nil {
		d.FullImage = string(fullImage)
	}
	st.pending = d
}

// anyLooped reports whether any collected result has Loops>=1.
func anyLooped(results []reading.Result) bool {
	for _, r := range results {
		if r.Loops >= 1 {
			return true
		}
	}
	return false
}

// selectSample picks first/middle(ceil(n/2))/last per selectedDecision.
func selectSample(results []reading.Result, which appconfig.SelectedDecision) reading.Result {
	switch which {
	case appconfig.DecisionFirst:
		return results[0]
	case appconfig.DecisionLast:
		return results[len(results)-1]
	default:
		idx := int(math.Ceil(float64(len(results)) / 2))
		if idx > 0 {
			idx--
		}
		return results[idx]
	}
}

// finalize computes direction/speed, applies the rejection filters, and
// either delivers or tombstones the plate's pending decision.
func (a *Aggregator) finalize(plate string, st *plateState, cam appconfig.Camera, now time.Time) {
	cfg := cam.Lpr
	d := st.pending
	st.pending = nil

	st.track = dropOlderThan(dedupe(st.track), now, directionTrackMaxAge)
	d.Direction = estimateDirection(st.track, cfg.DirectionThreshold)
	d.Speed = estimateSpeed(st.track, cfg.FrameHeight, cam.Resolution.Height)

	if rejected := a.rejectionReason(plate, d.Direction, cfg); rejected {
		d.Delete = true
		delete(a.ignore, plate)
		delete(a.plates, plate)
		return
	}

	if cfg.UseCandidates {
		d.Plate = substituteCandidate(d.Plate, d.Candidates)
	}

	d.Pending = false
	_ = a.queue.Push(d)
	a.decisionsEmitted++
	if a.OnFinalize != nil {
		a.OnFinalize(d)
	}
}

// rejectionReason applies the numeric/ignorelist/direction-filter chain
// in order; it reports true (reject) on the first match.
func (a *Aggregator) rejectionReason(plate string, dir decision.Direction, cfg appconfig.Lpr) bool {
	if cfg.DenyNumericDecision && numericOnlyPattern.MatchString(plate) {
		return true
	}
	if a.IgnoreListed != nil && a.IgnoreListed(plate) {
		return true
	}
	if !directionAllowed(dir, cfg.DirectionFilter) {
		return true
	}
	return false
}

// directionAllowed maps directionFilter (1=front,2=rear,3=both|unknown)
// against dir.
func directionAllowed(dir decision.Direction, filter int) bool {
	switch filter {
	case 1:
		return dir == decision.Front
	case 2:
		return dir == decision.Rear
	case 3:
		return dir == decision.Both || dir == decision.Unknown
	default:
		return true
	}
}

// substituteCandidate adopts the first candidate matching the expected
// plate shape when the plate itself doesn't already match and its
// length falls in [3,8].
func substituteCandidate(plate string, candidates []map[string]any) string {
	if len(plate) < 3 || len(plate) > 8 || candidatePattern.MatchString(plate) {
		return plate
	}
	for _, c := range candidates {
		p, _ := c["plate"].(string)
		if candidatePattern.MatchString(p) {
			return p
		}
	}
	return plate
}

// houseKeep advances ignore-map timers for plates no longer seen and
// drops them after plateBlockingTime, and prunes stale direction track
// points.
func (a *Aggregator) houseKeep(now time.Time, visible map[string][]reading.Result, cfg appconfig.Lpr) {
	for plate := range a.ignore {
		if _, seen := visible[plate]; seen {
			a.ignore[plate] = 0
			continue
		}
		a.ignore[plate] += 100 * time.Millisecond
		if a.ignore[plate] >= time.Duration(cfg.PlateBlockingTime)*time.Second {
			delete(a.ignore, plate)
		}
	}
	for plate, st := range a.plates {
		st.track = dropOlderThan(st.track, now, directionTrackMaxAge)
		if st.pending == nil && len(st.track) == 0 {
			if _, seen := visible[plate]; !seen {
				delete(a.plates, plate)
			}
		}
	}
}

type centerPoint struct{ X, Y int }

func boxCenter(b reading.Box) centerPoint {
	return centerPoint{X: (b.XMin + b.XMax) / 2, Y: (b.YMin + b.YMax) / 2}
}

func regionMap(r reading.Region) map[string]any {
	return map[string]any{"code": r.Code, "score": r.Score}
}

func vehicleMap(v reading.Vehicle) map[string]any {
	return map[string]any{"type": v.Type, "score": v.Score, "box": v.Box}
}

func candidatesMap(cs []reading.Candidate) []map[string]any {
	out := make([]map[string]any, 0, len(cs))
	for _, c := range cs {
		out = append(out, map[string]any{"plate": c.Plate, "score": c.Score})
	}
	return out
}
