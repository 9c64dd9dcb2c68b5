// Package reading holds the engine-response data model (Reading/Result)
// and the bounded, timestamp-ordered history the aggregator scans.
package reading

import (
	"sync"
	"time"
)

// Size is a width/height pair, reused for resolution, plate-size bounds,
// and crop dimensions.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Margin is a four-sided pixel margin from the frame edge.
type Margin struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Position is a 3-axis orientation sample, used for the gyroscope's
// calibrated-zero and alarm deltas.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Box is the engine's axis-aligned bounding box, field names preserved
// for wire compatibility with the recognition engine.
type Box struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// Rectangle is a box reduced to the x/y/width/height shape a Decision
// carries in its cropped-image coordinate space.
type Rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RectangleFromBox converts an engine Box into a Rectangle.
func RectangleFromBox(b Box) Rectangle {
	return Rectangle{X: b.XMin, Y: b.YMin, Width: b.XMax - b.XMin, Height: b.YMax - b.YMin}
}

// Region is the engine's detected plate region (e.g. country/state code).
type Region struct {
	Score float64 `json:"score"`
	Code  string  `json:"code"`
}

// Vehicle is the engine's optional vehicle detection around the plate.
type Vehicle struct {
	Score float64 `json:"score"`
	Type  string  `json:"type"`
	Box   Box     `json:"box"`
}

// Candidate is an alternative plate string the engine offered with a
// lower score than the chosen plate.
type Candidate struct {
	Score float64 `json:"score"`
	Plate string  `json:"plate"`
}

// Result is one detected plate within a Reading.
type Result struct {
	Timestamp  time.Time   `json:"timestamp"`
	Plate      string      `json:"plate"`
	Box        Box         `json:"box"`
	Region     Region      `json:"region"`
	Vehicle    Vehicle     `json:"vehicle"`
	Score      float64     `json:"score"`
	DScore     float64     `json:"dscore"`
	Candidates []Candidate `json:"candidates"`

	// Passed records whether the result cleared the bounds-check sieve.
	Passed bool `json:"-"`
	// Loops counts aggregation passes this result has participated in.
	Loops int `json:"-"`
	// Expire accumulates wall-time the aggregator has observed this
	// result since it first appeared.
	Expire time.Duration `json:"-"`
}

// Usage is the engine's running call counter, nested under the
// response's "usage" key.
type Usage struct {
	Calls int `json:"calls"`
}

// Reading is one recognition-engine response.
type Reading struct {
	Timestamp      time.Time `json:"timestamp"`
	CameraID       string    `json:"camera_id"`
	Error          string    `json:"error,omitempty"`
	ProcessingTime float64   `json:"processing_time"`
	Usage          Usage     `json:"usage"`
	Results        []Result  `json:"results"`
}

// UsageCalls is a convenience accessor for Usage.Calls, matching the
// flattened name the device-wide counter is pushed under.
func (r Reading) UsageCalls() int {
	return r.Usage.Calls
}

// History is the bounded, append-only log of readings the recognizer
// publishes and the aggregator scans. Capacity matches §3's ~120-entry
// invariant.
type History struct {
	mu       sync.Mutex
	cap      int
	readings []Reading
}

// NewHistory creates a History bounded to cap entries.
func NewHistory(cap int) *History {
	if cap <= 0 {
		cap = 120
	}
	return &History{cap: cap}
}

// Append adds a reading, evicting the oldest entry once the cap is
// exceeded. Readings must be appended in non-decreasing timestamp order.
func (h *History) Append(r Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readings = append(h.readings, r)
	if len(h.readings) > h.cap {
		h.readings = h.readings[len(h.readings)-h.cap:]
	}
}

// Snapshot returns a copy of the current readings so the aggregator can
// iterate without holding the history lock across its own mutations.
func (h *History) Snapshot() []Reading {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Reading, len(h.readings))
	copy(out, h.readings)
	return out
}

// MutateResults applies fn to every result across every reading whose
// plate matches, used to bump Loops/Expire counters in place.
func (h *History) MutateResults(fn func(plate string, r *Result)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.readings {
		for j := range h.readings[i].Results {
			fn(h.readings[i].Results[j].Plate, &h.readings[i].Results[j])
		}
	}
}

// PruneExpired removes results whose Expire exceeds maxExpire, matching
// the aggregator's per-tick housekeeping.
func (h *History) PruneExpired(maxExpire time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.readings {
		kept := h.readings[i].Results[:0]
		for _, res := range h.readings[i].Results {
			if res.Expire <= maxExpire {
				kept = append(kept, res)
			}
		}
		h.readings[i].Results = kept
	}
}

// MostRecentForPlate returns the newest reading containing a result for
// plate, used by <GET_READING:plate>.
func (h *History) MostRecentForPlate(plate string) (Reading, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.readings) - 1; i >= 0; i-- {
		for _, res := range h.readings[i].Results {
			if res.Plate == plate {
				return h.readings[i], true
			}
		}
	}
	return Reading{}, false
}

// Len reports the number of readings currently retained.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.readings)
}
