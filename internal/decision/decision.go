// Package decision models the sealed recognition outcome the aggregator
// commits to, and the bounded in-memory queue (with overflow-to-disk
// "flushed" store) that the control surface drains.
package decision

import (
	"time"

	"github.com/google/uuid"

	"github.com/stroemhansen/yolocam/internal/reading"
)

// Direction is the finalized travel direction of a plate, or "unknown"
// if too few samples were collected to disambiguate.
type Direction string

const (
	Front   Direction = "front"
	Rear    Direction = "rear"
	Both    Direction = "both"
	Unknown Direction = "unknown"
	Left    Direction = "left"
	Right   Direction = "right"
)

// Decision is immutable once Seal is called, aside from its Pending
// flag, Delete tombstone, and ack set.
type Decision struct {
	Address   string             `json:"address"`
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Plate     string             `json:"plate"`
	Direction Direction          `json:"direction"`
	Score     float64            `json:"score"`
	DScore    float64            `json:"dscore"`
	Rectangle reading.Rectangle  `json:"-"`
	X         int                `json:"x"`
	Y         int                `json:"y"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Speed     float64            `json:"speed"`
	Region    map[string]any     `json:"region"`
	Vehicle   map[string]any     `json:"vehicle"`
	Candidates []map[string]any `json:"candidates"`
	Image     string             `json:"image"`
	FullImage string             `json:"fullImage,omitempty"`

	// Pending is true until the plate leaves view (or always-final in
	// access-control mode), at which point direction/speed are settled.
	Pending bool `json:"-"`
	// Delete is a tombstone set by a rejected finalization (numeric
	// denial, ignorelist, direction filter); tombstoned decisions are
	// dropped from the queue on the next pass rather than delivered.
	Delete bool `json:"-"`
	// Index is a dense, monotonically increasing per-run sequence
	// number, not persisted across restarts.
	Index int64 `json:"-"`
	// Acked is the set of control-client ids that have acknowledged
	// this decision.
	Acked map[string]struct{} `json:"-"`
}

// New seals a fresh pending decision. Region/vehicle/candidates are
// pre-shaped maps (built by the aggregator) rather than the engine's
// Result types, matching the original wire shape that downplays nested
// struct tags in favor of plain dict fields.
func New(address, plate string, rect reading.Rectangle, score, dscore float64, region, vehicle map[string]any, candidates []map[string]any, image string) *Decision {
	return &Decision{
		Address:    address,
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Plate:      plate,
		Direction:  Unknown,
		Score:      score,
		DScore:     dscore,
		Rectangle:  rect,
		X:          rect.X,
		Y:          rect.Y,
		Width:      rect.Width,
		Height:     rect.Height,
		Region:     region,
		Vehicle:    vehicle,
		Candidates: candidates,
		Image:      image,
		Pending:    true,
		Acked:      make(map[string]struct{}),
	}
}

// Ack records clientID as having acknowledged this decision. Idempotent.
func (d *Decision) Ack(clientID string) {
	if d.Acked == nil {
		d.Acked = make(map[string]struct{})
	}
	d.Acked[clientID] = struct{}{}
}

// AckedBy reports whether clientID has already acknowledged this
// decision.
func (d *Decision) AckedBy(clientID string) bool {
	_, ok := d.Acked[clientID]
	return ok
}
