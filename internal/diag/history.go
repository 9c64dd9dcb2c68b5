package diag

import (
	"sync"
	"time"
)

const historyHours = 24

// HourCount is one bucket of the decisions/hour history: the bucket's
// start time and how many decisions were recorded within it.
type HourCount struct {
	Hour  time.Time
	Count int
}

// DecisionHistory keeps a rolling 24-hour count of emitted decisions,
// bucketed by wall-clock hour, for the debug dashboard's chart.
type DecisionHistory struct {
	mu      sync.Mutex
	buckets []HourCount
}

// NewDecisionHistory builds an empty history.
func NewDecisionHistory() *DecisionHistory {
	return &DecisionHistory{}
}

// Record increments the bucket for t's hour, starting a new bucket if
// t falls in a later hour than the most recent one, and evicting
// buckets older than historyHours.
func (h *DecisionHistory) Record(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hour := t.Truncate(time.Hour)
	if n := len(h.buckets); n > 0 && h.buckets[n-1].Hour.Equal(hour) {
		h.buckets[n-1].Count++
	} else {
		h.buckets = append(h.buckets, HourCount{Hour: hour, Count: 1})
	}

	cutoff := hour.Add(-historyHours * time.Hour)
	i := 0
	for i < len(h.buckets) && h.buckets[i].Hour.Before(cutoff) {
		i++
	}
	h.buckets = h.buckets[i:]
}

// Snapshot returns the current buckets oldest-first.
func (h *DecisionHistory) Snapshot() []HourCount {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HourCount, len(h.buckets))
	copy(out, h.buckets)
	return out
}
