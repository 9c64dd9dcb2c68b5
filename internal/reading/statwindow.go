package reading

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// StatWindow is a capped ring of float samples with a running mean
// (default cap 30). No part of the agent creates one at present.
type StatWindow struct {
	mu      sync.Mutex
	cap     int
	samples []float64
}

// NewStatWindow creates a window holding at most cap samples.
func NewStatWindow(cap int) *StatWindow {
	if cap <= 0 {
		cap = 30
	}
	return &StatWindow{cap: cap}
}

// Push records one sample, evicting the oldest once the cap is exceeded.
func (w *StatWindow) Push(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, v)
	if len(w.samples) > w.cap {
		w.samples = w.samples[len(w.samples)-w.cap:]
	}
}

// Mean returns the arithmetic mean of the retained samples, or 0 when
// empty.
func (w *StatWindow) Mean() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.samples) == 0 {
		return 0
	}
	return stat.Mean(w.samples, nil)
}

// Len reports how many samples are currently retained.
func (w *StatWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}
