package capture

import "sync"

// ringFrame is one JPEG snapshot kept in a RingBuffer, tagged with its
// push sequence number.
type ringFrame struct {
	jpeg  []byte
	index uint64
}

// RingBuffer is a fixed-capacity rolling window of recent raw frames,
// used to satisfy appconfig.DecisionRecording's short pre/post clip —
// grounded on the teacher's fixed-size pixel buffer idiom
// (maruel-go-lepton/lepton/buffer.go's [80*60]uint16 array), generalized
// to a slice of variable-length JPEG blobs.
type RingBuffer struct {
	mu     sync.Mutex
	frames []ringFrame
	cap    int
	next   uint64
}

// NewRingBuffer creates a buffer holding at most capacity frames.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{cap: capacity}
}

// Push appends a frame, evicting the oldest once capacity is reached.
func (r *RingBuffer) Push(jpeg []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, ringFrame{jpeg: jpeg, index: r.next})
	r.next++
	if len(r.frames) > r.cap {
		r.frames = r.frames[len(r.frames)-r.cap:]
	}
}

// Snapshot returns a copy of every frame currently held, oldest first.
func (r *RingBuffer) Snapshot() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.jpeg
	}
	return out
}

// Len reports how many frames are currently held.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}
