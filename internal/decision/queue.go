package decision

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stroemhansen/yolocam/internal/fsutil"
)

// QueueCapacity is the number of decisions kept in memory before the
// overflow policy kicks in.
const QueueCapacity = 5

// flushExtension is the on-disk suffix for decisions overflowed out of
// an API-mode queue.
const flushExtension = ".yof"

// Queue holds the decisions awaiting delivery to control clients. When
// full, its overflow behavior depends on apiMode: an API-mode queue
// (decisions pulled by GET_DECISION/ACK_DECISION) flushes the oldest
// entry to disk rather than losing it, since the client is expected to
// eventually drain the backlog; every other sink just drops the oldest
// entry, since those sinks push continuously and a missed push is not
// recoverable by waiting longer.
type Queue struct {
	mu      sync.Mutex
	apiMode bool
	fs      fsutil.FileSystem
	flushDir string
	items   []*Decision
	nextIdx int64
}

// NewQueue builds a Queue. flushDir is only consulted when apiMode is
// true; pass "" to disable disk overflow entirely (oldest-drop always
// applies then).
func NewQueue(apiMode bool, fsys fsutil.FileSystem, flushDir string) *Queue {
	return &Queue{apiMode: apiMode, fs: fsys, flushDir: flushDir}
}

// Push appends d to the queue, assigning it the next sequence index. If
// the queue is already at capacity, the oldest entry is evicted first —
// flushed to disk in API mode, dropped otherwise.
func (q *Queue) Push(d *Decision) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	d.Index = q.nextIdx
	q.nextIdx++

	if len(q.items) >= QueueCapacity {
		oldest := q.items[0]
		q.items = q.items[1:]
		if q.apiMode && q.fs != nil && q.flushDir != "" {
			if err := q.flush(oldest); err != nil {
				return fmt.Errorf("decision: flush overflow: %w", err)
			}
		}
	}
	q.items = append(q.items, d)
	return nil
}

func (q *Queue) flush(d *Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s/%s%s", q.flushDir, d.ID, flushExtension)
	return fsutil.AtomicWriteFile(q.fs, name, data, 0644)
}

// Next returns the oldest non-pending, non-tombstoned decision not yet
// acknowledged by clientID, without removing it from the queue. A
// decision still Pending (direction/speed not yet settled) is withheld
// until the aggregator finalizes it.
func (q *Queue) Next(clientID string) (*Decision, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, d := range q.items {
		if d.Delete || d.Pending {
			continue
		}
		if !d.AckedBy(clientID) {
			return d, true
		}
	}
	return nil, false
}

// Ack marks d (matched by ID) as acknowledged by clientID and reports
// whether it was found. Nothing is removed here: tombstoned or
// fully-acknowledged entries are evicted by the caller via Prune, since
// "fully acknowledged" depends on the full client roster the queue
// itself doesn't track.
func (q *Queue) Ack(id, clientID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, d := range q.items {
		if d.ID == id {
			d.Ack(clientID)
			return true
		}
	}
	return false
}

// Prune removes any item for which keep returns false.
func (q *Queue) Prune(keep func(*Decision) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items[:0]
	for _, d := range q.items {
		if keep(d) {
			out = append(out, d)
		}
	}
	q.items = out
}

// Len returns the number of decisions currently held in memory.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flushed lists decisions previously overflowed to disk, oldest first,
// so a drained API-mode client can be backfilled from them.
func (q *Queue) Flushed() ([]fsutil.Entry, error) {
	if q.fs == nil || q.flushDir == "" {
		return nil, nil
	}
	return fsutil.ListOldestFirst(q.flushDir, flushExtension)
}

// LoadFlushed reads and removes one flushed decision from disk.
func (q *Queue) LoadFlushed(path string) (*Decision, error) {
	data, err := q.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if err := q.fs.Remove(path); err != nil {
		return nil, err
	}
	return &d, nil
}
