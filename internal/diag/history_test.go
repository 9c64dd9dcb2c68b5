package diag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordAccumulatesWithinSameHour(t *testing.T) {
	h := NewDecisionHistory()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	h.Record(base)
	h.Record(base.Add(20 * time.Minute))
	h.Record(base.Add(59 * time.Minute))

	snap := h.Snapshot()
	assert.Len(t, snap, 1)
	assert.Equal(t, 3, snap[0].Count)
}

func TestRecordStartsNewBucketOnHourRollover(t *testing.T) {
	h := NewDecisionHistory()
	base := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)
	h.Record(base)
	h.Record(base.Add(time.Hour))

	snap := h.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, 1, snap[0].Count)
	assert.Equal(t, 1, snap[1].Count)
}

func TestRecordEvictsBucketsOlderThanHistoryWindow(t *testing.T) {
	h := NewDecisionHistory()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < historyHours+5; i++ {
		h.Record(start.Add(time.Duration(i) * time.Hour))
	}

	snap := h.Snapshot()
	assert.LessOrEqual(t, len(snap), historyHours+1)
	assert.True(t, snap[len(snap)-1].Hour.After(snap[0].Hour))
}
