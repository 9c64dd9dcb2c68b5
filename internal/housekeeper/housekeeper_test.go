package housekeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stroemhansen/yolocam/internal/timeutil"
)

func newTestClock() timeutil.Clock { return &timeutil.RealClock{} }

func TestTickFiresEvery250msTaskOnEveryTick(t *testing.T) {
	calls := 0
	h := New(newTestClock(), Tasks{Every250ms: func() { calls++ }})
	for i := 0; i < 5; i++ {
		h.Tick()
	}
	assert.Equal(t, 5, calls)
}

func TestTickFiresEvery1sTaskEveryFourthTick(t *testing.T) {
	calls := 0
	h := New(newTestClock(), Tasks{Every1s: func() { calls++ }})
	for i := 0; i < 8; i++ {
		h.Tick()
	}
	assert.Equal(t, 2, calls)
}

func TestTickFiresEvery2sTaskEveryEighthTick(t *testing.T) {
	calls := 0
	h := New(newTestClock(), Tasks{Every2s: func() { calls++ }})
	for i := 0; i < 16; i++ {
		h.Tick()
	}
	assert.Equal(t, 2, calls)
}

func TestPostDelayDefaultsToTwoSeconds(t *testing.T) {
	calls := 0
	h := New(newTestClock(), Tasks{PostDelay: func() { calls++ }})
	for i := 0; i < 8; i++ {
		h.Tick()
	}
	assert.Equal(t, 1, calls)
}

func TestSetPostDelayClampsBelowTwoSeconds(t *testing.T) {
	calls := 0
	h := New(newTestClock(), Tasks{PostDelay: func() { calls++ }})
	h.SetPostDelay(1000) // clamps to the 2000ms floor
	for i := 0; i < 8; i++ {
		h.Tick()
	}
	assert.Equal(t, 1, calls)
}

func TestSetPostDelayClampsAboveSixtySeconds(t *testing.T) {
	h := New(newTestClock(), Tasks{})
	h.SetPostDelay(120000)
	assert.Equal(t, 60000/baseInterval, h.ticksPerPostDelay)
}

func TestNilTasksAreSkippedWithoutPanic(t *testing.T) {
	h := New(newTestClock(), Tasks{})
	assert.NotPanics(t, func() {
		for i := 0; i < 400000; i++ {
			h.Tick()
		}
	})
}
