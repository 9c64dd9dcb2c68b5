package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroemhansen/yolocam/internal/appconfig"
	"github.com/stroemhansen/yolocam/internal/decision"
	"github.com/stroemhansen/yolocam/internal/reading"
)

// settlesPerFrame simulates the aggregator's 100ms tick running several
// times while waiting for the next captured frame, so a result's Loops
// counter accumulates the way it would under the real decoupled capture
// vs. aggregation cadence.
const settlesPerFrame = 3

func tickSettle(agg *Aggregator, ts time.Time, cam appconfig.Camera) {
	for i := 0; i < settlesPerFrame; i++ {
		agg.Tick(ts, cam)
	}
}

func testCamera() appconfig.Camera {
	cam := appconfig.DefaultCamera()
	cam.Lpr.MinRecognitions = 3
	cam.Lpr.DirectionThreshold = 20
	cam.Lpr.FrameHeight = 200
	cam.Resolution = reading.Size{Width: 640, Height: 1000}
	cam.Lpr.PlateBlockingTime = 5
	return cam
}

func passingResult(plate string, box reading.Box) reading.Result {
	return reading.Result{Plate: plate, Box: box, Score: 0.9, DScore: 0.9, Passed: true}
}

func TestMinimumRecognitionsEmitsOneDecision(t *testing.T) {
	history := reading.NewHistory(120)
	queue := decision.NewQueue(false, nil, "")
	agg := New("10.0.0.1", history, queue, nil)
	cam := testCamera()

	box := reading.Box{XMin: 100, YMin: 100, XMax: 150, YMax: 130}
	base := time.Unix(0, 0)
	for _, dt := range []time.Duration{0, 200 * time.Millisecond, 400 * time.Millisecond} {
		ts := base.Add(dt)
		history.Append(reading.Reading{Timestamp: ts, Results: []reading.Result{passingResult("ABC123", box)}})
		tickSettle(agg, ts, cam)
	}
	// plate no longer visible
	ts := base.Add(600 * time.Millisecond)
	history.Append(reading.Reading{Timestamp: ts})
	agg.Tick(ts, cam)

	require.Equal(t, 1, queue.Len())
	d, ok := queue.Next("client")
	require.True(t, ok)
	assert.Equal(t, "ABC123", d.Plate)
	assert.False(t, d.Pending)
	assert.Equal(t, decision.Unknown, d.Direction)
	assert.Equal(t, 0.0, d.Speed)
}

func TestDirectionEstimationFrontAndSpeed(t *testing.T) {
	history := reading.NewHistory(120)
	queue := decision.NewQueue(false, nil, "")
	agg := New("10.0.0.1", history, queue, nil)
	cam := testCamera()
	cam.Lpr.MinRecognitions = 2

	base := time.Unix(0, 0)
	y := 100
	for i := 0; i < 4; i++ {
		box := reading.Box{XMin: 100, YMin: y, XMax: 150, YMax: y + 30}
		ts := base.Add(time.Duration(i) * 100 * time.Millisecond)
		history.Append(reading.Reading{Timestamp: ts, Results: []reading.Result{passingResult("XYZ999", box)}})
		tickSettle(agg, ts, cam)
		y += 100
	}
	ts := base.Add(400 * time.Millisecond)
	history.Append(reading.Reading{Timestamp: ts})
	agg.Tick(ts, cam)

	require.Equal(t, 1, queue.Len())
	d, ok := queue.Next("client")
	require.True(t, ok)
	assert.Equal(t, decision.Front, d.Direction)
	assert.InDelta(t, 7.2, d.Speed, 0.01)
}

// TestDirectionEstimationLateralWinnerWithUpwardMotion covers a track
// whose per-pair compass vote comes out lateral (three short Right
// steps outvote one large Up step) but whose aggregate |Δy| still
// dominates |Δx| overall and whose net Δy is upward. disambiguateLateral
// must resolve this the same way a pure vertical winner would: Rear,
// not Front.
func TestDirectionEstimationLateralWinnerWithUpwardMotion(t *testing.T) {
	history := reading.NewHistory(120)
	queue := decision.NewQueue(false, nil, "")
	agg := New("10.0.0.1", history, queue, nil)
	cam := testCamera()
	cam.Lpr.MinRecognitions = 2

	base := time.Unix(0, 0)
	xs := []int{100, 115, 130, 145, 145}
	ys := []int{300, 286, 272, 258, 158}
	for i := range xs {
		box := reading.Box{XMin: xs[i], YMin: ys[i], XMax: xs[i] + 50, YMax: ys[i] + 30}
		ts := base.Add(time.Duration(i) * 100 * time.Millisecond)
		history.Append(reading.Reading{Timestamp: ts, Results: []reading.Result{passingResult("REAR001", box)}})
		tickSettle(agg, ts, cam)
	}
	ts := base.Add(time.Duration(len(xs)) * 100 * time.Millisecond)
	history.Append(reading.Reading{Timestamp: ts})
	agg.Tick(ts, cam)

	require.Equal(t, 1, queue.Len())
	d, ok := queue.Next("client")
	require.True(t, ok)
	assert.Equal(t, decision.Rear, d.Direction)
}

func TestNumericDenialEmitsZeroDecisions(t *testing.T) {
	history := reading.NewHistory(120)
	queue := decision.NewQueue(false, nil, "")
	agg := New("10.0.0.1", history, queue, nil)
	cam := testCamera()
	cam.Lpr.DenyNumericDecision = true

	box := reading.Box{XMin: 100, YMin: 100, XMax: 150, YMax: 130}
	base := time.Unix(0, 0)
	for i := 0; i < cam.Lpr.MinRecognitions+2; i++ {
		ts := base.Add(time.Duration(i) * 200 * time.Millisecond)
		history.Append(reading.Reading{Timestamp: ts, Results: []reading.Result{passingResult("123456", box)}})
		tickSettle(agg, ts, cam)
	}
	ts := base.Add(time.Second)
	history.Append(reading.Reading{Timestamp: ts})
	agg.Tick(ts, cam)

	assert.Equal(t, 0, queue.Len())
}

func TestCandidateSubstitutionAdoptsMatchingCandidate(t *testing.T) {
	plate := substituteCandidate("1B1234", []map[string]any{
		{"plate": "BB1234", "score": 0.7},
		{"plate": "1B1234", "score": 0.9},
	})
	assert.Equal(t, "BB1234", plate)
}

func TestOnFinalizeFiresOnceForEmittedDecision(t *testing.T) {
	history := reading.NewHistory(120)
	queue := decision.NewQueue(false, nil, "")
	agg := New("10.0.0.1", history, queue, nil)
	cam := testCamera()

	var seen []*decision.Decision
	agg.OnFinalize = func(d *decision.Decision) { seen = append(seen, d) }

	box := reading.Box{XMin: 100, YMin: 100, XMax: 150, YMax: 130}
	base := time.Unix(0, 0)
	for _, dt := range []time.Duration{0, 200 * time.Millisecond, 400 * time.Millisecond} {
		ts := base.Add(dt)
		history.Append(reading.Reading{Timestamp: ts, Results: []reading.Result{passingResult("ABC123", box)}})
		tickSettle(agg, ts, cam)
	}
	ts := base.Add(600 * time.Millisecond)
	history.Append(reading.Reading{Timestamp: ts})
	agg.Tick(ts, cam)

	require.Len(t, seen, 1)
	assert.Equal(t, "ABC123", seen[0].Plate)
}

func TestOnFinalizeDoesNotFireForRejectedDecision(t *testing.T) {
	history := reading.NewHistory(120)
	queue := decision.NewQueue(false, nil, "")
	agg := New("10.0.0.1", history, queue, nil)
	cam := testCamera()
	cam.Lpr.DenyNumericDecision = true

	fired := false
	agg.OnFinalize = func(*decision.Decision) { fired = true }

	box := reading.Box{XMin: 100, YMin: 100, XMax: 150, YMax: 130}
	base := time.Unix(0, 0)
	for i := 0; i < cam.Lpr.MinRecognitions+2; i++ {
		ts := base.Add(time.Duration(i) * 200 * time.Millisecond)
		history.Append(reading.Reading{Timestamp: ts, Results: []reading.Result{passingResult("123456", box)}})
		tickSettle(agg, ts, cam)
	}
	ts := base.Add(time.Second)
	history.Append(reading.Reading{Timestamp: ts})
	agg.Tick(ts, cam)

	assert.False(t, fired)
}

func TestIgnoreWindowSuppressesRepeatDecisionUntilBlockingTimeElapses(t *testing.T) {
	history := reading.NewHistory(120)
	queue := decision.NewQueue(false, nil, "")
	agg := New("10.0.0.1", history, queue, nil)
	cam := testCamera()
	cam.Lpr.PlateBlockingTime = 1

	box := reading.Box{XMin: 100, YMin: 100, XMax: 150, YMax: 130}
	base := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * 100 * time.Millisecond)
		history.Append(reading.Reading{Timestamp: ts, Results: []reading.Result{passingResult("XY99", box)}})
		tickSettle(agg, ts, cam)
	}
	ts := base.Add(300 * time.Millisecond)
	history.Append(reading.Reading{Timestamp: ts})
	agg.Tick(ts, cam)
	require.Equal(t, 1, queue.Len())

	// Plate reappears immediately for several ticks inside the blocking
	// window: no second decision yet.
	t0 := base.Add(400 * time.Millisecond)
	for i := 0; i < 5; i++ {
		ts := t0.Add(time.Duration(i) * 100 * time.Millisecond)
		history.Append(reading.Reading{Timestamp: ts, Results: []reading.Result{passingResult("XY99", box)}})
		tickSettle(agg, ts, cam)
	}
	assert.Equal(t, 1, queue.Len(), "still within plateBlockingTime")
}
