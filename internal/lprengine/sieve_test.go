package lprengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stroemhansen/yolocam/internal/reading"
)

func baseThresholds() Thresholds {
	return Thresholds{
		MinTextScore:  0.5,
		MinPlateScore: 0.5,
		MaxPlateSize:  reading.Size{Width: 300, Height: 120},
		MinPlateSize:  reading.Size{Width: 20, Height: 10},
		Margin:        reading.Margin{Top: 10, Bottom: 10, Left: 10, Right: 10},
		FrameSize:     reading.Size{Width: 640, Height: 480},
	}
}

func baseResult() reading.Result {
	return reading.Result{
		Score:  0.9,
		DScore: 0.9,
		Box:    reading.Box{XMin: 100, YMin: 100, XMax: 150, YMax: 130},
	}
}

func TestEvaluatePassesWithinAllBounds(t *testing.T) {
	assert.Equal(t, OK, Evaluate(baseResult(), baseThresholds()))
}

func TestEvaluateOrdersFailuresPlateSizeMaxFirst(t *testing.T) {
	r := baseResult()
	r.Box = reading.Box{XMin: 0, YMin: 0, XMax: 400, YMax: 200}
	r.DScore = 0.1
	r.Score = 0.1
	assert.Equal(t, PlateSizeMax, Evaluate(r, baseThresholds()))
}

func TestEvaluatePlateSizeMin(t *testing.T) {
	r := baseResult()
	r.Box = reading.Box{XMin: 100, YMin: 100, XMax: 105, YMax: 103}
	assert.Equal(t, PlateSizeMin, Evaluate(r, baseThresholds()))
}

func TestEvaluateTextScoreLow(t *testing.T) {
	r := baseResult()
	r.DScore = 0.1
	assert.Equal(t, TextScoreLow, Evaluate(r, baseThresholds()))
}

func TestEvaluatePlateScoreLow(t *testing.T) {
	r := baseResult()
	r.Score = 0.1
	assert.Equal(t, PlateScoreLow, Evaluate(r, baseThresholds()))
}

func TestEvaluateMarginChecks(t *testing.T) {
	th := baseThresholds()

	left := baseResult()
	left.Box = reading.Box{XMin: 5, YMin: 100, XMax: 55, YMax: 130}
	assert.Equal(t, PlateMarginLeft, Evaluate(left, th))

	top := baseResult()
	top.Box = reading.Box{XMin: 100, YMin: 5, XMax: 150, YMax: 35}
	assert.Equal(t, PlateMarginTop, Evaluate(top, th))

	right := baseResult()
	right.Box = reading.Box{XMin: 600, YMin: 100, XMax: 635, YMax: 130}
	assert.Equal(t, PlateMarginRight, Evaluate(right, th))

	bottom := baseResult()
	bottom.Box = reading.Box{XMin: 100, YMin: 450, XMax: 150, YMax: 478}
	assert.Equal(t, PlateMarginBottom, Evaluate(bottom, th))
}

func TestOrientedFrameSizeSwapsFor90And270(t *testing.T) {
	size := reading.Size{Width: 640, Height: 480}
	assert.Equal(t, reading.Size{Width: 480, Height: 640}, OrientedFrameSize(size, 90))
	assert.Equal(t, reading.Size{Width: 480, Height: 640}, OrientedFrameSize(size, 270))
	assert.Equal(t, size, OrientedFrameSize(size, 0))
	assert.Equal(t, size, OrientedFrameSize(size, 180))
}
