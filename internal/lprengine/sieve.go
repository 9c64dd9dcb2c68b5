package lprengine

import (
	"github.com/stroemhansen/yolocam/internal/reading"
)

// RejectReason names the first bounds check a result failed, in the
// order the sieve evaluates them.
type RejectReason string

const (
	OK               RejectReason = ""
	PlateSizeMax     RejectReason = "plate-size-max"
	PlateSizeMin     RejectReason = "plate-size-min"
	TextScoreLow     RejectReason = "text-score-low"
	PlateScoreLow    RejectReason = "plate-score-low"
	PlateMarginLeft  RejectReason = "plate-margin-left"
	PlateMarginTop   RejectReason = "plate-margin-top"
	PlateMarginRight RejectReason = "plate-margin-right"
	PlateMarginBottom RejectReason = "plate-margin-bottom"
)

// Thresholds bundles the camera-config tunables the sieve checks
// against. FrameSize and margins are in the orientation the plate was
// captured in — callers swap width/height themselves for 90/270°
// mounting angles before calling Evaluate.
type Thresholds struct {
	MinTextScore  float64
	MinPlateScore float64
	MaxPlateSize  reading.Size
	MinPlateSize  reading.Size
	Margin        reading.Margin
	FrameSize     reading.Size
}

// Evaluate runs the ordered bounds-check sieve against one result and
// returns the first failing reason, or OK if every check passes.
func Evaluate(r reading.Result, t Thresholds) RejectReason {
	w := r.Box.XMax - r.Box.XMin
	h := r.Box.YMax - r.Box.YMin

	if w > t.MaxPlateSize.Width || h > t.MaxPlateSize.Height {
		return PlateSizeMax
	}
	if w < t.MinPlateSize.Width || h < t.MinPlateSize.Height {
		return PlateSizeMin
	}
	if r.DScore < t.MinTextScore {
		return TextScoreLow
	}
	if r.Score < t.MinPlateScore {
		return PlateScoreLow
	}
	if r.Box.XMin < t.Margin.Left {
		return PlateMarginLeft
	}
	if r.Box.YMin < t.Margin.Top {
		return PlateMarginTop
	}
	if t.FrameSize.Width > 0 && r.Box.XMax > t.FrameSize.Width-t.Margin.Right {
		return PlateMarginRight
	}
	if t.FrameSize.Height > 0 && r.Box.YMax > t.FrameSize.Height-t.Margin.Bottom {
		return PlateMarginBottom
	}
	return OK
}

// OrientedFrameSize swaps width/height for 90°/270° mounting angles, so
// margin checks are evaluated against the physically correct axis.
func OrientedFrameSize(size reading.Size, mountingAngle int) reading.Size {
	if mountingAngle == 90 || mountingAngle == 270 {
		return reading.Size{Width: size.Height, Height: size.Width}
	}
	return size
}
