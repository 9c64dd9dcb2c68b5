package capture

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// brightnessLevel is one row of the lookup table mapping a measured
// luminance ratio to a discrete camera-brightness setting, lifted
// verbatim from the original driver's 33-step table.
type brightnessLevel struct {
	value    int
	low, high float64
}

var brightnessLevels = []brightnessLevel{
	{-64, 0.97, 1.0}, {-60, 0.939, 0.97}, {-56, 0.909, 0.939}, {-52, 0.879, 0.909},
	{-48, 0.848, 0.879}, {-44, 0.818, 0.848}, {-40, 0.788, 0.818}, {-36, 0.758, 0.788},
	{-32, 0.727, 0.758}, {-28, 0.697, 0.727}, {-24, 0.667, 0.697}, {-20, 0.636, 0.667},
	{-16, 0.606, 0.636}, {-12, 0.576, 0.606}, {-8, 0.545, 0.576}, {-4, 0.515, 0.545},
	{0, 0.485, 0.515}, {4, 0.455, 0.485}, {8, 0.424, 0.455}, {12, 0.394, 0.424},
	{16, 0.364, 0.394}, {20, 0.333, 0.364}, {24, 0.303, 0.333}, {28, 0.273, 0.303},
	{32, 0.242, 0.273}, {36, 0.212, 0.242}, {40, 0.182, 0.212}, {44, 0.152, 0.182},
	{48, 0.121, 0.152}, {52, 0.091, 0.121}, {56, 0.061, 0.091}, {60, 0.03, 0.061},
	{64, 0.0, 0.03},
}

// brightnessState tracks the debounce counters adjust() needs between
// calls: the last measured level/value, and how many consecutive
// frames have held steady.
type brightnessState struct {
	measuredValue int
	measuredLevel float64
	steadyFrames  int
	currentValue  int
	started       bool
}

// luminance returns a 0..1 "how bright is this frame" ratio computed
// from a 256-bin grey histogram mean, the same quantity the original
// driver derives via PIL's convert('L').histogram().
func luminance(img image.Image) float64 {
	var histogram [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			grey := (299*int(r>>8) + 587*int(g>>8) + 114*int(bl>>8)) / 1000
			if grey > 255 {
				grey = 255
			}
			histogram[grey]++
		}
	}

	pixels := 0
	for _, c := range histogram {
		pixels += c
	}
	if pixels == 0 {
		return 1.0
	}

	// brightness = scale + weighted mean of (i-scale) over the grey
	// histogram's bins, the bins as weights: this is algebraically the
	// same accumulation the original driver does bin-by-bin, expressed
	// as a gonum/stat weighted mean (the same call reading.StatWindow.Mean
	// makes unweighted).
	scale := len(histogram)
	offsets := make([]float64, scale)
	weights := make([]float64, scale)
	for i, c := range histogram {
		offsets[i] = float64(i - scale)
		weights[i] = float64(c)
	}
	brightness := float64(scale) + stat.Mean(offsets, weights)

	if brightness == 255 {
		return 1.0
	}
	return roundTo3(brightness / float64(scale))
}

func roundTo3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

func levelFor(luma float64) int {
	for _, lv := range brightnessLevels {
		lo, hi := lv.low, lv.high
		if lo > hi {
			lo, hi = hi, lo
		}
		if luma >= lo && luma <= hi {
			return lv.value
		}
	}
	return 0
}

// adjust implements the original driver's adjust_camera_brightness:
// it debounces the measured level across delay frames before
// committing a new camera-brightness value, returning whether this
// call produced a change, the (possibly unchanged) current value, and
// the raw luminance ratio.
func (s *brightnessState) adjust(img image.Image, delay int) (changed bool, value int, luma float64) {
	luma = luminance(img)
	level := levelFor(luma)

	if s.measuredValue != level && absFloat(s.measuredLevel-luma) > 0.015 {
		s.measuredValue = level
		s.measuredLevel = luma
		s.steadyFrames = 0
	} else {
		s.steadyFrames++
	}

	if s.steadyFrames == delay && s.currentValue != s.measuredValue {
		s.currentValue = s.measuredValue
		return true, s.currentValue, luma
	}
	return false, s.currentValue, luma
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
