// Package capture owns the live camera feed: acquiring frames from a
// USB/V4L2 device or an IP camera's MJPEG/snapshot endpoint, then
// rotating, masking and auto-exposing them the way the recognition
// pipeline expects.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strconv"
	"strings"
	"sync"

	"github.com/stroemhansen/yolocam/internal/reading"
)

// Frame is one acquired still: its JPEG bytes and decoded image.
// Sources hand Ingest frames as the camera delivered them; the Loop
// keeps a copy rotated to the mounting angle but not masked.
type Frame struct {
	JPEG  []byte
	Image image.Image
}

// Source runs a capture loop against a concrete camera transport
// (USBSource or IPSource) until its context is canceled, pushing every
// frame it reads into a Loop.
type Source interface {
	Close() error
}

// Loop holds the most recent frame from an underlying Source, applying
// rotation, masking and auto-brightness before publishing it — the
// single point every consumer (recognizer, streaming port, rolling
// video buffer) reads from.
type Loop struct {
	mu       sync.RWMutex
	raw      Frame
	masked   []byte
	hasFrame bool

	mountingAngle int
	imageMask     string
	manualBright  float64 // 0 means auto

	brightness brightnessState
	OnBrightnessChange func(level int)

	recording *RingBuffer
}

// NewLoop creates a Loop with the given static tuning; mountingAngle
// is one of 0/90/180/270 and imageMask is the semicolon/comma polygon
// string from appconfig.Camera.ImageMask. recordingFrames sizes the
// rolling clip buffer DecisionRecording draws from; 0 disables it.
func NewLoop(mountingAngle int, imageMask string, manualBrightness float64, recordingFrames int) *Loop {
	l := &Loop{mountingAngle: mountingAngle, imageMask: imageMask, manualBright: manualBrightness}
	if recordingFrames > 0 {
		l.recording = NewRingBuffer(recordingFrames)
	}
	return l
}

// Recording returns the rolling raw-frame buffer backing decision clip
// recording, or nil if NewLoop was called with recordingFrames <= 0.
func (l *Loop) Recording() *RingBuffer { return l.recording }

// Ingest rotates, masks and auto-brightens one freshly captured frame
// and makes it the current frame. Called by the USB/IP source's
// capture goroutine.
func (l *Loop) Ingest(raw Frame) error {
	rotated := RotateFrame(raw.Image, l.mountingAngle)
	rotatedJPEG := raw.JPEG
	switch l.mountingAngle {
	case 90, 180, 270:
		var rb bytes.Buffer
		if err := jpeg.Encode(&rb, rotated, &jpeg.Options{Quality: 90}); err != nil {
			return fmt.Errorf("capture: encode rotated frame: %w", err)
		}
		rotatedJPEG = rb.Bytes()
	}

	if l.manualBright == 0 {
		adjusted, level, _ := l.brightness.adjust(rotated, 10)
		if adjusted && l.OnBrightnessChange != nil {
			l.OnBrightnessChange(level)
		}
	}

	masked := MaskImage(rotated, l.imageMask)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, masked, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("capture: encode masked frame: %w", err)
	}

	l.mu.Lock()
	l.raw = Frame{JPEG: rotatedJPEG, Image: rotated}
	l.masked = buf.Bytes()
	l.hasFrame = true
	l.mu.Unlock()

	if l.recording != nil {
		l.recording.Push(rotatedJPEG)
	}
	return nil
}

// CurrentFrameJPEG satisfies internal/control.FrameSource: the masked,
// rotated JPEG the recognizer and streaming port both consume.
func (l *Loop) CurrentFrameJPEG() ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.hasFrame {
		return nil, false
	}
	return l.masked, true
}

// CurrentRawJPEG returns the rotated-but-unmasked frame, used for the
// rolling video buffer which records what the camera actually saw.
func (l *Loop) CurrentRawJPEG() ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.hasFrame {
		return nil, false
	}
	return l.raw.JPEG, true
}

// FullScene satisfies internal/aggregator.ImageSource: idx<=0 looks
// back into the rolling clip buffer (0 is the most recent frame),
// idx>0 is not retrievable from a live feed (no post-buffer) and
// reports false.
func (l *Loop) FullScene(idx int) ([]byte, bool) {
	if idx > 0 {
		return nil, false
	}
	if l.recording == nil {
		if idx != 0 {
			return nil, false
		}
		return l.CurrentRawJPEG()
	}
	snap := l.recording.Snapshot()
	if len(snap) == 0 {
		return nil, false
	}
	i := len(snap) - 1 + idx
	if i < 0 || i >= len(snap) {
		return nil, false
	}
	return snap[i], true
}

// CropPlate satisfies internal/aggregator.ImageSource: it decodes the
// current raw frame and returns a size-clamped crop centered on box.
func (l *Loop) CropPlate(box reading.Box, size reading.Size) ([]byte, reading.Rectangle, bool) {
	raw, ok := l.CurrentRawJPEG()
	if !ok {
		return nil, reading.Rectangle{}, false
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, reading.Rectangle{}, false
	}

	b := img.Bounds()
	cx := (box.XMin + box.XMax) / 2
	cy := (box.YMin + box.YMax) / 2
	rect := reading.Rectangle{X: cx - size.Width/2, Y: cy - size.Height/2, Width: size.Width, Height: size.Height}
	if rect.X < b.Min.X {
		rect.X = b.Min.X
	}
	if rect.Y < b.Min.Y {
		rect.Y = b.Min.Y
	}
	if rect.X+rect.Width > b.Max.X {
		rect.X = b.Max.X - rect.Width
	}
	if rect.Y+rect.Height > b.Max.Y {
		rect.Y = b.Max.Y - rect.Height
	}
	if rect.Width <= 0 || rect.Height <= 0 {
		return nil, reading.Rectangle{}, false
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Width, rect.Height))
	for y := 0; y < rect.Height; y++ {
		for x := 0; x < rect.Width; x++ {
			dst.Set(x, y, img.At(rect.X+x, rect.Y+y))
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, reading.Rectangle{}, false
	}
	return buf.Bytes(), rect, true
}

// RotateFrame applies a 90/180/270 degree rotation; any other angle is
// a no-op, matching the original driver's rotate_frame.
func RotateFrame(img image.Image, angle int) image.Image {
	switch angle {
	case 90:
		return rotate90(img)
	case 180:
		return rotate180(img)
	case 270:
		return rotate270(img)
	default:
		return img
	}
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(h-1-y, x, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate270(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(y, w-1-x, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(w-1-x, h-1-y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

const maskFillGrey = 160

// MaskImage fills every pixel outside the polygon described by coords
// ("x1,y1,x2,y2,..." or semicolon-separated pairs) with a flat grey,
// matching the original driver's mask_image/fillPoly behavior. Fewer
// than three points leaves the frame untouched.
func MaskImage(img image.Image, coords string) image.Image {
	points := parseMaskPoints(coords)
	if len(points) < 3 {
		return img
	}

	b := img.Bounds()
	dst := image.NewRGBA(b)
	grey := color.RGBA{maskFillGrey, maskFillGrey, maskFillGrey, 255}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if pointInPolygon(x, y, points) {
				dst.Set(x, y, img.At(x, y))
			} else {
				dst.Set(x, y, grey)
			}
		}
	}
	return dst
}

type point struct{ x, y int }

func parseMaskPoints(coords string) []point {
	norm := strings.ReplaceAll(coords, ";", ",")
	fields := strings.Split(norm, ",")
	if len(fields) < 6 || len(fields)%2 != 0 {
		return nil
	}
	points := make([]point, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		x, err1 := strconv.Atoi(strings.TrimSpace(fields[i]))
		y, err2 := strconv.Atoi(strings.TrimSpace(fields[i+1]))
		if err1 != nil || err2 != nil {
			return nil
		}
		points = append(points, point{x, y})
	}
	return points
}

// pointInPolygon is the standard ray-casting test.
func pointInPolygon(x, y int, poly []point) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := poly[i], poly[j]
		if (pi.y > y) != (pj.y > y) {
			xIntersect := float64(pj.x-pi.x)*float64(y-pi.y)/float64(pj.y-pi.y) + float64(pi.x)
			if float64(x) < xIntersect {
				inside = !inside
			}
		}
	}
	return inside
}
