package capture

import (
	"fmt"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
)

// go4vlFrame adapts *device.Frame to V4LFrame.
type go4vlFrame struct{ f *device.Frame }

func (g go4vlFrame) Bytes() []byte { return g.f.Data }
func (g go4vlFrame) Release()      { g.f.Release() }

// go4vlDevice adapts *device.Device to v4lDevice, re-shaping its
// *device.Frame channel (dev.GetFrames(), per go4vl's own
//
//	for frame := range dev.GetFrames() { ... frame.Release() }
//
// usage pattern) into the narrower V4LFrame one USBSource consumes.
type go4vlDevice struct {
	dev    *device.Device
	frames chan V4LFrame
	done   chan struct{}
}

// OpenUSBCamera opens path (e.g. "/dev/video0") in MJPEG pixel format
// at the given resolution and starts streaming, mirroring go4vl's
// device.Open/WithPixFormat option idiom.
func OpenUSBCamera(path string, width, height uint32, bufSize uint32) (*USBSource, error) {
	dev, err := device.Open(path,
		device.WithPixFormat(v4l2.PixFormat{Width: width, Height: height, PixelFormat: v4l2.PixelFmtMJPEG}),
		device.WithBufferSize(bufSize),
	)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}

	adapter := &go4vlDevice{dev: dev, frames: make(chan V4LFrame), done: make(chan struct{})}
	go adapter.relay()

	return &USBSource{dev: adapter}, nil
}

func (d *go4vlDevice) relay() {
	defer close(d.frames)
	for f := range d.dev.GetFrames() {
		select {
		case d.frames <- go4vlFrame{f}:
		case <-d.done:
			return
		}
	}
}

func (d *go4vlDevice) GetFrames() <-chan V4LFrame { return d.frames }

func (d *go4vlDevice) Close() error {
	close(d.done)
	return d.dev.Close()
}
