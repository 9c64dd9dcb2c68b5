package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
)

// v4lDevice is the subset of go4vl's *device.Device this package uses,
// kept as an interface so USBSource is testable without a real camera.
type v4lDevice interface {
	GetFrames() <-chan V4LFrame
	Close() error
}

// V4LFrame mirrors go4vl's device.Frame: MJPEG-format devices hand
// back ready-to-decode JPEG bytes directly in Data.
type V4LFrame interface {
	Bytes() []byte
	Release()
}

// USBSource pulls frames off a V4L2 device opened in MJPEG pixel
// format, via go4vl's GetFrames() channel.
type USBSource struct {
	dev    v4lDevice
	cancel context.CancelFunc
}

// NewUSBSource wraps an already-opened go4vl device. Opening and
// configuring the device (resolution, pixel format, buffer count) is
// the caller's job, mirroring go4vl's own device.Open/WithPixFormat
// options pattern.
func NewUSBSource(dev v4lDevice) *USBSource {
	return &USBSource{dev: dev}
}

// Run reads frames from the device until ctx is canceled, decoding
// each as JPEG and handing it to loop.Ingest.
func (s *USBSource) Run(ctx context.Context, loop *Loop) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-s.dev.GetFrames():
			if !ok {
				return fmt.Errorf("capture: usb device frame channel closed")
			}
			data := f.Bytes()
			img, err := jpeg.Decode(bytes.NewReader(data))
			f.Release()
			if err != nil {
				continue
			}
			if err := loop.Ingest(Frame{JPEG: data, Image: img}); err != nil {
				continue
			}
		}
	}
}

// Close releases the underlying V4L2 device.
func (s *USBSource) Close() error {
	return s.dev.Close()
}
