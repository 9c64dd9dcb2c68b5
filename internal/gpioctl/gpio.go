// Package gpioctl drives the appliance's two logical auxiliary outputs
// and the BNO055 gyroscope over periph.io, and implements the pulse and
// position-alarm semantics §4.7 assigns to them.
package gpioctl

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// PinLevel is the protocol-level pin state <GET_GPIO>/<SET_GPIO> speak:
// 0/1/2 = off/on/pulse.
type PinLevel int

const (
	LevelOff PinLevel = iota
	LevelOn
	LevelPulse
)

// Controller drives a small fixed set of named output pins, each
// optionally negated (active-low wiring), satisfying
// internal/control.GPIO.
type Controller struct {
	mu     sync.Mutex
	pins   map[int]gpio.PinOut
	negate map[int]bool
	pulsed map[int]*time.Timer
}

// New initializes the periph host drivers and resolves names[n] to a
// physical pin for logical output n. negate[n] true means the wire is
// active-low: PinLevel On drives the pin Low.
func New(names map[int]string, negate map[int]bool) (*Controller, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpioctl: host init: %w", err)
	}

	pins := make(map[int]gpio.PinOut, len(names))
	for n, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpioctl: pin %q not found", name)
		}
		pins[n] = p
	}

	return &Controller{
		pins:   pins,
		negate: negate,
		pulsed: make(map[int]*time.Timer),
	}, nil
}

// Get returns the logical level (0/1) last driven onto pin n by Set,
// before the negate mask is applied; the hardware is not read back.
func (c *Controller) Get(n int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pins[n]
	if !ok {
		return 0, fmt.Errorf("gpioctl: unknown pin %d", n)
	}
	// PinOut doesn't expose Read; Controller tracks the last level it
	// drove instead of round-tripping through hardware for a pin it
	// owns exclusively.
	return c.lastLevel(p), nil
}

// lastLevels tracks, per pin, the level last written by Set — PinOut
// has no Read, so this is the only source of truth for Get.
var lastLevels = struct {
	sync.Mutex
	m map[gpio.PinOut]int
}{m: make(map[gpio.PinOut]int)}

func (c *Controller) lastLevel(p gpio.PinOut) int {
	lastLevels.Lock()
	defer lastLevels.Unlock()
	return lastLevels.m[p]
}

func setLastLevel(p gpio.PinOut, level int) {
	lastLevels.Lock()
	defer lastLevels.Unlock()
	lastLevels.m[p] = level
}

// Set drives logical pin n to value (0/1/2 = off/on/pulse). A pulse
// drives the pin high for one second, then low; SetWithPulseLength
// takes the pulse duration explicitly.
func (c *Controller) Set(n int, value int) error {
	return c.SetWithPulseLength(n, value, time.Second)
}

// SetWithPulseLength is Set with an explicit pulse duration, since the
// protocol-level <SET_GPIO> call has no duration argument — callers
// driving a real pulse policy should call this directly with
// auxiliary.pulseLength.
func (c *Controller) SetWithPulseLength(n, value int, length time.Duration) error {
	c.mu.Lock()
	p, ok := c.pins[n]
	negate := c.negate[n]
	if existing, ok := c.pulsed[n]; ok {
		existing.Stop()
		delete(c.pulsed, n)
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("gpioctl: unknown pin %d", n)
	}

	switch PinLevel(value) {
	case LevelOff:
		if err := p.Out(wire(gpio.Low, negate)); err != nil {
			return err
		}
		setLastLevel(p, 0)
	case LevelOn:
		if err := p.Out(wire(gpio.High, negate)); err != nil {
			return err
		}
		setLastLevel(p, 1)
	case LevelPulse:
		if err := p.Out(wire(gpio.High, negate)); err != nil {
			return err
		}
		setLastLevel(p, 1)
		timer := time.AfterFunc(length, func() {
			p.Out(wire(gpio.Low, negate))
			setLastLevel(p, 0)
		})
		c.mu.Lock()
		c.pulsed[n] = timer
		c.mu.Unlock()
	default:
		return fmt.Errorf("gpioctl: invalid level %d", value)
	}
	return nil
}

// wire applies the negate mask: active-low wiring inverts the logical
// level actually driven onto the pin.
func wire(level gpio.Level, negate bool) gpio.Level {
	if negate {
		return !level
	}
	return level
}
