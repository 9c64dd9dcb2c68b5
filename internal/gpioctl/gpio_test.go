package gpioctl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/gpio"
)

// fakePin is a minimal gpio.PinOut double recording the last level
// driven, since periph's interface has no Read for outputs.
type fakePin struct {
	name  string
	level gpio.Level
}

func (p *fakePin) String() string     { return p.name }
func (p *fakePin) Name() string       { return p.name }
func (p *fakePin) Number() int        { return 0 }
func (p *fakePin) Function() string   { return "Out" }
func (p *fakePin) Halt() error        { return nil }
func (p *fakePin) PWM(duty int) error { return nil }
func (p *fakePin) Out(l gpio.Level) error {
	p.level = l
	return nil
}

func newTestController(t *testing.T, negate bool) (*Controller, *fakePin) {
	t.Helper()
	pin := &fakePin{name: "GPIO1"}
	c := &Controller{
		pins:   map[int]gpio.PinOut{1: pin},
		negate: map[int]bool{1: negate},
		pulsed: make(map[int]*time.Timer),
	}
	return c, pin
}

func TestSetOnDrivesHigh(t *testing.T) {
	c, pin := newTestController(t, false)
	require.NoError(t, c.Set(1, int(LevelOn)))
	assert.Equal(t, gpio.High, pin.level)

	v, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSetOffDrivesLow(t *testing.T) {
	c, pin := newTestController(t, false)
	require.NoError(t, c.Set(1, int(LevelOn)))
	require.NoError(t, c.Set(1, int(LevelOff)))
	assert.Equal(t, gpio.Low, pin.level)

	v, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestNegatedWiringInvertsPhysicalLevel(t *testing.T) {
	c, pin := newTestController(t, true)
	require.NoError(t, c.Set(1, int(LevelOn)))
	assert.Equal(t, gpio.Low, pin.level)

	// Get still reports the logical level, not the inverted wire level.
	v, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestPulseReturnsLowAfterLength(t *testing.T) {
	c, pin := newTestController(t, false)
	require.NoError(t, c.SetWithPulseLength(1, int(LevelPulse), 10*time.Millisecond))
	assert.Equal(t, gpio.High, pin.level)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, gpio.Low, pin.level)
}

func TestSetUnknownPinErrors(t *testing.T) {
	c, _ := newTestController(t, false)
	assert.Error(t, c.Set(99, int(LevelOn)))
}

func TestGetUnknownPinErrors(t *testing.T) {
	c, _ := newTestController(t, false)
	_, err := c.Get(99)
	assert.Error(t, err)
}
