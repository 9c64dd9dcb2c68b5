package gpioctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/i2c"

	"github.com/stroemhansen/yolocam/internal/reading"
)

// fakeBus is a minimal i2c.Bus double that answers register reads from
// a fixed register file, mimicking a BNO055 at a given orientation.
type fakeBus struct {
	regs map[byte]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: map[byte]byte{
		regChipID: 0xA0,
	}}
}

func (b *fakeBus) String() string       { return "fake" }
func (b *fakeBus) Speed(hz int64) error { return nil }

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if len(r) == 0 {
		// write: w[0] is the register, w[1] the value
		if len(w) == 2 {
			b.regs[w[0]] = w[1]
		}
		return nil
	}
	// read: w[0] is the starting register, r is filled sequentially
	start := w[0]
	for i := range r {
		r[i] = b.regs[start+byte(i)]
	}
	return nil
}

func (b *fakeBus) setEuler(x, y, z int16) {
	put := func(reg byte, v int16) {
		b.regs[reg] = byte(uint16(v))
		b.regs[reg+1] = byte(uint16(v) >> 8)
	}
	put(regEulerStart, x*16)
	put(regEulerStart+2, y*16)
	put(regEulerStart+4, z*16)
}

func newTestGyro(bus *fakeBus) *Gyro {
	return &Gyro{dev: &i2c.Dev{Bus: bus, Addr: i2cAddress}}
}

func TestPositionIsZeroRightAfterCalibrate(t *testing.T) {
	bus := newFakeBus()
	bus.setEuler(10, 20, 30)
	g := newTestGyro(bus)

	require.NoError(t, g.Calibrate())

	pos, err := g.Position()
	require.NoError(t, err)
	assert.Equal(t, reading.Position{X: 0, Y: 0, Z: 0}, pos)
}

func TestPositionReflectsDeltaFromZero(t *testing.T) {
	bus := newFakeBus()
	bus.setEuler(10, 20, 30)
	g := newTestGyro(bus)
	require.NoError(t, g.Calibrate())

	bus.setEuler(15, 20, 10)
	pos, err := g.Position()
	require.NoError(t, err)
	assert.Equal(t, reading.Position{X: 5, Y: 0, Z: 20}, pos)
}

func TestPositionWrapsAcross360DegreeSeam(t *testing.T) {
	bus := newFakeBus()
	bus.setEuler(350, 0, 0)
	g := newTestGyro(bus)
	require.NoError(t, g.Calibrate())

	bus.setEuler(10, 0, 0)
	pos, err := g.Position()
	require.NoError(t, err)
	// raw delta would be 340, wraps to 360-340=20
	assert.Equal(t, 20, pos.X)
}

func TestWrappedDeltaAtExactly180(t *testing.T) {
	assert.Equal(t, 180, wrappedDelta(180, 0))
}

func TestAlarmedTriggersWhenAnyAxisExceedsThreshold(t *testing.T) {
	assert.True(t, Alarmed(reading.Position{X: 0, Y: 12, Z: 0}, 10))
	assert.False(t, Alarmed(reading.Position{X: 5, Y: 5, Z: 5}, 10))
}

func TestChipIDMismatchErrors(t *testing.T) {
	bus := &fakeBus{regs: map[byte]byte{regChipID: 0x00}}
	_, err := newGyro(bus)
	assert.Error(t, err)
}

func TestNewGyroEntersNDOFMode(t *testing.T) {
	bus := newFakeBus()
	_, err := newGyro(bus)
	require.NoError(t, err)
	assert.Equal(t, byte(opModeNDOF), bus.regs[regOprMode])
}
