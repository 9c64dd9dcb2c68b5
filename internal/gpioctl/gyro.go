package gpioctl

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"

	"github.com/stroemhansen/yolocam/internal/reading"
)

// BNO055 register map, lifted from the sensor's datasheet via the
// original Python driver.
const (
	regChipID    = 0x00
	regPageID    = 0x07
	regOprMode   = 0x3D
	regPwrMode   = 0x3E
	regSysTrig   = 0x3F
	regCalibStat = 0x35

	regEulerStart = 0x1A // X LSB; 6 bytes, X/Y/Z little-endian int16
	regGyroStart  = 0x14

	opModeConfig  = 0x00
	opModeNDOF    = 0x0C
	pwrModeNormal = 0x00

	i2cAddress = 0x28

	eulerScale = 16.0 // LSB per degree
)

// Gyro reads Euler orientation off a BNO055 and exposes it as a
// calibrated-zero-relative, 180-degree-wrapped delta per axis — the
// same quantity appconfig.AuxiliaryStatus.Position carries on the
// wire, matching the original driver's getPosition().
type Gyro struct {
	mu      sync.Mutex
	dev     *i2c.Dev
	zero    reading.Position
	current reading.Position
}

// OpenGyro opens busName (empty selects the default I2C bus),
// verifies the BNO055 chip ID, and puts the sensor into NDOF fusion
// mode.
func OpenGyro(busName string) (*Gyro, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("gpioctl: open i2c bus: %w", err)
	}
	return newGyro(bus)
}

// newGyro drives the chip-id-check-then-NDOF-mode bring-up sequence
// against any i2c.Bus, so it can run against a fake in tests.
func newGyro(bus i2c.Bus) (*Gyro, error) {
	dev := &i2c.Dev{Bus: bus, Addr: i2cAddress}

	if err := writeReg(dev, regPageID, 0x00); err != nil {
		return nil, fmt.Errorf("gpioctl: select page 0: %w", err)
	}
	id, err := readReg(dev, regChipID)
	if err != nil {
		return nil, fmt.Errorf("gpioctl: read chip id: %w", err)
	}
	if id != 0xA0 {
		return nil, fmt.Errorf("gpioctl: unexpected BNO055 chip id 0x%02x", id)
	}

	if err := writeReg(dev, regOprMode, opModeConfig); err != nil {
		return nil, fmt.Errorf("gpioctl: enter config mode: %w", err)
	}
	if err := writeReg(dev, regPwrMode, pwrModeNormal); err != nil {
		return nil, fmt.Errorf("gpioctl: set power mode: %w", err)
	}
	if err := writeReg(dev, regSysTrig, 0x00); err != nil {
		return nil, fmt.Errorf("gpioctl: clear sys trigger: %w", err)
	}
	if err := writeReg(dev, regOprMode, opModeNDOF); err != nil {
		return nil, fmt.Errorf("gpioctl: enter NDOF mode: %w", err)
	}

	return &Gyro{dev: dev}, nil
}

func writeReg(dev *i2c.Dev, reg, value byte) error {
	return dev.Tx([]byte{reg, value}, nil)
}

func readReg(dev *i2c.Dev, reg byte) (byte, error) {
	r := make([]byte, 1)
	if err := dev.Tx([]byte{reg}, r); err != nil {
		return 0, err
	}
	return r[0], nil
}

// readEuler returns the raw Euler heading/roll/pitch in degrees.
func readEuler(dev *i2c.Dev) (x, y, z float64, err error) {
	buf := make([]byte, 6)
	if err := dev.Tx([]byte{regEulerStart}, buf); err != nil {
		return 0, 0, 0, err
	}
	raw := func(lo, hi byte) int16 { return int16(uint16(lo) | uint16(hi)<<8) }
	x = float64(raw(buf[0], buf[1])) / eulerScale
	y = float64(raw(buf[2], buf[3])) / eulerScale
	z = float64(raw(buf[4], buf[5])) / eulerScale
	return x, y, z, nil
}

// Calibrate reads the current orientation and adopts it as the zero
// reference future Position() deltas are measured against.
func (g *Gyro) Calibrate() error {
	x, y, z, err := readEuler(g.dev)
	if err != nil {
		return fmt.Errorf("gpioctl: calibrate: %w", err)
	}
	g.mu.Lock()
	g.zero = reading.Position{X: int(x), Y: int(y), Z: int(z)}
	g.mu.Unlock()
	return nil
}

// wrappedDelta mirrors the original driver's getPosition(): the
// absolute difference between a current and zero-reference angle,
// folded into 0..180 across the 0/360 degree seam.
func wrappedDelta(current, zero int) int {
	delta := current - zero
	if delta < 0 {
		delta = -delta
	}
	if delta >= 180 {
		delta = 360 - delta
	}
	return delta
}

// Position samples the sensor and returns the calibrated-zero-relative
// position delta on each axis.
func (g *Gyro) Position() (reading.Position, error) {
	x, y, z, err := readEuler(g.dev)
	if err != nil {
		return reading.Position{}, fmt.Errorf("gpioctl: position: %w", err)
	}

	g.mu.Lock()
	zero := g.zero
	g.current = reading.Position{X: int(x), Y: int(y), Z: int(z)}
	g.mu.Unlock()

	return reading.Position{
		X: wrappedDelta(int(x), zero.X),
		Y: wrappedDelta(int(y), zero.Y),
		Z: wrappedDelta(int(z), zero.Z),
	}, nil
}

// Alarmed reports whether any axis of pos reaches or exceeds threshold
// in magnitude, implementing §4.7's position-alarm trigger.
func Alarmed(pos reading.Position, threshold int) bool {
	return pos.X >= threshold || pos.Y >= threshold || pos.Z >= threshold
}

// Alarmed is the internal/auxpolicy.Gyro method form of the package
// function above, letting *Gyro satisfy that interface directly.
func (g *Gyro) Alarmed(pos reading.Position, threshold int) bool {
	return Alarmed(pos, threshold)
}
