package auxpolicy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroemhansen/yolocam/internal/appconfig"
	"github.com/stroemhansen/yolocam/internal/reading"
)

type fakeGPIO struct {
	levels map[int]int
	calls  map[int]int
}

func newFakeGPIO() *fakeGPIO {
	return &fakeGPIO{levels: make(map[int]int), calls: make(map[int]int)}
}

func (g *fakeGPIO) Get(pin int) (int, error) { return g.levels[pin], nil }

func (g *fakeGPIO) SetWithPulseLength(pin, value int, length time.Duration) error {
	g.calls[pin]++
	if value == 2 {
		g.levels[pin] = 1
	} else {
		g.levels[pin] = value
	}
	return nil
}

type fakeGyro struct {
	pos      reading.Position
	alarmed  bool
}

func (g *fakeGyro) Position() (reading.Position, error) { return g.pos, nil }
func (g *fakeGyro) Alarmed(pos reading.Position, threshold int) bool { return g.alarmed }

func TestWhitelistPolicyPulsesOnlyOnHit(t *testing.T) {
	gpio := newFakeGPIO()
	p := New(gpio, nil)
	cfg := appconfig.Auxiliary{Output1: appconfig.AuxWhitelist, PulseLength: 1}

	_, err := p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{WhitelistHit: false})
	require.NoError(t, err)
	assert.Equal(t, 0, gpio.calls[PinOutput1])

	status, err := p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{WhitelistHit: true})
	require.NoError(t, err)
	assert.Equal(t, 1, status.Output1)
	assert.Equal(t, 1, gpio.calls[PinOutput1])
}

func TestRunningPolicyTracksSignalSteadily(t *testing.T) {
	gpio := newFakeGPIO()
	p := New(gpio, nil)
	cfg := appconfig.Auxiliary{Output1: appconfig.AuxRunning}

	status, _ := p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{Running: true})
	assert.Equal(t, 1, status.Output1)

	status, _ = p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{Running: false})
	assert.Equal(t, 0, status.Output1)
}

func TestPositionAlarmReflectsGyroAlarmState(t *testing.T) {
	gpio := newFakeGPIO()
	gyro := &fakeGyro{alarmed: true}
	p := New(gpio, gyro)
	cfg := appconfig.Auxiliary{Output2: appconfig.AuxPositionAlarm, PositionAlarm: 10}

	status, err := p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{})
	require.NoError(t, err)
	assert.Equal(t, 1, status.Output2)
}

func TestNoGyroLeavesPositionAlarmInactive(t *testing.T) {
	gpio := newFakeGPIO()
	p := New(gpio, nil)
	cfg := appconfig.Auxiliary{Output2: appconfig.AuxPositionAlarm}

	status, err := p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{})
	require.NoError(t, err)
	assert.Equal(t, 0, status.Output2)
}

func TestFanTurnsOnAtStartFanAndOffAtHysteresisFloor(t *testing.T) {
	gpio := newFakeGPIO()
	p := New(gpio, nil)
	cfg := appconfig.Auxiliary{StartFan: 60}
	noon := time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC)

	status, _ := p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{CPUPercent: 59, Now: noon})
	assert.Equal(t, 0, status.Fan)

	status, _ = p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{CPUPercent: 60, Now: noon})
	assert.Equal(t, 1, status.Fan)

	// Between the two thresholds the fan holds its prior state.
	status, _ = p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{CPUPercent: 55, Now: noon})
	assert.Equal(t, 1, status.Fan)

	status, _ = p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{CPUPercent: 53, Now: noon})
	assert.Equal(t, 0, status.Fan)
}

func TestFanForcedOnDuringFirst45SecondsOfHour(t *testing.T) {
	gpio := newFakeGPIO()
	p := New(gpio, nil)
	cfg := appconfig.Auxiliary{StartFan: 90}
	topOfHour := time.Date(2026, 1, 1, 13, 0, 30, 0, time.UTC)

	status, _ := p.Evaluate(cfg, appconfig.IrLightControl{}, Signals{CPUPercent: 0, Now: topOfHour})
	assert.Equal(t, 1, status.Fan)
}

func TestIRLightAutoGatesOnBrightnessThreshold(t *testing.T) {
	gpio := newFakeGPIO()
	p := New(gpio, nil)
	ir := appconfig.IrLightControl{Mode: appconfig.IrAuto, BrightnessThreshold: 0}

	status, _ := p.Evaluate(appconfig.Auxiliary{}, ir, Signals{Brightness: -10})
	assert.Equal(t, 1, status.IrLight)

	status, _ = p.Evaluate(appconfig.Auxiliary{}, ir, Signals{Brightness: 10})
	assert.Equal(t, 0, status.IrLight)
}

func TestIRLightOffModeIsAlwaysOff(t *testing.T) {
	gpio := newFakeGPIO()
	p := New(gpio, nil)
	ir := appconfig.IrLightControl{Mode: appconfig.IrOff}

	status, _ := p.Evaluate(appconfig.Auxiliary{}, ir, Signals{Brightness: -100})
	assert.Equal(t, 0, status.IrLight)
}

func TestInput1ReflectsGPIOState(t *testing.T) {
	gpio := newFakeGPIO()
	gpio.levels[PinInput1] = 1
	p := New(gpio, nil)

	status, _ := p.Evaluate(appconfig.Auxiliary{}, appconfig.IrLightControl{}, Signals{})
	assert.Equal(t, 1, status.Input1)
}
