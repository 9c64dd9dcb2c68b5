// Package auxpolicy evaluates §4.7's auxiliary-output and IR-light
// policies once per housekeeper tick and drives the GPIO controller
// accordingly, mirroring the result into AuxiliaryStatus for
// <GET_DEV_PARAMS> visibility.
package auxpolicy

import (
	"time"

	"github.com/stroemhansen/yolocam/internal/appconfig"
	"github.com/stroemhansen/yolocam/internal/reading"
)

// Logical pin numbers the two protocol-level outputs and the fixed
// internal peripherals are wired to. These are the appliance's own
// convention, independent of the <SET_GPIO>/<GET_GPIO> pin argument
// space an operator may also address directly.
const (
	PinInput1  = 0
	PinOutput1 = 1
	PinOutput2 = 2
	PinFan     = 3
	PinIRLight = 4
)

// GPIO is the subset of gpioctl.Controller the policy drives.
type GPIO interface {
	Get(pin int) (int, error)
	SetWithPulseLength(pin, value int, length time.Duration) error
}

// Gyro is the subset of gpioctl.Gyro the position-alarm policy reads.
type Gyro interface {
	Position() (reading.Position, error)
	Alarmed(pos reading.Position, threshold int) bool
}

// Signals carries the per-tick facts the policies are evaluated
// against. CPUPercent and Now are passed in rather than sampled
// internally so tests can drive exact fan-hysteresis edges.
type Signals struct {
	WhitelistHit bool
	BlacklistHit bool
	Running      bool
	NewPlateHit  bool
	CPUPercent   float64
	Brightness   int
	Now          time.Time
}

// Policy holds the hysteresis state that must persist across ticks
// (the fan's on/off band, since it is not a pure function of the
// current CPU reading alone).
type Policy struct {
	gpio GPIO
	gyro Gyro

	fanOn bool
}

// New builds a Policy. gyro may be nil when no gyroscope is fitted;
// position-alarm outputs then always read as inactive.
func New(gpio GPIO, gyro Gyro) *Policy {
	return &Policy{gpio: gpio, gyro: gyro}
}

// Evaluate drives Output1/Output2, the fan and the internal IR line
// for one tick and returns the resulting AuxiliaryStatus.
func (p *Policy) Evaluate(cfg appconfig.Auxiliary, ir appconfig.IrLightControl, sig Signals) (appconfig.AuxiliaryStatus, error) {
	status := appconfig.AuxiliaryStatus{}

	if v, err := p.gpio.Get(PinInput1); err == nil {
		status.Input1 = v
	}

	var pos reading.Position
	alarmed := false
	if p.gyro != nil {
		var err error
		pos, err = p.gyro.Position()
		if err == nil {
			alarmed = p.gyro.Alarmed(pos, cfg.PositionAlarm)
		}
	}
	status.Position = pos

	pulseLength := time.Duration(cfg.PulseLength * float64(time.Second))
	if pulseLength <= 0 {
		pulseLength = time.Second
	}

	v1, err := p.drive(PinOutput1, cfg.Output1, sig, alarmed, pulseLength)
	if err != nil {
		return status, err
	}
	status.Output1 = v1

	v2, err := p.drive(PinOutput2, cfg.Output2, sig, alarmed, pulseLength)
	if err != nil {
		return status, err
	}
	status.Output2 = v2

	p.updateFan(cfg, sig)
	if p.fanOn {
		status.Fan = 1
	}
	if err := p.gpio.SetWithPulseLength(PinFan, onOff(p.fanOn), 0); err != nil {
		return status, err
	}

	irOn := p.evaluateIR(ir, sig)
	status.IrLight = onOff(irOn)
	if err := p.gpio.SetWithPulseLength(PinIRLight, onOff(irOn), 0); err != nil {
		return status, err
	}
	if cfg.Output1 == appconfig.AuxExtIRLight {
		status.Output1 = onOff(irOn)
		if err := p.gpio.SetWithPulseLength(PinOutput1, onOff(irOn), 0); err != nil {
			return status, err
		}
	}
	if cfg.Output2 == appconfig.AuxExtIRLight {
		status.Output2 = onOff(irOn)
		if err := p.gpio.SetWithPulseLength(PinOutput2, onOff(irOn), 0); err != nil {
			return status, err
		}
	}

	return status, nil
}

// drive applies one of the §4.7 output policies to a single logical
// pin and returns the level reported back in AuxiliaryStatus.
func (p *Policy) drive(pin int, policy appconfig.AuxiliaryOutput, sig Signals, alarmed bool, pulseLength time.Duration) (int, error) {
	switch policy {
	case appconfig.AuxWhitelist:
		if sig.WhitelistHit {
			return 1, p.gpio.SetWithPulseLength(pin, 2, pulseLength)
		}
	case appconfig.AuxBlacklist:
		if sig.BlacklistHit {
			return 1, p.gpio.SetWithPulseLength(pin, 2, pulseLength)
		}
	case appconfig.AuxNewPlate:
		if sig.NewPlateHit {
			return 1, p.gpio.SetWithPulseLength(pin, 2, pulseLength)
		}
	case appconfig.AuxRunning:
		return onOff(sig.Running), p.gpio.SetWithPulseLength(pin, onOff(sig.Running), 0)
	case appconfig.AuxPositionAlarm:
		return onOff(alarmed), p.gpio.SetWithPulseLength(pin, onOff(alarmed), 0)
	case appconfig.AuxExtIRLight:
		// External IR mirrors the same gating as the internal line;
		// Evaluate drives this pin once it has computed that gating,
		// so this branch leaves the pin untouched.
		return 0, nil
	case appconfig.AuxNone:
		return 0, p.gpio.SetWithPulseLength(pin, 0, 0)
	}
	return 0, nil
}

// updateFan applies the startFan/startFan-7 hysteresis band, plus a
// forced-on window during the first 45s of every wall-clock hour.
func (p *Policy) updateFan(cfg appconfig.Auxiliary, sig Signals) {
	if sig.Now.Minute() == 0 && sig.Now.Second() < 45 {
		p.fanOn = true
		return
	}
	if sig.CPUPercent >= float64(cfg.StartFan) {
		p.fanOn = true
	} else if sig.CPUPercent <= float64(cfg.StartFan-7) {
		p.fanOn = false
	}
}

// evaluateIR implements irLightControl.mode: off/on are constants, auto
// gates on the current brightness step against the configured
// threshold (a darker scene, i.e. a lower brightness value, turns the
// IR line on).
func (p *Policy) evaluateIR(ir appconfig.IrLightControl, sig Signals) bool {
	switch ir.Mode {
	case appconfig.IrOn:
		return true
	case appconfig.IrAuto:
		return sig.Brightness <= ir.BrightnessThreshold
	default:
		return false
	}
}

func onOff(b bool) int {
	if b {
		return 1
	}
	return 0
}
