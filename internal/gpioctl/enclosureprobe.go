package gpioctl

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// EnclosureProbe reads ASCII temperature lines ("23.5\n") from an
// external serial thermometer, used when appconfig.Device's
// enclosureTemperatureOption selects the external-probe mode rather
// than the onboard sensor.
type EnclosureProbe struct {
	port serial.Port

	mu   sync.RWMutex
	last float64
	ok   bool
}

// OpenEnclosureProbe opens portName at 9600 8N1, the baud rate the
// original firmware's external probe speaks.
func OpenEnclosureProbe(portName string) (*EnclosureProbe, error) {
	mode := &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("gpioctl: open enclosure probe: %w", err)
	}
	return &EnclosureProbe{port: port}, nil
}

// Run reads newline-delimited temperature readings until the port
// closes or produces a read error. Call it in its own goroutine.
func (p *EnclosureProbe) Run() error {
	scan := bufio.NewScanner(p.port)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		p.mu.Lock()
		p.last = v
		p.ok = true
		p.mu.Unlock()
	}
	return scan.Err()
}

// Temperature returns the most recently parsed reading in Celsius.
// ok is false until the first valid line arrives.
func (p *EnclosureProbe) Temperature() (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.ok
}

// Close releases the underlying serial port.
func (p *EnclosureProbe) Close() error {
	return p.port.Close()
}
