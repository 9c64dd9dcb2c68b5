// Package applog is the appliance-wide diagnostic logger. It mirrors
// messages to daily-rotated files, counts fatal errors towards the
// reboot threshold, and keeps a short per-client ring for the control
// surface's <GET_LOG_MESSAGES> token.
package applog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stroemhansen/yolocam/internal/timeutil"
)

// Level is the taxonomy described in the error-handling design: DEBUG is
// informational, DECISION records an emission receipt, NETWORK is a
// transient transport/peer failure, WARNING is a recoverable local
// fault, and ERROR is an internal fault that counts against the
// fatal-error safety net.
type Level int

const (
	DEBUG Level = iota
	DECISION
	NETWORK
	WARNING
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case DECISION:
		return "DECISION"
	case NETWORK:
		return "NETWORK"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FatalThreshold is the number of ERROR events that trips the reboot hook.
const FatalThreshold = 25

// ringSize bounds how many recent messages are kept per control client.
const ringSize = 64

// Logf is the package-level sink, replaceable for tests exactly as the
// teacher's monitoring.Logf is.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}

// RebootHook is invoked once the fatal-error counter crosses
// FatalThreshold. Production wires this to an OS reboot; tests replace
// it to observe the trip without actually rebooting.
type RebootHook func()

// Logger writes leveled lines to daily-rotated files and tracks the
// fatal-error counter and per-client message rings.
type Logger struct {
	mu         sync.Mutex
	dir        string
	clock      timeutil.Clock
	fatalCount int
	rebootHook RebootHook
	clients    map[string][]string
	curDay     string
	mainFile   *os.File
	errFile    *os.File
}

// New creates a Logger writing under dir (typically "logs/").
func New(dir string, clock timeutil.Clock, hook RebootHook) *Logger {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Logger{
		dir:        dir,
		clock:      clock,
		rebootHook: hook,
		clients:    make(map[string][]string),
	}
}

// FatalCount returns the current fatal-error counter, exposed for
// statistics.unexpectedReboots bookkeeping and <RESET_STATISTICS>.
func (l *Logger) FatalCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fatalCount
}

// ResetFatalCount clears the counter, called by the housekeeper's hourly
// tick.
func (l *Logger) ResetFatalCount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fatalCount = 0
}

// Log records one event at the given level, under an optional client id
// for the per-client message ring (pass "" when the event has no
// associated control client).
func (l *Logger) Log(level Level, clientID, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	line := fmt.Sprintf("%s [%s] %s", l.clock.Now().Format(time.RFC3339), level, msg)

	l.mu.Lock()
	l.rotate()
	if l.mainFile != nil {
		fmt.Fprintln(l.mainFile, line)
	}
	if (level == ERROR || level == NETWORK) && l.errFile != nil {
		fmt.Fprintln(l.errFile, line)
	}
	if clientID != "" {
		ring := append(l.clients[clientID], line)
		if len(ring) > ringSize {
			ring = ring[len(ring)-ringSize:]
		}
		l.clients[clientID] = ring
	}

	var tripped bool
	if level == ERROR {
		l.fatalCount++
		tripped = l.fatalCount >= FatalThreshold
		if tripped {
			l.fatalCount = 0
		}
	}
	l.mu.Unlock()

	Logf("%s", line)
	if tripped && l.rebootHook != nil {
		l.rebootHook()
	}
}

// Debugf logs a DEBUG event.
func (l *Logger) Debugf(format string, v ...any) { l.Log(DEBUG, "", format, v...) }

// Decisionf logs a DECISION emission receipt.
func (l *Logger) Decisionf(format string, v ...any) { l.Log(DECISION, "", format, v...) }

// Networkf logs a transient NETWORK failure.
func (l *Logger) Networkf(format string, v ...any) { l.Log(NETWORK, "", format, v...) }

// Warningf logs a recoverable WARNING.
func (l *Logger) Warningf(format string, v ...any) { l.Log(WARNING, "", format, v...) }

// Errorf logs an internal ERROR, counting it against the fatal-error
// safety net.
func (l *Logger) Errorf(format string, v ...any) { l.Log(ERROR, "", format, v...) }

// PendingMessages drains and returns the ring of messages accumulated
// for clientID since the last call, in arrival order, joined for the
// <GET_LOG_MESSAGES> wire format by the caller.
func (l *Logger) PendingMessages(clientID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := l.clients[clientID]
	l.clients[clientID] = nil
	return msgs
}

// rotate opens today's log files if the day has changed since the last
// write. Must be called with l.mu held.
func (l *Logger) rotate() {
	day := l.clock.Now().Format("2006-01-02")
	if day == l.curDay && l.mainFile != nil {
		return
	}
	if l.dir == "" {
		return
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		log.Printf("applog: cannot create log dir %s: %v", l.dir, err)
		return
	}
	if l.mainFile != nil {
		l.mainFile.Close()
	}
	if l.errFile != nil {
		l.errFile.Close()
	}
	mainPath := filepath.Join(l.dir, fmt.Sprintf("yolocam_%s.log", day))
	errPath := filepath.Join(l.dir, fmt.Sprintf("yolocam_err_%s.log", day))
	var err error
	l.mainFile, err = os.OpenFile(mainPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("applog: cannot open %s: %v", mainPath, err)
	}
	l.errFile, err = os.OpenFile(errPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("applog: cannot open %s: %v", errPath, err)
	}
	l.curDay = day
}

// Flush syncs the current log files to disk; called by the 30 s
// housekeeper tick.
func (l *Logger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mainFile != nil {
		if err := l.mainFile.Sync(); err != nil {
			return err
		}
	}
	if l.errFile != nil {
		return l.errFile.Sync()
	}
	return nil
}

// Close releases the open log file handles.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mainFile != nil {
		l.mainFile.Close()
	}
	if l.errFile != nil {
		l.errFile.Close()
	}
	return nil
}

// PruneOlderThan removes log files under dir older than maxAge, for the
// housekeeper's daily retention tick (>30 d per the spec).
func PruneOlderThan(dir string, maxAge time.Duration, now time.Time) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}
