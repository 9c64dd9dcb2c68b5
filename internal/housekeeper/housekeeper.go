// Package housekeeper runs the appliance's single-threaded timed
// dispatcher: one base tick drives a set of independent interval
// counters, each firing a distinct maintenance responsibility.
package housekeeper

import (
	"context"
	"time"

	"github.com/stroemhansen/yolocam/internal/timeutil"
)

const baseInterval = 250 // milliseconds; every other interval is a multiple of this tick

// Tasks holds the callbacks Tick fires at each interval. Every field is
// optional; a nil callback is simply skipped, letting callers wire up
// only the responsibilities they need (handy for focused tests).
type Tasks struct {
	// Every250ms toggles the RUN LED and drives the auxiliary-output
	// policy.
	Every250ms func()
	// Every1s, as cmd/lpragent wires it, bumps the watchdog, reads the
	// enclosure probe and polls the recognition engine's /info/ endpoint;
	// it keeps no fan-time counter and recomputes no statistics window.
	Every1s func()
	// Every2s drains/flushes the decision queue.
	Every2s func()
	// PostDelay drives the webhook/FTP/TCP sink retry pumps. Its period
	// is adaptive (2..60s) — see SetPostDelay.
	PostDelay func()
	// Every30s, as cmd/lpragent wires it, rolls finished Excel buckets
	// over into workbooks and flushes the log file; the SDK usage counter
	// is not checked.
	Every30s func()
	// Every5min drains the email outbox over SMTPS.
	Every5min func()
	// Every1h posts system status, clears the fatal-error counter and
	// persists device config.
	Every1h func()
	// Daily, as cmd/lpragent wires it, prunes log, Excel, flushed-decision
	// and sink-outbox retention and checks for a firmware update; no video
	// files are pruned.
	Daily func()
}

// Housekeeper fires Tasks at their respective intervals off one base
// tick, the way the teacher's transit-worker ticker loop drives a
// single poll against independent state machines.
type Housekeeper struct {
	clock timeutil.Clock
	tasks Tasks

	ticksPerSecond   int
	ticksPer2s       int
	ticksPerPostDelay int
	ticksPer30s      int
	ticksPer5min     int
	ticksPer1h       int
	ticksPerDay      int

	count int64
}

// New creates a Housekeeper driven by clock (inject a fake for
// deterministic tests) running the given tasks.
func New(clock timeutil.Clock, tasks Tasks) *Housekeeper {
	h := &Housekeeper{
		clock:        clock,
		tasks:        tasks,
		ticksPerSecond: 1000 / baseInterval,
		ticksPer2s:     2000 / baseInterval,
		ticksPer30s:    30000 / baseInterval,
		ticksPer5min:   5 * 60 * 1000 / baseInterval,
		ticksPer1h:     60 * 60 * 1000 / baseInterval,
		ticksPerDay:    24 * 60 * 60 * 1000 / baseInterval,
	}
	h.SetPostDelay(2000)
	return h
}

// SetPostDelay adjusts the adaptive retry-pump interval (2000..60000ms);
// out-of-range values clamp to the nearest bound.
func (h *Housekeeper) SetPostDelay(ms int) {
	if ms < 2000 {
		ms = 2000
	}
	if ms > 60000 {
		ms = 60000
	}
	h.ticksPerPostDelay = ms / baseInterval
}

// Run blocks, firing one tick every baseInterval milliseconds, until
// ctx is canceled.
func (h *Housekeeper) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(msToDuration(baseInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			h.Tick()
		}
	}
}

// Tick advances the dispatcher by one base interval, firing every
// responsibility whose counter rolls over. Exported so tests can drive
// the schedule deterministically without a real ticker.
func (h *Housekeeper) Tick() {
	h.count++
	call(h.tasks.Every250ms)

	if h.count%int64(h.ticksPerSecond) == 0 {
		call(h.tasks.Every1s)
	}
	if h.count%int64(h.ticksPer2s) == 0 {
		call(h.tasks.Every2s)
	}
	if h.ticksPerPostDelay > 0 && h.count%int64(h.ticksPerPostDelay) == 0 {
		call(h.tasks.PostDelay)
	}
	if h.count%int64(h.ticksPer30s) == 0 {
		call(h.tasks.Every30s)
	}
	if h.count%int64(h.ticksPer5min) == 0 {
		call(h.tasks.Every5min)
	}
	if h.count%int64(h.ticksPer1h) == 0 {
		call(h.tasks.Every1h)
	}
	if h.count%int64(h.ticksPerDay) == 0 {
		call(h.tasks.Daily)
	}
}

func call(f func()) {
	if f != nil {
		f()
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
