// Package gfi services the ground-fault interrupter: the trip flag raised
// from interrupt context, the UL 2231 retry budget, and the power-on
// self-test. The interrupt handler itself lives in internal/hw and performs
// only the safe shutdown; everything here runs on the main tick.
package gfi

import (
	"errors"
	"time"

	"github.com/sweeney/hydra-evse/internal/clock"
	"github.com/sweeney/hydra-evse/internal/hw"
)

const (
	// ClearMs holds the ports in error after a trip. Per UL 2231 we retry
	// at most ClearAttempts times, 15 minutes apart. ClearMs must exceed
	// the pilot-withdrawal ERROR_DELAY.
	ClearMs       = 15 * 60 * 1000
	ClearAttempts = 4

	// Self-test: pulse the test line through TestCycles cycles of roughly
	// 60 Hz (TestHalfCycle high, TestHalfCycle low), expect a trip, then
	// make sure the interrupter stays clear afterwards.
	TestCycles       = 50
	TestHalfCycle    = 8 * time.Millisecond
	TestClearTime    = 100 * time.Millisecond
	TestDebounceTime = 400 * time.Millisecond
)

// Event is what Service observed this tick.
type Event int

const (
	EventNone Event = iota
	// EventTripped: a new ground fault; both ports must latch error G.
	EventTripped
	// EventCleared: the hold expired with retry budget remaining; ports
	// may return to service.
	EventCleared
)

// Monitor tracks trip state and the retry budget. The budget never resets
// at runtime; past ClearAttempts the unit stays latched until power-cycle.
type Monitor struct {
	line      hw.GFI
	active    bool
	trippedAt clock.Millis
	retries   int
}

func NewMonitor(line hw.GFI) *Monitor {
	return &Monitor{line: line}
}

// Service is called first on every tick. It consumes the trip flag and
// drives the hold/clear cycle.
func (m *Monitor) Service(now clock.Millis) Event {
	if m.line.Tripped() {
		m.line.Reset()
		if !m.active {
			m.active = true
			m.trippedAt = now
			m.retries++
			return EventTripped
		}
		// Re-trip during the hold restarts it.
		m.trippedAt = now
		return EventNone
	}

	if m.active && clock.After(now, m.trippedAt, ClearMs) {
		if m.retries < ClearAttempts {
			m.active = false
			return EventCleared
		}
		// Out of budget: stay latched.
	}
	return EventNone
}

// Active reports whether a trip hold is in progress (or latched).
func (m *Monitor) Active() bool { return m.active }

// Latched reports whether the retry budget is exhausted.
func (m *Monitor) Latched() bool { return m.active && m.retries >= ClearAttempts }

// Retries returns the trip count since boot.
func (m *Monitor) Retries() int { return m.retries }

// ErrSelfTest is returned when the interrupter fails its self-test. This is
// fatal: no charging may be offered.
var ErrSelfTest = errors.New("gfi: self test failed")

// SelfTest exercises the interrupter through the dedicated test line. sleep
// is injectable for tests; pass time.Sleep in production. It runs once at
// boot, before any charging is offered; it is not re-run when a trip hold
// clears, and never inside the tick loop.
func SelfTest(line hw.GFI, sleep func(time.Duration)) error {
	line.Reset()
	for i := 0; i < TestCycles; i++ {
		if err := line.SelfTest(true); err != nil {
			return err
		}
		sleep(TestHalfCycle)
		if err := line.SelfTest(false); err != nil {
			return err
		}
		sleep(TestHalfCycle)
		if line.Tripped() {
			break
		}
	}
	if !line.Tripped() {
		return ErrSelfTest
	}

	line.Reset()
	sleep(TestClearTime + TestDebounceTime)
	if line.Tripped() {
		return ErrSelfTest
	}
	return nil
}
