// Package relay drives a port's contactor and verifies it. After any state
// change the sense line is given a settling grace; past that, the AC-presence
// reading must agree with the commanded state. On units where the sense line
// also proves ground continuity, a dropout while closed reports a ground
// fault instead of a stuck relay.
package relay

import (
	"fmt"

	"github.com/sweeney/hydra-evse/internal/clock"
	"github.com/sweeney/hydra-evse/internal/hw"
)

// TestGraceTime is how long after a relay change test failures are
// suppressed, in milliseconds.
const TestGraceTime = 500

// Fault is the tester's verdict.
type Fault int

const (
	FaultNone Fault = iota
	// FaultStuck: the sense line contradicts the command (error R).
	FaultStuck
	// FaultGround: AC dropped out while closed on a ground-testing unit
	// (error G).
	FaultGround
)

// Tester owns one contactor.
type Tester struct {
	line        hw.Relay
	testsGround bool
	commanded   bool
	lastChange  clock.Millis
}

// NewTester wraps a relay line. testsGround selects the combined relay
// test / ground-continuity variant. now stamps the boot-time grace.
func NewTester(line hw.Relay, testsGround bool, now clock.Millis) *Tester {
	return &Tester{line: line, testsGround: testsGround, lastChange: now}
}

// Set commands the contactor and restarts the settling grace.
func (t *Tester) Set(closed bool, now clock.Millis) error {
	if closed != t.commanded {
		t.lastChange = now
	}
	t.commanded = closed
	if err := t.line.Set(closed); err != nil {
		return fmt.Errorf("relay set: %w", err)
	}
	return nil
}

// Commanded returns the authoritative intent.
func (t *Tester) Commanded() bool {
	return t.commanded
}

// Check compares the sense line against the commanded state. Within the
// grace window it always passes.
func (t *Tester) Check(now clock.Millis) (Fault, error) {
	if clock.Since(now, t.lastChange) < TestGraceTime {
		return FaultNone, nil
	}
	ac, err := t.line.SenseAC()
	if err != nil {
		return FaultNone, fmt.Errorf("relay check: %w", err)
	}
	if ac == t.commanded {
		return FaultNone, nil
	}
	if !t.commanded {
		// AC present with the relay open: welded contacts.
		return FaultStuck, nil
	}
	if t.testsGround {
		return FaultGround, nil
	}
	return FaultStuck, nil
}
