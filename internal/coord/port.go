package coord

import (
	"github.com/sweeney/hydra-evse/internal/clock"
	"github.com/sweeney/hydra-evse/internal/meter"
	"github.com/sweeney/hydra-evse/internal/pilot"
)

// Port identifies one of the two charging ports.
type Port int

const (
	PortA Port = iota
	PortB
)

// Peer returns the other port.
func (p Port) Peer() Port { return p ^ 1 }

// Letter returns 'A' or 'B'.
func (p Port) Letter() byte { return byte('A' + p) }

func (p Port) String() string { return string(p.Letter()) }

// PortState is a port's lifecycle state.
type PortState int

const (
	// StateUnplugged: no vehicle; pilot standby.
	StateUnplugged PortState = iota
	// StatePlugged: vehicle connected, no advertisement (sequential
	// non-offered slot, or paused).
	StatePlugged
	// StateOffered: advertising current, waiting for the vehicle to
	// request.
	StateOffered
	// StateTransition: vehicle requested while the peer was drawing;
	// waiting for the peer to come down to half before closing.
	StateTransition
	// StateCharging: relay closed.
	StateCharging
	// StateDone: sequential mode only; the vehicle finished and is not
	// re-offered until replug.
	StateDone
	// StateError: terminal until cleared by unplug, GFI timeout, or
	// power-cycle depending on the kind.
	StateError
)

func (s PortState) String() string {
	switch s {
	case StateUnplugged:
		return "unplugged"
	case StatePlugged:
		return "plugged"
	case StateOffered:
		return "offered"
	case StateTransition:
		return "transition"
	case StateCharging:
		return "charging"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	}
	return "?"
}

// present reports whether a vehicle occupies the port for allocation
// purposes. Errored and done ports count as absent.
func (s PortState) present() bool {
	switch s {
	case StatePlugged, StateOffered, StateTransition, StateCharging:
		return true
	}
	return false
}

// ErrorKind enumerates the fault taxonomy. Letter is total over it: adding
// a kind forces a display-code choice.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	// ErrGFITest: the interrupter failed its power-on self-test. Fatal.
	ErrGFITest
	// ErrOverdraw: the vehicle drew past its allowance beyond the grace
	// window. Clears on unplug.
	ErrOverdraw
	// ErrGround: ground fault, from the interrupter or the continuity
	// test. GFI trips clear after the hold if budget remains.
	ErrGround
	// ErrTiming: diode missing or an illegal pilot transition. Clears on
	// unplug.
	ErrTiming
	// ErrRelay: contactor stuck. Fatal.
	ErrRelay
	// ErrVentilation: state D requested but ventilation is unsupported.
	// Clears on unplug.
	ErrVentilation
)

// Letter returns the user-visible error code.
func (e ErrorKind) Letter() byte {
	switch e {
	case ErrGFITest:
		return 'F'
	case ErrOverdraw:
		return 'O'
	case ErrGround:
		return 'G'
	case ErrTiming:
		return 'T'
	case ErrRelay:
		return 'R'
	case ErrVentilation:
		return 'E'
	}
	return ' '
}

// recoverable reports whether an unplug observation clears the error.
func (e ErrorKind) recoverable() bool {
	switch e {
	case ErrOverdraw, ErrTiming, ErrVentilation:
		return true
	}
	return false
}

// portState is one port's record. Created at boot, never destroyed; mutated
// only by the tick loop.
type portState struct {
	state   PortState
	errKind ErrorKind

	level pilot.Level
	// allocAmps is the pre-derate allocation behind level, in milliamps.
	allocAmps int64

	// lastRead is the accepted (debounced) pilot classification.
	lastRead    pilot.State
	pendingRead pilot.State
	pendingFor  int

	requestTime   clock.Millis
	errorTime     clock.Millis
	overdrawBegin clock.Millis
	pauseTime     clock.Millis

	// holdoffUntil delays restoring a full advertisement after the peer
	// departs (quick-cycling workaround; shared mode only).
	holdoffUntil clock.Millis
	holdoffArmed bool

	seqDone bool

	lastAmps int64
	amm      *meter.EWA

	// readChanged flags that the accepted read moved this tick; request
	// edges key off it.
	readChanged bool

	// advertAmps is the post-derate advertisement actually on the wire;
	// pwmActive mirrors whether a PWM is being emitted.
	advertAmps int64
	pwmActive  bool

	// applied tracks what was last written to the hardware so the tick
	// only touches the pilot on change.
	appliedLevel pilot.Level
	appliedDuty  int
	appliedOnce  bool
}

// debounce folds one window classification into the accepted read. A read is
// accepted after debounceWindows identical consecutive classifications;
// Unknown never displaces an accepted read. It returns true when the
// accepted read changed this tick.
func (ps *portState) debounce(read pilot.State) bool {
	if read == pilot.StateUnknown || read == ps.lastRead {
		ps.pendingRead = pilot.StateUnknown
		ps.pendingFor = 0
		return false
	}
	if read == ps.pendingRead {
		ps.pendingFor++
	} else {
		ps.pendingRead = read
		ps.pendingFor = 1
	}
	if ps.pendingFor < debounceWindows {
		return false
	}
	ps.lastRead = read
	ps.pendingRead = pilot.StateUnknown
	ps.pendingFor = 0
	return true
}
