// Package hw abstracts the controller's hardware channels: per-port pilot
// output, pilot feedback ADC, current-transformer ADC, relay drive and relay
// sense, plus the global GFI interrupt and self-test lines. The real
// implementation uses the Linux GPIO character device and sysfs PWM/IIO; the
// fakes allow testing the whole coordinator without hardware.
package hw

import "time"

// PilotOutput drives one port's control pilot.
type PilotOutput interface {
	// SetOff drives the outward pilot low (-12 V).
	SetOff() error
	// SetStandby holds the pilot at steady +12 V.
	SetStandby() error
	// SetPWM emits the 1 kHz advertisement at the given duty cycle, in
	// tenths of a percent.
	SetPWM(dutyTenths int) error
}

// PilotSense samples one port's pilot feedback divider.
type PilotSense interface {
	// PeakWindow samples for the given window and returns the most
	// positive and most negative readings seen, on the 10-bit ADC scale.
	PeakWindow(window time.Duration) (vHi, vLo int, err error)
}

// CurrentSense streams raw CT conversions for one measurement burst.
// Begin starts a burst; Next matches the shape the meter package consumes.
type CurrentSense interface {
	Begin()
	Next() (raw int, elapsed time.Duration, ok bool)
}

// Relay drives one port's contactor and reads its sense line.
type Relay interface {
	// Set commands the contactor.
	Set(closed bool) error
	// SenseAC reads the companion test input: true when AC is present on
	// the outlet side.
	SenseAC() (bool, error)
}

// GFI is the ground-fault interrupter interface. The trip flag is set from
// the edge interrupt context and must be a word-sized atomic; the handler
// additionally forces both pilots off and both relays open before the tick
// loop ever sees the flag.
type GFI interface {
	// Tripped reports whether a ground-fault edge has been seen since the
	// last Reset.
	Tripped() bool
	// Reset clears the trip flag.
	Reset()
	// SelfTest drives the dedicated self-test line.
	SelfTest(on bool) error
}

// Port bundles one charging port's channels.
type Port struct {
	Pilot      PilotOutput
	PilotSense PilotSense
	Current    CurrentSense
	Relay      Relay
}

// Hydra bundles the whole unit.
type Hydra struct {
	Ports [2]Port
	GFI   GFI
}

// Close releases hardware resources on implementations that hold any.
type Closer interface {
	Close() error
}
