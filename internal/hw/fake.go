package hw

import (
	"errors"
	"strconv"
	"sync/atomic"
	"time"
)

// FakePilot records the last commanded pilot output.
type FakePilot struct {
	// Mode is "off", "standby" or "pwm".
	Mode string
	// DutyTenths is the last PWM duty commanded.
	DutyTenths int
	// History records every command as "off", "standby" or "pwm:<duty>".
	History []string
	// Err, if set, is returned by every call.
	Err error
}

func (f *FakePilot) SetOff() error {
	if f.Err != nil {
		return f.Err
	}
	f.Mode = "off"
	f.History = append(f.History, "off")
	return nil
}

func (f *FakePilot) SetStandby() error {
	if f.Err != nil {
		return f.Err
	}
	f.Mode = "standby"
	f.History = append(f.History, "standby")
	return nil
}

func (f *FakePilot) SetPWM(dutyTenths int) error {
	if f.Err != nil {
		return f.Err
	}
	f.Mode = "pwm"
	f.DutyTenths = dutyTenths
	f.History = append(f.History, "pwm:"+strconv.Itoa(dutyTenths))
	return nil
}

// PeakSample is one scripted pilot feedback window.
type PeakSample struct {
	Hi, Lo int
}

// FakePilotSense returns scripted peak windows. When the script runs out the
// last sample repeats, so a steady state needs only one entry.
type FakePilotSense struct {
	Samples []PeakSample
	index   int
	Err     error
}

func (f *FakePilotSense) PeakWindow(time.Duration) (int, int, error) {
	if f.Err != nil {
		return 0, 0, f.Err
	}
	if len(f.Samples) == 0 {
		return 0, 0, errors.New("no samples configured")
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Hi, s.Lo, nil
}

// Push appends further scripted windows.
func (f *FakePilotSense) Push(samples ...PeakSample) {
	f.Samples = append(f.Samples, samples...)
}

// Set replaces the script and rewinds it.
func (f *FakePilotSense) Set(samples ...PeakSample) {
	f.Samples = samples
	f.index = 0
}

// FakeCurrent replays a scripted raw CT burst on every Begin/Next cycle.
type FakeCurrent struct {
	Raws []int
	Step time.Duration
	pos  int
}

func (f *FakeCurrent) Begin() { f.pos = 0 }

func (f *FakeCurrent) Next() (int, time.Duration, bool) {
	if f.pos >= len(f.Raws) {
		return 0, 0, false
	}
	raw := f.Raws[f.pos]
	elapsed := time.Duration(f.pos) * f.Step
	f.pos++
	return raw, elapsed, true
}

// FakeRelay records the commanded contactor state and returns a scripted
// sense value. With Follow set the sense line mirrors the command, which is
// the healthy-hardware behavior.
type FakeRelay struct {
	Closed   bool
	Sets     int
	Follow   bool
	AC       bool
	Err      error
	SenseErr error
}

func (f *FakeRelay) Set(closed bool) error {
	if f.Err != nil {
		return f.Err
	}
	f.Closed = closed
	f.Sets++
	return nil
}

func (f *FakeRelay) SenseAC() (bool, error) {
	if f.SenseErr != nil {
		return false, f.SenseErr
	}
	if f.Follow {
		return f.Closed, nil
	}
	return f.AC, nil
}

// FakeGFI is a settable trip flag.
type FakeGFI struct {
	tripped atomic.Bool
	TestOn  bool
	TestErr error

	// TestWired, when set, trips the flag whenever the self-test line is
	// driven, emulating a healthy GFCI.
	TestWired bool
}

// Trip sets the flag the way the interrupt handler would.
func (f *FakeGFI) Trip() { f.tripped.Store(true) }

func (f *FakeGFI) Tripped() bool { return f.tripped.Load() }

func (f *FakeGFI) Reset() { f.tripped.Store(false) }

func (f *FakeGFI) SelfTest(on bool) error {
	if f.TestErr != nil {
		return f.TestErr
	}
	f.TestOn = on
	if on && f.TestWired {
		f.tripped.Store(true)
	}
	return nil
}

// NewFakeHydra builds a whole fake unit with healthy defaults: pilots read
// state A, relays follow their command, no current flows.
func NewFakeHydra() (*Hydra, *FakeUnit) {
	u := &FakeUnit{
		GFI: &FakeGFI{TestWired: true},
	}
	h := &Hydra{GFI: u.GFI}
	for i := range h.Ports {
		u.Pilots[i] = &FakePilot{}
		u.Senses[i] = &FakePilotSense{Samples: []PeakSample{{Hi: 900, Lo: 100}}}
		u.Currents[i] = &FakeCurrent{Step: 200 * time.Microsecond}
		u.Relays[i] = &FakeRelay{Follow: true}
		h.Ports[i] = Port{
			Pilot:      u.Pilots[i],
			PilotSense: u.Senses[i],
			Current:    u.Currents[i],
			Relay:      u.Relays[i],
		}
	}
	return h, u
}

// FakeUnit keeps typed references to the fakes inside a Hydra so tests can
// script and inspect them without type assertions.
type FakeUnit struct {
	Pilots   [2]*FakePilot
	Senses   [2]*FakePilotSense
	Currents [2]*FakeCurrent
	Relays   [2]*FakeRelay
	GFI      *FakeGFI
}
