// Package pilot contains the J1772 control-pilot logic: the mapping from
// advertised current to 1 kHz PWM duty cycle, and the pure classifier that
// turns a sampled feedback window into a J1772 state. This package has no
// hardware dependencies; drivers live in internal/hw.
package pilot

// Level is what a port's pilot output is commanded to.
type Level int

const (
	// LevelOff drives the outward pilot low (-12 V).
	LevelOff Level = iota
	// LevelStandby holds the pilot at steady +12 V: EVSE present, not ready.
	LevelStandby
	// LevelHalf advertises half of the whole-EVSE current ceiling.
	LevelHalf
	// LevelFull advertises the whole-EVSE current ceiling.
	LevelFull
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "OFF"
	case LevelStandby:
		return "STANDBY"
	case LevelHalf:
		return "HALF"
	case LevelFull:
		return "FULL"
	}
	return "?"
}

// Advertising reports whether the level emits a PWM advertisement.
func (l Level) Advertising() bool {
	return l == LevelHalf || l == LevelFull
}

// PWM advertisement bounds. Below MinAmps the pilot must be held at steady
// +12 V instead of PWM; J1772's linear duty region tops out at 51 A.
const (
	MinAmps = 6000  // milliamps
	MaxAmps = 51000 // milliamps
)

// DutyTenths returns the PWM duty cycle in tenths of a percent for an
// advertised current in milliamps. Per J1772, duty% = amps / 0.6 for
// 6 A <= amps <= 51 A. Callers must not ask for less than MinAmps.
func DutyTenths(milliamps int64) int {
	if milliamps > MaxAmps {
		milliamps = MaxAmps
	}
	return int(milliamps / 60)
}

// Derate applies the per-port pilot calibration, a percentage in [-10, 0],
// to an advertised current. The derate applies before the MinAmps floor:
// a derated advertisement below the floor must be turned into standby by
// the caller rather than emitted as PWM.
func Derate(milliamps int64, pct int) int64 {
	if pct > 0 || pct < -10 {
		pct = 0
	}
	return milliamps * int64(100+pct) / 100
}
