// Package config holds the operating configuration of the controller and
// its persistence encoding. The persisted image carries a signature; on any
// mismatch the decoder falls back to defaults rather than guessing.
package config

// Mode selects the arbitration policy.
type Mode int

const (
	// ModeShared lets both ports charge simultaneously, splitting current.
	ModeShared Mode = iota
	// ModeSequential lets only one port charge at a time.
	ModeSequential

	lastMode = ModeSequential
)

func (m Mode) String() string {
	switch m {
	case ModeShared:
		return "shared"
	case ModeSequential:
		return "sequential"
	}
	return "?"
}

// EventKind is a scheduled event's action.
type EventKind uint8

const (
	EventNone EventKind = iota
	EventPause
	EventUnpause

	lastEventKind = EventUnpause
)

// EventCount is how many scheduled events the configuration holds.
const EventCount = 4

// Event is one scheduled pause/unpause slot.
type Event struct {
	Hour    uint8
	Minute  uint8
	DowMask uint8 // bit 0 = Sunday .. bit 6 = Saturday
	Kind    EventKind
}

func (e *Event) validate() {
	if e.Kind > lastEventKind {
		e.Kind = EventNone
	}
	if e.Hour > 23 {
		e.Hour = 0
	}
	if e.Minute > 59 {
		e.Minute = 0
	}
	if e.DowMask&^0x7f != 0 {
		e.DowMask = 0
	}
}

// Calibration bounds: ammeter offsets are in 0.1 A units, pilot derates are
// negative percents.
const (
	CalibAmmMax   = 5
	CalibPilotMax = 10
)

// Calib holds the per-port calibration offsets.
type Calib struct {
	AmmA, AmmB     int8 // 0.1 A units, |x| <= CalibAmmMax
	PilotA, PilotB int8 // percent in [-CalibPilotMax, 0]
}

func (c *Calib) validate() {
	if c.AmmA > CalibAmmMax || c.AmmA < -CalibAmmMax {
		c.AmmA = 0
	}
	if c.AmmB > CalibAmmMax || c.AmmB < -CalibAmmMax {
		c.AmmB = 0
	}
	if c.PilotA > 0 || c.PilotA < -CalibPilotMax {
		c.PilotA = 0
	}
	if c.PilotB > 0 || c.PilotB < -CalibPilotMax {
		c.PilotB = 0
	}
}

// MaximumOutletCurrent is the hard ampacity ceiling of the wiring, relay
// and J1772 cable, in milliamps. It is not part of the UI: it never changes
// once the unit is built.
const MaximumOutletCurrent = 30000

// Config is everything the controller persists.
type Config struct {
	Mode      Mode
	MaxAmps   uint32 // whole-EVSE ceiling, milliamps
	EnableDST bool
	Events    [EventCount]Event
	Calib     Calib
}

// Default returns the cold-start configuration.
func Default() Config {
	return Config{
		Mode:    ModeShared,
		MaxAmps: MaximumOutletCurrent,
	}
}

// Validate clamps every field into range, resetting out-of-range values to
// their defaults the way the original firmware does on a bad EEPROM image.
func (c *Config) Validate() {
	if c.Mode < ModeShared || c.Mode > lastMode {
		c.Mode = ModeShared
	}
	if c.MaxAmps == 0 || c.MaxAmps > MaximumOutletCurrent {
		c.MaxAmps = MaximumOutletCurrent
	}
	for i := range c.Events {
		c.Events[i].validate()
	}
	c.Calib.validate()
}
