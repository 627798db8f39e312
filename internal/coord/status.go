package coord

import (
	"github.com/sweeney/hydra-evse/internal/config"
	"github.com/sweeney/hydra-evse/internal/pilot"
)

// Status is the mutually exclusive display status of one port.
type Status int

const (
	StatusUnplugged Status = iota
	StatusOff
	StatusOn
	StatusWait
	StatusDone
	StatusErr
)

func (s Status) String() string {
	switch s {
	case StatusUnplugged:
		return "unplugged"
	case StatusOff:
		return "off"
	case StatusOn:
		return "on"
	case StatusWait:
		return "wait"
	case StatusDone:
		return "done"
	case StatusErr:
		return "err"
	}
	return "?"
}

// status derives the display status for a port.
func (c *Controller) status(p Port) Status {
	ps := &c.ports[p]
	switch ps.state {
	case StateUnplugged:
		return StatusUnplugged
	case StatePlugged, StateOffered:
		if c.paused {
			return StatusWait
		}
		return StatusOff
	case StateTransition:
		return StatusWait
	case StateCharging:
		return StatusOn
	case StateDone:
		return StatusDone
	}
	return StatusErr
}

// Status-word layout for the display sink: bits 0-1 select the port
// (0 both, 1 A, 2 B), bit 2 is the tiebreak flag, bits 3-5 the status,
// bits 6-8 the error subcode.
const (
	wordCarA = 0x1
	wordCarB = 0x2

	wordTiebreak = 0x4

	statusShift = 3
	errShift    = 6
)

func errSubcode(e ErrorKind) uint16 {
	switch e {
	case ErrGFITest:
		return 0
	case ErrOverdraw:
		return 1
	case ErrGround:
		return 2
	case ErrTiming:
		return 3
	case ErrRelay:
		return 4
	case ErrVentilation:
		return 5
	}
	return 0
}

// PackStatusWord builds the packed 16-bit word the display sink consumes.
// The tagged PortSnapshot is the boundary type; packing happens at the last
// moment, here.
func PackStatusWord(p Port, s Status, err ErrorKind, tiebreak bool) uint16 {
	var w uint16
	if p == PortA {
		w = wordCarA
	} else {
		w = wordCarB
	}
	if tiebreak {
		w |= wordTiebreak
	}
	w |= uint16(s) << statusShift
	if s == StatusErr {
		w |= errSubcode(err) << errShift
	}
	return w
}

// PortSnapshot is a value copy of one port's externally visible state.
type PortSnapshot struct {
	State          PortState
	Status         Status
	Err            ErrorKind
	Pilot          pilot.Level
	AdvertisedAmps int64
	RelayClosed    bool
	LastRead       pilot.State
	Amps           int64
	DisplayAmps    int64
	SeqDone        bool
	Word           uint16
}

// Snapshot is a point-in-time view of the whole coordinator; a value type,
// safe to hand across the status tracker.
type Snapshot struct {
	Mode       config.Mode
	MaxAmps    int64
	Paused     bool
	Tiebreak   Port
	GFIRetries int
	Ports      [2]PortSnapshot
}

// Snapshot captures the current state for display and telemetry.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		Mode:       c.cfg.Mode,
		MaxAmps:    c.maxAmps(),
		Paused:     c.paused,
		Tiebreak:   c.tiebreak,
		GFIRetries: c.gfiMon.Retries(),
	}
	for i := range c.ports {
		p := Port(i)
		ps := &c.ports[p]
		st := c.status(p)
		snap.Ports[i] = PortSnapshot{
			State:          ps.state,
			Status:         st,
			Err:            ps.errKind,
			Pilot:          ps.level,
			AdvertisedAmps: ps.advertAmps,
			RelayClosed:    c.relays[p].Commanded(),
			LastRead:       ps.lastRead,
			Amps:           ps.lastAmps,
			DisplayAmps:    int64(ps.amm.Value()),
			SeqDone:        ps.seqDone,
			Word:           PackStatusWord(p, st, ps.errKind, c.tiebreak == p),
		}
	}
	return snap
}
