package coord

import "github.com/sweeney/hydra-evse/internal/clock"

// EventKind identifies a coordinator event worth reporting.
type EventKind int

const (
	EvPlug EventKind = iota
	EvUnplug
	EvChargeStart
	EvChargeStop
	EvFault
	EvFaultCleared
	EvGFITrip
	EvGFICleared
	EvSeqOffer
	EvPaused
	EvUnpaused
)

func (k EventKind) String() string {
	switch k {
	case EvPlug:
		return "PLUG"
	case EvUnplug:
		return "UNPLUG"
	case EvChargeStart:
		return "CHARGE_START"
	case EvChargeStop:
		return "CHARGE_STOP"
	case EvFault:
		return "FAULT"
	case EvFaultCleared:
		return "FAULT_CLEARED"
	case EvGFITrip:
		return "GFI_TRIP"
	case EvGFICleared:
		return "GFI_CLEARED"
	case EvSeqOffer:
		return "SEQ_OFFER"
	case EvPaused:
		return "PAUSED"
	case EvUnpaused:
		return "UNPAUSED"
	}
	return "?"
}

// Event is one reportable occurrence. BothPorts is set on unit-wide events
// (GFI, pause); Port is meaningful otherwise.
type Event struct {
	At        clock.Millis
	Kind      EventKind
	Port      Port
	BothPorts bool
	Err       ErrorKind
}
