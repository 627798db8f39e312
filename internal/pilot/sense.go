package pilot

// State is a classified pilot feedback reading.
type State int

const (
	// StateUnknown means no state has been derived, as while the pilot is
	// off. Classify never returns it: its buckets leave no gaps.
	StateUnknown State = iota
	StateA             // +12 V: no vehicle
	StateB             // +9 V: vehicle connected, not requesting
	StateC             // +6 V: vehicle requesting / drawing current
	StateD             // +3 V: requesting, ventilation required
	StateE             // near 0 V: pilot shorted or vehicle error
	StateDiodeFault    // negative peak missing while PWM advertised
)

func (s State) String() string {
	switch s {
	case StateA:
		return "A"
	case StateB:
		return "B"
	case StateC:
		return "C"
	case StateD:
		return "D"
	case StateE:
		return "E"
	case StateDiodeFault:
		return "DIODE"
	}
	return "?"
}

// Requesting reports whether the state asks for the relay to be closed.
func (s State) Requesting() bool {
	return s == StateC || s == StateD
}

// ADC ranges for the pilot feedback divider, 10-bit scale. Calculated from
// the expected voltages through the divider network.
const (
	stateAMin = 870 // 11 V
	stateBMax = 869 // 10 V
	stateBMin = 775 // 8 V
	stateCMax = 774 // 7 V
	stateCMin = 682 // 5 V
	stateDMax = 681 // 4 V
	stateDMin = 610 // 2 V

	// DiodeThreshold is the most positive the negative peak may read while
	// PWM is being advertised. A diode-present vehicle pulls the low half
	// of the square wave to -12 V; anything above this is a missing diode.
	DiodeThreshold = 250 // -10 V, fairly generous
)

// Classify turns the positive and negative peaks of one sampling window
// into a J1772 state. pwmActive tells the classifier whether a PWM square
// wave is being advertised, which is required for the diode check: with a
// steady pilot there is no negative half to observe.
func Classify(vHi, vLo int, pwmActive bool) State {
	if pwmActive && vLo > DiodeThreshold {
		return StateDiodeFault
	}
	switch {
	case vHi >= stateAMin:
		return StateA
	case vHi >= stateBMin:
		return StateB
	case vHi >= stateCMin:
		return StateC
	case vHi >= stateDMin:
		return StateD
	}
	return StateE
}
