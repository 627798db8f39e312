package hw

// Pins binds the abstract channels to concrete hardware for the reference
// build: GPIO line offsets on gpiochip0, sysfs PWM channels and IIO ADC
// channels. Only the bindings are configurable; the channel roles are fixed.
type Pins struct {
	PWMChip       int
	PilotChannelA int
	PilotChannelB int
	ADCDevice     int
	PilotSenseA   int
	PilotSenseB   int
	CurrentA      int
	CurrentB      int
	RelayA        int
	RelayB        int
	RelaySenseA   int
	RelaySenseB   int
	GFIIn         int
	GFITest       int
}

// DefaultPins is the reference wiring. By historical accident car B sits on
// the lower numbers in most builds.
func DefaultPins() Pins {
	return Pins{
		PWMChip:       0,
		PilotChannelA: 0,
		PilotChannelB: 1,
		ADCDevice:     0,
		PilotSenseA:   1,
		PilotSenseB:   0,
		CurrentA:      7,
		CurrentB:      6,
		RelayA:        8,
		RelayB:        7,
		RelaySenseA:   17,
		RelaySenseB:   27,
		GFIIn:         2,
		GFITest:       3,
	}
}
