package pilot

import "testing"

func TestDutyTenths(t *testing.T) {
	tests := []struct {
		name      string
		milliamps int64
		want      int
	}{
		{"6A floor", 6000, 100},   // 10.0%
		{"12A", 12000, 200},       // 20.0%
		{"15A", 15000, 250},       // 25.0%
		{"30A", 30000, 500},       // 50.0%
		{"51A top", 51000, 850},   // 85.0%
		{"clamped above", 60000, 850},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DutyTenths(tt.milliamps); got != tt.want {
				t.Errorf("DutyTenths(%d) = %d, want %d", tt.milliamps, got, tt.want)
			}
		})
	}
}

func TestDerate(t *testing.T) {
	tests := []struct {
		name string
		mA   int64
		pct  int
		want int64
	}{
		{"no derate", 30000, 0, 30000},
		{"5 percent", 30000, -5, 28500},
		{"max derate", 30000, -10, 27000},
		{"positive rejected", 30000, 5, 30000},
		{"out of range rejected", 30000, -11, 30000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derate(tt.mA, tt.pct); got != tt.want {
				t.Errorf("Derate(%d, %d) = %d, want %d", tt.mA, tt.pct, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		vHi, vLo  int
		pwmActive bool
		want      State
	}{
		{"state A 12V", 900, 100, false, StateA},
		{"state A boundary", 870, 100, true, StateA},
		{"state B 9V", 800, 100, true, StateB},
		{"state B upper", 869, 100, true, StateB},
		{"state B lower", 775, 100, true, StateB},
		{"state C 6V", 700, 100, true, StateC},
		{"state C upper", 774, 100, true, StateC},
		{"state C lower", 682, 100, true, StateC},
		{"state D 3V", 650, 100, true, StateD},
		{"state D lower", 610, 100, true, StateD},
		{"state E near zero", 560, 100, true, StateE},
		{"state E zero", 0, 0, false, StateE},
		{"diode fault", 700, 400, true, StateDiodeFault},
		{"diode check skipped without pwm", 900, 400, false, StateA},
		{"diode threshold exact", 700, 250, true, StateC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.vHi, tt.vLo, tt.pwmActive); got != tt.want {
				t.Errorf("Classify(%d, %d, %v) = %s, want %s", tt.vHi, tt.vLo, tt.pwmActive, got, tt.want)
			}
		})
	}
}

func TestLevelAdvertising(t *testing.T) {
	if LevelOff.Advertising() || LevelStandby.Advertising() {
		t.Error("off/standby must not advertise")
	}
	if !LevelHalf.Advertising() || !LevelFull.Advertising() {
		t.Error("half/full must advertise")
	}
}
