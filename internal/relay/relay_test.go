package relay

import (
	"testing"

	"github.com/sweeney/hydra-evse/internal/clock"
	"github.com/sweeney/hydra-evse/internal/hw"
)

func TestCheckHealthy(t *testing.T) {
	line := &hw.FakeRelay{Follow: true}
	tr := NewTester(line, false, 0)

	if err := tr.Set(true, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, _ := tr.Check(1000 + TestGraceTime); f != FaultNone {
		t.Errorf("healthy closed relay faulted: %v", f)
	}

	tr.Set(false, 5000)
	if f, _ := tr.Check(5000 + TestGraceTime); f != FaultNone {
		t.Errorf("healthy open relay faulted: %v", f)
	}
}

func TestCheckGraceSuppression(t *testing.T) {
	// Sense stuck at no-AC: a closed relay will eventually fault, but not
	// within the grace window.
	line := &hw.FakeRelay{}
	tr := NewTester(line, false, 0)
	tr.Set(true, 1000)

	if f, _ := tr.Check(1000 + TestGraceTime - 1); f != FaultNone {
		t.Errorf("fault inside grace window: %v", f)
	}
	if f, _ := tr.Check(1000 + TestGraceTime); f != FaultStuck {
		t.Errorf("fault after grace = %v, want stuck", f)
	}
}

func TestCheckStuckClosed(t *testing.T) {
	// Relay commanded open but AC still present.
	line := &hw.FakeRelay{AC: true}
	tr := NewTester(line, false, 0)
	tr.Set(false, 1000)

	if f, _ := tr.Check(2000); f != FaultStuck {
		t.Errorf("fault = %v, want stuck", f)
	}
	// Ground-testing units report this the same way.
	tg := NewTester(&hw.FakeRelay{AC: true}, true, 0)
	tg.Set(false, 1000)
	if f, _ := tg.Check(2000); f != FaultStuck {
		t.Errorf("ground variant fault = %v, want stuck", f)
	}
}

func TestCheckGroundVariant(t *testing.T) {
	// AC absent while closed: stuck on plain units, ground fault on
	// combined relay/ground test units.
	plain := NewTester(&hw.FakeRelay{}, false, 0)
	plain.Set(true, 1000)
	if f, _ := plain.Check(2000); f != FaultStuck {
		t.Errorf("plain variant fault = %v, want stuck", f)
	}

	ground := NewTester(&hw.FakeRelay{}, true, 0)
	ground.Set(true, 1000)
	if f, _ := ground.Check(2000); f != FaultGround {
		t.Errorf("ground variant fault = %v, want ground", f)
	}
}

func TestSetSameStateKeepsGrace(t *testing.T) {
	line := &hw.FakeRelay{}
	tr := NewTester(line, false, 0)
	tr.Set(true, 1000)
	// Re-commanding the same state must not restart the grace window.
	tr.Set(true, 1400)

	if f, _ := tr.Check(1000 + TestGraceTime); f != FaultStuck {
		t.Error("re-set of same state should not extend grace")
	}
}

func TestBootGrace(t *testing.T) {
	// AC present at boot with the relay open is a fault, but only after
	// the boot grace expires.
	line := &hw.FakeRelay{AC: true}
	tr := NewTester(line, false, clock.Millis(100))

	if f, _ := tr.Check(200); f != FaultNone {
		t.Errorf("fault during boot grace: %v", f)
	}
	if f, _ := tr.Check(100 + TestGraceTime); f != FaultStuck {
		t.Errorf("fault after boot grace = %v, want stuck", f)
	}
}
