package gfi

import (
	"testing"
	"time"

	"github.com/sweeney/hydra-evse/internal/clock"
	"github.com/sweeney/hydra-evse/internal/hw"
)

func TestServiceTripAndClear(t *testing.T) {
	line := &hw.FakeGFI{}
	m := NewMonitor(line)

	if ev := m.Service(1000); ev != EventNone {
		t.Fatalf("idle Service = %v, want none", ev)
	}

	line.Trip()
	if ev := m.Service(2000); ev != EventTripped {
		t.Fatalf("Service after trip = %v, want tripped", ev)
	}
	if !m.Active() || m.Retries() != 1 {
		t.Errorf("active=%v retries=%d, want active with 1 retry", m.Active(), m.Retries())
	}

	// During the hold nothing happens.
	if ev := m.Service(2000 + ClearMs - 1); ev != EventNone {
		t.Errorf("Service during hold = %v, want none", ev)
	}
	// Hold expires with budget remaining.
	if ev := m.Service(2000 + ClearMs); ev != EventCleared {
		t.Errorf("Service after hold = %v, want cleared", ev)
	}
	if m.Active() {
		t.Error("monitor should be inactive after clear")
	}
}

func TestServiceRetripRestartsHold(t *testing.T) {
	line := &hw.FakeGFI{}
	m := NewMonitor(line)

	line.Trip()
	m.Service(1000)
	line.Trip()
	if ev := m.Service(5000); ev != EventNone {
		t.Fatalf("re-trip during hold = %v, want none", ev)
	}
	if m.Retries() != 1 {
		t.Errorf("re-trip during hold counted as retry: %d", m.Retries())
	}
	// The hold now runs from the re-trip.
	if ev := m.Service(1000 + ClearMs); ev != EventNone {
		t.Errorf("hold should have restarted, got %v", ev)
	}
	if ev := m.Service(5000 + ClearMs); ev != EventCleared {
		t.Errorf("Service after restarted hold = %v, want cleared", ev)
	}
}

func TestServiceRetryBudgetExhausted(t *testing.T) {
	line := &hw.FakeGFI{}
	m := NewMonitor(line)

	now := clock.Millis(1000)
	for i := 0; i < ClearAttempts-1; i++ {
		line.Trip()
		if ev := m.Service(now); ev != EventTripped {
			t.Fatalf("trip %d = %v, want tripped", i+1, ev)
		}
		now += ClearMs
		if ev := m.Service(now); ev != EventCleared {
			t.Fatalf("clear %d = %v, want cleared", i+1, ev)
		}
		now += 1000
	}

	// Final trip exhausts the budget.
	line.Trip()
	if ev := m.Service(now); ev != EventTripped {
		t.Fatalf("final trip = %v, want tripped", ev)
	}
	if m.Retries() != ClearAttempts {
		t.Fatalf("retries = %d, want %d", m.Retries(), ClearAttempts)
	}

	now += ClearMs + 1000
	if ev := m.Service(now); ev != EventNone {
		t.Errorf("latched Service = %v, want none", ev)
	}
	if !m.Latched() {
		t.Error("monitor should be latched")
	}
	if m.Retries() > ClearAttempts {
		t.Errorf("retries exceeded budget: %d", m.Retries())
	}
}

func TestSelfTestPasses(t *testing.T) {
	line := &hw.FakeGFI{TestWired: true}
	var slept time.Duration
	sleep := func(d time.Duration) { slept += d }

	if err := SelfTest(line, sleep); err != nil {
		t.Fatalf("SelfTest on healthy unit: %v", err)
	}
	if line.Tripped() {
		t.Error("flag should be clear after a passing self-test")
	}
	if slept < TestClearTime+TestDebounceTime {
		t.Errorf("slept %v, want at least the clear+debounce time", slept)
	}
}

func TestSelfTestNoTrip(t *testing.T) {
	// Broken interrupter: the pulse never trips it.
	line := &hw.FakeGFI{}
	if err := SelfTest(line, func(time.Duration) {}); err != ErrSelfTest {
		t.Errorf("SelfTest = %v, want ErrSelfTest", err)
	}
}

func TestSelfTestStaysTripped(t *testing.T) {
	line := &stuckGFI{}
	if err := SelfTest(line, func(time.Duration) {}); err != ErrSelfTest {
		t.Errorf("SelfTest = %v, want ErrSelfTest", err)
	}
}

// stuckGFI trips on the pulse but never clears.
type stuckGFI struct {
	hw.FakeGFI
	armed bool
}

func (s *stuckGFI) SelfTest(on bool) error {
	if on {
		s.armed = true
	}
	return nil
}

func (s *stuckGFI) Tripped() bool { return s.armed }

func (s *stuckGFI) Reset() {}
