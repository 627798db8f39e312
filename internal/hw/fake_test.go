package hw

import (
	"testing"
	"time"
)

func TestFakePilotSenseScript(t *testing.T) {
	s := &FakePilotSense{Samples: []PeakSample{
		{Hi: 900, Lo: 100},
		{Hi: 800, Lo: 100},
	}}

	hi, _, err := s.PeakWindow(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hi != 900 {
		t.Errorf("sample 0 hi = %d, want 900", hi)
	}

	hi, _, _ = s.PeakWindow(20 * time.Millisecond)
	if hi != 800 {
		t.Errorf("sample 1 hi = %d, want 800", hi)
	}

	// Script exhausted: last sample repeats.
	hi, _, _ = s.PeakWindow(20 * time.Millisecond)
	if hi != 800 {
		t.Errorf("repeat hi = %d, want 800", hi)
	}
}

func TestFakePilotSenseNoSamples(t *testing.T) {
	s := &FakePilotSense{}
	if _, _, err := s.PeakWindow(20 * time.Millisecond); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeRelayFollow(t *testing.T) {
	r := &FakeRelay{Follow: true}

	if err := r.Set(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ac, err := r.SenseAC()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ac {
		t.Error("sense should follow a closed relay")
	}

	r.Set(false)
	if ac, _ := r.SenseAC(); ac {
		t.Error("sense should follow an open relay")
	}
	if r.Sets != 2 {
		t.Errorf("Sets = %d, want 2", r.Sets)
	}
}

func TestFakeGFISelfTestWired(t *testing.T) {
	g := &FakeGFI{TestWired: true}

	if g.Tripped() {
		t.Error("should not start tripped")
	}
	if err := g.SelfTest(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !g.Tripped() {
		t.Error("healthy GFI should trip on self-test pulse")
	}
	g.Reset()
	if g.Tripped() {
		t.Error("Reset should clear the flag")
	}
}

func TestFakeCurrentReplays(t *testing.T) {
	c := &FakeCurrent{Raws: []int{512, 612, 412}, Step: time.Millisecond}

	c.Begin()
	raw, elapsed, ok := c.Next()
	if !ok || raw != 512 || elapsed != 0 {
		t.Errorf("first = (%d, %v, %v)", raw, elapsed, ok)
	}
	c.Next()
	c.Next()
	if _, _, ok := c.Next(); ok {
		t.Error("stream should end after the script")
	}

	// Begin rewinds for the next burst.
	c.Begin()
	if raw, _, ok := c.Next(); !ok || raw != 512 {
		t.Error("Begin should rewind the stream")
	}
}

func TestNewFakeHydraDefaults(t *testing.T) {
	h, u := NewFakeHydra()

	hi, _, err := h.Ports[0].PilotSense.PeakWindow(20 * time.Millisecond)
	if err != nil || hi != 900 {
		t.Errorf("default pilot sense = (%d, %v), want state-A reading", hi, err)
	}
	if u.GFI.Tripped() {
		t.Error("GFI should start clear")
	}
	if err := h.Ports[1].Relay.Set(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac, _ := h.Ports[1].Relay.SenseAC(); !ac {
		t.Error("fake relays should follow commands by default")
	}
}
