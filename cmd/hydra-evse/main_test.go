package main

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/hydra-evse/internal/config"
	"github.com/sweeney/hydra-evse/internal/coord"
	"github.com/sweeney/hydra-evse/internal/dst"
	"github.com/sweeney/hydra-evse/internal/hw"
	"github.com/sweeney/hydra-evse/internal/mqtt"
	"github.com/sweeney/hydra-evse/internal/schedule"
	"github.com/sweeney/hydra-evse/internal/status"
)

func testController() (*coord.Controller, *hw.FakeUnit) {
	h, u := hw.NewFakeHydra()
	cfg := config.Default()
	return coord.New(cfg, h, coord.Options{ScaleFactor: 100}, 0), u
}

// loopHarness drives runLoop with scripted time.
type loopHarness struct {
	tick chan time.Time
	sig  chan os.Signal
	done chan error

	now  time.Time
	step time.Duration
}

func startLoop(ctl *coord.Controller, pub mqtt.Publisher, tracker *status.Tracker, sched *schedule.Scheduler, heartbeat time.Duration, step time.Duration) *loopHarness {
	h := &loopHarness{
		tick: make(chan time.Time),
		sig:  make(chan os.Signal),
		done: make(chan error, 1),
		now:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		step: step,
	}
	var mqttStatus mqtt.ConnectionStatus
	if cs, ok := pub.(mqtt.ConnectionStatus); ok {
		mqttStatus = cs
	}
	nowFn := func() time.Time { return h.now }
	go func() {
		h.done <- runLoop(ctl, pub, mqttStatus, tracker, sched, heartbeat, nowFn, h.tick, h.sig)
	}()
	return h
}

// advance delivers n ticks, stepping scripted time before each.
func (h *loopHarness) advance(n int) {
	for i := 0; i < n; i++ {
		h.now = h.now.Add(h.step)
		h.tick <- h.now
	}
}

func (h *loopHarness) stop(t *testing.T) error {
	t.Helper()
	h.sig <- syscall.SIGTERM
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not stop")
		return nil
	}
}

func TestRunLoopShutdownEvent(t *testing.T) {
	ctl, _ := testController()
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})

	h := startLoop(ctl, pub, tracker, nil, 0, 20*time.Millisecond)
	h.advance(3)
	if err := h.stop(t); err != nil {
		t.Fatalf("runLoop returned %v", err)
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("system events = %d, want 1 shutdown", len(pub.SystemEvents))
	}
	ev := pub.SystemEvents[0]
	if ev.Event != "SHUTDOWN" || ev.Reason != "SIGTERM" {
		t.Errorf("shutdown event = %+v", ev)
	}
	if !strings.Contains(string(pub.SystemPayloads[0]), `"event":"SHUTDOWN"`) {
		t.Errorf("payload = %s", pub.SystemPayloads[0])
	}
}

func TestRunLoopPublishesPlugEvent(t *testing.T) {
	ctl, u := testController()
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})

	h := startLoop(ctl, pub, tracker, nil, 0, 20*time.Millisecond)
	h.advance(2)
	u.Senses[coord.PortA].Set(hw.PeakSample{Hi: 800, Lo: 100}) // state B
	h.advance(3)
	h.stop(t)

	var plug *mqtt.Event
	for i := range pub.Events {
		if pub.Events[i].Kind == "PLUG" {
			plug = &pub.Events[i]
		}
	}
	if plug == nil {
		t.Fatalf("no PLUG event in %+v", pub.Events)
	}
	if plug.Port != "A" {
		t.Errorf("plug port = %s, want A", plug.Port)
	}

	snap := tracker.Snapshot()
	if snap.Coord.Ports[coord.PortA].State != coord.StateOffered {
		t.Errorf("tracker state = %s, want offered", snap.Coord.Ports[coord.PortA].State)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	ctl, _ := testController()
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})

	// 500 ms steps against a 1 s heartbeat: one heartbeat every other tick.
	h := startLoop(ctl, pub, tracker, nil, time.Second, 500*time.Millisecond)
	h.advance(5)
	h.stop(t)

	beats := 0
	for _, ev := range pub.SystemEvents {
		if ev.Event == "HEARTBEAT" {
			beats++
		}
	}
	if beats < 2 {
		t.Errorf("heartbeats = %d, want at least 2", beats)
	}
}

func TestRunLoopScheduledPause(t *testing.T) {
	ctl, _ := testController()
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})

	cfg := config.Default()
	// The harness clock starts 2026-01-01 12:00 (a Thursday).
	cfg.Events[0] = config.Event{Hour: 12, Minute: 0, DowMask: 0x7f, Kind: config.EventPause}
	sched := schedule.New(cfg, dst.US)

	h := startLoop(ctl, pub, tracker, sched, 0, 20*time.Millisecond)
	h.advance(3)
	h.stop(t)

	if !tracker.Snapshot().Coord.Paused {
		t.Error("scheduled pause did not take effect")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.bin")

	// Missing file: defaults.
	if got := loadConfig(path); got != config.Default() {
		t.Errorf("missing blob = %+v, want defaults", got)
	}

	// Stored blob round-trips.
	want := config.Default()
	want.Mode = config.ModeSequential
	want.MaxAmps = 24000
	if err := os.WriteFile(path, config.Encode(want), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := loadConfig(path); got != want {
		t.Errorf("loadConfig = %+v, want %+v", got, want)
	}

	// Corrupt signature: defaults.
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := loadConfig(path); got != config.Default() {
		t.Errorf("corrupt blob = %+v, want defaults", got)
	}
}
