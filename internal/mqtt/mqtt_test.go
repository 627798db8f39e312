package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/hydra-evse/internal/coord"
)

func TestFormatPayload(t *testing.T) {
	event := Event{
		Timestamp: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Kind:      "CHARGE_START",
		Port:      "A",
		StatusA:   "on",
		StatusB:   "unplugged",
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"evse":{"timestamp":"2026-01-02T15:04:05Z","event":"CHARGE_START","port":"A","port_a":{"status":"on"},"port_b":{"status":"unplugged"}}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadWithError(t *testing.T) {
	event := Event{
		Timestamp: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Kind:      "FAULT",
		Port:      "BOTH",
		Error:     "G",
		StatusA:   "err",
		StatusB:   "err",
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out Payload
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out.EVSE.Error != "G" || out.EVSE.Port != "BOTH" {
		t.Errorf("payload = %+v", out.EVSE)
	}
}

func TestFromCoord(t *testing.T) {
	var snap coord.Snapshot
	snap.Ports[coord.PortA].Status = coord.StatusOn
	snap.Ports[coord.PortB].Status = coord.StatusOff

	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	ev := FromCoord(coord.Event{Kind: coord.EvChargeStart, Port: coord.PortA}, snap, at)
	if ev.Kind != "CHARGE_START" || ev.Port != "A" || ev.Error != "" {
		t.Errorf("event = %+v", ev)
	}
	if ev.StatusA != "on" || ev.StatusB != "off" {
		t.Errorf("statuses = %s/%s", ev.StatusA, ev.StatusB)
	}

	ev = FromCoord(coord.Event{Kind: coord.EvFault, BothPorts: true, Err: coord.ErrGround}, snap, at)
	if ev.Port != "BOTH" || ev.Error != "G" {
		t.Errorf("unit event = %+v", ev)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	tests := []struct {
		name       string
		event      string
		reason     string
		wantReason bool
	}{
		{"startup", "STARTUP", "", false},
		{"shutdown", "SHUTDOWN", "SIGTERM", true},
		{"heartbeat", "HEARTBEAT", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := SystemEvent{
				Timestamp: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
				Event:     tt.event,
				Reason:    tt.reason,
			}
			payload, err := FormatSystemPayload(event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var out SystemPayload
			if err := json.Unmarshal(payload, &out); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if out.System.Event != tt.event {
				t.Errorf("event = %q, want %q", out.System.Event, tt.event)
			}
			if (out.System.Reason != "") != tt.wantReason {
				t.Errorf("reason = %q", out.System.Reason)
			}
		})
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"custom":true}}`)
	payload, err := FormatSystemPayload(SystemEvent{RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	event := Event{Timestamp: time.Now(), Kind: "PLUG", Port: "B"}
	if err := f.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Events) != 1 || f.Events[0].Kind != "PLUG" {
		t.Errorf("events = %+v", f.Events)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("payloads = %d, want 1", len(f.Payloads))
	}

	f.PublishError = errors.New("boom")
	if err := f.Publish(event); err == nil {
		t.Error("expected configured error")
	}

	f.Reset()
	if len(f.Events) != 0 || f.PublishError != nil {
		t.Error("Reset should clear state")
	}
}
