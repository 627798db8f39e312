// Package mqtt publishes charger telemetry with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/hydra-evse/internal/coord"
)

// Topic is the MQTT topic for charge-session and fault events.
const Topic = "evse/hydra/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "evse/hydra/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a charger event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event is a coordinator event stamped with wall-clock time and the display
// statuses of both ports at the moment it fired.
type Event struct {
	Timestamp time.Time
	Kind      string // e.g. "CHARGE_START", "FAULT"
	Port      string // "A", "B" or "BOTH"
	Error     string // single-letter code, empty when none
	StatusA   string
	StatusB   string
}

// FromCoord converts a coordinator event for publishing.
func FromCoord(ev coord.Event, snap coord.Snapshot, at time.Time) Event {
	out := Event{
		Timestamp: at,
		Kind:      ev.Kind.String(),
		Port:      ev.Port.String(),
		StatusA:   snap.Ports[coord.PortA].Status.String(),
		StatusB:   snap.Ports[coord.PortB].Status.String(),
	}
	if ev.BothPorts {
		out.Port = "BOTH"
	}
	if ev.Err != coord.ErrNone {
		out.Error = string(ev.Err.Letter())
	}
	return out
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	EVSE EVSEPayload `json:"evse"`
}

// EVSEPayload contains the charger event details.
type EVSEPayload struct {
	Timestamp string    `json:"timestamp"`
	Event     string    `json:"event"`
	Port      string    `json:"port"`
	Error     string    `json:"error,omitempty"`
	PortA     PortState `json:"port_a"`
	PortB     PortState `json:"port_b"`
}

// PortState represents a single port's display status.
type PortState struct {
	Status string `json:"status"`
}

// FormatPayload creates the JSON payload for a charger event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		EVSE: EVSEPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Kind,
			Port:      event.Port,
			Error:     event.Error,
			PortA:     PortState{Status: event.StatusA},
			PortB:     PortState{Status: event.StatusB},
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
