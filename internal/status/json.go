package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/hydra-evse/internal/coord"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Mode          string     `json:"mode"`
	MaxAmps       string     `json:"max_amps"`
	Paused        bool       `json:"paused"`
	GFIRetries    int        `json:"gfi_retries"`
	PortA         PortJSON   `json:"port_a"`
	PortB         PortJSON   `json:"port_b"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// PortJSON is one port's externally visible state.
type PortJSON struct {
	Status      string `json:"status"`
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
	Pilot       string `json:"pilot"`
	Advertised  string `json:"advertised"`
	Amps        string `json:"amps"`
	DisplayAmps string `json:"display_amps"`
	RelayClosed bool   `json:"relay_closed"`
	PilotRead   string `json:"pilot_read"`
	SeqDone     bool   `json:"seq_done,omitempty"`
	Word        uint16 `json:"word"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	QuickCycle  bool   `json:"quick_cycle,omitempty"`
}

func buildPort(p coord.PortSnapshot) PortJSON {
	out := PortJSON{
		Status:      p.Status.String(),
		State:       p.State.String(),
		Pilot:       p.Pilot.String(),
		Advertised:  FormatMilliamps(p.AdvertisedAmps),
		Amps:        FormatMilliamps(p.Amps),
		DisplayAmps: FormatMilliamps(p.DisplayAmps),
		RelayClosed: p.RelayClosed,
		PilotRead:   p.LastRead.String(),
		SeqDone:     p.SeqDone,
		Word:        p.Word,
	}
	if p.Err != coord.ErrNone {
		out.Error = string(p.Err.Letter())
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Mode:          snap.Coord.Mode.String(),
		MaxAmps:       FormatMilliamps(snap.Coord.MaxAmps),
		Paused:        snap.Coord.Paused,
		GFIRetries:    snap.Coord.GFIRetries,
		PortA:         buildPort(snap.Coord.Ports[coord.PortA]),
		PortB:         buildPort(snap.Coord.Ports[coord.PortB]),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			QuickCycle:  snap.Config.QuickCycle,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
