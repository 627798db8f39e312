// Package status provides a thread-safe status tracker for the hydra-evse
// daemon. The tick loop writes coordinator snapshots into it; HTTP handlers
// and MQTT heartbeats read from it.
package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/hydra-evse/internal/coord"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	Mode        string
	MaxAmps     int64
	QuickCycle  bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Coord         coord.Snapshot
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the latest coordinator snapshot. Called from the tick loop.
func (t *Tracker) Update(snap coord.Snapshot) {
	t.mu.Lock()
	t.snap.Coord = snap
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// FormatMilliamps renders a current in the display's "NN.NA" form.
func FormatMilliamps(mA int64) string {
	return fmt.Sprintf("%d.%dA", mA/1000, (mA%1000)/100)
}
