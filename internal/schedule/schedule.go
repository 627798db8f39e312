// Package schedule evaluates the configured pause/unpause events against the
// wall clock. Wall-clock time is used for nothing else; all protocol timing
// runs on the monotonic millisecond clock.
package schedule

import (
	"time"

	"github.com/sweeney/hydra-evse/internal/config"
	"github.com/sweeney/hydra-evse/internal/dst"
)

// Scheduler fires each due event at most once per wall-clock minute.
type Scheduler struct {
	events    [config.EventCount]config.Event
	rules     dst.Rules
	enableDST bool
	lastCheck time.Time
}

// New creates a scheduler from the configured events. The DST rules are
// applied to the wall clock only when the configuration enables them.
func New(cfg config.Config, rules dst.Rules) *Scheduler {
	return &Scheduler{
		events:    cfg.Events,
		rules:     rules,
		enableDST: cfg.EnableDST,
	}
}

// Check returns the action due at wall-clock instant now, or EventNone.
// Calls within the same minute after a match return EventNone so an event
// fires exactly once.
func (s *Scheduler) Check(now time.Time) config.EventKind {
	local := now
	if s.enableDST {
		local = dst.ToDST(s.rules, now)
	}

	minute := local.Truncate(time.Minute)
	if minute.Equal(s.lastCheck) {
		return config.EventNone
	}
	s.lastCheck = minute

	action := config.EventNone
	dowBit := uint8(1) << uint(local.Weekday())
	for _, e := range s.events {
		if e.Kind == config.EventNone {
			continue
		}
		if int(e.Hour) != local.Hour() || int(e.Minute) != local.Minute() {
			continue
		}
		if e.DowMask&dowBit == 0 {
			continue
		}
		action = e.Kind
	}
	return action
}
