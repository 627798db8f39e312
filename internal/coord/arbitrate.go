package coord

import (
	"github.com/sweeney/hydra-evse/internal/clock"
	"github.com/sweeney/hydra-evse/internal/config"
	"github.com/sweeney/hydra-evse/internal/pilot"
)

// arbitrate assigns each port a pilot level and current allocation from the
// pair of lifecycle states. Applying it twice with unchanged inputs yields
// unchanged outputs. The advertised sum never exceeds the configured
// ceiling: as soon as both ports hold a vehicle, both advertise half.
func (c *Controller) arbitrate(now clock.Millis) {
	if c.paused {
		for i := range c.ports {
			ps := &c.ports[i]
			if ps.state == StateError {
				continue
			}
			ps.level = pilot.LevelStandby
			ps.allocAmps = 0
		}
		return
	}

	switch c.cfg.Mode {
	case config.ModeSequential:
		c.arbitrateSequential(now)
	default:
		c.arbitrateShared(now)
	}
}

func (c *Controller) arbitrateShared(now clock.Millis) {
	for i := range c.ports {
		p := Port(i)
		ps := &c.ports[p]
		peer := &c.ports[p.Peer()]

		switch ps.state {
		case StateError:
			// Teardown owns the level.
		case StateUnplugged, StateDone:
			ps.level = pilot.LevelStandby
			ps.allocAmps = 0
		default:
			// Shared mode always advertises to a present vehicle.
			if ps.state == StatePlugged {
				ps.state = StateOffered
			}
			if !peer.state.present() && ps.holdoffOver(now) {
				ps.level = pilot.LevelFull
				ps.allocAmps = c.maxAmps()
			} else {
				ps.level = pilot.LevelHalf
				ps.allocAmps = c.maxAmps() / 2
			}
		}
	}
}

func (c *Controller) arbitrateSequential(now clock.Millis) {
	// A charging port owns the whole advertisement; its peer waits on
	// standby. At most one relay is ever closed.
	for i := range c.ports {
		p := Port(i)
		ps := &c.ports[p]
		if ps.state != StateCharging && ps.state != StateTransition {
			continue
		}
		ps.level = pilot.LevelFull
		ps.allocAmps = c.maxAmps()
		peer := &c.ports[p.Peer()]
		if peer.state == StateOffered {
			peer.state = StatePlugged
		}
		if peer.state != StateError {
			peer.level = pilot.LevelStandby
			peer.allocAmps = 0
		}
		c.seqOfferArmed = false
		return
	}

	// Nobody charging: hand the offer to one waiting vehicle at a time.
	var candidates []Port
	for i := range c.ports {
		ps := &c.ports[i]
		if (ps.state == StatePlugged || ps.state == StateOffered) && !ps.seqDone {
			candidates = append(candidates, Port(i))
		}
	}

	switch len(candidates) {
	case 0:
		c.seqOfferArmed = false
	case 1:
		c.seqOfferArmed = false
		c.seqOffer = candidates[0]
	default:
		// Both waiting: rotate the offer so either may change its mind.
		if !c.seqOfferArmed {
			c.seqOfferArmed = true
			c.seqOffer = c.tiebreak
			c.seqOfferDeadline = now + SeqModeOfferTimeout
			c.emit(Event{At: now, Kind: EvSeqOffer, Port: c.seqOffer})
		} else if clock.Since(now, c.seqOfferDeadline) >= 0 {
			c.seqOffer = c.seqOffer.Peer()
			c.seqOfferDeadline = now + SeqModeOfferTimeout
			c.emit(Event{At: now, Kind: EvSeqOffer, Port: c.seqOffer})
		}
	}

	for i := range c.ports {
		p := Port(i)
		ps := &c.ports[p]
		switch ps.state {
		case StateError:
			// Teardown owns the level.
		case StatePlugged, StateOffered:
			if !ps.seqDone && len(candidates) > 0 && p == c.seqOffer {
				ps.state = StateOffered
				ps.level = pilot.LevelFull
				ps.allocAmps = c.maxAmps()
			} else {
				ps.state = StatePlugged
				ps.level = pilot.LevelStandby
				ps.allocAmps = 0
			}
		default:
			ps.level = pilot.LevelStandby
			ps.allocAmps = 0
		}
	}
}
