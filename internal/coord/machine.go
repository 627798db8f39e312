package coord

import (
	"github.com/sweeney/hydra-evse/internal/clock"
	"github.com/sweeney/hydra-evse/internal/config"
	"github.com/sweeney/hydra-evse/internal/pilot"
)

// advance runs one port's state machine against its debounced read and the
// pending deadlines.
func (c *Controller) advance(p Port, now clock.Millis) {
	ps := &c.ports[p]

	if ps.state == StateError {
		c.serviceErrorTeardown(p, now)
		return
	}

	if c.paused {
		c.advancePaused(p, now)
		return
	}

	read := ps.lastRead

	// Faults common to every live state.
	if read == pilot.StateE || read == pilot.StateDiodeFault {
		c.fault(p, ErrTiming, now)
		return
	}

	switch ps.state {
	case StateUnplugged:
		if read == pilot.StateB {
			ps.state = StatePlugged
			c.emit(Event{At: now, Kind: EvPlug, Port: p})
		} else if read.Requesting() {
			// A vehicle cannot legally appear already requesting:
			// there was never an advertisement to accept.
			ps.state = StatePlugged
			c.emit(Event{At: now, Kind: EvPlug, Port: p})
			c.fault(p, ErrTiming, now)
		}

	case StatePlugged:
		switch {
		case read == pilot.StateA:
			c.unplugged(p, now)
		case read.Requesting():
			// Requesting against a standby pilot.
			c.fault(p, ErrTiming, now)
		}

	case StateOffered:
		switch {
		case read == pilot.StateA:
			c.unplugged(p, now)
		case read == pilot.StateD && ps.readChanged:
			// Ventilation is not supported on this hardware.
			c.fault(p, ErrVentilation, now)
		case read == pilot.StateC && ps.readChanged:
			c.request(p, now)
		}

	case StateTransition:
		switch {
		case read == pilot.StateA:
			c.unplugged(p, now)
		case read == pilot.StateB && ps.readChanged:
			// The vehicle withdrew its request while waiting.
			ps.state = StateOffered
			ps.requestTime = 0
		default:
			c.serviceTransition(p, now)
		}

	case StateCharging:
		switch {
		case read == pilot.StateA:
			// Unplugged mid-charge: cut power now, there is no
			// vehicle left to protect with the pilot delay.
			c.stopCharging(p, now, StateUnplugged)
			c.unplugged(p, now)
		case read == pilot.StateD && ps.readChanged:
			c.fault(p, ErrVentilation, now)
		case read == pilot.StateB && ps.readChanged:
			c.chargeDone(p, now)
		}

	case StateDone:
		switch {
		case read == pilot.StateA:
			c.unplugged(p, now)
		case read.Requesting():
			// Done ports hold a standby pilot; a request against it
			// is a protocol violation.
			c.fault(p, ErrTiming, now)
		}
	}
}

// request handles a debounced B->C edge on an offered port.
func (c *Controller) request(p Port, now clock.Millis) {
	c.requestsThisTick++
	ps := &c.ports[p]
	peer := &c.ports[p.Peer()]

	if c.cfg.Mode == config.ModeSequential {
		c.closeRelay(p, now)
		return
	}

	if peer.state == StateCharging {
		// Hold in transition until the peer halves its draw.
		ps.state = StateTransition
		ps.requestTime = now
		return
	}
	c.closeRelay(p, now)
}

// serviceTransition closes the relay once the peer's draw fits the halved
// allowance, or aborts at the deadline. The peer normally errors out on
// overdraw before our deadline, since its grace is the shorter window.
func (c *Controller) serviceTransition(p Port, now clock.Millis) {
	ps := &c.ports[p]
	peer := &c.ports[p.Peer()]

	if peer.state != StateCharging {
		c.closeRelay(p, now)
		return
	}
	if peer.lastAmps <= peer.allocAmps+OverdrawGraceAmps {
		c.closeRelay(p, now)
		return
	}
	if clock.After(now, ps.requestTime, TransitionDelay) {
		ps.state = StateOffered
		ps.requestTime = 0
	}
}

// chargeDone handles a debounced C->B edge while charging: the vehicle is
// finished.
func (c *Controller) chargeDone(p Port, now clock.Millis) {
	ps := &c.ports[p]
	if c.cfg.Mode == config.ModeSequential {
		ps.seqDone = true
		c.stopCharging(p, now, StateDone)
		return
	}
	// Shared mode keeps the advertisement up; the vehicle may resume.
	c.stopCharging(p, now, StateOffered)
}

// serviceErrorTeardown finishes the pilot-then-relay shutdown and watches
// for the unplug that clears recoverable faults.
func (c *Controller) serviceErrorTeardown(p Port, now clock.Millis) {
	ps := &c.ports[p]

	if c.relays[p].Commanded() {
		if !clock.After(now, ps.errorTime, ErrorDelay) {
			return
		}
		c.relays[p].Set(false, now)
	}

	if !ps.errKind.recoverable() {
		return
	}

	// Teardown complete: raise standby so the unplug is observable.
	if ps.level == pilot.LevelOff {
		ps.level = pilot.LevelStandby
		return
	}

	if ps.lastRead == pilot.StateA {
		kind := ps.errKind
		ps.errKind = ErrNone
		ps.state = StateUnplugged
		ps.seqDone = false
		c.emit(Event{At: now, Kind: EvFaultCleared, Port: p, Err: kind})
	}
}

// advancePaused is the reduced machine while the unit is paused: vehicles
// are wound down gently and plug/unplug is still tracked.
func (c *Controller) advancePaused(p Port, now clock.Millis) {
	ps := &c.ports[p]
	read := ps.lastRead

	switch ps.state {
	case StateUnplugged:
		if read == pilot.StateB || read.Requesting() {
			ps.state = StatePlugged
			c.emit(Event{At: now, Kind: EvPlug, Port: p})
		}
	case StateOffered, StateTransition:
		ps.state = StatePlugged
		ps.requestTime = 0
	case StateCharging:
		// The standby pilot tells the vehicle to stop; give it the
		// pilot-withdrawal delay before forcing the relay.
		if !read.Requesting() || clock.After(now, ps.pauseTime, ErrorDelay) {
			c.stopCharging(p, now, StatePlugged)
		}
	}

	if read == pilot.StateA && ps.state != StateUnplugged {
		c.unplugged(p, now)
	}
}
