// Package coord is the charging coordinator: the two per-port state
// machines, the shared/sequential arbitration policy, and the tick loop
// body that binds the sensors and actuators together. The Controller owns
// all mutable state and is driven single-threaded; the only asynchronous
// input is the GFI trip flag, which the hardware layer exposes as an atomic.
package coord

import (
	"time"

	"github.com/sweeney/hydra-evse/internal/clock"
	"github.com/sweeney/hydra-evse/internal/config"
	"github.com/sweeney/hydra-evse/internal/gfi"
	"github.com/sweeney/hydra-evse/internal/hw"
	"github.com/sweeney/hydra-evse/internal/meter"
	"github.com/sweeney/hydra-evse/internal/pilot"
	"github.com/sweeney/hydra-evse/internal/relay"
)

// Protocol timing, in milliseconds of the monotonic clock.
const (
	// StateCheckInterval bounds one tick and is the pilot peak-sampling
	// window.
	StateCheckInterval = 20

	// OverdrawGracePeriod is how long a vehicle may draw above its
	// allowance before it is errored out. J1772 gives the vehicle 5 s to
	// respond to a pilot reduction, but also requires us to answer a
	// state C transition within 5 s, so something has to give.
	OverdrawGracePeriod = 4000

	// OverdrawGraceAmps is the slop on top of the calculated limit, in
	// milliamps.
	OverdrawGraceAmps = 1000

	// ErrorDelay is the gap between withdrawing a pilot and opening the
	// relay. The spec floor is 3000 ms.
	ErrorDelay = 3000

	// TransitionDelay is the longest a newly requesting vehicle waits for
	// the peer to come down to half power. Must exceed
	// OverdrawGracePeriod and stay under J1772's 5000 ms.
	TransitionDelay = 4500

	// SeqModeOfferTimeout flips an unanswered sequential offer to the
	// other port.
	SeqModeOfferTimeout = 5 * 60 * 1000

	// PilotReleaseHoldoffMinutes delays re-raising the remaining pilot
	// after a quick-cycling vehicle departs.
	PilotReleaseHoldoffMinutes = 5

	// debounceWindows is how many identical window classifications accept
	// a pilot read. The 20 ms peak window is itself the filter, so one
	// window suffices: debounce equals STATE_CHECK_INTERVAL.
	debounceWindows = 1
)

// DefaultTiebreak is the cold-start winner of a simultaneous arrival.
const DefaultTiebreak = PortA

// Options selects build variants.
type Options struct {
	// QuickCycling imposes the pilot-release holdoff in shared mode for
	// vehicles that cycle their contactors during operation.
	QuickCycling bool

	// RelayTestsGround selects the combined relay test / ground
	// continuity hardware.
	RelayTestsGround bool

	// ScaleFactor overrides the CT milliamps-per-unit scale; 0 means the
	// reference design value.
	ScaleFactor int64
}

// Controller owns both ports and all arbitration state.
type Controller struct {
	cfg    config.Config
	hydra  *hw.Hydra
	opts   Options
	relays [2]*relay.Tester
	meters [2]meter.Meter
	gfiMon *gfi.Monitor

	ports    [2]portState
	paused   bool
	tiebreak Port

	seqOffer         Port
	seqOfferArmed    bool
	seqOfferDeadline clock.Millis

	requestsThisTick int
	events           []Event
}

// New builds the controller. The configuration is validated and the relays
// are commanded open.
func New(cfg config.Config, hydra *hw.Hydra, opts Options, now clock.Millis) *Controller {
	cfg.Validate()
	if opts.ScaleFactor == 0 {
		opts.ScaleFactor = 106
	}
	c := &Controller{
		cfg:      cfg,
		hydra:    hydra,
		opts:     opts,
		gfiMon:   gfi.NewMonitor(hydra.GFI),
		tiebreak: DefaultTiebreak,
	}
	calib := [2]int{int(cfg.Calib.AmmA), int(cfg.Calib.AmmB)}
	for i := range c.ports {
		c.relays[i] = relay.NewTester(hydra.Ports[i].Relay, opts.RelayTestsGround, now)
		c.relays[i].Set(false, now)
		c.meters[i] = meter.Meter{ScaleFactor: opts.ScaleFactor, Calib: calib[i]}
		c.ports[i] = portState{
			state:    StateUnplugged,
			lastRead: pilot.StateUnknown,
			level:    pilot.LevelStandby,
			amm:      meter.NewEWA(meter.DisplayHalfPeriod),
		}
	}
	return c
}

// Mode returns the configured arbitration policy.
func (c *Controller) Mode() config.Mode { return c.cfg.Mode }

// Paused reports the pause state.
func (c *Controller) Paused() bool { return c.paused }

// GFIRetries returns the trip count since boot.
func (c *Controller) GFIRetries() int { return c.gfiMon.Retries() }

func (c *Controller) maxAmps() int64 { return int64(c.cfg.MaxAmps) }

func (c *Controller) pilotCalib(p Port) int {
	if p == PortA {
		return int(c.cfg.Calib.PilotA)
	}
	return int(c.cfg.Calib.PilotB)
}

func (c *Controller) emit(ev Event) {
	c.events = append(c.events, ev)
}

// Tick runs one coordinator iteration: GFI service, sensor reads, fault
// checks, state machines, arbitration, actuation. Events worth reporting
// are returned; the slice is reused across ticks.
func (c *Controller) Tick(now clock.Millis) []Event {
	c.events = c.events[:0]

	// 1. A tripped interrupter preempts everything.
	switch c.gfiMon.Service(now) {
	case gfi.EventTripped:
		c.onGFITrip(now)
	case gfi.EventCleared:
		c.onGFIClear(now)
	}

	// 2. Pilot feedback for both ports.
	for i := range c.ports {
		c.ports[i].readChanged = false
		c.samplePilot(Port(i))
	}

	// 3. Charge current while a relay is closed; overdraw enforcement.
	for i := range c.ports {
		c.serviceCurrent(Port(i), now)
	}

	// 4. Relay/ground consistency past the settling grace.
	c.serviceRelayTest(now)

	// 5. Advance the state machines, tiebreak owner first so a
	// simultaneous arrival resolves deterministically.
	c.requestsThisTick = 0
	c.advance(c.tiebreak, now)
	c.advance(c.tiebreak.Peer(), now)
	if c.requestsThisTick == 2 {
		c.tiebreak = c.tiebreak.Peer()
	}

	// 6. Allocation, then actuation.
	c.arbitrate(now)
	c.applyOutputs()

	return c.events
}

// samplePilot classifies one port's feedback window and folds it into the
// debounced read. With the pilot off no state can be derived.
func (c *Controller) samplePilot(p Port) {
	ps := &c.ports[p]
	if ps.level == pilot.LevelOff {
		return
	}
	hi, lo, err := c.hydra.Ports[p].PilotSense.PeakWindow(StateCheckInterval * time.Millisecond)
	if err != nil {
		return
	}
	read := pilot.Classify(hi, lo, ps.pwmActive)
	if ps.debounce(read) {
		ps.readChanged = true
	}
}

// serviceCurrent measures a charging port and enforces the overdraw rule:
// draw above allowance plus slop persisting past the grace window errors
// the port out.
func (c *Controller) serviceCurrent(p Port, now clock.Millis) {
	ps := &c.ports[p]
	if ps.state != StateCharging || !c.relays[p].Commanded() {
		return
	}
	src := c.hydra.Ports[p].Current
	src.Begin()
	amps := c.meters[p].ReadRMS(src)
	ps.lastAmps = amps
	ps.amm.Update(float64(amps), float64(now))

	if amps > ps.allocAmps+OverdrawGraceAmps {
		if ps.overdrawBegin == 0 {
			ps.overdrawBegin = now
		} else if clock.After(now, ps.overdrawBegin, OverdrawGracePeriod) {
			c.fault(p, ErrOverdraw, now)
		}
	} else {
		ps.overdrawBegin = 0
	}
}

// serviceRelayTest runs the post-grace consistency check. Any mismatch is
// safety-critical and latches both ports.
func (c *Controller) serviceRelayTest(now clock.Millis) {
	for i := range c.relays {
		f, err := c.relays[i].Check(now)
		if err != nil {
			continue
		}
		switch f {
		case relay.FaultStuck:
			c.unitFault(ErrRelay, now)
		case relay.FaultGround:
			c.unitFault(ErrGround, now)
		}
	}
}

// fault errors a port: pilot withdrawn now, relay opened after ErrorDelay
// by the error-state teardown.
func (c *Controller) fault(p Port, kind ErrorKind, now clock.Millis) {
	ps := &c.ports[p]
	if ps.state == StateError && ps.errKind == kind {
		return
	}
	wasCharging := ps.state == StateCharging
	ps.state = StateError
	ps.errKind = kind
	ps.errorTime = now
	ps.level = pilot.LevelOff
	ps.allocAmps = 0
	ps.requestTime = 0
	ps.overdrawBegin = 0
	if wasCharging {
		c.armHoldoff(p.Peer(), now)
	}
	c.emit(Event{At: now, Kind: EvFault, Port: p, Err: kind})
}

// unitFault latches both ports with the same kind, opening both relays
// immediately: these are not per-vehicle conditions.
func (c *Controller) unitFault(kind ErrorKind, now clock.Millis) {
	already := c.ports[0].state == StateError && c.ports[0].errKind == kind &&
		c.ports[1].state == StateError && c.ports[1].errKind == kind
	if already {
		return
	}
	for i := range c.ports {
		p := Port(i)
		ps := &c.ports[p]
		if ps.state == StateError && ps.errKind == kind {
			continue
		}
		ps.state = StateError
		ps.errKind = kind
		ps.errorTime = now
		ps.level = pilot.LevelOff
		ps.allocAmps = 0
		ps.requestTime = 0
		ps.overdrawBegin = 0
		c.relays[p].Set(false, now)
	}
	c.emit(Event{At: now, Kind: EvFault, BothPorts: true, Err: kind})
}

// LatchFatal marks both ports with a fatal error outside the tick flow.
// Used at boot when the GFI self-test fails: no charging is ever offered.
func (c *Controller) LatchFatal(kind ErrorKind, now clock.Millis) {
	c.unitFault(kind, now)
	c.applyOutputs()
}

func (c *Controller) onGFITrip(now clock.Millis) {
	// The interrupt context already forced the outputs; reflect that and
	// latch both ports into the ground-fault hold.
	for i := range c.ports {
		p := Port(i)
		ps := &c.ports[p]
		ps.state = StateError
		ps.errKind = ErrGround
		ps.errorTime = now
		ps.level = pilot.LevelOff
		ps.allocAmps = 0
		ps.requestTime = 0
		ps.overdrawBegin = 0
		c.relays[p].Set(false, now)
	}
	c.emit(Event{At: now, Kind: EvGFITrip, BothPorts: true, Err: ErrGround})
}

func (c *Controller) onGFIClear(now clock.Millis) {
	for i := range c.ports {
		ps := &c.ports[i]
		if ps.state == StateError && ps.errKind == ErrGround {
			ps.state = StateUnplugged
			ps.errKind = ErrNone
			ps.level = pilot.LevelStandby
			ps.lastRead = pilot.StateUnknown
		}
	}
	c.emit(Event{At: now, Kind: EvGFICleared, BothPorts: true})
}

// Pause suspends both ports: pilots to standby, sessions wound down. Port
// lifecycle and sequential done flags survive for the unpause.
func (c *Controller) Pause(now clock.Millis) {
	if c.paused {
		return
	}
	c.paused = true
	for i := range c.ports {
		c.ports[i].pauseTime = now
	}
	c.seqOfferArmed = false
	c.emit(Event{At: now, Kind: EvPaused, BothPorts: true})
}

// Unpause resumes arbitration; existing vehicles are re-offered on the next
// tick.
func (c *Controller) Unpause(now clock.Millis) {
	if !c.paused {
		return
	}
	c.paused = false
	c.emit(Event{At: now, Kind: EvUnpaused, BothPorts: true})
}

// armHoldoff delays restoring the remaining port to a full advertisement
// after its peer departs, when the quick-cycling workaround is on.
func (c *Controller) armHoldoff(p Port, now clock.Millis) {
	if !c.opts.QuickCycling || c.cfg.Mode != config.ModeShared {
		return
	}
	ps := &c.ports[p]
	ps.holdoffArmed = true
	ps.holdoffUntil = now + PilotReleaseHoldoffMinutes*60*1000
}

func (ps *portState) holdoffOver(now clock.Millis) bool {
	if !ps.holdoffArmed {
		return true
	}
	if clock.Since(now, ps.holdoffUntil) >= 0 {
		ps.holdoffArmed = false
		return true
	}
	return false
}

// closeRelay transitions a port into Charging.
func (c *Controller) closeRelay(p Port, now clock.Millis) {
	ps := &c.ports[p]
	c.relays[p].Set(true, now)
	ps.state = StateCharging
	ps.requestTime = 0
	ps.overdrawBegin = 0
	c.emit(Event{At: now, Kind: EvChargeStart, Port: p})
}

// stopCharging opens the relay and moves the port to next. Arms the peer's
// quick-cycling holdoff.
func (c *Controller) stopCharging(p Port, now clock.Millis, next PortState) {
	ps := &c.ports[p]
	c.relays[p].Set(false, now)
	ps.state = next
	ps.overdrawBegin = 0
	c.armHoldoff(p.Peer(), now)
	c.emit(Event{At: now, Kind: EvChargeStop, Port: p})
}

// unplugged resets a port to cold state after an accepted state-A read.
func (c *Controller) unplugged(p Port, now clock.Millis) {
	ps := &c.ports[p]
	if c.relays[p].Commanded() {
		c.relays[p].Set(false, now)
	}
	ps.state = StateUnplugged
	ps.level = pilot.LevelStandby
	ps.allocAmps = 0
	ps.requestTime = 0
	ps.overdrawBegin = 0
	ps.seqDone = false
	c.emit(Event{At: now, Kind: EvUnplug, Port: p})
}
