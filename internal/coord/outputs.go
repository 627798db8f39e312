package coord

import "github.com/sweeney/hydra-evse/internal/pilot"

// applyOutputs writes the arbitrated levels to the hardware. The derate is
// applied here, and an advertisement that falls under the 6 A floor is
// emitted as standby: PWM below the J1772 minimum is never legal.
func (c *Controller) applyOutputs() {
	for i := range c.ports {
		p := Port(i)
		ps := &c.ports[p]

		level := ps.level
		duty := 0
		var advert int64
		if level.Advertising() {
			derated := pilot.Derate(ps.allocAmps, c.pilotCalib(p))
			if derated < pilot.MinAmps {
				level = pilot.LevelStandby
			} else {
				duty = pilot.DutyTenths(derated)
				advert = derated
			}
		}
		ps.advertAmps = advert
		ps.pwmActive = duty > 0

		if ps.appliedOnce && ps.appliedLevel == level && ps.appliedDuty == duty {
			continue
		}
		ps.appliedOnce = true
		ps.appliedLevel = level
		ps.appliedDuty = duty

		out := c.hydra.Ports[p].Pilot
		switch level {
		case pilot.LevelOff:
			out.SetOff()
		case pilot.LevelStandby:
			out.SetStandby()
		default:
			out.SetPWM(duty)
		}
	}
}
