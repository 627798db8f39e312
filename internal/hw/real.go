//go:build linux

package hw

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// pilotPeriodNs is the J1772 pilot period: 1 kHz.
const pilotPeriodNs = 1_000_000

// RealPilot drives a control pilot through a sysfs PWM channel. A steady
// +12 V standby is a 100% duty cycle; off is 0%.
type RealPilot struct {
	dir string
}

// NewRealPilot exports and configures the given PWM channel.
func NewRealPilot(chip, channel int) (*RealPilot, error) {
	chipDir := fmt.Sprintf("/sys/class/pwm/pwmchip%d", chip)
	dir := filepath.Join(chipDir, fmt.Sprintf("pwm%d", channel))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.WriteFile(filepath.Join(chipDir, "export"), []byte(strconv.Itoa(channel)), 0o644); err != nil {
			return nil, fmt.Errorf("export pwm channel %d: %w", channel, err)
		}
	}
	p := &RealPilot{dir: dir}
	if err := p.write("period", pilotPeriodNs); err != nil {
		return nil, fmt.Errorf("set pilot period: %w", err)
	}
	if err := p.SetOff(); err != nil {
		return nil, err
	}
	if err := p.write("enable", 1); err != nil {
		return nil, fmt.Errorf("enable pilot pwm: %w", err)
	}
	return p, nil
}

func (p *RealPilot) write(name string, v int) error {
	return os.WriteFile(filepath.Join(p.dir, name), []byte(strconv.Itoa(v)), 0o644)
}

// SetOff drives the pilot low continuously.
func (p *RealPilot) SetOff() error {
	return p.write("duty_cycle", 0)
}

// SetStandby drives the pilot high continuously.
func (p *RealPilot) SetStandby() error {
	return p.write("duty_cycle", pilotPeriodNs)
}

// SetPWM emits the advertisement at the given duty, in tenths of a percent.
func (p *RealPilot) SetPWM(dutyTenths int) error {
	return p.write("duty_cycle", pilotPeriodNs/1000*dutyTenths)
}

// RealADC reads one IIO voltage channel as a raw 10-bit value.
type RealADC struct {
	path string
}

// NewRealADC opens channel ch of IIO device dev.
func NewRealADC(dev, ch int) (*RealADC, error) {
	path := fmt.Sprintf("/sys/bus/iio/devices/iio:device%d/in_voltage%d_raw", dev, ch)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open adc channel: %w", err)
	}
	return &RealADC{path: path}, nil
}

func (a *RealADC) read() (int, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse adc value: %w", err)
	}
	return v, nil
}

// RealPilotSense finds the feedback peaks by busy-sampling the ADC.
type RealPilotSense struct {
	adc *RealADC
}

func NewRealPilotSense(adc *RealADC) *RealPilotSense {
	return &RealPilotSense{adc: adc}
}

// PeakWindow samples until the window closes, tracking both peaks. One
// conversion takes on the order of 0.1 ms, so a 20 ms window sees most of
// both halves of the 1 kHz square wave.
func (s *RealPilotSense) PeakWindow(window time.Duration) (int, int, error) {
	deadline := time.Now().Add(window)
	hi, lo := -1, 1<<15
	for time.Now().Before(deadline) {
		v, err := s.adc.read()
		if err != nil {
			return 0, 0, err
		}
		if v > hi {
			hi = v
		}
		if v < lo {
			lo = v
		}
	}
	if hi < 0 {
		return 0, 0, fmt.Errorf("pilot sense: no samples in window")
	}
	return hi, lo, nil
}

// RealCurrent streams CT conversions for the meter.
type RealCurrent struct {
	adc   *RealADC
	start time.Time
}

func NewRealCurrent(adc *RealADC) *RealCurrent {
	return &RealCurrent{adc: adc}
}

func (c *RealCurrent) Begin() {
	c.start = time.Now()
}

func (c *RealCurrent) Next() (int, time.Duration, bool) {
	v, err := c.adc.read()
	if err != nil {
		return 0, 0, false
	}
	return v, time.Since(c.start), true
}

// RealRelay drives a contactor line and reads its AC-presence sense line.
type RealRelay struct {
	drive *gpiocdev.Line
	sense *gpiocdev.Line
}

// NewRealRelay requests the drive and sense lines on the given chip.
func NewRealRelay(chip *gpiocdev.Chip, driveOffset, senseOffset int) (*RealRelay, error) {
	drive, err := chip.RequestLine(driveOffset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request relay drive %d: %w", driveOffset, err)
	}
	sense, err := chip.RequestLine(senseOffset, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		drive.Close()
		return nil, fmt.Errorf("request relay sense %d: %w", senseOffset, err)
	}
	return &RealRelay{drive: drive, sense: sense}, nil
}

func (r *RealRelay) Set(closed bool) error {
	v := 0
	if closed {
		v = 1
	}
	if err := r.drive.SetValue(v); err != nil {
		return fmt.Errorf("set relay: %w", err)
	}
	return nil
}

func (r *RealRelay) SenseAC() (bool, error) {
	v, err := r.sense.Value()
	if err != nil {
		return false, fmt.Errorf("read relay sense: %w", err)
	}
	return v != 0, nil
}

// Close releases the relay lines, opening the contactor first.
func (r *RealRelay) Close() error {
	r.drive.SetValue(0)
	r.drive.Close()
	r.sense.Close()
	return nil
}

// RealGFI watches the ground-fault interrupt line. The edge handler runs the
// safe shutdown callback and sets the trip flag; it touches nothing else.
// All policy runs on the main tick.
type RealGFI struct {
	tripped  atomic.Bool
	in       *gpiocdev.Line
	test     *gpiocdev.Line
	shutdown func()
}

// NewRealGFI requests the interrupt and self-test lines. shutdown is invoked
// from interrupt context on every trip edge; it must only force the pilot
// and relay outputs to their safe states.
func NewRealGFI(chip *gpiocdev.Chip, inOffset, testOffset int, shutdown func()) (*RealGFI, error) {
	g := &RealGFI{shutdown: shutdown}
	in, err := chip.RequestLine(inOffset,
		gpiocdev.AsInput,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(g.onEdge))
	if err != nil {
		return nil, fmt.Errorf("request gfi line %d: %w", inOffset, err)
	}
	test, err := chip.RequestLine(testOffset, gpiocdev.AsOutput(0))
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("request gfi test line %d: %w", testOffset, err)
	}
	g.in = in
	g.test = test
	return g, nil
}

func (g *RealGFI) onEdge(gpiocdev.LineEvent) {
	if g.shutdown != nil {
		g.shutdown()
	}
	g.tripped.Store(true)
}

func (g *RealGFI) Tripped() bool { return g.tripped.Load() }

func (g *RealGFI) Reset() { g.tripped.Store(false) }

func (g *RealGFI) SelfTest(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := g.test.SetValue(v); err != nil {
		return fmt.Errorf("drive gfi test line: %w", err)
	}
	return nil
}

// Close releases the GFI lines.
func (g *RealGFI) Close() error {
	g.in.Close()
	g.test.SetValue(0)
	g.test.Close()
	return nil
}

// NewRealHydra assembles the whole unit from the given pin bindings. The
// returned close function opens both relays, parks both pilots and releases
// every line. The GFI edge handler is wired to force both pilots off and
// both relays open before the tick loop observes the trip.
func NewRealHydra(pins Pins) (*Hydra, func() error, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, nil, fmt.Errorf("open gpio chip: %w", err)
	}

	var closers []Closer
	fail := func(err error) (*Hydra, func() error, error) {
		for _, c := range closers {
			c.Close()
		}
		chip.Close()
		return nil, nil, err
	}

	pilotA, err := NewRealPilot(pins.PWMChip, pins.PilotChannelA)
	if err != nil {
		return fail(err)
	}
	pilotB, err := NewRealPilot(pins.PWMChip, pins.PilotChannelB)
	if err != nil {
		return fail(err)
	}

	senseA, err := NewRealADC(pins.ADCDevice, pins.PilotSenseA)
	if err != nil {
		return fail(err)
	}
	senseB, err := NewRealADC(pins.ADCDevice, pins.PilotSenseB)
	if err != nil {
		return fail(err)
	}
	ctA, err := NewRealADC(pins.ADCDevice, pins.CurrentA)
	if err != nil {
		return fail(err)
	}
	ctB, err := NewRealADC(pins.ADCDevice, pins.CurrentB)
	if err != nil {
		return fail(err)
	}

	relayA, err := NewRealRelay(chip, pins.RelayA, pins.RelaySenseA)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, relayA)
	relayB, err := NewRealRelay(chip, pins.RelayB, pins.RelaySenseB)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, relayB)

	// The interrupt context may touch only the pilot and relay outputs.
	shutdown := func() {
		pilotA.SetOff()
		pilotB.SetOff()
		relayA.Set(false)
		relayB.Set(false)
	}
	gfi, err := NewRealGFI(chip, pins.GFIIn, pins.GFITest, shutdown)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, gfi)

	h := &Hydra{
		Ports: [2]Port{
			{
				Pilot:      pilotA,
				PilotSense: NewRealPilotSense(senseA),
				Current:    NewRealCurrent(ctA),
				Relay:      relayA,
			},
			{
				Pilot:      pilotB,
				PilotSense: NewRealPilotSense(senseB),
				Current:    NewRealCurrent(ctB),
				Relay:      relayB,
			},
		},
		GFI: gfi,
	}

	closeAll := func() error {
		pilotA.SetOff()
		pilotB.SetOff()
		var firstErr error
		for _, c := range closers {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := chip.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}
	return h, closeAll, nil
}
