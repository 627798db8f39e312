// Command hydra-evse runs the dual-port J1772 charging controller: it
// drives both pilots and contactors, enforces the safety interlocks, and
// publishes state over MQTT and HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/hydra-evse/internal/clock"
	"github.com/sweeney/hydra-evse/internal/config"
	"github.com/sweeney/hydra-evse/internal/coord"
	"github.com/sweeney/hydra-evse/internal/dst"
	"github.com/sweeney/hydra-evse/internal/gfi"
	"github.com/sweeney/hydra-evse/internal/hw"
	"github.com/sweeney/hydra-evse/internal/metrics"
	"github.com/sweeney/hydra-evse/internal/mqtt"
	"github.com/sweeney/hydra-evse/internal/schedule"
	"github.com/sweeney/hydra-evse/internal/status"
	"github.com/sweeney/hydra-evse/internal/web"
)

// Periodic logging cadence.
const (
	stateLogInterval   = time.Minute
	currentLogInterval = time.Second
)

func main() {
	tick := flag.Duration("tick", 20*time.Millisecond, "Coordinator tick interval")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	persistPath := flag.String("persist", "/var/lib/hydra-evse/config.bin", "Configuration blob path")
	quickCycling := flag.Bool("quick-cycling", false, "Hold off re-raising the pilot after a quick-cycling vehicle departs")
	relayGround := flag.Bool("relay-tests-ground", true, "Relay sense line also proves ground continuity")
	printConfig := flag.Bool("print-config", false, "Print the stored configuration and exit")

	flag.Parse()

	if err := run(*tick, *broker, *heartbeat, *httpAddr, *persistPath, *quickCycling, *relayGround, *printConfig); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(tick time.Duration, broker string, heartbeat time.Duration, httpAddr, persistPath string, quickCycling, relayGround, printConfig bool) error {
	cfg := loadConfig(persistPath)

	if printConfig {
		fmt.Printf("mode: %s\nmax: %s\ndst: %v\ncalib: amm %d/%d pilot %d/%d\n",
			cfg.Mode, status.FormatMilliamps(int64(cfg.MaxAmps)), cfg.EnableDST,
			cfg.Calib.AmmA, cfg.Calib.AmmB, cfg.Calib.PilotA, cfg.Calib.PilotB)
		for i, e := range cfg.Events {
			if e.Kind == config.EventNone {
				continue
			}
			fmt.Printf("event %d: %02d:%02d dow=%#02x kind=%d\n", i, e.Hour, e.Minute, e.DowMask, e.Kind)
		}
		return nil
	}

	// Bring up the hardware with everything parked safe.
	hydra, closeHW, err := hw.NewRealHydra(hw.DefaultPins())
	if err != nil {
		return fmt.Errorf("init hardware: %w", err)
	}
	defer closeHW()

	ctl := coord.New(cfg, hydra, coord.Options{
		QuickCycling:     quickCycling,
		RelayTestsGround: relayGround,
	}, clock.FromTime(time.Now()))

	// The interrupter must prove itself before any charging is offered.
	if err := gfi.SelfTest(hydra.GFI, time.Sleep); err != nil {
		log.Printf("gfi self-test failed: %v", err)
		ctl.LatchFatal(coord.ErrGFITest, clock.FromTime(time.Now()))
	}

	// Telemetry.
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if broker != "" {
		real, err := mqtt.NewRealPublisher(broker)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer real.Close()
		publisher = real
		mqttStatus = real
	}

	metrics.Register()

	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:      tick.Milliseconds(),
		HeartbeatMs: heartbeat.Milliseconds(),
		Broker:      broker,
		HTTPPort:    httpAddr,
		Mode:        cfg.Mode.String(),
		MaxAmps:     int64(cfg.MaxAmps),
		QuickCycle:  quickCycling,
	})
	tracker.Update(ctl.Snapshot())

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	// Start HTTP status server
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	var sched *schedule.Scheduler
	if hasEvents(cfg) {
		sched = schedule.New(cfg, dst.US)
	}

	log.Printf("started: mode=%s max=%s tick=%v broker=%s heartbeat=%v",
		cfg.Mode, status.FormatMilliamps(int64(cfg.MaxAmps)), tick, broker, heartbeat)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctl, publisher, mqttStatus, tracker, sched, heartbeat, time.Now, ticker.C, sigCh)
}

// loadConfig reads the persistence blob; anything wrong yields defaults.
func loadConfig(path string) config.Config {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("read config blob: %v, using defaults", err)
		}
		return config.Default()
	}
	return config.Decode(data)
}

func hasEvents(cfg config.Config) bool {
	for _, e := range cfg.Events {
		if e.Kind != config.EventNone {
			return true
		}
	}
	return false
}

func runLoop(ctl *coord.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, sched *schedule.Scheduler, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	lastHeartbeat := startTime
	lastStateLog := startTime
	lastCurrentLog := startTime

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if publisher != nil {
				event := mqtt.SystemEvent{
					Timestamp: now(),
					Event:     "SHUTDOWN",
					Reason:    signalName,
					Retained:  true,
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					snap := tracker.Snapshot()
					event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
				}
				if err := publisher.PublishSystem(event); err != nil {
					log.Printf("failed to publish shutdown event: %v", err)
				} else {
					log.Printf("published shutdown event")
				}
			}
			return nil

		case <-tick:
			t := now()
			ms := clock.FromTime(t)

			if sched != nil {
				switch sched.Check(t) {
				case config.EventPause:
					log.Printf("scheduled pause")
					ctl.Pause(ms)
				case config.EventUnpause:
					log.Printf("scheduled unpause")
					ctl.Unpause(ms)
				}
			}

			events := ctl.Tick(ms)
			snap := ctl.Snapshot()

			if tracker != nil {
				tracker.Update(snap)
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
			metrics.Observe(snap)
			metrics.CountEvents(events)

			for _, ev := range events {
				port := ev.Port.String()
				if ev.BothPorts {
					port = "BOTH"
				}
				if ev.Err != coord.ErrNone {
					log.Printf("event: %s port=%s err=%c", ev.Kind, port, ev.Err.Letter())
				} else {
					log.Printf("event: %s port=%s", ev.Kind, port)
				}
				if publisher != nil {
					if err := publisher.Publish(mqtt.FromCoord(ev, snap, t)); err != nil {
						log.Printf("publish error: %v", err)
						// Don't crash on publish failure
					}
				}
			}

			if t.Sub(lastStateLog) >= stateLogInterval {
				lastStateLog = t
				a, b := snap.Ports[coord.PortA], snap.Ports[coord.PortB]
				log.Printf("state: A=%s/%s B=%s/%s paused=%v", a.State, a.Status, b.State, b.Status, snap.Paused)
			}

			if t.Sub(lastCurrentLog) >= currentLogInterval {
				lastCurrentLog = t
				for i, p := range snap.Ports {
					if p.RelayClosed {
						log.Printf("current %c: %s (advertised %s)",
							'A'+i, status.FormatMilliamps(p.Amps), status.FormatMilliamps(p.AdvertisedAmps))
					}
				}
			}

			if publisher != nil && heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}
