// Package metrics exposes the charger's operational state as Prometheus
// gauges and counters, served by the web status server on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/hydra-evse/internal/coord"
)

var (
	advertisedAmps = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evse_advertised_milliamps",
			Help: "Current advertised on the pilot, per port.",
		},
		[]string{
			"port",
		},
	)
	chargeAmps = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evse_charge_milliamps",
			Help: "Measured RMS charge current, per port.",
		},
		[]string{
			"port",
		},
	)
	relayClosed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evse_relay_closed",
			Help: "Whether the contactor is commanded closed, per port.",
		},
		[]string{
			"port",
		},
	)
	portStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evse_port_status",
			Help: "Display status code per port (0 unplugged through 5 error).",
		},
		[]string{
			"port",
		},
	)
	paused = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "evse_paused",
			Help: "Whether charging is paused by schedule or operator.",
		},
	)
	gfiTrips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "evse_gfi_trips_total",
			Help: "Ground-fault trips since start.",
		},
	)
	faults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evse_faults_total",
			Help: "Faults raised, by error code.",
		},
		[]string{
			"code",
		},
	)
)

// Register installs the collectors on the default registry.
func Register() {
	prometheus.MustRegister(
		advertisedAmps,
		chargeAmps,
		relayClosed,
		portStatus,
		paused,
		gfiTrips,
		faults,
	)
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// Observe refreshes the gauges from a coordinator snapshot.
func Observe(snap coord.Snapshot) {
	for i, p := range snap.Ports {
		port := string(coord.Port(i).Letter())
		advertisedAmps.WithLabelValues(port).Set(float64(p.AdvertisedAmps))
		chargeAmps.WithLabelValues(port).Set(float64(p.Amps))
		relayClosed.WithLabelValues(port).Set(boolGauge(p.RelayClosed))
		portStatus.WithLabelValues(port).Set(float64(p.Status))
	}
	paused.Set(boolGauge(snap.Paused))
}

// CountEvents bumps the counters for the tick's events.
func CountEvents(events []coord.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case coord.EvGFITrip:
			gfiTrips.Inc()
			faults.WithLabelValues(string(ev.Err.Letter())).Inc()
		case coord.EvFault:
			faults.WithLabelValues(string(ev.Err.Letter())).Inc()
		}
	}
}
