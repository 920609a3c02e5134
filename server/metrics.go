package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/fastheat"
)

// Metrics are the prometheus collectors of a Server, kept in their own
// registry
type Metrics struct {
	reg *prometheus.Registry

	runs   *prometheus.CounterVec
	rate   *prometheus.GaugeVec
	faults prometheus.Counter
}

// NewMetrics registers the collectors.  connected reports 1 while the board
// is connected.
func NewMetrics(connected func() float64) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nanocontrol",
			Name:      "fastheat_runs_total",
			Help:      "Fast heating runs by result.",
		}, []string{"result"}),
		rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nanocontrol",
			Name:      "scan_rate_hz",
			Help:      "Sample rate achieved by the hardware in the last run.",
		}, []string{"subsystem"}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nanocontrol",
			Name:      "hardware_faults_total",
			Help:      "Errors reported by the DAQ driver.",
		}),
	}
	m.reg.MustRegister(m.runs, m.rate, m.faults,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "nanocontrol",
			Name:      "device_connected",
			Help:      "1 while the DAQ board is connected.",
		}, connected))
	return m
}

// Handler serves the registry in the text exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, e.g. to tests
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }

func (m *Metrics) fault(err error) {
	if daq.IsHardwareFault(err) {
		m.faults.Inc()
	}
}

func (m *Metrics) observeRun(res *fastheat.Result, err error) {
	if err != nil {
		m.runs.WithLabelValues(string(fastheat.Failed)).Inc()
		m.fault(err)
		return
	}
	m.runs.WithLabelValues(string(fastheat.Finished)).Inc()
	m.rate.WithLabelValues("ao").Set(res.AORate)
	m.rate.WithLabelValues("ai").Set(res.AIRate)
}
