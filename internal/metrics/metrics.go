// Package metrics exposes pipeline counters through Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "netscapex"

// Metrics holds the collectors updated by the pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	packets     prometheus.Counter
	flows       prometheus.Counter
	detections  *prometheus.CounterVec
	riskScore   prometheus.Histogram
	runDuration prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Analysis runs by outcome.",
		}, []string{"outcome"}),
		packets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Packet records ingested.",
		}),
		flows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_total",
			Help:      "Flows assembled.",
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Flows flagged, by detector.",
		}, []string{"detector"}),
		riskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_risk_score",
			Help:      "Distribution of fused flow risk scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of an analysis run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}

	m.registry.MustRegister(m.runs, m.packets, m.flows, m.detections, m.riskScore, m.runDuration)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveInput records the size of a run's input.
func (m *Metrics) ObserveInput(packets, flows int) {
	if m == nil {
		return
	}
	m.packets.Add(float64(packets))
	m.flows.Add(float64(flows))
}

// ObserveDetection counts a flagged flow for the named detector.
func (m *Metrics) ObserveDetection(detector string) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(detector).Inc()
}

// ObserveRisk records one flow's risk score.
func (m *Metrics) ObserveRisk(score float64) {
	if m == nil {
		return
	}
	m.riskScore.Observe(score)
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(d.Seconds())
}

// WriteTextfile writes the current metrics in the Prometheus text format,
// for pickup by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	return nil
}
