// Package metrics exposes BriefClaw's Prometheus collectors. A nil *Recorder
// is valid and records nothing, so components take one optionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a private registry and the BriefClaw collectors.
type Recorder struct {
	registry *prometheus.Registry

	fetchTotal     *prometheus.CounterVec
	deliveryTotal  *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	chatTurnsTotal *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastRun        prometheus.Gauge
}

// New creates a Recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "briefclaw_fetch_total",
				Help: "Source fetches by source and result status",
			},
			[]string{"source", "status"},
		),
		deliveryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "briefclaw_delivery_total",
				Help: "Document deliveries by mode (rich, plain, failed)",
			},
			[]string{"mode"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "briefclaw_pipeline_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		chatTurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "briefclaw_chat_turns_total",
				Help: "Chat turns by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "briefclaw_pipeline_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "briefclaw_last_run_timestamp_seconds",
			Help: "Unix time of the last completed pipeline run",
		}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordFetch counts one source fetch.
func (r *Recorder) RecordFetch(source, status string) {
	if r == nil {
		return
	}
	r.fetchTotal.WithLabelValues(source, status).Inc()
}

// RecordDelivery counts one document delivery outcome.
func (r *Recorder) RecordDelivery(mode string) {
	if r == nil {
		return
	}
	r.deliveryTotal.WithLabelValues(mode).Inc()
}

// RecordRun counts one pipeline run and observes its duration.
func (r *Recorder) RecordRun(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(d.Seconds())
	r.lastRun.SetToCurrentTime()
}

// RecordChatTurn counts one chat turn.
func (r *Recorder) RecordChatTurn(outcome string) {
	if r == nil {
		return
	}
	r.chatTurnsTotal.WithLabelValues(outcome).Inc()
}
