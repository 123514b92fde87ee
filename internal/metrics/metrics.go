// Package metrics exposes the driver's Prometheus collectors and the
// /metrics and /health HTTP endpoints.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "camera_rgb"

// Metrics holds every collector the driver updates.
//
// All vectors are labelled by session_path so multiple cameras in one
// process stay distinguishable.
type Metrics struct {
	registry *prometheus.Registry

	UnitsDecoded    *prometheus.CounterVec
	UnitsSkipped    *prometheus.CounterVec
	FramesWritten   *prometheus.CounterVec
	FramesDropped   *prometheus.CounterVec
	FramesPublished *prometheus.CounterVec
	PublishErrors   *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec
	PipelineState   *prometheus.GaugeVec
}

// New creates a registry with the driver collectors plus Go runtime metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		UnitsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "producer",
			Name:      "units_decoded_total",
			Help:      "Decoded units received from the decoder",
		}, []string{"session_path"}),

		UnitsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "producer",
			Name:      "units_skipped_total",
			Help:      "Decoded units not written to the slot, by reason",
		}, []string{"session_path", "reason"}),

		FramesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slot",
			Name:      "frames_written_total",
			Help:      "Frames written to the latest-frame slot",
		}, []string{"session_path"}),

		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slot",
			Name:      "frames_dropped_total",
			Help:      "Frames overwritten before the consumer read them",
		}, []string{"session_path"}),

		FramesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "messages_published_total",
			Help:      "Messages accepted by the publish transport",
		}, []string{"session_path", "transport"}),

		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "errors_total",
			Help:      "Messages the publish transport rejected",
		}, []string{"session_path", "transport"}),

		PublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "publish_duration_seconds",
			Help:      "Time spent in a single publish call",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"transport"}),

		PipelineState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "state",
			Help:      "1 for the pipeline's current state, 0 otherwise",
		}, []string{"session_path", "state"}),
	}

	m.registry.MustRegister(
		m.UnitsDecoded,
		m.UnitsSkipped,
		m.FramesWritten,
		m.FramesDropped,
		m.FramesPublished,
		m.PublishErrors,
		m.PublishDuration,
		m.PipelineState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetState flips the pipeline state gauge of one camera to state.
func (m *Metrics) SetState(sessionPath string, states []string, state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.PipelineState.WithLabelValues(sessionPath, s).Set(v)
	}
}
