// Package metrics counts what a voxcap run did and dumps it in the
// Prometheus text format for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voxcap/recorder"
)

type Metrics struct {
	registry *prometheus.Registry

	SessionsStarted prometheus.Counter
	Transitions     *prometheus.CounterVec
	CapturedFrames  prometheus.Counter
	Exports         *prometheus.CounterVec
	ExportDuration  *prometheus.HistogramVec
	TakeDuration    prometheus.Histogram
	LibraryEntries  prometheus.Gauge
}

// New registers every metric on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "voxcap_sessions_started_total",
			Help: "Recording sessions started",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxcap_state_transitions_total",
			Help: "Recorder state transitions",
		}, []string{"from", "to"}),
		CapturedFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "voxcap_captured_frames_total",
			Help: "Sample frames accepted from the capture device",
		}),
		Exports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxcap_exports_total",
			Help: "Export attempts by format and result",
		}, []string{"format", "result"}),
		ExportDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxcap_export_duration_seconds",
			Help:    "Time to decode and encode one export",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"format"}),
		TakeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxcap_take_duration_seconds",
			Help:    "Audio length of finished takes",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		LibraryEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxcap_library_entries",
			Help: "Recordings in the local library",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Transition implements recorder.Observer.
func (m *Metrics) Transition(from, to recorder.State) {
	m.Transitions.WithLabelValues(from.String(), to.String()).Inc()
	if to == recorder.Recording && (from == recorder.Idle || from == recorder.Stopped) {
		m.SessionsStarted.Inc()
	}
}

// Captured implements recorder.Observer.
func (m *Metrics) Captured(frames int) {
	m.CapturedFrames.Add(float64(frames))
}

// Exported implements pipeline.ExportObserver.
func (m *Metrics) Exported(format string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Exports.WithLabelValues(format, result).Inc()
	m.ExportDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (m *Metrics) TakeFinished(audioSeconds float64) {
	m.TakeDuration.Observe(audioSeconds)
}

// WriteTextfile atomically replaces path with the current values. An
// empty path does nothing.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
