package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

const namespace = "specht"

// Recorder implements port.Metrics over a private prometheus registry
type Recorder struct {
	registry *prometheus.Registry

	passesTotal     *prometheus.CounterVec
	passDuration    prometheus.Histogram
	passItems       *prometheus.CounterVec
	storeCalls      *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec
	statusChanges   *prometheus.CounterVec
	tunnels         prometheus.Gauge
	lastPassSuccess prometheus.Gauge
}

// NewRecorder creates a Recorder and registers its collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "passes_total",
				Help:      "Total number of reconcile passes by outcome",
			},
			[]string{"outcome"},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "pass_duration_seconds",
				Help:      "Reconcile pass duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		passItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "items_total",
				Help:      "Definitions handled by reconcile passes by result",
			},
			[]string{"result"},
		),
		storeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "calls_total",
				Help:      "Total number of registry calls by operation and status",
			},
			[]string{"op", "status"},
		),
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "call_duration_seconds",
				Help:      "Registry call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		statusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "status_changes_total",
				Help:      "Total number of applied tunnel status changes",
			},
			[]string{"status"},
		),
		tunnels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tunnels",
				Help:      "Number of tunnels in the state index",
			},
		),
		lastPassSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "last_pass_success",
				Help:      "1 if the last reconcile pass completed without a fatal error",
			},
		),
	}

	r.registry.MustRegister(
		r.passesTotal,
		r.passDuration,
		r.passItems,
		r.storeCalls,
		r.storeDuration,
		r.statusChanges,
		r.tunnels,
		r.lastPassSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying prometheus registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns the /metrics HTTP handler
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObservePass records a finished reconcile pass
func (r *Recorder) ObservePass(report *model.PassReport) {
	outcome := "ok"
	switch {
	case report.Failed():
		outcome = "fatal"
	case len(report.Errors) > 0:
		outcome = "partial"
	}
	r.passesTotal.WithLabelValues(outcome).Inc()
	r.passDuration.Observe(report.Duration().Seconds())

	r.passItems.WithLabelValues("removed").Add(float64(report.Removed))
	r.passItems.WithLabelValues("changed").Add(float64(len(report.Changed)))
	r.passItems.WithLabelValues("unchanged").Add(float64(len(report.Unchanged)))
	r.passItems.WithLabelValues("failed").Add(float64(len(report.Errors)))

	if report.Failed() {
		r.lastPassSuccess.Set(0)
	} else {
		r.lastPassSuccess.Set(1)
	}
}

// ObserveStoreCall records one registry call
func (r *Recorder) ObserveStoreCall(op string, elapsed time.Duration, err error) {
	status := "ok"
	switch {
	case errors.Is(err, model.ErrStoreTimeout):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	r.storeCalls.WithLabelValues(op, status).Inc()
	r.storeDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveStatusChange records one applied status event
func (r *Recorder) ObserveStatusChange(status model.ConnectionStatus) {
	r.statusChanges.WithLabelValues(string(status)).Inc()
}

// SetTunnels records the size of the tunnel index
func (r *Recorder) SetTunnels(n int) {
	r.tunnels.Set(float64(n))
}

// Ensure Recorder implements port.Metrics
var _ port.Metrics = (*Recorder)(nil)
