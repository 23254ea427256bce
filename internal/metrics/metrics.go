// Package metrics exposes the dashboard core's Prometheus collectors.
package metrics

import (
	"time"

	"floorpulse-backend/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "floorpulse"

type Metrics struct {
	scans        *prometheus.CounterVec
	pollRuns     *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	predicted    prometheus.Gauge
	actual       prometheus.Gauge
	target       prometheus.Gauge
	present      prometheus.Gauge
	components   prometheus.Gauge
	efficiency   prometheus.Gauge
	fallbacks    prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Badge scans by outcome.",
		}, []string{"outcome"}),
		pollRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_runs_total",
			Help:      "Poller runs by poller and result.",
		}, []string{"poller", "result"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Fetch duration per poller run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"poller"}),
		predicted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "predicted_completion",
			Help:      "Latest predicted completion.",
		}),
		actual: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actual_completion",
			Help:      "Latest actual completion estimate.",
		}),
		target: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_completion",
			Help:      "Latest target completion.",
		}),
		present: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_present",
			Help:      "Employees currently checked in.",
		}),
		components: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "available_components",
			Help:      "Sum of stock quantities.",
		}),
		efficiency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "efficiency_percent",
			Help:      "Actual over predicted completion.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_fallbacks_total",
			Help:      "Passes that used the fallback prediction.",
		}),
	}
	reg.MustRegister(m.scans, m.pollRuns, m.pollDuration, m.predicted, m.actual,
		m.target, m.present, m.components, m.efficiency, m.fallbacks)
	return m
}

func (m *Metrics) ObserveScan(outcome domain.ScanOutcome) {
	m.scans.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) ObserveRun(name string, d time.Duration, err error, delivered bool) {
	result := "ok"
	switch {
	case !delivered:
		result = "discarded"
	case err != nil:
		result = "error"
	}
	m.pollRuns.WithLabelValues(name, result).Inc()
	m.pollDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) ObserveMetrics(dm domain.DashboardMetrics) {
	m.predicted.Set(dm.PredictedCompletion)
	m.actual.Set(dm.ActualCompletion)
	m.target.Set(dm.TargetCompletion)
	m.present.Set(float64(dm.NumWorkersPresent))
	m.components.Set(dm.AvailableComponents)
	m.efficiency.Set(dm.Efficiency)
	if dm.PredictionFallback {
		m.fallbacks.Inc()
	}
}
