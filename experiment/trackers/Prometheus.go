package trackers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samuelfneumann/statecover/experiment/tracker"
)

// Prometheus exports the batch metrics of a run as Prometheus
// collectors registered on a caller-provided registry
type Prometheus struct {
	episodes        prometheus.Counter
	failures        prometheus.Counter
	updates         prometheus.Counter
	distinct        prometheus.Gauge
	coverage        prometheus.Gauge
	epsilon         prometheus.Gauge
	batchSize       prometheus.Gauge
	emaSeconds      prometheus.Gauge
	statesPerSecond prometheus.Gauge
	batchSeconds    prometheus.Histogram
}

// NewPrometheus registers the statecover collectors on reg. A nil reg
// uses prometheus.DefaultRegisterer. Registering twice on the same
// registry panics.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Prometheus{
		episodes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "statecover",
			Name:      "episodes_total",
			Help:      "Episodes dispatched, failed ones included.",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "statecover",
			Name:      "episode_failures_total",
			Help:      "Episodes that returned an error.",
		}),
		updates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "statecover",
			Name:      "value_updates_total",
			Help:      "Q-value updates applied by episode learners.",
		}),
		distinct: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "statecover",
			Name:      "distinct_states",
			Help:      "Distinct discretized states visited.",
		}),
		coverage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "statecover",
			Name:      "coverage_ratio",
			Help:      "Distinct states over the theoretical state-space size.",
		}),
		epsilon: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "statecover",
			Name:      "exploration_rate",
			Help:      "Exploration rate of the last batch.",
		}),
		batchSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "statecover",
			Name:      "batch_size",
			Help:      "Episodes in the last batch.",
		}),
		emaSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "statecover",
			Name:      "batch_duration_ema_seconds",
			Help:      "Smoothed batch wall-clock duration.",
		}),
		statesPerSecond: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "statecover",
			Name:      "new_states_per_second",
			Help:      "New distinct states per second in the last batch.",
		}),
		batchSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statecover",
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock duration of a batch.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

// Track implements the tracker.Tracker interface
func (p *Prometheus) Track(r tracker.Record) error {
	p.episodes.Add(float64(r.BatchEnd - r.BatchStart))
	p.failures.Add(float64(r.Failures))
	p.updates.Add(float64(r.Updates))
	p.distinct.Set(float64(r.Cumulative))
	p.coverage.Set(r.CoveragePercent / 100)
	p.epsilon.Set(r.Epsilon)
	p.batchSize.Set(float64(r.BatchSize))
	p.emaSeconds.Set(r.EMASeconds)
	p.statesPerSecond.Set(r.StatesPerSecond)
	p.batchSeconds.Observe(r.BatchSeconds)
	return nil
}

// Close implements the tracker.Tracker interface. Collectors stay
// registered so a final scrape still sees the last values.
func (p *Prometheus) Close() error { return nil }
