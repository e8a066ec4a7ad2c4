package partialcache

import (
	"context"
	"errors"
	"sync"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/prometheus/client_golang/prometheus"
)

var _ stats.Tracker = &PrometheusTracker{}

// PrometheusTracker exposes stats as Prometheus collectors.
//
// Collectors are created on first use, label names are taken from the first call of a metric.
type PrometheusTracker struct {
	// Logger receives failures of metric updates, default no-op.
	Logger ctxd.Logger

	registerer prometheus.Registerer
	dropped    *prometheus.CounterVec

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusTracker creates a tracker that registers collectors with registerer.
func NewPrometheusTracker(registerer prometheus.Registerer) *PrometheusTracker {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricStatsError,
		Help: "Number of metric updates dropped because of label mismatch.",
	}, []string{"metric"})

	return &PrometheusTracker{
		Logger:     ctxd.NoOpLogger{},
		registerer: registerer,
		dropped:    register(registerer, errs),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Add increments counter.
func (t *PrometheusTracker) Add(ctx context.Context, name string, increment float64, labelsAndValues ...string) {
	labels, values := splitLabels(labelsAndValues)

	t.mu.Lock()
	vec, ok := t.counters[name]

	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, labels)
		vec = register(t.registerer, vec)
		t.counters[name] = vec
	}
	t.mu.Unlock()

	c, err := vec.GetMetricWithLabelValues(values...)
	if err != nil {
		t.fail(ctx, name, labels, err)

		return
	}

	c.Add(increment)
}

// Set updates gauge.
func (t *PrometheusTracker) Set(ctx context.Context, name string, absolute float64, labelsAndValues ...string) {
	labels, values := splitLabels(labelsAndValues)

	t.mu.Lock()
	vec, ok := t.gauges[name]

	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, labels)
		vec = register(t.registerer, vec)
		t.gauges[name] = vec
	}
	t.mu.Unlock()

	g, err := vec.GetMetricWithLabelValues(values...)
	if err != nil {
		t.fail(ctx, name, labels, err)

		return
	}

	g.Set(absolute)
}

// Observe adds value to histogram.
func (t *PrometheusTracker) Observe(ctx context.Context, name string, value float64, labelsAndValues ...string) {
	labels, values := splitLabels(labelsAndValues)

	t.mu.Lock()
	vec, ok := t.histograms[name]

	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name}, labels)
		vec = register(t.registerer, vec)
		t.histograms[name] = vec
	}
	t.mu.Unlock()

	h, err := vec.GetMetricWithLabelValues(values...)
	if err != nil {
		t.fail(ctx, name, labels, err)

		return
	}

	h.Observe(value)
}

// fail counts and logs dropped update, collector labels are fixed by the first update of a metric.
func (t *PrometheusTracker) fail(ctx context.Context, name string, labels []string, err error) {
	t.dropped.WithLabelValues(name).Inc()

	if t.Logger != nil {
		t.Logger.Warn(ctx, "failed to update metric", "metric", name, "labels", labels, "error", err)
	}
}

// register returns already registered collector of the same description if there is one.
func register[C prometheus.Collector](registerer prometheus.Registerer, c C) C {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}

	return c
}

func splitLabels(labelsAndValues []string) (labels, values []string) {
	for i := 0; i+1 < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
		values = append(values, labelsAndValues[i+1])
	}

	return labels, values
}
