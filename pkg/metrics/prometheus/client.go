// Package prometheus implements metrics.Client on top of the Prometheus
// client library. Counters and histograms are registered lazily on first use.
package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/architeacher/device-catalog/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
)

var _ metrics.Client = (*MetricsClient)(nil)

type (
	MetricsClient struct {
		namespace  string
		registry   *prometheus.Registry
		buckets    []float64
		mu         sync.Mutex
		counters   map[string]*counterVec
		histograms map[string]*histogramVec
		onError    func(error)
	}

	counterVec struct {
		vec    *prometheus.CounterVec
		labels []string
	}

	histogramVec struct {
		vec    *prometheus.HistogramVec
		labels []string
	}

	Option func(*MetricsClient)
)

// WithBuckets overrides the histogram buckets. The default is
// prometheus.DefBuckets.
func WithBuckets(buckets []float64) Option {
	return func(c *MetricsClient) {
		c.buckets = buckets
	}
}

// WithErrorHandler receives registration and label mismatch errors, which
// are otherwise dropped.
func WithErrorHandler(fn func(error)) Option {
	return func(c *MetricsClient) {
		c.onError = fn
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(c *MetricsClient) {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

func NewMetricsClient(namespace string, opts ...Option) *MetricsClient {
	client := &MetricsClient{
		namespace:  metrics.SanitizeName(namespace),
		registry:   prometheus.NewRegistry(),
		buckets:    prometheus.DefBuckets,
		counters:   make(map[string]*counterVec),
		histograms: make(map[string]*histogramVec),
		onError:    func(error) {},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func (c *MetricsClient) Inc(_ context.Context, key string, value any, attributes ...attribute.KeyValue) {
	amount, ok := toFloat(value)
	if !ok {
		c.onError(fmt.Errorf("metric %s: unsupported counter value %T", key, value))

		return
	}

	if amount < 0 {
		c.onError(fmt.Errorf("metric %s: counters cannot decrease", key))

		return
	}

	labelNames, labelValues := splitAttributes(attributes)

	counter, err := c.counter(key, labelNames)
	if err != nil {
		c.onError(err)

		return
	}

	counter.WithLabelValues(labelValues...).Add(amount)
}

func (c *MetricsClient) Observe(_ context.Context, key string, value float64, attributes ...attribute.KeyValue) {
	labelNames, labelValues := splitAttributes(attributes)

	histogram, err := c.histogram(key, labelNames)
	if err != nil {
		c.onError(err)

		return
	}

	histogram.WithLabelValues(labelValues...).Observe(value)
}

func (c *MetricsClient) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *MetricsClient) Shutdown(_ context.Context) error {
	return nil
}

func (c *MetricsClient) counter(key string, labelNames []string) (*prometheus.CounterVec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.counters[key]; ok {
		if !slices.Equal(existing.labels, labelNames) {
			return nil, fmt.Errorf("metric %s: labels %v do not match %v", key, labelNames, existing.labels)
		}

		return existing.vec, nil
	}

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      metrics.SanitizeName(key),
		Help:      key,
	}, labelNames)

	if err := c.registry.Register(vec); err != nil {
		return nil, fmt.Errorf("registering counter %s: %w", key, err)
	}

	c.counters[key] = &counterVec{vec: vec, labels: labelNames}

	return vec, nil
}

func (c *MetricsClient) histogram(key string, labelNames []string) (*prometheus.HistogramVec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.histograms[key]; ok {
		if !slices.Equal(existing.labels, labelNames) {
			return nil, fmt.Errorf("metric %s: labels %v do not match %v", key, labelNames, existing.labels)
		}

		return existing.vec, nil
	}

	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.namespace,
		Name:      metrics.SanitizeName(key),
		Help:      key,
		Buckets:   c.buckets,
	}, labelNames)

	if err := c.registry.Register(vec); err != nil {
		return nil, fmt.Errorf("registering histogram %s: %w", key, err)
	}

	c.histograms[key] = &histogramVec{vec: vec, labels: labelNames}

	return vec, nil
}

// splitAttributes sorts attributes by key so label order does not depend on
// the call site.
func splitAttributes(attributes []attribute.KeyValue) ([]string, []string) {
	sorted := slices.Clone(attributes)
	slices.SortFunc(sorted, func(a, b attribute.KeyValue) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		default:
			return 0
		}
	})

	names := make([]string, len(sorted))
	values := make([]string, len(sorted))

	for index, attr := range sorted {
		names[index] = metrics.SanitizeName(string(attr.Key))
		values[index] = attr.Value.Emit()
	}

	return names, values
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
