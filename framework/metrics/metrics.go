// Package metrics exports container activity as Prometheus metrics.
//
// The Collector is a container.Interceptor. Pass it to the container and
// expose its registry:
//
//	m := metrics.New(metrics.WithNamespace("app"))
//	c, err := container.New(container.WithCatalog(cat), container.WithInterceptors(m))
//	http.Handle("/metrics", m.Handler())
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/meta"
)

// Collector counts realized beans per type, times their initialization and
// records destroy hook outcomes.
type Collector struct {
	container.BaseInterceptor

	registry *prometheus.Registry

	realized  *prometheus.CounterVec
	initTime  prometheus.Histogram
	destroyed *prometheus.CounterVec

	mu      sync.Mutex
	started map[string]time.Time
	now     func() time.Time
}

type options struct {
	namespace string
	runtime   bool
	now       func() time.Time
}

// Option configures a Collector.
type Option func(*options)

// WithNamespace prefixes every metric name.
func WithNamespace(ns string) Option { return func(o *options) { o.namespace = ns } }

// WithRuntimeCollectors also registers the Go runtime and process collectors.
func WithRuntimeCollectors() Option { return func(o *options) { o.runtime = true } }

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// New returns a Collector with its own registry.
func New(opts ...Option) *Collector {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Collector{
		registry: prometheus.NewRegistry(),
		started:  make(map[string]time.Time),
		now:      o.now,
	}

	m.realized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: o.namespace,
			Subsystem: "container",
			Name:      "beans_realized_total",
			Help:      "Total number of realized beans by produced type",
		},
		[]string{"type"},
	)
	m.initTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: o.namespace,
			Subsystem: "container",
			Name:      "bean_initialization_seconds",
			Help:      "Time from BeforeInitialization to AfterInitialization",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
		},
	)
	m.destroyed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: o.namespace,
			Subsystem: "container",
			Name:      "beans_destroyed_total",
			Help:      "Total number of destroy hooks run by result",
		},
		[]string{"result"},
	)
	m.registry.MustRegister(m.realized, m.initTime, m.destroyed)

	if o.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

func (m *Collector) BeforeInitialization(instance any, name string) (any, error) {
	m.mu.Lock()
	m.started[name] = m.now()
	m.mu.Unlock()
	return instance, nil
}

func (m *Collector) AfterInitialization(instance any, name string) (any, error) {
	m.realized.WithLabelValues(typeLabel(instance)).Inc()

	m.mu.Lock()
	start, ok := m.started[name]
	delete(m.started, name)
	m.mu.Unlock()
	if ok {
		m.initTime.Observe(m.now().Sub(start).Seconds())
	}
	return instance, nil
}

// AfterDestroy implements container.DestroyObserver.
func (m *Collector) AfterDestroy(_ string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.destroyed.WithLabelValues(result).Inc()
}

// Registry returns the collector's registry.
func (m *Collector) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func typeLabel(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}

// ── Provider ──────────────────────────────────────────────────────────────────

// BeanName is the name the Provider registers the Collector under.
const BeanName = "metricsCollector"

// Provider registers a Collector as an interceptor bean. Its namespace is
// read from the metrics.namespace property.
type Provider struct {
	container.BaseProvider
}

func (p *Provider) Register(reg *container.Registry) error {
	ctor := func(ns string, runtime bool) *Collector {
		opts := []Option{WithNamespace(ns)}
		if runtime {
			opts = append(opts, WithRuntimeCollectors())
		}
		return New(opts...)
	}
	return reg.Define(BeanName, ctor,
		container.Order(0),
		container.Params(
			meta.Value("${metrics.namespace:}"),
			meta.Value("${metrics.runtime:false}"),
		),
	)
}
