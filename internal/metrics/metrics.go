// ABOUTME: Prometheus collectors for a running stream
// ABOUTME: Counts callbacks, frames, late callbacks and render durations
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sinetone/sinetone/pkg/audio"
	"github.com/sinetone/sinetone/pkg/audio/stream"
)

const namespace = "sinetone"

// Source is the stream being observed
type Source interface {
	ID() string
	Stats() stream.Stats
	Format() audio.Format
	BufferSize() int
}

// Metrics owns a private registry so tests and multiple streams never clash
// with the global default registry
type Metrics struct {
	registry       *prometheus.Registry
	renderDuration prometheus.Histogram
	failures       prometheus.Counter

	mu     sync.Mutex
	source Source
}

// New creates the collectors that are fed by stream callbacks
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent in the sample provider per callback",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_failures_total",
			Help:      "Provider failures that stopped the stream",
		}),
	}

	m.registry.MustRegister(
		m.renderDuration,
		m.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRender records one provider call; use as stream.Config.OnRender
func (m *Metrics) ObserveRender(d time.Duration) {
	m.renderDuration.Observe(d.Seconds())
}

// ObserveError records a provider failure; use as stream.Config.OnError
func (m *Metrics) ObserveError(error) {
	m.failures.Inc()
}

// Attach registers collectors that read the stream's statistics on scrape
func (m *Metrics) Attach(src Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.source != nil {
		return errors.New("metrics already attached to a stream")
	}

	labels := prometheus.Labels{"stream": src.ID()}
	counter := func(name, help string, value func(stream.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(value(src.Stats())) })
	}

	format := src.Format()
	collectorsToRegister := []prometheus.Collector{
		counter("callbacks_total", "Provider invocations", func(s stream.Stats) uint64 { return s.Callbacks }),
		counter("frames_total", "Frames generated", func(s stream.Stats) uint64 { return s.Frames }),
		counter("late_callbacks_total", "Provider calls that took longer than one buffer period", func(s stream.Stats) uint64 { return s.Late }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "state",
			Help:        "Stream state (0 created, 1 started, 2 stopped)",
			ConstLabels: labels,
		}, func() float64 { return float64(src.Stats().State) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "buffer_period_seconds",
			Help:        "Time between provider calls",
			ConstLabels: labels,
		}, func() float64 { return format.PeriodDuration(src.BufferSize()).Seconds() }),
	}

	for _, c := range collectorsToRegister {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	m.source = src
	return nil
}

// Source returns the attached stream, or nil
func (m *Metrics) Source() Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}
