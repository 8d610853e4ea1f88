// Package metrics exposes prometheus instrumentation for batch storage
// operations.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration.
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// Collector records batch and item outcomes and serves them over HTTP.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	batchCounter  *prometheus.CounterVec
	itemCounter   *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchSize     *prometheus.HistogramVec
	inflightItems prometheus.Gauge

	server *http.Server
}

// NewCollector creates a collector with its own registry.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "mediastash",
		}
	}
	if config.Namespace == "" {
		config.Namespace = "mediastash"
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	registry := prometheus.NewRegistry()

	collector := &Collector{
		config:   config,
		registry: registry,
		batchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "batches_total",
			Help:        "Completed batch runs by operation",
			ConstLabels: config.Labels,
		}, []string{"operation"}),
		itemCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "batch_items_total",
			Help:        "Per-item outcomes by operation and result",
			ConstLabels: config.Labels,
		}, []string{"operation", "result"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "batch_duration_seconds",
			Help:        "Wall-clock duration of batch runs",
			Buckets:     prometheus.ExponentialBuckets(0.01, 2, 12),
			ConstLabels: config.Labels,
		}, []string{"operation"}),
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "batch_size_items",
			Help:        "Number of items per batch run",
			Buckets:     prometheus.ExponentialBuckets(1, 2, 11),
			ConstLabels: config.Labels,
		}, []string{"operation"}),
		inflightItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "inflight_items",
			Help:        "Single-item operations currently in flight",
			ConstLabels: config.Labels,
		}),
	}

	registry.MustRegister(
		collector.batchCounter,
		collector.itemCounter,
		collector.batchDuration,
		collector.batchSize,
		collector.inflightItems,
	)

	return collector, nil
}

// RecordBatch records one completed batch run.
func (c *Collector) RecordBatch(operation string, total, succeeded, failed int, duration time.Duration) {
	if c == nil || c.registry == nil {
		return
	}
	c.batchCounter.WithLabelValues(operation).Inc()
	c.batchSize.WithLabelValues(operation).Observe(float64(total))
	c.batchDuration.WithLabelValues(operation).Observe(duration.Seconds())
	c.itemCounter.WithLabelValues(operation, "success").Add(float64(succeeded))
	c.itemCounter.WithLabelValues(operation, "failure").Add(float64(failed))
}

// ItemStarted marks one single-item operation entering flight.
func (c *Collector) ItemStarted() {
	if c == nil || c.registry == nil {
		return
	}
	c.inflightItems.Inc()
}

// ItemFinished marks one single-item operation leaving flight.
func (c *Collector) ItemFinished() {
	if c == nil || c.registry == nil {
		return
	}
	c.inflightItems.Dec()
}

// Start serves the metrics endpoint.
func (c *Collector) Start() error {
	if c.registry == nil {
		return nil
	}

	mux := http.NewServeMux()
	path := c.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// The collector keeps recording even if the endpoint dies.
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Default().Warn("metrics endpoint stopped", "error", err)
		}
	}()

	return nil
}

// Stop shuts down the metrics endpoint.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
