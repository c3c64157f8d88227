// Package metrics counts what each pipeline run read, estimated, dropped and
// persisted. The batch job has no HTTP surface, so the registry is exported
// as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "landfillmap"

// Drop reasons
const (
	ReasonNotLandfill = "not_landfill"
	ReasonNoMetadata  = "no_metadata"
)

// Collector holds the run counters on a private registry. A nil *Collector
// is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	runs                prometheus.Counter
	classificationsRead prometheus.Counter
	processed           prometheus.Counter
	persisted           prometheus.Counter
	dropped             *prometheus.CounterVec
	defaultPolygon      prometheus.Counter
	fallbackCategory    prometheus.Counter
	surfaceArea         prometheus.Histogram
	ch4                 prometheus.Histogram
	runDuration         prometheus.Histogram
}

// NewCollector creates a Collector with all metrics registered
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs started",
		}),
		classificationsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_read_total",
			Help:      "Classification rows read from the source files",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimates_total",
			Help:      "Detection estimates produced",
		}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimates_persisted_total",
			Help:      "Detection estimates accepted by the output sink",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Classification records excluded from estimation",
		}, []string{"reason"}),
		defaultPolygon: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "default_polygon_total",
			Help:      "Estimates computed on the default polygon",
		}),
		fallbackCategory: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_category_total",
			Help:      "Estimates whose label had no category mapping",
		}),
		surfaceArea: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "surface_area_m2",
			Help:      "Estimated surface area per site",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 10), // 100 m2 to ~26 km2
		}),
		ch4: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ch4_tonnes_per_year",
			Help:      "Estimated annual methane generation per site",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~163s
		}),
	}

	c.registry.MustRegister(
		c.runs,
		c.classificationsRead,
		c.processed,
		c.persisted,
		c.dropped,
		c.defaultPolygon,
		c.fallbackCategory,
		c.surfaceArea,
		c.ch4,
		c.runDuration,
	)
	return c
}

// Registry exposes the underlying registry, e.g. for tests or a push gateway
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RunStarted counts a pipeline run
func (c *Collector) RunStarted() {
	if c == nil {
		return
	}
	c.runs.Inc()
}

// RunFinished records how long a run took
func (c *Collector) RunFinished(d time.Duration) {
	if c == nil {
		return
	}
	c.runDuration.Observe(d.Seconds())
}

// ClassificationsRead adds n rows read from the classification file
func (c *Collector) ClassificationsRead(n int) {
	if c == nil {
		return
	}
	c.classificationsRead.Add(float64(n))
}

// Dropped counts a classification excluded for reason
func (c *Collector) Dropped(reason string) {
	if c == nil {
		return
	}
	c.dropped.WithLabelValues(reason).Inc()
}

// DefaultPolygon counts an estimate made on the default polygon
func (c *Collector) DefaultPolygon() {
	if c == nil {
		return
	}
	c.defaultPolygon.Inc()
}

// FallbackCategory counts a label that needed the fallback category
func (c *Collector) FallbackCategory() {
	if c == nil {
		return
	}
	c.fallbackCategory.Inc()
}

// Estimated records one produced estimate
func (c *Collector) Estimated(areaM2, ch4TonnesPerYear float64) {
	if c == nil {
		return
	}
	c.processed.Inc()
	c.surfaceArea.Observe(areaM2)
	c.ch4.Observe(ch4TonnesPerYear)
}

// Persisted adds n estimates accepted by the sink
func (c *Collector) Persisted(n int) {
	if c == nil {
		return
	}
	c.persisted.Add(float64(n))
}

// WriteTextfile writes the registry in the text exposition format for the
// node-exporter textfile collector
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
