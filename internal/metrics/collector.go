// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deltagraph/deltagraph/internal/graph"
)

const namespace = "deltagraph"

// Collector records graph metrics. It implements graph.Progress, so it can be
// passed straight to a traversal.
type Collector struct {
	reg *prometheus.Registry

	discovered prometheus.Counter
	processed  prometheus.Counter

	transformSeconds  prometheus.Histogram
	transformFailures prometheus.Counter

	deltaSeconds  *prometheus.HistogramVec
	deltaModules  *prometheus.CounterVec
	deltaFailures prometheus.Counter
	resets        prometheus.Counter
	modules       prometheus.Gauge
}

var _ graph.Progress = (*Collector)(nil)

// New creates a Collector on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		reg: reg,
		discovered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "traversal",
			Name:      "modules_discovered_total",
			Help:      "Modules found while traversing dependencies.",
		}),
		processed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "traversal",
			Name:      "modules_processed_total",
			Help:      "Modules whose dependencies have been fully processed.",
		}),
		transformSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "duration_seconds",
			Help:      "Time spent transforming a single module.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		transformFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "failures_total",
			Help:      "Transforms that returned an error.",
		}),
		deltaSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delta",
			Name:      "duration_seconds",
			Help:      "Time taken to compute a delta.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"reset"}),
		deltaModules: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delta",
			Name:      "modules_total",
			Help:      "Modules reported by deltas, by kind of change.",
		}, []string{"change"}),
		deltaFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delta",
			Name:      "failures_total",
			Help:      "Delta computations that failed and left their changes queued.",
		}),
		resets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "resets_total",
			Help:      "Deltas that rebuilt the graph from its entry points.",
		}),
		modules: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "modules",
			Help:      "Modules currently in the graph.",
		}),
	}
}

func (c *Collector) DependencyDiscovered() { c.discovered.Inc() }

func (c *Collector) DependencyProcessed() { c.processed.Inc() }

// Delta describes one finished delta computation.
type Delta struct {
	Duration                 time.Duration
	Added, Modified, Deleted int
	Reset                    bool
	// GraphSize is the number of modules after the delta was applied.
	GraphSize int
}

// ObserveDelta records a successful delta.
func (c *Collector) ObserveDelta(d Delta) {
	reset := "false"
	if d.Reset {
		reset = "true"
		c.resets.Inc()
	}
	c.deltaSeconds.WithLabelValues(reset).Observe(d.Duration.Seconds())
	c.deltaModules.WithLabelValues("added").Add(float64(d.Added))
	c.deltaModules.WithLabelValues("modified").Add(float64(d.Modified))
	c.deltaModules.WithLabelValues("deleted").Add(float64(d.Deleted))
	c.modules.Set(float64(d.GraphSize))
}

// ObserveDeltaFailure records a delta that returned an error.
func (c *Collector) ObserveDeltaFailure(graphSize int) {
	c.deltaFailures.Inc()
	c.modules.Set(float64(graphSize))
}

// Registry returns the registry backing c.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

type instrumented[T any] struct {
	next graph.Transformer[T]
	c    *Collector
}

// InstrumentTransformer wraps t so every call is timed and failures are
// counted. Cancellations are not counted as failures.
func InstrumentTransformer[T any](c *Collector, t graph.Transformer[T]) graph.Transformer[T] {
	return &instrumented[T]{next: t, c: c}
}

func (i *instrumented[T]) Transform(ctx context.Context, path string) (graph.TransformResult[T], error) {
	start := time.Now()
	res, err := i.next.Transform(ctx, path)
	i.c.transformSeconds.Observe(time.Since(start).Seconds())
	if err != nil && ctx.Err() == nil {
		i.c.transformFailures.Inc()
	}
	return res, err
}
