// Package prometheus exports build and search metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc := pgprom.NewCollector(reg, "pointgrid")
//	tbl, err := pointgrid.BuildSpatialHashTable(ctx, pts, r, splits, f, max, pointgrid.WithMetricsCollector(mc))
package prometheus

import (
	"time"

	"github.com/hupe1980/pointgrid"
	prom "github.com/prometheus/client_golang/prometheus"
)

// Collector implements pointgrid.MetricsCollector with Prometheus metrics.
type Collector struct {
	latency   *prom.HistogramVec
	ops       *prom.CounterVec
	points    prom.Counter
	buckets   prom.Histogram
	queries   prom.Counter
	neighbors prom.Counter
}

var _ pointgrid.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics under namespace and registers them with
// reg. A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prom.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	c := &Collector{
		latency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of table builds and radius searches",
			Buckets:   prom.DefBuckets,
		}, []string{"op", "status"}),
		ops: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Table builds and radius searches by outcome",
		}, []string{"op", "status"}),
		points: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_points_total",
			Help:      "Points indexed by successful builds",
		}),
		buckets: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "table_buckets",
			Help:      "Bucket count of built tables",
			Buckets:   prom.ExponentialBuckets(1, 4, 14),
		}),
		queries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries answered by successful searches",
		}),
		neighbors: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "neighbors_total",
			Help:      "Neighbors emitted by successful searches",
		}),
	}
	reg.MustRegister(c.latency, c.ops, c.points, c.buckets, c.queries, c.neighbors)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordBuild implements pointgrid.MetricsCollector.
func (c *Collector) RecordBuild(points int, buckets int64, d time.Duration, err error) {
	s := status(err)
	c.latency.WithLabelValues("build", s).Observe(d.Seconds())
	c.ops.WithLabelValues("build", s).Inc()
	if err != nil {
		return
	}
	c.points.Add(float64(points))
	c.buckets.Observe(float64(buckets))
}

// RecordSearch implements pointgrid.MetricsCollector.
func (c *Collector) RecordSearch(queries int, neighbors int64, d time.Duration, err error) {
	s := status(err)
	c.latency.WithLabelValues("search", s).Observe(d.Seconds())
	c.ops.WithLabelValues("search", s).Inc()
	if err != nil {
		return
	}
	c.queries.Add(float64(queries))
	c.neighbors.Add(float64(neighbors))
}
