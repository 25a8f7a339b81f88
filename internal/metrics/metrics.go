// Package metrics exposes fetch and snapshot metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fraudviz"

// Collector holds all Prometheus metrics for the application.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	SnapshotNodes prometheus.Gauge
	SnapshotEdges prometheus.Gauge
	Commits       prometheus.Counter
	StaleLoads    prometheus.Counter
	BreakerState  *prometheus.GaugeVec
	Commands      *prometheus.CounterVec
}

// New creates a collector on its own registry, so tests can create as
// many as they like without duplicate registration.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_total",
				Help:      "Total number of source fetches",
			},
			[]string{"endpoint", "status"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Source fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		SnapshotNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_nodes",
			Help:      "Nodes in the committed snapshot",
		}),
		SnapshotEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_edges",
			Help:      "Edges in the committed snapshot",
		}),
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_commits_total",
			Help:      "Total number of committed snapshots",
		}),
		StaleLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_loads_total",
			Help:      "Loads discarded because a newer load committed first",
		}),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Explorer commands applied",
			},
			[]string{"command", "result"},
		),
	}

	c.registry.MustRegister(
		c.FetchTotal,
		c.FetchDuration,
		c.SnapshotNodes,
		c.SnapshotEdges,
		c.Commits,
		c.StaleLoads,
		c.BreakerState,
		c.Commands,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one fetch. status is the HTTP status, 0 for a
// transport error, or -1 for a non-HTTP source.
func (c *Collector) ObserveFetch(endpoint string, status int, d time.Duration) {
	if c == nil {
		return
	}
	label := "ok"
	switch {
	case status == 0:
		label = "error"
	case status > 0:
		label = strconv.Itoa(status)
	}
	c.FetchTotal.WithLabelValues(endpoint, label).Inc()
	c.FetchDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveCommit records a committed snapshot's size.
func (c *Collector) ObserveCommit(nodes, edges int) {
	if c == nil {
		return
	}
	c.Commits.Inc()
	c.SnapshotNodes.Set(float64(nodes))
	c.SnapshotEdges.Set(float64(edges))
}

// ObserveStale records a discarded load.
func (c *Collector) ObserveStale() {
	if c == nil {
		return
	}
	c.StaleLoads.Inc()
}

// SetBreakerState records a circuit breaker transition.
func (c *Collector) SetBreakerState(name string, state int) {
	if c == nil {
		return
	}
	c.BreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveCommand records an explorer command outcome.
func (c *Collector) ObserveCommand(command string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Commands.WithLabelValues(command, result).Inc()
}
