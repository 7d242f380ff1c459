package graph

import (
	"time"

	"github.com/aukilabs/navindex/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	graphLabel   = "graph"
	navTypeLabel = "nav_type"
	queryLabel   = "query"

	queryRange = "range"
	queryFirst = "first"
	queryType  = "type"
)

var (
	graphNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "graph_nodes",
		Help: "The number of indexed navigation nodes.",
	}, []string{
		graphLabel,
		navTypeLabel,
	})

	graphQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_queries",
		Help: "The number of node queries.",
	}, []string{
		graphLabel,
		queryLabel,
	})

	graphQueryResults = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graph_query_results",
		Help:    "The number of nodes returned by a query.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{
		graphLabel,
		queryLabel,
	})

	graphQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graph_query_latency",
		Help:    "The time to run a node query.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{
		graphLabel,
		queryLabel,
	})

	graphMemoryBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "graph_memory_bytes",
		Help: "The memory used by a node index.",
	}, []string{
		graphLabel,
	})

	graphValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_validation_failures",
		Help: "The number of failed node index validations.",
	}, []string{
		graphLabel,
	})
)

func (g *Graph) instrumentNodeCount(t models.NavType, delta float64) {
	graphNodes.
		With(prometheus.Labels{
			graphLabel:   g.Name,
			navTypeLabel: t.String(),
		}).
		Add(delta)
}

func (g *Graph) instrumentQuery(query string, start time.Time, results int) {
	labels := prometheus.Labels{
		graphLabel: g.Name,
		queryLabel: query,
	}

	graphQueries.With(labels).Inc()
	graphQueryResults.With(labels).Observe(float64(results))
	graphQueryLatency.With(labels).Observe(time.Since(start).Seconds())
}

func (g *Graph) instrumentMemory() {
	graphMemoryBytes.
		With(prometheus.Labels{graphLabel: g.Name}).
		Set(float64(g.index.MemStats()))
}

func (g *Graph) instrumentValidationFailure() {
	graphValidationFailures.
		With(prometheus.Labels{graphLabel: g.Name}).
		Inc()
}

func (g *Graph) resetMetrics() {
	for i := 0; i < models.NavTypeCount; i++ {
		graphNodes.Delete(prometheus.Labels{
			graphLabel:   g.Name,
			navTypeLabel: models.NavTypeAt(i).String(),
		})
	}
	graphMemoryBytes.Delete(prometheus.Labels{graphLabel: g.Name})
}
