package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	navTypeLabel = "nav_type"
)

var (
	nodeStoreAddedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "node_store_added_total",
		Help: "The total number of nodes added to node stores.",
	}, []string{navTypeLabel})

	nodeStoreDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "node_store_deleted_total",
		Help: "The total number of nodes deleted from node stores.",
	}, []string{navTypeLabel})
)

func instrumentNodeAdd(t NavType) {
	nodeStoreAddedTotal.
		With(prometheus.Labels{navTypeLabel: t.String()}).
		Inc()
}

func instrumentNodeDelete(t NavType) {
	nodeStoreDeletedTotal.
		With(prometheus.Labels{navTypeLabel: t.String()}).
		Inc()
}
