package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relationRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leapgold_relation_refresh_total",
		Help: "Relation refresh outcomes by relation and status",
	}, []string{"relation", "status"})

	relationRefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leapgold_relation_refresh_duration_seconds",
		Help:    "Time to evaluate and commit one relation",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"relation"})

	relationRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "leapgold_relation_rows",
		Help: "Row count of the last committed version",
	}, []string{"relation"})

	relationVersion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "leapgold_relation_version",
		Help: "Last committed version",
	}, []string{"relation"})

	refreshRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leapgold_refresh_runs_total",
		Help: "Refresh runs by final status",
	}, []string{"status"})

	refreshRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leapgold_refresh_rejected_total",
		Help: "Refresh requests rejected because a relation was already refreshing",
	})
)
