package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call metrics - one sample per factory operation
var (
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factory_calls_total",
			Help: "Total number of factory calls by operation and result",
		},
		[]string{"op", "result"},
	)

	CallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "factory_call_duration_seconds",
			Help:    "Time taken to execute a factory call, including commit",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// Deployment metrics - Track instance placement
var (
	DeploymentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factory_deployments_total",
		Help: "Total number of auction instances deployed",
	})

	DeploymentFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factory_deployment_failures_total",
			Help: "Total number of failed instance deployments by reason",
		},
		[]string{"reason"},
	)

	ModuleImageBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "factory_instance_module_bytes",
		Help: "Size in bytes of the instance module the factory deploys",
	})
)

// State metrics - Track current factory state
var (
	AuctionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "factory_auction_count",
		Help: "Number of auctions registered by the factory",
	})

	Paused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "factory_paused",
		Help: "1 when new deployments are paused, 0 otherwise",
	})
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factory_http_requests_total",
			Help: "Total number of API requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

// SetPaused records the pause flag as a 0/1 gauge
func SetPaused(paused bool) {
	if paused {
		Paused.Set(1)
		return
	}
	Paused.Set(0)
}
