package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreated    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "hail", Name: "rides_created_total", Help: "Ride requests created"})
	RidesMatched    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "hail", Name: "rides_matched_total", Help: "Offers accepted"})
	RidesExpired    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "hail", Name: "rides_expired_total", Help: "Open requests expired by the sweeper"})
	SettlementsDone = promauto.NewCounter(prometheus.CounterOpts{Namespace: "hail", Name: "settlements_completed_total", Help: "Completed settlements"})
	ClientsOnline   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "hail", Name: "hub_clients_online", Help: "Connected hub clients"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hail", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hail",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
