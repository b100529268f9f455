package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wolff_requests_total",
			Help: "Gateway requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wolff_failures_total",
			Help: "Failed gateway requests by the state they failed in",
		},
		[]string{"state"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wolff_upstream_request_duration_seconds",
			Help:    "Upstream API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	ProxyPendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wolff_proxy_pending_requests",
			Help: "Node proxy requests waiting for a broker reply",
		},
	)

	ProxyTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wolff_proxy_timeouts_total",
			Help: "Node proxy requests that timed out waiting for a reply",
		},
	)

	SalesPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wolff_sales_published_total",
			Help: "Sale notifications published",
		},
	)
)
