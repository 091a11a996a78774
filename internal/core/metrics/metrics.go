package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests by route, method and status"},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method"},
	)
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{Name: "http_requests_in_flight", Help: "Requests currently being served"},
	)
)

// 级联
var (
	CascadeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "cascade_dispatch_total", Help: "Product cascade dispatches by action and result"},
		[]string{"action", "result"},
	)
	CascadePending = promauto.NewGauge(
		prometheus.GaugeOpts{Name: "cascade_jobs_pending", Help: "Pending cascade jobs seen by the last worker pass"},
	)
	ProductsFlipped = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "products_visibility_changed_total", Help: "Products flipped by owner-scoped bulk operations"},
		[]string{"action"},
	)
)
