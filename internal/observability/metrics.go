package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsPublished = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lehgo", Name: "requests_published_total", Help: "Ride requests published to the bus"})
	BidsPublished     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lehgo", Name: "bids_published_total", Help: "Bids published to the bus"})
	BidsCollected     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lehgo", Name: "bids_collected_total", Help: "Bids accepted into a rider session"})
	PublishesDropped  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lehgo", Name: "publishes_dropped_total", Help: "Publishes dropped while disconnected"})
	ParseErrors       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lehgo", Name: "parse_errors_total", Help: "Inbound payloads matching no known shape"})
	ConnectionUp      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "lehgo", Name: "connection_up", Help: "1 while the pub/sub connection is established"})
	OTPIssued         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lehgo", Name: "otp_issued_total", Help: "One-time codes issued"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lehgo", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lehgo",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
