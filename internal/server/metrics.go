package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_scans_total",
			Help: "Total number of card scans",
		},
		[]string{"status"}, // ok, empty, rejected
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardscan_scan_duration_seconds",
			Help:    "End-to-end scan duration in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60},
		},
	)

	scanScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardscan_scan_score",
			Help:    "Text quality score of the winning scan candidate",
			Buckets: []float64{0, 0.2, 0.35, 0.5, 0.75, 0.9, 1.2, 1.6, 2.2},
		},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardscan_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1 << 10, 10 << 10, 100 << 10, 1 << 20, 5 << 20, 10 << 20, 32 << 20},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardscan_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)
)
