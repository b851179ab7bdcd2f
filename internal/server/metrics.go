package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlpr_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tlpr_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Recognition outcomes by source (url, upload, websocket) and result kind.
	recognitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlpr_recognitions_total",
			Help: "Total number of plate recognition requests by outcome",
		},
		[]string{"source", "outcome"},
	)

	recognitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tlpr_recognition_duration_seconds",
			Help:    "Pipeline processing duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	modelQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tlpr_model_queue_wait_seconds",
			Help:    "Time spent waiting for exclusive model access",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5},
		},
	)

	provinceMatchDistance = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tlpr_province_match_distance",
			Help:    "Edit distance between recognized province text and the matched catalog name",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlpr_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tlpr_upload_size_bytes",
			Help:    "Size of uploaded or fetched images in bytes",
			Buckets: []float64{10 * 1024, 100 * 1024, 512 * 1024, 1024 * 1024, 5 * 1024 * 1024, 20 * 1024 * 1024},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tlpr_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlpr_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // sent, received
	)
)
