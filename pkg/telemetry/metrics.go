package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarschat_http_requests_total",
		Help: "HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tarschat_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tarschat_messages_sent_total",
		Help: "Messages accepted by the send path.",
	})

	previewsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarschat_link_previews_total",
		Help: "Link preview fetch outcomes.",
	}, []string{"outcome"})

	webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarschat_webhook_deliveries_total",
		Help: "Identity webhook deliveries by outcome.",
	}, []string{"outcome"})
)

// ObserveRequest records one completed HTTP request.
func ObserveRequest(method, path string, status int, dur time.Duration) {
	requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, path).Observe(dur.Seconds())
}

// CountMessageSent increments the send counter.
func CountMessageSent() { messagesSent.Inc() }

// CountPreview records a link preview fetch outcome: "ok", "miss" or
// "error".
func CountPreview(outcome string) { previewsFetched.WithLabelValues(outcome).Inc() }

// CountWebhook records an identity webhook delivery outcome: "ok",
// "invalid" or "ignored".
func CountWebhook(outcome string) { webhookDeliveries.WithLabelValues(outcome).Inc() }
