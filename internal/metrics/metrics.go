package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds all Prometheus metrics for the Courier service
type Metrics struct {
	// WebSocket hub metrics
	HubConnections  *prometheus.GaugeVec   // active connections per channel
	HubMessages     *prometheus.CounterVec // frames per channel and direction
	EventsPublished *prometheus.CounterVec // publish calls per channel and status
	PublishDuration *prometheus.HistogramVec

	// Gating metrics
	RateLimited  *prometheus.CounterVec // denials per scope (publish, websocket)
	AuthFailures *prometheus.CounterVec // websocket auth failures per reason
}
