// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AgentStreamDuration tracks agent streaming response duration.
	AgentStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_stream_duration_seconds",
			Help:    "Agent streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// AgentTokensTotal tracks total agent tokens processed.
	AgentTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tokens_total",
			Help: "Total agent tokens processed",
		},
		[]string{"model", "direction"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// WorkspaceClientsActive tracks connected workspace websocket clients.
	WorkspaceClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "workspace_clients_active",
			Help: "Number of connected workspace websocket clients",
		},
	)

	// ThingOperationsTotal tracks Thing CRUD operations.
	ThingOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thing_operations_total",
			Help: "Total Thing CRUD operations",
		},
		[]string{"operation", "status"},
	)

	// PendingRequestsActive tracks unresolved permission/question requests.
	PendingRequestsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_pending_requests_active",
			Help: "Unresolved permission and question requests",
		},
		[]string{"kind"},
	)

	// BroadcastEventsTotal tracks events published to the workspace bus.
	BroadcastEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_events_total",
			Help: "Events published to the broadcast bus",
		},
		[]string{"channel", "type"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAgentStream records metrics for an agent streaming response.
func RecordAgentStream(model, status string, duration float64, tokensIn, tokensOut int) {
	AgentStreamDuration.WithLabelValues(model, status).Observe(duration)
	AgentTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	AgentTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordThingOperation records a Thing CRUD operation.
func RecordThingOperation(operation, status string) {
	ThingOperationsTotal.WithLabelValues(operation, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
