// Package metrics defines Prometheus collectors for the chat server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks the number of live WebSocket connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_active",
		Help: "Number of active WebSocket connections.",
	})

	// ConnectionsSwept counts connections reclaimed by the liveness sweep.
	ConnectionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connections_swept_total",
		Help: "Connections reclaimed by the inactivity sweep.",
	})

	// EnvelopesSent counts outbound envelopes by type.
	EnvelopesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_envelopes_sent_total",
		Help: "Outbound envelopes delivered, by envelope type.",
	}, []string{"type"})

	// MessagesStored counts messages accepted into session logs, by role.
	MessagesStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_stored_total",
		Help: "Messages appended to session logs, by role.",
	}, []string{"role"})

	// AgentFailures counts failed agent invocations.
	AgentFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_agent_failures_total",
		Help: "Agent invocations that ended in error or timeout.",
	})

	// AgentLatency observes agent invocation round-trip time.
	AgentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_agent_latency_seconds",
		Help:    "Latency of agent invocations.",
		Buckets: prometheus.DefBuckets,
	})
)
