package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposed on /metrics. The "scope" label distinguishes the
// global (thread-list) registry from room (thread-detail) registries.
var (
	WSConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "corpchat_ws_connections",
		Help: "Currently registered live connections.",
	}, []string{"scope"})

	WSBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corpchat_ws_broadcasts_total",
		Help: "Broadcast operations performed, by scope.",
	}, []string{"scope"})

	WSSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corpchat_ws_send_failures_total",
		Help: "Deliveries dropped because a connection was dead or backed up.",
	})

	MessagesPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corpchat_messages_persisted_total",
		Help: "Chat messages written to storage, by sender role.",
	}, []string{"sender"})
)
