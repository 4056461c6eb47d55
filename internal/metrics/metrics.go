package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remote_sessions_created_total",
		Help: "Number of remote support sessions created.",
	})

	SessionsJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remote_sessions_joined_total",
		Help: "Number of successful client joins.",
	})

	SessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remote_sessions_ended_total",
		Help: "Number of sessions explicitly ended.",
	})

	SignalsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_signals_relayed_total",
		Help: "Signaling messages accepted by the relay, by type.",
	}, []string{"type"})

	ChatMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remote_chat_messages_total",
		Help: "Chat messages appended to sessions.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remote_sessions_active",
		Help: "Sessions in the store that have not ended.",
	})
)
