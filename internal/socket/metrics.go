package socket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socket_connects_total",
		Help: "Successful socket connections, including reconnects.",
	})
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socket_events_total",
		Help: "Inbound socket events by event name.",
	}, []string{"event"})
)
