package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	receivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_received_total",
		Help: "Inbound notification payloads by category.",
	}, []string{"category"})
	acceptedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_accepted_total",
		Help: "Notifications that passed the identity filter and entered the store.",
	}, []string{"type"})
	filteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_filtered_total",
		Help: "Notifications addressed to another user and dropped at ingestion.",
	})
	malformedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_malformed_total",
		Help: "Payloads dropped because a required field was missing or undecodable.",
	}, []string{"event"})
)
