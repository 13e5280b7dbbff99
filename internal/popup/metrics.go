package popup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	shownTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "popups_shown_total",
		Help: "Popups admitted to the display surface.",
	})
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "popups_dropped_total",
		Help: "Popups dropped because all display slots were occupied.",
	})
)
