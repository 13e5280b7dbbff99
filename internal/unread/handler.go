package unread

import (
	"net/http"

	"github.com/piyushyadav-melb/expert-realtime/internal/shared/httpx"
)

type Handler struct {
	agg *Aggregator
}

func NewHandler(agg *Aggregator) *Handler { return &Handler{agg: agg} }

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) error {
	httpx.WriteJSON(w, h.agg.Snapshot(), http.StatusOK)
	return nil
}
