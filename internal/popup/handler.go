package popup

import (
	"net/http"

	"github.com/piyushyadav-melb/expert-realtime/internal/shared/httpx"
)

type Handler struct {
	queue *Queue
}

func NewHandler(q *Queue) *Handler { return &Handler{queue: q} }

func (h *Handler) Active(w http.ResponseWriter, r *http.Request) error {
	httpx.WriteJSON(w, map[string]any{"popups": h.queue.Active()}, http.StatusOK)
	return nil
}

func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	if id == "" {
		return httpx.Errorf(http.StatusBadRequest, "missing id")
	}
	if !h.queue.Dismiss(id) {
		return httpx.Errorf(http.StatusNotFound, "popup not visible")
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	if id == "" {
		return httpx.Errorf(http.StatusBadRequest, "missing id")
	}
	target, ok := h.queue.Activate(id)
	if !ok {
		return httpx.Errorf(http.StatusNotFound, "popup not visible")
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok", "target": target}, http.StatusOK)
	return nil
}
