package notification

import (
	"net/http"

	"github.com/piyushyadav-melb/expert-realtime/internal/shared/httpx"
)

// Handler is the local HTTP surface the UI reads the store through.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler { return &Handler{store: store} }

func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	httpx.WriteJSON(w, map[string]any{
		"notifications": h.store.List(),
		"unreadCount":   h.store.UnreadCount(),
		"isConnected":   h.store.Connected(),
	}, http.StatusOK)
	return nil
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) error {
	httpx.WriteJSON(w, map[string]int{"unreadCount": h.store.UnreadCount()}, http.StatusOK)
	return nil
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	if id == "" {
		return httpx.Errorf(http.StatusBadRequest, "missing id")
	}
	if !h.store.MarkRead(id) {
		return httpx.Errorf(http.StatusNotFound, "unknown notification")
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) error {
	h.store.MarkAllRead()
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

type updateReq struct {
	Title *string        `json:"title,omitempty"`
	Body  *string        `json:"body,omitempty"`
	Read  *bool          `json:"read,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	if id == "" {
		return httpx.Errorf(http.StatusBadRequest, "missing id")
	}
	in, err := httpx.Decode[updateReq](r)
	if err != nil {
		return err
	}
	ok := h.store.ApplyUpdate(id, Update{
		Title: in.Title,
		Body:  in.Body,
		Read:  in.Read,
		Data:  in.Data,
	})
	if !ok {
		return httpx.Errorf(http.StatusNotFound, "unknown notification")
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	if id == "" {
		return httpx.Errorf(http.StatusBadRequest, "missing id")
	}
	if !h.store.Remove(id) {
		return httpx.Errorf(http.StatusNotFound, "unknown notification")
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) error {
	h.store.ClearAll()
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}
