package chat

import (
	"errors"
	"net/http"

	"github.com/piyushyadav-melb/expert-realtime/internal/shared/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) Customers(w http.ResponseWriter, r *http.Request) error {
	httpx.WriteJSON(w, map[string]any{
		"customers": h.svc.Customers(r.URL.Query().Get("q")),
	}, http.StatusOK)
	return nil
}

type selectReq struct {
	CustomerID string `json:"customerId"`
}

func (h *Handler) Select(w http.ResponseWriter, r *http.Request) error {
	in, err := httpx.Decode[selectReq](r)
	if err != nil {
		return err
	}
	if in.CustomerID == "" {
		return httpx.Errorf(http.StatusBadRequest, "missing customerId")
	}
	room, msgs, err := h.svc.SelectCustomer(r.Context(), in.CustomerID)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]any{"room": room, "messages": msgs}, http.StatusOK)
	return nil
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) error {
	room, msgs, typing := h.svc.SessionView()
	if room == nil {
		return httpx.Errorf(http.StatusNotFound, "no active chat room")
	}
	httpx.WriteJSON(w, map[string]any{
		"room":           room,
		"messages":       msgs,
		"customerTyping": typing,
	}, http.StatusOK)
	return nil
}

type sendReq struct {
	Content string      `json:"content"`
	File    *Attachment `json:"file,omitempty"`
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) error {
	in, err := httpx.Decode[sendReq](r)
	if err != nil {
		return err
	}
	msg, err := h.svc.Send(r.Context(), in.Content, in.File)
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return httpx.Errorf(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoRoom):
		return httpx.Errorf(http.StatusConflict, err.Error())
	case err != nil:
		// Non-success ack: transient, the caller may retry immediately.
		return httpx.Errorf(http.StatusBadGateway, err.Error())
	}
	httpx.WriteJSON(w, msg, http.StatusCreated)
	return nil
}

type typingReq struct {
	IsTyping bool `json:"isTyping"`
}

func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) error {
	in, err := httpx.Decode[typingReq](r)
	if err != nil {
		return err
	}
	h.svc.Typing(in.IsTyping)
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) error {
	h.svc.Leave()
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("customer_id")
	if id == "" {
		return httpx.Errorf(http.StatusBadRequest, "missing customer id")
	}
	if err := h.svc.DeleteChat(r.Context(), id); err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}
