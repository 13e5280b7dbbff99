package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/piyushyadav-melb/expert-realtime/internal/socket"
)

// HistoryAPI is the slice of the REST client the session needs.
type HistoryAPI interface {
	History(ctx context.Context, roomID string, page, limit int) ([]Message, error)
}

// Identity resolves the locally authenticated user id.
type Identity interface {
	CurrentUserID() string
}

type SessionState int

const (
	StateIdle SessionState = iota
	StateJoining
	StateJoined
	StateLeaving
)

var (
	ErrEmptyMessage = errors.New("message needs text or an attachment")
	ErrNoRoom       = errors.New("no active chat room")
	// ErrSuperseded reports that the room changed while a fetch was in
	// flight; the stale result was discarded.
	ErrSuperseded = errors.New("room changed during fetch")
)

// Session drives one conversation at a time through
// Idle -> Joining -> Joined -> Leaving -> Idle. Switching rooms replaces the
// message buffer wholesale; events for other rooms are ignored, not queued.
type Session struct {
	log *zap.Logger
	api HistoryAPI
	bus socket.Bus
	ids Identity

	mu       sync.Mutex
	state    SessionState
	room     *Room
	customer *Customer
	messages []Message
	seen     map[string]struct{}
	typing   bool
	epoch    uint64
	offs     []func()
}

func NewSession(api HistoryAPI, bus socket.Bus, ids Identity, log *zap.Logger) *Session {
	return &Session{log: log, api: api, bus: bus, ids: ids, seen: map[string]struct{}{}}
}

// Enter switches the session to a room: history is fetched and rendered
// optimistically, then the join is acknowledged by the server. Messages
// pushed while the fetch is in flight are kept; the merge de-duplicates by
// message id, so neither side of the race wins twice.
func (s *Session) Enter(ctx context.Context, room *Room, customer *Customer) ([]Message, error) {
	if room == nil || room.ID == "" {
		return nil, ErrNoRoom
	}

	s.mu.Lock()
	if s.room != nil {
		s.leaveLocked()
	}
	s.epoch++
	epoch := s.epoch
	s.state = StateJoining
	s.room = room
	s.customer = customer
	s.messages = nil
	s.seen = map[string]struct{}{}
	s.typing = false
	roomID := room.ID
	s.offs = []func(){
		s.bus.On("newMessage", s.onNewMessage),
		s.bus.On("userTyping", s.onUserTyping),
	}
	s.mu.Unlock()

	history, err := s.api.History(ctx, roomID, 0, 0)

	s.mu.Lock()
	if s.epoch != epoch {
		// The caller already moved on; this response belongs to a room we
		// are no longer showing.
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	if err != nil {
		s.log.Warn("chat history fetch failed", zap.String("room", roomID), zap.Error(err))
	} else {
		merged := make([]Message, 0, len(history)+len(s.messages))
		for _, m := range history {
			if _, dup := s.seen[m.ID]; dup {
				continue
			}
			s.seen[m.ID] = struct{}{}
			merged = append(merged, m)
		}
		s.messages = append(merged, s.messages...)
	}
	userID := s.ids.CurrentUserID()
	s.mu.Unlock()

	_, ackErr := s.bus.EmitWithAck(ctx, "joinChat", map[string]string{
		"chatRoomId": roomID,
		"userId":     userID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil, ErrSuperseded
	}
	if ackErr != nil {
		s.leaveLocked()
		return nil, fmt.Errorf("joinChat: %w", ackErr)
	}
	s.state = StateJoined
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// Leave exits the current room. The leave notice is fire-and-forget; local
// cleanup happens regardless of whether the server ever sees it.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveLocked()
}

func (s *Session) leaveLocked() {
	if s.room == nil {
		s.state = StateIdle
		return
	}
	s.state = StateLeaving
	if err := s.bus.Emit("leaveChat", map[string]string{"chatRoomId": s.room.ID}); err != nil {
		s.log.Debug("leaveChat emit skipped", zap.Error(err))
	}
	for _, off := range s.offs {
		off()
	}
	s.offs = nil
	s.room = nil
	s.customer = nil
	s.messages = nil
	s.seen = map[string]struct{}{}
	s.typing = false
	s.epoch++
	s.state = StateIdle
}

// Send emits the message with acknowledgement and returns the created
// message. On failure the caller keeps its compose state and may retry
// immediately.
func (s *Session) Send(ctx context.Context, content string, file *Attachment) (*Message, error) {
	if content == "" && file == nil {
		return nil, ErrEmptyMessage
	}
	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return nil, ErrNoRoom
	}
	roomID := s.room.ID
	s.mu.Unlock()

	payload := map[string]any{
		"chatRoomId": roomID,
		"senderId":   s.ids.CurrentUserID(),
		"senderType": "EXPERT",
		"content":    content,
	}
	if file != nil {
		payload["file"] = file
	}
	raw, err := s.bus.EmitWithAck(ctx, "sendMessage", payload)
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("sendMessage ack: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room != nil && s.room.ID == msg.ChatRoomID {
		if _, dup := s.seen[msg.ID]; !dup {
			s.seen[msg.ID] = struct{}{}
			s.messages = append(s.messages, msg)
		}
	}
	return &msg, nil
}

// Typing broadcasts the local typing indicator, fire-and-forget.
func (s *Session) Typing(isTyping bool) {
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()
	if room == nil {
		return
	}
	_ = s.bus.Emit("typing", typingPayload{
		ChatRoomID: room.ID,
		IsTyping:   isTyping,
		UserID:     s.ids.CurrentUserID(),
	})
}

func (s *Session) onNewMessage(raw json.RawMessage) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.log.Warn("newMessage: bad payload", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil || msg.ChatRoomID != s.room.ID {
		return
	}
	if _, dup := s.seen[msg.ID]; dup {
		return
	}
	s.seen[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
}

func (s *Session) onUserTyping(raw json.RawMessage) {
	var p typingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Last writer wins, keyed to the other participant in the open room.
	if s.room == nil || s.customer == nil {
		return
	}
	if p.ChatRoomID == s.room.ID && p.UserID == s.customer.ID {
		s.typing = p.IsTyping
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Room() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) CustomerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}
