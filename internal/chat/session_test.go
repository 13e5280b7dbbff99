package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/piyushyadav-melb/expert-realtime/internal/socket"
)

type fakeBus struct {
	mu       sync.Mutex
	handlers map[string][]socket.Handler
	emitted  []string
	// ack maps an event name to its canned response.
	ack map[string]func(v any) (json.RawMessage, error)
}

func newFakeBus() *fakeBus {
	b := &fakeBus{
		handlers: map[string][]socket.Handler{},
		ack:      map[string]func(v any) (json.RawMessage, error){},
	}
	b.ack["joinChat"] = func(any) (json.RawMessage, error) {
		return json.RawMessage(`{"status":"joined"}`), nil
	}
	return b
}

func (b *fakeBus) On(event string, h socket.Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], h)
	i := len(b.handlers[event]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[event][i] = nil
	}
}

func (b *fakeBus) OnConnect(func()) func()    { return func() {} }
func (b *fakeBus) OnDisconnect(func()) func() { return func() {} }
func (b *fakeBus) Connected() bool            { return true }

func (b *fakeBus) Emit(event string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitted = append(b.emitted, event)
	return nil
}

func (b *fakeBus) EmitWithAck(ctx context.Context, event string, v any) (json.RawMessage, error) {
	b.mu.Lock()
	fn := b.ack[event]
	b.emitted = append(b.emitted, event)
	b.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("%s: no ack configured", event)
	}
	return fn(v)
}

func (b *fakeBus) fire(t *testing.T, event string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	b.mu.Lock()
	hs := append([]socket.Handler(nil), b.handlers[event]...)
	b.mu.Unlock()
	for _, h := range hs {
		if h != nil {
			h(raw)
		}
	}
}

func (b *fakeBus) emittedEvents() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.emitted...)
}

type fakeHistory struct {
	mu      sync.Mutex
	byRoom  map[string][]Message
	err     error
	release chan struct{} // when set, History blocks until closed
}

func (f *fakeHistory) History(ctx context.Context, roomID string, page, limit int) ([]Message, error) {
	f.mu.Lock()
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.byRoom[roomID], nil
}

type staticIdentity string

func (s staticIdentity) CurrentUserID() string { return string(s) }

func msg(id, room, sender string) Message {
	return Message{ID: id, ChatRoomID: room, SenderID: sender, Content: "text " + id}
}

func testRoom(id, customerID string) (*Room, *Customer) {
	return &Room{ID: id, CustomerID: customerID, ExpertID: "expert-1"},
		&Customer{ID: customerID, Name: "Dana"}
}

func TestSessionEnterJoins(t *testing.T) {
	bus := newFakeBus()
	hist := &fakeHistory{byRoom: map[string][]Message{
		"room-1": {msg("m1", "room-1", "cust-1"), msg("m2", "room-1", "expert-1")},
	}}
	s := NewSession(hist, bus, staticIdentity("expert-1"), zaptest.NewLogger(t))

	room, cust := testRoom("room-1", "cust-1")
	msgs, err := s.Enter(context.Background(), room, cust)
	require.NoError(t, err)

	assert.Equal(t, StateJoined, s.State())
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Contains(t, bus.emittedEvents(), "joinChat")
}

func TestSessionEnterNilRoom(t *testing.T) {
	s := NewSession(&fakeHistory{}, newFakeBus(), staticIdentity("expert-1"), zaptest.NewLogger(t))
	_, err := s.Enter(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoRoom)
}

func TestSessionJoinAckFailureRollsBack(t *testing.T) {
	bus := newFakeBus()
	bus.ack["joinChat"] = func(any) (json.RawMessage, error) {
		return nil, errors.New("room is closed")
	}
	s := NewSession(&fakeHistory{}, bus, staticIdentity("expert-1"), zaptest.NewLogger(t))

	room, cust := testRoom("room-1", "cust-1")
	_, err := s.Enter(context.Background(), room, cust)
	require.Error(t, err)
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Room())
}

func TestSessionPushDuringFetchIsMergedOnce(t *testing.T) {
	bus := newFakeBus()
	release := make(chan struct{})
	hist := &fakeHistory{
		byRoom:  map[string][]Message{"room-1": {msg("m1", "room-1", "cust-1")}},
		release: release,
	}
	s := NewSession(hist, bus, staticIdentity("expert-1"), zaptest.NewLogger(t))

	room, cust := testRoom("room-1", "cust-1")
	done := make(chan error, 1)
	go func() {
		_, err := s.Enter(context.Background(), room, cust)
		done <- err
	}()

	// Wait for the listeners to be live, then race a push against the
	// in-flight history fetch: one message history will also contain, one new.
	waitFor(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return len(bus.handlers["newMessage"]) > 0
	})
	bus.fire(t, "newMessage", msg("m1", "room-1", "cust-1"))
	bus.fire(t, "newMessage", msg("m2", "room-1", "cust-1"))
	close(release)

	require.NoError(t, <-done)
	msgs := s.Messages()
	require.Len(t, msgs, 2)
	// m1 appears exactly once even though both sides of the race carried it.
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestSessionRoomSwitchDiscardsStaleHistory(t *testing.T) {
	bus := newFakeBus()
	release := make(chan struct{})
	hist := &fakeHistory{
		byRoom: map[string][]Message{
			"room-1": {msg("old", "room-1", "cust-1")},
			"room-2": {msg("new", "room-2", "cust-2")},
		},
		release: release,
	}
	s := NewSession(hist, bus, staticIdentity("expert-1"), zaptest.NewLogger(t))

	room1, cust1 := testRoom("room-1", "cust-1")
	first := make(chan error, 1)
	go func() {
		_, err := s.Enter(context.Background(), room1, cust1)
		first <- err
	}()
	waitFor(t, func() bool { return s.State() == StateJoining })

	// Switch rooms while the first history fetch is still in flight.
	hist.mu.Lock()
	hist.release = nil
	hist.mu.Unlock()
	room2, cust2 := testRoom("room-2", "cust-2")
	msgs, err := s.Enter(context.Background(), room2, cust2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].ID)

	close(release)
	assert.ErrorIs(t, <-first, ErrSuperseded)

	// The stale fetch must not have leaked into the new room's buffer.
	msgs = s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].ID)
	assert.Equal(t, "room-2", s.Room().ID)
}

func TestSessionIgnoresOtherRoomsMessages(t *testing.T) {
	bus := newFakeBus()
	s := NewSession(&fakeHistory{}, bus, staticIdentity("expert-1"), zaptest.NewLogger(t))
	room, cust := testRoom("room-1", "cust-1")
	_, err := s.Enter(context.Background(), room, cust)
	require.NoError(t, err)

	bus.fire(t, "newMessage", msg("x1", "room-9", "cust-9"))
	assert.Empty(t, s.Messages())

	bus.fire(t, "newMessage", msg("x2", "room-1", "cust-1"))
	bus.fire(t, "newMessage", msg("x2", "room-1", "cust-1"))
	assert.Len(t, s.Messages(), 1)
}

func TestSessionSend(t *testing.T) {
	bus := newFakeBus()
	bus.ack["sendMessage"] = func(v any) (json.RawMessage, error) {
		p := v.(map[string]any)
		return json.Marshal(Message{
			ID:         "srv-1",
			ChatRoomID: p["chatRoomId"].(string),
			SenderID:   p["senderId"].(string),
			SenderType: p["senderType"].(string),
			Content:    p["content"].(string),
		})
	}
	s := NewSession(&fakeHistory{}, bus, staticIdentity("expert-1"), zaptest.NewLogger(t))
	room, cust := testRoom("room-1", "cust-1")
	_, err := s.Enter(context.Background(), room, cust)
	require.NoError(t, err)

	sent, err := s.Send(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", sent.ID)
	assert.Equal(t, "EXPERT", sent.SenderType)
	require.Len(t, s.Messages(), 1)

	// The subsequent echo on newMessage must not duplicate it.
	bus.fire(t, "newMessage", *sent)
	assert.Len(t, s.Messages(), 1)
}

func TestSessionSendValidation(t *testing.T) {
	bus := newFakeBus()
	s := NewSession(&fakeHistory{}, bus, staticIdentity("expert-1"), zaptest.NewLogger(t))

	_, err := s.Send(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = s.Send(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrNoRoom)
}

func TestSessionTypingIndicator(t *testing.T) {
	bus := newFakeBus()
	s := NewSession(&fakeHistory{}, bus, staticIdentity("expert-1"), zaptest.NewLogger(t))
	room, cust := testRoom("room-1", "cust-1")
	_, err := s.Enter(context.Background(), room, cust)
	require.NoError(t, err)

	bus.fire(t, "userTyping", typingPayload{ChatRoomID: "room-1", UserID: "cust-1", IsTyping: true})
	assert.True(t, s.CustomerTyping())

	// Typing by anyone but the open room's customer is ignored.
	bus.fire(t, "userTyping", typingPayload{ChatRoomID: "room-1", UserID: "cust-9", IsTyping: false})
	assert.True(t, s.CustomerTyping())

	bus.fire(t, "userTyping", typingPayload{ChatRoomID: "room-1", UserID: "cust-1", IsTyping: false})
	assert.False(t, s.CustomerTyping())
}

func TestSessionLeave(t *testing.T) {
	bus := newFakeBus()
	s := NewSession(&fakeHistory{}, bus, staticIdentity("expert-1"), zaptest.NewLogger(t))
	room, cust := testRoom("room-1", "cust-1")
	_, err := s.Enter(context.Background(), room, cust)
	require.NoError(t, err)

	s.Leave()
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Room())
	assert.Empty(t, s.Messages())
	assert.Contains(t, bus.emittedEvents(), "leaveChat")

	// Events after leaving are dropped.
	bus.fire(t, "newMessage", msg("late", "room-1", "cust-1"))
	assert.Empty(t, s.Messages())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never became true")
		}
		time.Sleep(time.Millisecond)
	}
}
