package unread

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/piyushyadav-melb/expert-realtime/internal/socket"
)

const lookupTimeout = 5 * time.Second

// RoomLookup resolves a chat room id to the customer on its other side.
type RoomLookup interface {
	CustomerIDForRoom(ctx context.Context, roomID string) (string, error)
}

// Snapshot is the aggregator's externally visible state.
type Snapshot struct {
	Counts           map[string]int `json:"counts"`
	UserType         string         `json:"userType,omitempty"`
	TotalUnreadCount int            `json:"totalUnreadCount"`
}

// Aggregator keeps per-customer and total unread-message counters.
// Full snapshots from the server are authoritative; incremental pushes are
// short-lived corrections that the next snapshot heals. Everything that
// touches the per-customer map funnels through one worker, so updates land
// in the order their events arrived on the socket even when a room lookup
// is slow.
type Aggregator struct {
	log   *zap.Logger
	rooms RoomLookup
	// known returns the customer ids already held client-side, the
	// fallback when a room lookup fails.
	known func() []string

	mu       sync.Mutex
	counts   map[string]int
	userType string
	total    int
	offs     []func()
	stopped  bool

	updates chan func()
	done    chan struct{}
}

func New(rooms RoomLookup, known func() []string, log *zap.Logger) *Aggregator {
	a := &Aggregator{
		log:     log,
		rooms:   rooms,
		known:   known,
		counts:  map[string]int{},
		updates: make(chan func(), 64),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// run applies queued updates one at a time, in arrival order.
func (a *Aggregator) run() {
	for {
		select {
		case <-a.done:
			return
		case fn := <-a.updates:
			fn()
		}
	}
}

// apply enqueues a map update for the worker. The socket's dispatch
// goroutine enqueues in arrival order and the worker drains in FIFO order,
// so a reset can never overtake an increment pushed before it.
func (a *Aggregator) apply(fn func()) {
	select {
	case <-a.done:
	case a.updates <- fn:
	}
}

type totalPayload struct {
	UserID      string `json:"userId"`
	UserType    string `json:"userType"`
	UnreadCount int    `json:"unreadCount"`
}

type chatCountPayload struct {
	ChatRoomID  string `json:"chatRoomId"`
	UserID      string `json:"userId"`
	UserType    string `json:"userType"`
	UnreadCount int    `json:"unreadCount"`
}

type allCountsPayload struct {
	UserID           string `json:"userId"`
	UserType         string `json:"userType"`
	ChatUnreadCounts []struct {
		ChatRoomID  string `json:"chatRoomId"`
		UnreadCount int    `json:"unreadCount"`
		OtherUser   struct {
			ID string `json:"id"`
		} `json:"otherUser"`
	} `json:"chatUnreadCounts"`
}

type messagesReadPayload struct {
	ChatRoomID string `json:"chatRoomId"`
	ReadBy     string `json:"readBy"`
}

type newMessagePayload struct {
	ChatRoomID string `json:"chatRoomId"`
}

// Bind registers the count listeners and requests a fresh snapshot on every
// (re)connect.
func (a *Aggregator) Bind(bus socket.Bus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offs = []func(){
		bus.On("unreadCountUpdated", a.onTotal),
		bus.On("unreadCountResponse", a.onTotal),
		bus.On("chatUnreadCountUpdated", a.onChatCount),
		bus.On("allChatUnreadCountsResponse", a.onAllCounts),
		bus.On("messagesRead", a.onMessagesRead),
		bus.On("newMessage", a.onNewMessage),
		bus.On("unreadCountError", a.onError),
		bus.OnConnect(func() { a.requestSync(bus) }),
	}
	if bus.Connected() {
		a.requestSync(bus)
	}
}

func (a *Aggregator) Teardown() {
	a.mu.Lock()
	for _, off := range a.offs {
		off()
	}
	a.offs = nil
	stopped := a.stopped
	a.stopped = true
	a.mu.Unlock()
	if !stopped {
		close(a.done)
	}
}

func (a *Aggregator) requestSync(bus socket.Bus) {
	if err := bus.Emit("getUnreadCount", nil); err != nil {
		a.log.Debug("getUnreadCount emit skipped", zap.Error(err))
	}
	if err := bus.Emit("getAllChatUnreadCounts", nil); err != nil {
		a.log.Debug("getAllChatUnreadCounts emit skipped", zap.Error(err))
	}
}

func (a *Aggregator) onTotal(raw json.RawMessage) {
	var p totalPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		a.log.Warn("unread total: bad payload", zap.Error(err))
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total = p.UnreadCount
	if p.UserType != "" {
		a.userType = p.UserType
	}
}

// onAllCounts replaces the whole per-customer map; entries absent from the
// snapshot are discarded, not merged. The replacement goes through the
// worker so a snapshot cannot jump ahead of an increment that arrived
// before it.
func (a *Aggregator) onAllCounts(raw json.RawMessage) {
	var p allCountsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		a.log.Warn("allChatUnreadCounts: bad payload", zap.Error(err))
		return
	}
	counts := map[string]int{}
	for _, c := range p.ChatUnreadCounts {
		if c.OtherUser.ID != "" {
			counts[c.OtherUser.ID] = c.UnreadCount
		}
	}
	a.apply(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.counts = counts
		a.userType = p.UserType
	})
}

// onChatCount applies a single-conversation update. Resolution may suspend
// on a REST lookup, which happens on the worker; a failed lookup leaves the
// map untouched.
func (a *Aggregator) onChatCount(raw json.RawMessage) {
	var p chatCountPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		a.log.Warn("chatUnreadCountUpdated: bad payload", zap.Error(err))
		return
	}
	a.apply(func() {
		customerID, ok := a.resolveCustomer(p.ChatRoomID)
		if !ok {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		a.counts[customerID] = p.UnreadCount
		if p.UserType != "" {
			a.userType = p.UserType
		}
	})
}

func (a *Aggregator) onMessagesRead(raw json.RawMessage) {
	var p messagesReadPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		a.log.Warn("messagesRead: bad payload", zap.Error(err))
		return
	}
	a.apply(func() {
		customerID, ok := a.resolveCustomer(p.ChatRoomID)
		if !ok {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		a.counts[customerID] = 0
	})
}

// onNewMessage is the optimistic client-side increment; it may transiently
// double-count against the server's own accounting, which the next snapshot
// heals.
func (a *Aggregator) onNewMessage(raw json.RawMessage) {
	var p newMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	a.apply(func() {
		customerID, ok := a.resolveCustomer(p.ChatRoomID)
		if !ok {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		a.counts[customerID]++
	})
}

func (a *Aggregator) onError(raw json.RawMessage) {
	var p struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &p)
	a.log.Warn("unread count error from server", zap.String("error", p.Error))
}

// resolveCustomer maps a room id to a customer id: REST lookup first, then
// the known-customer fallback. Failure is logged and the update dropped.
func (a *Aggregator) resolveCustomer(roomID string) (string, bool) {
	if roomID == "" {
		return "", false
	}
	if a.rooms != nil {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()
		if id, err := a.rooms.CustomerIDForRoom(ctx, roomID); err == nil && id != "" {
			return id, true
		} else if err != nil {
			a.log.Warn("room lookup failed", zap.String("room", roomID), zap.Error(err))
		}
	}
	if a.known != nil {
		for _, id := range a.known() {
			if id == roomID {
				return id, true
			}
		}
	}
	a.log.Warn("unread update dropped, room unresolved", zap.String("room", roomID))
	return "", false
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	counts := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		counts[k] = v
	}
	return Snapshot{Counts: counts, UserType: a.userType, TotalUnreadCount: a.total}
}

// CountFor returns one customer's unread counter.
func (a *Aggregator) CountFor(customerID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[customerID]
}
