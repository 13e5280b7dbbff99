package popup

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/piyushyadav-melb/expert-realtime/internal/notification"
)

const (
	defaultCapacity  = 3
	defaultLifetime  = 8 * time.Second
	defaultCloseWait = 300 * time.Millisecond
)

type EventKind string

const (
	EventShown   EventKind = "shown"
	EventClosing EventKind = "closing"
	EventRemoved EventKind = "removed"
)

// Event is pushed to subscribers as popups change state.
type Event struct {
	Kind         EventKind                 `json:"kind"`
	Notification notification.Notification `json:"notification"`
}

// Popup is one visible entry, in display (arrival) order.
type Popup struct {
	Notification notification.Notification `json:"notification"`
	Closing      bool                      `json:"closing"`
	ShownAt      time.Time                 `json:"shownAt"`
}

type entry struct {
	n       notification.Notification
	shownAt time.Time
	closing bool
	expire  *time.Timer
	remove  *time.Timer
}

// Queue is the bounded on-screen presentation surface. At capacity, new
// notifications are dropped silently — the store keeps the full history, the
// queue only decides what pops up. An id shown once is never shown again for
// the lifetime of the process.
type Queue struct {
	log       *zap.Logger
	capacity  int
	lifetime  time.Duration
	closeWait time.Duration
	markRead  func(id string)

	mu     sync.Mutex
	active []*entry
	shown  map[string]struct{}
	subs   map[int]chan Event
	nextID int
}

type Option func(*Queue)

func WithCapacity(n int) Option            { return func(q *Queue) { q.capacity = n } }
func WithLifetime(d time.Duration) Option  { return func(q *Queue) { q.lifetime = d } }
func WithCloseWait(d time.Duration) Option { return func(q *Queue) { q.closeWait = d } }

// NewQueue builds a queue; markRead is invoked when a user dismissal must
// mark the underlying store entry read.
func NewQueue(markRead func(id string), log *zap.Logger, opts ...Option) *Queue {
	q := &Queue{
		log:       log,
		capacity:  defaultCapacity,
		lifetime:  defaultLifetime,
		closeWait: defaultCloseWait,
		markRead:  markRead,
		shown:     map[string]struct{}{},
		subs:      map[int]chan Event{},
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Publish implements notification.PopupPublisher.
func (q *Queue) Publish(n notification.Notification) { q.Enqueue(n) }

// Enqueue admits a notification to the display surface. Returns false when
// all display slots are occupied or the id was already shown once.
func (q *Queue) Enqueue(n notification.Notification) bool {
	q.mu.Lock()
	if _, replay := q.shown[n.ID]; replay {
		q.mu.Unlock()
		return false
	}
	if len(q.active) >= q.capacity {
		q.mu.Unlock()
		droppedTotal.Inc()
		return false
	}
	e := &entry{n: n, shownAt: time.Now()}
	e.expire = time.AfterFunc(q.lifetime, func() { q.beginClose(n.ID) })
	q.active = append(q.active, e)
	q.shown[n.ID] = struct{}{}
	q.mu.Unlock()

	shownTotal.Inc()
	q.emit(Event{Kind: EventShown, Notification: n})
	return true
}

// beginClose moves a popup into its closing animation; the slot is freed
// when the animation window elapses.
func (q *Queue) beginClose(id string) {
	q.mu.Lock()
	e := q.find(id)
	if e == nil || e.closing {
		q.mu.Unlock()
		return
	}
	e.closing = true
	e.remove = time.AfterFunc(q.closeWait, func() { q.finishClose(id) })
	n := e.n
	q.mu.Unlock()
	q.emit(Event{Kind: EventClosing, Notification: n})
}

func (q *Queue) finishClose(id string) {
	q.mu.Lock()
	var n notification.Notification
	found := false
	for i, e := range q.active {
		if e.n.ID == id {
			n = e.n
			q.active = append(q.active[:i], q.active[i+1:]...)
			found = true
			break
		}
	}
	q.mu.Unlock()
	if found {
		q.emit(Event{Kind: EventRemoved, Notification: n})
	}
}

// Dismiss is the close-button path: the slot is freed immediately and an
// unread notification is marked read.
func (q *Queue) Dismiss(id string) bool {
	return q.dismiss(id)
}

// Activate is the click-to-navigate path; it behaves like Dismiss and also
// returns the route the UI should open.
func (q *Queue) Activate(id string) (target string, ok bool) {
	q.mu.Lock()
	e := q.find(id)
	if e == nil {
		q.mu.Unlock()
		return "", false
	}
	target = notification.NavigationTarget(e.n)
	q.mu.Unlock()
	if !q.dismiss(id) {
		return "", false
	}
	return target, true
}

func (q *Queue) dismiss(id string) bool {
	q.mu.Lock()
	e := q.find(id)
	if e == nil {
		q.mu.Unlock()
		return false
	}
	e.expire.Stop()
	if e.remove != nil {
		e.remove.Stop()
	}
	read := e.n.Read
	q.mu.Unlock()

	if !read && q.markRead != nil {
		q.markRead(id)
	}
	q.finishClose(id)
	return true
}

func (q *Queue) find(id string) *entry {
	for _, e := range q.active {
		if e.n.ID == id {
			return e
		}
	}
	return nil
}

// Active returns the visible popups in display order.
func (q *Queue) Active() []Popup {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Popup, 0, len(q.active))
	for _, e := range q.active {
		out = append(out, Popup{Notification: e.n, Closing: e.closing, ShownAt: e.shownAt})
	}
	return out
}

// Subscribe returns a channel of display events and an unsubscribe func.
// Slow subscribers lose events rather than stalling the pipeline.
func (q *Queue) Subscribe() (<-chan Event, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	ch := make(chan Event, 16)
	q.subs[id] = ch
	return ch, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if c, ok := q.subs[id]; ok {
			delete(q.subs, id)
			close(c)
		}
	}
}

func (q *Queue) emit(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range q.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Stop cancels outstanding timers; used on shutdown.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.active {
		e.expire.Stop()
		if e.remove != nil {
			e.remove.Stop()
		}
	}
	q.active = nil
}
