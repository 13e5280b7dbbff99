package notification

import "sync"

const defaultCapacity = 50

// Store is the ordered notification history: most-recent-first, capped, with
// an incrementally tracked unread count. Every operation is atomic with
// respect to the count; callers never observe an intermediate state.
type Store struct {
	mu        sync.Mutex
	items     []Notification
	unread    int
	capacity  int
	connected bool
}

func NewStore() *Store {
	return &Store{capacity: defaultCapacity}
}

// Update names the fields a partial update may touch.
type Update struct {
	Title *string
	Body  *string
	Read  *bool
	Data  map[string]any
}

// Add prepends a notification. Inserting an id already present is a no-op,
// so replayed events cannot double-count.
func (s *Store) Add(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == n.ID {
			return false
		}
	}
	s.items = append([]Notification{n}, s.items...)
	if !n.Read {
		s.unread++
	}
	// Truncate the oldest entries; unread is tracked incrementally, but the
	// tail being dropped may still hold unread items.
	for len(s.items) > s.capacity {
		last := len(s.items) - 1
		if !s.items[last].Read {
			s.unread--
		}
		s.items = s.items[:last]
	}
	return true
}

func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			if !s.items[i].Read {
				s.items[i].Read = true
				s.unread--
			}
			return true
		}
	}
	return false
}

func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
}

func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			if !s.items[i].Read {
				s.unread--
			}
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.unread = 0
}

// ApplyUpdate merges partial fields into an existing notification and
// adjusts the unread count when the read flag flips.
func (s *Store) ApplyUpdate(id string, u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		n := &s.items[i]
		if u.Title != nil {
			n.Title = *u.Title
		}
		if u.Body != nil {
			n.Body = *u.Body
		}
		if u.Data != nil {
			n.Data = u.Data
		}
		// read only ever moves false -> true; updates trying to unset it
		// are ignored.
		if u.Read != nil && *u.Read && !n.Read {
			n.Read = true
			s.unread--
		}
		return true
	}
	return false
}

// List returns a copy of the history, most recent first.
func (s *Store) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Store) SetConnected(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = up
}

func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
