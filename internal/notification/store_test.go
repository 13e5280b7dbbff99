package notification

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreadByScan(s *Store) int {
	n := 0
	for _, it := range s.List() {
		if !it.Read {
			n++
		}
	}
	return n
}

func TestStoreAddIsIdempotent(t *testing.T) {
	s := NewStore()
	n := Notification{ID: "n1", Type: TypeSystem, Title: "hi"}

	require.True(t, s.Add(n))
	require.False(t, s.Add(n))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.UnreadCount())
}

func TestStoreOrderMostRecentFirst(t *testing.T) {
	s := NewStore()
	s.Add(Notification{ID: "a"})
	s.Add(Notification{ID: "b"})
	s.Add(Notification{ID: "c"})

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "a", list[2].ID)
}

func TestStoreCapacityKeepsMostRecent(t *testing.T) {
	s := NewStore()
	for i := 0; i < 60; i++ {
		s.Add(Notification{ID: fmt.Sprintf("n%02d", i)})
	}

	require.Equal(t, 50, s.Len())
	list := s.List()
	assert.Equal(t, "n59", list[0].ID)
	assert.Equal(t, "n10", list[49].ID)
	// The ten oldest were dropped unread; the counter must have followed.
	assert.Equal(t, 50, s.UnreadCount())
	assert.Equal(t, unreadByScan(s), s.UnreadCount())
}

func TestStoreMarkRead(t *testing.T) {
	s := NewStore()
	s.Add(Notification{ID: "a"})
	s.Add(Notification{ID: "b"})

	require.True(t, s.MarkRead("a"))
	assert.Equal(t, 1, s.UnreadCount())

	// Marking twice does not double-decrement.
	require.True(t, s.MarkRead("a"))
	assert.Equal(t, 1, s.UnreadCount())

	assert.False(t, s.MarkRead("missing"))
	assert.Equal(t, unreadByScan(s), s.UnreadCount())
}

func TestStoreMarkAllRead(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Add(Notification{ID: fmt.Sprintf("n%d", i)})
	}
	s.MarkAllRead()
	assert.Equal(t, 0, s.UnreadCount())
	for _, n := range s.List() {
		assert.True(t, n.Read)
	}
}

func TestStoreRemoveAdjustsUnread(t *testing.T) {
	s := NewStore()
	s.Add(Notification{ID: "a"})
	s.Add(Notification{ID: "b", Read: true})

	require.True(t, s.Remove("b"))
	assert.Equal(t, 1, s.UnreadCount())

	require.True(t, s.Remove("a"))
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, 0, s.Len())
}

func TestStoreClearAll(t *testing.T) {
	s := NewStore()
	s.Add(Notification{ID: "a"})
	s.Add(Notification{ID: "b"})
	s.ClearAll()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.UnreadCount())
}

func TestStoreApplyUpdateReadIsMonotonic(t *testing.T) {
	s := NewStore()
	s.Add(Notification{ID: "a", Title: "old"})

	read := true
	title := "new"
	require.True(t, s.ApplyUpdate("a", Update{Title: &title, Read: &read}))
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, "new", s.List()[0].Title)
	assert.True(t, s.List()[0].Read)

	// Attempting to flip read back to false is ignored.
	unread := false
	require.True(t, s.ApplyUpdate("a", Update{Read: &unread}))
	assert.True(t, s.List()[0].Read)
	assert.Equal(t, 0, s.UnreadCount())

	assert.False(t, s.ApplyUpdate("missing", Update{Read: &read}))
}

func TestStoreConnectedFlag(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Connected())
	s.SetConnected(true)
	assert.True(t, s.Connected())
	s.SetConnected(false)
	assert.False(t, s.Connected())
}
