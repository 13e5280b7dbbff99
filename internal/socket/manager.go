package socket

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Manager owns the one shared connection per session. Consumers borrow it
// through Acquire; only the Manager dials and tears down.
type Manager struct {
	log  *zap.Logger
	dial DialFunc

	mu   sync.Mutex
	conn *Conn
}

func NewManager(dial DialFunc, log *zap.Logger) *Manager {
	return &Manager{log: log, dial: dial}
}

// Acquire returns the live shared connection, dialing it on first use.
func (m *Manager) Acquire(ctx context.Context) *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		m.conn = NewConn(m.dial, m.log)
		m.conn.Start(ctx)
	}
	return m.conn
}

// Release is intentionally a no-op: the connection outlives any single
// consumer and is shared for the life of the session.
func (m *Manager) Release() {}

// DisconnectGlobal tears the socket down and clears the shared handle, so
// the next Acquire dials fresh. Used on logout.
func (m *Manager) DisconnectGlobal() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
