// Package live streams pose events and coaching results over WebSocket.
package live

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ConnManager tracks the single live connection each user may hold.
type ConnManager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
	logger *slog.Logger
}

// NewConnManager creates an empty manager.
func NewConnManager(logger *slog.Logger) *ConnManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnManager{active: make(map[string]*websocket.Conn), logger: logger}
}

// Register makes conn the user's live connection, closing any previous one.
func (m *ConnManager) Register(userID string, conn *websocket.Conn) {
	m.mu.Lock()
	existing, ok := m.active[userID]
	m.active[userID] = conn
	m.mu.Unlock()

	// Close blocks on the close handshake, so it runs outside the lock.
	if ok && existing != conn {
		_ = existing.Close(websocket.StatusPolicyViolation, "replaced by a newer connection")
		m.logger.Info("Live connection replaced", "user_id", userID)
	}
}

// Unregister removes conn if it is still the user's current connection and
// reports whether it was.
func (m *ConnManager) Unregister(userID string, conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[userID]; ok && current == conn {
		delete(m.active, userID)
		return true
	}
	return false
}

// CloseUser closes and forgets the user's connection.
func (m *ConnManager) CloseUser(userID, reason string) {
	m.mu.Lock()
	conn, ok := m.active[userID]
	delete(m.active, userID)
	m.mu.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, reason)
		m.logger.Info("Live connection closed", "user_id", userID, "reason", reason)
	}
}

// Len returns the number of live connections.
func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}
