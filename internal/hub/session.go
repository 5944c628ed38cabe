package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// PushSession is one live push connection as seen by the hub. The concrete
// implementation wraps a WebSocket connection; tests substitute their own.
type PushSession interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// Session wraps a WebSocket connection for server-to-client delivery. The
// write mutex serializes Send calls because the underlying connection does
// not allow concurrent writers.
type Session struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewSession wraps an established WebSocket connection.
func NewSession(conn *websocket.Conn) *Session {
	return &Session{
		id:   uuid.New().String(),
		conn: conn,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Send pushes one text frame to the client.
func (s *Session) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close tears down the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
