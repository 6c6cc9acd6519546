package connection

import (
	"errors"
	"sync"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Conn is the duplex channel the server pushes protocol messages through.
// *websocket.Conn satisfies it; tests substitute their own. Implementations
// must tolerate WriteJSON calls from multiple goroutines: broadcasts fan out
// after the engine's lock is released, so writes to one connection can
// overlap. Wrap transports that allow only a single writer with NewSyncConn.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

type syncConn struct {
	mu   sync.Mutex
	conn Conn
}

// NewSyncConn serializes WriteJSON calls to the underlying connection.
// Close passes through; the websocket transport allows it concurrently
// with writes.
func NewSyncConn(conn Conn) Conn {
	return &syncConn{conn: conn}
}

func (c *syncConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteJSON(v)
}

func (c *syncConn) Close() error {
	return c.conn.Close()
}
