package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// writeWait is the time allowed to write a message to the peer. An
// unresponsive peer fails the write rather than blocking the sender;
// the registry above never applies timeouts of its own.
const writeWait = 10 * time.Second

// Conn adapts a coder/websocket connection to the registry's Channel
// interface. The mutex serializes writers so interleaved frames cannot
// happen even when multiple callers send to the same player.
type Conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// NewConn wraps an accepted WebSocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Write sends one text frame with the transport's own timeout applied.
func (c *Conn) Write(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, payload)
}

// Close performs the closing handshake.
func (c *Conn) Close(ctx context.Context) error {
	return c.ws.Close(websocket.StatusNormalClosure, "server closed connection")
}
