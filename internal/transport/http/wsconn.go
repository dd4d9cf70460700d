package http

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// writeWait bounds a single outbound send so one stuck peer cannot block
// a broadcast forever.
const writeWait = 10 * time.Second

// wsConn adapts a websocket connection to core.Conn. Broadcasts from many
// channels may target the same socket concurrently; the mutex serializes
// them because the underlying connection allows one writer at a time.
type wsConn struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSConn(id string, conn *websocket.Conn) *wsConn {
	return &wsConn{id: id, conn: conn}
}

// Send implements core.Conn.
func (w *wsConn) Send(ctx context.Context, payload any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return wsjson.Write(ctx, w.conn, payload)
}
