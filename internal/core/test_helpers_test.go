package core

import (
	"context"
	"errors"
	"sync"
)

// fakeConn records payloads delivered to it; optionally fails every send.
type fakeConn struct {
	mu       sync.Mutex
	payloads []any
	fail     bool
	onSend   func()
}

func (c *fakeConn) Send(_ context.Context, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onSend != nil {
		c.onSend()
	}
	if c.fail {
		return errors.New("send failed")
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *fakeConn) received() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.payloads))
	copy(out, c.payloads)
	return out
}
