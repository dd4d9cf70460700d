package core

import "sync"

// Session tracks the channel keys one live connection is registered under
// and guarantees they are all released exactly once, whatever exit path the
// connection's handler takes.
type Session struct {
	registry *Registry
	conn     Conn

	mu     sync.Mutex
	keys   []ChannelKey
	closed bool
}

// NewSession binds a connection to the registry without subscribing it to
// anything yet.
func NewSession(registry *Registry, conn Conn) *Session {
	return &Session{registry: registry, conn: conn}
}

// Attach subscribes the connection to the given channels. Attaching after
// Close is a no-op so a racing disconnect cannot leak a registration.
func (s *Session) Attach(keys ...ChannelKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, key := range keys {
		s.registry.Register(key, s.conn)
		s.keys = append(s.keys, key)
	}
}

// Close unsubscribes the connection from every channel it was attached to.
// Idempotent; safe to defer alongside error paths that never attached.
func (s *Session) Close() {
	s.mu.Lock()
	keys := s.keys
	s.keys = nil
	s.closed = true
	s.mu.Unlock()

	for _, key := range keys {
		s.registry.Unregister(key, s.conn)
	}
}
