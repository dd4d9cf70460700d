package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Conn is a live connection as seen by the registry. The registry only ever
// pushes payloads; receiving stays with the connection's own handler.
type Conn interface {
	// Send delivers one outbound payload. A non-nil error marks the
	// connection dead and causes it to be pruned from the channel.
	Send(ctx context.Context, payload any) error
}

// Registry tracks which live connections are subscribed to which channel and
// fans payloads out to them. One instance is shared by every connection
// handler in the process.
type Registry struct {
	mu       sync.Mutex
	channels map[ChannelKey]map[Conn]struct{}
	log      *zerolog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		channels: make(map[ChannelKey]map[Conn]struct{}),
		log:      logger,
	}
}

// Register subscribes conn to the channel. Adding the same connection twice
// is a no-op.
func (r *Registry) Register(key ChannelKey, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.channels[key]
	if !ok {
		set = make(map[Conn]struct{})
		r.channels[key] = set
	}
	set[conn] = struct{}{}
}

// Unregister removes conn from the channel. Safe to call for connections
// that were never registered or were already pruned.
func (r *Registry) Unregister(key ChannelKey, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(key, conn)
}

func (r *Registry) removeLocked(key ChannelKey, conn Conn) {
	set, ok := r.channels[key]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.channels, key)
	}
}

// Count reports how many connections are subscribed to the channel.
func (r *Registry) Count(key ChannelKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels[key])
}

// Broadcast delivers payload to every connection currently subscribed to the
// channel.
func (r *Registry) Broadcast(ctx context.Context, key ChannelKey, payload any) {
	r.BroadcastMany(ctx, []ChannelKey{key}, payload)
}

// NotifyMany broadcasts payload on the notification channel of each user, so
// every socket a user keeps open for ambient updates learns about new
// activity.
func (r *Registry) NotifyMany(ctx context.Context, users []string, payload any) {
	keys := make([]ChannelKey, 0, len(users))
	for _, u := range users {
		keys = append(keys, NotifyKey(u))
	}
	r.BroadcastMany(ctx, keys, payload)
}

// BroadcastMany delivers payload once to every connection subscribed to any
// of the channels. A socket registered under several of the keys (a
// conversation view plus its owner's notify stream) still receives a single
// copy. The recipient set is snapshotted up front so concurrent registration
// changes cannot corrupt the iteration, and the sends run without the lock
// so one slow connection never stalls the registry. Connections whose send
// fails are dropped from the affected channels; delivery to the remaining
// recipients continues regardless.
func (r *Registry) BroadcastMany(ctx context.Context, keys []ChannelKey, payload any) {
	r.mu.Lock()
	seen := make(map[Conn]struct{})
	var conns []Conn
	for _, key := range keys {
		for c := range r.channels[key] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			conns = append(conns, c)
		}
	}
	r.mu.Unlock()

	var failed []Conn
	for _, c := range conns {
		if err := c.Send(ctx, payload); err != nil {
			failed = append(failed, c)
		}
	}

	if len(failed) == 0 {
		return
	}

	r.mu.Lock()
	for _, c := range failed {
		for _, key := range keys {
			r.removeLocked(key, c)
		}
	}
	r.mu.Unlock()

	if r.log != nil {
		r.log.Debug().Int("pruned", len(failed)).Msg("dropped dead connections during broadcast")
	}
}

// Shutdown drops every subscription. Connections themselves are closed by
// their own handlers; the registry only forgets them.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = make(map[ChannelKey]map[Conn]struct{})
}
