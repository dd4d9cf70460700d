package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	key := RoomKey("general")
	conn := &fakeConn{}

	r.Register(key, conn)
	r.Register(key, conn)

	if got := r.Count(key); got != 1 {
		t.Fatalf("expected 1 registered connection, got %d", got)
	}
}

func TestUnregisterAbsentConnIsNoop(t *testing.T) {
	r := NewRegistry(nil)
	key := RoomKey("general")

	// Never registered at all.
	r.Unregister(key, &fakeConn{})

	// Registered once, removed twice.
	conn := &fakeConn{}
	r.Register(key, conn)
	r.Unregister(key, conn)
	r.Unregister(key, conn)

	if got := r.Count(key); got != 0 {
		t.Fatalf("expected empty channel, got %d", got)
	}
}

func TestBroadcastPrunesFailedConnAndContinues(t *testing.T) {
	r := NewRegistry(nil)
	key := DirectKey("alice", "bob")

	c1 := &fakeConn{}
	c2 := &fakeConn{fail: true}
	c3 := &fakeConn{}
	r.Register(key, c1)
	r.Register(key, c2)
	r.Register(key, c3)

	r.Broadcast(context.Background(), key, "payload")

	if got := r.Count(key); got != 2 {
		t.Fatalf("expected failed connection pruned, channel size = %d", got)
	}
	for i, c := range []*fakeConn{c1, c3} {
		if got := c.received(); len(got) != 1 || got[0] != "payload" {
			t.Fatalf("conn %d: expected exactly one payload, got %v", i, got)
		}
	}
	if got := c2.received(); len(got) != 0 {
		t.Fatalf("failed conn should not record deliveries, got %v", got)
	}
}

func TestBroadcastToEmptyChannel(t *testing.T) {
	r := NewRegistry(nil)
	r.Broadcast(context.Background(), RoomKey("ghost"), "payload")
}

func TestNotifyManyReachesEveryUsersSockets(t *testing.T) {
	r := NewRegistry(nil)

	alicePhone := &fakeConn{}
	aliceLaptop := &fakeConn{}
	bob := &fakeConn{}
	r.Register(NotifyKey("alice"), alicePhone)
	r.Register(NotifyKey("alice"), aliceLaptop)
	r.Register(NotifyKey("bob"), bob)

	r.NotifyMany(context.Background(), []string{"alice", "bob"}, "ding")

	for i, c := range []*fakeConn{alicePhone, aliceLaptop, bob} {
		if got := c.received(); len(got) != 1 || got[0] != "ding" {
			t.Fatalf("conn %d: expected one notification, got %v", i, got)
		}
	}
}

func TestBroadcastManyDeliversOncePerConn(t *testing.T) {
	r := NewRegistry(nil)

	// One socket holding both the conversation view and its owner's
	// notify stream.
	both := &fakeConn{}
	r.Register(DirectKey("alice", "bob"), both)
	r.Register(NotifyKey("bob"), both)

	notifyOnly := &fakeConn{}
	r.Register(NotifyKey("alice"), notifyOnly)

	r.BroadcastMany(context.Background(), []ChannelKey{
		DirectKey("alice", "bob"),
		NotifyKey("alice"),
		NotifyKey("bob"),
	}, "payload")

	if got := both.received(); len(got) != 1 {
		t.Fatalf("multi-subscribed conn must receive exactly one copy, got %d", len(got))
	}
	if got := notifyOnly.received(); len(got) != 1 {
		t.Fatalf("notify-only conn must receive one copy, got %d", len(got))
	}
}

func TestConcurrentRegisterUnregisterBroadcast(t *testing.T) {
	r := NewRegistry(nil)
	key := RoomKey("stress")
	ctx := context.Background()

	const workers = 32
	const iterations = 200

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			conn := &fakeConn{}
			for i := range iterations {
				switch i % 3 {
				case 0:
					r.Register(key, conn)
				case 1:
					r.Broadcast(ctx, key, fmt.Sprintf("w%d-i%d", w, i))
				default:
					r.Unregister(key, conn)
				}
			}
		}(w)
	}
	wg.Wait()

	if got := r.Count(key); got > workers {
		t.Fatalf("registry corrupted: %d entries for %d workers", got, workers)
	}
}
