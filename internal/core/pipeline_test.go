package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relaychat/relaychat-server/internal/proto"
	"github.com/relaychat/relaychat-server/internal/store"
)

type fakeMessageStore struct {
	mu         sync.Mutex
	direct     []*store.DirectMessage
	rooms      []*store.RoomMessage
	failAppend bool
	onAppend   func()
}

func (s *fakeMessageStore) AppendDirect(_ context.Context, msg *store.DirectMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onAppend != nil {
		s.onAppend()
	}
	if s.failAppend {
		return errors.New("disk full")
	}
	msg.ID = int64(len(s.direct) + 1)
	s.direct = append(s.direct, msg)
	return nil
}

func (s *fakeMessageStore) AppendRoom(_ context.Context, msg *store.RoomMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onAppend != nil {
		s.onAppend()
	}
	if s.failAppend {
		return errors.New("disk full")
	}
	msg.ID = int64(len(s.rooms) + 1)
	s.rooms = append(s.rooms, msg)
	return nil
}

func (s *fakeMessageStore) ListDirect(context.Context, string, string, int) ([]*store.DirectMessage, error) {
	return nil, nil
}

func (s *fakeMessageStore) ListRoom(context.Context, string, int) ([]*store.RoomMessage, error) {
	return nil, nil
}

func (s *fakeMessageStore) ListDialogs(context.Context, string) ([]*store.Dialog, error) {
	return nil, nil
}

func (s *fakeMessageStore) directCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.direct)
}

func newTestPipeline(st *fakeMessageStore) (*Pipeline, *Registry) {
	registry := NewRegistry(nil)
	p := NewPipeline(registry, st, nil)
	p.now = func() time.Time { return time.UnixMilli(12345) }
	return p, registry
}

func TestSubmitDirectDiscardsWhitespaceOnlyText(t *testing.T) {
	st := &fakeMessageStore{}
	p, registry := newTestPipeline(st)

	conn := &fakeConn{}
	registry.Register(DirectKey("alice", "bob"), conn)

	if err := p.SubmitDirect(context.Background(), "alice", "bob", proto.Frame{Text: "  "}); err != nil {
		t.Fatalf("whitespace-only text must be a silent no-op, got %v", err)
	}

	if st.directCount() != 0 {
		t.Fatal("whitespace-only message must not be persisted")
	}
	if got := conn.received(); len(got) != 0 {
		t.Fatalf("whitespace-only message must not be broadcast, got %v", got)
	}
}

func TestSubmitDirectDiscardsPings(t *testing.T) {
	st := &fakeMessageStore{}
	p, registry := newTestPipeline(st)

	conn := &fakeConn{}
	registry.Register(DirectKey("alice", "bob"), conn)

	if err := p.SubmitDirect(context.Background(), "alice", "bob", proto.Frame{Type: "ping"}); err != nil {
		t.Fatalf("ping must be a silent no-op, got %v", err)
	}

	if st.directCount() != 0 || len(conn.received()) != 0 {
		t.Fatal("ping frames must be neither persisted nor broadcast")
	}
}

func TestSubmitDirectStorageFailureSkipsBroadcast(t *testing.T) {
	st := &fakeMessageStore{failAppend: true}
	p, registry := newTestPipeline(st)

	conn := &fakeConn{}
	registry.Register(DirectKey("alice", "bob"), conn)

	err := p.SubmitDirect(context.Background(), "alice", "bob", proto.Frame{Text: "hi"})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if got := conn.received(); len(got) != 0 {
		t.Fatalf("message must not be broadcast when persistence fails, got %v", got)
	}
}

func TestSubmitDirectPersistsBeforeBroadcast(t *testing.T) {
	var mu sync.Mutex
	var order []string

	st := &fakeMessageStore{}
	st.onAppend = func() {
		mu.Lock()
		order = append(order, "persist")
		mu.Unlock()
	}
	p, registry := newTestPipeline(st)

	conn := &fakeConn{}
	conn.onSend = func() {
		mu.Lock()
		order = append(order, "deliver")
		mu.Unlock()
	}
	registry.Register(DirectKey("alice", "bob"), conn)

	if err := p.SubmitDirect(context.Background(), "alice", "bob", proto.Frame{Text: "hi"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) < 2 || order[0] != "persist" {
		t.Fatalf("persistence must happen before broadcast, got %v", order)
	}
}

func TestSubmitDirectFansOutToConversationAndNotifyChannels(t *testing.T) {
	st := &fakeMessageStore{}
	p, registry := newTestPipeline(st)

	// Connection A: alice's dm view + her notify stream.
	aliceDM := &fakeConn{}
	aliceNotify := &fakeConn{}
	registry.Register(DirectKey("alice", "bob"), aliceDM)
	registry.Register(NotifyKey("alice"), aliceNotify)

	// Connection B: bob's dm view + his notify stream.
	bobDM := &fakeConn{}
	bobNotify := &fakeConn{}
	registry.Register(DirectKey("bob", "alice"), bobDM)
	registry.Register(NotifyKey("bob"), bobNotify)

	if err := p.SubmitDirect(context.Background(), "Alice", "Bob", proto.Frame{Text: " hi "}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if st.directCount() != 1 {
		t.Fatalf("expected one persisted message, got %d", st.directCount())
	}
	persisted := st.direct[0]
	if persisted.From != "alice" || persisted.To != "bob" || persisted.Text != "hi" || persisted.TS != 12345 {
		t.Fatalf("unexpected persisted message: %+v", persisted)
	}

	want := proto.NewDirectMessage("alice", "bob", "hi", 12345)
	for name, c := range map[string]*fakeConn{
		"alice dm": aliceDM, "alice notify": aliceNotify,
		"bob dm": bobDM, "bob notify": bobNotify,
	} {
		got := c.received()
		if len(got) != 1 {
			t.Fatalf("%s: expected exactly one payload, got %d", name, len(got))
		}
		if got[0] != any(want) {
			t.Fatalf("%s: unexpected payload %+v", name, got[0])
		}
	}
}

func TestSubmitRoomNotifiesAuthorOnly(t *testing.T) {
	st := &fakeMessageStore{}
	p, registry := newTestPipeline(st)

	roomConn := &fakeConn{}
	authorNotify := &fakeConn{}
	lurkerNotify := &fakeConn{}
	registry.Register(RoomKey("General"), roomConn)
	registry.Register(NotifyKey("alice"), authorNotify)
	registry.Register(NotifyKey("carol"), lurkerNotify)

	if err := p.SubmitRoom(context.Background(), "General", "alice", proto.Frame{Text: "hello"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := proto.NewRoomMessage("general", "alice", "hello", 12345)
	if got := roomConn.received(); len(got) != 1 || got[0] != any(want) {
		t.Fatalf("room conn: unexpected payloads %v", got)
	}
	if got := authorNotify.received(); len(got) != 1 || got[0] != any(want) {
		t.Fatalf("author notify: unexpected payloads %v", got)
	}
	if got := lurkerNotify.received(); len(got) != 0 {
		t.Fatalf("uninvolved notify stream must stay silent, got %v", got)
	}
}
