package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaychat/relaychat-server/internal/proto"
	"github.com/relaychat/relaychat-server/internal/store"
)

// Pipeline takes validated inbound frames through timestamping, persistence
// and fan-out. Persistence happens before broadcast, so a client that
// queries history right after a notification sees the message that
// triggered it.
type Pipeline struct {
	registry *Registry
	messages store.MessageStore
	log      *zerolog.Logger
	now      func() time.Time
}

// NewPipeline constructs a pipeline over the shared registry and store.
func NewPipeline(registry *Registry, messages store.MessageStore, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{
		registry: registry,
		messages: messages,
		log:      logger,
		now:      time.Now,
	}
}

// SubmitDirect processes one inbound frame on a direct conversation.
// Pings and whitespace-only text are discarded silently. A storage failure
// is returned to the caller and the message is not broadcast.
func (p *Pipeline) SubmitDirect(ctx context.Context, from, to string, frame proto.Frame) error {
	text, ok := chatText(frame)
	if !ok {
		return nil
	}

	from, to = normalize(from), normalize(to)
	msg := &store.DirectMessage{
		From: from,
		To:   to,
		Text: text,
		TS:   p.now().UnixMilli(),
	}
	if err := p.messages.AppendDirect(ctx, msg); err != nil {
		return fmt.Errorf("%w: append direct message: %v", ErrStorage, err)
	}

	// One fan-out across the conversation and both participants' notify
	// streams: a socket subscribed to more than one of these channels
	// still gets exactly one copy.
	payload := proto.NewDirectMessage(from, to, text, msg.TS)
	p.registry.BroadcastMany(ctx, []ChannelKey{
		DirectKey(from, to),
		NotifyKey(from),
		NotifyKey(to),
	}, payload)

	if p.log != nil {
		p.log.Debug().Str("from", from).Str("to", to).Msg("direct message relayed")
	}
	return nil
}

// SubmitRoom processes one inbound frame on a room conversation. The room
// broadcast reaches everyone with the room open; the ambient notification
// goes to the author only, mirroring direct-message notifications for the
// author's other open sockets.
func (p *Pipeline) SubmitRoom(ctx context.Context, room, from string, frame proto.Frame) error {
	text, ok := chatText(frame)
	if !ok {
		return nil
	}

	room, from = normalize(room), normalize(from)
	msg := &store.RoomMessage{
		Room: room,
		From: from,
		Text: text,
		TS:   p.now().UnixMilli(),
	}
	if err := p.messages.AppendRoom(ctx, msg); err != nil {
		return fmt.Errorf("%w: append room message: %v", ErrStorage, err)
	}

	payload := proto.NewRoomMessage(room, from, text, msg.TS)
	p.registry.BroadcastMany(ctx, []ChannelKey{
		RoomKey(room),
		NotifyKey(from),
	}, payload)

	if p.log != nil {
		p.log.Debug().Str("room", room).Str("from", from).Msg("room message relayed")
	}
	return nil
}

// chatText extracts the message text from a frame. The second return value
// is false for frames that carry nothing to relay: keepalive pings and
// whitespace-only text, both deliberate no-ops.
func chatText(frame proto.Frame) (string, bool) {
	if frame.IsPing() {
		return "", false
	}
	text := strings.TrimSpace(frame.Text)
	if text == "" {
		return "", false
	}
	return text, true
}
