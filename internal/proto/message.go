package proto

// FrameTypePing marks a client keepalive frame. Pings are discarded by the
// pipeline: never persisted, never broadcast.
const FrameTypePing = "ping"

const (
	// OutboundTypeMessage tags a direct message payload.
	OutboundTypeMessage = "message"
	// OutboundTypeRoom tags a room message payload.
	OutboundTypeRoom = "room"
)

// Frame is an inbound frame on a conversation socket.
type Frame struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// IsPing reports whether the frame is a keepalive marker.
func (f Frame) IsPing() bool {
	return f.Type == FrameTypePing
}

// DirectMessage is the outbound payload for a one-to-one message. The same
// payload doubles as the notification for both participants.
type DirectMessage struct {
	Type string `json:"type"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// NewDirectMessage builds a tagged direct message payload.
func NewDirectMessage(from, to, text string, ts int64) DirectMessage {
	return DirectMessage{Type: OutboundTypeMessage, From: from, To: to, Text: text, TS: ts}
}

// RoomMessage is the outbound payload for a room message.
type RoomMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
	From string `json:"from"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// NewRoomMessage builds a tagged room message payload.
func NewRoomMessage(room, from, text string, ts int64) RoomMessage {
	return RoomMessage{Type: OutboundTypeRoom, Room: room, From: from, Text: text, TS: ts}
}
