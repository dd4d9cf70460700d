package core

import "strings"

// ChannelKind discriminates the three channel families.
type ChannelKind int8

const (
	// ChannelNotify is a single user's out-of-band notification stream.
	ChannelNotify ChannelKind = iota
	// ChannelDirect is a one-to-one conversation between two users.
	ChannelDirect
	// ChannelRoom is a named group conversation.
	ChannelRoom
)

// ChannelKey identifies one logical delivery scope in the registry.
// It is a comparable value type so it can be used directly as a map key.
// For direct channels A and B hold the two participants in canonical order;
// for notify and room channels only A is set.
type ChannelKey struct {
	Kind ChannelKind
	A    string
	B    string
}

// NotifyKey returns the notification channel key for a user.
func NotifyKey(user string) ChannelKey {
	return ChannelKey{Kind: ChannelNotify, A: normalize(user)}
}

// DirectKey returns the conversation key for a pair of users.
// It is commutative: DirectKey(a, b) == DirectKey(b, a).
func DirectKey(a, b string) ChannelKey {
	a, b = normalize(a), normalize(b)
	if b < a {
		a, b = b, a
	}
	return ChannelKey{Kind: ChannelDirect, A: a, B: b}
}

// RoomKey returns the channel key for a named room.
func RoomKey(name string) ChannelKey {
	return ChannelKey{Kind: ChannelRoom, A: normalize(name)}
}

// normalize maps identities and room names to their canonical form so that
// case and surrounding whitespace never split one logical channel in two.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
