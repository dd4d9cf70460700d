package store

import "context"

// User represents a registered user.
type User struct {
	Username     string
	DisplayName  string
	PasswordHash string
	CreatedAt    int64 // unix seconds
}

// DirectMessage is a persisted one-to-one message.
type DirectMessage struct {
	ID   int64
	From string
	To   string
	Text string
	TS   int64 // unix milliseconds
}

// RoomMessage is a persisted room message.
type RoomMessage struct {
	ID   int64
	Room string
	From string
	Text string
	TS   int64 // unix milliseconds
}

// DialogKind distinguishes conversation kinds in dialog listings.
type DialogKind string

const (
	DialogKindDirect DialogKind = "dm"
	DialogKindRoom   DialogKind = "room"
)

// Dialog summarizes one conversation a user participates in.
type Dialog struct {
	Kind   DialogKind
	ID     string // peer username or room name
	LastTS int64
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, displayName, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username (case-insensitive).
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers matches usernames and display names by substring,
	// ordered by username. An empty query lists users.
	SearchUsers(ctx context.Context, query string, limit int) ([]*User, error)
}

// MessageStore handles message persistence and history queries.
type MessageStore interface {
	// AppendDirect persists a one-to-one message.
	AppendDirect(ctx context.Context, msg *DirectMessage) error

	// AppendRoom persists a room message.
	AppendRoom(ctx context.Context, msg *RoomMessage) error

	// ListDirect returns direct history between two users in ascending
	// timestamp order, regardless of argument order.
	ListDirect(ctx context.Context, a, b string, limit int) ([]*DirectMessage, error)

	// ListRoom returns room history in ascending timestamp order.
	ListRoom(ctx context.Context, room string, limit int) ([]*RoomMessage, error)

	// ListDialogs returns the user's direct conversations plus all rooms,
	// each with the timestamp of its latest message.
	ListDialogs(ctx context.Context, username string) ([]*Dialog, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
