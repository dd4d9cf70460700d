package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/relaychat/relaychat-server/internal/store"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	from_user TEXT NOT NULL,
	to_user   TEXT NOT NULL,
	text      TEXT NOT NULL,
	ts        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS room_messages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	room      TEXT NOT NULL,
	from_user TEXT NOT NULL,
	text      TEXT NOT NULL,
	ts        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_msg_dm ON messages(from_user, to_user, ts);
CREATE INDEX IF NOT EXISTS idx_msg_room ON room_messages(room, ts);
`

// New creates a new SQLite store and ensures the schema exists.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection. This also serializes
	// message appends ahead of broadcast, so a reader notified of a new
	// message always finds it in history.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function after
// the schema is applied. Useful for tests to seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, displayName, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, display_name, password_hash, created_at)
		VALUES (?, ?, ?, strftime('%s','now'))
	`
	if _, err := s.db.ExecContext(ctx, query, username, displayName, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByUsername(ctx, username)
}

// GetUserByUsername retrieves a user by username (case-insensitive).
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT username, display_name, password_hash, created_at
		FROM users
		WHERE LOWER(username) = LOWER(?)
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.Username,
		&user.DisplayName,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// SearchUsers matches usernames and display names by substring.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string, limit int) ([]*store.User, error) {
	query = strings.TrimSpace(query)

	var rows *sql.Rows
	var err error
	if query != "" {
		pattern := "%" + query + "%"
		rows, err = s.db.QueryContext(ctx, `
			SELECT username, display_name, password_hash, created_at
			FROM users
			WHERE LOWER(username) LIKE LOWER(?) OR LOWER(display_name) LIKE LOWER(?)
			ORDER BY username
			LIMIT ?
		`, pattern, pattern, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT username, display_name, password_hash, created_at
			FROM users
			ORDER BY username
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.Username, &u.DisplayName, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}

	return users, rows.Err()
}

// ==== MessageStore implementation ====

// AppendDirect persists a one-to-one message.
func (s *SQLiteStore) AppendDirect(ctx context.Context, msg *store.DirectMessage) error {
	query := `
		INSERT INTO messages (from_user, to_user, text, ts)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.From, msg.To, msg.Text, msg.TS)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// AppendRoom persists a room message.
func (s *SQLiteStore) AppendRoom(ctx context.Context, msg *store.RoomMessage) error {
	query := `
		INSERT INTO room_messages (room, from_user, text, ts)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.Room, msg.From, msg.Text, msg.TS)
	if err != nil {
		return fmt.Errorf("insert room message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListDirect returns direct history between two users in ascending timestamp
// order, regardless of argument order.
func (s *SQLiteStore) ListDirect(ctx context.Context, a, b string, limit int) ([]*store.DirectMessage, error) {
	query := `
		SELECT id, from_user, to_user, text, ts
		FROM messages
		WHERE (from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?)
		ORDER BY ts ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, a, b, b, a, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.DirectMessage
	for rows.Next() {
		var msg store.DirectMessage
		if err := rows.Scan(&msg.ID, &msg.From, &msg.To, &msg.Text, &msg.TS); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// ListRoom returns room history in ascending timestamp order.
func (s *SQLiteStore) ListRoom(ctx context.Context, room string, limit int) ([]*store.RoomMessage, error) {
	query := `
		SELECT id, room, from_user, text, ts
		FROM room_messages
		WHERE room = ?
		ORDER BY ts ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query room messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.RoomMessage
	for rows.Next() {
		var msg store.RoomMessage
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.From, &msg.Text, &msg.TS); err != nil {
			return nil, fmt.Errorf("scan room message: %w", err)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// ListDialogs returns the user's direct conversations plus all rooms, each
// with the timestamp of its latest message.
func (s *SQLiteStore) ListDialogs(ctx context.Context, username string) ([]*store.Dialog, error) {
	dmQuery := `
		SELECT other, MAX(ts) AS last_ts FROM (
			SELECT CASE WHEN from_user = ? THEN to_user ELSE from_user END AS other, ts
			FROM messages
			WHERE from_user = ? OR to_user = ?
		) GROUP BY other
		ORDER BY last_ts DESC
	`
	rows, err := s.db.QueryContext(ctx, dmQuery, username, username, username)
	if err != nil {
		return nil, fmt.Errorf("query dm dialogs: %w", err)
	}
	defer rows.Close()

	var dialogs []*store.Dialog
	for rows.Next() {
		d := store.Dialog{Kind: store.DialogKindDirect}
		if err := rows.Scan(&d.ID, &d.LastTS); err != nil {
			return nil, fmt.Errorf("scan dm dialog: %w", err)
		}
		dialogs = append(dialogs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	roomRows, err := s.db.QueryContext(ctx, `
		SELECT room, MAX(ts) AS last_ts
		FROM room_messages
		GROUP BY room
		ORDER BY last_ts DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query room dialogs: %w", err)
	}
	defer roomRows.Close()

	for roomRows.Next() {
		d := store.Dialog{Kind: store.DialogKindRoom}
		if err := roomRows.Scan(&d.ID, &d.LastTS); err != nil {
			return nil, fmt.Errorf("scan room dialog: %w", err)
		}
		dialogs = append(dialogs, &d)
	}

	return dialogs, roomRows.Err()
}
