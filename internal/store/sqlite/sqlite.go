package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/fanchat-io/fanchat-server/internal/core"
	"github.com/fanchat-io/fanchat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id   INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(64) NOT NULL UNIQUE,
	slug VARCHAR(64) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS messages (
	id        INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	date_sent DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	user      VARCHAR(64) NOT NULL,
	message   TEXT NOT NULL CHECK (LENGTH("message") <= 1000),
	room_id   INTEGER NOT NULL REFERENCES rooms (id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS messages_date_sent_idx ON messages (date_sent);
`

const seed = `
INSERT INTO rooms (name, slug) VALUES ('DevOps Barcelona', 'devops-bcn');
INSERT INTO messages (user, message, room_id) VALUES ('Dora', 'Hello everyone!', 1);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
// An empty database is seeded with a default room.
func New(dbPath string) (*SQLiteStore, error) {
	s, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := s.init(); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithSetup opens the database and runs a setup function instead of the
// built-in schema. Useful for tests.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := open(dbPath)
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

func open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; the engine serializes
	// writes, so id assignment order defines the authoritative send order.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM rooms`).Scan(&count); err != nil {
		return fmt.Errorf("count rooms: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec(seed); err != nil {
			return fmt.Errorf("seed rooms: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== RoomStore implementation ====

// DefaultRoom returns the first provisioned room.
func (s *SQLiteStore) DefaultRoom(ctx context.Context) (*core.Room, error) {
	query := `SELECT id, name, slug FROM rooms ORDER BY id LIMIT 1`

	var room core.Room
	err := s.db.QueryRowContext(ctx, query).Scan(&room.ID, &room.Name, &room.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query default room: %w", err)
	}
	return &room, nil
}

// RoomBySlug resolves a room by its URL slug.
func (s *SQLiteStore) RoomBySlug(ctx context.Context, slug string) (*core.Room, error) {
	query := `SELECT id, name, slug FROM rooms WHERE slug = ? LIMIT 1`

	var room core.Room
	err := s.db.QueryRowContext(ctx, query, slug).Scan(&room.ID, &room.Name, &room.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query room %q: %w", slug, err)
	}
	return &room, nil
}

// AddRoom provisions a room. Rooms are created at setup/seed time only.
func (s *SQLiteStore) AddRoom(ctx context.Context, name, slug string) (*core.Room, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO rooms (name, slug) VALUES (?, ?)`, name, slug)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return &core.Room{ID: id, Name: name, Slug: slug}, nil
}

// ==== MessageStore implementation ====

// AppendMessage inserts an already-sanitized message and returns the
// persisted row.
func (s *SQLiteStore) AppendMessage(ctx context.Context, roomID int64, user, text string) (*core.Message, error) {
	query := `
		INSERT INTO messages (user, message, room_id, date_sent)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, user, text, roomID, time.Now().UTC())
	if err != nil {
		// Markdown rendering can expand short raw input past the stored
		// length check; that is a bad message, not a server fault.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("%w: message rejected by storage constraints", core.ErrValidation)
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.messageByID(ctx, id)
}

func (s *SQLiteStore) messageByID(ctx context.Context, id int64) (*core.Message, error) {
	query := `
		SELECT id, room_id, user, message, date_sent
		FROM messages
		WHERE id = ?
	`
	var msg core.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.User,
		&msg.Text,
		&msg.DateSent,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrMessageNotFound
		}
		return nil, fmt.Errorf("query message %d: %w", id, err)
	}
	return &msg, nil
}

// ListMessages returns a newest-first page of messages.
func (s *SQLiteStore) ListMessages(ctx context.Context, params store.ListParams) ([]*core.Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if params.BeforeID != nil {
		query := `
			SELECT id, room_id, user, message, date_sent
			FROM messages
			WHERE room_id = ? AND id < ?
			ORDER BY id DESC
			LIMIT ? OFFSET ?
		`
		rows, err = s.db.QueryContext(ctx, query, params.RoomID, *params.BeforeID, params.Limit, params.Offset)
	} else {
		query := `
			SELECT id, room_id, user, message, date_sent
			FROM messages
			WHERE room_id = ?
			ORDER BY id DESC
			LIMIT ? OFFSET ?
		`
		rows, err = s.db.QueryContext(ctx, query, params.RoomID, params.Limit, params.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*core.Message, 0, params.Limit)
	for rows.Next() {
		var msg core.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.User, &msg.Text, &msg.DateSent); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// OldestMessageID returns the id of the earliest surviving message in the room.
func (s *SQLiteStore) OldestMessageID(ctx context.Context, roomID int64) (int64, error) {
	query := `SELECT MIN(id) FROM messages WHERE room_id = ?`

	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, roomID).Scan(&id); err != nil {
		return 0, fmt.Errorf("query oldest message: %w", err)
	}
	if !id.Valid {
		return 0, core.ErrMessageNotFound
	}
	return id.Int64, nil
}

// MessageSender returns the user who sent the given message.
func (s *SQLiteStore) MessageSender(ctx context.Context, id int64) (string, error) {
	query := `SELECT user FROM messages WHERE id = ? LIMIT 1`

	var user string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", core.ErrMessageNotFound
		}
		return "", fmt.Errorf("query message sender: %w", err)
	}
	return user, nil
}

// DeleteMessage deletes a single message by id.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete message %d: %w", id, err)
	}
	return nil
}

// ClearMessages bulk-deletes messages matching the filter. Affected rooms
// are collected before deleting so every room that lost messages is
// reported, including for user-only clears that span rooms.
func (s *SQLiteStore) ClearMessages(ctx context.Context, filter store.ClearFilter) ([]core.Room, error) {
	if filter.RoomID == nil && filter.User == "" {
		return nil, core.ErrNoClearFilter
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	affected, err := affectedRooms(ctx, tx, filter)
	if err != nil {
		return nil, err
	}

	switch {
	case filter.RoomID != nil && filter.User != "":
		_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE room_id = ? AND user = ?`, *filter.RoomID, filter.User)
	case filter.User != "":
		_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE user = ?`, filter.User)
	default:
		_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE room_id = ?`, *filter.RoomID)
	}
	if err != nil {
		return nil, fmt.Errorf("clear messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit clear: %w", err)
	}
	return affected, nil
}

func affectedRooms(ctx context.Context, tx *sql.Tx, filter store.ClearFilter) ([]core.Room, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case filter.RoomID != nil:
		rows, err = tx.QueryContext(ctx, `SELECT id, name, slug FROM rooms WHERE id = ?`, *filter.RoomID)
	default:
		rows, err = tx.QueryContext(ctx, `
			SELECT DISTINCT rooms.id, rooms.name, rooms.slug
			FROM rooms JOIN messages ON rooms.id = messages.room_id
			WHERE messages.user = ?
		`, filter.User)
	}
	if err != nil {
		return nil, fmt.Errorf("query affected rooms: %w", err)
	}
	defer rows.Close()

	var affected []core.Room
	for rows.Next() {
		var room core.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Slug); err != nil {
			return nil, fmt.Errorf("scan affected room: %w", err)
		}
		affected = append(affected, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate affected rooms: %w", err)
	}
	return affected, nil
}
