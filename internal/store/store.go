package store

import (
	"context"

	"github.com/fanchat-io/fanchat-server/internal/core"
)

// ListParams controls message pagination. BeforeID, when set, restricts the
// page to messages with id strictly below it (the cursor). Pages are always
// newest-first.
type ListParams struct {
	RoomID   int64
	BeforeID *int64
	Limit    int
	Offset   int
}

// ClearFilter selects messages for bulk deletion. At least one of RoomID and
// User must be set. A user-only filter spans rooms.
type ClearFilter struct {
	RoomID *int64
	User   string
}

// RoomStore resolves rooms. Rooms are provisioned at setup/seed time and
// immutable afterwards; no request path creates or mutates them.
type RoomStore interface {
	// DefaultRoom returns the first provisioned room.
	DefaultRoom(ctx context.Context) (*core.Room, error)

	// RoomBySlug resolves a room by its URL slug.
	RoomBySlug(ctx context.Context, slug string) (*core.Room, error)

	// AddRoom provisions a room. Setup, seeding, and fixtures only.
	AddRoom(ctx context.Context, name, slug string) (*core.Room, error)
}

// MessageStore handles message persistence and the pagination contract.
type MessageStore interface {
	// AppendMessage inserts an already-sanitized message and returns the
	// persisted row including the assigned id and date_sent.
	AppendMessage(ctx context.Context, roomID int64, user, text string) (*core.Message, error)

	// ListMessages returns a newest-first page of messages.
	ListMessages(ctx context.Context, params ListParams) ([]*core.Message, error)

	// OldestMessageID returns the id of the earliest surviving message in
	// the room, used as the backfill boundary.
	OldestMessageID(ctx context.Context, roomID int64) (int64, error)

	// MessageSender returns the user who sent the given message.
	MessageSender(ctx context.Context, id int64) (string, error)

	// DeleteMessage deletes a single message by id.
	DeleteMessage(ctx context.Context, id int64) error

	// ClearMessages bulk-deletes messages matching the filter and reports
	// every distinct room that lost messages, so the caller can invalidate
	// each one.
	ClearMessages(ctx context.Context, filter ClearFilter) ([]core.Room, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
