package core

import "time"

// Room is a chat room. Rooms are provisioned at setup time and immutable
// afterwards; exactly one room resolves per slug.
type Room struct {
	ID   int64
	Name string
	Slug string
}

// Channel returns the fan-out channel bound to this room.
func (r Room) Channel() string {
	return ChannelForSlug(r.Slug)
}

// ChannelForSlug derives the fan-out channel name for a room slug.
func ChannelForSlug(slug string) string {
	return "room-" + slug
}

// Message is the domain model for a chat message. Text always holds
// sanitized content; raw user input never reaches this struct.
type Message struct {
	ID       int64
	RoomID   int64
	User     string
	Text     string
	DateSent time.Time
}
