package core

// EventKind names a fan-out event as it appears on the wire.
type EventKind string

const (
	// EventUpdate carries a full newly created message so subscribers can
	// render it without a follow-up fetch.
	EventUpdate EventKind = "update"
	// EventDelete carries only the id of a removed message.
	EventDelete EventKind = "delete"
	// EventRefresh tells subscribers to discard their view and refetch.
	// Emitted when a mutation cannot be expressed as a single add/remove.
	EventRefresh EventKind = "refresh"
)

// Event is a single fan-out delivery on a room channel.
type Event struct {
	Kind EventKind
	Data any
}

// UpdatePayload is the wire payload of an update event.
type UpdatePayload struct {
	ID       int64  `json:"id"`
	User     string `json:"user"`
	Message  string `json:"message"`
	DateSent string `json:"date_sent"`
}

// DeletePayload is the wire payload of a delete event.
type DeletePayload struct {
	ID int64 `json:"id"`
}

// RefreshPayload is the wire payload of a refresh event.
type RefreshPayload struct {
	Slug string `json:"slug"`
}
