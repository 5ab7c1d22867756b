package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound    = "room_not_found"
	ErrCodeMessageNotFound = "message_not_found"
	ErrCodeValidation      = "validation_failure"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeFanout          = "fanout_failure"
	ErrCodeBadRequest      = "bad_request"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrValidation      = errors.New("validation failure")
	ErrUnauthorized    = errors.New("unauthorized")
	// ErrFanout marks a publish failure after a committed write. The write
	// is never rolled back on account of it.
	ErrFanout        = errors.New("fanout publish failure")
	ErrNoClearFilter = errors.New("clear requires a room or user filter")
)

// ErrorCode maps a domain error to its wire code. Unknown errors map to
// the empty string.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return ErrCodeRoomNotFound
	case errors.Is(err, ErrMessageNotFound):
		return ErrCodeMessageNotFound
	case errors.Is(err, ErrValidation):
		return ErrCodeValidation
	case errors.Is(err, ErrUnauthorized):
		return ErrCodeUnauthorized
	case errors.Is(err, ErrFanout):
		return ErrCodeFanout
	case errors.Is(err, ErrNoClearFilter):
		return ErrCodeBadRequest
	default:
		return ""
	}
}

// CoreError wraps a code and human-readable message. It is the form domain
// errors take on the wire; clients rebuild it from error response bodies.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}
