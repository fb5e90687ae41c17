package types

import "fmt"

// ErrorCode enumerates every failure surfaced to clients. Codes are part of
// the wire contract; do not rename.
type ErrorCode string

const (
	ErrRoomNotFound        ErrorCode = "ROOM_NOT_FOUND"
	ErrRoomFull            ErrorCode = "ROOM_FULL"
	ErrRoomNotJoinable     ErrorCode = "ROOM_NOT_JOINABLE"
	ErrInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	ErrNotYourTurn         ErrorCode = "NOT_YOUR_TURN"
	ErrInvalidMove         ErrorCode = "INVALID_MOVE"
	ErrInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrUnknownCommand      ErrorCode = "UNKNOWN_COMMAND"
	ErrCommandTimeout      ErrorCode = "COMMAND_TIMEOUT"
	ErrUndoForbidden       ErrorCode = "UNDO_FORBIDDEN"
	ErrReplayRejected      ErrorCode = "REPLAY_REJECTED"
	ErrValidation          ErrorCode = "VALIDATION_ERROR"
	ErrRateLimit           ErrorCode = "RATE_LIMIT"
	ErrRoomTerminated      ErrorCode = "ROOM_TERMINATED"
)

// Error is the data representation of every expected failure. Domain code
// treats errors as values, never as panics.
type Error struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Retryable marks the error as safe to retry and returns it for chaining.
func (e *Error) WithRetry() *Error {
	e.Retryable = true
	return e
}

// WithDetail attaches a detail entry and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}
