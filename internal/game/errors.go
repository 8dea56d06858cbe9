package game

import (
	"errors"
	"fmt"
)

// Sentinel errors for business-rule violations. The HTTP layer maps
// these onto status codes; anything else is treated as a store
// failure and reported generically.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrUserNotFound        = errors.New("user not found")

	// joinRoom
	ErrRoomNotJoinable = errors.New("room is not accepting new players")
	ErrRoomFull        = errors.New("room is full")
	ErrAlreadyJoined   = errors.New("already joined this room")

	// startRoom
	ErrNotRoomOwner       = errors.New("only the room owner can start the race")
	ErrRoomAlreadyStarted = errors.New("room has already started")

	// updateProgress after a finish call
	ErrParticipantFinished = errors.New("participant has already finished")

	// room code unique-constraint hit; callers regenerate and retry
	ErrCodeTaken = errors.New("room code already taken")
)

// ValidationError reports malformed or out-of-range input. It is
// user-fixable and maps to a 400 at the boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
