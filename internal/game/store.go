package game

import "context"

// Store is the persistence capability the game service runs against.
// It is injected rather than reached for globally so the domain logic
// tests against the in-memory implementation.
//
// AddParticipant and FinishParticipant are the two read-modify-write
// operations in the system; implementations must make them atomic per
// room (conditional update or per-room serialization) so concurrent
// joins cannot overshoot capacity and concurrent finishes cannot share
// a placement.
type Store interface {
	// Users
	GetUser(ctx context.Context, id string) (*User, error)
	UpsertUser(ctx context.Context, user *User) (*User, error)

	// Rooms
	CreateRoom(ctx context.Context, room *Room) (*Room, error)
	GetRoomByCode(ctx context.Context, code string) (*RoomWithParticipants, error)
	GetRoomByID(ctx context.Context, id string) (*RoomWithParticipants, error)
	// StartRoom moves a waiting room to in_progress. Returns
	// ErrRoomAlreadyStarted when the room is past waiting.
	StartRoom(ctx context.Context, roomID string) error

	// Participants
	// AddParticipant admits a user into a waiting, non-full room the
	// user is not already in, incrementing the occupancy counter by
	// exactly one.
	AddParticipant(ctx context.Context, roomID, userID string) (*Participant, error)
	GetParticipant(ctx context.Context, id string) (*Participant, error)
	// UpdateParticipantProgress overwrites the live metrics,
	// last-write-wins. Rejected with ErrParticipantFinished once the
	// participant has finished.
	UpdateParticipantProgress(ctx context.Context, participantID string, snap ProgressSnapshot) error
	// GetRoomParticipants returns enriched participants ordered by
	// progress descending.
	GetRoomParticipants(ctx context.Context, roomID string) ([]ParticipantWithUser, error)

	// FinishParticipant runs the whole finalization: assigns the next
	// placement in the room, sets the terminal participant fields,
	// appends the GameResult record, folds the result into the user's
	// lifetime aggregates, and marks the room finished when this was
	// the last unfinished participant. Calling it again for an
	// already-finished participant returns the stored placement and
	// changes nothing.
	FinishParticipant(ctx context.Context, participantID string, finalWpm int, finalAccuracy float64) (placement int, err error)

	// Read-only ranked views
	GetLeaderboard(ctx context.Context, limit int) ([]User, error)
	GetUserHistory(ctx context.Context, userID string, limit int) ([]GameResult, error)
}
