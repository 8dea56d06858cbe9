// Package game implements the typing-race domain: room lifecycle,
// progress aggregation, race finalization, and the ranked read views.
package game

import (
	"context"
	"errors"
	"fmt"

	"typerace/internal/passages"
	"typerace/internal/rooms"
)

const (
	MinPlayers  = 2
	MaxPlayers  = 10
	MinDuration = 60  // seconds
	MaxDuration = 600 // seconds
	MaxNameLen  = 50

	codeAttempts = 10
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type CreateRoomInput struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"maxPlayers"`
	Difficulty string `json:"difficulty"`
	Duration   int    `json:"duration"`
}

// CreateRoom validates the input, picks the passage for the requested
// difficulty, and persists a waiting room under a fresh code. Code
// collisions are retried against the store's unique constraint.
func (s *Service) CreateRoom(ctx context.Context, ownerID string, in CreateRoomInput) (*Room, error) {
	if len(in.Name) == 0 || len(in.Name) > MaxNameLen {
		return nil, invalid("name", "must be between 1 and %d characters", MaxNameLen)
	}
	if in.MaxPlayers < MinPlayers || in.MaxPlayers > MaxPlayers {
		return nil, invalid("maxPlayers", "must be between %d and %d", MinPlayers, MaxPlayers)
	}
	text, ok := passages.ForDifficulty(in.Difficulty)
	if !ok {
		return nil, invalid("difficulty", "must be one of easy, medium, hard, expert")
	}
	if in.Duration < MinDuration || in.Duration > MaxDuration {
		return nil, invalid("duration", "must be between %d and %d seconds", MinDuration, MaxDuration)
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := rooms.GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		room, err := s.store.CreateRoom(ctx, &Room{
			Code:        code,
			Name:        in.Name,
			OwnerID:     ownerID,
			MaxPlayers:  in.MaxPlayers,
			Status:      StatusWaiting,
			TextContent: text,
			Difficulty:  in.Difficulty,
			Duration:    in.Duration,
		})
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating room: %w", err)
		}
		return room, nil
	}
	return nil, fmt.Errorf("failed to generate unique room code after %d attempts", codeAttempts)
}

// JoinRoom admits the user into the room with the given code. The
// pre-checks give precise errors; the store re-checks them atomically
// when inserting the participant, so two racing joins cannot push a
// room past capacity.
func (s *Service) JoinRoom(ctx context.Context, userID, code string) (*RoomWithParticipants, *Participant, error) {
	if len(code) != rooms.CodeLength {
		return nil, nil, invalid("code", "must be exactly %d characters", rooms.CodeLength)
	}

	room, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if room.Status != StatusWaiting {
		return nil, nil, ErrRoomNotJoinable
	}
	if room.CurrentPlayers >= room.MaxPlayers {
		return nil, nil, ErrRoomFull
	}
	for _, p := range room.Participants {
		if p.UserID == userID {
			return nil, nil, ErrAlreadyJoined
		}
	}

	participant, err := s.store.AddParticipant(ctx, room.ID, userID)
	if err != nil {
		return nil, nil, err
	}

	// Re-read so the returned room includes the new participant and
	// the bumped occupancy.
	joined, err := s.store.GetRoomByID(ctx, room.ID)
	if err != nil {
		return nil, nil, err
	}
	return joined, participant, nil
}

// StartRoom moves a waiting room to in_progress. Only the owner may
// start a race; status transitions are forward-only.
func (s *Service) StartRoom(ctx context.Context, userID, roomID string) (*RoomWithParticipants, error) {
	room, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != userID {
		return nil, ErrNotRoomOwner
	}
	if err := s.store.StartRoom(ctx, room.ID); err != nil {
		return nil, err
	}
	return s.store.GetRoomByID(ctx, room.ID)
}

func (s *Service) GetRoomByCode(ctx context.Context, code string) (*RoomWithParticipants, error) {
	return s.store.GetRoomByCode(ctx, code)
}

// RoomParticipants returns the room's participants with their users,
// ordered by progress descending for race-position views.
func (s *Service) RoomParticipants(ctx context.Context, roomID string) ([]ParticipantWithUser, error) {
	return s.store.GetRoomParticipants(ctx, roomID)
}

// UpdateProgress overwrites a participant's live metrics with the
// reported snapshot. Replaying a snapshot is a no-op; a later snapshot
// always wins regardless of whether it moved forward.
func (s *Service) UpdateProgress(ctx context.Context, participantID string, snap ProgressSnapshot) error {
	if snap.Wpm < 0 {
		return invalid("wpm", "must not be negative")
	}
	if snap.Accuracy < 0 || snap.Accuracy > 100 {
		return invalid("accuracy", "must be between 0 and 100")
	}
	if snap.Progress < 0 || snap.Progress > 100 {
		return invalid("progress", "must be between 0 and 100")
	}
	if snap.CharactersTyped < 0 {
		return invalid("charactersTyped", "must not be negative")
	}
	if snap.Errors < 0 {
		return invalid("errors", "must not be negative")
	}
	return s.store.UpdateParticipantProgress(ctx, participantID, snap)
}

// FinishGame finalizes a participant's race and returns their
// placement. Placement is the count of participants already finished
// in the room plus one; the store serializes racing finish calls so
// placements stay unique. Finishing twice returns the original
// placement without touching lifetime stats again.
func (s *Service) FinishGame(ctx context.Context, participantID string, finalWpm int, finalAccuracy float64) (int, error) {
	if finalWpm < 0 {
		return 0, invalid("finalWpm", "must not be negative")
	}
	if finalAccuracy < 0 || finalAccuracy > 100 {
		return 0, invalid("finalAccuracy", "must be between 0 and 100")
	}
	return s.store.FinishParticipant(ctx, participantID, finalWpm, finalAccuracy)
}

// Leaderboard lists users who have completed at least one race,
// ordered by best WPM descending.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.GetLeaderboard(ctx, limit)
}

// UserHistory returns the user's game results, newest first.
func (s *Service) UserHistory(ctx context.Context, userID string, limit int) ([]GameResult, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.GetUserHistory(ctx, userID, limit)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.store.GetUser(ctx, id)
}

// UpsertUser records the identity asserted by the session token.
// Lifetime aggregates are never touched here; they belong to
// FinishGame.
func (s *Service) UpsertUser(ctx context.Context, user *User) (*User, error) {
	if user.ID == "" {
		return nil, invalid("id", "must not be empty")
	}
	return s.store.UpsertUser(ctx, user)
}
