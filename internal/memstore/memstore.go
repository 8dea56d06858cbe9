// Package memstore is the in-memory game.Store. It backs unit tests
// and DB-less development; the server falls back to it when
// DATABASE_URL is unset.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"typerace/internal/game"
)

type Store struct {
	mu           sync.Mutex
	users        map[string]*game.User
	roomsByID    map[string]*game.Room
	roomsByCode  map[string]string // code -> room id
	participants map[string]*game.Participant
	results      []game.GameResult // append-only, insertion order is finish order
}

func New() *Store {
	return &Store{
		users:        make(map[string]*game.User),
		roomsByID:    make(map[string]*game.Room),
		roomsByCode:  make(map[string]string),
		participants: make(map[string]*game.Participant),
	}
}

func (s *Store) GetUser(ctx context.Context, id string) (*game.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, game.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpsertUser(ctx context.Context, user *game.User) (*game.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	existing, ok := s.users[user.ID]
	if !ok {
		cp := *user
		cp.CreatedAt = now
		cp.UpdatedAt = now
		s.users[user.ID] = &cp
		out := cp
		return &out, nil
	}
	// Identity fields only; lifetime aggregates belong to the finisher.
	existing.Email = user.Email
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	existing.ProfileImageURL = user.ProfileImageURL
	existing.Username = user.Username
	existing.UpdatedAt = now
	cp := *existing
	return &cp, nil
}

func (s *Store) CreateRoom(ctx context.Context, room *game.Room) (*game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roomsByCode[room.Code]; exists {
		return nil, game.ErrCodeTaken
	}
	now := time.Now()
	cp := *room
	cp.ID = uuid.New().String()
	cp.CurrentPlayers = 0
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.roomsByID[cp.ID] = &cp
	s.roomsByCode[cp.Code] = cp.ID
	out := cp
	return &out, nil
}

func (s *Store) GetRoomByCode(ctx context.Context, code string) (*game.RoomWithParticipants, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.roomsByCode[code]
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return s.assembleRoom(id)
}

func (s *Store) GetRoomByID(ctx context.Context, id string) (*game.RoomWithParticipants, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assembleRoom(id)
}

// assembleRoom builds the enriched room view. Callers hold the lock.
func (s *Store) assembleRoom(id string) (*game.RoomWithParticipants, error) {
	room, ok := s.roomsByID[id]
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	owner, ok := s.users[room.OwnerID]
	if !ok {
		return nil, game.ErrUserNotFound
	}
	out := &game.RoomWithParticipants{
		Room:         *room,
		Owner:        *owner,
		Participants: s.roomParticipantsLocked(id),
	}
	return out, nil
}

func (s *Store) roomParticipantsLocked(roomID string) []game.ParticipantWithUser {
	list := make([]game.ParticipantWithUser, 0)
	for _, p := range s.participants {
		if p.RoomID != roomID {
			continue
		}
		u, ok := s.users[p.UserID]
		if !ok {
			continue
		}
		list = append(list, game.ParticipantWithUser{Participant: *p, User: *u})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Progress != list[j].Progress {
			return list[i].Progress > list[j].Progress
		}
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
	return list
}

func (s *Store) StartRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.roomsByID[roomID]
	if !ok {
		return game.ErrRoomNotFound
	}
	if room.Status != game.StatusWaiting {
		return game.ErrRoomAlreadyStarted
	}
	room.Status = game.StatusInProgress
	room.UpdatedAt = time.Now()
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, roomID, userID string) (*game.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.roomsByID[roomID]
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return nil, game.ErrUserNotFound
	}
	if room.Status != game.StatusWaiting {
		return nil, game.ErrRoomNotJoinable
	}
	if room.CurrentPlayers >= room.MaxPlayers {
		return nil, game.ErrRoomFull
	}
	for _, p := range s.participants {
		if p.RoomID == roomID && p.UserID == userID {
			return nil, game.ErrAlreadyJoined
		}
	}

	now := time.Now()
	p := &game.Participant{
		ID:       uuid.New().String(),
		RoomID:   roomID,
		UserID:   userID,
		JoinedAt: now,
	}
	s.participants[p.ID] = p
	room.CurrentPlayers++
	room.UpdatedAt = now
	cp := *p
	return &cp, nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (*game.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, game.ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) UpdateParticipantProgress(ctx context.Context, participantID string, snap game.ProgressSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return game.ErrParticipantNotFound
	}
	if p.Finished {
		return game.ErrParticipantFinished
	}
	p.CurrentWpm = snap.Wpm
	p.CurrentAccuracy = snap.Accuracy
	p.Progress = snap.Progress
	p.CharactersTyped = snap.CharactersTyped
	p.Errors = snap.Errors
	return nil
}

func (s *Store) GetRoomParticipants(ctx context.Context, roomID string) ([]game.ParticipantWithUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomParticipantsLocked(roomID), nil
}

func (s *Store) FinishParticipant(ctx context.Context, participantID string, finalWpm int, finalAccuracy float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return 0, game.ErrParticipantNotFound
	}
	if p.Finished {
		// Repeat finish: report the original placement, change nothing.
		return *p.Placement, nil
	}
	user, ok := s.users[p.UserID]
	if !ok {
		return 0, game.ErrUserNotFound
	}
	room, ok := s.roomsByID[p.RoomID]
	if !ok {
		return 0, game.ErrRoomNotFound
	}

	finished := 0
	total := 0
	for _, other := range s.participants {
		if other.RoomID != p.RoomID {
			continue
		}
		total++
		if other.Finished {
			finished++
		}
	}
	placement := finished + 1

	now := time.Now()
	p.Finished = true
	p.FinalWpm = &finalWpm
	p.FinalAccuracy = &finalAccuracy
	p.Placement = &placement
	p.FinishedAt = &now

	s.results = append(s.results, game.GameResult{
		ID:              uuid.New().String(),
		RoomID:          p.RoomID,
		UserID:          p.UserID,
		Wpm:             finalWpm,
		Accuracy:        finalAccuracy,
		Placement:       placement,
		CharactersTyped: p.CharactersTyped,
		Errors:          p.Errors,
		Duration:        int(now.Sub(p.JoinedAt) / time.Second),
		CreatedAt:       now,
	})

	user.ApplyResult(finalWpm, finalAccuracy, placement == 1)
	user.UpdatedAt = now

	if finished+1 == total {
		room.Status = game.StatusFinished
		room.UpdatedAt = now
	}
	return placement, nil
}

func (s *Store) GetLeaderboard(ctx context.Context, limit int) ([]game.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]game.User, 0)
	for _, u := range s.users {
		if u.GamesPlayed > 0 {
			list = append(list, *u)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].BestWpm != list[j].BestWpm {
			return list[i].BestWpm > list[j].BestWpm
		}
		return list[i].ID < list[j].ID
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Store) GetUserHistory(ctx context.Context, userID string, limit int) ([]game.GameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]game.GameResult, 0)
	// results is append-only, so walking backwards yields newest first.
	for i := len(s.results) - 1; i >= 0 && len(list) < limit; i-- {
		if s.results[i].UserID == userID {
			list = append(list, s.results[i])
		}
	}
	return list, nil
}
