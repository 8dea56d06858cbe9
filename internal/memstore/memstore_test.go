package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"typerace/internal/game"
)

func seed(t *testing.T, s *Store, userIDs ...string) {
	t.Helper()
	for _, id := range userIDs {
		if _, err := s.UpsertUser(context.Background(), &game.User{ID: id, Username: id}); err != nil {
			t.Fatal(err)
		}
	}
}

func makeRoom(t *testing.T, s *Store, ownerID string, maxPlayers int) *game.Room {
	t.Helper()
	room, err := s.CreateRoom(context.Background(), &game.Room{
		Code: "TESTROOM01", Name: "test", OwnerID: ownerID,
		MaxPlayers: maxPlayers, Status: game.StatusWaiting,
		TextContent: "the quick brown fox", Difficulty: "easy", Duration: 60,
	})
	if err != nil {
		t.Fatal(err)
	}
	return room
}

func TestCreateRoom_CodeTaken(t *testing.T) {
	s := New()
	seed(t, s, "owner")
	makeRoom(t, s, "owner", 2)

	_, err := s.CreateRoom(context.Background(), &game.Room{
		Code: "TESTROOM01", Name: "dupe", OwnerID: "owner",
		MaxPlayers: 2, Status: game.StatusWaiting, TextContent: "x", Difficulty: "easy", Duration: 60,
	})
	if !errors.Is(err, game.ErrCodeTaken) {
		t.Errorf("CreateRoom() error = %v, want ErrCodeTaken", err)
	}
}

// Concurrent joins must never push a room past capacity.
func TestAddParticipant_ConcurrentJoins(t *testing.T) {
	s := New()
	users := make([]string, 10)
	for i := range users {
		users[i] = fmt.Sprintf("user-%d", i)
	}
	seed(t, s, users...)
	seed(t, s, "owner")
	room := makeRoom(t, s, "owner", 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for _, id := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := s.AddParticipant(context.Background(), room.ID, id); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if admitted != 3 {
		t.Errorf("admitted = %d, want exactly maxPlayers (3)", admitted)
	}
	got, err := s.GetRoomByID(context.Background(), room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentPlayers != 3 {
		t.Errorf("currentPlayers = %d, want 3", got.CurrentPlayers)
	}
}

// Concurrent finishes on one room must yield unique placements 1..N.
func TestFinishParticipant_ConcurrentFinishes(t *testing.T) {
	s := New()
	users := make([]string, 5)
	for i := range users {
		users[i] = fmt.Sprintf("racer-%d", i)
	}
	seed(t, s, users...)
	seed(t, s, "owner")
	room := makeRoom(t, s, "owner", 5)

	participants := make([]*game.Participant, len(users))
	for i, id := range users {
		p, err := s.AddParticipant(context.Background(), room.ID, id)
		if err != nil {
			t.Fatal(err)
		}
		participants[i] = p
	}

	placements := make([]int, len(participants))
	var wg sync.WaitGroup
	for i, p := range participants {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			place, err := s.FinishParticipant(context.Background(), id, 60, 90)
			if err != nil {
				t.Error(err)
				return
			}
			placements[i] = place
		}(i, p.ID)
	}
	wg.Wait()

	sort.Ints(placements)
	for i, place := range placements {
		if place != i+1 {
			t.Fatalf("placements = %v, want a permutation of 1..%d", placements, len(participants))
		}
	}

	got, _ := s.GetRoomByID(context.Background(), room.ID)
	if got.Status != game.StatusFinished {
		t.Errorf("room status = %q, want finished after the last racer", got.Status)
	}
}

func TestGetRoomParticipants_OrderedByProgress(t *testing.T) {
	s := New()
	seed(t, s, "owner", "a", "b", "c")
	room := makeRoom(t, s, "owner", 4)

	ids := map[string]string{}
	for _, u := range []string{"a", "b", "c"} {
		p, err := s.AddParticipant(context.Background(), room.ID, u)
		if err != nil {
			t.Fatal(err)
		}
		ids[u] = p.ID
	}
	for u, progress := range map[string]float64{"a": 30, "b": 90, "c": 60} {
		err := s.UpdateParticipantProgress(context.Background(), ids[u], game.ProgressSnapshot{Progress: progress})
		if err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.GetRoomParticipants(context.Background(), room.ID)
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, p := range list {
		order = append(order, p.UserID)
	}
	want := []string{"b", "c", "a"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestUpsertUser_PreservesAggregates(t *testing.T) {
	s := New()
	seed(t, s, "u1")

	// Simulate a finished race, then a fresh login upsert.
	seed(t, s, "owner")
	room := makeRoom(t, s, "owner", 2)
	p, err := s.AddParticipant(context.Background(), room.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.FinishParticipant(context.Background(), p.ID, 88, 96); err != nil {
		t.Fatal(err)
	}

	if _, err := s.UpsertUser(context.Background(), &game.User{ID: "u1", Username: "renamed"}); err != nil {
		t.Fatal(err)
	}

	u, err := s.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "renamed" {
		t.Errorf("username = %q, want renamed", u.Username)
	}
	if u.BestWpm != 88 || u.GamesPlayed != 1 {
		t.Errorf("aggregates lost on upsert: bestWpm=%d gamesPlayed=%d", u.BestWpm, u.GamesPlayed)
	}
}
