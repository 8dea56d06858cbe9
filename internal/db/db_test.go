package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"typerace/internal/game"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	database, err := Connect(dsn)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() {
		// Clean up test data
		database.conn.Exec("DELETE FROM game_results")
		database.conn.Exec("DELETE FROM game_participants")
		database.conn.Exec("DELETE FROM rooms")
		database.conn.Exec("DELETE FROM users")
		database.Close()
	})
	return database
}

func seedUser(t *testing.T, database *DB, id string) *game.User {
	t.Helper()
	u, err := database.UpsertUser(context.Background(), &game.User{ID: id, Username: id})
	if err != nil {
		t.Fatalf("UpsertUser() error: %v", err)
	}
	return u
}

func seedRoom(t *testing.T, database *DB, code, ownerID string, maxPlayers int) *game.Room {
	t.Helper()
	room, err := database.CreateRoom(context.Background(), &game.Room{
		Code: code, Name: "test room", OwnerID: ownerID,
		MaxPlayers: maxPlayers, Status: game.StatusWaiting,
		TextContent: "the quick brown fox jumps over the lazy dog",
		Difficulty:  "easy", Duration: 120,
	})
	if err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}
	return room
}

func TestConnect(t *testing.T) {
	database := getTestDB(t)
	if err := database.Ping(); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	database := getTestDB(t)

	// Verify tables exist by querying them
	tables := []string{"users", "rooms", "game_participants", "game_results"}
	for _, table := range tables {
		var exists bool
		err := database.conn.QueryRow(`
			SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)
		`, table).Scan(&exists)
		if err != nil {
			t.Errorf("checking table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestUpsertUser(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()

	seedUser(t, database, "db-user-1")

	// Upsert again with changed identity; aggregates must survive.
	if _, err := database.conn.Exec(
		"UPDATE users SET best_wpm = 90, games_played = 3 WHERE id = $1", "db-user-1"); err != nil {
		t.Fatal(err)
	}
	u, err := database.UpsertUser(ctx, &game.User{ID: "db-user-1", Username: "renamed", Email: "new@example.com"})
	if err != nil {
		t.Fatalf("UpsertUser() update error: %v", err)
	}
	if u.Username != "renamed" {
		t.Errorf("username = %q, want %q", u.Username, "renamed")
	}
	if u.BestWpm != 90 || u.GamesPlayed != 3 {
		t.Errorf("aggregates reset on upsert: bestWpm=%d gamesPlayed=%d", u.BestWpm, u.GamesPlayed)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	database := getTestDB(t)

	_, err := database.GetUser(context.Background(), "no-such-user")
	if !errors.Is(err, game.ErrUserNotFound) {
		t.Errorf("GetUser() error = %v, want ErrUserNotFound", err)
	}
}

func TestCreateRoom_DuplicateCode(t *testing.T) {
	database := getTestDB(t)

	seedUser(t, database, "db-owner")
	seedRoom(t, database, "DUPLICATE1", "db-owner", 4)

	_, err := database.CreateRoom(context.Background(), &game.Room{
		Code: "DUPLICATE1", Name: "other", OwnerID: "db-owner",
		MaxPlayers: 4, Status: game.StatusWaiting,
		TextContent: "text", Difficulty: "easy", Duration: 120,
	})
	if !errors.Is(err, game.ErrCodeTaken) {
		t.Errorf("CreateRoom() error = %v, want ErrCodeTaken", err)
	}
}

func TestGetRoomByCode(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()

	seedUser(t, database, "db-owner")
	room := seedRoom(t, database, "LOOKUPCODE", "db-owner", 4)

	got, err := database.GetRoomByCode(ctx, "LOOKUPCODE")
	if err != nil {
		t.Fatalf("GetRoomByCode() error: %v", err)
	}
	if got.ID != room.ID {
		t.Errorf("id = %q, want %q", got.ID, room.ID)
	}
	if got.Owner.ID != "db-owner" {
		t.Errorf("owner = %q, want db-owner", got.Owner.ID)
	}

	if _, err := database.GetRoomByCode(ctx, "AAAAAAAAAA"); !errors.Is(err, game.ErrRoomNotFound) {
		t.Errorf("unknown code error = %v, want ErrRoomNotFound", err)
	}
}

func TestAddParticipant_Capacity(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()

	seedUser(t, database, "db-owner")
	seedUser(t, database, "db-a")
	seedUser(t, database, "db-b")
	seedUser(t, database, "db-c")
	room := seedRoom(t, database, "CAPACITY01", "db-owner", 2)

	if _, err := database.AddParticipant(ctx, room.ID, "db-a"); err != nil {
		t.Fatalf("first join error: %v", err)
	}
	if _, err := database.AddParticipant(ctx, room.ID, "db-b"); err != nil {
		t.Fatalf("second join error: %v", err)
	}
	if _, err := database.AddParticipant(ctx, room.ID, "db-c"); !errors.Is(err, game.ErrRoomFull) {
		t.Errorf("third join error = %v, want ErrRoomFull", err)
	}
	if _, err := database.AddParticipant(ctx, room.ID, "db-a"); !errors.Is(err, game.ErrAlreadyJoined) {
		t.Errorf("duplicate join error = %v, want ErrAlreadyJoined", err)
	}

	got, err := database.GetRoomByID(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentPlayers != 2 {
		t.Errorf("currentPlayers = %d, want 2", got.CurrentPlayers)
	}
}

func TestStartRoom(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()

	seedUser(t, database, "db-owner")
	room := seedRoom(t, database, "STARTROOM1", "db-owner", 2)

	if err := database.StartRoom(ctx, room.ID); err != nil {
		t.Fatalf("StartRoom() error: %v", err)
	}
	if err := database.StartRoom(ctx, room.ID); !errors.Is(err, game.ErrRoomAlreadyStarted) {
		t.Errorf("second start error = %v, want ErrRoomAlreadyStarted", err)
	}
}

func TestFinishParticipant(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()

	seedUser(t, database, "db-owner")
	seedUser(t, database, "db-fast")
	seedUser(t, database, "db-slow")
	room := seedRoom(t, database, "FINISHROOM", "db-owner", 3)

	fast, err := database.AddParticipant(ctx, room.ID, "db-fast")
	if err != nil {
		t.Fatal(err)
	}
	slow, err := database.AddParticipant(ctx, room.ID, "db-slow")
	if err != nil {
		t.Fatal(err)
	}

	place, err := database.FinishParticipant(ctx, fast.ID, 85, 97.5)
	if err != nil {
		t.Fatalf("FinishParticipant() error: %v", err)
	}
	if place != 1 {
		t.Errorf("placement = %d, want 1", place)
	}

	// Repeating a finish returns the stored placement, no stat change.
	again, err := database.FinishParticipant(ctx, fast.ID, 200, 100)
	if err != nil {
		t.Fatalf("repeated finish error: %v", err)
	}
	if again != 1 {
		t.Errorf("repeated placement = %d, want 1", again)
	}

	place, err = database.FinishParticipant(ctx, slow.ID, 60, 91)
	if err != nil {
		t.Fatal(err)
	}
	if place != 2 {
		t.Errorf("placement = %d, want 2", place)
	}

	got, err := database.GetRoomByID(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != game.StatusFinished {
		t.Errorf("room status = %q, want finished", got.Status)
	}

	winner, err := database.GetUser(ctx, "db-fast")
	if err != nil {
		t.Fatal(err)
	}
	if winner.GamesPlayed != 1 || winner.GamesWon != 1 || winner.BestWpm != 85 {
		t.Errorf("winner stats = played %d, won %d, best %d; want 1, 1, 85",
			winner.GamesPlayed, winner.GamesWon, winner.BestWpm)
	}

	history, err := database.GetUserHistory(ctx, "db-fast", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Wpm != 85 || history[0].Placement != 1 {
		t.Errorf("history = %+v, want a single win at 85 wpm", history)
	}
}

func TestGetLeaderboard(t *testing.T) {
	database := getTestDB(t)
	ctx := context.Background()

	seedUser(t, database, "db-idle")
	for i, id := range []string{"db-first", "db-second"} {
		seedUser(t, database, id)
		if _, err := database.conn.Exec(
			"UPDATE users SET best_wpm = $1, games_played = 1 WHERE id = $2", 100-i*20, id); err != nil {
			t.Fatal(err)
		}
	}

	users, err := database.GetLeaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("GetLeaderboard() error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2 (idle users excluded)", len(users))
	}
	if users[0].ID != "db-first" || users[1].ID != "db-second" {
		t.Errorf("order = %s, %s; want db-first, db-second", users[0].ID, users[1].ID)
	}
}
