package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"typerace/internal/game"
)

const roomColumns = `id, code, name, owner_id, max_players, current_players, status,
	text_content, difficulty, duration, created_at, updated_at`

const uniqueViolation = "23505"

func scanRoom(row rowScanner) (*game.Room, error) {
	var r game.Room
	err := row.Scan(&r.ID, &r.Code, &r.Name, &r.OwnerID, &r.MaxPlayers, &r.CurrentPlayers, &r.Status,
		&r.TextContent, &r.Difficulty, &r.Duration, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *DB) CreateRoom(ctx context.Context, room *game.Room) (*game.Room, error) {
	created, err := scanRoom(d.conn.QueryRowContext(ctx, `
		INSERT INTO rooms (code, name, owner_id, max_players, status, text_content, difficulty, duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+roomColumns+`
	`, room.Code, room.Name, room.OwnerID, room.MaxPlayers, room.Status,
		room.TextContent, room.Difficulty, room.Duration))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, game.ErrCodeTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}
	return created, nil
}

func (d *DB) GetRoomByCode(ctx context.Context, code string) (*game.RoomWithParticipants, error) {
	return d.getRoom(ctx, `WHERE code = $1`, code)
}

func (d *DB) GetRoomByID(ctx context.Context, id string) (*game.RoomWithParticipants, error) {
	return d.getRoom(ctx, `WHERE id = $1`, id)
}

// getRoom assembles the enriched room view: the room row, its owner,
// and all participants each joined with their user.
func (d *DB) getRoom(ctx context.Context, where string, arg any) (*game.RoomWithParticipants, error) {
	room, err := scanRoom(d.conn.QueryRowContext(ctx, `
		SELECT `+roomColumns+` FROM rooms `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting room: %w", err)
	}

	owner, err := d.GetUser(ctx, room.OwnerID)
	if err != nil {
		return nil, err
	}

	participants, err := d.GetRoomParticipants(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	return &game.RoomWithParticipants{
		Room:         *room,
		Owner:        *owner,
		Participants: participants,
	}, nil
}

func (d *DB) StartRoom(ctx context.Context, roomID string) error {
	res, err := d.conn.ExecContext(ctx, `
		UPDATE rooms SET status = 'in_progress', updated_at = now()
		WHERE id = $1 AND status = 'waiting'
	`, roomID)
	if err != nil {
		return fmt.Errorf("starting room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	// No row moved: either the room is unknown or it is past waiting.
	var status game.RoomStatus
	err = d.conn.QueryRowContext(ctx, `SELECT status FROM rooms WHERE id = $1`, roomID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return game.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("starting room: %w", err)
	}
	return game.ErrRoomAlreadyStarted
}
