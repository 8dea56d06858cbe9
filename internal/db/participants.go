package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"typerace/internal/game"
)

const participantColumns = `id, room_id, user_id, current_wpm, current_accuracy, progress,
	characters_typed, errors, finished, final_wpm, final_accuracy, placement, joined_at, finished_at`

const foreignKeyViolation = "23503"

func scanParticipant(row rowScanner) (*game.Participant, error) {
	var p game.Participant
	var finalWpm, placement sql.NullInt64
	var finalAccuracy sql.NullFloat64
	var finishedAt sql.NullTime
	err := row.Scan(&p.ID, &p.RoomID, &p.UserID, &p.CurrentWpm, &p.CurrentAccuracy, &p.Progress,
		&p.CharactersTyped, &p.Errors, &p.Finished, &finalWpm, &finalAccuracy, &placement, &p.JoinedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if finalWpm.Valid {
		v := int(finalWpm.Int64)
		p.FinalWpm = &v
	}
	if finalAccuracy.Valid {
		v := finalAccuracy.Float64
		p.FinalAccuracy = &v
	}
	if placement.Valid {
		v := int(placement.Int64)
		p.Placement = &v
	}
	if finishedAt.Valid {
		v := finishedAt.Time
		p.FinishedAt = &v
	}
	return &p, nil
}

// AddParticipant admits a user atomically: the occupancy increment is
// conditional on the room still being a waiting room with a free seat,
// so two racing joins cannot overshoot max_players. The unique
// (room_id, user_id) index backs the duplicate-join rule.
func (d *DB) AddParticipant(ctx context.Context, roomID, userID string) (*game.Participant, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning join transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE rooms SET current_players = current_players + 1, updated_at = now()
		WHERE id = $1 AND status = 'waiting' AND current_players < max_players
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("incrementing room occupancy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, d.diagnoseJoinFailure(ctx, roomID)
	}

	participant, err := scanParticipant(tx.QueryRowContext(ctx, `
		INSERT INTO game_participants (room_id, user_id)
		VALUES ($1, $2)
		RETURNING `+participantColumns+`
	`, roomID, userID))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return nil, game.ErrAlreadyJoined
		case foreignKeyViolation:
			return nil, game.ErrUserNotFound
		}
	}
	if err != nil {
		return nil, fmt.Errorf("inserting participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing join: %w", err)
	}
	return participant, nil
}

// diagnoseJoinFailure turns a refused occupancy increment into the
// precise business error.
func (d *DB) diagnoseJoinFailure(ctx context.Context, roomID string) error {
	var status game.RoomStatus
	err := d.conn.QueryRowContext(ctx, `SELECT status FROM rooms WHERE id = $1`, roomID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return game.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("diagnosing join failure: %w", err)
	}
	if status != game.StatusWaiting {
		return game.ErrRoomNotJoinable
	}
	return game.ErrRoomFull
}

func (d *DB) GetParticipant(ctx context.Context, id string) (*game.Participant, error) {
	p, err := scanParticipant(d.conn.QueryRowContext(ctx, `
		SELECT `+participantColumns+` FROM game_participants WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting participant: %w", err)
	}
	return p, nil
}

// UpdateParticipantProgress overwrites the live metrics, last write
// wins. Finished participants are frozen.
func (d *DB) UpdateParticipantProgress(ctx context.Context, participantID string, snap game.ProgressSnapshot) error {
	res, err := d.conn.ExecContext(ctx, `
		UPDATE game_participants
		SET current_wpm = $2, current_accuracy = $3, progress = $4, characters_typed = $5, errors = $6
		WHERE id = $1 AND finished = false
	`, participantID, snap.Wpm, snap.Accuracy, snap.Progress, snap.CharactersTyped, snap.Errors)
	if err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var finished bool
	err = d.conn.QueryRowContext(ctx, `SELECT finished FROM game_participants WHERE id = $1`, participantID).Scan(&finished)
	if errors.Is(err, sql.ErrNoRows) {
		return game.ErrParticipantNotFound
	}
	if err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}
	return game.ErrParticipantFinished
}

func (d *DB) GetRoomParticipants(ctx context.Context, roomID string) ([]game.ParticipantWithUser, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT p.id, p.room_id, p.user_id, p.current_wpm, p.current_accuracy, p.progress,
			p.characters_typed, p.errors, p.finished, p.final_wpm, p.final_accuracy, p.placement,
			p.joined_at, p.finished_at,
			u.id, u.email, u.first_name, u.last_name, u.profile_image_url, u.username,
			u.best_wpm, u.average_wpm, u.average_accuracy, u.games_played, u.games_won,
			u.created_at, u.updated_at
		FROM game_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.room_id = $1
		ORDER BY p.progress DESC, p.joined_at ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("getting room participants: %w", err)
	}
	defer rows.Close()

	list := make([]game.ParticipantWithUser, 0)
	for rows.Next() {
		var p game.Participant
		var u game.User
		var finalWpm, placement sql.NullInt64
		var finalAccuracy sql.NullFloat64
		var finishedAt sql.NullTime
		err := rows.Scan(&p.ID, &p.RoomID, &p.UserID, &p.CurrentWpm, &p.CurrentAccuracy, &p.Progress,
			&p.CharactersTyped, &p.Errors, &p.Finished, &finalWpm, &finalAccuracy, &placement,
			&p.JoinedAt, &finishedAt,
			&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.ProfileImageURL, &u.Username,
			&u.BestWpm, &u.AverageWpm, &u.AverageAccuracy, &u.GamesPlayed, &u.GamesWon,
			&u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning participant row: %w", err)
		}
		if finalWpm.Valid {
			v := int(finalWpm.Int64)
			p.FinalWpm = &v
		}
		if finalAccuracy.Valid {
			v := finalAccuracy.Float64
			p.FinalAccuracy = &v
		}
		if placement.Valid {
			v := int(placement.Int64)
			p.Placement = &v
		}
		if finishedAt.Valid {
			v := finishedAt.Time
			p.FinishedAt = &v
		}
		list = append(list, game.ParticipantWithUser{Participant: p, User: u})
	}
	return list, rows.Err()
}
