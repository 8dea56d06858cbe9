package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"typerace/internal/game"
)

// FinishParticipant runs the finalization transaction. The room row is
// locked first, which serializes racing finish calls on the same room
// so the finished-count read and the placement write act as one
// atomic step.
func (d *DB) FinishParticipant(ctx context.Context, participantID string, finalWpm int, finalAccuracy float64) (int, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning finish transaction: %w", err)
	}
	defer tx.Rollback()

	var roomID string
	var finished bool
	var placement sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT room_id, finished, placement FROM game_participants WHERE id = $1 FOR UPDATE
	`, participantID).Scan(&roomID, &finished, &placement)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, game.ErrParticipantNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("locking participant: %w", err)
	}
	if finished {
		// Repeat finish: report the original placement, change nothing.
		return int(placement.Int64), nil
	}

	if _, err := tx.ExecContext(ctx, `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`, roomID); err != nil {
		return 0, fmt.Errorf("locking room: %w", err)
	}

	var finishedCount, total int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE finished), COUNT(*)
		FROM game_participants WHERE room_id = $1
	`, roomID).Scan(&finishedCount, &total)
	if err != nil {
		return 0, fmt.Errorf("counting finished participants: %w", err)
	}
	place := finishedCount + 1

	var userID string
	var charactersTyped, errorCount, duration int
	err = tx.QueryRowContext(ctx, `
		UPDATE game_participants
		SET finished = true, final_wpm = $2, final_accuracy = $3, placement = $4, finished_at = now()
		WHERE id = $1
		RETURNING user_id, characters_typed, errors,
			EXTRACT(EPOCH FROM (finished_at - joined_at))::int
	`, participantID, finalWpm, finalAccuracy, place).Scan(&userID, &charactersTyped, &errorCount, &duration)
	if err != nil {
		return 0, fmt.Errorf("finishing participant: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO game_results (room_id, user_id, wpm, accuracy, placement, characters_typed, errors, duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, roomID, userID, finalWpm, finalAccuracy, place, charactersTyped, errorCount, duration)
	if err != nil {
		return 0, fmt.Errorf("saving game result: %w", err)
	}

	user, err := scanUser(tx.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE
	`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, game.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("locking user: %w", err)
	}
	user.ApplyResult(finalWpm, finalAccuracy, place == 1)
	_, err = tx.ExecContext(ctx, `
		UPDATE users
		SET best_wpm = $2, average_wpm = $3, average_accuracy = $4,
			games_played = $5, games_won = $6, updated_at = now()
		WHERE id = $1
	`, userID, user.BestWpm, user.AverageWpm, user.AverageAccuracy, user.GamesPlayed, user.GamesWon)
	if err != nil {
		return 0, fmt.Errorf("updating user stats: %w", err)
	}

	if place == total {
		_, err = tx.ExecContext(ctx, `
			UPDATE rooms SET status = 'finished', updated_at = now() WHERE id = $1
		`, roomID)
		if err != nil {
			return 0, fmt.Errorf("finishing room: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing finish: %w", err)
	}
	return place, nil
}

func (d *DB) GetUserHistory(ctx context.Context, userID string, limit int) ([]game.GameResult, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, room_id, user_id, wpm, accuracy, placement, characters_typed, errors, duration, created_at
		FROM game_results
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("getting user history: %w", err)
	}
	defer rows.Close()

	results := make([]game.GameResult, 0)
	for rows.Next() {
		var r game.GameResult
		err := rows.Scan(&r.ID, &r.RoomID, &r.UserID, &r.Wpm, &r.Accuracy, &r.Placement,
			&r.CharactersTyped, &r.Errors, &r.Duration, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
