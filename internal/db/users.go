package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"typerace/internal/game"
)

const userColumns = `id, email, first_name, last_name, profile_image_url, username,
	best_wpm, average_wpm, average_accuracy, games_played, games_won, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*game.User, error) {
	var u game.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.ProfileImageURL, &u.Username,
		&u.BestWpm, &u.AverageWpm, &u.AverageAccuracy, &u.GamesPlayed, &u.GamesWon, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) GetUser(ctx context.Context, id string) (*game.User, error) {
	u, err := scanUser(d.conn.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// UpsertUser records the identity asserted by the session token.
// Aggregate columns are left alone on conflict; only FinishParticipant
// writes those.
func (d *DB) UpsertUser(ctx context.Context, user *game.User) (*game.User, error) {
	u, err := scanUser(d.conn.QueryRowContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, profile_image_url, username)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = $2, first_name = $3, last_name = $4,
			profile_image_url = $5, username = $6, updated_at = now()
		RETURNING `+userColumns+`
	`, user.ID, user.Email, user.FirstName, user.LastName, user.ProfileImageURL, user.Username))
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return u, nil
}

func (d *DB) GetLeaderboard(ctx context.Context, limit int) ([]game.User, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE games_played > 0
		ORDER BY best_wpm DESC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	defer rows.Close()

	users := make([]game.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
