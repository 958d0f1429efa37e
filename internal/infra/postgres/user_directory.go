package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-service/internal/domain"
)

// UserDirectory maps user ids to emails through the users table.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

// Upsert registers who; a known email is never overwritten with NULL.
func (d *UserDirectory) Upsert(ctx context.Context, who domain.Identity) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO users (id, email) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET email = COALESCE(EXCLUDED.email, users.email), updated_at = now()`,
		who.ID, who.Email,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (d *UserDirectory) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	rows, err := d.pool.Query(ctx, `SELECT id, email FROM users WHERE id = ANY($1) AND email IS NOT NULL`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		names[id] = email
	}
	return names, rows.Err()
}
