package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Postgres stores entries in the thumbnail_cache table.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres creates a cache backed by db. The schema is created by the
// migrations in internal/migrations.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// Contains reports whether a live entry exists for key.
func (p *Postgres) Contains(ctx context.Context, key string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM thumbnail_cache
			WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
		)
	`

	var exists bool
	if err := p.db.QueryRowContext(ctx, query, key, p.now()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check cache entry: %w", err)
	}
	return exists, nil
}

// Fetch returns the entry for key, or ErrMiss.
func (p *Postgres) Fetch(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT data FROM thumbnail_cache
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
	`

	var data []byte
	err := p.db.QueryRowContext(ctx, query, key, p.now()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cache entry: %w", err)
	}
	return data, nil
}

// Save upserts the entry.
func (p *Postgres) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	query := `
		INSERT INTO thumbnail_cache (key, data, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			data = EXCLUDED.data,
			expires_at = EXCLUDED.expires_at,
			created_at = NOW()
	`

	var deadline sql.NullTime
	if d := expiresAt(p.now(), ttl); !d.IsZero() {
		deadline = sql.NullTime{Time: d, Valid: true}
	}

	if _, err := p.db.ExecContext(ctx, query, key, data, deadline); err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// Cleanup deletes expired rows.
func (p *Postgres) Cleanup(ctx context.Context) (int, error) {
	query := `DELETE FROM thumbnail_cache WHERE expires_at IS NOT NULL AND expires_at <= $1`

	result, err := p.db.ExecContext(ctx, query, p.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted cache entries: %w", err)
	}
	return int(n), nil
}
