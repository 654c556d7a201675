package storage

import (
	"context"
	"fmt"
)

// migrate applies the schema idempotently. The service owns only the videos
// table; the shared sessions table is managed by the auth service.
func (r *postgresRepository) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS videos (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    category      TEXT NOT NULL DEFAULT '',
    thumbnail_url TEXT NOT NULL DEFAULT '',
    source_file   TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS videos_created_at_idx ON videos (created_at DESC);
`
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply videos schema: %w", err)
	}
	return nil
}
