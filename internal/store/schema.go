package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id            UUID         PRIMARY KEY,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    kind          TEXT         NOT NULL,
    original      TEXT         NOT NULL,
    corrected     TEXT         NOT NULL DEFAULT '',
    change_count  INTEGER      NOT NULL DEFAULT 0,
    payload       JSONB
);

CREATE INDEX IF NOT EXISTS idx_analyses_created_at
    ON analyses (created_at DESC);

CREATE INDEX IF NOT EXISTS idx_analyses_kind
    ON analyses (kind);
`

// Migrate creates the audit table and its indexes. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlAnalyses); err != nil {
		return fmt.Errorf("store: migrate analyses: %w", err)
	}
	return nil
}
