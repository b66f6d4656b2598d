// Package postgres provides a PostgreSQL-backed implementation of the call
// artifact store.
//
// All artifacts share a single call_artifacts table keyed by
// (partition_key, row_key) with a JSONB payload, mirroring the key/partition
// contract of [github.com/callsight/callsight/pkg/store]: the partition key
// is the lowercased call ID, singleton artifacts use fixed row keys, and
// transcript chunks use zero-padded timestamp ticks so that row-key order is
// chronological order.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.Calls().Upsert(ctx, rec)
//	chunks, _ := st.Transcripts().ListByCall(ctx, callID)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlCallArtifacts = `
CREATE TABLE IF NOT EXISTS call_artifacts (
    partition_key TEXT         NOT NULL,
    row_key       TEXT         NOT NULL,
    payload       JSONB        NOT NULL,
    updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (partition_key, row_key)
);

CREATE INDEX IF NOT EXISTS idx_call_artifacts_row_key_updated
    ON call_artifacts (row_key, updated_at DESC);
`

// Migrate creates or ensures the call_artifacts table and its indexes exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS)
// and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlCallArtifacts); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
