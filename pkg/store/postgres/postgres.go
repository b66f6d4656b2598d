package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callsight/callsight/pkg/store"
)

// Compile-time interface checks.
//
// The four store interfaces share the method name Upsert with different
// signatures, so a single struct cannot implement them all. They are exposed
// as sub-types via [Store.Calls], [Store.Transcripts], [Store.Summaries],
// and [Store.Locations].
var (
	_ store.CallStore       = (*CallStoreImpl)(nil)
	_ store.TranscriptStore = (*TranscriptStoreImpl)(nil)
	_ store.SummaryStore    = (*SummaryStoreImpl)(nil)
	_ store.LocationStore   = (*LocationStoreImpl)(nil)
)

// defaultListLimit caps List results when the caller passes 0.
const defaultListLimit = 50

// Store is the PostgreSQL-backed call artifact store. It holds a single
// [pgxpool.Pool] shared by all four store views. All operations are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool

	calls       *CallStoreImpl
	transcripts *TranscriptStoreImpl
	summaries   *SummaryStoreImpl
	locations   *LocationStoreImpl
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, and runs [Migrate] to ensure the
// call_artifacts table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	s := &Store{pool: pool}
	s.calls = &CallStoreImpl{s: s}
	s.transcripts = &TranscriptStoreImpl{s: s}
	s.summaries = &SummaryStoreImpl{s: s}
	s.locations = &LocationStoreImpl{s: s}
	return s, nil
}

// Calls returns the [store.CallStore] view.
func (s *Store) Calls() *CallStoreImpl { return s.calls }

// Transcripts returns the [store.TranscriptStore] view.
func (s *Store) Transcripts() *TranscriptStoreImpl { return s.transcripts }

// Summaries returns the [store.SummaryStore] view.
func (s *Store) Summaries() *SummaryStoreImpl { return s.summaries }

// Locations returns the [store.LocationStore] view.
func (s *Store) Locations() *LocationStoreImpl { return s.locations }

// Ping verifies database connectivity. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying connection pool.
// It should be called when the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}

// upsertRow marshals v and writes it under (partition, rowKey), replacing
// any existing payload.
func (s *Store) upsertRow(ctx context.Context, partition, rowKey string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("postgres store: marshal row: %w", err)
	}

	const q = `
		INSERT INTO call_artifacts (partition_key, row_key, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (partition_key, row_key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, partition, rowKey, payload); err != nil {
		return fmt.Errorf("postgres store: upsert row: %w", err)
	}
	return nil
}

// getRow unmarshals the payload at (partition, rowKey) into dest. Returns
// [store.ErrNotFound] when the row does not exist.
func (s *Store) getRow(ctx context.Context, partition, rowKey string, dest any) error {
	const q = `
		SELECT payload
		FROM   call_artifacts
		WHERE  partition_key = $1 AND row_key = $2`

	var payload []byte
	err := s.pool.QueryRow(ctx, q, partition, rowKey).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres store: get row: %w", err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("postgres store: unmarshal row: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// CallStore
// ─────────────────────────────────────────────────────────────────────────────

// CallStoreImpl implements [store.CallStore]. Obtain one via [Store.Calls].
type CallStoreImpl struct {
	s *Store
}

// Upsert implements [store.CallStore].
func (c *CallStoreImpl) Upsert(ctx context.Context, rec store.CallRecord) error {
	if rec.CallID == "" {
		return errors.New("postgres store: call ID must not be empty")
	}
	return c.s.upsertRow(ctx, store.PartitionKey(rec.CallID), store.RowKeyCall, rec)
}

// Get implements [store.CallStore].
func (c *CallStoreImpl) Get(ctx context.Context, callID string) (*store.CallRecord, error) {
	var rec store.CallRecord
	if err := c.s.getRow(ctx, store.PartitionKey(callID), store.RowKeyCall, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List implements [store.CallStore]. Records are ordered by last update,
// newest first.
func (c *CallStoreImpl) List(ctx context.Context, limit int) ([]store.CallRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	const q = `
		SELECT payload
		FROM   call_artifacts
		WHERE  row_key = $1
		ORDER  BY updated_at DESC
		LIMIT  $2`

	rows, err := c.s.pool.Query(ctx, q, store.RowKeyCall, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list calls: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.CallRecord, error) {
		var payload []byte
		if err := row.Scan(&payload); err != nil {
			return store.CallRecord{}, err
		}
		var rec store.CallRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return store.CallRecord{}, err
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan call records: %w", err)
	}
	if recs == nil {
		recs = []store.CallRecord{}
	}
	return recs, nil
}

// mutate performs a transactional read-modify-write on the call record.
// fn receives the current record (a fresh one when none exists yet) and
// mutates it in place.
func (c *CallStoreImpl) mutate(ctx context.Context, callID string, fn func(rec *store.CallRecord)) error {
	partition := store.PartitionKey(callID)

	tx, err := c.s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const sel = `
		SELECT payload
		FROM   call_artifacts
		WHERE  partition_key = $1 AND row_key = $2
		FOR UPDATE`

	rec := store.CallRecord{CallID: callID, StartedAt: time.Now().UTC()}
	var payload []byte
	err = tx.QueryRow(ctx, sel, partition, store.RowKeyCall).Scan(&payload)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Keep the fresh record; stream tracking works for calls that
		// bypassed the webhook.
	case err != nil:
		return fmt.Errorf("postgres store: select call record: %w", err)
	default:
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("postgres store: unmarshal call record: %w", err)
		}
	}

	fn(&rec)

	out, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres store: marshal call record: %w", err)
	}

	const up = `
		INSERT INTO call_artifacts (partition_key, row_key, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (partition_key, row_key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`

	if _, err := tx.Exec(ctx, up, partition, store.RowKeyCall, out); err != nil {
		return fmt.Errorf("postgres store: upsert call record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	return nil
}

// UpdateStream implements [store.CallStore].
func (c *CallStoreImpl) UpdateStream(ctx context.Context, callID string, streamID *string, active bool) error {
	if callID == "" {
		return errors.New("postgres store: call ID must not be empty")
	}
	return c.mutate(ctx, callID, func(rec *store.CallRecord) {
		rec.StreamID = streamID
		rec.HasActiveStream = active
	})
}

// UpdateStatus implements [store.CallStore].
func (c *CallStoreImpl) UpdateStatus(ctx context.Context, callID string, status string) error {
	if callID == "" {
		return errors.New("postgres store: call ID must not be empty")
	}
	return c.mutate(ctx, callID, func(rec *store.CallRecord) {
		rec.Status = status
		if store.IsTerminalStatus(status) && rec.CompletedAt == nil {
			now := time.Now().UTC()
			rec.CompletedAt = &now
			if !rec.StartedAt.IsZero() {
				d := now.Sub(rec.StartedAt).Seconds()
				rec.DurationSeconds = &d
			}
		}
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// TranscriptStore
// ─────────────────────────────────────────────────────────────────────────────

// TranscriptStoreImpl implements [store.TranscriptStore]. Obtain one via
// [Store.Transcripts].
type TranscriptStoreImpl struct {
	s *Store
}

// Save implements [store.TranscriptStore].
func (t *TranscriptStoreImpl) Save(ctx context.Context, chunk store.TranscriptChunk) error {
	if chunk.CallID == "" {
		return errors.New("postgres store: call ID must not be empty")
	}
	rowKey := store.TranscriptRowKey(chunk.Timestamp)
	return t.s.upsertRow(ctx, store.PartitionKey(chunk.CallID), rowKey, chunk)
}

// ListByCall implements [store.TranscriptStore].
func (t *TranscriptStoreImpl) ListByCall(ctx context.Context, callID string) ([]store.TranscriptChunk, error) {
	const q = `
		SELECT payload
		FROM   call_artifacts
		WHERE  partition_key = $1
		  AND  row_key NOT IN ($2, $3, $4)
		ORDER  BY row_key`

	rows, err := t.s.pool.Query(ctx, q,
		store.PartitionKey(callID),
		store.RowKeyCall,
		store.RowKeySummary,
		store.RowKeyLocation,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list transcript chunks: %w", err)
	}
	chunks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.TranscriptChunk, error) {
		var payload []byte
		if err := row.Scan(&payload); err != nil {
			return store.TranscriptChunk{}, err
		}
		var chunk store.TranscriptChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			return store.TranscriptChunk{}, err
		}
		return chunk, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan transcript chunks: %w", err)
	}
	if chunks == nil {
		chunks = []store.TranscriptChunk{}
	}
	return chunks, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SummaryStore and LocationStore
// ─────────────────────────────────────────────────────────────────────────────

// SummaryStoreImpl implements [store.SummaryStore]. Obtain one via
// [Store.Summaries].
type SummaryStoreImpl struct {
	s *Store
}

// Upsert implements [store.SummaryStore].
func (u *SummaryStoreImpl) Upsert(ctx context.Context, rec store.SummaryRecord) error {
	if rec.CallID == "" {
		return errors.New("postgres store: call ID must not be empty")
	}
	return u.s.upsertRow(ctx, store.PartitionKey(rec.CallID), store.RowKeySummary, rec)
}

// Get implements [store.SummaryStore].
func (u *SummaryStoreImpl) Get(ctx context.Context, callID string) (*store.SummaryRecord, error) {
	var rec store.SummaryRecord
	if err := u.s.getRow(ctx, store.PartitionKey(callID), store.RowKeySummary, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LocationStoreImpl implements [store.LocationStore]. Obtain one via
// [Store.Locations].
type LocationStoreImpl struct {
	s *Store
}

// Upsert implements [store.LocationStore].
func (l *LocationStoreImpl) Upsert(ctx context.Context, rec store.LocationRecord) error {
	if rec.CallID == "" {
		return errors.New("postgres store: call ID must not be empty")
	}
	return l.s.upsertRow(ctx, store.PartitionKey(rec.CallID), store.RowKeyLocation, rec)
}

// Get implements [store.LocationStore].
func (l *LocationStoreImpl) Get(ctx context.Context, callID string) (*store.LocationRecord, error) {
	var rec store.LocationRecord
	if err := l.s.getRow(ctx, store.PartitionKey(callID), store.RowKeyLocation, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
