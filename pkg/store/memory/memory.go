// Package memory provides an in-process key/partition store for development
// runs and tests. It mirrors the PostgreSQL driver's semantics without a
// database: partitions keyed by lowercased call ID, JSON row payloads, and
// row-key ordering for transcript chunks.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/callsight/callsight/pkg/store"
)

// Compile-time interface checks. The four store interfaces share the method
// name Upsert with different signatures, so they are exposed as sub-types
// via [Store.Calls], [Store.Transcripts], [Store.Summaries], and
// [Store.Locations] rather than implemented on one struct.
var (
	_ store.CallStore       = (*CallStoreImpl)(nil)
	_ store.TranscriptStore = (*TranscriptStoreImpl)(nil)
	_ store.SummaryStore    = (*SummaryStoreImpl)(nil)
	_ store.LocationStore   = (*LocationStoreImpl)(nil)
)

// defaultListLimit caps List results when the caller passes 0.
const defaultListLimit = 50

// row is one stored artifact: its JSON payload and last write time.
type row struct {
	payload json.RawMessage
	updated time.Time
}

// Store holds all partitions in process memory. All operations are safe for
// concurrent use.
type Store struct {
	mu   sync.RWMutex
	rows map[string]map[string]row // partition key → row key → row

	calls       *CallStoreImpl
	transcripts *TranscriptStoreImpl
	summaries   *SummaryStoreImpl
	locations   *LocationStoreImpl
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	s := &Store{rows: make(map[string]map[string]row)}
	s.calls = &CallStoreImpl{s: s}
	s.transcripts = &TranscriptStoreImpl{s: s}
	s.summaries = &SummaryStoreImpl{s: s}
	s.locations = &LocationStoreImpl{s: s}
	return s
}

// Calls returns the [store.CallStore] view.
func (s *Store) Calls() *CallStoreImpl { return s.calls }

// Transcripts returns the [store.TranscriptStore] view.
func (s *Store) Transcripts() *TranscriptStoreImpl { return s.transcripts }

// Summaries returns the [store.SummaryStore] view.
func (s *Store) Summaries() *SummaryStoreImpl { return s.summaries }

// Locations returns the [store.LocationStore] view.
func (s *Store) Locations() *LocationStoreImpl { return s.locations }

// upsertRow marshals v and writes it under (partition, rowKey), replacing
// any existing payload.
func (s *Store) upsertRow(partition, rowKey string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("memory store: marshal row: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.rows[partition]
	if p == nil {
		p = make(map[string]row)
		s.rows[partition] = p
	}
	p[rowKey] = row{payload: payload, updated: time.Now()}
	return nil
}

// getRow unmarshals the payload at (partition, rowKey) into dest. Returns
// [store.ErrNotFound] when the row does not exist.
func (s *Store) getRow(partition, rowKey string, dest any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[partition][rowKey]
	if !ok {
		return store.ErrNotFound
	}
	if err := json.Unmarshal(r.payload, dest); err != nil {
		return fmt.Errorf("memory store: unmarshal row: %w", err)
	}
	return nil
}

// mutateRow performs an atomic read-modify-write on (partition, rowKey).
// fn receives the current payload (nil when the row does not exist) and
// returns the value to store.
func (s *Store) mutateRow(partition, rowKey string, fn func(raw json.RawMessage) (any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw json.RawMessage
	if r, ok := s.rows[partition][rowKey]; ok {
		raw = r.payload
	}
	v, err := fn(raw)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("memory store: marshal row: %w", err)
	}
	p := s.rows[partition]
	if p == nil {
		p = make(map[string]row)
		s.rows[partition] = p
	}
	p[rowKey] = row{payload: payload, updated: time.Now()}
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
func (c *CallStoreImpl) Upsert(_ context.Context, rec store.CallRecord) error {
	if rec.CallID == "" {
		return errors.New("memory store: call ID must not be empty")
	}
	return c.s.upsertRow(store.PartitionKey(rec.CallID), store.RowKeyCall, rec)
}

// Get implements [store.CallStore].
func (c *CallStoreImpl) Get(_ context.Context, callID string) (*store.CallRecord, error) {
	var rec store.CallRecord
	if err := c.s.getRow(store.PartitionKey(callID), store.RowKeyCall, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List implements [store.CallStore]. Records are ordered by last update,
// newest first.
func (c *CallStoreImpl) List(_ context.Context, limit int) ([]store.CallRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	type dated struct {
		rec     store.CallRecord
		updated time.Time
	}

	c.s.mu.RLock()
	all := make([]dated, 0, len(c.s.rows))
	for _, partition := range c.s.rows {
		r, ok := partition[store.RowKeyCall]
		if !ok {
			continue
		}
		var rec store.CallRecord
		if err := json.Unmarshal(r.payload, &rec); err != nil {
			c.s.mu.RUnlock()
			return nil, fmt.Errorf("memory store: unmarshal call record: %w", err)
		}
		all = append(all, dated{rec: rec, updated: r.updated})
	}
	c.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].updated.After(all[j].updated) })
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]store.CallRecord, len(all))
	for i, d := range all {
		out[i] = d.rec
	}
	return out, nil
}

// UpdateStream implements [store.CallStore]. A missing call record is
// created so stream tracking works for calls that never hit the webhook.
func (c *CallStoreImpl) UpdateStream(_ context.Context, callID string, streamID *string, active bool) error {
	if callID == "" {
		return errors.New("memory store: call ID must not be empty")
	}
	return c.s.mutateRow(store.PartitionKey(callID), store.RowKeyCall, func(raw json.RawMessage) (any, error) {
		rec := store.CallRecord{CallID: callID, StartedAt: time.Now().UTC()}
		if raw != nil {
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("memory store: unmarshal call record: %w", err)
			}
		}
		rec.StreamID = streamID
		rec.HasActiveStream = active
		return rec, nil
	})
}

// UpdateStatus implements [store.CallStore].
func (c *CallStoreImpl) UpdateStatus(_ context.Context, callID string, status string) error {
	if callID == "" {
		return errors.New("memory store: call ID must not be empty")
	}
	return c.s.mutateRow(store.PartitionKey(callID), store.RowKeyCall, func(raw json.RawMessage) (any, error) {
		rec := store.CallRecord{CallID: callID, StartedAt: time.Now().UTC()}
		if raw != nil {
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("memory store: unmarshal call record: %w", err)
			}
		}
		rec.Status = status
		if store.IsTerminalStatus(status) && rec.CompletedAt == nil {
			now := time.Now().UTC()
			rec.CompletedAt = &now
			if !rec.StartedAt.IsZero() {
				d := now.Sub(rec.StartedAt).Seconds()
				rec.DurationSeconds = &d
			}
		}
		return rec, nil
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
func (t *TranscriptStoreImpl) Save(_ context.Context, chunk store.TranscriptChunk) error {
	if chunk.CallID == "" {
		return errors.New("memory store: call ID must not be empty")
	}
	rowKey := store.TranscriptRowKey(chunk.Timestamp)
	return t.s.upsertRow(store.PartitionKey(chunk.CallID), rowKey, chunk)
}

// ListByCall implements [store.TranscriptStore].
func (t *TranscriptStoreImpl) ListByCall(_ context.Context, callID string) ([]store.TranscriptChunk, error) {
	partition := store.PartitionKey(callID)

	t.s.mu.RLock()
	type keyed struct {
		key     string
		payload json.RawMessage
	}
	var rows []keyed
	for key, r := range t.s.rows[partition] {
		switch key {
		case store.RowKeyCall, store.RowKeySummary, store.RowKeyLocation:
			continue
		}
		rows = append(rows, keyed{key: key, payload: r.payload})
	}
	t.s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].key < rows[j].key })

	out := make([]store.TranscriptChunk, 0, len(rows))
	for _, r := range rows {
		var chunk store.TranscriptChunk
		if err := json.Unmarshal(r.payload, &chunk); err != nil {
			return nil, fmt.Errorf("memory store: unmarshal transcript chunk: %w", err)
		}
		out = append(out, chunk)
	}
	return out, nil
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
func (u *SummaryStoreImpl) Upsert(_ context.Context, rec store.SummaryRecord) error {
	if rec.CallID == "" {
		return errors.New("memory store: call ID must not be empty")
	}
	return u.s.upsertRow(store.PartitionKey(rec.CallID), store.RowKeySummary, rec)
}

// Get implements [store.SummaryStore].
func (u *SummaryStoreImpl) Get(_ context.Context, callID string) (*store.SummaryRecord, error) {
	var rec store.SummaryRecord
	if err := u.s.getRow(store.PartitionKey(callID), store.RowKeySummary, &rec); err != nil {
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
func (l *LocationStoreImpl) Upsert(_ context.Context, rec store.LocationRecord) error {
	if rec.CallID == "" {
		return errors.New("memory store: call ID must not be empty")
	}
	return l.s.upsertRow(store.PartitionKey(rec.CallID), store.RowKeyLocation, rec)
}

// Get implements [store.LocationStore].
func (l *LocationStoreImpl) Get(_ context.Context, callID string) (*store.LocationRecord, error) {
	var rec store.LocationRecord
	if err := l.s.getRow(store.PartitionKey(callID), store.RowKeyLocation, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
