// Package store defines the key/partition persistence contracts for call
// artifacts: call metadata, transcript chunks, end-of-call summaries, and
// extracted locations.
//
// Every artifact lives in the partition named by its lowercased call ID.
// Within a partition, singleton artifacts use fixed row keys ([RowKeyCall],
// [RowKeySummary], [RowKeyLocation]) while transcript chunks use a 20-digit
// zero-padded timestamp tick so that lexicographic row-key order matches
// chronological order.
//
// Implementations must be safe for concurrent use by many sessions. Upserts
// are last-writer-wins; UpdateStream and UpdateStatus perform a
// read-modify-write on the call record.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Fixed row keys for singleton artifacts within a call partition.
const (
	RowKeyCall     = "call"
	RowKeySummary  = "summary"
	RowKeyLocation = "location"
)

// ErrNotFound is returned by lookups when no record exists for the given
// call.
var ErrNotFound = errors.New("store: record not found")

// PartitionKey normalizes a call ID into its partition key. Carrier call IDs
// are case-preserving but not case-significant, so partitions are keyed by
// the lowercased form.
func PartitionKey(callID string) string {
	return strings.ToLower(callID)
}

// TranscriptRowKey formats an instant as a 20-digit zero-padded tick value
// (100 ns units since the Unix epoch). Zero padding keeps lexicographic
// order identical to chronological order, which is what orders chunks
// within a partition.
func TranscriptRowKey(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano()/100)
}

// IsTerminalStatus reports whether a carrier call status marks the call as
// over. Terminal statuses stamp CompletedAt and DurationSeconds on the call
// record. The comparison is case-insensitive, matching how statuses are
// treated elsewhere.
func IsTerminalStatus(status string) bool {
	switch strings.ToLower(status) {
	case "completed", "failed", "busy", "no-answer", "canceled":
		return true
	}
	return false
}

// CallStore persists call metadata under the fixed [RowKeyCall] row.
type CallStore interface {
	// Upsert writes the full call record, replacing any existing one.
	Upsert(ctx context.Context, rec CallRecord) error

	// Get returns the call record, or [ErrNotFound] when absent.
	Get(ctx context.Context, callID string) (*CallRecord, error)

	// List returns the most recently updated call records, newest first.
	// A limit of 0 applies an implementation default.
	List(ctx context.Context, limit int) ([]CallRecord, error)

	// UpdateStream sets the call's active-stream marker. A nil streamID
	// clears the stream association. When no record exists yet one is
	// created, so stream tracking works for calls that bypass the webhook.
	UpdateStream(ctx context.Context, callID string, streamID *string, active bool) error

	// UpdateStatus sets the call's status. Terminal statuses stamp
	// CompletedAt and derive DurationSeconds from StartedAt.
	UpdateStatus(ctx context.Context, callID string, status string) error
}

// TranscriptStore persists accepted transcript chunks in arrival order.
type TranscriptStore interface {
	// Save writes one chunk under its timestamp-tick row key.
	Save(ctx context.Context, chunk TranscriptChunk) error

	// ListByCall returns the call's chunks in row-key (chronological)
	// order. Returns an empty non-nil slice when the call has none.
	ListByCall(ctx context.Context, callID string) ([]TranscriptChunk, error)
}

// SummaryStore persists the end-of-call summary under [RowKeySummary].
// Repeated upserts overwrite; the final insights pass wins.
type SummaryStore interface {
	Upsert(ctx context.Context, rec SummaryRecord) error
	Get(ctx context.Context, callID string) (*SummaryRecord, error)
}

// LocationStore persists the extracted caller location under
// [RowKeyLocation]. Records are only written when a formatted address was
// extracted.
type LocationStore interface {
	Upsert(ctx context.Context, rec LocationRecord) error
	Get(ctx context.Context, callID string) (*LocationRecord, error)
}
