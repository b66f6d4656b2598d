package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callsight/callsight/pkg/store"
	"github.com/callsight/callsight/pkg/store/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if CALLSIGHT_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("CALLSIGHT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CALLSIGHT_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
// It calls t.Cleanup to close the store when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	// Use a bare pool to drop the table so Migrate recreates it.
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cleanPool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	if _, err := cleanPool.Exec(ctx, "DROP TABLE IF EXISTS call_artifacts CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	st, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func TestCallStore_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := store.CallRecord{
		CallID:    "CA0123456789abcdef",
		From:      "+15550001111",
		To:        "+15550002222",
		Direction: "inbound",
		Status:    "ringing",
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := st.Calls().Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Partition lookup is case-insensitive.
	got, err := st.Calls().Get(ctx, "ca0123456789ABCDEF")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CallID != rec.CallID || got.From != rec.From || got.Status != rec.Status {
		t.Errorf("Get = %+v, want %+v", got, rec)
	}

	_, err = st.Calls().Get(ctx, "CAmissing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get unknown call error = %v, want store.ErrNotFound", err)
	}
}

func TestCallStore_UpdateStreamAndStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// UpdateStream on a call the webhook never saw creates the record.
	streamID := "MZstream1"
	if err := st.Calls().UpdateStream(ctx, "CAnostart", &streamID, true); err != nil {
		t.Fatalf("UpdateStream: %v", err)
	}
	got, err := st.Calls().Get(ctx, "CAnostart")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.HasActiveStream || got.StreamID == nil || *got.StreamID != streamID {
		t.Errorf("after UpdateStream: HasActiveStream=%v StreamID=%v, want true/%q", got.HasActiveStream, got.StreamID, streamID)
	}

	if err := st.Calls().UpdateStatus(ctx, "CAnostart", "completed"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err = st.Calls().Get(ctx, "CAnostart")
	if err != nil {
		t.Fatalf("Get after UpdateStatus: %v", err)
	}
	if got.Status != "completed" {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.CompletedAt == nil || got.DurationSeconds == nil {
		t.Errorf("terminal status must stamp CompletedAt and DurationSeconds, got %+v", got)
	}
	// The stream marker survives the status update.
	if got.StreamID == nil || *got.StreamID != streamID {
		t.Errorf("StreamID = %v after UpdateStatus, want %q preserved", got.StreamID, streamID)
	}
}

func TestCallStore_ListNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"CAfirst", "CAsecond", "CAthird"} {
		if err := st.Calls().Upsert(ctx, store.CallRecord{CallID: id, StartedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("Upsert %s: %v", id, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	got, err := st.Calls().List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List returned %d records, want 2", len(got))
	}
	if got[0].CallID != "CAthird" || got[1].CallID != "CAsecond" {
		t.Errorf("List order = [%s %s], want [CAthird CAsecond]", got[0].CallID, got[1].CallID)
	}
}

func TestTranscriptStore_ChronologicalOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	for _, offset := range []time.Duration{8 * time.Second, 0, 4 * time.Second} {
		chunk := store.TranscriptChunk{
			CallID:    "CAtr",
			StreamID:  "MZ1",
			Text:      offset.String(),
			Timestamp: base.Add(offset),
			Sequence:  int(offset / time.Second),
		}
		if err := st.Transcripts().Save(ctx, chunk); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := st.Transcripts().ListByCall(ctx, "CAtr")
	if err != nil {
		t.Fatalf("ListByCall: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListByCall returned %d chunks, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("chunks out of order at %d: %v before %v", i, got[i].Timestamp, got[i-1].Timestamp)
		}
	}
}

func TestSummaryAndLocation_OverwriteSemantics(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.Summaries().Upsert(ctx, store.SummaryRecord{CallID: "CAart", Summary: "partial"}); err != nil {
		t.Fatalf("Upsert summary: %v", err)
	}
	if err := st.Summaries().Upsert(ctx, store.SummaryRecord{CallID: "CAart", Summary: "final", KeyFindings: []string{"k1"}}); err != nil {
		t.Fatalf("Upsert summary again: %v", err)
	}
	sum, err := st.Summaries().Get(ctx, "CAart")
	if err != nil {
		t.Fatalf("Get summary: %v", err)
	}
	if sum.Summary != "final" || len(sum.KeyFindings) != 1 {
		t.Errorf("summary = %+v, want final with one finding", sum)
	}

	lat, lng := 40.7128, -74.006
	if err := st.Locations().Upsert(ctx, store.LocationRecord{CallID: "CAart", FormattedAddress: "NYC", Latitude: &lat, Longitude: &lng}); err != nil {
		t.Fatalf("Upsert location: %v", err)
	}
	loc, err := st.Locations().Get(ctx, "CAart")
	if err != nil {
		t.Fatalf("Get location: %v", err)
	}
	if loc.FormattedAddress != "NYC" {
		t.Errorf("location address = %q, want NYC", loc.FormattedAddress)
	}

	// Singleton rows must not leak into the transcript listing.
	chunks, err := st.Transcripts().ListByCall(ctx, "CAart")
	if err != nil {
		t.Fatalf("ListByCall: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("ListByCall returned %d chunks for a call with only singleton rows, want 0", len(chunks))
	}
}
