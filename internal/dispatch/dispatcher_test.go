package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/callsight/callsight/internal/dispatch"
	pushmock "github.com/callsight/callsight/internal/push/mock"
	"github.com/callsight/callsight/pkg/provider/insights"
	"github.com/callsight/callsight/pkg/provider/transcribe"
	"github.com/callsight/callsight/pkg/store"
	storemock "github.com/callsight/callsight/pkg/store/mock"
)

type fixture struct {
	calls       *storemock.CallStore
	transcripts *storemock.TranscriptStore
	summaries   *storemock.SummaryStore
	locations   *storemock.LocationStore
	broadcaster *pushmock.Broadcaster
	dispatcher  *dispatch.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		calls:       &storemock.CallStore{},
		transcripts: &storemock.TranscriptStore{},
		summaries:   &storemock.SummaryStore{},
		locations:   &storemock.LocationStore{},
		broadcaster: pushmock.NewBroadcaster(),
	}
	d, err := dispatch.New(dispatch.Config{
		Calls:       f.calls,
		Transcripts: f.transcripts,
		Summaries:   f.summaries,
		Locations:   f.locations,
		Broadcaster: f.broadcaster,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.dispatcher = d
	return f
}

func TestNew_RequiresAllCollaborators(t *testing.T) {
	calls := &storemock.CallStore{}
	transcripts := &storemock.TranscriptStore{}
	summaries := &storemock.SummaryStore{}
	locations := &storemock.LocationStore{}
	broadcaster := pushmock.NewBroadcaster()

	tests := []struct {
		name string
		cfg  dispatch.Config
	}{
		{"missing call store", dispatch.Config{Transcripts: transcripts, Summaries: summaries, Locations: locations, Broadcaster: broadcaster}},
		{"missing transcript store", dispatch.Config{Calls: calls, Summaries: summaries, Locations: locations, Broadcaster: broadcaster}},
		{"missing summary store", dispatch.Config{Calls: calls, Transcripts: transcripts, Locations: locations, Broadcaster: broadcaster}},
		{"missing location store", dispatch.Config{Calls: calls, Transcripts: transcripts, Summaries: summaries, Broadcaster: broadcaster}},
		{"missing broadcaster", dispatch.Config{Calls: calls, Transcripts: transcripts, Summaries: summaries, Locations: locations}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := dispatch.New(tt.cfg); err == nil {
				t.Fatal("New accepted an incomplete config")
			}
		})
	}
}

func TestStreamStarted_CreatesRecordForUnknownCall(t *testing.T) {
	f := newFixture(t)

	f.dispatcher.StreamStarted(context.Background(), "CA123", "MZ456")

	if got := f.calls.CallCount("Upsert"); got != 1 {
		t.Fatalf("Upsert calls = %d, want 1", got)
	}
	var rec store.CallRecord
	for _, c := range f.calls.Calls() {
		if c.Method == "Upsert" {
			rec = c.Args[0].(store.CallRecord)
		}
	}
	if rec.CallID != "CA123" {
		t.Errorf("upserted CallID = %q, want CA123", rec.CallID)
	}
	if rec.Status != dispatch.StatusInProgress {
		t.Errorf("upserted Status = %q, want %q", rec.Status, dispatch.StatusInProgress)
	}
	if rec.StartedAt.IsZero() {
		t.Error("upserted StartedAt is zero")
	}

	if got := f.calls.CallCount("UpdateStream"); got != 1 {
		t.Fatalf("UpdateStream calls = %d, want 1", got)
	}
	for _, c := range f.calls.Calls() {
		if c.Method != "UpdateStream" {
			continue
		}
		if c.Args[0] != "CA123" {
			t.Errorf("UpdateStream callID = %v, want CA123", c.Args[0])
		}
		streamID := c.Args[1].(*string)
		if streamID == nil || *streamID != "MZ456" {
			t.Errorf("UpdateStream streamID = %v, want MZ456", streamID)
		}
		if c.Args[2] != true {
			t.Errorf("UpdateStream active = %v, want true", c.Args[2])
		}
	}

	statuses := broadcastStatuses(f.broadcaster)
	want := []string{dispatch.StatusStreamStarted, dispatch.StatusInProgress}
	if len(statuses) != len(want) {
		t.Fatalf("broadcast statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("broadcast status[%d] = %q, want %q", i, statuses[i], want[i])
		}
	}
}

func TestStreamStarted_PreservesWebhookRecord(t *testing.T) {
	f := newFixture(t)
	f.calls.GetResult = &store.CallRecord{CallID: "CA123", From: "+15550100", Status: "ringing"}

	f.dispatcher.StreamStarted(context.Background(), "CA123", "MZ456")

	if got := f.calls.CallCount("Upsert"); got != 0 {
		t.Errorf("Upsert calls = %d, want 0 for a known call", got)
	}
	if got := f.calls.CallCount("UpdateStream"); got != 1 {
		t.Errorf("UpdateStream calls = %d, want 1", got)
	}
}

func TestStreamStarted_PersistFailureStillBroadcasts(t *testing.T) {
	f := newFixture(t)
	f.calls.UpsertErr = errors.New("db down")
	f.calls.UpdateStreamErr = errors.New("db down")

	f.dispatcher.StreamStarted(context.Background(), "CA123", "MZ456")

	if got := f.broadcaster.CallCount("BroadcastCallStatusUpdate"); got != 2 {
		t.Fatalf("broadcast calls = %d, want 2 despite persistence failure", got)
	}
}

func TestStreamStarted_BroadcastFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.broadcaster.CallStatusUpdateErr = errors.New("hub down")

	f.dispatcher.StreamStarted(context.Background(), "CA123", "MZ456")

	// Both statuses are still attempted and the persist leg is untouched.
	if got := f.broadcaster.CallCount("BroadcastCallStatusUpdate"); got != 2 {
		t.Errorf("broadcast attempts = %d, want 2", got)
	}
	if got := f.calls.CallCount("UpdateStream"); got != 1 {
		t.Errorf("UpdateStream calls = %d, want 1", got)
	}
}

func TestTranscriptAccepted_PersistsThenBroadcasts(t *testing.T) {
	f := newFixture(t)
	confidence := 0.87
	result := &transcribe.Result{
		CallID:     "CA123",
		StreamID:   "MZ456",
		Text:       "my kitchen is on fire",
		IsFinal:    false,
		Confidence: &confidence,
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	f.dispatcher.TranscriptAccepted(context.Background(), result, 3)

	saves := f.transcripts.Calls()
	if len(saves) != 1 || saves[0].Method != "Save" {
		t.Fatalf("transcript store calls = %+v, want one Save", saves)
	}
	chunk := saves[0].Args[0].(store.TranscriptChunk)
	if chunk.CallID != "CA123" || chunk.StreamID != "MZ456" {
		t.Errorf("chunk identity = %q/%q", chunk.CallID, chunk.StreamID)
	}
	if chunk.Text != "my kitchen is on fire" {
		t.Errorf("chunk text = %q", chunk.Text)
	}
	if chunk.Sequence != 3 {
		t.Errorf("chunk sequence = %d, want 3", chunk.Sequence)
	}
	if chunk.Confidence == nil || *chunk.Confidence != confidence {
		t.Errorf("chunk confidence = %v, want %v", chunk.Confidence, confidence)
	}
	if !chunk.Timestamp.Equal(result.Timestamp) {
		t.Errorf("chunk timestamp = %v, want %v", chunk.Timestamp, result.Timestamp)
	}

	casts := f.broadcaster.Calls()
	if len(casts) != 1 || casts[0].Method != "BroadcastTranscriptUpdate" {
		t.Fatalf("broadcaster calls = %+v, want one BroadcastTranscriptUpdate", casts)
	}
	if casts[0].Args[0] != "CA123" || casts[0].Args[1] != "my kitchen is on fire" || casts[0].Args[2] != false {
		t.Errorf("broadcast args = %v", casts[0].Args)
	}
}

func TestTranscriptAccepted_NilResultIsIgnored(t *testing.T) {
	f := newFixture(t)

	f.dispatcher.TranscriptAccepted(context.Background(), nil, 0)

	if got := f.transcripts.CallCount("Save"); got != 0 {
		t.Errorf("Save calls = %d, want 0", got)
	}
	if got := f.broadcaster.CallCount("BroadcastTranscriptUpdate"); got != 0 {
		t.Errorf("broadcast calls = %d, want 0", got)
	}
}

func TestTranscriptAccepted_SaveFailureStillBroadcasts(t *testing.T) {
	f := newFixture(t)
	f.transcripts.SaveErr = errors.New("db down")

	f.dispatcher.TranscriptAccepted(context.Background(), &transcribe.Result{
		CallID: "CA123", StreamID: "MZ456", Text: "hello", Timestamp: time.Now().UTC(),
	}, 0)

	if got := f.broadcaster.CallCount("BroadcastTranscriptUpdate"); got != 1 {
		t.Fatalf("broadcast calls = %d, want 1 despite save failure", got)
	}
}

func TestInsightsProduced_SummaryOnly(t *testing.T) {
	f := newFixture(t)
	ins := &insights.Insights{
		Summary: &store.SummaryRecord{
			CallID:      "CA123",
			Summary:     "kitchen fire at a private residence",
			KeyFindings: []string{"fire", "kitchen"},
			GeneratedAt: time.Now().UTC(),
		},
	}

	f.dispatcher.InsightsProduced(context.Background(), "CA123", ins)

	if got := f.summaries.CallCount("Upsert"); got != 1 {
		t.Errorf("summary Upsert calls = %d, want 1", got)
	}
	if got := f.locations.CallCount("Upsert"); got != 0 {
		t.Errorf("location Upsert calls = %d, want 0", got)
	}
	casts := f.broadcaster.Calls()
	if len(casts) != 1 || casts[0].Method != "BroadcastSummaryUpdate" {
		t.Fatalf("broadcaster calls = %+v, want one BroadcastSummaryUpdate", casts)
	}
	findings := casts[0].Args[2].([]string)
	if len(findings) != 2 || findings[0] != "fire" {
		t.Errorf("broadcast keyFindings = %v", findings)
	}
}

func TestInsightsProduced_LocationNeedsBothCoordinates(t *testing.T) {
	lat := 40.7128
	lng := -74.006

	tests := []struct {
		name      string
		latitude  *float64
		longitude *float64
		want      int
	}{
		{"both coordinates", &lat, &lng, 1},
		{"missing longitude", &lat, nil, 0},
		{"missing latitude", nil, &lng, 0},
		{"no coordinates", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ins := &insights.Insights{
				Location: &store.LocationRecord{
					CallID:           "CA123",
					Latitude:         tt.latitude,
					Longitude:        tt.longitude,
					FormattedAddress: "123 Main St",
				},
			}

			f.dispatcher.InsightsProduced(context.Background(), "CA123", ins)

			if got := f.locations.CallCount("Upsert"); got != tt.want {
				t.Errorf("location Upsert calls = %d, want %d", got, tt.want)
			}
			if got := f.broadcaster.CallCount("BroadcastLocationUpdate"); got != tt.want {
				t.Errorf("location broadcast calls = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInsightsProduced_SummaryThenLocation(t *testing.T) {
	f := newFixture(t)
	lat, lng := 40.7128, -74.006
	ins := &insights.Insights{
		Summary: &store.SummaryRecord{CallID: "CA123", Summary: "fire", KeyFindings: []string{}},
		Location: &store.LocationRecord{
			CallID: "CA123", Latitude: &lat, Longitude: &lng, FormattedAddress: "123 Main St",
		},
	}

	f.dispatcher.InsightsProduced(context.Background(), "CA123", ins)

	casts := f.broadcaster.Calls()
	if len(casts) != 2 {
		t.Fatalf("broadcaster calls = %d, want 2", len(casts))
	}
	if casts[0].Method != "BroadcastSummaryUpdate" || casts[1].Method != "BroadcastLocationUpdate" {
		t.Errorf("broadcast order = %s, %s", casts[0].Method, casts[1].Method)
	}
	if casts[1].Args[1] != lat || casts[1].Args[2] != lng {
		t.Errorf("location broadcast coords = %v, %v", casts[1].Args[1], casts[1].Args[2])
	}
	if casts[1].Args[3] != "123 Main St" {
		t.Errorf("location broadcast address = %v", casts[1].Args[3])
	}
}

func TestInsightsProduced_NilInsightsIgnored(t *testing.T) {
	f := newFixture(t)

	f.dispatcher.InsightsProduced(context.Background(), "CA123", nil)

	if got := len(f.broadcaster.Calls()); got != 0 {
		t.Errorf("broadcaster calls = %d, want 0", got)
	}
	if got := f.summaries.CallCount("Upsert") + f.locations.CallCount("Upsert"); got != 0 {
		t.Errorf("store upserts = %d, want 0", got)
	}
}

func TestStreamStopped_DetachesStreamAndAnnounces(t *testing.T) {
	f := newFixture(t)

	f.dispatcher.StreamStopped(context.Background(), "CA123")

	var seen bool
	for _, c := range f.calls.Calls() {
		if c.Method != "UpdateStream" {
			continue
		}
		seen = true
		if c.Args[0] != "CA123" {
			t.Errorf("UpdateStream callID = %v", c.Args[0])
		}
		if streamID := c.Args[1].(*string); streamID != nil {
			t.Errorf("UpdateStream streamID = %v, want nil", *streamID)
		}
		if c.Args[2] != false {
			t.Errorf("UpdateStream active = %v, want false", c.Args[2])
		}
	}
	if !seen {
		t.Fatal("UpdateStream was not called")
	}

	statuses := broadcastStatuses(f.broadcaster)
	if len(statuses) != 1 || statuses[0] != dispatch.StatusStreamStopped {
		t.Errorf("broadcast statuses = %v, want [stream_stopped]", statuses)
	}
}

func TestStreamStopped_PersistFailureStillBroadcasts(t *testing.T) {
	f := newFixture(t)
	f.calls.UpdateStreamErr = errors.New("db down")

	f.dispatcher.StreamStopped(context.Background(), "CA123")

	if got := f.broadcaster.CallCount("BroadcastCallStatusUpdate"); got != 1 {
		t.Fatalf("broadcast calls = %d, want 1 despite persistence failure", got)
	}
}

func TestCallDiscovered_UpsertsAndBroadcastsInitialStatus(t *testing.T) {
	f := newFixture(t)
	rec := store.CallRecord{
		CallID:    "CA123",
		From:      "+15550100",
		To:        "+15550111",
		Direction: "inbound",
		Status:    "ringing",
		StartedAt: time.Now().UTC(),
	}

	f.dispatcher.CallDiscovered(context.Background(), rec)

	if got := f.calls.CallCount("Upsert"); got != 1 {
		t.Fatalf("Upsert calls = %d, want 1", got)
	}
	statuses := broadcastStatuses(f.broadcaster)
	if len(statuses) != 1 || statuses[0] != "ringing" {
		t.Errorf("broadcast statuses = %v, want [ringing]", statuses)
	}
}

func TestCallDiscovered_EmptyStatusSkipsBroadcast(t *testing.T) {
	f := newFixture(t)

	f.dispatcher.CallDiscovered(context.Background(), store.CallRecord{CallID: "CA123"})

	if got := f.broadcaster.CallCount("BroadcastCallStatusUpdate"); got != 0 {
		t.Errorf("broadcast calls = %d, want 0", got)
	}
}

func TestCallStatusChanged_PersistsAndBroadcasts(t *testing.T) {
	f := newFixture(t)

	f.dispatcher.CallStatusChanged(context.Background(), "CA123", "completed")

	var seen bool
	for _, c := range f.calls.Calls() {
		if c.Method == "UpdateStatus" {
			seen = true
			if c.Args[0] != "CA123" || c.Args[1] != "completed" {
				t.Errorf("UpdateStatus args = %v", c.Args)
			}
		}
	}
	if !seen {
		t.Fatal("UpdateStatus was not called")
	}
	statuses := broadcastStatuses(f.broadcaster)
	if len(statuses) != 1 || statuses[0] != "completed" {
		t.Errorf("broadcast statuses = %v, want [completed]", statuses)
	}
}

// broadcastStatuses collects the status argument of every
// BroadcastCallStatusUpdate call in order.
func broadcastStatuses(b *pushmock.Broadcaster) []string {
	var out []string
	for _, c := range b.Calls() {
		if c.Method == "BroadcastCallStatusUpdate" {
			out = append(out, c.Args[1].(string))
		}
	}
	return out
}
