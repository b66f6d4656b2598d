// Package dispatch fans produced pipeline artifacts out to persistence and
// the push channel.
//
// Every trigger performs two side effects in order: persist, then
// broadcast. The two legs are independent: a persistence failure does not
// skip the broadcast and a broadcast failure does not undo the persist.
// Failures never propagate to the caller; persistence problems log at warn,
// broadcast problems at error.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/callsight/callsight/internal/push"
	"github.com/callsight/callsight/pkg/provider/insights"
	"github.com/callsight/callsight/pkg/provider/transcribe"
	"github.com/callsight/callsight/pkg/store"
)

// Call statuses emitted by the media pipeline itself, as opposed to
// statuses reported by the carrier webhook.
const (
	StatusStreamStarted = "stream_started"
	StatusInProgress    = "in-progress"
	StatusStreamStopped = "stream_stopped"
)

// Config carries the dispatcher's collaborators. All fields are required.
type Config struct {
	Calls       store.CallStore
	Transcripts store.TranscriptStore
	Summaries   store.SummaryStore
	Locations   store.LocationStore
	Broadcaster push.Broadcaster
}

// Dispatcher is the persist-then-broadcast façade between the session layer
// and the outside world. Safe for concurrent use by many sessions.
type Dispatcher struct {
	calls       store.CallStore
	transcripts store.TranscriptStore
	summaries   store.SummaryStore
	locations   store.LocationStore
	broadcaster push.Broadcaster
}

// New validates cfg and returns a ready Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Calls == nil {
		return nil, fmt.Errorf("dispatch: call store is required")
	}
	if cfg.Transcripts == nil {
		return nil, fmt.Errorf("dispatch: transcript store is required")
	}
	if cfg.Summaries == nil {
		return nil, fmt.Errorf("dispatch: summary store is required")
	}
	if cfg.Locations == nil {
		return nil, fmt.Errorf("dispatch: location store is required")
	}
	if cfg.Broadcaster == nil {
		return nil, fmt.Errorf("dispatch: broadcaster is required")
	}
	return &Dispatcher{
		calls:       cfg.Calls,
		transcripts: cfg.Transcripts,
		summaries:   cfg.Summaries,
		locations:   cfg.Locations,
		broadcaster: cfg.Broadcaster,
	}, nil
}

// StreamStarted records that a media stream attached to a call. A call
// record is created when the carrier webhook has not announced the call
// yet; an existing record keeps its webhook-supplied metadata. The
// discovery statuses go out to every dashboard client.
func (d *Dispatcher) StreamStarted(ctx context.Context, callID, streamID string) {
	if _, err := d.calls.Get(ctx, callID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rec := store.CallRecord{
				CallID:    callID,
				Status:    StatusInProgress,
				StartedAt: time.Now().UTC(),
			}
			if err := d.calls.Upsert(ctx, rec); err != nil {
				slog.Warn("failed to persist call record", "call", callID, "err", err)
			}
		} else {
			slog.Warn("failed to load call record", "call", callID, "err", err)
		}
	}
	if err := d.calls.UpdateStream(ctx, callID, &streamID, true); err != nil {
		slog.Warn("failed to attach stream to call", "call", callID, "stream", streamID, "err", err)
	}

	for _, status := range []string{StatusStreamStarted, StatusInProgress} {
		if err := d.broadcaster.BroadcastCallStatusUpdate(ctx, callID, status); err != nil {
			slog.Error("failed to broadcast call status", "call", callID, "status", status, "err", err)
		}
	}
}

// TranscriptAccepted persists one accepted transcription result under its
// session sequence and pushes it to the call's subscribers.
func (d *Dispatcher) TranscriptAccepted(ctx context.Context, result *transcribe.Result, sequence int) {
	if result == nil {
		return
	}
	chunk := store.TranscriptChunk{
		CallID:     result.CallID,
		StreamID:   result.StreamID,
		Text:       result.Text,
		IsFinal:    result.IsFinal,
		Confidence: result.Confidence,
		Timestamp:  result.Timestamp,
		Sequence:   sequence,
	}
	if err := d.transcripts.Save(ctx, chunk); err != nil {
		slog.Warn("failed to persist transcript chunk",
			"call", result.CallID, "stream", result.StreamID, "sequence", sequence, "err", err)
	}
	if err := d.broadcaster.BroadcastTranscriptUpdate(ctx, result.CallID, result.Text, result.IsFinal); err != nil {
		slog.Error("failed to broadcast transcript update",
			"call", result.CallID, "sequence", sequence, "err", err)
	}
}

// InsightsProduced persists and pushes whatever an insights pass yielded.
// Summary and location are handled as separate persist-broadcast pairs;
// repeated passes overwrite earlier records.
func (d *Dispatcher) InsightsProduced(ctx context.Context, callID string, ins *insights.Insights) {
	if ins == nil {
		return
	}

	if sum := ins.Summary; sum != nil {
		if err := d.summaries.Upsert(ctx, *sum); err != nil {
			slog.Warn("failed to persist summary", "call", callID, "err", err)
		}
		if err := d.broadcaster.BroadcastSummaryUpdate(ctx, callID, sum.Summary, sum.KeyFindings); err != nil {
			slog.Error("failed to broadcast summary update", "call", callID, "err", err)
		}
	}

	if loc := ins.Location; loc != nil && loc.Latitude != nil && loc.Longitude != nil {
		if err := d.locations.Upsert(ctx, *loc); err != nil {
			slog.Warn("failed to persist location", "call", callID, "err", err)
		}
		if err := d.broadcaster.BroadcastLocationUpdate(ctx, callID, *loc.Latitude, *loc.Longitude, loc.FormattedAddress); err != nil {
			slog.Error("failed to broadcast location update", "call", callID, "err", err)
		}
	}
}

// StreamStopped clears the call's active-stream marker and announces the
// end of the stream to the call's subscribers.
func (d *Dispatcher) StreamStopped(ctx context.Context, callID string) {
	if err := d.calls.UpdateStream(ctx, callID, nil, false); err != nil {
		slog.Warn("failed to detach stream from call", "call", callID, "err", err)
	}
	if err := d.broadcaster.BroadcastCallStatusUpdate(ctx, callID, StatusStreamStopped); err != nil {
		slog.Error("failed to broadcast call status", "call", callID, "status", StatusStreamStopped, "err", err)
	}
}

// CallDiscovered records a call announced by the carrier voice webhook and
// pushes its initial status.
func (d *Dispatcher) CallDiscovered(ctx context.Context, rec store.CallRecord) {
	if err := d.calls.Upsert(ctx, rec); err != nil {
		slog.Warn("failed to persist call record", "call", rec.CallID, "err", err)
	}
	if rec.Status == "" {
		return
	}
	if err := d.broadcaster.BroadcastCallStatusUpdate(ctx, rec.CallID, rec.Status); err != nil {
		slog.Error("failed to broadcast call status", "call", rec.CallID, "status", rec.Status, "err", err)
	}
}

// CallStatusChanged records a status reported by the carrier status webhook
// and pushes it. Terminal statuses stamp the call's completion fields.
func (d *Dispatcher) CallStatusChanged(ctx context.Context, callID, status string) {
	if err := d.calls.UpdateStatus(ctx, callID, status); err != nil {
		slog.Warn("failed to persist call status", "call", callID, "status", status, "err", err)
	}
	if err := d.broadcaster.BroadcastCallStatusUpdate(ctx, callID, status); err != nil {
		slog.Error("failed to broadcast call status", "call", callID, "status", status, "err", err)
	}
}
