package observe

import (
	"context"
	"time"

	"github.com/callsight/callsight/internal/push"
	"github.com/callsight/callsight/pkg/provider/insights"
	"github.com/callsight/callsight/pkg/provider/transcribe"
)

// requestStatus classifies an adapter call for the provider request
// counter. The adapters report operational failure as (nil, nil), so a nil
// result with a nil error means the provider produced nothing usable.
func requestStatus(gotResult bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case !gotResult:
		return "empty"
	}
	return "ok"
}

// ─── transcription ────────────────────────────────────────────────────────────

// InstrumentedTranscriber decorates a [transcribe.Client] with latency and
// outcome metrics.
type InstrumentedTranscriber struct {
	next transcribe.Client
	m    *Metrics
	name string
}

var _ transcribe.Client = (*InstrumentedTranscriber)(nil)

// InstrumentTranscriber wraps next so every flush records its duration and
// outcome under the given provider name.
func InstrumentTranscriber(next transcribe.Client, m *Metrics, name string) *InstrumentedTranscriber {
	return &InstrumentedTranscriber{next: next, m: m, name: name}
}

// Transcribe implements [transcribe.Client].
func (t *InstrumentedTranscriber) Transcribe(ctx context.Context, callID, streamID string, wav []byte, isFinal bool) (*transcribe.Result, error) {
	start := time.Now()
	res, err := t.next.Transcribe(ctx, callID, streamID, wav, isFinal)

	t.m.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	t.m.RecordProviderRequest(ctx, t.name, "transcription", requestStatus(res != nil, err))
	if err != nil {
		t.m.RecordProviderError(ctx, t.name, "transcription")
	}
	return res, err
}

// ─── insights ─────────────────────────────────────────────────────────────────

// InstrumentedExtractor decorates an [insights.Extractor] with latency and
// outcome metrics.
type InstrumentedExtractor struct {
	next insights.Extractor
	m    *Metrics
	name string
}

var _ insights.Extractor = (*InstrumentedExtractor)(nil)

// InstrumentExtractor wraps next so every extraction pass records its
// duration and outcome under the given provider name.
func InstrumentExtractor(next insights.Extractor, m *Metrics, name string) *InstrumentedExtractor {
	return &InstrumentedExtractor{next: next, m: m, name: name}
}

// Extract implements [insights.Extractor].
func (e *InstrumentedExtractor) Extract(ctx context.Context, callID, transcript string) (*insights.Insights, error) {
	start := time.Now()
	res, err := e.next.Extract(ctx, callID, transcript)

	e.m.InsightsDuration.Record(ctx, time.Since(start).Seconds())
	e.m.RecordProviderRequest(ctx, e.name, "insights", requestStatus(res != nil, err))
	if err != nil {
		e.m.RecordProviderError(ctx, e.name, "insights")
	}
	return res, err
}

// ─── broadcasts ───────────────────────────────────────────────────────────────

// InstrumentedBroadcaster decorates a [push.Broadcaster], counting every
// dashboard broadcast by event name.
type InstrumentedBroadcaster struct {
	next push.Broadcaster
	m    *Metrics
}

var _ push.Broadcaster = (*InstrumentedBroadcaster)(nil)

// InstrumentBroadcaster wraps next so broadcasts feed the push counter.
func InstrumentBroadcaster(next push.Broadcaster, m *Metrics) *InstrumentedBroadcaster {
	return &InstrumentedBroadcaster{next: next, m: m}
}

// BroadcastTranscriptUpdate implements [push.Broadcaster].
func (b *InstrumentedBroadcaster) BroadcastTranscriptUpdate(ctx context.Context, callID, text string, isFinal bool) error {
	b.m.RecordBroadcast(ctx, "transcript")
	return b.next.BroadcastTranscriptUpdate(ctx, callID, text, isFinal)
}

// BroadcastCallStatusUpdate implements [push.Broadcaster].
func (b *InstrumentedBroadcaster) BroadcastCallStatusUpdate(ctx context.Context, callID, status string) error {
	b.m.RecordBroadcast(ctx, "call_status")
	return b.next.BroadcastCallStatusUpdate(ctx, callID, status)
}

// BroadcastLocationUpdate implements [push.Broadcaster].
func (b *InstrumentedBroadcaster) BroadcastLocationUpdate(ctx context.Context, callID string, latitude, longitude float64, address string) error {
	b.m.RecordBroadcast(ctx, "location")
	return b.next.BroadcastLocationUpdate(ctx, callID, latitude, longitude, address)
}

// BroadcastSummaryUpdate implements [push.Broadcaster].
func (b *InstrumentedBroadcaster) BroadcastSummaryUpdate(ctx context.Context, callID, summary string, keyFindings []string) error {
	b.m.RecordBroadcast(ctx, "summary")
	return b.next.BroadcastSummaryUpdate(ctx, callID, summary, keyFindings)
}

// ─── media sessions ───────────────────────────────────────────────────────────

// MediaSessions matches the session manager surface instrumented by
// [InstrumentSessions]. Declared here so the decorator does not depend on
// the server package; the wrapped value still satisfies the server's own
// interface structurally.
type MediaSessions interface {
	OnStart(ctx context.Context, streamID, callID string) error
	OnMedia(ctx context.Context, streamID, payload string)
	OnStop(ctx context.Context, streamID, callID string)
}

// InstrumentedSessions decorates a session manager, counting every inbound
// carrier envelope by event.
type InstrumentedSessions struct {
	next MediaSessions
	m    *Metrics
}

var _ MediaSessions = (*InstrumentedSessions)(nil)

// InstrumentSessions wraps next so carrier envelopes feed the frame counter.
func InstrumentSessions(next MediaSessions, m *Metrics) *InstrumentedSessions {
	return &InstrumentedSessions{next: next, m: m}
}

// OnStart implements the session surface.
func (s *InstrumentedSessions) OnStart(ctx context.Context, streamID, callID string) error {
	s.m.RecordMediaFrame(ctx, "start")
	return s.next.OnStart(ctx, streamID, callID)
}

// OnMedia implements the session surface.
func (s *InstrumentedSessions) OnMedia(ctx context.Context, streamID, payload string) {
	s.m.RecordMediaFrame(ctx, "media")
	s.next.OnMedia(ctx, streamID, payload)
}

// OnStop implements the session surface.
func (s *InstrumentedSessions) OnStop(ctx context.Context, streamID, callID string) {
	s.m.RecordMediaFrame(ctx, "stop")
	s.next.OnStop(ctx, streamID, callID)
}
