// Package session drives the per-call media pipeline: it owns the
// streamID → Session registry, ingests carrier media frames, flushes
// buffered audio through transcription, and runs insights passes over the
// accumulated transcript.
//
// No downstream failure (store, broadcast, transcription, insights) ever
// terminates a session or propagates to the transport layer; everything is
// logged and the stream keeps flowing.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/callsight/callsight/internal/transcript"
	"github.com/callsight/callsight/pkg/audio"
	"github.com/callsight/callsight/pkg/provider/insights"
	"github.com/callsight/callsight/pkg/provider/transcribe"
)

// Dispatcher is the fan-out boundary the manager hands artifacts to. It
// never returns errors; persistence and broadcast failures are its own
// concern. internal/dispatch provides the production implementation.
type Dispatcher interface {
	StreamStarted(ctx context.Context, callID, streamID string)
	TranscriptAccepted(ctx context.Context, result *transcribe.Result, sequence int)
	InsightsProduced(ctx context.Context, callID string, ins *insights.Insights)
	StreamStopped(ctx context.Context, callID string)
}

// Config carries the manager's collaborators and audio settings. The
// numeric settings are validated against the supported ranges; defaults
// live in the configuration layer, not here.
type Config struct {
	Transcriber transcribe.Client
	Extractor   insights.Extractor
	Dispatcher  Dispatcher

	// Accumulator is the shared per-call transcript store. Nil means the
	// manager creates its own.
	Accumulator *transcript.Accumulator

	// BufferSeconds of audio to collect before a flush, in [0.5, 10.0].
	BufferSeconds float64

	// SilenceThreshold is the silent-sample fraction above which a drained
	// chunk is dropped without transcription, in [0.0, 1.0].
	SilenceThreshold float64

	// SampleRate of the inbound μ-law audio in Hz, in [8000, 48000].
	SampleRate int

	// Now is the clock used for stream durations. Nil means time.Now.
	Now func() time.Time
}

// Manager owns the session registry and arbitrates lifecycle transitions.
// Safe for concurrent use by many carrier connections.
type Manager struct {
	transcriber transcribe.Client
	extractor   insights.Extractor
	dispatcher  Dispatcher
	accumulator *transcript.Accumulator
	detector    audio.SilenceDetector
	threshold   int
	sampleRate  int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Transcriber == nil {
		return nil, errors.New("session: transcription client is required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("session: insights extractor is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("session: dispatcher is required")
	}
	if cfg.BufferSeconds < 0.5 || cfg.BufferSeconds > 10.0 {
		return nil, fmt.Errorf("session: buffer seconds %.2f outside [0.5, 10.0]", cfg.BufferSeconds)
	}
	if cfg.SilenceThreshold < 0.0 || cfg.SilenceThreshold > 1.0 {
		return nil, fmt.Errorf("session: silence threshold %.2f outside [0.0, 1.0]", cfg.SilenceThreshold)
	}
	if cfg.SampleRate < 8000 || cfg.SampleRate > 48000 {
		return nil, fmt.Errorf("session: sample rate %d outside [8000, 48000]", cfg.SampleRate)
	}

	acc := cfg.Accumulator
	if acc == nil {
		acc = transcript.NewAccumulator()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		transcriber: cfg.Transcriber,
		extractor:   cfg.Extractor,
		dispatcher:  cfg.Dispatcher,
		accumulator: acc,
		detector:    audio.SilenceDetector{Threshold: cfg.SilenceThreshold},
		threshold:   audio.ThresholdBytes(cfg.BufferSeconds, cfg.SampleRate),
		sampleRate:  cfg.SampleRate,
		now:         now,
		sessions:    make(map[string]*Session),
	}, nil
}

// ActiveSessions returns the number of live sessions in the registry.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Retune applies new audio tunables without a restart. Sessions created
// after the call use the new flush threshold; the silence gate applies to
// every subsequent flush. The sample rate is fixed at construction.
func (m *Manager) Retune(bufferSeconds, silenceThreshold float64) error {
	if bufferSeconds < 0.5 || bufferSeconds > 10.0 {
		return fmt.Errorf("session: buffer seconds %.2f outside [0.5, 10.0]", bufferSeconds)
	}
	if silenceThreshold < 0.0 || silenceThreshold > 1.0 {
		return fmt.Errorf("session: silence threshold %.2f outside [0.0, 1.0]", silenceThreshold)
	}
	m.mu.Lock()
	m.threshold = audio.ThresholdBytes(bufferSeconds, m.sampleRate)
	m.detector = audio.SilenceDetector{Threshold: silenceThreshold}
	m.mu.Unlock()
	return nil
}

// OnStart allocates the session for a new media stream and announces it
// downstream. Store or broadcast failures are swallowed by the dispatcher;
// the session is created regardless. A repeated start for a live streamID
// logs a warning and reuses the existing session without resetting it.
func (m *Manager) OnStart(ctx context.Context, streamID, callID string) error {
	if strings.TrimSpace(streamID) == "" {
		return errors.New("session: stream ID is required")
	}
	if strings.TrimSpace(callID) == "" {
		return errors.New("session: call ID is required")
	}

	m.mu.Lock()
	if existing, ok := m.sessions[streamID]; ok {
		m.mu.Unlock()
		slog.Warn("stream already started, reusing session", "call", existing.callID, "stream", streamID)
		return nil
	}
	s := &Session{
		streamID:  streamID,
		callID:    callID,
		startedAt: m.now(),
		state:     StateInitializing,
		buffer:    audio.NewBuffer(m.threshold),
	}
	m.sessions[streamID] = s
	m.mu.Unlock()

	m.dispatcher.StreamStarted(ctx, callID, streamID)

	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()

	slog.Info("media stream started", "call", callID, "stream", streamID)
	return nil
}

// OnMedia appends one base64 μ-law payload to the stream's buffer and
// starts a flush when the buffer crossed its threshold and no flush is
// already in flight. Media for an unregistered stream is dropped with a
// warning; decode failures are dropped with an error log. Never panics and
// never surfaces downstream failures.
func (m *Manager) OnMedia(ctx context.Context, streamID, payload string) {
	if strings.TrimSpace(payload) == "" {
		return
	}

	m.mu.Lock()
	s, ok := m.sessions[streamID]
	m.mu.Unlock()
	if !ok {
		slog.Warn("unknown stream", "stream", streamID)
		return
	}

	chunk, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		slog.Error("failed to decode media payload", "call", s.callID, "stream", streamID, "err", err)
		return
	}

	s.mu.Lock()
	if s.state == StateFinalizing || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.buffer.Append(chunk)
	if s.flushInFlight {
		// The in-flight flush keeps the marker until it completes; the
		// readiness check resumes on the next media event after that.
		s.mu.Unlock()
		return
	}
	pcm, ready := s.buffer.DrainIfReady()
	if !ready {
		s.mu.Unlock()
		return
	}
	s.flushInFlight = true
	s.state = StateFlushing
	s.flushWG.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.flushInFlight = false
			if s.state == StateFlushing {
				s.state = StateActive
			}
			s.mu.Unlock()
			s.flushWG.Done()
		}()
		m.flush(ctx, s, pcm, false)
	}()
}

// OnStop finalizes the stream: wait out an in-flight flush, force-drain and
// transcribe whatever audio remains, announce the stop, run the final
// insights pass, and purge the session. A stop for an unknown or already
// finalizing stream logs and returns without side effects.
func (m *Manager) OnStop(ctx context.Context, streamID, callID string) {
	m.mu.Lock()
	s, ok := m.sessions[streamID]
	m.mu.Unlock()
	if !ok {
		slog.Info("stream already stopped", "stream", streamID, "call", callID)
		return
	}

	s.mu.Lock()
	if s.state == StateFinalizing || s.state == StateClosed {
		s.mu.Unlock()
		slog.Info("stream already stopped", "stream", streamID, "call", s.callID)
		return
	}
	s.state = StateFinalizing
	s.mu.Unlock()

	slog.Info("Stream duration", "call", s.callID, "stream", streamID, "duration", m.now().Sub(s.startedAt))

	// An in-flight flush finishes first; it is bounded by the transcription
	// client's own timeout.
	s.flushWG.Wait()

	// The carrier tears the connection down right after the stop event, so
	// the final flush and insights pass must not die with the socket.
	finalCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	pcm := s.buffer.DrainForce()
	s.mu.Unlock()
	if len(pcm) > 0 {
		m.flush(finalCtx, s, pcm, true)
	}

	m.dispatcher.StreamStopped(finalCtx, s.callID)

	m.runInsights(finalCtx, s.callID)
	m.accumulator.Release(s.callID)

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, streamID)
	m.mu.Unlock()

	slog.Info("session closed", "call", s.callID, "stream", streamID)
}

// Shutdown stops every live session as if its stream had ended, running
// each final flush and insights pass. Used on process shutdown so in-flight
// calls still get their artifacts.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.mu.Lock()
		s, ok := m.sessions[id]
		m.mu.Unlock()
		if ok {
			m.OnStop(ctx, id, s.callID)
		}
	}
}

// flush runs one drained μ-law chunk through VAD, codec conversion,
// transcription, and dispatch. Chunks classified as silence are dropped
// before any remote call.
func (m *Manager) flush(ctx context.Context, s *Session, pcm []byte, isFinal bool) {
	m.mu.Lock()
	detector := m.detector
	m.mu.Unlock()
	if detector.IsSilent(pcm) {
		slog.Debug("Skipping silent audio chunk", "call", s.callID, "stream", s.streamID, "bytes", len(pcm))
		return
	}

	wav := audio.MuLawToWAV(pcm, m.sampleRate)

	result, err := m.transcriber.Transcribe(ctx, s.callID, s.streamID, wav, isFinal)
	if err != nil {
		slog.Error("transcription request rejected", "call", s.callID, "stream", s.streamID, "err", err)
		return
	}
	if result == nil || strings.TrimSpace(result.Text) == "" {
		return
	}

	m.accumulator.Append(s.callID, result.Text)
	m.dispatcher.TranscriptAccepted(ctx, result, s.nextSequence())

	m.runInsights(ctx, s.callID)
}

// runInsights extracts summary and location from the transcript accumulated
// so far and dispatches whatever came back. Best-effort: failures are
// logged, repeated passes overwrite earlier records.
func (m *Manager) runInsights(ctx context.Context, callID string) {
	joined := m.accumulator.Join(callID)
	if strings.TrimSpace(joined) == "" {
		return
	}
	ins, err := m.extractor.Extract(ctx, callID, joined)
	if err != nil {
		slog.Error("insights extraction rejected", "call", callID, "err", err)
		return
	}
	if ins == nil {
		return
	}
	m.dispatcher.InsightsProduced(ctx, callID, ins)
}
