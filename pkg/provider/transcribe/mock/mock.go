// Package mock provides an in-memory test double for the transcribe.Client
// interface.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/callsight/callsight/pkg/provider/transcribe"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Client is a configurable test double for [transcribe.Client].
// All exported fields default to zero values (success with no result).
type Client struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// TranscribeText, when non-empty, makes Transcribe return a Result
	// carrying this text stamped with the invocation's callID, streamID,
	// and isFinal. When empty, Transcribe returns (nil, nil).
	TranscribeText string

	// TranscribeConfidence is attached to returned results when non-nil.
	TranscribeConfidence *float64

	// TranscribeErr is returned by [Client.Transcribe] when non-nil.
	TranscribeErr error

	// TranscribeFunc, when non-nil, overrides all other fields and is
	// invoked directly. Useful for scripting per-flush behavior.
	TranscribeFunc func(ctx context.Context, callID, streamID string, wav []byte, isFinal bool) (*transcribe.Result, error)

	// TranscribeDelay makes Transcribe sleep before returning, to widen
	// flush windows in concurrency tests.
	TranscribeDelay time.Duration
}

// Calls returns a copy of all recorded method invocations.
func (m *Client) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Client) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *Client) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Transcribe implements [transcribe.Client].
func (m *Client) Transcribe(ctx context.Context, callID, streamID string, wav []byte, isFinal bool) (*transcribe.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: "Transcribe", Args: []any{callID, streamID, wav, isFinal}})
	fn := m.TranscribeFunc
	text := m.TranscribeText
	confidence := m.TranscribeConfidence
	err := m.TranscribeErr
	delay := m.TranscribeDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, nil
		}
	}

	if fn != nil {
		return fn(ctx, callID, streamID, wav, isFinal)
	}
	if callID == "" || streamID == "" {
		return nil, errors.New("mock transcribe: call and stream IDs must not be empty")
	}
	if err != nil {
		return nil, err
	}
	if text == "" || len(wav) == 0 {
		return nil, nil
	}
	return &transcribe.Result{
		CallID:     callID,
		StreamID:   streamID,
		Text:       text,
		IsFinal:    isFinal,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// Ensure Client satisfies the interface at compile time.
var _ transcribe.Client = (*Client)(nil)
