// Package mock provides an in-memory Broadcaster for tests.
package mock

import (
	"context"
	"sync"

	"github.com/callsight/callsight/internal/push"
)

// Call records a single mock invocation.
type Call struct {
	Method string
	Args   []any
}

// Broadcaster is a mock implementation of push.Broadcaster. Every method
// records its call and returns the configured error, if any.
type Broadcaster struct {
	mu    sync.Mutex
	calls []Call

	TranscriptUpdateErr error
	CallStatusUpdateErr error
	LocationUpdateErr   error
	SummaryUpdateErr    error
}

// NewBroadcaster returns a mock broadcaster that succeeds on every call.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Calls returns a copy of all recorded calls in order.
func (b *Broadcaster) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (b *Broadcaster) CallCount(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func (b *Broadcaster) record(method string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Method: method, Args: args})
}

// BroadcastTranscriptUpdate implements push.Broadcaster.
func (b *Broadcaster) BroadcastTranscriptUpdate(_ context.Context, callID, text string, isFinal bool) error {
	b.record("BroadcastTranscriptUpdate", callID, text, isFinal)
	return b.TranscriptUpdateErr
}

// BroadcastCallStatusUpdate implements push.Broadcaster.
func (b *Broadcaster) BroadcastCallStatusUpdate(_ context.Context, callID, status string) error {
	b.record("BroadcastCallStatusUpdate", callID, status)
	return b.CallStatusUpdateErr
}

// BroadcastLocationUpdate implements push.Broadcaster.
func (b *Broadcaster) BroadcastLocationUpdate(_ context.Context, callID string, latitude, longitude float64, address string) error {
	b.record("BroadcastLocationUpdate", callID, latitude, longitude, address)
	return b.LocationUpdateErr
}

// BroadcastSummaryUpdate implements push.Broadcaster.
func (b *Broadcaster) BroadcastSummaryUpdate(_ context.Context, callID, summary string, keyFindings []string) error {
	b.record("BroadcastSummaryUpdate", callID, summary, keyFindings)
	return b.SummaryUpdateErr
}

var _ push.Broadcaster = (*Broadcaster)(nil)
