// Package mock provides an in-memory test double for the insights.Extractor
// interface.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/callsight/callsight/pkg/provider/insights"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Extractor is a configurable test double for [insights.Extractor].
type Extractor struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// ExtractResult is returned by [Extractor.Extract] when non-nil.
	// A copy is returned so tests can mutate the field between calls.
	ExtractResult *insights.Insights

	// ExtractErr is returned by [Extractor.Extract] when non-nil.
	ExtractErr error

	// ExtractFunc, when non-nil, overrides all other fields and is
	// invoked directly.
	ExtractFunc func(ctx context.Context, callID, transcript string) (*insights.Insights, error)
}

// Calls returns a copy of all recorded method invocations.
func (m *Extractor) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Extractor) CallCount(method string) int {
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
func (m *Extractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Extract implements [insights.Extractor].
func (m *Extractor) Extract(ctx context.Context, callID, transcript string) (*insights.Insights, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: "Extract", Args: []any{callID, transcript}})
	fn := m.ExtractFunc
	result := m.ExtractResult
	err := m.ExtractErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, callID, transcript)
	}
	if callID == "" {
		return nil, errors.New("mock insights: call ID must not be empty")
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	out := *result
	return &out, nil
}

// Ensure Extractor satisfies the interface at compile time.
var _ insights.Extractor = (*Extractor)(nil)
