// Package mock provides in-memory test doubles for the store interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	calls := &mock.CallStore{}
//	calls.GetResult = &store.CallRecord{CallID: "CA123"}
//
//	// inject calls into the system under test …
//
//	if got := calls.CallCount("UpdateStream"); got != 1 {
//	    t.Errorf("expected 1 UpdateStream call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/callsight/callsight/pkg/store"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// ─────────────────────────────────────────────────────────────────────────────
// CallStore mock
// ─────────────────────────────────────────────────────────────────────────────

// CallStore is a configurable test double for [store.CallStore].
// All exported *Err fields default to nil (success); all exported *Result
// fields default to nil.
type CallStore struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// UpsertErr is returned by [CallStore.Upsert] when non-nil.
	UpsertErr error

	// GetResult is returned by [CallStore.Get]. When nil and GetErr is also
	// nil, Get returns [store.ErrNotFound].
	GetResult *store.CallRecord

	// GetErr is returned by [CallStore.Get] when non-nil.
	GetErr error

	// ListResult is returned by [CallStore.List].
	// When nil, List returns an empty non-nil slice.
	ListResult []store.CallRecord

	// ListErr is returned by [CallStore.List] when non-nil.
	ListErr error

	// UpdateStreamErr is returned by [CallStore.UpdateStream] when non-nil.
	UpdateStreamErr error

	// UpdateStatusErr is returned by [CallStore.UpdateStatus] when non-nil.
	UpdateStatusErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *CallStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *CallStore) CallCount(method string) int {
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
func (m *CallStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Upsert implements [store.CallStore].
func (m *CallStore) Upsert(_ context.Context, rec store.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Upsert", Args: []any{rec}})
	return m.UpsertErr
}

// Get implements [store.CallStore].
func (m *CallStore) Get(_ context.Context, callID string) (*store.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Get", Args: []any{callID}})
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.GetResult == nil {
		return nil, store.ErrNotFound
	}
	rec := *m.GetResult
	return &rec, nil
}

// List implements [store.CallStore].
func (m *CallStore) List(_ context.Context, limit int) ([]store.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "List", Args: []any{limit}})
	if m.ListResult == nil {
		return []store.CallRecord{}, m.ListErr
	}
	out := make([]store.CallRecord, len(m.ListResult))
	copy(out, m.ListResult)
	return out, m.ListErr
}

// UpdateStream implements [store.CallStore].
func (m *CallStore) UpdateStream(_ context.Context, callID string, streamID *string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "UpdateStream", Args: []any{callID, streamID, active}})
	return m.UpdateStreamErr
}

// UpdateStatus implements [store.CallStore].
func (m *CallStore) UpdateStatus(_ context.Context, callID string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "UpdateStatus", Args: []any{callID, status}})
	return m.UpdateStatusErr
}

// Ensure CallStore satisfies the interface at compile time.
var _ store.CallStore = (*CallStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// TranscriptStore mock
// ─────────────────────────────────────────────────────────────────────────────

// TranscriptStore is a configurable test double for [store.TranscriptStore].
type TranscriptStore struct {
	mu sync.Mutex

	calls []Call

	// SaveErr is returned by [TranscriptStore.Save] when non-nil.
	SaveErr error

	// ListByCallResult is returned by [TranscriptStore.ListByCall].
	// When nil, ListByCall returns an empty non-nil slice.
	ListByCallResult []store.TranscriptChunk

	// ListByCallErr is returned by [TranscriptStore.ListByCall] when non-nil.
	ListByCallErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *TranscriptStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *TranscriptStore) CallCount(method string) int {
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
func (m *TranscriptStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Save implements [store.TranscriptStore].
func (m *TranscriptStore) Save(_ context.Context, chunk store.TranscriptChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Save", Args: []any{chunk}})
	return m.SaveErr
}

// ListByCall implements [store.TranscriptStore].
func (m *TranscriptStore) ListByCall(_ context.Context, callID string) ([]store.TranscriptChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "ListByCall", Args: []any{callID}})
	if m.ListByCallResult == nil {
		return []store.TranscriptChunk{}, m.ListByCallErr
	}
	out := make([]store.TranscriptChunk, len(m.ListByCallResult))
	copy(out, m.ListByCallResult)
	return out, m.ListByCallErr
}

// Ensure TranscriptStore satisfies the interface at compile time.
var _ store.TranscriptStore = (*TranscriptStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// SummaryStore mock
// ─────────────────────────────────────────────────────────────────────────────

// SummaryStore is a configurable test double for [store.SummaryStore].
type SummaryStore struct {
	mu sync.Mutex

	calls []Call

	// UpsertErr is returned by [SummaryStore.Upsert] when non-nil.
	UpsertErr error

	// GetResult is returned by [SummaryStore.Get]. When nil and GetErr is
	// also nil, Get returns [store.ErrNotFound].
	GetResult *store.SummaryRecord

	// GetErr is returned by [SummaryStore.Get] when non-nil.
	GetErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *SummaryStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *SummaryStore) CallCount(method string) int {
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
func (m *SummaryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Upsert implements [store.SummaryStore].
func (m *SummaryStore) Upsert(_ context.Context, rec store.SummaryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Upsert", Args: []any{rec}})
	return m.UpsertErr
}

// Get implements [store.SummaryStore].
func (m *SummaryStore) Get(_ context.Context, callID string) (*store.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Get", Args: []any{callID}})
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.GetResult == nil {
		return nil, store.ErrNotFound
	}
	rec := *m.GetResult
	return &rec, nil
}

// Ensure SummaryStore satisfies the interface at compile time.
var _ store.SummaryStore = (*SummaryStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// LocationStore mock
// ─────────────────────────────────────────────────────────────────────────────

// LocationStore is a configurable test double for [store.LocationStore].
type LocationStore struct {
	mu sync.Mutex

	calls []Call

	// UpsertErr is returned by [LocationStore.Upsert] when non-nil.
	UpsertErr error

	// GetResult is returned by [LocationStore.Get]. When nil and GetErr is
	// also nil, Get returns [store.ErrNotFound].
	GetResult *store.LocationRecord

	// GetErr is returned by [LocationStore.Get] when non-nil.
	GetErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *LocationStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *LocationStore) CallCount(method string) int {
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
func (m *LocationStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Upsert implements [store.LocationStore].
func (m *LocationStore) Upsert(_ context.Context, rec store.LocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Upsert", Args: []any{rec}})
	return m.UpsertErr
}

// Get implements [store.LocationStore].
func (m *LocationStore) Get(_ context.Context, callID string) (*store.LocationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Get", Args: []any{callID}})
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.GetResult == nil {
		return nil, store.ErrNotFound
	}
	rec := *m.GetResult
	return &rec, nil
}

// Ensure LocationStore satisfies the interface at compile time.
var _ store.LocationStore = (*LocationStore)(nil)
