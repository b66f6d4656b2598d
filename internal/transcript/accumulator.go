// Package transcript maintains the running per-call transcript assembled
// from accepted transcription results. The joined text feeds the insights
// extractor during and at the end of each call.
package transcript

import (
	"strings"
	"sync"
)

// Accumulator collects accepted transcript segments keyed by call ID. It is
// safe for concurrent use by many sessions. Per-call segment order follows
// the order of Append calls; each session serialises its appends through its
// single flush pipeline, so no additional ordering is needed here.
type Accumulator struct {
	mu       sync.Mutex
	segments map[string][]string
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{segments: make(map[string][]string)}
}

// Append records one accepted transcript segment for the call.
func (a *Accumulator) Append(callID, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.segments[callID] = append(a.segments[callID], text)
}

// Join returns the call's segments joined with single spaces, or the empty
// string when the call has no accepted segments.
func (a *Accumulator) Join(callID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.segments[callID], " ")
}

// Release discards all segments for the call. Sessions call this once the
// final insights pass has run so memory does not accumulate across calls.
func (a *Accumulator) Release(callID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.segments, callID)
}
