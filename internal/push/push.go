// Package push delivers pipeline artifacts to dashboard subscribers in real
// time.
//
// The Broadcaster interface is the outbound contract of the pipeline: the
// dispatcher calls it after persistence, once per artifact. The concrete
// [Hub] fans events out over WebSocket connections organized into
// subscription groups, one group per call, keyed "call_" + callID. A small
// set of call-discovery statuses goes to every connected client regardless
// of group membership so dashboards can surface calls they have not
// subscribed to yet.
//
// Implementations must be safe for concurrent use by many sessions.
package push

import (
	"context"
	"strings"
)

// Event type discriminators carried in the "event" field of every pushed
// JSON payload.
const (
	EventTranscriptUpdate = "ReceiveTranscriptUpdate"
	EventCallStatusUpdate = "ReceiveCallStatusUpdate"
	EventLocationUpdate   = "ReceiveLocationUpdate"
	EventSummaryUpdate    = "ReceiveSummaryUpdate"
)

// Broadcaster is the push-channel contract used by the dispatcher. Errors
// are logged by the caller and never interrupt the pipeline.
type Broadcaster interface {
	// BroadcastTranscriptUpdate pushes one accepted transcript chunk to
	// the call's subscriber group.
	BroadcastTranscriptUpdate(ctx context.Context, callID, text string, isFinal bool) error

	// BroadcastCallStatusUpdate pushes a call status change. Discovery
	// statuses (see [IsGlobalStatus]) go to all connected clients; every
	// other status goes to the call's subscriber group only.
	BroadcastCallStatusUpdate(ctx context.Context, callID, status string) error

	// BroadcastLocationUpdate pushes an extracted caller location to the
	// call's subscriber group. address may be empty.
	BroadcastLocationUpdate(ctx context.Context, callID string, latitude, longitude float64, address string) error

	// BroadcastSummaryUpdate pushes a call summary with its key findings
	// to the call's subscriber group.
	BroadcastSummaryUpdate(ctx context.Context, callID, summary string, keyFindings []string) error
}

// CallGroup returns the subscription group name for a call.
func CallGroup(callID string) string {
	return "call_" + callID
}

// globalStatuses are the call-discovery statuses that are broadcast to every
// connected client rather than a single call group.
var globalStatuses = map[string]struct{}{
	"ringing":        {},
	"stream_started": {},
	"in-progress":    {},
	"initiated":      {},
}

// IsGlobalStatus reports whether status is broadcast to all subscribers.
// The comparison is case-insensitive.
func IsGlobalStatus(status string) bool {
	_, ok := globalStatuses[strings.ToLower(status)]
	return ok
}

// TranscriptUpdate is the wire payload of [EventTranscriptUpdate].
type TranscriptUpdate struct {
	Event   string `json:"event"`
	CallID  string `json:"callId"`
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// CallStatusUpdate is the wire payload of [EventCallStatusUpdate].
type CallStatusUpdate struct {
	Event  string `json:"event"`
	CallID string `json:"callId"`
	Status string `json:"status"`
}

// LocationUpdate is the wire payload of [EventLocationUpdate].
type LocationUpdate struct {
	Event     string  `json:"event"`
	CallID    string  `json:"callId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// SummaryUpdate is the wire payload of [EventSummaryUpdate].
type SummaryUpdate struct {
	Event       string   `json:"event"`
	CallID      string   `json:"callId"`
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"keyFindings"`
}
