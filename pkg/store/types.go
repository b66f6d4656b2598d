package store

import "time"

// CallRecord is the per-call metadata artifact, stored under [RowKeyCall].
type CallRecord struct {
	// CallID is the carrier-assigned call identifier (case-preserving).
	CallID string `json:"callId"`

	// From and To are the caller and callee numbers as reported by the
	// carrier webhook. Empty when the call was discovered via its media
	// stream only.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Direction is "inbound" or "outbound-api"/"outbound-dial" per the
	// carrier's vocabulary.
	Direction string `json:"direction,omitempty"`

	// Status is the last carrier call status observed ("ringing",
	// "in-progress", "completed", ...).
	Status string `json:"status,omitempty"`

	// StartedAt is when the call record was first created.
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is set when a terminal status arrives.
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// DurationSeconds is derived from StartedAt and CompletedAt.
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`

	// HasActiveStream is true while a media stream is attached to the call.
	HasActiveStream bool `json:"hasActiveStream"`

	// StreamID is the attached media stream, nil when none is active.
	StreamID *string `json:"streamId,omitempty"`
}

// TranscriptChunk is one accepted transcription result plus its per-session
// sequence number, stored under a timestamp-tick row key.
type TranscriptChunk struct {
	CallID   string `json:"callId"`
	StreamID string `json:"streamId"`

	// Text is the accepted transcript text, non-empty after trimming.
	Text string `json:"text"`

	// IsFinal marks the chunk produced by the end-of-stream flush.
	IsFinal bool `json:"isFinal"`

	// Confidence is the transcription service's self-reported confidence,
	// nil when the service omitted it.
	Confidence *float64 `json:"confidence,omitempty"`

	// Timestamp is when the transcription result was produced (UTC). It
	// also determines the chunk's row key.
	Timestamp time.Time `json:"timestamp"`

	// Sequence is the session-scoped counter, contiguous from 0.
	Sequence int `json:"sequence"`
}

// SummaryRecord is the end-of-call summary artifact, stored under
// [RowKeySummary].
type SummaryRecord struct {
	CallID string `json:"callId"`

	// Summary is the narrative summary of the call so far.
	Summary string `json:"summary"`

	// KeyFindings are the extracted salient facts, ordered by the model.
	// Never nil; may be empty.
	KeyFindings []string `json:"keyFindings"`

	// GeneratedAt is when the insights pass produced this record (UTC).
	GeneratedAt time.Time `json:"generatedAt"`
}

// LocationRecord is the extracted caller location artifact, stored under
// [RowKeyLocation]. Only persisted when FormattedAddress is non-empty and
// both coordinates are present.
type LocationRecord struct {
	CallID string `json:"callId"`

	// RawText is the location text as spoken, set to the extracted address.
	RawText string `json:"rawText,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	FormattedAddress string `json:"formattedAddress,omitempty"`

	// Confidence is the model's confidence in the extraction, in [0, 1].
	// Defaults to 0 when the model omitted it.
	Confidence float64 `json:"confidence"`
}
