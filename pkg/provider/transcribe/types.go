package transcribe

import "time"

// Result represents one accepted transcription response.
type Result struct {
	// CallID and StreamID identify the session the audio came from.
	CallID   string
	StreamID string

	// Text is the transcribed speech, trimmed of surrounding whitespace
	// and guaranteed non-empty.
	Text string

	// IsFinal marks the terminal flush of a stream. Incremental flushes
	// carry false.
	IsFinal bool

	// Confidence is the backend's confidence score (0.0–1.0) when
	// reported. Nil when the backend omits it.
	Confidence *float64

	// Timestamp marks when the response was accepted, in UTC. It seeds
	// the transcript row key, so it must be unique per stream in practice.
	Timestamp time.Time
}
