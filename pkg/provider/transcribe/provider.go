// Package transcribe defines the Client interface for batch speech-to-text
// backends.
//
// A transcription client wraps a hosted Whisper-style HTTP API and exposes a
// single-shot contract: one WAV clip in, at most one transcript out. The
// pipeline calls it once per flush, so the client is the error boundary for
// everything operational — network failures, non-2xx responses, cancelled
// requests, and undecodable bodies are logged inside the client and reported
// as "no result" rather than as errors. Only caller misuse (empty call or
// stream ID) surfaces as an error.
//
// Implementations must be safe for concurrent use. Many sessions flush
// through one shared client.
package transcribe

import "context"

// Client is the abstraction over any batch transcription backend.
type Client interface {
	// Transcribe submits one WAV clip for transcription and returns the
	// recognized text, or nil when the backend produced nothing usable.
	//
	// callID and streamID must be non-empty; violating that returns an
	// error. An empty wav returns (nil, nil) without a remote call. All
	// operational failures are logged by the implementation and reported
	// as (nil, nil) so a lost clip never tears down the session.
	Transcribe(ctx context.Context, callID, streamID string, wav []byte, isFinal bool) (*Result, error)
}
