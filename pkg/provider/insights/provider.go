// Package insights defines the Extractor interface for structured insight
// extraction from call transcripts.
//
// An extractor turns the accumulated transcript of a call into a summary
// with key findings and, when the caller stated one, a geographic location
// with coordinates. The pipeline invokes it twice per call: incrementally
// after each accepted transcription flush and once more on stream stop, with
// the later extraction overwriting the earlier records.
//
// Like the transcription client, the extractor is an error boundary:
// operational failures are logged by the implementation and reported as
// "no insights". Only caller misuse surfaces as an error.
//
// Implementations must be safe for concurrent use.
package insights

import "context"

// Extractor is the abstraction over any insight extraction backend.
type Extractor interface {
	// Extract analyzes the transcript accumulated so far for callID.
	//
	// callID must be non-empty; violating that returns an error. An
	// empty or whitespace-only transcript returns (nil, nil) without a
	// remote call. Operational failures are logged by the implementation
	// and reported as (nil, nil).
	//
	// Extraction may be slow. Callers must not impose short per-attempt
	// timeouts; the implementation owns the request budget.
	Extract(ctx context.Context, callID, transcript string) (*Insights, error)
}
