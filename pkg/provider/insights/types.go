package insights

import "github.com/callsight/callsight/pkg/store"

// Insights is the result of one extraction pass. Either field may be nil
// when the transcript did not support it; callers handle each independently.
type Insights struct {
	// Summary carries the call summary and key findings. Populated only
	// when the backend produced a non-empty summary. KeyFindings is never
	// nil on a populated record.
	Summary *store.SummaryRecord

	// Location carries the extracted caller location. Populated only when
	// the backend produced a non-empty address and both coordinates.
	Location *store.LocationRecord
}
