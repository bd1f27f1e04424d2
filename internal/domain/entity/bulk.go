package entity

// BulkFailure records one record's failure inside a bulk operation
type BulkFailure struct {
	RecordID string `json:"record_id"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

// BulkResult aggregates the per-record outcomes of one bulk transition.
// Records already in the target status are reported in Skipped and counted
// as successes so that retries stay safe. Unprocessed lists the ids a
// cancelled run never reached.
type BulkResult struct {
	SuccessCount int           `json:"success_count"`
	Skipped      []string      `json:"skipped,omitempty"`
	Failures     []BulkFailure `json:"failures,omitempty"`
	Unprocessed  []string      `json:"unprocessed,omitempty"`
}

// Attempted returns the number of records the bulk run actually processed
func (r *BulkResult) Attempted() int {
	return r.SuccessCount + len(r.Failures)
}
