package entity

import "time"

// Workflow is the status sub-record attached one-to-one to a Record.
//
// Invariants:
//   - Status is always a value from the fixed vocabulary for the record's kind.
//   - RejectionReason is non-empty iff the record most recently entered the
//     rejected status; any forward transition out of rejected clears it.
//   - PaidDate is set when the record enters the paid status.
type Workflow struct {
	RecordID        string     `json:"record_id"`
	Status          string     `json:"status"`
	AssigneeID      string     `json:"assignee_id,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	PaidDate        *time.Time `json:"paid_date,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
