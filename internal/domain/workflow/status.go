package workflow

// Status represents a workflow state in the record lifecycle
type Status string

// Invoice-like statuses (invoice, other_invoice, payslip)
const (
	StatusSubmitted         Status = "submitted"
	StatusPendingManager    Status = "pending_manager"
	StatusApprovedByManager Status = "approved_by_manager"
	StatusPendingAdmin      Status = "pending_admin"
	StatusReadyForPayment   Status = "ready_for_payment"
	StatusPaid              Status = "paid"
	StatusRejected          Status = "rejected"
	StatusArchived          Status = "archived"
)

// Assignment statuses
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
