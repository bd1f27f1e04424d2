package workflow

import "github.com/opsledger/workflow-engine/internal/domain/entity"

var (
	invoiceTable    = buildInvoiceTable()
	assignmentTable = buildAssignmentTable()
)

// TableFor returns the transition table that governs the given record kind.
// Invoice-like kinds (guest invoices, other invoices, payslips) share one
// table; assignments use the simpler pending/confirmed/cancelled machine.
func TableFor(kind entity.Kind) *Table {
	if kind == entity.KindAssignment {
		return assignmentTable
	}
	return invoiceTable
}

// buildInvoiceTable configures the approval pipeline for invoice-like records:
// submission, line-manager review, payment readiness, paid/archived, with a
// rejection branch and explicit admin-only backward edges.
func buildInvoiceTable() *Table {
	b := NewBuilder(StatusSubmitted,
		StatusPendingManager,
		StatusApprovedByManager,
		StatusPendingAdmin,
		StatusReadyForPayment,
		StatusPaid,
		StatusRejected,
		StatusArchived,
	)

	b.Configure(StatusSubmitted).
		Permit(StatusPendingManager, Roles(entity.RoleSubmitter, entity.RoleManager))

	b.Configure(StatusPendingManager).
		Permit(StatusApprovedByManager, Roles(entity.RoleManager), DenySelfApproval()).
		Permit(StatusPendingAdmin, Roles(entity.RoleManager), DenySelfApproval()).
		Permit(StatusRejected, Roles(entity.RoleManager), Requires(FieldRejectionReason))

	b.Configure(StatusApprovedByManager).
		Permit(StatusReadyForPayment, Roles(entity.RoleFinance)).
		Permit(StatusArchived, Roles(entity.RoleFinance, entity.RoleOperations)).
		Permit(StatusPendingManager, Roles()) // admin-only backward edge

	b.Configure(StatusPendingAdmin).
		Permit(StatusReadyForPayment, Roles()).
		Permit(StatusRejected, Roles(), Requires(FieldRejectionReason)).
		Permit(StatusPendingManager, Roles())

	b.Configure(StatusReadyForPayment).
		Permit(StatusPaid, Roles(entity.RoleFinance), Requires(FieldPaidDate)).
		Permit(StatusRejected, Roles(entity.RoleFinance), Requires(FieldRejectionReason)).
		Permit(StatusArchived, Roles(entity.RoleFinance, entity.RoleOperations)).
		Permit(StatusPendingManager, Roles())

	b.Configure(StatusPaid).
		Permit(StatusReadyForPayment, Roles(entity.RoleFinance))

	b.Configure(StatusArchived).
		Permit(StatusReadyForPayment, Roles())

	b.Configure(StatusRejected).
		Permit(StatusPendingManager, Roles(entity.RoleSubmitter), ClearsRejection())

	return b.Build()
}

// buildAssignmentTable configures the contractor shift machine
func buildAssignmentTable() *Table {
	b := NewBuilder(StatusPending,
		StatusConfirmed,
		StatusCancelled,
	)

	b.Configure(StatusPending).
		Permit(StatusConfirmed, Roles(entity.RoleManager, entity.RoleOperations), DenySelfApproval()).
		Permit(StatusCancelled, Roles(entity.RoleSubmitter, entity.RoleManager, entity.RoleOperations))

	b.Configure(StatusConfirmed).
		Permit(StatusCancelled, Roles(entity.RoleManager, entity.RoleOperations)).
		Permit(StatusPending, Roles())

	b.Configure(StatusCancelled).
		Permit(StatusPending, Roles(entity.RoleSubmitter))

	return b.Build()
}
