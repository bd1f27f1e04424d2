package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/opsledger/workflow-engine/internal/domain/entity"
)

func testRecord(kind entity.Kind, status Status) (*entity.Record, *entity.Workflow) {
	rec := &entity.Record{
		ID:          "rec-1",
		Kind:        kind,
		SubmitterID: "alice",
		Payload:     entity.Payload{"amount": "120.50"},
	}
	wf := &entity.Workflow{
		RecordID: rec.ID,
		Status:   status.String(),
	}
	return rec, wf
}

func TestValidate_IllegalEdge(t *testing.T) {
	rec, wf := testRecord(entity.KindInvoice, StatusSubmitted)
	actor := entity.Actor{ID: "fred", Role: entity.RoleFinance}

	_, err := Validate(rec, wf, StatusPaid, actor, Fields{}, time.Now())
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Validate() error = %v, want ErrIllegalTransition", err)
	}
}

func TestValidate_UnknownStatus(t *testing.T) {
	rec, wf := testRecord(entity.KindAssignment, StatusPending)
	actor := entity.Actor{ID: "olga", Role: entity.RoleOperations}

	_, err := Validate(rec, wf, StatusPaid, actor, Fields{}, time.Now())
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Validate() error = %v, want ErrIllegalTransition", err)
	}
}

func TestValidate_RoleDenied(t *testing.T) {
	rec, wf := testRecord(entity.KindInvoice, StatusPendingManager)

	tests := []struct {
		name  string
		actor entity.Actor
		ok    bool
	}{
		{"manager allowed", entity.Actor{ID: "mary", Role: entity.RoleManager}, true},
		{"admin allowed", entity.Actor{ID: "root", Role: entity.RoleAdmin}, true},
		{"finance denied", entity.Actor{ID: "fred", Role: entity.RoleFinance}, false},
		{"readonly denied", entity.Actor{ID: "ro", Role: entity.RoleReadOnly}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(rec, wf, StatusApprovedByManager, tt.actor, Fields{}, time.Now())
			if tt.ok && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Validate() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestValidate_SelfApprovalDenied(t *testing.T) {
	rec, wf := testRecord(entity.KindInvoice, StatusPendingManager)

	// The submitter also holds the manager role but owns the record.
	owner := entity.Actor{ID: "alice", Role: entity.RoleManager}
	_, err := Validate(rec, wf, StatusApprovedByManager, owner, Fields{}, time.Now())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Validate() error = %v, want ErrUnauthorized for self-approval", err)
	}

	// An admin owner may still approve.
	adminOwner := entity.Actor{ID: "alice", Role: entity.RoleAdmin}
	if _, err := Validate(rec, wf, StatusApprovedByManager, adminOwner, Fields{}, time.Now()); err != nil {
		t.Errorf("Validate() unexpected error for admin owner: %v", err)
	}
}

func TestValidate_RejectionReasonRequired(t *testing.T) {
	rec, wf := testRecord(entity.KindInvoice, StatusPendingManager)
	manager := entity.Actor{ID: "mary", Role: entity.RoleManager}

	_, err := Validate(rec, wf, StatusRejected, manager, Fields{}, time.Now())
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("Validate() error = %v, want ErrMissingRequiredField", err)
	}

	_, err = Validate(rec, wf, StatusRejected, manager, Fields{RejectionReason: "   "}, time.Now())
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("Validate() error = %v, want ErrMissingRequiredField for blank reason", err)
	}

	plan, err := Validate(rec, wf, StatusRejected, manager, Fields{RejectionReason: "missing bank details"}, time.Now())
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if plan.Workflow.Status != StatusRejected.String() {
		t.Errorf("plan status = %v, want %v", plan.Workflow.Status, StatusRejected)
	}
	if plan.Workflow.RejectionReason != "missing bank details" {
		t.Errorf("plan rejection reason = %q, want %q", plan.Workflow.RejectionReason, "missing bank details")
	}
}

func TestValidate_PaidDateDefaultsToNow(t *testing.T) {
	rec, wf := testRecord(entity.KindInvoice, StatusReadyForPayment)
	finance := entity.Actor{ID: "fred", Role: entity.RoleFinance}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	plan, err := Validate(rec, wf, StatusPaid, finance, Fields{}, now)
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if plan.Workflow.PaidDate == nil || !plan.Workflow.PaidDate.Equal(now) {
		t.Errorf("plan paid date = %v, want %v", plan.Workflow.PaidDate, now)
	}

	explicit := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	plan, err = Validate(rec, wf, StatusPaid, finance, Fields{PaidDate: &explicit}, now)
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if plan.Workflow.PaidDate == nil || !plan.Workflow.PaidDate.Equal(explicit) {
		t.Errorf("plan paid date = %v, want %v", plan.Workflow.PaidDate, explicit)
	}
}

func TestValidate_ResubmissionClearsRejectionReason(t *testing.T) {
	rec, wf := testRecord(entity.KindInvoice, StatusRejected)
	wf.RejectionReason = "missing bank details"
	owner := entity.Actor{ID: "alice", Role: entity.RoleSubmitter}

	plan, err := Validate(rec, wf, StatusPendingManager, owner, Fields{}, time.Now())
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if plan.Workflow.RejectionReason != "" {
		t.Errorf("rejection reason = %q, want cleared", plan.Workflow.RejectionReason)
	}
	change, ok := plan.Event.Diff[FieldRejectionReason]
	if !ok {
		t.Fatal("expected rejection_reason in event diff")
	}
	if change.From != "missing bank details" || change.To != "" {
		t.Errorf("diff = %+v, want from previous reason to empty", change)
	}
}

func TestValidate_PreparedEvent(t *testing.T) {
	rec, wf := testRecord(entity.KindInvoice, StatusPendingManager)
	manager := entity.Actor{ID: "mary", Role: entity.RoleManager}
	now := time.Now()

	plan, err := Validate(rec, wf, StatusApprovedByManager, manager, Fields{}, now)
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	evt := plan.Event
	if evt.Type != entity.EventStatusChanged {
		t.Errorf("event type = %v, want status_changed", evt.Type)
	}
	if evt.FromStatus != StatusPendingManager.String() || evt.ToStatus != StatusApprovedByManager.String() {
		t.Errorf("event edge = %s -> %s, want %s -> %s", evt.FromStatus, evt.ToStatus, StatusPendingManager, StatusApprovedByManager)
	}
	if evt.ActorID != "mary" {
		t.Errorf("event actor = %v, want mary", evt.ActorID)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{ErrStaleState, true},
		{ErrStorageFailure, true},
		{ErrIllegalTransition, false},
		{ErrUnauthorized, false},
		{ErrMissingRequiredField, false},
		{ErrNotReversible, false},
	}

	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.retryable {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}
}
