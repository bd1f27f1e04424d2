package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
)

type undoFixture struct {
	records *mockRecordRepo
	audits  *mockAuditRepo
	trans   TransitionService
	undo    UndoService
	now     time.Time
}

func newUndoFixture() *undoFixture {
	f := &undoFixture{
		records: newMockRecordRepo(),
		audits:  &mockAuditRepo{},
		now:     time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.trans = NewTransitionService(f.records, f.audits, &mockTxManager{}, nopLogger{}, WithClock(clock))
	f.undo = NewUndoService(f.audits, f.trans, nopLogger{}, WithUndoClock(clock))
	return f
}

func (f *undoFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func TestUndo_RoundTrip(t *testing.T) {
	f := newUndoFixture()
	f.records.add("r1", entity.KindInvoice, "alice", workflow.StatusReadyForPayment)

	paid, err := f.trans.Transition(context.Background(), "r1", workflow.StatusPaid, finance, workflow.Fields{})
	if err != nil {
		t.Fatalf("Transition() unexpected error: %v", err)
	}

	action, err := f.undo.OfferUndo(context.Background(), paid.ID)
	if err != nil {
		t.Fatalf("OfferUndo() unexpected error: %v", err)
	}
	if action.ToStatus != "ready_for_payment" {
		t.Errorf("action to_status = %v, want ready_for_payment", action.ToStatus)
	}

	compensation, err := f.undo.ApplyUndo(context.Background(), paid.ID, finance)
	if err != nil {
		t.Fatalf("ApplyUndo() unexpected error: %v", err)
	}

	if got := f.records.records["r1"].Workflow.Status; got != "ready_for_payment" {
		t.Errorf("status = %v, want restored to ready_for_payment", got)
	}
	if compensation.ToStatus != paid.FromStatus {
		t.Errorf("compensation to_status = %v, want %v", compensation.ToStatus, paid.FromStatus)
	}
	if compensation.ReversesEventID != paid.ID {
		t.Errorf("compensation reverses = %v, want %v", compensation.ReversesEventID, paid.ID)
	}

	// Exactly one new event, the original untouched.
	changes := f.audits.statusChanges("r1")
	if len(changes) != 2 {
		t.Fatalf("status change events = %d, want 2", len(changes))
	}
	if changes[0].ID != paid.ID || changes[0].ReversesEventID != "" {
		t.Error("original event must remain unmodified")
	}
}

func TestUndo_ExpiredGraceWindow(t *testing.T) {
	f := newUndoFixture()
	f.records.add("r1", entity.KindInvoice, "alice", workflow.StatusReadyForPayment)

	paid, err := f.trans.Transition(context.Background(), "r1", workflow.StatusPaid, finance, workflow.Fields{})
	if err != nil {
		t.Fatalf("Transition() unexpected error: %v", err)
	}

	f.advance(DefaultUndoGrace + time.Second)

	if _, err := f.undo.OfferUndo(context.Background(), paid.ID); !errors.Is(err, workflow.ErrNotReversible) {
		t.Errorf("OfferUndo() error = %v, want ErrNotReversible", err)
	}
	if _, err := f.undo.ApplyUndo(context.Background(), paid.ID, finance); !errors.Is(err, workflow.ErrNotReversible) {
		t.Errorf("ApplyUndo() error = %v, want ErrNotReversible", err)
	}
}

func TestUndo_OnlyOnce(t *testing.T) {
	f := newUndoFixture()
	f.records.add("r1", entity.KindInvoice, "alice", workflow.StatusReadyForPayment)

	paid, _ := f.trans.Transition(context.Background(), "r1", workflow.StatusPaid, finance, workflow.Fields{})
	if _, err := f.undo.ApplyUndo(context.Background(), paid.ID, finance); err != nil {
		t.Fatalf("first ApplyUndo() unexpected error: %v", err)
	}

	if _, err := f.undo.ApplyUndo(context.Background(), paid.ID, finance); !errors.Is(err, workflow.ErrNotReversible) {
		t.Errorf("second ApplyUndo() error = %v, want ErrNotReversible", err)
	}
}

func TestUndo_NonStatusEventNotReversible(t *testing.T) {
	f := newUndoFixture()
	note := &entity.AuditEvent{
		ID:        "evt-note",
		RecordID:  "r1",
		ActorID:   "alice",
		Type:      entity.EventNoteAdded,
		Note:      "check this",
		CreatedAt: f.now,
	}
	if err := f.audits.Append(context.Background(), note); err != nil {
		t.Fatal(err)
	}

	if _, err := f.undo.OfferUndo(context.Background(), "evt-note"); !errors.Is(err, workflow.ErrNotReversible) {
		t.Errorf("OfferUndo() error = %v, want ErrNotReversible", err)
	}
}

func TestUndo_UnknownEvent(t *testing.T) {
	f := newUndoFixture()
	if _, err := f.undo.OfferUndo(context.Background(), "ghost"); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("OfferUndo() error = %v, want ErrNotFound", err)
	}
}

func TestUndo_SupersededEventIsFinal(t *testing.T) {
	f := newUndoFixture()
	f.records.add("r1", entity.KindInvoice, "alice", workflow.StatusPendingManager)

	approved, err := f.trans.Transition(context.Background(), "r1", workflow.StatusApprovedByManager, manager, workflow.Fields{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.trans.Transition(context.Background(), "r1", workflow.StatusReadyForPayment, finance, workflow.Fields{}); err != nil {
		t.Fatal(err)
	}

	// The approval is no longer the latest status change.
	if _, err := f.undo.OfferUndo(context.Background(), approved.ID); !errors.Is(err, workflow.ErrNotReversible) {
		t.Errorf("OfferUndo() error = %v, want ErrNotReversible for superseded event", err)
	}
}

func TestUndo_ReverseEdgeMustBeLegalForActor(t *testing.T) {
	f := newUndoFixture()
	f.records.add("r1", entity.KindInvoice, "alice", workflow.StatusPendingManager)

	// approved_by_manager -> pending_manager is an admin-only backward edge.
	approved, err := f.trans.Transition(context.Background(), "r1", workflow.StatusApprovedByManager, manager, workflow.Fields{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.undo.ApplyUndo(context.Background(), approved.ID, manager); !errors.Is(err, workflow.ErrUnauthorized) {
		t.Errorf("ApplyUndo() error = %v, want ErrUnauthorized for manager", err)
	}

	if _, err := f.undo.ApplyUndo(context.Background(), approved.ID, admin); err != nil {
		t.Errorf("ApplyUndo() unexpected error for admin: %v", err)
	}
}
