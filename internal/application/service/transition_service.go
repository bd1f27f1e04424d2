package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// TransitionService applies validated single-record status transitions
type TransitionService interface {
	// Transition moves one record to the requested status on behalf of the
	// actor. The workflow update and the audit append commit atomically; a
	// concurrent status change surfaces as workflow.ErrStaleState.
	Transition(ctx context.Context, recordID string, to workflow.Status, actor entity.Actor, fields workflow.Fields) (*entity.AuditEvent, error)

	// Compensate applies the reverse of a prior status change on behalf of
	// the actor. The reverse edge passes through the same validation as any
	// transition; the appended event references the original.
	Compensate(ctx context.Context, original *entity.AuditEvent, actor entity.Actor) (*entity.AuditEvent, error)
}

type transitionServiceImpl struct {
	recordRepo port.RecordRepository
	auditRepo  port.AuditRepository
	txManager  port.TransactionManager
	sink       port.NotificationSink
	logger     Logger
	now        func() time.Time
}

// TransitionOption configures the transition service
type TransitionOption func(*transitionServiceImpl)

// WithClock overrides the service clock
func WithClock(now func() time.Time) TransitionOption {
	return func(s *transitionServiceImpl) {
		s.now = now
	}
}

// WithNotificationSink sets the sink invoked after notable transitions
func WithNotificationSink(sink port.NotificationSink) TransitionOption {
	return func(s *transitionServiceImpl) {
		s.sink = sink
	}
}

// NewTransitionService creates a new TransitionService
func NewTransitionService(
	recordRepo port.RecordRepository,
	auditRepo port.AuditRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...TransitionOption,
) TransitionService {
	s := &transitionServiceImpl{
		recordRepo: recordRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transition implements TransitionService
func (s *transitionServiceImpl) Transition(ctx context.Context, recordID string, to workflow.Status, actor entity.Actor, fields workflow.Fields) (*entity.AuditEvent, error) {
	return s.transition(ctx, recordID, to, actor, fields, "")
}

// Compensate implements TransitionService
func (s *transitionServiceImpl) Compensate(ctx context.Context, original *entity.AuditEvent, actor entity.Actor) (*entity.AuditEvent, error) {
	return s.transition(ctx, original.RecordID, workflow.Status(original.FromStatus), actor, workflow.Fields{}, original.ID)
}

// transition is the shared single-record commit path. reversesEventID is set
// only by the undo service, marking the appended event as compensating.
func (s *transitionServiceImpl) transition(ctx context.Context, recordID string, to workflow.Status, actor entity.Actor, fields workflow.Fields, reversesEventID string) (*entity.AuditEvent, error) {
	var event *entity.AuditEvent

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Re-read inside the transaction: the status the request was
		// validated against must still hold at commit.
		record, err := s.recordRepo.GetByID(txCtx, recordID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: record %s", workflow.ErrNotFound, recordID)
		}

		if record.Workflow.Status == to.String() {
			return fmt.Errorf("%w: record %s", workflow.ErrAlreadyInState, recordID)
		}

		plan, err := workflow.Validate(record, record.Workflow, to, actor, fields, s.now())
		if err != nil {
			return err
		}

		plan.Event.ID = uuid.NewString()
		plan.Event.ReversesEventID = reversesEventID

		if err := s.recordRepo.CompareAndSwapStatus(txCtx, recordID, record.Workflow.Status, &plan.Workflow); err != nil {
			return err
		}

		// An unaudited status change is not acceptable: an append failure
		// fails the whole transition.
		if err := s.auditRepo.Append(txCtx, &plan.Event); err != nil {
			return fmt.Errorf("%w: audit append: %v", workflow.ErrStorageFailure, err)
		}

		event = &plan.Event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Status transition applied",
		"record_id", recordID,
		"from", event.FromStatus,
		"to", event.ToStatus,
		"actor_id", actor.ID,
	)

	s.notify(ctx, recordID, event)

	return event, nil
}

// notifiable targets: approvals, rejections, payments, confirmations
var notifiable = map[string]bool{
	workflow.StatusApprovedByManager.String(): true,
	workflow.StatusRejected.String():          true,
	workflow.StatusPaid.String():              true,
	workflow.StatusConfirmed.String():         true,
}

func (s *transitionServiceImpl) notify(ctx context.Context, recordID string, event *entity.AuditEvent) {
	if s.sink == nil || !notifiable[event.ToStatus] {
		return
	}
	// Fire and forget: a sink failure never rolls back the transition.
	s.sink.Notify(ctx, port.Notification{
		RecordID:   recordID,
		ActorID:    event.ActorID,
		FromStatus: event.FromStatus,
		ToStatus:   event.ToStatus,
	})
}
