package service

import (
	"context"
	"fmt"
	"time"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
)

// DefaultUndoGrace mirrors the UI's auto-settle window
const DefaultUndoGrace = 5 * time.Second

// CompensatingAction is a time-boxed offer to reverse one status change
type CompensatingAction struct {
	EventID    string    `json:"event_id"`
	RecordID   string    `json:"record_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// UndoService reverses recent status changes inside a server-enforced grace
// window. A successful undo appends a new compensating audit event; it never
// deletes or edits the original.
type UndoService interface {
	// OfferUndo returns the compensating action for a status-changing event
	// still inside the grace window, or workflow.ErrNotReversible.
	OfferUndo(ctx context.Context, eventID string) (*CompensatingAction, error)

	// ApplyUndo re-validates the reverse edge for the actor and applies it.
	// If the reverse edge is not itself legal for the actor, the undo is
	// denied and the state is final.
	ApplyUndo(ctx context.Context, eventID string, actor entity.Actor) (*entity.AuditEvent, error)
}

type undoServiceImpl struct {
	auditRepo   port.AuditRepository
	transitions TransitionService
	grace       time.Duration
	logger      Logger
	now         func() time.Time
}

// UndoOption configures the undo service
type UndoOption func(*undoServiceImpl)

// WithGraceWindow overrides the undo grace window
func WithGraceWindow(grace time.Duration) UndoOption {
	return func(s *undoServiceImpl) {
		s.grace = grace
	}
}

// WithUndoClock overrides the service clock
func WithUndoClock(now func() time.Time) UndoOption {
	return func(s *undoServiceImpl) {
		s.now = now
	}
}

// NewUndoService creates a new UndoService
func NewUndoService(auditRepo port.AuditRepository, transitions TransitionService, logger Logger, opts ...UndoOption) UndoService {
	s := &undoServiceImpl{
		auditRepo:   auditRepo,
		transitions: transitions,
		grace:       DefaultUndoGrace,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OfferUndo implements UndoService
func (s *undoServiceImpl) OfferUndo(ctx context.Context, eventID string) (*CompensatingAction, error) {
	event, err := s.reversibleEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &CompensatingAction{
		EventID:    event.ID,
		RecordID:   event.RecordID,
		FromStatus: event.ToStatus,
		ToStatus:   event.FromStatus,
		ExpiresAt:  event.CreatedAt.Add(s.grace),
	}, nil
}

// ApplyUndo implements UndoService
func (s *undoServiceImpl) ApplyUndo(ctx context.Context, eventID string, actor entity.Actor) (*entity.AuditEvent, error) {
	event, err := s.reversibleEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	compensation, err := s.transitions.Compensate(ctx, event, actor)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Undo applied",
		"record_id", event.RecordID,
		"original_event_id", event.ID,
		"compensating_event_id", compensation.ID,
	)
	return compensation, nil
}

// reversibleEvent loads the event and checks every undo precondition: it
// must be a status change, young enough, not already compensated, and still
// the record's latest status change (a later transition makes it final).
func (s *undoServiceImpl) reversibleEvent(ctx context.Context, eventID string) (*entity.AuditEvent, error) {
	event, err := s.auditRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %s", workflow.ErrNotFound, eventID)
	}

	if !event.IsStatusChange() {
		return nil, fmt.Errorf("%w: event %s is not a status change", workflow.ErrNotReversible, eventID)
	}

	if s.now().After(event.CreatedAt.Add(s.grace)) {
		return nil, fmt.Errorf("%w: grace window expired for event %s", workflow.ErrNotReversible, eventID)
	}

	reversal, err := s.auditRepo.FindReversal(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if reversal != nil {
		return nil, fmt.Errorf("%w: event %s already compensated by %s", workflow.ErrNotReversible, eventID, reversal.ID)
	}

	latest, err := s.auditRepo.LatestStatusChange(ctx, event.RecordID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.ID != event.ID {
		return nil, fmt.Errorf("%w: event %s is no longer the latest status change", workflow.ErrNotReversible, eventID)
	}

	return event, nil
}
