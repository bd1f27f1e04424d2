package service

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
)

// RecordService manages record lifecycle and the audited non-status
// mutations: field edits, notes, tag changes, extraction results. Status
// itself moves only through the TransitionService.
type RecordService interface {
	Create(ctx context.Context, kind entity.Kind, actor entity.Actor, payload entity.Payload, tags []string) (*entity.Record, error)
	Get(ctx context.Context, id string) (*entity.Record, error)
	List(ctx context.Context, filter port.RecordFilter) ([]*entity.Record, error)
	EditFields(ctx context.Context, id string, actor entity.Actor, changes entity.Payload) (*entity.AuditEvent, error)
	AddNote(ctx context.Context, id string, actor entity.Actor, note string) (*entity.AuditEvent, error)
	SetTags(ctx context.Context, id string, actor entity.Actor, tags []string) (*entity.AuditEvent, error)
	RecordExtraction(ctx context.Context, id string, actor entity.Actor, extracted entity.Payload) (*entity.AuditEvent, error)

	// Delete removes a record. Deletion sits outside the workflow pipeline,
	// is restricted to the admin role, and is itself audited.
	Delete(ctx context.Context, id string, actor entity.Actor) error
}

type recordServiceImpl struct {
	recordRepo port.RecordRepository
	auditRepo  port.AuditRepository
	txManager  port.TransactionManager
	logger     Logger
	now        func() time.Time
}

// RecordOption configures the record service
type RecordOption func(*recordServiceImpl)

// WithRecordClock overrides the service clock
func WithRecordClock(now func() time.Time) RecordOption {
	return func(s *recordServiceImpl) {
		s.now = now
	}
}

// NewRecordService creates a new RecordService
func NewRecordService(
	recordRepo port.RecordRepository,
	auditRepo port.AuditRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...RecordOption,
) RecordService {
	s := &recordServiceImpl{
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

// Create implements RecordService
func (s *recordServiceImpl) Create(ctx context.Context, kind entity.Kind, actor entity.Actor, payload entity.Payload, tags []string) (*entity.Record, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown record kind %q", workflow.ErrIllegalTransition, kind)
	}
	if payload == nil {
		payload = entity.Payload{}
	}

	now := s.now()
	record := &entity.Record{
		ID:          uuid.NewString(),
		Kind:        kind,
		SubmitterID: actor.ID,
		Payload:     payload,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	wf := &entity.Workflow{
		RecordID:  record.ID,
		Status:    workflow.TableFor(kind).Initial().String(),
		UpdatedAt: now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.recordRepo.Create(txCtx, record, wf); err != nil {
			return err
		}
		return s.auditRepo.Append(txCtx, &entity.AuditEvent{
			ID:        uuid.NewString(),
			RecordID:  record.ID,
			ActorID:   actor.ID,
			Type:      entity.EventRecordCreated,
			ToStatus:  wf.Status,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	record.Workflow = wf
	s.logger.Info("Record created",
		"record_id", record.ID,
		"kind", kind.String(),
		"submitter_id", actor.ID,
	)
	return record, nil
}

// Get implements RecordService
func (s *recordServiceImpl) Get(ctx context.Context, id string) (*entity.Record, error) {
	record, err := s.recordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: record %s", workflow.ErrNotFound, id)
	}
	return record, nil
}

// List implements RecordService
func (s *recordServiceImpl) List(ctx context.Context, filter port.RecordFilter) ([]*entity.Record, error) {
	return s.recordRepo.ListByFilter(ctx, filter)
}

// EditFields implements RecordService. Edits never touch status.
func (s *recordServiceImpl) EditFields(ctx context.Context, id string, actor entity.Actor, changes entity.Payload) (*entity.AuditEvent, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: no field changes supplied", workflow.ErrMissingRequiredField)
	}
	return s.editPayload(ctx, id, actor, changes, entity.EventFieldEdited)
}

// RecordExtraction implements RecordService. The extraction itself happens
// outside the engine; this only applies the extracted values and audits them.
func (s *recordServiceImpl) RecordExtraction(ctx context.Context, id string, actor entity.Actor, extracted entity.Payload) (*entity.AuditEvent, error) {
	if len(extracted) == 0 {
		return nil, fmt.Errorf("%w: no extracted fields supplied", workflow.ErrMissingRequiredField)
	}
	return s.editPayload(ctx, id, actor, extracted, entity.EventExtractionCompleted)
}

func (s *recordServiceImpl) editPayload(ctx context.Context, id string, actor entity.Actor, changes entity.Payload, eventType entity.EventType) (*entity.AuditEvent, error) {
	var event *entity.AuditEvent

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		record, err := s.recordRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: record %s", workflow.ErrNotFound, id)
		}

		now := s.now()
		diff := entity.Diff{}
		payload := entity.Payload{}
		for k, v := range record.Payload {
			payload[k] = v
		}
		for field, value := range changes {
			before := payload[field]
			if reflect.DeepEqual(before, value) {
				continue
			}
			diff[field] = entity.FieldChange{From: before, To: value}
			payload[field] = value
		}
		if len(diff) == 0 {
			return fmt.Errorf("%w: no field changed", workflow.ErrMissingRequiredField)
		}

		if err := s.recordRepo.UpdatePayload(txCtx, id, payload, now); err != nil {
			return err
		}

		event = &entity.AuditEvent{
			ID:        uuid.NewString(),
			RecordID:  id,
			ActorID:   actor.ID,
			Type:      eventType,
			Diff:      diff,
			CreatedAt: now,
		}
		return s.auditRepo.Append(txCtx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Record fields updated",
		"record_id", id,
		"event_type", string(eventType),
		"fields", len(event.Diff),
	)
	return event, nil
}

// AddNote implements RecordService
func (s *recordServiceImpl) AddNote(ctx context.Context, id string, actor entity.Actor, note string) (*entity.AuditEvent, error) {
	if note == "" {
		return nil, fmt.Errorf("%w: note text", workflow.ErrMissingRequiredField)
	}

	record, err := s.recordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: record %s", workflow.ErrNotFound, id)
	}

	event := &entity.AuditEvent{
		ID:        uuid.NewString(),
		RecordID:  id,
		ActorID:   actor.ID,
		Type:      entity.EventNoteAdded,
		Note:      note,
		CreatedAt: s.now(),
	}
	if err := s.auditRepo.Append(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// SetTags implements RecordService
func (s *recordServiceImpl) SetTags(ctx context.Context, id string, actor entity.Actor, tags []string) (*entity.AuditEvent, error) {
	var event *entity.AuditEvent

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		record, err := s.recordRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: record %s", workflow.ErrNotFound, id)
		}

		now := s.now()
		if err := s.recordRepo.UpdateTags(txCtx, id, tags, now); err != nil {
			return err
		}

		event = &entity.AuditEvent{
			ID:       uuid.NewString(),
			RecordID: id,
			ActorID:  actor.ID,
			Type:     entity.EventTagChanged,
			Diff: entity.Diff{
				"tags": {From: record.SortedTags(), To: tags},
			},
			CreatedAt: now,
		}
		return s.auditRepo.Append(txCtx, event)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Delete implements RecordService
func (s *recordServiceImpl) Delete(ctx context.Context, id string, actor entity.Actor) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: role %s may not delete records", workflow.ErrUnauthorized, actor.Role)
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		record, err := s.recordRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: record %s", workflow.ErrNotFound, id)
		}

		if err := s.auditRepo.Append(txCtx, &entity.AuditEvent{
			ID:         uuid.NewString(),
			RecordID:   id,
			ActorID:    actor.ID,
			Type:       entity.EventRecordDeleted,
			FromStatus: record.Workflow.Status,
			CreatedAt:  s.now(),
		}); err != nil {
			return err
		}
		return s.recordRepo.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Warn("Record deleted", "record_id", id, "actor_id", actor.ID)
	return nil
}
