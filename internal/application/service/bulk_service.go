package service

import (
	"context"
	"errors"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
)

// BulkService applies one transition to many records with per-item outcomes
type BulkService interface {
	// Apply iterates the records sequentially. One record's failure never
	// aborts the batch; records already in the target status are skipped as
	// successes so retries after a partial failure stay safe. Cancellation
	// stops between items without rolling back applied ones; the ids never
	// reached are reported as unprocessed.
	Apply(ctx context.Context, recordIDs []string, to workflow.Status, actor entity.Actor, fields workflow.Fields) *entity.BulkResult
}

type bulkServiceImpl struct {
	recordRepo  port.RecordRepository
	transitions TransitionService
	logger      Logger
}

// NewBulkService creates a new BulkService
func NewBulkService(recordRepo port.RecordRepository, transitions TransitionService, logger Logger) BulkService {
	return &bulkServiceImpl{
		recordRepo:  recordRepo,
		transitions: transitions,
		logger:      logger,
	}
}

// Apply implements BulkService
func (s *bulkServiceImpl) Apply(ctx context.Context, recordIDs []string, to workflow.Status, actor entity.Actor, fields workflow.Fields) *entity.BulkResult {
	result := &entity.BulkResult{}

	for i, id := range recordIDs {
		if ctx.Err() != nil {
			result.Unprocessed = append(result.Unprocessed, recordIDs[i:]...)
			s.logger.Warn("Bulk transition cancelled",
				"attempted", result.Attempted(),
				"unprocessed", len(result.Unprocessed),
			)
			break
		}

		if s.apply(ctx, id, to, actor, fields, result) {
			result.SuccessCount++
		}
	}

	s.logger.Info("Bulk transition finished",
		"to", to.String(),
		"requested", len(recordIDs),
		"succeeded", result.SuccessCount,
		"failed", len(result.Failures),
		"skipped", len(result.Skipped),
	)
	return result
}

func (s *bulkServiceImpl) apply(ctx context.Context, id string, to workflow.Status, actor entity.Actor, fields workflow.Fields, result *entity.BulkResult) bool {
	record, err := s.recordRepo.GetByID(ctx, id)
	if err != nil {
		result.Failures = append(result.Failures, entity.BulkFailure{
			RecordID: id,
			Kind:     workflow.ErrorKind(err),
			Reason:   err.Error(),
		})
		return false
	}
	if record == nil {
		result.Failures = append(result.Failures, entity.BulkFailure{
			RecordID: id,
			Kind:     workflow.ErrorKind(workflow.ErrNotFound),
			Reason:   "record not found",
		})
		return false
	}

	// Already in the target state: a no-op success, not a failure.
	if record.Workflow != nil && record.Workflow.Status == to.String() {
		result.Skipped = append(result.Skipped, id)
		return true
	}

	if _, err := s.transitions.Transition(ctx, id, to, actor, fields); err != nil {
		// Lost a race with a concurrent transition into the target state.
		if errors.Is(err, workflow.ErrAlreadyInState) {
			result.Skipped = append(result.Skipped, id)
			return true
		}
		result.Failures = append(result.Failures, entity.BulkFailure{
			RecordID: id,
			Kind:     workflow.ErrorKind(err),
			Reason:   err.Error(),
		})
		return false
	}
	return true
}
