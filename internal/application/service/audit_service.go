package service

import (
	"context"
	"fmt"
	"time"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
)

// AuditService answers audit trail queries
type AuditService interface {
	// History returns the record's full event stream ascending by created_at
	History(ctx context.Context, recordID string) ([]*entity.AuditEvent, error)

	// StatusAt reconstructs the record's status as of the given instant by
	// scanning for the last status change at or before it. Returns "" when
	// the record had no status yet at that time.
	StatusAt(ctx context.Context, recordID string, at time.Time) (string, error)
}

type auditServiceImpl struct {
	auditRepo port.AuditRepository
	logger    Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo port.AuditRepository, logger Logger) AuditService {
	return &auditServiceImpl{auditRepo: auditRepo, logger: logger}
}

// History implements AuditService
func (s *auditServiceImpl) History(ctx context.Context, recordID string) ([]*entity.AuditEvent, error) {
	events, err := s.auditRepo.GetByRecordID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %v", workflow.ErrStorageFailure, err)
	}
	return events, nil
}

// StatusAt implements AuditService
func (s *auditServiceImpl) StatusAt(ctx context.Context, recordID string, at time.Time) (string, error) {
	events, err := s.History(ctx, recordID)
	if err != nil {
		return "", err
	}

	status := ""
	for _, evt := range events {
		if evt.CreatedAt.After(at) {
			break
		}
		switch evt.Type {
		case entity.EventStatusChanged:
			status = evt.ToStatus
		case entity.EventRecordCreated:
			status = evt.ToStatus
		}
	}
	return status, nil
}
