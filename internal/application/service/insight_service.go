package service

import (
	"context"
	"time"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/insight"
)

// InsightService computes advisory duplicate and anomaly annotations over a
// queried record set. Results are recomputed on every call from a read-only
// snapshot and never influence transitions.
type InsightService interface {
	Duplicates(ctx context.Context, filter port.RecordFilter) ([]insight.DuplicateGroup, error)
	Anomalies(ctx context.Context, filter port.RecordFilter) ([]insight.AnomalyFlag, error)
}

type insightServiceImpl struct {
	recordRepo port.RecordRepository
	logger     Logger
	now        func() time.Time
}

// InsightOption configures the insight service
type InsightOption func(*insightServiceImpl)

// WithInsightClock overrides the service clock
func WithInsightClock(now func() time.Time) InsightOption {
	return func(s *insightServiceImpl) {
		s.now = now
	}
}

// NewInsightService creates a new InsightService
func NewInsightService(recordRepo port.RecordRepository, logger Logger, opts ...InsightOption) InsightService {
	s := &insightServiceImpl{
		recordRepo: recordRepo,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Duplicates implements InsightService
func (s *insightServiceImpl) Duplicates(ctx context.Context, filter port.RecordFilter) ([]insight.DuplicateGroup, error) {
	records, err := s.recordRepo.ListByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	groups := insight.Duplicates(records)
	s.logger.Info("Duplicate scan finished",
		"records", len(records),
		"groups", len(groups),
	)
	return groups, nil
}

// Anomalies implements InsightService
func (s *insightServiceImpl) Anomalies(ctx context.Context, filter port.RecordFilter) ([]insight.AnomalyFlag, error) {
	records, err := s.recordRepo.ListByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	flags := insight.Anomalies(records, s.now())
	s.logger.Info("Anomaly scan finished",
		"records", len(records),
		"flags", len(flags),
	)
	return flags, nil
}
