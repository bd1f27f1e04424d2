package port

import (
	"context"
	"time"

	"github.com/opsledger/workflow-engine/internal/domain/entity"
)

// RecordFilter narrows record listings. Zero values mean "any".
type RecordFilter struct {
	Kind   entity.Kind
	Status string
	Tag    string
	Limit  int
	Offset int
}

// RecordRepository defines persistence operations for Record + Workflow.
// The record store is the single source of truth for status.
type RecordRepository interface {
	Create(ctx context.Context, record *entity.Record, wf *entity.Workflow) error
	GetByID(ctx context.Context, id string) (*entity.Record, error)
	ListByFilter(ctx context.Context, filter RecordFilter) ([]*entity.Record, error)

	// CompareAndSwapStatus persists the new workflow values only if the
	// record's current status still equals expectedStatus. A stale status
	// surfaces as workflow.ErrStaleState.
	CompareAndSwapStatus(ctx context.Context, id string, expectedStatus string, wf *entity.Workflow) error

	UpdatePayload(ctx context.Context, id string, payload entity.Payload, updatedAt time.Time) error
	UpdateTags(ctx context.Context, id string, tags []string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// AuditRepository defines the append-only audit event store. Events are
// immutable once written; there are no update or delete operations.
type AuditRepository interface {
	Append(ctx context.Context, event *entity.AuditEvent) error
	GetByID(ctx context.Context, id string) (*entity.AuditEvent, error)

	// GetByRecordID returns the record's events ascending by created_at.
	GetByRecordID(ctx context.Context, recordID string) ([]*entity.AuditEvent, error)

	// LatestStatusChange returns the record's most recent status_changed
	// event, or nil when none exists.
	LatestStatusChange(ctx context.Context, recordID string) (*entity.AuditEvent, error)

	// FindReversal returns the event that compensated eventID, or nil.
	FindReversal(ctx context.Context, eventID string) (*entity.AuditEvent, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
