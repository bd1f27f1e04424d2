package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
	"github.com/opsledger/workflow-engine/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements port.AuditRepository on sqlite. The table is
// append-only; the repository exposes no update or delete.
type AuditRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlite.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes a new audit event
func (r *AuditRepository) Append(ctx context.Context, event *entity.AuditEvent) error {
	var diff interface{}
	if len(event.Diff) > 0 {
		raw, err := json.Marshal(event.Diff)
		if err != nil {
			return fmt.Errorf("marshal diff: %w", err)
		}
		diff = string(raw)
	}

	query := `
		INSERT INTO audit_events
			(id, record_id, actor_id, event_type, from_status, to_status, payload_diff, note, reverses_event_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		event.ID, event.RecordID, event.ActorID, string(event.Type),
		nullString(event.FromStatus), nullString(event.ToStatus),
		diff, nullString(event.Note), nullString(event.ReversesEventID),
		event.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append audit event",
			zap.String("record_id", event.RecordID),
			zap.Error(err))
		return fmt.Errorf("%w: append audit event: %v", workflow.ErrStorageFailure, err)
	}
	return nil
}

const auditColumns = `
	id, record_id, actor_id, event_type, from_status, to_status, payload_diff, note, reverses_event_id, created_at
`

// GetByID retrieves a single audit event, or nil when absent
func (r *AuditRepository) GetByID(ctx context.Context, id string) (*entity.AuditEvent, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_events WHERE id = ?`
	return r.queryOne(ctx, query, id)
}

// GetByRecordID retrieves a record's full audit trail, oldest first
func (r *AuditRepository) GetByRecordID(ctx context.Context, recordID string) ([]*entity.AuditEvent, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_events
		WHERE record_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, recordID)
	if err != nil {
		r.logger.Error("Failed to list audit events", zap.String("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("%w: list audit events: %v", workflow.ErrStorageFailure, err)
	}
	defer rows.Close()

	var events []*entity.AuditEvent
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan audit event: %v", workflow.ErrStorageFailure, err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// LatestStatusChange retrieves the record's most recent status_changed event
func (r *AuditRepository) LatestStatusChange(ctx context.Context, recordID string) (*entity.AuditEvent, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_events
		WHERE record_id = ? AND event_type = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.queryOne(ctx, query, recordID, string(entity.EventStatusChanged))
}

// FindReversal retrieves the event that compensated eventID, if any
func (r *AuditRepository) FindReversal(ctx context.Context, eventID string) (*entity.AuditEvent, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_events WHERE reverses_event_id = ? LIMIT 1`
	return r.queryOne(ctx, query, eventID)
}

func (r *AuditRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*entity.AuditEvent, error) {
	event, err := scanAuditEvent(r.db.Executor(ctx).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to query audit event", zap.Error(err))
		return nil, fmt.Errorf("%w: query audit event: %v", workflow.ErrStorageFailure, err)
	}
	return event, nil
}

func scanAuditEvent(row rowScanner) (*entity.AuditEvent, error) {
	var (
		event     entity.AuditEvent
		eventType string
		from      sql.NullString
		to        sql.NullString
		diff      sql.NullString
		note      sql.NullString
		reverses  sql.NullString
	)

	err := row.Scan(
		&event.ID, &event.RecordID, &event.ActorID, &eventType,
		&from, &to, &diff, &note, &reverses, &event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Type = entity.EventType(eventType)
	event.FromStatus = from.String
	event.ToStatus = to.String
	event.Note = note.String
	event.ReversesEventID = reverses.String
	if diff.Valid && diff.String != "" {
		if err := json.Unmarshal([]byte(diff.String), &event.Diff); err != nil {
			return nil, fmt.Errorf("unmarshal diff: %w", err)
		}
	}

	return &event, nil
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
