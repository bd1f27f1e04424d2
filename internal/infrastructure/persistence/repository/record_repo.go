package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
	"github.com/opsledger/workflow-engine/internal/infrastructure/persistence/sqlite"
)

// RecordRepository implements port.RecordRepository on sqlite
type RecordRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sqlite.DB, logger *zap.Logger) port.RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the record and its workflow sub-record. Callers wanting
// atomicity with an audit append wrap the call in WithTransaction.
func (r *RecordRepository) Create(ctx context.Context, record *entity.Record, wf *entity.Workflow) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	exec := r.db.Executor(ctx)

	query := `
		INSERT INTO records (id, kind, submitter_id, payload, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := exec.ExecContext(ctx, query,
		record.ID, record.Kind.String(), record.SubmitterID,
		string(payload), string(tags), record.CreatedAt, record.UpdatedAt,
	); err != nil {
		r.logger.Error("Failed to create record", zap.Error(err))
		return fmt.Errorf("%w: create record: %v", workflow.ErrStorageFailure, err)
	}

	query = `
		INSERT INTO workflows (record_id, status, assignee_id, rejection_reason, paid_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := exec.ExecContext(ctx, query,
		wf.RecordID, wf.Status,
		nullString(wf.AssigneeID), nullString(wf.RejectionReason), wf.PaidDate, wf.UpdatedAt,
	); err != nil {
		r.logger.Error("Failed to create workflow", zap.Error(err))
		return fmt.Errorf("%w: create workflow: %v", workflow.ErrStorageFailure, err)
	}

	return nil
}

const recordColumns = `
	r.id, r.kind, r.submitter_id, r.payload, r.tags, r.created_at, r.updated_at,
	w.status, w.assignee_id, w.rejection_reason, w.paid_date, w.updated_at
`

// GetByID retrieves a record with its workflow, or nil when absent
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*entity.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records r
		JOIN workflows w ON w.record_id = r.id
		WHERE r.id = ?
	`

	record, err := scanRecord(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get record", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get record: %v", workflow.ErrStorageFailure, err)
	}
	return record, nil
}

// ListByFilter retrieves records matching the filter, newest first
func (r *RecordRepository) ListByFilter(ctx context.Context, filter port.RecordFilter) ([]*entity.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records r
		JOIN workflows w ON w.record_id = r.id
		WHERE 1=1
	`
	var args []interface{}

	if filter.Kind != "" {
		query += " AND r.kind = ?"
		args = append(args, filter.Kind.String())
	}
	if filter.Status != "" {
		query += " AND w.status = ?"
		args = append(args, filter.Status)
	}
	if filter.Tag != "" {
		query += " AND EXISTS (SELECT 1 FROM json_each(r.tags) WHERE json_each.value = ?)"
		args = append(args, filter.Tag)
	}

	query += " ORDER BY r.created_at DESC, r.id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list records", zap.Error(err))
		return nil, fmt.Errorf("%w: list records: %v", workflow.ErrStorageFailure, err)
	}
	defer rows.Close()

	var records []*entity.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", workflow.ErrStorageFailure, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CompareAndSwapStatus persists the new workflow values only if the current
// status still matches. Zero rows affected means a concurrent transition won.
func (r *RecordRepository) CompareAndSwapStatus(ctx context.Context, id string, expectedStatus string, wf *entity.Workflow) error {
	query := `
		UPDATE workflows
		SET status = ?, assignee_id = ?, rejection_reason = ?, paid_date = ?, updated_at = ?
		WHERE record_id = ? AND status = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		wf.Status, nullString(wf.AssigneeID), nullString(wf.RejectionReason), wf.PaidDate, wf.UpdatedAt,
		id, expectedStatus,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow", zap.String("record_id", id), zap.Error(err))
		return fmt.Errorf("%w: update workflow: %v", workflow.ErrStorageFailure, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", workflow.ErrStorageFailure, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: record %s no longer in %s", workflow.ErrStaleState, id, expectedStatus)
	}
	return nil
}

// UpdatePayload replaces the record's payload document
func (r *RecordRepository) UpdatePayload(ctx context.Context, id string, payload entity.Payload, updatedAt time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return r.exec(ctx, `UPDATE records SET payload = ?, updated_at = ? WHERE id = ?`, string(raw), updatedAt, id)
}

// UpdateTags replaces the record's tag set
func (r *RecordRepository) UpdateTags(ctx context.Context, id string, tags []string, updatedAt time.Time) error {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	return r.exec(ctx, `UPDATE records SET tags = ?, updated_at = ? WHERE id = ?`, string(raw), updatedAt, id)
}

// Delete removes the record; the workflow row goes with it via FK cascade
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM records WHERE id = ?`, id)
}

func (r *RecordRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to execute statement", zap.Error(err))
		return fmt.Errorf("%w: %v", workflow.ErrStorageFailure, err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*entity.Record, error) {
	var (
		record      entity.Record
		kind        string
		payload     string
		tags        string
		wf          entity.Workflow
		assignee    sql.NullString
		reason      sql.NullString
		paidDate    sql.NullTime
		wfUpdatedAt time.Time
	)

	err := row.Scan(
		&record.ID, &kind, &record.SubmitterID, &payload, &tags,
		&record.CreatedAt, &record.UpdatedAt,
		&wf.Status, &assignee, &reason, &paidDate, &wfUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Kind = entity.Kind(kind)
	if err := json.Unmarshal([]byte(payload), &record.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &record.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}

	wf.RecordID = record.ID
	wf.AssigneeID = assignee.String
	wf.RejectionReason = reason.String
	wf.UpdatedAt = wfUpdatedAt
	if paidDate.Valid {
		wf.PaidDate = &paidDate.Time
	}
	record.Workflow = &wf

	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Verify interface compliance
var _ port.RecordRepository = (*RecordRepository)(nil)
