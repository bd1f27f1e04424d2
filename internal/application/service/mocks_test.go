package service

import (
	"context"
	"fmt"
	"time"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
)

// Mock implementations shared across service tests

type mockRecordRepo struct {
	records   map[string]*entity.Record
	getErr    error
	casErr    error
	deleted   []string
	casCalled int
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: make(map[string]*entity.Record)}
}

func (m *mockRecordRepo) add(id string, kind entity.Kind, submitter string, status workflow.Status) *entity.Record {
	rec := &entity.Record{
		ID:          id,
		Kind:        kind,
		SubmitterID: submitter,
		Payload:     entity.Payload{},
		CreatedAt:   time.Now(),
		Workflow: &entity.Workflow{
			RecordID: id,
			Status:   status.String(),
		},
	}
	m.records[id] = rec
	return rec
}

func (m *mockRecordRepo) Create(ctx context.Context, record *entity.Record, wf *entity.Workflow) error {
	record.Workflow = wf
	m.records[record.ID] = record
	return nil
}

func (m *mockRecordRepo) GetByID(ctx context.Context, id string) (*entity.Record, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.records[id], nil
}

func (m *mockRecordRepo) ListByFilter(ctx context.Context, filter port.RecordFilter) ([]*entity.Record, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []*entity.Record
	for _, rec := range m.records {
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && rec.Workflow.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *mockRecordRepo) CompareAndSwapStatus(ctx context.Context, id string, expectedStatus string, wf *entity.Workflow) error {
	m.casCalled++
	if m.casErr != nil {
		return m.casErr
	}
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: record %s", workflow.ErrNotFound, id)
	}
	if rec.Workflow.Status != expectedStatus {
		return fmt.Errorf("%w: expected %s, have %s", workflow.ErrStaleState, expectedStatus, rec.Workflow.Status)
	}
	rec.Workflow = wf
	return nil
}

func (m *mockRecordRepo) UpdatePayload(ctx context.Context, id string, payload entity.Payload, updatedAt time.Time) error {
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: record %s", workflow.ErrNotFound, id)
	}
	rec.Payload = payload
	rec.UpdatedAt = updatedAt
	return nil
}

func (m *mockRecordRepo) UpdateTags(ctx context.Context, id string, tags []string, updatedAt time.Time) error {
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: record %s", workflow.ErrNotFound, id)
	}
	rec.Tags = tags
	rec.UpdatedAt = updatedAt
	return nil
}

func (m *mockRecordRepo) Delete(ctx context.Context, id string) error {
	delete(m.records, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockAuditRepo struct {
	events    []*entity.AuditEvent
	appendErr error
}

func (m *mockAuditRepo) Append(ctx context.Context, event *entity.AuditEvent) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

func (m *mockAuditRepo) GetByID(ctx context.Context, id string) (*entity.AuditEvent, error) {
	for _, evt := range m.events {
		if evt.ID == id {
			return evt, nil
		}
	}
	return nil, nil
}

func (m *mockAuditRepo) GetByRecordID(ctx context.Context, recordID string) ([]*entity.AuditEvent, error) {
	var out []*entity.AuditEvent
	for _, evt := range m.events {
		if evt.RecordID == recordID {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (m *mockAuditRepo) LatestStatusChange(ctx context.Context, recordID string) (*entity.AuditEvent, error) {
	var latest *entity.AuditEvent
	for _, evt := range m.events {
		if evt.RecordID == recordID && evt.IsStatusChange() {
			latest = evt
		}
	}
	return latest, nil
}

func (m *mockAuditRepo) FindReversal(ctx context.Context, eventID string) (*entity.AuditEvent, error) {
	for _, evt := range m.events {
		if evt.ReversesEventID == eventID {
			return evt, nil
		}
	}
	return nil, nil
}

func (m *mockAuditRepo) statusChanges(recordID string) []*entity.AuditEvent {
	var out []*entity.AuditEvent
	for _, evt := range m.events {
		if evt.RecordID == recordID && evt.IsStatusChange() {
			out = append(out, evt)
		}
	}
	return out
}

type mockTxManager struct {
	beginErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(ctx)
}

type mockSink struct {
	notified []port.Notification
}

func (m *mockSink) Notify(ctx context.Context, n port.Notification) {
	m.notified = append(m.notified, n)
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

var _ port.RecordRepository = (*mockRecordRepo)(nil)
var _ port.AuditRepository = (*mockAuditRepo)(nil)
var _ port.TransactionManager = (*mockTxManager)(nil)
