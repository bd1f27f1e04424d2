package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/application/service"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/insight"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type stubIdentity struct {
	actors map[string]entity.Actor
}

func (s *stubIdentity) Resolve(_ context.Context, actorID string) (entity.Actor, error) {
	actor, ok := s.actors[actorID]
	if !ok {
		return entity.Actor{}, fmt.Errorf("%w: unknown actor", workflow.ErrUnauthorized)
	}
	return actor, nil
}

type stubRecords struct {
	service.RecordService
	createFn func(ctx context.Context, kind entity.Kind, actor entity.Actor, payload entity.Payload, tags []string) (*entity.Record, error)
	getFn    func(ctx context.Context, id string) (*entity.Record, error)
	deleteFn func(ctx context.Context, id string, actor entity.Actor) error
}

func (s *stubRecords) Create(ctx context.Context, kind entity.Kind, actor entity.Actor, payload entity.Payload, tags []string) (*entity.Record, error) {
	return s.createFn(ctx, kind, actor, payload, tags)
}

func (s *stubRecords) Get(ctx context.Context, id string) (*entity.Record, error) {
	return s.getFn(ctx, id)
}

func (s *stubRecords) Delete(ctx context.Context, id string, actor entity.Actor) error {
	return s.deleteFn(ctx, id, actor)
}

type stubTransitions struct {
	transitionFn func(ctx context.Context, recordID string, to workflow.Status, actor entity.Actor, fields workflow.Fields) (*entity.AuditEvent, error)
}

func (s *stubTransitions) Transition(ctx context.Context, recordID string, to workflow.Status, actor entity.Actor, fields workflow.Fields) (*entity.AuditEvent, error) {
	return s.transitionFn(ctx, recordID, to, actor, fields)
}

func (s *stubTransitions) Compensate(context.Context, *entity.AuditEvent, entity.Actor) (*entity.AuditEvent, error) {
	return nil, nil
}

type stubBulk struct {
	applyFn func(ctx context.Context, recordIDs []string, to workflow.Status, actor entity.Actor, fields workflow.Fields) *entity.BulkResult
}

func (s *stubBulk) Apply(ctx context.Context, recordIDs []string, to workflow.Status, actor entity.Actor, fields workflow.Fields) *entity.BulkResult {
	return s.applyFn(ctx, recordIDs, to, actor, fields)
}

type stubUndo struct {
	offerFn func(ctx context.Context, eventID string) (*service.CompensatingAction, error)
	applyFn func(ctx context.Context, eventID string, actor entity.Actor) (*entity.AuditEvent, error)
}

func (s *stubUndo) OfferUndo(ctx context.Context, eventID string) (*service.CompensatingAction, error) {
	return s.offerFn(ctx, eventID)
}

func (s *stubUndo) ApplyUndo(ctx context.Context, eventID string, actor entity.Actor) (*entity.AuditEvent, error) {
	return s.applyFn(ctx, eventID, actor)
}

type stubAudit struct {
	historyFn func(ctx context.Context, recordID string) ([]*entity.AuditEvent, error)
}

func (s *stubAudit) History(ctx context.Context, recordID string) ([]*entity.AuditEvent, error) {
	return s.historyFn(ctx, recordID)
}

func (s *stubAudit) StatusAt(context.Context, string, time.Time) (string, error) {
	return "paid", nil
}

type stubInsights struct{}

func (stubInsights) Duplicates(context.Context, port.RecordFilter) ([]insight.DuplicateGroup, error) {
	return []insight.DuplicateGroup{{Key: "acme|120.5", RecordIDs: []string{"a", "b"}}}, nil
}

func (stubInsights) Anomalies(context.Context, port.RecordFilter) ([]insight.AnomalyFlag, error) {
	return nil, nil
}

func newTestServer(t *testing.T, services Services) *Server {
	t.Helper()
	identity := &stubIdentity{actors: map[string]entity.Actor{
		"mgr-1":   {ID: "mgr-1", Role: entity.RoleManager},
		"admin-1": {ID: "admin-1", Role: entity.RoleAdmin},
	}}
	return NewServer(DefaultServerConfig(), services, identity, nopLogger{})
}

func doRequest(server *Server, method, path, actorID, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if actorID != "" {
		req.Header.Set("X-Actor-Id", actorID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t, Services{})

	rec := doRequest(server, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestActorMiddleware_RejectsMissingAndUnknownActors(t *testing.T) {
	server := newTestServer(t, Services{
		Audit: &stubAudit{historyFn: func(context.Context, string) ([]*entity.AuditEvent, error) {
			return nil, nil
		}},
	})

	rec := doRequest(server, http.MethodGet, "/api/records/r-1/history", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(server, http.MethodGet, "/api/records/r-1/history", "nobody", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(server, http.MethodGet, "/api/records/r-1/history", "mgr-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTransition_Success(t *testing.T) {
	var gotActor entity.Actor
	var gotFields workflow.Fields
	server := newTestServer(t, Services{
		Transitions: &stubTransitions{
			transitionFn: func(_ context.Context, recordID string, to workflow.Status, actor entity.Actor, fields workflow.Fields) (*entity.AuditEvent, error) {
				gotActor = actor
				gotFields = fields
				return &entity.AuditEvent{
					ID:         "ev-1",
					RecordID:   recordID,
					Type:       entity.EventStatusChanged,
					FromStatus: "pending_manager",
					ToStatus:   string(to),
				}, nil
			},
		},
	})

	body := `{"to":"rejected","rejection_reason":"missing receipt"}`
	rec := doRequest(server, http.MethodPost, "/api/records/r-1/transition", "mgr-1", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
	assert.Equal(t, "mgr-1", gotActor.ID)
	assert.Equal(t, "missing receipt", gotFields.RejectionReason)
}

func TestTransition_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"not found", workflow.ErrNotFound, http.StatusNotFound, "not_found"},
		{"unauthorized", fmt.Errorf("%w: role manager", workflow.ErrUnauthorized), http.StatusForbidden, "unauthorized"},
		{"illegal edge", workflow.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
		{"missing field", workflow.ErrMissingRequiredField, http.StatusUnprocessableEntity, "missing_required_field"},
		{"stale state", workflow.ErrStaleState, http.StatusConflict, "stale_state"},
		{"storage failure", workflow.ErrStorageFailure, http.StatusInternalServerError, "storage_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, Services{
				Transitions: &stubTransitions{
					transitionFn: func(context.Context, string, workflow.Status, entity.Actor, workflow.Fields) (*entity.AuditEvent, error) {
						return nil, tt.err
					},
				},
			})

			rec := doRequest(server, http.MethodPost, "/api/records/r-1/transition", "mgr-1", `{"to":"paid"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantKind, resp.ErrorKind)
		})
	}
}

func TestTransition_AlreadyInStateIsSuccess(t *testing.T) {
	server := newTestServer(t, Services{
		Transitions: &stubTransitions{
			transitionFn: func(context.Context, string, workflow.Status, entity.Actor, workflow.Fields) (*entity.AuditEvent, error) {
				return nil, workflow.ErrAlreadyInState
			},
		},
	})

	rec := doRequest(server, http.MethodPost, "/api/records/r-1/transition", "mgr-1", `{"to":"paid"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "already_in_state", resp.ErrorKind)
}

func TestCreateRecord(t *testing.T) {
	server := newTestServer(t, Services{
		Records: &stubRecords{
			createFn: func(_ context.Context, kind entity.Kind, actor entity.Actor, payload entity.Payload, tags []string) (*entity.Record, error) {
				return &entity.Record{ID: "r-1", Kind: kind, SubmitterID: actor.ID, Payload: payload, Tags: tags}, nil
			},
		},
	})

	body := `{"kind":"invoice","payload":{"beneficiary":"Acme","amount":"120.50"},"tags":["q3"]}`
	rec := doRequest(server, http.MethodPost, "/api/records", "mgr-1", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestCreateRecord_InvalidBody(t *testing.T) {
	server := newTestServer(t, Services{})

	rec := doRequest(server, http.MethodPost, "/api/records", "mgr-1", `{"payload":{}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkTransition_ReturnsPerRecordOutcomes(t *testing.T) {
	server := newTestServer(t, Services{
		Bulk: &stubBulk{
			applyFn: func(_ context.Context, recordIDs []string, to workflow.Status, _ entity.Actor, _ workflow.Fields) *entity.BulkResult {
				return &entity.BulkResult{
					SuccessCount: 2,
					Failures: []entity.BulkFailure{
						{RecordID: recordIDs[2], Kind: "unauthorized", Reason: "role manager may not fire this edge"},
					},
				}
			},
		},
	})

	body := `{"record_ids":["a","b","c"],"to":"approved_by_manager"}`
	rec := doRequest(server, http.MethodPost, "/api/transitions", "mgr-1", body)

	// Partial failure is still a 200; the result carries the failures
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result entity.BulkResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 2, result.SuccessCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "c", result.Failures[0].RecordID)
}

func TestOfferUndo(t *testing.T) {
	expires := time.Now().Add(3 * time.Second)
	server := newTestServer(t, Services{
		Undo: &stubUndo{
			offerFn: func(_ context.Context, eventID string) (*service.CompensatingAction, error) {
				return &service.CompensatingAction{
					EventID:    eventID,
					RecordID:   "r-1",
					FromStatus: "paid",
					ToStatus:   "ready_for_payment",
					ExpiresAt:  expires,
				}, nil
			},
		},
	})

	rec := doRequest(server, http.MethodGet, "/api/events/ev-1/undo", "mgr-1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestApplyUndo_ExpiredWindow(t *testing.T) {
	server := newTestServer(t, Services{
		Undo: &stubUndo{
			applyFn: func(context.Context, string, entity.Actor) (*entity.AuditEvent, error) {
				return nil, fmt.Errorf("%w: grace window elapsed", workflow.ErrNotReversible)
			},
		},
	})

	rec := doRequest(server, http.MethodPost, "/api/events/ev-1/undo", "admin-1", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_reversible", decodeResponse(t, rec).ErrorKind)
}

func TestDuplicates(t *testing.T) {
	server := newTestServer(t, Services{Insights: stubInsights{}})

	rec := doRequest(server, http.MethodGet, "/api/insights/duplicates?kind=invoice", "mgr-1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}
