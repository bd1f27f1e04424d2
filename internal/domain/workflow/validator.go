package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/opsledger/workflow-engine/internal/domain/entity"
)

// Fields carries the side values a transition may require
type Fields struct {
	RejectionReason string
	PaidDate        *time.Time
	AssigneeID      string
}

// Plan is the validated outcome of a transition request: the new workflow
// values to persist and the prepared audit event. Persisting both must be
// atomic from the caller's point of view.
type Plan struct {
	Workflow entity.Workflow
	Event    entity.AuditEvent
}

// Validate checks one transition request against the record kind's table.
//
// It denies with ErrIllegalTransition when the (current, requested) edge is
// absent, ErrUnauthorized when the actor's role or ownership fails the edge's
// predicate, and ErrMissingRequiredField when a required side field is empty.
// PaidDate defaults to now when the paid edge does not receive one. The
// validator never blocks; re-checking the current status at commit time is
// the caller's responsibility.
func Validate(rec *entity.Record, wf *entity.Workflow, to Status, actor entity.Actor, fields Fields, now time.Time) (*Plan, error) {
	table := TableFor(rec.Kind)
	from := Status(wf.Status)

	if !table.Contains(to) {
		return nil, fmt.Errorf("%w: %s is not a %s status", ErrIllegalTransition, to, rec.Kind)
	}

	rule, ok := table.Rule(from, to)
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s for kind %s", ErrIllegalTransition, from, to, rec.Kind)
	}

	if !actor.IsAdmin() {
		if !rule.roles[actor.Role] {
			return nil, fmt.Errorf("%w: role %s may not move %s -> %s", ErrUnauthorized, actor.Role, from, to)
		}
		if rule.denySelfApproval && actor.Owns(rec) {
			return nil, fmt.Errorf("%w: submitter %s may not approve their own record", ErrUnauthorized, actor.ID)
		}
	}

	next := entity.Workflow{
		RecordID:        rec.ID,
		Status:          to.String(),
		AssigneeID:      wf.AssigneeID,
		RejectionReason: wf.RejectionReason,
		PaidDate:        wf.PaidDate,
		UpdatedAt:       now,
	}
	if fields.AssigneeID != "" {
		next.AssigneeID = fields.AssigneeID
	}

	diff := entity.Diff{}

	for _, field := range rule.requiredFields {
		switch field {
		case FieldRejectionReason:
			reason := strings.TrimSpace(fields.RejectionReason)
			if reason == "" {
				return nil, fmt.Errorf("%w: %s requires a rejection reason", ErrMissingRequiredField, to)
			}
			next.RejectionReason = reason
			diff[FieldRejectionReason] = entity.FieldChange{From: wf.RejectionReason, To: reason}
		case FieldPaidDate:
			paid := fields.PaidDate
			if paid == nil {
				d := now
				paid = &d
			}
			next.PaidDate = paid
			diff[FieldPaidDate] = entity.FieldChange{From: wf.PaidDate, To: paid.Format("2006-01-02")}
		}
	}

	if rule.clearsRejection && next.RejectionReason != "" {
		diff[FieldRejectionReason] = entity.FieldChange{From: next.RejectionReason, To: ""}
		next.RejectionReason = ""
	}

	event := entity.AuditEvent{
		RecordID:   rec.ID,
		ActorID:    actor.ID,
		Type:       entity.EventStatusChanged,
		FromStatus: from.String(),
		ToStatus:   to.String(),
		CreatedAt:  now,
	}
	if len(diff) > 0 {
		event.Diff = diff
	}

	return &Plan{Workflow: next, Event: event}, nil
}
