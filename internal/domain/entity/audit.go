package entity

import "time"

// EventType classifies an audit event
type EventType string

const (
	EventStatusChanged       EventType = "status_changed"
	EventFieldEdited         EventType = "field_edited"
	EventNoteAdded           EventType = "note_added"
	EventTagChanged          EventType = "tag_changed"
	EventExtractionCompleted EventType = "extraction_completed"
	EventRecordCreated       EventType = "record_created"
	EventRecordDeleted       EventType = "record_deleted"
)

// FieldChange captures a single field's before/after values
type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// Diff maps field names to their before/after values
type Diff map[string]FieldChange

// AuditEvent is one immutable entry in a record's audit trail. Events are
// append-only: corrections are modeled as new events, never edits, and the
// status_changed stream fully reconstructs a record's status history.
type AuditEvent struct {
	ID              string    `json:"id"`
	RecordID        string    `json:"record_id"`
	ActorID         string    `json:"actor_id"`
	Type            EventType `json:"event_type"`
	FromStatus      string    `json:"from_status,omitempty"`
	ToStatus        string    `json:"to_status,omitempty"`
	Diff            Diff      `json:"payload_diff,omitempty"`
	Note            string    `json:"note,omitempty"`
	ReversesEventID string    `json:"reverses_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsStatusChange returns true for events that moved the record between statuses
func (e *AuditEvent) IsStatusChange() bool {
	return e.Type == EventStatusChanged
}

// IsCompensation returns true if the event reverses an earlier event
func (e *AuditEvent) IsCompensation() bool {
	return e.ReversesEventID != ""
}
