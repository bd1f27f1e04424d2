package entity

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the record type and selects the transition table that applies.
type Kind string

const (
	KindInvoice      Kind = "invoice"
	KindOtherInvoice Kind = "other_invoice"
	KindPayslip      Kind = "payslip"
	KindAssignment   Kind = "assignment"
)

var validKinds = map[Kind]bool{
	KindInvoice:      true,
	KindOtherInvoice: true,
	KindPayslip:      true,
	KindAssignment:   true,
}

// IsValid returns true if the kind is a known record kind
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// Payload holds the kind-specific business fields of a record. The workflow
// engine treats it as opaque except for the few fields named by transition
// rules and the insight detectors.
type Payload map[string]interface{}

// Well-known payload field names read by the engine.
const (
	FieldBeneficiary   = "beneficiary"
	FieldAmount        = "amount"
	FieldInvoiceNumber = "invoice_number"
	FieldEmployeeName  = "employee_name"
	FieldPaymentMonth  = "payment_month"
	FieldPaymentYear   = "payment_year"
	FieldContractor    = "contractor"
	FieldShiftDate     = "shift_date"
	FieldDate          = "date"
)

// Amount returns the payload amount as a decimal, or false when the field
// is absent or unparseable.
func (p Payload) Amount() (decimal.Decimal, bool) {
	raw, ok := p[FieldAmount]
	if !ok || raw == nil {
		return decimal.Zero, false
	}

	switch v := raw.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case decimal.Decimal:
		return v, true
	default:
		return decimal.Zero, false
	}
}

// StringField returns the payload field as a string, or "" when absent.
func (p Payload) StringField(name string) string {
	raw, ok := p[name]
	if !ok || raw == nil {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	return s
}

// Date returns the record's business date (invoice date, shift date, ...)
// parsed as 2006-01-02, or false when absent or unparseable.
func (p Payload) Date() (time.Time, bool) {
	for _, field := range []string{FieldDate, FieldShiftDate} {
		if s := p.StringField(field); s != "" {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				return time.Time{}, false
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// Record represents a tracked financial/operational entity (invoice, payslip,
// shift assignment). Status lives in the attached Workflow sub-record.
type Record struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	SubmitterID string    `json:"submitter_id"`
	Payload     Payload   `json:"payload"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Workflow *Workflow `json:"workflow,omitempty"`
}

// HasTag returns true if the record carries the given tag
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SortedTags returns the record's tags in sorted order
func (r *Record) SortedTags() []string {
	tags := append([]string(nil), r.Tags...)
	sort.Strings(tags)
	return tags
}
