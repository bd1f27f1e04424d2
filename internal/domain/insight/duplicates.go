// Package insight provides advisory duplicate and anomaly detection over a
// record set. Everything here is a pure function of its input: detectors are
// recomputed on read, never persisted, and never consulted by the transition
// validator.
package insight

import (
	"sort"
	"strings"

	"github.com/opsledger/workflow-engine/internal/domain/entity"
)

// DuplicateGroup is a set of records sharing one identity key
type DuplicateGroup struct {
	Key       string   `json:"key"`
	RecordIDs []string `json:"record_ids"`
}

// Duplicates groups records by composite identity key and returns every group
// with more than one member. Output is sorted by key and record id, so two
// runs over an unchanged set produce identical groups.
//
// Invoices key on (normalized beneficiary, amount, invoice number); when the
// invoice number is absent the key falls back to the looser two-field form,
// which is deliberately more false-positive-prone. Flags are hints for human
// review, not verdicts.
func Duplicates(records []*entity.Record) []DuplicateGroup {
	byKey := make(map[string][]string)
	for _, rec := range records {
		key := identityKey(rec)
		if key == "" {
			continue
		}
		byKey[key] = append(byKey[key], rec.ID)
	}

	var groups []DuplicateGroup
	for key, ids := range byKey {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		groups = append(groups, DuplicateGroup{Key: key, RecordIDs: ids})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// identityKey builds the per-kind composite key, or "" when the record lacks
// the fields the key needs
func identityKey(rec *entity.Record) string {
	switch rec.Kind {
	case entity.KindPayslip:
		employee := normalize(rec.Payload.StringField(entity.FieldEmployeeName))
		month := rec.Payload.StringField(entity.FieldPaymentMonth)
		year := rec.Payload.StringField(entity.FieldPaymentYear)
		if employee == "" || month == "" || year == "" {
			return ""
		}
		return strings.Join([]string{"payslip", employee, month, year}, "|")

	case entity.KindAssignment:
		contractor := normalize(rec.Payload.StringField(entity.FieldContractor))
		shift := rec.Payload.StringField(entity.FieldShiftDate)
		if contractor == "" || shift == "" {
			return ""
		}
		return strings.Join([]string{"assignment", contractor, shift}, "|")

	default:
		beneficiary := normalize(rec.Payload.StringField(entity.FieldBeneficiary))
		amount, ok := rec.Payload.Amount()
		if beneficiary == "" || !ok {
			return ""
		}
		parts := []string{"invoice", beneficiary, amount.String()}
		if number := normalize(rec.Payload.StringField(entity.FieldInvoiceNumber)); number != "" {
			parts = append(parts, number)
		}
		return strings.Join(parts, "|")
	}
}

// normalize lowercases and collapses internal whitespace
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
