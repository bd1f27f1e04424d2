package insight

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opsledger/workflow-engine/internal/domain/entity"
)

// Anomaly flag names
const (
	FlagUnusualAmount = "unusual_amount"
	FlagFutureDate    = "future_date"
	FlagVeryOldDate   = "very_old_date"
)

// Amount outliers are suppressed when fewer than this many records carry a
// known amount; the signal is unreliable below it.
const minAmountSample = 3

// veryOldCutoff is how far back a record date may lie before being flagged
const veryOldCutoff = 365 * 24 * time.Hour

// AnomalyFlag is one advisory annotation on a record
type AnomalyFlag struct {
	RecordID string `json:"record_id"`
	Flag     string `json:"flag"`
	Detail   string `json:"detail,omitempty"`
}

// Anomalies flags statistically or temporally unusual records in the set.
//
// A record's amount is unusual when it falls outside mean ± 2 sample standard
// deviations of the amounts in the set, provided at least three records carry
// a known amount. Dates after now are flagged future, dates more than a year
// before now very old. Output is sorted by record id then flag.
func Anomalies(records []*entity.Record, now time.Time) []AnomalyFlag {
	var flags []AnomalyFlag

	flags = append(flags, amountOutliers(records)...)

	for _, rec := range records {
		date, ok := rec.Payload.Date()
		if !ok {
			continue
		}
		if date.After(now) {
			flags = append(flags, AnomalyFlag{
				RecordID: rec.ID,
				Flag:     FlagFutureDate,
				Detail:   date.Format("2006-01-02"),
			})
		} else if now.Sub(date) > veryOldCutoff {
			flags = append(flags, AnomalyFlag{
				RecordID: rec.ID,
				Flag:     FlagVeryOldDate,
				Detail:   date.Format("2006-01-02"),
			})
		}
	}

	sort.Slice(flags, func(i, j int) bool {
		if flags[i].RecordID != flags[j].RecordID {
			return flags[i].RecordID < flags[j].RecordID
		}
		return flags[i].Flag < flags[j].Flag
	})
	return flags
}

func amountOutliers(records []*entity.Record) []AnomalyFlag {
	type known struct {
		id     string
		amount decimal.Decimal
	}

	var amounts []known
	for _, rec := range records {
		if a, ok := rec.Payload.Amount(); ok {
			amounts = append(amounts, known{id: rec.ID, amount: a})
		}
	}
	if len(amounts) < minAmountSample {
		return nil
	}

	sum := decimal.Zero
	for _, k := range amounts {
		sum = sum.Add(k.amount)
	}
	mean, _ := sum.DivRound(decimal.NewFromInt(int64(len(amounts))), 8).Float64()

	var variance float64
	for _, k := range amounts {
		v, _ := k.amount.Float64()
		variance += (v - mean) * (v - mean)
	}
	// Sample standard deviation (n-1 denominator).
	stddev := math.Sqrt(variance / float64(len(amounts)-1))

	lower := mean - 2*stddev
	upper := mean + 2*stddev

	var flags []AnomalyFlag
	for _, k := range amounts {
		v, _ := k.amount.Float64()
		if v < lower || v > upper {
			flags = append(flags, AnomalyFlag{
				RecordID: k.id,
				Flag:     FlagUnusualAmount,
				Detail:   k.amount.String(),
			})
		}
	}
	return flags
}
