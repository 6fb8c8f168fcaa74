// Package hours derives work-hour totals from raw visit timestamps.
// It is pure: no storage access, same inputs always produce same outputs.
package hours

import (
	"log"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// NormalPerVisit is the per-visit threshold beyond which time counts as
	// overtime. The threshold is per visit, not per calendar day; multiple
	// visits in one day each get their own 8 normal hours.
	NormalPerVisit = 8

	// MaxTotal caps a single visit's total hours against corrupt input.
	MaxTotal = 720

	// reviewThreshold marks sessions worth a second look. They are flagged,
	// not rejected: a visit may legitimately span a shift change.
	reviewThreshold = 24
)

var (
	normalCap = decimal.NewFromInt(NormalPerVisit)
	totalCap  = decimal.NewFromInt(MaxTotal)
	reviewCap = decimal.NewFromInt(reviewThreshold)
)

// Breakdown is the derived hour totals for one completed visit,
// each rounded half-up to two decimal places. Total = Normal + Overtime.
type Breakdown struct {
	Total    decimal.Decimal
	Normal   decimal.Decimal
	Overtime decimal.Decimal
}

// Calculate derives the breakdown for a visit. The lunch window, when both
// ends are set, is subtracted from the span between arrival and departure.
// Totals are clamped to [0, MaxTotal].
func Calculate(arrived, departed time.Time, lunchStart, lunchEnd *time.Time) Breakdown {
	work := departed.Sub(arrived)
	if lunchStart != nil && lunchEnd != nil {
		work -= lunchEnd.Sub(*lunchStart)
	}

	total := decimal.NewFromInt(int64(work / time.Second)).
		Div(decimal.NewFromInt(3600))

	if total.IsNegative() {
		total = decimal.Zero
	}
	if total.GreaterThan(totalCap) {
		total = totalCap
	}
	if total.GreaterThan(reviewCap) {
		log.Printf("hours: session exceeds %dh (%s h, arrived %s, departed %s); flagged for review",
			reviewThreshold, total.StringFixed(2),
			arrived.Format(time.RFC3339), departed.Format(time.RFC3339))
	}

	normal := decimal.Min(total, normalCap)
	overtime := decimal.Max(decimal.Zero, total.Sub(normalCap))

	return Breakdown{
		Total:    total.Round(2),
		Normal:   normal.Round(2),
		Overtime: overtime.Round(2),
	}
}
