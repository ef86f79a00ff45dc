package detection

import (
	"github.com/shopspring/decimal"

	"github.com/jask/wastewatch/internal/database/repository"
)

var (
	weeksPerMonth = decimal.NewFromInt(52).Div(decimal.NewFromInt(12))
	twelve        = decimal.NewFromInt(12)
)

// MonthlyCost normalizes a subscription's charge to a monthly amount in cents.
// It reports false when the cadence is unknown.
func MonthlyCost(sub repository.Subscription) (decimal.Decimal, bool) {
	if sub.Frequency == nil {
		return decimal.Zero, false
	}
	amount := decimal.NewFromInt(sub.AmountCents)
	switch *sub.Frequency {
	case repository.FrequencyWeekly:
		return amount.Mul(weeksPerMonth), true
	case repository.FrequencyMonthly:
		return amount, true
	case repository.FrequencyYearly:
		return amount.Div(twelve), true
	}
	return decimal.Zero, false
}

// CostSummary totals the monthly cost of subscriptions that still bill.
type CostSummary struct {
	MonthlyCents   int64
	YearlyCents    int64
	Billing        int
	UnknownCadence int
	ByCategory     map[string]int64
}

// SummarizeCosts adds up active and zombie subscriptions. Cancelled and
// excluded ones contribute nothing.
func SummarizeCosts(subs []repository.Subscription) CostSummary {
	out := CostSummary{ByCategory: make(map[string]int64)}
	total := decimal.Zero
	byCat := make(map[string]decimal.Decimal)
	for _, s := range subs {
		if s.Status != repository.StatusActive && s.Status != repository.StatusZombie {
			continue
		}
		m, ok := MonthlyCost(s)
		if !ok {
			out.UnknownCadence++
			continue
		}
		out.Billing++
		total = total.Add(m)
		byCat[s.Category] = byCat[s.Category].Add(m)
	}
	out.MonthlyCents = total.Round(0).IntPart()
	out.YearlyCents = total.Mul(twelve).Round(0).IntPart()
	for cat, v := range byCat {
		out.ByCategory[cat] = v.Round(0).IntPart()
	}
	return out
}
