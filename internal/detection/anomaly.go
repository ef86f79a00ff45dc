package detection

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jask/wastewatch/internal/database/repository"
)

// SpendingAnomalyDetector compares this month's spend per category and tag
// with the mean of the preceding full months.
type SpendingAnomalyDetector struct{}

func (SpendingAnomalyDetector) Type() repository.AlertType { return repository.AlertSpendingAnomaly }

// anomalyBuckets returns the buckets a transaction's spend counts towards.
func anomalyBuckets(t repository.Transaction) []string {
	var out []string
	if t.CategoryName != "" {
		out = append(out, t.CategoryName)
	}
	for _, tag := range t.Tags {
		out = append(out, "#"+tag.Name)
	}
	return out
}

func (SpendingAnomalyDetector) Detect(rc *RunContext) (Findings, error) {
	cfg := rc.Config.Anomaly
	current := monthIndex(rc.AsOf)
	spend := make(map[string]map[int]int64)
	first := make(map[string]int)
	for _, t := range rc.Transactions {
		if t.AmountCents >= 0 {
			continue
		}
		m := monthIndex(DayOf(t.Date))
		if m > current {
			continue
		}
		for _, b := range anomalyBuckets(t) {
			if spend[b] == nil {
				spend[b] = make(map[int]int64)
				first[b] = m
			}
			spend[b][m] += -t.AmountCents
			if m < first[b] {
				first[b] = m
			}
		}
	}

	buckets := make([]string, 0, len(spend))
	for b := range spend {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)

	threshold := rc.Config.anomalyPct()
	minDelta := decimal.NewFromInt(cfg.MinDeltaCents)
	evaluateDecreases := rc.AsOf.Time().Day() >= cfg.DecreaseAfterDay
	period := monthLabel(current)

	var f Findings
	for _, b := range buckets {
		months := 0
		total := int64(0)
		for i := 1; i <= cfg.BaselineMonths; i++ {
			m := current - i
			if m < first[b] {
				break
			}
			total += spend[b][m]
			months++
		}
		if months < cfg.MinBaselineMonths || total == 0 {
			continue
		}
		baseline := decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(months)))
		cur := decimal.NewFromInt(spend[b][current])
		delta := cur.Sub(baseline)
		if delta.IsNegative() && !evaluateDecreases {
			continue
		}
		pct := delta.Div(baseline).Mul(decimal.NewFromInt(100))
		if !pct.Abs().GreaterThan(threshold) || !delta.Abs().GreaterThan(minDelta) {
			continue
		}
		f.Drafts = append(f.Drafts, Draft{
			Key:      DedupKey(repository.AlertSpendingAnomaly, rc.Scope, b, period),
			Category: strPtr(b),
			Payload: SpendingAnomalyPayload{
				Bucket:         b,
				Period:         period,
				BaselineCents:  baseline.Round(0).IntPart(),
				CurrentCents:   spend[b][current],
				PercentChange:  pct.Round(2).StringFixed(2),
				BaselineMonths: months,
			},
		})
	}
	return f, nil
}
