package detection

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/jask/wastewatch/internal/database/repository"
)

// PriceIncreaseDetector compares the latest charge of a series with the one before it.
type PriceIncreaseDetector struct{}

func (PriceIncreaseDetector) Type() repository.AlertType { return repository.AlertPriceIncrease }

func (PriceIncreaseDetector) Detect(rc *RunContext) (Findings, error) {
	var f Findings
	minRatio := rc.Config.priceMinRatio()
	for _, sub := range rc.Subscriptions {
		if !billing(sub) {
			continue
		}
		s := rc.SeriesFor(sub.ID)
		if s == nil || len(s.Occurrences) < 2 {
			continue
		}
		latest := s.Occurrences[len(s.Occurrences)-1]
		prior := s.Occurrences[len(s.Occurrences)-2]
		delta := latest.AmountCents - prior.AmountCents
		if delta < rc.Config.PriceIncrease.MinDeltaCents || prior.AmountCents <= 0 {
			continue
		}
		ratio := decimal.NewFromInt(delta).Div(decimal.NewFromInt(prior.AmountCents))
		if !ratio.GreaterThan(minRatio) {
			continue
		}
		f.Drafts = append(f.Drafts, Draft{
			Key:            DedupKey(repository.AlertPriceIncrease, sub.ID, strconv.FormatInt(latest.AmountCents, 10)),
			SubscriptionID: strPtr(sub.ID),
			Payload: PriceIncreasePayload{
				Merchant:      sub.Merchant,
				BaselineCents: prior.AmountCents,
				NewCents:      latest.AmountCents,
				DeltaCents:    delta,
				Percent:       percentOf(decimal.NewFromInt(delta), decimal.NewFromInt(prior.AmountCents)).StringFixed(2),
				ChargedOn:     latest.Day.String(),
			},
		})
	}
	return f, nil
}
