package detection

import "github.com/jask/wastewatch/internal/database/repository"

// AutoCancelDetector treats a series silent for multiplier x the zombie
// threshold as cancelled by the merchant.
type AutoCancelDetector struct{}

func (AutoCancelDetector) Type() repository.AlertType { return repository.AlertAutoCancellation }

func (AutoCancelDetector) Detect(rc *RunContext) (Findings, error) {
	var f Findings
	for _, sub := range rc.Subscriptions {
		if !billing(sub) {
			continue
		}
		freq := *sub.Frequency
		limit := rc.Config.AutoCancelThreshold(freq)
		lastSeen := DayOf(sub.LastSeen)
		if rc.AsOf.Since(referenceDay(sub)) <= limit {
			continue
		}
		f.Transitions = append(f.Transitions, Transition{
			SubscriptionID: sub.ID,
			To:             repository.StatusCancelled,
			Cancel: &CancelMarker{
				At:       rc.AsOf.Time(),
				Reason:   repository.CancelReasonAuto,
				LastSeen: lastSeen.Time(),
			},
		})
		f.Drafts = append(f.Drafts, Draft{
			Key:            DedupKey(repository.AlertAutoCancellation, sub.ID, lastSeen.String()),
			SubscriptionID: strPtr(sub.ID),
			Payload: AutoCancellationPayload{
				Merchant:      sub.Merchant,
				Frequency:     string(freq),
				LastSeen:      lastSeen.String(),
				DaysSilent:    rc.AsOf.Since(lastSeen),
				ThresholdDays: limit,
			},
		})
	}
	return f, nil
}
