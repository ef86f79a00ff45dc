package detection

import "github.com/jask/wastewatch/internal/database/repository"

// ResumeDetector notices charges that arrive after a cancellation. Auto
// cancellations are undone; user cancellations stand but are still reported.
type ResumeDetector struct{}

func (ResumeDetector) Type() repository.AlertType { return repository.AlertResume }

func (ResumeDetector) Detect(rc *RunContext) (Findings, error) {
	var f Findings
	for _, sub := range rc.Subscriptions {
		if sub.Status != repository.StatusCancelled || sub.Frequency == nil || sub.CancelledLastSeen == nil {
			continue
		}
		marker := DayOf(*sub.CancelledLastSeen)
		latest := DayOf(sub.LastSeen)
		if latest <= marker {
			continue
		}
		reason := repository.CancelReasonUser
		if sub.CancelReason != nil {
			reason = *sub.CancelReason
		}
		cancelledAt := ""
		if sub.CancelledAt != nil {
			cancelledAt = DayOf(*sub.CancelledAt).String()
		}
		f.Drafts = append(f.Drafts, Draft{
			Key:            DedupKey(repository.AlertResume, sub.ID, latest.String()),
			SubscriptionID: strPtr(sub.ID),
			Payload: ResumePayload{
				Merchant:         sub.Merchant,
				CancelReason:     string(reason),
				CancelledAt:      cancelledAt,
				PreviousLastSeen: marker.String(),
				ResumedOn:        latest.String(),
				AmountCents:      sub.AmountCents,
			},
		})
		if reason == repository.CancelReasonAuto {
			f.Transitions = append(f.Transitions, Transition{
				SubscriptionID: sub.ID,
				To:             repository.StatusActive,
				ClearCancel:    true,
			})
		}
	}
	return f, nil
}
