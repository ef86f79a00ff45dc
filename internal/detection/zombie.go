package detection

import "github.com/jask/wastewatch/internal/database/repository"

// ZombieDetector flags subscriptions that stopped charging for longer than
// their cadence allows. Acknowledgement moves the reference date forward.
type ZombieDetector struct{}

func (ZombieDetector) Type() repository.AlertType { return repository.AlertZombie }

func (ZombieDetector) Detect(rc *RunContext) (Findings, error) {
	var f Findings
	for _, sub := range rc.Subscriptions {
		if !billing(sub) {
			continue
		}
		freq := *sub.Frequency
		threshold := rc.Config.ZombieThreshold(freq)
		lastSeen := DayOf(sub.LastSeen)
		ref := referenceDay(sub)
		lapse := rc.AsOf.Since(ref)
		if lapse > rc.Config.AutoCancelThreshold(freq) {
			continue
		}

		if lapse <= threshold {
			if sub.Status == repository.StatusZombie {
				f.Transitions = append(f.Transitions, Transition{SubscriptionID: sub.ID, To: repository.StatusActive})
			}
			continue
		}

		f.Drafts = append(f.Drafts, Draft{
			Key:            DedupKey(repository.AlertZombie, sub.ID, ref.String()),
			SubscriptionID: strPtr(sub.ID),
			Payload: ZombiePayload{
				Merchant:      sub.Merchant,
				Frequency:     string(freq),
				AmountCents:   sub.AmountCents,
				LastSeen:      lastSeen.String(),
				ReferenceDate: ref.String(),
				DaysSilent:    rc.AsOf.Since(lastSeen),
				ThresholdDays: threshold,
			},
		})
		if sub.Status == repository.StatusActive {
			f.Transitions = append(f.Transitions, Transition{SubscriptionID: sub.ID, To: repository.StatusZombie})
		}
	}
	return f, nil
}

// referenceDay is where silence is measured from: the last charge, or the
// user's acknowledgement when that came later. An acknowledged series is only
// flagged again once a full cycle is missed after the acknowledgement.
func referenceDay(sub repository.Subscription) Day {
	ref := DayOf(sub.LastSeen)
	if sub.UserAcknowledged && sub.AcknowledgedAt != nil {
		if ack := DayOf(*sub.AcknowledgedAt); ack > ref {
			ref = ack
		}
	}
	return ref
}
