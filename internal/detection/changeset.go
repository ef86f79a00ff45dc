package detection

import (
	"time"

	"github.com/jask/wastewatch/internal/database/repository"
)

// SubscriptionUpdate is a write conditional on the revision seen in the snapshot.
type SubscriptionUpdate struct {
	Subscription     repository.Subscription
	ExpectedRevision int64
}

// Changeset is every write a run wants to make, applied atomically.
type Changeset struct {
	NewSubscriptions []repository.Subscription
	Updates          []SubscriptionUpdate
	// Guards maps every pre-existing subscription the run writes or alerts
	// about to the revision it read.
	Guards         map[string]int64
	NewAlerts      []repository.Alert
	UpdatedAlerts  []repository.Alert
	ResolvedAlerts []repository.Alert
}

// Empty reports whether applying the changeset would write nothing.
func (c Changeset) Empty() bool {
	return len(c.NewSubscriptions) == 0 && len(c.Updates) == 0 && len(c.NewAlerts) == 0 &&
		len(c.UpdatedAlerts) == 0 && len(c.ResolvedAlerts) == 0
}

// GuardIDs lists the guarded subscription ids.
func (c Changeset) GuardIDs() []string {
	ids := make([]string, 0, len(c.Guards))
	for id := range c.Guards {
		ids = append(ids, id)
	}
	return ids
}

// WithoutSubscriptions drops every write concerning the given subscriptions,
// leaving the user's concurrent change in place.
func (c Changeset) WithoutSubscriptions(conflicted map[string]bool) Changeset {
	if len(conflicted) == 0 {
		return c
	}
	out := Changeset{
		NewSubscriptions: c.NewSubscriptions,
		Guards:           make(map[string]int64, len(c.Guards)),
	}
	for id, rev := range c.Guards {
		if !conflicted[id] {
			out.Guards[id] = rev
		}
	}
	for _, u := range c.Updates {
		if !conflicted[u.Subscription.ID] {
			out.Updates = append(out.Updates, u)
		}
	}
	keep := func(a repository.Alert) bool {
		return a.SubscriptionID == nil || !conflicted[*a.SubscriptionID]
	}
	for _, a := range c.NewAlerts {
		if keep(a) {
			out.NewAlerts = append(out.NewAlerts, a)
		}
	}
	for _, a := range c.UpdatedAlerts {
		if keep(a) {
			out.UpdatedAlerts = append(out.UpdatedAlerts, a)
		}
	}
	for _, a := range c.ResolvedAlerts {
		if keep(a) {
			out.ResolvedAlerts = append(out.ResolvedAlerts, a)
		}
	}
	return out
}

// subscriptionChanged compares the fields a run may write.
func subscriptionChanged(a, b repository.Subscription) bool {
	return a.AmountCents != b.AmountCents ||
		!sameFrequency(a.Frequency, b.Frequency) ||
		!a.FirstSeen.Equal(b.FirstSeen) ||
		!a.LastSeen.Equal(b.LastSeen) ||
		a.Status != b.Status ||
		a.UserAcknowledged != b.UserAcknowledged ||
		!sameTime(a.AcknowledgedAt, b.AcknowledgedAt) ||
		!sameTime(a.CancelledAt, b.CancelledAt) ||
		!sameReason(a.CancelReason, b.CancelReason) ||
		!sameTime(a.CancelledLastSeen, b.CancelledLastSeen) ||
		a.Category != b.Category
}

func sameFrequency(a, b *repository.Frequency) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameReason(a, b *repository.CancelReason) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
