package detection

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jask/wastewatch/internal/database/repository"
)

// alertChanges is the outcome of reconciling drafts with alert history.
type alertChanges struct {
	Inserts    []repository.Alert
	Updates    []repository.Alert
	Resolves   []repository.Alert
	Suppressed int
}

// resolvable reports whether an open alert of type t should close once its
// condition stops holding. Other kinds stay open until the user acts.
func resolvable(t repository.AlertType) bool {
	switch t {
	case repository.AlertZombie, repository.AlertDuplicate, repository.AlertSpendingAnomaly:
		return true
	case repository.AlertPriceIncrease, repository.AlertAutoCancellation,
		repository.AlertResume, repository.AlertTipDiscrepancy:
		return false
	}
	return false
}

// reconcileAlerts dedups drafts against existing alerts by key. An open match
// is updated in place, a dismissed match suppresses the draft, and anything
// else becomes a new alert. Open resolvable alerts whose key was not drafted
// are resolved, but only for detectors that completed in this run.
func reconcileAlerts(rc *RunContext, drafts []Draft, existing []repository.Alert, completed map[repository.AlertType]bool, now time.Time, newID func() string) (alertChanges, error) {
	open := make(map[string]repository.Alert)
	dismissed := make(map[string]bool)
	for _, a := range existing {
		switch {
		case a.Open():
			open[a.DedupKey] = a
		case a.Dismissed:
			dismissed[a.DedupKey] = true
		}
	}

	var out alertChanges
	drafted := make(map[string]bool, len(drafts))
	for _, d := range drafts {
		if drafted[d.Key] {
			continue
		}
		drafted[d.Key] = true

		payload, err := EncodePayload(d.Payload)
		if err != nil {
			return alertChanges{}, err
		}
		msg := d.Payload.Message()

		if cur, ok := open[d.Key]; ok {
			if cur.Message == msg && bytes.Equal(cur.Payload, payload) {
				continue
			}
			cur.Message = msg
			cur.Payload = payload
			cur.UpdatedAt = now
			out.Updates = append(out.Updates, cur)
			continue
		}
		if dismissed[d.Key] {
			out.Suppressed++
			continue
		}
		out.Inserts = append(out.Inserts, repository.Alert{
			ID:             newID(),
			Type:           d.Payload.Type(),
			SubscriptionID: d.SubscriptionID,
			TransactionID:  d.TransactionID,
			Category:       d.Category,
			Scope:          rc.Scope,
			DedupKey:       d.Key,
			Message:        msg,
			Payload:        payload,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	period := monthLabel(monthIndex(rc.AsOf))
	for _, a := range existing {
		if !a.Open() || drafted[a.DedupKey] || !resolvable(a.Type) || !completed[a.Type] || !rc.owns(a) {
			continue
		}
		if a.Type == repository.AlertSpendingAnomaly {
			p, err := DecodePayload(a.Type, a.Payload)
			if err != nil {
				return alertChanges{}, fmt.Errorf("alert %s: %w", a.ID, err)
			}
			if sp, ok := p.(SpendingAnomalyPayload); !ok || sp.Period != period {
				continue
			}
		}
		at := now
		a.ResolvedAt = &at
		a.UpdatedAt = now
		out.Resolves = append(out.Resolves, a)
	}
	return out, nil
}
