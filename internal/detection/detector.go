package detection

import (
	"strings"
	"time"

	"github.com/jask/wastewatch/internal/database/repository"
)

// Detector inspects a run context and proposes alerts and status changes.
// Detectors are pure: they must not mutate rc.
type Detector interface {
	Type() repository.AlertType
	Detect(rc *RunContext) (Findings, error)
}

// Findings is everything one detector proposes.
type Findings struct {
	Drafts      []Draft
	Transitions []Transition
}

// Draft is a proposed alert before reconciliation with alert history.
type Draft struct {
	Key            string
	SubscriptionID *string
	TransactionID  *string
	Category       *string
	Payload        Payload
}

// Transition is a detector-driven status change.
type Transition struct {
	SubscriptionID string
	To             repository.SubscriptionStatus
	Cancel         *CancelMarker
	ClearCancel    bool
}

// CancelMarker records why and when a subscription was cancelled.
type CancelMarker struct {
	At       time.Time
	Reason   repository.CancelReason
	LastSeen time.Time
}

func (t Transition) apply(sub *repository.Subscription) {
	sub.Status = t.To
	if t.ClearCancel {
		clearCancellation(sub)
	}
	if t.Cancel != nil {
		at, lastSeen, reason := t.Cancel.At, t.Cancel.LastSeen, t.Cancel.Reason
		sub.CancelledAt = &at
		sub.CancelReason = &reason
		sub.CancelledLastSeen = &lastSeen
	}
}

// DedupKey joins the natural-key parts of an alert.
func DedupKey(t repository.AlertType, parts ...string) string {
	return string(t) + "|" + strings.Join(parts, "|")
}

// DefaultDetectors returns the detector battery in run order.
func DefaultDetectors() []Detector {
	return []Detector{
		ZombieDetector{},
		PriceIncreaseDetector{},
		DuplicateDetector{},
		AutoCancelDetector{},
		ResumeDetector{},
		SpendingAnomalyDetector{},
		TipDiscrepancyDetector{},
	}
}

func strPtr(s string) *string { return &s }

// billing reports whether a subscription is still expected to charge.
func billing(s repository.Subscription) bool {
	return s.Frequency != nil && (s.Status == repository.StatusActive || s.Status == repository.StatusZombie)
}
