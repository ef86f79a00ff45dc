package detection

import (
	"errors"
	"fmt"
	"time"

	"github.com/jask/wastewatch/internal/database/repository"
)

// ErrInvalidTransition is returned when a status change is not allowed from the current status.
var ErrInvalidTransition = errors.New("invalid status transition")

type statusEdge struct {
	from, to repository.SubscriptionStatus
}

// Status changes detectors may make. Everything else needs a user action.
var detectorEdges = map[statusEdge]bool{
	{repository.StatusActive, repository.StatusZombie}:    true,
	{repository.StatusZombie, repository.StatusActive}:    true,
	{repository.StatusActive, repository.StatusCancelled}: true,
	{repository.StatusZombie, repository.StatusCancelled}: true,
	{repository.StatusCancelled, repository.StatusActive}: true,
}

// CanTransition reports whether a detector may move a subscription between statuses.
func CanTransition(from, to repository.SubscriptionStatus) bool {
	return detectorEdges[statusEdge{from, to}]
}

// Action is a user-initiated subscription change.
type Action string

const (
	ActionAcknowledge Action = "acknowledge"
	ActionCancel      Action = "cancel"
	ActionExclude     Action = "exclude"
	ActionReset       Action = "reset"
)

var actionSources = map[Action][]repository.SubscriptionStatus{
	ActionAcknowledge: {repository.StatusActive, repository.StatusZombie},
	ActionCancel:      {repository.StatusActive, repository.StatusZombie},
	ActionExclude:     {repository.StatusActive, repository.StatusZombie, repository.StatusCancelled},
	ActionReset:       {repository.StatusActive, repository.StatusZombie, repository.StatusCancelled, repository.StatusExcluded},
}

// ParseAction maps a command word to an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := actionSources[a]; !ok {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// ApplyAction mutates sub according to a user action taken at now.
func ApplyAction(sub *repository.Subscription, a Action, now time.Time) error {
	allowed := false
	for _, st := range actionSources[a] {
		if sub.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%s %s subscription: %w", a, sub.Status, ErrInvalidTransition)
	}
	switch a {
	case ActionAcknowledge:
		sub.Status = repository.StatusActive
		sub.UserAcknowledged = true
		sub.AcknowledgedAt = &now
	case ActionCancel:
		reason := repository.CancelReasonUser
		lastSeen := sub.LastSeen
		sub.Status = repository.StatusCancelled
		sub.CancelledAt = &now
		sub.CancelReason = &reason
		sub.CancelledLastSeen = &lastSeen
	case ActionExclude:
		sub.Status = repository.StatusExcluded
	case ActionReset:
		sub.Status = repository.StatusActive
		sub.UserAcknowledged = false
		sub.AcknowledgedAt = nil
		clearCancellation(sub)
	}
	sub.UpdatedAt = now
	return nil
}

func clearCancellation(sub *repository.Subscription) {
	sub.CancelledAt = nil
	sub.CancelReason = nil
	sub.CancelledLastSeen = nil
}
