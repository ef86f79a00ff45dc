package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/database"
	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
)

// SubscriptionService applies user actions to subscriptions.
type SubscriptionService struct {
	DB  *sql.DB
	Log *zap.Logger
	Now func() time.Time
}

func (s *SubscriptionService) List(ctx context.Context, f repository.SubscriptionFilters) ([]repository.Subscription, error) {
	subs, err := repository.NewSubscriptionRepo(s.DB).List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *SubscriptionService) Get(ctx context.Context, id string) (repository.Subscription, error) {
	sub, err := repository.NewSubscriptionRepo(s.DB).Get(ctx, id)
	if err != nil {
		return repository.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		return repository.Subscription{}, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	return *sub, nil
}

func (s *SubscriptionService) Acknowledge(ctx context.Context, id string) (repository.Subscription, error) {
	return s.Apply(ctx, id, detection.ActionAcknowledge)
}

func (s *SubscriptionService) Cancel(ctx context.Context, id string) (repository.Subscription, error) {
	return s.Apply(ctx, id, detection.ActionCancel)
}

func (s *SubscriptionService) Exclude(ctx context.Context, id string) (repository.Subscription, error) {
	return s.Apply(ctx, id, detection.ActionExclude)
}

func (s *SubscriptionService) Reset(ctx context.Context, id string) (repository.Subscription, error) {
	return s.Apply(ctx, id, detection.ActionReset)
}

// Apply performs a user action. The revision bump makes any detection run
// planned before this call drop its writes for the subscription.
// Acknowledging also dismisses the open zombie alert. Resetting forgets the
// subscription's dismissed alerts so detection can raise them again.
func (s *SubscriptionService) Apply(ctx context.Context, id string, a detection.Action) (repository.Subscription, error) {
	now := s.now()
	var out repository.Subscription
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		subs := repository.NewSubscriptionRepo(tx)
		sub, err := subs.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get subscription: %w", err)
		}
		if sub == nil {
			return fmt.Errorf("subscription %s: %w", id, ErrNotFound)
		}
		if err := detection.ApplyAction(sub, a, now); err != nil {
			return err
		}
		ok, err := subs.UpdateIfRevision(ctx, *sub, sub.Revision)
		if err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		if !ok {
			return fmt.Errorf("update subscription %s: revision moved", id)
		}
		sub.Revision++
		switch a {
		case detection.ActionAcknowledge:
			if _, err := repository.NewAlertRepo(tx).DismissOpenFor(ctx, id, repository.AlertZombie, now); err != nil {
				return fmt.Errorf("dismiss zombie alert: %w", err)
			}
		case detection.ActionReset:
			if _, err := repository.NewAlertRepo(tx).DeleteDismissedFor(ctx, id); err != nil {
				return fmt.Errorf("forget dismissed alerts: %w", err)
			}
		case detection.ActionCancel, detection.ActionExclude:
		}
		out = *sub
		return nil
	})
	if err != nil {
		return repository.Subscription{}, err
	}
	s.logger().Info("subscription action",
		zap.String("subscription", id), zap.String("action", string(a)), zap.String("status", string(out.Status)))
	return out, nil
}

// Costs summarizes the monthly cost of the listed subscriptions.
func (s *SubscriptionService) Costs(ctx context.Context, f repository.SubscriptionFilters) (detection.CostSummary, error) {
	subs, err := s.List(ctx, f)
	if err != nil {
		return detection.CostSummary{}, err
	}
	return detection.SummarizeCosts(subs), nil
}

func (s *SubscriptionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return database.Now()
}

func (s *SubscriptionService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
