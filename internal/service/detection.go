package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/database"
	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
)

// RunOptions selects what a detection run covers. A zero AsOf means today.
type RunOptions struct {
	Scope string
	AsOf  time.Time
}

// DetectionService loads a snapshot, plans a run and applies it atomically.
// Runs are serialized.
type DetectionService struct {
	DB     *sql.DB
	Engine *detection.Engine
	Log    *zap.Logger

	mu sync.Mutex
}

func NewDetectionService(db *sql.DB, engine *detection.Engine, log *zap.Logger) *DetectionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DetectionService{DB: db, Engine: engine, Log: log}
}

// Run executes one detection pass. Detector failures do not fail the run;
// they are listed in the report. Storage failures roll back every write and
// return an error wrapping ErrPersist.
func (s *DetectionService) Run(ctx context.Context, opts RunOptions) (detection.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	log := s.Log.With(zap.String("scope", opts.Scope), zap.String("as_of", asOf.Format(time.DateOnly)))

	snap, err := s.snapshot(ctx, opts.Scope)
	if err != nil {
		return detection.Report{}, fmt.Errorf("load snapshot: %w", err)
	}
	plan, err := s.Engine.Plan(snap, asOf)
	if err != nil {
		return detection.Report{}, fmt.Errorf("plan run: %w", err)
	}
	for _, f := range plan.Report.Failures {
		log.Warn("detector failed", zap.String("detector", string(f.Detector)), zap.String("error", f.Error))
	}

	if err := s.apply(ctx, plan); err != nil {
		log.Error("detection run rolled back", zap.Error(err))
		return detection.Report{}, err
	}
	if len(plan.Report.Conflicts) > 0 {
		log.Info("user changes won over run", zap.Strings("subscriptions", plan.Report.Conflicts))
	}
	r := plan.Report
	log.Info("detection run",
		zap.Int("transactions", r.Transactions),
		zap.Int("skipped", r.Skipped),
		zap.Int("series", r.Series),
		zap.Int("new_subscriptions", r.NewSubscriptions),
		zap.Int("transitions", len(r.Transitions)),
		zap.Int("alerts_created", r.AlertsCreated),
		zap.Int("alerts_updated", r.AlertsUpdated),
		zap.Int("alerts_resolved", r.AlertsResolved),
		zap.Bool("partial", r.Partial()),
	)
	return r, nil
}

// snapshot reads everything a run needs in one read transaction.
func (s *DetectionService) snapshot(ctx context.Context, scope string) (detection.Snapshot, error) {
	snap := detection.Snapshot{Scope: scope}
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		snap.Transactions, err = repository.NewTransactionRepo(tx).List(ctx, repository.TransactionFilters{AccountID: scope})
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		snap.Subscriptions, err = repository.NewSubscriptionRepo(tx).List(ctx, repository.SubscriptionFilters{})
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}
		snap.Alerts, err = repository.NewAlertRepo(tx).List(ctx, repository.AlertFilters{})
		if err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}
		snap.Receipts, err = repository.NewReceiptRepo(tx).Confirmed(ctx)
		if err != nil {
			return fmt.Errorf("list confirmed receipts: %w", err)
		}
		return nil
	})
	return snap, err
}

// apply writes the plan in one transaction. Subscriptions whose revision moved
// since the snapshot are left as the user set them.
func (s *DetectionService) apply(ctx context.Context, plan *detection.Plan) error {
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		subs := repository.NewSubscriptionRepo(tx)
		alerts := repository.NewAlertRepo(tx)

		current, err := subs.Revisions(ctx, plan.Changes.GuardIDs())
		if err != nil {
			return fmt.Errorf("read revisions: %w", err)
		}
		conflicted := make(map[string]bool)
		for id, rev := range plan.Changes.Guards {
			if got, ok := current[id]; !ok || got != rev {
				conflicted[id] = true
			}
		}
		plan.DropConflicts(conflicted)

		c := plan.Changes
		for _, sub := range c.NewSubscriptions {
			if err := subs.Insert(ctx, sub); err != nil {
				return fmt.Errorf("insert subscription %s: %w", sub.Merchant, err)
			}
		}
		for _, u := range c.Updates {
			ok, err := subs.UpdateIfRevision(ctx, u.Subscription, u.ExpectedRevision)
			if err != nil {
				return fmt.Errorf("update subscription %s: %w", u.Subscription.ID, err)
			}
			if !ok {
				return fmt.Errorf("update subscription %s: revision moved", u.Subscription.ID)
			}
		}
		for _, a := range c.NewAlerts {
			if err := alerts.Insert(ctx, a); err != nil {
				return fmt.Errorf("insert alert %s: %w", a.DedupKey, err)
			}
		}
		for _, a := range c.UpdatedAlerts {
			if err := alerts.UpdateContent(ctx, a.ID, a.Message, a.Payload, a.UpdatedAt); err != nil {
				return fmt.Errorf("update alert %s: %w", a.ID, err)
			}
		}
		for _, a := range c.ResolvedAlerts {
			if err := alerts.Resolve(ctx, a.ID, *a.ResolvedAt); err != nil {
				return fmt.Errorf("resolve alert %s: %w", a.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
