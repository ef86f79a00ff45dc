package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/database"
	"github.com/jask/wastewatch/internal/database/repository"
)

// MaintenanceService houses retention and destructive ops actions.
type MaintenanceService struct {
	DB  *sql.DB
	Log *zap.Logger
	Now func() time.Time
}

// PruneAlerts deletes alerts dismissed or resolved more than retentionDays ago.
// Pruning a dismissed alert lets detection raise the same finding again.
func (s *MaintenanceService) PruneAlerts(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	now := database.Now()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	n, err := repository.NewAlertRepo(s.DB).Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune alerts: %w", err)
	}
	if s.Log != nil {
		s.Log.Info("pruned alerts", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Reset wipes all user data. It keeps the schema intact so the app can continue running.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		tables := []string{
			"receipt_matches",
			"receipts",
			"alerts",
			"subscriptions",
			"transaction_tags",
			"transactions",
			"tags",
			"categories",
			"accounts",
		}
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}
