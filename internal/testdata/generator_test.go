package testdata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/database"
	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
	"github.com/jask/wastewatch/internal/service"
)

var end = time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

func TestGenerateIsDeterministic(t *testing.T) {
	t.Parallel()
	a := Generate(7, end, 8)
	b := Generate(7, end, 8)
	require.Equal(t, a, b)
	require.NotEqual(t, a.Entries, Generate(8, end, 8).Entries)
	for _, e := range a.Entries {
		require.Less(t, e.Date, end.Format(time.DateOnly))
	}
	require.Len(t, a.Receipts, 1)
}

func TestCentsToDollars(t *testing.T) {
	t.Parallel()
	require.Equal(t, "-15.49", centsToDollars(-1549))
	require.Equal(t, "0.05", centsToDollars(5))
	require.Equal(t, "1800.00", centsToDollars(180000))
}

func TestGeneratedLedgerRaisesAlerts(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "gen.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	log := zap.NewNop()
	clock := func() time.Time { return end }
	detect := service.NewDetectionService(db, detection.NewEngine(detection.DefaultConfig(), detection.WithClock(clock)), log)
	ledger := &service.LedgerService{DB: db, Log: log}

	data := Generate(42, end, 8)
	res, err := ledger.Record(ctx, data.Entries, time.UTC)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Equal(t, len(data.Entries), res.Imported)

	report, err := detect.Run(ctx, service.RunOptions{AsOf: end})
	require.NoError(t, err)
	require.False(t, report.Partial())

	alerts, err := (&service.AlertService{DB: db, Now: clock}).List(ctx, repository.AlertFilters{OpenOnly: true})
	require.NoError(t, err)
	types := map[repository.AlertType]bool{}
	for _, a := range alerts {
		types[a.Type] = true
	}
	require.True(t, types[repository.AlertPriceIncrease], "netflix price rise")

	subs, err := (&service.SubscriptionService{DB: db, Log: log, Now: clock}).List(ctx, repository.SubscriptionFilters{})
	require.NoError(t, err)
	found := false
	for _, s := range subs {
		if s.Merchant == "Gym" {
			found = true
			require.NotEqual(t, repository.StatusActive, s.Status)
		}
	}
	require.True(t, found)
}
