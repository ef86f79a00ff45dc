package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/wastewatch/internal/database/repository"
)

func TestPruneAlertsHonoursRetention(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.record(t, monthly("2024-01-03", 4, "-15.49", "Netflix", "Streaming")...)
	e.record(t, entry("2024-05-03", "-17.99", "Netflix", "Streaming"))
	e.record(t, monthly("2024-01-05", 5, "-9.99", "Spotify", "Streaming")...)
	e.run(t, "2024-05-10")
	require.Equal(t, 2, e.count(t, "alerts"))

	price := e.openAlerts(t, repository.AlertPriceIncrease)
	require.Len(t, price, 1)
	require.NoError(t, e.alerts.Dismiss(e.ctx, price[0].ID))

	n, err := e.maint.PruneAlerts(e.ctx, 180)
	require.NoError(t, err)
	require.Zero(t, n, "dismissed too recently")

	e.now = date("2025-03-01")
	n, err = e.maint.PruneAlerts(e.ctx, 0)
	require.NoError(t, err)
	require.Zero(t, n, "retention disabled")

	n, err = e.maint.PruneAlerts(e.ctx, 180)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Len(t, e.openAlerts(t, repository.AlertDuplicate), 1)
}

func TestResetWipesUserData(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.record(t, monthly("2024-01-03", 3, "-15.49", "Netflix", "Streaming")...)
	e.run(t, "2024-03-10")
	_, err := e.receipts.Add(e.ctx, ReceiptInput{Merchant: "Shop", Date: date("2024-03-01"), TotalCents: 100})
	require.NoError(t, err)

	require.NoError(t, e.maint.Reset(e.ctx))
	for _, table := range []string{"transactions", "subscriptions", "alerts", "receipts", "accounts", "categories"} {
		require.Zero(t, e.count(t, table), table)
	}
}
