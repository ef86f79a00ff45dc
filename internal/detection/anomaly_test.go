package detection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/wastewatch/internal/database/repository"
)

func TestSpendingAnomalyIncrease(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, Config{})
	for _, m := range []string{"2024-01", "2024-02", "2024-03"} {
		s.charge("Market "+m, m+"-05", 20000, "Groceries")
		s.charge("Bakery "+m, m+"-12", 20000, "Groceries", "family")
	}
	s.charge("Deli", "2024-04-05", 40000, "Groceries")
	s.charge("Farm Stand", "2024-04-06", 20000, "Groceries", "family")

	s.run("2024-04-10")
	alerts := s.openAlerts(repository.AlertSpendingAnomaly)
	require.Len(t, alerts, 1, "the family tag is flat month on month")
	p := decoded[SpendingAnomalyPayload](t, alerts[0])
	require.Equal(t, "Groceries", p.Bucket)
	require.Equal(t, "2024-04", p.Period)
	require.Equal(t, int64(40000), p.BaselineCents)
	require.Equal(t, int64(60000), p.CurrentCents)
	require.Equal(t, "50.00", p.PercentChange)
	require.Equal(t, 3, p.BaselineMonths)
	require.Equal(t, "Spending on Groceries is up 50.00% in 2024-04: $600.00 vs $400.00 average", alerts[0].Message)

	// More spend later in the month updates the same alert.
	s.charge("Butcher", "2024-04-20", 10000, "Groceries")
	plan := s.run("2024-04-21")
	again := s.openAlerts(repository.AlertSpendingAnomaly)
	require.Len(t, again, 1)
	require.Equal(t, alerts[0].ID, again[0].ID)
	require.Equal(t, 1, plan.Report.AlertsUpdated)
	require.Equal(t, int64(70000), decoded[SpendingAnomalyPayload](t, again[0]).CurrentCents)

	// A new month leaves last month's alert open.
	s.run("2024-05-02")
	require.Len(t, s.openAlerts(repository.AlertSpendingAnomaly), 1)
}

func TestSpendingAnomalyDecreaseWaitsForMonthEnd(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, Config{})
	for _, m := range []string{"2024-01", "2024-02", "2024-03"} {
		s.charge("Bar "+m, m+"-10", 30000, "Entertainment")
	}
	s.charge("Pub", "2024-04-03", 1000, "Entertainment")

	s.run("2024-04-15")
	require.Empty(t, s.openAlerts(repository.AlertSpendingAnomaly))

	s.run("2024-04-26")
	alerts := s.openAlerts(repository.AlertSpendingAnomaly)
	require.Len(t, alerts, 1)
	require.Contains(t, alerts[0].Message, "is down 96.67%")

	// Spending catches up: the alert of the current period resolves.
	s.charge("Club", "2024-04-27", 28000, "Entertainment")
	plan := s.run("2024-04-28")
	require.Empty(t, s.openAlerts(repository.AlertSpendingAnomaly))
	require.Equal(t, 1, plan.Report.AlertsResolved)
}

func TestSpendingAnomalyNeedsBaselineHistory(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, Config{})
	s.charge("Store", "2024-03-10", 10000, "Shopping")
	s.charge("Store", "2024-04-10", 90000, "Shopping")
	s.run("2024-04-12")
	require.Empty(t, s.openAlerts(repository.AlertSpendingAnomaly), "one baseline month is not enough")
}
