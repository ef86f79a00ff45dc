package detection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/wastewatch/internal/database/repository"
)

func TestDuplicateDissolution(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, Config{})
	s.monthly("Netflix", "2024-01-03", 3, 1549, "Streaming")
	s.monthly("Hulu", "2024-01-05", 3, 799, "Streaming")
	s.monthly("Disney+", "2024-01-07", 3, 1399, "Streaming")
	s.monthly("Dropbox", "2024-01-09", 3, 1199, "Software")

	s.run("2024-03-20")
	alerts := s.openAlerts(repository.AlertDuplicate)
	require.Len(t, alerts, 1)
	p := decoded[DuplicatePayload](t, alerts[0])
	require.Equal(t, "Streaming", p.Category)
	require.Equal(t, []string{"Disney+", "Hulu", "Netflix"}, p.Merchants)
	require.Len(t, p.SubscriptionIDs, 3)
	require.Equal(t, int64(1549+799+1399), p.MonthlyCostCents)
	require.Equal(t, "Streaming", *alerts[0].Category)
	require.Nil(t, alerts[0].SubscriptionID)

	for _, m := range []string{"Hulu", "Disney+"} {
		sub := s.sub(m)
		require.NoError(t, ApplyAction(&sub, ActionCancel, date("2024-03-21")))
		s.setSub(sub)
	}

	plan := s.run("2024-03-22")
	require.Empty(t, s.openAlerts(repository.AlertDuplicate))
	require.Equal(t, 1, plan.Report.AlertsResolved)
}

func TestDuplicateUpdatesMembersInPlace(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, Config{})
	s.monthly("Netflix", "2024-01-03", 3, 1549, "Streaming")
	s.monthly("Hulu", "2024-01-05", 3, 799, "Streaming")
	s.monthly("Disney+", "2024-01-07", 3, 1399, "Streaming")
	s.run("2024-03-20")
	before := s.openAlerts(repository.AlertDuplicate)
	require.Len(t, before, 1)

	sub := s.sub("Hulu")
	require.NoError(t, ApplyAction(&sub, ActionExclude, date("2024-03-21")))
	s.setSub(sub)

	plan := s.run("2024-03-22")
	after := s.openAlerts(repository.AlertDuplicate)
	require.Len(t, after, 1)
	require.Equal(t, before[0].ID, after[0].ID)
	require.Equal(t, 1, plan.Report.AlertsUpdated)
	require.Equal(t, []string{"Disney+", "Netflix"}, decoded[DuplicatePayload](t, after[0]).Merchants)
}

func TestDuplicateSeesPreRunStatuses(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, Config{})
	s.monthly("Netflix", "2024-01-03", 4, 1549, "Streaming")
	s.monthly("Hulu", "2024-01-05", 3, 799, "Streaming")

	plan := s.run("2024-05-01")
	require.Equal(t, repository.StatusZombie, s.sub("Hulu").Status)
	require.Len(t, s.openAlerts(repository.AlertDuplicate), 1)
	require.Empty(t, plan.Report.Failures)

	// A zombie still bills, so the pair is unchanged on the next run.
	again := s.run("2024-05-01")
	require.True(t, again.Changes.Empty())
	require.Len(t, s.openAlerts(repository.AlertDuplicate), 1)

	// Hulu auto-cancels; this run still plans against the pre-run zombie.
	cancelled := s.run("2024-06-10")
	require.Equal(t, repository.StatusCancelled, s.sub("Hulu").Status)
	require.Empty(t, cancelled.Changes.UpdatedAlerts)
	require.Len(t, s.openAlerts(repository.AlertDuplicate), 1)

	dissolved := s.run("2024-06-10")
	require.Equal(t, 1, dissolved.Report.AlertsResolved)
	require.Empty(t, s.openAlerts(repository.AlertDuplicate))
	require.True(t, s.run("2024-06-10").Changes.Empty())
}

func TestDuplicateAllowList(t *testing.T) {
	t.Parallel()
	cfg := Config{Duplicate: DuplicateConfig{Categories: []string{"streaming"}}}
	s := newMemStore(t, cfg)
	s.monthly("Dropbox", "2024-01-09", 3, 1199, "Software")
	s.monthly("iCloud", "2024-01-11", 3, 299, "Software")
	s.run("2024-03-20")
	require.Empty(t, s.openAlerts(repository.AlertDuplicate))
}
