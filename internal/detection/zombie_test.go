package detection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/wastewatch/internal/database/repository"
)

func TestZombieThreshold(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		asOf   string
		zombie bool
	}{
		{"40 days is within threshold", "2024-05-11", false},
		{"exactly 45 days is within threshold", "2024-05-16", false},
		{"50 days lapsed", "2024-05-21", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newMemStore(t, Config{})
			s.monthly("Hulu", "2024-01-01", 4, 799, "Streaming")
			plan := s.run(tc.asOf)
			require.Empty(t, plan.Report.Failures)
			sub := s.sub("Hulu")
			if !tc.zombie {
				require.Equal(t, repository.StatusActive, sub.Status)
				require.Empty(t, s.openAlerts(repository.AlertZombie))
				return
			}
			require.Equal(t, repository.StatusZombie, sub.Status)
			alerts := s.openAlerts(repository.AlertZombie)
			require.Len(t, alerts, 1)
			p := decoded[ZombiePayload](t, alerts[0])
			require.Equal(t, 50, p.DaysSilent)
			require.Equal(t, "2024-04-01", p.LastSeen)
			require.Equal(t, sub.ID, *alerts[0].SubscriptionID)
		})
	}
}

func TestZombieAcknowledgementPrecedence(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, Config{})
	s.monthly("Gym", "2024-01-01", 4, 4500, "Fitness")

	// Day 50 after the last charge: flagged.
	s.run("2024-05-21")
	sub := s.sub("Gym")
	require.Equal(t, repository.StatusZombie, sub.Status)
	first := s.openAlerts(repository.AlertZombie)
	require.Len(t, first, 1)

	// The user acknowledges at day 50.
	require.NoError(t, ApplyAction(&sub, ActionAcknowledge, date("2024-05-21")))
	s.setSub(sub)
	s.dismiss(first[0].ID)

	// Day 60, no new charge: not re-flagged.
	plan := s.run("2024-05-31")
	require.Equal(t, repository.StatusActive, s.sub("Gym").Status)
	require.True(t, s.sub("Gym").UserAcknowledged)
	require.Empty(t, s.openAlerts(repository.AlertZombie))
	require.Zero(t, plan.Report.AlertsSuppressed)

	// A full missed cycle after the acknowledgement: flagged again under a new key.
	s.run("2024-07-06")
	require.Equal(t, repository.StatusZombie, s.sub("Gym").Status)
	again := s.openAlerts(repository.AlertZombie)
	require.Len(t, again, 1)
	require.NotEqual(t, first[0].DedupKey, again[0].DedupKey)
	require.Equal(t, "2024-05-21", decoded[ZombiePayload](t, again[0]).ReferenceDate)

	// Same day again: nothing changes.
	plan = s.run("2024-07-06")
	require.True(t, plan.Changes.Empty())
}

func TestZombieRecoversOnNewCharge(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, Config{})
	s.monthly("Hulu", "2024-01-01", 4, 799, "Streaming")
	s.run("2024-05-21")
	require.Equal(t, repository.StatusZombie, s.sub("Hulu").Status)

	s.charge("Hulu", "2024-05-25", 799, "Streaming")
	plan := s.run("2024-05-26")
	require.Equal(t, repository.StatusActive, s.sub("Hulu").Status)
	require.Empty(t, s.openAlerts(repository.AlertZombie))
	require.Equal(t, 1, plan.Report.AlertsResolved)
	require.Len(t, plan.Report.Transitions, 1)
	require.Equal(t, repository.StatusZombie, plan.Report.Transitions[0].From)
}

func TestZombieSkipsUnknownCadence(t *testing.T) {
	t.Parallel()
	s := newMemStore(t, Config{})
	s.charge("Ebay", "2024-01-01", 2000, "Shopping")
	s.charge("Ebay", "2024-01-20", 2000, "Shopping")
	s.charge("Ebay", "2024-04-01", 2000, "Shopping")
	s.run("2024-09-01")
	sub := s.sub("Ebay")
	require.Nil(t, sub.Frequency)
	require.Equal(t, repository.StatusActive, sub.Status)
	require.Empty(t, s.snapshot.Alerts)
}
