package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
)

func TestAcknowledgeDismissesZombieAlert(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.record(t, monthly("2024-03-01", 3, "-45.00", "Gym", "Fitness")...)
	r := e.run(t, "2024-07-20")
	require.Len(t, r.Transitions, 1)
	require.Len(t, e.openAlerts(t, repository.AlertZombie), 1)

	gym := e.subscription(t, "Gym")
	require.Equal(t, repository.StatusZombie, gym.Status)

	e.now = date("2024-07-21")
	acked, err := e.subs.Acknowledge(e.ctx, gym.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusActive, acked.Status)
	require.Equal(t, gym.Revision+1, acked.Revision)
	require.Empty(t, e.openAlerts(t, repository.AlertZombie))

	stored, err := e.subs.Get(e.ctx, gym.ID)
	require.NoError(t, err)
	require.Equal(t, acked.Revision, stored.Revision)
	require.True(t, stored.UserAcknowledged)
	require.Equal(t, "2024-07-21", stored.AcknowledgedAt.Format("2006-01-02"))
}

func TestResetLiftsDismissedSuppression(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.record(t, monthly("2024-03-01", 3, "-45.00", "Gym", "Fitness")...)
	e.run(t, "2024-07-20")
	zombies := e.openAlerts(t, repository.AlertZombie)
	require.Len(t, zombies, 1)
	require.NoError(t, e.alerts.Dismiss(e.ctx, zombies[0].ID))

	r := e.run(t, "2024-07-20")
	require.Equal(t, 1, r.AlertsSuppressed)
	require.Empty(t, e.openAlerts(t, repository.AlertZombie))

	gym := e.subscription(t, "Gym")
	reset, err := e.subs.Reset(e.ctx, gym.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusActive, reset.Status)

	r = e.run(t, "2024-07-20")
	require.Zero(t, r.AlertsSuppressed)
	require.Equal(t, repository.StatusZombie, e.subscription(t, "Gym").Status)
	require.Len(t, e.openAlerts(t, repository.AlertZombie), 1)
}

func TestSubscriptionActions(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.record(t, monthly("2024-03-01", 3, "-45.00", "Gym", "Fitness")...)
	e.run(t, "2024-05-10")
	gym := e.subscription(t, "Gym")

	cancelled, err := e.subs.Cancel(e.ctx, gym.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusCancelled, cancelled.Status)
	require.Equal(t, repository.CancelReasonUser, *cancelled.CancelReason)

	_, err = e.subs.Cancel(e.ctx, gym.ID)
	require.True(t, errors.Is(err, detection.ErrInvalidTransition))

	excluded, err := e.subs.Exclude(e.ctx, gym.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusExcluded, excluded.Status)

	reset, err := e.subs.Reset(e.ctx, gym.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusActive, reset.Status)
	require.Nil(t, reset.CancelReason)

	_, err = e.subs.Acknowledge(e.ctx, "missing")
	require.True(t, errors.Is(err, ErrNotFound))
	_, err = e.subs.Get(e.ctx, "missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestCostsCountBillingSubscriptions(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.record(t, monthly("2024-03-01", 3, "-45.00", "Gym", "Fitness")...)
	e.record(t, monthly("2024-03-03", 3, "-15.49", "Netflix", "Streaming")...)
	e.run(t, "2024-05-10")

	sum, err := e.subs.Costs(e.ctx, repository.SubscriptionFilters{})
	require.NoError(t, err)
	require.Equal(t, 2, sum.Billing)
	require.Equal(t, int64(6049), sum.MonthlyCents)
	require.Equal(t, int64(6049*12), sum.YearlyCents)

	_, err = e.subs.Exclude(e.ctx, e.subscription(t, "Gym").ID)
	require.NoError(t, err)
	sum, err = e.subs.Costs(e.ctx, repository.SubscriptionFilters{})
	require.NoError(t, err)
	require.Equal(t, int64(1549), sum.MonthlyCents)
	require.Equal(t, map[string]int64{"Streaming": 1549}, sum.ByCategory)
}
