package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
)

func TestDismissSuppressesAndDeleteReraises(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.record(t, monthly("2024-01-03", 4, "-15.49", "Netflix", "Streaming")...)
	e.record(t, entry("2024-05-03", "-17.99", "Netflix", "Streaming"))
	e.run(t, "2024-05-10")

	open := e.openAlerts(t, repository.AlertPriceIncrease)
	require.Len(t, open, 1)
	id := open[0].ID

	require.NoError(t, e.alerts.Dismiss(e.ctx, id))
	r := e.run(t, "2024-05-11")
	require.Equal(t, 1, r.AlertsSuppressed)
	require.Zero(t, r.AlertsCreated)
	require.Empty(t, e.openAlerts(t, repository.AlertPriceIncrease))

	v, err := e.alerts.Get(e.ctx, id)
	require.NoError(t, err)
	require.True(t, v.Dismissed)
	require.IsType(t, detection.PriceIncreasePayload{}, v.Details)

	require.NoError(t, e.alerts.Delete(e.ctx, id))
	r = e.run(t, "2024-05-12")
	require.Equal(t, 1, r.AlertsCreated)
	require.Len(t, e.openAlerts(t, repository.AlertPriceIncrease), 1)

	require.True(t, errors.Is(e.alerts.Dismiss(e.ctx, "missing"), ErrNotFound))
	require.True(t, errors.Is(e.alerts.Delete(e.ctx, "missing"), ErrNotFound))
	_, err = e.alerts.Get(e.ctx, "missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestAlertListFilters(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.record(t, monthly("2024-01-03", 4, "-15.49", "Netflix", "Streaming")...)
	e.record(t, entry("2024-05-03", "-17.99", "Netflix", "Streaming"))
	e.record(t, monthly("2024-01-05", 5, "-9.99", "Spotify", "Streaming")...)
	e.run(t, "2024-05-10")

	all, err := e.alerts.List(e.ctx, repository.AlertFilters{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	netflix := e.subscription(t, "Netflix")
	mine, err := e.alerts.List(e.ctx, repository.AlertFilters{SubscriptionID: netflix.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, repository.AlertPriceIncrease, mine[0].Type)

	dups := e.openAlerts(t, repository.AlertDuplicate)
	require.Len(t, dups, 1)
	d := dups[0].Details.(detection.DuplicatePayload)
	require.ElementsMatch(t, []string{"Netflix", "Spotify"}, d.Merchants)

	page, err := e.alerts.List(e.ctx, repository.AlertFilters{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
}
