package detection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/wastewatch/internal/database/repository"
)

func TestApplyAction(t *testing.T) {
	t.Parallel()
	now := date("2024-06-01")
	base := repository.Subscription{ID: "s", Merchant: "Gym", LastSeen: date("2024-04-01"), Status: repository.StatusZombie}

	ack := base
	require.NoError(t, ApplyAction(&ack, ActionAcknowledge, now))
	require.Equal(t, repository.StatusActive, ack.Status)
	require.True(t, ack.UserAcknowledged)
	require.Equal(t, now, *ack.AcknowledgedAt)

	cancelled := base
	require.NoError(t, ApplyAction(&cancelled, ActionCancel, now))
	require.Equal(t, repository.StatusCancelled, cancelled.Status)
	require.Equal(t, repository.CancelReasonUser, *cancelled.CancelReason)
	require.Equal(t, base.LastSeen, *cancelled.CancelledLastSeen)

	require.ErrorIs(t, ApplyAction(&cancelled, ActionAcknowledge, now), ErrInvalidTransition)
	require.ErrorIs(t, ApplyAction(&cancelled, ActionCancel, now), ErrInvalidTransition)

	excluded := cancelled
	require.NoError(t, ApplyAction(&excluded, ActionExclude, now))
	require.ErrorIs(t, ApplyAction(&excluded, ActionExclude, now), ErrInvalidTransition)

	require.NoError(t, ApplyAction(&excluded, ActionReset, now))
	require.Equal(t, repository.StatusActive, excluded.Status)
	require.Nil(t, excluded.CancelReason)
	require.Nil(t, excluded.CancelledLastSeen)
	require.False(t, excluded.UserAcknowledged)
}

func TestCanTransition(t *testing.T) {
	t.Parallel()
	require.True(t, CanTransition(repository.StatusActive, repository.StatusZombie))
	require.True(t, CanTransition(repository.StatusCancelled, repository.StatusActive))
	require.False(t, CanTransition(repository.StatusExcluded, repository.StatusActive))
	require.False(t, CanTransition(repository.StatusActive, repository.StatusExcluded))
	require.False(t, CanTransition(repository.StatusCancelled, repository.StatusZombie))
}

func TestParseAction(t *testing.T) {
	t.Parallel()
	a, err := ParseAction("exclude")
	require.NoError(t, err)
	require.Equal(t, ActionExclude, a)
	_, err = ParseAction("delete")
	require.Error(t, err)
}

func TestPayloadRoundTripThroughType(t *testing.T) {
	t.Parallel()
	p := ResumePayload{Merchant: "Gym", CancelReason: "auto", ResumedOn: "2024-07-05", AmountCents: 4500}
	raw, err := EncodePayload(p)
	require.NoError(t, err)
	got, err := DecodePayload(repository.AlertResume, raw)
	require.NoError(t, err)
	require.Equal(t, p, got)

	_, err = DecodePayload("unknown", raw)
	require.Error(t, err)
	require.Equal(t, "-$1.50", FormatCents(-150))
}

func TestSummarizeCosts(t *testing.T) {
	t.Parallel()
	weekly, monthly, yearly := repository.FrequencyWeekly, repository.FrequencyMonthly, repository.FrequencyYearly
	subs := []repository.Subscription{
		{AmountCents: 1200, Frequency: &weekly, Status: repository.StatusActive, Category: "Food"},
		{AmountCents: 1549, Frequency: &monthly, Status: repository.StatusZombie, Category: "Streaming"},
		{AmountCents: 12000, Frequency: &yearly, Status: repository.StatusActive, Category: "Software"},
		{AmountCents: 999, Frequency: &monthly, Status: repository.StatusCancelled, Category: "Streaming"},
		{AmountCents: 500, Status: repository.StatusActive},
	}
	sum := SummarizeCosts(subs)
	require.Equal(t, 3, sum.Billing)
	require.Equal(t, 1, sum.UnknownCadence)
	require.Equal(t, int64(5200+1549+1000), sum.MonthlyCents)
	require.Equal(t, int64(1549), sum.ByCategory["Streaming"])
}
