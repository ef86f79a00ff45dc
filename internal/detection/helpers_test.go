package detection

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/wastewatch/internal/database/repository"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// memStore applies plans in memory the way the detection service does in SQL.
type memStore struct {
	t        *testing.T
	snapshot Snapshot
	txSeq    int
	idSeq    int
	engine   *Engine
}

func newMemStore(t *testing.T, cfg Config) *memStore {
	s := &memStore{t: t}
	s.engine = NewEngine(cfg,
		WithClock(func() time.Time { return date("2030-01-01") }),
		WithIDs(func() string {
			s.idSeq++
			return fmt.Sprintf("id-%03d", s.idSeq)
		}),
	)
	return s
}

func (s *memStore) charge(merchant, day string, cents int64, category string, tags ...string) string {
	s.txSeq++
	id := fmt.Sprintf("tx-%04d", s.txSeq)
	m := merchant
	t := repository.Transaction{
		ID:           id,
		AccountID:    "acct-1",
		Date:         date(day),
		AmountCents:  -cents,
		MerchantName: &m,
		CategoryName: category,
		Status:       "posted",
	}
	for _, tag := range tags {
		t.Tags = append(t.Tags, repository.Tag{ID: "tag-" + tag, Name: tag})
	}
	s.snapshot.Transactions = append(s.snapshot.Transactions, t)
	return id
}

// monthly adds n charges on the same day of consecutive months starting at first.
func (s *memStore) monthly(merchant, first string, n int, cents int64, category string) {
	start := date(first)
	for i := 0; i < n; i++ {
		s.charge(merchant, start.AddDate(0, i, 0).Format(time.DateOnly), cents, category)
	}
}

func (s *memStore) run(asOf string) *Plan {
	s.t.Helper()
	plan, err := s.engine.Plan(s.snapshot, date(asOf))
	require.NoError(s.t, err)
	s.apply(plan.Changes)
	return plan
}

func (s *memStore) apply(c Changeset) {
	s.snapshot.Subscriptions = append(s.snapshot.Subscriptions, c.NewSubscriptions...)
	for _, u := range c.Updates {
		for i := range s.snapshot.Subscriptions {
			if s.snapshot.Subscriptions[i].ID == u.Subscription.ID {
				require.Equal(s.t, u.ExpectedRevision, s.snapshot.Subscriptions[i].Revision)
				next := u.Subscription
				next.Revision = u.ExpectedRevision + 1
				s.snapshot.Subscriptions[i] = next
			}
		}
	}
	s.snapshot.Alerts = append(s.snapshot.Alerts, c.NewAlerts...)
	for _, group := range [][]repository.Alert{c.UpdatedAlerts, c.ResolvedAlerts} {
		for _, a := range group {
			for i := range s.snapshot.Alerts {
				if s.snapshot.Alerts[i].ID == a.ID {
					s.snapshot.Alerts[i] = a
				}
			}
		}
	}
	open := make(map[string]bool)
	for _, a := range s.snapshot.Alerts {
		if a.Open() {
			require.False(s.t, open[a.DedupKey], "two open alerts for %s", a.DedupKey)
			open[a.DedupKey] = true
		}
	}
}

func (s *memStore) sub(merchant string) repository.Subscription {
	s.t.Helper()
	for _, sub := range s.snapshot.Subscriptions {
		if sub.Merchant == merchant {
			return sub
		}
	}
	s.t.Fatalf("no subscription for %s", merchant)
	return repository.Subscription{}
}

func (s *memStore) setSub(sub repository.Subscription) {
	for i := range s.snapshot.Subscriptions {
		if s.snapshot.Subscriptions[i].ID == sub.ID {
			sub.Revision = s.snapshot.Subscriptions[i].Revision + 1
			s.snapshot.Subscriptions[i] = sub
			return
		}
	}
	s.t.Fatalf("unknown subscription %s", sub.ID)
}

func (s *memStore) openAlerts(t repository.AlertType) []repository.Alert {
	var out []repository.Alert
	for _, a := range s.snapshot.Alerts {
		if a.Type == t && a.Open() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DedupKey < out[j].DedupKey })
	return out
}

func (s *memStore) dismiss(id string) {
	for i := range s.snapshot.Alerts {
		if s.snapshot.Alerts[i].ID == id {
			at := date("2030-01-01")
			s.snapshot.Alerts[i].Dismissed = true
			s.snapshot.Alerts[i].DismissedAt = &at
		}
	}
}

func decoded[T Payload](t *testing.T, a repository.Alert) T {
	t.Helper()
	p, err := DecodePayload(a.Type, a.Payload)
	require.NoError(t, err)
	v, ok := p.(T)
	require.True(t, ok, "payload is %T", p)
	return v
}
