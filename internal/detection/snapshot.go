package detection

import (
	"sort"

	"github.com/jask/wastewatch/internal/database/repository"
)

// Snapshot is the state a run reads. It is taken once at run start; detectors
// never observe each other's writes.
type Snapshot struct {
	// Scope is the account id the run covers, or "" for all accounts.
	Scope         string
	Transactions  []repository.Transaction
	Subscriptions []repository.Subscription
	Alerts        []repository.Alert
	Receipts      []repository.ConfirmedReceipt
}

// SeriesKey identifies a recurring-charge series. AccountID is "" when series
// are grouped across accounts.
type SeriesKey struct {
	Merchant  string
	AccountID string
}

func subscriptionKey(s repository.Subscription) SeriesKey {
	k := SeriesKey{Merchant: s.Merchant}
	if s.AccountID != nil {
		k.AccountID = *s.AccountID
	}
	return k
}

// Occurrence is one charge of a series. AmountCents is a positive magnitude.
type Occurrence struct {
	TransactionID string
	Day           Day
	AmountCents   int64
	Category      string
}

// Series is the ordered charge history of one merchant (per account).
type Series struct {
	Key         SeriesKey
	Occurrences []Occurrence
	Frequency   *repository.Frequency
}

// Latest returns the most recent occurrence; ties on the same day resolve to
// the highest transaction id.
func (s *Series) Latest() Occurrence { return s.Occurrences[len(s.Occurrences)-1] }

func (s *Series) sortOccurrences() {
	sort.Slice(s.Occurrences, func(i, j int) bool {
		a, b := s.Occurrences[i], s.Occurrences[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.TransactionID < b.TransactionID
	})
}

// RunContext carries everything one run needs through every stage.
type RunContext struct {
	AsOf   Day
	Scope  string
	Config Config

	// Subscriptions are the mined working copies with their pre-run status,
	// ordered by merchant then id. Detectors must treat them as read-only.
	Subscriptions []repository.Subscription
	Transactions  []repository.Transaction
	Receipts      []repository.ConfirmedReceipt

	series       map[string]*Series
	transactions map[string]int
	subs         map[string]int
}

func newRunContext(cfg Config, scope string, asOf Day, txns []repository.Transaction, receipts []repository.ConfirmedReceipt) *RunContext {
	rc := &RunContext{
		AsOf:         asOf,
		Scope:        scope,
		Config:       cfg,
		Transactions: txns,
		Receipts:     receipts,
		series:       make(map[string]*Series),
		transactions: make(map[string]int, len(txns)),
		subs:         make(map[string]int),
	}
	for i, t := range txns {
		rc.transactions[t.ID] = i
	}
	return rc
}

func (rc *RunContext) setSubscriptions(subs []repository.Subscription, series map[string]*Series) {
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Merchant != subs[j].Merchant {
			return subs[i].Merchant < subs[j].Merchant
		}
		return subs[i].ID < subs[j].ID
	})
	rc.Subscriptions = subs
	rc.series = series
	for i, s := range subs {
		rc.subs[s.ID] = i
	}
}

// SeriesFor returns the series mined for a subscription in this run, or nil.
func (rc *RunContext) SeriesFor(subscriptionID string) *Series { return rc.series[subscriptionID] }

// Transaction looks up an in-scope transaction.
func (rc *RunContext) Transaction(id string) (repository.Transaction, bool) {
	i, ok := rc.transactions[id]
	if !ok {
		return repository.Transaction{}, false
	}
	return rc.Transactions[i], true
}

// Subscription looks up an in-scope subscription.
func (rc *RunContext) Subscription(id string) (repository.Subscription, bool) {
	i, ok := rc.subs[id]
	if !ok {
		return repository.Subscription{}, false
	}
	return rc.Subscriptions[i], true
}

// owns reports whether an alert belongs to the part of the ledger this run saw.
func (rc *RunContext) owns(a repository.Alert) bool {
	switch {
	case a.SubscriptionID != nil:
		_, ok := rc.subs[*a.SubscriptionID]
		return ok
	case a.TransactionID != nil:
		_, ok := rc.transactions[*a.TransactionID]
		return ok
	default:
		return a.Scope == rc.Scope
	}
}
