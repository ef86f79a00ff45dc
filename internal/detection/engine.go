package detection

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jask/wastewatch/internal/database/repository"
)

// ErrGroupedScope is returned when a single-account run is requested while
// series are grouped across accounts.
var ErrGroupedScope = errors.New("account-scoped runs are unavailable when grouping across accounts")

// Engine runs the miner, classifier, detectors and alert lifecycle over a snapshot.
// It performs no I/O; the caller persists the resulting Changeset.
type Engine struct {
	cfg       Config
	detectors []Detector
	now       func() time.Time
	newID     func() string
}

type Option func(*Engine)

// WithClock overrides the wall clock used for created/updated stamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithIDs overrides id generation for new rows.
func WithIDs(newID func() string) Option { return func(e *Engine) { e.newID = newID } }

// WithDetectors replaces the detector battery.
func WithDetectors(ds ...Detector) Option { return func(e *Engine) { e.detectors = ds } }

func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg.withDefaults(),
		detectors: DefaultDetectors(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// StatusChange records one transition made during a run.
type StatusChange struct {
	SubscriptionID string                        `json:"subscription_id"`
	Merchant       string                        `json:"merchant"`
	From           repository.SubscriptionStatus `json:"from"`
	To             repository.SubscriptionStatus `json:"to"`
	Detector       repository.AlertType          `json:"detector"`
}

// Failure is a detector that errored or panicked. Its findings were discarded.
type Failure struct {
	Detector repository.AlertType `json:"detector"`
	Error    string               `json:"error"`
}

// Report summarizes a run.
type Report struct {
	Scope                string         `json:"scope"`
	AsOf                 string         `json:"as_of"`
	Transactions         int            `json:"transactions"`
	Skipped              int            `json:"skipped"`
	Series               int            `json:"series"`
	NewSubscriptions     int            `json:"new_subscriptions"`
	UpdatedSubscriptions int            `json:"updated_subscriptions"`
	Transitions          []StatusChange `json:"transitions,omitempty"`
	AlertsCreated        int            `json:"alerts_created"`
	AlertsUpdated        int            `json:"alerts_updated"`
	AlertsResolved       int            `json:"alerts_resolved"`
	AlertsSuppressed     int            `json:"alerts_suppressed"`
	Conflicts            []string       `json:"conflicts,omitempty"`
	Failures             []Failure      `json:"failures,omitempty"`
}

// Partial reports whether some detectors failed.
func (r Report) Partial() bool { return len(r.Failures) > 0 }

func (r *Report) recount(c Changeset) {
	r.NewSubscriptions = len(c.NewSubscriptions)
	r.UpdatedSubscriptions = len(c.Updates)
	r.AlertsCreated = len(c.NewAlerts)
	r.AlertsUpdated = len(c.UpdatedAlerts)
	r.AlertsResolved = len(c.ResolvedAlerts)
}

// Plan is the result of a run before persistence.
type Plan struct {
	Changes Changeset
	Report  Report
}

// DropConflicts removes writes for subscriptions a user changed after the
// snapshot was taken and records them in the report.
func (p *Plan) DropConflicts(conflicted map[string]bool) {
	if len(conflicted) == 0 {
		return
	}
	p.Changes = p.Changes.WithoutSubscriptions(conflicted)
	var kept []StatusChange
	for _, t := range p.Report.Transitions {
		if !conflicted[t.SubscriptionID] {
			kept = append(kept, t)
		}
	}
	p.Report.Transitions = kept
	for id := range conflicted {
		p.Report.Conflicts = append(p.Report.Conflicts, id)
	}
	sort.Strings(p.Report.Conflicts)
	p.Report.recount(p.Changes)
}

// Plan computes the changes for one run over snap as of the given date.
func (e *Engine) Plan(snap Snapshot, asOf time.Time) (*Plan, error) {
	cfg := e.cfg
	if cfg.GroupAcrossAccounts && snap.Scope != "" {
		return nil, ErrGroupedScope
	}
	now := e.now().UTC()
	asOfDay := DayOf(asOf)

	txns, skipped := usableTransactions(snap)
	series, noMerchant := mineSeries(txns, cfg.GroupAcrossAccounts)
	existing := scopedSubscriptions(snap, cfg.GroupAcrossAccounts)
	working, bySub, created := refreshSubscriptions(series, existing, now, e.newID)

	original := make(map[string]repository.Subscription, len(existing))
	for _, s := range existing {
		original[s.ID] = s
	}
	workingByID := make(map[string]*repository.Subscription, len(working))
	for i := range working {
		workingByID[working[i].ID] = &working[i]
	}

	rc := newRunContext(cfg, snap.Scope, asOfDay, txns, snap.Receipts)
	view := make([]repository.Subscription, len(working))
	copy(view, working)
	rc.setSubscriptions(view, bySub)

	report := Report{
		Scope:        snap.Scope,
		AsOf:         asOfDay.String(),
		Transactions: len(txns),
		Skipped:      skipped + noMerchant,
		Series:       len(series),
	}

	completed := make(map[repository.AlertType]bool, len(e.detectors))
	var drafts []Draft
	for _, d := range e.detectors {
		findings, err := runDetector(d, rc)
		if err == nil {
			err = checkTransitions(findings.Transitions, workingByID)
		}
		if err != nil {
			report.Failures = append(report.Failures, Failure{Detector: d.Type(), Error: err.Error()})
			continue
		}
		completed[d.Type()] = true
		for _, t := range findings.Transitions {
			sub := workingByID[t.SubscriptionID]
			report.Transitions = append(report.Transitions, StatusChange{
				SubscriptionID: sub.ID, Merchant: sub.Merchant, From: sub.Status, To: t.To, Detector: d.Type(),
			})
			t.apply(sub)
		}
		drafts = append(drafts, findings.Drafts...)
	}

	alerts, err := reconcileAlerts(rc, drafts, snap.Alerts, completed, now, e.newID)
	if err != nil {
		return nil, fmt.Errorf("reconcile alerts: %w", err)
	}

	cs := Changeset{
		Guards:         make(map[string]int64),
		NewAlerts:      alerts.Inserts,
		UpdatedAlerts:  alerts.Updates,
		ResolvedAlerts: alerts.Resolves,
	}
	for _, s := range working {
		if created[s.ID] {
			s.UpdatedAt = now
			cs.NewSubscriptions = append(cs.NewSubscriptions, s)
			continue
		}
		orig := original[s.ID]
		if !subscriptionChanged(orig, s) {
			continue
		}
		s.UpdatedAt = now
		cs.Updates = append(cs.Updates, SubscriptionUpdate{Subscription: s, ExpectedRevision: orig.Revision})
		cs.Guards[s.ID] = orig.Revision
	}
	for _, group := range [][]repository.Alert{cs.NewAlerts, cs.UpdatedAlerts, cs.ResolvedAlerts} {
		for _, a := range group {
			if a.SubscriptionID == nil {
				continue
			}
			if orig, ok := original[*a.SubscriptionID]; ok {
				cs.Guards[orig.ID] = orig.Revision
			}
		}
	}

	report.AlertsSuppressed = alerts.Suppressed
	report.recount(cs)
	return &Plan{Changes: cs, Report: report}, nil
}

func runDetector(d Detector, rc *RunContext) (f Findings, err error) {
	defer func() {
		if r := recover(); r != nil {
			f = Findings{}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Detect(rc)
}

func checkTransitions(ts []Transition, subs map[string]*repository.Subscription) error {
	seen := make(map[string]bool, len(ts))
	for _, t := range ts {
		sub, ok := subs[t.SubscriptionID]
		if !ok {
			return fmt.Errorf("transition for unknown subscription %s", t.SubscriptionID)
		}
		if seen[t.SubscriptionID] {
			return fmt.Errorf("subscription %s transitioned twice", t.SubscriptionID)
		}
		seen[t.SubscriptionID] = true
		if !CanTransition(sub.Status, t.To) {
			return fmt.Errorf("%s -> %s for %s: %w", sub.Status, t.To, sub.ID, ErrInvalidTransition)
		}
	}
	return nil
}

// usableTransactions drops archived rows and counts undated ones as skipped.
func usableTransactions(snap Snapshot) ([]repository.Transaction, int) {
	out := make([]repository.Transaction, 0, len(snap.Transactions))
	skipped := 0
	for _, t := range snap.Transactions {
		if t.Archived {
			continue
		}
		if snap.Scope != "" && t.AccountID != snap.Scope {
			continue
		}
		if t.Date.IsZero() {
			skipped++
			continue
		}
		out = append(out, t)
	}
	return out, skipped
}

// scopedSubscriptions keeps the subscriptions that belong to this run's grouping and scope.
func scopedSubscriptions(snap Snapshot, grouped bool) []repository.Subscription {
	var out []repository.Subscription
	for _, s := range snap.Subscriptions {
		if grouped != (s.AccountID == nil) {
			continue
		}
		if snap.Scope != "" && (s.AccountID == nil || *s.AccountID != snap.Scope) {
			continue
		}
		out = append(out, s)
	}
	return out
}
