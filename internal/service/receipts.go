package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/database"
	"github.com/jask/wastewatch/internal/database/repository"
)

// ReceiptInput is a parsed receipt ready to store.
type ReceiptInput struct {
	Merchant   string
	Date       time.Time
	TotalCents int64
	Source     string
}

// ReceiptService stores receipts.
type ReceiptService struct {
	DB *sql.DB
}

func (s *ReceiptService) Add(ctx context.Context, in ReceiptInput) (repository.Receipt, error) {
	if strings.TrimSpace(in.Merchant) == "" {
		return repository.Receipt{}, errors.New("receipt merchant required")
	}
	if in.TotalCents <= 0 {
		return repository.Receipt{}, fmt.Errorf("receipt total must be positive, got %d", in.TotalCents)
	}
	rc := repository.Receipt{
		ID:         uuid.NewString(),
		Merchant:   strings.TrimSpace(in.Merchant),
		Date:       time.Date(in.Date.Year(), in.Date.Month(), in.Date.Day(), 0, 0, 0, 0, time.UTC),
		TotalCents: in.TotalCents,
		Source:     in.Source,
	}
	if err := repository.NewReceiptRepo(s.DB).Insert(ctx, rc); err != nil {
		return repository.Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}
	return rc, nil
}

// ReceiptMatcher pairs unmatched receipts with bank expenses. Candidates must
// fall within the date window, be at least the receipt total, and have a
// merchant similar enough to the receipt's. Strong matches are confirmed
// straight away; the rest wait for Decide.
type ReceiptMatcher struct {
	DB                    *sql.DB
	Log                   *zap.Logger
	DateWindowDays        int
	MinSimilarity         float64
	AutoConfirmSimilarity float64
	Now                   func() time.Time
}

type MatchResult struct {
	Proposed      int
	AutoConfirmed int
	Unmatched     int
}

func (m *ReceiptMatcher) MatchPending(ctx context.Context) (MatchResult, error) {
	var res MatchResult
	now := m.now()
	err := database.WithTx(ctx, m.DB, func(tx *sql.Tx) error {
		receipts := repository.NewReceiptRepo(tx)
		txns := repository.NewTransactionRepo(tx)

		pending, err := receipts.Unmatched(ctx)
		if err != nil {
			return fmt.Errorf("list unmatched receipts: %w", err)
		}
		rejected, err := receipts.ListMatches(ctx, repository.MatchRejected)
		if err != nil {
			return fmt.Errorf("list rejected matches: %w", err)
		}
		excluded := make(map[string]bool, len(rejected))
		for _, r := range rejected {
			excluded[r.ReceiptID+"|"+r.TransactionID] = true
		}
		claimed := make(map[string]bool)
		window := m.DateWindowDays
		for _, rc := range pending {
			from := rc.Date.AddDate(0, 0, -window)
			to := rc.Date.AddDate(0, 0, window+1)
			candidates, err := txns.Unmatched(ctx, from, to)
			if err != nil {
				return fmt.Errorf("list candidate transactions: %w", err)
			}
			var open []repository.Transaction
			for _, t := range candidates {
				if !claimed[t.ID] && !excluded[rc.ID+"|"+t.ID] {
					open = append(open, t)
				}
			}
			best, score := m.pick(rc, open)
			if best == nil {
				res.Unmatched++
				continue
			}
			claimed[best.ID] = true
			match := repository.ReceiptMatch{
				ID:            uuid.NewString(),
				ReceiptID:     rc.ID,
				TransactionID: best.ID,
				Similarity:    score,
				Status:        repository.MatchPending,
			}
			if score >= m.AutoConfirmSimilarity {
				match.Status = repository.MatchConfirmed
				match.DecidedAt = &now
				res.AutoConfirmed++
			} else {
				res.Proposed++
			}
			if err := receipts.AddMatch(ctx, match); err != nil {
				return fmt.Errorf("add receipt match: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return MatchResult{}, err
	}
	m.logger().Info("receipt matching",
		zap.Int("proposed", res.Proposed), zap.Int("auto_confirmed", res.AutoConfirmed), zap.Int("unmatched", res.Unmatched))
	return res, nil
}

// Decide confirms or rejects a pending match. A rejected receipt becomes
// eligible for matching again, but never with the same transaction.
func (m *ReceiptMatcher) Decide(ctx context.Context, matchID string, confirm bool) error {
	return database.WithTx(ctx, m.DB, func(tx *sql.Tx) error {
		receipts := repository.NewReceiptRepo(tx)
		match, err := receipts.GetMatch(ctx, matchID)
		if err != nil {
			return fmt.Errorf("get receipt match: %w", err)
		}
		if match == nil {
			return fmt.Errorf("receipt match %s: %w", matchID, ErrNotFound)
		}
		if match.Status != repository.MatchPending {
			return fmt.Errorf("receipt match %s is %s: %w", matchID, match.Status, ErrAlreadyDecided)
		}
		status := repository.MatchRejected
		if confirm {
			status = repository.MatchConfirmed
		}
		if err := receipts.UpdateMatchStatus(ctx, matchID, status, m.now()); err != nil {
			return fmt.Errorf("update receipt match: %w", err)
		}
		return nil
	})
}

// pick returns the most similar eligible candidate, preferring the closest date on ties.
func (m *ReceiptMatcher) pick(rc repository.Receipt, candidates []repository.Transaction) (*repository.Transaction, float64) {
	type scored struct {
		t     repository.Transaction
		score float64
		gap   int
	}
	var eligible []scored
	for _, t := range candidates {
		if -t.AmountCents < rc.TotalCents {
			continue
		}
		name := t.Merchant()
		if name == "" {
			name = t.RawDescription
		}
		score := similarity(rc.Merchant, name)
		if score < m.MinSimilarity {
			continue
		}
		eligible = append(eligible, scored{t: t, score: score, gap: daysApart(rc.Date, t.Date)})
	}
	if len(eligible) == 0 {
		return nil, 0
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].score != eligible[j].score {
			return eligible[i].score > eligible[j].score
		}
		return eligible[i].gap < eligible[j].gap
	})
	return &eligible[0].t, eligible[0].score
}

// similarity is 1 minus the normalized edit distance of the upper-cased
// names. A name that contains the other scores 1.
func similarity(a, b string) float64 {
	a, b = normalizeName(a), normalizeName(b)
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(max(len(a), len(b)))
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

func (m *ReceiptMatcher) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return database.Now()
}

func (m *ReceiptMatcher) logger() *zap.Logger {
	if m.Log == nil {
		return zap.NewNop()
	}
	return m.Log
}
