package detection

import (
	"sort"
	"strings"
	"time"

	"github.com/jask/wastewatch/internal/database/repository"
)

// mineSeries groups expenses into charge series by merchant (and account unless
// grouped). Rows without a merchant are counted as skipped.
func mineSeries(txns []repository.Transaction, grouped bool) ([]*Series, int) {
	skipped := 0
	byKey := make(map[SeriesKey]*Series)
	for _, t := range txns {
		if t.AmountCents >= 0 {
			continue
		}
		merchant := strings.TrimSpace(t.Merchant())
		if merchant == "" {
			skipped++
			continue
		}
		key := SeriesKey{Merchant: merchant}
		if !grouped {
			key.AccountID = t.AccountID
		}
		s, ok := byKey[key]
		if !ok {
			s = &Series{Key: key}
			byKey[key] = s
		}
		s.Occurrences = append(s.Occurrences, Occurrence{
			TransactionID: t.ID,
			Day:           DayOf(t.Date),
			AmountCents:   -t.AmountCents,
			Category:      t.CategoryName,
		})
	}

	out := make([]*Series, 0, len(byKey))
	for _, s := range byKey {
		if len(s.Occurrences) < 2 {
			continue
		}
		s.sortOccurrences()
		days := make([]Day, len(s.Occurrences))
		for i, o := range s.Occurrences {
			days[i] = o.Day
		}
		s.Frequency = Classify(days)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Merchant != out[j].Key.Merchant {
			return out[i].Key.Merchant < out[j].Key.Merchant
		}
		return out[i].Key.AccountID < out[j].Key.AccountID
	})
	return out, skipped
}

// dominantCategory picks the most frequent non-empty category; ties go to the
// category seen most recently.
func dominantCategory(occ []Occurrence) string {
	counts := make(map[string]int)
	lastSeen := make(map[string]int)
	for i, o := range occ {
		if o.Category == "" {
			continue
		}
		counts[o.Category]++
		lastSeen[o.Category] = i
	}
	best := ""
	for cat, n := range counts {
		switch {
		case best == "":
			best = cat
		case n > counts[best]:
			best = cat
		case n == counts[best] && lastSeen[cat] > lastSeen[best]:
			best = cat
		}
	}
	return best
}

// refreshSubscriptions creates or refreshes one subscription per series. Existing
// rows without a series this run are carried unchanged; rows are never deleted.
func refreshSubscriptions(series []*Series, existing []repository.Subscription, now time.Time, newID func() string) ([]repository.Subscription, map[string]*Series, map[string]bool) {
	byKey := make(map[SeriesKey]int, len(existing))
	working := make([]repository.Subscription, len(existing))
	copy(working, existing)
	for i, s := range working {
		byKey[subscriptionKey(s)] = i
	}

	bySub := make(map[string]*Series, len(series))
	created := make(map[string]bool)
	for _, s := range series {
		latest := s.Latest()
		i, ok := byKey[s.Key]
		if !ok {
			sub := repository.Subscription{
				ID:        newID(),
				Merchant:  s.Key.Merchant,
				FirstSeen: s.Occurrences[0].Day.Time(),
				Status:    repository.StatusActive,
				Revision:  1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if s.Key.AccountID != "" {
				acct := s.Key.AccountID
				sub.AccountID = &acct
			}
			working = append(working, sub)
			i = len(working) - 1
			byKey[s.Key] = i
			created[sub.ID] = true
		}
		sub := &working[i]
		sub.AmountCents = latest.AmountCents
		sub.LastSeen = latest.Day.Time()
		sub.Frequency = s.Frequency
		sub.Category = dominantCategory(s.Occurrences)
		bySub[sub.ID] = s
	}
	return working, bySub, created
}
