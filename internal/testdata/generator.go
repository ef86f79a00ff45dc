package testdata

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jask/wastewatch/internal/service"
)

// Dataset is a generated ledger plus the receipts that go with it.
type Dataset struct {
	Entries  []service.Entry
	Receipts []service.ReceiptInput
}

const (
	checking = "Everyday Checking"
	credit   = "Rewards Card"
)

var groceries = []string{"Woolworths", "Coles", "Aldi", "Harris Farm", "IGA"}

// Generate builds months of history ending the day before end. The same seed
// always yields the same dataset. The ledger contains a price rise (Netflix),
// a series that went quiet (Gym), two overlapping streaming services, a
// grocery spike in the final month and a restaurant charge whose receipt
// implies a large tip.
func Generate(seed int64, end time.Time, months int) Dataset {
	if months < 4 {
		months = 4
	}
	rng := rand.New(rand.NewSource(seed))
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, -months, 0)

	var d Dataset
	add := func(account string, day time.Time, cents int64, merchant, category string, tags ...string) {
		if !day.Before(end) {
			return
		}
		d.Entries = append(d.Entries, service.Entry{
			Account:     account,
			ExternalID:  fmt.Sprintf("gen-%d-%d", seed, len(d.Entries)),
			Date:        day.Format(time.DateOnly),
			PostedDate:  day.AddDate(0, 0, rng.Intn(3)).Format(time.DateOnly),
			Amount:      centsToDollars(-cents),
			Description: fmt.Sprintf("%s %04d", merchant, rng.Intn(10000)),
			Merchant:    merchant,
			Category:    category,
			Tags:        tags,
		})
	}

	for m := 0; m < months; m++ {
		month := start.AddDate(0, m, 0)
		last := m == months-1

		netflix := int64(1549)
		if last {
			netflix = 1799
		}
		add(credit, month.AddDate(0, 0, 2), netflix, "Netflix", "Streaming")
		add(credit, month.AddDate(0, 0, 5), 1199, "Spotify", "Streaming")
		add(credit, month.AddDate(0, 0, 9), 1399, "Stan", "Streaming")
		add(checking, month.AddDate(0, 0, 1), 180000, "Landlord", "Rent")
		if m < months-3 {
			add(checking, month.AddDate(0, 0, 14), 4500, "Gym", "Fitness")
		}

		visits := 4 + rng.Intn(3)
		spend := int64(1)
		if last {
			spend = 3
		}
		for v := 0; v < visits; v++ {
			store := groceries[rng.Intn(len(groceries))]
			day := month.AddDate(0, 0, rng.Intn(27))
			add(checking, day, spend*int64(4000+rng.Intn(8000)), fmt.Sprintf("%s %s", store, day.Format("Jan02")), "Groceries", "household")
		}
	}

	// yearly domain renewal falls inside the window
	add(credit, start.AddDate(0, 1, 20), 2400, "Namecheap", "Software")

	dinner := end.AddDate(0, 0, -6)
	add(credit, dinner, 5600, "Luigi's Trattoria", "Dining")
	d.Receipts = append(d.Receipts, service.ReceiptInput{
		Merchant:   "LUIGIS TRATTORIA",
		Date:       dinner,
		TotalCents: 4000,
		Source:     "generated",
	})
	return d
}

func centsToDollars(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
