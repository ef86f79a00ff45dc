package detection

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jask/wastewatch/internal/database/repository"
)

// DuplicateDetector flags categories holding more than one subscription that
// still bills (active or zombie). Unknown cadence does not exclude a member.
type DuplicateDetector struct{}

func (DuplicateDetector) Type() repository.AlertType { return repository.AlertDuplicate }

func (DuplicateDetector) Detect(rc *RunContext) (Findings, error) {
	allowed := make(map[string]bool)
	for _, c := range rc.Config.Duplicate.Categories {
		allowed[strings.ToLower(strings.TrimSpace(c))] = true
	}

	groups := make(map[string][]repository.Subscription)
	for _, sub := range rc.Subscriptions {
		if !stillBilling(sub) || sub.Category == "" {
			continue
		}
		if len(allowed) > 0 && !allowed[strings.ToLower(sub.Category)] {
			continue
		}
		groups[sub.Category] = append(groups[sub.Category], sub)
	}

	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var f Findings
	for _, cat := range categories {
		members := groups[cat]
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if members[i].Merchant != members[j].Merchant {
				return members[i].Merchant < members[j].Merchant
			}
			return members[i].ID < members[j].ID
		})
		p := DuplicatePayload{Category: cat}
		monthly := decimal.Zero
		for _, m := range members {
			p.SubscriptionIDs = append(p.SubscriptionIDs, m.ID)
			p.Merchants = append(p.Merchants, m.Merchant)
			if c, ok := MonthlyCost(m); ok {
				monthly = monthly.Add(c)
			}
		}
		p.MonthlyCostCents = monthly.Round(0).IntPart()
		f.Drafts = append(f.Drafts, Draft{
			Key:      DedupKey(repository.AlertDuplicate, rc.Scope, cat),
			Category: strPtr(cat),
			Payload:  p,
		})
	}
	return f, nil
}

func stillBilling(s repository.Subscription) bool {
	return s.Status == repository.StatusActive || s.Status == repository.StatusZombie
}
