package detection

import (
	"github.com/shopspring/decimal"

	"github.com/jask/wastewatch/internal/database/repository"
)

// TipDiscrepancyDetector flags bank charges that exceed the matched receipt
// total by more than the tip ceiling.
type TipDiscrepancyDetector struct{}

func (TipDiscrepancyDetector) Type() repository.AlertType { return repository.AlertTipDiscrepancy }

func (TipDiscrepancyDetector) Detect(rc *RunContext) (Findings, error) {
	ceiling := rc.Config.tipCeiling()
	var f Findings
	for _, r := range rc.Receipts {
		t, ok := rc.Transaction(r.TransactionID)
		if !ok || t.AmountCents >= 0 || r.ReceiptTotalCents <= 0 {
			continue
		}
		bank := -t.AmountCents
		tip := bank - r.ReceiptTotalCents
		total := decimal.NewFromInt(r.ReceiptTotalCents)
		if !decimal.NewFromInt(tip).GreaterThan(total.Mul(ceiling)) {
			continue
		}
		merchant := r.Merchant
		if m := t.Merchant(); m != "" {
			merchant = m
		}
		f.Drafts = append(f.Drafts, Draft{
			Key:           DedupKey(repository.AlertTipDiscrepancy, t.ID),
			TransactionID: strPtr(t.ID),
			Payload: TipDiscrepancyPayload{
				Merchant:          merchant,
				ReceiptID:         r.ReceiptID,
				TransactionID:     t.ID,
				ReceiptTotalCents: r.ReceiptTotalCents,
				BankAmountCents:   bank,
				TipCents:          tip,
				TipPercent:        percentOf(decimal.NewFromInt(tip), total).StringFixed(2),
			},
		})
	}
	return f, nil
}
