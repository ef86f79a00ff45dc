package detection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jask/wastewatch/internal/database/repository"
)

// Payload is the typed body of an alert. The set of implementations is closed.
//
//sumtype:decl
type Payload interface {
	Type() repository.AlertType
	Message() string
	isPayload()
}

type ZombiePayload struct {
	Merchant      string `json:"merchant"`
	Frequency     string `json:"frequency"`
	AmountCents   int64  `json:"amount_cents"`
	LastSeen      string `json:"last_seen"`
	ReferenceDate string `json:"reference_date"`
	DaysSilent    int    `json:"days_silent"`
	ThresholdDays int    `json:"threshold_days"`
}

type PriceIncreasePayload struct {
	Merchant      string `json:"merchant"`
	BaselineCents int64  `json:"baseline_cents"`
	NewCents      int64  `json:"new_cents"`
	DeltaCents    int64  `json:"delta_cents"`
	Percent       string `json:"percent"`
	ChargedOn     string `json:"charged_on"`
}

type DuplicatePayload struct {
	Category         string   `json:"category"`
	SubscriptionIDs  []string `json:"subscription_ids"`
	Merchants        []string `json:"merchants"`
	MonthlyCostCents int64    `json:"monthly_cost_cents"`
}

type AutoCancellationPayload struct {
	Merchant      string `json:"merchant"`
	Frequency     string `json:"frequency"`
	LastSeen      string `json:"last_seen"`
	DaysSilent    int    `json:"days_silent"`
	ThresholdDays int    `json:"threshold_days"`
}

type ResumePayload struct {
	Merchant         string `json:"merchant"`
	CancelReason     string `json:"cancel_reason"`
	CancelledAt      string `json:"cancelled_at"`
	PreviousLastSeen string `json:"previous_last_seen"`
	ResumedOn        string `json:"resumed_on"`
	AmountCents      int64  `json:"amount_cents"`
}

type SpendingAnomalyPayload struct {
	Bucket         string `json:"bucket"`
	Period         string `json:"period"`
	BaselineCents  int64  `json:"baseline_cents"`
	CurrentCents   int64  `json:"current_cents"`
	PercentChange  string `json:"percent_change"`
	BaselineMonths int    `json:"baseline_months"`
}

type TipDiscrepancyPayload struct {
	Merchant          string `json:"merchant"`
	ReceiptID         string `json:"receipt_id"`
	TransactionID     string `json:"transaction_id"`
	ReceiptTotalCents int64  `json:"receipt_total_cents"`
	BankAmountCents   int64  `json:"bank_amount_cents"`
	TipCents          int64  `json:"tip_cents"`
	TipPercent        string `json:"tip_percent"`
}

func (ZombiePayload) isPayload()           {}
func (PriceIncreasePayload) isPayload()    {}
func (DuplicatePayload) isPayload()        {}
func (AutoCancellationPayload) isPayload() {}
func (ResumePayload) isPayload()           {}
func (SpendingAnomalyPayload) isPayload()  {}
func (TipDiscrepancyPayload) isPayload()   {}

func (ZombiePayload) Type() repository.AlertType           { return repository.AlertZombie }
func (PriceIncreasePayload) Type() repository.AlertType    { return repository.AlertPriceIncrease }
func (DuplicatePayload) Type() repository.AlertType        { return repository.AlertDuplicate }
func (AutoCancellationPayload) Type() repository.AlertType { return repository.AlertAutoCancellation }
func (ResumePayload) Type() repository.AlertType           { return repository.AlertResume }
func (SpendingAnomalyPayload) Type() repository.AlertType  { return repository.AlertSpendingAnomaly }
func (TipDiscrepancyPayload) Type() repository.AlertType   { return repository.AlertTipDiscrepancy }

func (p ZombiePayload) Message() string {
	return fmt.Sprintf("%s has not charged in %d days (%s, last seen %s). Still using it?",
		p.Merchant, p.DaysSilent, p.Frequency, p.LastSeen)
}

func (p PriceIncreasePayload) Message() string {
	return fmt.Sprintf("%s went up from %s to %s (+%s%%)",
		p.Merchant, FormatCents(p.BaselineCents), FormatCents(p.NewCents), p.Percent)
}

func (p DuplicatePayload) Message() string {
	return fmt.Sprintf("%d active subscriptions in %s: %s (%s/month)",
		len(p.SubscriptionIDs), p.Category, strings.Join(p.Merchants, ", "), FormatCents(p.MonthlyCostCents))
}

func (p AutoCancellationPayload) Message() string {
	return fmt.Sprintf("%s looks cancelled: no charge in %d days since %s", p.Merchant, p.DaysSilent, p.LastSeen)
}

func (p ResumePayload) Message() string {
	if p.CancelReason == string(repository.CancelReasonUser) {
		return fmt.Sprintf("%s charged %s on %s after you cancelled it", p.Merchant, FormatCents(p.AmountCents), p.ResumedOn)
	}
	return fmt.Sprintf("%s started charging again on %s (%s)", p.Merchant, p.ResumedOn, FormatCents(p.AmountCents))
}

func (p SpendingAnomalyPayload) Message() string {
	direction := "up"
	pct := p.PercentChange
	if strings.HasPrefix(pct, "-") {
		direction = "down"
		pct = strings.TrimPrefix(pct, "-")
	}
	return fmt.Sprintf("Spending on %s is %s %s%% in %s: %s vs %s average",
		p.Bucket, direction, pct, p.Period, FormatCents(p.CurrentCents), FormatCents(p.BaselineCents))
}

func (p TipDiscrepancyPayload) Message() string {
	return fmt.Sprintf("%s charged %s on a %s receipt: %s extra (%s%%)",
		p.Merchant, FormatCents(p.BankAmountCents), FormatCents(p.ReceiptTotalCents), FormatCents(p.TipCents), p.TipPercent)
}

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Type(), err)
	}
	return b, nil
}

// DecodePayload restores the typed payload of a stored alert.
func DecodePayload(t repository.AlertType, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch t {
	case repository.AlertZombie:
		var v ZombiePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case repository.AlertPriceIncrease:
		var v PriceIncreasePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case repository.AlertDuplicate:
		var v DuplicatePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case repository.AlertAutoCancellation:
		var v AutoCancellationPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case repository.AlertResume:
		var v ResumePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case repository.AlertSpendingAnomaly:
		var v SpendingAnomalyPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case repository.AlertTipDiscrepancy:
		var v TipDiscrepancyPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("decode payload: unknown alert type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

// FormatCents renders cents as a dollar amount.
func FormatCents(c int64) string {
	d := decimal.New(c, -2)
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// percentOf returns part/whole*100 rounded to two places.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2)
}
