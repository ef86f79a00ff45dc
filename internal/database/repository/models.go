package repository

import (
	"encoding/json"
	"time"
)

// Account represents an account row.
type Account struct {
	ID          string
	Name        string
	Institution string
	AccountType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category represents a category row.
type Category struct {
	ID        string
	ParentID  *string
	Name      string
	Icon      *string
	SortOrder int
}

// Tag represents a tag row.
type Tag struct {
	ID   string
	Name string
}

// Transaction represents a ledger row. MerchantName is the normalized merchant.
type Transaction struct {
	ID             string
	AccountID      string
	ExternalID     *string
	Date           time.Time
	PostedDate     *time.Time
	AmountCents    int64
	RawDescription string
	MerchantName   *string
	CategoryID     *string
	CategoryName   string
	Comment        *string
	Status         string
	SourceHash     *string
	Archived       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tags           []Tag
}

// Merchant returns the normalized merchant or "".
func (t Transaction) Merchant() string {
	if t.MerchantName == nil {
		return ""
	}
	return *t.MerchantName
}

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusZombie    SubscriptionStatus = "zombie"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExcluded  SubscriptionStatus = "excluded"
)

type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

type CancelReason string

const (
	CancelReasonUser CancelReason = "user"
	CancelReasonAuto CancelReason = "auto"
)

// Subscription is a recurring-charge series mined from the ledger.
// AmountCents is the positive magnitude of the most recent charge.
type Subscription struct {
	ID                string
	Merchant          string
	AccountID         *string
	AmountCents       int64
	Frequency         *Frequency
	FirstSeen         time.Time
	LastSeen          time.Time
	Status            SubscriptionStatus
	UserAcknowledged  bool
	AcknowledgedAt    *time.Time
	CancelledAt       *time.Time
	CancelReason      *CancelReason
	CancelledLastSeen *time.Time
	Category          string
	Revision          int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type AlertType string

const (
	AlertZombie           AlertType = "zombie"
	AlertPriceIncrease    AlertType = "price_increase"
	AlertDuplicate        AlertType = "duplicate"
	AlertAutoCancellation AlertType = "auto_cancellation"
	AlertResume           AlertType = "resume"
	AlertSpendingAnomaly  AlertType = "spending_anomaly"
	AlertTipDiscrepancy   AlertType = "tip_discrepancy"
)

// Alert is a persisted detector finding. Open means neither dismissed nor resolved.
type Alert struct {
	ID             string
	Type           AlertType
	SubscriptionID *string
	TransactionID  *string
	Category       *string
	Scope          string
	DedupKey       string
	Message        string
	Payload        json.RawMessage
	Dismissed      bool
	DismissedAt    *time.Time
	ResolvedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Open reports whether the alert is still actionable.
func (a Alert) Open() bool { return !a.Dismissed && a.ResolvedAt == nil }

// Receipt is a parsed receipt total.
type Receipt struct {
	ID         string
	Merchant   string
	Date       time.Time
	TotalCents int64
	Source     string
	CreatedAt  time.Time
}

const (
	MatchPending   = "pending"
	MatchConfirmed = "confirmed"
	MatchRejected  = "rejected"
)

// ReceiptMatch links a receipt to the bank transaction it paid for.
type ReceiptMatch struct {
	ID            string
	ReceiptID     string
	TransactionID string
	Similarity    float64
	Status        string
	CreatedAt     time.Time
	DecidedAt     *time.Time
}

// ConfirmedReceipt is a confirmed match joined with the receipt total.
type ConfirmedReceipt struct {
	MatchID           string
	ReceiptID         string
	TransactionID     string
	Merchant          string
	ReceiptTotalCents int64
}
