package handler

import (
	"time"

	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
	"github.com/jask/wastewatch/internal/service"
)

type subscriptionDTO struct {
	ID               string  `json:"id"`
	Merchant         string  `json:"merchant"`
	AccountID        *string `json:"account_id"`
	AmountCents      int64   `json:"amount_cents"`
	Amount           string  `json:"amount"`
	Frequency        *string `json:"frequency"`
	MonthlyCostCents *int64  `json:"monthly_cost_cents"`
	FirstSeen        string  `json:"first_seen"`
	LastSeen         string  `json:"last_seen"`
	Status           string  `json:"status"`
	UserAcknowledged bool    `json:"user_acknowledged"`
	AcknowledgedAt   *string `json:"acknowledged_at,omitempty"`
	CancelledAt      *string `json:"cancelled_at,omitempty"`
	CancelReason     *string `json:"cancel_reason,omitempty"`
	Category         string  `json:"category"`
	Revision         int64   `json:"revision"`
}

func toSubscriptionDTO(s repository.Subscription) subscriptionDTO {
	out := subscriptionDTO{
		ID:               s.ID,
		Merchant:         s.Merchant,
		AccountID:        s.AccountID,
		AmountCents:      s.AmountCents,
		Amount:           detection.FormatCents(s.AmountCents),
		FirstSeen:        s.FirstSeen.Format(time.DateOnly),
		LastSeen:         s.LastSeen.Format(time.DateOnly),
		Status:           string(s.Status),
		UserAcknowledged: s.UserAcknowledged,
		AcknowledgedAt:   dayPtr(s.AcknowledgedAt),
		CancelledAt:      dayPtr(s.CancelledAt),
		Category:         s.Category,
		Revision:         s.Revision,
	}
	if s.Frequency != nil {
		f := string(*s.Frequency)
		out.Frequency = &f
	}
	if m, ok := detection.MonthlyCost(s); ok {
		cents := m.Round(0).IntPart()
		out.MonthlyCostCents = &cents
	}
	if s.CancelReason != nil {
		r := string(*s.CancelReason)
		out.CancelReason = &r
	}
	return out
}

type alertDTO struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	SubscriptionID *string           `json:"subscription_id,omitempty"`
	TransactionID  *string           `json:"transaction_id,omitempty"`
	Category       *string           `json:"category,omitempty"`
	Scope          string            `json:"scope"`
	Message        string            `json:"message"`
	Payload        detection.Payload `json:"payload"`
	Dismissed      bool              `json:"dismissed"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toAlertDTO(a service.AlertView) alertDTO {
	return alertDTO{
		ID:             a.ID,
		Type:           string(a.Type),
		SubscriptionID: a.SubscriptionID,
		TransactionID:  a.TransactionID,
		Category:       a.Category,
		Scope:          a.Scope,
		Message:        a.Message,
		Payload:        a.Details,
		Dismissed:      a.Dismissed,
		ResolvedAt:     a.ResolvedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func dayPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
