package repository

import (
	"context"
	"database/sql"
	"strings"
)

// SubscriptionFilters narrows List. Grouped selects the merchant-only series
// (NULL account); otherwise AccountID, when set, selects one account.
type SubscriptionFilters struct {
	AccountID string
	Grouped   bool
	Status    SubscriptionStatus
}

// SubscriptionRepo handles subscriptions.
type SubscriptionRepo struct {
	db DBTX
}

func NewSubscriptionRepo(db DBTX) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

const subscriptionColumns = `id, merchant, account_id, amount, frequency, first_seen, last_seen, status,
 user_acknowledged, acknowledged_at, cancelled_at, cancel_reason, cancelled_last_seen, category,
 revision, created_at, updated_at`

func (r *SubscriptionRepo) Insert(ctx context.Context, s Subscription) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO subscriptions(`+subscriptionColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Merchant, s.AccountID, s.AmountCents, s.Frequency, s.FirstSeen, s.LastSeen, s.Status,
		s.UserAcknowledged, s.AcknowledgedAt, s.CancelledAt, s.CancelReason, s.CancelledLastSeen, s.Category,
		s.Revision, s.CreatedAt, s.UpdatedAt)
	return err
}

// UpdateIfRevision writes every mutable field and bumps the revision, but only
// when the stored revision still equals expected. It reports whether the row was written.
func (r *SubscriptionRepo) UpdateIfRevision(ctx context.Context, s Subscription, expected int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE subscriptions SET
	 amount = ?, frequency = ?, first_seen = ?, last_seen = ?, status = ?,
	 user_acknowledged = ?, acknowledged_at = ?, cancelled_at = ?, cancel_reason = ?,
	 cancelled_last_seen = ?, category = ?, revision = revision + 1, updated_at = ?
	WHERE id = ? AND revision = ?`,
		s.AmountCents, s.Frequency, s.FirstSeen, s.LastSeen, s.Status,
		s.UserAcknowledged, s.AcknowledgedAt, s.CancelledAt, s.CancelReason,
		s.CancelledLastSeen, s.Category, s.UpdatedAt, s.ID, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SubscriptionRepo) Get(ctx context.Context, id string) (*Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	s, err := scanSubscription(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionRepo) List(ctx context.Context, f SubscriptionFilters) ([]Subscription, error) {
	var where []string
	var args []interface{}
	switch {
	case f.Grouped:
		where = append(where, "account_id IS NULL")
	case f.AccountID != "":
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	query := "SELECT " + subscriptionColumns + " FROM subscriptions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY merchant, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Revisions returns the stored revision for each id that still exists.
func (r *SubscriptionRepo) Revisions(ctx context.Context, ids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, revision FROM subscriptions WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var rev int64
		if err := rows.Scan(&id, &rev); err != nil {
			return nil, err
		}
		out[id] = rev
	}
	return out, rows.Err()
}

func scanSubscription(row scanner) (Subscription, error) {
	var s Subscription
	var account, frequency, reason sql.NullString
	var ackAt, cancelledAt, cancelledLastSeen sql.NullTime
	var status string
	if err := row.Scan(&s.ID, &s.Merchant, &account, &s.AmountCents, &frequency, &s.FirstSeen, &s.LastSeen,
		&status, &s.UserAcknowledged, &ackAt, &cancelledAt, &reason, &cancelledLastSeen, &s.Category,
		&s.Revision, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Subscription{}, err
	}
	s.Status = SubscriptionStatus(status)
	s.AccountID = nullString(account)
	if frequency.Valid {
		f := Frequency(frequency.String)
		s.Frequency = &f
	}
	if reason.Valid {
		cr := CancelReason(reason.String)
		s.CancelReason = &cr
	}
	s.FirstSeen = s.FirstSeen.UTC()
	s.LastSeen = s.LastSeen.UTC()
	s.AcknowledgedAt = nullTime(ackAt)
	s.CancelledAt = nullTime(cancelledAt)
	s.CancelledLastSeen = nullTime(cancelledLastSeen)
	return s, nil
}
