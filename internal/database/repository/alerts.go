package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// AlertFilters narrows List. OpenOnly hides dismissed and resolved alerts.
type AlertFilters struct {
	OpenOnly       bool
	Type           AlertType
	SubscriptionID string
	Scope          *string
	Limit          int
	Offset         int
}

// AlertRepo handles alerts.
type AlertRepo struct {
	db DBTX
}

func NewAlertRepo(db DBTX) *AlertRepo { return &AlertRepo{db: db} }

const alertColumns = `id, alert_type, subscription_id, transaction_id, category, scope, dedup_key, message,
 payload, dismissed, dismissed_at, resolved_at, created_at, updated_at`

func (r *AlertRepo) Insert(ctx context.Context, a Alert) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO alerts(`+alertColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.SubscriptionID, a.TransactionID, a.Category, a.Scope, a.DedupKey, a.Message,
		string(a.Payload), a.Dismissed, a.DismissedAt, a.ResolvedAt, a.CreatedAt, a.UpdatedAt)
	return err
}

// UpdateContent rewrites message and payload of an open alert in place.
func (r *AlertRepo) UpdateContent(ctx context.Context, id, message string, payload []byte, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE alerts SET message = ?, payload = ?, updated_at = ? WHERE id = ? AND dismissed = 0 AND resolved_at IS NULL`,
		message, string(payload), at, id)
	return err
}

func (r *AlertRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE alerts SET resolved_at = ?, updated_at = ? WHERE id = ? AND resolved_at IS NULL`, at, at, id)
	return err
}

// Dismiss marks an alert dismissed. It reports whether a row was found.
func (r *AlertRepo) Dismiss(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET dismissed = 1, dismissed_at = COALESCE(dismissed_at, ?), updated_at = ? WHERE id = ?`, at, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DismissOpenFor dismisses every open alert of type t for a subscription.
func (r *AlertRepo) DismissOpenFor(ctx context.Context, subscriptionID string, t AlertType, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET dismissed = 1, dismissed_at = ?, updated_at = ?
	WHERE subscription_id = ? AND alert_type = ? AND dismissed = 0 AND resolved_at IS NULL`, at, at, subscriptionID, t)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteDismissedFor removes the dismissed alerts of a subscription so their
// keys no longer suppress new drafts.
func (r *AlertRepo) DeleteDismissedFor(ctx context.Context, subscriptionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE subscription_id = ? AND dismissed = 1`, subscriptionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *AlertRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Prune deletes dismissed or resolved alerts closed before cutoff.
func (r *AlertRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts
	WHERE (dismissed = 1 AND dismissed_at < ?) OR (resolved_at IS NOT NULL AND resolved_at < ?)`, cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *AlertRepo) Get(ctx context.Context, id string) (*Alert, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// List returns alerts newest first.
func (r *AlertRepo) List(ctx context.Context, f AlertFilters) ([]Alert, error) {
	var where []string
	var args []interface{}
	if f.OpenOnly {
		where = append(where, "dismissed = 0 AND resolved_at IS NULL")
	}
	if f.Type != "" {
		where = append(where, "alert_type = ?")
		args = append(args, f.Type)
	}
	if f.SubscriptionID != "" {
		where = append(where, "subscription_id = ?")
		args = append(args, f.SubscriptionID)
	}
	if f.Scope != nil {
		where = append(where, "scope = ?")
		args = append(args, *f.Scope)
	}
	query := "SELECT " + alertColumns + " FROM alerts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAlert(row scanner) (Alert, error) {
	var a Alert
	var sub, txn, category sql.NullString
	var dismissedAt, resolvedAt sql.NullTime
	var alertType, payload string
	if err := row.Scan(&a.ID, &alertType, &sub, &txn, &category, &a.Scope, &a.DedupKey, &a.Message,
		&payload, &a.Dismissed, &dismissedAt, &resolvedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Alert{}, err
	}
	a.Type = AlertType(alertType)
	a.Payload = []byte(payload)
	a.SubscriptionID = nullString(sub)
	a.TransactionID = nullString(txn)
	a.Category = nullString(category)
	a.DismissedAt = nullTime(dismissedAt)
	a.ResolvedAt = nullTime(resolvedAt)
	return a, nil
}
