package repository

import (
	"context"
	"database/sql"
	"time"
)

// ReceiptRepo handles receipts and their transaction matches.
type ReceiptRepo struct{ db DBTX }

func NewReceiptRepo(db DBTX) *ReceiptRepo { return &ReceiptRepo{db: db} }

func (r *ReceiptRepo) Insert(ctx context.Context, rc Receipt) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO receipts(id, merchant, date, total_cents, source, created_at)
	VALUES(?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, rc.ID, rc.Merchant, rc.Date, rc.TotalCents, rc.Source)
	return err
}

func (r *ReceiptRepo) Get(ctx context.Context, id string) (*Receipt, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, merchant, date, total_cents, source, created_at FROM receipts WHERE id = ?`, id)
	var rc Receipt
	if err := row.Scan(&rc.ID, &rc.Merchant, &rc.Date, &rc.TotalCents, &rc.Source, &rc.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rc.Date = rc.Date.UTC()
	return &rc, nil
}

// Unmatched returns receipts that have no pending or confirmed match.
func (r *ReceiptRepo) Unmatched(ctx context.Context) ([]Receipt, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT r.id, r.merchant, r.date, r.total_cents, r.source, r.created_at
	FROM receipts r
	WHERE NOT EXISTS (SELECT 1 FROM receipt_matches m WHERE m.receipt_id = r.id AND m.status != 'rejected')
	ORDER BY r.date ASC, r.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		var rc Receipt
		if err := rows.Scan(&rc.ID, &rc.Merchant, &rc.Date, &rc.TotalCents, &rc.Source, &rc.CreatedAt); err != nil {
			return nil, err
		}
		rc.Date = rc.Date.UTC()
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r *ReceiptRepo) AddMatch(ctx context.Context, m ReceiptMatch) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO receipt_matches(id, receipt_id, transaction_id, similarity, status, created_at, decided_at)
	VALUES(?, ?, ?, ?, ?, CURRENT_TIMESTAMP, ?)
	`, m.ID, m.ReceiptID, m.TransactionID, m.Similarity, m.Status, m.DecidedAt)
	return err
}

func (r *ReceiptRepo) GetMatch(ctx context.Context, id string) (*ReceiptMatch, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, receipt_id, transaction_id, similarity, status, created_at, decided_at FROM receipt_matches WHERE id = ?`, id)
	m, err := scanMatch(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *ReceiptRepo) ListMatches(ctx context.Context, status string) ([]ReceiptMatch, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, receipt_id, transaction_id, similarity, status, created_at, decided_at FROM receipt_matches WHERE status = ? ORDER BY created_at ASC, id ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReceiptMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ReceiptRepo) UpdateMatchStatus(ctx context.Context, id, status string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE receipt_matches SET status = ?, decided_at = ? WHERE id = ?`, status, at, id)
	return err
}

// Confirmed returns confirmed matches with receipt totals, ordered by transaction.
func (r *ReceiptRepo) Confirmed(ctx context.Context) ([]ConfirmedReceipt, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT m.id, r.id, m.transaction_id, r.merchant, r.total_cents
	FROM receipt_matches m JOIN receipts r ON r.id = m.receipt_id
	WHERE m.status = 'confirmed'
	ORDER BY m.transaction_id, m.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ConfirmedReceipt
	for rows.Next() {
		var c ConfirmedReceipt
		if err := rows.Scan(&c.MatchID, &c.ReceiptID, &c.TransactionID, &c.Merchant, &c.ReceiptTotalCents); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanMatch(row scanner) (ReceiptMatch, error) {
	var m ReceiptMatch
	var decided sql.NullTime
	if err := row.Scan(&m.ID, &m.ReceiptID, &m.TransactionID, &m.Similarity, &m.Status, &m.CreatedAt, &decided); err != nil {
		return ReceiptMatch{}, err
	}
	m.DecidedAt = nullTime(decided)
	return m, nil
}
