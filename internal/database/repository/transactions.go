package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// TransactionFilters defines list filters.
type TransactionFilters struct {
	Status          string
	AccountID       string
	CategoryID      string
	Month           time.Time // use first day of month; zero time = no month filter
	Search          string
	IncludeArchived bool
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionColumns = `t.id, t.account_id, t.external_id, t.date, t.posted_date, t.amount, t.raw_description,
 t.merchant_name, t.category_id, COALESCE(c.name, ''), t.comment, t.status, t.source_hash, t.archived,
 t.created_at, t.updated_at`

const transactionFrom = ` FROM transactions t LEFT JOIN categories c ON c.id = t.category_id`

func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions(
	 id, account_id, external_id, date, posted_date, amount, raw_description, merchant_name,
	 category_id, comment, status, source_hash, archived, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		t.ID, t.AccountID, t.ExternalID, t.Date, t.PostedDate, t.AmountCents, t.RawDescription,
		t.MerchantName, t.CategoryID, t.Comment, t.Status, t.SourceHash, t.Archived)
	return err
}

// UpdateCategory sets or clears a transaction's category and reports whether the row exists.
func (r *TransactionRepo) UpdateCategory(ctx context.Context, id string, categoryID *string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET category_id = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, categoryID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetArchived hides or restores a transaction. Archived rows are ignored by detection.
func (r *TransactionRepo) SetArchived(ctx context.Context, id string, archived bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET archived = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, archived, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TransactionRepo) AttachTag(ctx context.Context, transactionID, tagID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO transaction_tags(transaction_id, tag_id) VALUES(?, ?)`, transactionID, tagID)
	return err
}

func (r *TransactionRepo) RemoveTag(ctx context.Context, transactionID, tagID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transaction_tags WHERE transaction_id = ? AND tag_id = ?`, transactionID, tagID)
	return err
}

// List returns transactions newest first with category names and tags filled in.
func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters) ([]Transaction, error) {
	var where []string
	var args []interface{}

	if !f.IncludeArchived {
		where = append(where, "t.archived = 0")
	}
	if f.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, f.Status)
	}
	if f.AccountID != "" {
		where = append(where, "t.account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.CategoryID != "" {
		where = append(where, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if !f.Month.IsZero() {
		start := time.Date(f.Month.Year(), f.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		where = append(where, "t.date >= ? AND t.date < ?")
		args = append(args, start, end)
	}
	if f.Search != "" {
		where = append(where, "(t.raw_description LIKE ? OR t.merchant_name LIKE ?)")
		args = append(args, "%"+f.Search+"%", "%"+f.Search+"%")
	}

	query := "SELECT " + transactionColumns + transactionFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.date DESC, t.id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	tags, err := r.tagsByTransaction(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tags = tags[out[i].ID]
	}
	return out, nil
}

func (r *TransactionRepo) tagsByTransaction(ctx context.Context) (map[string][]Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tt.transaction_id, t.id, t.name FROM tags t JOIN transaction_tags tt ON tt.tag_id = t.id ORDER BY t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]Tag)
	for rows.Next() {
		var txID string
		var t Tag
		if err := rows.Scan(&txID, &t.ID, &t.Name); err != nil {
			return nil, err
		}
		out[txID] = append(out[txID], t)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) fetchTags(ctx context.Context, transactionID string) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT t.id, t.name FROM tags t JOIN transaction_tags tt ON tt.tag_id = t.id WHERE tt.transaction_id = ? ORDER BY t.name`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// Unmatched returns non-archived expenses without a pending or confirmed receipt match.
func (r *TransactionRepo) Unmatched(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+transactionFrom+`
	WHERE t.archived = 0 AND t.amount < 0 AND t.date >= ? AND t.date < ?
	 AND NOT EXISTS (
	  SELECT 1 FROM receipt_matches m WHERE m.transaction_id = t.id AND m.status != 'rejected')
	ORDER BY t.date ASC, t.id ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+transactionFrom+` WHERE t.id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	tags, err := r.fetchTags(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Tags = tags
	return &t, nil
}

func scanTransaction(row scanner) (Transaction, error) {
	var t Transaction
	var external, merchant, category, comment, source sql.NullString
	var posted sql.NullTime
	if err := row.Scan(&t.ID, &t.AccountID, &external, &t.Date, &posted, &t.AmountCents,
		&t.RawDescription, &merchant, &category, &t.CategoryName, &comment, &t.Status, &source,
		&t.Archived, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	t.Date = t.Date.UTC()
	t.ExternalID = nullString(external)
	t.PostedDate = nullTime(posted)
	t.MerchantName = nullString(merchant)
	t.CategoryID = nullString(category)
	t.Comment = nullString(comment)
	t.SourceHash = nullString(source)
	return t, nil
}
