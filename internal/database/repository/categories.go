package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
)

// CategoryRepo handles categories.
type CategoryRepo struct {
	db DBTX
}

func NewCategoryRepo(db DBTX) *CategoryRepo {
	return &CategoryRepo{db: db}
}

// CategoryID is the deterministic id for a category name.
func CategoryID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("cat:"+strings.TrimSpace(name))).String()
}

func (r *CategoryRepo) Upsert(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(id, parent_id, name, icon, sort_order)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 parent_id=excluded.parent_id,
	 name=excluded.name,
	 icon=excluded.icon,
	 sort_order=excluded.sort_order;
	`, c.ID, c.ParentID, c.Name, c.Icon, c.SortOrder)
	return err
}

// EnsureByName returns the category with the given name, creating it when missing.
func (r *CategoryRepo) EnsureByName(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	row := r.db.QueryRowContext(ctx, `SELECT id, parent_id, name, icon, sort_order FROM categories WHERE name = ? ORDER BY sort_order LIMIT 1`, name)
	var c Category
	err := row.Scan(&c.ID, &c.ParentID, &c.Name, &c.Icon, &c.SortOrder)
	if err == nil {
		return c, nil
	}
	if err != sql.ErrNoRows {
		return Category{}, err
	}
	c = Category{ID: CategoryID(name), Name: name, SortOrder: 1000}
	if err := r.Upsert(ctx, c); err != nil {
		return Category{}, err
	}
	return c, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, parent_id, name, icon, sort_order FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name, &c.Icon, &c.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
