package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jask/wastewatch/internal/database/repository"
)

// DefaultCategories is the baseline category tree; "Parent > Child" creates a child.
var DefaultCategories = []string{
	"Income",
	"Food > Groceries",
	"Food > Restaurants",
	"Transport",
	"Shopping",
	"Utilities",
	"Streaming",
	"Software",
	"Fitness",
	"Health",
	"Entertainment",
}

// SeedDefaults ensures baseline categories exist for new databases.
// It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	catRepo := repository.NewCategoryRepo(db)
	existing, err := catRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for idx, path := range DefaultCategories {
		parts := strings.Split(path, ">")
		var parentID *string
		for _, raw := range parts {
			name := strings.TrimSpace(raw)
			id := repository.CategoryID(name)
			cat := repository.Category{ID: id, Name: name, ParentID: parentID, SortOrder: idx}
			if err := catRepo.Upsert(ctx, cat); err != nil {
				return fmt.Errorf("seed category %s: %w", name, err)
			}
			parentID = &id
		}
	}
	return nil
}
