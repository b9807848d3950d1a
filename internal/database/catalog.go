package database

import (
	"context"
	"fmt"
	"time"

	"assetbook/internal/models"

	"github.com/jmoiron/sqlx"
)

func (db *DB) CreateLocation(ctx context.Context, loc *models.Location) error {
	id, err := db.insertReturningID(ctx, db.DB,
		`INSERT INTO locations (name, description) VALUES (?, ?)`, loc.Name, loc.Description)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	loc.ID = id
	return nil
}

func (db *DB) ListLocations(ctx context.Context) ([]*models.Location, error) {
	var locations []*models.Location
	if err := db.SelectContext(ctx, &locations, `SELECT id, name, description FROM locations ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}

func (db *DB) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	var loc models.Location
	if err := db.GetContext(ctx, &loc, db.Rebind(`SELECT id, name, description FROM locations WHERE id = ?`), id); err != nil {
		return nil, notFound(err, ErrLocationNotFound)
	}
	return &loc, nil
}

func (db *DB) CreateCategory(ctx context.Context, cat *models.Category) error {
	id, err := db.insertReturningID(ctx, db.DB, `INSERT INTO categories (name) VALUES (?)`, cat.Name)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	cat.ID = id
	return nil
}

func (db *DB) CreateSubCategory(ctx context.Context, sub *models.SubCategory) error {
	id, err := db.insertReturningID(ctx, db.DB,
		`INSERT INTO subcategories (category_id, name) VALUES (?, ?)`, sub.CategoryID, sub.Name)
	if err != nil {
		return fmt.Errorf("failed to create subcategory: %w", err)
	}
	sub.ID = id
	return nil
}

// ListCategories returns categories with their subcategories attached.
func (db *DB) ListCategories(ctx context.Context) ([]*models.Category, error) {
	var categories []*models.Category
	if err := db.SelectContext(ctx, &categories, `SELECT id, name FROM categories ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	subs, err := db.ListSubCategories(ctx, 0)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[int64]*models.Category, len(categories))
	for _, c := range categories {
		c.SubCategories = []models.SubCategory{}
		byCategory[c.ID] = c
	}
	for _, s := range subs {
		if c, ok := byCategory[s.CategoryID]; ok {
			c.SubCategories = append(c.SubCategories, *s)
		}
	}
	return categories, nil
}

// ListSubCategories lists subcategories, optionally of one category.
func (db *DB) ListSubCategories(ctx context.Context, categoryID int64) ([]*models.SubCategory, error) {
	var subs []*models.SubCategory
	query := `SELECT id, category_id, name FROM subcategories`
	args := []interface{}{}
	if categoryID != 0 {
		query += ` WHERE category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY name`

	if err := db.SelectContext(ctx, &subs, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list subcategories: %w", err)
	}
	return subs, nil
}

func (db *DB) GetSubCategory(ctx context.Context, id int64) (*models.SubCategory, error) {
	var sub models.SubCategory
	if err := db.GetContext(ctx, &sub, db.Rebind(`SELECT id, category_id, name FROM subcategories WHERE id = ?`), id); err != nil {
		return nil, notFound(err, ErrCategoryNotFound)
	}
	return &sub, nil
}

// SeedCatalog loads locations, categories and assets in one transaction.
// Names referenced by assets must be declared in the same catalog.
func (db *DB) SeedCatalog(ctx context.Context, catalog *models.Catalog) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	locations := make(map[string]int64)
	for _, loc := range catalog.Locations {
		id, err := db.insertReturningID(ctx, tx,
			`INSERT INTO locations (name, description) VALUES (?, ?)`, loc.Name, loc.Description)
		if err != nil {
			return fmt.Errorf("failed to seed location %q: %w", loc.Name, err)
		}
		locations[loc.Name] = id
	}

	categories := make(map[string]int64)
	subcategories := make(map[string]int64)
	for _, group := range catalog.Categories {
		catID, err := db.insertReturningID(ctx, tx, `INSERT INTO categories (name) VALUES (?)`, group.Name)
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", group.Name, err)
		}
		categories[group.Name] = catID
		for _, name := range group.SubCategories {
			subID, err := db.insertReturningID(ctx, tx,
				`INSERT INTO subcategories (category_id, name) VALUES (?, ?)`, catID, name)
			if err != nil {
				return fmt.Errorf("failed to seed subcategory %q: %w", name, err)
			}
			subcategories[group.Name+"/"+name] = subID
		}
	}

	now := utc(time.Now())
	for i := range catalog.Assets {
		a := catalog.Assets[i]
		asset := a.Asset
		if a.Category != "" {
			id, ok := categories[a.Category]
			if !ok {
				return fmt.Errorf("asset %q references unknown category %q", a.Name, a.Category)
			}
			asset.CategoryID = &id
		}
		if a.SubCategory != "" {
			id, ok := subcategories[a.Category+"/"+a.SubCategory]
			if !ok {
				return fmt.Errorf("asset %q references unknown subcategory %q", a.Name, a.SubCategory)
			}
			asset.SubCategoryID = &id
		}
		if a.Location != "" {
			id, ok := locations[a.Location]
			if !ok {
				return fmt.Errorf("asset %q references unknown location %q", a.Name, a.Location)
			}
			asset.LocationID = &id
		}

		if err := db.seedAsset(ctx, tx, &asset, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}

	db.logger.Info().
		Int("locations", len(catalog.Locations)).
		Int("categories", len(catalog.Categories)).
		Int("assets", len(catalog.Assets)).
		Msg("Catalog seeded")
	return nil
}

func (db *DB) seedAsset(ctx context.Context, tx *sqlx.Tx, asset *models.Asset, now time.Time) error {
	_, err := db.insertReturningID(ctx, tx, `INSERT INTO assets (
            name, category_id, subcategory_id, description, serial_number,
            location_id, available, image, details, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.Name, asset.CategoryID, asset.SubCategoryID, asset.Description, asset.SerialNumber,
		asset.LocationID, asset.Available, asset.Image, asset.Details, now)
	if err != nil {
		return fmt.Errorf("failed to seed asset %q: %w", asset.Name, err)
	}
	return nil
}
