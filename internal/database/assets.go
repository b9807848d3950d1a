package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assetbook/internal/models"

	"github.com/doug-martin/goqu/v9"
)

var assetColumns = []interface{}{
	"id", "name", "category_id", "subcategory_id", "description", "serial_number",
	"location_id", "available", "image", "details", "created_at",
}

func (db *DB) CreateAsset(ctx context.Context, asset *models.Asset) error {
	now := utc(time.Now())
	id, err := db.insertReturningID(ctx, db.DB, `INSERT INTO assets (
            name, category_id, subcategory_id, description, serial_number,
            location_id, available, image, details, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.Name,
		asset.CategoryID,
		asset.SubCategoryID,
		asset.Description,
		asset.SerialNumber,
		asset.LocationID,
		asset.Available,
		asset.Image,
		asset.Details,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	asset.ID = id
	asset.CreatedAt = now
	return nil
}

func (db *DB) GetAsset(ctx context.Context, id int64) (*models.Asset, error) {
	query, args, err := toSQL(db.dialect.From("assets").Select(assetColumns...).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return nil, err
	}

	var asset models.Asset
	if err := db.GetContext(ctx, &asset, query, args...); err != nil {
		return nil, notFound(err, ErrAssetNotFound)
	}
	return &asset, nil
}

func (db *DB) ListAssets(ctx context.Context, filter models.AssetFilter) ([]*models.Asset, error) {
	ds := db.dialect.From("assets").Select(assetColumns...)

	if filter.CategoryID != 0 {
		ds = ds.Where(goqu.C("category_id").Eq(filter.CategoryID))
	}
	if filter.SubCategoryID != 0 {
		ds = ds.Where(goqu.C("subcategory_id").Eq(filter.SubCategoryID))
	}
	if filter.LocationID != 0 {
		ds = ds.Where(goqu.C("location_id").Eq(filter.LocationID))
	}
	if filter.OnlyAvailable {
		ds = ds.Where(goqu.C("available").Eq(true))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		ds = ds.Where(goqu.Or(
			goqu.Func("LOWER", goqu.C("name")).Like(pattern),
			goqu.Func("LOWER", goqu.C("serial_number")).Like(pattern),
			goqu.Func("LOWER", goqu.C("description")).Like(pattern),
		))
	}

	query, args, err := toSQL(ds.Order(goqu.I("name").Asc(), goqu.I("id").Asc()))
	if err != nil {
		return nil, err
	}

	var assets []*models.Asset
	if err := db.SelectContext(ctx, &assets, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

func (db *DB) CountAssets(ctx context.Context) (int, error) {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM assets`); err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return count, nil
}

// UpdateAsset overwrites the editable fields. Location changes go through MoveAsset.
func (db *DB) UpdateAsset(ctx context.Context, asset *models.Asset) error {
	result, err := db.ExecContext(ctx, db.Rebind(`UPDATE assets SET
            name = ?, category_id = ?, subcategory_id = ?, description = ?,
            serial_number = ?, available = ?, image = ?, details = ?
        WHERE id = ?`),
		asset.Name,
		asset.CategoryID,
		asset.SubCategoryID,
		asset.Description,
		asset.SerialNumber,
		asset.Available,
		asset.Image,
		asset.Details,
		asset.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", translateError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrAssetNotFound
	}
	return nil
}

// MoveAsset sets the asset location and appends the move to its history.
func (db *DB) MoveAsset(ctx context.Context, assetID, locationID int64, note string, at time.Time) (*models.LocationHistory, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int64
	if err := tx.GetContext(ctx, &exists, db.Rebind(`SELECT id FROM locations WHERE id = ?`), locationID); err != nil {
		return nil, notFound(err, ErrLocationNotFound)
	}

	result, err := tx.ExecContext(ctx, db.Rebind(`UPDATE assets SET location_id = ? WHERE id = ?`), locationID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to move asset: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, ErrAssetNotFound
	}

	entry := &models.LocationHistory{
		AssetID:    assetID,
		LocationID: locationID,
		Timestamp:  utc(at),
		Note:       note,
	}
	entry.ID, err = db.insertReturningID(ctx, tx,
		`INSERT INTO location_history (asset_id, location_id, timestamp, note) VALUES (?, ?, ?, ?)`,
		entry.AssetID, entry.LocationID, entry.Timestamp, entry.Note)
	if err != nil {
		return nil, fmt.Errorf("failed to record location history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit asset move: %w", err)
	}
	return entry, nil
}

// GetAssetHistory lists location changes of an asset, newest first.
func (db *DB) GetAssetHistory(ctx context.Context, assetID int64) ([]*models.LocationHistory, error) {
	var history []*models.LocationHistory
	query := `SELECT id, asset_id, location_id, timestamp, note FROM location_history
        WHERE asset_id = ? ORDER BY timestamp DESC, id DESC`
	if err := db.SelectContext(ctx, &history, db.Rebind(query), assetID); err != nil {
		return nil, fmt.Errorf("failed to get asset history: %w", err)
	}
	return history, nil
}
