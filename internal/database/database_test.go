package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"assetbook/internal/config"
	"assetbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

// createTestUsers inserts user1..userN, so their ids are 1..n on a fresh database.
func createTestUsers(t *testing.T, db *DB, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		u := &models.User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: "x",
			IsActive:     true,
		}
		require.NoError(t, db.CreateUser(context.Background(), u))
		require.Equal(t, int64(i), u.ID)
	}
}

func createTestAsset(t *testing.T, db *DB, name string) *models.Asset {
	asset := &models.Asset{Name: name, Available: true}
	require.NoError(t, db.CreateAsset(context.Background(), asset))
	return asset
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, DriverSQLite, db.Driver())
	assert.Equal(t, dbPath, db.Path())
}

func TestCreateTablesIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	require.NoError(t, db.createTables())
}

func TestOpen_SQLite(t *testing.T) {
	logger := zerolog.Nop()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite3", Path: filepath.Join(t.TempDir(), "a.db")}, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.PingContext(context.Background()))
}

func TestCatalog(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	studio := &models.Location{Name: "Studio", Description: "Ground floor"}
	require.NoError(t, db.CreateLocation(ctx, studio))
	warehouse := &models.Location{Name: "Warehouse"}
	require.NoError(t, db.CreateLocation(ctx, warehouse))

	cameras := &models.Category{Name: "Cameras"}
	require.NoError(t, db.CreateCategory(ctx, cameras))
	mirrorless := &models.SubCategory{CategoryID: cameras.ID, Name: "Mirrorless"}
	require.NoError(t, db.CreateSubCategory(ctx, mirrorless))

	t.Run("DuplicateCategory", func(t *testing.T) {
		err := db.CreateCategory(ctx, &models.Category{Name: "Cameras"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("ListCategories", func(t *testing.T) {
		categories, err := db.ListCategories(ctx)
		require.NoError(t, err)
		require.Len(t, categories, 1)
		require.Len(t, categories[0].SubCategories, 1)
		assert.Equal(t, "Mirrorless", categories[0].SubCategories[0].Name)
	})

	t.Run("ListLocations", func(t *testing.T) {
		locations, err := db.ListLocations(ctx)
		require.NoError(t, err)
		assert.Len(t, locations, 2)
		assert.Equal(t, "Studio", locations[0].Name)
	})

	t.Run("AssetsAndFilters", func(t *testing.T) {
		a7 := &models.Asset{Name: "Sony A7", CategoryID: &cameras.ID, SubCategoryID: &mirrorless.ID, Available: true, SerialNumber: "SN-A7"}
		require.NoError(t, db.CreateAsset(ctx, a7))
		tripod := &models.Asset{Name: "Tripod", Available: false}
		require.NoError(t, db.CreateAsset(ctx, tripod))

		all, err := db.ListAssets(ctx, models.AssetFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		byCat, err := db.ListAssets(ctx, models.AssetFilter{CategoryID: cameras.ID})
		require.NoError(t, err)
		require.Len(t, byCat, 1)
		assert.Equal(t, "Sony A7", byCat[0].Name)

		available, err := db.ListAssets(ctx, models.AssetFilter{OnlyAvailable: true})
		require.NoError(t, err)
		assert.Len(t, available, 1)

		search, err := db.ListAssets(ctx, models.AssetFilter{Search: "sn-a"})
		require.NoError(t, err)
		assert.Len(t, search, 1)

		count, err := db.CountAssets(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		tripod.Available = true
		tripod.Details = "carbon"
		require.NoError(t, db.UpdateAsset(ctx, tripod))
		got, err := db.GetAsset(ctx, tripod.ID)
		require.NoError(t, err)
		assert.True(t, got.Available)
		assert.Equal(t, "carbon", got.Details)

		assert.ErrorIs(t, db.UpdateAsset(ctx, &models.Asset{ID: 999, Name: "x"}), ErrAssetNotFound)
	})

	t.Run("MoveAsset", func(t *testing.T) {
		asset := createTestAsset(t, db, "Drone")

		_, err := db.MoveAsset(ctx, asset.ID, studio.ID, "unpacked", now())
		require.NoError(t, err)
		_, err = db.MoveAsset(ctx, asset.ID, warehouse.ID, "stored", now().Add(time.Minute))
		require.NoError(t, err)

		got, err := db.GetAsset(ctx, asset.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LocationID)
		assert.Equal(t, warehouse.ID, *got.LocationID)

		history, err := db.GetAssetHistory(ctx, asset.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "stored", history[0].Note)
		assert.Equal(t, "unpacked", history[1].Note)

		_, err = db.MoveAsset(ctx, asset.ID, 999, "", now())
		assert.ErrorIs(t, err, ErrLocationNotFound)
		_, err = db.MoveAsset(ctx, 999, studio.ID, "", now())
		assert.ErrorIs(t, err, ErrAssetNotFound)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := db.GetAsset(ctx, 999)
		assert.ErrorIs(t, err, ErrAssetNotFound)
		_, err = db.GetLocation(ctx, 999)
		assert.ErrorIs(t, err, ErrLocationNotFound)
		_, err = db.GetSubCategory(ctx, 999)
		assert.ErrorIs(t, err, ErrCategoryNotFound)
	})
}

func TestSeedCatalog(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	catalog := &models.Catalog{
		Locations:  []models.Location{{Name: "Studio"}},
		Categories: []models.CatalogGroup{{Name: "Cameras", SubCategories: []string{"Cinema"}}},
		Assets: []models.CatalogAsset{
			{Asset: models.Asset{Name: "FX3", Available: true}, Category: "Cameras", SubCategory: "Cinema", Location: "Studio"},
		},
	}
	require.NoError(t, db.SeedCatalog(ctx, catalog))

	assets, err := db.ListAssets(ctx, models.AssetFilter{})
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.NotNil(t, assets[0].CategoryID)
	assert.NotNil(t, assets[0].SubCategoryID)
	assert.NotNil(t, assets[0].LocationID)

	bad := &models.Catalog{Assets: []models.CatalogAsset{{Asset: models.Asset{Name: "X"}, Location: "Nowhere"}}}
	assert.Error(t, db.SeedCatalog(ctx, bad))

	count, err := db.CountAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUsers(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	user := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash", FirstName: "Alice"}
	require.NoError(t, db.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)

	usernameTaken, emailTaken, err := db.UserExists(ctx, "alice", "ALICE@example.com")
	require.NoError(t, err)
	assert.True(t, usernameTaken)
	assert.True(t, emailTaken)

	usernameTaken, emailTaken, err = db.UserExists(ctx, "bob", "bob@example.com")
	require.NoError(t, err)
	assert.False(t, usernameTaken)
	assert.False(t, emailTaken)

	err = db.CreateUser(ctx, &models.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.False(t, got.Verified())

	require.NoError(t, db.MarkEmailVerified(ctx, user.ID, now()))
	got, err = db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.True(t, got.Verified())

	_, err = db.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, db.MarkEmailVerified(ctx, 999, now()), ErrUserNotFound)
}

func TestDB_ErrorPaths(t *testing.T) {
	db := setupTestDB(t)
	db.Close()
	ctx := context.Background()

	_, err := db.GetBooking(ctx, 1)
	assert.Error(t, err)
	_, err = db.ListBookings(ctx, models.BookingFilter{})
	assert.Error(t, err)
	assert.Error(t, db.CreateBookingChecked(ctx, &models.Booking{AssetID: 1}))
	_, err = db.ListAssets(ctx, models.AssetFilter{})
	assert.Error(t, err)
	assert.Error(t, db.CreateUser(ctx, &models.User{}))
}
