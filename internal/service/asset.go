package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"assetbook/internal/availability"
	"assetbook/internal/domain"
	"assetbook/internal/models"
	"assetbook/internal/storage"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// AssetPatch lists the admin-editable asset fields; nil means unchanged.
type AssetPatch struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Details       *string `json:"details"`
	SerialNumber  *string `json:"serial_number"`
	Available     *bool   `json:"available"`
	CategoryID    *int64  `json:"category"`
	SubCategoryID *int64  `json:"subcategory"`
}

type AssetService struct {
	assets   domain.AssetRepository
	bookings domain.BookingRepository
	images   domain.ImageStore
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewAssetService(assets domain.AssetRepository, bookings domain.BookingRepository, images domain.ImageStore, logger *zerolog.Logger) *AssetService {
	return &AssetService{
		assets:   assets,
		bookings: bookings,
		images:   images,
		now:      time.Now,
		logger:   logger,
	}
}

// List returns assets with their derived display status.
func (s *AssetService) List(ctx context.Context, filter models.AssetFilter) ([]*models.Asset, error) {
	assets, err := s.assets.ListAssets(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.withStatus(ctx, assets, s.now()); err != nil {
		return nil, err
	}
	return assets, nil
}

func (s *AssetService) Get(ctx context.Context, id int64) (*models.Asset, error) {
	asset, err := s.assets.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.withStatus(ctx, []*models.Asset{asset}, s.now()); err != nil {
		return nil, err
	}
	return asset, nil
}

// DeriveAssetStatus computes the display status of one asset at now.
func (s *AssetService) DeriveAssetStatus(ctx context.Context, assetID int64, now time.Time) (string, error) {
	asset, err := s.assets.GetAsset(ctx, assetID)
	if err != nil {
		return "", err
	}
	if err := s.withStatus(ctx, []*models.Asset{asset}, now); err != nil {
		return "", err
	}
	return asset.Status, nil
}

func (s *AssetService) withStatus(ctx context.Context, assets []*models.Asset, now time.Time) error {
	if len(assets) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}

	covering, err := s.bookings.GetBookingsCovering(ctx, ids, now)
	if err != nil {
		return fmt.Errorf("load current bookings: %w", err)
	}

	byAsset := make(map[int64][]*models.Booking, len(covering))
	for _, b := range covering {
		byAsset[b.AssetID] = append(byAsset[b.AssetID], b)
	}
	for _, a := range assets {
		a.Status = availability.DeriveStatus(a, byAsset[a.ID], now)
	}
	return nil
}

func (s *AssetService) Create(ctx context.Context, asset *models.Asset) error {
	asset.Name = strings.TrimSpace(asset.Name)
	if asset.Name == "" {
		return domain.Validation("name is required")
	}
	if err := s.checkRefs(ctx, asset); err != nil {
		return err
	}
	if err := s.assets.CreateAsset(ctx, asset); err != nil {
		return err
	}
	s.logger.Info().Int64("asset_id", asset.ID).Str("name", asset.Name).Msg("asset created")
	return nil
}

func (s *AssetService) Update(ctx context.Context, id int64, patch AssetPatch) (*models.Asset, error) {
	asset, err := s.assets.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.Validation("name cannot be empty")
		}
		asset.Name = name
	}
	if patch.Description != nil {
		asset.Description = *patch.Description
	}
	if patch.Details != nil {
		asset.Details = *patch.Details
	}
	if patch.SerialNumber != nil {
		asset.SerialNumber = *patch.SerialNumber
	}
	if patch.Available != nil {
		asset.Available = *patch.Available
	}
	if patch.CategoryID != nil {
		asset.CategoryID = nilIfZero(*patch.CategoryID)
	}
	if patch.SubCategoryID != nil {
		asset.SubCategoryID = nilIfZero(*patch.SubCategoryID)
	}

	if err := s.checkRefs(ctx, asset); err != nil {
		return nil, err
	}
	if err := s.assets.UpdateAsset(ctx, asset); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// checkRefs verifies that the subcategory exists and belongs to the category.
func (s *AssetService) checkRefs(ctx context.Context, asset *models.Asset) error {
	if asset.SubCategoryID != nil {
		sub, err := s.assets.GetSubCategory(ctx, *asset.SubCategoryID)
		if err != nil {
			return err
		}
		if asset.CategoryID == nil {
			catID := sub.CategoryID
			asset.CategoryID = &catID
		} else if *asset.CategoryID != sub.CategoryID {
			return domain.Validation("subcategory does not belong to category")
		}
	}
	if asset.LocationID != nil {
		if _, err := s.assets.GetLocation(ctx, *asset.LocationID); err != nil {
			return err
		}
	}
	return nil
}

// Move relocates the asset and records the move in its history.
func (s *AssetService) Move(ctx context.Context, assetID, locationID int64, note string) (*models.LocationHistory, error) {
	if locationID == 0 {
		return nil, domain.Validation("location is required")
	}
	entry, err := s.assets.MoveAsset(ctx, assetID, locationID, strings.TrimSpace(note), s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("asset_id", assetID).Int64("location_id", locationID).Msg("asset moved")
	return entry, nil
}

func (s *AssetService) History(ctx context.Context, assetID int64) ([]*models.LocationHistory, error) {
	if _, err := s.assets.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	return s.assets.GetAssetHistory(ctx, assetID)
}

func (s *AssetService) SetImage(ctx context.Context, assetID int64, upload *Upload) (*models.Asset, error) {
	if upload == nil || upload.Body == nil {
		return nil, domain.Validation("image is required")
	}
	asset, err := s.assets.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	key, err := s.images.Save(ctx, storage.PrefixAssets, upload.Filename, upload.ContentType, upload.Body)
	if err != nil {
		return nil, err
	}
	asset.Image = key
	if err := s.assets.UpdateAsset(ctx, asset); err != nil {
		return nil, err
	}
	return s.Get(ctx, assetID)
}

func (s *AssetService) Categories(ctx context.Context) ([]*models.Category, error) {
	return s.assets.ListCategories(ctx)
}

func (s *AssetService) SubCategories(ctx context.Context, categoryID int64) ([]*models.SubCategory, error) {
	return s.assets.ListSubCategories(ctx, categoryID)
}

func (s *AssetService) Locations(ctx context.Context) ([]*models.Location, error) {
	return s.assets.ListLocations(ctx)
}

// SeedIfEmpty loads the catalog file into an empty database. A missing
// file is not an error.
func (s *AssetService) SeedIfEmpty(ctx context.Context, path string) (bool, error) {
	count, err := s.assets.CountAssets(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Str("path", path).Msg("catalog file not found, skipping seed")
			return false, nil
		}
		return false, fmt.Errorf("read catalog: %w", err)
	}

	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return false, fmt.Errorf("parse catalog: %w", err)
	}
	if err := s.assets.SeedCatalog(ctx, &catalog); err != nil {
		return false, err
	}
	return true, nil
}

func nilIfZero(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
