package service

import (
	"context"
	"io"
	"time"

	"assetbook/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) CheckOverlap(ctx context.Context, assetID int64, s, e time.Time, excludeID int64) (bool, error) {
	args := m.Called(ctx, assetID, s, e, excludeID)
	return args.Bool(0), args.Error(1)
}
func (m *mockBookingRepo) CreateBookingChecked(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingRepo) UpdateBookingDetailsChecked(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingRepo) UpdateBookingState(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingRepo) GetBookingsCovering(ctx context.Context, ids []int64, at time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, ids, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) GetBookingsStartingBetween(ctx context.Context, st models.BookingStatus, from, to time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, st, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockAssetRepo struct {
	mock.Mock
}

func (m *mockAssetRepo) GetAsset(ctx context.Context, id int64) (*models.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Asset), args.Error(1)
}
func (m *mockAssetRepo) ListAssets(ctx context.Context, f models.AssetFilter) ([]*models.Asset, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Asset), args.Error(1)
}
func (m *mockAssetRepo) CreateAsset(ctx context.Context, a *models.Asset) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockAssetRepo) UpdateAsset(ctx context.Context, a *models.Asset) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockAssetRepo) MoveAsset(ctx context.Context, assetID, locationID int64, note string, at time.Time) (*models.LocationHistory, error) {
	args := m.Called(ctx, assetID, locationID, note, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LocationHistory), args.Error(1)
}
func (m *mockAssetRepo) GetAssetHistory(ctx context.Context, assetID int64) ([]*models.LocationHistory, error) {
	args := m.Called(ctx, assetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LocationHistory), args.Error(1)
}
func (m *mockAssetRepo) CountAssets(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
func (m *mockAssetRepo) SeedCatalog(ctx context.Context, c *models.Catalog) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockAssetRepo) ListCategories(ctx context.Context) ([]*models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Category), args.Error(1)
}
func (m *mockAssetRepo) ListSubCategories(ctx context.Context, categoryID int64) ([]*models.SubCategory, error) {
	args := m.Called(ctx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SubCategory), args.Error(1)
}
func (m *mockAssetRepo) GetSubCategory(ctx context.Context, id int64) (*models.SubCategory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubCategory), args.Error(1)
}
func (m *mockAssetRepo) ListLocations(ctx context.Context) ([]*models.Location, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Location), args.Error(1)
}
func (m *mockAssetRepo) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Location), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserRepo) UserExists(ctx context.Context, username, email string) (bool, bool, error) {
	args := m.Called(ctx, username, email)
	return args.Bool(0), args.Bool(1), args.Error(2)
}
func (m *mockUserRepo) MarkEmailVerified(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type mockQuota struct {
	mock.Mock
}

func (m *mockQuota) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}
func (m *mockQuota) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockImages struct {
	mock.Mock
}

func (m *mockImages) Save(ctx context.Context, prefix, filename, contentType string, r io.Reader) (string, error) {
	args := m.Called(ctx, prefix, filename, contentType, r)
	return args.String(0), args.Error(1)
}
func (m *mockImages) Open(key string) (io.ReadCloser, string, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.String(1), args.Error(2)
}

func (m *mockImages) Delete(key string) error { return m.Called(key).Error(0) }

type mockMailQueue struct {
	mock.Mock
}

func (m *mockMailQueue) Enqueue(msg models.Email) error { return m.Called(msg).Error(0) }
