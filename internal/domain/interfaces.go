package domain

import (
	"context"
	"io"
	"time"

	"assetbook/internal/models"
)

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	CheckOverlap(ctx context.Context, assetID int64, start, end time.Time, excludeID int64) (bool, error)
	CreateBookingChecked(ctx context.Context, booking *models.Booking) error
	UpdateBookingDetailsChecked(ctx context.Context, booking *models.Booking) error
	UpdateBookingState(ctx context.Context, booking *models.Booking) error
	GetBookingsCovering(ctx context.Context, assetIDs []int64, at time.Time) ([]*models.Booking, error)
	GetBookingsStartingBetween(ctx context.Context, status models.BookingStatus, from, to time.Time) ([]*models.Booking, error)
}

type AssetRepository interface {
	GetAsset(ctx context.Context, id int64) (*models.Asset, error)
	ListAssets(ctx context.Context, filter models.AssetFilter) ([]*models.Asset, error)
	CreateAsset(ctx context.Context, asset *models.Asset) error
	UpdateAsset(ctx context.Context, asset *models.Asset) error
	MoveAsset(ctx context.Context, assetID, locationID int64, note string, at time.Time) (*models.LocationHistory, error)
	GetAssetHistory(ctx context.Context, assetID int64) ([]*models.LocationHistory, error)
	CountAssets(ctx context.Context) (int, error)
	SeedCatalog(ctx context.Context, catalog *models.Catalog) error

	ListCategories(ctx context.Context) ([]*models.Category, error)
	ListSubCategories(ctx context.Context, categoryID int64) ([]*models.SubCategory, error)
	GetSubCategory(ctx context.Context, id int64) (*models.SubCategory, error)
	ListLocations(ctx context.Context) ([]*models.Location, error)
	GetLocation(ctx context.Context, id int64) (*models.Location, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UserExists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	MarkEmailVerified(ctx context.Context, id int64, at time.Time) error
}

// QuotaStore counts requests per key and records one-shot markers.
type QuotaStore interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type Mailer interface {
	Send(ctx context.Context, msg models.Email) error
}

type MailQueue interface {
	Enqueue(msg models.Email) error
}

// ImageStore persists uploaded evidence and returns an opaque key for it.
type ImageStore interface {
	Save(ctx context.Context, prefix, filename, contentType string, r io.Reader) (string, error)
	Open(key string) (io.ReadCloser, string, error)
	Delete(key string) error
}
