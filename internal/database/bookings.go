package database

import (
	"context"
	"fmt"
	"time"

	"assetbook/internal/availability"
	"assetbook/internal/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

var bookingColumns = []interface{}{
	"id", "asset_id", "user_id", "status", "start_datetime", "end_datetime",
	"received_image", "received_at", "returned_image", "returned_at",
	"purpose", "contact_name", "contact_email", "contact_address", "contact_mobile",
	"contact_location_id", "cancellation_reason", "created_at", "updated_at", "version",
}

const selectBooking = `SELECT id, asset_id, user_id, status, start_datetime, end_datetime,
        received_image, received_at, returned_image, returned_at,
        purpose, contact_name, contact_email, contact_address, contact_mobile,
        contact_location_id, cancellation_reason, created_at, updated_at, version
    FROM bookings`

func blockingStatuses() []interface{} {
	out := make([]interface{}, 0, len(availability.BlockingStatuses))
	for _, s := range availability.BlockingStatuses {
		out = append(out, string(s))
	}
	return out
}

// lockAsset serializes writers for one asset inside tx.
func (db *DB) lockAsset(ctx context.Context, tx *sqlx.Tx, assetID int64) error {
	query := `SELECT id FROM assets WHERE id = ?`
	if db.driver == DriverPostgres {
		query += ` FOR UPDATE`
	}
	var id int64
	if err := tx.QueryRowxContext(ctx, db.Rebind(query), assetID).Scan(&id); err != nil {
		return notFound(err, ErrAssetNotFound)
	}
	return nil
}

// blockingInRange loads blocking bookings of the asset that may collide with w.
func (db *DB) blockingInRange(ctx context.Context, q sqlx.QueryerContext, assetID int64, w availability.Window) ([]*models.Booking, error) {
	search := availability.SearchRange(w)
	query, args, err := sqlx.In(selectBooking+`
        WHERE asset_id = ? AND status IN (?) AND start_datetime < ? AND end_datetime > ?`,
		assetID, blockingStatuses(), utc(search.End), utc(search.Start))
	if err != nil {
		return nil, err
	}

	var bookings []*models.Booking
	if err := sqlx.SelectContext(ctx, q, &bookings, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load blocking bookings: %w", err)
	}
	return bookings, nil
}

// CheckOverlap reports whether [start, end] collides with a blocking booking of the asset.
// This is a read-only probe; CreateBookingChecked repeats the check under lock.
func (db *DB) CheckOverlap(ctx context.Context, assetID int64, start, end time.Time, excludeID int64) (bool, error) {
	w := availability.Window{Start: start, End: end}
	bookings, err := db.blockingInRange(ctx, db.DB, assetID, w)
	if err != nil {
		return false, err
	}
	return availability.HasConflict(bookings, w, excludeID), nil
}

// CreateBookingChecked inserts booking in pending state when its window is free.
// Lock, check and insert share one transaction.
func (db *DB) CreateBookingChecked(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := db.lockAsset(ctx, tx, booking.AssetID); err != nil {
		return err
	}

	w := availability.Window{Start: booking.StartDatetime, End: booking.EndDatetime}
	existing, err := db.blockingInRange(ctx, tx, booking.AssetID, w)
	if err != nil {
		return err
	}
	if availability.HasConflict(existing, w, 0) {
		return ErrNotAvailable
	}

	now := utc(time.Now())
	booking.Status = models.StatusPending
	booking.StartDatetime = utc(booking.StartDatetime)
	booking.EndDatetime = utc(booking.EndDatetime)

	id, err := db.insertReturningID(ctx, tx, `INSERT INTO bookings (
            asset_id, user_id, status, start_datetime, end_datetime,
            purpose, contact_name, contact_email, contact_address, contact_mobile,
            contact_location_id, created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		booking.AssetID,
		booking.UserID,
		booking.Status,
		booking.StartDatetime,
		booking.EndDatetime,
		booking.Purpose,
		booking.ContactName,
		booking.ContactEmail,
		booking.ContactAddress,
		booking.ContactMobile,
		booking.ContactLocationID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// UpdateBookingDetailsChecked stores a new window and contact details for a
// pending booking. The window is re-checked excluding the booking itself.
func (db *DB) UpdateBookingDetailsChecked(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := db.lockAsset(ctx, tx, booking.AssetID); err != nil {
		return err
	}

	w := availability.Window{Start: booking.StartDatetime, End: booking.EndDatetime}
	existing, err := db.blockingInRange(ctx, tx, booking.AssetID, w)
	if err != nil {
		return err
	}
	if availability.HasConflict(existing, w, booking.ID) {
		return ErrNotAvailable
	}

	now := utc(time.Now())
	result, err := tx.ExecContext(ctx, db.Rebind(`UPDATE bookings SET
            start_datetime = ?, end_datetime = ?, purpose = ?,
            contact_name = ?, contact_email = ?, contact_address = ?, contact_mobile = ?,
            contact_location_id = ?, updated_at = ?, version = version + 1
        WHERE id = ? AND version = ? AND status = ?`),
		utc(booking.StartDatetime),
		utc(booking.EndDatetime),
		booking.Purpose,
		booking.ContactName,
		booking.ContactEmail,
		booking.ContactAddress,
		booking.ContactMobile,
		booking.ContactLocationID,
		now,
		booking.ID,
		booking.Version,
		models.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking update: %w", err)
	}

	booking.UpdatedAt = now
	booking.Version++
	return nil
}

// UpdateBookingState persists a lifecycle transition guarded by the version
// the booking was read with.
func (db *DB) UpdateBookingState(ctx context.Context, booking *models.Booking) error {
	now := utc(time.Now())
	result, err := db.ExecContext(ctx, db.Rebind(`UPDATE bookings SET
            status = ?, received_image = ?, received_at = ?, returned_image = ?, returned_at = ?,
            cancellation_reason = ?, updated_at = ?, version = version + 1
        WHERE id = ? AND version = ?`),
		booking.Status,
		booking.ReceivedImage,
		utcPtr(booking.ReceivedAt),
		booking.ReturnedImage,
		utcPtr(booking.ReturnedAt),
		booking.CancellationReason,
		now,
		booking.ID,
		booking.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	booking.UpdatedAt = now
	booking.Version++
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	if err := db.GetContext(ctx, &booking, db.Rebind(selectBooking+` WHERE id = ?`), id); err != nil {
		return nil, notFound(err, ErrBookingNotFound)
	}
	return &booking, nil
}

// ListBookings returns bookings matching filter, newest start first.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	ds := db.dialect.From("bookings").Select(bookingColumns...)

	if filter.UserID != nil {
		ds = ds.Where(goqu.C("user_id").Eq(*filter.UserID))
	}
	if filter.AssetID != 0 {
		ds = ds.Where(goqu.C("asset_id").Eq(filter.AssetID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		ds = ds.Where(goqu.C("status").In(statuses))
	}
	if !filter.From.IsZero() {
		ds = ds.Where(goqu.C("end_datetime").Gte(utc(filter.From)))
	}
	if !filter.To.IsZero() {
		ds = ds.Where(goqu.C("start_datetime").Lte(utc(filter.To)))
	}

	ds = ds.Order(goqu.I("start_datetime").Desc(), goqu.I("id").Desc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := toSQL(ds)
	if err != nil {
		return nil, err
	}

	var bookings []*models.Booking
	if err := db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// GetBookingsCovering returns pending and accepted bookings of the given
// assets whose window contains at.
func (db *DB) GetBookingsCovering(ctx context.Context, assetIDs []int64, at time.Time) ([]*models.Booking, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}

	ds := db.dialect.From("bookings").Select(bookingColumns...).Where(
		goqu.C("asset_id").In(assetIDs),
		goqu.C("status").In(string(models.StatusPending), string(models.StatusAccepted)),
		goqu.C("start_datetime").Lte(utc(at)),
		goqu.C("end_datetime").Gte(utc(at)),
	)

	query, args, err := toSQL(ds)
	if err != nil {
		return nil, err
	}

	var bookings []*models.Booking
	if err := db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load current bookings: %w", err)
	}
	return bookings, nil
}

// GetBookingsStartingBetween returns bookings in status that start in [from, to).
func (db *DB) GetBookingsStartingBetween(ctx context.Context, status models.BookingStatus, from, to time.Time) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := selectBooking + ` WHERE status = ? AND start_datetime >= ? AND start_datetime < ? ORDER BY start_datetime ASC`
	if err := db.SelectContext(ctx, &bookings, db.Rebind(query), status, utc(from), utc(to)); err != nil {
		return nil, fmt.Errorf("failed to get bookings by start range: %w", err)
	}
	return bookings, nil
}
