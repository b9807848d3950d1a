// Package availability decides whether a booking window is free and
// what an asset's display status is at a given instant.
package availability

import (
	"time"

	"assetbook/internal/models"
)

// Buffer is the margin kept free on both sides of every booking.
const Buffer = time.Hour

// BlockingStatuses hold the asset for their window.
var BlockingStatuses = []models.BookingStatus{
	models.StatusPending,
	models.StatusAccepted,
	models.StatusCancellationRequested,
}

type Window struct {
	Start time.Time
	End   time.Time
}

func IsBlocking(status models.BookingStatus) bool {
	for _, s := range BlockingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Overlaps reports whether two windows collide once the buffer is applied:
// s2 < e1+1h && e2 > s1-1h.
func Overlaps(existing, candidate Window) bool {
	return candidate.Start.Before(existing.End.Add(Buffer)) &&
		candidate.End.After(existing.Start.Add(-Buffer))
}

// SearchRange widens a window by the buffer. Any booking that can conflict
// with w intersects the returned range, so storage may prefilter with it.
func SearchRange(w Window) Window {
	return Window{Start: w.Start.Add(-Buffer), End: w.End.Add(Buffer)}
}

// FindConflicts returns the bookings that block candidate.
// The booking with id excludeID (0 for none) is skipped.
func FindConflicts(bookings []*models.Booking, candidate Window, excludeID int64) []*models.Booking {
	var conflicts []*models.Booking
	for _, b := range bookings {
		if excludeID != 0 && b.ID == excludeID {
			continue
		}
		if !IsBlocking(b.Status) {
			continue
		}
		if Overlaps(Window{Start: b.StartDatetime, End: b.EndDatetime}, candidate) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts
}

// HasConflict is FindConflicts reduced to a yes/no answer.
func HasConflict(bookings []*models.Booking, candidate Window, excludeID int64) bool {
	return len(FindConflicts(bookings, candidate, excludeID)) > 0
}

// DeriveStatus computes the label shown for an asset at now.
// bookings may contain any bookings of the asset; only those covering now count.
func DeriveStatus(asset *models.Asset, bookings []*models.Booking, now time.Time) string {
	if !asset.Available {
		return models.DisplayOutOfStock
	}

	pending := false
	for _, b := range bookings {
		if b.AssetID != asset.ID || !b.Covers(now) {
			continue
		}
		switch b.Status {
		case models.StatusAccepted:
			return models.DisplayOutOfStock
		case models.StatusPending:
			pending = true
		}
	}

	if pending {
		return models.DisplayPending
	}
	return models.DisplayAvailable
}
