package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"assetbook/internal/domain"
	"assetbook/internal/models"
	"assetbook/internal/notify"

	"github.com/rs/zerolog"
)

const (
	reminderLookahead = 24 * time.Hour
	reminderMarkerTTL = 48 * time.Hour
)

// Reminders mails contacts of accepted bookings that start within the next day.
// Each booking is reminded at most once.
type Reminders struct {
	bookings domain.BookingRepository
	assets   domain.AssetRepository
	markers  domain.QuotaStore
	mail     domain.MailQueue
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewReminders(
	bookings domain.BookingRepository,
	assets domain.AssetRepository,
	markers domain.QuotaStore,
	mail domain.MailQueue,
	logger *zerolog.Logger,
) *Reminders {
	return &Reminders{
		bookings: bookings,
		assets:   assets,
		markers:  markers,
		mail:     mail,
		now:      time.Now,
		logger:   logger,
	}
}

func (r *Reminders) Run(ctx context.Context) error {
	now := r.now().UTC()
	upcoming, err := r.bookings.GetBookingsStartingBetween(ctx, models.StatusAccepted, now, now.Add(reminderLookahead))
	if err != nil {
		return fmt.Errorf("load upcoming bookings: %w", err)
	}

	sent := 0
	names := make(map[int64]string)
	for _, b := range upcoming {
		if b.ContactEmail == "" {
			continue
		}
		first, err := r.markers.MarkOnce(ctx, "reminder:"+strconv.FormatInt(b.ID, 10), reminderMarkerTTL)
		if err != nil {
			return fmt.Errorf("mark reminder %d: %w", b.ID, err)
		}
		if !first {
			continue
		}

		name, ok := names[b.AssetID]
		if !ok {
			name = fmt.Sprintf("asset #%d", b.AssetID)
			if asset, err := r.assets.GetAsset(ctx, b.AssetID); err == nil {
				name = asset.Name
			}
			names[b.AssetID] = name
		}

		msg, ok := notify.ReminderEmail(b, name)
		if !ok {
			continue
		}
		if err := r.mail.Enqueue(msg); err != nil {
			r.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("Failed to queue reminder")
			continue
		}
		sent++
	}

	if sent > 0 {
		r.logger.Info().Int("sent", sent).Msg("Booking reminders queued")
	}
	return nil
}
