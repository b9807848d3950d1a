package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"assetbook/internal/config"
	"assetbook/internal/database"
	"assetbook/internal/domain"
	"assetbook/internal/events"
	"assetbook/internal/lifecycle"
	"assetbook/internal/metrics"
	"assetbook/internal/models"
	"assetbook/internal/storage"

	"github.com/rs/zerolog"
)

// BookingRequest carries the user-editable part of a booking.
type BookingRequest struct {
	AssetID           int64     `json:"asset"`
	StartDatetime     time.Time `json:"start_datetime"`
	EndDatetime       time.Time `json:"end_datetime"`
	Purpose           string    `json:"purpose"`
	ContactName       string    `json:"contact_name"`
	ContactEmail      string    `json:"contact_email"`
	ContactAddress    string    `json:"contact_address"`
	ContactMobile     string    `json:"contact_mobile"`
	ContactLocationID *int64    `json:"contact_location"`
}

// Upload is an image file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type BookingService struct {
	bookings domain.BookingRepository
	assets   domain.AssetRepository
	users    domain.UserRepository
	images   domain.ImageStore
	quota    domain.QuotaStore
	eventBus domain.EventPublisher
	cfg      config.BookingConfig
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewBookingService(
	bookings domain.BookingRepository,
	assets domain.AssetRepository,
	users domain.UserRepository,
	images domain.ImageStore,
	quota domain.QuotaStore,
	eventBus domain.EventPublisher,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		assets:   assets,
		users:    users,
		images:   images,
		quota:    quota,
		eventBus: eventBus,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// ValidateWindow checks the window rules; the past check applies on create only.
func (s *BookingService) ValidateWindow(start, end time.Time, creating bool) error {
	if start.IsZero() || end.IsZero() {
		return domain.Validation("start_datetime and end_datetime are required")
	}
	if !end.After(start) {
		return domain.Validation("end must be after start")
	}
	if creating && start.Before(s.now()) {
		return domain.Validation("booking start time cannot be in the past")
	}
	return nil
}

// Create runs the implicit ∅ → pending transition.
func (s *BookingService) Create(ctx context.Context, actor lifecycle.Actor, req BookingRequest) (*models.Booking, error) {
	if req.AssetID == 0 {
		return nil, domain.Validation("asset is required")
	}
	if err := s.ValidateWindow(req.StartDatetime, req.EndDatetime, true); err != nil {
		return nil, err
	}

	asset, err := s.assets.GetAsset(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}

	if err := s.checkContactLocation(ctx, req.ContactLocationID); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, actor); err != nil {
		return nil, err
	}

	booking := &models.Booking{AssetID: asset.ID}
	if actor.UserID != 0 {
		uid := actor.UserID
		booking.UserID = &uid
	}
	applyRequest(booking, req)
	s.fillContact(ctx, booking)

	if err := s.bookings.CreateBookingChecked(ctx, booking); err != nil {
		if errors.Is(err, database.ErrNotAvailable) {
			metrics.IncConflict()
			s.logger.Info().
				Int64("asset_id", asset.ID).
				Time("start", req.StartDatetime).
				Time("end", req.EndDatetime).
				Msg("booking request overlaps existing booking")
		}
		return nil, err
	}

	s.logger.Info().Int64("booking_id", booking.ID).Int64("asset_id", asset.ID).Int64("user_id", actor.UserID).Msg("booking created")
	s.publishEvent(events.EventBookingCreated, booking, asset.Name, actor.UserID)
	return booking, nil
}

// Update changes the window or contact details of a pending booking.
func (s *BookingService) Update(ctx context.Context, actor lifecycle.Actor, id int64, req BookingRequest) (*models.Booking, error) {
	booking, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.AssetID != 0 && req.AssetID != booking.AssetID {
		return nil, domain.Validation("asset cannot be changed")
	}
	if booking.Status != models.StatusPending {
		return nil, domain.Conflict("only pending bookings can be changed")
	}

	if req.StartDatetime.IsZero() {
		req.StartDatetime = booking.StartDatetime
	}
	if req.EndDatetime.IsZero() {
		req.EndDatetime = booking.EndDatetime
	}
	if err := s.ValidateWindow(req.StartDatetime, req.EndDatetime, false); err != nil {
		return nil, err
	}
	if err := s.checkContactLocation(ctx, req.ContactLocationID); err != nil {
		return nil, err
	}

	mergeRequest(booking, req)
	if err := s.bookings.UpdateBookingDetailsChecked(ctx, booking); err != nil {
		if errors.Is(err, database.ErrNotAvailable) {
			metrics.IncConflict()
		}
		return nil, err
	}

	s.publishEvent(events.EventBookingUpdated, booking, s.assetName(ctx, booking.AssetID), actor.UserID)
	return booking, nil
}

// Transition applies a lifecycle action on behalf of actor. image is only
// read for receive and return.
func (s *BookingService) Transition(ctx context.Context, actor lifecycle.Actor, id int64, action lifecycle.Action, reason string, image *Upload) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Authorize(actor, action, booking); err != nil {
		return nil, err
	}

	_, noop, err := lifecycle.Next(booking.Status, action)
	if err != nil {
		return nil, err
	}
	if noop {
		return booking, nil
	}

	payload := lifecycle.Payload{Reason: strings.TrimSpace(reason)}
	if action.NeedsImage() {
		if image == nil || image.Body == nil {
			return nil, domain.Validation("image is required")
		}
		key, err := s.images.Save(ctx, imagePrefix(action), image.Filename, image.ContentType, image.Body)
		if err != nil {
			return nil, err
		}
		payload.Image = key
	}

	if _, err := lifecycle.Apply(booking, action, payload, s.now()); err != nil {
		return nil, err
	}
	if err := s.bookings.UpdateBookingState(ctx, booking); err != nil {
		if payload.Image != "" {
			if derr := s.images.Delete(payload.Image); derr != nil {
				s.logger.Warn().Err(derr).Str("image", payload.Image).Msg("failed to remove unused evidence image")
			}
		}
		return nil, err
	}

	eventType := events.ForStatus(booking.Status)
	metrics.IncTransition(eventType)
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("action", string(action)).
		Str("status", string(booking.Status)).
		Int64("actor_id", actor.UserID).
		Msg("booking transition")
	s.publishEvent(eventType, booking, s.assetName(ctx, booking.AssetID), actor.UserID)

	return booking, nil
}

// Get returns a booking visible to actor; other users' bookings look missing.
func (s *BookingService) Get(ctx context.Context, actor lifecycle.Actor, id int64) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanView(actor, booking) {
		return nil, database.ErrBookingNotFound
	}
	return booking, nil
}

func (s *BookingService) List(ctx context.Context, actor lifecycle.Actor, filter models.BookingFilter) ([]*models.Booking, error) {
	if !actor.IsAdmin {
		uid := actor.UserID
		filter.UserID = &uid
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, domain.Validation("unknown status %q", st)
		}
	}
	return s.bookings.ListBookings(ctx, filter)
}

// CheckOverlap reports whether [start, end) conflicts with a blocking booking
// of the asset, buffer included. excludeID skips a booking being edited.
func (s *BookingService) CheckOverlap(ctx context.Context, assetID int64, start, end time.Time, excludeID int64) (bool, error) {
	if err := s.ValidateWindow(start, end, false); err != nil {
		return false, err
	}
	return s.bookings.CheckOverlap(ctx, assetID, start, end, excludeID)
}

// CheckAvailability is the negation of CheckOverlap.
func (s *BookingService) CheckAvailability(ctx context.Context, assetID int64, start, end time.Time, excludeID int64) (bool, error) {
	overlap, err := s.CheckOverlap(ctx, assetID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return !overlap, nil
}

// checkContactLocation turns an unknown location id into a client error
// before it reaches the foreign key.
func (s *BookingService) checkContactLocation(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.assets.GetLocation(ctx, *id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Validation("contact location %d does not exist", *id)
		}
		return err
	}
	return nil
}

func (s *BookingService) checkQuota(ctx context.Context, actor lifecycle.Actor) error {
	if s.quota == nil || actor.IsAdmin || actor.UserID == 0 || s.cfg.MaxRequestsPerWindow <= 0 {
		return nil
	}
	key := fmt.Sprintf("booking:%d", actor.UserID)
	allowed, err := s.quota.CheckRateLimit(ctx, key, s.cfg.MaxRequestsPerWindow, s.cfg.RequestWindow)
	if err != nil {
		// квота не критична, не блокируем бронирование
		s.logger.Warn().Err(err).Int64("user_id", actor.UserID).Msg("booking quota check failed")
		return nil
	}
	if !allowed {
		return domain.RateLimited("too many booking requests, try again later")
	}
	return nil
}

func (s *BookingService) fillContact(ctx context.Context, b *models.Booking) {
	if b.UserID == nil || s.users == nil || (b.ContactEmail != "" && b.ContactName != "") {
		return
	}
	user, err := s.users.GetUserByID(ctx, *b.UserID)
	if err != nil {
		return
	}
	if b.ContactEmail == "" {
		b.ContactEmail = user.Email
	}
	if b.ContactName == "" {
		b.ContactName = user.FirstName
	}
}

func (s *BookingService) assetName(ctx context.Context, assetID int64) string {
	asset, err := s.assets.GetAsset(ctx, assetID)
	if err != nil {
		return fmt.Sprintf("asset #%d", assetID)
	}
	return asset.Name
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, assetName string, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.NewBookingPayload(booking, assetName, changedByID)
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func applyRequest(b *models.Booking, req BookingRequest) {
	b.StartDatetime = req.StartDatetime
	b.EndDatetime = req.EndDatetime
	b.Purpose = strings.TrimSpace(req.Purpose)
	b.ContactName = strings.TrimSpace(req.ContactName)
	b.ContactEmail = strings.TrimSpace(req.ContactEmail)
	b.ContactAddress = strings.TrimSpace(req.ContactAddress)
	b.ContactMobile = strings.TrimSpace(req.ContactMobile)
	b.ContactLocationID = req.ContactLocationID
}

// mergeRequest applies only the fields present in req.
func mergeRequest(b *models.Booking, req BookingRequest) {
	b.StartDatetime = req.StartDatetime
	b.EndDatetime = req.EndDatetime
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&b.Purpose, req.Purpose)
	set(&b.ContactName, req.ContactName)
	set(&b.ContactEmail, req.ContactEmail)
	set(&b.ContactAddress, req.ContactAddress)
	set(&b.ContactMobile, req.ContactMobile)
	if req.ContactLocationID != nil {
		b.ContactLocationID = req.ContactLocationID
	}
}

func imagePrefix(action lifecycle.Action) string {
	if action == lifecycle.ActionReturn {
		return storage.PrefixReturned
	}
	return storage.PrefixReceived
}
