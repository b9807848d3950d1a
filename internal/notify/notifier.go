package notify

import (
	"fmt"
	"time"

	"assetbook/internal/domain"
	"assetbook/internal/events"
	"assetbook/internal/models"

	"github.com/rs/zerolog"
)

const timeLayout = "02.01.2006 15:04 MST"

// Notifier turns booking events into emails for the booking contact.
type Notifier struct {
	queue  domain.MailQueue
	logger *zerolog.Logger
}

func NewNotifier(queue domain.MailQueue, logger *zerolog.Logger) *Notifier {
	return &Notifier{queue: queue, logger: logger}
}

// Subscribe registers the notifier for every booking event on bus.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(n.HandleEvent, events.BookingEventTypes...)
}

func (n *Notifier) HandleEvent(e *events.Event) error {
	var p events.BookingEventPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}

	msg, ok := BookingEmail(e.Type, p)
	if !ok {
		return nil
	}
	if err := n.queue.Enqueue(msg); err != nil {
		return fmt.Errorf("enqueue %s mail for booking %d: %w", e.Type, p.BookingID, err)
	}
	n.logger.Debug().Str("event", e.Type).Int64("booking_id", p.BookingID).Msg("notification queued")
	return nil
}

// BookingEmail renders the message for a booking event. ok is false when
// there is nobody to write to or the event is not mailed.
func BookingEmail(eventType string, p events.BookingEventPayload) (models.Email, bool) {
	if p.ContactEmail == "" {
		return models.Email{}, false
	}

	var subject, body string
	window := fmt.Sprintf("%s – %s", p.Start.UTC().Format(timeLayout), p.End.UTC().Format(timeLayout))

	switch eventType {
	case events.EventBookingCreated:
		subject = fmt.Sprintf("Booking request #%d received", p.BookingID)
		body = fmt.Sprintf("Your request for %s (%s) is waiting for approval.", p.AssetName, window)
	case events.EventBookingAccepted:
		subject = fmt.Sprintf("Booking #%d accepted", p.BookingID)
		body = fmt.Sprintf("Your booking of %s (%s) was accepted.", p.AssetName, window)
	case events.EventBookingRejected:
		subject = fmt.Sprintf("Booking #%d rejected", p.BookingID)
		body = fmt.Sprintf("Your booking of %s (%s) was rejected.", p.AssetName, window)
	case events.EventBookingCancellationRequested:
		subject = fmt.Sprintf("Cancellation of booking #%d requested", p.BookingID)
		body = fmt.Sprintf("Cancellation of %s (%s) is waiting for approval.", p.AssetName, window)
		if p.CancellationReason != "" {
			body += "\nReason: " + p.CancellationReason
		}
	case events.EventBookingCancelled:
		subject = fmt.Sprintf("Booking #%d cancelled", p.BookingID)
		body = fmt.Sprintf("Your booking of %s (%s) is cancelled.", p.AssetName, window)
	case events.EventBookingReceived:
		subject = fmt.Sprintf("%s handed over", p.AssetName)
		body = fmt.Sprintf("%s was handed over for booking #%d. Please return it by %s.",
			p.AssetName, p.BookingID, p.End.UTC().Format(timeLayout))
	case events.EventBookingReturned:
		subject = fmt.Sprintf("%s returned", p.AssetName)
		body = fmt.Sprintf("Thank you, %s was returned. Booking #%d is closed.", p.AssetName, p.BookingID)
	default:
		return models.Email{}, false
	}

	return models.Email{
		To:       p.ContactEmail,
		ToName:   p.ContactName,
		Subject:  subject,
		Text:     greeting(p.ContactName) + body,
		Category: eventType,
	}, true
}

// ReminderEmail is sent the day before an accepted booking starts.
func ReminderEmail(b *models.Booking, assetName string) (models.Email, bool) {
	if b.ContactEmail == "" {
		return models.Email{}, false
	}
	left := time.Until(b.StartDatetime).Round(time.Hour)
	if left < 0 {
		left = 0
	}
	return models.Email{
		To:      b.ContactEmail,
		ToName:  b.ContactName,
		Subject: fmt.Sprintf("Reminder: %s pickup", assetName),
		Text: greeting(b.ContactName) + fmt.Sprintf("Booking #%d for %s starts at %s (in about %s).",
			b.ID, assetName, b.StartDatetime.UTC().Format(timeLayout), left),
		Category: "booking_reminder",
	}, true
}

// VerificationEmail carries the activation link for a new account.
func VerificationEmail(user *models.User, link string) models.Email {
	return models.Email{
		To:       user.Email,
		ToName:   user.FirstName,
		Subject:  "Confirm your email",
		Text:     greeting(user.FirstName) + "Open the link to activate your account:\n" + link,
		Category: "email_verification",
	}
}

func greeting(name string) string {
	if name == "" {
		return "Hello,\n\n"
	}
	return "Hello, " + name + "!\n\n"
}
