package events

import (
	"sync"
	"time"

	"assetbook/internal/models"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	EventBookingCreated               = "booking_created"
	EventBookingUpdated               = "booking_updated"
	EventBookingAccepted              = "booking_accepted"
	EventBookingRejected              = "booking_rejected"
	EventBookingCancellationRequested = "booking_cancellation_requested"
	EventBookingCancelled             = "booking_cancelled"
	EventBookingReceived              = "booking_received"
	EventBookingReturned              = "booking_returned"
)

// BookingEventTypes lists every booking event, for subscribers that want all of them.
var BookingEventTypes = []string{
	EventBookingCreated,
	EventBookingUpdated,
	EventBookingAccepted,
	EventBookingRejected,
	EventBookingCancellationRequested,
	EventBookingCancelled,
	EventBookingReceived,
	EventBookingReturned,
}

// ForStatus maps the status a booking entered to its event type.
func ForStatus(status models.BookingStatus) string {
	switch status {
	case models.StatusPending:
		return EventBookingCreated
	case models.StatusAccepted:
		return EventBookingAccepted
	case models.StatusRejected:
		return EventBookingRejected
	case models.StatusCancellationRequested:
		return EventBookingCancellationRequested
	case models.StatusCancelled:
		return EventBookingCancelled
	case models.StatusReceived:
		return EventBookingReceived
	case models.StatusReturned:
		return EventBookingReturned
	}
	return ""
}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID          int64                `json:"booking_id"`
	AssetID            int64                `json:"asset_id"`
	AssetName          string               `json:"asset_name"`
	UserID             int64                `json:"user_id,omitempty"`
	Status             models.BookingStatus `json:"status"`
	Start              time.Time            `json:"start_datetime"`
	End                time.Time            `json:"end_datetime"`
	ContactName        string               `json:"contact_name,omitempty"`
	ContactEmail       string               `json:"contact_email,omitempty"`
	CancellationReason string               `json:"cancellation_reason,omitempty"`
	ChangedByID        int64                `json:"changed_by_id,omitempty"`
}

// NewBookingPayload snapshots b for publishing.
func NewBookingPayload(b *models.Booking, assetName string, changedBy int64) BookingEventPayload {
	p := BookingEventPayload{
		BookingID:          b.ID,
		AssetID:            b.AssetID,
		AssetName:          assetName,
		Status:             b.Status,
		Start:              b.StartDatetime,
		End:                b.EndDatetime,
		ContactName:        b.ContactName,
		ContactEmail:       b.ContactEmail,
		CancellationReason: b.CancellationReason,
		ChangedByID:        changedBy,
	}
	if b.UserID != nil {
		p.UserID = *b.UserID
	}
	return p
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	onError     func(event *Event, err error)
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a hook for handler failures.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range eventTypes {
		b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Handlers run synchronously; caller decides concurrency model.
	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
