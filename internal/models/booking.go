package models

import "time"

type BookingStatus string

const (
	StatusPending               BookingStatus = "pending"
	StatusAccepted              BookingStatus = "accepted"
	StatusRejected              BookingStatus = "rejected"
	StatusCancellationRequested BookingStatus = "cancellation_requested"
	StatusCancelled             BookingStatus = "cancelled"
	StatusReceived              BookingStatus = "received"
	StatusReturned              BookingStatus = "returned"
)

// AllStatuses lists the wire tokens in lifecycle order.
var AllStatuses = []BookingStatus{
	StatusPending,
	StatusAccepted,
	StatusRejected,
	StatusCancellationRequested,
	StatusCancelled,
	StatusReceived,
	StatusReturned,
}

func (s BookingStatus) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type Booking struct {
	ID                 int64         `db:"id" json:"id"`
	AssetID            int64         `db:"asset_id" json:"asset"`
	UserID             *int64        `db:"user_id" json:"user"`
	Status             BookingStatus `db:"status" json:"status"`
	StartDatetime      time.Time     `db:"start_datetime" json:"start_datetime"`
	EndDatetime        time.Time     `db:"end_datetime" json:"end_datetime"`
	ReceivedImage      string        `db:"received_image" json:"received_image"`
	ReceivedAt         *time.Time    `db:"received_at" json:"received_at"`
	ReturnedImage      string        `db:"returned_image" json:"returned_image"`
	ReturnedAt         *time.Time    `db:"returned_at" json:"returned_at"`
	Purpose            string        `db:"purpose" json:"purpose"`
	ContactName        string        `db:"contact_name" json:"contact_name"`
	ContactEmail       string        `db:"contact_email" json:"contact_email"`
	ContactAddress     string        `db:"contact_address" json:"contact_address"`
	ContactMobile      string        `db:"contact_mobile" json:"contact_mobile"`
	ContactLocationID  *int64        `db:"contact_location_id" json:"contact_location"`
	CancellationReason string        `db:"cancellation_reason" json:"cancellation_reason"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
	Version            int64         `db:"version" json:"version"`
}

// OwnedBy reports whether the booking was made by userID.
func (b *Booking) OwnedBy(userID int64) bool {
	return b.UserID != nil && *b.UserID == userID
}

// Covers reports whether t falls inside [start, end].
func (b *Booking) Covers(t time.Time) bool {
	return !t.Before(b.StartDatetime) && !t.After(b.EndDatetime)
}

// BookingFilter narrows booking listings. Zero values mean "any".
type BookingFilter struct {
	UserID   *int64
	AssetID  int64
	Statuses []BookingStatus
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}
