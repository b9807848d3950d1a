// Package lifecycle holds the booking state machine and the role checks
// that gate it. Nothing here touches storage.
package lifecycle

import (
	"time"

	"assetbook/internal/domain"
	"assetbook/internal/models"
)

type Action string

const (
	ActionAccept        Action = "accept"
	ActionReject        Action = "reject"
	ActionCancel        Action = "cancel"
	ActionCancelApprove Action = "cancel_approve"
	ActionReceive       Action = "receive"
	ActionReturn        Action = "return"
)

// ParseAction accepts the action names used on the wire.
func ParseAction(s string) (Action, error) {
	switch s {
	case "accept", "reject", "cancel", "cancel_approve", "receive", "return":
		return Action(s), nil
	case "return_asset":
		return ActionReturn, nil
	}
	return "", domain.Validation("unknown action %q", s)
}

func (a Action) AdminOnly() bool {
	return a == ActionAccept || a == ActionReject || a == ActionCancelApprove
}

// NeedsImage reports whether the action must carry photo evidence.
func (a Action) NeedsImage() bool {
	return a == ActionReceive || a == ActionReturn
}

// Actor is the authenticated caller.
type Actor struct {
	UserID  int64
	IsAdmin bool
}

type Payload struct {
	Reason string
	// Image is the stored evidence key for receive and return.
	Image string
}

// CanView reports whether actor may see b at all.
func CanView(actor Actor, b *models.Booking) bool {
	return actor.IsAdmin || b.OwnedBy(actor.UserID)
}

// Authorize checks the role requirements of action on b.
// Foreign bookings are reported as missing so their existence is not leaked.
func Authorize(actor Actor, action Action, b *models.Booking) error {
	if !CanView(actor, b) {
		return domain.NotFound("booking not found")
	}
	if action.AdminOnly() && !actor.IsAdmin {
		return domain.Forbidden("only administrators can %s bookings", action)
	}
	return nil
}

// Next resolves the target status of action from status.
// noop is true when the action is an idempotent repeat.
func Next(from models.BookingStatus, action Action) (to models.BookingStatus, noop bool, err error) {
	switch action {
	case ActionAccept:
		switch from {
		case models.StatusPending:
			return models.StatusAccepted, false, nil
		case models.StatusAccepted:
			return from, true, nil
		}
		return "", false, domain.Conflict("cannot accept booking in its current status")

	case ActionReject:
		switch from {
		case models.StatusPending:
			return models.StatusRejected, false, nil
		case models.StatusRejected:
			return from, true, nil
		case models.StatusCancelled:
			return "", false, domain.Conflict("cannot reject booking after cancellation")
		case models.StatusAccepted:
			return "", false, domain.Conflict("cannot reject an accepted booking")
		}
		return "", false, domain.Conflict("cannot reject booking in its current status")

	case ActionCancel:
		switch from {
		case models.StatusPending, models.StatusAccepted:
			return models.StatusCancellationRequested, false, nil
		case models.StatusCancelled, models.StatusCancellationRequested:
			return from, true, nil
		}
		return "", false, domain.Conflict("cannot cancel booking in its current status")

	case ActionCancelApprove:
		if from == models.StatusCancellationRequested {
			return models.StatusCancelled, false, nil
		}
		return "", false, domain.Conflict("booking is not in cancellation requested state")

	case ActionReceive:
		if from == models.StatusAccepted {
			return models.StatusReceived, false, nil
		}
		return "", false, domain.Conflict("booking must be accepted to be received")

	case ActionReturn:
		if from == models.StatusReceived {
			return models.StatusReturned, false, nil
		}
		return "", false, domain.Conflict("booking must be received to be returned")
	}

	return "", false, domain.Validation("unknown action %q", action)
}

// Apply moves b through action at now. It reports false for idempotent
// repeats, in which case b is left untouched.
func Apply(b *models.Booking, action Action, p Payload, now time.Time) (bool, error) {
	to, noop, err := Next(b.Status, action)
	if err != nil {
		return false, err
	}
	if noop {
		return false, nil
	}

	if action.NeedsImage() && p.Image == "" {
		return false, domain.Validation("image is required")
	}

	ts := now.UTC()
	switch action {
	case ActionCancel:
		b.CancellationReason = p.Reason
	case ActionReceive:
		b.ReceivedImage = p.Image
		b.ReceivedAt = &ts
	case ActionReturn:
		b.ReturnedImage = p.Image
		b.ReturnedAt = &ts
	}

	b.Status = to
	b.UpdatedAt = ts
	return true, nil
}
