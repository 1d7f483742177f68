package app

import (
	"context"
	"fmt"

	"slotbot/internal/util"
	"slotbot/pkg/contact"
	"slotbot/pkg/domain"
	"slotbot/pkg/schedule"
)

// DayAvailability lists the free slots of one date.
type DayAvailability struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

// MyBookings returns the user's live bookings.
func (a *App) MyBookings(userID string) []domain.Booking {
	return a.bookings.ListByOwner(userID)
}

// BookingDetails returns one of the user's own bookings.
func (a *App) BookingDetails(userID string, id int64) (domain.Booking, error) {
	b, ok := a.bookings.GetBooking(id)
	if !ok || b.OwnerID != userID {
		return domain.Booking{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return b, nil
}

// CancelOwnBooking cancels a booking owned by the user.
func (a *App) CancelOwnBooking(ctx context.Context, userID string, id int64) (domain.Booking, error) {
	b, ok := a.bookings.TakeBooking(id, userID)
	if !ok {
		return domain.Booking{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	util.LoggerFromContext(ctx).Info("booking cancelled by owner", "user_id", userID, "booking_id", id)
	a.publish(ctx, domain.Event{
		Type:      domain.EventBookingCancelled,
		BookingID: b.ID,
		OwnerID:   b.OwnerID,
		Date:      b.Date,
		Slot:      b.Slot,
		Actor:     domain.ActorOwner,
		ActorID:   userID,
	})
	return b, nil
}

// FreeTimes returns free slots for every date of the booking window.
func (a *App) FreeTimes() []DayAvailability {
	dates := a.catalog.Dates(a.now())
	out := make([]DayAvailability, 0, len(dates))
	for _, d := range dates {
		out = append(out, DayAvailability{Date: d, Slots: a.FreeSlots(d)})
	}
	return out
}

// Availability returns free slots for a single date of the booking window.
func (a *App) Availability(date string) (DayAvailability, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return DayAvailability{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if !a.catalog.InWindow(date, a.now()) {
		return DayAvailability{}, fmt.Errorf("%w: %s is outside the booking window", ErrInvalidDate, date)
	}
	return DayAvailability{Date: date, Slots: a.FreeSlots(date)}, nil
}

// AllBookingsOverview lists every live booking. Phones are masked unless the viewer is an admin.
func (a *App) AllBookingsOverview(ctx context.Context, viewerID string) []domain.Booking {
	all := a.bookings.ListAll()
	if a.IsAdmin(ctx, viewerID) {
		return all
	}
	for i := range all {
		if all[i].OwnerID != viewerID {
			all[i].Phone = contact.MaskPhone(all[i].Phone)
		}
	}
	return all
}
