package domain

import "time"

type Booking struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Date      string    `json:"date"`
	Slot      string    `json:"slot"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

type EventType string

const (
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingsReset    EventType = "bookings.reset"
)

type Actor string

const (
	ActorOwner Actor = "owner"
	ActorAdmin Actor = "admin"
)

type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	BookingID int64     `json:"bookingId,omitempty"`
	OwnerID   string    `json:"ownerId,omitempty"`
	Date      string    `json:"date,omitempty"`
	Slot      string    `json:"slot,omitempty"`
	Actor     Actor     `json:"actor,omitempty"`
	ActorID   string    `json:"actorId,omitempty"`
	At        time.Time `json:"at"`
}
