package store

import (
	"context"
	"errors"

	"slotbot/pkg/domain"
)

var (
	// ErrSlotTaken indicates a live booking already holds the (date, slot) pair.
	ErrSlotTaken = errors.New("slot already booked")
)

// BookingStore holds live bookings and answers availability queries.
type BookingStore interface {
	// AddBooking assigns the next id and inserts b unless its slot is taken.
	AddBooking(b domain.Booking) (domain.Booking, error)
	GetBooking(id int64) (domain.Booking, bool)
	ListByOwner(ownerID string) []domain.Booking
	ListAll() []domain.Booking
	CancelBooking(id int64) bool
	// TakeBooking removes and returns a booking, optionally only if ownerID owns it.
	TakeBooking(id int64, ownerID string) (domain.Booking, bool)
	IsSlotAvailable(date, slot string) bool
	AvailableSlots(date string, catalog []string) []string
	ResetAll()
}

// ConversationStore persists in-progress booking sessions keyed by user.
type ConversationStore interface {
	Get(ctx context.Context, userID string) (domain.Session, bool, error)
	Save(ctx context.Context, userID string, s domain.Session) error
	Clear(ctx context.Context, userID string) error
}

// SessionStore issues and resolves admin grant tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
