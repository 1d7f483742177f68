package app

import (
	"context"
	"errors"
	"fmt"

	"slotbot/internal/util"
	"slotbot/pkg/contact"
	"slotbot/pkg/domain"
	"slotbot/pkg/schedule"
	"slotbot/pkg/store"
)

// DateOption is one date of the booking window.
type DateOption struct {
	Date    string `json:"date"`
	HasFree bool   `json:"hasFree"`
}

// DateOptions lists the booking window, flagging dates that still have a free slot.
func (a *App) DateOptions() []DateOption {
	slots := a.catalog.Slots()
	dates := a.catalog.Dates(a.now())
	out := make([]DateOption, 0, len(dates))
	for _, d := range dates {
		out = append(out, DateOption{Date: d, HasFree: len(a.bookings.AvailableSlots(d, slots)) > 0})
	}
	return out
}

// FreeSlots returns the catalog minus booked slots for date.
func (a *App) FreeSlots(date string) []string {
	return a.bookings.AvailableSlots(date, a.catalog.Slots())
}

// Session returns the user's booking session, nil when idle.
func (a *App) Session(ctx context.Context, userID string) (domain.Session, error) {
	s, ok, err := a.conversations.Get(ctx, userID)
	if errors.Is(err, domain.ErrSessionCorrupted) {
		a.clearSession(ctx, userID)
		return nil, ErrSessionCorrupted
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return s, nil
}

// StartBooking puts the user at date selection, discarding any earlier session.
func (a *App) StartBooking(ctx context.Context, userID string) ([]DateOption, error) {
	if err := a.saveSession(ctx, userID, domain.SelectingDate{}); err != nil {
		return nil, err
	}
	util.LoggerFromContext(ctx).Debug("booking started", "user_id", userID)
	return a.DateOptions(), nil
}

// SelectDate moves to time selection when date has a free slot.
// It is also accepted at time selection, where it replaces the chosen date.
// With no free slot the session is left at date selection and ErrNoSlots is returned.
func (a *App) SelectDate(ctx context.Context, userID, date string) ([]string, error) {
	s, err := a.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch s.(type) {
	case domain.SelectingDate, domain.SelectingTime:
	default:
		return nil, fmt.Errorf("%w: at %s, want %s", ErrWrongStep, domain.StepOf(s), domain.StepSelectingDate)
	}
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if !a.catalog.InWindow(date, a.now()) {
		return nil, fmt.Errorf("%w: %s is outside the booking window", ErrInvalidDate, date)
	}
	free := a.FreeSlots(date)
	if len(free) == 0 {
		if _, picking := s.(domain.SelectingTime); picking {
			if err := a.saveSession(ctx, userID, domain.SelectingDate{}); err != nil {
				return nil, err
			}
		}
		return nil, ErrNoSlots
	}
	if err := a.saveSession(ctx, userID, domain.SelectingTime{Date: date}); err != nil {
		return nil, err
	}
	return free, nil
}

// SelectTime records the slot and asks for a name. Nothing is reserved yet.
// A slot taken in the meantime sends the session back to date selection.
func (a *App) SelectTime(ctx context.Context, userID, slot string) error {
	st, err := loadStep[domain.SelectingTime](ctx, a, userID)
	if err != nil {
		return err
	}
	if st.Date == "" {
		a.clearSession(ctx, userID)
		return ErrSessionCorrupted
	}
	if !a.catalog.Contains(slot) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	if !a.bookings.IsSlotAvailable(st.Date, slot) {
		if err := a.saveSession(ctx, userID, domain.SelectingDate{}); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s %s", ErrSlotUnavailable, st.Date, slot)
	}
	return a.saveSession(ctx, userID, domain.EnteringName{Date: st.Date, Slot: slot})
}

// EnterName validates the contact name and asks for a phone.
func (a *App) EnterName(ctx context.Context, userID, text string) (string, error) {
	st, err := loadStep[domain.EnteringName](ctx, a, userID)
	if err != nil {
		return "", err
	}
	if st.Date == "" || st.Slot == "" {
		a.clearSession(ctx, userID)
		return "", ErrSessionCorrupted
	}
	name, err := contact.NormalizeName(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if err := a.saveSession(ctx, userID, domain.EnteringPhone{Date: st.Date, Slot: st.Slot, Name: name}); err != nil {
		return "", err
	}
	return name, nil
}

// EnterPhone validates and normalizes the phone, then returns the summary to confirm.
func (a *App) EnterPhone(ctx context.Context, userID, text string) (domain.ConfirmingBooking, error) {
	st, err := loadStep[domain.EnteringPhone](ctx, a, userID)
	if err != nil {
		return domain.ConfirmingBooking{}, err
	}
	if st.Date == "" || st.Slot == "" || st.Name == "" {
		a.clearSession(ctx, userID)
		return domain.ConfirmingBooking{}, ErrSessionCorrupted
	}
	phone, err := contact.NormalizePhone(text)
	if err != nil {
		return domain.ConfirmingBooking{}, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	next := domain.ConfirmingBooking{Date: st.Date, Slot: st.Slot, Name: st.Name, Phone: phone}
	if err := a.saveSession(ctx, userID, next); err != nil {
		return domain.ConfirmingBooking{}, err
	}
	return next, nil
}

// ConfirmBooking inserts the booking. The availability check and insert are one
// store operation, so of two users confirming the same slot exactly one wins;
// the other gets ErrSlotUnavailable and is sent back to date selection.
func (a *App) ConfirmBooking(ctx context.Context, userID string) (domain.Booking, error) {
	st, err := loadStep[domain.ConfirmingBooking](ctx, a, userID)
	if err != nil {
		return domain.Booking{}, err
	}
	if st.Date == "" || st.Slot == "" || st.Name == "" || st.Phone == "" {
		a.clearSession(ctx, userID)
		return domain.Booking{}, ErrSessionCorrupted
	}
	logger := util.LoggerFromContext(ctx)
	b, err := a.bookings.AddBooking(domain.Booking{
		OwnerID:   userID,
		Date:      st.Date,
		Slot:      st.Slot,
		Name:      st.Name,
		Phone:     st.Phone,
		CreatedAt: a.now().UTC(),
	})
	if errors.Is(err, store.ErrSlotTaken) {
		logger.Info("booking lost slot race", "user_id", userID, "date", st.Date, "slot", st.Slot)
		if err := a.saveSession(ctx, userID, domain.SelectingDate{}); err != nil {
			return domain.Booking{}, err
		}
		return domain.Booking{}, fmt.Errorf("%w: %s %s", ErrSlotUnavailable, st.Date, st.Slot)
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("add booking: %w", err)
	}
	a.clearSession(ctx, userID)
	logger.Info("booking confirmed", "user_id", userID, "booking_id", b.ID, "date", b.Date, "slot", b.Slot)
	a.publish(ctx, domain.Event{
		Type:      domain.EventBookingConfirmed,
		BookingID: b.ID,
		OwnerID:   b.OwnerID,
		Date:      b.Date,
		Slot:      b.Slot,
		Actor:     domain.ActorOwner,
		ActorID:   userID,
	})
	return b, nil
}

// CancelOperation abandons the booking conversation from any step.
func (a *App) CancelOperation(ctx context.Context, userID string) error {
	if err := a.conversations.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// BackToDates returns an in-progress booking to date selection.
func (a *App) BackToDates(ctx context.Context, userID string) ([]DateOption, error) {
	s, err := a.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: no booking in progress", ErrWrongStep)
	}
	return a.StartBooking(ctx, userID)
}

func loadStep[T domain.Session](ctx context.Context, a *App, userID string) (T, error) {
	var zero T
	s, err := a.Session(ctx, userID)
	if err != nil {
		return zero, err
	}
	v, ok := s.(T)
	if !ok {
		return zero, fmt.Errorf("%w: at %s, want %s", ErrWrongStep, domain.StepOf(s), zero.Step())
	}
	return v, nil
}

func (a *App) saveSession(ctx context.Context, userID string, s domain.Session) error {
	if err := a.conversations.Save(ctx, userID, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	util.LoggerFromContext(ctx).Debug("booking step", "user_id", userID, "step", s.Step())
	return nil
}

func (a *App) clearSession(ctx context.Context, userID string) {
	if err := a.conversations.Clear(ctx, userID); err != nil {
		util.LoggerFromContext(ctx).Warn("clear session failed", "user_id", userID, "err", err)
	}
}
