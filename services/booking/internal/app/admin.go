package app

import (
	"context"
	"fmt"

	"slotbot/internal/util"
	"slotbot/pkg/auth"
	"slotbot/pkg/domain"
)

type AdminStep string

const (
	AdminIdle             AdminStep = "idle"
	AdminAwaitingPassword AdminStep = "awaiting_password"
	AdminMenu             AdminStep = "menu"
	AdminViewingAll       AdminStep = "viewing_all"
	AdminConfirmingReset  AdminStep = "confirming_reset"
)

// adminState is the admin flow position of one user plus their grant token.
type adminState struct {
	step  AdminStep
	token string
}

// AdminStepOf returns the user's position in the admin flow.
func (a *App) AdminStepOf(userID string) AdminStep {
	a.adminMu.Lock()
	defer a.adminMu.Unlock()
	if st, ok := a.admins[userID]; ok {
		return st.step
	}
	return AdminIdle
}

// IsAdmin reports whether the user is allow-listed or holds a live grant.
func (a *App) IsAdmin(ctx context.Context, userID string) bool {
	if _, ok := a.adminIDs[userID]; ok {
		return true
	}
	a.adminMu.Lock()
	token := a.admins[userID].token
	a.adminMu.Unlock()
	if token == "" {
		return false
	}
	subject, ok, err := a.grants.GetUserIDByToken(token)
	if err != nil || !ok || subject != userID {
		if err != nil {
			util.LoggerFromContext(ctx).Debug("admin grant rejected", "user_id", userID, "err", err)
		}
		a.adminMu.Lock()
		if a.admins[userID].token == token {
			delete(a.admins, userID)
		}
		a.adminMu.Unlock()
		return false
	}
	return true
}

// EnterAdminFlow opens the admin menu for authorized users and asks everyone else for the password.
func (a *App) EnterAdminFlow(ctx context.Context, userID string) (AdminStep, error) {
	if a.IsAdmin(ctx, userID) {
		a.setAdminStep(userID, AdminMenu)
		return AdminMenu, nil
	}
	a.setAdminStep(userID, AdminAwaitingPassword)
	return AdminAwaitingPassword, nil
}

// SubmitPassword checks the admin password. A match issues a grant and opens the
// menu; a mismatch returns the user to idle.
func (a *App) SubmitPassword(ctx context.Context, userID, password string) error {
	if a.AdminStepOf(userID) != AdminAwaitingPassword {
		return fmt.Errorf("%w: no password requested", ErrWrongStep)
	}
	logger := util.LoggerFromContext(ctx)
	if !a.attempts.Allow(userID) {
		logger.Warn("admin password rate limited", "user_id", userID)
		return ErrRateLimited
	}
	if !auth.CheckPassword(password, a.passwordHash) {
		a.resetAdmin(userID)
		logger.Warn("admin password rejected", "user_id", userID)
		return ErrAuthFailed
	}
	token, err := a.grants.NewSession(userID)
	if err != nil {
		a.resetAdmin(userID)
		return fmt.Errorf("issue admin grant: %w", err)
	}
	a.adminMu.Lock()
	a.admins[userID] = adminState{step: AdminMenu, token: token}
	a.adminMu.Unlock()
	logger.Info("admin granted", "user_id", userID)
	return nil
}

// AdminViewAll lists every live booking.
func (a *App) AdminViewAll(ctx context.Context, userID string) ([]domain.Booking, error) {
	if err := a.requireAdmin(ctx, userID); err != nil {
		return nil, err
	}
	a.setAdminStep(userID, AdminViewingAll)
	return a.bookings.ListAll(), nil
}

// AdminViewDetails returns one booking of any owner.
func (a *App) AdminViewDetails(ctx context.Context, userID string, id int64) (domain.Booking, error) {
	if err := a.requireAdmin(ctx, userID); err != nil {
		return domain.Booking{}, err
	}
	a.setAdminStep(userID, AdminViewingAll)
	b, ok := a.bookings.GetBooking(id)
	if !ok {
		return domain.Booking{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return b, nil
}

// AdminCancelOne cancels any booking by id.
func (a *App) AdminCancelOne(ctx context.Context, userID string, id int64) (domain.Booking, error) {
	if err := a.requireAdmin(ctx, userID); err != nil {
		return domain.Booking{}, err
	}
	a.setAdminStep(userID, AdminViewingAll)
	b, ok := a.bookings.TakeBooking(id, "")
	if !ok {
		return domain.Booking{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	util.LoggerFromContext(ctx).Info("booking cancelled by admin", "admin_id", userID, "booking_id", id, "owner_id", b.OwnerID)
	a.publish(ctx, domain.Event{
		Type:      domain.EventBookingCancelled,
		BookingID: b.ID,
		OwnerID:   b.OwnerID,
		Date:      b.Date,
		Slot:      b.Slot,
		Actor:     domain.ActorAdmin,
		ActorID:   userID,
	})
	return b, nil
}

// RequestResetAll asks for confirmation before wiping the schedule.
func (a *App) RequestResetAll(ctx context.Context, userID string) error {
	if err := a.requireAdmin(ctx, userID); err != nil {
		return err
	}
	a.setAdminStep(userID, AdminConfirmingReset)
	return nil
}

// ConfirmResetAll wipes every booking and restarts ids at 1.
func (a *App) ConfirmResetAll(ctx context.Context, userID string) error {
	if err := a.requireAdmin(ctx, userID); err != nil {
		return err
	}
	if a.AdminStepOf(userID) != AdminConfirmingReset {
		return fmt.Errorf("%w: reset not requested", ErrWrongStep)
	}
	a.bookings.ResetAll()
	a.setAdminStep(userID, AdminMenu)
	util.LoggerFromContext(ctx).Warn("all bookings reset", "admin_id", userID)
	a.publish(ctx, domain.Event{
		Type:    domain.EventBookingsReset,
		Actor:   domain.ActorAdmin,
		ActorID: userID,
	})
	return nil
}

// AdminBackToMenu returns an authorized user to the admin menu.
func (a *App) AdminBackToMenu(ctx context.Context, userID string) error {
	if err := a.requireAdmin(ctx, userID); err != nil {
		return err
	}
	a.setAdminStep(userID, AdminMenu)
	return nil
}

// AdminLogout revokes the user's grant and leaves the admin flow.
// Allow-listed users stay authorized.
func (a *App) AdminLogout(ctx context.Context, userID string) error {
	a.adminMu.Lock()
	token := a.admins[userID].token
	delete(a.admins, userID)
	a.adminMu.Unlock()
	if token == "" {
		return nil
	}
	if err := a.grants.DeleteSession(token); err != nil {
		return fmt.Errorf("revoke admin grant: %w", err)
	}
	util.LoggerFromContext(ctx).Info("admin logged out", "user_id", userID)
	return nil
}

// LeaveAdminFlow moves the user to idle while keeping any grant.
func (a *App) LeaveAdminFlow(userID string) {
	a.setAdminStep(userID, AdminIdle)
}

func (a *App) requireAdmin(ctx context.Context, userID string) error {
	if !a.IsAdmin(ctx, userID) {
		return ErrForbidden
	}
	return nil
}

func (a *App) setAdminStep(userID string, step AdminStep) {
	a.adminMu.Lock()
	defer a.adminMu.Unlock()
	st := a.admins[userID]
	if step == AdminIdle && st.token == "" {
		delete(a.admins, userID)
		return
	}
	st.step = step
	a.admins[userID] = st
}

func (a *App) resetAdmin(userID string) {
	a.adminMu.Lock()
	delete(a.admins, userID)
	a.adminMu.Unlock()
}
