package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"slotbot/internal/util"
	"slotbot/pkg/domain"
	"slotbot/pkg/schedule"
)

// Action payloads are "cmd" or "cmd:arg". The argument is everything after the
// first colon, so slot labels like "09:00-10:00" pass through intact.
const (
	CmdStart           = "start"
	CmdHelp            = "help"
	CmdBook            = "book"
	CmdMyBookings      = "my_bookings"
	CmdFreeTimes       = "free_times"
	CmdAllBookings     = "all_bookings"
	CmdAdmin           = "admin"
	CmdDate            = "date"
	CmdTime            = "time"
	CmdConfirmBooking  = "confirm_booking"
	CmdCancelOperation = "cancel_operation"
	CmdBackToDates     = "back_to_dates"
	CmdBackToMain      = "back_to_main"
	CmdView            = "view"
	CmdCancel          = "cancel"
	CmdBackToBookings  = "back_to_bookings"
	CmdAdminAll        = "admin_all"
	CmdAdminView       = "admin_view"
	CmdAdminCancel     = "admin_cancel"
	CmdAdminReset      = "admin_reset"
	CmdConfirmReset    = "confirm_reset"
	CmdBackToAdmin     = "back_to_admin"
	CmdAdminLogout     = "admin_logout"
)

var slashCommands = map[string]string{
	"/start":      CmdStart,
	"/help":       CmdHelp,
	"/book":       CmdBook,
	"/mybookings": CmdMyBookings,
	"/free":       CmdFreeTimes,
	"/admin":      CmdAdmin,
	"/cancel":     CmdCancelOperation,
}

// HandleAction routes a button payload.
func (a *App) HandleAction(ctx context.Context, userID, payload string) Reply {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(payload), ":")
	ctx = util.ContextWithLogger(ctx, util.LoggerFromContext(ctx).With("user_id", userID, "cmd", cmd))
	return a.stamp(ctx, userID, a.handleAction(ctx, userID, cmd, arg))
}

// HandleText routes free text: slash commands, the admin password, the name and
// phone steps, and main menu labels typed by hand.
func (a *App) HandleText(ctx context.Context, userID, text string) Reply {
	text = strings.TrimSpace(text)
	if cmd, ok := slashCommand(text); ok {
		return a.HandleAction(ctx, userID, cmd)
	}
	if a.AdminStepOf(userID) == AdminAwaitingPassword {
		return a.stamp(ctx, userID, a.handlePassword(ctx, userID, text))
	}
	s, err := a.Session(ctx, userID)
	if err != nil {
		return a.stamp(ctx, userID, a.failure(ctx, err))
	}
	switch s.(type) {
	case domain.EnteringName:
		return a.stamp(ctx, userID, a.handleName(ctx, userID, text))
	case domain.EnteringPhone:
		return a.stamp(ctx, userID, a.handlePhone(ctx, userID, text))
	}
	if cmd, ok := menuCommand(text); ok {
		return a.HandleAction(ctx, userID, cmd)
	}
	return a.stamp(ctx, userID, mainMenuReply("Please use the menu buttons to navigate."))
}

func (a *App) handleAction(ctx context.Context, userID, cmd, arg string) Reply {
	switch cmd {
	case CmdStart, CmdBackToMain:
		a.leaveAll(ctx, userID)
		return mainMenuReply("👋 Welcome! I can book a time slot for you. Choose an action:")
	case CmdHelp:
		return mainMenuReply(helpText)
	case CmdBook:
		a.LeaveAdminFlow(userID)
		dates, err := a.StartBooking(ctx, userID)
		if err != nil {
			return a.failure(ctx, err)
		}
		return datesReply(dates)
	case CmdDate:
		return a.handleDate(ctx, userID, arg)
	case CmdTime:
		return a.handleTime(ctx, userID, arg)
	case CmdConfirmBooking:
		return a.handleConfirm(ctx, userID)
	case CmdCancelOperation:
		a.leaveAll(ctx, userID)
		return mainMenuReply("Operation cancelled.")
	case CmdBackToDates:
		dates, err := a.BackToDates(ctx, userID)
		if err != nil {
			return a.failure(ctx, err)
		}
		return datesReply(dates)
	case CmdMyBookings, CmdBackToBookings:
		return myBookingsReply(a.MyBookings(userID))
	case CmdView:
		id, err := parseBookingID(arg)
		if err != nil {
			return a.failure(ctx, err)
		}
		b, err := a.BookingDetails(userID, id)
		if errors.Is(err, ErrNotFound) {
			return withPrefix("Booking not found.", myBookingsReply(a.MyBookings(userID)))
		}
		return bookingDetailsReply(b, a.catalog.Location())
	case CmdCancel:
		id, err := parseBookingID(arg)
		if err != nil {
			return a.failure(ctx, err)
		}
		if _, err := a.CancelOwnBooking(ctx, userID, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return withPrefix("Booking not found.", myBookingsReply(a.MyBookings(userID)))
			}
			return a.failure(ctx, err)
		}
		return withPrefix("✅ Booking cancelled.", myBookingsReply(a.MyBookings(userID)))
	case CmdFreeTimes:
		return freeTimesReply(a.FreeTimes())
	case CmdAllBookings:
		return allBookingsReply(a.AllBookingsOverview(ctx, userID))
	case CmdAdmin:
		return a.handleAdminEntry(ctx, userID)
	case CmdAdminAll:
		list, err := a.AdminViewAll(ctx, userID)
		if err != nil {
			return a.failure(ctx, err)
		}
		return adminBookingsReply(list)
	case CmdAdminView:
		id, err := parseBookingID(arg)
		if err != nil {
			return a.failure(ctx, err)
		}
		b, err := a.AdminViewDetails(ctx, userID, id)
		if err != nil {
			return a.adminFailure(ctx, userID, err)
		}
		return adminDetailsReply(b, a.catalog.Location())
	case CmdAdminCancel:
		id, err := parseBookingID(arg)
		if err != nil {
			return a.failure(ctx, err)
		}
		if _, err := a.AdminCancelOne(ctx, userID, id); err != nil {
			return a.adminFailure(ctx, userID, err)
		}
		return withPrefix(fmt.Sprintf("✅ Booking #%d cancelled.", id), adminBookingsReply(a.bookings.ListAll()))
	case CmdAdminReset:
		if err := a.RequestResetAll(ctx, userID); err != nil {
			return a.failure(ctx, err)
		}
		return resetConfirmReply()
	case CmdConfirmReset:
		if err := a.ConfirmResetAll(ctx, userID); err != nil {
			if errors.Is(err, ErrWrongStep) {
				return withPrefix("Reset was not requested.", adminMenuReply())
			}
			return a.failure(ctx, err)
		}
		return withPrefix("🗑 All bookings deleted.", adminMenuReply())
	case CmdBackToAdmin:
		if err := a.AdminBackToMenu(ctx, userID); err != nil {
			return a.failure(ctx, err)
		}
		return adminMenuReply()
	case CmdAdminLogout:
		if err := a.AdminLogout(ctx, userID); err != nil {
			return a.failure(ctx, err)
		}
		return mainMenuReply("🚪 Logged out of the admin panel.")
	default:
		util.LoggerFromContext(ctx).Debug("unknown action")
		return mainMenuReply("Unknown action. Please use the menu buttons.")
	}
}

func (a *App) handleDate(ctx context.Context, userID, date string) Reply {
	slots, err := a.SelectDate(ctx, userID, date)
	switch {
	case err == nil:
		return slotsReply(date, slots)
	case errors.Is(err, ErrNoSlots):
		msg := fmt.Sprintf("No free slots on %s. Please choose another date.", schedule.DisplayDate(date))
		return withPrefix(msg, datesReply(a.DateOptions()))
	case errors.Is(err, ErrInvalidDate):
		return withPrefix("This date cannot be booked.", datesReply(a.DateOptions()))
	default:
		return a.failure(ctx, err)
	}
}

func (a *App) handleTime(ctx context.Context, userID, slot string) Reply {
	err := a.SelectTime(ctx, userID, slot)
	switch {
	case err == nil:
		st, _ := loadStep[domain.EnteringName](ctx, a, userID)
		return namePrompt(st.Date, st.Slot)
	case errors.Is(err, ErrSlotUnavailable):
		return withPrefix("Sorry, this slot is already taken. Please choose another date.", datesReply(a.DateOptions()))
	case errors.Is(err, ErrInvalidSlot):
		return a.reofferSlots(ctx, userID, "This time cannot be booked.")
	default:
		return a.failure(ctx, err)
	}
}

// reofferSlots shows the free slots of the selected date again, or the dates when none is left.
func (a *App) reofferSlots(ctx context.Context, userID, prefix string) Reply {
	st, err := loadStep[domain.SelectingTime](ctx, a, userID)
	if err != nil {
		return a.failure(ctx, err)
	}
	if free := a.FreeSlots(st.Date); len(free) > 0 {
		return withPrefix(prefix, slotsReply(st.Date, free))
	}
	dates, err := a.StartBooking(ctx, userID)
	if err != nil {
		return a.failure(ctx, err)
	}
	return withPrefix(prefix+" No free slots remain on that date.", datesReply(dates))
}

func (a *App) handleName(ctx context.Context, userID, text string) Reply {
	name, err := a.EnterName(ctx, userID, text)
	switch {
	case err == nil:
		return phonePrompt(name)
	case errors.Is(err, ErrInvalidName):
		return Reply{
			Text:    "Please enter a valid name: 2 to 50 letters, spaces or hyphens.",
			Options: []Option{cancelOption()},
		}
	default:
		return a.failure(ctx, err)
	}
}

func (a *App) handlePhone(ctx context.Context, userID, text string) Reply {
	summary, err := a.EnterPhone(ctx, userID, text)
	switch {
	case err == nil:
		return confirmPrompt(summary)
	case errors.Is(err, ErrInvalidPhone):
		return Reply{
			Text:    "Please enter a valid phone number: 10 to 15 digits, optionally starting with +.",
			Options: []Option{cancelOption()},
		}
	default:
		return a.failure(ctx, err)
	}
}

func (a *App) handleConfirm(ctx context.Context, userID string) Reply {
	b, err := a.ConfirmBooking(ctx, userID)
	switch {
	case err == nil:
		r := mainMenuReply("✅ Booking confirmed!\n\n" + bookingInfo(b, a.catalog.Location()))
		r.Booking = &b
		return r
	case errors.Is(err, ErrSlotUnavailable):
		return withPrefix("Sorry, this slot was just taken by someone else. Please choose another date.", datesReply(a.DateOptions()))
	default:
		return a.failure(ctx, err)
	}
}

func (a *App) handleAdminEntry(ctx context.Context, userID string) Reply {
	a.clearSession(ctx, userID)
	step, err := a.EnterAdminFlow(ctx, userID)
	if err != nil {
		return a.failure(ctx, err)
	}
	if step == AdminMenu {
		return adminMenuReply()
	}
	return Reply{Text: "🔐 Enter the admin password:", Options: []Option{cancelOption()}}
}

func (a *App) handlePassword(ctx context.Context, userID, password string) Reply {
	err := a.SubmitPassword(ctx, userID, password)
	switch {
	case err == nil:
		return withPrefix("✅ Access granted.", adminMenuReply())
	case errors.Is(err, ErrAuthFailed):
		return mainMenuReply("❌ Wrong password.")
	case errors.Is(err, ErrRateLimited):
		return Reply{Text: "Too many attempts. Please try again in a minute.", Options: []Option{cancelOption()}}
	default:
		return a.failure(ctx, err)
	}
}

func (a *App) adminFailure(ctx context.Context, userID string, err error) Reply {
	if errors.Is(err, ErrNotFound) {
		return withPrefix("Booking not found.", adminBookingsReply(a.bookings.ListAll()))
	}
	return a.failure(ctx, err)
}

// failure maps errors no handler recovered from to a reply that leads back to the menu.
func (a *App) failure(ctx context.Context, err error) Reply {
	switch {
	case errors.Is(err, ErrSessionCorrupted):
		return mainMenuReply("Your booking data was lost. Please start again.")
	case errors.Is(err, ErrWrongStep):
		return mainMenuReply("This action is no longer available. Please start again.")
	case errors.Is(err, ErrForbidden):
		return mainMenuReply("Admin access required. Open the admin panel to log in.")
	case errors.Is(err, ErrRateLimited):
		return mainMenuReply("Too many requests. Please try again later.")
	case errors.Is(err, ErrNotFound):
		return mainMenuReply("Booking not found.")
	default:
		util.LoggerFromContext(ctx).Error("action failed", "err", err)
		return mainMenuReply("Something went wrong. Please try again.")
	}
}

func (a *App) leaveAll(ctx context.Context, userID string) {
	if err := a.CancelOperation(ctx, userID); err != nil {
		util.LoggerFromContext(ctx).Warn("cancel operation failed", "err", err)
	}
	a.LeaveAdminFlow(userID)
}

// stamp records where the user ended up after the action.
func (a *App) stamp(ctx context.Context, userID string, r Reply) Reply {
	r.Step = domain.StepIdle
	if s, err := a.Session(ctx, userID); err == nil {
		r.Step = domain.StepOf(s)
	}
	r.AdminStep = a.AdminStepOf(userID)
	return r
}

func slashCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word, _, _ := strings.Cut(text, " ")
	word, _, _ = strings.Cut(word, "@")
	cmd, ok := slashCommands[strings.ToLower(word)]
	return cmd, ok
}

func menuCommand(text string) (string, bool) {
	for _, opt := range mainMenu {
		if strings.EqualFold(text, opt.Label) {
			return opt.Payload, true
		}
	}
	return "", false
}

func parseBookingID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: booking id %q", ErrNotFound, arg)
	}
	return id, nil
}
