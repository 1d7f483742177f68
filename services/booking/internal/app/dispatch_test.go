package app

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"slotbot/pkg/domain"
	"slotbot/pkg/schedule"
)

func hasPayload(r Reply, payload string) bool {
	for _, opt := range r.Options {
		if opt.Payload == payload {
			return true
		}
	}
	return false
}

func TestDispatchBookingConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r := env.app.HandleText(ctx, "u1", "/start")
	if r.Step != domain.StepIdle || !hasPayload(r, CmdBook) {
		t.Fatalf("unexpected start reply: %+v", r)
	}
	r = env.app.HandleText(ctx, "u1", "📅 Book")
	if r.Step != domain.StepSelectingDate || !hasPayload(r, "date:2024-06-01") {
		t.Fatalf("unexpected dates reply: %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", "date:2024-06-01")
	if r.Step != domain.StepSelectingTime || !hasPayload(r, "time:09:00-10:00") {
		t.Fatalf("unexpected slots reply: %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", "time:09:00-10:00")
	if r.Step != domain.StepEnteringName || !strings.Contains(r.Text, "01.06.2024 at 09:00-10:00") {
		t.Fatalf("unexpected name prompt: %+v", r)
	}
	r = env.app.HandleText(ctx, "u1", "A")
	if r.Step != domain.StepEnteringName || !strings.Contains(r.Text, "valid name") {
		t.Fatalf("expected name retry, got %+v", r)
	}
	r = env.app.HandleText(ctx, "u1", "Anna")
	if r.Step != domain.StepEnteringPhone {
		t.Fatalf("expected phone prompt, got %+v", r)
	}
	r = env.app.HandleText(ctx, "u1", "12")
	if r.Step != domain.StepEnteringPhone || !strings.Contains(r.Text, "valid phone") {
		t.Fatalf("expected phone retry, got %+v", r)
	}
	r = env.app.HandleText(ctx, "u1", "+7 999 123 45 67")
	if r.Step != domain.StepConfirmingBooking || !hasPayload(r, CmdConfirmBooking) {
		t.Fatalf("expected confirmation prompt, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", CmdConfirmBooking)
	if r.Step != domain.StepIdle || r.Booking == nil || r.Booking.ID != 1 {
		t.Fatalf("expected confirmed booking, got %+v", r)
	}
	if !strings.Contains(r.Text, "Booking confirmed") {
		t.Fatalf("unexpected confirmation text: %q", r.Text)
	}

	r = env.app.HandleAction(ctx, "u1", CmdMyBookings)
	if !hasPayload(r, "view:1") {
		t.Fatalf("expected own booking listed, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", "view:1")
	if r.Booking == nil || !hasPayload(r, "cancel:1") {
		t.Fatalf("expected booking details, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", "cancel:1")
	if !strings.Contains(r.Text, "Booking cancelled") {
		t.Fatalf("expected cancellation, got %+v", r)
	}
}

func TestDispatchUnknownInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r := env.app.HandleText(ctx, "u1", "hello there")
	if !strings.Contains(r.Text, "menu buttons") || !hasPayload(r, CmdBook) {
		t.Fatalf("expected menu hint, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", "bogus")
	if !strings.Contains(r.Text, "Unknown action") {
		t.Fatalf("expected unknown action reply, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", "time:09:00-10:00")
	if !strings.Contains(r.Text, "no longer available") {
		t.Fatalf("expected stale action reply, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", "view:abc")
	if !strings.Contains(r.Text, "not found") {
		t.Fatalf("expected not found reply, got %+v", r)
	}
}

func TestDispatchTakenSlotReturnsToDates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.book(t, "u1", "2024-06-01", "09:00-10:00")

	env.app.HandleAction(ctx, "u2", CmdBook)
	env.app.HandleAction(ctx, "u2", "date:2024-06-01")
	r := env.app.HandleAction(ctx, "u2", "time:09:00-10:00")
	if r.Step != domain.StepSelectingDate || !hasPayload(r, "date:2024-06-01") || !strings.Contains(r.Text, "already taken") {
		t.Fatalf("expected date list after a taken slot, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u2", "date:2024-06-01")
	if r.Step != domain.StepSelectingTime || hasPayload(r, "time:09:00-10:00") || !hasPayload(r, "time:10:00-11:00") {
		t.Fatalf("expected remaining slots, got %+v", r)
	}
}

func TestDispatchEarlierDateButtonReselects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.app.HandleAction(ctx, "u1", CmdBook)
	env.app.HandleAction(ctx, "u1", "date:2024-06-01")
	r := env.app.HandleAction(ctx, "u1", "date:2024-06-04")
	if r.Step != domain.StepSelectingTime || !strings.Contains(r.Text, "04.06.2024") {
		t.Fatalf("expected slots of the newly pressed date, got %+v", r)
	}
}

func TestDispatchAdminConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.book(t, "u2", "2024-06-01", "09:00-10:00")

	r := env.app.HandleAction(ctx, "u1", CmdAdminAll)
	if !strings.Contains(r.Text, "Admin access required") {
		t.Fatalf("expected forbidden reply, got %+v", r)
	}
	r = env.app.HandleText(ctx, "u1", "/admin")
	if r.AdminStep != AdminAwaitingPassword {
		t.Fatalf("expected password prompt, got %+v", r)
	}
	r = env.app.HandleText(ctx, "u1", "wrong")
	if r.AdminStep != AdminIdle || !strings.Contains(r.Text, "Wrong password") {
		t.Fatalf("expected rejection, got %+v", r)
	}
	env.app.HandleText(ctx, "u1", "/admin")
	r = env.app.HandleText(ctx, "u1", testPassword)
	if r.AdminStep != AdminMenu || !hasPayload(r, CmdAdminAll) {
		t.Fatalf("expected admin menu, got %+v", r)
	}

	r = env.app.HandleAction(ctx, "u1", CmdAdminAll)
	if r.AdminStep != AdminViewingAll || !hasPayload(r, "admin_view:1") {
		t.Fatalf("expected booking list, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", "admin_view:1")
	if r.Booking == nil || !strings.Contains(r.Text, "+79991234567") {
		t.Fatalf("expected unmasked details, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", CmdConfirmReset)
	if !strings.Contains(r.Text, "not requested") {
		t.Fatalf("expected reset refusal, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", CmdAdminReset)
	if r.AdminStep != AdminConfirmingReset || !hasPayload(r, CmdConfirmReset) {
		t.Fatalf("expected reset confirmation, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", CmdConfirmReset)
	if r.AdminStep != AdminMenu || len(env.bookings.ListAll()) != 0 {
		t.Fatalf("expected reset to clear bookings, got %+v", r)
	}
	r = env.app.HandleAction(ctx, "u1", CmdAdminLogout)
	if r.AdminStep != AdminIdle || env.app.IsAdmin(ctx, "u1") {
		t.Fatalf("expected logout, got %+v", r)
	}
}

func TestDispatchCancelLeavesAdminPrompt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.app.HandleText(ctx, "u1", "/admin")
	r := env.app.HandleText(ctx, "u1", "/cancel")
	if r.AdminStep != AdminIdle || !strings.Contains(r.Text, "cancelled") {
		t.Fatalf("expected cancelled prompt, got %+v", r)
	}
	r = env.app.HandleText(ctx, "u1", testPassword)
	if r.AdminStep != AdminIdle || env.app.IsAdmin(ctx, "u1") {
		t.Fatalf("password after cancel must not grant admin, got %+v", r)
	}
}

func TestFreeTimesTextGroupsSlots(t *testing.T) {
	r := freeTimesReply([]DayAvailability{
		{Date: "2024-06-01", Slots: []string{"09:00-10:00", "10:00-11:00", "11:00-12:00", "12:00-13:00"}},
		{Date: "2024-06-02"},
	})
	want := "⏰ Free time for booking:\n\n" +
		"📅 01.06.2024:\n09:00-10:00, 10:00-11:00, 11:00-12:00\n12:00-13:00\n\n" +
		"📅 02.06.2024: no free slots"
	if r.Text != want {
		t.Fatalf("unexpected text:\n%s\nwant:\n%s", r.Text, want)
	}
}

func TestSlashCommandParsing(t *testing.T) {
	cases := map[string]string{
		"/start":          CmdStart,
		"/Book":           CmdBook,
		"/admin@slot_bot": CmdAdmin,
		"/help me":        CmdHelp,
		"/mybookings":     CmdMyBookings,
	}
	for in, want := range cases {
		got, ok := slashCommand(in)
		if !ok || got != want {
			t.Fatalf("%q: expected %q, got %q %v", in, want, got, ok)
		}
	}
	if _, ok := slashCommand("/nope"); ok {
		t.Fatalf("unknown command should not match")
	}
}

func TestDispatchShowsCreatedTimeInBookingZone(t *testing.T) {
	catalog, err := schedule.New(schedule.Config{Location: time.FixedZone("UTC+3", 3*60*60)})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	env := newTestEnv(t, func(cfg *Config) { cfg.Catalog = catalog })
	ctx := context.Background()
	b := env.book(t, "u1", "2024-06-01", "12:00-13:00")

	r := env.app.HandleAction(ctx, "u1", CmdView+":"+strconv.FormatInt(b.ID, 10))
	if !strings.Contains(r.Text, "Created: 01.06.2024 11:00") {
		t.Fatalf("expected creation time in UTC+3, got %q", r.Text)
	}
}
