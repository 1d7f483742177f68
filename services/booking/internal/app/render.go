package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"slotbot/pkg/domain"
	"slotbot/pkg/schedule"
)

// Option is a button offered to the user. Payload is sent back through HandleAction.
type Option struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// Reply is what the chat transport renders for the user.
type Reply struct {
	Text      string          `json:"text"`
	Options   []Option        `json:"options,omitempty"`
	Step      domain.Step     `json:"step"`
	AdminStep AdminStep       `json:"adminStep"`
	Booking   *domain.Booking `json:"booking,omitempty"`
}

const createdLayout = "02.01.2006 15:04"

var mainMenu = []Option{
	{Label: "📅 Book", Payload: CmdBook},
	{Label: "🔍 My bookings", Payload: CmdMyBookings},
	{Label: "📋 All bookings", Payload: CmdAllBookings},
	{Label: "⏰ Free times", Payload: CmdFreeTimes},
	{Label: "👤 Admin panel", Payload: CmdAdmin},
}

const helpText = "How to use this bot:\n\n" +
	"📅 Book: create a booking by choosing a date and a time\n" +
	"🔍 My bookings: view and cancel your bookings\n" +
	"📋 All bookings: see what is already booked\n" +
	"⏰ Free times: free slots for the coming days\n" +
	"👤 Admin panel: management for administrators\n\n" +
	"If you have questions, please contact the administrator."

func mainMenuReply(text string) Reply {
	return Reply{Text: text, Options: append([]Option(nil), mainMenu...)}
}

func cancelOption() Option {
	return Option{Label: "❌ Cancel", Payload: CmdCancelOperation}
}

func withPrefix(prefix string, r Reply) Reply {
	if prefix != "" {
		r.Text = prefix + "\n\n" + r.Text
	}
	return r
}

// bookingInfo prints the creation time in loc, the zone slots are offered in.
func bookingInfo(b domain.Booking, loc *time.Location) string {
	return fmt.Sprintf(
		"📅 Date: %s\n⏰ Time: %s\n👤 Name: %s\n📞 Phone: %s\n🕒 Created: %s",
		schedule.DisplayDate(b.Date), b.Slot, b.Name, b.Phone, b.CreatedAt.In(loc).Format(createdLayout),
	)
}

func bookingLabel(b domain.Booking) string {
	return schedule.DisplayDate(b.Date) + " " + b.Slot
}

func datesReply(dates []DateOption) Reply {
	opts := make([]Option, 0, len(dates)+1)
	for _, d := range dates {
		label := schedule.DisplayDate(d.Date)
		if !d.HasFree {
			label += " (full)"
		}
		opts = append(opts, Option{Label: label, Payload: CmdDate + ":" + d.Date})
	}
	opts = append(opts, Option{Label: "⬅️ Back", Payload: CmdBackToMain})
	return Reply{Text: "📅 Choose a date:", Options: opts}
}

func slotsReply(date string, slots []string) Reply {
	opts := make([]Option, 0, len(slots)+1)
	for _, slot := range slots {
		opts = append(opts, Option{Label: slot, Payload: CmdTime + ":" + slot})
	}
	opts = append(opts, Option{Label: "⬅️ Back", Payload: CmdBackToDates})
	return Reply{
		Text:    fmt.Sprintf("⏰ Free time on %s. Choose a slot:", schedule.DisplayDate(date)),
		Options: opts,
	}
}

func namePrompt(date, slot string) Reply {
	return Reply{
		Text:    fmt.Sprintf("You chose %s at %s.\n\n👤 Please enter your name:", schedule.DisplayDate(date), slot),
		Options: []Option{cancelOption()},
	}
}

func phonePrompt(name string) Reply {
	return Reply{
		Text:    fmt.Sprintf("Thank you, %s.\n\n📞 Now enter your phone number:", name),
		Options: []Option{cancelOption()},
	}
}

func confirmPrompt(c domain.ConfirmingBooking) Reply {
	text := fmt.Sprintf(
		"Please check your booking:\n\n📅 Date: %s\n⏰ Time: %s\n👤 Name: %s\n📞 Phone: %s\n\nConfirm?",
		schedule.DisplayDate(c.Date), c.Slot, c.Name, c.Phone,
	)
	return Reply{
		Text: text,
		Options: []Option{
			{Label: "✅ Confirm", Payload: CmdConfirmBooking},
			cancelOption(),
		},
	}
}

func myBookingsReply(bookings []domain.Booking) Reply {
	if len(bookings) == 0 {
		return mainMenuReply("You have no active bookings.")
	}
	opts := make([]Option, 0, len(bookings)+1)
	for _, b := range bookings {
		opts = append(opts, Option{Label: bookingLabel(b), Payload: CmdView + ":" + strconv.FormatInt(b.ID, 10)})
	}
	opts = append(opts, Option{Label: "⬅️ Back", Payload: CmdBackToMain})
	return Reply{Text: "🔍 Your bookings. Choose one to see the details.", Options: opts}
}

func bookingDetailsReply(b domain.Booking, loc *time.Location) Reply {
	id := strconv.FormatInt(b.ID, 10)
	return Reply{
		Text: "Booking details:\n\n" + bookingInfo(b, loc),
		Options: []Option{
			{Label: "❌ Cancel booking", Payload: CmdCancel + ":" + id},
			{Label: "⬅️ Back", Payload: CmdBackToBookings},
		},
		Booking: &b,
	}
}

func freeTimesReply(days []DayAvailability) Reply {
	var sb strings.Builder
	sb.WriteString("⏰ Free time for booking:\n")
	for _, day := range days {
		sb.WriteString("\n📅 ")
		sb.WriteString(schedule.DisplayDate(day.Date))
		if len(day.Slots) == 0 {
			sb.WriteString(": no free slots\n")
			continue
		}
		sb.WriteString(":\n")
		for i := 0; i < len(day.Slots); i += 3 {
			end := min(i+3, len(day.Slots))
			sb.WriteString(strings.Join(day.Slots[i:end], ", "))
			sb.WriteString("\n")
		}
	}
	return mainMenuReply(strings.TrimRight(sb.String(), "\n"))
}

func allBookingsReply(bookings []domain.Booking) Reply {
	if len(bookings) == 0 {
		return mainMenuReply("There are no active bookings.")
	}
	var sb strings.Builder
	sb.WriteString("📋 All bookings:\n")
	for _, b := range bookings {
		fmt.Fprintf(&sb, "\n%s\n👤 Name: %s\n📞 Phone: %s\n", bookingLabel(b), b.Name, b.Phone)
	}
	return mainMenuReply(strings.TrimRight(sb.String(), "\n"))
}

func adminMenuReply() Reply {
	return Reply{
		Text: "👤 Admin panel. Choose an action:",
		Options: []Option{
			{Label: "📋 All bookings", Payload: CmdAdminAll},
			{Label: "🗑 Reset all bookings", Payload: CmdAdminReset},
			{Label: "🚪 Log out", Payload: CmdAdminLogout},
			{Label: "⬅️ Main menu", Payload: CmdBackToMain},
		},
	}
}

func adminBookingsReply(bookings []domain.Booking) Reply {
	back := Option{Label: "⬅️ Back", Payload: CmdBackToAdmin}
	if len(bookings) == 0 {
		return Reply{Text: "There are no bookings in the system.", Options: []Option{back}}
	}
	opts := make([]Option, 0, len(bookings)+1)
	for _, b := range bookings {
		label := fmt.Sprintf("%s %s", bookingLabel(b), b.Name)
		opts = append(opts, Option{Label: label, Payload: CmdAdminView + ":" + strconv.FormatInt(b.ID, 10)})
	}
	opts = append(opts, back)
	return Reply{Text: "📋 All bookings. Choose one to see the details.", Options: opts}
}

func adminDetailsReply(b domain.Booking, loc *time.Location) Reply {
	id := strconv.FormatInt(b.ID, 10)
	return Reply{
		Text: fmt.Sprintf("Booking #%s\n\n%s\n🆔 User: %s", id, bookingInfo(b, loc), b.OwnerID),
		Options: []Option{
			{Label: "❌ Cancel booking", Payload: CmdAdminCancel + ":" + id},
			{Label: "⬅️ Back", Payload: CmdAdminAll},
		},
		Booking: &b,
	}
}

func resetConfirmReply() Reply {
	return Reply{
		Text: "⚠️ Delete ALL bookings? This cannot be undone.",
		Options: []Option{
			{Label: "✅ Yes, delete everything", Payload: CmdConfirmReset},
			{Label: "⬅️ Back", Payload: CmdBackToAdmin},
		},
	}
}
