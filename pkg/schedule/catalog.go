package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical date format used for bookings.
const DateLayout = "2006-01-02"

const displayLayout = "02.01.2006"

const (
	defaultStartHour     = 9
	defaultEndHour       = 21
	defaultDaysInAdvance = 7
)

// Config describes bookable hours and the booking window.
type Config struct {
	StartHour     int
	EndHour       int
	DaysInAdvance int
	Location      *time.Location
}

// Catalog is the fixed list of hourly slots plus the date window.
type Catalog struct {
	slots []string
	index map[string]int
	days  int
	loc   *time.Location
}

// New builds a catalog of one-hour slots in [StartHour, EndHour).
// A zero EndHour means the default end of 21, and with it a zero StartHour
// means the default start of 9. A zero StartHour next to a set EndHour is midnight.
// The window defaults to 7 days in UTC.
func New(cfg Config) (*Catalog, error) {
	start, end := cfg.StartHour, cfg.EndHour
	if end == 0 {
		end = defaultEndHour
		if start == 0 {
			start = defaultStartHour
		}
	}
	if start < 0 || end > 24 || start >= end {
		return nil, fmt.Errorf("invalid booking hours %d-%d", start, end)
	}
	days := cfg.DaysInAdvance
	if days == 0 {
		days = defaultDaysInAdvance
	}
	if days < 0 {
		return nil, errors.New("days in advance must be positive")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	c := &Catalog{
		slots: make([]string, 0, end-start),
		index: make(map[string]int, end-start),
		days:  days,
		loc:   loc,
	}
	for h := start; h < end; h++ {
		label := SlotLabel(h)
		c.index[label] = len(c.slots)
		c.slots = append(c.slots, label)
	}
	return c, nil
}

// SlotLabel formats the slot starting at hour h, e.g. "09:00-10:00".
func SlotLabel(h int) string {
	return fmt.Sprintf("%02d:00-%02d:00", h, h+1)
}

// Slots returns the catalog in order.
func (c *Catalog) Slots() []string {
	out := make([]string, len(c.slots))
	copy(out, c.slots)
	return out
}

// Contains reports whether slot is part of the catalog.
func (c *Catalog) Contains(slot string) bool {
	_, ok := c.index[slot]
	return ok
}

// Location returns the timezone used to compute "today".
func (c *Catalog) Location() *time.Location {
	return c.loc
}

// DaysInAdvance returns the size of the booking window.
func (c *Catalog) DaysInAdvance() int {
	return c.days
}

// Dates returns today and the following days of the window as ISO dates.
func (c *Catalog) Dates(now time.Time) []string {
	today := now.In(c.loc)
	out := make([]string, 0, c.days)
	for i := 0; i < c.days; i++ {
		out = append(out, today.AddDate(0, 0, i).Format(DateLayout))
	}
	return out
}

// InWindow reports whether date is one of the dates returned by Dates(now).
func (c *Catalog) InWindow(date string, now time.Time) bool {
	for _, d := range c.Dates(now) {
		if d == date {
			return true
		}
	}
	return false
}

// ParseDate validates an ISO date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

// DisplayDate renders an ISO date as DD.MM.YYYY. Unparseable input is returned unchanged.
func DisplayDate(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format(displayLayout)
}
