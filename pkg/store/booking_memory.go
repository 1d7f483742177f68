package store

import (
	"sync"
	"time"

	"slotbot/pkg/domain"
)

type slotKey struct {
	date string
	slot string
}

// MemoryBookingStore keeps bookings in-process.
// A single lock covers the id counter and every index.
type MemoryBookingStore struct {
	mu       sync.RWMutex
	nextID   int64
	bookings map[int64]domain.Booking
	bySlot   map[slotKey]int64
	orders   []int64
	now      func() time.Time
}

// NewMemoryBookingStore initializes an empty store with ids starting at 1.
func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{
		nextID:   1,
		bookings: make(map[int64]domain.Booking),
		bySlot:   make(map[slotKey]int64),
		now:      time.Now,
	}
}

// AddBooking checks the slot and inserts in the same critical section.
func (m *MemoryBookingStore) AddBooking(b domain.Booking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := slotKey{date: b.Date, slot: b.Slot}
	if _, taken := m.bySlot[key]; taken {
		return domain.Booking{}, ErrSlotTaken
	}
	b.ID = m.nextID
	m.nextID++
	if b.CreatedAt.IsZero() {
		b.CreatedAt = m.now().UTC()
	}
	m.bookings[b.ID] = b
	m.bySlot[key] = b.ID
	m.orders = append(m.orders, b.ID)
	return b, nil
}

// GetBooking retrieves a booking by id.
func (m *MemoryBookingStore) GetBooking(id int64) (domain.Booking, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	return b, ok
}

// ListByOwner returns the owner's bookings in creation order.
func (m *MemoryBookingStore) ListByOwner(ownerID string) []domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Booking, 0)
	for _, id := range m.orders {
		if b, ok := m.bookings[id]; ok && b.OwnerID == ownerID {
			res = append(res, b)
		}
	}
	return res
}

// ListAll returns every live booking in creation order.
func (m *MemoryBookingStore) ListAll() []domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Booking, 0, len(m.orders))
	for _, id := range m.orders {
		if b, ok := m.bookings[id]; ok {
			res = append(res, b)
		}
	}
	return res
}

// CancelBooking removes a booking and frees its slot. Reports false when absent.
func (m *MemoryBookingStore) CancelBooking(id int64) bool {
	_, ok := m.TakeBooking(id, "")
	return ok
}

// TakeBooking removes and returns a booking. A non-empty ownerID restricts
// removal to that owner's booking.
func (m *MemoryBookingStore) TakeBooking(id int64, ownerID string) (domain.Booking, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || (ownerID != "" && b.OwnerID != ownerID) {
		return domain.Booking{}, false
	}
	delete(m.bookings, id)
	delete(m.bySlot, slotKey{date: b.Date, slot: b.Slot})
	filtered := m.orders[:0]
	for _, item := range m.orders {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.orders = filtered
	return b, true
}

// IsSlotAvailable reports whether no live booking holds (date, slot).
func (m *MemoryBookingStore) IsSlotAvailable(date, slot string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, taken := m.bySlot[slotKey{date: date, slot: slot}]
	return !taken
}

// AvailableSlots filters catalog down to free slots, keeping catalog order.
func (m *MemoryBookingStore) AvailableSlots(date string, catalog []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]string, 0, len(catalog))
	for _, slot := range catalog {
		if _, taken := m.bySlot[slotKey{date: date, slot: slot}]; !taken {
			res = append(res, slot)
		}
	}
	return res
}

// ResetAll drops every booking and restarts ids at 1.
func (m *MemoryBookingStore) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = 1
	m.bookings = make(map[int64]domain.Booking)
	m.bySlot = make(map[slotKey]int64)
	m.orders = nil
}
