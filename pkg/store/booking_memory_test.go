package store

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"slotbot/pkg/domain"
)

var testCatalog = []string{"09:00-10:00", "10:00-11:00", "11:00-12:00"}

func newBooking(owner, date, slot string) domain.Booking {
	return domain.Booking{OwnerID: owner, Date: date, Slot: slot, Name: "Anna", Phone: "+12345678901"}
}

func TestAddBookingAssignsMonotonicIDs(t *testing.T) {
	s := NewMemoryBookingStore()
	first, err := s.AddBooking(newBooking("u1", "2024-06-01", "09:00-10:00"))
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	second, err := s.AddBooking(newBooking("u2", "2024-06-01", "10:00-11:00"))
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() {
		t.Fatalf("expected created at to be set")
	}

	if !s.CancelBooking(second.ID) {
		t.Fatalf("cancel second should succeed")
	}
	third, err := s.AddBooking(newBooking("u2", "2024-06-01", "10:00-11:00"))
	if err != nil {
		t.Fatalf("add third: %v", err)
	}
	if third.ID != 3 {
		t.Fatalf("ids must not be reused, got %d", third.ID)
	}
}

func TestAddBookingRejectsTakenSlot(t *testing.T) {
	s := NewMemoryBookingStore()
	if _, err := s.AddBooking(newBooking("u1", "2024-06-01", "09:00-10:00")); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := s.AddBooking(newBooking("u2", "2024-06-01", "09:00-10:00"))
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("err = %v, want ErrSlotTaken", err)
	}
	if got := len(s.ListAll()); got != 1 {
		t.Fatalf("expected 1 booking, got %d", got)
	}
}

func TestCancelBookingTwice(t *testing.T) {
	s := NewMemoryBookingStore()
	b, err := s.AddBooking(newBooking("u1", "2024-06-01", "09:00-10:00"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !s.CancelBooking(b.ID) {
		t.Fatalf("first cancel should return true")
	}
	if s.CancelBooking(b.ID) {
		t.Fatalf("second cancel should return false")
	}
	if !s.IsSlotAvailable("2024-06-01", "09:00-10:00") {
		t.Fatalf("slot should be free after cancel")
	}
}

func TestListByOwnerKeepsCreationOrder(t *testing.T) {
	s := NewMemoryBookingStore()
	_, _ = s.AddBooking(newBooking("u1", "2024-06-02", "09:00-10:00"))
	_, _ = s.AddBooking(newBooking("u2", "2024-06-01", "09:00-10:00"))
	_, _ = s.AddBooking(newBooking("u1", "2024-06-01", "10:00-11:00"))

	got := s.ListByOwner("u1")
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("unexpected owner listing: %+v", got)
	}
	if len(s.ListByOwner("nobody")) != 0 {
		t.Fatalf("expected empty listing for unknown owner")
	}
}

func TestResetAllRestartsIDs(t *testing.T) {
	s := NewMemoryBookingStore()
	_, _ = s.AddBooking(newBooking("u1", "2024-06-01", "09:00-10:00"))
	_, _ = s.AddBooking(newBooking("u1", "2024-06-01", "10:00-11:00"))

	s.ResetAll()
	if len(s.ListAll()) != 0 {
		t.Fatalf("expected no bookings after reset")
	}
	b, err := s.AddBooking(newBooking("u1", "2024-06-01", "09:00-10:00"))
	if err != nil {
		t.Fatalf("add after reset: %v", err)
	}
	if b.ID != 1 {
		t.Fatalf("id after reset = %d, want 1", b.ID)
	}
}

func TestAvailableSlotsPartitionsCatalog(t *testing.T) {
	s := NewMemoryBookingStore()
	rng := rand.New(rand.NewSource(7))
	dates := []string{"2024-06-01", "2024-06-02"}
	live := map[int64]bool{}

	for i := 0; i < 500; i++ {
		if rng.Intn(3) == 0 && len(live) > 0 {
			for id := range live {
				s.CancelBooking(id)
				delete(live, id)
				break
			}
			continue
		}
		date := dates[rng.Intn(len(dates))]
		slot := testCatalog[rng.Intn(len(testCatalog))]
		b, err := s.AddBooking(newBooking(fmt.Sprintf("u%d", i), date, slot))
		if err == nil {
			live[b.ID] = true
		} else if !errors.Is(err, ErrSlotTaken) {
			t.Fatalf("unexpected add error: %v", err)
		}

		seen := map[[2]string]bool{}
		for _, b := range s.ListAll() {
			key := [2]string{b.Date, b.Slot}
			if seen[key] {
				t.Fatalf("duplicate live booking for %v", key)
			}
			seen[key] = true
		}
		for _, d := range dates {
			free := s.AvailableSlots(d, testCatalog)
			freeSet := map[string]bool{}
			for _, slot := range free {
				freeSet[slot] = true
				if seen[[2]string{d, slot}] {
					t.Fatalf("slot %s %s both free and occupied", d, slot)
				}
			}
			for _, slot := range testCatalog {
				if !freeSet[slot] && !seen[[2]string{d, slot}] {
					t.Fatalf("slot %s %s neither free nor occupied", d, slot)
				}
			}
		}
	}
}

func TestAddBookingConcurrentSameSlot(t *testing.T) {
	s := NewMemoryBookingStore()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.AddBooking(newBooking(fmt.Sprintf("u%d", i), "2024-06-01", "09:00-10:00")); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestTakeBookingRespectsOwner(t *testing.T) {
	s := NewMemoryBookingStore()
	b, err := s.AddBooking(newBooking("u1", "2024-06-01", "09:00-10:00"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, ok := s.TakeBooking(b.ID, "u2"); ok {
		t.Fatalf("other owner must not take the booking")
	}
	got, ok := s.TakeBooking(b.ID, "u1")
	if !ok || got.ID != b.ID || got.Slot != "09:00-10:00" {
		t.Fatalf("unexpected take result: ok=%v booking=%+v", ok, got)
	}
	if _, ok := s.GetBooking(b.ID); ok {
		t.Fatalf("booking should be gone")
	}
}
