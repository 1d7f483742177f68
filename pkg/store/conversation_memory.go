package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"slotbot/pkg/domain"
)

const defaultConversationTTL = 30 * time.Minute

type conversationEntry struct {
	session   domain.Session
	updatedAt time.Time
}

// MemoryConversationStore keeps sessions in-process and forgets them after ttl of inactivity.
type MemoryConversationStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]conversationEntry
}

// NewMemoryConversationStore builds an in-memory store. A nil clock means time.Now.
func NewMemoryConversationStore(ttl time.Duration, now func() time.Time) *MemoryConversationStore {
	if ttl <= 0 {
		ttl = defaultConversationTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryConversationStore{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]conversationEntry),
	}
}

// Get returns the live session for userID.
func (m *MemoryConversationStore) Get(_ context.Context, userID string) (domain.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return nil, false, nil
	}
	if m.expired(e) {
		delete(m.entries, userID)
		return nil, false, nil
	}
	return e.session, true, nil
}

// Save replaces the session for userID and refreshes its ttl.
func (m *MemoryConversationStore) Save(_ context.Context, userID string, s domain.Session) error {
	m.mu.Lock()
	m.entries[userID] = conversationEntry{session: s, updatedAt: m.now()}
	m.mu.Unlock()
	return nil
}

// Clear drops the session for userID.
func (m *MemoryConversationStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.entries, userID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryConversationStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *MemoryConversationStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryConversationStore) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("conversation sweep", "removed", n)
			}
		}
	}
}

func (m *MemoryConversationStore) expired(e conversationEntry) bool {
	return m.now().Sub(e.updatedAt) >= m.ttl
}
