package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"slotbot/internal/ratelimit"
	"slotbot/internal/util"
	"slotbot/pkg/auth"
	"slotbot/pkg/domain"
	"slotbot/pkg/events"
	"slotbot/pkg/schedule"
	"slotbot/pkg/store"
)

const (
	defaultAdminSessionTTL    = 12 * time.Hour
	defaultConversationTTL    = 30 * time.Minute
	defaultPasswordAttempts   = 5
	defaultPasswordRateWindow = time.Minute
)

// Limiter decides whether another attempt for key is allowed.
type Limiter interface {
	Allow(key string) bool
}

// Config holds runtime configuration for the booking core.
type Config struct {
	Catalog *schedule.Catalog

	Bookings        store.BookingStore
	Conversations   store.ConversationStore
	ConversationTTL time.Duration

	AdminIDs          []string
	AdminPasswordHash string
	AdminSessions     store.SessionStore
	AdminSessionTTL   time.Duration
	AdminTokenSecret  []byte
	AdminRevoker      store.TokenRevoker
	PasswordLimiter   Limiter

	Events events.Publisher
	Now    func() time.Time
}

// App drives the booking and admin conversations over the stores.
type App struct {
	catalog       *schedule.Catalog
	bookings      store.BookingStore
	conversations store.ConversationStore
	grants        store.SessionStore
	adminIDs      map[string]struct{}
	passwordHash  string
	attempts      Limiter
	events        events.Publisher
	now           func() time.Time

	adminMu sync.Mutex
	admins  map[string]adminState
}

// New wires the core. Stores left nil fall back to in-memory implementations.
func New(cfg Config) (*App, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("slot catalog required")
	}
	if !auth.IsBcryptHash(cfg.AdminPasswordHash) {
		return nil, errors.New("admin password hash must be a bcrypt hash")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Bookings == nil {
		cfg.Bookings = store.NewMemoryBookingStore()
	}
	if cfg.Conversations == nil {
		ttl := cfg.ConversationTTL
		if ttl <= 0 {
			ttl = defaultConversationTTL
		}
		cfg.Conversations = store.NewMemoryConversationStore(ttl, cfg.Now)
	}
	if cfg.AdminSessions == nil {
		grants, err := newGrantStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("init admin sessions: %w", err)
		}
		cfg.AdminSessions = grants
	}
	if cfg.PasswordLimiter == nil {
		limiter, err := newDefaultLimiter()
		if err != nil {
			return nil, err
		}
		cfg.PasswordLimiter = limiter
	}
	if cfg.Events == nil {
		cfg.Events = events.NopPublisher{}
	}

	adminIDs := make(map[string]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		if id = strings.TrimSpace(id); id != "" {
			adminIDs[id] = struct{}{}
		}
	}

	return &App{
		catalog:       cfg.Catalog,
		bookings:      cfg.Bookings,
		conversations: cfg.Conversations,
		grants:        cfg.AdminSessions,
		adminIDs:      adminIDs,
		passwordHash:  cfg.AdminPasswordHash,
		attempts:      cfg.PasswordLimiter,
		events:        cfg.Events,
		now:           cfg.Now,
		admins:        make(map[string]adminState),
	}, nil
}

func newGrantStore(cfg Config) (*store.JWTSessionStore, error) {
	ttl := cfg.AdminSessionTTL
	if ttl <= 0 {
		ttl = defaultAdminSessionTTL
	}
	secret := cfg.AdminTokenSecret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate admin token secret: %w", err)
		}
	}
	revoker := cfg.AdminRevoker
	if revoker == nil {
		revoker = store.NewMemoryTokenRevoker()
	}
	return store.NewJWTSessionStore(secret, ttl, revoker, store.JWTOptions{Now: cfg.Now})
}

func newDefaultLimiter() (Limiter, error) {
	limiter, err := ratelimit.NewMemoryFixedWindowLimiter(defaultPasswordAttempts, defaultPasswordRateWindow)
	if err != nil {
		return nil, fmt.Errorf("init password limiter: %w", err)
	}
	return limiter, nil
}

// Catalog exposes the slot catalog.
func (a *App) Catalog() *schedule.Catalog {
	return a.catalog
}

func (a *App) publish(ctx context.Context, evt domain.Event) {
	evt.ID = uuid.NewString()
	evt.At = a.now().UTC()
	if err := a.events.Publish(ctx, evt); err != nil {
		util.LoggerFromContext(ctx).Warn("publish event failed", "type", evt.Type, "booking_id", evt.BookingID, "err", err)
	}
}
