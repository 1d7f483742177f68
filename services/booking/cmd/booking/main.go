package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"
	"slotbot/internal/ratelimit"
	"slotbot/internal/util"
	"slotbot/pkg/auth"
	"slotbot/pkg/events"
	"slotbot/pkg/schedule"
	"slotbot/pkg/store"
	"slotbot/services/booking/internal/app"
	"slotbot/services/booking/internal/config"
	"slotbot/services/booking/internal/server"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("booking service stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.FileConfig) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	catalog, err := schedule.New(schedule.Config{
		StartHour:     cfg.StartHour(),
		EndHour:       cfg.EndHour(),
		DaysInAdvance: cfg.DaysInAdvance,
		Location:      loc,
	})
	if err != nil {
		return fmt.Errorf("build slot catalog: %w", err)
	}
	conversationTTL, err := config.ParseDuration("conversationTTL", cfg.ConversationTTL)
	if err != nil {
		return err
	}
	sweepInterval, err := config.ParseDuration("conversationSweepInterval", cfg.ConversationSweepInterval)
	if err != nil {
		return err
	}
	adminTTL, err := config.ParseDuration("adminSessionTTL", cfg.AdminSessionTTL)
	if err != nil {
		return err
	}
	passwordHash, err := adminPasswordHash(cfg)
	if err != nil {
		return err
	}

	var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
	passwordLimiter, err := ratelimit.NewMemoryFixedWindowLimiter(cfg.PasswordAttemptsPerMinute, time.Minute)
	if cfg.RedisAddr != "" {
		revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword, "")
		passwordLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "slotbot:ratelimit:admin-password", cfg.PasswordAttemptsPerMinute, time.Minute)
	}
	if err != nil {
		return fmt.Errorf("init password limiter: %w", err)
	}

	var (
		conversations store.ConversationStore
		sweeper       *store.MemoryConversationStore
	)
	switch cfg.ConversationBackend {
	case config.BackendRedis:
		redisConversations, err := store.NewRedisConversationStore(cfg.RedisAddr, cfg.RedisPassword, "", conversationTTL)
		if err != nil {
			return fmt.Errorf("init conversation store: %w", err)
		}
		defer redisConversations.Close()
		conversations = redisConversations
	default:
		sweeper = store.NewMemoryConversationStore(conversationTTL, nil)
		conversations = sweeper
	}

	publisher, err := events.New(events.Config{
		Backend:       cfg.EventsBackend,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		Stream:        cfg.EventsStream,
		AMQPURL:       cfg.AMQPURL,
		AMQPExchange:  cfg.AMQPExchange,
	})
	if err != nil {
		return fmt.Errorf("init events publisher: %w", err)
	}
	defer publisher.Close()

	var secret []byte
	if cfg.AdminTokenSecret != "" {
		secret = []byte(cfg.AdminTokenSecret)
	}
	appCore, err := app.New(app.Config{
		Catalog:           catalog,
		Bookings:          store.NewMemoryBookingStore(),
		Conversations:     conversations,
		ConversationTTL:   conversationTTL,
		AdminIDs:          cfg.AdminIDs,
		AdminPasswordHash: passwordHash,
		AdminSessionTTL:   adminTTL,
		AdminTokenSecret:  secret,
		AdminRevoker:      revoker,
		PasswordLimiter:   passwordLimiter,
		Events:            publisher,
	})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}
	httpServer, err := server.New(server.Config{
		App:              appCore,
		AdapterToken:     cfg.AdapterToken,
		RedisAddr:        cfg.RedisAddr,
		RedisPassword:    cfg.RedisPassword,
		ActionsPerMinute: cfg.ActionsPerMinute,
		TrustedProxies:   trusted,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	if cfg.AdapterToken == "" {
		slog.Warn("adapter token not set; adapter endpoints are unauthenticated")
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr, "timezone", catalog.Location().String(), "days_in_advance", catalog.DaysInAdvance(), "slots", len(catalog.Slots()), "conversations", cfg.ConversationBackend, "events", cfg.EventsBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if sweeper != nil {
		g.Go(func() error {
			return sweeper.RunSweeper(gctx, sweepInterval)
		})
	}
	return g.Wait()
}

func adminPasswordHash(cfg config.FileConfig) (string, error) {
	if cfg.AdminPasswordHash != "" {
		if !auth.IsBcryptHash(cfg.AdminPasswordHash) {
			return "", errors.New("adminPasswordHash is not a bcrypt hash")
		}
		return cfg.AdminPasswordHash, nil
	}
	password := cfg.AdminPassword
	if password == "" {
		password = auth.DefaultAdminPassword
	}
	if cfg.UsesDefaultPassword() {
		slog.Warn("admin password is the default; set adminPassword or adminPasswordHash")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash admin password: %w", err)
	}
	return hash, nil
}
