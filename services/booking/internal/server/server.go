package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"slotbot/internal/ratelimit"
	"slotbot/internal/util"
	"slotbot/services/booking/internal/app"
)

const (
	adapterTokenHeader = "X-Adapter-Token"
	maxBodyBytes       = 64 << 10
	maxUserIDLen       = 128
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App              *app.App
	AdapterToken     string
	RedisAddr        string
	RedisPassword    string
	ActionsPerMinute int
	TrustedProxies   *util.TrustedProxies
}

// Server exposes the chat adapter endpoints.
type Server struct {
	app           *app.App
	adapterToken  []byte
	actionLimiter *ratelimit.FixedWindowLimiter
	trusted       *util.TrustedProxies
	mux           *http.ServeMux
}

type messageRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

type actionRequest struct {
	UserID  string `json:"userId"`
	Payload string `json:"payload"`
}

// New constructs the server with routes configured. The per-user limiter is
// Redis-backed when RedisAddr is set and in-process otherwise.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	limit := cfg.ActionsPerMinute
	if limit <= 0 {
		limit = 60
	}
	var (
		limiter *ratelimit.FixedWindowLimiter
		err     error
	)
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "slotbot:ratelimit:actions", limit, time.Minute)
	} else {
		limiter, err = ratelimit.NewMemoryFixedWindowLimiter(limit, time.Minute)
	}
	if err != nil {
		return nil, fmt.Errorf("init action limiter: %w", err)
	}
	s := &Server{
		app:           cfg.App,
		actionLimiter: limiter,
		trusted:       cfg.TrustedProxies,
		mux:           http.NewServeMux(),
	}
	if token := strings.TrimSpace(cfg.AdapterToken); token != "" {
		s.adapterToken = []byte(token)
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(s.trusted, util.WithSecurityHeaders(s.trusted, s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/api/v1/messages", s.adapterOnly(s.handleMessage))
	s.mux.Handle("/api/v1/actions", s.adapterOnly(s.handleAction))
	s.mux.Handle("/api/v1/availability", s.adapterOnly(s.handleAvailability))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) adapterOnly(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adapterToken != nil {
			got := []byte(strings.TrimSpace(r.Header.Get(adapterTokenHeader)))
			if subtle.ConstantTimeCompare(got, s.adapterToken) != 1 {
				s.audit(r, "adapter.authorize", "fail", "reason", "bad_token")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req messageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, ok := s.admitUser(w, r, req.UserID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.app.HandleText(r.Context(), userID, req.Text))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Payload) == "" {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}
	userID, ok := s.admitUser(w, r, req.UserID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.app.HandleAction(r.Context(), userID, req.Payload))
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeJSON(w, http.StatusOK, s.app.FreeTimes())
		return
	}
	day, err := s.app.Availability(date)
	if err != nil {
		if errors.Is(err, app.ErrInvalidDate) {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD within the booking window")
			return
		}
		util.LoggerFromContext(r.Context()).Error("availability failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// admitUser validates the user id and applies the per-user rate limit.
func (s *Server) admitUser(w http.ResponseWriter, r *http.Request, raw string) (string, bool) {
	userID := strings.TrimSpace(raw)
	if userID == "" || len(userID) > maxUserIDLen {
		writeError(w, http.StatusBadRequest, "userId is required")
		return "", false
	}
	if !s.actionLimiter.Allow(userID) {
		s.audit(r, "adapter.ratelimit", "fail", "user_id", userID)
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return "", false
	}
	return userID, true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
