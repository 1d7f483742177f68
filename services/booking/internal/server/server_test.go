package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"golang.org/x/crypto/bcrypt"
	"slotbot/pkg/domain"
	"slotbot/pkg/schedule"
	"slotbot/services/booking/internal/app"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	catalog, err := schedule.New(schedule.Config{})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	a, err := app.New(app.Config{
		Catalog:           catalog,
		AdminPasswordHash: string(hash),
		Now:               func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.App == nil {
		cfg.App = newTestApp(t)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(adapterTokenHeader, token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeReply(t *testing.T, resp *http.Response) app.Reply {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var reply app.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return reply
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Config{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Fatalf("expected security headers")
	}
}

func TestBookingOverHTTP(t *testing.T) {
	srv := newTestServer(t, Config{AdapterToken: "adapter-secret"})
	messages := srv.URL + "/api/v1/messages"
	actions := srv.URL + "/api/v1/actions"

	resp := post(t, actions, "", actionRequest{UserID: "u1", Payload: app.CmdBook})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without adapter token, got %d", resp.StatusCode)
	}

	steps := []struct {
		url  string
		body any
		want domain.Step
	}{
		{actions, actionRequest{UserID: "u1", Payload: app.CmdBook}, domain.StepSelectingDate},
		{actions, actionRequest{UserID: "u1", Payload: "date:2024-06-01"}, domain.StepSelectingTime},
		{actions, actionRequest{UserID: "u1", Payload: "time:09:00-10:00"}, domain.StepEnteringName},
		{messages, messageRequest{UserID: "u1", Text: "Anna"}, domain.StepEnteringPhone},
		{messages, messageRequest{UserID: "u1", Text: "+12345678901"}, domain.StepConfirmingBooking},
	}
	for i, step := range steps {
		reply := decodeReply(t, post(t, step.url, "adapter-secret", step.body))
		if reply.Step != step.want {
			t.Fatalf("step %d: expected %s, got %s (%q)", i, step.want, reply.Step, reply.Text)
		}
	}
	reply := decodeReply(t, post(t, actions, "adapter-secret", actionRequest{UserID: "u1", Payload: app.CmdConfirmBooking}))
	if reply.Booking == nil || reply.Booking.ID != 1 || reply.Step != domain.StepIdle {
		t.Fatalf("expected booking 1, got %+v", reply)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/availability?date=2024-06-01", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(adapterTokenHeader, "adapter-secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("availability request failed: %v", err)
	}
	defer resp.Body.Close()
	var day app.DayAvailability
	if err := json.NewDecoder(resp.Body).Decode(&day); err != nil {
		t.Fatalf("decode availability: %v", err)
	}
	if len(day.Slots) != 11 || day.Slots[0] != "10:00-11:00" {
		t.Fatalf("unexpected availability: %+v", day)
	}
}

func TestAvailabilityRejectsBadDate(t *testing.T) {
	srv := newTestServer(t, Config{})
	for _, date := range []string{"01.06.2024", "2024-06-30"} {
		resp, err := http.Get(srv.URL + "/api/v1/availability?date=" + date)
		if err != nil {
			t.Fatalf("availability request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("date %q: expected 400, got %d", date, resp.StatusCode)
		}
	}
}

func TestRequestValidation(t *testing.T) {
	srv := newTestServer(t, Config{})
	cases := []struct {
		name string
		url  string
		body any
	}{
		{"missing user", "/api/v1/messages", messageRequest{Text: "hi"}},
		{"missing payload", "/api/v1/actions", actionRequest{UserID: "u1"}},
		{"unknown field", "/api/v1/actions", map[string]string{"userId": "u1", "payload": "book", "extra": "x"}},
	}
	for _, tc := range cases {
		resp := post(t, srv.URL+tc.url, "", tc.body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
	}
	resp, err := http.Get(srv.URL + "/api/v1/messages")
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestActionRateLimitRedis(t *testing.T) {
	redis := miniredis.RunT(t)
	srv := newTestServer(t, Config{RedisAddr: redis.Addr(), ActionsPerMinute: 1})

	resp1 := post(t, srv.URL+"/api/v1/actions", "", actionRequest{UserID: "u1", Payload: app.CmdHelp})
	resp1.Body.Close()
	if resp1.StatusCode != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", resp1.StatusCode)
	}
	resp2 := post(t, srv.URL+"/api/v1/actions", "", actionRequest{UserID: "u1", Payload: app.CmdHelp})
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", resp2.StatusCode)
	}
	resp3 := post(t, srv.URL+"/api/v1/actions", "", actionRequest{UserID: "u2", Payload: app.CmdHelp})
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusOK {
		t.Fatalf("other user expected 200, got %d", resp3.StatusCode)
	}
}

func TestActionRateLimitFailsClosedWithoutRedis(t *testing.T) {
	redis := miniredis.RunT(t)
	srv := newTestServer(t, Config{RedisAddr: redis.Addr(), ActionsPerMinute: 5})
	redis.Close()

	resp := post(t, srv.URL+"/api/v1/actions", "", actionRequest{UserID: "u1", Payload: app.CmdHelp})
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 when redis is down, got %d", resp.StatusCode)
	}
}

func TestNewRequiresApp(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without app")
	}
}
