package actions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/resolving/chatsync/internal/chat"
	"github.com/resolving/chatsync/pkg/models"
)

func newGateway(t *testing.T, url string) *Gateway {
	t.Helper()
	g, err := NewGateway(Config{BaseURL: url, Token: "tok"})
	if err != nil {
		t.Fatalf("NewGateway() error: %v", err)
	}
	return g
}

func TestGateway_ConfigValidation(t *testing.T) {
	if _, err := NewGateway(Config{}); chat.CodeOf(err) != chat.ErrCodeConfig {
		t.Errorf("expected CONFIG_ERROR for empty base url, got %v", err)
	}

	cfg := Config{BaseURL: "http://example"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("default timeout = %v, want 10s", cfg.Timeout)
	}
}

func TestGateway_MuteUser_CustomSingleRequest(t *testing.T) {
	var calls atomic.Int64
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/mute_user" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(models.ActionResult{Success: true, Message: "Пользователь bob замучен"})
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL)
	result, err := g.MuteUser(context.Background(), 9, models.MuteCustom(15))
	if err != nil {
		t.Fatalf("MuteUser() error: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success envelope, got %+v", result)
	}
	// The custom path sends exactly one request carrying both the tag and
	// the minute count.
	if n := calls.Load(); n != 1 {
		t.Errorf("expected exactly 1 request, got %d", n)
	}
	if got["duration"] != "custom" {
		t.Errorf("duration = %v, want custom", got["duration"])
	}
	if got["custom_minutes"] != float64(15) {
		t.Errorf("custom_minutes = %v, want 15", got["custom_minutes"])
	}
	if got["user_id"] != float64(9) {
		t.Errorf("user_id = %v, want 9", got["user_id"])
	}
}

func TestGateway_MuteUser_InvalidCustomNoCall(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL)
	for _, minutes := range []int{0, -5} {
		_, err := g.MuteUser(context.Background(), 9, models.MuteCustom(minutes))
		if chat.CodeOf(err) != chat.ErrCodeValidation {
			t.Errorf("minutes=%d: expected VALIDATION_ERROR, got %v", minutes, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("validation failures must not reach the server, got %d calls", calls.Load())
	}
}

func TestGateway_FixedDurations(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(models.ActionResult{Success: true, Message: "ok"})
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL)
	tests := []struct {
		d    models.MuteDuration
		want string
	}{
		{models.MuteForever(), "forever"},
		{models.MuteTenMinutes(), "10m"},
		{models.MuteOneHour(), "1h"},
	}
	for _, tt := range tests {
		if _, err := g.MuteUser(context.Background(), 1, tt.d); err != nil {
			t.Fatalf("MuteUser(%s) error: %v", tt.want, err)
		}
		if got["duration"] != tt.want {
			t.Errorf("duration = %v, want %s", got["duration"], tt.want)
		}
		if _, present := got["custom_minutes"]; present {
			t.Errorf("fixed duration %s must omit custom_minutes", tt.want)
		}
	}
}

func TestGateway_ServerFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(models.ActionResult{Success: false, Message: "Доступ запрещен"})
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL)
	result, err := g.UnmuteUser(context.Background(), 3)
	if err != nil {
		t.Fatalf("a server-reported failure is not a transport error: %v", err)
	}
	if result.Success {
		t.Error("expected failure envelope")
	}
	if result.Message != "Доступ запрещен" {
		t.Errorf("server message not preserved: %q", result.Message)
	}
}

func TestGateway_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	g := newGateway(t, srv.URL)
	_, err := g.UnmuteUser(context.Background(), 3)
	if chat.CodeOf(err) != chat.ErrCodeConnection {
		t.Errorf("expected CONNECTION_ERROR, got %v", err)
	}
	if !chat.IsRetryable(err) {
		t.Error("connection errors should classify as retryable")
	}
}

func TestGateway_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL)
	_, err := g.UnmuteUser(context.Background(), 3)
	if chat.CodeOf(err) != chat.ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %v", err)
	}
}

func TestGateway_CreateUserValidation(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL)
	tests := []struct {
		username, password string
	}{
		{"", "secret"},
		{"   ", "secret"},
		{"ann", ""},
	}
	for _, tt := range tests {
		_, err := g.CreateUser(context.Background(), tt.username, tt.password, models.RoleUser)
		if chat.CodeOf(err) != chat.ErrCodeValidation {
			t.Errorf("CreateUser(%q, %q): expected VALIDATION_ERROR, got %v", tt.username, tt.password, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("validation failures must not reach the server, got %d calls", calls.Load())
	}
}

func TestGateway_AdminCalls(t *testing.T) {
	type call struct {
		path string
		body map[string]any
	}
	var last call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&last.body)
		json.NewEncoder(w).Encode(models.ActionResult{Success: true, Message: "ok"})
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL)

	if _, err := g.CreateUser(context.Background(), "ann", "pw", ""); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	if last.path != "/admin/create_user" || last.body["role"] != "user" {
		t.Errorf("create_user call: %+v (role must default to user)", last)
	}

	if _, err := g.ChangeRole(context.Background(), 4, models.RoleModerator); err != nil {
		t.Fatalf("ChangeRole() error: %v", err)
	}
	if last.path != "/admin/change_role" || last.body["role"] != "moderator" || last.body["user_id"] != float64(4) {
		t.Errorf("change_role call: %+v", last)
	}

	if _, err := g.DeleteUser(context.Background(), 4); err != nil {
		t.Fatalf("DeleteUser() error: %v", err)
	}
	if last.path != "/admin/delete_user" || last.body["user_id"] != float64(4) {
		t.Errorf("delete_user call: %+v", last)
	}
}

func TestGateway_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	g, err := NewGateway(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewGateway() error: %v", err)
	}
	_, err = g.UnmuteUser(context.Background(), 3)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	code := chat.CodeOf(err)
	if code != chat.ErrCodeTimeout && !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected timeout classification, got %v (code %s)", err, code)
	}
}
