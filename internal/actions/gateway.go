// Package actions performs the one-shot request/response calls of the chat
// protocol: moderation (mute/unmute) and the admin user-management surface.
// Every call returns the server's uniform {success, message} envelope;
// transport failures come back as coded errors instead.
package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/resolving/chatsync/internal/chat"
	"github.com/resolving/chatsync/pkg/models"
)

// Config holds configuration for the action gateway.
type Config struct {
	// BaseURL is the server's HTTP origin (required).
	BaseURL string

	// Token is the session token attached as a bearer credential (optional).
	Token string

	// Timeout bounds each call. The protocol itself specifies none; a hung
	// call would otherwise pin its UI affordance forever.
	Timeout time.Duration

	// HTTPClient is an optional custom client.
	HTTPClient *http.Client

	// Logger is an optional slog.Logger instance.
	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return chat.ErrConfig("base_url is required", nil)
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Gateway issues the request/response calls.
type Gateway struct {
	cfg    Config
	logger *slog.Logger
}

// NewGateway creates a gateway with the given configuration.
func NewGateway(cfg Config) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Gateway{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "actions"),
	}, nil
}

type muteRequest struct {
	UserID        int64  `json:"user_id"`
	Duration      string `json:"duration"`
	CustomMinutes int    `json:"custom_minutes,omitempty"`
}

type userRequest struct {
	UserID int64 `json:"user_id"`
}

// MuteUser issues POST /mute_user. A custom duration is validated here and
// sent as exactly one request carrying both the tag and the minute count.
func (g *Gateway) MuteUser(ctx context.Context, userID int64, d models.MuteDuration) (models.ActionResult, error) {
	if err := d.Validate(); err != nil {
		return models.ActionResult{}, chat.ErrValidation("invalid mute duration", err)
	}
	return g.post(ctx, "/mute_user", muteRequest{
		UserID:        userID,
		Duration:      string(d.Kind),
		CustomMinutes: d.Minutes,
	})
}

// UnmuteUser issues POST /unmute_user.
func (g *Gateway) UnmuteUser(ctx context.Context, userID int64) (models.ActionResult, error) {
	return g.post(ctx, "/unmute_user", userRequest{UserID: userID})
}

func (g *Gateway) post(ctx context.Context, path string, payload any) (models.ActionResult, error) {
	requestID := uuid.New().String()
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return models.ActionResult{}, chat.ErrInternal("failed to encode request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(g.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return models.ActionResult{}, chat.ErrInternal("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	}

	resp, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		g.logger.Warn("action call failed",
			"request_id", requestID,
			"path", path,
			"error", err)
		if ctx.Err() == context.DeadlineExceeded {
			return models.ActionResult{}, chat.ErrTimeout("action call timed out", err)
		}
		return models.ActionResult{}, chat.ErrConnection("action call failed", err)
	}
	defer resp.Body.Close()

	// The server carries the envelope on non-2xx statuses too (403, 404);
	// a server-reported failure is a user-facing outcome, not an error.
	var result models.ActionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.ActionResult{}, chat.ErrInternal("malformed action response", err)
	}

	g.logger.Debug("action call completed",
		"request_id", requestID,
		"path", path,
		"success", result.Success,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds())

	return result, nil
}
