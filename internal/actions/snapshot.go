package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/resolving/chatsync/internal/chat"
	"github.com/resolving/chatsync/pkg/models"
)

// StateSnapshot is the full server state: the message history and the user
// roster with presence and mute flags. It is the resynchronization source
// after a (re)connect and after a failed mutation leaves local state suspect.
type StateSnapshot struct {
	Messages []models.Message `json:"messages"`
	Users    []models.User    `json:"users"`
}

// FetchState issues GET /state and returns the snapshot.
func (g *Gateway) FetchState(ctx context.Context) (StateSnapshot, error) {
	requestID := uuid.New().String()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(g.cfg.BaseURL, "/")+"/state", nil)
	if err != nil {
		return StateSnapshot{}, chat.ErrInternal("failed to build request", err)
	}
	if g.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	}

	resp, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		g.logger.Warn("state fetch failed", "request_id", requestID, "error", err)
		if ctx.Err() == context.DeadlineExceeded {
			return StateSnapshot{}, chat.ErrTimeout("state fetch timed out", err)
		}
		return StateSnapshot{}, chat.ErrConnection("state fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StateSnapshot{}, chat.ErrUnavailable("state fetch rejected", nil)
	}

	var snap StateSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return StateSnapshot{}, chat.ErrInternal("malformed state response", err)
	}

	g.logger.Debug("state fetched",
		"request_id", requestID,
		"messages", len(snap.Messages),
		"users", len(snap.Users),
		"latency_ms", time.Since(start).Milliseconds())

	return snap, nil
}
