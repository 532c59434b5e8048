// Package transport owns the push-channel lifecycle: dialing the websocket,
// delivering inbound events in server-emission order, emitting client
// frames, and keeping the heartbeat tied 1:1 to a live connection.
//
// Events missed while disconnected are unrecoverable from the channel alone,
// so the transport synthesizes a Connected event on every (re)connect and
// the session resynchronizes full state from it rather than assuming
// incremental continuity.
package transport

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/resolving/chatsync/internal/backoff"
	"github.com/resolving/chatsync/internal/chat"
	"github.com/resolving/chatsync/internal/heartbeat"
	"github.com/resolving/chatsync/internal/wire"
)

// Config holds configuration for the push channel.
type Config struct {
	// URL is the server origin (required). http(s) schemes are converted to
	// ws(s); a bare origin gets the /ws endpoint path.
	URL string

	// Token is the session token attached as a bearer credential (optional).
	Token string

	// HeartbeatInterval is the liveness cadence (defaults to 30s).
	HeartbeatInterval time.Duration

	// MaxReconnectAttempts bounds consecutive failed reconnects;
	// 0 keeps trying until the context ends.
	MaxReconnectAttempts int

	// Backoff is the reconnect delay policy.
	Backoff backoff.Policy

	// Dialer is an optional custom websocket dialer.
	Dialer *websocket.Dialer

	// Logger is an optional slog.Logger instance.
	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return chat.ErrConfig("url is required", nil)
	}
	if _, err := url.Parse(c.URL); err != nil {
		return chat.ErrConfig("url is not parsable", err)
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = heartbeat.DefaultInterval
	}
	if c.Backoff == (backoff.Policy{}) {
		c.Backoff = backoff.DefaultPolicy()
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Conn manages one logical push channel across reconnects.
type Conn struct {
	cfg    Config
	wsURL  string
	logger *slog.Logger
	events chan wire.Event
	hb     *heartbeat.Runner

	mu      sync.Mutex
	ws      *websocket.Conn
	writeMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a push channel manager. Nothing happens until Start.
func New(cfg Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Conn{
		cfg:    cfg,
		wsURL:  websocketURL(cfg.URL),
		logger: cfg.Logger.With("component", "transport"),
		events: make(chan wire.Event, 64),
	}
	c.hb = heartbeat.NewRunner(cfg.HeartbeatInterval, func() error {
		return c.Emit(wire.Heartbeat())
	}, cfg.Logger)
	return c, nil
}

// Start dials the channel and begins delivering events. The initial dial is
// synchronous so a bad address fails fast; later drops are handled by the
// reconnect loop.
func (c *Conn) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ws, err := c.dial(runCtx)
	if err != nil {
		cancel()
		return chat.ErrConnection("failed to connect push channel", err)
	}
	c.setWS(ws)

	c.logger.Info("push channel connected", "url", c.wsURL)
	c.wg.Add(1)
	go c.run(runCtx, ws)
	return nil
}

// Events returns the ordered inbound event stream. The channel closes when
// the transport gives up: context cancelled, Stop called, or reconnect
// attempts exhausted.
func (c *Conn) Events() <-chan wire.Event {
	return c.events
}

// Emit writes a client frame to the channel. Emitting while disconnected
// fails with a connection error; nothing is queued.
func (c *Conn) Emit(frame wire.Frame) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return chat.ErrConnection("push channel is down", nil)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := ws.WriteJSON(frame); err != nil {
		return chat.ErrConnection("failed to emit frame", err)
	}
	return nil
}

// Stop tears the channel down and waits for the loop to exit, bounded by ctx.
func (c *Conn) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.closeWS()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("push channel stopped")
		return nil
	case <-ctx.Done():
		return chat.ErrTimeout("shutdown timeout", ctx.Err())
	}
}

func (c *Conn) run(ctx context.Context, ws *websocket.Conn) {
	defer c.wg.Done()
	defer close(c.events)

	for {
		c.deliver(ctx, wire.Connected())
		// Exactly one heartbeat timer per live connection; the runner's
		// own guard rejects duplicates.
		c.hb.Start(ctx)

		err := c.readLoop(ctx, ws)

		c.hb.Stop()
		c.closeWS()
		c.deliver(ctx, wire.Disconnected())

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("push channel lost", "error", err)

		ws = c.reconnect(ctx)
		if ws == nil {
			return
		}
		c.setWS(ws)
		c.logger.Info("push channel reconnected")
	}
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		var frame wire.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			return err
		}
		ev, err := wire.Decode(frame)
		if err != nil {
			// A newer server must not wedge this client.
			c.logger.Warn("dropping undecodable frame", "event", frame.Event, "error", err)
			continue
		}
		c.deliver(ctx, ev)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// reconnect dials with backoff until success, cancellation, or exhaustion.
// Returns nil when giving up.
func (c *Conn) reconnect(ctx context.Context) *websocket.Conn {
	for attempt := 1; ; attempt++ {
		if c.cfg.MaxReconnectAttempts > 0 && attempt > c.cfg.MaxReconnectAttempts {
			c.logger.Error("reconnect attempts exhausted", "attempts", c.cfg.MaxReconnectAttempts)
			return nil
		}
		if err := backoff.Sleep(ctx, c.cfg.Backoff, attempt); err != nil {
			return nil
		}
		ws, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}
		return ws
	}
}

// deliver blocks until the session consumes the event, preserving
// server-emission order, or the context ends.
func (c *Conn) deliver(ctx context.Context, ev wire.Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	ws, resp, err := c.cfg.Dialer.DialContext(ctx, c.wsURL, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return ws, nil
}

func (c *Conn) setWS(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

func (c *Conn) closeWS() {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws != nil {
		ws.Close()
	}
}

// websocketURL converts an http(s) origin to the ws(s) endpoint, defaulting
// the path to /ws.
func websocketURL(raw string) string {
	out := strings.Replace(raw, "https://", "wss://", 1)
	out = strings.Replace(out, "http://", "ws://", 1)

	if u, err := url.Parse(out); err == nil && (u.Path == "" || u.Path == "/") {
		u.Path = "/ws"
		return u.String()
	}
	return out
}
