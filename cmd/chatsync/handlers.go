// handlers.go contains the run functions behind the cobra commands.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resolving/chatsync/internal/actions"
	"github.com/resolving/chatsync/internal/backoff"
	"github.com/resolving/chatsync/internal/config"
	"github.com/resolving/chatsync/internal/identity"
	"github.com/resolving/chatsync/internal/observability"
	"github.com/resolving/chatsync/internal/session"
	"github.com/resolving/chatsync/internal/transport"
	"github.com/resolving/chatsync/pkg/models"
)

func runRun(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	if cfg.Metrics.Listen != "" {
		go serveMetrics(cfg.Metrics.Listen, registry, logger)
	}

	ident := localIdentity(cfg, logger)
	logger.Info("starting sync client",
		"server", cfg.Server.URL,
		"user", ident.Username,
		"role", ident.Role)

	conn, err := transport.New(transport.Config{
		URL:                  cfg.Server.URL,
		Token:                cfg.Server.Token,
		HeartbeatInterval:    cfg.Heartbeat.Interval,
		MaxReconnectAttempts: cfg.Reconnect.MaxAttempts,
		Backoff: backoff.Policy{
			Initial: cfg.Reconnect.InitialDelay,
			Max:     cfg.Reconnect.MaxDelay,
			Factor:  cfg.Reconnect.Factor,
			Jitter:  cfg.Reconnect.Jitter,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		return err
	}

	cons := newConsole(os.Stdout)
	sess, err := session.New(session.Config{
		Identity:  ident,
		Transport: conn,
		Gateway:   gateway,
		Resync: func(ctx context.Context) (session.Snapshot, error) {
			snap, err := gateway.FetchState(ctx)
			if err != nil {
				return session.Snapshot{}, err
			}
			return session.Snapshot{Messages: snap.Messages, Users: snap.Users}, nil
		},
		Confirm: cons.confirm,
		OnMessage: func(msg models.Message) {
			fmt.Printf("[%s] %s: %s\n", msg.Timestamp, msg.Username, msg.Text)
		},
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := conn.Start(ctx); err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()
	go readCommands(ctx, sess, cons, stop)

	err = <-runErr

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stopErr := conn.Stop(shutdownCtx); stopErr != nil {
		logger.Warn("transport shutdown incomplete", "error", stopErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("sync client stopped")
	return nil
}

// readCommands drives the session from stdin until EOF or /quit.
func readCommands(ctx context.Context, sess *session.Session, cons *console, stop func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if cons.claim(line) {
			continue
		}
		if !strings.HasPrefix(strings.TrimSpace(line), "/") {
			sess.Submit(line)
			continue
		}
		if !dispatchCommand(sess, strings.Fields(strings.TrimSpace(line)), stop) {
			return
		}
	}
	stop()
}

// dispatchCommand executes one slash command; false means quit.
func dispatchCommand(sess *session.Session, fields []string, stop func()) bool {
	switch fields[0] {
	case "/quit":
		stop()
		return false

	case "/messages":
		for _, msg := range sess.Messages() {
			marker := ""
			if sess.CanDelete(msg) {
				marker = fmt.Sprintf("  (id %d, deletable)", msg.ID)
			}
			fmt.Printf("[%s] %s: %s%s\n", msg.Timestamp, msg.Username, msg.Text, marker)
		}

	case "/users":
		fmt.Printf("online: %d\n", sess.OnlineCount())

	case "/delete":
		id, ok := argInt64(fields, 1)
		if !ok {
			fmt.Println("usage: /delete <message-id>")
			return true
		}
		sess.RequestDelete(id)

	case "/mute":
		id, ok := argInt64(fields, 1)
		if !ok || len(fields) < 4 {
			fmt.Println("usage: /mute <user-id> <username> <forever|10m|1h|minutes>")
			return true
		}
		duration, err := parseMuteDuration(fields[3])
		if err != nil {
			fmt.Println(err)
			return true
		}
		sess.OpenMuteDialog(id, fields[2])
		sess.Mute(duration)

	case "/unmute":
		id, ok := argInt64(fields, 1)
		if !ok || len(fields) < 3 {
			fmt.Println("usage: /unmute <user-id> <username>")
			return true
		}
		sess.Unmute(id, fields[2])

	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	return true
}

func argInt64(fields []string, i int) (int64, bool) {
	if len(fields) <= i {
		return 0, false
	}
	v, err := strconv.ParseInt(fields[i], 10, 64)
	return v, err == nil
}

func parseMuteDuration(raw string) (models.MuteDuration, error) {
	switch raw {
	case "forever":
		return models.MuteForever(), nil
	case "10m":
		return models.MuteTenMinutes(), nil
	case "1h":
		return models.MuteOneHour(), nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return models.MuteDuration{}, fmt.Errorf("unknown mute duration %q", raw)
	}
	return models.MuteCustom(minutes), nil
}

// localIdentity derives who this client is: token claims first, config
// fallback for servers that hand out opaque tokens.
func localIdentity(cfg *config.Config, logger *slog.Logger) models.Identity {
	if cfg.Server.Token != "" {
		if ident, err := identity.FromToken(cfg.Server.Token); err == nil {
			return ident
		} else {
			logger.Debug("token carries no usable claims, using configured identity", "error", err)
		}
	}
	return models.Identity{
		UserID:   cfg.User.ID,
		Username: cfg.User.Username,
		Role:     models.Role(cfg.User.Role),
	}
}

func buildGateway(cfg *config.Config, logger *slog.Logger) (*actions.Gateway, error) {
	return actions.NewGateway(actions.Config{
		BaseURL: cfg.Server.URL,
		Token:   cfg.Server.Token,
		Timeout: cfg.Actions.Timeout,
		Logger:  logger,
	})
}

func serveMetrics(listen string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics listener started", "addr", listen)
	if err := http.ListenAndServe(listen, mux); err != nil {
		logger.Error("metrics listener failed", "error", err)
	}
}

// console serializes stdin between the command loop and the confirmation
// prompts raised from the session loop.
type console struct {
	out *os.File

	mu      sync.Mutex
	waiting bool
	answers chan string
}

func newConsole(out *os.File) *console {
	return &console{out: out, answers: make(chan string)}
}

// confirm prints the prompt and blocks until the command loop hands over the
// next stdin line.
func (c *console) confirm(prompt string) bool {
	c.mu.Lock()
	c.waiting = true
	c.mu.Unlock()
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)

	answer := <-c.answers

	c.mu.Lock()
	c.waiting = false
	c.mu.Unlock()

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// claim reports whether line answers a pending confirmation, consuming it.
func (c *console) claim(line string) bool {
	c.mu.Lock()
	waiting := c.waiting
	c.mu.Unlock()
	if !waiting {
		return false
	}
	c.answers <- line
	return true
}

// --- admin handlers --------------------------------------------------------

func runAdminCreateUser(ctx context.Context, configPath, username, password, role string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	gateway, err := buildGateway(cfg, slog.Default())
	if err != nil {
		return err
	}
	result, err := gateway.CreateUser(ctx, username, password, models.Role(role))
	if err != nil {
		return err
	}
	return printResult(result)
}

func runAdminChangeRole(ctx context.Context, configPath string, userID int64, role string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	gateway, err := buildGateway(cfg, slog.Default())
	if err != nil {
		return err
	}
	result, err := gateway.ChangeRole(ctx, userID, models.Role(role))
	if err != nil {
		return err
	}
	return printResult(result)
}

func runAdminDeleteUser(ctx context.Context, configPath string, userID int64, username string, yes bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !yes {
		fmt.Printf("Вы уверены, что хотите удалить пользователя %q? Это действие нельзя отменить. [y/N]: ", username)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("aborted")
			return nil
		}
	}
	gateway, err := buildGateway(cfg, slog.Default())
	if err != nil {
		return err
	}
	result, err := gateway.DeleteUser(ctx, userID)
	if err != nil {
		return err
	}
	return printResult(result)
}

func printResult(result models.ActionResult) error {
	fmt.Println(result.Message)
	if !result.Success {
		return fmt.Errorf("server declined the action")
	}
	return nil
}
