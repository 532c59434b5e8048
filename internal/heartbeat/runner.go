// Package heartbeat keeps the server's liveness view of this client fresh
// while the push channel is up. A runner's lifecycle is tied 1:1 to one
// connection: started once per successful connect, stopped on disconnect.
package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval matches the protocol's 30-second heartbeat cadence.
const DefaultInterval = 30 * time.Second

// EmitFunc delivers one heartbeat signal. The runner treats failures as
// expected around disconnects: a dead channel cannot deliver, so errors are
// logged and the loop keeps ticking until stopped.
type EmitFunc func() error

// Runner emits heartbeats on a fixed interval.
type Runner struct {
	interval time.Duration
	emit     EmitFunc
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	runID   string
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRunner creates a heartbeat runner. A non-positive interval falls back
// to DefaultInterval.
func NewRunner(interval time.Duration, emit EmitFunc, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		interval: interval,
		emit:     emit,
		logger:   logger.With("component", "heartbeat"),
	}
}

// Start begins emission. Calling Start while running is a no-op; this is the
// guard against duplicate timers when reconnect logic re-enters.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.runID = uuid.New().String()
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	runID := r.runID
	r.mu.Unlock()

	r.logger.Debug("heartbeat started", "run_id", runID, "interval", r.interval)
	go r.run(ctx)
}

func (r *Runner) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer func() {
		ticker.Stop()
		r.mu.Lock()
		r.running = false
		close(r.doneCh)
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("heartbeat stopped", "reason", "context cancelled")
			return
		case <-r.stopCh:
			r.logger.Debug("heartbeat stopped", "reason", "stopped")
			return
		case <-ticker.C:
			if r.emit == nil {
				continue
			}
			if err := r.emit(); err != nil {
				// Expected when the connection died between the tick
				// and the write; the transport stops us shortly after.
				r.logger.Debug("heartbeat emit failed", "error", err)
			}
		}
	}
}

// Stop halts emission and waits for the loop to exit. Safe to call when not
// running.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	doneCh := r.doneCh
	r.mu.Unlock()

	<-doneCh
}

// IsRunning reports whether the runner is emitting.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
