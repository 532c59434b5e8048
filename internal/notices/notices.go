// Package notices collects the transient informational lines shown to the
// user: system notices rendered inline in the chat and flash notices shown
// as dismissable banners. Notices are informational only and never part of
// the authoritative data model.
package notices

import (
	"log/slog"
	"sync"
	"time"
)

// Kind distinguishes where a notice is rendered.
type Kind string

const (
	KindSystem Kind = "system"
	KindFlash  Kind = "flash"
)

// Severity drives notice styling.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is one informational line.
type Notice struct {
	Kind     Kind
	Severity Severity
	Text     string
	At       time.Time
}

// Log is an append-only notice log. It deliberately does not deduplicate:
// every server-reported transition produces one line even when it repeats
// the prior state, because the log records transitions, not derived diffs.
type Log struct {
	mu      sync.Mutex
	entries []Notice
	logger  *slog.Logger
}

// NewLog creates a notice log. Entries are mirrored to the logger so a
// headless client still surfaces them.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "notices")}
}

// System appends an inline system notice.
func (l *Log) System(severity Severity, text string) {
	l.append(Notice{Kind: KindSystem, Severity: severity, Text: text, At: time.Now()})
}

// Flash appends a banner notice.
func (l *Log) Flash(severity Severity, text string) {
	l.append(Notice{Kind: KindFlash, Severity: severity, Text: text, At: time.Now()})
}

// Entries returns a copy of all notices in append order.
func (l *Log) Entries() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notice, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of notices recorded.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) append(n Notice) {
	l.mu.Lock()
	l.entries = append(l.entries, n)
	l.mu.Unlock()
	l.logger.Info("notice", "kind", n.Kind, "severity", n.Severity, "text", n.Text)
}

// HumanizeMuteDuration renders a wire duration tag the way the product shows
// it. Unknown tags (including the custom minute count) pass through raw.
func HumanizeMuteDuration(wire string) string {
	switch wire {
	case "forever":
		return "навсегда"
	case "10m":
		return "на 10 минут"
	case "1h":
		return "на 1 час"
	default:
		return wire
	}
}
