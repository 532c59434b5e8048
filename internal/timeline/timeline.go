// Package timeline owns the ordered in-memory view of chat messages.
// Entries are appended in arrival order and removed by id; there is no
// reordering and no mutation of existing entries. The server-assigned id
// and the server echo are the sole source of truth: local submissions never
// touch the timeline.
package timeline

import (
	"log/slog"

	"github.com/resolving/chatsync/pkg/models"
)

// Timeline is the append/remove-only message sequence. All mutations happen
// on the session loop.
type Timeline struct {
	messages []models.Message
	onAppend func(models.Message)
	logger   *slog.Logger
}

// New creates an empty timeline.
func New(logger *slog.Logger) *Timeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timeline{logger: logger.With("component", "timeline")}
}

// SetAppendHook registers the side effect run after every append, e.g. the
// scroll-to-end behavior of a rendering layer.
func (t *Timeline) SetAppendHook(fn func(models.Message)) {
	t.onAppend = fn
}

// Append inserts the message at the end of the sequence.
func (t *Timeline) Append(msg models.Message) {
	t.messages = append(t.messages, msg)
	t.logger.Debug("message appended", "id", msg.ID, "user_id", msg.UserID)
	if t.onAppend != nil {
		t.onAppend(msg)
	}
}

// Remove deletes the entry with the given id. A miss is a silent no-op:
// the id may already be gone, or removal ordering raced with another
// deletion. Returns whether an entry was removed.
func (t *Timeline) Remove(id int64) bool {
	for i, m := range t.messages {
		if m.ID == id {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			t.logger.Debug("message removed", "id", id)
			return true
		}
	}
	return false
}

// Contains reports whether a message with the id is present.
func (t *Timeline) Contains(id int64) bool {
	for _, m := range t.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Len returns the number of messages.
func (t *Timeline) Len() int { return len(t.messages) }

// Messages returns a copy of the sequence in order.
func (t *Timeline) Messages() []models.Message {
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Replace swaps the whole sequence for a server snapshot (resync after
// reconnect or reload compensation). The append hook does not fire.
func (t *Timeline) Replace(msgs []models.Message) {
	t.messages = make([]models.Message, len(msgs))
	copy(t.messages, msgs)
	t.logger.Debug("timeline replaced", "messages", len(msgs))
}

// CanDelete reports whether the local user gets the delete affordance for a
// message: own messages, or any message when the local user moderates. It is
// a pure function of locally cached identity flags, evaluated at render time.
func CanDelete(msg models.Message, local models.Identity) bool {
	return msg.UserID == local.UserID || local.Role.IsModerator()
}
