// Package presence maintains the set of users this client has sighted and
// whether the server currently reports each of them online.
package presence

import (
	"fmt"
	"log/slog"

	"github.com/resolving/chatsync/internal/notices"
	"github.com/resolving/chatsync/pkg/models"
)

type entry struct {
	username string
	online   bool
}

// Tracker is the presence set. Entries are created on first sighting, either
// a connect event or a message authored by the user, and are never removed,
// only flipped. All mutations happen on the session loop.
type Tracker struct {
	users   map[int64]*entry
	notices *notices.Log
	logger  *slog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(log *notices.Log, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		users:   make(map[int64]*entry),
		notices: log,
		logger:  logger.With("component", "presence"),
	}
}

// MarkOnline records a server-reported connect. The system notice is emitted
// unconditionally, even when it repeats the current state: the notice log
// records server transitions, not derived diffs.
func (t *Tracker) MarkOnline(userID int64, username string) {
	t.upsert(userID, username).online = true
	t.notices.System(notices.SeverityInfo, fmt.Sprintf("%s подключился к чату", username))
	t.logger.Debug("user online", "user_id", userID, "username", username, "online_count", t.OnlineCount())
}

// MarkOffline records a server-reported disconnect.
func (t *Tracker) MarkOffline(userID int64, username string) {
	t.upsert(userID, username).online = false
	t.notices.System(notices.SeverityInfo, fmt.Sprintf("%s покинул чат", username))
	t.logger.Debug("user offline", "user_id", userID, "username", username, "online_count", t.OnlineCount())
}

// Observe creates an entry for a user sighted through an authored message.
// It emits no notice and never flips an existing online flag.
func (t *Tracker) Observe(userID int64, username string) {
	t.upsert(userID, username)
}

// OnlineCount is the number of users whose latest reported state is online.
func (t *Tracker) OnlineCount() int {
	n := 0
	for _, e := range t.users {
		if e.online {
			n++
		}
	}
	return n
}

// Online reports the tracked flag for a user. Unknown users are offline.
func (t *Tracker) Online(userID int64) bool {
	e, ok := t.users[userID]
	return ok && e.online
}

// Username returns the last name the server reported for a user.
func (t *Tracker) Username(userID int64) (string, bool) {
	e, ok := t.users[userID]
	if !ok {
		return "", false
	}
	return e.username, true
}

// Replace swaps the whole set for a server snapshot. Used on resync, where
// incremental continuity cannot be assumed. No notices are emitted.
func (t *Tracker) Replace(users []models.User) {
	fresh := make(map[int64]*entry, len(users))
	for _, u := range users {
		fresh[u.ID] = &entry{username: u.Username, online: u.Online}
	}
	t.users = fresh
	t.logger.Debug("presence replaced", "users", len(users), "online_count", t.OnlineCount())
}

func (t *Tracker) upsert(userID int64, username string) *entry {
	e, ok := t.users[userID]
	if !ok {
		e = &entry{}
		t.users[userID] = e
	}
	if username != "" {
		e.username = username
	}
	return e
}
