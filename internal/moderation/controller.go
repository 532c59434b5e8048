// Package moderation owns the client-side moderation state: the mute dialog
// target and the per-user mute affordance flags. The affordance is flipped
// only by the optimistic request/response handlers; the independent push
// confirmations feed the notice log and nothing else, so the two can
// disagree when a push is attributed to another moderator session. That
// discrepancy is informational only and accepted.
package moderation

import (
	"fmt"
	"log/slog"

	"github.com/resolving/chatsync/internal/chat"
	"github.com/resolving/chatsync/internal/notices"
	"github.com/resolving/chatsync/internal/wire"
	"github.com/resolving/chatsync/pkg/models"
)

// Target is the pending mute selection while the dialog is open.
type Target struct {
	UserID   int64
	Username string
}

type userState struct {
	username string
	muted    bool
}

// Controller holds the dialog state machine (Closed → Open(target) → Closed)
// and the affordance flags. All mutations happen on the session loop.
type Controller struct {
	target  *Target
	users   map[int64]*userState
	notices *notices.Log
	logger  *slog.Logger
}

// NewController creates a controller with no open dialog.
func NewController(log *notices.Log, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		users:   make(map[int64]*userState),
		notices: log,
		logger:  logger.With("component", "moderation"),
	}
}

// OpenMuteDialog enters Open(target). Opening while already open replaces the
// target: there is exactly one active target, never two.
func (c *Controller) OpenMuteDialog(userID int64, username string) {
	c.target = &Target{UserID: userID, Username: username}
	c.logger.Debug("mute dialog opened", "user_id", userID, "username", username)
}

// CloseMuteDialog returns to Closed, clearing the target. Used for explicit
// cancel and for outside-click dismissal.
func (c *Controller) CloseMuteDialog() {
	c.target = nil
	c.logger.Debug("mute dialog closed")
}

// Target returns the active selection, if the dialog is open.
func (c *Controller) Target() (Target, bool) {
	if c.target == nil {
		return Target{}, false
	}
	return *c.target, true
}

// ValidateCustomMinutes rejects a custom minute count before any network
// call, surfacing the validation notice.
func (c *Controller) ValidateCustomMinutes(minutes int) error {
	if minutes < 1 {
		c.notices.Flash(notices.SeverityError, "Укажите корректное количество минут")
		return chat.ErrValidation("custom mute minutes must be a positive integer", nil)
	}
	return nil
}

// ApplyMuteSuccess is the optimistic handler for a success envelope: closes
// the dialog, clears the target, and swaps the user's affordance from mute
// to unmute.
func (c *Controller) ApplyMuteSuccess(userID int64, username string, serverMessage string) {
	c.target = nil
	c.setMuted(userID, username, true)
	c.notices.Flash(notices.SeveritySuccess, serverMessage)
	c.logger.Debug("mute applied", "user_id", userID)
}

// ApplyMuteFailure surfaces a failure envelope. The dialog stays open with
// its target intact and the affordance untouched.
func (c *Controller) ApplyMuteFailure(serverMessage string) {
	c.notices.Flash(notices.SeverityError, serverMessage)
}

// ApplyUnmuteSuccess swaps the affordance back to mute. The stored username
// is kept so a subsequent re-mute carries the real name.
func (c *Controller) ApplyUnmuteSuccess(userID int64, serverMessage string) {
	if s, ok := c.users[userID]; ok {
		s.muted = false
	} else {
		c.users[userID] = &userState{}
	}
	c.notices.Flash(notices.SeveritySuccess, serverMessage)
	c.logger.Debug("unmute applied", "user_id", userID)
}

// ApplyUnmuteFailure surfaces a failure envelope; no state changes.
func (c *Controller) ApplyUnmuteFailure(serverMessage string) {
	c.notices.Flash(notices.SeverityError, serverMessage)
}

// HandleMuted records the push confirmation as a system notice with the
// humanized duration and the acting moderator. It does not flip the
// affordance; that is owned by the optimistic handlers.
func (c *Controller) HandleMuted(p wire.Muted) {
	c.notices.System(notices.SeverityWarning,
		fmt.Sprintf("%s был замучен %s модератором %s", p.Username, notices.HumanizeMuteDuration(p.Duration), p.Moderator))
}

// HandleUnmuted records the push confirmation as a system notice only.
func (c *Controller) HandleUnmuted(p wire.Unmuted) {
	c.notices.System(notices.SeveritySuccess,
		fmt.Sprintf("С %s снят мут модератором %s", p.Username, p.Moderator))
}

// Muted is the affordance projection: true renders "unmute", false "mute".
func (c *Controller) Muted(userID int64) bool {
	s, ok := c.users[userID]
	return ok && s.muted
}

// Username returns the name stored with the affordance entry.
func (c *Controller) Username(userID int64) (string, bool) {
	s, ok := c.users[userID]
	if !ok {
		return "", false
	}
	return s.username, true
}

// Seed replaces the affordance flags from a server snapshot.
func (c *Controller) Seed(users []models.User) {
	fresh := make(map[int64]*userState, len(users))
	for _, u := range users {
		fresh[u.ID] = &userState{username: u.Username, muted: u.IsMuted}
	}
	c.users = fresh
}

func (c *Controller) setMuted(userID int64, username string, muted bool) {
	s, ok := c.users[userID]
	if !ok {
		s = &userState{}
		c.users[userID] = s
	}
	if username != "" {
		s.username = username
	}
	s.muted = muted
}
