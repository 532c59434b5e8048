// Package session runs the sync engine's single event loop. Every state
// mutation (push events, user commands, request/response completions,
// snapshot applications) flows through one ordered queue and is applied by
// one goroutine, so the packages underneath never need their own locking.
//
// Request/response calls are spawned off the loop; their outcomes re-enter
// the queue as completions. The loop therefore never blocks on the network
// and push events interleave freely with in-flight actions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/resolving/chatsync/internal/chat"
	"github.com/resolving/chatsync/internal/moderation"
	"github.com/resolving/chatsync/internal/notices"
	"github.com/resolving/chatsync/internal/observability"
	"github.com/resolving/chatsync/internal/presence"
	"github.com/resolving/chatsync/internal/timeline"
	"github.com/resolving/chatsync/internal/wire"
	"github.com/resolving/chatsync/pkg/models"
)

// ConnectionState reflects the push channel as the session sees it.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnected    ConnectionState = "connected"
)

// Transport is the push channel the session consumes and emits on.
type Transport interface {
	Events() <-chan wire.Event
	Emit(frame wire.Frame) error
}

// Gateway is the request/response side: moderation and admin calls that
// answer with a success/message envelope.
type Gateway interface {
	MuteUser(ctx context.Context, userID int64, d models.MuteDuration) (models.ActionResult, error)
	UnmuteUser(ctx context.Context, userID int64) (models.ActionResult, error)
	CreateUser(ctx context.Context, username, password string, role models.Role) (models.ActionResult, error)
	ChangeRole(ctx context.Context, userID int64, role models.Role) (models.ActionResult, error)
	DeleteUser(ctx context.Context, userID int64) (models.ActionResult, error)
}

// Snapshot is the full server state fetched on (re)connect and whenever a
// failed action leaves local state suspect.
type Snapshot struct {
	Messages []models.Message
	Users    []models.User
}

// ResyncFunc fetches a fresh snapshot. Nil disables resynchronization.
type ResyncFunc func(ctx context.Context) (Snapshot, error)

// ConfirmFunc asks the user to confirm a destructive action. Nil confirms
// everything, which suits non-interactive use.
type ConfirmFunc func(prompt string) bool

// Action names the request/response operations for policy lookup and
// metrics labels.
type Action string

const (
	ActionSendMessage   Action = "send_message"
	ActionDeleteMessage Action = "delete_message"
	ActionMute          Action = "mute"
	ActionUnmute        Action = "unmute"
	ActionCreateUser    Action = "create_user"
	ActionChangeRole    Action = "change_role"
	ActionDeleteUser    Action = "delete_user"
)

// policy captures how each action behaves around its call: whether the UI
// may assume success before the reply (optimistic), whether a confirmation
// gate precedes it, and which outcomes leave local state suspect enough to
// warrant a full resync. A failure envelope is the server declining the
// action; a call error is the call itself not completing.
type policy struct {
	optimistic      bool
	confirm         string // prompt format, empty = no gate
	resyncOnSuccess bool
	resyncOnFailure bool
	resyncOnCallErr bool
}

var policies = map[Action]policy{
	ActionSendMessage:   {},
	ActionDeleteMessage: {confirm: "Удалить это сообщение?", resyncOnCallErr: true},
	ActionMute:          {optimistic: true},
	ActionUnmute:        {optimistic: true, confirm: "Снять мут с этого пользователя?"},
	ActionCreateUser:    {resyncOnSuccess: true},
	ActionChangeRole:    {resyncOnFailure: true, resyncOnCallErr: true},
	ActionDeleteUser:    {confirm: "Вы уверены, что хотите удалить пользователя %q? Это действие нельзя отменить.", resyncOnCallErr: true},
}

type commandKind int

const (
	cmdSubmit commandKind = iota
	cmdRequestDelete
	cmdOpenMute
	cmdCloseMute
	cmdMute
	cmdUnmute
	cmdCreateUser
	cmdChangeRole
	cmdDeleteUser
	cmdCompletion
	cmdSnapshot
)

// command is the loop's input union for everything that is not a push event.
type command struct {
	kind commandKind

	text      string
	messageID int64
	userID    int64
	username  string
	password  string
	role      models.Role
	duration  models.MuteDuration

	// completion fields
	action Action
	result models.ActionResult
	err    error

	// snapshot fields
	snapshot Snapshot
	snapErr  error
}

// Config holds the session wiring.
type Config struct {
	Identity  models.Identity
	Transport Transport
	Gateway   Gateway
	Resync    ResyncFunc
	Confirm   ConfirmFunc

	// OnMessage fires for each live append, not for snapshot replacement,
	// so the renderer follows new arrivals without jumping on resync.
	OnMessage func(models.Message)

	Notices *notices.Log
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Transport == nil {
		return fmt.Errorf("transport is required")
	}
	if c.Gateway == nil {
		return fmt.Errorf("gateway is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Notices == nil {
		c.Notices = notices.NewLog(c.Logger)
	}
	return nil
}

// Session is the sync engine. Command methods are safe from any goroutine;
// they enqueue onto the loop. Read accessors take a shared lock against the
// loop's mutations.
type Session struct {
	cfg     Config
	logger  *slog.Logger
	notices *notices.Log
	metrics *observability.Metrics

	commands chan command

	mu         sync.RWMutex
	state      ConnectionState
	presence   *presence.Tracker
	timeline   *timeline.Timeline
	moderation *moderation.Controller

	connectedOnce bool
	wg            sync.WaitGroup
}

// New creates a session around an established transport and gateway.
func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger.With("component", "session")
	s := &Session{
		cfg:        cfg,
		logger:     logger,
		notices:    cfg.Notices,
		metrics:    cfg.Metrics,
		commands:   make(chan command, 64),
		state:      StateDisconnected,
		presence:   presence.NewTracker(cfg.Notices, cfg.Logger),
		timeline:   timeline.New(cfg.Logger),
		moderation: moderation.NewController(cfg.Notices, cfg.Logger),
	}
	if cfg.OnMessage != nil {
		s.timeline.SetAppendHook(cfg.OnMessage)
	}
	return s, nil
}

// Run drives the loop until the context ends or the transport's event
// channel closes. It owns all state mutations.
func (s *Session) Run(ctx context.Context) error {
	defer s.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.cfg.Transport.Events():
			if !ok {
				s.logger.Info("push channel ended, loop exiting")
				return nil
			}
			s.handleEvent(ctx, ev)
		case cmd := <-s.commands:
			s.handleCommand(ctx, cmd)
		}
	}
}

// --- command surface -------------------------------------------------------

// Submit sends a chat message. Text that is empty after trimming is dropped
// without feedback.
func (s *Session) Submit(text string) { s.enqueue(command{kind: cmdSubmit, text: text}) }

// RequestDelete asks for a message deletion, gated by confirmation. The
// message stays on the timeline until the server pushes message_deleted.
func (s *Session) RequestDelete(messageID int64) {
	s.enqueue(command{kind: cmdRequestDelete, messageID: messageID})
}

// OpenMuteDialog selects a mute target. A second open replaces the first.
func (s *Session) OpenMuteDialog(userID int64, username string) {
	s.enqueue(command{kind: cmdOpenMute, userID: userID, username: username})
}

// CloseMuteDialog dismisses the dialog without acting.
func (s *Session) CloseMuteDialog() { s.enqueue(command{kind: cmdCloseMute}) }

// Mute mutes the current dialog target for d. Custom durations are validated
// before any network call.
func (s *Session) Mute(d models.MuteDuration) { s.enqueue(command{kind: cmdMute, duration: d}) }

// Unmute lifts a mute, gated by confirmation.
func (s *Session) Unmute(userID int64, username string) {
	s.enqueue(command{kind: cmdUnmute, userID: userID, username: username})
}

// CreateUser provisions an account (admin).
func (s *Session) CreateUser(username, password string, role models.Role) {
	s.enqueue(command{kind: cmdCreateUser, username: username, password: password, role: role})
}

// ChangeRole reassigns a user's role (admin).
func (s *Session) ChangeRole(userID int64, role models.Role) {
	s.enqueue(command{kind: cmdChangeRole, userID: userID, role: role})
}

// DeleteUser removes an account (admin), gated by confirmation.
func (s *Session) DeleteUser(userID int64, username string) {
	s.enqueue(command{kind: cmdDeleteUser, userID: userID, username: username})
}

// enqueue hands a user command to the loop. A full queue drops the command
// with a warning rather than blocking the caller.
func (s *Session) enqueue(cmd command) {
	select {
	case s.commands <- cmd:
	default:
		s.logger.Warn("command queue full, dropping command", "kind", cmd.kind)
	}
}

// complete re-enters a call outcome into the queue. Completions must not be
// lost, so this blocks until the loop takes it or the context ends.
func (s *Session) complete(ctx context.Context, cmd command) {
	select {
	case s.commands <- cmd:
	case <-ctx.Done():
	}
}

// --- push events -----------------------------------------------------------

func (s *Session) handleEvent(ctx context.Context, ev wire.Event) {
	if s.metrics != nil {
		s.metrics.EventsProcessed.WithLabelValues(string(ev.Type)).Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case wire.EventConnected:
		s.state = StateConnected
		if s.connectedOnce && s.metrics != nil {
			s.metrics.Reconnects.Inc()
		}
		s.connectedOnce = true
		// Push frames missed while down are gone; only a full snapshot
		// restores consistency.
		s.spawnResync(ctx)

	case wire.EventDisconnected:
		s.state = StateDisconnected

	case wire.EventUserConnected:
		s.presence.MarkOnline(ev.Presence.UserID, ev.Presence.Username)
		s.updateOnlineGauge()

	case wire.EventUserDisconnected:
		s.presence.MarkOffline(ev.Presence.UserID, ev.Presence.Username)
		s.updateOnlineGauge()

	case wire.EventNewMessage:
		s.timeline.Append(*ev.Message)
		s.presence.Observe(ev.Message.UserID, ev.Message.Username)
		if s.metrics != nil {
			s.metrics.MessagesAppended.Inc()
		}

	case wire.EventMessageDeleted:
		if s.timeline.Remove(ev.Deleted.MessageID) && s.metrics != nil {
			s.metrics.MessagesRemoved.Inc()
		}

	case wire.EventUserMuted:
		s.moderation.HandleMuted(*ev.Muted)

	case wire.EventUserUnmuted:
		s.moderation.HandleUnmuted(*ev.Unmuted)

	case wire.EventMessageError:
		s.notices.Flash(notices.SeverityError, ev.Error.Message)
	}
}

// --- commands --------------------------------------------------------------

func (s *Session) handleCommand(ctx context.Context, cmd command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.kind {
	case cmdSubmit:
		text := strings.TrimSpace(cmd.text)
		if text == "" {
			return
		}
		if err := s.cfg.Transport.Emit(wire.SendMessage(text)); err != nil {
			s.logger.Warn("message emission failed", "error", err)
			s.countAction(ActionSendMessage, "error")
			return
		}
		s.countAction(ActionSendMessage, "emitted")

	case cmdRequestDelete:
		if !s.confirmed(policies[ActionDeleteMessage].confirm) {
			return
		}
		if err := s.cfg.Transport.Emit(wire.DeleteMessage(cmd.messageID)); err != nil {
			s.logger.Warn("delete emission failed", "message_id", cmd.messageID, "error", err)
			s.countAction(ActionDeleteMessage, "error")
			if policies[ActionDeleteMessage].resyncOnCallErr {
				s.spawnResync(ctx)
			}
			return
		}
		s.countAction(ActionDeleteMessage, "emitted")

	case cmdOpenMute:
		s.moderation.OpenMuteDialog(cmd.userID, cmd.username)

	case cmdCloseMute:
		s.moderation.CloseMuteDialog()

	case cmdMute:
		target, open := s.moderation.Target()
		if !open {
			s.logger.Warn("mute requested with no open dialog")
			return
		}
		if cmd.duration.Kind == models.DurationCustom {
			if err := s.moderation.ValidateCustomMinutes(cmd.duration.Minutes); err != nil {
				return
			}
		}
		s.spawnCall(ctx, command{kind: cmdCompletion, action: ActionMute, userID: target.UserID, username: target.Username},
			func(callCtx context.Context) (models.ActionResult, error) {
				return s.cfg.Gateway.MuteUser(callCtx, target.UserID, cmd.duration)
			})

	case cmdUnmute:
		if !s.confirmed(policies[ActionUnmute].confirm) {
			return
		}
		s.spawnCall(ctx, command{kind: cmdCompletion, action: ActionUnmute, userID: cmd.userID, username: cmd.username},
			func(callCtx context.Context) (models.ActionResult, error) {
				return s.cfg.Gateway.UnmuteUser(callCtx, cmd.userID)
			})

	case cmdCreateUser:
		s.spawnCall(ctx, command{kind: cmdCompletion, action: ActionCreateUser, username: cmd.username},
			func(callCtx context.Context) (models.ActionResult, error) {
				return s.cfg.Gateway.CreateUser(callCtx, cmd.username, cmd.password, cmd.role)
			})

	case cmdChangeRole:
		s.spawnCall(ctx, command{kind: cmdCompletion, action: ActionChangeRole, userID: cmd.userID},
			func(callCtx context.Context) (models.ActionResult, error) {
				return s.cfg.Gateway.ChangeRole(callCtx, cmd.userID, cmd.role)
			})

	case cmdDeleteUser:
		prompt := fmt.Sprintf(policies[ActionDeleteUser].confirm, cmd.username)
		if !s.confirmed(prompt) {
			return
		}
		s.spawnCall(ctx, command{kind: cmdCompletion, action: ActionDeleteUser, userID: cmd.userID},
			func(callCtx context.Context) (models.ActionResult, error) {
				return s.cfg.Gateway.DeleteUser(callCtx, cmd.userID)
			})

	case cmdCompletion:
		s.applyCompletion(ctx, cmd)

	case cmdSnapshot:
		s.applySnapshot(cmd)
	}
}

// spawnCall runs a gateway call off the loop and feeds the outcome back in
// as a completion carrying base's identifying fields.
func (s *Session) spawnCall(ctx context.Context, base command, call func(context.Context) (models.ActionResult, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := call(ctx)
		base.result = result
		base.err = err
		s.complete(ctx, base)
	}()
}

func (s *Session) applyCompletion(ctx context.Context, cmd command) {
	pol := policies[cmd.action]

	if cmd.err != nil {
		s.logger.Warn("action call failed", "action", cmd.action, "error", cmd.err)
		// Input rejected before the wire: surface the field notice and leave
		// local state untouched, no compensation needed.
		if chat.CodeOf(cmd.err) == chat.ErrCodeValidation {
			s.countAction(cmd.action, "rejected")
			if cmd.action == ActionCreateUser {
				s.notices.Flash(notices.SeverityError, "Заполните все поля")
			}
			return
		}
		s.countAction(cmd.action, "error")
		s.flashCallError(cmd.action)
		if pol.resyncOnCallErr {
			s.spawnResync(ctx)
		}
		return
	}

	if cmd.result.Success {
		s.countAction(cmd.action, "success")
	} else {
		s.countAction(cmd.action, "failure")
	}

	switch cmd.action {
	case ActionMute:
		if cmd.result.Success {
			s.moderation.ApplyMuteSuccess(cmd.userID, cmd.username, cmd.result.Message)
		} else {
			s.moderation.ApplyMuteFailure(cmd.result.Message)
		}

	case ActionUnmute:
		if cmd.result.Success {
			s.moderation.ApplyUnmuteSuccess(cmd.userID, cmd.result.Message)
		} else {
			s.moderation.ApplyUnmuteFailure(cmd.result.Message)
		}

	case ActionCreateUser, ActionChangeRole, ActionDeleteUser:
		if cmd.result.Success {
			s.notices.Flash(notices.SeveritySuccess, cmd.result.Message)
			if pol.resyncOnSuccess {
				s.spawnResync(ctx)
			}
		} else {
			s.notices.Flash(notices.SeverityError, cmd.result.Message)
			if pol.resyncOnFailure {
				s.spawnResync(ctx)
			}
		}
	}
}

// flashCallError surfaces a transport-level call failure with the generic
// per-action message; the envelope text is unavailable in this case.
func (s *Session) flashCallError(action Action) {
	switch action {
	case ActionMute:
		s.notices.Flash(notices.SeverityError, "Ошибка при муте пользователя")
	case ActionUnmute:
		s.notices.Flash(notices.SeverityError, "Ошибка при размуте пользователя")
	case ActionCreateUser:
		s.notices.Flash(notices.SeverityError, "Ошибка при создании пользователя")
	case ActionChangeRole:
		s.notices.Flash(notices.SeverityError, "Ошибка при изменении роли")
	case ActionDeleteUser:
		s.notices.Flash(notices.SeverityError, "Ошибка при удалении пользователя")
	}
}

// --- resync ----------------------------------------------------------------

func (s *Session) spawnResync(ctx context.Context) {
	if s.cfg.Resync == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		snap, err := s.cfg.Resync(ctx)
		s.complete(ctx, command{kind: cmdSnapshot, snapshot: snap, snapErr: err})
	}()
}

func (s *Session) applySnapshot(cmd command) {
	if cmd.snapErr != nil {
		s.logger.Error("state resync failed", "error", cmd.snapErr)
		return
	}
	s.timeline.Replace(cmd.snapshot.Messages)
	s.presence.Replace(cmd.snapshot.Users)
	s.moderation.Seed(cmd.snapshot.Users)
	s.updateOnlineGauge()
	if s.metrics != nil {
		s.metrics.Resyncs.Inc()
	}
	s.logger.Info("state resynchronized",
		"messages", len(cmd.snapshot.Messages), "users", len(cmd.snapshot.Users))
}

func (s *Session) confirmed(prompt string) bool {
	if s.cfg.Confirm == nil {
		return true
	}
	return s.cfg.Confirm(prompt)
}

func (s *Session) countAction(action Action, outcome string) {
	if s.metrics != nil {
		s.metrics.ActionsTotal.WithLabelValues(string(action), outcome).Inc()
	}
}

func (s *Session) updateOnlineGauge() {
	if s.metrics != nil {
		s.metrics.OnlineUsers.Set(float64(s.presence.OnlineCount()))
	}
}

// --- read accessors --------------------------------------------------------

// State reports the current push channel state.
func (s *Session) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Messages returns a copy of the timeline in arrival order.
func (s *Session) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.Messages()
}

// OnlineCount returns the number of users currently marked online.
func (s *Session) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presence.OnlineCount()
}

// Muted reports the mute affordance for a user: true renders an unmute
// control, false a mute control.
func (s *Session) Muted(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moderation.Muted(userID)
}

// Target returns the open mute dialog selection, if any.
func (s *Session) Target() (moderation.Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moderation.Target()
}

// CanDelete reports whether the local identity may delete msg.
func (s *Session) CanDelete(msg models.Message) bool {
	return timeline.CanDelete(msg, s.cfg.Identity)
}

// Notices exposes the shared notice log for rendering.
func (s *Session) Notices() *notices.Log {
	return s.notices
}
