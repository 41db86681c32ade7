package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MLokatsiun/tg-bot-volunteer/core/logger"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tele "gopkg.in/telebot.v4"
)

// Hooks are the engine's seams to the application layer. The engine itself
// knows nothing about roles, menus or the backend; the hooks decide what the
// user sees when a dialog ends outside its own handlers.
type Hooks struct {
	// OnCancel runs after a dialog is aborted (cancel word or explicit
	// Cancel call). It should confirm the abort and show the idle menu.
	OnCancel func(c tele.Context, s *session.Session) error

	// OnUnknown runs when no dialog is active and no transition matched.
	// The dialog state is untouched; the hook re-prompts.
	OnUnknown func(c tele.Context, s *session.Session, ev Event) error

	// OnError maps a handler error to the state the dialog should land in.
	// Returning StateIdle aborts the dialog. The bool reports whether the
	// hook already messaged the user.
	OnError func(c tele.Context, s *session.Session, err error) (State, bool)
}

// Engine drives registered dialog definitions over stored sessions. Updates
// for the same user are serialized; different users proceed concurrently.
type Engine struct {
	store       session.Store
	defs        map[string]*Definition
	hooks       Hooks
	cancelWords map[string]struct{}

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New builds an engine over the given session store.
func New(store session.Store, hooks Hooks, cancelWords ...string) *Engine {
	words := make(map[string]struct{}, len(cancelWords))
	for _, w := range cancelWords {
		words[w] = struct{}{}
	}
	return &Engine{
		store:       store,
		defs:        make(map[string]*Definition),
		hooks:       hooks,
		cancelWords: words,
		locks:       make(map[int64]*sync.Mutex),
	}
}

// Register validates and adds a dialog definition. Duplicate names are a
// programming error and fail loudly at startup.
func (e *Engine) Register(d *Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := e.defs[d.Name]; ok {
		return fmt.Errorf("dialog: duplicate definition %q", d.Name)
	}
	e.defs[d.Name] = d
	return nil
}

// MustRegister is Register that panics; intended for startup wiring.
func (e *Engine) MustRegister(d *Definition) {
	if err := e.Register(d); err != nil {
		panic(err)
	}
}

func (e *Engine) userLock(userID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[userID] = l
	}
	return l
}

// withSession loads the user's session under the per-user lock, runs fn, and
// persists the session afterwards. fn runs exclusively with respect to other
// updates from the same user.
func (e *Engine) withSession(ctx context.Context, userID int64, fn func(s *session.Session) error) error {
	l := e.userLock(userID)
	l.Lock()
	defer l.Unlock()

	s, err := e.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("dialog: load session: %w", err)
	}
	fnErr := fn(s)
	if putErr := e.store.Put(ctx, s); putErr != nil {
		if fnErr != nil {
			return fnErr
		}
		return fmt.Errorf("dialog: save session: %w", putErr)
	}
	return fnErr
}

// InProgress reports whether the user currently has an active dialog.
func (e *Engine) InProgress(ctx context.Context, userID int64) bool {
	s, err := e.store.Get(ctx, userID)
	if err != nil {
		return false
	}
	return s.Dialog != ""
}

// Start begins the named dialog for the user. Any dialog already in progress
// is replaced: its accumulated form data is discarded without confirmation.
func (e *Engine) Start(c tele.Context, name string, ev Event) error {
	def, ok := e.defs[name]
	if !ok {
		return fmt.Errorf("dialog: unknown dialog %q", name)
	}
	ctx := contextOf(c)
	userID := c.Sender().ID

	return e.withSession(ctx, userID, func(s *session.Session) error {
		if s.Dialog != "" && s.Dialog != name {
			logger.Info(ctx, "dialog", "dialog.replaced",
				slog.String("dialog", s.Dialog),
				slog.String("next_state", name),
			)
		}
		s.ResetDialog()
		s.Dialog = name

		next, err := def.Enter(c, s, ev)
		return e.settle(ctx, c, s, State(s.State), next, err)
	})
}

// Dispatch routes one inbound event through the user's active dialog. Input
// is never silently dropped: when nothing matches, either the state's own
// transitions re-prompt or the OnUnknown hook runs.
func (e *Engine) Dispatch(c tele.Context, ev Event) error {
	ctx := contextOf(c)
	userID := c.Sender().ID

	return e.withSession(ctx, userID, func(s *session.Session) error {
		if ev.Kind == EventText {
			if _, isCancel := e.cancelWords[ev.Text]; isCancel {
				return e.abort(ctx, c, s)
			}
		}

		if s.Dialog == "" {
			return e.unknown(ctx, c, s, ev)
		}
		def, ok := e.defs[s.Dialog]
		if !ok {
			// Definition removed across a deploy; recover to idle.
			logger.Warn(ctx, "dialog", "dialog.stale",
				slog.String("dialog", s.Dialog),
			)
			return e.abort(ctx, c, s)
		}

		cur := State(s.State)
		h := e.match(def, cur, ev)
		if h == nil {
			return e.unknown(ctx, c, s, ev)
		}

		start := time.Now()
		next, err := h(c, s, ev)
		res := e.settle(ctx, c, s, cur, next, err)

		logger.Info(ctx, "dialog", "dispatch.handled",
			slog.String("dialog", def.Name),
			slog.String("state", string(cur)),
			slog.String("next_state", s.State),
			slog.Duration("duration", logger.Took(start)),
		)
		return res
	})
}

// Exec runs a one-shot action against the user's session under the same
// per-user lock dialogs use, so menu actions never race an in-flight
// dispatch. The session is persisted after fn returns.
func (e *Engine) Exec(c tele.Context, fn func(c tele.Context, s *session.Session) error) error {
	return e.withSession(contextOf(c), c.Sender().ID, func(s *session.Session) error {
		return fn(c, s)
	})
}

// Cancel aborts the user's active dialog, if any. Cancelling with no dialog
// in progress is a no-op apart from the OnCancel hook.
func (e *Engine) Cancel(c tele.Context) error {
	ctx := contextOf(c)
	return e.withSession(ctx, c.Sender().ID, func(s *session.Session) error {
		return e.abort(ctx, c, s)
	})
}

func (e *Engine) match(def *Definition, cur State, ev Event) HandlerFunc {
	for _, t := range def.Transitions[cur] {
		if t.On.Matches(ev) {
			return t.Do
		}
	}
	for _, t := range def.Fallbacks {
		if t.On.Matches(ev) {
			return t.Do
		}
	}
	return nil
}

// settle applies the handler outcome to the session. Errors are routed
// through OnError so backend failures land the dialog in a recoverable state
// instead of stranding the user.
func (e *Engine) settle(ctx context.Context, c tele.Context, s *session.Session, cur, next State, err error) error {
	if err != nil {
		mappedTo := StateIdle
		handled := false
		if e.hooks.OnError != nil {
			mappedTo, handled = e.hooks.OnError(c, s, err)
		}
		logger.Warn(ctx, "dialog", "dispatch.error",
			slog.String("dialog", s.Dialog),
			slog.String("state", string(cur)),
			slog.String("next_state", string(mappedTo)),
			slog.String("err", err.Error()),
		)
		switch mappedTo {
		case StateIdle, StateTerminal:
			s.ResetDialog()
		case StateSame:
			// Recoverable failure: the dialog stays put so the user can
			// retry the same step.
		default:
			s.State = string(mappedTo)
		}
		if handled {
			return nil
		}
		return err
	}

	switch next {
	case StateTerminal, StateIdle:
		s.ResetDialog()
	case StateSame:
		// State and form untouched; the handler re-prompted.
	default:
		s.State = string(next)
	}
	return nil
}

func (e *Engine) abort(ctx context.Context, c tele.Context, s *session.Session) error {
	had := s.Dialog
	s.ResetDialog()
	if had != "" {
		logger.Info(ctx, "dialog", "dialog.cancelled",
			slog.String("dialog", had),
		)
	}
	if e.hooks.OnCancel != nil {
		return e.hooks.OnCancel(c, s)
	}
	return nil
}

func (e *Engine) unknown(ctx context.Context, c tele.Context, s *session.Session, ev Event) error {
	logger.Debug(ctx, "dialog", "dispatch.unmatched",
		slog.String("dialog", s.Dialog),
		slog.String("state", s.State),
	)
	if e.hooks.OnUnknown != nil {
		return e.hooks.OnUnknown(c, s, ev)
	}
	return nil
}
