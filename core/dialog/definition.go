package dialog

import (
	"fmt"

	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tele "gopkg.in/telebot.v4"
)

// State tags a position inside a dialog's state machine.
type State string

const (
	// StateIdle means no dialog is active for the session.
	StateIdle State = State(session.StateIdle)
	// StateTerminal is returned by handlers to finish the dialog.
	StateTerminal State = "terminal"
	// StateSame is returned by handlers to stay in the current state,
	// typically after re-prompting on invalid input.
	StateSame State = "same"
)

// EventKind classifies an inbound chat event.
type EventKind int

const (
	EventText EventKind = iota
	EventContact
	EventLocation
	EventDocument
	EventCallback
)

// Event is the normalized inbound chat event handed to handlers.
type Event struct {
	Kind            EventKind
	Text            string
	CallbackKey     string
	CallbackPayload string
}

// HandlerFunc processes one event in one state and names the next state.
// The session is held under the per-user lock for the whole call; mutations
// are persisted by the engine after the handler returns.
type HandlerFunc func(c tele.Context, s *session.Session, ev Event) (State, error)

// Pattern matches inbound events. The zero value of Text/Callback matches any
// event of the kind.
type Pattern struct {
	Kind     EventKind
	Text     string
	Callback string
}

// Matches reports whether the pattern accepts the event.
func (p Pattern) Matches(ev Event) bool {
	if p.Kind != ev.Kind {
		return false
	}
	switch p.Kind {
	case EventText:
		return p.Text == "" || p.Text == ev.Text
	case EventCallback:
		return p.Callback == "" || p.Callback == ev.CallbackKey
	default:
		return true
	}
}

// Transition binds an event pattern to its handler within a state.
type Transition struct {
	On Pattern
	Do HandlerFunc
}

// Definition is a static, per-dialog state machine description. It is shared
// between users; all mutable state lives in the session.
type Definition struct {
	Name string

	// Enter runs when the dialog starts and names the first state. It may
	// complete the dialog immediately by returning StateTerminal.
	Enter HandlerFunc

	// Transitions maps each state to the transitions tried in order.
	Transitions map[State][]Transition

	// Fallbacks are tried in any state after its own transitions, before
	// the engine-wide fallback.
	Fallbacks []Transition
}

// Validate checks the definition for states that would strand the user.
func (d *Definition) Validate() error {
	if d == nil || d.Name == "" {
		return fmt.Errorf("dialog: definition requires a name")
	}
	if d.Enter == nil {
		return fmt.Errorf("dialog %s: missing Enter handler", d.Name)
	}
	for state, transitions := range d.Transitions {
		if state == StateIdle || state == StateTerminal || state == StateSame {
			return fmt.Errorf("dialog %s: reserved state tag %q used as a state", d.Name, state)
		}
		if len(transitions) == 0 && len(d.Fallbacks) == 0 {
			return fmt.Errorf("dialog %s: state %q has no transitions and no fallback", d.Name, state)
		}
		for i, t := range transitions {
			if t.Do == nil {
				return fmt.Errorf("dialog %s: state %q transition %d has nil handler", d.Name, state, i)
			}
		}
	}
	for i, t := range d.Fallbacks {
		if t.Do == nil {
			return fmt.Errorf("dialog %s: fallback %d has nil handler", d.Name, i)
		}
	}
	return nil
}
