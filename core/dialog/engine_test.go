package dialog

import (
	"context"
	"testing"

	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the slice of tele.Context the engine touches.
type fakeContext struct {
	tele.Context
	sender *tele.User
	vals   map[string]any
	sent   []string
}

func newFakeContext(userID int64) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID},
		vals:   map[string]any{},
	}
}

func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Chat() *tele.Chat         { return &tele.Chat{ID: f.sender.ID} }
func (f *fakeContext) Update() tele.Update      { return tele.Update{} }
func (f *fakeContext) Callback() *tele.Callback { return nil }
func (f *fakeContext) Message() *tele.Message   { return nil }
func (f *fakeContext) Set(k string, v any)      { f.vals[k] = v }
func (f *fakeContext) Get(k string) any         { return f.vals[k] }

func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	if s, ok := what.(string); ok {
		f.sent = append(f.sent, s)
	}
	return nil
}

func textEvent(s string) Event { return Event{Kind: EventText, Text: s} }

// twoStep is a minimal dialog: ask name, ask city, done.
func twoStep() *Definition {
	return &Definition{
		Name: "two-step",
		Enter: func(c tele.Context, s *session.Session, ev Event) (State, error) {
			return "ask_name", c.Send("name?")
		},
		Transitions: map[State][]Transition{
			"ask_name": {{
				On: Pattern{Kind: EventText},
				Do: func(c tele.Context, s *session.Session, ev Event) (State, error) {
					s.SetForm("name", ev.Text)
					return "ask_city", c.Send("city?")
				},
			}},
			"ask_city": {{
				On: Pattern{Kind: EventText},
				Do: func(c tele.Context, s *session.Session, ev Event) (State, error) {
					s.SetForm("city", ev.Text)
					return StateTerminal, c.Send("done")
				},
			}},
		},
	}
}

func newTestEngine(t *testing.T, hooks Hooks) (*Engine, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	e := New(store, hooks, "Скасувати")
	if err := e.Register(twoStep()); err != nil {
		t.Fatalf("register: %v", err)
	}
	return e, store
}

func TestEngineRunsDialogToCompletion(t *testing.T) {
	e, store := newTestEngine(t, Hooks{})
	c := newFakeContext(7)

	if err := e.Start(c, "two-step", textEvent("/start")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Dispatch(c, textEvent("Олена")); err != nil {
		t.Fatalf("dispatch name: %v", err)
	}
	if err := e.Dispatch(c, textEvent("Київ")); err != nil {
		t.Fatalf("dispatch city: %v", err)
	}

	s, err := store.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if s.Dialog != "" || s.State != session.StateIdle {
		t.Fatalf("dialog not completed: dialog=%q state=%q", s.Dialog, s.State)
	}
	want := []string{"name?", "city?", "done"}
	if len(c.sent) != len(want) {
		t.Fatalf("sent %v, want %v", c.sent, want)
	}
	for i := range want {
		if c.sent[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, c.sent[i], want[i])
		}
	}
}

func TestEngineUnmatchedInputKeepsState(t *testing.T) {
	var unknownCalls int
	e, store := newTestEngine(t, Hooks{
		OnUnknown: func(c tele.Context, s *session.Session, ev Event) error {
			unknownCalls++
			return nil
		},
	})
	c := newFakeContext(7)

	if err := e.Start(c, "two-step", textEvent("/start")); err != nil {
		t.Fatalf("start: %v", err)
	}
	// A callback has no transition in ask_name; the input must not be
	// dropped silently and the state must survive.
	if err := e.Dispatch(c, Event{Kind: EventCallback, CallbackKey: "page"}); err != nil {
		t.Fatalf("dispatch callback: %v", err)
	}
	if unknownCalls != 1 {
		t.Fatalf("OnUnknown called %d times, want 1", unknownCalls)
	}
	s, _ := store.Get(context.Background(), 7)
	if s.Dialog != "two-step" || s.State != "ask_name" {
		t.Fatalf("state disturbed: dialog=%q state=%q", s.Dialog, s.State)
	}
}

func TestEngineCancelWordAbortsAndDiscardsForm(t *testing.T) {
	var cancelled bool
	e, store := newTestEngine(t, Hooks{
		OnCancel: func(c tele.Context, s *session.Session) error {
			cancelled = true
			return nil
		},
	})
	c := newFakeContext(7)

	_ = e.Start(c, "two-step", textEvent("/start"))
	_ = e.Dispatch(c, textEvent("Олена"))
	if err := e.Dispatch(c, textEvent("Скасувати")); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !cancelled {
		t.Fatal("OnCancel not called")
	}
	s, _ := store.Get(context.Background(), 7)
	if s.Dialog != "" || s.State != session.StateIdle || len(s.Form) != 0 {
		t.Fatalf("dialog not reset: dialog=%q state=%q form=%v", s.Dialog, s.State, s.Form)
	}
}

func TestEngineCancelIsIdempotent(t *testing.T) {
	var cancelCalls int
	e, _ := newTestEngine(t, Hooks{
		OnCancel: func(c tele.Context, s *session.Session) error {
			cancelCalls++
			return nil
		},
	})
	c := newFakeContext(7)

	if err := e.Cancel(c); err != nil {
		t.Fatalf("cancel with no dialog: %v", err)
	}
	if err := e.Cancel(c); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if cancelCalls != 2 {
		t.Fatalf("OnCancel called %d times, want 2", cancelCalls)
	}
}

func TestEngineStartReplacesActiveDialog(t *testing.T) {
	e, store := newTestEngine(t, Hooks{})
	c := newFakeContext(7)

	_ = e.Start(c, "two-step", textEvent("/start"))
	_ = e.Dispatch(c, textEvent("Олена"))

	// Starting again replaces the run and drops accumulated answers.
	if err := e.Start(c, "two-step", textEvent("/start")); err != nil {
		t.Fatalf("restart: %v", err)
	}
	s, _ := store.Get(context.Background(), 7)
	if s.State != "ask_name" || len(s.Form) != 0 {
		t.Fatalf("restart kept stale data: state=%q form=%v", s.State, s.Form)
	}
}

func TestEngineErrorHookDecidesNextState(t *testing.T) {
	boom := &Definition{
		Name: "boom",
		Enter: func(c tele.Context, s *session.Session, ev Event) (State, error) {
			return "stuck", nil
		},
		Transitions: map[State][]Transition{
			"stuck": {{
				On: Pattern{Kind: EventText},
				Do: func(c tele.Context, s *session.Session, ev Event) (State, error) {
					return "", context.DeadlineExceeded
				},
			}},
		},
	}

	store := session.NewMemoryStore()
	e := New(store, Hooks{
		OnError: func(c tele.Context, s *session.Session, err error) (State, bool) {
			return StateIdle, true
		},
	})
	if err := e.Register(boom); err != nil {
		t.Fatalf("register: %v", err)
	}

	c := newFakeContext(7)
	_ = e.Start(c, "boom", textEvent("/start"))
	if err := e.Dispatch(c, textEvent("x")); err != nil {
		t.Fatalf("handled error leaked: %v", err)
	}
	s, _ := store.Get(context.Background(), 7)
	if s.Dialog != "" {
		t.Fatalf("dialog not aborted after error, dialog=%q", s.Dialog)
	}
}

func TestEngineErrorHookKeepsStateForRetry(t *testing.T) {
	var fail bool
	flaky := &Definition{
		Name: "flaky",
		Enter: func(c tele.Context, s *session.Session, ev Event) (State, error) {
			return "ask", c.Send("value?")
		},
		Transitions: map[State][]Transition{
			"ask": {{
				On: Pattern{Kind: EventText},
				Do: func(c tele.Context, s *session.Session, ev Event) (State, error) {
					if fail {
						return "", context.DeadlineExceeded
					}
					return StateTerminal, c.Send("done")
				},
			}},
		},
	}

	store := session.NewMemoryStore()
	e := New(store, Hooks{
		// A transient failure keeps the dialog where it was.
		OnError: func(c tele.Context, s *session.Session, err error) (State, bool) {
			return StateSame, true
		},
	})
	if err := e.Register(flaky); err != nil {
		t.Fatalf("register: %v", err)
	}

	c := newFakeContext(7)
	_ = e.Start(c, "flaky", textEvent("/start"))

	fail = true
	if err := e.Dispatch(c, textEvent("x")); err != nil {
		t.Fatalf("handled error leaked: %v", err)
	}
	s, _ := store.Get(context.Background(), 7)
	if s.Dialog != "flaky" || s.State != "ask" {
		t.Fatalf("state disturbed after recoverable error: dialog=%q state=%q", s.Dialog, s.State)
	}

	// The retry must still match the same transition and finish the dialog.
	fail = false
	if err := e.Dispatch(c, textEvent("x")); err != nil {
		t.Fatalf("retry: %v", err)
	}
	s, _ = store.Get(context.Background(), 7)
	if s.Dialog != "" || s.State != session.StateIdle {
		t.Fatalf("retry did not complete: dialog=%q state=%q", s.Dialog, s.State)
	}
}

func TestDefinitionValidateRejectsDeadEnd(t *testing.T) {
	d := &Definition{
		Name:  "dead",
		Enter: func(c tele.Context, s *session.Session, ev Event) (State, error) { return "stuck", nil },
		Transitions: map[State][]Transition{
			"stuck": {},
		},
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected dead-end state to fail validation")
	}
}
