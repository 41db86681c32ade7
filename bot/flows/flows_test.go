package flows

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/menu"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

// fakeGateway records calls and serves canned answers.
type fakeGateway struct {
	registered   []backend.RegisterRequest
	loginPair    backend.TokenPair
	loginErr     error
	refreshPair  backend.TokenPair
	refreshErr   error
	apps         []backend.Application
	listErr      error
	acceptFails  error
	accepted     []int64
	cancelled    []int64
	closed       []int64
	confirmed    []int64
	deleted      []int64
	modDeleted   []int64
	categories   []backend.Category
	customers    []backend.Customer
	verified     map[int64]bool
	profileEdits []backend.EditProfileRequest
	deactivated  []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		loginPair:   backend.TokenPair{AccessToken: "acc", RefreshToken: "ref"},
		refreshPair: backend.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"},
		verified:    map[int64]bool{},
	}
}

func (g *fakeGateway) Register(_ context.Context, req backend.RegisterRequest) error {
	g.registered = append(g.registered, req)
	return nil
}
func (g *fakeGateway) Login(_ context.Context, _ string, _ int) (backend.TokenPair, error) {
	if g.loginErr != nil {
		return backend.TokenPair{}, g.loginErr
	}
	return g.loginPair, nil
}
func (g *fakeGateway) LoginModerator(_ context.Context, _, _ string) (backend.TokenPair, error) {
	if g.loginErr != nil {
		return backend.TokenPair{}, g.loginErr
	}
	return g.loginPair, nil
}
func (g *fakeGateway) Refresh(_ context.Context, _ string) (backend.TokenPair, error) {
	if g.refreshErr != nil {
		return backend.TokenPair{}, g.refreshErr
	}
	return g.refreshPair, nil
}
func (g *fakeGateway) ListApplications(_ context.Context, _, _ string, _ backend.ApplicationType) ([]backend.Application, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	// Mirrors the real gateway's contract: ascending by id.
	sorted := append([]backend.Application(nil), g.apps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted, nil
}
func (g *fakeGateway) AcceptApplication(_ context.Context, _ string, id int64) error {
	if g.acceptFails != nil {
		return g.acceptFails
	}
	g.accepted = append(g.accepted, id)
	return nil
}
func (g *fakeGateway) CancelApplication(_ context.Context, _ string, id int64) error {
	g.cancelled = append(g.cancelled, id)
	return nil
}
func (g *fakeGateway) CloseApplication(_ context.Context, _ string, id int64, _ []backend.ReportFile) error {
	g.closed = append(g.closed, id)
	return nil
}
func (g *fakeGateway) CreateApplication(_ context.Context, _ string, _ backend.CreateApplicationRequest) (backend.Application, error) {
	return backend.Application{ID: 77}, nil
}
func (g *fakeGateway) ConfirmApplication(_ context.Context, _ string, id int64) error {
	g.confirmed = append(g.confirmed, id)
	return nil
}
func (g *fakeGateway) DeleteApplication(_ context.Context, _ string, id int64) error {
	g.deleted = append(g.deleted, id)
	return nil
}
func (g *fakeGateway) DeleteApplicationModerator(_ context.Context, _ string, id int64) error {
	g.modDeleted = append(g.modDeleted, id)
	return nil
}
func (g *fakeGateway) CreateOrActivateCategory(_ context.Context, _, name string, parentID *int64) (backend.Category, error) {
	return backend.Category{ID: 1, Name: name, ParentID: parentID, IsActive: true}, nil
}
func (g *fakeGateway) DeactivateCategory(_ context.Context, _ string, _ int64) error { return nil }
func (g *fakeGateway) ListCategories(_ context.Context) ([]backend.Category, error) {
	return g.categories, nil
}
func (g *fakeGateway) ListCustomers(_ context.Context) ([]backend.Customer, error) {
	return g.customers, nil
}
func (g *fakeGateway) VerifyUser(_ context.Context, _ string, userID int64, approved bool) error {
	g.verified[userID] = approved
	return nil
}
func (g *fakeGateway) EditVolunteerProfile(_ context.Context, _ string, req backend.EditProfileRequest) error {
	g.profileEdits = append(g.profileEdits, req)
	return nil
}
func (g *fakeGateway) DeactivateProfile(_ context.Context, _, rolePath string) error {
	g.deactivated = append(g.deactivated, rolePath)
	return nil
}

type fakeGeo struct{}

func (fakeGeo) ReverseGeocode(_ context.Context, _, _ float64) string { return "вул. Тестова, 1" }

// chatContext fakes the telebot context for one user.
type chatContext struct {
	tele.Context
	userID   int64
	text     string
	message  *tele.Message
	callback *tele.Callback
	vals     map[string]any
	sent     []string
}

func newChat(userID int64) *chatContext {
	return &chatContext{userID: userID, vals: map[string]any{}}
}

func (f *chatContext) Sender() *tele.User       { return &tele.User{ID: f.userID} }
func (f *chatContext) Chat() *tele.Chat         { return &tele.Chat{ID: f.userID} }
func (f *chatContext) Update() tele.Update      { return tele.Update{} }
func (f *chatContext) Text() string             { return f.text }
func (f *chatContext) Message() *tele.Message   { return f.message }
func (f *chatContext) Callback() *tele.Callback { return f.callback }
func (f *chatContext) Set(k string, v any)      { f.vals[k] = v }
func (f *chatContext) Get(k string) any         { return f.vals[k] }
func (f *chatContext) Respond(_ ...*tele.CallbackResponse) error { return nil }

func (f *chatContext) Send(what interface{}, _ ...interface{}) error {
	if s, ok := what.(string); ok {
		f.sent = append(f.sent, s)
	}
	return nil
}

func (f *chatContext) EditOrSend(what interface{}, _ ...interface{}) error {
	return f.Send(what)
}

func (f *chatContext) reset() {
	f.text, f.message, f.callback = "", nil, nil
}

type harness struct {
	flows *Flows
	api   *fakeGateway
	store session.Store
	chat  *chatContext
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := newFakeGateway()
	store := session.NewMemoryStore()
	return &harness{
		flows: New(store, api, fakeGeo{}),
		api:   api,
		store: store,
		chat:  newChat(100),
	}
}

func (h *harness) say(t *testing.T, text string) {
	t.Helper()
	h.chat.reset()
	h.chat.text = text
	require.NoError(t, h.flows.HandleText(h.chat))
}

func (h *harness) shareContact(t *testing.T, phone string) {
	t.Helper()
	h.chat.reset()
	h.chat.message = &tele.Message{Contact: &tele.Contact{PhoneNumber: phone}}
	require.NoError(t, h.flows.HandleContact(h.chat))
}

func (h *harness) shareLocation(t *testing.T, lat, lon float32) {
	t.Helper()
	h.chat.reset()
	h.chat.message = &tele.Message{Location: &tele.Location{Lat: lat, Lng: lon}}
	require.NoError(t, h.flows.HandleLocation(h.chat))
}

func (h *harness) tap(t *testing.T, key, payload string) {
	t.Helper()
	h.chat.reset()
	h.chat.callback = &tele.Callback{Unique: key, Data: payload}
	require.NoError(t, h.flows.HandleCallback(h.chat))
}

func (h *harness) session(t *testing.T) *session.Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), h.chat.userID)
	require.NoError(t, err)
	return s
}

func (h *harness) lastSent() string {
	if len(h.chat.sent) == 0 {
		return ""
	}
	return h.chat.sent[len(h.chat.sent)-1]
}

func TestBeneficiaryRegistrationEndToEnd(t *testing.T) {
	h := newHarness(t)

	h.say(t, menu.BtnRegister)
	h.say(t, menu.BtnBecomeBeneficiary)
	h.shareContact(t, "+380501234567")
	h.say(t, "Петренко Іван Іванович")
	h.say(t, menu.BtnConfirm)

	require.Len(t, h.api.registered, 1)
	req := h.api.registered[0]
	assert.Equal(t, "380501234567", req.PhoneNum)
	assert.Equal(t, "100", req.TgID)
	assert.Equal(t, "Іван", req.Firstname)
	assert.Equal(t, "Петренко", req.Lastname)
	assert.Equal(t, "Іванович", req.Patronymic)
	assert.Equal(t, 1, req.RoleID)
	assert.Nil(t, req.Location)

	s := h.session(t)
	assert.Empty(t, s.Dialog)
	assert.True(t, s.Authenticated())
	assert.Equal(t, session.RoleBeneficiary, s.Role)
}

func TestVolunteerRegistrationCollectsLocation(t *testing.T) {
	h := newHarness(t)

	h.say(t, menu.BtnRegister)
	h.say(t, menu.BtnBecomeVolunteer)
	h.shareContact(t, "8501234567")
	h.say(t, "Коваль Олена")
	h.say(t, menu.BtnOnPhone)
	h.shareLocation(t, 50.45, 30.52)
	h.say(t, menu.BtnConfirm)

	require.Len(t, h.api.registered, 1)
	req := h.api.registered[0]
	assert.Equal(t, "380501234567", req.PhoneNum)
	assert.Equal(t, 2, req.RoleID)
	require.NotNil(t, req.Location)
	assert.InDelta(t, 50.45, req.Location.Latitude, 0.001)
	assert.Equal(t, "вул. Тестова, 1", req.Location.Address)
}

func TestLoginPendingApprovalShowsWaitingScreen(t *testing.T) {
	h := newHarness(t)
	h.api.loginErr = &backend.Error{Kind: backend.KindForbidden, HTTPCode: 403}

	h.say(t, menu.BtnLogin)
	h.say(t, menu.BtnRoleVolunteer)

	s := h.session(t)
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Dialog)
	assert.Contains(t, strings.Join(h.chat.sent, "\n"), "очікує підтвердження")

	// Approval arrives; the status button now succeeds.
	h.api.loginErr = nil
	h.say(t, menu.BtnCheckVolunteerStatus)
	s = h.session(t)
	assert.True(t, s.Authenticated())
	assert.Equal(t, session.RoleVolunteer, s.Role)
}

func loginAsVolunteer(t *testing.T, h *harness) {
	t.Helper()
	h.say(t, menu.BtnLogin)
	h.say(t, menu.BtnRoleVolunteer)
	require.True(t, h.session(t).Authenticated())
}

func distance(km float64) *float64 { return &km }

func TestVolunteerBrowseFiltersAndPaginates(t *testing.T) {
	h := newHarness(t)
	loginAsVolunteer(t, h)

	// 12 nearby + 1 far request; ids arrive unsorted.
	for i := 12; i >= 1; i-- {
		h.api.apps = append(h.api.apps, backend.Application{
			ID: int64(i), Description: fmt.Sprintf("завдання %d", i), Distance: distance(3),
		})
	}
	h.api.apps = append(h.api.apps, backend.Application{ID: 99, Description: "далеко", Distance: distance(40)})

	h.say(t, menu.BtnVolunteerTasks)
	h.say(t, btnTypeAvailable)
	h.say(t, btnDist5)

	s := h.session(t)
	require.NotNil(t, s.Cursor)
	require.Len(t, s.Cursor.Items, 12, "40 km away request must be filtered out")
	assert.Equal(t, int64(1), s.Cursor.Items[0].ID, "list must be sorted by id")
	assert.Contains(t, h.lastSent(), "Сторінка 1 з 3")
	assert.Empty(t, s.Dialog, "browse ends after first render")

	// Page forward twice through the top-level callback.
	h.tap(t, cbPage, "1")
	assert.Contains(t, h.lastSent(), "Сторінка 2 з 3")
	h.tap(t, cbPage, "2")
	assert.Contains(t, h.lastSent(), "Сторінка 3 з 3")
	assert.Contains(t, h.lastSent(), "завдання 11")

	// Stale page index clamps instead of erroring.
	h.tap(t, cbPage, "9")
	assert.Contains(t, h.lastSent(), "Сторінка 3 з 3")
}

func TestVolunteerAcceptFlow(t *testing.T) {
	h := newHarness(t)
	loginAsVolunteer(t, h)
	h.api.apps = []backend.Application{
		{ID: 5, Description: "придбати ліки"},
		{ID: 8, Description: "привезти воду"},
	}

	h.say(t, menu.BtnVolunteerAccept)
	require.Equal(t, dlgAccept, h.session(t).Dialog)

	h.tap(t, cbPick, "8")
	assert.Equal(t, []int64{8}, h.api.accepted)
	assert.Empty(t, h.session(t).Dialog)
}

func TestCancelWordAbortsMidDialog(t *testing.T) {
	h := newHarness(t)

	h.say(t, menu.BtnRegister)
	h.say(t, menu.BtnBecomeBeneficiary)
	require.Equal(t, dlgRegister, h.session(t).Dialog)

	h.say(t, menu.BtnCancel)
	s := h.session(t)
	assert.Empty(t, s.Dialog)
	assert.Empty(t, s.Form)
	assert.Empty(t, h.api.registered)
}

func TestMenuButtonReplacesFinishedDialogOnly(t *testing.T) {
	h := newHarness(t)

	h.say(t, menu.BtnRegister)
	require.Equal(t, dlgRegister, h.session(t).Dialog)

	// Mid-dialog the menu button is plain text for the active dialog, not
	// a route: the register flow re-prompts instead of starting login.
	h.say(t, menu.BtnLogin)
	assert.Equal(t, dlgRegister, h.session(t).Dialog)
}

func TestExitClearsSession(t *testing.T) {
	h := newHarness(t)
	loginAsVolunteer(t, h)

	h.say(t, menu.BtnExit)
	s := h.session(t)
	assert.False(t, s.Authenticated())
	assert.Equal(t, session.RoleUnauthenticated, s.Role)
}

func TestModeratorVerifyUserFlow(t *testing.T) {
	h := newHarness(t)
	h.say(t, menu.BtnModeratorLogin)
	h.say(t, "+380671112233")
	h.say(t, "secret-pass")
	require.Equal(t, session.RoleModerator, h.session(t).Role)

	h.api.customers = []backend.Customer{
		{ID: 41, Firstname: "Іван", Lastname: "Петренко", PhoneNum: "380501", IsVerified: false},
		{ID: 42, Firstname: "Олена", Lastname: "Коваль", PhoneNum: "380502", IsVerified: true},
	}

	h.say(t, menu.BtnModeratorVerifyUser)
	require.Equal(t, dlgVerifyUser, h.session(t).Dialog)

	h.tap(t, cbUser, "41")
	h.tap(t, cbApprove, "")

	assert.Equal(t, map[int64]bool{41: true}, h.api.verified)
	assert.Empty(t, h.session(t).Dialog)
}

func TestRoleGuardBlocksForeignDialog(t *testing.T) {
	h := newHarness(t)
	h.say(t, menu.BtnLogin)
	h.say(t, menu.BtnRoleBeneficiary)
	require.Equal(t, session.RoleBeneficiary, h.session(t).Role)

	// A beneficiary pressing a volunteer-only button gets their own menu.
	h.say(t, menu.BtnVolunteerAccept)
	assert.Empty(t, h.session(t).Dialog)
	assert.Empty(t, h.api.accepted)
}

func TestSessionExpiryDuringActionResetsToEntry(t *testing.T) {
	h := newHarness(t)
	loginAsVolunteer(t, h)
	h.api.apps = []backend.Application{{ID: 5, Description: "x"}}

	h.say(t, menu.BtnVolunteerAccept)

	// The access token dies and the refresh is rejected too.
	rejectedErr := &backend.Error{Kind: backend.KindForbidden, HTTPCode: 401}
	h.api.refreshErr = rejectedErr

	prevAccept := h.api.accepted
	h.chat.reset()
	h.chat.callback = &tele.Callback{Unique: cbPick, Data: "5"}
	// The accept call itself reports a dead token.
	h.api.acceptFails = rejectedErr
	require.NoError(t, h.flows.HandleCallback(h.chat))

	s := h.session(t)
	assert.False(t, s.Authenticated())
	assert.Equal(t, session.RoleUnauthenticated, s.Role)
	assert.Empty(t, s.Dialog)
	assert.Equal(t, prevAccept, h.api.accepted)
	assert.Contains(t, strings.Join(h.chat.sent, "\n"), "сесія завершилась")
}

func TestDeactivateProfileSignsOut(t *testing.T) {
	h := newHarness(t)
	loginAsVolunteer(t, h)

	h.say(t, menu.BtnDeactivateVolunteer)
	h.say(t, menu.BtnConfirm)

	assert.Equal(t, []string{"volunteer"}, h.api.deactivated)
	s := h.session(t)
	assert.False(t, s.Authenticated())
}

func TestCreateApplicationDescriptionCountsRunes(t *testing.T) {
	h := newHarness(t)
	h.say(t, menu.BtnLogin)
	h.say(t, menu.BtnRoleBeneficiary)
	require.True(t, h.session(t).Authenticated())

	h.say(t, menu.BtnBeneficiaryCreate)
	require.Equal(t, dlgCreateApplication, h.session(t).Dialog)

	// Three Cyrillic letters are six bytes but still too short.
	h.say(t, "Їжа")
	assert.Contains(t, h.lastSent(), "закороткий")
	assert.Equal(t, "enter_description", h.session(t).State)

	// Five letters pass regardless of byte width; with no categories
	// configured the dialog moves straight to the location step.
	h.say(t, "Ліки!")
	s := h.session(t)
	assert.Equal(t, "Ліки!", s.FormValue(formDescription))
	assert.Equal(t, "enter_location", s.State)
}
