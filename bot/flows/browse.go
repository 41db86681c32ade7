package flows

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/menu"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/pagination"
	"github.com/MLokatsiun/tg-bot-volunteer/core/dialog"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tghelpers "github.com/MLokatsiun/tg-bot-volunteer/core/telegram/helpers"
	tele "gopkg.in/telebot.v4"
)

// Callback keys. cbPage works both inside picker dialogs and after a
// read-only browse finished, so it is routed at the top level too.
const (
	cbPage = "pg"
	cbPick = "pick"
	cbCat  = "cat"
	cbSkip = "skip"
)

// Application type choice buttons.
const (
	btnTypeAvailable  = "Доступні"
	btnTypeInProgress = "В процесі"
	btnTypeFinished   = "Завершені"
)

// Distance filter buttons for volunteers browsing available requests.
const (
	btnDist5   = "5 км"
	btnDist10  = "10 км"
	btnDist20  = "20 км"
	btnDist50  = "50 км"
	btnDistAll = "Показати всі"
)

const formAppType = "app_type"

func typeChoiceView() menu.View {
	return menu.Choice("Які заявки показати?", btnTypeAvailable, btnTypeInProgress, btnTypeFinished)
}

func applicationTypeFromButton(text string) (backend.ApplicationType, bool) {
	switch text {
	case btnTypeAvailable:
		return backend.ApplicationsAvailable, true
	case btnTypeInProgress:
		return backend.ApplicationsInProgress, true
	case btnTypeFinished:
		return backend.ApplicationsFinished, true
	}
	return "", false
}

// renderApplication builds the display block of one request, mirroring what
// the backend exposes per listing.
func renderApplication(app backend.Application) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Заявка %d:\n", app.ID)
	desc := app.Description
	if desc == "" {
		desc = "Немає опису"
	}
	fmt.Fprintf(&b, "Опис: %s\n", desc)
	if app.Distance != nil {
		fmt.Fprintf(&b, "Відстань: %.1f км\n", *app.Distance)
	}
	if app.ActiveTo != "" {
		fmt.Fprintf(&b, "Дійсна до: %s\n", tghelpers.FormatDate(app.ActiveTo))
	}
	if app.Creator != nil {
		fmt.Fprintf(&b, "Ім'я: %s\nТелефон: %s\n", app.Creator.FirstName, app.Creator.PhoneNum)
	}
	return strings.TrimRight(b.String(), "\n")
}

// loadApplications fetches a list through the guardian and installs it as
// the session cursor.
func (f *Flows) loadApplications(c tele.Context, s *session.Session, appType backend.ApplicationType, maxDistanceKm float64) error {
	ctx := tghelpers.BuildContext(c)

	var apps []backend.Application
	err := f.guard.Do(ctx, s, func(token string) error {
		var callErr error
		apps, callErr = f.api.ListApplications(ctx, token, s.Role.Path(), appType)
		return callErr
	})
	if err != nil {
		return err
	}

	items := make([]session.Item, 0, len(apps))
	for _, app := range apps {
		if maxDistanceKm > 0 && (app.Distance == nil || *app.Distance > maxDistanceKm) {
			continue
		}
		items = append(items, session.Item{ID: app.ID, Label: renderApplication(app)})
	}
	s.Cursor = &session.Cursor{Items: items, Page: 0, PageSize: pagination.DefaultPageSize}
	return nil
}

// renderCursorPage shows the cursor's current page. pickKey enables per-item
// selection buttons; empty renders a read-only list.
func renderCursorPage(c tele.Context, s *session.Session, pickKey string, edit bool) error {
	if s.Cursor == nil {
		return tghelpers.SendText(c, "Список порожній.")
	}
	cur := s.Cursor
	cur.Page = pagination.Clamp(cur.Page, len(cur.Items), cur.PageSize)
	window, hasPrev, hasNext := pagination.Window(cur.Items, cur.Page, cur.PageSize)

	if len(window) == 0 {
		return tghelpers.SendText(c, "Заявок не знайдено.")
	}

	blocks := make([]string, 0, len(window))
	for _, it := range window {
		blocks = append(blocks, it.Label)
	}
	text := fmt.Sprintf("Сторінка %d з %d\n\n%s",
		cur.Page+1, pagination.Pages(len(cur.Items), cur.PageSize),
		strings.Join(blocks, "\n\n"))

	markup := menu.ItemList(pickKey, cbPage, window, cur.Page, hasPrev, hasNext)
	if edit {
		return tghelpers.EditOrSend(c, text, markup)
	}
	return tghelpers.SendText(c, text, markup)
}

// cursorPageHandler flips the cursor to the requested page inside a picker
// dialog and re-renders in place.
func cursorPageHandler(pickKey string) dialog.HandlerFunc {
	return func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
		if s.Cursor == nil {
			return dialog.StateSame, nil
		}
		page, err := strconv.Atoi(ev.CallbackPayload)
		if err != nil {
			return dialog.StateSame, nil
		}
		s.Cursor.Page = pagination.Clamp(page, len(s.Cursor.Items), s.Cursor.PageSize)
		return dialog.StateSame, renderCursorPage(c, s, pickKey, true)
	}
}

// HandlePageCallback serves page flips after a read-only browse has
// finished: the dialog is gone but the cursor survives in the session.
func (f *Flows) HandlePageCallback(c tele.Context, payload string) error {
	return f.engine.Exec(c, func(c tele.Context, s *session.Session) error {
		if s.Cursor == nil {
			return nil
		}
		page, err := strconv.Atoi(payload)
		if err != nil {
			return nil
		}
		s.Cursor.Page = pagination.Clamp(page, len(s.Cursor.Items), s.Cursor.PageSize)
		return renderCursorPage(c, s, "", true)
	})
}

// browseDialog is the read-only listing: volunteers see their task feed,
// beneficiaries their own requests. It ends after the first render; paging
// continues via HandlePageCallback.
func (f *Flows) browseDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgBrowse,
		Enter: func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			if !s.Authenticated() {
				return dialog.StateTerminal, sendView(c, menu.Entry())
			}
			return "choose_type", sendView(c, typeChoiceView())
		},
		Transitions: map[dialog.State][]dialog.Transition{
			"choose_type": {
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.browseChooseType},
			},
			"choose_distance": {
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.browseChooseDistance},
			},
		},
	}
}

func (f *Flows) browseChooseType(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	appType, ok := applicationTypeFromButton(ev.Text)
	if !ok {
		return dialog.StateSame, tghelpers.SendText(c, "Оберіть тип заявок кнопкою.")
	}
	s.SetForm(formAppType, string(appType))

	// Volunteers narrow the available feed by distance first.
	if s.Role == session.RoleVolunteer && appType == backend.ApplicationsAvailable {
		return "choose_distance", sendView(c, distanceChoiceView())
	}
	if err := f.loadApplications(c, s, appType, 0); err != nil {
		return "", err
	}
	return dialog.StateTerminal, renderCursorPage(c, s, "", false)
}

func (f *Flows) browseChooseDistance(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	maxKm, ok := distanceFromButton(ev.Text)
	if !ok {
		return dialog.StateSame, tghelpers.SendText(c, "Оберіть відстань кнопкою.")
	}
	if err := f.loadApplications(c, s, backend.ApplicationType(s.FormValue(formAppType)), maxKm); err != nil {
		return "", err
	}
	return dialog.StateTerminal, renderCursorPage(c, s, "", false)
}

func distanceChoiceView() menu.View {
	return menu.Choice("На якій відстані шукати заявки?",
		btnDist5, btnDist10, btnDist20, btnDist50, btnDistAll)
}

func distanceFromButton(text string) (float64, bool) {
	switch text {
	case btnDist5:
		return 5, true
	case btnDist10:
		return 10, true
	case btnDist20:
		return 20, true
	case btnDist50:
		return 50, true
	case btnDistAll:
		return 0, true
	}
	return 0, false
}
