package flows

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/menu"
	"github.com/MLokatsiun/tg-bot-volunteer/core/dialog"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tghelpers "github.com/MLokatsiun/tg-bot-volunteer/core/telegram/helpers"
	tele "gopkg.in/telebot.v4"
)

const (
	formDescription = "description"
	formCategory    = "category_id"
	formActiveTo    = "active_to"
)

func (f *Flows) createApplicationDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgCreateApplication,
		Enter: func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			if s.Role != session.RoleBeneficiary {
				return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
			}
			return "enter_description", sendView(c, menu.Prompt("Опишіть, яка допомога потрібна:"))
		},
		Transitions: map[dialog.State][]dialog.Transition{
			"enter_description": {
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.createDescription},
			},
			"choose_category": {
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbSkip}, Do: f.createCategorySkipped},
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbCat}, Do: f.createCategoryPicked},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Оберіть категорію кнопкою або натисніть «Пропустити».")},
			},
			"enter_location": {
				{On: dialog.Pattern{Kind: dialog.EventLocation}, Do: f.createLocationShared},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.createLocationTyped},
			},
			"enter_active_to": {
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.createActiveTo},
			},
			"confirm": {
				{On: dialog.Pattern{Kind: dialog.EventText, Text: menu.BtnConfirm}, Do: f.createSubmit},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Натисніть «Підтвердити» або «Скасувати».")},
			},
		},
	}
}

func (f *Flows) createDescription(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	if utf8.RuneCountInString(ev.Text) < 5 {
		return dialog.StateSame, tghelpers.SendText(c, "Опис закороткий. Додайте деталі.")
	}
	s.SetForm(formDescription, ev.Text)

	cats, err := f.api.ListCategories(tghelpers.BuildContext(c))
	if err != nil {
		return "", err
	}
	items := make([]session.Item, 0, len(cats))
	for _, cat := range cats {
		if cat.IsActive {
			items = append(items, session.Item{ID: cat.ID, Label: cat.Name})
		}
	}
	if len(items) == 0 {
		s.SetForm(formCategory, "")
		return "enter_location", sendView(c, menu.LocationRequest(true))
	}

	markup := menu.ItemPicker(cbCat, items)
	markup.InlineKeyboard = append(markup.InlineKeyboard,
		[]tele.InlineButton{{Unique: cbSkip, Text: "Пропустити"}})
	return "choose_category", tghelpers.SendText(c, "Оберіть категорію допомоги:", markup)
}

func (f *Flows) createCategoryPicked(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	if _, err := strconv.ParseInt(ev.CallbackPayload, 10, 64); err != nil {
		return dialog.StateSame, nil
	}
	s.SetForm(formCategory, ev.CallbackPayload)
	return "enter_location", sendView(c, menu.LocationRequest(true))
}

func (f *Flows) createCategorySkipped(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	s.SetForm(formCategory, "")
	return "enter_location", sendView(c, menu.LocationRequest(true))
}

func (f *Flows) createLocationShared(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	msg := c.Message()
	if msg == nil || msg.Location == nil {
		return dialog.StateSame, tghelpers.SendText(c, "Не вдалося прочитати локацію. Спробуйте ще раз.")
	}
	lat, lon := float64(msg.Location.Lat), float64(msg.Location.Lng)
	addr := f.geo.ReverseGeocode(tghelpers.BuildContext(c), lat, lon)
	s.SetForm(formLat, strconv.FormatFloat(lat, 'f', -1, 64))
	s.SetForm(formLon, strconv.FormatFloat(lon, 'f', -1, 64))
	s.SetForm(formAddress, addr)
	return "enter_active_to", sendView(c, menu.Prompt(
		"До якої дати заявка актуальна? Формат: 31.12.2026 або 2026-12-31"))
}

// createLocationTyped accepts either coordinates or a plain address line.
func (f *Flows) createLocationTyped(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	if lat, lon, err := ParseCoordinates(ev.Text); err == nil {
		addr := f.geo.ReverseGeocode(tghelpers.BuildContext(c), lat, lon)
		s.SetForm(formLat, strconv.FormatFloat(lat, 'f', -1, 64))
		s.SetForm(formLon, strconv.FormatFloat(lon, 'f', -1, 64))
		s.SetForm(formAddress, addr)
	} else {
		s.SetForm(formLat, "")
		s.SetForm(formLon, "")
		s.SetForm(formAddress, ev.Text)
	}
	return "enter_active_to", sendView(c, menu.Prompt(
		"До якої дати заявка актуальна? Формат: 31.12.2026 або 2026-12-31"))
}

func (f *Flows) createActiveTo(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	t, ok := tghelpers.ParseFlexibleDate(ev.Text)
	if !ok {
		return dialog.StateSame, tghelpers.SendText(c, "Не вдалося розпізнати дату. Приклад: 31.12.2026")
	}
	if t.Before(time.Now()) {
		return dialog.StateSame, tghelpers.SendText(c, "Дата вже минула. Вкажіть майбутню дату.")
	}
	s.SetForm(formActiveTo, t.Format(backend.ActiveToLayout))

	summary := fmt.Sprintf("Перевірте заявку:\nОпис: %s\nАдреса: %s\nДійсна до: %s",
		s.FormValue(formDescription), s.FormValue(formAddress), t.Format("02.01.2006"))
	return "confirm", sendView(c, menu.ConfirmCancel(summary))
}

func (f *Flows) createSubmit(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	req := backend.CreateApplicationRequest{
		Description: s.FormValue(formDescription),
		ActiveTo:    s.FormValue(formActiveTo),
	}
	if v := s.FormValue(formCategory); v != "" {
		id, _ := strconv.ParseInt(v, 10, 64)
		req.CategoryID = &id
	}
	if v := s.FormValue(formAddress); v != "" {
		addr := v
		req.Address = &addr
	}
	if v := s.FormValue(formLat); v != "" {
		lat, _ := strconv.ParseFloat(v, 64)
		lon, _ := strconv.ParseFloat(s.FormValue(formLon), 64)
		req.Latitude, req.Longitude = &lat, &lon
	}

	ctx := tghelpers.BuildContext(c)
	var created backend.Application
	err := f.guard.Do(ctx, s, func(token string) error {
		var callErr error
		created, callErr = f.api.CreateApplication(ctx, token, req)
		return callErr
	})
	if err != nil {
		return "", err
	}
	if err := tghelpers.SendText(c, fmt.Sprintf("Заявку %d створено.", created.ID)); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
}

func (f *Flows) confirmApplicationDialog() *dialog.Definition {
	return f.pickDialog(dlgConfirmApplication, session.RoleBeneficiary, backend.ApplicationsInProgress,
		"Оберіть заявку, виконання якої підтверджуєте:", f.confirmPicked)
}

func (f *Flows) confirmPicked(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	id, err := pickedID(ev)
	if err != nil {
		return dialog.StateSame, nil
	}
	ctx := tghelpers.BuildContext(c)
	err = f.guard.Do(ctx, s, func(token string) error {
		return f.api.ConfirmApplication(ctx, token, id)
	})
	if err != nil {
		return "", err
	}
	if err := tghelpers.SendText(c, fmt.Sprintf("Виконання заявки %d підтверджено.", id)); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
}

func (f *Flows) deleteApplicationDialog() *dialog.Definition {
	return f.pickDialog(dlgDeleteApplication, session.RoleBeneficiary, backend.ApplicationsAvailable,
		"Оберіть заявку, яку деактивуєте:", f.deletePicked)
}

func (f *Flows) deletePicked(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	id, err := pickedID(ev)
	if err != nil {
		return dialog.StateSame, nil
	}
	ctx := tghelpers.BuildContext(c)
	err = f.guard.Do(ctx, s, func(token string) error {
		return f.api.DeleteApplication(ctx, token, id)
	})
	if err != nil {
		return "", err
	}
	if err := tghelpers.SendText(c, fmt.Sprintf("Заявку %d деактивовано.", id)); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
}
