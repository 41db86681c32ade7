package flows

import (
	"strconv"
	"strings"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/menu"
	"github.com/MLokatsiun/tg-bot-volunteer/core/dialog"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tghelpers "github.com/MLokatsiun/tg-bot-volunteer/core/telegram/helpers"
	tele "gopkg.in/telebot.v4"
)

const (
	cbDone = "done"

	formPickedCategories = "picked_categories"
)

// editProfileDialog updates a volunteer's service location and category
// subscriptions in one pass.
func (f *Flows) editProfileDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgEditProfile,
		Enter: func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			if s.Role != session.RoleVolunteer {
				return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
			}
			return "enter_location", sendView(c, menu.LocationRequest(true))
		},
		Transitions: map[dialog.State][]dialog.Transition{
			"enter_location": {
				{On: dialog.Pattern{Kind: dialog.EventLocation}, Do: f.profileLocationShared},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.profileLocationTyped},
			},
			"choose_categories": {
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbCat}, Do: f.profileToggleCategory},
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbDone}, Do: f.profileSubmit},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Оберіть категорії кнопками, потім натисніть «Готово».")},
			},
		},
	}
}

func (f *Flows) profileLocationShared(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	msg := c.Message()
	if msg == nil || msg.Location == nil {
		return dialog.StateSame, tghelpers.SendText(c, "Не вдалося прочитати локацію. Спробуйте ще раз.")
	}
	return f.profileStoreLocation(c, s, float64(msg.Location.Lat), float64(msg.Location.Lng))
}

func (f *Flows) profileLocationTyped(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	lat, lon, err := ParseCoordinates(ev.Text)
	if err != nil {
		return dialog.StateSame, tghelpers.SendText(c,
			"Поділіться локацією або введіть координати у форматі: широта, довгота")
	}
	return f.profileStoreLocation(c, s, lat, lon)
}

func (f *Flows) profileStoreLocation(c tele.Context, s *session.Session, lat, lon float64) (dialog.State, error) {
	addr := f.geo.ReverseGeocode(tghelpers.BuildContext(c), lat, lon)
	s.SetForm(formLat, strconv.FormatFloat(lat, 'f', -1, 64))
	s.SetForm(formLon, strconv.FormatFloat(lon, 'f', -1, 64))
	s.SetForm(formAddress, addr)
	s.SetForm(formPickedCategories, "")

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
	markup := menu.ItemPicker(cbCat, items)
	markup.InlineKeyboard = append(markup.InlineKeyboard,
		[]tele.InlineButton{{Unique: cbDone, Text: "Готово"}})
	return "choose_categories", tghelpers.SendText(c,
		"Адресу оновлено: "+addr+"\nОберіть категорії, за якими хочете отримувати заявки:", markup)
}

func (f *Flows) profileToggleCategory(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	id, err := strconv.ParseInt(ev.CallbackPayload, 10, 64)
	if err != nil {
		return dialog.StateSame, nil
	}
	picked := splitIDs(s.FormValue(formPickedCategories))
	for _, p := range picked {
		if p == id {
			return dialog.StateSame, tghelpers.SendText(c, "Категорію вже додано.")
		}
	}
	picked = append(picked, id)
	s.SetForm(formPickedCategories, joinIDs(picked))
	return dialog.StateSame, tghelpers.SendText(c, "Категорію додано. Ще одну, або «Готово».")
}

func (f *Flows) profileSubmit(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	lat, _ := strconv.ParseFloat(s.FormValue(formLat), 64)
	lon, _ := strconv.ParseFloat(s.FormValue(formLon), 64)

	req := backend.EditProfileRequest{
		Location: &backend.Location{
			Latitude:  lat,
			Longitude: lon,
			Address:   s.FormValue(formAddress),
		},
		Categories: splitIDs(s.FormValue(formPickedCategories)),
	}

	ctx := tghelpers.BuildContext(c)
	err := f.guard.Do(ctx, s, func(token string) error {
		return f.api.EditVolunteerProfile(ctx, token, req)
	})
	if err != nil {
		return "", err
	}
	if err := tghelpers.SendText(c, "Профіль оновлено."); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
}

// deactivateProfileDialog disables the account after a confirmation step and
// signs the user out locally.
func (f *Flows) deactivateProfileDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgDeactivateProfile,
		Enter: func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			if s.Role != session.RoleVolunteer && s.Role != session.RoleBeneficiary {
				return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
			}
			return "confirm", sendView(c, menu.ConfirmCancel(
				"Профіль буде деактивовано, і ви вийдете з акаунта. Продовжити?"))
		},
		Transitions: map[dialog.State][]dialog.Transition{
			"confirm": {
				{On: dialog.Pattern{Kind: dialog.EventText, Text: menu.BtnConfirm}, Do: f.deactivateConfirmed},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Натисніть «Підтвердити» або «Скасувати».")},
			},
		},
	}
}

func (f *Flows) deactivateConfirmed(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	ctx := tghelpers.BuildContext(c)
	rolePath := s.Role.Path()

	err := f.guard.Do(ctx, s, func(token string) error {
		return f.api.DeactivateProfile(ctx, token, rolePath)
	})
	if err != nil {
		return "", err
	}
	s.ResetAuth()
	if err := tghelpers.SendText(c, "Профіль деактивовано."); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Entry())
}

func splitIDs(raw string) []int64 {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
