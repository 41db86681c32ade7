package flows

import (
	"fmt"
	"strconv"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/menu"
	"github.com/MLokatsiun/tg-bot-volunteer/core/dialog"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tghelpers "github.com/MLokatsiun/tg-bot-volunteer/core/telegram/helpers"
	tele "gopkg.in/telebot.v4"
)

// Form keys shared by the auth flows.
const (
	formRole       = "role_id"
	formPhone      = "phone"
	formFirst      = "firstname"
	formLast       = "lastname"
	formPatronymic = "patronymic"
	formLat        = "lat"
	formLon        = "lon"
	formAddress    = "address"
)

const namePrompt = "Введіть своє повне ім'я в одному рядку, розділяючи частини пробілами.\n" +
	"Наприклад: Петренко Іван Іванович, Петренко Іван, або лише Іван."

func (f *Flows) registerDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgRegister,
		Enter: func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			return "choose_role", sendView(c, menu.RoleChoice())
		},
		Transitions: map[dialog.State][]dialog.Transition{
			"choose_role": {
				{On: dialog.Pattern{Kind: dialog.EventText, Text: menu.BtnBecomeVolunteer}, Do: f.chooseRegisterRole(session.RoleVolunteer)},
				{On: dialog.Pattern{Kind: dialog.EventText, Text: menu.BtnBecomeBeneficiary}, Do: f.chooseRegisterRole(session.RoleBeneficiary)},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatView(menu.RoleChoice())},
			},
			"enter_phone": {
				{On: dialog.Pattern{Kind: dialog.EventContact}, Do: f.registerPhone},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.registerPhone},
			},
			"enter_name": {
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.registerName},
			},
			"choose_device": {
				{On: dialog.Pattern{Kind: dialog.EventText, Text: menu.BtnOnPhone}, Do: f.chooseDevice(true)},
				{On: dialog.Pattern{Kind: dialog.EventText, Text: menu.BtnOnPC}, Do: f.chooseDevice(false)},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatView(menu.DeviceChoice())},
			},
			"enter_location": {
				{On: dialog.Pattern{Kind: dialog.EventLocation}, Do: f.registerLocationShared},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.registerLocationTyped},
			},
			"confirm": {
				{On: dialog.Pattern{Kind: dialog.EventText, Text: menu.BtnConfirm}, Do: f.submitRegistration},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Натисніть «Підтвердити» або «Скасувати».")},
			},
		},
	}
}

// repeatView re-shows a static screen and keeps the state.
func repeatView(v menu.View) dialog.HandlerFunc {
	return func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
		return dialog.StateSame, sendView(c, v)
	}
}

// repeatText re-prompts with plain text and keeps the state.
func repeatText(text string) dialog.HandlerFunc {
	return func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
		return dialog.StateSame, tghelpers.SendText(c, text)
	}
}

func (f *Flows) chooseRegisterRole(role session.Role) dialog.HandlerFunc {
	return func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
		s.SetForm(formRole, strconv.Itoa(role.BackendID()))
		return "enter_phone", sendView(c, menu.PhoneRequest())
	}
}

func (f *Flows) registerPhone(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	phone, err := NormalizePhone(ev.Text)
	if err != nil {
		return dialog.StateSame, tghelpers.SendText(c,
			"Номер має починатися з +380, 380 або 8. Спробуйте ще раз.")
	}
	s.SetForm(formPhone, phone)
	return "enter_name", sendView(c, menu.Prompt(namePrompt))
}

func (f *Flows) registerName(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	name, err := ParseFullName(ev.Text)
	if err != nil {
		return dialog.StateSame, tghelpers.SendText(c,
			"Ім'я має складатися лише з літер. Спробуйте ще раз.")
	}
	s.SetForm(formFirst, name.First)
	s.SetForm(formLast, name.Last)
	s.SetForm(formPatronymic, name.Patronymic)

	// Volunteers serve an area, so registration needs their location.
	if s.FormValue(formRole) == strconv.Itoa(session.RoleVolunteer.BackendID()) {
		return "choose_device", sendView(c, menu.DeviceChoice())
	}
	return f.showRegistrationSummary(c, s)
}

func (f *Flows) chooseDevice(onPhone bool) dialog.HandlerFunc {
	return func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
		return "enter_location", sendView(c, menu.LocationRequest(onPhone))
	}
}

func (f *Flows) registerLocationShared(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	msg := c.Message()
	if msg == nil || msg.Location == nil {
		return dialog.StateSame, tghelpers.SendText(c, "Не вдалося прочитати локацію. Спробуйте ще раз.")
	}
	return f.storeLocation(c, s, float64(msg.Location.Lat), float64(msg.Location.Lng))
}

func (f *Flows) registerLocationTyped(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	lat, lon, err := ParseCoordinates(ev.Text)
	if err != nil {
		return dialog.StateSame, tghelpers.SendText(c,
			"Введіть координати у форматі: широта, довгота. Наприклад: 50.4501, 30.5234")
	}
	return f.storeLocation(c, s, lat, lon)
}

func (f *Flows) storeLocation(c tele.Context, s *session.Session, lat, lon float64) (dialog.State, error) {
	addr := f.geo.ReverseGeocode(tghelpers.BuildContext(c), lat, lon)
	s.SetForm(formLat, strconv.FormatFloat(lat, 'f', -1, 64))
	s.SetForm(formLon, strconv.FormatFloat(lon, 'f', -1, 64))
	s.SetForm(formAddress, addr)

	if err := tghelpers.SendText(c, "Визначена адреса: "+addr); err != nil {
		return dialog.StateSame, err
	}
	return f.showRegistrationSummary(c, s)
}

func (f *Flows) showRegistrationSummary(c tele.Context, s *session.Session) (dialog.State, error) {
	summary := fmt.Sprintf(
		"Перевірте дані:\nТелефон: %s\nІм'я: %s %s %s",
		s.FormValue(formPhone), s.FormValue(formLast), s.FormValue(formFirst), s.FormValue(formPatronymic),
	)
	if addr := s.FormValue(formAddress); addr != "" {
		summary += "\nАдреса: " + addr
	}
	return "confirm", sendView(c, menu.ConfirmCancel(summary))
}

func (f *Flows) submitRegistration(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	ctx := tghelpers.BuildContext(c)
	roleID, _ := strconv.Atoi(s.FormValue(formRole))

	req := backend.RegisterRequest{
		PhoneNum:   s.FormValue(formPhone),
		TgID:       strconv.FormatInt(s.UserID, 10),
		Firstname:  s.FormValue(formFirst),
		Lastname:   s.FormValue(formLast),
		Patronymic: s.FormValue(formPatronymic),
		RoleID:     roleID,
	}
	if lat := s.FormValue(formLat); lat != "" {
		latF, _ := strconv.ParseFloat(lat, 64)
		lonF, _ := strconv.ParseFloat(s.FormValue(formLon), 64)
		req.Location = &backend.Location{
			Latitude:  latF,
			Longitude: lonF,
			Address:   s.FormValue(formAddress),
		}
	}

	if err := f.api.Register(ctx, req); err != nil {
		return "", err
	}
	role := roleFromID(roleID)
	if err := tghelpers.SendText(c, "Реєстрацію подано."); err != nil {
		return "", err
	}
	// New accounts need moderator approval before login succeeds.
	return dialog.StateTerminal, f.tryLogin(c, s, role)
}

func roleFromID(id int) session.Role {
	switch id {
	case session.RoleBeneficiary.BackendID():
		return session.RoleBeneficiary
	case session.RoleVolunteer.BackendID():
		return session.RoleVolunteer
	case session.RoleModerator.BackendID():
		return session.RoleModerator
	}
	return session.RoleUnauthenticated
}
