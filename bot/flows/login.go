package flows

import (
	"strconv"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/menu"
	"github.com/MLokatsiun/tg-bot-volunteer/core/dialog"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tghelpers "github.com/MLokatsiun/tg-bot-volunteer/core/telegram/helpers"
	tele "gopkg.in/telebot.v4"
)

func (f *Flows) loginDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgLogin,
		Enter: func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			return "choose_role", sendView(c, menu.LoginRoleChoice())
		},
		Transitions: map[dialog.State][]dialog.Transition{
			"choose_role": {
				{On: dialog.Pattern{Kind: dialog.EventText, Text: menu.BtnRoleVolunteer}, Do: f.loginAs(session.RoleVolunteer)},
				{On: dialog.Pattern{Kind: dialog.EventText, Text: menu.BtnRoleBeneficiary}, Do: f.loginAs(session.RoleBeneficiary)},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatView(menu.LoginRoleChoice())},
			},
		},
	}
}

func (f *Flows) loginAs(role session.Role) dialog.HandlerFunc {
	return func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
		return dialog.StateTerminal, f.tryLogin(c, s, role)
	}
}

// tryLogin attempts a role login. A forbidden answer means the account
// exists but is not verified yet, which gets the pending screen rather than
// an error.
func (f *Flows) tryLogin(c tele.Context, s *session.Session, role session.Role) error {
	ctx := tghelpers.BuildContext(c)

	pair, err := f.api.Login(ctx, strconv.FormatInt(s.UserID, 10), role.BackendID())
	if err != nil {
		if backend.IsKind(err, backend.KindForbidden) {
			return sendView(c, menu.PendingApproval(role))
		}
		return err
	}

	s.Role = role
	s.SetCredentials(pair.AccessToken, pair.RefreshToken)
	if err := tghelpers.SendText(c, "Вхід виконано."); err != nil {
		return err
	}
	return sendView(c, menu.Home(role))
}

// checkStatus is the "has the moderator approved me yet" re-login loop.
func (f *Flows) checkStatus(role session.Role) func(c tele.Context, s *session.Session) error {
	return func(c tele.Context, s *session.Session) error {
		return f.tryLogin(c, s, role)
	}
}

func (f *Flows) moderatorLoginDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgModeratorLogin,
		Enter: func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			return "enter_phone", sendView(c, menu.Prompt("Введіть номер телефону модератора:"))
		},
		Transitions: map[dialog.State][]dialog.Transition{
			"enter_phone": {
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.moderatorPhone},
			},
			"enter_password": {
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.moderatorPassword},
			},
		},
	}
}

func (f *Flows) moderatorPhone(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	phone, err := NormalizePhone(ev.Text)
	if err != nil {
		return dialog.StateSame, tghelpers.SendText(c, "Невірний формат номера. Спробуйте ще раз.")
	}
	s.SetForm(formPhone, phone)
	return "enter_password", sendView(c, menu.Prompt("Введіть пароль:"))
}

func (f *Flows) moderatorPassword(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	ctx := tghelpers.BuildContext(c)

	pair, err := f.api.LoginModerator(ctx, s.FormValue(formPhone), ev.Text)
	if err != nil {
		return "", err
	}
	s.Role = session.RoleModerator
	s.SetCredentials(pair.AccessToken, pair.RefreshToken)
	if err := tghelpers.SendText(c, "Вхід виконано."); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Home(session.RoleModerator))
}
