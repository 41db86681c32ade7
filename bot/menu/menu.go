// Package menu renders prompt text and keyboards from session state. It is
// pure: no I/O, no session mutation, so every screen is assertable in tests.
package menu

import (
	"fmt"

	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	"github.com/MLokatsiun/tg-bot-volunteer/core/telegram/keyboard"
	tele "gopkg.in/telebot.v4"
)

// Reply-keyboard button labels. Flows route on these, so they live here as
// the single source of truth for what the user sees.
const (
	BtnRegister       = "Зареєструватися"
	BtnLogin          = "Авторизація"
	BtnModeratorLogin = "Авторизація модератора"

	BtnCancel = "Скасувати"
	BtnExit   = "Вихід"

	BtnBecomeVolunteer   = "Стати волонтером"
	BtnBecomeBeneficiary = "Стати бенефіціаром"
	BtnRoleVolunteer     = "Волонтер"
	BtnRoleBeneficiary   = "Бенефіціар"

	BtnOnPhone = "Я на телефоні"
	BtnOnPC    = "Я використовую ПК"

	BtnSharePhone    = "Поділитися номером"
	BtnShareLocation = "Поділитися локацією"
	BtnConfirm       = "Підтвердити"

	BtnCheckVolunteerStatus   = "Перевірити статус волонтера"
	BtnCheckBeneficiaryStatus = "Перевірити статус бенефіціара"

	BtnVolunteerTasks      = "Список завдань"
	BtnVolunteerAccept     = "Прийняти заявку в обробку"
	BtnVolunteerClose      = "Закрити заявку"
	BtnVolunteerCancelTask = "Скасувати заявку"
	BtnEditProfile         = "Редагувати профіль"
	BtnDeactivateVolunteer = "Деактивувати профіль волонтера"

	BtnBeneficiaryCreate      = "Подати заявку"
	BtnBeneficiaryConfirm     = "Підтвердити заявку"
	BtnBeneficiaryDeactivate  = "Деактивувати заявку"
	BtnBeneficiaryList        = "Переглянути мої заявки"
	BtnDeactivateBeneficiary  = "Деактивувати профіль бенефіціара"

	BtnModeratorAddCategory    = "Додати категорію"
	BtnModeratorDeleteCategory = "Видалити категорію"
	BtnModeratorDeleteRequest  = "Видалити заявку"
	BtnModeratorVerifyUser     = "Перевірити користувача"
)

// View is one rendered screen: the message text plus its keyboard.
type View struct {
	Text   string
	Markup *tele.ReplyMarkup
}

// Entry is the screen for users without a session.
func Entry() View {
	return View{
		Text: "Вітаємо! Оберіть дію:",
		Markup: keyboard.ReplyButtons(
			[]string{BtnRegister, BtnLogin},
			[]string{BtnModeratorLogin},
		),
	}
}

// Home renders the main menu of an authenticated role. Unauthenticated
// sessions fall back to the entry screen.
func Home(role session.Role) View {
	switch role {
	case session.RoleVolunteer:
		return View{
			Text: "Головне меню волонтера:",
			Markup: keyboard.ReplyButtons(
				[]string{BtnVolunteerTasks},
				[]string{BtnVolunteerAccept},
				[]string{BtnVolunteerClose},
				[]string{BtnVolunteerCancelTask},
				[]string{BtnEditProfile},
				[]string{BtnDeactivateVolunteer},
				[]string{BtnExit},
			),
		}
	case session.RoleBeneficiary:
		return View{
			Text: "Головне меню бенефіціара:",
			Markup: keyboard.ReplyButtons(
				[]string{BtnBeneficiaryCreate},
				[]string{BtnBeneficiaryConfirm},
				[]string{BtnBeneficiaryDeactivate},
				[]string{BtnBeneficiaryList},
				[]string{BtnDeactivateBeneficiary},
				[]string{BtnExit},
			),
		}
	case session.RoleModerator:
		return View{
			Text: "Меню модератора:",
			Markup: keyboard.ReplyButtons(
				[]string{BtnModeratorAddCategory},
				[]string{BtnModeratorDeleteCategory},
				[]string{BtnModeratorDeleteRequest},
				[]string{BtnModeratorVerifyUser},
				[]string{BtnExit},
			),
		}
	}
	return Entry()
}

// PendingApproval is shown after registration while the account awaits
// moderator verification.
func PendingApproval(role session.Role) View {
	check := BtnCheckBeneficiaryStatus
	if role == session.RoleVolunteer {
		check = BtnCheckVolunteerStatus
	}
	return View{
		Text: "Ваш акаунт очікує підтвердження модератором.",
		Markup: keyboard.ReplyButtons(
			[]string{check},
			[]string{BtnCancel},
		),
	}
}

// RoleChoice asks which role to register as.
func RoleChoice() View {
	return View{
		Text: "Кого ви хочете зареєструвати?",
		Markup: keyboard.ReplyButtons(
			[]string{BtnBecomeVolunteer, BtnBecomeBeneficiary},
			[]string{BtnCancel},
		),
	}
}

// LoginRoleChoice asks which role to log in as.
func LoginRoleChoice() View {
	return View{
		Text: "Оберіть роль для входу:",
		Markup: keyboard.ReplyButtons(
			[]string{BtnRoleBeneficiary, BtnRoleVolunteer},
			[]string{BtnCancel},
		),
	}
}

// PhoneRequest asks for the phone number with a share-contact button.
func PhoneRequest() View {
	return View{
		Text: "Надішліть свій номер телефону або введіть його вручну:",
		Markup: keyboard.ReplyRequestButtons(
			[]keyboard.ReplyBtn{{Text: BtnSharePhone, Contact: true}},
			[]keyboard.ReplyBtn{{Text: BtnCancel}},
		),
	}
}

// DeviceChoice asks whether the volunteer is on a phone, which decides how
// the location step works.
func DeviceChoice() View {
	return View{
		Text: "З якого пристрою ви користуєтесь ботом?",
		Markup: keyboard.ReplyButtons(
			[]string{BtnOnPhone},
			[]string{BtnOnPC},
			[]string{BtnCancel},
		),
	}
}

// LocationRequest asks for a location. With share=true a share-location
// button is offered; otherwise the user types "широта, довгота".
func LocationRequest(share bool) View {
	if share {
		return View{
			Text: "Поділіться своєю локацією:",
			Markup: keyboard.ReplyRequestButtons(
				[]keyboard.ReplyBtn{{Text: BtnShareLocation, Location: true}},
				[]keyboard.ReplyBtn{{Text: BtnCancel}},
			),
		}
	}
	return View{
		Text: "Введіть координати у форматі: широта, довгота",
		Markup: keyboard.ReplyButtons(
			[]string{BtnCancel},
		),
	}
}

// Choice renders a question with one reply button per option plus cancel.
func Choice(text string, options ...string) View {
	rows := make([][]string, 0, len(options)+1)
	for _, opt := range options {
		rows = append(rows, []string{opt})
	}
	rows = append(rows, []string{BtnCancel})
	return View{Text: text, Markup: keyboard.ReplyButtons(rows...)}
}

// ConfirmCancel is a confirm step with the standard pair of buttons.
func ConfirmCancel(text string) View {
	return View{
		Text: text,
		Markup: keyboard.ReplyButtons(
			[]string{BtnConfirm},
			[]string{BtnCancel},
		),
	}
}

// Prompt is a plain question with only a cancel escape hatch.
func Prompt(text string) View {
	return View{
		Text: text,
		Markup: keyboard.ReplyButtons(
			[]string{BtnCancel},
		),
	}
}

// PageNav builds the inline prev/next controls for a paged list. key is the
// callback key the browse flow listens on.
func PageNav(key string, page int, hasPrev, hasNext bool) *tele.ReplyMarkup {
	var row []keyboard.InlineBtn
	if hasPrev {
		row = append(row, keyboard.InlineBtn{Text: "⬅️ Назад", Unique: key, Data: fmt.Sprintf("%d", page-1)})
	}
	if hasNext {
		row = append(row, keyboard.InlineBtn{Text: "Вперед ➡️", Unique: key, Data: fmt.Sprintf("%d", page+1)})
	}
	if len(row) == 0 {
		return nil
	}
	return keyboard.InlineButtonsRows(row)
}

// ItemList combines per-item pick buttons with the page navigation row.
// pickKey may be empty for read-only lists; then only navigation renders.
func ItemList(pickKey, pageKey string, window []session.Item, page int, hasPrev, hasNext bool) *tele.ReplyMarkup {
	var rows [][]keyboard.InlineBtn
	if pickKey != "" {
		for _, it := range window {
			rows = append(rows, []keyboard.InlineBtn{{
				Text:   fmt.Sprintf("Заявка %d", it.ID),
				Unique: pickKey,
				Data:   fmt.Sprintf("%d", it.ID),
			}})
		}
	}
	var nav []keyboard.InlineBtn
	if hasPrev {
		nav = append(nav, keyboard.InlineBtn{Text: "⬅️ Назад", Unique: pageKey, Data: fmt.Sprintf("%d", page-1)})
	}
	if hasNext {
		nav = append(nav, keyboard.InlineBtn{Text: "Вперед ➡️", Unique: pageKey, Data: fmt.Sprintf("%d", page+1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	if len(rows) == 0 {
		return nil
	}
	return keyboard.InlineButtonsRows(rows...)
}

// ItemPicker renders one inline button per item so the user selects by tap,
// never by typing an id.
func ItemPicker(key string, items []session.Item) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(items))
	for _, it := range items {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   it.Label,
			Unique: key,
			Data:   fmt.Sprintf("%d", it.ID),
		})
	}
	return keyboard.InlineButtons(buttons)
}
