package flows

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/menu"
	"github.com/MLokatsiun/tg-bot-volunteer/core/dialog"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tghelpers "github.com/MLokatsiun/tg-bot-volunteer/core/telegram/helpers"
	tele "gopkg.in/telebot.v4"
)

const (
	cbUser    = "usr"
	cbApprove = "ok"
	cbReject  = "no"

	formCategoryName = "category_name"
	formPickedUser   = "picked_user"
)

// moderatorEnter guards a moderator dialog and runs the first step.
func (f *Flows) moderatorEnter(first dialog.HandlerFunc) dialog.HandlerFunc {
	return func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
		if s.Role != session.RoleModerator {
			return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
		}
		return first(c, s, ev)
	}
}

func (f *Flows) addCategoryDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgAddCategory,
		Enter: f.moderatorEnter(func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			return "enter_name", sendView(c, menu.Prompt("Введіть назву нової категорії:"))
		}),
		Transitions: map[dialog.State][]dialog.Transition{
			"enter_name": {
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.categoryName},
			},
			"choose_parent": {
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbSkip}, Do: f.categoryCreate(nil)},
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbCat}, Do: f.categoryCreateWithParent},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Оберіть батьківську категорію або натисніть «Пропустити».")},
			},
		},
	}
}

func (f *Flows) categoryName(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	name := strings.TrimSpace(ev.Text)
	if name == "" {
		return dialog.StateSame, tghelpers.SendText(c, "Назва не може бути порожньою.")
	}
	s.SetForm(formCategoryName, name)

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
		[]tele.InlineButton{{Unique: cbSkip, Text: "Пропустити"}})
	return "choose_parent", tghelpers.SendText(c, "Оберіть батьківську категорію:", markup)
}

func (f *Flows) categoryCreateWithParent(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	id, err := strconv.ParseInt(ev.CallbackPayload, 10, 64)
	if err != nil {
		return dialog.StateSame, nil
	}
	return f.categoryCreate(&id)(c, s, ev)
}

func (f *Flows) categoryCreate(parentID *int64) dialog.HandlerFunc {
	return func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
		ctx := tghelpers.BuildContext(c)
		name := s.FormValue(formCategoryName)

		err := f.guard.Do(ctx, s, func(token string) error {
			_, callErr := f.api.CreateOrActivateCategory(ctx, token, name, parentID)
			return callErr
		})
		if err != nil {
			return "", err
		}
		if err := tghelpers.SendText(c, fmt.Sprintf("Категорію «%s» збережено.", name)); err != nil {
			return "", err
		}
		return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
	}
}

func (f *Flows) deleteCategoryDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgDeleteCategory,
		Enter: f.moderatorEnter(func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
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
				if err := tghelpers.SendText(c, "Активних категорій немає."); err != nil {
					return "", err
				}
				return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
			}
			return "pick", tghelpers.SendText(c, "Оберіть категорію для деактивації:", menu.ItemPicker(cbCat, items))
		}),
		Transitions: map[dialog.State][]dialog.Transition{
			"pick": {
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbCat}, Do: f.categoryDeactivate},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Оберіть категорію кнопкою.")},
			},
		},
	}
}

func (f *Flows) categoryDeactivate(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	id, err := strconv.ParseInt(ev.CallbackPayload, 10, 64)
	if err != nil {
		return dialog.StateSame, nil
	}
	ctx := tghelpers.BuildContext(c)
	err = f.guard.Do(ctx, s, func(token string) error {
		return f.api.DeactivateCategory(ctx, token, id)
	})
	if err != nil {
		return "", err
	}
	if err := tghelpers.SendText(c, "Категорію деактивовано."); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
}

func (f *Flows) deleteRequestDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgDeleteRequest,
		Enter: f.moderatorEnter(func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			return "enter_id", sendView(c, menu.Prompt("Введіть номер заявки для видалення:"))
		}),
		Transitions: map[dialog.State][]dialog.Transition{
			"enter_id": {
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: f.moderatorDeleteRequest},
			},
		},
	}
}

func (f *Flows) moderatorDeleteRequest(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
	if err != nil {
		return dialog.StateSame, tghelpers.SendText(c, "Введіть числовий номер заявки.")
	}
	ctx := tghelpers.BuildContext(c)
	err = f.guard.Do(ctx, s, func(token string) error {
		return f.api.DeleteApplicationModerator(ctx, token, id)
	})
	if err != nil {
		return "", err
	}
	if err := tghelpers.SendText(c, fmt.Sprintf("Заявку %d видалено.", id)); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
}

func (f *Flows) verifyUserDialog() *dialog.Definition {
	return &dialog.Definition{
		Name: dlgVerifyUser,
		Enter: f.moderatorEnter(func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			customers, err := f.api.ListCustomers(tghelpers.BuildContext(c))
			if err != nil {
				return "", err
			}
			items := make([]session.Item, 0, len(customers))
			for _, u := range customers {
				if u.IsVerified {
					continue
				}
				label := strings.TrimSpace(fmt.Sprintf("%s %s, %s", u.Lastname, u.Firstname, u.PhoneNum))
				items = append(items, session.Item{ID: u.ID, Label: label})
			}
			if len(items) == 0 {
				if err := tghelpers.SendText(c, "Немає користувачів, що очікують перевірки."); err != nil {
					return "", err
				}
				return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
			}
			return "pick", tghelpers.SendText(c, "Оберіть користувача:", menu.ItemPicker(cbUser, items))
		}),
		Transitions: map[dialog.State][]dialog.Transition{
			"pick": {
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbUser}, Do: f.verifyUserPicked},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Оберіть користувача кнопкою.")},
			},
			"decide": {
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbApprove}, Do: f.verifyUserDecide(true)},
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbReject}, Do: f.verifyUserDecide(false)},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Підтвердіть або відхиліть користувача кнопкою.")},
			},
		},
	}
}

func (f *Flows) verifyUserPicked(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	if _, err := strconv.ParseInt(ev.CallbackPayload, 10, 64); err != nil {
		return dialog.StateSame, nil
	}
	s.SetForm(formPickedUser, ev.CallbackPayload)

	markup := &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		{Unique: cbApprove, Text: "Підтвердити"},
		{Unique: cbReject, Text: "Відхилити"},
	}}}
	return "decide", tghelpers.SendText(c, "Підтвердити цього користувача?", markup)
}

func (f *Flows) verifyUserDecide(approved bool) dialog.HandlerFunc {
	return func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
		userID, err := strconv.ParseInt(s.FormValue(formPickedUser), 10, 64)
		if err != nil {
			return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
		}
		ctx := tghelpers.BuildContext(c)
		err = f.guard.Do(ctx, s, func(token string) error {
			return f.api.VerifyUser(ctx, token, userID, approved)
		})
		if err != nil {
			return "", err
		}
		verdict := "підтверджено"
		if !approved {
			verdict = "відхилено"
		}
		if err := tghelpers.SendText(c, "Користувача "+verdict+"."); err != nil {
			return "", err
		}
		return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
	}
}
