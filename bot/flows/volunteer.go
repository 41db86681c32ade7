package flows

import (
	"fmt"
	"io"
	"strconv"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/attach"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/menu"
	"github.com/MLokatsiun/tg-bot-volunteer/core/dialog"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tghelpers "github.com/MLokatsiun/tg-bot-volunteer/core/telegram/helpers"
	tele "gopkg.in/telebot.v4"
)

const (
	formPickedApp  = "picked_app"
	formFileCount  = "file_count"
	btnFinishFiles = "Завершити"
)

// pickDialog is the shared "list, tap one, act" skeleton used by the
// volunteer and beneficiary management flows.
func (f *Flows) pickDialog(name string, role session.Role, appType backend.ApplicationType, header string, act dialog.HandlerFunc) *dialog.Definition {
	return &dialog.Definition{
		Name: name,
		Enter: func(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
			if s.Role != role {
				return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
			}
			if err := f.loadApplications(c, s, appType, 0); err != nil {
				return "", err
			}
			if s.Cursor == nil || len(s.Cursor.Items) == 0 {
				if err := tghelpers.SendText(c, "Заявок не знайдено."); err != nil {
					return "", err
				}
				return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
			}
			if err := tghelpers.SendText(c, header); err != nil {
				return "", err
			}
			return "pick", renderCursorPage(c, s, cbPick, false)
		},
		Transitions: map[dialog.State][]dialog.Transition{
			"pick": {
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbPage}, Do: cursorPageHandler(cbPick)},
				{On: dialog.Pattern{Kind: dialog.EventCallback, Callback: cbPick}, Do: act},
				{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Оберіть заявку кнопкою під списком.")},
			},
		},
	}
}

// pickedID reads the tapped application id from the callback payload.
func pickedID(ev dialog.Event) (int64, error) {
	return strconv.ParseInt(ev.CallbackPayload, 10, 64)
}

func (f *Flows) acceptDialog() *dialog.Definition {
	return f.pickDialog(dlgAccept, session.RoleVolunteer, backend.ApplicationsAvailable,
		"Оберіть заявку, яку берете в роботу:", f.acceptPicked)
}

func (f *Flows) acceptPicked(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	id, err := pickedID(ev)
	if err != nil {
		return dialog.StateSame, nil
	}
	ctx := tghelpers.BuildContext(c)
	err = f.guard.Do(ctx, s, func(token string) error {
		return f.api.AcceptApplication(ctx, token, id)
	})
	if err != nil {
		return "", err
	}
	if err := tghelpers.SendText(c, fmt.Sprintf("Заявку %d прийнято в роботу.", id)); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
}

func (f *Flows) cancelTaskDialog() *dialog.Definition {
	return f.pickDialog(dlgCancelTask, session.RoleVolunteer, backend.ApplicationsInProgress,
		"Оберіть заявку, від якої відмовляєтесь:", f.cancelPicked)
}

func (f *Flows) cancelPicked(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	id, err := pickedID(ev)
	if err != nil {
		return dialog.StateSame, nil
	}
	ctx := tghelpers.BuildContext(c)
	err = f.guard.Do(ctx, s, func(token string) error {
		return f.api.CancelApplication(ctx, token, id)
	})
	if err != nil {
		return "", err
	}
	if err := tghelpers.SendText(c, fmt.Sprintf("Заявку %d повернено до доступних.", id)); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
}

// closeDialog adds a file-upload step after picking: the volunteer attaches
// report photos, then finishes with a button.
func (f *Flows) closeDialog() *dialog.Definition {
	def := f.pickDialog(dlgClose, session.RoleVolunteer, backend.ApplicationsInProgress,
		"Оберіть заявку, яку закриваєте:", f.closePicked)
	def.Transitions["collect_files"] = []dialog.Transition{
		{On: dialog.Pattern{Kind: dialog.EventDocument}, Do: f.closeCollectFile},
		{On: dialog.Pattern{Kind: dialog.EventText, Text: btnFinishFiles}, Do: f.closeSubmit},
		{On: dialog.Pattern{Kind: dialog.EventText}, Do: repeatText("Надішліть фото звіту або натисніть «Завершити».")},
	}
	return def
}

func (f *Flows) closePicked(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	id, err := pickedID(ev)
	if err != nil {
		return dialog.StateSame, nil
	}
	s.SetForm(formPickedApp, strconv.FormatInt(id, 10))
	s.SetForm(formFileCount, "0")
	return "collect_files", sendView(c, menu.Choice(
		"Надішліть фото виконаної роботи. Коли все додано, натисніть «Завершити».",
		btnFinishFiles))
}

// closeCollectFile downloads one attached photo and stages it in the form.
// Files are kept as temp references by file id; the actual bytes are pulled
// at submit time so a cancelled dialog costs nothing.
func (f *Flows) closeCollectFile(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	msg := c.Message()
	fileID := ""
	switch {
	case msg == nil:
		return dialog.StateSame, nil
	case msg.Photo != nil:
		fileID = msg.Photo.FileID
	case msg.Document != nil:
		fileID = msg.Document.FileID
	default:
		return dialog.StateSame, tghelpers.SendText(c, "Надішліть фото або документ.")
	}

	n, _ := strconv.Atoi(s.FormValue(formFileCount))
	s.SetForm(fmt.Sprintf("file_%d", n), fileID)
	s.SetForm(formFileCount, strconv.Itoa(n+1))
	return dialog.StateSame, tghelpers.SendText(c, fmt.Sprintf("Файл %d додано.", n+1))
}

func (f *Flows) closeSubmit(c tele.Context, s *session.Session, ev dialog.Event) (dialog.State, error) {
	n, _ := strconv.Atoi(s.FormValue(formFileCount))
	if n == 0 {
		return dialog.StateSame, tghelpers.SendText(c, "Додайте хоча б один файл звіту.")
	}

	files := make([]backend.ReportFile, 0, n)
	for i := 0; i < n; i++ {
		fileID := s.FormValue(fmt.Sprintf("file_%d", i))
		data, err := downloadTelegramFile(c, fileID)
		if err != nil {
			return "", err
		}
		name := fmt.Sprintf("report_%d.jpg", i+1)
		prepared, err := attach.Prepare(name, data)
		if err != nil {
			return dialog.StateSame, tghelpers.SendText(c,
				fmt.Sprintf("Файл %d завеликий і не може бути стиснутий. Надішліть інший.", i+1))
		}
		files = append(files, backend.ReportFile{Name: name, Data: prepared})
	}

	id, _ := strconv.ParseInt(s.FormValue(formPickedApp), 10, 64)
	ctx := tghelpers.BuildContext(c)
	err := f.guard.Do(ctx, s, func(token string) error {
		return f.api.CloseApplication(ctx, token, id, files)
	})
	if err != nil {
		return "", err
	}
	if err := tghelpers.SendText(c, fmt.Sprintf("Заявку %d закрито. Дякуємо!", id)); err != nil {
		return "", err
	}
	return dialog.StateTerminal, sendView(c, menu.Home(s.Role))
}

// downloadTelegramFile pulls the raw bytes of an uploaded file.
func downloadTelegramFile(c tele.Context, fileID string) ([]byte, error) {
	rc, err := c.Bot().File(&tele.File{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("flows: download file: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
