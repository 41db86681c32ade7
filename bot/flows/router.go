package flows

import (
	"github.com/MLokatsiun/tg-bot-volunteer/bot/menu"
	"github.com/MLokatsiun/tg-bot-volunteer/core/dialog"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tghelpers "github.com/MLokatsiun/tg-bot-volunteer/core/telegram/helpers"
	tele "gopkg.in/telebot.v4"
)

// Dialog names.
const (
	dlgRegister           = "register"
	dlgLogin              = "login"
	dlgModeratorLogin     = "moderator_login"
	dlgBrowse             = "browse_applications"
	dlgAccept             = "accept_application"
	dlgCancelTask         = "cancel_task"
	dlgClose              = "close_application"
	dlgCreateApplication  = "create_application"
	dlgConfirmApplication = "confirm_application"
	dlgDeleteApplication  = "delete_application"
	dlgAddCategory        = "add_category"
	dlgDeleteCategory     = "delete_category"
	dlgDeleteRequest      = "delete_request"
	dlgVerifyUser         = "verify_user"
	dlgEditProfile        = "edit_profile"
	dlgDeactivateProfile  = "deactivate_profile"
)

// menuRoutes maps top-level button text to the dialog it starts. Only
// consulted when no dialog is in progress.
var menuRoutes = map[string]string{
	menu.BtnRegister:       dlgRegister,
	menu.BtnLogin:          dlgLogin,
	menu.BtnModeratorLogin: dlgModeratorLogin,

	menu.BtnVolunteerTasks:      dlgBrowse,
	menu.BtnVolunteerAccept:     dlgAccept,
	menu.BtnVolunteerCancelTask: dlgCancelTask,
	menu.BtnVolunteerClose:      dlgClose,
	menu.BtnEditProfile:         dlgEditProfile,
	menu.BtnDeactivateVolunteer: dlgDeactivateProfile,

	menu.BtnBeneficiaryCreate:     dlgCreateApplication,
	menu.BtnBeneficiaryConfirm:    dlgConfirmApplication,
	menu.BtnBeneficiaryDeactivate: dlgDeleteApplication,
	menu.BtnBeneficiaryList:       dlgBrowse,
	menu.BtnDeactivateBeneficiary: dlgDeactivateProfile,

	menu.BtnModeratorAddCategory:    dlgAddCategory,
	menu.BtnModeratorDeleteCategory: dlgDeleteCategory,
	menu.BtnModeratorDeleteRequest:  dlgDeleteRequest,
	menu.BtnModeratorVerifyUser:     dlgVerifyUser,
}

// HandleStart serves /start: any active dialog is dropped and the user lands
// on the menu matching their session.
func (f *Flows) HandleStart(c tele.Context) error {
	return f.engine.Exec(c, func(c tele.Context, s *session.Session) error {
		s.ResetDialog()
		if s.Authenticated() {
			return sendView(c, menu.Home(s.Role))
		}
		return sendView(c, menu.Entry())
	})
}

// HandleText routes free text: menu buttons start their dialog, everything
// else goes through the engine so the active dialog (or the unknown-input
// hook) deals with it.
func (f *Flows) HandleText(c tele.Context) error {
	ev := dialog.EventFrom(c)

	if !f.engine.InProgress(tghelpers.BuildContext(c), c.Sender().ID) {
		if name, ok := menuRoutes[ev.Text]; ok {
			return f.engine.Start(c, name, ev)
		}
		switch ev.Text {
		case menu.BtnExit:
			return f.engine.Exec(c, f.logout)
		case menu.BtnCheckVolunteerStatus:
			return f.engine.Exec(c, f.checkStatus(session.RoleVolunteer))
		case menu.BtnCheckBeneficiaryStatus:
			return f.engine.Exec(c, f.checkStatus(session.RoleBeneficiary))
		}
	}
	return f.engine.Dispatch(c, ev)
}

// HandleContact feeds a shared phone number into the active dialog.
func (f *Flows) HandleContact(c tele.Context) error {
	return f.engine.Dispatch(c, dialog.EventFrom(c))
}

// HandleLocation feeds a shared location into the active dialog.
func (f *Flows) HandleLocation(c tele.Context) error {
	return f.engine.Dispatch(c, dialog.EventFrom(c))
}

// HandleDocument feeds an uploaded file or photo into the active dialog.
func (f *Flows) HandleDocument(c tele.Context) error {
	return f.engine.Dispatch(c, dialog.EventFrom(c))
}

// HandleCallback answers the callback (so the client stops the spinner) and
// dispatches it. Page flips on a finished browse list have no dialog behind
// them and are served straight from the session cursor.
func (f *Flows) HandleCallback(c tele.Context) error {
	defer func() { _ = c.Respond() }()

	ev := dialog.EventFrom(c)
	if ev.CallbackKey == cbPage && !f.engine.InProgress(tghelpers.BuildContext(c), c.Sender().ID) {
		return f.HandlePageCallback(c, ev.CallbackPayload)
	}
	return f.engine.Dispatch(c, ev)
}

func (f *Flows) logout(c tele.Context, s *session.Session) error {
	s.ResetAuth()
	return sendView(c, menu.Entry())
}
