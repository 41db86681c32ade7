// Package flows defines the concrete conversations of the bot: registration,
// login, request browsing and management, and moderator tooling. Each flow is
// a dialog definition; routing between flows happens on menu button text.
package flows

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/auth"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/menu"
	"github.com/MLokatsiun/tg-bot-volunteer/core/dialog"
	"github.com/MLokatsiun/tg-bot-volunteer/core/logger"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	tghelpers "github.com/MLokatsiun/tg-bot-volunteer/core/telegram/helpers"
	tele "gopkg.in/telebot.v4"
)

// Gateway is the slice of the backend client the flows use. Tests substitute
// a fake; production passes *backend.Client.
type Gateway interface {
	Register(ctx context.Context, req backend.RegisterRequest) error
	Login(ctx context.Context, tgID string, roleID int) (backend.TokenPair, error)
	LoginModerator(ctx context.Context, phone, password string) (backend.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (backend.TokenPair, error)

	ListApplications(ctx context.Context, token, rolePath string, appType backend.ApplicationType) ([]backend.Application, error)
	AcceptApplication(ctx context.Context, token string, id int64) error
	CancelApplication(ctx context.Context, token string, id int64) error
	CloseApplication(ctx context.Context, token string, id int64, files []backend.ReportFile) error
	CreateApplication(ctx context.Context, token string, req backend.CreateApplicationRequest) (backend.Application, error)
	ConfirmApplication(ctx context.Context, token string, id int64) error
	DeleteApplication(ctx context.Context, token string, id int64) error
	DeleteApplicationModerator(ctx context.Context, token string, id int64) error

	CreateOrActivateCategory(ctx context.Context, token, name string, parentID *int64) (backend.Category, error)
	DeactivateCategory(ctx context.Context, token string, id int64) error
	ListCategories(ctx context.Context) ([]backend.Category, error)
	ListCustomers(ctx context.Context) ([]backend.Customer, error)
	VerifyUser(ctx context.Context, token string, userID int64, approved bool) error

	EditVolunteerProfile(ctx context.Context, token string, req backend.EditProfileRequest) error
	DeactivateProfile(ctx context.Context, token, rolePath string) error
}

// Geocoder resolves coordinates to display addresses.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) string
}

// Flows wires dialog definitions to the gateway and session machinery.
type Flows struct {
	engine *dialog.Engine
	guard  *auth.Guardian
	api    Gateway
	geo    Geocoder
	store  session.Store
}

// New builds the flow set: the dialog engine with its hooks and every
// registered conversation. The returned Flows is what the transport routes
// updates into.
func New(store session.Store, api Gateway, geo Geocoder) *Flows {
	f := &Flows{api: api, geo: geo, store: store}
	f.guard = auth.New(api, f.notifySignedOut)
	f.engine = dialog.New(store, dialog.Hooks{
		OnCancel:  f.onCancel,
		OnUnknown: f.onUnknown,
		OnError:   f.onError,
	}, menu.BtnCancel, menu.BtnExit)

	f.engine.MustRegister(f.registerDialog())
	f.engine.MustRegister(f.loginDialog())
	f.engine.MustRegister(f.moderatorLoginDialog())
	f.engine.MustRegister(f.browseDialog())
	f.engine.MustRegister(f.acceptDialog())
	f.engine.MustRegister(f.cancelTaskDialog())
	f.engine.MustRegister(f.closeDialog())
	f.engine.MustRegister(f.createApplicationDialog())
	f.engine.MustRegister(f.confirmApplicationDialog())
	f.engine.MustRegister(f.deleteApplicationDialog())
	f.engine.MustRegister(f.addCategoryDialog())
	f.engine.MustRegister(f.deleteCategoryDialog())
	f.engine.MustRegister(f.deleteRequestDialog())
	f.engine.MustRegister(f.verifyUserDialog())
	f.engine.MustRegister(f.editProfileDialog())
	f.engine.MustRegister(f.deactivateProfileDialog())

	return f
}

// sendView renders one menu.View to the user.
func sendView(c tele.Context, v menu.View) error {
	return tghelpers.SendText(c, v.Text, v.Markup)
}

// notifySignedOut is the guardian's side channel: the session was reset
// because its tokens died, so put the user back at the entry screen.
func (f *Flows) notifySignedOut(ctx context.Context, s *session.Session) {
	logger.Info(ctx, "dialog", "session.signed_out",
		slog.Int64("user_id", s.UserID),
	)
}

func (f *Flows) onCancel(c tele.Context, s *session.Session) error {
	if s.Authenticated() {
		return sendView(c, menu.Home(s.Role))
	}
	return sendView(c, menu.Entry())
}

func (f *Flows) onUnknown(c tele.Context, s *session.Session, ev dialog.Event) error {
	if s.Dialog != "" {
		return tghelpers.SendText(c, "Не розумію. Скористайтесь кнопками або натисніть «Скасувати».")
	}
	if s.Authenticated() {
		return sendView(c, menu.Home(s.Role))
	}
	return sendView(c, menu.Entry())
}

// onError turns flow errors into user-facing outcomes. Auth failures drop to
// the entry menu; everything else keeps or aborts the dialog depending on
// whether the user's input can still succeed.
func (f *Flows) onError(c tele.Context, s *session.Session, err error) (dialog.State, bool) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		_ = sendView(c, menu.Entry())
		return dialog.StateIdle, true
	case errors.Is(err, auth.ErrSessionExpired):
		_ = tghelpers.SendText(c, "Ваша сесія завершилась. Увійдіть знову.")
		_ = sendView(c, menu.Entry())
		return dialog.StateIdle, true
	case backend.IsKind(err, backend.KindValidation):
		detail := "Перевірте введені дані та спробуйте ще раз."
		var be *backend.Error
		if errors.As(err, &be) && be.Detail != "" {
			detail = be.Detail
		}
		_ = tghelpers.SendText(c, detail)
		return dialog.StateSame, true
	case backend.IsKind(err, backend.KindNotFound):
		_ = tghelpers.SendText(c, "Запис не знайдено. Можливо, його вже опрацьовано.")
		_ = sendView(c, menu.Home(s.Role))
		return dialog.StateIdle, true
	case backend.IsKind(err, backend.KindForbidden):
		_ = tghelpers.SendText(c, "Дія недоступна. Ваш акаунт ще не підтверджено модератором.")
		_ = sendView(c, menu.Home(s.Role))
		return dialog.StateIdle, true
	case backend.IsKind(err, backend.KindUnavailable):
		_ = tghelpers.SendText(c, "Сервіс тимчасово недоступний. Спробуйте пізніше.")
		return dialog.StateSame, true
	}
	_ = tghelpers.SendText(c, "Сталася помилка. Спробуйте ще раз.")
	return dialog.StateIdle, true
}
