// Package auth owns the token lifecycle between sessions and the backend:
// hand out the stored access token, refresh it when the backend rejects it,
// and reset the session when the refresh chain is broken.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/core/logger"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
)

// ErrUnauthenticated: the session never had (or no longer has) credentials.
// The caller should show the entry menu.
var ErrUnauthenticated = errors.New("auth: not authenticated")

// ErrSessionExpired: credentials existed but the refresh was rejected; the
// session has been reset and the user must log in again.
var ErrSessionExpired = errors.New("auth: session expired")

// Refresher is the slice of the gateway the guardian needs.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (backend.TokenPair, error)
}

// Notifier is called after the guardian resets a session, so the user learns
// they were signed out instead of watching their action vanish.
type Notifier func(ctx context.Context, s *session.Session)

// Guardian mediates access-token use. It never inspects token contents or
// expiry; the backend's 401 is the only "expired" signal it trusts.
type Guardian struct {
	api    Refresher
	notify Notifier
}

// New builds a Guardian. notify may be nil.
func New(api Refresher, notify Notifier) *Guardian {
	return &Guardian{api: api, notify: notify}
}

// Token returns the session's access token, or ErrUnauthenticated after
// resetting the session when no usable credentials are stored.
func (g *Guardian) Token(ctx context.Context, s *session.Session) (string, error) {
	if !s.Authenticated() {
		g.reset(ctx, s, "missing_credentials")
		return "", ErrUnauthenticated
	}
	return s.Credentials.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new pair and installs it
// in the session. On rejection the session is reset and ErrSessionExpired is
// returned. The pair is replaced atomically: a response without a refresh
// token keeps the old one, so the session never holds a half-blank pair.
func (g *Guardian) Refresh(ctx context.Context, s *session.Session) (string, error) {
	if !s.Authenticated() {
		g.reset(ctx, s, "missing_credentials")
		return "", ErrUnauthenticated
	}

	pair, err := g.api.Refresh(ctx, s.Credentials.RefreshToken)
	if err != nil {
		// Transient backend trouble is not an auth verdict; keep the
		// session and let the caller surface "try later".
		if backend.IsKind(err, backend.KindUnavailable) {
			return "", err
		}
		g.reset(ctx, s, "refresh_rejected")
		return "", ErrSessionExpired
	}

	s.SetCredentials(pair.AccessToken, pair.RefreshToken)
	logger.Info(ctx, "auth", "token.refreshed",
		slog.Int64("user_id", s.UserID),
	)
	return pair.AccessToken, nil
}

// Do runs fn with a valid access token, refreshing and retrying exactly once
// when the backend rejects the token mid-call. At most one refresh per Do:
// a second rejection after a fresh token is a real authorization failure.
func (g *Guardian) Do(ctx context.Context, s *session.Session, fn func(token string) error) error {
	token, err := g.Token(ctx, s)
	if err != nil {
		return err
	}

	err = fn(token)
	if err == nil || !backend.IsAuthRejected(err) {
		return err
	}

	token, err = g.Refresh(ctx, s)
	if err != nil {
		return err
	}
	return fn(token)
}

func (g *Guardian) reset(ctx context.Context, s *session.Session, reason string) {
	had := s.Authenticated()
	s.ResetAuth()
	logger.Info(ctx, "auth", "session.reset",
		slog.Int64("user_id", s.UserID),
		slog.String("outcome", reason),
	)
	if had && g.notify != nil {
		g.notify(ctx, s)
	}
}
