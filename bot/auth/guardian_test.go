package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls int
	pair  backend.TokenPair
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (backend.TokenPair, error) {
	f.calls++
	if f.err != nil {
		return backend.TokenPair{}, f.err
	}
	return f.pair, nil
}

func authedSession() *session.Session {
	s := session.New(10)
	s.Role = session.RoleVolunteer
	s.SetCredentials("acc-old", "ref-old")
	return s
}

func rejected() error {
	return &backend.Error{Kind: backend.KindForbidden, HTTPCode: http.StatusUnauthorized}
}

func TestTokenWithoutCredentialsResets(t *testing.T) {
	var notified bool
	g := New(&fakeRefresher{}, func(context.Context, *session.Session) { notified = true })
	s := session.New(10)

	_, err := g.Token(context.Background(), s)
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, session.RoleUnauthenticated, s.Role)
	// Nothing was lost, so no sign-out notice.
	assert.False(t, notified)
}

func TestRefreshInstallsNewPairAtomically(t *testing.T) {
	api := &fakeRefresher{pair: backend.TokenPair{AccessToken: "acc-new", RefreshToken: "ref-new"}}
	g := New(api, nil)
	s := authedSession()

	token, err := g.Refresh(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "acc-new", token)
	assert.Equal(t, "acc-new", s.Credentials.AccessToken)
	assert.Equal(t, "ref-new", s.Credentials.RefreshToken)
}

func TestRefreshRetainsOldRefreshTokenWhenOmitted(t *testing.T) {
	api := &fakeRefresher{pair: backend.TokenPair{AccessToken: "acc-new"}}
	g := New(api, nil)
	s := authedSession()

	_, err := g.Refresh(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "acc-new", s.Credentials.AccessToken)
	assert.Equal(t, "ref-old", s.Credentials.RefreshToken)
	assert.True(t, s.Authenticated())
}

func TestRefreshRejectionResetsAndNotifies(t *testing.T) {
	var notified bool
	api := &fakeRefresher{err: &backend.Error{Kind: backend.KindForbidden, HTTPCode: http.StatusUnauthorized}}
	g := New(api, func(context.Context, *session.Session) { notified = true })
	s := authedSession()
	s.Dialog = "browse"
	s.State = "pick"

	_, err := g.Refresh(context.Background(), s)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, s.Credentials)
	assert.Equal(t, session.RoleUnauthenticated, s.Role)
	assert.Empty(t, s.Dialog)
	assert.True(t, notified)
}

func TestRefreshKeepsSessionOnBackendOutage(t *testing.T) {
	api := &fakeRefresher{err: &backend.Error{Kind: backend.KindUnavailable}}
	g := New(api, nil)
	s := authedSession()

	_, err := g.Refresh(context.Background(), s)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	// An outage must not log the user out.
	assert.True(t, s.Authenticated())
}

func TestDoRefreshesExactlyOnceOnRejection(t *testing.T) {
	api := &fakeRefresher{pair: backend.TokenPair{AccessToken: "acc-new", RefreshToken: "ref-new"}}
	g := New(api, nil)
	s := authedSession()

	var tokens []string
	err := g.Do(context.Background(), s, func(token string) error {
		tokens = append(tokens, token)
		if token == "acc-old" {
			return rejected()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-old", "acc-new"}, tokens)
	assert.Equal(t, 1, api.calls)
}

func TestDoNeverLoopsWhenFreshTokenIsRejectedToo(t *testing.T) {
	api := &fakeRefresher{pair: backend.TokenPair{AccessToken: "acc-new", RefreshToken: "ref-new"}}
	g := New(api, nil)
	s := authedSession()

	var calls int
	err := g.Do(context.Background(), s, func(string) error {
		calls++
		return rejected()
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, api.calls)
}

func TestDoPassesThroughDomainErrors(t *testing.T) {
	api := &fakeRefresher{}
	g := New(api, nil)
	s := authedSession()

	wantErr := &backend.Error{Kind: backend.KindNotFound}
	err := g.Do(context.Background(), s, func(string) error { return wantErr })
	require.ErrorIs(t, err, error(wantErr))
	assert.Zero(t, api.calls)
}
