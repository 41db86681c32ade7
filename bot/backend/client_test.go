package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	coreconfig "github.com/MLokatsiun/tg-bot-volunteer/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(coreconfig.BackendConfig{
		BaseURL:        srv.URL,
		ClientName:     "tgbot",
		ClientPassword: "secret",
		TimeoutSeconds: 2,
	})
}

func TestLoginSendsServiceCredsInBody(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login/", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(TokenPair{AccessToken: "acc", RefreshToken: "ref"})
	})

	pair, err := c.Login(context.Background(), "12345", 2)
	require.NoError(t, err)
	assert.Equal(t, "acc", pair.AccessToken)
	assert.Equal(t, "ref", pair.RefreshToken)
	assert.Equal(t, "12345", got["tg_id"])
	assert.Equal(t, float64(2), got["role_id"])
	assert.Equal(t, "tgbot", got["client"])
	assert.Equal(t, "secret", got["password"])
}

func TestErrorTaxonomyByStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnauthorized, KindForbidden},
		{http.StatusForbidden, KindForbidden},
		{http.StatusNotFound, KindNotFound},
		{http.StatusInternalServerError, KindUnavailable},
		{http.StatusBadGateway, KindUnavailable},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "nope"})
		})
		_, err := c.Login(context.Background(), "1", 1)
		require.Error(t, err, "status %d", tc.status)
		var be *Error
		require.ErrorAs(t, err, &be, "status %d", tc.status)
		assert.Equal(t, tc.kind, be.Kind, "status %d", tc.status)
		assert.Equal(t, "nope", be.Detail, "status %d", tc.status)
		assert.Equal(t, tc.status, be.HTTPCode, "status %d", tc.status)
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	c := New(coreconfig.BackendConfig{
		BaseURL:        "http://127.0.0.1:1", // nothing listens here
		ClientName:     "tgbot",
		ClientPassword: "secret",
		TimeoutSeconds: 1,
	})
	_, err := c.Login(context.Background(), "1", 1)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnavailable))
}

func TestIsAuthRejectedDistinguishes401From403(t *testing.T) {
	reject := &Error{Kind: KindForbidden, HTTPCode: http.StatusUnauthorized}
	plain := &Error{Kind: KindForbidden, HTTPCode: http.StatusForbidden}
	assert.True(t, IsAuthRejected(reject))
	assert.False(t, IsAuthRejected(plain))
	assert.False(t, IsAuthRejected(io.EOF))
}

func TestListApplicationsSortsByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/volunteer/applications/", r.URL.Path)
		require.Equal(t, "available", r.URL.Query().Get("type"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]Application{
			{ID: 9, Description: "c"},
			{ID: 2, Description: "a"},
			{ID: 5, Description: "b"},
		})
	})

	apps, err := c.ListApplications(context.Background(), "tok", "volunteer", ApplicationsAvailable)
	require.NoError(t, err)
	require.Len(t, apps, 3)
	assert.Equal(t, int64(2), apps[0].ID)
	assert.Equal(t, int64(5), apps[1].ID)
	assert.Equal(t, int64(9), apps[2].ID)
}

func TestCloseApplicationUploadsMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/volunteer/applications/close/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("application_id"))

		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "report1.jpg", files[0].Filename)

		f, err := files[0].Open()
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg-bytes"), data)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	err := c.CloseApplication(context.Background(), "tok", 42, []ReportFile{
		{Name: "report1.jpg", Data: []byte("jpeg-bytes")},
		{Name: "report2.jpg", Data: []byte("more")},
	})
	require.NoError(t, err)
}

func TestRefreshKeepsTokenPairShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "old-refresh", body["refresh_token"])
		// refresh_token omitted: caller must retain the old one
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "new-acc"})
	})

	pair, err := c.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-acc", pair.AccessToken)
	assert.Empty(t, pair.RefreshToken)
}

func TestDeactivateCategorySendsBodyWithDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		var body map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(7), body["id"])
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.DeactivateCategory(context.Background(), "tok", 7))
}

func TestListCategoriesUsesDeveloperCreds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/developers/categories/", r.URL.Path)
		var body listCategoriesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tgbot", body.ForDevelopers.Client)
		assert.Equal(t, "secret", body.Password)
		_ = json.NewEncoder(w).Encode([]Category{{ID: 1, Name: "Продукти", IsActive: true}})
	})

	cats, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Продукти", cats[0].Name)
}
