package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/model"
)

// fakeUsers is an in-memory UserLoader.
type fakeUsers struct {
	users map[string]*model.User
	err   error
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// protected returns a handler chain that records whether the inner handler ran.
func protected(t *testing.T, users UserLoader, roles ...model.Usertype) (http.Handler, *bool) {
	t.Helper()
	ran := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		u, ok := UserFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(u.UserID))
	})

	var h http.Handler = inner
	if len(roles) > 0 {
		h = RequireRole(roles...)(h)
	}
	h = RequireAuth(newTestTokenService(t), users, discardLogger())(h)
	return h, &ran
}

func requestWithToken(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	return req
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["message"]
}

func TestRequireAuth_Rejections(t *testing.T) {
	ts := newTestTokenService(t)
	valid, _ := ts.Issue("u1")
	expired, _ := ts.IssueWithDuration("u1", -time.Minute)
	orphan, _ := ts.Issue("deleted-user")

	users := &fakeUsers{users: map[string]*model.User{"u1": {UserID: "u1"}}}

	tests := []struct {
		name        string
		token       string
		wantMessage string
	}{
		{"no cookie", "", "no token provided"},
		{"garbage token", "not-a-jwt", "invalid token"},
		{"tampered token", valid[:len(valid)-3] + "xxx", "invalid token"},
		{"expired token", expired, "session expired"},
		{"user no longer exists", orphan, "user not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ran := protected(t, users)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, requestWithToken(tt.token))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, *ran, "handler must not run")
			assert.Equal(t, tt.wantMessage, decodeMessage(t, rec))
		})
	}
}

func TestRequireAuth_StorageErrorIs500(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Issue("u1")
	h, ran := protected(t, &fakeUsers{err: errors.New("dynamo unavailable")})
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, requestWithToken(token))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, *ran)
}

func TestRequireAuth_LoadsUser(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Issue("u1")
	h, ran := protected(t, &fakeUsers{users: map[string]*model.User{"u1": {UserID: "u1"}}})
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, requestWithToken(token))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *ran)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	ts := newTestTokenService(t)
	users := &fakeUsers{users: map[string]*model.User{
		"cand":  {UserID: "cand", Usertype: model.UsertypeCandidate},
		"admin": {UserID: "admin", Usertype: model.UsertypeAdmin},
	}}

	t.Run("wrong role is forbidden", func(t *testing.T) {
		token, _ := ts.Issue("cand")
		h, ran := protected(t, users, model.UsertypeAdmin)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, requestWithToken(token))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, *ran)
	})

	t.Run("matching role passes", func(t *testing.T) {
		token, _ := ts.Issue("admin")
		h, ran := protected(t, users, model.UsertypeMember, model.UsertypeAdmin)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, requestWithToken(token))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, *ran)
	})
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "abc", 7*24*time.Hour, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 604800, c.MaxAge)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, false)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.True(t, cleared[0].MaxAge < 0)
}
