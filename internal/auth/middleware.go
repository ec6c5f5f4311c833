package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/model"
)

// CookieName is the session cookie.
const CookieName = "token"

// contextKey is unexported so no other package can read or shadow our
// context values.
type contextKey string

const userKey contextKey = "user"

// UserLoader is how the middleware fetches the session's user.
// repository.UserRepository satisfies it.
type UserLoader interface {
	FindByID(ctx context.Context, userID string) (*model.User, error)
}

// RequireAuth rejects the request unless it carries a valid session for a
// user that still exists.
//
// PER-REQUEST STATES:
//
//	no cookie                    → 401 "no token provided"
//	cookie, bad/expired token    → 401 "invalid token" / "session expired"
//	valid token, user not found  → 401 "user not found"
//	valid token, user loaded     → user stored in context, next handler runs
//
// The user is re-read on every request; there is no session cache, so a role
// change or deletion takes effect on the next request.
func RequireAuth(tokens *TokenService, users UserLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				reject(w, http.StatusUnauthorized, "unauthorized", "no token provided")
				return
			}

			userID, err := tokens.Verify(cookie.Value)
			if err != nil {
				if errors.Is(err, ErrExpiredToken) {
					reject(w, http.StatusUnauthorized, "unauthorized", "session expired")
					return
				}
				logger.Debug("rejected session token", "error", err)
				reject(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					reject(w, http.StatusUnauthorized, "unauthorized", "user not found")
					return
				}
				logger.Error("loading session user", "user_id", userID, "error", err)
				reject(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRole lets the request through only if the session user has one of
// roles. It must run after RequireAuth.
func RequireRole(roles ...model.Usertype) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				reject(w, http.StatusUnauthorized, "unauthorized", "no token provided")
				return
			}
			if !user.HasRole(roles...) {
				reject(w, http.StatusForbidden, "forbidden", "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user RequireAuth loaded.
//
//	user, ok := auth.UserFromContext(r.Context())
//	if !ok {
//	    // route was not behind RequireAuth
//	}
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// SetSessionCookie stores token in the HttpOnly session cookie.
//
// SameSite=Lax keeps the cookie off cross-site POSTs; Secure is set in
// production, where the portal is only served over HTTPS.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func reject(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}
