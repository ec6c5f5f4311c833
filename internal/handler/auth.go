package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/recruiting-portal/internal/auth"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/service"
)

// AuthHandler serves /api/auth: password signup and login, Google sign-in,
// logout and token refresh.
//
// SESSION COOKIE:
// Every successful sign-in sets the httpOnly "token" cookie with the JWT.
// secure adds the Secure flag and is on in production only, so the cookie
// still works over plain http on localhost.
type AuthHandler struct {
	auth   *service.AuthService
	secure bool
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc *service.AuthService, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, secure: secure, logger: logger}
}

type signupRequest struct {
	FirstName   string `json:"firstname" validate:"required"`
	LastName    string `json:"lastname" validate:"required"`
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	HeadshotURL string `json:"headshotUrl"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type googleRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// HandleSignup creates a candidate account.
//
// HTTP: POST /api/auth/signup
// REQUEST BODY: {"firstname","lastname","email","password","headshotUrl"?}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := bind(r, &req, service.MsgMissingFields); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Signup(r.Context(), service.SignupInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Password:    req.Password,
		HeadshotURL: req.HeadshotURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, res.Token)
	writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

// HandleLogin checks email and password.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bind(r, &req, service.MsgMissingFields); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("user logged in", slog.String("userID", res.User.UserID))
	h.startSession(w, res.Token)
	writeJSON(w, http.StatusOK, messageResponse{Message: "login successful"})
}

// HandleGoogle signs in with a Google ID token from the browser.
//
// HTTP: POST /api/auth/google
// REQUEST BODY: {"id_token": "<JWT from Google Identity Services>"}
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := bind(r, &req, service.MsgMissingIDToken); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.LoginWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, res.Token)
	writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

// HandleLogout clears the session cookie. It needs no session, so a stale
// cookie can always be removed.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logout successful"})
}

// HandleRefresh reissues the cookie for a still-valid session.
//
// HTTP: POST /api/auth/refresh-token (RequireAuth)
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	token, err := h.auth.Refresh(user)
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, token)
	writeJSON(w, http.StatusOK, messageResponse{Message: "token refreshed"})
}

// currentUser returns the session user RequireAuth stored. Routes mounted
// without RequireAuth get a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "no token provided"})
	}
	return user, ok
}

func (h *AuthHandler) startSession(w http.ResponseWriter, token string) {
	auth.SetSessionCookie(w, token, h.auth.SessionTTL(), h.secure)
}
