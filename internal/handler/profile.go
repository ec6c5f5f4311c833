package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/recruiting-portal/internal/service"
)

// ProfileHandler serves the signed-in user's own record (/api/me) and the
// presigned upload routes (/api/uploads).
type ProfileHandler struct {
	profile *service.ProfileService
	logger  *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(profile *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profile: profile, logger: logger}
}

type meResponse struct {
	Message string         `json:"message"`
	Data    service.MeView `json:"data"`
}

type profileRequest struct {
	ClassYear flexString `json:"classYear"`
}

type internalHeadshotRequest struct {
	URL string `json:"url"`
}

type internalHeadshotResponse struct {
	Message             string `json:"message"`
	InternalHeadshotURL string `json:"internalHeadshotUrl"`
}

type uploadURLRequest struct {
	ContentType string `json:"contentType"`
}

// HandleMe returns the session user's profile.
//
// HTTP: GET /api/me
//
// RESPONSE FORMAT:
//
//	{"message": "success", "data": {"firstname": "A", "email": "a@mit.edu", "usertype": "candidate", ...}}
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Message: "success", Data: h.profile.Me(user)})
}

// HandleProfile sets the class year.
//
// HTTP: PATCH /api/me/profile
// REQUEST BODY: {"classYear": "2027"} (a number is accepted too)
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.profile.SetClassYear(r.Context(), user, string(req.ClassYear)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// HandleInternalHeadshot records the URL of an onboarding headshot the
// browser already uploaded.
//
// HTTP: POST /api/me/internal-headshot
// REQUEST BODY: {"url": "https://..."}
func (h *ProfileHandler) HandleInternalHeadshot(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req internalHeadshotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.profile.SaveInternalHeadshot(r.Context(), user, req.URL); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, internalHeadshotResponse{Message: "ok", InternalHeadshotURL: req.URL})
}

// HandleHeadshotURL presigns an upload for a headshot chosen on the signup
// form, before any session exists.
//
// HTTP: POST /api/uploads/headshot-url
// REQUEST BODY: {"contentType": "image/png"}
// RESPONSE: {"uploadUrl": "<presigned PUT>", "fileUrl": "<public URL>"}
func (h *ProfileHandler) HandleHeadshotURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	up, err := h.profile.PresignHeadshot(r.Context(), req.ContentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

// HandleInternalHeadshotURL presigns an onboarding headshot upload for the
// session user.
//
// HTTP: POST /api/uploads/internal-headshot-url
func (h *ProfileHandler) HandleInternalHeadshotURL(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req uploadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	up, err := h.profile.PresignInternalHeadshot(r.Context(), user, req.ContentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}
