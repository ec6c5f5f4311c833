package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/recruiting-portal/internal/service"
)

// CandidateHandler serves the candidate flows: application submission and
// event check-in.
type CandidateHandler struct {
	applications *service.ApplicationService
	events       *service.EventService
	logger       *slog.Logger
}

// NewCandidateHandler creates a CandidateHandler.
func NewCandidateHandler(applications *service.ApplicationService, events *service.EventService, logger *slog.Logger) *CandidateHandler {
	return &CandidateHandler{applications: applications, events: events, logger: logger}
}

// applicationRequest carries both files as base64 data URLs, which is why
// the body limit is in megabytes.
type applicationRequest struct {
	ClassYear  flexString `json:"classYear"`
	ProfileImg string     `json:"profileImg"`
	Resume     string     `json:"resume"`
	Opt1       string     `json:"opt1"`
	Email      string     `json:"email"`
}

type applicationResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type eventSigninRequest struct {
	EventName string     `json:"eventName"`
	EventCode flexString `json:"eventCode"`
}

// HandleSubmitApplication stores the session user's application.
//
// HTTP: POST /api/application/submit-application
// REQUEST BODY: {"classYear","profileImg","resume","opt1","email"?}
func (h *CandidateHandler) HandleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req applicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	err := h.applications.Submit(r.Context(), user, service.ApplicationInput{
		ClassYear:  string(req.ClassYear),
		ProfileImg: req.ProfileImg,
		Resume:     req.Resume,
		Opt1:       req.Opt1,
		Email:      req.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, applicationResponse{OK: true, Message: service.MsgApplicationOK})
}

// HandleEventSignin checks the session user into an event.
//
// HTTP: POST /api/events/event-signin
// REQUEST BODY: {"eventName": "careerday", "eventCode": "..."}
// RESPONSE: {"message": "event code saved to database", "count": 2}
func (h *CandidateHandler) HandleEventSignin(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req eventSigninRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.events.CheckIn(r.Context(), user, req.EventName, string(req.EventCode))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
