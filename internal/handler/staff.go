package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/recruiting-portal/internal/service"
)

// StaffHandler serves member feedback, conflict declarations and the
// non-production dev tools.
type StaffHandler struct {
	feedback  *service.FeedbackService
	conflicts *service.ConflictService
	dev       *service.DevService
	logger    *slog.Logger
}

// NewStaffHandler creates a StaffHandler.
func NewStaffHandler(feedback *service.FeedbackService, conflicts *service.ConflictService, dev *service.DevService, logger *slog.Logger) *StaffHandler {
	return &StaffHandler{feedback: feedback, conflicts: conflicts, dev: dev, logger: logger}
}

type feedbackRequest struct {
	Email      string     `json:"email"`
	Event      string     `json:"event"`
	Comments   string     `json:"comments"`
	Commitment flexString `json:"commitment"`
	SocialFit  flexString `json:"socialfit"`
	Challenge  flexString `json:"challenge"`
	Tact       flexString `json:"tact"`
}

// conflictRequest accepts a list, a single entry, or both.
type conflictRequest struct {
	Conflicts []string `json:"conflicts"`
	Conflict  string   `json:"conflict"`
}

type conflictResponse struct {
	Message string `json:"message"`
	Data    struct {
		Conflict []string `json:"conflict"`
	} `json:"data"`
}

type sheetsTestResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type clearEventsRequest struct {
	Email string `json:"email"`
}

type seedResponse struct {
	OK    bool              `json:"ok"`
	Codes map[string]string `json:"codes"`
}

// HandleFeedback adds the session user's evaluation of a candidate.
//
// HTTP: POST /api/feedback (member or admin)
// REQUEST BODY: {"email","event","comments","commitment","socialfit","challenge","tact"}
func (h *StaffHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := h.feedback.Submit(r.Context(), user, service.FeedbackInput{
		Email:      req.Email,
		Event:      req.Event,
		Comments:   req.Comments,
		Commitment: string(req.Commitment),
		SocialFit:  string(req.SocialFit),
		Challenge:  string(req.Challenge),
		Tact:       string(req.Tact),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: service.MsgFeedbackSubmitted})
}

// HandleConflict adds entries to the session user's conflict list.
//
// HTTP: POST /api/conflict (member or admin)
// REQUEST BODY: {"conflicts": ["..."]} or {"conflict": "..."}
// RESPONSE: {"message":"conflicts submitted","data":{"conflict":[...]}}
func (h *StaffHandler) HandleConflict(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req conflictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entries := req.Conflicts
	if req.Conflict != "" {
		entries = append(entries, req.Conflict)
	}
	list, err := h.conflicts.Add(r.Context(), user, entries)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := conflictResponse{Message: service.MsgConflictsSubmitted}
	resp.Data.Conflict = list
	writeJSON(w, http.StatusOK, resp)
}

// HandleSheetsTest appends a fixed row to the spreadsheet and reports the
// result as {"ok":true} or 500 {"ok":false,"error":"..."}.
//
// HTTP: POST /api/dev/sheets-test
func (h *StaffHandler) HandleSheetsTest(w http.ResponseWriter, r *http.Request) {
	if err := h.dev.SheetsTest(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, sheetsTestResponse{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sheetsTestResponse{OK: true})
}

// HandleSeedEventCodes resets the event codes to the defaults.
//
// HTTP: POST /api/dev/seed-event-codes
func (h *StaffHandler) HandleSeedEventCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.dev.SeedEventCodes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seedResponse{OK: true, Codes: codes})
}

// HandleClearEvents wipes a user's check-ins. With no email in the body it
// clears the session user.
//
// HTTP: POST /api/dev/clear-events
func (h *StaffHandler) HandleClearEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req clearEventsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	email := req.Email
	if email == "" {
		email = user.Email
	}
	if err := h.dev.ClearEvents(r.Context(), email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
