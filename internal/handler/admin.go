package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/service"
)

// AdminHandler serves /api/admin. Every route sits behind RequireAuth and
// RequireRole(admin).
type AdminHandler struct {
	admin  *service.AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

type setEventCodeRequest struct {
	EventName string     `json:"eventName"`
	EventCode flexString `json:"eventCode"`
}

type setDecisionRequest struct {
	Email    string `json:"email"`
	Decision string `json:"decision"`
}

type eventCodesRequest struct {
	Codes map[string]string `json:"codes"`
}

type fixUserEventsRequest struct {
	Email   string `json:"email"`
	UserID  string `json:"userid"`
	FromKey string `json:"fromKey"`
	ToKey   string `json:"toKey"`
}

type eventCodesResponse struct {
	Message    string            `json:"message"`
	EventCodes map[string]string `json:"eventCodes"`
}

type candidatesResponse struct {
	Message    string       `json:"message"`
	Candidates []model.User `json:"candidates"`
}

type candidateResponse struct {
	Message   string      `json:"message"`
	Candidate *model.User `json:"candidate"`
}

type configItemResponse struct {
	OK   bool             `json:"ok"`
	Item *model.AppConfig `json:"item"`
}

// =========================================================================
// EVENT CODES
// =========================================================================

// HandleSetEventCode sets one event's code.
//
// HTTP: POST /api/admin/set-event-code
// REQUEST BODY: {"eventName": "careerday", "eventCode": "..."}
func (h *AdminHandler) HandleSetEventCode(w http.ResponseWriter, r *http.Request) {
	var req setEventCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.SetEventCode(r.Context(), req.EventName, string(req.EventCode)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: service.MsgEventCodeSaved})
}

// HandleGetEventCodes returns the code map, empty when none is saved.
//
// HTTP: GET /api/admin/get-event-codes
func (h *AdminHandler) HandleGetEventCodes(w http.ResponseWriter, r *http.Request) {
	codes, found, err := h.admin.EventCodes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	msg := "no event codes in database"
	if found {
		msg = "event codes found in database"
	}
	writeJSON(w, http.StatusOK, eventCodesResponse{Message: msg, EventCodes: codes})
}

// HandleReplaceEventCodes overwrites every code at once.
//
// HTTP: POST /api/admin/event-codes
// REQUEST BODY: {"codes": {"careerday": "...", ...}}
func (h *AdminHandler) HandleReplaceEventCodes(w http.ResponseWriter, r *http.Request) {
	var req eventCodesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	item, err := h.admin.ReplaceEventCodes(r.Context(), req.Codes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configItemResponse{OK: true, Item: item})
}

// HandleConfig returns the raw config record, or {} before the first save.
//
// HTTP: GET /api/admin/config
func (h *AdminHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.admin.Config(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if cfg == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// =========================================================================
// CANDIDATES
// =========================================================================

// HandleViewAllCandidates lists every candidate.
//
// HTTP: GET /api/admin/view-all-candidates
func (h *AdminHandler) HandleViewAllCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.admin.Candidates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidatesResponse{Message: "candidates found in database", Candidates: candidates})
}

// HandleCandidatesByDecision lists candidates with one decision.
//
// HTTP: GET /api/admin/get-candidates-type/{decision}
func (h *AdminHandler) HandleCandidatesByDecision(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.admin.CandidatesByDecision(r.Context(), pathParam(r, "decision"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidatesResponse{Message: "candidates found in database", Candidates: candidates})
}

// HandleCandidateInfo returns one user.
//
// HTTP: GET /api/admin/candidate-info/{userid}
func (h *AdminHandler) HandleCandidateInfo(w http.ResponseWriter, r *http.Request) {
	candidate, err := h.admin.Candidate(r.Context(), pathParam(r, "userid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidateResponse{Message: "candidate found in database", Candidate: candidate})
}

// HandleSetDecision records a decision.
//
// HTTP: POST /api/admin/set-decision
// REQUEST BODY: {"email": "a@mit.edu", "decision": "accepted"}
func (h *AdminHandler) HandleSetDecision(w http.ResponseWriter, r *http.Request) {
	var req setDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.SetDecision(r.Context(), req.Email, req.Decision); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: service.MsgDecisionSubmitted})
}

// HandleCandidateResume streams an inline resume or redirects to the
// uploaded object. The candidate spreadsheet links here.
//
// HTTP: GET /api/admin/candidate-resume/{email}
func (h *AdminHandler) HandleCandidateResume(w http.ResponseWriter, r *http.Request) {
	file, err := h.admin.CandidateResume(r.Context(), pathParam(r, "email"))
	if err != nil {
		writeError(w, err)
		return
	}
	if file.RedirectURL != "" {
		http.Redirect(w, r, file.RedirectURL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		h.logger.Warn("writing resume", slog.String("error", err.Error()))
	}
}

// HandleFixUserEvents renames a mis-keyed check-in on one user.
//
// HTTP: POST /api/admin/fix-user-events
// REQUEST BODY: {"email"|"userid", "fromKey", "toKey"}
func (h *AdminHandler) HandleFixUserEvents(w http.ResponseWriter, r *http.Request) {
	var req fixUserEventsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.admin.FixUserEvents(r.Context(), service.FixEventsInput{
		Email:   req.Email,
		UserID:  req.UserID,
		FromKey: req.FromKey,
		ToKey:   req.ToKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =========================================================================
// EXPORTS
// =========================================================================

// HandleCandidateSpreadsheet exports applicants as CSV.
//
// HTTP: GET /api/admin/candidate-spreadsheet
func (h *AdminHandler) HandleCandidateSpreadsheet(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.admin.CandidateCSV(r.Context(), &buf); err != nil {
		writeError(w, err)
		return
	}
	h.writeCSV(w, &buf)
}

// HandleFeedbackSpreadsheet exports staff feedback as CSV.
//
// HTTP: GET /api/admin/feedback-spreadsheet
func (h *AdminHandler) HandleFeedbackSpreadsheet(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.admin.FeedbackCSV(r.Context(), &buf); err != nil {
		writeError(w, err)
		return
	}
	h.writeCSV(w, &buf)
}

// writeCSV sends a fully built export. Building it in memory first means a
// storage error mid-export still gets a JSON error instead of a cut-off file.
func (h *AdminHandler) writeCSV(w http.ResponseWriter, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("writing csv", slog.String("error", err.Error()))
	}
}

// pathParam returns a decoded chi URL parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
