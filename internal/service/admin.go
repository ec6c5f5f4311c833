package service

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository"
)

const (
	MsgCandidateNotFound = "error finding candidate in database"
	MsgResumeNotFound    = "error finding resume in database"
	MsgMissingCodes      = "missing codes"
	MsgDecisionSubmitted = "decision submitted"
	MsgUserNotFound      = "user not found"
	MsgFixMissingFields  = "missing fields: email|userid, fromKey, toKey"
	MsgFixNoop           = "no-op (fromKey not present)"
	MsgFixed             = "fixed"
)

// spreadsheetEvents are the event columns of the candidate export, in order.
var spreadsheetEvents = []struct{ id, header string }{
	{"hellomcg", "Meet the Team"},
	{"careerday", "DEI Panel"},
	{"allvoices", "Resume Review"},
	{"resume_glowup", "Cheesecake Social"},
	{"dessert", "Case Workshop"},
	{"caseprep", "Case Prep"},
}

// AdminService backs the staff dashboard.
type AdminService struct {
	users   repository.UserRepository
	config  repository.ConfigRepository
	mirror  Mirror
	baseURL string
	logger  *slog.Logger
}

// NewAdminService wires an AdminService. baseURL prefixes the resume and
// profile links in the candidate export.
func NewAdminService(users repository.UserRepository, config repository.ConfigRepository, mirror Mirror, baseURL string, logger *slog.Logger) *AdminService {
	return &AdminService{
		users:   users,
		config:  config,
		mirror:  mirror,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// =========================================================================
// EVENT CODES
// =========================================================================

// SetEventCode sets the code for one event and keeps the others.
func (s *AdminService) SetEventCode(ctx context.Context, eventID, code string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" || code == "" {
		return apperror.ValidationFailed("", MsgMissingFields)
	}
	codes, _, err := s.EventCodes(ctx)
	if err != nil {
		return err
	}
	codes[eventID] = code
	_, err = s.ReplaceEventCodes(ctx, codes)
	return err
}

// EventCodes returns the configured codes. found is false when nothing has
// been saved yet; codes is then empty, never nil.
func (s *AdminService) EventCodes(ctx context.Context) (codes map[string]string, found bool, err error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("service/admin: loading event codes: %w", err)
	}
	codes = map[string]string{}
	if cfg == nil {
		return codes, false, nil
	}
	for k, v := range cfg.ConfigData {
		codes[k] = v
	}
	return codes, true, nil
}

// ReplaceEventCodes overwrites the whole code map.
func (s *AdminService) ReplaceEventCodes(ctx context.Context, codes map[string]string) (*model.AppConfig, error) {
	if codes == nil {
		return nil, apperror.ValidationFailed("codes", MsgMissingCodes)
	}
	cfg := &model.AppConfig{
		ConfigType: model.ConfigTypeEventCodes,
		ConfigData: codes,
	}
	if err := s.config.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("service/admin: saving event codes: %w", err)
	}
	s.logger.Info("event codes saved", slog.Int("count", len(codes)))
	return cfg, nil
}

// Config returns the raw config record, or nil when none exists.
func (s *AdminService) Config(ctx context.Context) (*model.AppConfig, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/admin: loading config: %w", err)
	}
	return cfg, nil
}

// =========================================================================
// CANDIDATES
// =========================================================================

// Candidates lists every candidate account, password hashes removed.
func (s *AdminService) Candidates(ctx context.Context) ([]model.User, error) {
	return s.candidates(ctx, func(*model.User) bool { return true })
}

// CandidatesByDecision lists candidates with the given decision.
func (s *AdminService) CandidatesByDecision(ctx context.Context, decision string) ([]model.User, error) {
	return s.candidates(ctx, func(u *model.User) bool { return u.Decision == decision })
}

func (s *AdminService) candidates(ctx context.Context, keep func(*model.User) bool) ([]model.User, error) {
	all, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/admin: listing users: %w", err)
	}
	out := make([]model.User, 0, len(all))
	for i := range all {
		u := &all[i]
		if u.Usertype != model.UsertypeCandidate || !keep(u) {
			continue
		}
		out = append(out, redact(*u))
	}
	return out, nil
}

// Candidate returns one user by id.
func (s *AdminService) Candidate(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.find(ctx, repository.Filter{UserID: userID}, MsgCandidateNotFound)
	if err != nil {
		return nil, err
	}
	r := redact(*u)
	return &r, nil
}

// SetDecision records a staff decision on the candidate with email.
func (s *AdminService) SetDecision(ctx context.Context, email, decision string) error {
	email = model.NormalizeEmail(email)
	if email == "" || decision == "" {
		return apperror.ValidationFailed("", MsgMissingFields)
	}
	u, err := s.find(ctx, repository.Filter{Email: email}, MsgCandidateNotFound)
	if err != nil {
		return err
	}
	err = s.users.UpdateOne(ctx, repository.Filter{UserID: u.UserID}, repository.Set{"decision": decision})
	if err != nil {
		return fmt.Errorf("service/admin: saving decision: %w", err)
	}
	s.logger.Info("decision recorded", slog.String("userID", u.UserID), slog.String("decision", decision))
	return nil
}

// ResumeFile is a candidate resume. Exactly one of Data or RedirectURL is set.
type ResumeFile struct {
	Data        []byte
	ContentType string
	RedirectURL string
}

// CandidateResume returns the resume of the candidate with email. Inline
// resumes are decoded; uploaded ones redirect to their object URL.
func (s *AdminService) CandidateResume(ctx context.Context, email string) (*ResumeFile, error) {
	u, err := s.find(ctx, repository.Filter{Email: model.NormalizeEmail(email)}, MsgCandidateNotFound)
	if err != nil {
		return nil, err
	}
	app := u.UserData.Application
	switch {
	case app == nil:
		return nil, apperror.NotFoundMsg(MsgResumeNotFound)
	case app.ResumeURL != "":
		return &ResumeFile{RedirectURL: app.ResumeURL}, nil
	case app.Resume != "":
		_, payload, ok := strings.Cut(app.Resume, ",")
		if !ok {
			return nil, apperror.NotFoundMsg(MsgResumeNotFound)
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("service/admin: decoding resume for %s: %w", u.UserID, err)
		}
		contentType := app.ResumeType
		if contentType == "" {
			contentType = "application/pdf"
		}
		return &ResumeFile{Data: data, ContentType: contentType}, nil
	default:
		return nil, apperror.NotFoundMsg(MsgResumeNotFound)
	}
}

// FixEventsInput renames one event key on a user's attendance map. Either
// Email or UserID picks the user.
type FixEventsInput struct {
	Email   string
	UserID  string
	FromKey string
	ToKey   string
}

// FixEventsResult reports the user's events after the fix.
type FixEventsResult struct {
	Message string          `json:"message"`
	UserID  string          `json:"userid"`
	Events  map[string]bool `json:"events"`
}

// FixUserEvents moves a check-in recorded under a wrong event id to the
// right one. A user without FromKey is left alone.
func (s *AdminService) FixUserEvents(ctx context.Context, in FixEventsInput) (*FixEventsResult, error) {
	if (in.Email == "" && in.UserID == "") || in.FromKey == "" || in.ToKey == "" {
		return nil, apperror.ValidationFailed("", MsgFixMissingFields)
	}
	filter := repository.Filter{UserID: in.UserID}
	if in.Email != "" {
		filter = repository.Filter{Email: model.NormalizeEmail(in.Email)}
	}
	u, err := s.find(ctx, filter, MsgUserNotFound)
	if err != nil {
		return nil, err
	}

	events := copyEvents(u.UserData.Events)
	if !events[in.FromKey] {
		return &FixEventsResult{Message: MsgFixNoop, UserID: u.UserID, Events: events}, nil
	}
	events[in.ToKey] = true
	delete(events, in.FromKey)

	err = s.users.UpdateOne(ctx, repository.Filter{UserID: u.UserID}, repository.Set{"userData.events": events})
	if err != nil {
		return nil, fmt.Errorf("service/admin: saving events: %w", err)
	}
	s.logger.Info("user events fixed",
		slog.String("userID", u.UserID),
		slog.String("from", in.FromKey),
		slog.String("to", in.ToKey),
	)
	s.mirror.EventsRewritten(u, events)
	return &FixEventsResult{Message: MsgFixed, UserID: u.UserID, Events: events}, nil
}

// =========================================================================
// EXPORTS
// =========================================================================

// CandidateCSV writes one row per candidate who has submitted an
// application.
func (s *AdminService) CandidateCSV(ctx context.Context, w io.Writer) error {
	candidates, err := s.Candidates(ctx)
	if err != nil {
		return err
	}

	header := []string{"First Name", "Last Name", "Email", "Class Year"}
	for _, e := range spreadsheetEvents {
		header = append(header, e.header)
	}
	header = append(header, "Resume", "Profile", "Hope to Gain", "Past Experience")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range candidates {
		u := &candidates[i]
		app := u.UserData.Application
		if app == nil {
			continue
		}
		row := []string{u.FirstName, u.LastName, u.Email, app.ClassYear}
		for _, e := range spreadsheetEvents {
			row = append(row, yesNo(u.UserData.Events[e.id]))
		}
		row = append(row,
			s.baseURL+"/api/admin/candidate-resume/"+url.PathEscape(u.Email),
			u.Photo(),
			flatten(app.Opt1),
			"",
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FeedbackCSV writes one row per feedback entry across all candidates.
func (s *AdminService) FeedbackCSV(ctx context.Context, w io.Writer) error {
	candidates, err := s.Candidates(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	err = cw.Write([]string{
		"First Name", "Last Name", "Email", "Submitted By", "Event",
		"Comments", "Commitment", "Social", "Challenge", "Tact",
	})
	if err != nil {
		return err
	}
	for i := range candidates {
		u := &candidates[i]
		for _, fb := range u.UserData.Feedback {
			err := cw.Write([]string{
				u.FirstName, u.LastName, u.Email, fb.SubmittedBy, fb.Event,
				flatten(fb.Comments), fb.Commitment, fb.SocialFit, fb.Challenge, fb.Tact,
			})
			if err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *AdminService) find(ctx context.Context, filter repository.Filter, notFound string) (*model.User, error) {
	if filter.UserID == "" && filter.Email == "" {
		return nil, apperror.NotFoundMsg(notFound)
	}
	u, err := s.users.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMsg(notFound)
		}
		return nil, fmt.Errorf("service/admin: finding user: %w", err)
	}
	return u, nil
}

// redact drops the password hash before a user leaves the service layer.
func redact(u model.User) model.User {
	u.Password = nil
	return u
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// flatten keeps free text on one spreadsheet line and stops a leading "="
// from being read as a formula.
func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "=", "equals")
}
