package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/mirror"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/objects"
	"github.com/sakif/recruiting-portal/internal/repository"
)

const (
	MsgApplicationRequired = "Class year and resume are required."
	MsgApplicationYear     = "Please enter a valid class year (e.g., 2027)."
	MsgApplicationEmail    = "Please provide an @mit.edu email"
	MsgApplicationPhoto    = "Please upload a profile image."
	MsgApplicationResume   = "Please upload your resume as a PDF or Word document."
	MsgApplicationImage    = "Please upload your profile image as a JPEG or PNG."
	MsgApplicationFailed   = "Error submitting application."
	MsgApplicationOK       = "Application submitted."

	// MaxInlineResumeBytes is the largest resume kept inside the user item.
	// DynamoDB caps an item at 400 KB and the rest of the record needs room.
	MaxInlineResumeBytes = 290 * 1024

	ResumeStorageInline = "inline"
	ResumeStorageS3     = "s3"
)

// ApplicationInput is the submitted form. ProfileImg and Resume are base64
// data URLs.
type ApplicationInput struct {
	ClassYear  string
	ProfileImg string
	Resume     string
	Opt1       string
	Email      string
}

// ApplicationService accepts application submissions.
type ApplicationService struct {
	users   repository.UserRepository
	objects ObjectStore
	mirror  Mirror
	metrics Metrics
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// NewApplicationService wires an ApplicationService. baseURL is the public
// origin used to build resume links for inline resumes.
func NewApplicationService(users repository.UserRepository, files ObjectStore, mirror Mirror, metrics Metrics, baseURL string, logger *slog.Logger) *ApplicationService {
	return &ApplicationService{
		users:   users,
		objects: files,
		mirror:  mirror,
		metrics: metricsOrNop(metrics),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

// Submit validates and stores an application, then mirrors it.
//
// STEPS:
//  1. Validate class year, resume and the @mit.edu address. A candidate who
//     signed in with an MIT address uses it; anyone else must type one.
//  2. Upload a new profile image if one was sent. One is required only when
//     the candidate has no onboarding headshot yet.
//  3. Keep the resume inline when it is small, otherwise upload it and store
//     its public S3 URL.
//  4. Save userData.application and the headshot URL in one update.
//  5. Queue the AppSheet and spreadsheet writes.
//
// Resubmitting replaces the previous application.
func (s *ApplicationService) Submit(ctx context.Context, u *model.User, in ApplicationInput) error {
	classYear := strings.TrimSpace(in.ClassYear)
	if classYear == "" || in.Resume == "" {
		return apperror.ValidationFailed("", MsgApplicationRequired)
	}
	if !classYearPattern.MatchString(classYear) {
		return apperror.ValidationFailed("classYear", MsgApplicationYear)
	}

	email, err := mitEmail(u.Email, in.Email)
	if err != nil {
		return err
	}

	headshotURL := ""
	if u.InternalHeadshotURL != nil {
		headshotURL = *u.InternalHeadshotURL
	}
	if headshotURL == "" && in.ProfileImg == "" {
		return apperror.ValidationFailed("profileImg", MsgApplicationPhoto)
	}

	var image *objects.DataURL
	if in.ProfileImg != "" {
		image, err = objects.ParseDataURL(in.ProfileImg)
		if err != nil {
			return apperror.ValidationFailed("profileImg", MsgApplicationImage)
		}
	}
	resume, err := objects.ParseDataURL(in.Resume)
	if err != nil {
		return apperror.ValidationFailed("resume", MsgApplicationResume)
	}

	if image != nil {
		key := s.objects.InternalHeadshotKey(u.UserID, image.Ext)
		if err := s.objects.Put(ctx, key, image.Data, image.ContentType); err != nil {
			return s.fail(u, "uploading profile image", err)
		}
		headshotURL = s.objects.URLFor(key)
	}

	app := &model.Application{
		ClassYear:   classYear,
		Opt1:        in.Opt1,
		SubmittedAt: s.now().UnixMilli(),
	}
	var resumeURL string
	if len(resume.Data) <= MaxInlineResumeBytes {
		app.Resume = in.Resume
		app.ResumeType = resume.ContentType
		app.ResumeStorage = ResumeStorageInline
		// Keyed on the login email: that is what the admin route looks up.
		resumeURL = s.baseURL + "/api/admin/candidate-resume/" + url.PathEscape(model.NormalizeEmail(u.Email))
	} else {
		key := s.objects.ResumeKey(u.UserID, resume.Ext)
		if err := s.objects.Put(ctx, key, resume.Data, resume.ContentType); err != nil {
			return s.fail(u, "uploading resume", err)
		}
		resumeURL = s.objects.S3URL(key)
		app.ResumeURL = resumeURL
		app.ResumeKey = key
		app.ResumeType = resume.ContentType
		app.ResumeStorage = ResumeStorageS3
	}

	err = s.users.UpdateOne(ctx, repository.Filter{UserID: u.UserID}, repository.Set{
		"internalHeadshotUrl":  headshotURL,
		"userData.application": app,
	})
	if err != nil {
		return s.fail(u, "saving application", err)
	}

	s.logger.Info("application submitted",
		slog.String("userID", u.UserID),
		slog.String("resumeStorage", app.ResumeStorage),
	)
	s.metrics.ApplicationSubmitted()

	photo := headshotURL
	if photo == "" && u.HeadshotURL != nil {
		photo = *u.HeadshotURL
	}
	s.mirror.ApplicationSubmitted(u, mirror.Submission{
		Email:     email,
		ClassYear: classYear,
		Response:  in.Opt1,
		ResumeURL: resumeURL,
		PhotoURL:  photo,
	})
	return nil
}

func (s *ApplicationService) fail(u *model.User, step string, err error) error {
	s.logger.Error("submit application failed",
		slog.String("userID", u.UserID),
		slog.String("step", step),
		slog.String("error", err.Error()),
	)
	return apperror.Upstream(MsgApplicationFailed, errors.Join(errors.New(step), err))
}

// mitEmail picks the address the application is filed under.
func mitEmail(loginEmail, typedEmail string) (string, error) {
	login := model.NormalizeEmail(loginEmail)
	if strings.HasSuffix(login, "@mit.edu") {
		return login, nil
	}
	typed := model.NormalizeEmail(typedEmail)
	if !strings.HasSuffix(typed, "@mit.edu") || typed == "@mit.edu" {
		return "", apperror.ValidationFailed("email", MsgApplicationEmail)
	}
	return typed, nil
}
