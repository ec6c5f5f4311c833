package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/objects"
	"github.com/sakif/recruiting-portal/internal/repository"
)

const (
	MsgInvalidClassYear = "Invalid class year"
	MsgMissingURL       = "missing url"
	MsgHeadshotFailed   = "failed to save headshot"
	MsgContentType      = "contentType required"
	MsgUploadURLFailed  = "could not create upload URL"
)

var classYearPattern = regexp.MustCompile(`^\d{4}$`)

// MeView is what the signed-in user sees about themselves.
type MeView struct {
	FirstName        string         `json:"firstname"`
	LastName         string         `json:"lastname"`
	Email            string         `json:"email"`
	Usertype         model.Usertype `json:"usertype"`
	Conflict         []string       `json:"conflict"`
	Headshot         *string        `json:"headshot"`
	InternalHeadshot *string        `json:"internalHeadshot"`
	ClassYear        *string        `json:"classYear"`
	HasHeadshot      bool           `json:"hasHeadshot"`
	UserData         MeUserData     `json:"userData"`
}

// MeUserData is the slice of UserData exposed to its owner. Feedback is staff
// only and never included.
type MeUserData struct {
	Events      map[string]bool    `json:"events"`
	Application *model.Application `json:"application,omitempty"`
}

// UploadURL is a presigned PUT plus the URL the object will be readable at.
type UploadURL struct {
	UploadURL string `json:"uploadUrl"`
	FileURL   string `json:"fileUrl"`
}

// ProfileService covers the signed-in user's own profile and uploads.
type ProfileService struct {
	users   repository.UserRepository
	objects ObjectStore
	mirror  Mirror
	logger  *slog.Logger
	now     func() time.Time
}

// NewProfileService wires a ProfileService.
func NewProfileService(users repository.UserRepository, files ObjectStore, mirror Mirror, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		users:   users,
		objects: files,
		mirror:  mirror,
		logger:  logger,
		now:     time.Now,
	}
}

// Me builds the user's view of their own record.
func (s *ProfileService) Me(u *model.User) MeView {
	photo := u.Photo()
	view := MeView{
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		Usertype:         u.Usertype,
		Conflict:         u.Conflict,
		InternalHeadshot: nonEmpty(u.InternalHeadshotURL),
		HasHeadshot:      photo != "",
		UserData: MeUserData{
			Events:      u.UserData.Events,
			Application: u.UserData.Application,
		},
	}
	if view.Conflict == nil {
		view.Conflict = []string{}
	}
	if photo != "" {
		view.Headshot = &photo
	}
	if cy := u.ClassYear(); cy != "" {
		view.ClassYear = &cy
	}
	return view
}

// SetClassYear stores a four-digit class year on the profile.
func (s *ProfileService) SetClassYear(ctx context.Context, u *model.User, classYear string) error {
	classYear = strings.TrimSpace(classYear)
	if !classYearPattern.MatchString(classYear) {
		return apperror.ValidationFailed("classYear", MsgInvalidClassYear)
	}
	err := s.users.UpdateOne(ctx, repository.Filter{UserID: u.UserID}, repository.Set{
		"userData.classYear": classYear,
	})
	if err != nil {
		return fmt.Errorf("service/profile: setting class year: %w", err)
	}
	s.mirror.ClassYearChanged(u.Email, classYear)
	return nil
}

// SaveInternalHeadshot records the onboarding headshot the browser uploaded
// and marks onboarding complete.
func (s *ProfileService) SaveInternalHeadshot(ctx context.Context, u *model.User, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return apperror.ValidationFailed("url", MsgMissingURL)
	}
	err := s.users.UpdateOne(ctx, repository.Filter{UserID: u.UserID}, repository.Set{
		"internalHeadshotUrl":  url,
		"onboardingCompleteAt": s.now().UnixMilli(),
	})
	if err != nil {
		s.logger.Error("saving internal headshot", slog.String("userID", u.UserID), slog.String("error", err.Error()))
		return apperror.Upstream(MsgHeadshotFailed, err)
	}
	s.mirror.HeadshotChanged(u.Email, url)
	return nil
}

// PresignHeadshot returns an upload URL for a public headshot chosen before
// the account exists.
func (s *ProfileService) PresignHeadshot(ctx context.Context, contentType string) (*UploadURL, error) {
	if contentType == "" {
		return nil, apperror.ValidationFailed("contentType", MsgContentType)
	}
	key := s.objects.HeadshotKey(contentType)
	return s.presign(ctx, key, contentType, s.objects.S3URL(key))
}

// PresignInternalHeadshot returns an upload URL for the signed-in user's
// onboarding headshot. The file URL goes through the CDN when one is set.
func (s *ProfileService) PresignInternalHeadshot(ctx context.Context, u *model.User, contentType string) (*UploadURL, error) {
	if contentType == "" {
		return nil, apperror.ValidationFailed("contentType", MsgContentType)
	}
	key := s.objects.InternalHeadshotKey(u.UserID, objects.ImageExt(contentType))
	return s.presign(ctx, key, contentType, s.objects.URLFor(key))
}

func (s *ProfileService) presign(ctx context.Context, key, contentType, fileURL string) (*UploadURL, error) {
	uploadURL, err := s.objects.PresignPut(ctx, key, contentType)
	if err != nil {
		s.logger.Error("presigning upload", slog.String("key", key), slog.String("error", err.Error()))
		return nil, apperror.Upstream(MsgUploadURLFailed, err)
	}
	return &UploadURL{UploadURL: uploadURL, FileURL: fileURL}, nil
}

func nonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}
