package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/auth"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository"
)

// Client-facing messages for the auth routes.
const (
	MsgMissingFields      = "missing required fields"
	MsgInvalidCredentials = "invalid credentials"
	MsgEmailTaken         = "email already signed up. Please contact emmachen@mit.edu if you think this is a mistake"
	MsgMissingIDToken     = "Missing id_token"
	MsgGoogleUnverified   = "Google email not verified"
	MsgGoogleFailed       = "Google auth failed"
)

// AuthService handles account creation and sign-in.
//
//	AuthHandler (HTTP) → AuthService → UserRepository
//	                               ↘ TokenService (JWT), PasswordService (bcrypt),
//	                                 GoogleVerifier (ID tokens), Mirror (AppSheet)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	google    auth.GoogleVerifier
	mirror    Mirror
	metrics   Metrics
	logger    *slog.Logger
	newID     func() string
}

// NewAuthService wires an AuthService. google may be nil when no client id is
// configured; Google sign-in then fails with 401.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	google auth.GoogleVerifier,
	mirror Mirror,
	metrics Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		google:    google,
		mirror:    mirror,
		metrics:   metricsOrNop(metrics),
		logger:    logger,
		newID:     func() string { return xid.New().String() },
	}
}

// AuthResult bundles the user and the session token so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// SignupInput is a password signup. HeadshotURL is optional; it is the public
// URL of an image the browser already uploaded with a presigned PUT.
type SignupInput struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	HeadshotURL string
}

// Signup creates a candidate account and starts a session.
//
// The email check and the create are two separate storage calls, so two
// concurrent signups with the same email can both succeed. The window is
// small and staff resolve the rare duplicate by hand.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := model.NormalizeEmail(in.Email)
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, apperror.ValidationFailed("", MsgMissingFields)
	}

	_, err := s.users.FindOne(ctx, repository.Filter{Email: email})
	switch {
	case err == nil:
		return nil, apperror.ConflictMsg(MsgEmailTaken)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		UserID:    s.newID(),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     email,
		Password:  &hash,
		Usertype:  model.UsertypeCandidate,
		UserData:  model.NewUserData(),
		Decision:  model.DecisionPending,
		Conflict:  []string{},
	}
	if in.HeadshotURL != "" {
		headshot := in.HeadshotURL
		user.HeadshotURL = &headshot
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}
	s.logger.Info("user signed up", slog.String("userID", user.UserID), slog.String("method", "password"))
	s.metrics.Signup("password")

	return s.startSession(user)
}

// Login checks a password and starts a session. An unknown email, a Google-only
// account and a wrong password all get the same "invalid credentials".
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("", MsgMissingFields)
	}

	user, err := s.users.FindOne(ctx, repository.Filter{Email: email})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("", MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: finding user: %w", err)
	}
	if user.Password == nil {
		return nil, apperror.ValidationFailed("", MsgInvalidCredentials)
	}
	if err := s.passwords.Verify(*user.Password, password); err != nil {
		return nil, apperror.ValidationFailed("", MsgInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.UserID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// LoginWithGoogle verifies a Google ID token, creates the account on first
// sign-in, and starts a session. Returning users get their Google id linked
// and their picture refreshed.
func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken string) (*AuthResult, error) {
	if idToken == "" {
		return nil, apperror.ValidationFailed("id_token", MsgMissingIDToken)
	}
	if s.google == nil {
		return nil, apperror.Unauthorized(MsgGoogleFailed)
	}

	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		if errors.Is(err, auth.ErrGoogleEmailUnverified) {
			return nil, apperror.Unauthorized(MsgGoogleUnverified)
		}
		s.logger.Warn("google token rejected", slog.String("error", err.Error()))
		return nil, apperror.Unauthorized(MsgGoogleFailed)
	}
	email := model.NormalizeEmail(identity.Email)

	user, err := s.users.FindOne(ctx, repository.Filter{Email: email})
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.createGoogleUser(ctx, identity, email)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("service/auth: finding user: %w", err)
	default:
		if err := s.linkGoogle(ctx, user, identity); err != nil {
			return nil, err
		}
	}

	return s.startSession(user)
}

func (s *AuthService) createGoogleUser(ctx context.Context, identity *auth.GoogleIdentity, email string) (*model.User, error) {
	googleID := identity.Subject
	user := &model.User{
		UserID:    s.newID(),
		FirstName: identity.GivenName,
		LastName:  identity.FamilyName,
		Email:     email,
		GoogleID:  &googleID,
		Usertype:  model.UsertypeCandidate,
		UserData:  model.NewUserData(),
		Decision:  model.DecisionPending,
		Conflict:  []string{},
	}
	if identity.Picture != "" {
		picture := identity.Picture
		user.HeadshotURL = &picture
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating google user: %w", err)
	}
	s.logger.Info("user signed up", slog.String("userID", user.UserID), slog.String("method", "google"))
	s.metrics.Signup("google")
	return user, nil
}

func (s *AuthService) linkGoogle(ctx context.Context, user *model.User, identity *auth.GoogleIdentity) error {
	set := repository.Set{}
	if user.GoogleID == nil || *user.GoogleID == "" {
		googleID := identity.Subject
		set["googleId"] = googleID
		user.GoogleID = &googleID
	}
	if identity.Picture != "" && (user.HeadshotURL == nil || *user.HeadshotURL != identity.Picture) {
		picture := identity.Picture
		set["headshotUrl"] = picture
		user.HeadshotURL = &picture
	}
	if err := s.users.UpdateOne(ctx, repository.Filter{UserID: user.UserID}, set); err != nil {
		return fmt.Errorf("service/auth: linking google account: %w", err)
	}
	return nil
}

// Refresh issues a new token for a user whose session is still valid.
func (s *AuthService) Refresh(user *model.User) (string, error) {
	token, err := s.tokens.Issue(user.UserID)
	if err != nil {
		return "", fmt.Errorf("service/auth: refreshing token for %s: %w", user.UserID, err)
	}
	return token, nil
}

// SessionTTL is the token lifetime, used for the cookie Max-Age.
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

// startSession issues a token and queues the AppSheet sync. The sync runs
// after the response; a failure there never fails the sign-in.
func (s *AuthService) startSession(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.UserID, err)
	}
	s.mirror.UserSignedIn(user)
	return &AuthResult{User: user, Token: token}, nil
}
