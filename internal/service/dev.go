package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/mirror"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository"
)

const MsgMissingEmail = "missing email"

// ErrSheetsUnavailable is returned by SheetsTest when no spreadsheet writer
// was wired.
var ErrSheetsUnavailable = errors.New("sheets writer not configured")

// SheetWriter is the spreadsheet surface the dev tools use. *mirror.Sheets
// implements it.
type SheetWriter interface {
	AppendPNM(ctx context.Context, row mirror.PNMRow) error
}

// DevService holds tools for resetting test accounts. The server only mounts
// it outside production.
type DevService struct {
	users  repository.UserRepository
	config repository.ConfigRepository
	mirror Mirror
	sheets SheetWriter
	logger *slog.Logger
}

// NewDevService wires a DevService. sheets may be nil.
func NewDevService(users repository.UserRepository, config repository.ConfigRepository, mirror Mirror, sheets SheetWriter, logger *slog.Logger) *DevService {
	return &DevService{users: users, config: config, mirror: mirror, sheets: sheets, logger: logger}
}

// SheetsTest appends a fixed row to the PNM roster so the spreadsheet
// credentials can be checked by hand. It runs synchronously and returns the
// append error.
func (s *DevService) SheetsTest(ctx context.Context) error {
	if s.sheets == nil {
		return ErrSheetsUnavailable
	}
	err := s.sheets.AppendPNM(ctx, mirror.PNMRow{
		Name:      "Test User",
		Email:     "test@example.com",
		ClassYear: "2029",
		PhotoURL:  "https://example.com/photo.jpg",
	})
	if err != nil {
		s.logger.Warn("sheets test failed", slog.String("error", err.Error()))
		return fmt.Errorf("service/dev: sheets test: %w", err)
	}
	return nil
}

// SeedEventCodes overwrites the event codes with model.DefaultEventCodes.
func (s *DevService) SeedEventCodes(ctx context.Context) (map[string]string, error) {
	codes := model.DefaultEventCodes()
	err := s.config.Save(ctx, &model.AppConfig{
		ConfigType: model.ConfigTypeEventCodes,
		ConfigData: codes,
	})
	if err != nil {
		return nil, fmt.Errorf("service/dev: seeding event codes: %w", err)
	}
	s.logger.Info("event codes seeded", slog.Int("count", len(codes)))
	return codes, nil
}

// ClearEvents wipes the attendance of the user with email so check-in can be
// tested again. The PNM claim is not released.
func (s *DevService) ClearEvents(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return apperror.ValidationFailed("email", MsgMissingEmail)
	}
	u, err := s.users.FindOne(ctx, repository.Filter{Email: email})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMsg(MsgUserNotFound)
		}
		return fmt.Errorf("service/dev: finding user: %w", err)
	}

	events := map[string]bool{}
	err = s.users.UpdateOne(ctx, repository.Filter{UserID: u.UserID}, repository.Set{"userData.events": events})
	if err != nil {
		return fmt.Errorf("service/dev: clearing events: %w", err)
	}
	s.logger.Info("events cleared", slog.String("userID", u.UserID))
	s.mirror.EventsRewritten(u, events)
	return nil
}
