package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository"
)

const (
	MsgInvalidEventID   = "invalid event id"
	MsgInvalidEventCode = "invalid event code"
	MsgAlreadyCheckedIn = "already checked in"
	MsgEventCodeSaved   = "event code saved to database"
)

// CheckInResult is the outcome of an event sign-in. Count is the number of
// events the user has now attended.
type CheckInResult struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// EventService records event attendance.
type EventService struct {
	users   repository.UserRepository
	config  repository.ConfigRepository
	mirror  Mirror
	metrics Metrics
	logger  *slog.Logger
}

// NewEventService wires an EventService.
func NewEventService(users repository.UserRepository, config repository.ConfigRepository, mirror Mirror, metrics Metrics, logger *slog.Logger) *EventService {
	return &EventService{
		users:   users,
		config:  config,
		mirror:  mirror,
		metrics: metricsOrNop(metrics),
		logger:  logger,
	}
}

// CheckIn validates eventCode against the configured code for eventID and
// marks the user as attending.
//
// OUTCOMES:
//
//	unknown event id        → 400 "invalid event id", nothing written
//	wrong code              → 400 "invalid event code", nothing written
//	already checked in      → "already checked in", AppSheet row refreshed
//	first check-in to event → events saved, PNM row claimed, AppSheet upserted
//
// Legacy ids from older frontends are mapped through model.EventAliases.
func (s *EventService) CheckIn(ctx context.Context, u *model.User, eventID, eventCode string) (*CheckInResult, error) {
	id := CanonicalEventID(eventID)
	if id == "" || eventCode == "" {
		return nil, apperror.ValidationFailed("", MsgMissingFields)
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/event: loading event codes: %w", err)
	}
	expected := ""
	if cfg != nil {
		expected = cfg.ConfigData[id]
	}
	if expected == "" {
		return nil, apperror.ValidationFailed("eventName", MsgInvalidEventID)
	}
	if eventCode != expected {
		return nil, apperror.ValidationFailed("eventCode", MsgInvalidEventCode)
	}

	if u.UserData.Events[id] {
		events := copyEvents(u.UserData.Events)
		s.metrics.CheckIn(id, true)
		s.mirror.EventsRewritten(u, events)
		return &CheckInResult{Message: MsgAlreadyCheckedIn, Count: len(events)}, nil
	}

	events := copyEvents(u.UserData.Events)
	events[id] = true
	err = s.users.UpdateOne(ctx, repository.Filter{UserID: u.UserID}, repository.Set{
		"userData.events": events,
	})
	if err != nil {
		return nil, fmt.Errorf("service/event: saving check-in: %w", err)
	}

	s.logger.Info("event check-in",
		slog.String("userID", u.UserID),
		slog.String("event", id),
		slog.Int("count", len(events)),
	)
	s.metrics.CheckIn(id, false)
	s.mirror.EventCheckedIn(u, events, true)

	return &CheckInResult{Message: MsgEventCodeSaved, Count: len(events)}, nil
}

// CanonicalEventID trims id and resolves legacy aliases.
func CanonicalEventID(id string) string {
	id = strings.TrimSpace(id)
	if alias, ok := model.EventAliases[id]; ok {
		return alias
	}
	return id
}
