package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository"
)

const MsgFeedbackSubmitted = "feedback submitted"

// FeedbackInput is one staff evaluation of a candidate, keyed by the
// candidate's email.
type FeedbackInput struct {
	Email      string
	Event      string
	Comments   string
	Commitment string
	SocialFit  string
	Challenge  string
	Tact       string
}

// FeedbackService lets members and admins leave notes on candidates.
type FeedbackService struct {
	users  repository.UserRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewFeedbackService wires a FeedbackService.
func NewFeedbackService(users repository.UserRepository, logger *slog.Logger) *FeedbackService {
	return &FeedbackService{users: users, logger: logger, now: time.Now}
}

// Submit appends feedback from author to the candidate's record.
//
// The list is read, extended and written back as a whole, so two staff
// members submitting at the same instant can lose one entry.
func (s *FeedbackService) Submit(ctx context.Context, author *model.User, in FeedbackInput) error {
	email := model.NormalizeEmail(in.Email)
	if email == "" || strings.TrimSpace(in.Event) == "" {
		return apperror.ValidationFailed("", MsgMissingFields)
	}

	candidate, err := s.users.FindOne(ctx, repository.Filter{Email: email})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMsg(MsgCandidateNotFound)
		}
		return fmt.Errorf("service/feedback: finding candidate: %w", err)
	}

	entry := model.Feedback{
		SubmittedBy: author.FullName(),
		Event:       strings.TrimSpace(in.Event),
		Comments:    in.Comments,
		Commitment:  in.Commitment,
		SocialFit:   in.SocialFit,
		Challenge:   in.Challenge,
		Tact:        in.Tact,
		SubmittedAt: s.now().UnixMilli(),
	}
	feedback := make([]model.Feedback, 0, len(candidate.UserData.Feedback)+1)
	feedback = append(feedback, candidate.UserData.Feedback...)
	feedback = append(feedback, entry)

	err = s.users.UpdateOne(ctx, repository.Filter{UserID: candidate.UserID}, repository.Set{
		"userData.feedback": feedback,
	})
	if err != nil {
		return fmt.Errorf("service/feedback: saving feedback: %w", err)
	}
	s.logger.Info("feedback submitted",
		slog.String("candidateID", candidate.UserID),
		slog.String("authorID", author.UserID),
		slog.String("event", entry.Event),
	)
	return nil
}
