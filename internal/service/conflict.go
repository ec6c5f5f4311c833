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
	MsgNoConflicts        = "no conflicts submitted"
	MsgConflictsSubmitted = "conflicts submitted"
)

// ConflictService records the candidates a staff member cannot evaluate
// impartially. Entries live on the staff member's own record.
type ConflictService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewConflictService wires a ConflictService.
func NewConflictService(users repository.UserRepository, logger *slog.Logger) *ConflictService {
	return &ConflictService{users: users, logger: logger}
}

// Add appends entries to author's conflict list and returns the new list.
// Entries are trimmed; blanks and case-insensitive repeats of an existing
// entry are skipped.
func (s *ConflictService) Add(ctx context.Context, author *model.User, entries []string) ([]string, error) {
	seen := make(map[string]bool, len(author.Conflict)+len(entries))
	list := make([]string, 0, len(author.Conflict)+len(entries))
	for _, c := range author.Conflict {
		seen[strings.ToLower(c)] = true
		list = append(list, c)
	}

	submitted, added := 0, 0
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		submitted++
		if seen[strings.ToLower(e)] {
			continue
		}
		seen[strings.ToLower(e)] = true
		list = append(list, e)
		added++
	}
	if submitted == 0 {
		return nil, apperror.ValidationFailed("conflicts", MsgNoConflicts)
	}
	if added == 0 {
		return list, nil
	}

	err := s.users.UpdateOne(ctx, repository.Filter{UserID: author.UserID}, repository.Set{
		"conflict": list,
	})
	if err != nil {
		return nil, fmt.Errorf("service/conflict: saving conflicts: %w", err)
	}
	author.Conflict = list
	s.logger.Info("conflicts submitted",
		slog.String("userID", author.UserID),
		slog.Int("added", added),
	)
	return list, nil
}
