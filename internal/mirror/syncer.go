package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository"
	"github.com/sakif/recruiting-portal/internal/repository/kv"
)

// RowWriter is the AppSheet surface the Syncer needs. *AppSheet implements it.
type RowWriter interface {
	Edit(ctx context.Context, row Row) error
	Upsert(ctx context.Context, row Row) error
	EditPhoto(ctx context.Context, email, photoURL string) error
}

// SheetAppender is the spreadsheet surface the Syncer needs. *Sheets
// implements it.
type SheetAppender interface {
	AppendApplication(ctx context.Context, row ApplicationRow) error
	AppendPNM(ctx context.Context, row PNMRow) error
}

// Syncer turns portal state changes into external writes and hands them to a
// Dispatcher. Every method returns immediately; the work happens later and
// its failures end up in the log.
//
// Methods take a *model.User but copy what they need before dispatching, so
// callers may keep mutating the user afterwards.
type Syncer struct {
	rows     RowWriter
	sheets   SheetAppender
	users    repository.UserRepository
	counters repository.Counters
	dispatch Dispatcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewSyncer wires a Syncer.
func NewSyncer(rows RowWriter, sheets SheetAppender, users repository.UserRepository, counters repository.Counters, dispatch Dispatcher, logger *slog.Logger) *Syncer {
	return &Syncer{
		rows:     rows,
		sheets:   sheets,
		users:    users,
		counters: counters,
		dispatch: dispatch,
		logger:   logger,
		now:      time.Now,
	}
}

// UserSignedIn upserts the candidate's AppSheet row after signup or login
// and stamps appsheetSyncedAt.
func (s *Syncer) UserSignedIn(u *model.User) {
	userID := u.UserID
	row := Row{
		"FirstName": u.FirstName,
		"LastName":  u.LastName,
		"Email":     u.Email,
		"Photo":     u.Photo(),
	}
	if cy := u.ClassYear(); cy != "" {
		row["ClassYear"] = cy
	}

	s.dispatch.Dispatch("appsheet.signin", func(ctx context.Context) error {
		if err := s.rows.Upsert(ctx, row); err != nil {
			return err
		}
		err := s.users.UpdateOne(ctx, repository.Filter{UserID: userID}, repository.Set{
			"appsheetSyncedAt": s.now().UnixMilli(),
		})
		if err != nil {
			return fmt.Errorf("marking appsheet sync: %w", err)
		}
		return nil
	})
}

// ClassYearChanged pushes a new class year.
func (s *Syncer) ClassYearChanged(email, classYear string) {
	s.dispatch.Dispatch("appsheet.class_year", func(ctx context.Context) error {
		return s.rows.Edit(ctx, Row{"Email": email, "ClassYear": classYear})
	})
}

// HeadshotChanged pushes a new photo URL.
func (s *Syncer) HeadshotChanged(email, photoURL string) {
	s.dispatch.Dispatch("appsheet.photo", func(ctx context.Context) error {
		return s.rows.EditPhoto(ctx, email, photoURL)
	})
}

// Submission is what the mirrors record about a submitted application.
type Submission struct {
	Email     string // the @mit.edu address the row is keyed by
	ClassYear string
	Response  string
	ResumeURL string
	PhotoURL  string
}

// ApplicationSubmitted edits the AppSheet row (falling back to a full upsert
// when the edit fails) and appends to the application log. The two targets
// are independent: a failed AppSheet write does not skip the sheet append.
func (s *Syncer) ApplicationSubmitted(u *model.User, sub Submission) {
	patch := Row{
		"Email":            sub.Email,
		"ClassYear":        sub.ClassYear,
		"OptionalResponse": sub.Response,
		"ResumeUrl":        sub.ResumeURL,
	}
	full := Row{
		"FirstName": u.FirstName,
		"LastName":  u.LastName,
		"Photo":     sub.PhotoURL,
	}
	for k, v := range patch {
		full[k] = v
	}
	line := ApplicationRow{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     sub.Email,
		ClassYear: sub.ClassYear,
		PhotoURL:  sub.PhotoURL,
		ResumeURL: sub.ResumeURL,
		Response:  sub.Response,
	}

	s.dispatch.Dispatch("appsheet.application", func(ctx context.Context) error {
		if err := s.rows.Edit(ctx, patch); err != nil {
			s.logger.Debug("appsheet edit failed, upserting", slog.String("email", sub.Email), slog.String("error", err.Error()))
			return s.rows.Upsert(ctx, full)
		}
		return nil
	})
	s.dispatch.Dispatch("sheets.application", func(ctx context.Context) error {
		return s.sheets.AppendApplication(ctx, line)
	})
}

// EventCheckedIn mirrors a check-in. On a candidate's first check-in ever
// (firstTime) it also adds them to the PNM roster, at most once per email:
// the email is claimed first, and only the winner takes a PNM id and
// appends. A crash between claim and append loses that row.
func (s *Syncer) EventCheckedIn(u *model.User, events map[string]bool, firstTime bool) {
	if firstTime {
		email := model.NormalizeEmail(u.Email)
		pnm := PNMRow{
			Name:      u.FullName(),
			Email:     email,
			ClassYear: u.ClassYear(),
			PhotoURL:  u.Photo(),
		}
		s.dispatch.Dispatch("sheets.pnm", func(ctx context.Context) error {
			won, err := s.counters.ClaimOnce(ctx, kv.ClaimPNMEmail, email)
			if err != nil {
				return fmt.Errorf("claiming pnm email: %w", err)
			}
			if !won {
				s.logger.Info("pnm already recorded, skipping", slog.String("email", email))
				return nil
			}
			id, err := s.counters.NextID(ctx, kv.CounterPNMID)
			if err != nil {
				return fmt.Errorf("allocating pnm id: %w", err)
			}
			pnm.ID = id
			return s.sheets.AppendPNM(ctx, pnm)
		})
	}
	s.EventsRewritten(u, events)
}

// EventsRewritten upserts the candidate's attendance columns.
func (s *Syncer) EventsRewritten(u *model.User, events map[string]bool) {
	row := Row{
		"Email":             u.Email,
		"FirstName":         u.FirstName,
		"LastName":          u.LastName,
		"Photo":             u.Photo(),
		"EventsAttended":    EventsList(events),
		"NumEventsAttended": len(events),
	}
	s.dispatch.Dispatch("appsheet.events", func(ctx context.Context) error {
		return s.rows.Upsert(ctx, row)
	})
}

// EventsList renders event ids as the sorted, comma-separated list staff see.
func EventsList(events map[string]bool) string {
	ids := make([]string, 0, len(events))
	for id := range events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}
