package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository"
)

func userFilter(u *model.User) repository.Filter {
	return repository.Filter{UserID: u.UserID}
}

// =========================================================================
// FEEDBACK
// =========================================================================

func TestFeedbackSubmit_Appends(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cand := env.signup(t, "Ada", "ada@mit.edu")
	staff := env.signup(t, "Sam", "sam@mit.edu")

	require.NoError(t, env.feedback.Submit(ctx, staff, FeedbackInput{Email: "ADA@mit.edu", Event: "careerday", Comments: "one"}))
	require.NoError(t, env.feedback.Submit(ctx, staff, FeedbackInput{Email: "ada@mit.edu", Event: "dessert", Comments: "two"}))

	fb := env.reload(t, cand.UserID).UserData.Feedback
	require.Len(t, fb, 2)
	assert.Equal(t, "one", fb[0].Comments)
	assert.Equal(t, "two", fb[1].Comments)
	assert.Equal(t, "Sam Tester", fb[0].SubmittedBy)
	assert.NotZero(t, fb[0].SubmittedAt)
}

func TestFeedbackSubmit_Errors(t *testing.T) {
	env := newTestEnv(t)
	staff := env.signup(t, "Sam", "sam@mit.edu")

	err := env.feedback.Submit(context.Background(), staff, FeedbackInput{Email: "ada@mit.edu"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	err = env.feedback.Submit(context.Background(), staff, FeedbackInput{Email: "ada@mit.edu", Event: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, MsgCandidateNotFound, err.Error())
}

// =========================================================================
// CONFLICTS
// =========================================================================

func TestConflictAdd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := env.signup(t, "Sam", "sam@mit.edu")

	list, err := env.conflicts.Add(ctx, staff, []string{" ada@mit.edu ", "", "Bob Lee"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@mit.edu", "Bob Lee"}, list)

	list, err = env.conflicts.Add(ctx, staff, []string{"ADA@mit.edu", "cy@mit.edu"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@mit.edu", "Bob Lee", "cy@mit.edu"}, list)

	assert.Equal(t, list, env.reload(t, staff.UserID).Conflict)
}

func TestConflictAdd_Repeats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := env.signup(t, "Sam", "sam@mit.edu")
	_, err := env.conflicts.Add(ctx, staff, []string{"ada@mit.edu"})
	require.NoError(t, err)

	list, err := env.conflicts.Add(ctx, staff, []string{"Ada@MIT.edu"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@mit.edu"}, list)
}

func TestConflictAdd_Empty(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
	}{
		{"nil", nil},
		{"blank", []string{" ", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			staff := env.signup(t, "Sam", "sam@mit.edu")

			_, err := env.conflicts.Add(context.Background(), staff, tt.entries)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, MsgNoConflicts, err.Error())
			assert.Empty(t, env.reload(t, staff.UserID).Conflict)
		})
	}
}

// =========================================================================
// DEV TOOLS
// =========================================================================

func TestSeedEventCodes(t *testing.T) {
	env := newTestEnv(t)

	codes, err := env.dev.SeedEventCodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultEventCodes(), codes)

	stored, found, err := env.admin.EventCodes(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, codes, stored)
}

func TestClearEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCodes(t, env)
	u := env.signup(t, "A", "a@mit.edu")
	_, err := env.events.CheckIn(ctx, u, "dessert", "dessert")
	require.NoError(t, err)

	require.NoError(t, env.dev.ClearEvents(ctx, "A@mit.edu"))

	assert.Equal(t, map[string]bool{}, env.reload(t, u.UserID).UserData.Events)
	require.NotEmpty(t, env.mirror.rewrites)
	assert.Empty(t, env.mirror.rewrites[len(env.mirror.rewrites)-1])
}

func TestClearEvents_Errors(t *testing.T) {
	env := newTestEnv(t)

	err := env.dev.ClearEvents(context.Background(), " ")
	require.Error(t, err)
	assert.Equal(t, MsgMissingEmail, err.Error())

	err = env.dev.ClearEvents(context.Background(), "ghost@mit.edu")
	require.Error(t, err)
	assert.Equal(t, MsgUserNotFound, err.Error())
}

func TestSheetsTest(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.dev.SheetsTest(context.Background()))
	require.Len(t, env.sheets.rows, 1)
	assert.Equal(t, "Test User", env.sheets.rows[0].Name)
	assert.Equal(t, "test@example.com", env.sheets.rows[0].Email)

	env.sheets.err = errors.New("permission denied")
	err := env.dev.SheetsTest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	noSheets := NewDevService(env.db.Users(), env.db.Config(), env.mirror, nil, discardLogger())
	assert.ErrorIs(t, noSheets.SheetsTest(context.Background()), ErrSheetsUnavailable)
}
