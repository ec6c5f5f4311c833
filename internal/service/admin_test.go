package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/model"
)

// =========================================================================
// EVENT CODES
// =========================================================================

func TestEventCodes_Unset(t *testing.T) {
	env := newTestEnv(t)

	codes, found, err := env.admin.EventCodes(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, map[string]string{}, codes)

	cfg, err := env.admin.Config(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestSetEventCode_Merges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.admin.SetEventCode(ctx, "careerday", "c1"))
	require.NoError(t, env.admin.SetEventCode(ctx, "dessert", "d1"))
	require.NoError(t, env.admin.SetEventCode(ctx, "careerday", "c2"))

	codes, found, err := env.admin.EventCodes(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]string{"careerday": "c2", "dessert": "d1"}, codes)

	err = env.admin.SetEventCode(ctx, "", "x")
	require.Error(t, err)
	assert.Equal(t, MsgMissingFields, err.Error())
}

func TestReplaceEventCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.admin.SetEventCode(ctx, "careerday", "c1"))

	cfg, err := env.admin.ReplaceEventCodes(ctx, map[string]string{"gala": "g"})
	require.NoError(t, err)
	assert.Equal(t, model.ConfigTypeEventCodes, cfg.ConfigType)

	codes, _, err := env.admin.EventCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"gala": "g"}, codes, "replace drops old codes")

	_, err = env.admin.ReplaceEventCodes(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, MsgMissingCodes, err.Error())
}

// =========================================================================
// CANDIDATES
// =========================================================================

func TestCandidates_FiltersAndRedacts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "A", "a@mit.edu")
	b := env.signup(t, "B", "b@mit.edu")
	staff := env.signup(t, "S", "s@mit.edu")
	env.promote(t, staff, model.UsertypeMember)
	require.NoError(t, env.admin.SetDecision(ctx, "B@mit.edu", "accepted"))

	all, err := env.admin.Candidates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, c := range all {
		assert.Nil(t, c.Password)
		assert.Equal(t, model.UsertypeCandidate, c.Usertype)
	}

	accepted, err := env.admin.CandidatesByDecision(ctx, "accepted")
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, b.UserID, accepted[0].UserID)

	pending, err := env.admin.CandidatesByDecision(ctx, model.DecisionPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestCandidate(t *testing.T) {
	env := newTestEnv(t)
	a := env.signup(t, "A", "a@mit.edu")

	got, err := env.admin.Candidate(context.Background(), a.UserID)
	require.NoError(t, err)
	assert.Equal(t, "a@mit.edu", got.Email)
	assert.Nil(t, got.Password)

	_, err = env.admin.Candidate(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, MsgCandidateNotFound, err.Error())
}

func TestSetDecision_Errors(t *testing.T) {
	env := newTestEnv(t)

	err := env.admin.SetDecision(context.Background(), "nobody@mit.edu", "accepted")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	err = env.admin.SetDecision(context.Background(), "a@mit.edu", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCandidateResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inline := env.signup(t, "A", "a@mit.edu")
	uploaded := env.signup(t, "B", "b@mit.edu")
	env.signup(t, "C", "c@mit.edu")

	require.NoError(t, env.application.Submit(ctx, inline, ApplicationInput{
		ClassYear: "2027", ProfileImg: testImage, Resume: testPDF,
	}))
	require.NoError(t, env.application.Submit(ctx, uploaded, ApplicationInput{
		ClassYear: "2027", ProfileImg: testImage,
		Resume: dataURL("application/pdf", make([]byte, MaxInlineResumeBytes+10)),
	}))

	file, err := env.admin.CandidateResume(ctx, "A@mit.edu")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "%PDF-1.4 small resume", string(file.Data))
	assert.Empty(t, file.RedirectURL)

	file, err = env.admin.CandidateResume(ctx, "b@mit.edu")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.example/resumes/"+uploaded.UserID+".pdf", file.RedirectURL)
	assert.Nil(t, file.Data)

	_, err = env.admin.CandidateResume(ctx, "c@mit.edu")
	require.Error(t, err)
	assert.Equal(t, MsgResumeNotFound, err.Error())

	_, err = env.admin.CandidateResume(ctx, "zed@mit.edu")
	require.Error(t, err)
	assert.Equal(t, MsgCandidateNotFound, err.Error())
}

// =========================================================================
// FIX USER EVENTS
// =========================================================================

func TestFixUserEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCodes(t, env)
	u := env.signup(t, "A", "a@mit.edu")
	require.NoError(t, env.db.Users().UpdateOne(ctx, userFilter(u), map[string]any{
		"userData.events": map[string]bool{"meettheteam": true, "dessert": true},
	}))

	res, err := env.admin.FixUserEvents(ctx, FixEventsInput{Email: "a@mit.edu", FromKey: "meettheteam", ToKey: "hellomcg"})
	require.NoError(t, err)
	assert.Equal(t, MsgFixed, res.Message)
	assert.Equal(t, u.UserID, res.UserID)
	want := map[string]bool{"hellomcg": true, "dessert": true}
	assert.Equal(t, want, res.Events)
	assert.Equal(t, want, env.reload(t, u.UserID).UserData.Events)
	require.Len(t, env.mirror.rewrites, 1)

	res, err = env.admin.FixUserEvents(ctx, FixEventsInput{UserID: u.UserID, FromKey: "meettheteam", ToKey: "hellomcg"})
	require.NoError(t, err)
	assert.Equal(t, MsgFixNoop, res.Message)
	assert.Len(t, env.mirror.rewrites, 1, "no-op does not sync")
}

func TestFixUserEvents_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.admin.FixUserEvents(ctx, FixEventsInput{FromKey: "a", ToKey: "b"})
	require.Error(t, err)
	assert.Equal(t, MsgFixMissingFields, err.Error())

	_, err = env.admin.FixUserEvents(ctx, FixEventsInput{Email: "x@mit.edu", FromKey: "a", ToKey: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, MsgUserNotFound, err.Error())
}

// =========================================================================
// EXPORTS
// =========================================================================

func readCSV(t *testing.T, b *bytes.Buffer) [][]string {
	t.Helper()
	records, err := csv.NewReader(b).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCandidateCSV(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedCodes(t, env)
	applied := env.signup(t, "Ada", "ada@mit.edu")
	env.signup(t, "Nope", "nope@mit.edu")

	_, err := env.events.CheckIn(ctx, applied, "careerday", "careerday")
	require.NoError(t, err)
	applied = env.reload(t, applied.UserID)
	require.NoError(t, env.application.Submit(ctx, applied, ApplicationInput{
		ClassYear: "2027", ProfileImg: testImage, Resume: testPDF,
		Opt1: "grow, learn\n=SUM(A1)",
	}))

	var buf bytes.Buffer
	require.NoError(t, env.admin.CandidateCSV(ctx, &buf))
	records := readCSV(t, &buf)

	require.Len(t, records, 2, "header plus the one applicant")
	assert.Equal(t, []string{
		"First Name", "Last Name", "Email", "Class Year",
		"Meet the Team", "DEI Panel", "Resume Review", "Cheesecake Social", "Case Workshop", "Case Prep",
		"Resume", "Profile", "Hope to Gain", "Past Experience",
	}, records[0])

	row := records[1]
	assert.Equal(t, []string{"Ada", "Tester", "ada@mit.edu", "2027"}, row[:4])
	assert.Equal(t, []string{"No", "Yes", "No", "No", "No", "No"}, row[4:10])
	assert.Equal(t, "https://apply.example/api/admin/candidate-resume/ada@mit.edu", row[10])
	assert.True(t, strings.HasPrefix(row[11], "https://cdn.example/internal-headshots/"))
	assert.Equal(t, "grow, learn equalsSUM(A1)", row[12])
}

func TestFeedbackCSV(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "Ada", "ada@mit.edu")
	staff := env.signup(t, "Sam", "sam@mit.edu")
	env.promote(t, staff, model.UsertypeMember)

	require.NoError(t, env.feedback.Submit(ctx, staff, FeedbackInput{
		Email: "ada@mit.edu", Event: "careerday", Comments: "sharp,\nkind",
		Commitment: "4", SocialFit: "5", Challenge: "3", Tact: "4",
	}))
	require.NoError(t, env.feedback.Submit(ctx, staff, FeedbackInput{
		Email: "ada@mit.edu", Event: "dessert", Comments: "ok",
	}))

	var buf bytes.Buffer
	require.NoError(t, env.admin.FeedbackCSV(ctx, &buf))
	records := readCSV(t, &buf)

	require.Len(t, records, 3)
	assert.Equal(t, "Submitted By", records[0][3])
	assert.Equal(t, []string{"Ada", "Tester", "ada@mit.edu", "Sam Tester", "careerday", "sharp, kind", "4", "5", "3", "4"}, records[1])
	assert.Equal(t, "dessert", records[2][4])
}
