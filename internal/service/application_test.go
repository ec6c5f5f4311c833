package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recruiting-portal/internal/apperror"
)

func dataURL(contentType string, body []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(body)
}

var (
	testPDF   = dataURL("application/pdf", []byte("%PDF-1.4 small resume"))
	testImage = dataURL("image/png", []byte("\x89PNG fake"))
)

func TestSubmit_InlineResume(t *testing.T) {
	env := newTestEnv(t)
	u := env.signup(t, "A", "a@mit.edu")

	err := env.application.Submit(context.Background(), u, ApplicationInput{
		ClassYear:  "2027",
		ProfileImg: testImage,
		Resume:     testPDF,
		Opt1:       "learn consulting",
	})
	require.NoError(t, err)

	got := env.reload(t, u.UserID)
	app := got.UserData.Application
	require.NotNil(t, app)
	assert.Equal(t, "2027", app.ClassYear)
	assert.Equal(t, "learn consulting", app.Opt1)
	assert.Equal(t, ResumeStorageInline, app.ResumeStorage)
	assert.Equal(t, testPDF, app.Resume)
	assert.Equal(t, "application/pdf", app.ResumeType)
	assert.Empty(t, app.ResumeURL)
	assert.NotZero(t, app.SubmittedAt)

	headKey := "internal-headshots/" + u.UserID + ".png"
	require.NotNil(t, got.InternalHeadshotURL)
	assert.Equal(t, "https://cdn.example/"+headKey, *got.InternalHeadshotURL)
	assert.Equal(t, "image/png", env.objects.types[headKey])
	assert.Len(t, env.objects.puts, 1, "inline resume is not uploaded")

	require.Len(t, env.mirror.submissions, 1)
	sub := env.mirror.submissions[0]
	assert.Equal(t, "a@mit.edu", sub.Email)
	assert.Equal(t, "https://apply.example/api/admin/candidate-resume/a@mit.edu", sub.ResumeURL)
	assert.Equal(t, *got.InternalHeadshotURL, sub.PhotoURL)
	assert.Equal(t, 1, env.metrics.submits)
}

func TestSubmit_LargeResumeGoesToObjectStore(t *testing.T) {
	env := newTestEnv(t)
	u := env.signup(t, "A", "a@mit.edu")
	big := dataURL("application/pdf", make([]byte, MaxInlineResumeBytes+1))

	err := env.application.Submit(context.Background(), u, ApplicationInput{
		ClassYear: "2026", ProfileImg: testImage, Resume: big,
	})
	require.NoError(t, err)

	app := env.reload(t, u.UserID).UserData.Application
	require.NotNil(t, app)
	key := "resumes/" + u.UserID + ".pdf"
	assert.Equal(t, ResumeStorageS3, app.ResumeStorage)
	assert.Empty(t, app.Resume)
	assert.Equal(t, key, app.ResumeKey)
	assert.Equal(t, "application/pdf", app.ResumeType)
	assert.Equal(t, "https://bucket.s3.example/"+key, app.ResumeURL, "resume links bypass the CDN")
	assert.Len(t, env.objects.puts[key], MaxInlineResumeBytes+1)
	assert.Equal(t, app.ResumeURL, env.mirror.submissions[0].ResumeURL)
}

func TestSubmit_ReusesOnboardingHeadshot(t *testing.T) {
	env := newTestEnv(t)
	u := env.signup(t, "A", "a@mit.edu")
	require.NoError(t, env.profile.SaveInternalHeadshot(context.Background(), u, "https://cdn/onboard.jpg"))
	u = env.reload(t, u.UserID)

	err := env.application.Submit(context.Background(), u, ApplicationInput{ClassYear: "2027", Resume: testPDF})
	require.NoError(t, err)

	got := env.reload(t, u.UserID)
	assert.Equal(t, "https://cdn/onboard.jpg", *got.InternalHeadshotURL)
	assert.Empty(t, env.objects.puts)
}

func TestSubmit_TypedMITEmail(t *testing.T) {
	env := newTestEnv(t)
	u := env.signup(t, "A", "a@gmail.com")

	err := env.application.Submit(context.Background(), u, ApplicationInput{
		ClassYear: "2027", ProfileImg: testImage, Resume: testPDF, Email: " Ada@MIT.edu",
	})
	require.NoError(t, err)
	sub := env.mirror.submissions[0]
	assert.Equal(t, "ada@mit.edu", sub.Email)
	assert.Equal(t, "https://apply.example/api/admin/candidate-resume/a@gmail.com", sub.ResumeURL)

	file, err := env.admin.CandidateResume(context.Background(), strings.TrimPrefix(sub.ResumeURL, "https://apply.example/api/admin/candidate-resume/"))
	require.NoError(t, err, "the resume link resolves to the candidate")
	assert.Equal(t, "%PDF-1.4 small resume", string(file.Data))
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		in      ApplicationInput
		wantMsg string
	}{
		{"no class year", "a@mit.edu", ApplicationInput{Resume: testPDF, ProfileImg: testImage}, MsgApplicationRequired},
		{"no resume", "a@mit.edu", ApplicationInput{ClassYear: "2027", ProfileImg: testImage}, MsgApplicationRequired},
		{"bad year", "a@mit.edu", ApplicationInput{ClassYear: "27", Resume: testPDF, ProfileImg: testImage}, MsgApplicationYear},
		{"non MIT login, no typed email", "a@gmail.com", ApplicationInput{ClassYear: "2027", Resume: testPDF, ProfileImg: testImage}, MsgApplicationEmail},
		{"non MIT typed email", "a@gmail.com", ApplicationInput{ClassYear: "2027", Resume: testPDF, ProfileImg: testImage, Email: "a@harvard.edu"}, MsgApplicationEmail},
		{"no photo", "a@mit.edu", ApplicationInput{ClassYear: "2027", Resume: testPDF}, MsgApplicationPhoto},
		{"resume not a data URL", "a@mit.edu", ApplicationInput{ClassYear: "2027", Resume: "resume.pdf", ProfileImg: testImage}, MsgApplicationResume},
		{"image not a data URL", "a@mit.edu", ApplicationInput{ClassYear: "2027", Resume: testPDF, ProfileImg: "me.png"}, MsgApplicationImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			u := env.signup(t, "A", tt.email)

			err := env.application.Submit(context.Background(), u, tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Nil(t, env.reload(t, u.UserID).UserData.Application)
			assert.Empty(t, env.mirror.submissions)
		})
	}
}

func TestSubmit_UploadFailure(t *testing.T) {
	env := newTestEnv(t)
	u := env.signup(t, "A", "a@mit.edu")
	env.objects.putErr = errBoom

	err := env.application.Submit(context.Background(), u, ApplicationInput{
		ClassYear: "2027", ProfileImg: testImage, Resume: testPDF,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, strings.HasPrefix(err.Error(), MsgApplicationFailed))
	assert.Nil(t, env.reload(t, u.UserID).UserData.Application)
	assert.Empty(t, env.mirror.submissions)
	assert.Zero(t, env.metrics.submits)
}
