package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/recruiting-portal/internal/auth"
	"github.com/sakif/recruiting-portal/internal/mirror"
	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository/kv"
	"github.com/sakif/recruiting-portal/internal/store/sqlite"
)

// =========================================================================
// FAKES
// =========================================================================

// fakeMirror records what the services asked to sync.
type fakeMirror struct {
	mu          sync.Mutex
	signedIn    []string
	classYears  []string
	headshots   []string
	submissions []mirror.Submission
	checkIns    []map[string]bool
	rewrites    []map[string]bool
}

func (f *fakeMirror) UserSignedIn(u *model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedIn = append(f.signedIn, u.Email)
}

func (f *fakeMirror) ClassYearChanged(email, classYear string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classYears = append(f.classYears, email+" "+classYear)
}

func (f *fakeMirror) HeadshotChanged(email, photoURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headshots = append(f.headshots, email+" "+photoURL)
}

func (f *fakeMirror) ApplicationSubmitted(_ *model.User, sub mirror.Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, sub)
}

func (f *fakeMirror) EventCheckedIn(_ *model.User, events map[string]bool, _ bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkIns = append(f.checkIns, events)
}

func (f *fakeMirror) EventsRewritten(_ *model.User, events map[string]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rewrites = append(f.rewrites, events)
}

// fakeObjects is an in-memory bucket with predictable keys.
type fakeObjects struct {
	puts       map[string][]byte
	types      map[string]string
	putErr     error
	presignErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{puts: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) PresignPut(_ context.Context, key, _ string) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://signed.example/" + key, nil
}

func (f *fakeObjects) Put(_ context.Context, key string, body []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts[key] = body
	f.types[key] = contentType
	return nil
}

func (f *fakeObjects) URLFor(key string) string { return "https://cdn.example/" + key }
func (f *fakeObjects) S3URL(key string) string  { return "https://bucket.s3.example/" + key }

func (f *fakeObjects) HeadshotKey(string) string { return "headshots/h.jpg" }

func (f *fakeObjects) InternalHeadshotKey(userID, ext string) string {
	return "internal-headshots/" + userID + "." + ext
}

func (f *fakeObjects) ResumeKey(userID, ext string) string {
	return "resumes/" + userID + "." + ext
}

// fakeGoogle returns a fixed identity or error.
type fakeGoogle struct {
	identity *auth.GoogleIdentity
	err      error
}

func (f *fakeGoogle) Verify(context.Context, string) (*auth.GoogleIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

// countingMetrics counts business events.
type countingMetrics struct {
	signups  map[string]int
	checkIns map[string]int
	submits  int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{signups: map[string]int{}, checkIns: map[string]int{}}
}

func (m *countingMetrics) Signup(method string) { m.signups[method]++ }

func (m *countingMetrics) CheckIn(event string, repeat bool) {
	if repeat {
		event += ":repeat"
	}
	m.checkIns[event]++
}

func (m *countingMetrics) ApplicationSubmitted() { m.submits++ }

var errBoom = errors.New("boom")

// =========================================================================
// FIXTURE
// =========================================================================

// testEnv wires every service to one in-memory store.
type testEnv struct {
	db          *kv.DB
	mirror      *fakeMirror
	objects     *fakeObjects
	google      *fakeGoogle
	metrics     *countingMetrics
	tokens      *auth.TokenService
	auth        *AuthService
	profile     *ProfileService
	application *ApplicationService
	events      *EventService
	admin       *AdminService
	feedback    *FeedbackService
	conflicts   *ConflictService
	dev         *DevService
	sheets      *fakeSheets
}

type fakeSheets struct {
	rows []mirror.PNMRow
	err  error
}

func (f *fakeSheets) AppendPNM(_ context.Context, row mirror.PNMRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	table, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { table.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	logger := discardLogger()
	env := &testEnv{
		db:      kv.New(table),
		mirror:  &fakeMirror{},
		objects: newFakeObjects(),
		google:  &fakeGoogle{},
		metrics: newCountingMetrics(),
		sheets:  &fakeSheets{},
		tokens:  tokens,
	}
	users, config := env.db.Users(), env.db.Config()

	// Cost 4 is the bcrypt minimum and keeps these tests fast.
	passwords := auth.NewPasswordServiceWithCost(4)

	env.auth = NewAuthService(users, tokens, passwords, env.google, env.mirror, env.metrics, logger)
	env.profile = NewProfileService(users, env.objects, env.mirror, logger)
	env.application = NewApplicationService(users, env.objects, env.mirror, env.metrics, "https://apply.example/", logger)
	env.events = NewEventService(users, config, env.mirror, env.metrics, logger)
	env.admin = NewAdminService(users, config, env.mirror, "https://apply.example", logger)
	env.feedback = NewFeedbackService(users, logger)
	env.conflicts = NewConflictService(users, logger)
	env.dev = NewDevService(users, config, env.mirror, env.sheets, logger)
	return env
}

// signup creates a password account and returns it freshly loaded.
func (e *testEnv) signup(t *testing.T, first, email string) *model.User {
	t.Helper()
	res, err := e.auth.Signup(context.Background(), SignupInput{
		FirstName: first,
		LastName:  "Tester",
		Email:     email,
		Password:  "12345678",
	})
	require.NoError(t, err)
	return e.reload(t, res.User.UserID)
}

func (e *testEnv) reload(t *testing.T, userID string) *model.User {
	t.Helper()
	u, err := e.db.Users().FindByID(context.Background(), userID)
	require.NoError(t, err)
	return u
}

func (e *testEnv) promote(t *testing.T, u *model.User, role model.Usertype) {
	t.Helper()
	u.Usertype = role
	require.NoError(t, e.db.Users().Put(context.Background(), u))
}
