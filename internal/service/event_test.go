package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recruiting-portal/internal/apperror"
	"github.com/sakif/recruiting-portal/internal/mirror"
)

func seedCodes(t *testing.T, env *testEnv) {
	t.Helper()
	_, err := env.dev.SeedEventCodes(context.Background())
	require.NoError(t, err)
}

func TestCheckIn_FirstTime(t *testing.T) {
	env := newTestEnv(t)
	seedCodes(t, env)
	u := env.signup(t, "A", "a@mit.edu")

	res, err := env.events.CheckIn(context.Background(), u, "careerday", "careerday")
	require.NoError(t, err)
	assert.Equal(t, MsgEventCodeSaved, res.Message)
	assert.Equal(t, 1, res.Count)

	got := env.reload(t, u.UserID)
	assert.Equal(t, map[string]bool{"careerday": true}, got.UserData.Events)
	require.Len(t, env.mirror.checkIns, 1)
	assert.Equal(t, map[string]bool{"careerday": true}, env.mirror.checkIns[0])
	assert.Equal(t, 1, env.metrics.checkIns["careerday"])
	assert.Empty(t, u.UserData.Events, "caller's user is not mutated")
}

func TestCheckIn_AliasResolves(t *testing.T) {
	env := newTestEnv(t)
	seedCodes(t, env)
	u := env.signup(t, "A", "a@mit.edu")

	_, err := env.events.CheckIn(context.Background(), u, " meettheteam ", "hellomcg")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"hellomcg": true}, env.reload(t, u.UserID).UserData.Events)
}

func TestCheckIn_AlreadyCheckedIn(t *testing.T) {
	env := newTestEnv(t)
	seedCodes(t, env)
	u := env.signup(t, "A", "a@mit.edu")
	_, err := env.events.CheckIn(context.Background(), u, "dessert", "dessert")
	require.NoError(t, err)

	u = env.reload(t, u.UserID)
	res, err := env.events.CheckIn(context.Background(), u, "dessert", "dessert")
	require.NoError(t, err)
	assert.Equal(t, MsgAlreadyCheckedIn, res.Message)
	assert.Equal(t, 1, res.Count)

	assert.Len(t, env.mirror.checkIns, 1, "no second PNM attempt")
	assert.Len(t, env.mirror.rewrites, 1, "AppSheet row refreshed")
	assert.Equal(t, 1, env.metrics.checkIns["dessert:repeat"])
}

func TestCheckIn_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		eventID string
		code    string
		wantMsg string
	}{
		{"wrong code", "careerday", "nope", MsgInvalidEventCode},
		{"code differs in case", "careerday", "CAREERDAY", MsgInvalidEventCode},
		{"unknown event", "gala", "gala", MsgInvalidEventID},
		{"missing code", "careerday", "", MsgMissingFields},
		{"missing event", "  ", "careerday", MsgMissingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			seedCodes(t, env)
			u := env.signup(t, "A", "a@mit.edu")
			before := env.reload(t, u.UserID)

			_, err := env.events.CheckIn(context.Background(), u, tt.eventID, tt.code)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.wantMsg, err.Error())

			after := env.reload(t, u.UserID)
			assert.Equal(t, before.UserData.Events, after.UserData.Events)
			assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "nothing written")
			assert.Empty(t, env.mirror.checkIns)
			assert.Empty(t, env.mirror.rewrites)
		})
	}
}

func TestCheckIn_NoCodesConfigured(t *testing.T) {
	env := newTestEnv(t)
	u := env.signup(t, "A", "a@mit.edu")

	_, err := env.events.CheckIn(context.Background(), u, "careerday", "careerday")
	require.Error(t, err)
	assert.Equal(t, MsgInvalidEventID, err.Error())
}

// TestCheckIn_PNMClaimedOnce runs the check-in path through the real Syncer
// so the claim and counter go through storage.
func TestCheckIn_PNMClaimedOnce(t *testing.T) {
	env := newTestEnv(t)
	seedCodes(t, env)

	sheets := &recordingSheets{}
	syncer := mirror.NewSyncer(nopRows{}, sheets, env.db.Users(), env.db.Counters(),
		mirror.Inline{Logger: discardLogger()}, discardLogger())
	events := NewEventService(env.db.Users(), env.db.Config(), syncer, nil, discardLogger())

	u := env.signup(t, "A", "a@mit.edu")

	var wg sync.WaitGroup
	for _, id := range []string{"hellomcg", "careerday", "allvoices", "dessert"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := events.CheckIn(context.Background(), u, id, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	fresh := env.reload(t, u.UserID)
	_, err := events.CheckIn(context.Background(), fresh, "caseprep", "caseprep")
	require.NoError(t, err)

	require.Len(t, sheets.pnms, 1, "one PNM row per email")
	assert.Equal(t, int64(1), sheets.pnms[0].ID)
	assert.Equal(t, "a@mit.edu", sheets.pnms[0].Email)
}

type nopRows struct{}

func (nopRows) Edit(context.Context, mirror.Row) error          { return nil }
func (nopRows) Upsert(context.Context, mirror.Row) error        { return nil }
func (nopRows) EditPhoto(context.Context, string, string) error { return nil }

type recordingSheets struct {
	mu   sync.Mutex
	pnms []mirror.PNMRow
}

func (r *recordingSheets) AppendApplication(context.Context, mirror.ApplicationRow) error {
	return nil
}

func (r *recordingSheets) AppendPNM(_ context.Context, row mirror.PNMRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pnms = append(r.pnms, row)
	return nil
}
