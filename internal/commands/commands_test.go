package commands

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/jolt/internal/database"
	"github.com/yourusername/jolt/internal/errors"
	"github.com/yourusername/jolt/internal/ratelimit"
	"github.com/yourusername/jolt/internal/user"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	dispatcher *Dispatcher
	tracker    *ratelimit.CooldownTracker
	db         *database.DB
	users      *user.Manager
	clock      *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tracker, err := ratelimit.NewCooldownTracker(60*time.Second, 2, clock)
	require.NoError(t, err)

	db, err := database.NewTest()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	users := user.NewManager(string(hash), time.Hour, clock)

	registry := NewRegistry()
	require.NoError(t, RegisterDefaults(registry, Dependencies{
		Tracker:     tracker,
		DB:          db,
		UserManager: users,
		Clock:       clock,
		Prefix:      "!",
	}))

	return &fixture{
		dispatcher: NewDispatcher(registry, users, "!"),
		tracker:    tracker,
		db:         db,
		users:      users,
		clock:      clock,
	}
}

func (f *fixture) run(t *testing.T, inv Invocation) (*Response, error) {
	t.Helper()
	resp, handled, err := f.dispatcher.Dispatch(context.Background(), inv)
	require.True(t, handled, "command %q not handled", inv.Message)
	return resp, err
}

func channelInv(message string) Invocation {
	return Invocation{Message: message, Nick: "alice", Hostmask: "alice@host", Channel: "#jolt", UserKey: "alice"}
}

func pmInv(message string) Invocation {
	inv := channelInv(message)
	inv.Channel = ""
	return inv
}

func TestDispatcher_ParseCommand(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil, "!")

	cmd, args := d.ParseCommand("!Fires now please")
	assert.Equal(t, "fires", cmd)
	assert.Equal(t, []string{"now", "please"}, args)

	cmd, _ = d.ParseCommand("fires")
	assert.Empty(t, cmd)
	cmd, _ = d.ParseCommand("!   ")
	assert.Empty(t, cmd)
	assert.False(t, NewDispatcher(NewRegistry(), nil, "").IsCommand("anything"))
}

func TestDispatcher_UnknownCommandIsNotHandled(t *testing.T) {
	f := newFixture(t)
	resp, handled, err := f.dispatcher.Dispatch(context.Background(), channelInv("!nope"))
	assert.NoError(t, err)
	assert.False(t, handled)
	assert.Nil(t, resp)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewResetCommand(nil)))
	assert.Error(t, r.Register(NewResetCommand(nil)))
}

func TestFiresCommand(t *testing.T) {
	f := newFixture(t)

	resp, err := f.run(t, channelInv("!fires"))
	require.NoError(t, err)
	assert.Equal(t, "alice: 2 of 2 fires left", resp.Message)

	require.True(t, f.tracker.Allow("alice").Allowed)
	f.clock.Advance(10 * time.Second)
	resp, err = f.run(t, channelInv("!fires"))
	require.NoError(t, err)
	assert.Equal(t, "alice: 1 of 2 fires left (window resets in 50s)", resp.Message)

	require.True(t, f.tracker.Allow("alice").Allowed)
	resp, err = f.run(t, channelInv("!fires"))
	require.NoError(t, err)
	assert.Equal(t, "alice: no fires left. Wait 50 seconds...", resp.Message)
}

func TestStatsCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, outcome := range []database.Outcome{database.OutcomeFired, database.OutcomeFired, database.OutcomeDenied} {
		require.NoError(t, f.db.RecordFireEvent(ctx, &database.FireEvent{
			CreatedAt: f.clock.Now().Add(-time.Hour),
			UserKey:   "bob",
			Nick:      "bob",
			Reason:    "trigger_word",
			Outcome:   outcome,
		}))
	}
	require.NoError(t, f.db.RecordFireEvent(ctx, &database.FireEvent{
		CreatedAt: f.clock.Now().Add(-48 * time.Hour),
		UserKey:   "bob",
		Reason:    "trigger_word",
		Outcome:   database.OutcomeFailed,
	}))
	f.tracker.Allow("bob")

	resp, err := f.run(t, channelInv("!stats"))
	require.NoError(t, err)
	assert.Equal(t, "Last 24h: 2 fired, 1 denied, 0 failed. Tracking 1 users.", resp.Message)
}

func TestVerifyCommand(t *testing.T) {
	f := newFixture(t)

	resp, err := f.run(t, channelInv("!verify s3cret"))
	require.NoError(t, err)
	assert.Nil(t, resp, "passwords in channels are never acknowledged")
	assert.False(t, f.users.IsAdmin("alice@host"))

	resp, err = f.run(t, pmInv("!verify wrong"))
	require.NoError(t, err)
	assert.True(t, resp.IsError)

	resp, err = f.run(t, pmInv("!verify"))
	require.NoError(t, err)
	assert.True(t, resp.IsError)

	resp, err = f.run(t, pmInv("!verify s3cret"))
	require.NoError(t, err)
	assert.True(t, resp.SendAsPM)
	assert.True(t, f.users.IsAdmin("alice@host"))
}

func TestResetCommand_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.tracker.Allow("bob").Allowed)

	_, err := f.run(t, channelInv("!reset Bob"))
	require.Error(t, err)
	botErr, ok := errors.AsBotError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypePermission, botErr.Type)

	_, err = f.run(t, pmInv("!verify s3cret"))
	require.NoError(t, err)

	resp, err := f.run(t, channelInv("!reset Bob"))
	require.NoError(t, err)
	assert.Equal(t, "Cleared the fire window for bob.", resp.Message)
	assert.Equal(t, 0, f.tracker.Len())

	resp, err = f.run(t, channelInv("!reset bob"))
	require.NoError(t, err)
	assert.Equal(t, "bob has no active window.", resp.Message)

	resp, err = f.run(t, pmInv("!logout"))
	require.NoError(t, err)
	assert.True(t, resp.SendAsPM)
	assert.False(t, f.users.IsAdmin("alice@host"))
}

func TestHelpCommand(t *testing.T) {
	f := newFixture(t)

	resp, err := f.run(t, channelInv("!help"))
	require.NoError(t, err)
	assert.Equal(t, "Commands: !fires, !help, !stats, !verify", resp.Message)

	resp, err = f.run(t, channelInv("!help !reset"))
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "requires admin level")

	resp, err = f.run(t, channelInv("!help bogus"))
	require.NoError(t, err)
	assert.True(t, resp.IsError)
}

func TestCeilSeconds(t *testing.T) {
	assert.Equal(t, 1, ceilSeconds(0))
	assert.Equal(t, 1, ceilSeconds(time.Millisecond))
	assert.Equal(t, 2, ceilSeconds(1001*time.Millisecond))
	assert.Equal(t, 60, ceilSeconds(time.Minute))
}
