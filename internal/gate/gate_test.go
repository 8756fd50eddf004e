package gate_test

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempinbox/internal/gate"
	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/provider"
	"github.com/nhle/tempinbox/internal/session"
	"github.com/nhle/tempinbox/tests/testutil"
)

type fixture struct {
	store    *session.Store
	primary  *testutil.FakeProvider
	fallback *testutil.FakeProvider
	sched    *testutil.ManualScheduler
	gate     *gate.Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    session.NewStore(),
		primary:  testutil.NewFakePrimary(),
		fallback: testutil.NewFakeFallback(),
		sched:    testutil.NewManualScheduler(),
	}
	f.gate = gate.New(f.store, provider.NewRegistry(f.primary, f.fallback), gate.Config{
		RefreshCooldown:   2 * time.Second,
		ProvisionCooldown: 800 * time.Millisecond,
		Scheduler:         f.sched,
	})
	t.Cleanup(f.gate.Close)
	return f
}

func (f *fixture) activate(t *testing.T) model.MailboxSession {
	t.Helper()
	sess := model.MailboxSession{
		Address:      "me@mail.test",
		AuthToken:    "old",
		RefreshToken: "ref",
		AccountID:    "acc",
		ProviderID:   model.ProviderPrimary,
	}
	f.store.Set(sess)
	return sess
}

var expired = &provider.AuthError{Provider: model.ProviderPrimary, Message: "Mail.tm session expired."}

// authOnOldToken fails with an AuthError until the token has been refreshed.
func authOnOldToken(list []model.MessageSummary) func(context.Context, model.MailboxSession) ([]model.MessageSummary, error) {
	return func(_ context.Context, s model.MailboxSession) ([]model.MessageSummary, error) {
		if s.AuthToken == "old" {
			return nil, expired
		}
		return list, nil
	}
}

func TestExecute_NoSession(t *testing.T) {
	f := newFixture(t)

	res, ok := gate.Execute(context.Background(), f.gate, gate.ListMessages, gate.Options{})

	assert.False(t, ok)
	assert.Nil(t, res)
	assert.Zero(t, f.primary.Calls("ListMessages"))
}

func TestExecute_SuccessClearsError(t *testing.T) {
	f := newFixture(t)
	f.activate(t)
	f.primary.ListFn = func(context.Context, model.MailboxSession) ([]model.MessageSummary, error) {
		return nil, &provider.TransientError{Op: "GET /messages timed out"}
	}

	_, ok := gate.Execute(context.Background(), f.gate, gate.ListMessages, gate.Options{})
	assert.False(t, ok)
	assert.Equal(t, "GET /messages timed out", f.gate.LastError())

	f.primary.ListFn = nil
	_, ok = gate.Execute(context.Background(), f.gate, gate.ListMessages, gate.Options{})
	assert.True(t, ok)
	assert.Empty(t, f.gate.LastError())
}

// An expired token is refreshed once and the call retried.
func TestExecute_RefreshAndRetry(t *testing.T) {
	f := newFixture(t)
	f.activate(t)
	want := testutil.Messages("m", 2)
	f.primary.ListFn = authOnOldToken(want)

	got, ok := gate.Execute(context.Background(), f.gate, gate.ListMessages, gate.Options{InboxLoad: true})

	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, f.primary.Calls("Refresh"))
	assert.Equal(t, 2, f.primary.Calls("ListMessages"))

	snap, _ := f.store.Snapshot()
	assert.NotEqual(t, "old", snap.Session.AuthToken)
	assert.NotEqual(t, "ref", snap.Session.RefreshToken)
	assert.Equal(t, "me@mail.test", snap.Session.Address)
	assert.Equal(t, gate.CoolingDown, f.gate.RefreshState())

	f.sched.Advance(2 * time.Second)
	assert.Equal(t, gate.Idle, f.gate.RefreshState())
}

// Refresh fails during an inbox load, so a new mailbox is
// provisioned silently.
func TestExecute_InboxLoadReprovisionsSilently(t *testing.T) {
	f := newFixture(t)
	f.activate(t)
	oldGen := f.store.Generation()
	f.primary.ListFn = authOnOldToken(nil)
	f.primary.RefreshFn = func(context.Context, string) (provider.Credentials, error) {
		return provider.Credentials{}, &provider.RefreshError{Cause: errors.New("401")}
	}

	_, ok := gate.Execute(context.Background(), f.gate, gate.ListMessages, gate.Options{InboxLoad: true})

	assert.False(t, ok)
	assert.Empty(t, f.gate.LastError())
	assert.Equal(t, 1, f.primary.Calls("Provision"))
	snap, present := f.store.Snapshot()
	require.True(t, present)
	assert.NotEqual(t, "me@mail.test", snap.Session.Address)
	assert.Greater(t, snap.Generation, oldGen)
}

// Refresh fails outside an inbox load.
func TestExecute_DetailSessionTimedOut(t *testing.T) {
	f := newFixture(t)
	f.activate(t)
	f.primary.DetailFn = func(context.Context, model.MailboxSession, string) (*model.MessageDetail, error) {
		return nil, expired
	}

	_, ok := gate.Execute(context.Background(), f.gate, gate.FetchDetail("m-1"), gate.Options{})

	assert.False(t, ok)
	assert.Equal(t, provider.SessionTimedOut, f.gate.LastError())
	assert.Equal(t, 1, f.primary.Calls("Refresh"))
	assert.Zero(t, f.primary.Calls("Provision"))
}

func TestExecute_AuthWithoutRefreshCapability(t *testing.T) {
	f := newFixture(t)
	f.store.Set(model.MailboxSession{Address: "x@rapid.test", AuthToken: "t", ProviderID: model.ProviderFallback})
	f.fallback.ListFn = func(context.Context, model.MailboxSession) ([]model.MessageSummary, error) {
		return nil, &provider.AuthError{Provider: model.ProviderFallback}
	}

	_, ok := gate.Execute(context.Background(), f.gate, gate.ListMessages, gate.Options{InboxLoad: true})

	assert.False(t, ok)
	assert.Equal(t, provider.SessionTimedOut, f.gate.LastError())
	assert.Zero(t, f.fallback.Calls("Refresh"))
}

// Concurrent auth failures trigger exactly one refresh.
func TestExecute_SingleFlightRefresh(t *testing.T) {
	f := newFixture(t)
	f.activate(t)
	f.primary.ListFn = authOnOldToken(testutil.Messages("m", 1))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.primary.RefreshFn = func(context.Context, string) (provider.Credentials, error) {
		close(entered)
		<-release
		return provider.Credentials{AuthToken: "new", RefreshToken: "ref2"}, nil
	}

	var wg gosync.WaitGroup
	var firstOK bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstOK = gate.Execute(context.Background(), f.gate, gate.ListMessages, gate.Options{InboxLoad: true})
	}()

	<-entered
	assert.Equal(t, gate.InFlight, f.gate.RefreshState())

	// A second call still holding the old token fails while the refresh
	// is in flight and must not start another one.
	_, secondOK := gate.Execute(context.Background(), f.gate, func(
		ctx context.Context, p provider.Provider, _ model.MailboxSession,
	) ([]model.MessageSummary, error) {
		return nil, expired
	}, gate.Options{InboxLoad: true})
	assert.False(t, secondOK)

	close(release)
	wg.Wait()

	assert.True(t, firstOK)
	assert.Equal(t, 1, f.primary.Calls("Refresh"))
	assert.Zero(t, f.primary.Calls("Provision"))
	assert.Empty(t, f.gate.LastError())
}

// The refresh lock stays held for the cooldown.
func TestExecute_RefreshCooldown(t *testing.T) {
	f := newFixture(t)
	f.activate(t)
	alwaysExpired := func(context.Context, provider.Provider, model.MailboxSession) (int, error) {
		return 0, expired
	}

	_, ok := gate.Execute(context.Background(), f.gate, alwaysExpired, gate.Options{})
	assert.False(t, ok)
	assert.Equal(t, 1, f.primary.Calls("Refresh"))
	assert.Equal(t, provider.SessionTimedOut, f.gate.LastError())

	f.gate.ClearError()
	_, ok = gate.Execute(context.Background(), f.gate, alwaysExpired, gate.Options{})
	assert.False(t, ok)
	assert.Equal(t, 1, f.primary.Calls("Refresh"))
	assert.Empty(t, f.gate.LastError(), "failure during cooldown is dropped quietly")

	f.sched.Advance(1999 * time.Millisecond)
	assert.Equal(t, gate.CoolingDown, f.gate.RefreshState())
	f.sched.Advance(time.Millisecond)
	assert.Equal(t, gate.Idle, f.gate.RefreshState())

	_, _ = gate.Execute(context.Background(), f.gate, alwaysExpired, gate.Options{})
	assert.Equal(t, 2, f.primary.Calls("Refresh"))
}

func TestExecute_StaleResultDropped(t *testing.T) {
	f := newFixture(t)
	f.activate(t)

	replaceDuringCall := func(_ context.Context, _ provider.Provider, _ model.MailboxSession) (string, error) {
		f.store.Set(model.MailboxSession{Address: "new@mail.test", AuthToken: "t", ProviderID: model.ProviderPrimary})
		return "stale", errors.New("late failure")
	}

	res, ok := gate.Execute(context.Background(), f.gate, replaceDuringCall, gate.Options{})

	assert.False(t, ok)
	assert.Empty(t, res)
	assert.Empty(t, f.gate.LastError())
}

func TestNewMailbox_LockAndCooldown(t *testing.T) {
	f := newFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.primary.ProvisionFn = func(context.Context) (*model.MailboxSession, error) {
		close(entered)
		<-release
		return &model.MailboxSession{Address: "a@mail.test", AuthToken: "t", ProviderID: model.ProviderPrimary}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.gate.NewMailbox(context.Background(), gate.ProvisionOptions{})
		done <- err
	}()

	<-entered
	assert.True(t, f.gate.Busy().Provisioning)
	_, err := f.gate.NewMailbox(context.Background(), gate.ProvisionOptions{})
	assert.ErrorIs(t, err, gate.ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.primary.Calls("Provision"))

	// Still cooling down.
	_, err = f.gate.NewMailbox(context.Background(), gate.ProvisionOptions{})
	assert.ErrorIs(t, err, gate.ErrBusy)

	f.sched.Advance(800 * time.Millisecond)
	f.primary.ProvisionFn = nil
	sess, err := f.gate.NewMailbox(context.Background(), gate.ProvisionOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.ProviderPrimary, sess.ProviderID)
	assert.False(t, sess.CreatedAt.IsZero())
}

func TestNewMailbox_FallbackProviderID(t *testing.T) {
	f := newFixture(t)
	f.primary.ProvisionFn = func(context.Context) (*model.MailboxSession, error) {
		return nil, &provider.ProvisionError{Message: "Failed to fetch domains from Mail.tm"}
	}

	sess, err := f.gate.NewMailbox(context.Background(), gate.ProvisionOptions{})

	require.NoError(t, err)
	assert.Equal(t, model.ProviderFallback, sess.ProviderID)
	snap, _ := f.store.Snapshot()
	assert.Equal(t, model.ProviderFallback, snap.Session.ProviderID)
}

func TestNewMailbox_Errors(t *testing.T) {
	f := newFixture(t)
	f.primary.ProvisionFn = func(context.Context) (*model.MailboxSession, error) {
		return nil, &provider.ProvisionError{Message: "Failed to create account with Mail.tm"}
	}
	f.fallback.ProvisionFn = func(context.Context) (*model.MailboxSession, error) {
		return nil, provider.ErrNotConfigured
	}

	_, err := f.gate.NewMailbox(context.Background(), gate.ProvisionOptions{})
	require.Error(t, err)
	assert.Equal(t, "Failed to create account with Mail.tm", f.gate.LastError())

	f.sched.Advance(time.Second)
	f.gate.ClearError()
	_, err = f.gate.NewMailbox(context.Background(), gate.ProvisionOptions{Silent: true})
	require.Error(t, err)
	assert.Empty(t, f.gate.LastError())
}

func TestDeleteMailbox(t *testing.T) {
	f := newFixture(t)
	f.activate(t)

	deleted, err := f.gate.DeleteMailbox(context.Background())

	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 1, f.primary.Calls("DeleteAccount"))
	snap, ok := f.store.Snapshot()
	require.True(t, ok)
	assert.NotEqual(t, "me@mail.test", snap.Session.Address)
	assert.False(t, f.gate.Busy().Deleting)
}

func TestDeleteMailbox_AlreadyGone(t *testing.T) {
	f := newFixture(t)
	f.activate(t)
	f.primary.DeleteFn = func(context.Context, model.MailboxSession) (bool, error) {
		return false, nil
	}

	deleted, err := f.gate.DeleteMailbox(context.Background())

	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, f.primary.Calls("Provision"))
	snap, _ := f.store.Snapshot()
	assert.Equal(t, "me@mail.test", snap.Session.Address)
}

func TestDeleteMailbox_Guards(t *testing.T) {
	f := newFixture(t)

	_, err := f.gate.DeleteMailbox(context.Background())
	assert.ErrorIs(t, err, gate.ErrNoSession)

	f.store.Set(model.MailboxSession{Address: "x@rapid.test", ProviderID: model.ProviderFallback})
	_, err = f.gate.DeleteMailbox(context.Background())
	assert.ErrorIs(t, err, provider.ErrUnsupported)
	assert.Zero(t, f.fallback.Calls("DeleteAccount"))
}

func TestDeleteMailbox_RefusedDuringProvisionCooldown(t *testing.T) {
	f := newFixture(t)
	_, err := f.gate.NewMailbox(context.Background(), gate.ProvisionOptions{})
	require.NoError(t, err)
	first, _ := f.store.Snapshot()

	assert.False(t, f.gate.CanDelete())
	_, err = f.gate.DeleteMailbox(context.Background())
	assert.ErrorIs(t, err, gate.ErrBusy)
	assert.Zero(t, f.primary.Calls("DeleteAccount"))

	f.sched.Advance(800 * time.Millisecond)
	assert.True(t, f.gate.CanDelete())

	deleted, err := f.gate.DeleteMailbox(context.Background())
	require.NoError(t, err)
	assert.True(t, deleted)
	next, ok := f.store.Snapshot()
	require.True(t, ok)
	assert.NotEqual(t, first.Session.Address, next.Session.Address)
}

func TestCanDelete(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.gate.CanDelete())

	f.activate(t)
	assert.True(t, f.gate.CanDelete())

	f.store.Set(model.MailboxSession{Address: "x@rapid.test", ProviderID: model.ProviderFallback})
	assert.False(t, f.gate.CanDelete())
}
