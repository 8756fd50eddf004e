package sync

import (
	"context"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/tempinbox/internal/clock"
	"github.com/nhle/tempinbox/internal/gate"
	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/provider"
	"github.com/nhle/tempinbox/internal/session"
	"github.com/nhle/tempinbox/tests/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockSeen implements SeenRecorder for testing
type MockSeen struct {
	mock.Mock
}

func (m *MockSeen) MarkSeen(ctx context.Context, address string, ids []string) ([]string, error) {
	args := m.Called(ctx, address, ids)
	return args.Get(0).([]string), args.Error(1)
}

type harness struct {
	store   *session.Store
	primary *testutil.FakeProvider
	gate    *gate.Gate
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   session.NewStore(),
		primary: testutil.NewFakePrimary(),
	}
	h.gate = gate.New(h.store, provider.NewRegistry(h.primary, testutil.NewFakeFallback()), gate.Config{})
	t.Cleanup(h.gate.Close)
	return h
}

func (h *harness) activate(addr string) {
	h.store.Set(model.MailboxSession{
		Address:      addr,
		AuthToken:    "tok",
		RefreshToken: "ref",
		ProviderID:   model.ProviderPrimary,
	})
}

func start(t *testing.T, h *harness, cfg Config) *Synchronizer {
	t.Helper()
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	s := New(h.gate, cfg)
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func next(t *testing.T, s *Synchronizer) InboxUpdatedMsg {
	t.Helper()
	ch := make(chan tea.Msg, 1)
	go func() { ch <- s.WaitForNextResult()() }()
	select {
	case msg := <-ch:
		out, ok := msg.(InboxUpdatedMsg)
		require.True(t, ok, "unexpected message %T", msg)
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbox update")
		return InboxUpdatedMsg{}
	}
}

func TestSynchronizer_PollsOnStart(t *testing.T) {
	h := newHarness(t)
	h.activate("me@mail.test")
	want := testutil.Messages("m", 3)
	h.primary.ListFn = func(context.Context, model.MailboxSession) ([]model.MessageSummary, error) {
		return want, nil
	}

	s := start(t, h, Config{})

	msg := next(t, s)
	assert.True(t, msg.Updated)
	assert.Equal(t, "me@mail.test", msg.Address)
	assert.Equal(t, want, msg.Messages)
	assert.Equal(t, want, s.Messages())
	assert.False(t, s.Status().LastSync.IsZero())
}

func TestSynchronizer_SuspendedWithoutSession(t *testing.T) {
	h := newHarness(t)
	s := start(t, h, Config{Interval: 10 * time.Millisecond})

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.primary.Calls("ListMessages"))
	assert.False(t, s.Status().Active)

	s.Refresh()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, h.primary.Calls("ListMessages"))

	h.activate("me@mail.test")
	cleared := next(t, s)
	assert.True(t, cleared.Cleared)

	updated := next(t, s)
	assert.True(t, updated.Updated)
	assert.GreaterOrEqual(t, h.primary.Calls("ListMessages"), 1)
}

func TestSynchronizer_ReplacesListWholesale(t *testing.T) {
	h := newHarness(t)
	h.activate("me@mail.test")

	var round atomic.Int32
	first := testutil.Messages("a", 2)
	second := testutil.Messages("b", 1)
	h.primary.ListFn = func(context.Context, model.MailboxSession) ([]model.MessageSummary, error) {
		if round.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	}

	s := start(t, h, Config{})
	require.Equal(t, first, next(t, s).Messages)

	s.Refresh()
	msg := next(t, s)

	assert.Equal(t, second, msg.Messages)
	assert.Equal(t, second, s.Messages())
}

func TestSynchronizer_SessionChangeClearsList(t *testing.T) {
	h := newHarness(t)
	h.activate("old@mail.test")
	h.primary.ListFn = func(_ context.Context, sess model.MailboxSession) ([]model.MessageSummary, error) {
		if sess.Address == "old@mail.test" {
			return testutil.Messages("old", 2), nil
		}
		return []model.MessageSummary{}, nil
	}

	s := start(t, h, Config{})
	require.Len(t, next(t, s).Messages, 2)

	h.activate("new@mail.test")

	cleared := next(t, s)
	assert.True(t, cleared.Cleared)
	assert.Equal(t, "new@mail.test", cleared.Address)
	assert.Empty(t, s.Messages())

	updated := next(t, s)
	assert.True(t, updated.Updated)
	assert.Equal(t, "new@mail.test", updated.Address)
	assert.Empty(t, s.Messages())
}

func TestSynchronizer_StaleResultDiscarded(t *testing.T) {
	h := newHarness(t)
	h.activate("old@mail.test")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once gosync.Once
	h.primary.ListFn = func(ctx context.Context, sess model.MailboxSession) ([]model.MessageSummary, error) {
		if sess.Address != "old@mail.test" {
			return []model.MessageSummary{}, nil
		}
		once.Do(func() { close(entered) })
		select {
		case <-release:
		case <-ctx.Done():
		}
		return testutil.Messages("old", 2), nil
	}

	s := start(t, h, Config{})
	<-entered
	h.activate("new@mail.test")
	assert.True(t, next(t, s).Cleared)
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.rerun
	}, time.Second, 5*time.Millisecond)

	close(release)
	stale := next(t, s)
	assert.False(t, stale.Updated)
	assert.Equal(t, "old@mail.test", stale.Address)

	// The follow-up poll for the new mailbox runs once the stale one ends.
	fresh := next(t, s)
	assert.True(t, fresh.Updated)
	assert.Equal(t, "new@mail.test", fresh.Address)
	assert.Empty(t, s.Messages())
}

func TestSynchronizer_RejectsOverlappingPolls(t *testing.T) {
	h := newHarness(t)
	h.activate("me@mail.test")

	release := make(chan struct{})
	h.primary.ListFn = func(ctx context.Context, _ model.MailboxSession) ([]model.MessageSummary, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return testutil.Messages("m", 1), nil
	}

	s := start(t, h, Config{})
	require.Eventually(t, s.Refreshing, time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		s.Refresh()
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.primary.Calls("ListMessages"))

	close(release)
	assert.True(t, next(t, s).Updated)
}

func TestSynchronizer_MinimumDuration(t *testing.T) {
	h := newHarness(t)
	h.activate("me@mail.test")
	sched := testutil.NewManualScheduler()

	s := start(t, h, Config{MinDuration: 800 * time.Millisecond, Scheduler: sched})

	require.Eventually(t, func() bool {
		return h.primary.Calls("ListMessages") == 1 && sched.Pending() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, s.Refreshing(), "poll must stay visible until the minimum duration passes")

	sched.Advance(800 * time.Millisecond)
	assert.True(t, next(t, s).Updated)
	assert.False(t, s.Refreshing())
}

func TestSynchronizer_TickerPolls(t *testing.T) {
	h := newHarness(t)
	h.activate("me@mail.test")

	start(t, h, Config{Interval: 15 * time.Millisecond, Scheduler: clock.Real{}})

	assert.Eventually(t, func() bool {
		return h.primary.Calls("ListMessages") >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSynchronizer_CountsNewMessages(t *testing.T) {
	h := newHarness(t)
	h.activate("me@mail.test")
	h.primary.ListFn = func(context.Context, model.MailboxSession) ([]model.MessageSummary, error) {
		return testutil.Messages("m", 2), nil
	}

	seen := &MockSeen{}
	seen.On("MarkSeen", mock.Anything, "me@mail.test", []string{"m-1", "m-2"}).
		Return([]string{"m-2"}, nil)

	s := start(t, h, Config{Seen: seen})

	msg := next(t, s)
	assert.Equal(t, 1, msg.NewCount)
	seen.AssertExpectations(t)
}

func TestSynchronizer_StopIsIdempotent(t *testing.T) {
	h := newHarness(t)
	s := New(h.gate, Config{})
	s.Stop()

	s.Start()
	s.Stop()
	s.Stop()
}

func TestSendResult_FullBufferKeepsReset(t *testing.T) {
	h := newHarness(t)
	s := New(h.gate, Config{})

	s.sendResult(InboxUpdatedMsg{Address: "next@mail.test", Generation: 2, Cleared: true})
	for i := 0; i < cap(s.resultCh)-1; i++ {
		s.sendResult(InboxUpdatedMsg{Address: "next@mail.test", Generation: 2, Updated: true})
	}
	require.Len(t, s.resultCh, cap(s.resultCh))

	s.sendResult(InboxUpdatedMsg{
		Address:    "next@mail.test",
		Generation: 2,
		Updated:    true,
		Messages:   testutil.Messages("m", 1),
	})

	var got []InboxUpdatedMsg
	for len(s.resultCh) > 0 {
		got = append(got, <-s.resultCh)
	}
	require.Len(t, got, cap(s.resultCh))
	for _, msg := range got[:len(got)-1] {
		assert.False(t, msg.Cleared)
	}
	last := got[len(got)-1]
	assert.True(t, last.Cleared)
	assert.True(t, last.Updated)
	assert.Len(t, last.Messages, 1)
}
