// Package sync keeps the published inbox of the active mailbox up to date
// by polling the provider through the request gate.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/tempinbox/internal/clock"
	"github.com/nhle/tempinbox/internal/gate"
	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/session"
)

// State represents whether a poll is running.
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Status is a point-in-time view of the synchronizer.
type Status struct {
	State    State
	Active   bool
	LastSync time.Time
}

// InboxUpdatedMsg is a tea.Msg sent when a poll finishes or the active
// session changes.
type InboxUpdatedMsg struct {
	// Messages is the published list. It is only meaningful when Updated
	// or Cleared is set.
	Messages []model.MessageSummary

	// Address is the mailbox the list belongs to.
	Address string

	// Generation is the session generation the list was fetched for.
	Generation uint64

	// Updated reports that a poll produced a new list.
	Updated bool

	// Cleared reports that the session changed and the list was emptied.
	// It may be set together with Updated when a reset was coalesced into
	// a later poll result.
	Cleared bool

	// NewCount is the number of messages seen for the first time.
	NewCount int

	// Err is the gate's user-visible error after the poll.
	Err string
}

// SeenRecorder records which message ids have been observed for a
// mailbox. MarkSeen returns the ids that were not known before.
type SeenRecorder interface {
	MarkSeen(ctx context.Context, address string, ids []string) ([]string, error)
}

// Config holds the synchronizer's timing and collaborators.
type Config struct {
	// Interval is the time between polls.
	Interval time.Duration

	// MinDuration is the shortest time a poll is reported as running.
	MinDuration time.Duration

	Scheduler clock.Scheduler
	Seen      SeenRecorder
	Logger    *zap.SugaredLogger
}

// Synchronizer polls the inbox of the active session.
type Synchronizer struct {
	gate  *gate.Gate
	store *session.Store
	cfg   Config
	log   *zap.SugaredLogger
	now   func() time.Time

	resultCh  chan InboxUpdatedMsg
	triggerCh chan struct{}
	sessionCh chan struct{}
	stopCh    chan struct{}
	cancel    context.CancelFunc
	wg        gosync.WaitGroup

	mu       gosync.Mutex
	running  bool
	state    State
	rerun    bool
	messages []model.MessageSummary
	lastSync time.Time
}

// New creates a Synchronizer. It subscribes to session changes right away
// so the published list is cleared even before Start.
func New(g *gate.Gate, cfg Config) *Synchronizer {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.MinDuration < 0 {
		cfg.MinDuration = 0
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	s := &Synchronizer{
		gate:      g,
		store:     g.Store(),
		cfg:       cfg,
		log:       cfg.Logger.With("component", "sync"),
		now:       time.Now,
		resultCh:  make(chan InboxUpdatedMsg, 16),
		triggerCh: make(chan struct{}, 1),
		sessionCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
	s.store.OnChange(s.onSessionChange)
	return s
}

// Start launches the polling loop and returns a tea.Cmd that delivers the
// first InboxUpdatedMsg.
func (s *Synchronizer) Start() tea.Cmd {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return s.waitForResult()
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	return s.waitForResult()
}

// Stop halts the loop and waits for an in-flight poll to return.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}

// Refresh requests an immediate poll. It is ignored while a poll runs.
func (s *Synchronizer) Refresh() tea.Cmd {
	select {
	case s.triggerCh <- struct{}{}:
	default:
		// A trigger is already queued.
	}
	return nil
}

// Messages returns a copy of the published list.
func (s *Synchronizer) Messages() []model.MessageSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MessageSummary, len(s.messages))
	copy(out, s.messages)
	return out
}

// Refreshing reports whether a poll is running.
func (s *Synchronizer) Refreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Polling
}

// Status returns the current state.
func (s *Synchronizer) Status() Status {
	_, active := s.store.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, Active: active, LastSync: s.lastSync}
}

// WaitForNextResult returns a tea.Cmd that waits for the next update.
// Call it after handling an InboxUpdatedMsg to keep listening.
func (s *Synchronizer) WaitForNextResult() tea.Cmd {
	return s.waitForResult()
}

// loop ticks while a session exists and idles otherwise.
func (s *Synchronizer) loop(ctx context.Context) {
	defer s.wg.Done()

	var ticker *time.Ticker
	var tick <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	resume := func() {
		stopTicker()
		if _, ok := s.store.Snapshot(); !ok {
			s.log.Debugw("no active session, polling suspended")
			return
		}
		ticker = time.NewTicker(s.cfg.Interval)
		tick = ticker.C
		s.startPoll(ctx, true)
	}

	resume()

	for {
		select {
		case <-s.stopCh:
			return
		case <-s.sessionCh:
			resume()
		case <-tick:
			s.startPoll(ctx, false)
		case <-s.triggerCh:
			s.startPoll(ctx, false)
		}
	}
}

// startPoll moves Idle to Polling and runs a poll in the background. A
// poll in progress rejects the request; when followUp is set the request
// is remembered and run once the current poll ends.
func (s *Synchronizer) startPoll(ctx context.Context, followUp bool) {
	snap, ok := s.store.Snapshot()
	if !ok {
		return
	}

	s.mu.Lock()
	if s.state == Polling {
		if followUp {
			s.rerun = true
		}
		s.mu.Unlock()
		return
	}
	s.state = Polling
	s.mu.Unlock()

	s.wg.Add(1)
	go s.poll(ctx, snap)
}

func (s *Synchronizer) poll(ctx context.Context, snap session.Snapshot) {
	defer s.wg.Done()

	minDone := s.cfg.Scheduler.After(s.cfg.MinDuration)
	msgs, ok := gate.Execute(ctx, s.gate, gate.ListMessages, gate.Options{InboxLoad: true})

	select {
	case <-minDone:
	case <-ctx.Done():
	}

	var newCount int
	if ok {
		newCount = s.recordSeen(ctx, snap.Session.Address, msgs)
	}

	msg := InboxUpdatedMsg{
		Address:    snap.Session.Address,
		Generation: snap.Generation,
		NewCount:   newCount,
		Err:        s.gate.LastError(),
	}

	s.mu.Lock()
	if ok && s.store.IsCurrent(snap.Generation) {
		s.messages = msgs
		s.lastSync = s.now()
		msg.Updated = true
		msg.Messages = append([]model.MessageSummary(nil), msgs...)
	}
	s.state = Idle
	rerun := s.rerun
	s.rerun = false
	s.mu.Unlock()

	if !msg.Updated {
		msg.NewCount = 0
	}
	s.sendResult(msg)

	if rerun {
		select {
		case s.sessionCh <- struct{}{}:
		default:
		}
	}
}

func (s *Synchronizer) recordSeen(ctx context.Context, address string, msgs []model.MessageSummary) int {
	if s.cfg.Seen == nil || len(msgs) == 0 {
		return 0
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	fresh, err := s.cfg.Seen.MarkSeen(ctx, address, ids)
	if err != nil {
		s.log.Warnw("recording seen messages failed", "address", address, "error", err)
		return 0
	}
	return len(fresh)
}

// onSessionChange clears the published list when the mailbox is replaced
// or removed and wakes the loop so polling follows the new session.
func (s *Synchronizer) onSessionChange(c session.Change) {
	if c.Kind == session.ChangePatched {
		return
	}

	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()

	s.sendResult(InboxUpdatedMsg{
		Address:    c.Snapshot.Session.Address,
		Generation: c.Snapshot.Generation,
		Cleared:    true,
		Messages:   []model.MessageSummary{},
	})

	select {
	case s.sessionCh <- struct{}{}:
	default:
	}
}

// sendResult queues an update without blocking. When the buffer is full
// the oldest queued update is evicted; a reset it carried is folded into
// msg so the UI still clears the previous mailbox.
func (s *Synchronizer) sendResult(msg InboxUpdatedMsg) {
	for {
		select {
		case s.resultCh <- msg:
			return
		default:
		}

		select {
		case old := <-s.resultCh:
			if old.Cleared {
				msg.Cleared = true
			}
			s.log.Debugw("result channel full, evicting oldest update",
				"evicted_generation", old.Generation, "generation", msg.Generation)
		default:
		}
	}
}

// waitForResult returns a tea.Cmd that waits for the next update from
// the result channel.
func (s *Synchronizer) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-s.resultCh:
			return result
		case <-s.stopCh:
			return nil
		}
	}
}
