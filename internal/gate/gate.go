// Package gate runs every provider call made on behalf of the active
// session. It owns the user-visible error, recovers from expired
// credentials with a single-flight refresh and guards provisioning with a
// re-entrancy lock.
package gate

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/tempinbox/internal/clock"
	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/provider"
	"github.com/nhle/tempinbox/internal/session"
)

var (
	// ErrBusy is returned when a provisioning or delete request arrives
	// while another one is still in flight or cooling down.
	ErrBusy = errors.New("another mailbox operation is in progress")

	// ErrNoSession is returned by operations that need an active mailbox.
	ErrNoSession = errors.New("no active mailbox")
)

// Options qualifies a single Execute call.
type Options struct {
	// InboxLoad marks the call as a background inbox refresh. When
	// recovery fails for such a call, a new mailbox is provisioned
	// silently instead of surfacing an error.
	InboxLoad bool
}

// ProvisionOptions qualifies a NewMailbox call.
type ProvisionOptions struct {
	// Silent suppresses the user-visible error on failure.
	Silent bool
}

// Operation is a provider call bound to a session.
type Operation[T any] func(
	ctx context.Context,
	p provider.Provider,
	s model.MailboxSession,
) (T, error)

// Busy reports which mailbox-level operations are running.
type Busy struct {
	Provisioning bool
	Deleting     bool
}

// Config holds the gate's timing parameters.
type Config struct {
	RefreshCooldown   time.Duration
	ProvisionCooldown time.Duration
	Scheduler         clock.Scheduler
	Logger            *zap.SugaredLogger
}

// Gate mediates access to the providers for the active session.
type Gate struct {
	store    *session.Store
	registry *provider.Registry
	log      *zap.SugaredLogger
	now      func() time.Time

	refresh   *cooldownLock
	provision *cooldownLock

	mu       gosync.Mutex
	deleting bool
	lastErr  string
}

// New creates a gate over store and registry.
func New(store *session.Store, registry *provider.Registry, cfg Config) *Gate {
	if cfg.Scheduler == nil {
		cfg.Scheduler = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Gate{
		store:     store,
		registry:  registry,
		log:       cfg.Logger.With("component", "gate"),
		now:       time.Now,
		refresh:   newCooldownLock(cfg.Scheduler, cfg.RefreshCooldown),
		provision: newCooldownLock(cfg.Scheduler, cfg.ProvisionCooldown),
	}
}

// Store returns the session store the gate writes to.
func (g *Gate) Store() *session.Store { return g.store }

// LastError returns the current user-visible error, or "".
func (g *Gate) LastError() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// ClearError removes the user-visible error.
func (g *Gate) ClearError() {
	g.setError("")
}

func (g *Gate) setError(msg string) {
	g.mu.Lock()
	g.lastErr = msg
	g.mu.Unlock()
}

// RefreshState returns the state of the auth-refresh lock.
func (g *Gate) RefreshState() State { return g.refresh.current() }

// ProvisionState returns the state of the provisioning lock.
func (g *Gate) ProvisionState() State { return g.provision.current() }

// Busy reports whether a provisioning or delete is running.
func (g *Gate) Busy() Busy {
	g.mu.Lock()
	deleting := g.deleting
	g.mu.Unlock()
	return Busy{
		Provisioning: g.provision.current() == InFlight,
		Deleting:     deleting,
	}
}

// CanDelete reports whether the active mailbox can be deleted right now:
// its provider supports deletion, nothing is being deleted and the
// provisioning lock is Idle, so the replacement mailbox can be created.
func (g *Gate) CanDelete() bool {
	snap, ok := g.store.Snapshot()
	if !ok {
		return false
	}
	p, err := g.registry.Get(snap.Session.ProviderID)
	if err != nil || !p.Capabilities().Delete {
		return false
	}
	g.mu.Lock()
	deleting := g.deleting
	g.mu.Unlock()
	return !deleting && g.provision.current() == Idle
}

// Close cancels pending cooldown timers.
func (g *Gate) Close() {
	g.refresh.stop()
	g.provision.stop()
}

// Execute runs op against the active session. It returns false when there
// is no session, when the call failed, or when the session was replaced
// while the call was running. Expired credentials are refreshed once and
// the call retried; if that fails an inbox load provisions a new mailbox
// silently and any other call reports "Session timed out.".
func Execute[T any](
	ctx context.Context,
	g *Gate,
	op Operation[T],
	opts Options,
) (T, bool) {
	var zero T

	snap, ok := g.store.Snapshot()
	if !ok {
		return zero, false
	}

	p, err := g.registry.Get(snap.Session.ProviderID)
	if err != nil {
		g.setError(err.Error())
		return zero, false
	}

	res, err := op(ctx, p, snap.Session)
	if !g.store.IsCurrent(snap.Generation) {
		g.log.Debugw("dropping result for replaced session",
			"address", snap.Session.Address, "error", err)
		return zero, false
	}
	if err == nil {
		g.ClearError()
		return res, true
	}

	if !provider.IsAuthError(err) {
		g.log.Warnw("provider call failed", "provider", p.ID(), "error", err)
		g.setError(provider.UserMessage(err))
		return zero, false
	}

	if !p.Capabilities().Refresh || !snap.Session.CanRefresh() {
		g.setError(provider.SessionTimedOut)
		return zero, false
	}

	if !g.refresh.tryAcquire() {
		// A refresh for this burst already ran or is running.
		g.log.Debugw("auth failure while refresh lock held, dropping",
			"state", g.refresh.current().String())
		return zero, false
	}
	defer g.refresh.release()

	res, err = retryWithRefresh(ctx, g, p, snap, op)
	if err == nil {
		g.ClearError()
		return res, true
	}
	if errors.Is(err, session.ErrStaleSession) {
		return zero, false
	}

	g.log.Infow("session recovery failed", "address", snap.Session.Address,
		"inbox_load", opts.InboxLoad, "error", err)

	if opts.InboxLoad {
		if _, perr := g.NewMailbox(ctx, ProvisionOptions{Silent: true}); perr != nil {
			g.log.Warnw("silent re-provisioning failed", "error", perr)
		}
		return zero, false
	}

	g.setError(provider.SessionTimedOut)
	return zero, false
}

// retryWithRefresh refreshes the credentials of snap, stores them and
// runs op once more with the patched session.
func retryWithRefresh[T any](
	ctx context.Context,
	g *Gate,
	p provider.Provider,
	snap session.Snapshot,
	op Operation[T],
) (T, error) {
	var zero T

	creds, err := p.Refresh(ctx, snap.Session.RefreshToken)
	if err != nil {
		return zero, err
	}

	patched, err := g.store.PatchCredentials(
		snap.Generation, creds.AuthToken, creds.RefreshToken,
	)
	if err != nil {
		return zero, err
	}
	g.log.Infow("session credentials refreshed", "address", patched.Session.Address)

	res, err := op(ctx, p, patched.Session)
	if !g.store.IsCurrent(patched.Generation) {
		return zero, session.ErrStaleSession
	}
	return res, err
}

// NewMailbox provisions a fresh mailbox and makes it the active session.
// It returns ErrBusy while a previous provisioning is in flight or
// cooling down.
func (g *Gate) NewMailbox(
	ctx context.Context,
	opts ProvisionOptions,
) (*model.MailboxSession, error) {
	if !g.provision.tryAcquire() {
		g.log.Debugw("provisioning request dropped", "state", g.provision.current().String())
		return nil, ErrBusy
	}
	defer g.provision.release()

	g.ClearError()

	sess, err := g.registry.Provision(ctx)
	if err != nil {
		if opts.Silent {
			g.log.Warnw("background provisioning failed", "error", err)
		} else {
			msg := provider.UserMessage(err)
			if msg == "" {
				msg = "Service busy. Please try again in a moment."
			}
			g.setError(msg)
		}
		return nil, err
	}

	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = g.now()
	}
	g.store.Set(*sess)
	g.ClearError()
	g.log.Infow("active mailbox replaced", "address", sess.Address, "provider", sess.ProviderID)

	out := *sess
	return &out, nil
}

// DeleteMailbox deletes the active mailbox at its provider and, when the
// provider confirms, provisions a new one. It reports whether the old
// mailbox was deleted.
func (g *Gate) DeleteMailbox(ctx context.Context) (bool, error) {
	snap, ok := g.store.Snapshot()
	if !ok {
		return false, ErrNoSession
	}
	p, err := g.registry.Get(snap.Session.ProviderID)
	if err != nil {
		return false, err
	}
	if !p.Capabilities().Delete {
		return false, provider.ErrUnsupported
	}

	g.mu.Lock()
	if g.deleting || g.provision.current() != Idle {
		g.mu.Unlock()
		return false, ErrBusy
	}
	g.deleting = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.deleting = false
		g.mu.Unlock()
	}()

	deleted, ok := Execute(ctx, g, func(
		ctx context.Context,
		p provider.Provider,
		s model.MailboxSession,
	) (bool, error) {
		return p.DeleteAccount(ctx, s)
	}, Options{})
	if !ok || !deleted {
		return false, nil
	}

	g.log.Infow("mailbox deleted, provisioning replacement", "address", snap.Session.Address)
	if _, err := g.NewMailbox(ctx, ProvisionOptions{}); err != nil && !errors.Is(err, ErrBusy) {
		return true, err
	}
	return true, nil
}

// ListMessages is the gated inbox listing used by the synchronizer.
func ListMessages(
	ctx context.Context,
	p provider.Provider,
	s model.MailboxSession,
) ([]model.MessageSummary, error) {
	return p.ListMessages(ctx, s)
}

// FetchDetail returns an Operation that fetches message id.
func FetchDetail(id string) Operation[*model.MessageDetail] {
	return func(
		ctx context.Context,
		p provider.Provider,
		s model.MailboxSession,
	) (*model.MessageDetail, error) {
		return p.FetchDetail(ctx, s, id)
	}
}
