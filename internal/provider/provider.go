package provider

import (
	"context"
	"fmt"

	"github.com/nhle/tempinbox/internal/model"
)

// BothFailedMessage is shown when neither provider could create a mailbox
// for reasons other than a missing fallback key.
const BothFailedMessage = "Both email services failed. Please check your connection."

// Capabilities describes the optional operations a provider supports.
type Capabilities struct {
	// Refresh reports whether expired credentials can be exchanged for
	// new ones without creating a new mailbox.
	Refresh bool

	// Delete reports whether the remote account can be deleted.
	Delete bool
}

// Credentials is the pair of tokens returned by a successful refresh.
type Credentials struct {
	AuthToken    string
	RefreshToken string
}

// Provider defines the contract every disposable-mailbox backend implements.
type Provider interface {
	// ID returns the provider identifier stored on sessions.
	ID() model.ProviderID

	// Capabilities reports which optional operations are available.
	Capabilities() Capabilities

	// Provision creates a brand-new mailbox and returns its session.
	Provision(ctx context.Context) (*model.MailboxSession, error)

	// Refresh exchanges a refresh token for a new credential pair.
	Refresh(ctx context.Context, refreshToken string) (Credentials, error)

	// ListMessages returns the current inbox of the session's mailbox,
	// newest first as the provider orders it.
	ListMessages(
		ctx context.Context,
		session model.MailboxSession,
	) ([]model.MessageSummary, error)

	// FetchDetail returns the full content of a single message.
	FetchDetail(
		ctx context.Context,
		session model.MailboxSession,
		id string,
	) (*model.MessageDetail, error)

	// DeleteAccount removes the remote mailbox. It reports false (and no
	// error) when the provider answered but did not delete anything.
	DeleteAccount(
		ctx context.Context,
		session model.MailboxSession,
	) (bool, error)
}

// Registry maps provider identifiers to their implementations.
type Registry struct {
	primary   Provider
	fallback  Provider
	providers map[model.ProviderID]Provider
}

// NewRegistry creates a registry with the given primary and fallback
// providers. Provisioning tries them in that order.
func NewRegistry(primary, fallback Provider) *Registry {
	r := &Registry{
		primary:   primary,
		fallback:  fallback,
		providers: make(map[model.ProviderID]Provider, 2),
	}
	if primary != nil {
		r.providers[primary.ID()] = primary
	}
	if fallback != nil {
		r.providers[fallback.ID()] = fallback
	}
	return r
}

// Get returns the provider registered under id.
func (r *Registry) Get(id model.ProviderID) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", id)
	}
	return p, nil
}

// Primary returns the preferred provider.
func (r *Registry) Primary() Provider { return r.primary }

// Fallback returns the secondary provider.
func (r *Registry) Fallback() Provider { return r.fallback }

// Provision runs ProvisionWithFallback over the registered providers.
func (r *Registry) Provision(ctx context.Context) (*model.MailboxSession, error) {
	return ProvisionWithFallback(ctx, r.primary, r.fallback)
}

// ProvisionWithFallback tries primary first and fallback second. When the
// fallback cannot be used because of its API key, the primary's error is
// returned unchanged so the user sees the real cause. Any other fallback
// failure yields a ProvisionError with BothFailedMessage.
func ProvisionWithFallback(
	ctx context.Context,
	primary, fallback Provider,
) (*model.MailboxSession, error) {
	var primaryErr error
	if primary != nil {
		sess, err := primary.Provision(ctx)
		if err == nil {
			sess.ProviderID = primary.ID()
			return sess, nil
		}
		primaryErr = err
	}

	if fallback == nil {
		if primaryErr == nil {
			primaryErr = &ProvisionError{Message: BothFailedMessage, Cause: ErrNotConfigured}
		}
		return nil, primaryErr
	}

	sess, err := fallback.Provision(ctx)
	if err == nil {
		sess.ProviderID = fallback.ID()
		return sess, nil
	}

	if IsKeyProblem(err) && primaryErr != nil {
		return nil, primaryErr
	}

	return nil, &ProvisionError{
		Provider: fallback.ID(),
		Message:  BothFailedMessage,
		Cause:    fmt.Errorf("primary: %v; fallback: %w", primaryErr, err),
	}
}
