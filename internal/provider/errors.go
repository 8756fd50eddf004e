package provider

import (
	"errors"
	"fmt"

	"github.com/nhle/tempinbox/internal/model"
)

var (
	// ErrNotConfigured is returned by a provider that cannot be used
	// because a required credential (the fallback API key) is missing.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrCredentialRejected is returned when the provider refuses the
	// configured API key (HTTP 401/403 on a keyed endpoint).
	ErrCredentialRejected = errors.New("invalid or unauthorized API key")

	// ErrUnsupported is returned when an operation is called on a provider
	// that does not have the matching capability.
	ErrUnsupported = errors.New("operation not supported by provider")
)

// ProvisionError reports a failed attempt to obtain a new mailbox. Message
// is the user-facing text; Cause keeps the underlying failure for logs.
type ProvisionError struct {
	Provider model.ProviderID
	Message  string
	Cause    error
}

func (e *ProvisionError) Error() string {
	return e.Message
}

func (e *ProvisionError) Unwrap() error {
	return e.Cause
}

// AuthError indicates that the mailbox credentials were rejected or have
// expired. Providers return it when a 401 response is received.
type AuthError struct {
	Provider model.ProviderID
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Provider, e.Message)
}

// RefreshError indicates that exchanging a refresh token for a new
// credential pair failed.
type RefreshError struct {
	Provider model.ProviderID
	Cause    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refreshing %s session: %v", e.Provider, e.Cause)
}

func (e *RefreshError) Unwrap() error {
	return e.Cause
}

// TransientError covers timeouts, network failures, open circuits and
// unexpected server responses. The operation may succeed if retried later.
type TransientError struct {
	Op    string
	Cause error
}

func (e *TransientError) Error() string {
	if e.Cause == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// NotFoundError indicates the requested message no longer exists.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message %s not found", e.ID)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsTransient reports whether err (or any error in its chain) is a
// TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsKeyProblem reports whether err means the fallback provider's API key
// is missing or refused.
func IsKeyProblem(err error) bool {
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrCredentialRejected)
}

// SessionTimedOut is the only user-visible form of an AuthError.
const SessionTimedOut = "Session timed out."

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var pe *ProvisionError
	if errors.As(err, &pe) {
		return pe.Message
	}
	if IsAuthError(err) {
		return SessionTimedOut
	}
	var te *TransientError
	if errors.As(err, &te) {
		return te.Op
	}
	if IsNotFound(err) {
		return "This message is no longer available."
	}
	return err.Error()
}
