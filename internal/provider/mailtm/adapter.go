// Package mailtm implements the primary mailbox provider on top of the
// public mail.tm REST API.
package mailtm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/provider"
	"github.com/nhle/tempinbox/internal/provider/rest"
)

// DefaultBaseURL is the public mail.tm API.
const DefaultBaseURL = "https://api.mail.tm"

const sessionExpired = "Mail.tm session expired."

// Adapter implements provider.Provider for mail.tm.
type Adapter struct {
	client *rest.Client
	log    *zap.SugaredLogger
	now    func() time.Time

	// newCredentials returns a random local part and password.
	newCredentials func() (string, string)
}

var _ provider.Provider = (*Adapter)(nil)

// NewAdapter creates a mail.tm adapter talking to baseURL.
func NewAdapter(baseURL string, opts rest.Options) *Adapter {
	if opts.Name == "" {
		opts.Name = string(model.ProviderPrimary)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Adapter{
		client:         rest.NewClient(baseURL, opts),
		log:            opts.Logger.With("provider", model.ProviderPrimary),
		now:            time.Now,
		newCredentials: randomCredentials,
	}
}

// ID returns the provider identifier.
func (a *Adapter) ID() model.ProviderID {
	return model.ProviderPrimary
}

// Capabilities reports that mail.tm supports both refresh and delete.
func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{Refresh: true, Delete: true}
}

// Provision picks the first domain, registers a random account on it and
// logs in. A failing step fails the whole call.
func (a *Adapter) Provision(ctx context.Context) (*model.MailboxSession, error) {
	var domains Collection[Domain]
	if err := a.client.Get(ctx, "/domains", nil, &domains); err != nil {
		return nil, a.provisionErr("Failed to fetch domains from Mail.tm", err)
	}

	domain := pickDomain(domains.Members)
	if domain == "" {
		return nil, a.provisionErr(
			"Failed to fetch domains from Mail.tm",
			errors.New("no domains available"),
		)
	}

	local, password := a.newCredentials()
	creds := Credentials{
		Address:  local + "@" + domain,
		Password: password,
	}

	var account Account
	if err := a.client.Post(ctx, "/accounts", nil, creds, &account); err != nil {
		return nil, a.provisionErr("Failed to create account with Mail.tm", err)
	}

	var token TokenResponse
	if err := a.client.Post(ctx, "/token", nil, creds, &token); err != nil {
		return nil, a.provisionErr("Failed to get token from Mail.tm", err)
	}
	if token.Token == "" {
		return nil, a.provisionErr(
			"Failed to get token from Mail.tm",
			errors.New("empty token in response"),
		)
	}

	address := account.Address
	if address == "" {
		address = creds.Address
	}

	a.log.Infow("mailbox provisioned", "address", address)

	return &model.MailboxSession{
		Address:      address,
		AuthToken:    token.Token,
		RefreshToken: token.RefreshToken,
		AccountID:    account.ID,
		ProviderID:   model.ProviderPrimary,
		Password:     password,
		CreatedAt:    a.now(),
	}, nil
}

// Refresh exchanges a refresh token for a new token pair. When mail.tm
// does not rotate the refresh token, the old one is kept.
func (a *Adapter) Refresh(
	ctx context.Context,
	refreshToken string,
) (provider.Credentials, error) {
	if refreshToken == "" {
		return provider.Credentials{}, &provider.RefreshError{
			Provider: model.ProviderPrimary,
			Cause:    errors.New("no refresh token"),
		}
	}

	var token TokenResponse
	err := a.client.Post(
		ctx, "/token/refresh", nil,
		RefreshRequest{RefreshToken: refreshToken}, &token,
	)
	if err != nil {
		return provider.Credentials{}, &provider.RefreshError{
			Provider: model.ProviderPrimary,
			Cause:    fmt.Errorf("refreshing token: %w", err),
		}
	}
	if token.Token == "" {
		return provider.Credentials{}, &provider.RefreshError{
			Provider: model.ProviderPrimary,
			Cause:    errors.New("empty token in refresh response"),
		}
	}

	next := token.RefreshToken
	if next == "" {
		next = refreshToken
	}
	return provider.Credentials{AuthToken: token.Token, RefreshToken: next}, nil
}

// ListMessages fetches the first page of the inbox. A 401 is an auth
// error; any other non-2xx answer yields an empty list.
func (a *Adapter) ListMessages(
	ctx context.Context,
	session model.MailboxSession,
) ([]model.MessageSummary, error) {
	var page Collection[Message]
	err := a.client.Get(ctx, "/messages", bearer(session.AuthToken), &page)
	if err != nil {
		switch code := rest.StatusCode(err); {
		case code == http.StatusUnauthorized:
			return nil, a.authErr()
		case code != 0:
			a.log.Warnw("listing messages failed, treating inbox as empty",
				"status", code)
			return []model.MessageSummary{}, nil
		}
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	out := make([]model.MessageSummary, 0, len(page.Members))
	for _, m := range page.Members {
		out = append(out, toSummary(m))
	}
	return out, nil
}

// FetchDetail retrieves a single message with its bodies.
func (a *Adapter) FetchDetail(
	ctx context.Context,
	session model.MailboxSession,
	id string,
) (*model.MessageDetail, error) {
	var msg Message
	path := "/messages/" + url.PathEscape(id)
	if err := a.client.Get(ctx, path, bearer(session.AuthToken), &msg); err != nil {
		switch rest.StatusCode(err) {
		case 0:
			return nil, fmt.Errorf("fetching message %s: %w", id, err)
		case http.StatusUnauthorized:
			return nil, a.authErr()
		case http.StatusNotFound:
			return nil, &provider.NotFoundError{ID: id}
		default:
			return nil, &provider.TransientError{
				Op:    "Could not fetch message details.",
				Cause: err,
			}
		}
	}

	detail := &model.MessageDetail{
		MessageSummary: toSummary(msg),
		Text:           msg.Text,
		HTML:           msg.HTML,
		To:             session.Address,
	}
	if detail.HTML == nil {
		detail.HTML = []string{}
	}
	return detail, nil
}

// DeleteAccount removes the mail.tm account. Any non-2xx answer, including
// 404 for an account that is already gone, reports false without error.
func (a *Adapter) DeleteAccount(
	ctx context.Context,
	session model.MailboxSession,
) (bool, error) {
	if session.AccountID == "" {
		return false, nil
	}

	path := "/accounts/" + url.PathEscape(session.AccountID)
	err := a.client.Delete(ctx, path, bearer(session.AuthToken))
	if err == nil {
		a.log.Infow("mailbox deleted", "address", session.Address)
		return true, nil
	}
	if code := rest.StatusCode(err); code != 0 {
		a.log.Warnw("delete refused", "address", session.Address, "status", code)
		return false, nil
	}
	return false, fmt.Errorf("deleting account: %w", err)
}

func (a *Adapter) provisionErr(msg string, cause error) error {
	a.log.Warnw(msg, "error", cause)
	return &provider.ProvisionError{
		Provider: model.ProviderPrimary,
		Message:  msg,
		Cause:    cause,
	}
}

func (a *Adapter) authErr() error {
	return &provider.AuthError{
		Provider: model.ProviderPrimary,
		Message:  sessionExpired,
	}
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// pickDomain returns the first active public domain, or the first domain
// when none is flagged active.
func pickDomain(domains []Domain) string {
	for _, d := range domains {
		if d.IsActive && !d.IsPrivate && d.Domain != "" {
			return d.Domain
		}
	}
	if len(domains) > 0 {
		return domains[0].Domain
	}
	return ""
}

func toSummary(m Message) model.MessageSummary {
	intro := m.Intro
	if intro == "" {
		intro = model.Preview(m.Text)
	}
	return model.MessageSummary{
		ID:        m.ID,
		From:      model.Sender{Address: m.From.Address, Name: m.From.Name},
		Subject:   m.Subject,
		Intro:     intro,
		CreatedAt: parseTime(m.CreatedAt),
	}
}

// randomCredentials returns a lowercase local part and a password, both
// derived from random UUIDs.
func randomCredentials() (string, string) {
	local := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	password := strings.ReplaceAll(uuid.NewString(), "-", "")
	return local, password
}

// parseTime parses the RFC 3339 timestamps mail.tm returns. Returns the
// zero time on failure.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
