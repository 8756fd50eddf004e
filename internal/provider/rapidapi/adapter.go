// Package rapidapi implements the fallback mailbox provider on top of the
// free-tempmail API published on RapidAPI.
package rapidapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/provider"
	"github.com/nhle/tempinbox/internal/provider/rest"
)

// DefaultHost is the RapidAPI host header value for free-tempmail.
const DefaultHost = "free-tempmail-api.p.rapidapi.com"

// Adapter implements provider.Provider for the RapidAPI free-tempmail API.
// It has no refresh or delete support.
type Adapter struct {
	client *rest.Client
	host   string
	log    *zap.SugaredLogger
	now    func() time.Time

	mu     gosync.RWMutex
	apiKey string
}

var _ provider.Provider = (*Adapter)(nil)

// NewAdapter creates a RapidAPI adapter. An empty or placeholder apiKey
// leaves the provider unconfigured until SetAPIKey is called.
func NewAdapter(baseURL, host, apiKey string, opts rest.Options) *Adapter {
	if opts.Name == "" {
		opts.Name = string(model.ProviderFallback)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if host == "" {
		host = DefaultHost
	}
	return &Adapter{
		client: rest.NewClient(baseURL, opts),
		host:   host,
		log:    opts.Logger.With("provider", model.ProviderFallback),
		now:    time.Now,
		apiKey: strings.TrimSpace(apiKey),
	}
}

// SetAPIKey replaces the API key used for subsequent calls.
func (a *Adapter) SetAPIKey(key string) {
	a.mu.Lock()
	a.apiKey = strings.TrimSpace(key)
	a.mu.Unlock()
}

// Configured reports whether a usable API key is set.
func (a *Adapter) Configured() bool {
	_, ok := a.key()
	return ok
}

func (a *Adapter) key() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.apiKey, model.FallbackKeyConfigured(a.apiKey)
}

// ID returns the provider identifier.
func (a *Adapter) ID() model.ProviderID {
	return model.ProviderFallback
}

// Capabilities reports that neither refresh nor delete is available.
func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{}
}

// Provision requests a new mailbox. It fails fast with
// provider.ErrNotConfigured when no key is set, and returns
// provider.ErrCredentialRejected on 401/403.
func (a *Adapter) Provision(ctx context.Context) (*model.MailboxSession, error) {
	key, ok := a.key()
	if !ok {
		return nil, fmt.Errorf("RapidAPI: %w", provider.ErrNotConfigured)
	}

	var resp NewMailResponse
	if err := a.client.Get(ctx, "/newmail", a.headers(key, ""), &resp); err != nil {
		switch rest.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("RapidAPI: %w", provider.ErrCredentialRejected)
		}
		return nil, &provider.ProvisionError{
			Provider: model.ProviderFallback,
			Message:  "Failed to generate email from RapidAPI",
			Cause:    err,
		}
	}

	if !resp.Success || resp.NewMail == nil || resp.NewMail.Email == "" {
		return nil, &provider.ProvisionError{
			Provider: model.ProviderFallback,
			Message:  "RapidAPI returned an error or invalid data.",
		}
	}

	a.log.Infow("mailbox provisioned", "address", resp.NewMail.Email)

	return &model.MailboxSession{
		Address:    resp.NewMail.Email,
		AuthToken:  resp.NewMail.Token,
		AccountID:  resp.NewMail.Email,
		ProviderID: model.ProviderFallback,
		CreatedAt:  a.now(),
	}, nil
}

// Refresh is not supported by this provider.
func (a *Adapter) Refresh(context.Context, string) (provider.Credentials, error) {
	return provider.Credentials{}, provider.ErrUnsupported
}

// ListMessages returns the inbox. Without a key, or on any non-2xx answer,
// the inbox is reported empty.
func (a *Adapter) ListMessages(
	ctx context.Context,
	session model.MailboxSession,
) ([]model.MessageSummary, error) {
	key, ok := a.key()
	if !ok {
		return []model.MessageSummary{}, nil
	}

	var resp MailsResponse
	err := a.client.Get(ctx, "/mails", a.headers(key, session.AuthToken), &resp)
	if err != nil {
		if code := rest.StatusCode(err); code != 0 {
			a.log.Warnw("listing mails failed, treating inbox as empty",
				"status", code)
			return []model.MessageSummary{}, nil
		}
		return nil, fmt.Errorf("listing mails: %w", err)
	}

	out := make([]model.MessageSummary, 0, len(resp.Mails))
	for _, m := range resp.Mails {
		out = append(out, toSummary(m))
	}
	return out, nil
}

// FetchDetail reads a single message.
func (a *Adapter) FetchDetail(
	ctx context.Context,
	session model.MailboxSession,
	id string,
) (*model.MessageDetail, error) {
	key, ok := a.key()
	if !ok {
		return nil, fmt.Errorf("RapidAPI key: %w", provider.ErrNotConfigured)
	}

	var resp ReadResponse
	path := "/read/" + url.PathEscape(id)
	if err := a.client.Get(ctx, path, a.headers(key, session.AuthToken), &resp); err != nil {
		switch rest.StatusCode(err) {
		case 0:
			return nil, fmt.Errorf("reading mail %s: %w", id, err)
		case http.StatusNotFound:
			return nil, &provider.NotFoundError{ID: id}
		default:
			return nil, &provider.TransientError{
				Op:    "Could not fetch message details from RapidAPI.",
				Cause: err,
			}
		}
	}
	if resp.Mail == nil {
		return nil, &provider.NotFoundError{ID: id}
	}

	html := []string(resp.Mail.HTML)
	if html == nil {
		html = []string{}
	}
	return &model.MessageDetail{
		MessageSummary: toSummary(*resp.Mail),
		Text:           resp.Mail.Text,
		HTML:           html,
		To:             session.Address,
	}, nil
}

// DeleteAccount is a no-op; the provider expires mailboxes on its own.
func (a *Adapter) DeleteAccount(context.Context, model.MailboxSession) (bool, error) {
	return false, nil
}

func (a *Adapter) headers(key, mailToken string) http.Header {
	h := http.Header{}
	h.Set("x-rapidapi-host", a.host)
	h.Set("x-rapidapi-key", key)
	if mailToken != "" {
		h.Set("mailtoken", mailToken)
	}
	return h
}

func toSummary(m Mail) model.MessageSummary {
	return model.MessageSummary{
		ID:        m.ID,
		From:      model.Sender{Address: m.From.Address, Name: m.From.Name},
		Subject:   m.Subject,
		Intro:     model.Preview(m.Text),
		CreatedAt: parseDate(m.Date),
	}
}

// parseDate accepts the handful of layouts the API has been seen to use.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		time.RFC1123Z,
		time.RFC1123,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
