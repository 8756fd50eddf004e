package testutil

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/provider"
)

// FakeProvider is a scriptable provider.Provider. Nil hooks fall back to
// simple defaults; every call is counted.
type FakeProvider struct {
	Caps provider.Capabilities
	Kind model.ProviderID

	ProvisionFn func(ctx context.Context) (*model.MailboxSession, error)
	RefreshFn   func(ctx context.Context, token string) (provider.Credentials, error)
	ListFn      func(ctx context.Context, s model.MailboxSession) ([]model.MessageSummary, error)
	DetailFn    func(ctx context.Context, s model.MailboxSession, id string) (*model.MessageDetail, error)
	DeleteFn    func(ctx context.Context, s model.MailboxSession) (bool, error)

	mu    gosync.Mutex
	calls map[string]int
	seq   int
}

var _ provider.Provider = (*FakeProvider)(nil)

// NewFakePrimary returns a fake with refresh and delete capabilities.
func NewFakePrimary() *FakeProvider {
	return &FakeProvider{
		Kind: model.ProviderPrimary,
		Caps: provider.Capabilities{Refresh: true, Delete: true},
	}
}

// NewFakeFallback returns a fake without optional capabilities.
func NewFakeFallback() *FakeProvider {
	return &FakeProvider{Kind: model.ProviderFallback}
}

func (f *FakeProvider) record(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	f.seq++
	return f.seq
}

// Calls returns how many times the named method was called.
func (f *FakeProvider) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// ID implements provider.Provider.
func (f *FakeProvider) ID() model.ProviderID { return f.Kind }

// Capabilities implements provider.Provider.
func (f *FakeProvider) Capabilities() provider.Capabilities { return f.Caps }

// Provision implements provider.Provider. The default hands out
// sequentially numbered mailboxes.
func (f *FakeProvider) Provision(ctx context.Context) (*model.MailboxSession, error) {
	n := f.record("Provision")
	if f.ProvisionFn != nil {
		return f.ProvisionFn(ctx)
	}
	s := &model.MailboxSession{
		Address:    fmt.Sprintf("box%d@%s.test", n, f.Kind),
		AuthToken:  fmt.Sprintf("tok%d", n),
		AccountID:  fmt.Sprintf("acc%d", n),
		ProviderID: f.Kind,
	}
	if f.Caps.Refresh {
		s.RefreshToken = fmt.Sprintf("ref%d", n)
	}
	return s, nil
}

// Refresh implements provider.Provider.
func (f *FakeProvider) Refresh(ctx context.Context, token string) (provider.Credentials, error) {
	n := f.record("Refresh")
	if f.RefreshFn != nil {
		return f.RefreshFn(ctx, token)
	}
	if !f.Caps.Refresh {
		return provider.Credentials{}, provider.ErrUnsupported
	}
	return provider.Credentials{
		AuthToken:    fmt.Sprintf("fresh%d", n),
		RefreshToken: fmt.Sprintf("ref-fresh%d", n),
	}, nil
}

// ListMessages implements provider.Provider.
func (f *FakeProvider) ListMessages(ctx context.Context, s model.MailboxSession) ([]model.MessageSummary, error) {
	f.record("ListMessages")
	if f.ListFn != nil {
		return f.ListFn(ctx, s)
	}
	return []model.MessageSummary{}, nil
}

// FetchDetail implements provider.Provider.
func (f *FakeProvider) FetchDetail(ctx context.Context, s model.MailboxSession, id string) (*model.MessageDetail, error) {
	f.record("FetchDetail")
	if f.DetailFn != nil {
		return f.DetailFn(ctx, s, id)
	}
	return &model.MessageDetail{MessageSummary: model.MessageSummary{ID: id}, To: s.Address}, nil
}

// DeleteAccount implements provider.Provider.
func (f *FakeProvider) DeleteAccount(ctx context.Context, s model.MailboxSession) (bool, error) {
	f.record("DeleteAccount")
	if f.DeleteFn != nil {
		return f.DeleteFn(ctx, s)
	}
	return f.Caps.Delete, nil
}

// Messages builds n summaries with ids prefix-1..prefix-n.
func Messages(prefix string, n int) []model.MessageSummary {
	out := make([]model.MessageSummary, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.MessageSummary{
			ID:      fmt.Sprintf("%s-%d", prefix, i),
			Subject: fmt.Sprintf("%s subject %d", prefix, i),
			From:    model.Sender{Address: "sender@example.com"},
		})
	}
	return out
}
