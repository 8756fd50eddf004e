package model

import "time"

// ProviderID identifies which remote mailbox service owns a session.
type ProviderID string

const (
	// ProviderPrimary is mail.tm, tried first for every provisioning.
	ProviderPrimary ProviderID = "mail.tm"

	// ProviderFallback is the RapidAPI free-tempmail service, used only
	// when the primary provider cannot hand out a mailbox.
	ProviderFallback ProviderID = "rapidapi"
)

// MailboxSession is the active disposable mailbox and its credentials.
type MailboxSession struct {
	// Address is the provisioned email address.
	Address string `json:"address"`

	// AuthToken is the bearer credential sent with every authenticated call.
	AuthToken string `json:"auth_token"`

	// RefreshToken is present only for providers that support refresh.
	RefreshToken string `json:"refresh_token,omitempty"`

	// AccountID is the provider-assigned account identifier used for deletion.
	AccountID string `json:"account_id"`

	// ProviderID selects the adapter that handles this session.
	ProviderID ProviderID `json:"provider_id"`

	// Password is kept only for primary-provider re-authentication. Never displayed.
	Password string `json:"password,omitempty"`

	// CreatedAt is when the mailbox was provisioned.
	CreatedAt time.Time `json:"created_at"`
}

// CanRefresh reports whether the session carries a refresh token.
func (s MailboxSession) CanRefresh() bool {
	return s.RefreshToken != ""
}

// MailboxRecord is the local bookkeeping row for a mailbox that has been
// active on this machine.
type MailboxRecord struct {
	Address    string     `db:"address"`
	ProviderID ProviderID `db:"provider_id"`
	CreatedAt  time.Time  `db:"created_at"`
	RetiredAt  *time.Time `db:"retired_at"`
}

// SeenMessage records that a message id was observed in a mailbox's inbox.
type SeenMessage struct {
	ID          string     `db:"id"`
	Address     string     `db:"address"`
	MessageID   string     `db:"message_id"`
	FirstSeenAt time.Time  `db:"first_seen_at"`
	ReadAt      *time.Time `db:"read_at"`
}
