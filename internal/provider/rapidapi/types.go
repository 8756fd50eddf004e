package rapidapi

import (
	"encoding/json"
)

// NewMailResponse is the response from GET /newmail.
type NewMailResponse struct {
	Success bool     `json:"success"`
	NewMail *NewMail `json:"newmail"`
}

// NewMail describes a freshly created mailbox.
type NewMail struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// Address is a sender.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Mail is a single message as returned by /mails and /read/{id}.
type Mail struct {
	ID      string   `json:"id"`
	From    Address  `json:"from"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	Date    string   `json:"date"`
	HTML    HTMLBody `json:"html,omitempty"`
}

// MailsResponse is the response from GET /mails.
type MailsResponse struct {
	Mails []Mail `json:"mails"`
}

// ReadResponse is the response from GET /read/{id}.
type ReadResponse struct {
	Mail *Mail `json:"mail"`
}

// HTMLBody accepts either a single HTML string or a list of fragments.
type HTMLBody []string

// UnmarshalJSON implements json.Unmarshaler.
func (h *HTMLBody) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*h = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		// Unknown shape (null, object); treat as no HTML body.
		*h = nil
		return nil
	}
	if single == "" {
		*h = nil
		return nil
	}
	*h = HTMLBody{single}
	return nil
}
