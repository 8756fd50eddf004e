package model

import "time"

// Sender is the author of a received message.
type Sender struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Display returns the sender's name, or the address when no name is set.
func (s Sender) Display() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Address
}

// MessageSummary is one entry of an inbox listing. Summaries are immutable
// once received; a poll replaces the whole list.
type MessageSummary struct {
	ID        string    `json:"id"`
	From      Sender    `json:"from"`
	Subject   string    `json:"subject"`
	Intro     string    `json:"intro"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageDetail is the full content of a single message, fetched on demand.
type MessageDetail struct {
	MessageSummary

	// Text is the plain-text body.
	Text string `json:"text"`

	// HTML holds the HTML body fragments; it may be empty.
	HTML []string `json:"html"`

	// To is the mailbox address the detail was fetched for.
	To string `json:"to,omitempty"`
}

// IntroLength is the preview length used when a provider does not send one.
const IntroLength = 100

// Preview truncates text to IntroLength runes.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= IntroLength {
		return text
	}
	return string(runes[:IntroLength])
}
