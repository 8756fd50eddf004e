package mailtm

// Collection is the hydra envelope mail.tm wraps every list response in.
type Collection[T any] struct {
	Members    []T `json:"hydra:member"`
	TotalItems int `json:"hydra:totalItems"`
}

// Domain is an entry of GET /domains.
type Domain struct {
	ID        string `json:"id"`
	Domain    string `json:"domain"`
	IsActive  bool   `json:"isActive"`
	IsPrivate bool   `json:"isPrivate"`
}

// Credentials is the request body for POST /accounts and POST /token.
type Credentials struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// Account is the response from POST /accounts.
type Account struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	CreatedAt string `json:"createdAt"`
}

// TokenResponse is the response from POST /token and POST /token/refresh.
type TokenResponse struct {
	ID           string `json:"id"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshRequest is the request body for POST /token/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Address is a sender or recipient.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Message is an entry of GET /messages. GET /messages/{id} adds the body
// fields.
type Message struct {
	ID        string    `json:"id"`
	From      Address   `json:"from"`
	To        []Address `json:"to,omitempty"`
	Subject   string    `json:"subject"`
	Intro     string    `json:"intro"`
	Seen      bool      `json:"seen"`
	CreatedAt string    `json:"createdAt"`
	Text      string    `json:"text,omitempty"`
	HTML      []string  `json:"html,omitempty"`
}
