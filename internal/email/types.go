package email

import (
	"context"
	"fmt"
	"time"
)

// Mailbox defines the mailbox operations a scan needs. Implementations issue
// one blocking round trip per call.
type Mailbox interface {
	// Connect opens the connection and authenticates
	Connect(ctx context.Context) error

	// Select opens a folder for searching and fetching
	Select(ctx context.Context, folder string) error

	// Search returns the sequence numbers matching a textual IMAP search filter
	Search(ctx context.Context, criteria string) ([]uint32, error)

	// Fetch returns the full raw message without setting the \Seen flag
	Fetch(ctx context.Context, seqNum uint32) ([]byte, error)

	// Logout ends the session and closes the connection
	Logout(ctx context.Context) error
}

// Authentication methods supported by IMAPConfig.AuthMethod
const (
	AuthPassword    = "password"
	AuthXOAuth2     = "xoauth2"
	AuthOAuthBearer = "oauthbearer"
)

// IMAPConfig holds connection settings for an IMAP account
type IMAPConfig struct {
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	TLS        bool          `json:"tls"`
	Username   string        `json:"username"`
	Password   string        `json:"-"`
	AuthMethod string        `json:"auth_method"`
	Timeout    time.Duration `json:"timeout"`
	OAuth      OAuthConfig   `json:"oauth"`
}

// OAuthConfig holds the OAuth2 client used for token based IMAP logins
type OAuthConfig struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"-"`
	RefreshToken string   `json:"-"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
}

// Addr returns the "host:port" string, defaulting the port from the TLS mode.
func (c *IMAPConfig) Addr() string {
	port := c.Port
	if port == 0 {
		if c.TLS {
			port = 993
		} else {
			port = 143
		}
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// UsesOAuth reports whether the account logs in with an OAuth2 token
func (c *IMAPConfig) UsesOAuth() bool {
	return c.AuthMethod == AuthXOAuth2 || c.AuthMethod == AuthOAuthBearer
}
