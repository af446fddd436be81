package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/emersion/go-sasl"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// NewOAuthTokenSource returns a refreshing token source for the account's
// OAuth2 client. Google's endpoint is used when no token URL is configured.
func NewOAuthTokenSource(ctx context.Context, cfg OAuthConfig) (oauth2.TokenSource, error) {
	if cfg.ClientID == "" || cfg.RefreshToken == "" {
		return nil, errors.New("oauth client id and refresh token are required")
	}

	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: cfg.TokenURL}
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"https://mail.google.com/"}
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}), nil
}

// newSASLClient builds the SASL mechanism for a token based login
func newSASLClient(method, username, token string) (sasl.Client, error) {
	switch method {
	case AuthOAuthBearer:
		return sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
			Username: username,
			Token:    token,
		}), nil
	case AuthXOAuth2:
		return &xoauth2Client{username: username, token: token}, nil
	default:
		return nil, fmt.Errorf("unsupported auth method %q", method)
	}
}

// xoauth2Client implements the XOAUTH2 mechanism used by Gmail and Outlook.
type xoauth2Client struct {
	username string
	token    string
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next answers the error challenge with an empty response so the server
// can finish the exchange with a tagged NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
