package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIMAPConfig_Addr(t *testing.T) {
	tests := []struct {
		name     string
		config   IMAPConfig
		expected string
	}{
		{"tls default port", IMAPConfig{Host: "imap.example.com", TLS: true}, "imap.example.com:993"},
		{"plain default port", IMAPConfig{Host: "localhost"}, "localhost:143"},
		{"explicit port", IMAPConfig{Host: "localhost", Port: 1143, TLS: true}, "localhost:1143"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.Addr())
		})
	}
}

func TestIMAPClient_RequiresConnection(t *testing.T) {
	client := NewIMAPClient(IMAPConfig{Host: "localhost"}, nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, client.Select(ctx, "INBOX"), ErrNotConnected)

	_, err := client.Search(ctx, "ALL")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.Fetch(ctx, 1)
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.NoError(t, client.Logout(ctx))
}

func TestIMAPClient_SearchRejectsInvalidCriteria(t *testing.T) {
	client := NewIMAPClient(IMAPConfig{Host: "localhost"}, nil, nil)

	_, err := client.Search(context.Background(), `FROM`)
	assert.ErrorIs(t, err, ErrInvalidSearch)
}

func TestIMAPClient_ConnectHonoursCancelledContext(t *testing.T) {
	client := NewIMAPClient(IMAPConfig{Host: "localhost"}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, client.Connect(ctx), context.Canceled)
}

func TestNewSASLClient(t *testing.T) {
	t.Run("xoauth2", func(t *testing.T) {
		c, err := newSASLClient(AuthXOAuth2, "user@example.com", "tok")
		require.NoError(t, err)

		mech, ir, err := c.Start()
		require.NoError(t, err)
		assert.Equal(t, "XOAUTH2", mech)
		assert.Equal(t, "user=user@example.com\x01auth=Bearer tok\x01\x01", string(ir))
	})

	t.Run("oauthbearer", func(t *testing.T) {
		c, err := newSASLClient(AuthOAuthBearer, "user@example.com", "tok")
		require.NoError(t, err)

		mech, _, err := c.Start()
		require.NoError(t, err)
		assert.Equal(t, "OAUTHBEARER", mech)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := newSASLClient("plain", "user", "pw")
		assert.Error(t, err)
	})
}

func TestNewOAuthTokenSource_RequiresClient(t *testing.T) {
	_, err := NewOAuthTokenSource(context.Background(), OAuthConfig{})
	assert.Error(t, err)

	ts, err := NewOAuthTokenSource(context.Background(), OAuthConfig{
		ClientID:     "id",
		RefreshToken: "refresh",
		TokenURL:     "https://auth.example.com/token",
	})
	require.NoError(t, err)
	assert.NotNil(t, ts)
}
