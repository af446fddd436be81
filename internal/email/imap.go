package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"golang.org/x/oauth2"
)

// ErrNotConnected is returned by mailbox operations issued before Connect
var ErrNotConnected = errors.New("imap client is not connected")

// IMAPClient is a Mailbox backed by an IMAP server
type IMAPClient struct {
	config      IMAPConfig
	tokenSource oauth2.TokenSource
	logger      *slog.Logger

	mu   sync.Mutex
	conn *imapclient.Client
}

// NewIMAPClient creates a new IMAP mailbox client. tokenSource is only used
// when the account is configured for an OAuth2 login and may be nil otherwise.
func NewIMAPClient(config IMAPConfig, tokenSource oauth2.TokenSource, logger *slog.Logger) *IMAPClient {
	if logger == nil {
		logger = slog.Default()
	}
	if config.AuthMethod == "" {
		config.AuthMethod = AuthPassword
	}
	return &IMAPClient{
		config:      config,
		tokenSource: tokenSource,
		logger:      logger,
	}
}

// Connect dials the server over implicit TLS and authenticates. An existing
// connection is reused.
func (c *IMAPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := c.config.Addr()
	c.logger.Debug("Connecting to IMAP server", "addr", addr, "tls", c.config.TLS)

	var (
		conn *imapclient.Client
		err  error
	)
	if c.config.TLS {
		conn, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: c.config.Host},
		})
	} else {
		conn, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("dial IMAP %s: %w", addr, err)
	}

	if err := c.authenticate(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	c.logger.Debug("Connected and authenticated", "user", c.config.Username)
	return nil
}

func (c *IMAPClient) authenticate(ctx context.Context, conn *imapclient.Client) error {
	if !c.config.UsesOAuth() {
		return run(ctx, conn, func() error {
			if err := conn.Login(c.config.Username, c.config.Password).Wait(); err != nil {
				return fmt.Errorf("IMAP login %s: %w", c.config.Username, err)
			}
			return nil
		})
	}

	if c.tokenSource == nil {
		return fmt.Errorf("IMAP login %s: no oauth token source configured", c.config.Username)
	}
	token, err := c.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("refresh oauth token: %w", err)
	}
	saslClient, err := newSASLClient(c.config.AuthMethod, c.config.Username, token.AccessToken)
	if err != nil {
		return err
	}
	return run(ctx, conn, func() error {
		if err := conn.Authenticate(saslClient); err != nil {
			return fmt.Errorf("IMAP authenticate %s: %w", c.config.Username, err)
		}
		return nil
	})
}

// Select opens folder for the following Search and Fetch calls
func (c *IMAPClient) Select(ctx context.Context, folder string) error {
	return c.withConn(ctx, func(conn *imapclient.Client) error {
		data, err := conn.Select(folder, nil).Wait()
		if err != nil {
			return fmt.Errorf("SELECT %q: %w", folder, err)
		}
		c.logger.Debug("Selected folder", "folder", folder, "messages", data.NumMessages)
		return nil
	})
}

// Search compiles criteria and returns the matching sequence numbers in
// ascending order
func (c *IMAPClient) Search(ctx context.Context, criteria string) ([]uint32, error) {
	compiled, err := CompileSearchCriteria(criteria)
	if err != nil {
		return nil, err
	}

	var seqNums []uint32
	err = c.withConn(ctx, func(conn *imapclient.Client) error {
		data, err := conn.Search(compiled, nil).Wait()
		if err != nil {
			return fmt.Errorf("SEARCH %s: %w", criteria, err)
		}
		seqNums = data.AllSeqNums()
		return nil
	})
	return seqNums, err
}

// Fetch returns the complete raw message using BODY.PEEK[]
func (c *IMAPClient) Fetch(ctx context.Context, seqNum uint32) ([]byte, error) {
	section := &imap.FetchItemBodySection{Peek: true}

	var raw []byte
	err := c.withConn(ctx, func(conn *imapclient.Client) error {
		msgs, err := conn.Fetch(imap.SeqSetNum(seqNum), &imap.FetchOptions{
			BodySection: []*imap.FetchItemBodySection{section},
		}).Collect()
		if err != nil {
			return fmt.Errorf("FETCH %d: %w", seqNum, err)
		}
		if len(msgs) == 0 {
			return fmt.Errorf("FETCH %d: message not found", seqNum)
		}
		raw = msgs[0].FindBodySection(section)
		return nil
	})
	return raw, err
}

// Logout ends the session. It is safe to call without an open connection.
func (c *IMAPClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil

	err := run(ctx, conn, func() error {
		return conn.Logout().Wait()
	})
	_ = conn.Close()
	if err != nil {
		return fmt.Errorf("IMAP logout: %w", err)
	}
	return nil
}

// withConn runs fn with the active connection while holding the mutex
func (c *IMAPClient) withConn(ctx context.Context, fn func(*imapclient.Client) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	conn := c.conn
	err := run(ctx, conn, func() error { return fn(conn) })
	if ctx.Err() != nil {
		c.conn = nil
	}
	return err
}

// run executes a blocking IMAP command and closes the connection when ctx is
// cancelled first, which unblocks the pending command.
func run(ctx context.Context, conn *imapclient.Client, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = conn.Close()
		<-done
		return ctx.Err()
	}
}
