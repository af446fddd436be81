package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// DefaultServiceName is the keyring service mailbox secrets are stored under
const DefaultServiceName = "parcel-tracker"

// ErrNotFound is returned when no secret is stored for a key
var ErrNotFound = errors.New("credential not found")

// Config selects the keyring backend
type Config struct {
	ServiceName string
	// Backend restricts the keyring to one backend ("file", "keychain",
	// "secret-service", "wincred", "pass"). Empty tries them in order.
	Backend string
	FileDir string
	// FilePassword encrypts the file backend
	FilePassword string
}

// Store reads and writes mailbox secrets in the OS keyring
type Store struct {
	ring keyring.Keyring
}

// NewStore wraps an already opened keyring
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open opens the keyring described by config
func Open(config Config) (*Store, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.FileDir == "" {
		config.FileDir = "~/.config/parcel-tracker/credentials"
	}
	if config.FilePassword == "" {
		config.FilePassword = "parcel-tracker-file-key"
	}

	backends := []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
		keyring.FileBackend,
	}
	if config.Backend != "" {
		backends = []keyring.BackendType{keyring.BackendType(config.Backend)}
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              config.ServiceName,
		AllowedBackends:          backends,
		FileDir:                  config.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(config.FilePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// Key returns the keyring key for a mailbox account
func Key(host, username string) string {
	return "imap:" + username + "@" + host
}

// Get retrieves a secret by key
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret by key
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "parcel-tracker " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret by key
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// ResolvePassword returns configured when set and otherwise looks up the
// account's password in the keyring
func (s *Store) ResolvePassword(configured, host, username string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if s == nil {
		return "", fmt.Errorf("%w: no keyring available for %s", ErrNotFound, username)
	}
	return s.Get(Key(host, username))
}
