package credential

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/99designs/keyring"
)

const serviceName = "mailtriage"

// Credential names stored in the keyring.
const (
	MailboxPassword = "email-password"
	OpenAIKey       = "openai-api-key"
	AnthropicKey    = "anthropic-api-key"
)

// Names lists the credentials that can be stored.
var Names = []string{MailboxPassword, OpenAIKey, AnthropicKey}

// Store reads and writes secrets in a keyring.
type Store struct {
	open func() (keyring.Keyring, error)
}

// NewStore returns a Store backed by the system keyring.
func NewStore() *Store {
	return &Store{open: openKeyring}
}

// NewStoreWith returns a Store backed by ring.
func NewStoreWith(ring keyring.Keyring) *Store {
	return &Store{open: func() (keyring.Keyring, error) { return ring, nil }}
}

// openKeyring returns a configured system keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailtriage/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailtriage-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential by name.
func (s *Store) Get(name string) (string, error) {
	ring, err := s.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(name)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", name, err)
	}
	return string(item.Data), nil
}

// Set stores a credential. Only the names in Names are accepted.
func (s *Store) Set(name, value string) error {
	if !slices.Contains(Names, name) {
		return fmt.Errorf("unknown credential %q (known: %v)", name, Names)
	}
	if value == "" {
		return fmt.Errorf("credential %q: empty value", name)
	}

	ring, err := s.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   name,
		Data:  []byte(value),
		Label: "mailtriage " + name,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", name, err)
	}
	return nil
}

// Delete removes a credential.
func (s *Store) Delete(name string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	if err := ring.Remove(name); err != nil {
		return fmt.Errorf("deleting credential %q: %w", name, err)
	}
	return nil
}

// Resolve returns the first non-empty of the environment variable envVar
// and the keyring entry name. A missing keyring entry or an unavailable
// keyring yields "" without error; other keyring failures are returned.
func (s *Store) Resolve(envVar, name string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	ring, err := s.open()
	if err != nil {
		return "", nil
	}
	item, err := ring.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", name, err)
	}
	return string(item.Data), nil
}
