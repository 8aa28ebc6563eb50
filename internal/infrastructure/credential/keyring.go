package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const (
	ServiceName = "wavemail"
	GroqAPIKey  = "groq-api-key"
	IMAPPass    = "imap-password"
)

var ErrNotFound = errors.New("credential not found")

type Store struct {
	ring keyring.Keyring
}

// PasswordEnv names the variable holding the passphrase of the file backend.
const PasswordEnv = "WAVEMAIL_KEYRING_PASSWORD"

// Open opens the OS keyring. The encrypted file under
// ~/.config/wavemail/credentials is only offered when PasswordEnv is set.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyringConfig(os.Getenv(PasswordEnv)))
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

func keyringConfig(filePassword string) keyring.Config {
	cfg := keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
	}
	if filePassword != "" {
		cfg.AllowedBackends = append(cfg.AllowedBackends, keyring.FileBackend)
		cfg.FileDir = "~/.config/wavemail/credentials"
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(filePassword)
	}
	return cfg
}

func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

func (s *Store) Set(key, value string) error {
	if err := s.ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("failed to set credential %q: %w", key, err)
	}
	return nil
}

// Lookup returns value when it is set, otherwise the keyring entry for key.
func Lookup(value, key string) (string, error) {
	if value != "" {
		return value, nil
	}
	s, err := Open()
	if err != nil {
		return "", err
	}
	return s.Get(key)
}
