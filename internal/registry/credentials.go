package registry

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sealad886/ollamautil/internal/config"
	"github.com/sealad886/ollamautil/internal/crypto"
	"github.com/zalando/go-keyring"
)

// keyringService is the service name under which API keys are stored in
// the OS keyring.
const keyringService = "ollamautil"

// ErrNoCredential indicates no API key is stored for a host.
var ErrNoCredential = errors.New("no stored credential")

// StoreAPIKey saves the API key for host in the OS keyring, falling back
// to an encrypted file store when no keyring is available (headless
// machines, stripped-down containers).
func StoreAPIKey(host, key string) error {
	if err := keyring.Set(keyringService, host, key); err != nil {
		slog.Debug("keyring unavailable, using encrypted file store", "error", err)
		return storeFileKey(host, key)
	}
	return nil
}

// LoadAPIKey returns the stored API key for host, or ErrNoCredential.
func LoadAPIKey(host string) (string, error) {
	key, err := keyring.Get(keyringService, host)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keyring unavailable, trying encrypted file store", "error", err)
	}
	return loadFileKey(host)
}

// DeleteAPIKey removes the stored API key for host from both stores.
func DeleteAPIKey(host string) error {
	if err := keyring.Delete(keyringService, host); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keyring delete failed", "error", err)
	}
	return deleteFileKey(host)
}

// fileCredentials maps registry hosts to encrypted API keys in
// credentials.json.
type fileCredentials struct {
	Hosts map[string]string `json:"hosts"`
}

func credentialsPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.json"), nil
}

// loadSecret reads the per-user secret that encrypts the file store,
// creating it on first use.
func loadSecret() ([]byte, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, ".secret")

	secret, err := os.ReadFile(path)
	if err == nil && len(secret) > 0 {
		return secret, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading secret: %w", err)
	}

	secret = make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, secret, 0600); err != nil {
		return nil, fmt.Errorf("writing secret: %w", err)
	}
	return secret, nil
}

func loadFileCredentials() (*fileCredentials, error) {
	path, err := credentialsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &fileCredentials{Hosts: make(map[string]string)}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var creds fileCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if creds.Hosts == nil {
		creds.Hosts = make(map[string]string)
	}
	return &creds, nil
}

func saveFileCredentials(creds *fileCredentials) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

func storeFileKey(host, key string) error {
	secret, err := loadSecret()
	if err != nil {
		return err
	}
	derived, err := crypto.DeriveKey(secret)
	if err != nil {
		return err
	}
	encrypted, err := crypto.Encrypt(key, derived)
	if err != nil {
		return err
	}

	creds, err := loadFileCredentials()
	if err != nil {
		return err
	}
	creds.Hosts[host] = encrypted
	return saveFileCredentials(creds)
}

func loadFileKey(host string) (string, error) {
	creds, err := loadFileCredentials()
	if err != nil {
		return "", err
	}
	encrypted, ok := creds.Hosts[host]
	if !ok {
		return "", ErrNoCredential
	}

	secret, err := loadSecret()
	if err != nil {
		return "", err
	}
	derived, err := crypto.DeriveKey(secret)
	if err != nil {
		return "", err
	}
	return crypto.Decrypt(encrypted, derived)
}

func deleteFileKey(host string) error {
	creds, err := loadFileCredentials()
	if err != nil {
		return err
	}
	if _, ok := creds.Hosts[host]; !ok {
		return nil
	}
	delete(creds.Hosts, host)
	return saveFileCredentials(creds)
}
