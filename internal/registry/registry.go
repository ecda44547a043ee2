package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Account is one credential + refresh-token pairing representing one
// authorized store. The YAML shape matches the config file written by the
// bootstrap utility.
type Account struct {
	Name         string `yaml:"name"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

type registryFile struct {
	Accounts []Account `yaml:"accounts"`
}

// Registry is the on-disk account registry, keyed by account name. Writes are
// whole-file rewrites through a temp file so a crash never leaves a truncated
// registry behind.
type Registry struct {
	mu   sync.Mutex
	path string
}

// New creates a Registry backed by the given path. The file does not need to
// exist yet; Load on a missing file returns an empty account list.
func New(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the backing file path.
func (r *Registry) Path() string { return r.path }

// Load reads every account from disk.
func (r *Registry) Load() ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Get finds one account by name.
func (r *Registry) Get(name string) (Account, bool, error) {
	accounts, err := r.Load()
	if err != nil {
		return Account{}, false, err
	}
	for _, a := range accounts {
		if a.Name == name {
			return a, true, nil
		}
	}
	return Account{}, false, nil
}

// Upsert inserts or replaces an account by name.
func (r *Registry) Upsert(acc Account) error {
	if acc.Name == "" {
		return errors.New("account name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load()
	if err != nil {
		return err
	}

	kept := accounts[:0]
	for _, a := range accounts {
		if a.Name != acc.Name {
			kept = append(kept, a)
		}
	}
	kept = append(kept, acc)

	return r.save(kept)
}

// UpdateRefreshToken persists a rotated refresh token for an existing account.
// An unknown name is an error: rotation must never invent registry entries.
func (r *Registry) UpdateRefreshToken(name, refreshToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load()
	if err != nil {
		return err
	}

	for i := range accounts {
		if accounts[i].Name == name {
			accounts[i].RefreshToken = refreshToken
			return r.save(accounts)
		}
	}
	return fmt.Errorf("account %q not found in registry", name)
}

func (r *Registry) load() ([]Account, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return f.Accounts, nil
}

func (r *Registry) save(accounts []Account) error {
	data, err := yaml.Marshal(registryFile{Accounts: accounts})
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".registry-*.yaml")
	if err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}
