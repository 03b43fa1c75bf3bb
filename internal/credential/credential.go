// Package credential manages the host's local auth.json: a single
// username/PIN pair checked against every incoming session's auth request.
package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

var pinPattern = regexp.MustCompile(`^[0-9]{6}$`)

// Store is the on-disk shape of auth.json. The PIN is never stored in the
// clear — only its bcrypt hash.
type Store struct {
	Username string `json:"username"`
	PINHash  string `json:"pin_hash"`
}

// ValidateUsername reports whether username meets the 3-32 char,
// [A-Za-z0-9_-] requirement.
func ValidateUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// ValidatePIN reports whether pin is exactly 6 digits.
func ValidatePIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

// New builds a Store from a plaintext username/PIN pair, validating both
// and hashing the PIN.
func New(username, pin string) (*Store, error) {
	if !ValidateUsername(username) {
		return nil, fmt.Errorf("credential: username must be 3-32 chars of [A-Za-z0-9_-]")
	}
	if !ValidatePIN(pin) {
		return nil, fmt.Errorf("credential: pin must be exactly 6 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("credential: hashing pin: %w", err)
	}
	return &Store{Username: username, PINHash: string(hash)}, nil
}

// Check reports whether username/pin matches the stored credential.
func (s *Store) Check(username, pin string) bool {
	if s == nil || username != s.Username {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.PINHash), []byte(pin)) == nil
}

// Load reads and parses path. A missing file is not an error: it signals
// the caller to fall through to interactive setup.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential: reading %s: %w", path, err)
	}
	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("credential: parsing %s: %w", path, err)
	}
	return &s, nil
}

// Save writes s to path atomically: marshal to a sibling temp file, fsync,
// then rename over the destination. A reader never observes a partially
// written auth.json.
func Save(path string, s *Store) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("credential: marshaling: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".auth-*.json.tmp")
	if err != nil {
		return fmt.Errorf("credential: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credential: closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("credential: setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("credential: renaming into place: %w", err)
	}
	return nil
}
