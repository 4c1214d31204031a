// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// Credentials identifies a B2 account. Both fields empty means "no
// account configured", which is a valid state for a fresh install.
type Credentials struct {
	AccountID      string `json:"accountId"`
	ApplicationKey string `json:"applicationKey"`
}

// Empty reports whether no account is configured.
func (c Credentials) Empty() bool {
	return c.AccountID == "" && c.ApplicationKey == ""
}

// Store reads and writes the credentials file at a fixed path.
type Store struct {
	path string
}

// NewStore returns a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the standard credentials file location,
// $HOME/.config/quarry/account.json.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("account: resolving config directory: %w", err)
	}
	return filepath.Join(configDir, "quarry", "account.json"), nil
}

// Path returns the file path the store operates on.
func (s *Store) Path() string {
	return s.path
}

// Load reads the credentials file. A missing file is not an error: it
// returns empty credentials, matching a fresh install. The file may
// contain // and /* */ comments.
func (s *Store) Load() (Credentials, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("account: reading %s: %w", s.path, err)
	}

	var credentials Credentials
	if err := json.Unmarshal(jsonc.ToJSON(data), &credentials); err != nil {
		return Credentials{}, fmt.Errorf("account: parsing %s: %w", s.path, err)
	}
	return credentials, nil
}

// Save writes the credentials file with mode 0600, creating parent
// directories as needed. The write goes through a temporary file in
// the same directory and a rename, so a crash mid-write never leaves
// a truncated credentials file behind.
func (s *Store) Save(credentials Credentials) error {
	directory := filepath.Dir(s.path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("account: creating %s: %w", directory, err)
	}

	data, err := json.MarshalIndent(credentials, "", "  ")
	if err != nil {
		return fmt.Errorf("account: encoding credentials: %w", err)
	}
	data = append(data, '\n')

	temporary, err := os.CreateTemp(directory, ".account-*.json")
	if err != nil {
		return fmt.Errorf("account: creating temporary file: %w", err)
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	if err := temporary.Chmod(0600); err != nil {
		temporary.Close()
		return fmt.Errorf("account: setting permissions: %w", err)
	}
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("account: writing credentials: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("account: closing temporary file: %w", err)
	}

	if err := os.Rename(temporaryPath, s.path); err != nil {
		return fmt.Errorf("account: installing %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the credentials file. Clearing a store that has no
// file is a no-op.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("account: removing %s: %w", s.path, err)
	}
	return nil
}
