// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prefs stores the user profile and theme on local disk.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nyaysahayak/sahayak-tui/internal/util"
)

// prefsFileName is the fixed storage key for the profile record.
const prefsFileName = "preferences.json"

// Preferences is the flat user profile record. Mutated via settings and
// written back on every change; no schema versioning.
type Preferences struct {
	Name                  string `json:"name"`
	Email                 string `json:"email"`
	Photo                 string `json:"photo"`
	Role                  string `json:"role"`
	Language              string `json:"language"`
	DetailLevel           string `json:"detail_level"`
	State                 string `json:"state"`
	VoiceAssistantEnabled bool   `json:"voice_assistant_enabled"`
	DarkTheme             bool   `json:"dark_theme"`
}

// Defaults returns the preferences created on first load.
func Defaults() *Preferences {
	return &Preferences{
		Name:                  "Guest",
		Role:                  "Citizen",
		Language:              "en",
		DetailLevel:           "detailed",
		VoiceAssistantEnabled: true,
		DarkTheme:             true,
	}
}

// Store reads and writes the preferences file.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. Empty dir defaults to
// ~/.sahayak/.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(homeDir, ".sahayak")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Load reads the stored preferences. A missing or unreadable file
// yields defaults, matching first-load behavior.
func (s *Store) Load() *Preferences {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return Defaults()
	}

	p := Defaults()
	if err := json.Unmarshal(data, p); err != nil {
		return Defaults()
	}
	return p
}

// Save writes the preferences.
func (s *Store) Save(p *Preferences) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(s.path(), data, 0644)
}

func (s *Store) path() string {
	return filepath.Join(s.dir, prefsFileName)
}
