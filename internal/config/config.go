// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads application configuration from TOML with
// environment overrides and optional hot reload.
//
// Resolution order:
//   - built-in defaults
//   - ~/.sahayak/config.toml (or an explicit path)
//   - SAHAYAK_* environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

// Config is the full application configuration.
type Config struct {
	// Backend is the legal-AI backend connection.
	Backend BackendConfig `toml:"backend"`

	// Voice configures the wake-word pipeline.
	Voice VoiceConfig `toml:"voice"`

	// Persistence configures conversation storage.
	Persistence PersistenceConfig `toml:"persistence"`

	// UI configures rendering.
	UI UIConfig `toml:"ui"`
}

// BackendConfig holds gateway settings.
type BackendConfig struct {
	// BaseURL is the backend address.
	BaseURL string `toml:"base_url"`

	// TimeoutSecs bounds non-streaming requests.
	TimeoutSecs int `toml:"timeout_secs"`

	// MaxRetries is the retry budget for transient errors.
	MaxRetries int `toml:"max_retries"`

	// RequestsPerSecond caps outgoing request rate. Zero disables.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// VoiceConfig holds voice pipeline settings.
type VoiceConfig struct {
	// Enabled toggles the voice assistant.
	Enabled bool `toml:"enabled"`

	// Language is a BCP 47 tag for recognition and answers.
	Language string `toml:"language"`

	// TranscriptPath is a FIFO or file an external speech-to-text
	// process writes newline transcripts into. Empty disables the
	// wake-word pipeline.
	TranscriptPath string `toml:"transcript_path"`
}

// PersistenceConfig holds conversation storage settings.
type PersistenceConfig struct {
	// DatabasePath is the SQLite file location.
	DatabasePath string `toml:"database_path"`

	// Granularity is "daily" (merge same-day exchanges into one
	// record) or "session" (one record per conversation).
	Granularity string `toml:"granularity"`
}

// UIConfig holds rendering settings.
type UIConfig struct {
	// DarkTheme selects the dark palette.
	DarkTheme bool `toml:"dark_theme"`

	// RenderMarkdown enables markdown rendering of AI answers.
	RenderMarkdown bool `toml:"render_markdown"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Backend: BackendConfig{
			BaseURL:           "http://127.0.0.1:8000",
			TimeoutSecs:       60,
			MaxRetries:        3,
			RequestsPerSecond: 4,
		},
		Voice: VoiceConfig{
			Enabled:  true,
			Language: "en-IN",
		},
		Persistence: PersistenceConfig{
			DatabasePath: filepath.Join(home, ".sahayak", "chats.db"),
			Granularity:  "daily",
		},
		UI: UIConfig{
			DarkTheme:      true,
			RenderMarkdown: true,
		},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sahayak", "config.toml"), nil
}

// Load reads configuration from path (or the default location when
// empty), applies environment overrides, and validates. A missing file
// is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies SAHAYAK_* environment variables on top of
// file values. Environment always wins.
func (c *Config) ApplyEnvOverrides() {
	if url := os.Getenv("SAHAYAK_BACKEND_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if secs := os.Getenv("SAHAYAK_TIMEOUT_SECS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil {
			c.Backend.TimeoutSecs = n
		}
	}
	if lang := os.Getenv("SAHAYAK_LANGUAGE"); lang != "" {
		c.Voice.Language = lang
	}
	if v := os.Getenv("SAHAYAK_VOICE"); v != "" {
		c.Voice.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if db := os.Getenv("SAHAYAK_DB_PATH"); db != "" {
		c.Persistence.DatabasePath = db
	}
	if g := os.Getenv("SAHAYAK_GRANULARITY"); g != "" {
		c.Persistence.Granularity = g
	}
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks field values and ranges.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return ValidationError{Field: "backend.base_url", Message: "must not be empty"}
	}
	if c.Backend.TimeoutSecs <= 0 {
		return ValidationError{Field: "backend.timeout_secs", Message: "must be positive"}
	}
	if c.Backend.MaxRetries < 1 {
		return ValidationError{Field: "backend.max_retries", Message: "must be at least 1"}
	}

	if _, err := language.Parse(c.Voice.Language); err != nil {
		return ValidationError{
			Field:   "voice.language",
			Message: fmt.Sprintf("invalid BCP 47 tag %q", c.Voice.Language),
		}
	}

	switch c.Persistence.Granularity {
	case "daily", "session":
	default:
		return ValidationError{
			Field:   "persistence.granularity",
			Message: fmt.Sprintf("must be %q or %q, got %q", "daily", "session", c.Persistence.Granularity),
		}
	}
	return nil
}

// Save writes the configuration as TOML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
