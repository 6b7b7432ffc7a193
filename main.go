// Nyay Sahayak TUI - a terminal client for the Sahayak legal-AI backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/nyaysahayak/sahayak-tui/internal/chat"
	"github.com/nyaysahayak/sahayak-tui/internal/cli"
	"github.com/nyaysahayak/sahayak-tui/internal/config"
	"github.com/nyaysahayak/sahayak-tui/internal/docgen"
	"github.com/nyaysahayak/sahayak-tui/internal/gateway"
	"github.com/nyaysahayak/sahayak-tui/internal/persist"
	"github.com/nyaysahayak/sahayak-tui/internal/prefs"
	uichat "github.com/nyaysahayak/sahayak-tui/internal/ui/chat"
	"github.com/nyaysahayak/sahayak-tui/internal/voice"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		useCLI      = flag.Bool("cli", false, "run the line-based REPL instead of the TUI")
		configPath  = flag.String("config", "", "config file path (default ~/.sahayak/config.toml)")
		backendURL  = flag.String("backend", "", "backend base URL (overrides config)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sahayak %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*useCLI, *configPath, *backendURL); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(useCLI bool, configPath, backendURL string) error {
	// Detect terminal color support once, up front.
	lipgloss.SetColorProfile(termenv.ColorProfile())

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dataDir := filepath.Join(home, ".sahayak")

	prefStore, err := prefs.NewStore(dataDir)
	if err != nil {
		return err
	}
	profile := prefStore.Load()

	client := gateway.NewClient(cfg.Backend.BaseURL).
		WithMaxRetries(cfg.Backend.MaxRetries).
		WithRateLimit(cfg.Backend.RequestsPerSecond).
		WithTimeout(time.Duration(cfg.Backend.TimeoutSecs) * time.Second)

	store, err := persist.Open(cfg.Persistence.DatabasePath)
	if err != nil {
		// Best-effort storage: run without it rather than refuse to
		// start.
		log.Printf("persistence unavailable: %v", err)
		store = nil
	} else {
		defer store.Close()
	}

	var bridge *persist.Bridge
	if store != nil {
		bridge = persist.NewBridge(store, userID(profile),
			persist.Granularity(cfg.Persistence.Granularity))
	}

	session := chat.NewSession(client, bridge, gateway.ProfileContext{
		Name:        profile.Name,
		Role:        profile.Role,
		Language:    profile.Language,
		DetailLevel: profile.DetailLevel,
		State:       profile.State,
	})

	gen, err := docgen.NewGenerator(client, "")
	if err != nil {
		log.Printf("document generation unavailable: %v", err)
		gen = nil
	}

	pipeline := buildVoicePipeline(cfg, profile)

	// Hot reload: voice toggling takes effect live; other settings
	// apply on restart.
	if path := watchedConfigPath(configPath); path != "" {
		watcher, err := config.NewWatcher(path, func(next *config.Config) {
			applyVoiceState(pipeline, next.Voice.Enabled)
		})
		if err == nil {
			defer watcher.Close()
		}
	}

	if useCLI {
		return cli.NewREPL(session, gen, pipeline, dataDir).Run(context.Background())
	}

	model := uichat.New(session, pipeline)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	if pipeline != nil {
		pipeline.Stop()
	}
	return err
}

// buildVoicePipeline wires the wake-word pipeline when an external
// transcript source is configured and the assistant is enabled.
func buildVoicePipeline(cfg *config.Config, profile *prefs.Preferences) *voice.Pipeline {
	if !cfg.Voice.Enabled || !profile.VoiceAssistantEnabled {
		return nil
	}
	if cfg.Voice.TranscriptPath == "" {
		return nil
	}

	pipeline := voice.NewPipeline(voice.NewFIFORecognizer(cfg.Voice.TranscriptPath))
	if err := pipeline.Start(false); err != nil {
		log.Printf("voice assistant unavailable: %v", err)
		return nil
	}
	return pipeline
}

// applyVoiceState starts or stops listening after a config reload.
func applyVoiceState(pipeline *voice.Pipeline, enabled bool) {
	if pipeline == nil {
		return
	}
	if enabled {
		if err := pipeline.Start(false); err != nil {
			log.Printf("voice assistant restart failed: %v", err)
		}
		return
	}
	pipeline.Stop()
}

// userID derives a stable user identifier for persistence keys.
func userID(p *prefs.Preferences) string {
	if p.Email != "" {
		return p.Email
	}
	if p.Name != "" {
		return p.Name
	}
	return "guest"
}

// watchedConfigPath resolves the path the reload watcher should follow.
func watchedConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	path, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	return path
}
