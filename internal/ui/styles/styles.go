// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the Sahayak TUI.
// All colors use Lip Gloss AdaptiveColor for automatic light/dark detection.
package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// PRIMARY ACCENT COLORS
// =============================================================================

// Saffron - Brand color, headers, highlights
var Saffron = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Cyan - User messages, prompts, commands
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Purple - Assistant messages
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Emerald - Success states, armed voice indicator
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// =============================================================================
// SEMANTIC COLORS
// =============================================================================

// Rose - Errors, emergency (Kavach) accents
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// TextSecondary - De-emphasized text
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

// =============================================================================
// SHARED STYLES
// =============================================================================

// Prompt styles the input prompt.
var Prompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

// Header styles section headers.
var Header = lipgloss.NewStyle().Foreground(Saffron).Bold(true)

// Info styles secondary text.
var Info = lipgloss.NewStyle().Foreground(TextSecondary)

// ErrorLabel styles error prefixes.
var ErrorLabel = lipgloss.NewStyle().Foreground(Rose).Bold(true)

// Success styles confirmation text.
var Success = lipgloss.NewStyle().Foreground(Emerald)

// UserLabel styles the user speaker tag.
var UserLabel = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

// AILabel styles the assistant speaker tag.
var AILabel = lipgloss.NewStyle().Foreground(Purple).Bold(true)
