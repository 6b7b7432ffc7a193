// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"strings"
	"unicode/utf8"
)

// CommandType identifies a classified voice command.
type CommandType string

const (
	// CommandStop ends the listening session.
	CommandStop CommandType = "stop"

	// CommandClear empties the conversation transcript.
	CommandClear CommandType = "clear"

	// CommandSend submits the payload as a chat message.
	CommandSend CommandType = "send"

	// CommandQuery submits the payload as a question. This is the
	// default classification and drives normal voice chat.
	CommandQuery CommandType = "query"
)

// Command is a structured voice command dispatched by the pipeline.
type Command struct {
	Type CommandType
	Text string // payload with any command prefix stripped
}

// wakePhrases are accepted trigger variants, ordered longest first so
// stripping removes the fullest match. Misheard spellings are included
// to tolerate recognizer transcription drift on the Hindi name.
var wakePhrases = []string{
	"hello saahaayak",
	"hello sahayak",
	"okay sahayak",
	"hey saahaayak",
	"hi saahaayak",
	"hey sahayak",
	"ok sahayak",
	"hi sahayak",
	"saahaayak",
	"sahayak",
}

// minCommandRunes is the shortest remainder that counts as an immediate
// command after the wake phrase. Anything shorter is a bare activation.
const minCommandRunes = 3

// DetectWake scans finalized text for a wake phrase. On a hit it
// returns the utterance with every wake-phrase occurrence stripped and
// ok=true; the remainder may be empty (bare activation). Matching is
// case-insensitive substring, per the gated-listening contract.
func DetectWake(text string) (remainder string, ok bool) {
	lower := strings.ToLower(text)

	found := false
	for _, phrase := range wakePhrases {
		if strings.Contains(lower, phrase) {
			found = true
			break
		}
	}
	if !found {
		return "", false
	}

	rest := text
	for _, phrase := range wakePhrases {
		rest = stripFold(rest, phrase)
	}
	return strings.TrimSpace(rest), true
}

// BareActivation reports whether a post-wake remainder is too short to
// classify and the pipeline should instead wait for the next utterance.
func BareActivation(remainder string) bool {
	return utf8.RuneCountInString(remainder) < minCommandRunes
}

// Classify maps a finalized utterance to a command. First match wins;
// matching is case-insensitive. Unmatched text becomes a query, the
// common case.
func Classify(text string) Command {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	// Stop phrases terminate the session. "ruk jao" is the Hindi form.
	if strings.Contains(lower, "stop listening") || lower == "stop" || lower == "ruk jao" {
		return Command{Type: CommandStop, Text: trimmed}
	}

	if strings.Contains(lower, "clear chat") ||
		strings.Contains(lower, "clear messages") ||
		strings.Contains(lower, "chat delete") {
		return Command{Type: CommandClear, Text: trimmed}
	}

	if strings.HasPrefix(lower, "send message") {
		return Command{Type: CommandSend, Text: strings.TrimSpace(trimmed[len("send message"):])}
	}
	if strings.HasPrefix(lower, "search for") {
		return Command{Type: CommandQuery, Text: strings.TrimSpace(trimmed[len("search for"):])}
	}

	return Command{Type: CommandQuery, Text: trimmed}
}

// stripFold removes every case-insensitive occurrence of phrase from s.
func stripFold(s, phrase string) string {
	var b strings.Builder
	lower := strings.ToLower(s)
	for {
		i := strings.Index(lower, phrase)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(phrase):]
		lower = lower[i+len(phrase):]
	}
}
