// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive REPL for the Sahayak legal assistant.
//
// USABILITY: Markdown rendering and input history for a better CLI
// experience.
//
// Interactive commands (during chat):
//   /help, /h           Show available commands
//   /clear, /c          Clear the conversation
//   /mode [name]        Show or switch mode (chat, report, draft)
//   /kavach [id]        Emergency playbook (list or show a scenario)
//   /notice <text>      Generate a legal notice PDF from a description
//   /rent               Generate a rent agreement DOCX (guided form)
//   /history            Show the conversation so far
//   /quit, /q           Exit
//   Ctrl+D              Exit
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/nyaysahayak/sahayak-tui/internal/chat"
	"github.com/nyaysahayak/sahayak-tui/internal/docgen"
	"github.com/nyaysahayak/sahayak-tui/internal/kavach"
	"github.com/nyaysahayak/sahayak-tui/internal/transcript"
	"github.com/nyaysahayak/sahayak-tui/internal/ui/styles"
	"github.com/nyaysahayak/sahayak-tui/internal/voice"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with input history support.
func NewChatCLI(dataDir string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	if dataDir == "" {
		dataDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(dataDir, "chat_history"),
	}
	cli.loadHistory()
	return cli
}

func (c *ChatCLI) loadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and releases the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// IsStdoutTTY reports whether stdout is attached to a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// =============================================================================
// REPL
// =============================================================================

// REPL runs the interactive chat loop.
type REPL struct {
	session  *chat.Session
	gen      *docgen.Generator
	pipeline *voice.Pipeline
	input    *ChatCLI
}

// NewREPL creates a REPL over the session. gen may be nil when document
// generation is unavailable; pipeline may be nil when the voice
// assistant is disabled.
func NewREPL(session *chat.Session, gen *docgen.Generator, pipeline *voice.Pipeline, dataDir string) *REPL {
	return &REPL{
		session:  session,
		gen:      gen,
		pipeline: pipeline,
		input:    NewChatCLI(dataDir),
	}
}

// Run drives the loop until the user exits.
func (r *REPL) Run(ctx context.Context) error {
	defer r.input.Close()

	if r.pipeline != nil {
		defer r.pipeline.Stop()
		drainCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go drainVoiceCommands(drainCtx, r.pipeline, r.session, os.Stderr)
	}

	printWelcome()

	for {
		input, err := r.input.ReadInput(styles.Prompt.Render("sahayak> "))
		if err != nil {
			// Ctrl+C or Ctrl+D: exit gracefully.
			fmt.Println()
			fmt.Println(styles.Info.Render("Goodbye!"))
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			cont, err := r.handleSlashCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", styles.ErrorLabel.Render("[Error]"), err)
			}
			if !cont {
				fmt.Println(styles.Info.Render("Goodbye!"))
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			fmt.Println(styles.Info.Render("Goodbye!"))
			return nil
		}

		r.processMessage(ctx, input)
	}
}

// drainVoiceCommands applies recognized voice commands to the session
// until the pipeline's stream ends or ctx is cancelled.
func drainVoiceCommands(ctx context.Context, p *voice.Pipeline, s *chat.Session, errw io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-p.Commands():
			if !ok {
				return
			}
			if err := s.HandleCommand(ctx, cmd); err != nil {
				fmt.Fprintf(errw, "%s %v\n", styles.ErrorLabel.Render("[Error]"), err)
			}
		}
	}
}

// processMessage routes one utterance through the session and renders
// the reply.
func (r *REPL) processMessage(ctx context.Context, input string) {
	fmt.Println()
	if err := r.session.Send(ctx, input); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", styles.ErrorLabel.Render("[Error]"), err)
	}

	// The transcript already carries the answer (or the connection-lost
	// notice); render whatever landed.
	last := r.session.Transcript().Last()
	if last == nil {
		return
	}
	displayAnswer(last.Text)

	if r.session.Mode() == chat.ModeReport && r.session.ReportComplete() {
		fmt.Println(styles.Success.Render("[FIR details collected - summary above]"))
		fmt.Println()
	}
}

// displayAnswer renders markdown on a TTY, plain text otherwise.
func displayAnswer(text string) {
	if IsStdoutTTY() {
		rendered, err := glamour.Render(text, "auto")
		if err == nil {
			fmt.Print(rendered)
			fmt.Println()
			return
		}
	}
	fmt.Println(text)
	fmt.Println()
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes a slash command. Returns false to exit.
func (r *REPL) handleSlashCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?":
		printHelp()
		return true, nil

	case "/clear", "/c":
		r.session.Clear()
		fmt.Println(styles.Success.Render("[Conversation cleared]"))
		return true, nil

	case "/mode", "/m":
		return true, r.handleModeCommand(args)

	case "/kavach", "/k":
		return true, r.handleKavachCommand(args)

	case "/notice":
		return true, r.handleNoticeCommand(ctx, strings.TrimSpace(strings.TrimPrefix(cmd, parts[0])))

	case "/rent":
		return true, r.handleRentCommand(ctx)

	case "/history":
		r.printHistory()
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

func (r *REPL) handleModeCommand(args []string) error {
	if len(args) == 0 {
		fmt.Printf("%s %s\n", styles.Info.Render("[Mode]"), string(r.session.Mode()))
		return nil
	}

	switch strings.ToLower(args[0]) {
	case "chat":
		r.session.SetMode(chat.ModeChat)
	case "report":
		r.session.SetMode(chat.ModeReport)
		fmt.Println(styles.Info.Render("FIR interview mode. Describe what happened; I will ask follow-ups."))
	case "draft":
		r.session.SetMode(chat.ModeDraft)
	default:
		return fmt.Errorf("unknown mode %q (chat, report, draft)", args[0])
	}
	fmt.Printf("%s Switched to %s mode\n", styles.Success.Render("[OK]"), args[0])
	return nil
}

func (r *REPL) handleKavachCommand(args []string) error {
	if len(args) == 0 {
		fmt.Println()
		fmt.Println(styles.Header.Render("KAVACH - Emergency Legal Protection"))
		for _, s := range kavach.Catalogue() {
			fmt.Printf("  %s  %s\n",
				styles.Success.Render(fmt.Sprintf("%-10s", s.ID)),
				styles.Info.Render(s.Description))
		}
		fmt.Println(styles.Info.Render("Use /kavach <id> for the playbook."))
		fmt.Println()
		return nil
	}

	scenario, err := kavach.Find(strings.ToLower(args[0]))
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(styles.Header.Render(scenario.Title))
	for i, step := range scenario.Steps {
		fmt.Printf("  %d. %s: %s\n", i+1,
			styles.Success.Render(step.Label), step.Text)
	}
	fmt.Println()
	fmt.Println(styles.Info.Render("Say aloud: ") + scenario.AudioScript)
	fmt.Println()
	return nil
}

func (r *REPL) handleNoticeCommand(ctx context.Context, description string) error {
	if r.gen == nil {
		return fmt.Errorf("document generation is unavailable")
	}
	if description == "" {
		return fmt.Errorf("usage: /notice <description of your complaint>")
	}

	fmt.Println(styles.Info.Render("Generating legal notice..."))
	path, err := r.gen.LegalNotice(ctx, description)
	if err != nil {
		return err
	}
	fmt.Printf("%s Saved to %s\n", styles.Success.Render("[OK]"), path)
	return nil
}

func (r *REPL) handleRentCommand(ctx context.Context) error {
	if r.gen == nil {
		return fmt.Errorf("document generation is unavailable")
	}

	req, err := r.promptRentForm()
	if err != nil {
		return err
	}

	fmt.Println(styles.Info.Render("Generating rent agreement..."))
	path, err := r.gen.RentAgreement(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("%s Saved to %s\n", styles.Success.Render("[OK]"), path)
	return nil
}

func (r *REPL) printHistory() {
	msgs := r.session.Transcript().Snapshot()
	if len(msgs) == 0 {
		fmt.Println(styles.Info.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(styles.Header.Render("Conversation"))
	for i, msg := range msgs {
		label := styles.UserLabel.Render("You")
		if msg.Sender != transcript.SenderUser {
			label = styles.AILabel.Render("Sahayak")
		}
		fmt.Printf("  %d. %s: %s\n", i+1, label, msg.Preview(100))
	}
	fmt.Println()
}

func printWelcome() {
	fmt.Println()
	fmt.Println(styles.Header.Render("Nyay Sahayak - legal assistance chat"))
	fmt.Println(styles.Info.Render(strings.Repeat("─", 36)))
	fmt.Println(styles.Info.Render("Type your question and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

func printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear the conversation"},
		{"/mode [name]", "Show or switch mode (chat, report, draft)"},
		{"/kavach [id]", "Emergency legal playbook"},
		{"/notice <text>", "Generate a legal notice PDF"},
		{"/rent", "Generate a rent agreement DOCX"},
		{"/history", "Show the conversation so far"},
		{"/quit, /q", "Exit"},
	}

	fmt.Println()
	fmt.Println(styles.Header.Render("Available Commands"))
	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			styles.Success.Render(fmt.Sprintf("%-16s", c.cmd)),
			styles.Info.Render(c.desc))
	}
	fmt.Println()
}
