// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the Bubble Tea conversation view.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	appchat "github.com/nyaysahayak/sahayak-tui/internal/chat"
	"github.com/nyaysahayak/sahayak-tui/internal/transcript"
	"github.com/nyaysahayak/sahayak-tui/internal/ui/styles"
	"github.com/nyaysahayak/sahayak-tui/internal/voice"
)

// =============================================================================
// MESSAGES
// =============================================================================

// sendDoneMsg signals the in-flight exchange finished.
type sendDoneMsg struct{ err error }

// refreshMsg drives transcript repaints while a stream is running.
type refreshMsg time.Time

// voiceCommandMsg carries a classified voice command into the program.
type voiceCommandMsg voice.Command

// refreshInterval paces streaming repaints.
const refreshInterval = 100 * time.Millisecond

// =============================================================================
// MODEL
// =============================================================================

// Model is the conversation view.
type Model struct {
	session  *appchat.Session
	pipeline *voice.Pipeline

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width     int
	height    int
	streaming bool
	err       error
}

// New creates the conversation view. pipeline may be nil when the voice
// assistant is disabled.
func New(session *appchat.Session, pipeline *voice.Pipeline) Model {
	input := textinput.New()
	input.Placeholder = "Ask a legal question..."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Saffron)

	return Model{
		session:  session,
		pipeline: pipeline,
		viewport: viewport.New(80, 20),
		input:    input,
		spinner:  sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.pipeline != nil {
		cmds = append(cmds, listenForVoice(m.pipeline))
	}
	return tea.Batch(cmds...)
}

// listenForVoice forwards the next pipeline command into the program.
func listenForVoice(p *voice.Pipeline) tea.Cmd {
	return func() tea.Msg {
		cmd, ok := <-p.Commands()
		if !ok {
			return nil
		}
		return voiceCommandMsg(cmd)
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		m.input.Width = msg.Width - 4
		m.renderer = nil // Rebuild at the new wrap width on next render.
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sendDoneMsg:
		m.streaming = false
		m.err = msg.err
		m.refreshViewport()
		return m, nil

	case refreshMsg:
		if m.streaming {
			m.refreshViewport()
			return m, tick()
		}
		return m, nil

	case voiceCommandMsg:
		cmd := m.applyVoiceCommand(voice.Command(msg))
		return m, tea.Batch(cmd, listenForVoice(m.pipeline))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.pipeline != nil {
			m.pipeline.Stop()
		}
		return m, tea.Quit

	case "ctrl+l":
		m.session.Clear()
		m.refreshViewport()
		return m, nil

	case "ctrl+v":
		if m.pipeline != nil {
			if m.pipeline.State() == voice.StateIdle {
				m.pipeline.Start(true)
			} else {
				m.pipeline.Stop()
			}
		}
		return m, nil

	case "tab":
		m.cycleMode()
		m.refreshViewport()
		return m, nil

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.streaming {
			return m, nil
		}
		m.input.Reset()
		m.streaming = true
		m.err = nil
		return m, tea.Batch(m.sendCmd(text), tick())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) cycleMode() {
	switch m.session.Mode() {
	case appchat.ModeChat:
		m.session.SetMode(appchat.ModeReport)
	case appchat.ModeReport:
		m.session.SetMode(appchat.ModeDraft)
	default:
		m.session.SetMode(appchat.ModeChat)
	}
}

// sendCmd runs the exchange off the update loop.
func (m Model) sendCmd(text string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		return sendDoneMsg{err: session.Send(context.Background(), text)}
	}
}

// applyVoiceCommand routes a recognized command into the session.
func (m *Model) applyVoiceCommand(cmd voice.Command) tea.Cmd {
	switch cmd.Type {
	case voice.CommandClear:
		m.session.Clear()
		m.refreshViewport()
		return nil
	case voice.CommandSend, voice.CommandQuery:
		if m.streaming {
			return nil
		}
		m.streaming = true
		return tea.Batch(m.sendCmd(cmd.Text), tick())
	default:
		return nil
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) statusLine() string {
	parts := []string{styles.Info.Render("mode: " + string(m.session.Mode()))}

	if m.streaming {
		parts = append(parts, m.spinner.View()+styles.Info.Render(" thinking"))
	}
	if m.pipeline != nil {
		state := m.pipeline.State()
		if state != voice.StateIdle {
			label := "voice: " + state.String()
			if interim := m.pipeline.Interim(); interim != "" {
				label += " " + interim
			}
			parts = append(parts, styles.Success.Render(label))
		}
	}
	if m.err != nil {
		parts = append(parts, styles.ErrorLabel.Render(m.err.Error()))
	}
	return strings.Join(parts, "  ")
}

// refreshViewport repaints the transcript into the viewport.
func (m *Model) refreshViewport() {
	var b strings.Builder
	for _, msg := range m.session.Transcript().Snapshot() {
		if msg.Sender == transcript.SenderUser {
			b.WriteString(styles.UserLabel.Render("You") + ": " + msg.Text + "\n\n")
			continue
		}
		b.WriteString(styles.AILabel.Render("Sahayak") + ":\n")
		b.WriteString(m.renderMarkdown(msg.Text))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// renderMarkdown renders AI answers; plain text on renderer failure.
func (m *Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		width := m.width
		if width <= 0 {
			width = 80
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-2),
		)
		if err != nil {
			return text + "\n"
		}
		m.renderer = r
	}

	rendered, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return rendered
}
