// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// restartDelay spaces out session restarts so a source that ends
// immediately cannot spin the pipeline.
const restartDelay = 200 * time.Millisecond

// State is the pipeline's listening state.
type State int

const (
	// StateIdle means no session is active.
	StateIdle State = iota

	// StateGated means the session is live but all text is discarded
	// until a wake phrase appears.
	StateGated

	// StateArmed means finalized utterances are classified and
	// dispatched. Entered by manual start or wake-phrase detection.
	StateArmed

	// StateProcessing means a command is being dispatched; the pipeline
	// returns to StateArmed afterwards for continuous conversation.
	StateProcessing
)

// String returns a short label for logs and status lines.
func (s State) String() string {
	switch s {
	case StateGated:
		return "listening"
	case StateArmed:
		return "armed"
	case StateProcessing:
		return "processing"
	default:
		return "idle"
	}
}

// listeningPrompt is shown as the live transcript after a bare wake
// activation, until the next utterance arrives.
const listeningPrompt = "I'm listening..."

// Pipeline drives a Recognizer as a wake-word command state machine and
// publishes classified commands on a channel.
//
// RELIABILITY: Each session is tagged with a token; stopping invalidates
// it so events still in flight from a torn-down session cannot mutate
// state or dispatch commands.
type Pipeline struct {
	mu       sync.Mutex
	rec      Recognizer
	state    State
	desired  bool // pipeline-level intent: should be listening
	session  string
	interim  string
	lastErr  error
	commands chan Command
}

// NewPipeline creates a pipeline over the given recognizer.
func NewPipeline(rec Recognizer) *Pipeline {
	return &Pipeline{
		rec:      rec,
		state:    StateIdle,
		commands: make(chan Command, 8),
	}
}

// Commands returns the stream of dispatched commands.
func (p *Pipeline) Commands() <-chan Command {
	return p.commands
}

// State returns the current listening state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Interim returns the live partial transcript for display.
func (p *Pipeline) Interim() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interim
}

// Err returns the last terminal session error, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Start begins listening. Manual activation arms the pipeline
// immediately; otherwise it gates behind the wake phrase. Starting
// while already listening is a no-op.
func (p *Pipeline) Start(manual bool) error {
	p.mu.Lock()
	if p.desired {
		p.mu.Unlock()
		return nil
	}
	p.desired = true
	p.lastErr = nil
	p.interim = ""
	if manual {
		p.state = StateArmed
	} else {
		p.state = StateGated
	}
	token := uuid.NewString()
	p.session = token
	p.mu.Unlock()

	events, err := p.rec.Start()
	if err != nil {
		p.mu.Lock()
		p.desired = false
		p.state = StateIdle
		p.lastErr = err
		p.session = ""
		p.mu.Unlock()
		return err
	}
	go p.run(token, events)
	return nil
}

// Stop ends listening and synchronously invalidates the session so no
// in-flight event from it can dispatch afterwards.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	wasActive := p.desired || p.state != StateIdle
	p.desired = false
	p.state = StateIdle
	p.session = ""
	p.interim = ""
	p.mu.Unlock()

	if wasActive {
		p.rec.Stop()
	}
}

// run consumes one session's event stream until it ends.
func (p *Pipeline) run(token string, events <-chan Event) {
	for ev := range events {
		switch ev.Kind {
		case EventInterim:
			p.setInterim(token, ev.Text)
		case EventFinal:
			p.handleFinal(token, ev.Text)
		case EventError:
			p.handleError(token, ev.Err)
		case EventEnd:
			p.handleEnd(token)
			return
		}
	}
	p.handleEnd(token)
}

func (p *Pipeline) setInterim(token, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != token {
		return
	}
	p.interim = text
}

// handleFinal classifies a finalized utterance according to the current
// state: discarded when gated without a wake phrase, dispatched when
// armed.
func (p *Pipeline) handleFinal(token, text string) {
	p.mu.Lock()
	if p.session != token || !p.desired {
		p.mu.Unlock()
		return
	}

	payload := text
	if p.state == StateGated {
		remainder, woke := DetectWake(text)
		if !woke {
			p.mu.Unlock()
			return
		}
		if BareActivation(remainder) {
			// Activated with nothing to do yet; wait for the next
			// utterance in armed state.
			p.state = StateArmed
			p.interim = listeningPrompt
			p.mu.Unlock()
			return
		}
		payload = remainder
	}

	p.state = StateProcessing
	p.interim = ""
	p.mu.Unlock()

	p.dispatch(token, Classify(payload))
}

// dispatch publishes the command and settles the post-command state.
// The send never blocks: a stalled or absent consumer drops the oldest
// intent instead of wedging the session, and stop still takes effect.
func (p *Pipeline) dispatch(token string, cmd Command) {
	select {
	case p.commands <- cmd:
	default:
	}

	if cmd.Type == CommandStop {
		p.Stop()
		return
	}

	// Continuous conversation: stay armed, no wake phrase needed for
	// the next utterance.
	p.mu.Lock()
	if p.session == token && p.desired && p.state == StateProcessing {
		p.state = StateArmed
	}
	p.mu.Unlock()
}

// handleError applies the restart policy's error rules: transient
// errors are swallowed; permission denial is terminal.
func (p *Pipeline) handleError(token string, err error) {
	if errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrAborted) {
		return
	}

	p.mu.Lock()
	if p.session != token {
		p.mu.Unlock()
		return
	}
	p.lastErr = err
	if errors.Is(err, ErrPermissionDenied) {
		p.desired = false
		p.state = StateIdle
		p.session = ""
		p.interim = ""
		p.mu.Unlock()
		p.rec.Stop()
		return
	}
	p.mu.Unlock()
}

// handleEnd restarts the session when the pipeline still wants to
// listen; recognizer sessions end naturally after silence.
func (p *Pipeline) handleEnd(token string) {
	p.mu.Lock()
	if p.session != token || !p.desired {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	time.Sleep(restartDelay)

	// Recheck: a Stop may have landed during the delay.
	p.mu.Lock()
	if p.session != token || !p.desired {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	events, err := p.rec.Start()
	if err != nil {
		p.mu.Lock()
		if p.session == token {
			p.desired = false
			p.state = StateIdle
			p.lastErr = err
			p.session = ""
		}
		p.mu.Unlock()
		return
	}
	go p.run(token, events)
}
