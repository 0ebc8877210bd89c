// Package agent implements the tool-calling orchestrator: per-session
// conversation state, the multi-round completion/tool-execution loop,
// the ask-user interrupt, delegation to a stronger model, and the
// proactive notification path.
package agent

import (
	"errors"
	"sync"

	"github.com/hearthd/hearth/internal/llm"
)

// ErrInterruptPending is returned when a tool asks for user input while
// a previous question is still unanswered.
var ErrInterruptPending = errors.New("an ask_user question is already pending")

// Session holds one conversation's state: its ordered history, the busy
// flag enforcing one orchestration at a time, and an optional pending
// interrupt.
type Session struct {
	id int64

	mu        sync.Mutex
	history   []llm.Message
	busy      bool
	interrupt *Interrupt
}

// tryAcquire marks the session busy. Returns false if an orchestration
// is already in flight.
func (s *Session) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) isBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// append adds turns to the history, discarding the oldest beyond max.
func (s *Session) append(max int, msgs ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msgs...)
	if max > 0 && len(s.history) > max {
		s.history = append([]llm.Message(nil), s.history[len(s.history)-max:]...)
	}
}

// historyCopy returns a snapshot of the history.
func (s *Session) historyCopy() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) historyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// createInterrupt installs the session's pending interrupt. At most one
// may exist at a time; a second request is rejected.
func (s *Session) createInterrupt() (*Interrupt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interrupt != nil {
		return nil, ErrInterruptPending
	}
	s.interrupt = newInterrupt()
	return s.interrupt, nil
}

// clearInterrupt removes the pending interrupt so a later ask_user can
// be issued.
func (s *Session) clearInterrupt() {
	s.mu.Lock()
	s.interrupt = nil
	s.mu.Unlock()
}

// resolveInterrupt hands inbound text to the pending interrupt, if one
// exists. Returns true when the text was consumed.
func (s *Session) resolveInterrupt(text string) bool {
	s.mu.Lock()
	intr := s.interrupt
	s.mu.Unlock()
	if intr == nil {
		return false
	}
	return intr.resolve(text)
}

// hasPendingInterrupt reports whether an ask_user question is awaiting
// an answer.
func (s *Session) hasPendingInterrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupt != nil
}
