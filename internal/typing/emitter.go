// Package typing implements both halves of the typing indicator: the local
// emitter that throttles outbound "I am typing" signals, and the tracker
// that maintains the remote "who is typing" set with staleness decay.
package typing

import (
	"sync"
	"time"

	"marketchat/internal/common"
)

// SendFunc pushes one outbound typing signal. Best effort; the remote side's
// staleness timeout covers a lost stop.
type SendFunc func(status common.TypingStatus)

// Emitter is the per-conversation local typing state machine. Two states:
// idle and active. The first keystroke of a burst emits one start signal;
// further keystrokes only reset the decay timer, bounding outbound traffic to
// one start per burst.
type Emitter struct {
	conversationID string
	userID         string
	staleness      time.Duration
	clock          Clock
	send           SendFunc

	mu       sync.Mutex
	active   bool
	deadline time.Time
	timer    Timer
}

// NewEmitter returns an idle emitter.
func NewEmitter(conversationID, userID string, staleness time.Duration, clock Clock, send SendFunc) *Emitter {
	if clock == nil {
		clock = RealClock()
	}
	return &Emitter{
		conversationID: conversationID,
		userID:         userID,
		staleness:      staleness,
		clock:          clock,
		send:           send,
	}
}

// InputChanged feeds the current compose-field text into the machine.
func (e *Emitter) InputChanged(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if text == "" {
		// Explicit stop beats waiting for decay: the counterparty's
		// indicator clears within one round trip.
		e.stopLocked()
		return
	}

	e.deadline = e.clock.Now().Add(e.staleness)
	if e.active {
		e.timer.Reset(e.staleness)
		return
	}

	e.active = true
	e.timer = e.clock.AfterFunc(e.staleness, e.decay)
	e.emit(true)
}

// Stop forces the idle state, emitting a stop signal if a burst was active.
// Must be called on view teardown before unsubscribing.
func (e *Emitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Active reports whether a typing burst is in progress.
func (e *Emitter) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Emitter) stopLocked() {
	if !e.active {
		return
	}
	e.active = false
	e.timer.Stop()
	e.timer = nil
	e.emit(false)
}

// decay fires when the staleness window elapses with no keystroke. A fire
// that raced with a keystroke reset is recognized by the moved deadline and
// ignored; the re-armed timer fires again at the new deadline.
func (e *Emitter) decay() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active || e.clock.Now().Before(e.deadline) {
		return
	}
	e.active = false
	e.timer = nil
	e.emit(false)
}

func (e *Emitter) emit(isTyping bool) {
	e.send(common.TypingStatus{
		ConversationID: e.conversationID,
		UserID:         e.userID,
		IsTyping:       isTyping,
	})
}
