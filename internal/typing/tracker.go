package typing

import (
	"sort"
	"sync"
	"time"

	"marketchat/internal/common"
)

// Tracker maintains the set of remote users currently typing in one
// conversation. Each start signal arms a per-user staleness timer; expiry is
// a terminal fallback, so the set stays correct even when the matching stop
// never arrives or start/stop pairs are reordered.
type Tracker struct {
	conversationID string
	staleness      time.Duration
	clock          Clock

	// onChange, when set, is invoked with the new snapshot after every set
	// mutation.
	onChange func(users []string)

	mu      sync.Mutex
	entries map[string]*trackerEntry
}

type trackerEntry struct {
	timer    Timer
	deadline time.Time
}

// NewTracker returns an empty tracker for one conversation.
func NewTracker(conversationID string, staleness time.Duration, clock Clock, onChange func(users []string)) *Tracker {
	if clock == nil {
		clock = RealClock()
	}
	return &Tracker{
		conversationID: conversationID,
		staleness:      staleness,
		clock:          clock,
		onChange:       onChange,
		entries:        make(map[string]*trackerEntry),
	}
}

// Apply folds one inbound typing signal into the set. Signals for other
// conversations are ignored.
func (t *Tracker) Apply(status common.TypingStatus) {
	if status.ConversationID != t.conversationID {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !status.IsTyping {
		t.removeLocked(status.UserID)
		return
	}

	deadline := t.clock.Now().Add(t.staleness)
	if entry, ok := t.entries[status.UserID]; ok {
		entry.deadline = deadline
		entry.timer.Reset(t.staleness)
		return
	}

	userID := status.UserID
	t.entries[userID] = &trackerEntry{
		deadline: deadline,
		timer:    t.clock.AfterFunc(t.staleness, func() { t.expire(userID) }),
	}
	t.notifyLocked()
}

// IsTyping reports whether the user is currently in the typing set.
func (t *Tracker) IsTyping(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[userID]
	return ok
}

// Typing returns the sorted snapshot of typing users.
func (t *Tracker) Typing() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Clear drops the whole set, stopping every timer. Used on teardown and on
// reconnect, where pre-drop typing state is stale by definition.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return
	}
	for userID, entry := range t.entries {
		entry.timer.Stop()
		delete(t.entries, userID)
	}
	t.notifyLocked()
}

func (t *Tracker) expire(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[userID]
	if !ok {
		return
	}
	// A fire that raced with a fresh start signal sees the moved deadline
	// and yields to the re-armed timer.
	if t.clock.Now().Before(entry.deadline) {
		return
	}
	delete(t.entries, userID)
	t.notifyLocked()
}

func (t *Tracker) removeLocked(userID string) {
	entry, ok := t.entries[userID]
	if !ok {
		return
	}
	entry.timer.Stop()
	delete(t.entries, userID)
	t.notifyLocked()
}

func (t *Tracker) snapshotLocked() []string {
	users := make([]string, 0, len(t.entries))
	for userID := range t.entries {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

func (t *Tracker) notifyLocked() {
	if t.onChange != nil {
		t.onChange(t.snapshotLocked())
	}
}
