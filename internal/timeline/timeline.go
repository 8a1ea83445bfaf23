// Package timeline holds the in-memory message list of one open
// conversation: ordered by creation time, duplicate-free by id, with
// optimistic placeholders for sends awaiting backend confirmation.
package timeline

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/common"
)

const placeholderPrefix = "pending-"

// Timeline is the ordered, de-duplicated message collection for one
// conversation. The channel transport is at-least-once, so Ingest is where
// reconnect replays and the sender's own echo are suppressed.
type Timeline struct {
	conversationID  string
	reconcileWindow time.Duration

	mu      sync.Mutex
	byID    map[string]*common.Message
	ordered []*common.Message
	pending map[string]string // placeholder id -> original compose input
}

// New returns an empty timeline. reconcileWindow bounds how old an
// optimistic placeholder may be and still be replaced by its confirmed echo.
func New(conversationID string, reconcileWindow time.Duration) *Timeline {
	return &Timeline{
		conversationID:  conversationID,
		reconcileWindow: reconcileWindow,
		byID:            make(map[string]*common.Message),
		pending:         make(map[string]string),
	}
}

// Ingest folds one confirmed message into the timeline. Re-delivery of a
// known id is a no-op. A confirmed message matching a recent optimistic
// placeholder replaces it instead of appending a duplicate. Returns true
// when the rendered list changed.
func (t *Timeline) Ingest(msg common.Message) bool {
	if msg.ConversationID != t.conversationID {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byID[msg.ID]; exists {
		return false
	}

	if placeholder := t.matchPlaceholderLocked(&msg); placeholder != nil {
		t.removeLocked(placeholder.ID)
		delete(t.pending, placeholder.ID)
	}

	t.insertLocked(msg)
	return true
}

// AddPending inserts an optimistic placeholder for an outbound send and
// returns it. originalInput is kept so a failed send can restore the compose
// field.
func (t *Timeline) AddPending(senderID, recipientID, content string, msgType common.MessageType, attachmentURL, originalInput string) common.Message {
	placeholder := common.Message{
		ID:             placeholderPrefix + uuid.NewString(),
		ConversationID: t.conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		Type:           msgType,
		AttachmentURL:  attachmentURL,
		CreatedAt:      time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.insertLocked(placeholder)
	t.pending[placeholder.ID] = originalInput
	return placeholder
}

// Fail removes a placeholder after its send failed and returns the original
// compose input for restoration. Unknown ids report ok=false.
func (t *Timeline) Fail(placeholderID string) (restoredInput string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	restoredInput, ok = t.pending[placeholderID]
	if !ok {
		return "", false
	}
	delete(t.pending, placeholderID)
	t.removeLocked(placeholderID)
	return restoredInput, true
}

// IsPending reports whether the id belongs to an unconfirmed placeholder.
func (t *Timeline) IsPending(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[id]
	return ok
}

// MarkReadUpTo stamps readAt on every message sent by senderID with
// CreatedAt at or before the watermark. Monotonic: an already-set readAt is
// never overwritten or cleared. Returns the number of messages updated.
func (t *Timeline) MarkReadUpTo(senderID string, watermark, readAt time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	updated := 0
	for _, msg := range t.ordered {
		if msg.SenderID != senderID || msg.ReadAt != nil {
			continue
		}
		if msg.CreatedAt.After(watermark) {
			continue
		}
		stamp := readAt
		msg.ReadAt = &stamp
		updated++
	}
	return updated
}

// UnreadFrom reports whether any message from senderID is still unread.
func (t *Timeline) UnreadFrom(senderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, msg := range t.ordered {
		if msg.SenderID == senderID && msg.ReadAt == nil {
			return true
		}
	}
	return false
}

// Messages returns a copy of the rendered list, oldest first.
func (t *Timeline) Messages() []common.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]common.Message, len(t.ordered))
	for i, msg := range t.ordered {
		out[i] = *msg
	}
	return out
}

// Len returns the number of rendered entries, placeholders included.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ordered)
}

// Latest returns the newest rendered message, if any.
func (t *Timeline) Latest() (common.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.ordered) == 0 {
		return common.Message{}, false
	}
	return *t.ordered[len(t.ordered)-1], true
}

// matchPlaceholderLocked finds the oldest unconfirmed placeholder whose
// sender, content, and type match the confirmed message, within the recency
// window. After an app restart there is no placeholder and the confirmed
// message is simply appended.
func (t *Timeline) matchPlaceholderLocked(msg *common.Message) *common.Message {
	for _, candidate := range t.ordered {
		if _, isPending := t.pending[candidate.ID]; !isPending {
			continue
		}
		if candidate.SenderID != msg.SenderID ||
			candidate.Content != msg.Content ||
			candidate.Type != msg.Type {
			continue
		}
		if time.Since(candidate.CreatedAt) > t.reconcileWindow {
			continue
		}
		return candidate
	}
	return nil
}

// insertLocked places the message at its CreatedAt position, so an event
// delivered late still renders in order. Ties break by id for determinism.
func (t *Timeline) insertLocked(msg common.Message) {
	stored := msg
	idx := sort.Search(len(t.ordered), func(i int) bool {
		return after(t.ordered[i], &stored)
	})

	t.ordered = append(t.ordered, nil)
	copy(t.ordered[idx+1:], t.ordered[idx:])
	t.ordered[idx] = &stored
	t.byID[stored.ID] = &stored
}

func (t *Timeline) removeLocked(id string) {
	delete(t.byID, id)
	for i, msg := range t.ordered {
		if msg.ID == id {
			t.ordered = append(t.ordered[:i], t.ordered[i+1:]...)
			return
		}
	}
}

func after(a, b *common.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return strings.Compare(a.ID, b.ID) > 0
}
