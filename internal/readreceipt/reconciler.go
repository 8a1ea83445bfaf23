// Package readreceipt reconciles read state between the local timeline and
// the backend: outbound "I read your messages" marks and inbound "they read
// yours" watermarks.
package readreceipt

import (
	"context"
	"log"
	"sync"

	"marketchat/internal/backend"
	"marketchat/internal/common"
	"marketchat/internal/timeline"
)

// Reconciler handles read receipts for one open conversation between the
// local user and one counterparty.
type Reconciler struct {
	client         backend.Client
	timeline       *timeline.Timeline
	conversationID string
	localUserID    string
	remoteUserID   string

	mu           sync.Mutex
	retryPending bool
}

// New wires a reconciler against the conversation's timeline.
func New(client backend.Client, tl *timeline.Timeline, conversationID, localUserID, remoteUserID string) *Reconciler {
	return &Reconciler{
		client:         client,
		timeline:       tl,
		conversationID: conversationID,
		localUserID:    localUserID,
		remoteUserID:   remoteUserID,
	}
}

// OnForeground issues one idempotent mark-as-read call when unread
// counterparty messages are present, or when a previous attempt failed.
// Failures are logged and retried on the next foreground transition; read
// receipts are best-effort UX, never a blocking error.
func (r *Reconciler) OnForeground(ctx context.Context) {
	r.mu.Lock()
	retry := r.retryPending
	r.mu.Unlock()

	if !retry && !r.timeline.UnreadFrom(r.remoteUserID) {
		return
	}

	if err := r.client.MarkMessagesAsRead(ctx, r.conversationID, r.localUserID); err != nil {
		log.Printf("readreceipt: %v (will retry on next foreground)", err)
		r.mu.Lock()
		r.retryPending = true
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.retryPending = false
	r.mu.Unlock()
}

// Apply folds one backend read notification into the timeline. A mark by the
// counterparty stamps the local user's sent messages up to the watermark; a
// mark by the local user (its own echo, e.g. from another device) stamps the
// counterparty's. Stamping is monotonic.
func (r *Reconciler) Apply(mark common.ReadMark) {
	if mark.ConversationID != r.conversationID {
		return
	}

	var sender string
	switch mark.ReaderID {
	case r.remoteUserID:
		sender = r.localUserID
	case r.localUserID:
		sender = r.remoteUserID
	default:
		return
	}

	r.timeline.MarkReadUpTo(sender, mark.UpTo, mark.UpTo)
}
