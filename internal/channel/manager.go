// Package channel owns the lifecycle of the per-conversation pub/sub
// subscriptions. One open handle means exactly one live message subscription
// and one live typing subscription; no handle, no network subscription.
package channel

import (
	"context"
	"log"
	"sync"

	"marketchat/internal/backend"
	"marketchat/internal/common"
)

// Manager creates and tracks conversation channel handles against one
// backend client.
type Manager struct {
	client backend.Client
	buffer int

	mu   sync.Mutex
	open map[string]*Handle
}

// NewManager returns a manager delivering events through channels of the
// given buffer size.
func NewManager(client backend.Client, buffer int) *Manager {
	if buffer <= 0 {
		buffer = 64
	}
	return &Manager{
		client: client,
		buffer: buffer,
		open:   make(map[string]*Handle),
	}
}

// Open subscribes to the conversation's message and typing channels and
// returns the owning handle. Opening a conversation that already has a live
// handle is a programmer error and fails with ErrDuplicateSubscription; it
// would double-deliver every event.
func (m *Manager) Open(ctx context.Context, conversationID string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.open[conversationID]; exists {
		return nil, common.ErrDuplicateSubscription
	}

	h := &Handle{
		manager:        m,
		conversationID: conversationID,
		messages:       make(chan common.MessageEvent, m.buffer),
		typing:         make(chan common.TypingStatus, m.buffer),
		done:           make(chan struct{}),
	}

	msgChannel, err := m.client.SubscribeToMessages(ctx, conversationID, h.deliverMessage)
	if err != nil {
		return nil, err
	}
	h.messageChannel = msgChannel

	typingChannel, err := m.client.SubscribeToTyping(ctx, conversationID, h.deliverTyping)
	if err != nil {
		// Never leave a half-open handle behind.
		if uerr := m.client.Unsubscribe(msgChannel); uerr != nil {
			log.Printf("channel: unsubscribe %s after failed open: %v", msgChannel, uerr)
		}
		return nil, err
	}
	h.typingChannel = typingChannel

	m.open[conversationID] = h
	return h, nil
}

func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	if m.open[h.conversationID] == h {
		delete(m.open, h.conversationID)
	}
	m.mu.Unlock()

	if err := m.client.Unsubscribe(h.messageChannel); err != nil {
		log.Printf("channel: unsubscribe %s: %v", h.messageChannel, err)
	}
	if err := m.client.Unsubscribe(h.typingChannel); err != nil {
		log.Printf("channel: unsubscribe %s: %v", h.typingChannel, err)
	}
}

// Handle is the scoped pair of live subscriptions for one open conversation
// view. It is owned by exactly one screen; it is never shared.
type Handle struct {
	manager        *Manager
	conversationID string
	messageChannel string
	typingChannel  string

	messages chan common.MessageEvent
	typing   chan common.TypingStatus

	closeOnce sync.Once
	done      chan struct{}
}

// ConversationID identifies the conversation this handle is scoped to.
func (h *Handle) ConversationID() string {
	return h.conversationID
}

// Messages is the inbound message event stream. The manager performs no
// de-duplication; reconnect replays reach the consumer as-is.
func (h *Handle) Messages() <-chan common.MessageEvent {
	return h.messages
}

// Typing is the inbound typing event stream.
func (h *Handle) Typing() <-chan common.TypingStatus {
	return h.typing
}

// Done is closed when the handle is closed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Close releases both subscriptions. It is synchronous and safe to call more
// than once; every exit path of the owning view must reach it. Events already
// queued behind a closed handle are dropped at this boundary rather than in
// each consumer.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.manager.release(h)
	})
}

func (h *Handle) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) deliverMessage(event common.MessageEvent) {
	if h.closed() {
		return
	}
	select {
	case h.messages <- event:
	case <-h.done:
	}
}

func (h *Handle) deliverTyping(status common.TypingStatus) {
	if h.closed() {
		return
	}
	// Typing is last-write-wins; dropping under backpressure is safe because
	// staleness decay bounds the damage of a lost stop signal.
	select {
	case h.typing <- status:
	case <-h.done:
	default:
		log.Printf("channel: typing buffer full on %s, dropping event", h.typingChannel)
	}
}
