// Package conversation orchestrates one open conversation view: channel
// subscriptions, the message timeline, typing indicators, and read receipts,
// plus outbound sends with optimistic insert and rollback.
package conversation

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"marketchat/internal/backend"
	"marketchat/internal/channel"
	"marketchat/internal/common"
	"marketchat/internal/readreceipt"
	"marketchat/internal/timeline"
	"marketchat/internal/typing"
)

// Params configures a controller for one conversation screen.
type Params struct {
	ConversationID string
	LocalUserID    string
	RemoteUserID   string

	// TypingStaleness is the decay window for typing indicators in both
	// directions. Zero selects the 3 second default.
	TypingStaleness time.Duration

	// ReconcileWindow bounds optimistic placeholder reconciliation.
	ReconcileWindow time.Duration

	// Clock is substituted in tests; nil selects the wall clock.
	Clock typing.Clock

	Callbacks Callbacks
}

// Callbacks notify the owning screen. All are optional and are invoked from
// the controller's event loop or from the calling goroutine of an operation.
type Callbacks struct {
	// OnTimelineChanged fires after any change to the rendered message list.
	OnTimelineChanged func()

	// OnScrollToBottom fires when the view should jump to the newest
	// message: after the initial history load and when a message lands at
	// the bottom of the timeline.
	OnScrollToBottom func()

	// OnTypingChanged fires with the current set of typing counterparts.
	OnTypingChanged func(users []string)

	// OnSendFailed fires when an outbound send is rolled back.
	OnSendFailed func(err *common.SendError)
}

const defaultTypingStaleness = 3 * time.Second

// Controller composes the messaging engine for one open conversation. The
// in-memory message list and typing set are owned exclusively by this
// instance; the same conversation must not be opened by a second screen.
type Controller struct {
	client   backend.Client
	manager  *channel.Manager
	params   Params
	timeline *timeline.Timeline
	emitter  *typing.Emitter
	tracker  *typing.Tracker
	receipts *readreceipt.Reconciler

	mu      sync.Mutex
	handle  *channel.Handle
	started bool
	closed  bool
}

// NewController builds an unstarted controller. The backend client and
// channel manager are injected; the controller owns everything else.
func NewController(client backend.Client, manager *channel.Manager, params Params) *Controller {
	if params.TypingStaleness <= 0 {
		params.TypingStaleness = defaultTypingStaleness
	}
	if params.ReconcileWindow <= 0 {
		params.ReconcileWindow = 30 * time.Second
	}

	tl := timeline.New(params.ConversationID, params.ReconcileWindow)

	c := &Controller{
		client:   client,
		manager:  manager,
		params:   params,
		timeline: tl,
		receipts: readreceipt.New(client, tl, params.ConversationID, params.LocalUserID, params.RemoteUserID),
	}

	c.emitter = typing.NewEmitter(
		params.ConversationID, params.LocalUserID,
		params.TypingStaleness, params.Clock, c.sendTyping,
	)
	c.tracker = typing.NewTracker(
		params.ConversationID, params.TypingStaleness, params.Clock,
		params.Callbacks.OnTypingChanged,
	)
	return c
}

// Start opens the channel handle, loads history, wires the event loop, and
// runs the initial mark-as-read pass. On any failure the handle is torn down
// before returning.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return errors.New("conversation controller already started")
	}
	c.started = true
	c.mu.Unlock()

	handle, err := c.manager.Open(ctx, c.params.ConversationID)
	if err != nil {
		return err
	}

	history, err := c.client.GetMessages(ctx, c.params.ConversationID)
	if err != nil {
		handle.Close()
		return err
	}
	for _, msg := range history {
		c.timeline.Ingest(msg)
	}

	c.mu.Lock()
	if c.closed {
		// Closed between Start entry and here; release immediately.
		c.mu.Unlock()
		handle.Close()
		return common.ErrHandleClosed
	}
	c.handle = handle
	c.mu.Unlock()

	go c.loop(handle)

	c.notifyTimelineChanged()
	c.notifyScrollToBottom()
	c.receipts.OnForeground(ctx)
	return nil
}

// loop consumes channel events until the handle closes. It is the single
// writer applying remote events, so remote mutations are serialized the same
// way UI-thread callbacks are in the surrounding app.
func (c *Controller) loop(handle *channel.Handle) {
	for {
		// Done wins over buffered events: anything still queued behind a
		// closed handle is dropped here instead of mutating a torn-down view.
		select {
		case <-handle.Done():
			return
		default:
		}

		select {
		case event := <-handle.Messages():
			if c.isClosed() {
				return
			}
			c.applyMessageEvent(event)
		case status := <-handle.Typing():
			if c.isClosed() {
				return
			}
			if status.UserID == c.params.LocalUserID {
				continue // own echo
			}
			c.tracker.Apply(status)
		case <-handle.Done():
			return
		}
	}
}

func (c *Controller) applyMessageEvent(event common.MessageEvent) {
	switch event.Kind {
	case common.MessageEventMessage:
		if event.Message == nil {
			return
		}
		wasLatest := c.isLatest(event.Message)
		if !c.timeline.Ingest(*event.Message) {
			return
		}
		// A message from the counterparty also ends their typing burst.
		if event.Message.SenderID == c.params.RemoteUserID {
			c.tracker.Apply(common.TypingStatus{
				ConversationID: c.params.ConversationID,
				UserID:         c.params.RemoteUserID,
				IsTyping:       false,
			})
		}
		c.notifyTimelineChanged()
		if wasLatest {
			c.notifyScrollToBottom()
		}
	case common.MessageEventRead:
		if event.Read == nil {
			return
		}
		c.receipts.Apply(*event.Read)
		c.notifyTimelineChanged()
	default:
		log.Printf("conversation: unknown message event kind %q", event.Kind)
	}
}

// isLatest reports whether msg would land at the bottom of the timeline.
func (c *Controller) isLatest(msg *common.Message) bool {
	latest, ok := c.timeline.Latest()
	if !ok {
		return true
	}
	return !msg.CreatedAt.Before(latest.CreatedAt)
}

// InputChanged feeds compose-field changes into the typing emitter.
func (c *Controller) InputChanged(text string) {
	if c.isClosed() {
		return
	}
	c.emitter.InputChanged(text)
}

// Foreground runs a mark-as-read pass; call when the view becomes active.
func (c *Controller) Foreground(ctx context.Context) {
	if c.isClosed() {
		return
	}
	c.receipts.OnForeground(ctx)
}

// SendText composes and dispatches a text message: optimistic insert first,
// then the backend call; the channel echo reconciles the placeholder. On
// failure the placeholder is removed, the original input is carried back in
// the returned SendError, and OnSendFailed fires. No silent retry.
func (c *Controller) SendText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("message text cannot be empty")
	}
	return c.send(ctx, text, common.MessageTypeText, "")
}

// SendImage dispatches a single-image message. The attachment is uploaded by
// the surrounding screen beforehand; caption may be empty and is stored as
// the content placeholder.
func (c *Controller) SendImage(ctx context.Context, caption, attachmentURL string) error {
	if attachmentURL == "" {
		return errors.New("image message requires an attachment URL")
	}
	if caption == "" {
		caption = "(image)"
	}
	return c.send(ctx, caption, common.MessageTypeImage, attachmentURL)
}

func (c *Controller) send(ctx context.Context, content string, msgType common.MessageType, attachmentURL string) error {
	if c.isClosed() {
		return common.ErrHandleClosed
	}

	// Sending ends the local typing burst without an extra stop signal: the
	// message itself tells the counterparty.
	c.emitter.InputChanged("")

	placeholder := c.timeline.AddPending(
		c.params.LocalUserID, c.params.RemoteUserID,
		content, msgType, attachmentURL, content,
	)
	c.notifyTimelineChanged()
	c.notifyScrollToBottom()

	_, err := c.client.SendMessage(ctx, backend.SendMessageRequest{
		ConversationID: c.params.ConversationID,
		SenderID:       c.params.LocalUserID,
		RecipientID:    c.params.RemoteUserID,
		Content:        content,
		Type:           msgType,
		AttachmentURL:  attachmentURL,
	})
	if err != nil {
		restored, _ := c.timeline.Fail(placeholder.ID)
		c.notifyTimelineChanged()
		sendErr := &common.SendError{RestoredInput: restored, Err: err}
		if c.params.Callbacks.OnSendFailed != nil {
			c.params.Callbacks.OnSendFailed(sendErr)
		}
		return sendErr
	}
	return nil
}

// Messages returns the rendered message list, oldest first.
func (c *Controller) Messages() []common.Message {
	return c.timeline.Messages()
}

// TypingUsers returns the counterparts currently typing.
func (c *Controller) TypingUsers() []string {
	return c.tracker.Typing()
}

// Close tears the view down: emits a best-effort typing stop, releases the
// channel handle, and clears typing state. Safe on every exit path and safe
// to call more than once; events already in flight become no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	handle := c.handle
	c.mu.Unlock()

	c.emitter.Stop()
	if handle != nil {
		handle.Close()
	}
	c.tracker.Clear()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// sendTyping pushes one typing signal. Fire and forget: a lost stop is
// covered by the remote side's staleness decay.
func (c *Controller) sendTyping(status common.TypingStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.SendTyping(ctx, status); err != nil {
		log.Printf("conversation: typing signal failed: %v", err)
	}
}

func (c *Controller) notifyTimelineChanged() {
	if c.params.Callbacks.OnTimelineChanged != nil {
		c.params.Callbacks.OnTimelineChanged()
	}
}

func (c *Controller) notifyScrollToBottom() {
	if c.params.Callbacks.OnScrollToBottom != nil {
		c.params.Callbacks.OnScrollToBottom()
	}
}
