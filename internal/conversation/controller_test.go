package conversation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketchat/internal/backend"
	"marketchat/internal/backend/mocks"
	"marketchat/internal/channel"
	"marketchat/internal/common"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	client   *mocks.MockClient
	manager  *channel.Manager
	msgCb    backend.MessageCallback
	typingCb backend.TypingCallback

	mu          sync.Mutex
	sendFailed  []*common.SendError
	typingUsers [][]string
}

func newFixture(t *testing.T, history []common.Message) (*fixture, *Controller) {
	ctrl := gomock.NewController(t)
	f := &fixture{client: mocks.NewMockClient(ctrl)}
	f.manager = NewTestManager(f.client)

	f.client.EXPECT().
		SubscribeToMessages(gomock.Any(), "conv-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fn backend.MessageCallback) (string, error) {
			f.msgCb = fn
			return backend.MessageChannel("conv-1"), nil
		}).AnyTimes()
	f.client.EXPECT().
		SubscribeToTyping(gomock.Any(), "conv-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fn backend.TypingCallback) (string, error) {
			f.typingCb = fn
			return backend.TypingChannel("conv-1"), nil
		}).AnyTimes()
	f.client.EXPECT().Unsubscribe(gomock.Any()).Return(nil).AnyTimes()
	f.client.EXPECT().SendTyping(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.client.EXPECT().GetMessages(gomock.Any(), "conv-1").Return(history, nil).AnyTimes()

	c := NewController(f.client, f.manager, Params{
		ConversationID: "conv-1",
		LocalUserID:    "alice",
		RemoteUserID:   "bob",
		Callbacks: Callbacks{
			OnSendFailed: func(err *common.SendError) {
				f.mu.Lock()
				f.sendFailed = append(f.sendFailed, err)
				f.mu.Unlock()
			},
			OnTypingChanged: func(users []string) {
				f.mu.Lock()
				f.typingUsers = append(f.typingUsers, users)
				f.mu.Unlock()
			},
		},
	})
	return f, c
}

// NewTestManager builds a channel manager with a small buffer for tests.
func NewTestManager(client backend.Client) *channel.Manager {
	return channel.NewManager(client, 8)
}

func inbound(id string, createdAt time.Time) common.Message {
	return common.Message{
		ID:             id,
		ConversationID: "conv-1",
		SenderID:       "bob",
		RecipientID:    "alice",
		Content:        "msg " + id,
		Type:           common.MessageTypeText,
		CreatedAt:      createdAt,
	}
}

func messageEvent(msg common.Message) common.MessageEvent {
	return common.MessageEvent{Kind: common.MessageEventMessage, Message: &msg}
}

func TestController_StartLoadsHistoryAndMarksRead(t *testing.T) {
	history := []common.Message{inbound("m1", base), inbound("m2", base.Add(time.Second))}
	f, c := newFixture(t, history)

	f.client.EXPECT().MarkMessagesAsRead(gomock.Any(), "conv-1", "alice").Return(nil).Times(1)

	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestController_StartFailsWhenHistoryLoadFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	manager := NewTestManager(client)

	client.EXPECT().
		SubscribeToMessages(gomock.Any(), "conv-1", gomock.Any()).
		Return(backend.MessageChannel("conv-1"), nil)
	client.EXPECT().
		SubscribeToTyping(gomock.Any(), "conv-1", gomock.Any()).
		Return(backend.TypingChannel("conv-1"), nil)
	client.EXPECT().GetMessages(gomock.Any(), "conv-1").Return(nil, errors.New("boom"))
	// The handle must be released on the error path.
	client.EXPECT().Unsubscribe(backend.MessageChannel("conv-1")).Return(nil)
	client.EXPECT().Unsubscribe(backend.TypingChannel("conv-1")).Return(nil)

	c := NewController(client, manager, Params{
		ConversationID: "conv-1", LocalUserID: "alice", RemoteUserID: "bob",
	})
	require.Error(t, c.Start(context.Background()))
}

func TestController_ChannelEventsLandInOrder(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	// m2 delivered before m1.
	f.msgCb(messageEvent(inbound("m2", base.Add(2*time.Second))))
	f.msgCb(messageEvent(inbound("m1", base.Add(1*time.Second))))

	require.Eventually(t, func() bool { return len(c.Messages()) == 2 }, time.Second, 10*time.Millisecond)

	msgs := c.Messages()
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestController_ReplayedEchoIsIdempotent(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	msg := inbound("m1", base)
	f.msgCb(messageEvent(msg))
	f.msgCb(messageEvent(msg)) // reconnect replay

	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, c.Messages(), 1)
}

func TestController_SendTextOptimisticThenEcho(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	confirmed := common.Message{
		ID:             "m1",
		ConversationID: "conv-1",
		SenderID:       "alice",
		RecipientID:    "bob",
		Content:        "Hi",
		Type:           common.MessageTypeText,
		CreatedAt:      time.Now(),
	}
	f.client.EXPECT().
		SendMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req backend.SendMessageRequest) (*common.Message, error) {
			// Optimistic entry is already visible while the send is in flight.
			msgs := c.Messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, "Hi", msgs[0].Content)
			assert.Equal(t, "alice", msgs[0].SenderID)
			return &confirmed, nil
		})

	require.NoError(t, c.SendText(context.Background(), "Hi"))

	// The channel echo replaces the placeholder with the confirmed message.
	f.msgCb(messageEvent(confirmed))
	require.Eventually(t, func() bool {
		msgs := c.Messages()
		return len(msgs) == 1 && msgs[0].ID == "m1"
	}, time.Second, 10*time.Millisecond)
}

func TestController_SendTextFailureRollsBack(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	f.client.EXPECT().
		SendMessage(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("network down"))

	err := c.SendText(context.Background(), "Hi there")
	require.Error(t, err)

	var sendErr *common.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "Hi there", sendErr.RestoredInput)
	assert.Empty(t, c.Messages())

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.sendFailed, 1)
}

func TestController_SendRejectsEmptyInput(t *testing.T) {
	_, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Error(t, c.SendText(context.Background(), "   "))
	assert.Error(t, c.SendImage(context.Background(), "caption", ""))
}

func TestController_SendImageDispatchesAttachment(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	f.client.EXPECT().
		SendMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req backend.SendMessageRequest) (*common.Message, error) {
			assert.Equal(t, common.MessageTypeImage, req.Type)
			assert.Equal(t, "https://cdn.example/img.jpg", req.AttachmentURL)
			out := common.Message{ID: "m1", ConversationID: "conv-1", SenderID: "alice", RecipientID: "bob", Content: req.Content, Type: req.Type, AttachmentURL: req.AttachmentURL, CreatedAt: time.Now()}
			return &out, nil
		})

	require.NoError(t, c.SendImage(context.Background(), "", "https://cdn.example/img.jpg"))
}

func TestController_RemoteTypingTracked(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	f.typingCb(common.TypingStatus{ConversationID: "conv-1", UserID: "bob", IsTyping: true})
	require.Eventually(t, func() bool {
		users := c.TypingUsers()
		return len(users) == 1 && users[0] == "bob"
	}, time.Second, 10*time.Millisecond)

	// Explicit stop clears the indicator without waiting for decay.
	f.typingCb(common.TypingStatus{ConversationID: "conv-1", UserID: "bob", IsTyping: false})
	require.Eventually(t, func() bool { return len(c.TypingUsers()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestController_OwnTypingEchoIgnored(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	f.typingCb(common.TypingStatus{ConversationID: "conv-1", UserID: "alice", IsTyping: true})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.TypingUsers())
}

func TestController_CounterpartyMessageEndsTheirTyping(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	f.typingCb(common.TypingStatus{ConversationID: "conv-1", UserID: "bob", IsTyping: true})
	require.Eventually(t, func() bool { return len(c.TypingUsers()) == 1 }, time.Second, 10*time.Millisecond)

	f.msgCb(messageEvent(inbound("m1", base)))
	require.Eventually(t, func() bool { return len(c.TypingUsers()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestController_ReadMarkStampsSentMessages(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	own := common.Message{
		ID: "m1", ConversationID: "conv-1", SenderID: "alice", RecipientID: "bob",
		Content: "sent", Type: common.MessageTypeText, CreatedAt: base,
	}
	f.msgCb(messageEvent(own))
	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 10*time.Millisecond)

	mark := common.ReadMark{ConversationID: "conv-1", ReaderID: "bob", UpTo: base.Add(time.Second)}
	f.msgCb(common.MessageEvent{Kind: common.MessageEventRead, Read: &mark})

	require.Eventually(t, func() bool {
		msgs := c.Messages()
		return len(msgs) == 1 && msgs[0].ReadAt != nil
	}, time.Second, 10*time.Millisecond)
}

func TestController_CloseIsIdempotentAndDropsLateEvents(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))

	c.Close()
	c.Close()

	f.msgCb(messageEvent(inbound("late", base)))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.Messages())

	assert.ErrorIs(t, c.SendText(context.Background(), "hi"), common.ErrHandleClosed)
}

func TestController_EventQueuedBeforeCloseIsDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	manager := NewTestManager(client)

	var msgCb backend.MessageCallback
	client.EXPECT().
		SubscribeToMessages(gomock.Any(), "conv-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fn backend.MessageCallback) (string, error) {
			msgCb = fn
			return backend.MessageChannel("conv-1"), nil
		})
	client.EXPECT().
		SubscribeToTyping(gomock.Any(), "conv-1", gomock.Any()).
		Return(backend.TypingChannel("conv-1"), nil)
	client.EXPECT().GetMessages(gomock.Any(), "conv-1").Return(nil, nil)
	client.EXPECT().MarkMessagesAsRead(gomock.Any(), "conv-1", "alice").Return(nil).AnyTimes()
	client.EXPECT().Unsubscribe(gomock.Any()).Return(nil).AnyTimes()
	client.EXPECT().SendTyping(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	// The first timeline callback comes from Start's history pass; the
	// second is the event loop applying m1, which we park so m2 is still
	// queued in the handle's buffer when Close runs.
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	c := NewController(client, manager, Params{
		ConversationID: "conv-1",
		LocalUserID:    "alice",
		RemoteUserID:   "bob",
		Callbacks: Callbacks{
			OnTimelineChanged: func() {
				if calls.Add(1) == 2 {
					close(entered)
					<-release
				}
			},
		},
	})
	require.NoError(t, c.Start(context.Background()))

	msgCb(messageEvent(inbound("m1", base)))
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("event loop never applied the first message")
	}

	msgCb(messageEvent(inbound("m2", base.Add(time.Second))))
	c.Close()
	close(release)

	time.Sleep(50 * time.Millisecond)
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestController_SecondScreenForSameConversationRejected(t *testing.T) {
	f, c := newFixture(t, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	second := NewController(f.client, f.manager, Params{
		ConversationID: "conv-1", LocalUserID: "alice", RemoteUserID: "bob",
	})
	assert.ErrorIs(t, second.Start(context.Background()), common.ErrDuplicateSubscription)
}
