// Package backend is the boundary to the hosted messaging service. The
// conversation engine consumes this interface only; it never reaches the
// transport directly. The client is an explicitly constructed instance owned
// by the composition root, not package state.
package backend

import (
	"context"
	"fmt"

	"marketchat/internal/common"
)

// SendMessageRequest carries one outbound message. ID and CreatedAt are
// assigned by the backend.
type SendMessageRequest struct {
	ConversationID string             `json:"conversation_id"`
	SenderID       string             `json:"sender_id"`
	RecipientID    string             `json:"recipient_id"`
	Content        string             `json:"content"`
	Type           common.MessageType `json:"type"`
	AttachmentURL  string             `json:"attachment_url,omitempty"`
}

// MessageCallback receives events from a conversation's message channel.
type MessageCallback func(event common.MessageEvent)

// TypingCallback receives events from a conversation's typing channel.
type TypingCallback func(status common.TypingStatus)

// Client defines the messaging backend operations the engine depends on.
type Client interface {
	// GetMessages loads the conversation history, oldest first.
	GetMessages(ctx context.Context, conversationID string) ([]common.Message, error)

	// SendMessage dispatches a message; the returned copy carries the
	// backend-assigned id and timestamp.
	SendMessage(ctx context.Context, req SendMessageRequest) (*common.Message, error)

	// MarkMessagesAsRead marks every counterparty message in the
	// conversation as read by readerID. Idempotent.
	MarkMessagesAsRead(ctx context.Context, conversationID, readerID string) error

	// SendTyping pushes a typing signal. Fire and forget, best effort.
	SendTyping(ctx context.Context, status common.TypingStatus) error

	// SubscribeToMessages registers fn on the conversation's message channel
	// and returns the channel name for Unsubscribe. Delivery is
	// at-least-once; consumers de-duplicate.
	SubscribeToMessages(ctx context.Context, conversationID string, fn MessageCallback) (string, error)

	// SubscribeToTyping registers fn on the conversation's typing channel.
	SubscribeToTyping(ctx context.Context, conversationID string, fn TypingCallback) (string, error)

	// Unsubscribe releases the named channel. Unknown names are a no-op.
	Unsubscribe(channel string) error
}

// MessageChannel returns the pub/sub channel name for a conversation's
// message stream.
func MessageChannel(conversationID string) string {
	return fmt.Sprintf("messages.%s", conversationID)
}

// TypingChannel returns the pub/sub channel name for a conversation's typing
// stream.
func TypingChannel(conversationID string) string {
	return fmt.Sprintf("typing.%s", conversationID)
}
