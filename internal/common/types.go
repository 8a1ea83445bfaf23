package common

import (
	"strings"
	"time"
)

// MessageType represents the payload variant of a chat message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

// String returns the string representation
func (mt MessageType) String() string {
	return string(mt)
}

// IsValid checks if the message type is valid
func (mt MessageType) IsValid() bool {
	return mt == MessageTypeText || mt == MessageTypeImage
}

// DetectMessageType maps an attachment MIME type to a message type.
// Anything that is not an image is rejected upstream; text is the fallback.
func DetectMessageType(mimeType string) MessageType {
	if strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return MessageTypeImage
	}
	return MessageTypeText
}

// Message is one entry of a conversation. IDs and CreatedAt are assigned
// by the backend; a client never generates them for confirmed messages.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	RecipientID    string      `json:"recipient_id"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	AttachmentURL  string      `json:"attachment_url,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
}

// IsRead reports whether the recipient has read the message.
func (m *Message) IsRead() bool {
	return m.ReadAt != nil
}

// TypingStatus is the ephemeral "user X is typing" signal. It is never
// persisted; staleness decay on the receiving side bounds its validity.
type TypingStatus struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// ReadMark reports that ReaderID has read every message in the conversation
// created at or before UpTo.
type ReadMark struct {
	ConversationID string    `json:"conversation_id"`
	ReaderID       string    `json:"reader_id"`
	UpTo           time.Time `json:"up_to"`
}

// MessageEventKind discriminates events on the message channel.
type MessageEventKind string

const (
	MessageEventMessage MessageEventKind = "message"
	MessageEventRead    MessageEventKind = "read"
)

// MessageEvent is the envelope delivered on a conversation's message channel.
// Exactly one of Message or Read is set, according to Kind.
type MessageEvent struct {
	Kind    MessageEventKind `json:"kind"`
	Message *Message         `json:"message,omitempty"`
	Read    *ReadMark        `json:"read,omitempty"`
}
