package dbmysql

import (
	"time"

	"marketchat/internal/common"
)

// Message is the persisted form of one chat message. IDs are uuid strings
// assigned by the chat service at save time.
type Message struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ConversationID string    `gorm:"index:idx_conv_created;size:36"`
	SenderID       string    `gorm:"index;size:36"`
	RecipientID    string    `gorm:"index;size:36"`
	Content        string    `gorm:"type:text"`
	Type           string    `gorm:"size:16"`
	AttachmentURL  string    `gorm:"size:512"`
	CreatedAt      time.Time `gorm:"index:idx_conv_created"`
	ReadAt         *time.Time
}

// ToCommon converts the stored row to the wire/domain representation.
func (m *Message) ToCommon() common.Message {
	return common.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		Content:        m.Content,
		Type:           common.MessageType(m.Type),
		AttachmentURL:  m.AttachmentURL,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
}

// FromCommon builds a storable row from the domain representation.
func FromCommon(msg common.Message) *Message {
	return &Message{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientID:    msg.RecipientID,
		Content:        msg.Content,
		Type:           msg.Type.String(),
		AttachmentURL:  msg.AttachmentURL,
		CreatedAt:      msg.CreatedAt,
		ReadAt:         msg.ReadAt,
	}
}

// Conversation pairs one customer with one service provider. Exactly one
// conversation exists per user pair regardless of who opened it; there is no
// group chat.
type Conversation struct {
	ID         string `gorm:"primaryKey;size:36"`
	CustomerID string `gorm:"index:idx_participants;size:36"`
	ProviderID string `gorm:"index:idx_participants;size:36"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.CustomerID == userID || c.ProviderID == userID
}

// Counterparty returns the other participant, or "" when userID is not a
// participant at all.
func (c *Conversation) Counterparty(userID string) string {
	switch userID {
	case c.CustomerID:
		return c.ProviderID
	case c.ProviderID:
		return c.CustomerID
	default:
		return ""
	}
}

// User is a marketplace account that can participate in conversations.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Handle       string `gorm:"uniqueIndex;size:50"`
	DisplayName  string `gorm:"size:100"`
	PasswordHash string `gorm:"size:100"`
	CreatedAt    time.Time
}
