package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/chat/repository"
	"marketchat/internal/common"
	"marketchat/internal/dbmysql"
)

// ChatService defines the interface exposed to the handler layer
type ChatService interface {
	SendMessage(ctx context.Context, msg *common.Message) (*common.Message, error)
	GetMessageHistory(ctx context.Context, conversationID string) ([]common.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (*common.ReadMark, error)
	Conversation(ctx context.Context, id string) (*dbmysql.Conversation, error)
	EnsureConversation(ctx context.Context, customerID, providerID string) (*dbmysql.Conversation, error)
}

type chatService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
}

// Constructor used in DI/wire
func NewChatService(messages repository.MessageRepository, conversations repository.ConversationRepository) ChatService {
	return &chatService{messages: messages, conversations: conversations}
}

// SendMessage validates an inbound message, assigns the server-side
// identity and timestamp, and persists it. The returned message is the
// canonical copy echoed to subscribers.
func (s *chatService) SendMessage(ctx context.Context, msg *common.Message) (*common.Message, error) {
	if msg.ConversationID == "" {
		return nil, errors.New("conversation ID cannot be empty")
	}
	if msg.SenderID == "" {
		return nil, errors.New("sender ID cannot be empty")
	}

	conv, err := s.conversations.ByID(ctx, msg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	if !conv.HasParticipant(msg.SenderID) {
		return nil, errors.New("sender is not a participant of the conversation")
	}
	if msg.RecipientID == "" {
		msg.RecipientID = conv.Counterparty(msg.SenderID)
	} else if !conv.HasParticipant(msg.RecipientID) {
		return nil, errors.New("recipient is not a participant of the conversation")
	}

	if err := common.ValidateMessage(msg); err != nil {
		return nil, err
	}

	// Server assigns the id and timestamp; anything the client sent is ignored.
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	msg.ReadAt = nil

	record := dbmysql.FromCommon(*msg)
	if err := s.messages.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	saved := record.ToCommon()
	return &saved, nil
}

// GetMessageHistory returns the full ordered history of a conversation
func (s *chatService) GetMessageHistory(ctx context.Context, conversationID string) ([]common.Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation ID is required")
	}

	records, err := s.messages.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	out := make([]common.Message, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToCommon())
	}
	return out, nil
}

// MarkRead stamps every unread message addressed to the reader and
// returns the resulting watermark. A nil mark means nothing changed and
// no event should be published.
func (s *chatService) MarkRead(ctx context.Context, conversationID, readerID string) (*common.ReadMark, error) {
	if conversationID == "" {
		return nil, errors.New("conversation ID is required")
	}
	if readerID == "" {
		return nil, errors.New("reader ID is required")
	}

	conv, err := s.conversations.ByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	if !conv.HasParticipant(readerID) {
		return nil, errors.New("reader is not a participant of the conversation")
	}

	watermark, updated, err := s.messages.MarkRead(ctx, conversationID, readerID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if updated == 0 {
		return nil, nil
	}

	return &common.ReadMark{
		ConversationID: conversationID,
		ReaderID:       readerID,
		UpTo:           watermark,
	}, nil
}

// Conversation looks up a conversation by id
func (s *chatService) Conversation(ctx context.Context, id string) (*dbmysql.Conversation, error) {
	if id == "" {
		return nil, errors.New("conversation ID is required")
	}
	return s.conversations.ByID(ctx, id)
}

// EnsureConversation returns the conversation between the two users,
// creating it on first contact.
func (s *chatService) EnsureConversation(ctx context.Context, customerID, providerID string) (*dbmysql.Conversation, error) {
	if customerID == "" || providerID == "" {
		return nil, errors.New("both participant IDs are required")
	}
	if customerID == providerID {
		return nil, errors.New("cannot open a conversation with yourself")
	}
	return s.conversations.Ensure(ctx, customerID, providerID)
}
