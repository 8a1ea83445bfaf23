// Package repository persists conversations, messages, and users for the
// chat service.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"marketchat/internal/dbmysql"
)

// MessageRepository stores and queries chat messages.
type MessageRepository interface {
	Save(ctx context.Context, msg *dbmysql.Message) error
	History(ctx context.Context, conversationID string) ([]*dbmysql.Message, error)

	// MarkRead stamps readAt on every unread message addressed to readerID
	// in the conversation and returns the read watermark (the newest
	// CreatedAt addressed to the reader) plus the number of rows updated.
	// Idempotent: a second call updates zero rows.
	MarkRead(ctx context.Context, conversationID, readerID string, readAt time.Time) (time.Time, int64, error)
}

// ConversationRepository resolves and creates customer/provider threads.
type ConversationRepository interface {
	ByID(ctx context.Context, id string) (*dbmysql.Conversation, error)
	Ensure(ctx context.Context, customerID, providerID string) (*dbmysql.Conversation, error)
}

// UserRepository stores marketplace accounts.
type UserRepository interface {
	ByID(ctx context.Context, id string) (*dbmysql.User, error)
	ByHandle(ctx context.Context, handle string) (*dbmysql.User, error)
	Create(ctx context.Context, user *dbmysql.User) error
}

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

type messageRepo struct {
	db *gorm.DB
}

// NewMessageRepository returns the gorm-backed message store.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Save(ctx context.Context, msg *dbmysql.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepo) History(ctx context.Context, conversationID string) ([]*dbmysql.Message, error) {
	var messages []*dbmysql.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *messageRepo) MarkRead(ctx context.Context, conversationID, readerID string, readAt time.Time) (time.Time, int64, error) {
	var watermark sql.NullTime
	row := r.db.WithContext(ctx).
		Model(&dbmysql.Message{}).
		Where("conversation_id = ? AND recipient_id = ?", conversationID, readerID).
		Select("MAX(created_at)").
		Row()
	if err := row.Scan(&watermark); err != nil {
		return time.Time{}, 0, fmt.Errorf("read watermark: %w", err)
	}
	if !watermark.Valid {
		return time.Time{}, 0, nil // nothing addressed to the reader yet
	}

	result := r.db.WithContext(ctx).
		Model(&dbmysql.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND read_at IS NULL", conversationID, readerID).
		Update("read_at", readAt)
	if result.Error != nil {
		return time.Time{}, 0, result.Error
	}
	return watermark.Time, result.RowsAffected, nil
}

type conversationRepo struct {
	db *gorm.DB
}

// NewConversationRepository returns the gorm-backed conversation store.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) ByID(ctx context.Context, id string) (*dbmysql.Conversation, error) {
	var conv dbmysql.Conversation
	err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) Ensure(ctx context.Context, customerID, providerID string) (*dbmysql.Conversation, error) {
	// One thread per user pair regardless of who opens it: a
	// provider-initiated open must land in the thread the customer already
	// has, so the lookup matches both role orders.
	var conv dbmysql.Conversation
	err := r.db.WithContext(ctx).
		First(&conv, "(customer_id = ? AND provider_id = ?) OR (customer_id = ? AND provider_id = ?)",
			customerID, providerID, providerID, customerID).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = dbmysql.Conversation{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		ProviderID: providerID,
	}
	if err := r.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

type userRepo struct {
	db *gorm.DB
}

// NewUserRepository returns the gorm-backed account store.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) ByID(ctx context.Context, id string) (*dbmysql.User, error) {
	var user dbmysql.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ByHandle(ctx context.Context, handle string) (*dbmysql.User, error) {
	var user dbmysql.User
	err := r.db.WithContext(ctx).First(&user, "handle = ?", handle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Create(ctx context.Context, user *dbmysql.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}
