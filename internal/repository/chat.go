package repository

import (
	"context"
	"errors"
	"time"

	"treematch/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines persistence operations for one-to-one chats and their messages.
type ChatRepository interface {
	FindOrCreate(ctx context.Context, a, b uint, at time.Time) (*models.Chat, error)
	FindPair(ctx context.Context, a, b uint) (*models.Chat, error)
	GetByID(ctx context.Context, id uint) (*models.Chat, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Chat, error)
	Touch(ctx context.Context, chatID uint, at time.Time) error
	CreateMessage(ctx context.Context, msg *models.Message) error
	Messages(ctx context.Context, chatID uint, limit, offset int) ([]models.Message, int64, error)
	LastMessage(ctx context.Context, chatID uint) (*models.Message, error)
	UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error)
	MarkRead(ctx context.Context, chatID, readerID uint) (int64, error)
	Delete(ctx context.Context, chatID uint) error
	DeleteAllForUser(ctx context.Context, userID uint) error
	CountMessages(ctx context.Context) (int64, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository returns a new ChatRepository implementation.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// FindOrCreate returns the chat between a and b, creating it when missing.
// A concurrent create of the same pair resolves to the row that won.
func (r *chatRepository) FindOrCreate(ctx context.Context, a, b uint, at time.Time) (*models.Chat, error) {
	user1, user2 := models.ChatPair(a, b)
	chat := &models.Chat{User1ID: user1, User2ID: user2, CreatedAt: at, LastMessageAt: at}
	if err := r.db.WithContext(ctx).
		Omit("User1", "User2").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(chat).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	found, err := r.FindPair(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, models.NewInternalError(errors.New("chat missing after insert"))
	}
	return found, nil
}

// FindPair returns nil, nil when a and b have no chat.
func (r *chatRepository) FindPair(ctx context.Context, a, b uint) (*models.Chat, error) {
	user1, user2 := models.ChatPair(a, b)
	var chat models.Chat
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", user1, user2).
		First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &chat, nil
}

func (r *chatRepository) GetByID(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).First(&chat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrChatNotFound
		}
		return nil, models.NewInternalError(err)
	}
	return &chat, nil
}

// ListForUser returns userID's chats, most recently active first.
func (r *chatRepository) ListForUser(ctx context.Context, userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("last_message_at DESC, id DESC").
		Find(&chats).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return chats, nil
}

func (r *chatRepository) Touch(ctx context.Context, chatID uint, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.Chat{}).
		Where("id = ?", chatID).
		Update("last_message_at", at).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Omit("Chat", "Sender").Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Messages returns one window of a chat in send order with the chat's total message count.
func (r *chatRepository) Messages(ctx context.Context, chatID uint, limit, offset int) ([]models.Message, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&models.Message{}).Where("chat_id = ?", chatID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	messages := []models.Message{}
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("sent_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return messages, total, nil
}

// LastMessage returns nil, nil for a chat with no messages.
func (r *chatRepository) LastMessage(ctx context.Context, chatID uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("sent_at DESC, id DESC").
		First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

// UnreadCounts maps each of userID's chats to the number of messages the other side sent
// that userID has not read. Chats with nothing unread are absent.
func (r *chatRepository) UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error) {
	var rows []struct {
		ChatID uint
		Unread int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("messages.chat_id AS chat_id, COUNT(*) AS unread").
		Joins("JOIN chats ON chats.id = messages.chat_id").
		Where("(chats.user1_id = ? OR chats.user2_id = ?) AND messages.sender_id <> ? AND messages.is_read = ?",
			userID, userID, userID, false).
		Group("messages.chat_id").
		Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.ChatID] = row.Unread
	}
	return counts, nil
}

// MarkRead flags every message in chatID not sent by readerID as read.
func (r *chatRepository) MarkRead(ctx context.Context, chatID, readerID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chatID, readerID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes a chat and all of its messages.
func (r *chatRepository) Delete(ctx context.Context, chatID uint) error {
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&models.Message{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Delete(&models.Chat{}, chatID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	chats := r.db.WithContext(ctx).Model(&models.Chat{}).
		Select("id").
		Where("user1_id = ? OR user2_id = ?", userID, userID)
	if err := r.db.WithContext(ctx).
		Where("chat_id IN (?)", chats).
		Delete(&models.Message{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Delete(&models.Chat{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
