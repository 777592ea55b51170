package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"treematch/internal/middleware"
	"treematch/internal/models"
	"treematch/internal/observability"
	"treematch/internal/repository"
	"treematch/internal/secure"
	"treematch/internal/validation"
)

const defaultMessagesPerPage = 50

// MessagePublisher is notified after a chat message is stored.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, fromID, toID, chatID uint) error
}

// ChatService provides one-to-one chats between users. A block in either
// direction stops new messages and hides the chat from both sides.
type ChatService struct {
	store     *repository.Store
	blocks    *BlockService
	people    profiles
	publisher MessagePublisher
}

// NewChatService returns a new ChatService. publisher may be nil.
func NewChatService(store *repository.Store, vault *secure.Vault, blocks *BlockService, publisher MessagePublisher) *ChatService {
	return &ChatService{
		store:     store,
		blocks:    blocks,
		people:    profiles{vault: vault},
		publisher: publisher,
	}
}

// StartChat returns the chat between userID and otherID, opening it if needed.
func (s *ChatService) StartChat(ctx context.Context, userID, otherID uint) (*models.Conversation, error) {
	var chat *models.Chat
	var other *models.User
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if other, err = s.reachable(ctx, tx, userID, otherID); err != nil {
			return err
		}
		chat, err = tx.Chats.FindOrCreate(ctx, userID, otherID, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.conversation(ctx, chat, other, 0)
}

// Send stores a message from senderID, opening the chat on first contact.
func (s *ChatService) Send(ctx context.Context, senderID uint, in models.SendMessageRequest) (*models.Message, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		observability.MessagesTotal.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError(err.Error())
	}
	recipientID := in.RecipientID

	msg := &models.Message{SenderID: senderID, Content: in.Content}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := s.reachable(ctx, tx, senderID, recipientID); err != nil {
			return err
		}
		now := time.Now().UTC()
		chat, err := tx.Chats.FindOrCreate(ctx, senderID, recipientID, now)
		if err != nil {
			return err
		}
		msg.ChatID = chat.ID
		msg.SentAt = now
		if err := tx.Chats.CreateMessage(ctx, msg); err != nil {
			return err
		}
		return tx.Chats.Touch(ctx, chat.ID, now)
	})
	if err != nil {
		observability.MessagesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	observability.MessagesTotal.WithLabelValues("sent").Inc()
	middleware.Logger.DebugContext(ctx, "message sent",
		slog.Uint64("chat_id", uint64(msg.ChatID)),
		slog.Uint64("sender_id", uint64(senderID)),
	)
	if s.publisher != nil {
		if err := s.publisher.PublishMessage(ctx, senderID, recipientID, msg.ChatID); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish message event", slog.String("error", err.Error()))
		}
	}
	return msg, nil
}

// Conversations lists userID's chats, most recently active first. Chats with a
// blocked user are left out.
func (s *ChatService) Conversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	chats, err := s.visibleChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.Chats.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(chats))
	for i := range chats {
		ids = append(ids, chats[i].Other(userID))
	}
	users, err := s.store.Users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	out := make([]models.Conversation, 0, len(chats))
	for i := range chats {
		other, ok := byID[chats[i].Other(userID)]
		if !ok {
			continue
		}
		conv, err := s.conversation(ctx, &chats[i], other, unread[chats[i].ID])
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, nil
}

// Messages returns one page of chatID oldest first and marks what the other side
// sent as read by userID.
func (s *ChatService) Messages(ctx context.Context, userID, chatID uint, page, perPage int) (*models.MessagePage, error) {
	if page <= 0 {
		page = 1
	}
	if page > models.MaxPage {
		return nil, models.NewInvalidFilterError(fmt.Sprintf("page must not exceed %d", models.MaxPage))
	}
	if perPage <= 0 {
		perPage = defaultMessagesPerPage
	}
	perPage = min(perPage, 100)

	chat, err := s.participantChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Chats.MarkRead(ctx, chat.ID, userID); err != nil {
		return nil, err
	}
	messages, total, err := s.store.Chats.Messages(ctx, chat.ID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	return &models.MessagePage{
		ChatID:     chat.ID,
		Messages:   messages,
		Pagination: paginate(page, perPage, total),
	}, nil
}

// UnreadCount totals the unread messages across userID's visible chats.
func (s *ChatService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	chats, err := s.visibleChats(ctx, userID)
	if err != nil {
		return 0, err
	}
	unread, err := s.store.Chats.UnreadCounts(ctx, userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for i := range chats {
		total += unread[chats[i].ID]
	}
	return total, nil
}

// DeleteChat removes chatID and its messages for both participants.
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID uint) error {
	chat, err := s.store.Chats.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.Has(userID) {
		return models.ErrNotParticipant
	}
	if err := s.store.Chats.Delete(ctx, chat.ID); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "chat deleted",
		slog.Uint64("chat_id", uint64(chat.ID)),
		slog.Uint64("user_id", uint64(userID)),
	)
	return nil
}

// reachable loads otherID when userID may write to it.
func (s *ChatService) reachable(ctx context.Context, tx *repository.Store, userID, otherID uint) (*models.User, error) {
	if userID == otherID {
		return nil, models.ErrSelfReference
	}
	other, err := tx.Users.GetByID(ctx, otherID)
	if err != nil {
		if isNotFound(err) {
			return nil, models.ErrTargetNotFound
		}
		return nil, err
	}
	if other.IsSuspended {
		return nil, models.ErrTargetNotFound
	}
	blocked, err := tx.Blocks.ExistsEither(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.ErrBlocked
	}
	return other, nil
}

// participantChat loads chatID for userID. A chat with a blocked user reads as missing.
func (s *ChatService) participantChat(ctx context.Context, userID, chatID uint) (*models.Chat, error) {
	chat, err := s.store.Chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.Has(userID) {
		return nil, models.ErrNotParticipant
	}
	blocked, err := s.store.Blocks.ExistsEither(ctx, userID, chat.Other(userID))
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.ErrChatNotFound
	}
	return chat, nil
}

// visibleChats lists userID's chats minus those with a user on either side of a block.
func (s *ChatService) visibleChats(ctx context.Context, userID uint) ([]models.Chat, error) {
	ids, err := s.blocks.VisibilityExcludedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	hidden := newHiddenSet(ids)
	chats, err := s.store.Chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	visible := chats[:0]
	for _, chat := range chats {
		if !hidden.has(chat.Other(userID)) {
			visible = append(visible, chat)
		}
	}
	return visible, nil
}

func (s *ChatService) conversation(
	ctx context.Context, chat *models.Chat, other *models.User, unread int64,
) (*models.Conversation, error) {
	last, err := s.store.Chats.LastMessage(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	return &models.Conversation{
		ID:            chat.ID,
		OtherUser:     s.people.ref(other),
		LastMessage:   last,
		LastMessageAt: chat.LastMessageAt,
		UnreadCount:   unread,
		CreatedAt:     chat.CreatedAt,
	}, nil
}
