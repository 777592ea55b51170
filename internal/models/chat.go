package models

import "time"

// MaxMessageLength bounds the content of a single chat message in characters.
const MaxMessageLength = 10000

// Chat is a one-to-one conversation. User1ID is always the smaller id so a
// pair maps to exactly one row.
type Chat struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	User1ID       uint      `gorm:"not null;uniqueIndex:idx_chats_pair" json:"user1_id"`
	User2ID       uint      `gorm:"not null;uniqueIndex:idx_chats_pair;index:idx_chats_user2" json:"user2_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `gorm:"index:idx_chats_last_message" json:"last_message_at"`

	User1 User `gorm:"foreignKey:User1ID;constraint:OnDelete:CASCADE" json:"-"`
	User2 User `gorm:"foreignKey:User2ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Chat) TableName() string {
	return "chats"
}

// Has reports whether userID takes part in the chat.
func (c *Chat) Has(userID uint) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// Other returns the participant that is not userID.
func (c *Chat) Other(userID uint) uint {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// ChatPair orders two user ids the way chats store them.
func ChatPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// Message is one line of a chat.
type Message struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	ChatID   uint      `gorm:"not null;index:idx_messages_chat" json:"chat_id"`
	SenderID uint      `gorm:"not null;index:idx_messages_sender" json:"sender_id"`
	Content  string    `gorm:"type:text;not null" json:"content"`
	IsRead   bool      `gorm:"not null;default:false" json:"is_read"`
	SentAt   time.Time `gorm:"not null" json:"sent_at"`

	Chat   Chat `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	Sender User `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// SendMessageRequest is the body of a send call.
type SendMessageRequest struct {
	RecipientID uint   `json:"recipient_id" validate:"required"`
	Content     string `json:"content" validate:"required,max=10000"`
}

// Conversation is a chat as listed for one of its participants.
type Conversation struct {
	ID            uint      `json:"id"`
	OtherUser     UserRef   `json:"other_user"`
	LastMessage   *Message  `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int64     `json:"unread_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// MessagePage is one page of a chat's messages, oldest first.
type MessagePage struct {
	ChatID     uint       `json:"chat_id"`
	Messages   []Message  `json:"messages"`
	Pagination Pagination `json:"pagination"`
}
