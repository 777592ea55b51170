package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that share one database handle so that
// compound writes can run them inside a single transaction.
type Store struct {
	db        *gorm.DB
	Users     UserRepository
	Referrals ReferralRepository
	Likes     LikeRepository
	Blocks    BlockRepository
	Chats     ChatRepository
}

// NewStore builds every repository over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Users:     NewUserRepository(db),
		Referrals: NewReferralRepository(db),
		Likes:     NewLikeRepository(db),
		Blocks:    NewBlockRepository(db),
		Chats:     NewChatRepository(db),
	}
}

// Transaction runs fn with a Store bound to a single transaction.
// Returning an error from fn rolls back every write made through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}
