package service

import (
	"context"
	"log/slog"

	"treematch/internal/middleware"
	"treematch/internal/models"
	"treematch/internal/observability"
	"treematch/internal/repository"
	"treematch/internal/secure"
)

// BlockService manages the block relation. Blocks are stored one way but hide
// both users from each other.
type BlockService struct {
	store  *repository.Store
	people profiles
}

// NewBlockService returns a new BlockService.
func NewBlockService(store *repository.Store, vault *secure.Vault) *BlockService {
	return &BlockService{
		store:  store,
		people: profiles{vault: vault},
	}
}

// Block records blockerID -> blockedID and drops blockerID's like of the target
// in the same transaction.
func (s *BlockService) Block(ctx context.Context, blockerID, blockedID uint) (*models.Block, error) {
	if blockerID == blockedID {
		return nil, models.ErrSelfReference
	}

	var block *models.Block
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Users.GetByID(ctx, blockedID); err != nil {
			if isNotFound(err) {
				return models.ErrTargetNotFound
			}
			return err
		}
		exists, err := tx.Blocks.Exists(ctx, blockerID, blockedID)
		if err != nil {
			return err
		}
		if exists {
			return models.ErrAlreadyBlocked
		}

		if err := unlikeOnBlock(ctx, tx, blockerID, blockedID); err != nil {
			return err
		}

		block = &models.Block{BlockerID: blockerID, BlockedID: blockedID}
		return tx.Blocks.Create(ctx, block)
	})
	if err != nil {
		return nil, err
	}

	observability.BlocksTotal.WithLabelValues("block").Inc()
	middleware.Logger.InfoContext(ctx, "user blocked",
		slog.Uint64("blocker_id", uint64(blockerID)),
		slog.Uint64("blocked_id", uint64(blockedID)),
	)
	return block, nil
}

// Unblock removes blockerID -> blockedID. Likes dropped by the block stay dropped.
func (s *BlockService) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	removed, err := s.store.Blocks.Delete(ctx, blockerID, blockedID)
	if err != nil {
		return err
	}
	if !removed {
		return models.ErrNotBlocked
	}
	observability.BlocksTotal.WithLabelValues("unblock").Inc()
	return nil
}

// BlockedUsers lists the users blockerID has blocked, newest first.
func (s *BlockService) BlockedUsers(ctx context.Context, blockerID uint) ([]models.BlockedUser, error) {
	blocks, err := s.store.Blocks.BlockedBy(ctx, blockerID)
	if err != nil {
		return nil, err
	}
	out := make([]models.BlockedUser, 0, len(blocks))
	for i := range blocks {
		out = append(out, models.BlockedUser{
			UserRef:   s.people.ref(&blocks[i].Blocked),
			BlockedAt: blocks[i].CreatedAt,
		})
	}
	return out, nil
}

// VisibilityExcludedIDs returns every user hidden from userID: those it blocked
// and those that blocked it.
func (s *BlockService) VisibilityExcludedIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.store.Blocks.ExcludedIDs(ctx, userID)
}
