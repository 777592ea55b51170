package repository

import (
	"context"

	"treematch/internal/models"

	"gorm.io/gorm"
)

// BlockRepository defines persistence operations for block edges.
type BlockRepository interface {
	Create(ctx context.Context, block *models.Block) error
	Exists(ctx context.Context, blockerID, blockedID uint) (bool, error)
	ExistsEither(ctx context.Context, a, b uint) (bool, error)
	Delete(ctx context.Context, blockerID, blockedID uint) (bool, error)
	BlockedBy(ctx context.Context, blockerID uint) ([]models.Block, error)
	ExcludedIDs(ctx context.Context, userID uint) ([]uint, error)
	DeleteAllForUser(ctx context.Context, userID uint) error
	Count(ctx context.Context) (int64, error)
}

type blockRepository struct {
	db *gorm.DB
}

// NewBlockRepository returns a new BlockRepository implementation.
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

func (r *blockRepository) Create(ctx context.Context, block *models.Block) error {
	if err := r.db.WithContext(ctx).Omit("Blocker", "Blocked").Create(block).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrAlreadyBlocked
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *blockRepository) Exists(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Block{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// ExistsEither reports a block in either direction between a and b.
func (r *blockRepository) ExistsEither(ctx context.Context, a, b uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *blockRepository) Delete(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.Block{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// BlockedBy lists the blocks created by blockerID with the blocked user loaded, newest first.
func (r *blockRepository) BlockedBy(ctx context.Context, blockerID uint) ([]models.Block, error) {
	var blocks []models.Block
	if err := r.db.WithContext(ctx).
		Preload("Blocked").
		Where("blocker_id = ?", blockerID).
		Order("created_at DESC, id DESC").
		Find(&blocks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return blocks, nil
}

// ExcludedIDs returns everyone userID blocked plus everyone who blocked userID.
func (r *blockRepository) ExcludedIDs(ctx context.Context, userID uint) ([]uint, error) {
	var blocked, blockers []uint
	if err := r.db.WithContext(ctx).Model(&models.Block{}).
		Where("blocker_id = ?", userID).Pluck("blocked_id", &blocked).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Model(&models.Block{}).
		Where("blocked_id = ?", userID).Pluck("blocker_id", &blockers).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	seen := make(map[uint]struct{}, len(blocked)+len(blockers))
	ids := make([]uint, 0, len(blocked)+len(blockers))
	for _, id := range append(blocked, blockers...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *blockRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("blocker_id = ? OR blocked_id = ?", userID, userID).
		Delete(&models.Block{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *blockRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Block{}).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
