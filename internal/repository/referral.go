package repository

import (
	"context"
	"errors"

	"treematch/internal/models"

	"gorm.io/gorm"
)

// ReferralRepository defines persistence operations for referral edges.
// Edges are append-only; the only deletion path is removing a user.
type ReferralRepository interface {
	Create(ctx context.Context, edge *models.Referral) error
	GetByReferred(ctx context.Context, referredID uint) (*models.Referral, error)
	GetByReferredIDs(ctx context.Context, referredIDs []uint) ([]models.Referral, error)
	HasIncoming(ctx context.Context, userID uint) (bool, error)
	ChildrenOf(ctx context.Context, parentIDs []uint) ([]models.Referral, error)
	CountDirect(ctx context.Context, referrerID uint) (int64, error)
	All(ctx context.Context) ([]models.Referral, error)
	Count(ctx context.Context) (int64, error)
	DeleteIncoming(ctx context.Context, referredID uint) error
}

type referralRepository struct {
	db *gorm.DB
}

// NewReferralRepository returns a new ReferralRepository implementation.
func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepository{db: db}
}

func (r *referralRepository) Create(ctx context.Context, edge *models.Referral) error {
	if err := r.db.WithContext(ctx).Omit("Referrer", "Referred").Create(edge).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrAlreadyReferred
		}
		return models.NewInternalError(err)
	}
	return nil
}

// GetByReferred returns the incoming edge of a user, or nil, nil for the root.
func (r *referralRepository) GetByReferred(ctx context.Context, referredID uint) (*models.Referral, error) {
	var edge models.Referral
	if err := r.db.WithContext(ctx).Where("referred_id = ?", referredID).First(&edge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &edge, nil
}

// GetByReferredIDs returns the incoming edges of the given users; roots have none.
func (r *referralRepository) GetByReferredIDs(ctx context.Context, referredIDs []uint) ([]models.Referral, error) {
	var edges []models.Referral
	if len(referredIDs) == 0 {
		return edges, nil
	}
	if err := r.db.WithContext(ctx).Where("referred_id IN ?", referredIDs).Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return edges, nil
}

func (r *referralRepository) HasIncoming(ctx context.Context, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Referral{}).Where("referred_id = ?", userID).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// ChildrenOf returns every edge leaving any of parentIDs, oldest first.
func (r *referralRepository) ChildrenOf(ctx context.Context, parentIDs []uint) ([]models.Referral, error) {
	var edges []models.Referral
	if len(parentIDs) == 0 {
		return edges, nil
	}
	if err := r.db.WithContext(ctx).
		Where("referrer_id IN ?", parentIDs).
		Order("created_at ASC, id ASC").
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return edges, nil
}

func (r *referralRepository) CountDirect(ctx context.Context, referrerID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Referral{}).Where("referrer_id = ?", referrerID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *referralRepository) All(ctx context.Context) ([]models.Referral, error) {
	var edges []models.Referral
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return edges, nil
}

func (r *referralRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Referral{}).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *referralRepository) DeleteIncoming(ctx context.Context, referredID uint) error {
	if err := r.db.WithContext(ctx).Where("referred_id = ?", referredID).Delete(&models.Referral{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
