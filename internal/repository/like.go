package repository

import (
	"context"
	"errors"

	"treematch/internal/models"

	"gorm.io/gorm"
)

// LikeRepository defines persistence operations for like edges.
type LikeRepository interface {
	Create(ctx context.Context, like *models.Like) error
	Get(ctx context.Context, fromID, toID uint) (*models.Like, error)
	SetMutual(ctx context.Context, fromID, toID uint, mutual bool) error
	Delete(ctx context.Context, fromID, toID uint) (bool, error)
	Matches(ctx context.Context, userID uint) ([]models.Like, error)
	DeleteAllForUser(ctx context.Context, userID uint) error
	Count(ctx context.Context) (int64, error)
	CountMutual(ctx context.Context) (int64, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository returns a new LikeRepository implementation.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Create(ctx context.Context, like *models.Like) error {
	if err := r.db.WithContext(ctx).Omit("User", "LikedUser").Create(like).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrAlreadyLiked
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Get returns the edge fromID -> toID, or nil, nil if absent.
func (r *likeRepository) Get(ctx context.Context, fromID, toID uint) (*models.Like, error) {
	var like models.Like
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND liked_user_id = ?", fromID, toID).
		First(&like).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &like, nil
}

func (r *likeRepository) SetMutual(ctx context.Context, fromID, toID uint, mutual bool) error {
	if err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND liked_user_id = ?", fromID, toID).
		Update("is_mutual", mutual).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes fromID -> toID and reports whether an edge existed.
func (r *likeRepository) Delete(ctx context.Context, fromID, toID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND liked_user_id = ?", fromID, toID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Matches returns the mutual edges leaving userID with the liked user loaded, newest first.
func (r *likeRepository) Matches(ctx context.Context, userID uint) ([]models.Like, error) {
	var likes []models.Like
	if err := r.db.WithContext(ctx).
		Preload("LikedUser").
		Where("user_id = ? AND is_mutual = ?", userID, true).
		Order("created_at DESC, id DESC").
		Find(&likes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return likes, nil
}

func (r *likeRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? OR liked_user_id = ?", userID, userID).
		Delete(&models.Like{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *likeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// CountMutual counts matched pairs; each pair is stored as two mutual edges.
func (r *likeRepository) CountMutual(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("is_mutual = ?", true).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count / 2, nil
}
