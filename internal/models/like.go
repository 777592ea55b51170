package models

import "time"

// Like is a directed "user likes liked_user" edge.
// IsMutual mirrors the existence of the reverse edge and is kept equal on both sides.
type Like struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_likes_pair" json:"user_id"`
	LikedUserID uint      `gorm:"not null;uniqueIndex:idx_likes_pair;index:idx_likes_liked" json:"liked_user_id"`
	IsMutual    bool      `gorm:"not null;default:false" json:"is_mutual"`
	CreatedAt   time.Time `json:"created_at"`

	User      User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	LikedUser User `gorm:"foreignKey:LikedUserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Like) TableName() string {
	return "likes"
}

// LikeResult reports the outcome of a like.
type LikeResult struct {
	Created  bool `json:"created"`
	IsMutual bool `json:"is_mutual"`
}

// Match is a mutual like as seen from one side.
type Match struct {
	ProfileCard
	MatchedAt time.Time `json:"matched_at"`
}
