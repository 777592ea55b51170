package models

import "time"

// Block records that BlockerID blocked BlockedID.
// Storage is one-directional; visibility is hidden in both directions.
type Block struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_blocks_pair" json:"blocker_id"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_blocks_pair;index:idx_blocks_blocked" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`

	Blocker User `gorm:"foreignKey:BlockerID;constraint:OnDelete:CASCADE" json:"-"`
	Blocked User `gorm:"foreignKey:BlockedID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Block) TableName() string {
	return "blocks"
}

// BlockedUser is an entry in the caller's block list.
type BlockedUser struct {
	UserRef
	BlockedAt time.Time `json:"blocked_at"`
}
