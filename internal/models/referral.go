package models

import "time"

// Referral is the immutable edge "referrer -> referred".
// ReferredID is unique: every user except the root has exactly one incoming edge.
type Referral struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReferrerID uint      `gorm:"not null;index:idx_referrals_referrer" json:"referrer_id"`
	ReferredID uint      `gorm:"not null;uniqueIndex:idx_referrals_referred" json:"referred_id"`
	CodeUsed   string    `gorm:"size:32;not null" json:"code_used"`
	CreatedAt  time.Time `json:"created_at"`

	Referrer User `gorm:"foreignKey:ReferrerID;constraint:OnDelete:RESTRICT" json:"-"`
	Referred User `gorm:"foreignKey:ReferredID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Referral) TableName() string {
	return "referrals"
}

// TreeNode is one node of a descendant tree.
// ChildrenCount counts every direct referral, even when Children is truncated by depth.
type TreeNode struct {
	ID            uint        `json:"id"`
	DisplayName   string      `json:"display_name"`
	Avatar        string      `json:"avatar"`
	ReferralCode  string      `json:"referral_code"`
	Children      []*TreeNode `json:"children"`
	ChildrenCount int         `json:"children_count"`
}

// ReferralStats summarizes a user's subtree.
type ReferralStats struct {
	DirectCount int `json:"direct_referrals"`
	TotalCount  int `json:"total_referrals"`
}

// ChainView is an ancestor chain plus its distance to the viewer.
// ConnectionDistance is nil when no common ancestor is found within the depth caps.
type ChainView struct {
	Chain              []UserRef `json:"chain"`
	ConnectionDistance *int      `json:"connection_distance"`
}

// ReferredUser is a direct referral with the time it was made.
type ReferredUser struct {
	UserRef
	Age        *int      `json:"age"`
	Gender     string    `json:"gender"`
	Location   string    `json:"location"`
	ReferredAt time.Time `json:"referred_at"`
}

// TreeReport is the result of a full integrity check over the referral edges.
type TreeReport struct {
	UserCount      int    `json:"user_count"`
	EdgeCount      int    `json:"edge_count"`
	RootIDs        []uint `json:"root_ids"`
	UnreachableIDs []uint `json:"unreachable_ids"`
	MaxDepth       int    `json:"max_depth"`
	Healthy        bool   `json:"healthy"`
}
