// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"treematch/internal/secure"

	"gorm.io/gorm"
)

// Gender values accepted on profiles.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// User is an identity in the invitation tree.
// Sensitive fields are stored encrypted; lookups by email go through EmailFingerprint.
type User struct {
	ID uint `gorm:"primaryKey" json:"id"`

	EmailFingerprint  string `gorm:"size:64;uniqueIndex;not null" json:"-"`
	EmailEncrypted    string `gorm:"type:text;not null" json:"-"`
	FullNameEncrypted string `gorm:"type:text;not null" json:"-"`
	PhoneEncrypted    string `gorm:"type:text" json:"-"`
	AddressEncrypted  string `gorm:"type:text" json:"-"`
	PasswordHash      string `gorm:"size:255;not null" json:"-"`

	Age              *int   `json:"age"`
	Gender           string `gorm:"size:20;index:idx_users_gender" json:"gender"`
	Location         string `gorm:"size:100" json:"location"`
	Height           *int   `json:"height"`
	EmploymentStatus string `gorm:"size:100" json:"employment_status"`
	Interests        string `gorm:"type:text" json:"interests"`
	Bio              string `gorm:"type:text" json:"bio"`
	SocialLink       string `gorm:"size:500" json:"social_link"`
	ProfileImage     string `gorm:"size:500" json:"profile_image"`

	ReferralCode string `gorm:"size:32;uniqueIndex;not null" json:"referral_code"`
	IsSuspended  bool   `gorm:"not null;default:false;index:idx_users_suspended" json:"is_suspended"`

	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastActive time.Time `json:"last_active"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// BeforeCreate fills in a referral code and activity timestamp when absent.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ReferralCode == "" {
		code, err := secure.NewReferralCode()
		if err != nil {
			return err
		}
		u.ReferralCode = code
	}
	if u.LastActive.IsZero() {
		u.LastActive = time.Now().UTC()
	}
	return nil
}

// UserRef is the minimal public view of a user used by tree and graph queries.
type UserRef struct {
	ID           uint   `json:"id"`
	DisplayName  string `json:"display_name"`
	Avatar       string `json:"avatar"`
	ReferralCode string `json:"referral_code,omitempty"`
}
