package models

import "time"

// ProfileCard is the public representation of a user in search results and lists.
type ProfileCard struct {
	ID               uint      `json:"id"`
	FullName         string    `json:"full_name"`
	Age              *int      `json:"age"`
	Gender           string    `json:"gender"`
	Location         string    `json:"location"`
	Height           *int      `json:"height"`
	EmploymentStatus string    `json:"employment_status"`
	Interests        string    `json:"interests"`
	Bio              string    `json:"bio"`
	SocialLink       string    `json:"social_link"`
	ProfileImage     string    `json:"profile_image"`
	ReferralCode     string    `json:"referral_code"`
	ReferredBy       *UserRef  `json:"referred_by"`
	CreatedAt        time.Time `json:"created_at"`
	LastActive       time.Time `json:"last_active"`
}

// ProfileView is a profile as seen by another user.
type ProfileView struct {
	ProfileCard
	LikedByMe bool `json:"liked_by_me"`
	IsMutual  bool `json:"is_mutual"`
}

// PrivateProfile is a user's own profile including decrypted contact fields.
type PrivateProfile struct {
	ProfileCard
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	IsSuspended bool   `json:"is_suspended"`
	IsRoot      bool   `json:"is_root"`
}

// MaxPage is the highest page number any paginated listing accepts.
const MaxPage = 10000

// SearchFilters narrows a user search. Zero values mean "no filter".
type SearchFilters struct {
	Gender   string `json:"gender" validate:"omitempty,oneof=male female other"`
	MinAge   int    `json:"min_age" validate:"omitempty,gte=18,lte=120"`
	MaxAge   int    `json:"max_age" validate:"omitempty,gte=18,lte=120"`
	Location string `json:"location" validate:"omitempty,max=100"`
	Name     string `json:"name" validate:"omitempty,max=100"`
	Page     int    `json:"page" validate:"gte=1,lte=10000"`
	PerPage  int    `json:"per_page" validate:"gte=1"`
}

// Pagination describes the window of a paginated result.
type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Users      []ProfileCard `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

// AdminUserRow is a user as listed in the admin console.
type AdminUserRow struct {
	UserRef
	Email       string    `json:"email"`
	IsSuspended bool      `json:"is_suspended"`
	IsRoot      bool      `json:"is_root"`
	DirectCount int64     `json:"direct_referrals"`
	CreatedAt   time.Time `json:"created_at"`
	LastActive  time.Time `json:"last_active"`
	ReferrerID  *uint     `json:"referrer_id"`
}

// AdminUserPage is one page of the admin user list.
type AdminUserPage struct {
	Users      []AdminUserRow `json:"users"`
	Pagination Pagination     `json:"pagination"`
}

// AdminStats aggregates counts across the whole population.
type AdminStats struct {
	TotalUsers     int64 `json:"total_users"`
	ActiveUsers    int64 `json:"active_users"`
	SuspendedUsers int64 `json:"suspended_users"`
	TotalReferrals int64 `json:"total_referrals"`
	TotalLikes     int64 `json:"total_likes"`
	MutualMatches  int64 `json:"mutual_matches"`
	TotalBlocks    int64 `json:"total_blocks"`
	TotalMessages  int64 `json:"total_messages"`
}
