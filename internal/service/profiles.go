// Package service implements the referral tree, social graph, block relation
// and the query, auth and admin operations built on top of them.
package service

import (
	"errors"

	"treematch/internal/models"
	"treematch/internal/secure"
)

const (
	nameUnavailable = "Name unavailable"
	hiddenUserName  = "Hidden user"
)

// TreeLimits bounds referral traversals.
type TreeLimits struct {
	ChainMaxDepth  int // default ancestor chain length
	TreeMaxDepth   int // default descendant tree depth
	TreeDepthLimit int // largest depth a caller may request
}

// DefaultTreeLimits returns the stock traversal bounds.
func DefaultTreeLimits() TreeLimits {
	return TreeLimits{ChainMaxDepth: 10, TreeMaxDepth: 3, TreeDepthLimit: 10}
}

func (l TreeLimits) chainDepth(requested int) int {
	if requested < 0 {
		return l.ChainMaxDepth
	}
	return min(requested, max(l.TreeDepthLimit, l.ChainMaxDepth))
}

func (l TreeLimits) treeDepth(requested int) int {
	if requested < 0 {
		return l.TreeMaxDepth
	}
	return min(requested, l.TreeDepthLimit)
}

// SearchLimits bounds search page sizes.
type SearchLimits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultSearchLimits returns the stock page sizes.
func DefaultSearchLimits() SearchLimits {
	return SearchLimits{DefaultPageSize: 20, MaxPageSize: 100}
}

// profiles turns stored users into their public shapes, decrypting names on the way.
type profiles struct {
	vault *secure.Vault
}

func (p profiles) name(u *models.User) string {
	name, err := p.vault.Decrypt(u.FullNameEncrypted)
	if err != nil || name == "" {
		return nameUnavailable
	}
	return name
}

func (p profiles) ref(u *models.User) models.UserRef {
	return models.UserRef{
		ID:           u.ID,
		DisplayName:  p.name(u),
		Avatar:       u.ProfileImage,
		ReferralCode: u.ReferralCode,
	}
}

func (p profiles) card(u *models.User, referredBy *models.UserRef) models.ProfileCard {
	return models.ProfileCard{
		ID:               u.ID,
		FullName:         p.name(u),
		Age:              u.Age,
		Gender:           u.Gender,
		Location:         u.Location,
		Height:           u.Height,
		EmploymentStatus: u.EmploymentStatus,
		Interests:        u.Interests,
		Bio:              u.Bio,
		SocialLink:       u.SocialLink,
		ProfileImage:     u.ProfileImage,
		ReferralCode:     u.ReferralCode,
		ReferredBy:       referredBy,
		CreatedAt:        u.CreatedAt,
		LastActive:       u.LastActive,
	}
}

// hiddenSet holds the ids a viewer must not see: everyone on either side of a block.
type hiddenSet map[uint]struct{}

func newHiddenSet(ids []uint) hiddenSet {
	h := make(hiddenSet, len(ids))
	for _, id := range ids {
		h[id] = struct{}{}
	}
	return h
}

func (h hiddenSet) has(id uint) bool {
	_, ok := h[id]
	return ok
}

// mask swaps a hidden user's reference for an anonymous placeholder.
// Positions in a chain stay intact so distances still read correctly.
func (h hiddenSet) mask(ref models.UserRef) models.UserRef {
	if !h.has(ref.ID) {
		return ref
	}
	return models.UserRef{DisplayName: hiddenUserName}
}

// prune drops hidden users and their subtrees from a descendant tree.
// ChildrenCount keeps counting every direct referral.
func (h hiddenSet) prune(root *models.TreeNode) {
	if len(h) == 0 || root == nil {
		return
	}
	stack := []*models.TreeNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		kept := n.Children[:0]
		for _, child := range n.Children {
			if h.has(child.ID) {
				continue
			}
			kept = append(kept, child)
			stack = append(stack, child)
		}
		n.Children = kept
	}
}

func isNotFound(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeNotFound
}
