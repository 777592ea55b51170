package service

import (
	"context"
	"fmt"
	"log/slog"

	"treematch/internal/middleware"
	"treematch/internal/models"
	"treematch/internal/repository"
	"treematch/internal/secure"
)

// User status filters accepted by ListUsers.
const (
	StatusAll       = "all"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// AdminService implements the root-only console. Every call is checked against the
// actor: only the root user may use it.
type AdminService struct {
	store     *repository.Store
	vault     *secure.Vault
	people    profiles
	referrals *ReferralService
}

// NewAdminService returns a new AdminService.
func NewAdminService(store *repository.Store, vault *secure.Vault, referrals *ReferralService) *AdminService {
	return &AdminService{
		store:     store,
		vault:     vault,
		people:    profiles{vault: vault},
		referrals: referrals,
	}
}

// RequireRoot fails with ErrAdminOnly unless actorID is the root user.
func (s *AdminService) RequireRoot(ctx context.Context, actorID uint) error {
	isRoot, err := s.referrals.IsRoot(ctx, actorID)
	if err != nil {
		if isNotFound(err) {
			return models.ErrAdminOnly
		}
		return err
	}
	if !isRoot {
		return models.ErrAdminOnly
	}
	return nil
}

// Stats aggregates population, graph and block counts.
func (s *AdminService) Stats(ctx context.Context, actorID uint) (*models.AdminStats, error) {
	if err := s.RequireRoot(ctx, actorID); err != nil {
		return nil, err
	}

	stats := &models.AdminStats{}
	counters := []struct {
		dst *int64
		fn  func(context.Context) (int64, error)
	}{
		{&stats.TotalUsers, s.store.Users.Count},
		{&stats.SuspendedUsers, s.store.Users.CountSuspended},
		{&stats.TotalReferrals, s.store.Referrals.Count},
		{&stats.TotalLikes, s.store.Likes.Count},
		{&stats.MutualMatches, s.store.Likes.CountMutual},
		{&stats.TotalBlocks, s.store.Blocks.Count},
		{&stats.TotalMessages, s.store.Chats.CountMessages},
	}
	for _, c := range counters {
		n, err := c.fn(ctx)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	stats.ActiveUsers = stats.TotalUsers - stats.SuspendedUsers
	return stats, nil
}

// ListUsers pages through every user, newest first, filtered by status.
func (s *AdminService) ListUsers(ctx context.Context, actorID uint, page, perPage int, status string) (*models.AdminUserPage, error) {
	if err := s.RequireRoot(ctx, actorID); err != nil {
		return nil, err
	}

	var suspended *bool
	switch status {
	case "", StatusAll:
	case StatusActive:
		v := false
		suspended = &v
	case StatusSuspended:
		v := true
		suspended = &v
	default:
		return nil, models.NewInvalidFilterError("status must be one of all, active, suspended")
	}
	if page <= 0 {
		page = 1
	}
	if page > models.MaxPage {
		return nil, models.NewInvalidFilterError(fmt.Sprintf("page must not exceed %d", models.MaxPage))
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	users, total, err := s.store.Users.List(ctx, suspended, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	edges, err := s.store.Referrals.GetByReferredIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	parentOf := make(map[uint]uint, len(edges))
	for _, e := range edges {
		parentOf[e.ReferredID] = e.ReferrerID
	}

	rows := make([]models.AdminUserRow, 0, len(users))
	for i := range users {
		u := &users[i]
		direct, err := s.store.Referrals.CountDirect(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		email, _ := s.vault.Decrypt(u.EmailEncrypted)

		row := models.AdminUserRow{
			UserRef:     s.people.ref(u),
			Email:       email,
			IsSuspended: u.IsSuspended,
			DirectCount: direct,
			CreatedAt:   u.CreatedAt,
			LastActive:  u.LastActive,
		}
		if parent, ok := parentOf[u.ID]; ok {
			row.ReferrerID = &parent
		} else {
			row.IsRoot = true
		}
		rows = append(rows, row)
	}

	return &models.AdminUserPage{
		Users:      rows,
		Pagination: paginate(page, perPage, total),
	}, nil
}

// Suspend hides targetID from every other user and blocks its logins.
func (s *AdminService) Suspend(ctx context.Context, actorID, targetID uint) error {
	return s.setSuspended(ctx, actorID, targetID, true)
}

// Unsuspend reverses Suspend.
func (s *AdminService) Unsuspend(ctx context.Context, actorID, targetID uint) error {
	return s.setSuspended(ctx, actorID, targetID, false)
}

func (s *AdminService) setSuspended(ctx context.Context, actorID, targetID uint, suspended bool) error {
	if err := s.RequireRoot(ctx, actorID); err != nil {
		return err
	}
	if err := s.guardTarget(ctx, targetID); err != nil {
		return err
	}
	if err := s.store.Users.SetSuspended(ctx, targetID, suspended); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "user suspension changed",
		slog.Uint64("target_id", uint64(targetID)),
		slog.Bool("suspended", suspended),
	)
	return nil
}

// DeleteUser removes a leaf user together with its incoming edge, likes, blocks and chats.
// Users that still have referrals are refused so the tree never splits.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, targetID uint) error {
	if err := s.RequireRoot(ctx, actorID); err != nil {
		return err
	}
	if err := s.guardTarget(ctx, targetID); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		direct, err := tx.Referrals.CountDirect(ctx, targetID)
		if err != nil {
			return err
		}
		if direct > 0 {
			return models.ErrHasReferrals
		}
		if err := tx.Likes.DeleteAllForUser(ctx, targetID); err != nil {
			return err
		}
		if err := tx.Blocks.DeleteAllForUser(ctx, targetID); err != nil {
			return err
		}
		if err := tx.Chats.DeleteAllForUser(ctx, targetID); err != nil {
			return err
		}
		if err := tx.Referrals.DeleteIncoming(ctx, targetID); err != nil {
			return err
		}
		return tx.Users.Delete(ctx, targetID)
	})
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "user deleted", slog.Uint64("target_id", uint64(targetID)))
	return nil
}

// VerifyTree runs the referral tree integrity check for the root.
func (s *AdminService) VerifyTree(ctx context.Context, actorID uint) (*models.TreeReport, error) {
	if err := s.RequireRoot(ctx, actorID); err != nil {
		return nil, err
	}
	return s.referrals.VerifyTree(ctx)
}

// guardTarget ensures targetID exists and is not the root.
func (s *AdminService) guardTarget(ctx context.Context, targetID uint) error {
	isRoot, err := s.referrals.IsRoot(ctx, targetID)
	if err != nil {
		return err
	}
	if isRoot {
		return models.ErrRootProtected
	}
	return nil
}
