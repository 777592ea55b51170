package service

import (
	"context"
	"strings"

	"treematch/internal/featureflags"
	"treematch/internal/models"
	"treematch/internal/observability"
	"treematch/internal/repository"
	"treematch/internal/secure"
	"treematch/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// DiscoveryService answers the read-side questions that combine the referral tree,
// the like graph and the block relation.
type DiscoveryService struct {
	store     *repository.Store
	referrals *ReferralService
	blocks    *BlockService
	people    profiles
	flags     *featureflags.Manager
	limits    SearchLimits
}

// NewDiscoveryService returns a new DiscoveryService.
func NewDiscoveryService(
	store *repository.Store,
	vault *secure.Vault,
	referrals *ReferralService,
	blocks *BlockService,
	flags *featureflags.Manager,
	limits SearchLimits,
) *DiscoveryService {
	return &DiscoveryService{
		store:     store,
		referrals: referrals,
		blocks:    blocks,
		people:    profiles{vault: vault},
		flags:     flags,
		limits:    limits,
	}
}

// ReferralStatistics returns direct referrals and the full subtree size of userID.
func (s *DiscoveryService) ReferralStatistics(ctx context.Context, userID uint) (*models.ReferralStats, error) {
	direct, err := s.store.Referrals.CountDirect(ctx, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.referrals.DescendantCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.ReferralStats{DirectCount: int(direct), TotalCount: total}, nil
}

// Search pages through active users matching filters, hiding viewerID itself and
// everyone on either side of a block with viewerID. The name filter is applied in memory
// after decrypting the candidates, so it only runs when the name_search flag allows.
func (s *DiscoveryService) Search(ctx context.Context, viewerID uint, filters models.SearchFilters) (*models.SearchResult, error) {
	filters = s.normalizeFilters(filters)
	if err := validation.Struct(filters); err != nil {
		return nil, models.NewInvalidFilterError(err.Error())
	}
	if filters.MinAge > 0 && filters.MaxAge > 0 && filters.MinAge > filters.MaxAge {
		return nil, models.NewInvalidFilterError("min_age must not exceed max_age")
	}
	if filters.Name != "" && !s.flags.Enabled(featureflags.NameSearch, viewerID) {
		return nil, models.NewInvalidFilterError("Searching by name is not available")
	}

	span, ctx := observability.NewSpan(ctx, "discovery.search",
		attribute.Int64("viewer_id", int64(viewerID)),
		attribute.Bool("name_filter", filters.Name != ""),
	)
	defer span.End()

	excluded, err := s.blocks.VisibilityExcludedIDs(ctx, viewerID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	q := repository.UserQuery{
		ExcludeIDs: append(excluded, viewerID),
		Gender:     filters.Gender,
		MinAge:     filters.MinAge,
		MaxAge:     filters.MaxAge,
		Location:   filters.Location,
	}
	offset := (filters.Page - 1) * filters.PerPage
	if filters.Name == "" {
		q.Limit = filters.PerPage
		q.Offset = offset
	}

	users, total, err := s.store.Users.Search(ctx, q)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if filters.Name != "" {
		needle := strings.ToLower(filters.Name)
		matched := make([]models.User, 0, len(users))
		for i := range users {
			if strings.Contains(strings.ToLower(s.people.name(&users[i])), needle) {
				matched = append(matched, users[i])
			}
		}
		total = int64(len(matched))
		span.AddAttributes(attribute.Int("candidates", len(users)))
		start := min(offset, len(matched))
		users = matched[start:min(start+filters.PerPage, len(matched))]
	}

	page := make([]*models.User, 0, len(users))
	for i := range users {
		page = append(page, &users[i])
	}
	referrers, err := referrerRefs(ctx, s.store, s.people, page, newHiddenSet(excluded))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	cards := make([]models.ProfileCard, 0, len(page))
	for _, u := range page {
		cards = append(cards, s.people.card(u, referrers[u.ID]))
	}

	return &models.SearchResult{
		Users:      cards,
		Pagination: paginate(filters.Page, filters.PerPage, total),
	}, nil
}

func (s *DiscoveryService) normalizeFilters(f models.SearchFilters) models.SearchFilters {
	f.Gender = strings.ToLower(strings.TrimSpace(f.Gender))
	f.Location = strings.TrimSpace(f.Location)
	f.Name = strings.TrimSpace(f.Name)
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = s.limits.DefaultPageSize
	}
	f.PerPage = min(f.PerPage, s.limits.MaxPageSize)
	return f
}

func paginate(page, perPage int, total int64) models.Pagination {
	pages := 0
	if perPage > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return models.Pagination{Page: page, PerPage: perPage, Total: total, Pages: pages}
}

// Profile returns targetID as seen by viewerID.
func (s *DiscoveryService) Profile(ctx context.Context, viewerID, targetID uint) (*models.ProfileView, error) {
	target, err := s.visibleTarget(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	referredBy, err := s.referrals.Referrer(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if referredBy != nil {
		hidden, err := s.hidden(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		masked := hidden.mask(*referredBy)
		referredBy = &masked
	}

	view := &models.ProfileView{ProfileCard: s.people.card(target, referredBy)}
	if viewerID == targetID {
		return view, nil
	}
	like, err := s.store.Likes.Get(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	if like != nil {
		view.LikedByMe = true
		view.IsMutual = like.IsMutual
	}
	return view, nil
}

// ChainView returns targetID's ancestor chain and its connection distance to viewerID.
// The target's chain is scanned first when looking for the common ancestor.
func (s *DiscoveryService) ChainView(ctx context.Context, viewerID, targetID uint, maxDepth int) (*models.ChainView, error) {
	if _, err := s.visibleTarget(ctx, viewerID, targetID); err != nil {
		return nil, err
	}
	chain, err := s.referrals.AncestorChain(ctx, targetID, maxDepth)
	if err != nil {
		return nil, err
	}
	distance, err := s.referrals.ConnectionDistance(ctx, targetID, viewerID)
	if err != nil {
		return nil, err
	}
	hidden, err := s.hidden(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	for i := range chain {
		chain[i] = hidden.mask(chain[i])
	}
	return &models.ChainView{Chain: chain, ConnectionDistance: distance}, nil
}

// TreeView is viewerID's own descendant tree with blocked users and everything below
// them left out. Counts are not adjusted.
func (s *DiscoveryService) TreeView(ctx context.Context, viewerID uint, maxDepth int) (*models.TreeNode, error) {
	tree, err := s.referrals.DescendantTree(ctx, viewerID, maxDepth)
	if err != nil {
		return nil, err
	}
	hidden, err := s.hidden(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	hidden.prune(tree)
	return tree, nil
}

// ReferralsView lists viewerID's direct referrals minus anyone on either side of a block.
func (s *DiscoveryService) ReferralsView(ctx context.Context, viewerID uint) ([]models.ReferredUser, error) {
	list, err := s.referrals.DirectReferrals(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	hidden, err := s.hidden(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, r := range list {
		if !hidden.has(r.ID) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ReferrerView returns viewerID's referrer, masked when a block separates them.
func (s *DiscoveryService) ReferrerView(ctx context.Context, viewerID uint) (*models.UserRef, error) {
	ref, err := s.referrals.Referrer(ctx, viewerID)
	if err != nil || ref == nil {
		return ref, err
	}
	hidden, err := s.hidden(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	masked := hidden.mask(*ref)
	return &masked, nil
}

func (s *DiscoveryService) hidden(ctx context.Context, viewerID uint) (hiddenSet, error) {
	ids, err := s.blocks.VisibilityExcludedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return newHiddenSet(ids), nil
}

// Distance returns the connection distance between viewerID and targetID, or nil.
func (s *DiscoveryService) Distance(ctx context.Context, viewerID, targetID uint) (*int, error) {
	if _, err := s.visibleTarget(ctx, viewerID, targetID); err != nil {
		return nil, err
	}
	return s.referrals.ConnectionDistance(ctx, targetID, viewerID)
}

// visibleTarget loads targetID unless a block in either direction hides it from viewerID.
// Suspended users are only visible to themselves and to the root.
func (s *DiscoveryService) visibleTarget(ctx context.Context, viewerID, targetID uint) (*models.User, error) {
	target, err := s.store.Users.GetByID(ctx, targetID)
	if err != nil {
		if isNotFound(err) {
			return nil, models.ErrTargetNotFound
		}
		return nil, err
	}
	if viewerID == targetID {
		return target, nil
	}

	blocked, err := s.store.Blocks.ExistsEither(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.ErrTargetNotFound
	}

	if target.IsSuspended {
		viewerIsRoot, err := s.referrals.IsRoot(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		if !viewerIsRoot {
			return nil, models.ErrTargetNotFound
		}
	}
	return target, nil
}
