package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"treematch/internal/middleware"
	"treematch/internal/models"
	"treematch/internal/observability"
	"treematch/internal/repository"
	"treematch/internal/secure"

	"go.opentelemetry.io/otel/attribute"
)

// ReferralService maintains the referral tree and answers traversal queries over it.
// Every query recomputes from the stored edges.
type ReferralService struct {
	store  *repository.Store
	people profiles
	limits TreeLimits
}

// NewReferralService returns a new ReferralService.
func NewReferralService(store *repository.Store, vault *secure.Vault, limits TreeLimits) *ReferralService {
	return &ReferralService{
		store:  store,
		people: profiles{vault: vault},
		limits: limits,
	}
}

// Limits returns the traversal bounds the service was built with.
func (s *ReferralService) Limits() TreeLimits {
	return s.limits
}

// Register appends the edge admitting newUserID through code.
// Pass the surrounding transaction as tx so the edge commits together with the user row;
// a nil tx runs against the service's own store.
func (s *ReferralService) Register(ctx context.Context, tx *repository.Store, code string, newUserID uint) (*models.Referral, error) {
	if tx == nil {
		tx = s.store
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.ErrInvalidCode
	}
	referrer, err := tx.Users.GetByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, models.ErrInvalidCode
	}
	if referrer.ID == newUserID {
		return nil, models.ErrSelfReference
	}

	if _, err := tx.Users.GetByID(ctx, newUserID); err != nil {
		return nil, err
	}
	hasParent, err := tx.Referrals.HasIncoming(ctx, newUserID)
	if err != nil {
		return nil, err
	}
	if hasParent {
		return nil, models.ErrAlreadyReferred
	}
	// A user that already has descendants could end up above its own referrer.
	children, err := tx.Referrals.CountDirect(ctx, newUserID)
	if err != nil {
		return nil, err
	}
	if children > 0 {
		return nil, models.NewConflictError("A user with referrals cannot be attached to the tree")
	}

	edge := &models.Referral{
		ReferrerID: referrer.ID,
		ReferredID: newUserID,
		CodeUsed:   code,
	}
	if err := tx.Referrals.Create(ctx, edge); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "referral edge created",
		slog.Uint64("referrer_id", uint64(referrer.ID)),
		slog.Uint64("referred_id", uint64(newUserID)),
	)
	return edge, nil
}

// ValidateCode returns the owner of code or ErrInvalidCode.
func (s *ReferralService) ValidateCode(ctx context.Context, code string) (*models.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.ErrInvalidCode
	}
	referrer, err := s.store.Users.GetByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, models.ErrInvalidCode
	}
	return referrer, nil
}

// IsRoot reports whether userID has no incoming edge.
func (s *ReferralService) IsRoot(ctx context.Context, userID uint) (bool, error) {
	if _, err := s.store.Users.GetByID(ctx, userID); err != nil {
		return false, err
	}
	hasParent, err := s.store.Referrals.HasIncoming(ctx, userID)
	if err != nil {
		return false, err
	}
	return !hasParent, nil
}

// Referrer returns the direct referrer of userID, or nil for the root.
func (s *ReferralService) Referrer(ctx context.Context, userID uint) (*models.UserRef, error) {
	if _, err := s.store.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	edge, err := s.store.Referrals.GetByReferred(ctx, userID)
	if err != nil || edge == nil {
		return nil, err
	}
	parent, err := s.store.Users.GetByID(ctx, edge.ReferrerID)
	if err != nil {
		return nil, err
	}
	ref := s.people.ref(parent)
	return &ref, nil
}

// DirectReferrals lists the users admitted with userID's code, oldest first.
func (s *ReferralService) DirectReferrals(ctx context.Context, userID uint) ([]models.ReferredUser, error) {
	if _, err := s.store.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	edges, err := s.store.Referrals.ChildrenOf(ctx, []uint{userID})
	if err != nil {
		return nil, err
	}
	users, err := s.usersByID(ctx, edgeTargets(edges))
	if err != nil {
		return nil, err
	}

	out := make([]models.ReferredUser, 0, len(edges))
	for _, e := range edges {
		u, ok := users[e.ReferredID]
		if !ok {
			continue
		}
		out = append(out, models.ReferredUser{
			UserRef:    s.people.ref(u),
			Age:        u.Age,
			Gender:     u.Gender,
			Location:   u.Location,
			ReferredAt: e.CreatedAt,
		})
	}
	return out, nil
}

// AncestorChain walks from userID up towards the root and returns at most maxDepth entries,
// starting with userID itself. A negative maxDepth uses the configured default.
func (s *ReferralService) AncestorChain(ctx context.Context, userID uint, maxDepth int) ([]models.UserRef, error) {
	span, ctx := observability.NewSpan(ctx, "referral.ancestor_chain",
		attribute.Int64("user_id", int64(userID)),
		attribute.Int("max_depth", maxDepth),
	)
	defer span.End()

	chain, err := s.chain(ctx, userID, s.limits.chainDepth(maxDepth))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	refs := make([]models.UserRef, 0, len(chain))
	for _, u := range chain {
		refs = append(refs, s.people.ref(u))
	}
	return refs, nil
}

// chain is the iterative walk behind AncestorChain and ConnectionDistance.
// It stops at the root, at maxDepth entries, at an id it has already emitted,
// or at a referrer that no longer exists.
func (s *ReferralService) chain(ctx context.Context, userID uint, maxDepth int) ([]*models.User, error) {
	done := observability.TrackTraversal("chain")
	current, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		done(0)
		return nil, err
	}

	out := make([]*models.User, 0, maxDepth)
	visited := make(map[uint]bool, maxDepth)
	for len(out) < maxDepth {
		out = append(out, current)
		visited[current.ID] = true
		if len(out) == maxDepth {
			break
		}

		edge, err := s.store.Referrals.GetByReferred(ctx, current.ID)
		if err != nil {
			done(len(out))
			return nil, err
		}
		if edge == nil || visited[edge.ReferrerID] {
			break
		}
		parent, err := s.store.Users.GetByID(ctx, edge.ReferrerID)
		if err != nil {
			if isNotFound(err) {
				break
			}
			done(len(out))
			return nil, err
		}
		current = parent
	}
	done(len(out))
	return out, nil
}

// DescendantTree returns userID's subtree down to maxDepth levels.
// ChildrenCount always reports every direct referral, including those cut off by the depth bound.
// A negative maxDepth uses the configured default; larger requests are clamped to the depth limit.
func (s *ReferralService) DescendantTree(ctx context.Context, userID uint, maxDepth int) (*models.TreeNode, error) {
	depth := s.limits.treeDepth(maxDepth)
	span, ctx := observability.NewSpan(ctx, "referral.descendant_tree",
		attribute.Int64("user_id", int64(userID)),
		attribute.Int("max_depth", depth),
	)
	defer span.End()
	done := observability.TrackTraversal("tree")

	root, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		span.SetError(err)
		done(0)
		return nil, err
	}

	rootNode := s.node(root)
	nodes := map[uint]*models.TreeNode{root.ID: rootNode}
	frontier := []uint{root.ID}

	// One query per level: count the frontier's children, then expand them while within depth.
	for level := 0; len(frontier) > 0; level++ {
		edges, err := s.store.Referrals.ChildrenOf(ctx, frontier)
		if err != nil {
			span.SetError(err)
			done(len(nodes))
			return nil, err
		}
		for _, e := range edges {
			nodes[e.ReferrerID].ChildrenCount++
		}
		if level >= depth {
			break
		}

		next := make([]uint, 0, len(edges))
		fresh := make([]uint, 0, len(edges))
		for _, e := range edges {
			if _, seen := nodes[e.ReferredID]; !seen {
				fresh = append(fresh, e.ReferredID)
			}
		}
		users, err := s.usersByID(ctx, fresh)
		if err != nil {
			span.SetError(err)
			done(len(nodes))
			return nil, err
		}
		for _, e := range edges {
			if _, seen := nodes[e.ReferredID]; seen {
				continue
			}
			u, ok := users[e.ReferredID]
			if !ok {
				continue
			}
			child := s.node(u)
			nodes[u.ID] = child
			parent := nodes[e.ReferrerID]
			parent.Children = append(parent.Children, child)
			next = append(next, u.ID)
		}
		frontier = next
	}

	span.AddAttributes(attribute.Int("visited", len(nodes)))
	done(len(nodes))
	return rootNode, nil
}

func (s *ReferralService) node(u *models.User) *models.TreeNode {
	return &models.TreeNode{
		ID:           u.ID,
		DisplayName:  s.people.name(u),
		Avatar:       u.ProfileImage,
		ReferralCode: u.ReferralCode,
		Children:     []*models.TreeNode{},
	}
}

// DescendantCount returns the size of userID's subtree, excluding userID.
// Ids reached a second time contribute nothing.
func (s *ReferralService) DescendantCount(ctx context.Context, userID uint) (int, error) {
	span, ctx := observability.NewSpan(ctx, "referral.descendant_count", attribute.Int64("user_id", int64(userID)))
	defer span.End()
	done := observability.TrackTraversal("count")

	if _, err := s.store.Users.GetByID(ctx, userID); err != nil {
		span.SetError(err)
		done(0)
		return 0, err
	}

	visited := map[uint]bool{userID: true}
	frontier := []uint{userID}
	count := 0
	for len(frontier) > 0 {
		edges, err := s.store.Referrals.ChildrenOf(ctx, frontier)
		if err != nil {
			span.SetError(err)
			done(count)
			return 0, err
		}
		next := make([]uint, 0, len(edges))
		for _, e := range edges {
			if visited[e.ReferredID] {
				continue
			}
			visited[e.ReferredID] = true
			next = append(next, e.ReferredID)
			count++
		}
		frontier = next
	}
	done(count)
	return count, nil
}

// ConnectionDistance returns i+j for the first pair chainA[i] == chainB[j] found scanning
// a's chain in the outer loop and b's in the inner one, or nil when the chains never meet.
// With more than one shared ancestor the first hit is not necessarily the nearest.
func (s *ReferralService) ConnectionDistance(ctx context.Context, a, b uint) (*int, error) {
	span, ctx := observability.NewSpan(ctx, "referral.connection_distance",
		attribute.Int64("user_a", int64(a)),
		attribute.Int64("user_b", int64(b)),
	)
	defer span.End()

	chainA, err := s.chain(ctx, a, s.limits.ChainMaxDepth)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	chainB, err := s.chain(ctx, b, s.limits.ChainMaxDepth)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	for i, ua := range chainA {
		for j, ub := range chainB {
			if ua.ID == ub.ID {
				d := i + j
				return &d, nil
			}
		}
	}
	return nil, nil
}

// VerifyTree checks every stored edge: the population must have exactly one root,
// every user must reach it, and there must be one edge per non-root user.
func (s *ReferralService) VerifyTree(ctx context.Context) (*models.TreeReport, error) {
	span, ctx := observability.NewSpan(ctx, "referral.verify_tree")
	defer span.End()

	ids, err := s.store.Users.AllIDs(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	edges, err := s.store.Referrals.All(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	hasParent := make(map[uint]bool, len(edges))
	children := make(map[uint][]uint, len(ids))
	for _, e := range edges {
		hasParent[e.ReferredID] = true
		children[e.ReferrerID] = append(children[e.ReferrerID], e.ReferredID)
	}

	report := &models.TreeReport{
		UserCount:      len(ids),
		EdgeCount:      len(edges),
		RootIDs:        []uint{},
		UnreachableIDs: []uint{},
	}
	for _, id := range ids {
		if !hasParent[id] {
			report.RootIDs = append(report.RootIDs, id)
		}
	}

	depth := make(map[uint]int, len(ids))
	queue := slices.Clone(report.RootIDs)
	for _, id := range queue {
		depth[id] = 0
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			if _, seen := depth[child]; seen {
				continue
			}
			depth[child] = depth[id] + 1
			report.MaxDepth = max(report.MaxDepth, depth[child])
			queue = append(queue, child)
		}
	}
	for _, id := range ids {
		if _, ok := depth[id]; !ok {
			report.UnreachableIDs = append(report.UnreachableIDs, id)
		}
	}

	report.Healthy = len(ids) == 0 ||
		(len(report.RootIDs) == 1 && len(report.UnreachableIDs) == 0 && report.EdgeCount == report.UserCount-1)

	if !report.Healthy {
		middleware.Logger.WarnContext(ctx, "referral tree verification failed",
			slog.Int("users", report.UserCount),
			slog.Int("edges", report.EdgeCount),
			slog.Int("roots", len(report.RootIDs)),
			slog.Int("unreachable", len(report.UnreachableIDs)),
		)
	}
	return report, nil
}

func (s *ReferralService) usersByID(ctx context.Context, ids []uint) (map[uint]*models.User, error) {
	users, err := s.store.Users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]*models.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func edgeTargets(edges []models.Referral) []uint {
	ids := make([]uint, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ReferredID)
	}
	return ids
}
