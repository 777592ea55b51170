package service

import (
	"context"
	"log/slog"

	"treematch/internal/middleware"
	"treematch/internal/models"
	"treematch/internal/observability"
	"treematch/internal/repository"
	"treematch/internal/secure"
)

// MatchPublisher is notified after a like turns a pair mutual.
type MatchPublisher interface {
	PublishMatch(ctx context.Context, a, b uint) error
}

// MatchService provides the like/match graph.
type MatchService struct {
	store     *repository.Store
	people    profiles
	publisher MatchPublisher
}

// NewMatchService returns a new MatchService. publisher may be nil.
func NewMatchService(store *repository.Store, vault *secure.Vault, publisher MatchPublisher) *MatchService {
	return &MatchService{
		store:     store,
		people:    profiles{vault: vault},
		publisher: publisher,
	}
}

// Like records fromID -> toID. When toID already likes fromID both edges are flagged mutual
// in the same transaction. Both user rows are locked first so two users liking each other at
// the same time serialize, and the reverse edge is read only after the locks are held.
func (s *MatchService) Like(ctx context.Context, fromID, toID uint) (*models.LikeResult, error) {
	if fromID == toID {
		observability.LikesTotal.WithLabelValues("rejected").Inc()
		return nil, models.ErrSelfReference
	}

	result := &models.LikeResult{}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		locked, err := tx.Users.LockForUpdate(ctx, fromID, toID)
		if err != nil {
			return err
		}
		var actor, target *models.User
		for i := range locked {
			switch locked[i].ID {
			case fromID:
				actor = &locked[i]
			case toID:
				target = &locked[i]
			}
		}
		if actor == nil {
			return models.NewNotFoundError("User", fromID)
		}
		if target == nil || target.IsSuspended {
			return models.ErrTargetNotFound
		}

		blocked, err := tx.Blocks.ExistsEither(ctx, fromID, toID)
		if err != nil {
			return err
		}
		if blocked {
			return models.ErrBlocked
		}

		existing, err := tx.Likes.Get(ctx, fromID, toID)
		if err != nil {
			return err
		}
		if existing != nil {
			return models.ErrAlreadyLiked
		}

		reverse, err := tx.Likes.Get(ctx, toID, fromID)
		if err != nil {
			return err
		}

		like := &models.Like{
			UserID:      fromID,
			LikedUserID: toID,
			IsMutual:    reverse != nil,
		}
		if err := tx.Likes.Create(ctx, like); err != nil {
			return err
		}
		if reverse != nil && !reverse.IsMutual {
			if err := tx.Likes.SetMutual(ctx, toID, fromID, true); err != nil {
				return err
			}
		}

		result.Created = true
		result.IsMutual = like.IsMutual
		return nil
	})
	if err != nil {
		observability.LikesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if !result.IsMutual {
		observability.LikesTotal.WithLabelValues("created").Inc()
		return result, nil
	}

	observability.LikesTotal.WithLabelValues("mutual").Inc()
	middleware.Logger.InfoContext(ctx, "mutual match",
		slog.Uint64("user_id", uint64(fromID)),
		slog.Uint64("other_id", uint64(toID)),
	)
	if s.publisher != nil {
		if err := s.publisher.PublishMatch(ctx, fromID, toID); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish match event", slog.String("error", err.Error()))
		}
	}
	return result, nil
}

// Matches returns the users userID is mutually matched with, newest like first.
func (s *MatchService) Matches(ctx context.Context, userID uint) ([]models.Match, error) {
	if _, err := s.store.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	likes, err := s.store.Likes.Matches(ctx, userID)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(likes))
	for i := range likes {
		users = append(users, &likes[i].LikedUser)
	}
	excluded, err := s.store.Blocks.ExcludedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	referrers, err := referrerRefs(ctx, s.store, s.people, users, newHiddenSet(excluded))
	if err != nil {
		return nil, err
	}

	out := make([]models.Match, 0, len(likes))
	for i := range likes {
		u := &likes[i].LikedUser
		out = append(out, models.Match{
			ProfileCard: s.people.card(u, referrers[u.ID]),
			MatchedAt:   likes[i].CreatedAt,
		})
	}
	return out, nil
}

// unlikeOnBlock removes a -> b and clears the mutual flag on b -> a.
// Calling it when neither edge exists is a no-op.
func unlikeOnBlock(ctx context.Context, tx *repository.Store, a, b uint) error {
	if _, err := tx.Likes.Delete(ctx, a, b); err != nil {
		return err
	}
	reverse, err := tx.Likes.Get(ctx, b, a)
	if err != nil {
		return err
	}
	if reverse != nil && reverse.IsMutual {
		return tx.Likes.SetMutual(ctx, b, a, false)
	}
	return nil
}

// referrerRefs resolves the direct referrer of each user with two batch queries.
// Roots are absent from the result and referrers in hidden are masked.
func referrerRefs(ctx context.Context, st *repository.Store, people profiles, users []*models.User, hidden hiddenSet) (map[uint]*models.UserRef, error) {
	out := make(map[uint]*models.UserRef, len(users))
	if len(users) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	edges, err := st.Referrals.GetByReferredIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	parentIDs := make([]uint, 0, len(edges))
	for _, e := range edges {
		parentIDs = append(parentIDs, e.ReferrerID)
	}
	parents, err := st.Users.GetByIDs(ctx, parentIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.User, len(parents))
	for i := range parents {
		byID[parents[i].ID] = &parents[i]
	}

	for _, e := range edges {
		if p, ok := byID[e.ReferrerID]; ok {
			ref := hidden.mask(people.ref(p))
			out[e.ReferredID] = &ref
		}
	}
	return out, nil
}
