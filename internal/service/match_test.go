package service

import (
	"fmt"
	"sync"
	"testing"

	"treematch/internal/models"
	"treematch/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchService_LikeBecomesMutualThenBlockClearsIt(t *testing.T) {
	h := newHarness(t, "")
	h.tree.User("root", "")
	a := h.tree.User("a", "root")
	b := h.tree.User("b", "root")

	res, err := h.matches.Like(h.ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, &models.LikeResult{Created: true, IsMutual: false}, res)
	assert.Empty(t, h.published.pairs)

	res, err = h.matches.Like(h.ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, res.IsMutual)
	assert.Equal(t, [][2]uint{{b.ID, a.ID}}, h.published.pairs)

	ab, err := h.store.Likes.Get(h.ctx, a.ID, b.ID)
	require.NoError(t, err)
	ba, err := h.store.Likes.Get(h.ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ab.IsMutual)
	assert.True(t, ba.IsMutual)

	matches, err := h.matches.Matches(h.ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, b.ID, matches[0].ID)
	require.NotNil(t, matches[0].ReferredBy)
	assert.Equal(t, h.tree.ID("root"), matches[0].ReferredBy.ID)

	_, err = h.blocks.Block(h.ctx, a.ID, b.ID)
	require.NoError(t, err)

	for _, id := range []uint{a.ID, b.ID} {
		matches, err = h.matches.Matches(h.ctx, id)
		require.NoError(t, err)
		assert.Empty(t, matches)
	}

	ab, err = h.store.Likes.Get(h.ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, ab, "the blocker's like is removed")
	ba, err = h.store.Likes.Get(h.ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, ba)
	assert.False(t, ba.IsMutual, "the reverse like loses its mutual flag")

	resA, err := h.discovery.Search(h.ctx, a.ID, models.SearchFilters{})
	require.NoError(t, err)
	assert.NotContains(t, cardIDs(resA.Users), b.ID)
	resB, err := h.discovery.Search(h.ctx, b.ID, models.SearchFilters{})
	require.NoError(t, err)
	assert.NotContains(t, cardIDs(resB.Users), a.ID)
}

func TestMatchService_LikeErrors(t *testing.T) {
	h := newHarness(t, "")
	h.tree.User("root", "")
	a := h.tree.User("a", "root")
	b := h.tree.User("b", "root")
	gone := h.tree.User("gone", "root", testutil.Suspended())
	blocker := h.tree.User("blocker", "root")

	_, err := h.matches.Like(h.ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = h.blocks.Block(h.ctx, blocker.ID, a.ID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		from, to uint
		want     *models.AppError
	}{
		{"self", a.ID, a.ID, models.ErrSelfReference},
		{"missing target", a.ID, 99999, models.ErrTargetNotFound},
		{"suspended target", a.ID, gone.ID, models.ErrTargetNotFound},
		{"duplicate", a.ID, b.ID, models.ErrAlreadyLiked},
		{"blocked by target", a.ID, blocker.ID, models.ErrBlocked},
		{"target blocked by actor", blocker.ID, a.ID, models.ErrBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.matches.Like(h.ctx, tt.from, tt.to)
			assertReason(t, tt.want, err)
		})
	}

	count, err := h.store.Likes.Count(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMatchService_MutualFlagIsSymmetric(t *testing.T) {
	h := newHarness(t, "")
	h.tree.User("root", "")
	names := []string{"p", "q", "r", "s"}
	for _, n := range names {
		h.tree.User(n, "root")
	}

	likes := [][2]string{
		{"p", "q"}, {"q", "p"},
		{"p", "r"},
		{"s", "r"}, {"r", "s"},
		{"q", "s"},
	}
	for _, l := range likes {
		_, err := h.matches.Like(h.ctx, h.tree.ID(l[0]), h.tree.ID(l[1]))
		require.NoError(t, err)
	}
	_, err := h.blocks.Block(h.ctx, h.tree.ID("r"), h.tree.ID("s"))
	require.NoError(t, err)

	for _, x := range names {
		for _, y := range names {
			if x == y {
				continue
			}
			xy, err := h.store.Likes.Get(h.ctx, h.tree.ID(x), h.tree.ID(y))
			require.NoError(t, err)
			yx, err := h.store.Likes.Get(h.ctx, h.tree.ID(y), h.tree.ID(x))
			require.NoError(t, err)

			switch {
			case xy != nil && yx != nil:
				assert.Equal(t, xy.IsMutual, yx.IsMutual, "%s/%s", x, y)
				assert.True(t, xy.IsMutual, "%s/%s", x, y)
			case xy != nil:
				assert.False(t, xy.IsMutual, "%s->%s has no reverse edge", x, y)
			}
		}
	}

	mutual, err := h.store.Likes.CountMutual(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mutual)
}

func TestUnlikeOnBlockIsIdempotent(t *testing.T) {
	h := newHarness(t, "")
	h.tree.User("root", "")
	a := h.tree.User("a", "root")
	b := h.tree.User("b", "root")

	require.NoError(t, unlikeOnBlock(h.ctx, h.store, a.ID, b.ID))

	_, err := h.matches.Like(h.ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NoError(t, unlikeOnBlock(h.ctx, h.store, a.ID, b.ID))
	require.NoError(t, unlikeOnBlock(h.ctx, h.store, a.ID, b.ID))

	count, err := h.store.Likes.Count(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMatchService_ConcurrentLikesEndMutual(t *testing.T) {
	h := newHarness(t, "")
	h.tree.User("root", "")
	for round := range 5 {
		a := h.tree.User(fmt.Sprintf("a%d", round), "root")
		b := h.tree.User(fmt.Sprintf("b%d", round), "root")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, pair := range [][2]uint{{a.ID, b.ID}, {b.ID, a.ID}} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = h.matches.Like(h.ctx, pair[0], pair[1])
			}()
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		ab, err := h.store.Likes.Get(h.ctx, a.ID, b.ID)
		require.NoError(t, err)
		ba, err := h.store.Likes.Get(h.ctx, b.ID, a.ID)
		require.NoError(t, err)
		require.NotNil(t, ab)
		require.NotNil(t, ba)
		assert.True(t, ab.IsMutual, "round %d", round)
		assert.True(t, ba.IsMutual, "round %d", round)
	}
	assert.Len(t, h.published.pairs, 5)
}
