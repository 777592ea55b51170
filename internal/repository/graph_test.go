package repository

import (
	"context"
	"testing"

	"treematch/internal/models"
	"treematch/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockRepository_ExcludedIDsIsUnionOfBothDirections(t *testing.T) {
	db := testutil.NewTestDB(t)
	tree := testutil.NewTree(t, db, testutil.NewVault(t))
	tree.User("root", "")
	tree.User("a", "root")
	tree.User("b", "root")
	tree.User("c", "root")

	ctx := context.Background()
	blocks := NewBlockRepository(db)
	require.NoError(t, blocks.Create(ctx, &models.Block{BlockerID: tree.ID("a"), BlockedID: tree.ID("b")}))
	require.NoError(t, blocks.Create(ctx, &models.Block{BlockerID: tree.ID("c"), BlockedID: tree.ID("a")}))
	require.NoError(t, blocks.Create(ctx, &models.Block{BlockerID: tree.ID("b"), BlockedID: tree.ID("a")}))

	ids, err := blocks.ExcludedIDs(ctx, tree.ID("a"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{tree.ID("b"), tree.ID("c")}, ids)

	either, err := blocks.ExistsEither(ctx, tree.ID("root"), tree.ID("a"))
	require.NoError(t, err)
	assert.False(t, either)

	err = blocks.Create(ctx, &models.Block{BlockerID: tree.ID("a"), BlockedID: tree.ID("b")})
	assert.ErrorIs(t, err, models.ErrAlreadyBlocked)
}

func TestUserRepository_Search(t *testing.T) {
	db := testutil.NewTestDB(t)
	tree := testutil.NewTree(t, db, testutil.NewVault(t))
	tree.User("root", "")
	tree.User("young", "root", testutil.WithAge(21), testutil.WithGender(models.GenderFemale), testutil.WithLocation("Haifa"))
	tree.User("old", "root", testutil.WithAge(55), testutil.WithGender(models.GenderMale), testutil.WithLocation("Jerusalem"))
	tree.User("mid", "root", testutil.WithAge(35), testutil.WithGender(models.GenderFemale), testutil.WithLocation("Tel Aviv-Yafo"))
	tree.User("gone", "root", testutil.WithAge(35), testutil.WithGender(models.GenderFemale), testutil.Suspended())

	repo := NewUserRepository(db)
	ctx := context.Background()

	users, total, err := repo.Search(ctx, UserQuery{ExcludeIDs: []uint{tree.ID("root")}, Gender: models.GenderFemale})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 2)

	users, total, err = repo.Search(ctx, UserQuery{MinAge: 31, MaxAge: 40})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, tree.ID("mid"), users[0].ID)

	users, _, err = repo.Search(ctx, UserQuery{Location: "tel aviv"})
	require.NoError(t, err)
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []uint{tree.ID("root"), tree.ID("mid")}, ids)

	users, total, err = repo.Search(ctx, UserQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, users, 2)

	_, total, err = repo.Search(ctx, UserQuery{Location: "100%"})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	tree := testutil.NewTree(t, db, testutil.NewVault(t))
	tree.User("root", "")
	tree.User("a", "root")

	store := NewStore(db)
	ctx := context.Background()
	err := store.Transaction(ctx, func(tx *Store) error {
		if err := tx.Likes.Create(ctx, &models.Like{UserID: tree.ID("a"), LikedUserID: tree.ID("root")}); err != nil {
			return err
		}
		return tx.Referrals.Create(ctx, &models.Referral{ReferrerID: tree.ID("root"), ReferredID: tree.ID("a"), CodeUsed: "x"})
	})
	assert.ErrorIs(t, err, models.ErrAlreadyReferred)

	count, err := store.Likes.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
