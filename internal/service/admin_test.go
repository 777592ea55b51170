package service

import (
	"testing"

	"treematch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminService_RootOnly(t *testing.T) {
	h := newHarness(t, "")
	h.tree.User("root", "")
	a := h.tree.User("a", "root")
	b := h.tree.User("b", "a")

	_, err := h.admin.Stats(h.ctx, a.ID)
	assertReason(t, models.ErrAdminOnly, err)
	_, err = h.admin.ListUsers(h.ctx, a.ID, 1, 20, "")
	assertReason(t, models.ErrAdminOnly, err)
	assertReason(t, models.ErrAdminOnly, h.admin.Suspend(h.ctx, a.ID, b.ID))
	assertReason(t, models.ErrAdminOnly, h.admin.DeleteUser(h.ctx, a.ID, b.ID))
	_, err = h.admin.VerifyTree(h.ctx, 99999)
	assertReason(t, models.ErrAdminOnly, err)

	root := h.tree.ID("root")
	assertReason(t, models.ErrRootProtected, h.admin.Suspend(h.ctx, root, root))
	assertReason(t, models.ErrRootProtected, h.admin.DeleteUser(h.ctx, root, root))
	assertCode(t, models.CodeNotFound, h.admin.Suspend(h.ctx, root, 99999))
}

func TestAdminService_SuspendAndStats(t *testing.T) {
	h := newHarness(t, "")
	root := h.tree.User("root", "").ID
	a := h.tree.User("a", "root")
	b := h.tree.User("b", "root")
	c := h.tree.User("c", "a")

	_, err := h.matches.Like(h.ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = h.matches.Like(h.ctx, b.ID, a.ID)
	require.NoError(t, err)
	_, err = h.matches.Like(h.ctx, c.ID, b.ID)
	require.NoError(t, err)
	_, err = h.chats.Send(h.ctx, a.ID, models.SendMessageRequest{RecipientID: b.ID, Content: "hi"})
	require.NoError(t, err)
	_, err = h.blocks.Block(h.ctx, c.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, h.admin.Suspend(h.ctx, root, b.ID))

	stats, err := h.admin.Stats(h.ctx, root)
	require.NoError(t, err)
	assert.Equal(t, &models.AdminStats{
		TotalUsers:     4,
		ActiveUsers:    3,
		SuspendedUsers: 1,
		TotalReferrals: 3,
		TotalLikes:     3,
		MutualMatches:  1,
		TotalBlocks:    1,
		TotalMessages:  1,
	}, stats)

	page, err := h.admin.ListUsers(h.ctx, root, 1, 20, StatusSuspended)
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, b.ID, page.Users[0].ID)
	assert.Equal(t, "b@example.com", page.Users[0].Email)
	require.NotNil(t, page.Users[0].ReferrerID)
	assert.Equal(t, root, *page.Users[0].ReferrerID)

	page, err = h.admin.ListUsers(h.ctx, root, 1, 20, StatusAll)
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Pagination.Total)
	for _, row := range page.Users {
		assert.Equal(t, row.ID == root, row.IsRoot)
		if row.ID == a.ID {
			assert.Equal(t, int64(1), row.DirectCount)
		}
	}

	_, err = h.admin.ListUsers(h.ctx, root, 1, 20, "banned")
	assertCode(t, models.CodeValidation, err)
	_, err = h.admin.ListUsers(h.ctx, root, models.MaxPage+1, 20, StatusAll)
	assertCode(t, models.CodeValidation, err)

	require.NoError(t, h.admin.Unsuspend(h.ctx, root, b.ID))
	stats, err = h.admin.Stats(h.ctx, root)
	require.NoError(t, err)
	assert.Zero(t, stats.SuspendedUsers)
}

func TestAdminService_DeleteUser(t *testing.T) {
	h := newHarness(t, "")
	root := h.tree.User("root", "").ID
	a := h.tree.User("a", "root")
	b := h.tree.User("b", "a")
	c := h.tree.User("c", "root")

	_, err := h.matches.Like(h.ctx, b.ID, c.ID)
	require.NoError(t, err)
	_, err = h.matches.Like(h.ctx, c.ID, b.ID)
	require.NoError(t, err)
	_, err = h.chats.Send(h.ctx, b.ID, models.SendMessageRequest{RecipientID: c.ID, Content: "hi"})
	require.NoError(t, err)
	_, err = h.blocks.Block(h.ctx, a.ID, b.ID)
	require.NoError(t, err)

	assertReason(t, models.ErrHasReferrals, h.admin.DeleteUser(h.ctx, root, a.ID))

	require.NoError(t, h.admin.DeleteUser(h.ctx, root, b.ID))
	assertCode(t, models.CodeNotFound, h.admin.DeleteUser(h.ctx, root, b.ID))

	likes, err := h.store.Likes.Count(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, likes)
	blocks, err := h.store.Blocks.Count(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, blocks)
	messages, err := h.store.Chats.CountMessages(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, messages)
	convs, err := h.chats.Conversations(h.ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, convs)

	report, err := h.admin.VerifyTree(h.ctx, root)
	require.NoError(t, err)
	assert.True(t, report.Healthy)
	assert.Equal(t, 3, report.UserCount)

	// a is a leaf now and can go too.
	require.NoError(t, h.admin.DeleteUser(h.ctx, root, a.ID))
}
