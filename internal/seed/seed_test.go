package seed

import (
	"context"
	"testing"

	"treematch/internal/models"
	"treematch/internal/repository"
	"treematch/internal/service"
	"treematch/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_GrowsHealthyTree(t *testing.T) {
	db := testutil.NewTestDB(t)
	vault := testutil.NewVault(t)
	ctx := context.Background()

	opts := DefaultOptions()
	opts.NumUsers = 25
	opts.MaxChildren = 3
	opts.Seed = 42

	seeder, err := NewSeeder(db, vault, opts)
	require.NoError(t, err)
	stats, err := seeder.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(25), stats.TotalUsers)
	assert.Equal(t, int64(24), stats.TotalReferrals)

	store := repository.NewStore(db)
	report, err := service.NewReferralService(store, vault, service.DefaultTreeLimits()).VerifyTree(ctx)
	require.NoError(t, err)
	assert.True(t, report.Healthy, "%+v", report)

	var likes []models.Like
	require.NoError(t, db.Find(&likes).Error)
	byPair := map[[2]uint]models.Like{}
	for _, l := range likes {
		byPair[[2]uint{l.UserID, l.LikedUserID}] = l
	}
	for _, l := range likes {
		reverse, ok := byPair[[2]uint{l.LikedUserID, l.UserID}]
		assert.Equal(t, ok, l.IsMutual, "like %d -> %d", l.UserID, l.LikedUserID)
		if ok {
			assert.True(t, reverse.IsMutual)
		}
	}

	var blocks []models.Block
	require.NoError(t, db.Find(&blocks).Error)
	for _, b := range blocks {
		_, liked := byPair[[2]uint{b.BlockerID, b.BlockedID}]
		assert.False(t, liked, "blocker %d still likes %d", b.BlockerID, b.BlockedID)
	}

	var messages []models.Message
	require.NoError(t, db.Find(&messages).Error)
	assert.EqualValues(t, len(messages), stats.TotalMessages)
	assert.Zero(t, len(messages)%opts.Messages, "every seeded chat gets the same number of lines")
	for _, m := range messages {
		var chat models.Chat
		require.NoError(t, db.First(&chat, m.ChatID).Error)
		assert.True(t, chat.Has(m.SenderID), "message %d sent outside its chat", m.ID)
	}

	var counts []int64
	require.NoError(t, db.Model(&models.Referral{}).Group("referrer_id").Pluck("COUNT(*)", &counts).Error)
	for _, c := range counts {
		assert.LessOrEqual(t, c, int64(3))
	}
}

func TestSeeder_RefusesNonEmptyDatabase(t *testing.T) {
	db := testutil.NewTestDB(t)
	vault := testutil.NewVault(t)
	testutil.NewTree(t, db, vault).User("someone", "")

	opts := DefaultOptions()
	opts.NumUsers = 3
	seeder, err := NewSeeder(db, vault, opts)
	require.NoError(t, err)
	_, err = seeder.Run(context.Background())
	require.Error(t, err)

	opts.ShouldClean = true
	seeder, err = NewSeeder(db, vault, opts)
	require.NoError(t, err)
	stats, err := seeder.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
}

func TestFactory_BuildUserEncryptsIdentity(t *testing.T) {
	vault := testutil.NewVault(t)
	f, err := NewFactory(nil, vault, 7, "Treematch-Demo-1")
	require.NoError(t, err)

	id := f.FakeIdentity()
	other := f.FakeIdentity()
	assert.NotEqual(t, id.Email, other.Email)

	u, err := f.BuildUser(id, func(u *models.User) { u.Location = "Haifa" })
	require.NoError(t, err)
	assert.Equal(t, "Haifa", u.Location)
	assert.Equal(t, vault.Fingerprint(id.Email), u.EmailFingerprint)

	name, err := vault.Decrypt(u.FullNameEncrypted)
	require.NoError(t, err)
	assert.Equal(t, id.FullName, name)
	require.NotNil(t, u.Age)
	assert.GreaterOrEqual(t, *u.Age, 21)
	assert.Contains(t, []string{models.GenderMale, models.GenderFemale, models.GenderOther}, u.Gender)
}
