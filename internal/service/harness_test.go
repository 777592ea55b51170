package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"treematch/internal/featureflags"
	"treematch/internal/models"
	"treematch/internal/repository"
	"treematch/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSetupPassword = "root-setup-secret"

type recordingPublisher struct {
	mu       sync.Mutex
	pairs    [][2]uint
	messages [][3]uint
}

func (p *recordingPublisher) PublishMatch(_ context.Context, a, b uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs = append(p.pairs, [2]uint{a, b})
	return nil
}

func (p *recordingPublisher) PublishMessage(_ context.Context, fromID, toID, chatID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, [3]uint{fromID, toID, chatID})
	return nil
}

type harness struct {
	ctx       context.Context
	store     *repository.Store
	tree      *testutil.Tree
	published *recordingPublisher

	referrals *ReferralService
	matches   *MatchService
	blocks    *BlockService
	chats     *ChatService
	discovery *DiscoveryService
	auth      *AuthService
	admin     *AdminService
}

func newHarness(t *testing.T, flags string) *harness {
	t.Helper()
	db := testutil.NewTestDB(t)
	vault := testutil.NewVault(t)
	store := repository.NewStore(db)
	pub := &recordingPublisher{}

	referrals := NewReferralService(store, vault, DefaultTreeLimits())
	blocks := NewBlockService(store, vault)
	return &harness{
		ctx:       context.Background(),
		store:     store,
		tree:      testutil.NewTree(t, db, vault),
		published: pub,
		referrals: referrals,
		matches:   NewMatchService(store, vault, pub),
		blocks:    blocks,
		chats:     NewChatService(store, vault, blocks, pub),
		discovery: NewDiscoveryService(store, vault, referrals, blocks, featureflags.NewManager(flags), DefaultSearchLimits()),
		auth: NewAuthService(store, vault, referrals, AuthConfig{
			JWTSecret:     "test-secret-at-least-32-characters!!",
			TokenTTL:      time.Hour,
			SetupPassword: testSetupPassword,
		}),
		admin: NewAdminService(store, vault, referrals),
	}
}

// assertReason checks that err is an AppError carrying the given sentinel's reason.
func assertReason(t *testing.T, want *models.AppError, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, want), "expected %s, got %v", want.Reason, err)
}

func assertCode(t *testing.T, code string, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, models.AsAppError(err).Code, "unexpected error %v", err)
}

func refIDs(refs []models.UserRef) []uint {
	ids := make([]uint, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}

func cardIDs(cards []models.ProfileCard) []uint {
	ids := make([]uint, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}
