package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"treematch/internal/middleware"
	"treematch/internal/models"
	"treematch/internal/repository"
	"treematch/internal/secure"
	"treematch/internal/service"

	"gorm.io/gorm"
)

// RootEmail is the login of the seeded root user.
const RootEmail = "root@treematch.local"

// Options configuration for the seeder
type Options struct {
	NumUsers     int     // including the root
	MaxChildren  int     // direct referrals per user
	LikesPerUser int     // like attempts per user
	LikeBack     float64 // probability a liked user likes back
	NumBlocks    int
	Messages     int    // messages exchanged per mutual match
	Password     string // shared by every seeded user
	Seed         int64  // 0 means time-based
	ShouldClean  bool
}

// DefaultOptions is a small tree suitable for local development.
func DefaultOptions() Options {
	return Options{
		NumUsers:     50,
		MaxChildren:  4,
		LikesPerUser: 3,
		LikeBack:     0.4,
		NumBlocks:    5,
		Messages:     4,
		Password:     "Treematch-Demo-1",
	}
}

// Seeder grows a demo referral tree and a social graph over it.
// Edges, likes and blocks go through the services so every invariant holds.
type Seeder struct {
	db        *gorm.DB
	opts      Options
	factory   *Factory
	store     *repository.Store
	referrals *service.ReferralService
	matches   *service.MatchService
	blocks    *service.BlockService
	chats     *service.ChatService
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, vault *secure.Vault, opts Options) (*Seeder, error) {
	def := DefaultOptions()
	if opts.NumUsers <= 0 {
		opts.NumUsers = def.NumUsers
	}
	if opts.MaxChildren <= 0 {
		opts.MaxChildren = def.MaxChildren
	}
	if opts.Password == "" {
		opts.Password = def.Password
	}

	factory, err := NewFactory(db, vault, opts.Seed, opts.Password)
	if err != nil {
		return nil, err
	}
	store := repository.NewStore(db)
	referrals := service.NewReferralService(store, vault, service.DefaultTreeLimits())
	blocks := service.NewBlockService(store, vault)
	return &Seeder{
		db:        db,
		opts:      opts,
		factory:   factory,
		store:     store,
		referrals: referrals,
		matches:   service.NewMatchService(store, vault, nil),
		blocks:    blocks,
		chats:     service.NewChatService(store, vault, blocks, nil),
	}, nil
}

// Run seeds the database and returns the resulting counts.
// It refuses to touch a non-empty database unless ShouldClean is set.
func (s *Seeder) Run(ctx context.Context) (*models.AdminStats, error) {
	log := middleware.Logger
	log.InfoContext(ctx, "Starting database seeding", slog.Int("users", s.opts.NumUsers))

	if s.opts.ShouldClean {
		if err := Clear(ctx, s.db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}
	count, err := s.store.Users.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("database already has users; rerun with clean to replace them")
	}

	users, err := s.growTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("grow tree: %w", err)
	}
	log.InfoContext(ctx, "Referral tree created", slog.Int("users", len(users)))

	if err := s.seedLikes(ctx, users); err != nil {
		return nil, fmt.Errorf("seed likes: %w", err)
	}
	if err := s.seedMessages(ctx, users); err != nil {
		return nil, fmt.Errorf("seed messages: %w", err)
	}
	if err := s.seedBlocks(ctx, users); err != nil {
		return nil, fmt.Errorf("seed blocks: %w", err)
	}

	stats, err := s.stats(ctx)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "Database seeding completed",
		slog.Int64("users", stats.TotalUsers),
		slog.Int64("likes", stats.TotalLikes),
		slog.Int64("mutual_matches", stats.MutualMatches),
		slog.Int64("blocks", stats.TotalBlocks),
		slog.Int64("messages", stats.TotalMessages),
	)
	return stats, nil
}

// growTree creates the root and attaches every other user below a random
// referrer that still has room for children.
func (s *Seeder) growTree(ctx context.Context) ([]*models.User, error) {
	root, err := s.factory.CreateUser(Identity{Email: RootEmail, FullName: "Tree Root"})
	if err != nil {
		return nil, err
	}
	users := []*models.User{root}
	children := map[uint]int{}
	open := []*models.User{root}

	for len(users) < s.opts.NumUsers {
		i := s.factory.Intn(len(open))
		parent := open[i]

		child, err := s.factory.CreateUser(s.factory.FakeIdentity())
		if err != nil {
			return nil, err
		}
		if _, err := s.referrals.Register(ctx, nil, parent.ReferralCode, child.ID); err != nil {
			return nil, err
		}

		users = append(users, child)
		open = append(open, child)
		children[parent.ID]++
		if children[parent.ID] >= s.opts.MaxChildren {
			open = append(open[:i], open[i+1:]...)
		}
	}
	return users, nil
}

func (s *Seeder) seedLikes(ctx context.Context, users []*models.User) error {
	if len(users) < 2 {
		return nil
	}
	for _, u := range users {
		for range s.opts.LikesPerUser {
			target := users[s.factory.Intn(len(users))]
			res, err := s.matches.Like(ctx, u.ID, target.ID)
			if skippable(err) {
				continue
			}
			if err != nil {
				return err
			}
			if !res.IsMutual && s.factory.Chance(s.opts.LikeBack) {
				if _, err := s.matches.Like(ctx, target.ID, u.ID); err != nil && !skippable(err) {
					return err
				}
			}
		}
	}
	return nil
}

// seedMessages has every mutual match trade a few lines, alternating senders.
func (s *Seeder) seedMessages(ctx context.Context, users []*models.User) error {
	for _, u := range users {
		matches, err := s.store.Likes.Matches(ctx, u.ID)
		if err != nil {
			return err
		}
		for _, m := range matches {
			// Each pair is visited from both sides; the lower id starts it.
			if u.ID > m.LikedUserID {
				continue
			}
			from, to := u.ID, m.LikedUserID
			for range s.opts.Messages {
				req := models.SendMessageRequest{RecipientID: to, Content: s.factory.Line()}
				if _, err := s.chats.Send(ctx, from, req); err != nil {
					return err
				}
				from, to = to, from
			}
		}
	}
	return nil
}

func (s *Seeder) seedBlocks(ctx context.Context, users []*models.User) error {
	if len(users) < 2 {
		return nil
	}
	for range s.opts.NumBlocks {
		a := users[s.factory.Intn(len(users))]
		b := users[s.factory.Intn(len(users))]
		if _, err := s.blocks.Block(ctx, a.ID, b.ID); err != nil && !skippable(err) {
			return err
		}
	}
	return nil
}

func (s *Seeder) stats(ctx context.Context) (*models.AdminStats, error) {
	stats := &models.AdminStats{}
	var err error
	if stats.TotalUsers, err = s.store.Users.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalReferrals, err = s.store.Referrals.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalLikes, err = s.store.Likes.Count(ctx); err != nil {
		return nil, err
	}
	if stats.MutualMatches, err = s.store.Likes.CountMutual(ctx); err != nil {
		return nil, err
	}
	if stats.TotalBlocks, err = s.store.Blocks.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalMessages, err = s.store.Chats.CountMessages(ctx); err != nil {
		return nil, err
	}
	stats.ActiveUsers = stats.TotalUsers
	return stats, nil
}

// skippable reports random collisions the seeder ignores: self-targets and duplicates.
func skippable(err error) bool {
	if err == nil {
		return false
	}
	code := models.AsAppError(err).Code
	return code == models.CodeConflict
}

// Clear deletes every row from the graph tables, children first.
func Clear(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.WarnContext(ctx, "Clearing existing data")
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, m := range []any{&models.Message{}, &models.Chat{}, &models.Like{}, &models.Block{}, &models.Referral{}, &models.User{}} {
			if err := all.Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
