// Command main runs the database seeder for treematch.
package main

import (
	"context"
	"flag"
	"log"

	"treematch/internal/bootstrap"
	"treematch/internal/config"
	"treematch/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create, root included")
	maxChildren := flag.Int("max-children", defaults.MaxChildren, "Maximum direct referrals per user")
	likes := flag.Int("likes", defaults.LikesPerUser, "Likes sent per user")
	likeBack := flag.Float64("like-back", defaults.LikeBack, "Probability that a like is returned")
	blocks := flag.Int("blocks", defaults.NumBlocks, "Number of blocks to create")
	messages := flag.Int("messages", defaults.Messages, "Messages exchanged per mutual match")
	password := flag.String("password", defaults.Password, "Password shared by every seeded user")
	rngSeed := flag.Int64("seed", defaults.Seed, "Random seed; the same seed produces the same tree")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users, max %d children, %d likes each, %d blocks, clean=%v",
		*numUsers, *maxChildren, *likes, *blocks, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()

	s, err := seed.NewSeeder(rt.DB, rt.Vault, seed.Options{
		NumUsers:     *numUsers,
		MaxChildren:  *maxChildren,
		LikesPerUser: *likes,
		LikeBack:     *likeBack,
		NumBlocks:    *blocks,
		Messages:     *messages,
		Password:     *password,
		Seed:         *rngSeed,
		ShouldClean:  *shouldClean,
	})
	if err != nil {
		log.Fatalf("Failed to create seeder: %v", err)
	}
	stats, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d referrals, %d likes (%d mutual), %d blocks, %d messages",
		stats.TotalUsers, stats.TotalReferrals, stats.TotalLikes, stats.MutualMatches, stats.TotalBlocks,
		stats.TotalMessages)
	log.Printf("Root account: %s", seed.RootEmail)
	log.Printf("All seeded users have the password: %s", *password)
}
