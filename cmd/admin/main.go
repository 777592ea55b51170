// Package main provides admin management utilities for treematch.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"treematch/internal/bootstrap"
	"treematch/internal/config"
	"treematch/internal/repository"
	"treematch/internal/service"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin init-root <email> <full_name>  - Create the root account (password from ROOT_PASSWORD)")
	fmt.Println("  go run ./cmd/admin verify-tree                    - Check referral tree integrity")
	fmt.Println("  go run ./cmd/admin suspend <user_id>              - Suspend a user")
	fmt.Println("  go run ./cmd/admin unsuspend <user_id>            - Lift a suspension")
}

type services struct {
	auth      *service.AuthService
	referrals *service.ReferralService
	admin     *service.AdminService
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()

	store := repository.NewStore(rt.DB)
	referrals := service.NewReferralService(store, rt.Vault, service.TreeLimits{
		ChainMaxDepth:  cfg.ReferralChainMaxDepth,
		TreeMaxDepth:   cfg.ReferralTreeMaxDepth,
		TreeDepthLimit: cfg.ReferralTreeDepthLimit,
	})
	svc := services{
		referrals: referrals,
		admin:     service.NewAdminService(store, rt.Vault, referrals),
		auth: service.NewAuthService(store, rt.Vault, referrals, service.AuthConfig{
			JWTSecret:     cfg.JWTSecret,
			TokenTTL:      time.Duration(cfg.JWTTTLHours) * time.Hour,
			SetupPassword: cfg.AdminSetupPassword,
		}),
	}

	switch command := os.Args[1]; command {
	case "init-root":
		if len(os.Args) < 4 {
			fmt.Println("Usage: go run ./cmd/admin init-root <email> <full_name>")
			os.Exit(1)
		}
		err = initRoot(ctx, svc, os.Args[2], os.Args[3], os.Getenv("ROOT_PASSWORD"), cfg.AdminSetupPassword)
	case "verify-tree":
		err = verifyTree(ctx, svc)
	case "suspend", "unsuspend":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <user_id>\n", command)
			os.Exit(1)
		}
		err = setSuspended(ctx, svc, os.Args[2], command == "suspend")
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func initRoot(ctx context.Context, svc services, email, fullName, password, setupPassword string) error {
	if password == "" {
		return fmt.Errorf("ROOT_PASSWORD must be set")
	}
	res, err := svc.auth.InitializeRoot(ctx, service.RootInput{
		Email:         email,
		Password:      password,
		FullName:      fullName,
		SetupPassword: setupPassword,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Root account %d created. Referral code: %s\n", res.User.ID, res.User.ReferralCode)
	return nil
}

func verifyTree(ctx context.Context, svc services) error {
	report, err := svc.referrals.VerifyTree(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !report.Healthy {
		return fmt.Errorf("referral tree is unhealthy")
	}
	return nil
}

// setSuspended acts as the root so the same guards as the HTTP admin API apply.
func setSuspended(ctx context.Context, svc services, rawID string, suspend bool) error {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", rawID)
	}
	report, err := svc.referrals.VerifyTree(ctx)
	if err != nil {
		return err
	}
	if len(report.RootIDs) != 1 {
		return fmt.Errorf("expected exactly one root, found %d", len(report.RootIDs))
	}
	root := report.RootIDs[0]

	if suspend {
		err = svc.admin.Suspend(ctx, root, uint(id))
	} else {
		err = svc.admin.Unsuspend(ctx, root, uint(id))
	}
	if err != nil {
		return err
	}
	fmt.Printf("User %d suspended=%t\n", id, suspend)
	return nil
}
