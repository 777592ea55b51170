// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"treematch/internal/bootstrap"
	"treematch/internal/config"
	"treematch/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|rollback|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipMigrations: true})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(ctx) }()

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.RunMigrations(ctx, rt.DB); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		log.Println("migrations applied")
	case "rollback":
		if err := database.RollbackLast(ctx, rt.DB); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Println("rolled back last migration")
	case "status":
		status, err := database.GetSchemaStatus(ctx, rt.DB)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		log.Printf("driver=%s applied=%d pending=%d", status.Driver, len(status.Applied), len(status.Pending))
		for _, id := range status.Pending {
			log.Printf("pending: %s", id)
		}
	default:
		return usage()
	}
	return nil
}
