package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/config"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/container"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/middleware"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/service"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

const usage = `Usage: maintenance <command> [args]

Commands:
  sweep                       retry broadcasting undelivered updates
  cleanup [days]              delete updates older than days (default UPDATE_RETENTION_DAYS)
  reconcile [--repair]        compare team totals with their completions
  seed                        load the default challenges and welcome announcement
  token <id> <role>... [ttl]  issue an identity token, e.g. token judge-1 Judge 12h`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// token only needs the secret
	if command == "token" {
		if err := issueToken(cfg, args); err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		return
	}

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := container.New(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer func() {
		if c.RedisClient != nil {
			_ = c.RedisClient.Close()
		}
		c.DB.Close()
	}()

	switch command {
	case "sweep":
		n, err := c.Services.Sweeper.SweepOnce(ctx)
		if err != nil {
			log.Fatalf("Failed to sweep: %v", err)
		}
		fmt.Printf("✅ Delivered %d pending updates\n", n)

	case "cleanup":
		days := cfg.UpdateRetentionDays
		if len(args) > 0 {
			days, err = strconv.Atoi(args[0])
			if err != nil {
				log.Fatalf("Invalid day count %q", args[0])
			}
		}
		n, err := c.Services.Updates.CleanupOldUpdates(ctx, days)
		if err != nil {
			log.Fatalf("Failed to clean up updates: %v", err)
		}
		fmt.Printf("✅ Deleted %d updates older than %d days\n", n, days)

	case "reconcile":
		repair := len(args) > 0 && args[0] == "--repair"
		mismatches, err := c.Services.Teams.ReconcilePoints(ctx, repair)
		if err != nil {
			log.Fatalf("Failed to reconcile points: %v", err)
		}
		if len(mismatches) == 0 {
			fmt.Println("✅ Every team total matches its completions")
			return
		}
		for _, m := range mismatches {
			fmt.Printf("  %s %s: stored %d, completions %d\n", m.TeamNo, m.TeamName, m.Stored, m.Computed)
		}
		if repair {
			fmt.Printf("✅ Repaired %d teams\n", len(mismatches))
		} else {
			fmt.Printf("Found %d mismatched teams, rerun with --repair to fix\n", len(mismatches))
		}

	case "seed":
		result, err := service.Seed(ctx, c.Services.Challenges, c.Services.Announcements, cfg.CompetitionName)
		if err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		out, _ := json.Marshal(result)
		fmt.Printf("✅ Data seeded successfully %s\n", out)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

// issueToken prints a signed token for an operator or scoring device. A
// trailing argument that parses as a duration sets the lifetime.
func issueToken(cfg *config.Config, args []string) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if len(args) < 2 {
		return fmt.Errorf("need an id and at least one role")
	}

	ttl := 24 * time.Hour
	roles := args[1:]
	if d, err := time.ParseDuration(roles[len(roles)-1]); err == nil {
		ttl = d
		roles = roles[:len(roles)-1]
	}
	if len(roles) == 0 {
		return fmt.Errorf("need at least one role")
	}
	for _, role := range roles {
		switch role {
		case domain.RoleAdministrator, domain.RoleJudge, domain.RoleScorekeeper, domain.RoleViewer:
		default:
			return fmt.Errorf("unknown role %q", role)
		}
	}

	token, err := middleware.NewTokenVerifier(cfg.JWTSecret).Issue(domain.Actor{ID: args[0], Name: args[0], Roles: roles}, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
