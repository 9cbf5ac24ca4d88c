package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"gameVerifyServer/config"
	"gameVerifyServer/db"
	"gameVerifyServer/registry"
	"gameVerifyServer/sim"
)

func main() {
	seed := flag.String("seed", "weekly-demo", "seed to populate")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	store, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer store.Close()

	svc := registry.NewService(store, registry.OptionsFromConfig(cfg))

	// Test players; repeated strategies on one seed exercise the duplicate path
	testRuns := []struct {
		submitter string
		player    string
		strategy  string
	}{
		{"0x1234567890123456789012345678901234567890", "alice", "safety"},
		{"0xABCDEF0123456789ABCDEF0123456789ABCDEF01", "bob", "growth"},
		{"0x9876543210987654321098765432109876543210", "", "balanced"},
		{"0xDEADBEEF00000000000000000000000DEADBEEF", "dave", "lobby"},
		{"0xCAFEBABE00000000000000000000000CAFEBABE", "erin", "safety"},
		{"0xFEEDFACE00000000000000000000000FEEDFACE", "", "growth"},
		{"0x1234567890123456789012345678901234567890", "alice", "safety"},
	}

	fmt.Printf("Seeding leaderboard for seed %q...\n", *seed)

	for _, r := range testRuns {
		strategy, err := sim.Preset(r.strategy)
		if err != nil {
			log.Fatalf("Bad strategy: %v", err)
		}
		s, err := sim.Play(*seed, strategy, sim.Options{Version: config.DefaultGameVersion})
		if err != nil {
			log.Printf("Failed to play %s: %v", r.strategy, err)
			continue
		}
		sub, err := s.Submission(r.player, time.Now(), 12*time.Minute)
		if err != nil {
			log.Printf("Failed to package %s: %v", r.strategy, err)
			continue
		}
		sub.SubmitterID = r.submitter

		res, err := svc.Submit(ctx, sub)
		if err != nil {
			log.Printf("Failed to submit %s: %v", r.submitter[:10], err)
			continue
		}
		fmt.Printf("  %s... %-9s -> %-14s score %d\n", r.submitter[:10], r.strategy, res.Status, sub.Score)
	}

	fmt.Println("\nDone! Testing leaderboard...")

	entries, err := svc.Leaderboard(ctx, *seed, false, 20)
	if err != nil {
		log.Fatalf("Failed to get leaderboard: %v", err)
	}

	fmt.Printf("\nLeaderboard (%d entries):\n", len(entries))
	for _, e := range entries {
		mark := ""
		if !e.IsOriginal {
			mark = " (duplicate)"
		}
		fmt.Printf("  #%d %-14s %d%s\n", e.Rank, e.SubmitterDisplay, e.Score, mark)
	}
}
