package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/fortuna/talon/internal/fetch"
	"github.com/fortuna/talon/internal/ingest/sidearm"
)

// Simple test utility to verify schedule scraping against a live site.
// Usage: go run scripts/test-schedule-scraper.go <team name> <schedule url>
func main() {
	log.Println("Testing Sidearm Schedule Scraper")
	log.Println("================================")

	if len(os.Args) < 3 {
		log.Fatalf("usage: %s <team name> <schedule url>", os.Args[0])
	}
	teamName := os.Args[1]
	pageURL := os.Args[2]

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	browser, err := fetch.NewBrowserFetcher()
	if err != nil {
		log.Fatalf("Failed to start browser: %v", err)
	}
	defer browser.Close()

	log.Printf("\n1. Fetching %s...", pageURL)
	payload, err := browser.Fetch(ctx, fetch.Target{
		Kind: fetch.KindSchedule,
		URL:  pageURL,
		Team: teamName,
	})
	if err != nil {
		log.Fatalf("Failed to fetch schedule: %v", err)
	}
	log.Printf("✓ Retrieved HTML content (%d bytes)", len(payload))

	log.Println("\n2. Extracting games...")
	engine := sidearm.New()
	games := engine.ExtractSchedule([]byte(payload), sidearm.Context{
		TeamName:    teamName,
		PageURL:     pageURL,
		AssumedYear: time.Now().Year(),
		Verbose:     true,
	})
	log.Printf("✓ Found %d games\n", len(games))

	if len(games) == 0 {
		log.Println("No games extracted")
		log.Println("(Check whether the site uses a Sidearm template)")
		return
	}

	for i, game := range games {
		log.Printf("\nGame %d:", i+1)
		log.Printf("  %s at %s", game.AwayTeamName, game.HomeTeamName)
		log.Printf("  Date: %s  Location: %s  Status: %s", game.Date, game.LocationType, game.Status)
		if game.HomeScore != nil && game.AwayScore != nil {
			log.Printf("  Score: %d - %d", *game.AwayScore, *game.HomeScore)
		}
		if game.BoxscoreURL != "" {
			log.Printf("  Box score: %s", game.BoxscoreURL)
		}
	}

	log.Println("\n================================")
	log.Println("Scraper test complete")
}
