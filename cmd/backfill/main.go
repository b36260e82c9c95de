package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fortuna/talon/internal/fetch"
	"github.com/fortuna/talon/internal/ingest"
	"github.com/fortuna/talon/internal/store"
)

const (
	appName    = "talon-backfill"
	appVersion = "1.2.0"
)

func main() {
	log.Printf("=== %s v%s ===", appName, appVersion)

	var (
		season      = flag.String("season", getEnv("SEASON", "2024-25"), "Season to backfill (e.g., 2024-25)")
		schoolsFile = flag.String("schools", getEnv("SCHOOLS_FILE", "schools.json"), "Schools JSON file")
		dataDir     = flag.String("data", getEnv("DATA_DIR", "data"), "Partition directory")
		archiveDir  = flag.String("archive", getEnv("ARCHIVE_DIR", "data/raw"), "Raw payload archive directory")
		failureLog  = flag.String("failures", getEnv("FAILURE_LOG", "data/failures.log"), "Failure log path")
		school      = flag.String("school", "", "Backfill a single school by name")
		schedules   = flag.Bool("schedules", true, "Run the schedule pass")
		boxscores   = flag.Bool("boxscores", true, "Run the box-score pass")
		concurrency = flag.Int("concurrency", 4, "Concurrent fetches")
		batchSize   = flag.Int("batch", 25, "Targets per browser lifetime")
		verbose     = flag.Bool("verbose", false, "Verbose extraction logging")
	)

	flag.Parse()

	if !*schedules && !*boxscores {
		log.Fatalf("Nothing to do: enable --schedules and/or --boxscores")
	}

	schools, err := loadSchools(*schoolsFile)
	if err != nil {
		log.Fatalf("load schools: %v", err)
	}
	if *school != "" {
		schools = filterSchool(schools, *school)
		if len(schools) == 0 {
			log.Fatalf("school %q not found in %s", *school, *schoolsFile)
		}
	}

	mergeStore, err := store.NewMergeStore(*dataDir)
	if err != nil {
		log.Fatalf("open merge store: %v", err)
	}

	archiver, err := fetch.NewArchiver(*archiveDir)
	if err != nil {
		log.Fatalf("create archive dir: %v", err)
	}
	failures := fetch.NewFailureLog(*failureLog)

	cfg := fetch.DefaultConfig()
	cfg.Concurrency = *concurrency
	cfg.BatchSize = *batchSize

	pages := fetch.NewOrchestrator(cfg, func() (fetch.Fetcher, error) {
		return fetch.NewBrowserFetcher()
	}, archiver, failures)
	feeds := fetch.NewOrchestrator(cfg, func() (fetch.Fetcher, error) {
		return fetch.NewFeedClient(), nil
	}, archiver, failures)

	runner := ingest.NewRunner(ingest.Config{
		Season:  *season,
		Verbose: *verbose,
	}, mergeStore, pages, feeds, nil, nil)

	ctx := context.Background()

	if *schedules {
		report, err := runner.RunSchedules(ctx, schools)
		if err != nil {
			log.Fatalf("schedule pass failed: %v", err)
		}
		printReport("schedules", report)
	}

	if *boxscores {
		report, err := runner.RunBoxScores(ctx)
		if err != nil {
			log.Fatalf("box-score pass failed: %v", err)
		}
		printReport("boxscores", report)
	}

	log.Println("✓ Backfill completed successfully")
}

func printReport(kind string, r ingest.RunReport) {
	log.Printf("[%s] season=%s attempted=%d succeeded=%d failed=%d games=%d rows=%d stat_lines=%d (%v)",
		kind, r.Season, r.TargetsAttempted, r.TargetsSucceeded, r.TargetsFailed,
		r.GamesFound, r.RowsMerged, r.StatLinesFound, r.Duration)
}

func loadSchools(path string) ([]ingest.School, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var schools []ingest.School
	if err := json.Unmarshal(data, &schools); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return schools, nil
}

func filterSchool(schools []ingest.School, name string) []ingest.School {
	var out []ingest.School
	for _, s := range schools {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
