package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fortuna/talon/internal/api/rest"
	"github.com/fortuna/talon/internal/api/websocket"
	"github.com/fortuna/talon/internal/fetch"
	"github.com/fortuna/talon/internal/ingest"
	"github.com/fortuna/talon/internal/publisher"
	"github.com/fortuna/talon/internal/store"
	"github.com/fortuna/talon/internal/warehouse"
)

const (
	serviceName    = "talon"
	serviceVersion = "1.2.0"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	log.Printf("Starting %s v%s - Athletics Schedule Ingestion Service", serviceName, serviceVersion)

	config := loadConfig()

	schools, err := loadSchools(config.SchoolsFile)
	if err != nil {
		log.Fatalf("Failed to load schools file: %v", err)
	}
	log.Printf("✓ Loaded %d schools from %s", len(schools), config.SchoolsFile)

	mergeStore, err := store.NewMergeStore(config.DataDir)
	if err != nil {
		log.Fatalf("Failed to open merge store: %v", err)
	}
	log.Printf("✓ Merge store at %s", config.DataDir)

	archiver, err := fetch.NewArchiver(config.ArchiveDir)
	if err != nil {
		log.Fatalf("Failed to create archive dir: %v", err)
	}
	failureLog := fetch.NewFailureLog(config.FailureLogPath)

	fetchCfg := fetch.DefaultConfig()
	fetchCfg.Concurrency = config.FetchConcurrency
	fetchCfg.BatchSize = config.FetchBatchSize

	pages := fetch.NewOrchestrator(fetchCfg, func() (fetch.Fetcher, error) {
		return fetch.NewBrowserFetcher()
	}, archiver, failureLog)

	feeds := fetch.NewOrchestrator(fetchCfg, func() (fetch.Fetcher, error) {
		return fetch.NewFeedClient(), nil
	}, archiver, failureLog)

	// Warehouse mirror is optional; the CSV partitions are the source of truth.
	var wh *warehouse.Warehouse
	if config.WarehouseDSN != "" {
		wh, err = warehouse.New(config.WarehouseDSN)
		if err != nil {
			log.Fatalf("Failed to connect to warehouse: %v", err)
		}
		defer wh.Close()
		if err := wh.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to apply warehouse schema: %v", err)
		}
		log.Println("✓ Connected to warehouse")
	} else {
		log.Println("⚠️  WAREHOUSE_DSN not set, warehouse mirror disabled")
	}

	var redisPublisher *publisher.RedisPublisher
	if config.RedisURL != "" {
		maxRetries := 30
		retryDelay := 2 * time.Second
		log.Println("Initializing Redis publisher...")
		for i := 0; i < maxRetries; i++ {
			redisPublisher, err = publisher.NewRedisPublisher(config.RedisURL)
			if err == nil {
				break
			}
			if i < maxRetries-1 {
				log.Printf("Redis publisher attempt %d/%d failed: %v (retrying in %v)", i+1, maxRetries, err, retryDelay)
				time.Sleep(retryDelay)
			} else {
				log.Fatalf("Failed to initialize Redis publisher after %d attempts: %v", maxRetries, err)
			}
		}
		defer redisPublisher.Close()
		log.Println("✓ Redis publisher initialized")
	} else {
		log.Println("⚠️  REDIS_URL not set, stream publishing disabled")
	}

	runnerCfg := ingest.Config{
		Season:  config.Season,
		Verbose: config.Verbose,
	}
	// interface-typed nils must stay nil, not wrap a nil pointer
	var sink ingest.GameSink
	if wh != nil {
		sink = wh
	}
	var pub ingest.Publisher
	if redisPublisher != nil {
		pub = redisPublisher
	}
	runner := ingest.NewRunner(runnerCfg, mergeStore, pages, feeds, sink, pub)
	runs := ingest.NewRunLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsServer := websocket.NewServer()
	runner.OnEvent = wsServer.BroadcastEvent

	// One run at a time; the API gets a 409 while one is in flight.
	var busy atomic.Bool
	trigger := func(kind string) error {
		if !busy.CompareAndSwap(false, true) {
			return fmt.Errorf("a run is already in progress")
		}
		go func() {
			defer busy.Store(false)
			executeRun(ctx, runner, runs, schools, kind)
		}()
		return nil
	}

	restServer := rest.NewServer(config.RESTPort, mergeStore, runs, trigger)
	go func() {
		log.Printf("Starting REST API server on port %s", config.RESTPort)
		if err := restServer.Start(); err != nil {
			log.Printf("REST server error: %v", err)
		}
	}()
	log.Printf("✓ REST API server listening on :%s", config.RESTPort)

	go func() {
		if err := wsServer.Start(config.WSPort); err != nil {
			log.Printf("WebSocket server error: %v", err)
		}
	}()
	log.Printf("✓ WebSocket server listening on :%s", config.WSPort)

	if config.DailyRunHour >= 0 {
		go runDaily(ctx, config.DailyRunHour, func() {
			if err := trigger("schedules"); err != nil {
				log.Printf("[main] daily run skipped: %v", err)
			}
		})
		log.Printf("✓ Daily schedule run at hour %d UTC", config.DailyRunHour)
	}

	if config.RunOnStart {
		if err := trigger("schedules"); err != nil {
			log.Printf("[main] startup run skipped: %v", err)
		}
	}

	log.Printf("✓ Talon v%s started successfully", serviceVersion)
	log.Printf("  REST API: http://0.0.0.0:%s", config.RESTPort)
	log.Printf("  WebSocket: ws://0.0.0.0:%s", config.WSPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down Talon gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("REST API server shutdown error: %v", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WebSocket server shutdown error: %v", err)
	}

	log.Println("Talon stopped")
}

// executeRun runs one ingestion pass and records the report. A schedule run
// is followed by a box-score run so freshly-final games get stats the same
// cycle.
func executeRun(ctx context.Context, runner *ingest.Runner, runs *ingest.RunLog, schools []ingest.School, kind string) {
	switch kind {
	case "schedules":
		report, err := runner.RunSchedules(ctx, schools)
		runs.Record("schedules", report)
		if err != nil {
			log.Printf("[main] schedule run failed: %v", err)
			return
		}
		statReport, err := runner.RunBoxScores(ctx)
		runs.Record("boxscores", statReport)
		if err != nil {
			log.Printf("[main] box-score run failed: %v", err)
		}
	case "boxscores":
		report, err := runner.RunBoxScores(ctx)
		runs.Record("boxscores", report)
		if err != nil {
			log.Printf("[main] box-score run failed: %v", err)
		}
	default:
		log.Printf("[main] unknown run kind %q", kind)
	}
}

// runDaily fires fn once per day at the given UTC hour.
func runDaily(ctx context.Context, hour int, fn func()) {
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			fn()
		}
	}
}

type Config struct {
	Season           string
	SchoolsFile      string
	DataDir          string
	ArchiveDir       string
	FailureLogPath   string
	WarehouseDSN     string
	RedisURL         string
	RESTPort         string
	WSPort           string
	FetchConcurrency int
	FetchBatchSize   int
	DailyRunHour     int
	RunOnStart       bool
	Verbose          bool
}

func loadConfig() Config {
	return Config{
		Season:           getEnv("SEASON", "2024-25"),
		SchoolsFile:      getEnv("SCHOOLS_FILE", "schools.json"),
		DataDir:          getEnv("DATA_DIR", "data"),
		ArchiveDir:       getEnv("ARCHIVE_DIR", "data/raw"),
		FailureLogPath:   getEnv("FAILURE_LOG", "data/failures.log"),
		WarehouseDSN:     getEnv("WAREHOUSE_DSN", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RESTPort:         getEnv("REST_PORT", "8080"),
		WSPort:           getEnv("WS_PORT", "8081"),
		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 4),
		FetchBatchSize:   getEnvInt("FETCH_BATCH_SIZE", 25),
		DailyRunHour:     getEnvInt("DAILY_RUN_HOUR", 9),
		RunOnStart:       getEnv("RUN_ON_START", "false") == "true",
		Verbose:          getEnv("VERBOSE", "false") == "true",
	}
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

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
