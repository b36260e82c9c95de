// Package ingest wires the pipeline together: the fetch orchestrator
// retrieves documents, the sidearm engine extracts records, and the merge
// store persists the unioned dataset. Warehouse and publisher sinks are
// optional fan-outs for downstream consumers.
package ingest

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/talon/internal/fetch"
	"github.com/fortuna/talon/internal/ingest/sidearm"
	"github.com/fortuna/talon/internal/store"
)

// School is one configured source site. Schools exposing the JSON feed are
// fetched over plain HTTP; the rest need the rendered schedule page.
type School struct {
	Name        string `json:"name"`
	ScheduleURL string `json:"schedule_url"`
	FeedURL     string `json:"feed_url,omitempty"`
}

// GameSink receives merged records after each upsert; the postgres warehouse
// implements it. The CSV partition stays the source of truth.
type GameSink interface {
	UpsertGames(ctx context.Context, season string, games []store.Game) error
	UpsertPlayerStats(ctx context.Context, season string, stats []store.PlayerStat) error
}

// Publisher emits a stream event per merged game; the redis publisher
// implements it.
type Publisher interface {
	PublishGameUpdate(ctx context.Context, season string, game store.Game) error
}

// Event is a progress notification for observers (the websocket hub).
type Event struct {
	Type    string     `json:"type"`
	Message string     `json:"message"`
	Report  *RunReport `json:"report,omitempty"`
}

// RunReport is the user-visible outcome of one run.
type RunReport struct {
	Season           string        `json:"season"`
	TargetsAttempted int           `json:"targets_attempted"`
	TargetsSucceeded int           `json:"targets_succeeded"`
	TargetsFailed    int           `json:"targets_failed"`
	GamesFound       int           `json:"games_found"`
	RowsMerged       int           `json:"rows_merged"`
	StatLinesFound   int           `json:"stat_lines_found"`
	StatLinesMerged  int           `json:"stat_lines_merged"`
	Duration         time.Duration `json:"duration"`
	CompletedAt      time.Time     `json:"completed_at"`
}

// Config holds the per-run constants.
type Config struct {
	Season  string // e.g. "2024-25"; also the partition key
	Verbose bool
}

// Runner executes schedule and box-score ingestion runs.
type Runner struct {
	cfg       Config
	engine    *sidearm.Engine
	store     *store.MergeStore
	pages     *fetch.Orchestrator // browser-backed, for rendered pages
	feeds     *fetch.Orchestrator // plain HTTP, for the JSON feed
	warehouse GameSink    // optional
	publisher Publisher   // optional
	OnEvent   func(Event) // optional progress hook
}

// NewRunner wires a runner; warehouse and publisher may be nil.
func NewRunner(cfg Config, st *store.MergeStore, pages, feeds *fetch.Orchestrator, warehouse GameSink, publisher Publisher) *Runner {
	return &Runner{
		cfg:       cfg,
		engine:    sidearm.New(),
		store:     st,
		pages:     pages,
		feeds:     feeds,
		warehouse: warehouse,
		publisher: publisher,
	}
}

// RunSchedules ingests every school's schedule and merges the games into the
// season partition. Individual fetch or parse failures never abort the run;
// only a store write failure does.
func (r *Runner) RunSchedules(ctx context.Context, schools []School) (RunReport, error) {
	start := time.Now()
	report := RunReport{Season: r.cfg.Season}

	var feedTargets, pageTargets []fetch.Target
	for _, school := range schools {
		if school.FeedURL != "" {
			feedTargets = append(feedTargets, fetch.Target{Kind: fetch.KindFeed, URL: school.FeedURL, Team: school.Name})
			continue
		}
		pageTargets = append(pageTargets, fetch.Target{Kind: fetch.KindSchedule, URL: school.ScheduleURL, Team: school.Name})
	}

	r.notify(Event{Type: "run_start", Message: fmt.Sprintf("schedule run: %d schools", len(schools))})

	var games []store.Game
	for _, pass := range []struct {
		orch    *fetch.Orchestrator
		targets []fetch.Target
	}{
		{r.feeds, feedTargets},
		{r.pages, pageTargets},
	} {
		if len(pass.targets) == 0 {
			continue
		}
		results, fr, err := pass.orch.Run(ctx, pass.targets)
		report.TargetsAttempted += fr.Attempted
		report.TargetsSucceeded += fr.Succeeded
		report.TargetsFailed += fr.Failed
		if err != nil {
			return report, fmt.Errorf("fetch run: %w", err)
		}
		for _, res := range results {
			if !res.OK() {
				continue
			}
			extracted := r.engine.ExtractSchedule([]byte(res.Payload), r.extractContext(res.Target))
			if len(extracted) == 0 {
				// Valid but unfortunate; worth a line in the log.
				log.Printf("[ingest] %s yielded zero games (%s)", res.Target.Team, res.Target.Kind)
			}
			games = append(games, extracted...)
		}
	}
	report.GamesFound = len(games)

	merged, err := r.store.UpsertGames(games, r.cfg.Season)
	if err != nil {
		return report, fmt.Errorf("upserting games: %w", err)
	}
	report.RowsMerged = merged

	r.fanOutGames(ctx, r.mergedGames(games))

	report.Duration = time.Since(start)
	report.CompletedAt = time.Now().UTC()
	log.Printf("[ingest] schedule run complete: %d games found, %d rows in partition %s (%v)",
		report.GamesFound, report.RowsMerged, r.cfg.Season, report.Duration.Round(time.Second))
	r.notify(Event{Type: "run_complete", Message: "schedule run complete", Report: &report})
	return report, nil
}

// RunBoxScores fetches the box-score page of every final game in the
// partition that has one, and merges the extracted stat lines.
func (r *Runner) RunBoxScores(ctx context.Context) (RunReport, error) {
	start := time.Now()
	report := RunReport{Season: r.cfg.Season}

	games, err := r.store.LoadGames(r.cfg.Season)
	if err != nil {
		return report, fmt.Errorf("loading partition: %w", err)
	}

	byURL := make(map[string]store.Game)
	var targets []fetch.Target
	for _, g := range games {
		if g.BoxscoreURL == "" || g.Status != store.StatusFinal {
			continue
		}
		if _, seen := byURL[g.BoxscoreURL]; seen {
			continue
		}
		byURL[g.BoxscoreURL] = g
		targets = append(targets, fetch.Target{
			Kind: fetch.KindBoxscore,
			URL:  g.BoxscoreURL,
			Team: g.HomeTeamName,
			Date: g.Date,
		})
	}

	r.notify(Event{Type: "run_start", Message: fmt.Sprintf("box-score run: %d games", len(targets))})

	results, fr, err := r.pages.Run(ctx, targets)
	report.TargetsAttempted = fr.Attempted
	report.TargetsSucceeded = fr.Succeeded
	report.TargetsFailed = fr.Failed
	if err != nil {
		return report, fmt.Errorf("fetch run: %w", err)
	}

	var stats []store.PlayerStat
	for _, res := range results {
		if !res.OK() {
			continue
		}
		game := byURL[res.Target.URL]
		ectx := r.extractContext(res.Target)
		ectx.GameID = game.GameID
		stats = append(stats, r.engine.ExtractBoxScore([]byte(res.Payload), ectx)...)
	}
	report.StatLinesFound = len(stats)

	merged, err := r.store.UpsertPlayerStats(stats, r.cfg.Season)
	if err != nil {
		return report, fmt.Errorf("upserting player stats: %w", err)
	}
	report.StatLinesMerged = merged

	if r.warehouse != nil && len(stats) > 0 {
		if err := r.warehouse.UpsertPlayerStats(ctx, r.cfg.Season, r.mergedStats(stats)); err != nil {
			log.Printf("[ingest] warehouse stat mirror failed: %v", err)
		}
	}

	report.Duration = time.Since(start)
	report.CompletedAt = time.Now().UTC()
	log.Printf("[ingest] box-score run complete: %d lines found, %d in partition %s (%v)",
		report.StatLinesFound, report.StatLinesMerged, r.cfg.Season, report.Duration.Round(time.Second))
	r.notify(Event{Type: "run_complete", Message: "box-score run complete", Report: &report})
	return report, nil
}

// mergedGames reloads the partition and returns the merged rows for the
// batch's dedupe keys. The sinks mirror the merged dataset; handing them the
// raw batch would let a lossy rerun regress the mirror behind the partition.
func (r *Runner) mergedGames(batch []store.Game) []store.Game {
	keys := make(map[string]bool, len(batch))
	for _, g := range batch {
		if g.DedupeKey != "" {
			keys[g.DedupeKey] = true
		}
	}
	rows, err := r.store.LoadGames(r.cfg.Season)
	if err != nil {
		log.Printf("[ingest] reloading partition for fan-out: %v", err)
		return nil
	}
	var out []store.Game
	for _, g := range rows {
		if keys[g.DedupeKey] {
			out = append(out, g)
		}
	}
	return out
}

// mergedStats is mergedGames for stat lines.
func (r *Runner) mergedStats(batch []store.PlayerStat) []store.PlayerStat {
	keys := make(map[string]bool, len(batch))
	for i := range batch {
		keys[batch[i].Key()] = true
	}
	rows, err := r.store.LoadPlayerStats(r.cfg.Season)
	if err != nil {
		log.Printf("[ingest] reloading stat partition for fan-out: %v", err)
		return nil
	}
	var out []store.PlayerStat
	for i := range rows {
		if keys[rows[i].Key()] {
			out = append(out, rows[i])
		}
	}
	return out
}

// fanOutGames mirrors merged games to the optional sinks. Sink failures are
// logged, never fatal: the partition write already succeeded.
func (r *Runner) fanOutGames(ctx context.Context, games []store.Game) {
	if r.warehouse != nil && len(games) > 0 {
		if err := r.warehouse.UpsertGames(ctx, r.cfg.Season, games); err != nil {
			log.Printf("[ingest] warehouse mirror failed: %v", err)
		}
	}
	if r.publisher != nil {
		for _, g := range games {
			if err := r.publisher.PublishGameUpdate(ctx, r.cfg.Season, g); err != nil {
				log.Printf("[ingest] publish failed for %s: %v", g.DedupeKey, err)
				break // redis is down; no point hammering it per game
			}
		}
	}
}

func (r *Runner) extractContext(t fetch.Target) sidearm.Context {
	return sidearm.Context{
		TeamName:    t.Team,
		PageURL:     t.URL,
		AssumedYear: SeasonStartYear(r.cfg.Season),
		Verbose:     r.cfg.Verbose,
	}
}

func (r *Runner) notify(e Event) {
	if r.OnEvent != nil {
		r.OnEvent(e)
	}
}

// SeasonStartYear parses "2024-25" (or plain "2024") into the season's
// starting calendar year.
func SeasonStartYear(season string) int {
	year, err := strconv.Atoi(strings.SplitN(season, "-", 2)[0])
	if err != nil || year == 0 {
		return time.Now().Year()
	}
	return year
}
