// Package warehouse mirrors the merged dataset into PostgreSQL for the
// dashboard. The CSV partitions remain the source of truth; rows arriving
// here were already reconciled by the merge store, so the upserts overwrite.
package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/fortuna/talon/internal/store"
)

// Warehouse wraps the dashboard database connection.
type Warehouse struct {
	conn *sql.DB
}

// New opens and pings the warehouse database.
func New(dsn string) (*Warehouse, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Warehouse{conn: db}, nil
}

// Close closes the connection pool.
func (w *Warehouse) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// EnsureSchema creates the mirror tables when absent.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS games (
			dedupe_key     TEXT PRIMARY KEY,
			season         TEXT NOT NULL,
			game_id        TEXT NOT NULL,
			game_date      DATE NOT NULL,
			home_team_name TEXT NOT NULL,
			away_team_name TEXT NOT NULL,
			home_score     INT,
			away_score     INT,
			location_type  TEXT NOT NULL,
			status         TEXT NOT NULL,
			schedule_url   TEXT,
			boxscore_url   TEXT,
			recap_url      TEXT,
			home_ranked    BOOLEAN NOT NULL DEFAULT FALSE,
			away_ranked    BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS games_season_date_idx ON games (season, game_date)`,
		`CREATE TABLE IF NOT EXISTS player_stats (
			stat_key      TEXT PRIMARY KEY,
			season        TEXT NOT NULL,
			game_id       TEXT NOT NULL,
			team_id       TEXT NOT NULL,
			player_name   TEXT NOT NULL,
			player_key    TEXT NOT NULL,
			jersey_number TEXT,
			goals         INT NOT NULL DEFAULT 0,
			assists       INT NOT NULL DEFAULT 0,
			shots         INT NOT NULL DEFAULT 0,
			minutes       DOUBLE PRECISION NOT NULL DEFAULT 0,
			stats         JSONB,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS player_stats_season_idx ON player_stats (season, team_id)`,
	}
	for _, stmt := range statements {
		if _, err := w.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

// UpsertGames mirrors a batch of merged games.
func (w *Warehouse) UpsertGames(ctx context.Context, season string, games []store.Game) error {
	query := `
		INSERT INTO games (dedupe_key, season, game_id, game_date,
			home_team_name, away_team_name, home_score, away_score,
			location_type, status, schedule_url, boxscore_url, recap_url,
			home_ranked, away_ranked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (dedupe_key) DO UPDATE SET
			game_id = EXCLUDED.game_id,
			game_date = EXCLUDED.game_date,
			home_team_name = EXCLUDED.home_team_name,
			away_team_name = EXCLUDED.away_team_name,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			location_type = EXCLUDED.location_type,
			status = EXCLUDED.status,
			schedule_url = EXCLUDED.schedule_url,
			boxscore_url = EXCLUDED.boxscore_url,
			recap_url = EXCLUDED.recap_url,
			home_ranked = EXCLUDED.home_ranked,
			away_ranked = EXCLUDED.away_ranked,
			updated_at = NOW()
	`

	tx, err := w.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	for _, g := range games {
		if g.DedupeKey == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, query,
			g.DedupeKey, season, g.GameID, g.Date,
			g.HomeTeamName, g.AwayTeamName, nullableInt(g.HomeScore), nullableInt(g.AwayScore),
			string(g.LocationType), string(g.Status),
			nullableString(g.ScheduleURL), nullableString(g.BoxscoreURL), nullableString(g.RecapURL),
			g.HomeRanked, g.AwayRanked,
		)
		if err != nil {
			return fmt.Errorf("upserting game %s: %w", g.DedupeKey, err)
		}
	}
	return tx.Commit()
}

// UpsertPlayerStats mirrors a batch of merged stat lines.
func (w *Warehouse) UpsertPlayerStats(ctx context.Context, season string, stats []store.PlayerStat) error {
	query := `
		INSERT INTO player_stats (stat_key, season, game_id, team_id,
			player_name, player_key, jersey_number,
			goals, assists, shots, minutes, stats)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (stat_key) DO UPDATE SET
			player_name = EXCLUDED.player_name,
			jersey_number = EXCLUDED.jersey_number,
			goals = EXCLUDED.goals,
			assists = EXCLUDED.assists,
			shots = EXCLUDED.shots,
			minutes = EXCLUDED.minutes,
			stats = EXCLUDED.stats,
			updated_at = NOW()
	`

	tx, err := w.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range stats {
		statsJSON, err := json.Marshal(p.Stats)
		if err != nil {
			return fmt.Errorf("encoding stats for %s: %w", p.Key(), err)
		}
		_, err = tx.ExecContext(ctx, query,
			p.Key(), season, p.GameID, p.TeamID,
			p.PlayerName, p.PlayerKey, nullableString(p.JerseyNumber),
			p.Goals, p.Assists, p.Shots, p.Minutes, statsJSON,
		)
		if err != nil {
			return fmt.Errorf("upserting stat line %s: %w", p.Key(), err)
		}
	}
	return tx.Commit()
}

// HealthCheck pings with a short deadline.
func (w *Warehouse) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return w.conn.PingContext(ctx)
}

func nullableInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
