package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// MergeStore owns the persisted per-season partitions. Each upsert loads a
// partition, merges, and rewrites the whole file through a temp-file rename,
// so readers never observe a partial table. Concurrent upserts to the same
// partition are not supported; callers serialize.
type MergeStore struct {
	dir string
}

// NewMergeStore creates the partition directory if needed.
func NewMergeStore(dir string) (*MergeStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	return &MergeStore{dir: dir}, nil
}

// Dir returns the partition directory.
func (s *MergeStore) Dir() string { return s.dir }

var gameColumns = []string{
	"game_id", "date", "home_team_name", "away_team_name",
	"home_score", "away_score", "location_type", "status",
	"schedule_url", "boxscore_url", "recap_url",
	"home_ranked", "away_ranked", "dedupe_key",
}

func (s *MergeStore) gamesPath(season string) string {
	return filepath.Join(s.dir, fmt.Sprintf("games_%s.csv", season))
}

func (s *MergeStore) statsPath(season string) string {
	return filepath.Join(s.dir, fmt.Sprintf("player_stats_%s.csv", season))
}

// UpsertGames merges a batch of freshly extracted games into the season
// partition and rewrites it sorted by date. Records without a dedupe key are
// dropped; they cannot be reconciled on a rerun. Returns the number of rows
// in the partition after the merge.
func (s *MergeStore) UpsertGames(games []Game, season string) (int, error) {
	existing, err := s.LoadGames(season)
	if err != nil {
		return 0, err
	}

	byKey := make(map[string]Game, len(existing))
	for _, g := range existing {
		byKey[g.DedupeKey] = g
	}
	for _, g := range games {
		if g.DedupeKey == "" {
			continue
		}
		if prev, ok := byKey[g.DedupeKey]; ok {
			byKey[g.DedupeKey] = MergeGame(prev, g)
		} else {
			byKey[g.DedupeKey] = g
		}
	}

	merged := make([]Game, 0, len(byKey))
	for _, g := range byKey {
		merged = append(merged, g)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Date != merged[j].Date {
			return merged[i].Date < merged[j].Date
		}
		return merged[i].DedupeKey < merged[j].DedupeKey
	})

	rows := make([][]string, 0, len(merged)+1)
	rows = append(rows, gameColumns)
	for _, g := range merged {
		rows = append(rows, []string{
			g.GameID, g.Date, g.HomeTeamName, g.AwayTeamName,
			formatScore(g.HomeScore), formatScore(g.AwayScore),
			string(g.LocationType), string(g.Status),
			g.ScheduleURL, g.BoxscoreURL, g.RecapURL,
			strconv.FormatBool(g.HomeRanked), strconv.FormatBool(g.AwayRanked),
			g.DedupeKey,
		})
	}
	if err := s.writeAtomic(s.gamesPath(season), rows); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// LoadGames reads a season partition; a missing partition is an empty one.
func (s *MergeStore) LoadGames(season string) ([]Game, error) {
	records, err := readCSV(s.gamesPath(season))
	if err != nil {
		return nil, err
	}
	var games []Game
	for i, rec := range records {
		if i == 0 || len(rec) < len(gameColumns) {
			continue
		}
		games = append(games, Game{
			GameID:       rec[0],
			Date:         rec[1],
			HomeTeamName: rec[2],
			AwayTeamName: rec[3],
			HomeScore:    parseScore(rec[4]),
			AwayScore:    parseScore(rec[5]),
			LocationType: LocationType(rec[6]),
			Status:       GameStatus(rec[7]),
			ScheduleURL:  rec[8],
			BoxscoreURL:  rec[9],
			RecapURL:     rec[10],
			HomeRanked:   rec[11] == "true",
			AwayRanked:   rec[12] == "true",
			DedupeKey:    rec[13],
		})
	}
	return games, nil
}

var statColumns = []string{
	"game_id", "team_id", "player_name", "player_key", "jersey_number",
	"goals", "assists", "shots", "minutes", "stats_json",
}

// UpsertPlayerStats merges a batch of stat lines into the season partition,
// keyed by game_id plus player_key, with the same all-or-nothing rewrite as
// the games partition.
func (s *MergeStore) UpsertPlayerStats(stats []PlayerStat, season string) (int, error) {
	existing, err := s.LoadPlayerStats(season)
	if err != nil {
		return 0, err
	}

	byKey := make(map[string]PlayerStat, len(existing))
	for _, p := range existing {
		byKey[p.Key()] = p
	}
	for _, p := range stats {
		if p.GameID == "" || p.PlayerKey == "" {
			continue
		}
		if prev, ok := byKey[p.Key()]; ok {
			byKey[p.Key()] = MergePlayerStat(prev, p)
		} else {
			byKey[p.Key()] = p
		}
	}

	merged := make([]PlayerStat, 0, len(byKey))
	for _, p := range byKey {
		merged = append(merged, p)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Key() < merged[j].Key() })

	rows := make([][]string, 0, len(merged)+1)
	rows = append(rows, statColumns)
	for _, p := range merged {
		statsJSON, err := marshalStats(p.Stats)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []string{
			p.GameID, p.TeamID, p.PlayerName, p.PlayerKey, p.JerseyNumber,
			strconv.Itoa(p.Goals), strconv.Itoa(p.Assists), strconv.Itoa(p.Shots),
			strconv.FormatFloat(p.Minutes, 'f', -1, 64),
			statsJSON,
		})
	}
	if err := s.writeAtomic(s.statsPath(season), rows); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// LoadPlayerStats reads a season's stat partition; missing means empty.
func (s *MergeStore) LoadPlayerStats(season string) ([]PlayerStat, error) {
	records, err := readCSV(s.statsPath(season))
	if err != nil {
		return nil, err
	}
	var stats []PlayerStat
	for i, rec := range records {
		if i == 0 || len(rec) < len(statColumns) {
			continue
		}
		goals, _ := strconv.Atoi(rec[5])
		assists, _ := strconv.Atoi(rec[6])
		shots, _ := strconv.Atoi(rec[7])
		minutes, _ := strconv.ParseFloat(rec[8], 64)

		var statMap map[string]string
		if rec[9] != "" {
			if err := json.Unmarshal([]byte(rec[9]), &statMap); err != nil {
				statMap = nil
			}
		}
		stats = append(stats, PlayerStat{
			GameID:       rec[0],
			TeamID:       rec[1],
			PlayerName:   rec[2],
			PlayerKey:    rec[3],
			JerseyNumber: rec[4],
			Stats:        statMap,
			Goals:        goals,
			Assists:      assists,
			Shots:        shots,
			Minutes:      minutes,
		})
	}
	return stats, nil
}

func (s *MergeStore) writeAtomic(path string, rows [][]string) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp partition: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("writing partition: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing partition: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp partition: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing partition: %w", err)
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening partition: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading partition: %w", err)
	}
	return records, nil
}

func formatScore(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func parseScore(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

// marshalStats keeps the JSON stable so identical upserts produce
// byte-identical partitions.
func marshalStats(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m) // map keys are sorted by encoding/json
	if err != nil {
		return "", fmt.Errorf("encoding stat map: %w", err)
	}
	return string(b), nil
}
