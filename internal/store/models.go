package store

// LocationType says where the context team played.
type LocationType string

const (
	LocationHome    LocationType = "home"
	LocationAway    LocationType = "away"
	LocationNeutral LocationType = "neutral"
	LocationUnknown LocationType = "unknown"
)

// GameStatus is the lifecycle state of a game as last observed.
type GameStatus string

const (
	StatusScheduled GameStatus = "scheduled"
	StatusFinal     GameStatus = "final"
	StatusPostponed GameStatus = "postponed"
	StatusCanceled  GameStatus = "canceled"
	StatusUnknown   GameStatus = "unknown"
)

// Game is one scheduled or played contest as produced by an extraction run.
//
// GameID is a provenance tag only: the feed path carries the feed's numeric
// id, the HTML path a date+teams slug, and the two are not guaranteed to
// coincide for the same real-world game. DedupeKey is the merge identity;
// never join across sources on GameID.
type Game struct {
	GameID       string       `json:"game_id"`
	Date         string       `json:"date"` // YYYY-MM-DD, sentinel 1900-01-01 when unparseable
	HomeTeamName string       `json:"home_team_name"`
	AwayTeamName string       `json:"away_team_name"`
	HomeScore    *int         `json:"home_score,omitempty"`
	AwayScore    *int         `json:"away_score,omitempty"`
	LocationType LocationType `json:"location_type"`
	Status       GameStatus   `json:"status"`
	ScheduleURL  string       `json:"schedule_url,omitempty"`
	BoxscoreURL  string       `json:"boxscore_url,omitempty"`
	RecapURL     string       `json:"recap_url,omitempty"`
	HomeRanked   bool         `json:"home_ranked"`
	AwayRanked   bool         `json:"away_ranked"`
	DedupeKey    string       `json:"dedupe_key"`
}

// PlayerStat is one player's line for one game. Stats carries every counter
// the source table exposed; the named fields mirror the counters the
// aggregation scripts read constantly.
type PlayerStat struct {
	GameID       string            `json:"game_id"`
	TeamID       string            `json:"team_id"`
	PlayerName   string            `json:"player_name"`
	PlayerKey    string            `json:"player_key"`
	JerseyNumber string            `json:"jersey_number,omitempty"`
	Stats        map[string]string `json:"stats"`
	Goals        int               `json:"goals"`
	Assists      int               `json:"assists"`
	Shots        int               `json:"shots"`
	Minutes      float64           `json:"minutes"`
}

// Key is the merge identity of a stat line within a partition.
func (p *PlayerStat) Key() string {
	return p.GameID + "|" + p.PlayerKey
}

// IntPtr is a small helper for the nullable score fields.
func IntPtr(v int) *int { return &v }
