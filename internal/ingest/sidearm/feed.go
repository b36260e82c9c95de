package sidearm

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"github.com/fortuna/talon/internal/normalize"
	"github.com/fortuna/talon/internal/store"
)

// The Sidearm results feed: an array of game objects. Schools that expose it
// are the easy case; the feed is authoritative and the HTML strategies never
// run when it validates.
type feedGame struct {
	ID                json.Number   `json:"id"`
	Date              string        `json:"date"`
	LocationIndicator string        `json:"location_indicator"`
	NeutralHomeTeam   bool          `json:"neutral_hometeam"`
	Opponent          *feedOpponent `json:"opponent"`
	Result            *feedResult   `json:"result"`
	Schedule          *feedSchedule `json:"schedule"`
}

type feedOpponent struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type feedResult struct {
	Status        string     `json:"status"`
	TeamScore     flexString `json:"team_score"`
	OpponentScore flexString `json:"opponent_score"`
	Boxscore      string     `json:"boxscore"`
}

type feedSchedule struct {
	URL string `json:"url"`
}

// flexString tolerates feeds that serialize scores as numbers or strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// extractFeed attempts the JSON feed shape. ok reports whether the payload
// validated as the feed at all; an empty feed is (true, empty), not a
// failure.
func (e *Engine) extractFeed(payload []byte, ctx Context) ([]store.Game, bool) {
	trimmed := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	var feed []feedGame
	if err := json.Unmarshal([]byte(trimmed), &feed); err != nil {
		return nil, false
	}

	games := make([]store.Game, 0, len(feed))
	for _, fg := range feed {
		g, ok := convertFeedGame(fg, ctx)
		if !ok {
			if ctx.Verbose {
				log.Printf("[extract] skipping feed game id=%s for %s: missing opponent or date", fg.ID.String(), ctx.TeamName)
			}
			continue
		}
		games = append(games, g)
	}
	return games, true
}

func convertFeedGame(fg feedGame, ctx Context) (store.Game, bool) {
	if fg.Opponent == nil || strings.TrimSpace(fg.Opponent.Name) == "" {
		return store.Game{}, false
	}

	opponent, oppRanked := normalize.CleanTeamName(fg.Opponent.Name)
	team, teamRanked := normalize.CleanTeamName(ctx.TeamName)
	date := normalize.ParseLooseDate(fg.Date, ctx.AssumedYear)

	g := store.Game{
		GameID: fg.ID.String(),
		Date:   date,
		Status: feedStatus(fg.Result),
	}
	if g.GameID == "" {
		g.GameID = normalize.Slug(date, opponent, team)
	}

	// H/A/N indicator decides assignment; for neutral sites the feed's
	// neutral_hometeam flag says whether the context team is the designated
	// home side.
	contextIsHome := true
	switch strings.ToUpper(strings.TrimSpace(fg.LocationIndicator)) {
	case "H":
		g.LocationType = store.LocationHome
	case "A":
		g.LocationType = store.LocationAway
		contextIsHome = false
	case "N":
		g.LocationType = store.LocationNeutral
		contextIsHome = fg.NeutralHomeTeam
	default:
		g.LocationType = store.LocationUnknown
	}

	if contextIsHome {
		g.HomeTeamName, g.AwayTeamName = team, opponent
		g.HomeRanked, g.AwayRanked = teamRanked, oppRanked
	} else {
		g.HomeTeamName, g.AwayTeamName = opponent, team
		g.HomeRanked, g.AwayRanked = oppRanked, teamRanked
	}

	// Scores only exist inside a result object.
	if fg.Result != nil {
		teamScore := parseFeedScore(string(fg.Result.TeamScore))
		oppScore := parseFeedScore(string(fg.Result.OpponentScore))
		if contextIsHome {
			g.HomeScore, g.AwayScore = teamScore, oppScore
		} else {
			g.HomeScore, g.AwayScore = oppScore, teamScore
		}
		g.BoxscoreURL = normalize.ResolveURL(fg.Result.Boxscore, ctx.PageURL)
	}
	if fg.Schedule != nil {
		g.ScheduleURL = normalize.ResolveURL(fg.Schedule.URL, ctx.PageURL)
	}

	g.DedupeKey = normalize.DedupeKey(g.Date, g.HomeTeamName, g.AwayTeamName)
	return g, true
}

// feedStatus derives status from the result status code plus the presence of
// the result object itself. "A" marks a postponement, "C"/"X" cancellations;
// any other code on a present result means the game was played.
func feedStatus(r *feedResult) store.GameStatus {
	if r == nil {
		return store.StatusScheduled
	}
	switch strings.ToUpper(strings.TrimSpace(r.Status)) {
	case "A":
		return store.StatusPostponed
	case "C", "X":
		return store.StatusCanceled
	case "":
		if r.TeamScore == "" && r.OpponentScore == "" {
			return store.StatusScheduled
		}
		return store.StatusFinal
	default:
		return store.StatusFinal
	}
}

func parseFeedScore(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return store.IntPtr(v)
}
