// Package sidearm extracts canonical game and player-stat records from the
// page payloads Sidearm-style athletics sites serve. The same logical game
// shows up as a JSON feed object, a schedule card, a table row, or a
// scoreboard carousel tile depending on the school's template, so extraction
// is multi-strategy: the feed is authoritative when present, and the three
// HTML strategies contribute to a single dedupe-keyed result set.
package sidearm

import (
	"bytes"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/talon/internal/normalize"
	"github.com/fortuna/talon/internal/store"
)

// Context carries the per-call extraction inputs. There is no process-wide
// per-team parser registry; callers pass everything the strategies need.
type Context struct {
	TeamName    string // the team whose page is being scraped
	PageURL     string // origin for resolving relative links
	AssumedYear int    // season start year for month/day date text
	GameID      string // set for box-score extraction
	Verbose     bool
}

// Engine runs the extraction strategies. It is stateless and safe for
// concurrent use.
type Engine struct{}

// New returns an extraction engine.
func New() *Engine {
	return &Engine{}
}

// ExtractSchedule turns a schedule payload into games. A payload that yields
// zero games is a valid outcome; the caller decides whether that warrants a
// retry or an alert.
func (e *Engine) ExtractSchedule(payload []byte, ctx Context) []store.Game {
	if games, ok := e.extractFeed(payload, ctx); ok {
		return games
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		if ctx.Verbose {
			log.Printf("[extract] unparseable HTML payload for %s: %v", ctx.TeamName, err)
		}
		return nil
	}

	// All three layouts may coexist on one document. Cards and table rows
	// carry the fullest game-day context and are applied first; carousel
	// tiles are a supplementary score source and never overwrite a key the
	// richer strategies already produced.
	found := make(map[string]store.Game)
	var order []string

	apply := func(g store.Game, overwrite bool) {
		if g.DedupeKey == "" {
			return
		}
		if _, exists := found[g.DedupeKey]; exists {
			if !overwrite {
				return
			}
		} else {
			order = append(order, g.DedupeKey)
		}
		found[g.DedupeKey] = g
	}

	for _, g := range e.extractCards(doc, ctx) {
		apply(g, true)
	}
	for _, g := range e.extractTable(doc, ctx) {
		apply(g, true)
	}
	for _, g := range e.extractCarousel(doc, ctx) {
		apply(g, false)
	}

	games := make([]store.Game, 0, len(order))
	for _, key := range order {
		games = append(games, found[key])
	}
	return games
}

// draft is a strategy-parsed game before home/away assignment. Scores are
// from the context team's perspective, the way schedule pages render them.
type draft struct {
	date         string
	opponent     string
	isHome       bool
	isNeutral    bool
	locKnown     bool
	scoreFor     *int
	scoreAgainst *int
	status       store.GameStatus
	scheduleURL  string
	boxscoreURL  string
	recapURL     string
}

// finalize assigns home/away from the direction signal and builds the
// canonical record. When no signal was found the context team is written on
// the home side with location_type unknown; the merge store repairs the
// location once a richer scrape observes it, and the dedupe key is
// insensitive to the ordering.
func (d draft) finalize(ctx Context) (store.Game, bool) {
	opponent, oppRanked := normalize.CleanTeamName(d.opponent)
	team, teamRanked := normalize.CleanTeamName(ctx.TeamName)
	if opponent == "" || team == "" {
		return store.Game{}, false
	}

	g := store.Game{
		Date:        d.date,
		Status:      d.status,
		ScheduleURL: d.scheduleURL,
		BoxscoreURL: d.boxscoreURL,
		RecapURL:    d.recapURL,
	}
	if g.Status == "" {
		g.Status = store.StatusScheduled
	}

	switch {
	case d.isNeutral:
		g.LocationType = store.LocationNeutral
	case !d.locKnown:
		g.LocationType = store.LocationUnknown
	case d.isHome:
		g.LocationType = store.LocationHome
	default:
		g.LocationType = store.LocationAway
	}

	contextIsHome := d.isHome || !d.locKnown || d.isNeutral
	if contextIsHome {
		g.HomeTeamName, g.AwayTeamName = team, opponent
		g.HomeRanked, g.AwayRanked = teamRanked, oppRanked
		g.HomeScore, g.AwayScore = d.scoreFor, d.scoreAgainst
	} else {
		g.HomeTeamName, g.AwayTeamName = opponent, team
		g.HomeRanked, g.AwayRanked = oppRanked, teamRanked
		g.HomeScore, g.AwayScore = d.scoreAgainst, d.scoreFor
	}

	g.GameID = normalize.Slug(g.Date, g.AwayTeamName, g.HomeTeamName)
	g.DedupeKey = normalize.DedupeKey(g.Date, g.HomeTeamName, g.AwayTeamName)
	return g, true
}

var scoreRe = regexp.MustCompile(`(?i)^\s*(?:[WLT][,.]?\s+)?(\d+)\s*-\s*(\d+)`)

// parseResult scans rendered result text. A digits-hyphen-digits match means
// the game is final; the optional leading W/L/T letter is discarded, the
// first number is the context team's score. Otherwise the text is scanned
// for final/postponed/canceled words.
func parseResult(text string) (scoreFor, scoreAgainst *int, status store.GameStatus) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, ""
	}
	if m := scoreRe.FindStringSubmatch(text); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		return store.IntPtr(a), store.IntPtr(b), store.StatusFinal
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "final"):
		return nil, nil, store.StatusFinal
	case strings.Contains(lower, "postponed"):
		return nil, nil, store.StatusPostponed
	case strings.Contains(lower, "cancel"): // canceled and cancelled both appear
		return nil, nil, store.StatusCanceled
	}
	return nil, nil, ""
}

// directionFromStamp reads a "vs"/"at" text stamp.
func directionFromStamp(text string) (isHome, known bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case lower == "at" || strings.HasPrefix(lower, "at "):
		return false, true
	case lower == "vs" || lower == "vs." || strings.HasPrefix(lower, "vs ") || strings.HasPrefix(lower, "vs. "):
		return true, true
	}
	return false, false
}
