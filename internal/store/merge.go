package store

import "strings"

// Field-level merge rules for repeated, independently-lossy scrapes.
// The single invariant: an incoming unknown/empty value never overwrites a
// previously captured one, so the stored row only ever gains information.

// MergeGame folds incoming into existing and returns the merged row.
// Neither argument is mutated.
func MergeGame(existing, incoming Game) Game {
	existing, incoming = alignOrientation(existing, incoming)
	merged := existing

	if existing.GameID == "" {
		merged.GameID = incoming.GameID
	}
	if isSentinelDate(existing.Date) && !isSentinelDate(incoming.Date) {
		merged.Date = incoming.Date
	}
	if existing.HomeTeamName == "" {
		merged.HomeTeamName = incoming.HomeTeamName
	}
	if existing.AwayTeamName == "" {
		merged.AwayTeamName = incoming.AwayTeamName
	}

	merged.HomeScore = mergeScore(existing.HomeScore, incoming.HomeScore)
	merged.AwayScore = mergeScore(existing.AwayScore, incoming.AwayScore)
	merged.LocationType = mergeLocation(existing.LocationType, incoming.LocationType)
	merged.Status = mergeStatus(existing.Status, incoming.Status)

	merged.ScheduleURL = mergeString(existing.ScheduleURL, incoming.ScheduleURL)
	merged.BoxscoreURL = mergeString(existing.BoxscoreURL, incoming.BoxscoreURL)
	merged.RecapURL = mergeString(existing.RecapURL, incoming.RecapURL)

	merged.HomeRanked = existing.HomeRanked || incoming.HomeRanked
	merged.AwayRanked = existing.AwayRanked || incoming.AwayRanked

	return merged
}

// alignOrientation reconciles two observations of one game whose sides are
// swapped. An extraction with no direction signal parks the scraped team on
// the home side with location unknown; that guessed orientation must not
// pollute the positional field merge once a scrape with a real direction
// signal arrives, so the row whose location is unknown is the one reoriented.
func alignOrientation(existing, incoming Game) (Game, Game) {
	if !sidesSwapped(existing, incoming) {
		return existing, incoming
	}
	if locationKnown(incoming.LocationType) || !locationKnown(existing.LocationType) {
		return swapSides(existing), incoming
	}
	return existing, swapSides(incoming)
}

func sidesSwapped(a, b Game) bool {
	return a.HomeTeamName != "" && b.HomeTeamName != "" &&
		strings.EqualFold(a.HomeTeamName, b.AwayTeamName) &&
		strings.EqualFold(a.AwayTeamName, b.HomeTeamName)
}

func locationKnown(l LocationType) bool {
	return l != "" && l != LocationUnknown
}

func swapSides(g Game) Game {
	g.HomeTeamName, g.AwayTeamName = g.AwayTeamName, g.HomeTeamName
	g.HomeScore, g.AwayScore = g.AwayScore, g.HomeScore
	g.HomeRanked, g.AwayRanked = g.AwayRanked, g.HomeRanked
	switch g.LocationType {
	case LocationHome:
		g.LocationType = LocationAway
	case LocationAway:
		g.LocationType = LocationHome
	}
	return g
}

func mergeScore(existing, incoming *int) *int {
	if incoming == nil {
		return existing
	}
	v := *incoming
	return &v
}

func mergeLocation(existing, incoming LocationType) LocationType {
	if incoming == LocationUnknown || incoming == "" {
		return existing
	}
	if existing == LocationUnknown || existing == "" {
		return incoming
	}
	// Both known: the fresher observation wins.
	return incoming
}

// statusRank orders statuses by specificity. "scheduled" is the default any
// layout can emit; final/postponed/canceled are observations of an outcome
// and must not be demoted by a later scrape of a staler page.
func statusRank(s GameStatus) int {
	switch s {
	case StatusFinal, StatusPostponed, StatusCanceled:
		return 2
	case StatusScheduled:
		return 1
	default:
		return 0
	}
}

func mergeStatus(existing, incoming GameStatus) GameStatus {
	if statusRank(incoming) >= statusRank(existing) && incoming != "" && incoming != StatusUnknown {
		return incoming
	}
	if existing == "" {
		return StatusUnknown
	}
	return existing
}

func mergeString(existing, incoming string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

func isSentinelDate(date string) bool {
	return date == "" || date == "1900-01-01"
}

// MergePlayerStat folds an incoming stat line into an existing one. Counter
// values are prefer-non-empty per counter name; the mirrored numeric fields
// are recomputed from whichever side supplied the counter.
func MergePlayerStat(existing, incoming PlayerStat) PlayerStat {
	merged := existing
	if existing.PlayerName == "" {
		merged.PlayerName = incoming.PlayerName
	}
	merged.JerseyNumber = mergeString(existing.JerseyNumber, incoming.JerseyNumber)

	if merged.Stats == nil {
		merged.Stats = map[string]string{}
	} else {
		copied := make(map[string]string, len(existing.Stats))
		for k, v := range existing.Stats {
			copied[k] = v
		}
		merged.Stats = copied
	}
	for k, v := range incoming.Stats {
		if v != "" {
			merged.Stats[k] = v
		}
	}

	if incoming.Goals != 0 || existing.Goals == 0 {
		merged.Goals = max(existing.Goals, incoming.Goals)
	}
	if incoming.Assists != 0 || existing.Assists == 0 {
		merged.Assists = max(existing.Assists, incoming.Assists)
	}
	if incoming.Shots != 0 || existing.Shots == 0 {
		merged.Shots = max(existing.Shots, incoming.Shots)
	}
	if incoming.Minutes > merged.Minutes {
		merged.Minutes = incoming.Minutes
	}
	return merged
}
