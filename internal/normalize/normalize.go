// Package normalize holds the pure text-cleanup helpers shared by every
// extraction strategy. Everything in here must stay deterministic: the
// dedupe key built from these functions is the merge identity for games.
package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// SentinelDate is substituted when schedule text cannot be parsed as a date.
// A wrong-but-stable date keeps the row mergeable instead of crashing the run.
const SentinelDate = "1900-01-01"

var (
	rankPrefixRe  = regexp.MustCompile(`(?i)^\s*(#\s*\d+|no\.?\s*\d+|rv)\s+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	nonAlphaNumRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// CleanTeamName strips ranking prefixes ("#4 Duke", "No. 12 Duke", "RV Navy")
// and collapses whitespace. The ranked flag reports whether a prefix was found.
func CleanTeamName(name string) (string, bool) {
	ranked := rankPrefixRe.MatchString(name)
	cleaned := rankPrefixRe.ReplaceAllString(name, "")
	cleaned = whitespaceRe.ReplaceAllString(strings.TrimSpace(cleaned), " ")
	return cleaned, ranked
}

// PlayerName normalizes roster-style names. Sidearm box scores list players
// as "Last, First"; schedule recaps use "First Last". Both collapse to the
// latter form.
func PlayerName(name string) string {
	name = whitespaceRe.ReplaceAllString(strings.TrimSpace(name), " ")
	if i := strings.Index(name, ","); i >= 0 {
		last := strings.TrimSpace(name[:i])
		first := strings.TrimSpace(name[i+1:])
		if last != "" && first != "" {
			name = first + " " + last
		}
	}
	return name
}

// PlayerKey builds the stable per-team player identity. When a numeric
// profile id was scraped it wins over the name, which clubs misspell.
func PlayerKey(teamID, profileID, name string) string {
	if profileID != "" {
		return teamID + "_" + profileID
	}
	k := strings.ToLower(PlayerName(name))
	return teamID + "_" + nonAlphaNumRe.ReplaceAllString(k, "-")
}

// DedupeKey is the merge identity of a game: ISO date plus both team names
// lowercased, whitespace-collapsed and sorted. Sorting makes the key
// indifferent to which side a strategy assigned as home, so the same
// real-world game extracted by different strategies always collides.
func DedupeKey(date, teamA, teamB string) string {
	a := keyName(teamA)
	b := keyName(teamB)
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s|%s|%s", date, a, b)
}

func keyName(name string) string {
	cleaned, _ := CleanTeamName(name)
	return strings.ToLower(cleaned)
}

// Slug builds the HTML-path game id from its parts: lowercase with runs of
// non-alphanumerics collapsed to single hyphens.
func Slug(parts ...string) string {
	joined := strings.ToLower(strings.Join(parts, "-"))
	joined = nonAlphaNumRe.ReplaceAllString(joined, "-")
	return strings.Trim(joined, "-")
}

var looseDateLayouts = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"1/2/2006",
}

var monthDayLayouts = []string{
	"Jan 2",
	"January 2",
	"1/2",
}

// ParseLooseDate parses the abbreviated date text Sidearm layouts render
// ("Oct 15", "Sat, Feb 3", "10/15", "Oct 15, 2024") against an assumed
// season-start year. Month/day dates in January through July belong to the
// back half of the academic year and roll into assumedYear+1. Text that
// cannot be parsed yields the sentinel date.
func ParseLooseDate(text string, assumedYear int) string {
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	// Drop a leading weekday stamp ("Sat, Feb 3").
	if i := strings.Index(text, ","); i >= 0 && i <= 9 && !strings.ContainsAny(text[:i], "0123456789") {
		text = strings.TrimSpace(text[i+1:])
	}

	for _, layout := range looseDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format("2006-01-02")
		}
	}
	for _, layout := range monthDayLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			year := assumedYear
			if t.Month() <= time.July {
				year++
			}
			return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		}
	}
	return SentinelDate
}

// ResolveURL resolves href against the page origin, handling absolute,
// protocol-relative, root-relative and document-relative forms. Empty or
// unparseable input resolves to "".
func ResolveURL(href, origin string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(origin)
	if err != nil || base.Host == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
