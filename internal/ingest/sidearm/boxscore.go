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

// Box-score column layout. Sidearm stat tables put these at fixed positions;
// a body row needs at least this many cells to be a player line. Header and
// totals rows routinely come up short and are skipped, not errored.
const (
	colJersey  = 0
	colPlayer  = 1
	colShots   = 2
	colSOG     = 3
	colGoals   = 4
	colAssists = 5
	colPoints  = 6
	colMinutes = 7

	minStatColumns = 8
)

var statTableSelectors = []string{
	"table.sidearm-table",
	"table.overall-stats",
	"table", // last resort: any table with a parsable shape
}

var profileIDRe = regexp.MustCompile(`(\d+)/?$`)

// ExtractBoxScore turns a box-score page into player stat lines. Tables are
// located by selector priority; the owning team comes from the table
// caption. Zero rows is a valid outcome.
func (e *Engine) ExtractBoxScore(payload []byte, ctx Context) []store.PlayerStat {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		if ctx.Verbose {
			log.Printf("[extract] unparseable box-score payload for game %s: %v", ctx.GameID, err)
		}
		return nil
	}

	var tables *goquery.Selection
	for _, sel := range statTableSelectors {
		tables = doc.Find(sel)
		if tables.Length() > 0 {
			break
		}
	}
	if tables == nil || tables.Length() == 0 {
		return nil
	}

	var stats []store.PlayerStat
	tables.Each(func(_ int, table *goquery.Selection) {
		teamName := teamFromCaption(table.Find("caption").First().Text())
		if teamName == "" {
			// A table without an attributable team is not a stat table.
			return
		}
		teamID := normalize.Slug(teamName)
		headers := statHeaders(table)

		table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			stat, ok := parseStatRow(row, ctx.GameID, teamID, headers)
			if !ok {
				if ctx.Verbose {
					log.Printf("[extract] skipping stat row in game %s (%s)", ctx.GameID, teamID)
				}
				return
			}
			stats = append(stats, stat)
		})
	})
	return stats
}

// parseStatRow is a pure row -> (PlayerStat, ok) function over the parsed
// tree. Rows below the minimum column count are skipped silently.
func parseStatRow(row *goquery.Selection, gameID, teamID string, headers []string) (store.PlayerStat, bool) {
	cells := row.Find("td")
	if cells.Length() < minStatColumns {
		return store.PlayerStat{}, false
	}

	nameCell := cells.Eq(colPlayer)
	name := normalize.PlayerName(nameCell.Text())
	if name == "" || strings.EqualFold(name, "totals") || strings.EqualFold(name, "team") {
		return store.PlayerStat{}, false
	}

	// A roster profile link carries a numeric id that is a more stable
	// identity than the rendered name.
	profileID := ""
	if href, ok := nameCell.Find("a").First().Attr("href"); ok {
		if m := profileIDRe.FindStringSubmatch(strings.TrimSuffix(href, "/")); m != nil {
			profileID = m[1]
		}
	}

	stat := store.PlayerStat{
		GameID:       gameID,
		TeamID:       teamID,
		PlayerName:   name,
		PlayerKey:    normalize.PlayerKey(teamID, profileID, name),
		JerseyNumber: strings.TrimSpace(cells.Eq(colJersey).Text()),
		Stats:        map[string]string{},
		Shots:        cellInt(cells, colShots),
		Goals:        cellInt(cells, colGoals),
		Assists:      cellInt(cells, colAssists),
		Minutes:      cellFloat(cells, colMinutes),
	}

	// Record every counter the table exposed, named by header when one
	// exists at that position.
	cells.Each(func(i int, c *goquery.Selection) {
		if i == colJersey || i == colPlayer {
			return
		}
		value := strings.TrimSpace(c.Text())
		if value == "" {
			return
		}
		stat.Stats[statName(headers, i)] = value
	})
	return stat, true
}

var canonicalStatNames = map[int]string{
	colShots:   "sh",
	colSOG:     "sog",
	colGoals:   "g",
	colAssists: "a",
	colPoints:  "pts",
	colMinutes: "min",
}

func statName(headers []string, i int) string {
	if i < len(headers) && headers[i] != "" {
		return headers[i]
	}
	if name, ok := canonicalStatNames[i]; ok {
		return name
	}
	return "col" + strconv.Itoa(i)
}

func statHeaders(table *goquery.Selection) []string {
	var headers []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.ToLower(strings.TrimSpace(th.Text())))
	})
	return headers
}

var captionSuffixRe = regexp.MustCompile(`(?i)\s+(individual\s+)?(statistics|stats)\s*$`)

func teamFromCaption(caption string) string {
	caption = captionSuffixRe.ReplaceAllString(strings.TrimSpace(caption), "")
	cleaned, _ := normalize.CleanTeamName(caption)
	return cleaned
}

func cellInt(cells *goquery.Selection, i int) int {
	v, _ := strconv.Atoi(strings.TrimSpace(cells.Eq(i).Text()))
	return v
}

func cellFloat(cells *goquery.Selection, i int) float64 {
	text := strings.TrimSpace(cells.Eq(i).Text())
	// Minutes render either as a decimal or MM:SS.
	if strings.Contains(text, ":") {
		parts := strings.SplitN(text, ":", 2)
		mins, _ := strconv.Atoi(parts[0])
		secs, _ := strconv.Atoi(parts[1])
		return float64(mins) + float64(secs)/60.0
	}
	v, _ := strconv.ParseFloat(text, 64)
	return v
}
