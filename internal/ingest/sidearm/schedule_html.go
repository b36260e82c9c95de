package sidearm

import (
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/talon/internal/normalize"
	"github.com/fortuna/talon/internal/store"
)

// Card-based schedule layout. Each game is a styled tile; direction comes
// from a "vs"/"at" text stamp next to the opponent name.
func (e *Engine) extractCards(doc *goquery.Document, ctx Context) []store.Game {
	var games []store.Game
	doc.Find(".sidearm-schedule-game").Each(func(_ int, s *goquery.Selection) {
		d := draft{
			date:        normalize.ParseLooseDate(s.Find(".sidearm-schedule-game-opponent-date").First().Text(), ctx.AssumedYear),
			opponent:    s.Find(".sidearm-schedule-game-opponent-name").First().Text(),
			scheduleURL: ctx.PageURL,
		}
		d.isHome, d.locKnown = directionFromStamp(s.Find(".sidearm-schedule-game-conference-vs").First().Text())
		if s.HasClass("sidearm-schedule-game-neutral") {
			d.isNeutral = true
			d.locKnown = true
		}

		resultText := s.Find(".sidearm-schedule-game-result").First().Text()
		d.scoreFor, d.scoreAgainst, d.status = parseResult(resultText)

		d.boxscoreURL = firstHref(s, "a[href*='boxscore']", ctx.PageURL)
		d.recapURL = firstHref(s, "a[href*='recap']", ctx.PageURL)

		g, ok := d.finalize(ctx)
		if !ok {
			if ctx.Verbose {
				log.Printf("[extract] skipping schedule card for %s: no opponent", ctx.TeamName)
			}
			return
		}
		games = append(games, g)
	})
	return games
}

// Tabular schedule layout. Column meaning is discovered from <thead> header
// text so reordered templates still parse; without a thead the conventional
// date/opponent/result positions apply.
func (e *Engine) extractTable(doc *goquery.Document, ctx Context) []store.Game {
	var games []store.Game
	doc.Find("table.sidearm-table, table.schedule-table").Each(func(_ int, table *goquery.Selection) {
		cols := discoverColumns(table)
		table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			g, ok := e.parseScheduleRow(row, cols, ctx)
			if !ok {
				if ctx.Verbose {
					log.Printf("[extract] skipping schedule row for %s", ctx.TeamName)
				}
				return
			}
			games = append(games, g)
		})
	})
	return games
}

type columnMap struct {
	date, opponent, result int
}

func discoverColumns(table *goquery.Selection) columnMap {
	// Conventional positions when no usable header exists.
	cols := columnMap{date: 0, opponent: 1, result: 2}
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		header := strings.ToLower(strings.TrimSpace(th.Text()))
		switch {
		case strings.Contains(header, "date"):
			cols.date = i
		case strings.Contains(header, "opponent"):
			cols.opponent = i
		case strings.Contains(header, "result") || strings.Contains(header, "score"):
			cols.result = i
		}
	})
	return cols
}

// parseScheduleRow is a pure row -> (Game, ok) function over the parsed
// tree; no live DOM involved, so it unit-tests in isolation.
func (e *Engine) parseScheduleRow(row *goquery.Selection, cols columnMap, ctx Context) (store.Game, bool) {
	cells := row.Find("td")
	max := cols.date
	if cols.opponent > max {
		max = cols.opponent
	}
	if cols.result > max {
		max = cols.result
	}
	if cells.Length() <= max {
		return store.Game{}, false
	}

	oppCell := cells.Eq(cols.opponent)
	oppText := strings.TrimSpace(oppCell.Text())

	d := draft{
		date:        normalize.ParseLooseDate(cells.Eq(cols.date).Text(), ctx.AssumedYear),
		scheduleURL: ctx.PageURL,
	}

	// Opponent-cell prefix token encodes direction in this layout.
	lower := strings.ToLower(oppText)
	switch {
	case strings.HasPrefix(lower, "at "):
		d.opponent = strings.TrimSpace(oppText[3:])
		d.isHome = false
		d.locKnown = true
	case strings.HasPrefix(lower, "vs. "):
		d.opponent = strings.TrimSpace(oppText[4:])
		d.isHome = true
		d.locKnown = true
	case strings.HasPrefix(lower, "vs "):
		d.opponent = strings.TrimSpace(oppText[3:])
		d.isHome = true
		d.locKnown = true
	default:
		d.opponent = oppText
	}

	resultCell := cells.Eq(cols.result)
	d.scoreFor, d.scoreAgainst, d.status = parseResult(resultCell.Text())
	d.boxscoreURL = firstHref(row, "a[href*='boxscore']", ctx.PageURL)
	d.recapURL = firstHref(row, "a[href*='recap']", ctx.PageURL)

	return d.finalize(ctx)
}

// Scoreboard carousel tiles: a thin score ticker some templates render above
// the schedule. Direction comes from a CSS modifier class on the tile.
func (e *Engine) extractCarousel(doc *goquery.Document, ctx Context) []store.Game {
	var games []store.Game
	doc.Find(".scoreboard-game").Each(func(_ int, s *goquery.Selection) {
		d := draft{
			date:        normalize.ParseLooseDate(s.Find(".scoreboard-game-date").First().Text(), ctx.AssumedYear),
			opponent:    s.Find(".scoreboard-game-opponent").First().Text(),
			scheduleURL: ctx.PageURL,
		}
		switch {
		case s.HasClass("scoreboard-game--away"):
			d.isHome, d.locKnown = false, true
		case s.HasClass("scoreboard-game--home"):
			d.isHome, d.locKnown = true, true
		case s.HasClass("scoreboard-game--neutral"):
			d.isNeutral, d.locKnown = true, true
		}

		d.scoreFor, d.scoreAgainst, d.status = parseResult(s.Find(".scoreboard-game-score").First().Text())
		d.boxscoreURL = firstHref(s, "a[href*='boxscore']", ctx.PageURL)

		g, ok := d.finalize(ctx)
		if !ok {
			if ctx.Verbose {
				log.Printf("[extract] skipping carousel tile for %s: no opponent", ctx.TeamName)
			}
			return
		}
		games = append(games, g)
	})
	return games
}

func firstHref(s *goquery.Selection, selector, origin string) string {
	href, ok := s.Find(selector).First().Attr("href")
	if !ok {
		return ""
	}
	return normalize.ResolveURL(href, origin)
}
