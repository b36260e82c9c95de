package sidearm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/talon/internal/store"
)

func htmlContext() Context {
	return Context{
		TeamName:    "Duke",
		PageURL:     "https://goduke.com/sports/msoc/schedule",
		AssumedYear: 2024,
	}
}

func TestExtractCardsHomeWin(t *testing.T) {
	payload := `<html><body>
		<div class="sidearm-schedule-game">
			<div class="sidearm-schedule-game-opponent-date">Oct 15</div>
			<span class="sidearm-schedule-game-conference-vs">vs</span>
			<div class="sidearm-schedule-game-opponent-name">#4 UNC</div>
			<div class="sidearm-schedule-game-result">W 3-1</div>
			<a href="/boxscore/123">Box Score</a>
			<a href="/news/recap/123">Recap</a>
		</div>
	</body></html>`

	games := New().ExtractSchedule([]byte(payload), htmlContext())
	require.Len(t, games, 1)

	g := games[0]
	assert.Equal(t, "2024-10-15", g.Date)
	assert.Equal(t, "Duke", g.HomeTeamName)
	assert.Equal(t, "UNC", g.AwayTeamName)
	assert.Equal(t, 3, *g.HomeScore, "the first number belongs to the context team")
	assert.Equal(t, 1, *g.AwayScore)
	assert.Equal(t, store.LocationHome, g.LocationType)
	assert.Equal(t, store.StatusFinal, g.Status)
	assert.True(t, g.AwayRanked)
	assert.False(t, g.HomeRanked)
	assert.Equal(t, "https://goduke.com/boxscore/123", g.BoxscoreURL)
	assert.Equal(t, "https://goduke.com/news/recap/123", g.RecapURL)
	assert.Equal(t, "2024-10-15|duke|unc", g.DedupeKey)
}

func TestExtractCardsAwayLoss(t *testing.T) {
	payload := `<html><body>
		<div class="sidearm-schedule-game">
			<div class="sidearm-schedule-game-opponent-date">Oct 20</div>
			<span class="sidearm-schedule-game-conference-vs">at</span>
			<div class="sidearm-schedule-game-opponent-name">UNC</div>
			<div class="sidearm-schedule-game-result">L 1-2</div>
		</div>
	</body></html>`

	games := New().ExtractSchedule([]byte(payload), htmlContext())
	require.Len(t, games, 1)

	g := games[0]
	assert.Equal(t, "UNC", g.HomeTeamName)
	assert.Equal(t, "Duke", g.AwayTeamName)
	assert.Equal(t, 2, *g.HomeScore)
	assert.Equal(t, 1, *g.AwayScore)
	assert.Equal(t, store.LocationAway, g.LocationType)
}

func TestExtractCardsNeutralSite(t *testing.T) {
	payload := `<html><body>
		<div class="sidearm-schedule-game sidearm-schedule-game-neutral">
			<div class="sidearm-schedule-game-opponent-date">Nov 1</div>
			<div class="sidearm-schedule-game-opponent-name">Stanford</div>
		</div>
	</body></html>`

	games := New().ExtractSchedule([]byte(payload), htmlContext())
	require.Len(t, games, 1)
	assert.Equal(t, store.LocationNeutral, games[0].LocationType)
	assert.Equal(t, "Duke", games[0].HomeTeamName)
	assert.Equal(t, store.StatusScheduled, games[0].Status)
}

func TestExtractCardsUnknownDirection(t *testing.T) {
	payload := `<html><body>
		<div class="sidearm-schedule-game">
			<div class="sidearm-schedule-game-opponent-date">Oct 15</div>
			<div class="sidearm-schedule-game-opponent-name">UNC</div>
		</div>
	</body></html>`

	games := New().ExtractSchedule([]byte(payload), htmlContext())
	require.Len(t, games, 1)
	assert.Equal(t, store.LocationUnknown, games[0].LocationType)
	assert.Equal(t, "Duke", games[0].HomeTeamName, "unknown direction parks the context team on the home side")
}

func TestExtractTableDiscoversColumns(t *testing.T) {
	// Headers deliberately reordered from the conventional layout.
	payload := `<html><body>
		<table class="sidearm-table">
			<thead><tr><th>Opponent</th><th>Date</th><th>Result</th></tr></thead>
			<tbody>
				<tr><td>at UNC</td><td>Oct 15</td><td>W 2-0</td></tr>
				<tr><td>vs. Wake Forest</td><td>Nov 2</td><td></td></tr>
			</tbody>
		</table>
	</body></html>`

	games := New().ExtractSchedule([]byte(payload), htmlContext())
	require.Len(t, games, 2)

	away := games[0]
	assert.Equal(t, "2024-10-15", away.Date)
	assert.Equal(t, "UNC", away.HomeTeamName)
	assert.Equal(t, 0, *away.HomeScore)
	assert.Equal(t, 2, *away.AwayScore)
	assert.Equal(t, store.StatusFinal, away.Status)

	home := games[1]
	assert.Equal(t, "2024-11-02", home.Date)
	assert.Equal(t, "Wake Forest", home.AwayTeamName)
	assert.Equal(t, store.LocationHome, home.LocationType)
	assert.Equal(t, store.StatusScheduled, home.Status)
	assert.Nil(t, home.HomeScore)
}

func TestExtractTableZeroRows(t *testing.T) {
	payload := `<html><body>
		<table class="sidearm-table">
			<thead><tr><th>Date</th><th>Opponent</th><th>Result</th></tr></thead>
			<tbody></tbody>
		</table>
	</body></html>`

	games := New().ExtractSchedule([]byte(payload), htmlContext())
	assert.Empty(t, games)
}

func TestExtractTableSkipsShortRows(t *testing.T) {
	payload := `<html><body>
		<table class="sidearm-table">
			<tbody>
				<tr><td>Oct 15</td></tr>
				<tr><td>Oct 20</td><td>vs UNC</td><td>W 1-0</td></tr>
			</tbody>
		</table>
	</body></html>`

	games := New().ExtractSchedule([]byte(payload), htmlContext())
	require.Len(t, games, 1)
	assert.Equal(t, "2024-10-20", games[0].Date)
}

func TestExtractCarouselTile(t *testing.T) {
	payload := `<html><body>
		<div class="scoreboard-game scoreboard-game--away">
			<div class="scoreboard-game-date">Oct 15</div>
			<div class="scoreboard-game-opponent">UNC</div>
			<div class="scoreboard-game-score">2-1</div>
		</div>
	</body></html>`

	games := New().ExtractSchedule([]byte(payload), htmlContext())
	require.Len(t, games, 1)

	g := games[0]
	assert.Equal(t, store.LocationAway, g.LocationType)
	assert.Equal(t, "UNC", g.HomeTeamName)
	assert.Equal(t, 1, *g.HomeScore)
	assert.Equal(t, 2, *g.AwayScore)
	assert.Equal(t, store.StatusFinal, g.Status)
}

func TestCarouselNeverOverwritesRicherStrategies(t *testing.T) {
	// The table row says the game is still scheduled; the stale carousel tile
	// claims a score. The table version must survive, and the carousel-only
	// game must still be added.
	payload := `<html><body>
		<div class="scoreboard-game scoreboard-game--home">
			<div class="scoreboard-game-date">Oct 15</div>
			<div class="scoreboard-game-opponent">UNC</div>
			<div class="scoreboard-game-score">1-1</div>
		</div>
		<div class="scoreboard-game scoreboard-game--home">
			<div class="scoreboard-game-date">Nov 9</div>
			<div class="scoreboard-game-opponent">Clemson</div>
			<div class="scoreboard-game-score">4-0</div>
		</div>
		<table class="sidearm-table">
			<thead><tr><th>Date</th><th>Opponent</th><th>Result</th></tr></thead>
			<tbody>
				<tr><td>Oct 15</td><td>vs UNC</td><td></td></tr>
			</tbody>
		</table>
	</body></html>`

	games := New().ExtractSchedule([]byte(payload), htmlContext())
	require.Len(t, games, 2)

	byKey := map[string]store.Game{}
	for _, g := range games {
		byKey[g.DedupeKey] = g
	}

	unc := byKey["2024-10-15|duke|unc"]
	assert.Equal(t, store.StatusScheduled, unc.Status)
	assert.Nil(t, unc.HomeScore, "carousel must not overwrite the table's record")

	clemson := byKey["2024-11-09|clemson|duke"]
	assert.Equal(t, store.StatusFinal, clemson.Status)
	assert.Equal(t, 4, *clemson.HomeScore)
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		in         string
		status     store.GameStatus
		forScore   int
		against    int
		hasNumbers bool
	}{
		{"W 3-1", store.StatusFinal, 3, 1, true},
		{"L, 0-2", store.StatusFinal, 0, 2, true},
		{"T 1-1", store.StatusFinal, 1, 1, true},
		{"2-0", store.StatusFinal, 2, 0, true},
		{"W 3 - 1", store.StatusFinal, 3, 1, true},
		{"Final", store.StatusFinal, 0, 0, false},
		{"Postponed", store.StatusPostponed, 0, 0, false},
		{"Canceled", store.StatusCanceled, 0, 0, false},
		{"Cancelled", store.StatusCanceled, 0, 0, false},
		{"7:00 PM", "", 0, 0, false},
		{"", "", 0, 0, false},
	}
	for _, tt := range tests {
		scoreFor, against, status := parseResult(tt.in)
		assert.Equal(t, tt.status, status, "input %q", tt.in)
		if tt.hasNumbers {
			require.NotNil(t, scoreFor, "input %q", tt.in)
			require.NotNil(t, against, "input %q", tt.in)
			assert.Equal(t, tt.forScore, *scoreFor, "input %q", tt.in)
			assert.Equal(t, tt.against, *against, "input %q", tt.in)
		} else {
			assert.Nil(t, scoreFor, "input %q", tt.in)
			assert.Nil(t, against, "input %q", tt.in)
		}
	}
}

func TestDirectionFromStamp(t *testing.T) {
	tests := []struct {
		in     string
		isHome bool
		known  bool
	}{
		{"vs", true, true},
		{"vs.", true, true},
		{"vs. ", true, true},
		{"at", false, true},
		{"at ", false, true},
		{"", false, false},
		{"TBD", false, false},
	}
	for _, tt := range tests {
		isHome, known := directionFromStamp(tt.in)
		assert.Equal(t, tt.isHome, isHome, "input %q", tt.in)
		assert.Equal(t, tt.known, known, "input %q", tt.in)
	}
}
