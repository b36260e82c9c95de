package sidearm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxScoreContext() Context {
	return Context{
		TeamName:    "Duke",
		PageURL:     "https://goduke.com/boxscore/123",
		AssumedYear: 2024,
		GameID:      "2024-10-15-unc-duke",
	}
}

const dukeStatTable = `
<table class="sidearm-table">
	<caption>Duke Individual Statistics</caption>
	<thead><tr><th>##</th><th>Player</th><th>SH</th><th>SOG</th><th>G</th><th>A</th><th>PTS</th><th>MIN</th></tr></thead>
	<tbody>
		<tr>
			<td>7</td>
			<td><a href="/roster/jane-smith/1234">Smith, Jane</a></td>
			<td>4</td><td>2</td><td>1</td><td>1</td><td>3</td><td>90:00</td>
		</tr>
		<tr>
			<td>11</td>
			<td>Jones, Amy</td>
			<td>2</td><td>1</td><td>0</td><td>2</td><td>2</td><td>45.5</td>
		</tr>
		<tr><td></td><td>Totals</td><td>6</td><td>3</td><td>1</td><td>3</td><td>5</td><td></td></tr>
	</tbody>
</table>`

func TestExtractBoxScore(t *testing.T) {
	payload := "<html><body>" + dukeStatTable + "</body></html>"

	stats := New().ExtractBoxScore([]byte(payload), boxScoreContext())
	require.Len(t, stats, 2, "the totals row is not a player line")

	smith := stats[0]
	assert.Equal(t, "2024-10-15-unc-duke", smith.GameID)
	assert.Equal(t, "duke", smith.TeamID)
	assert.Equal(t, "Jane Smith", smith.PlayerName)
	assert.Equal(t, "duke_1234", smith.PlayerKey, "the profile-link id wins over the name")
	assert.Equal(t, "7", smith.JerseyNumber)
	assert.Equal(t, 4, smith.Shots)
	assert.Equal(t, 1, smith.Goals)
	assert.Equal(t, 1, smith.Assists)
	assert.Equal(t, 90.0, smith.Minutes)
	assert.Equal(t, "1", smith.Stats["g"])
	assert.Equal(t, "2", smith.Stats["sog"])
	assert.Equal(t, "3", smith.Stats["pts"])

	jones := stats[1]
	assert.Equal(t, "duke_amy-jones", jones.PlayerKey, "no profile link falls back to the slugged name")
	assert.Equal(t, 45.5, jones.Minutes)
	assert.Equal(t, 2, jones.Assists)
}

func TestExtractBoxScoreBothTeams(t *testing.T) {
	payload := `<html><body>
	<table class="sidearm-table">
		<caption>Duke Individual Statistics</caption>
		<tbody>
			<tr><td>7</td><td>Smith, Jane</td><td>4</td><td>2</td><td>1</td><td>1</td><td>3</td><td>90</td></tr>
		</tbody>
	</table>
	<table class="sidearm-table">
		<caption>UNC Individual Statistics</caption>
		<tbody>
			<tr><td>9</td><td>Lee, Morgan</td><td>3</td><td>1</td><td>0</td><td>0</td><td>0</td><td>88</td></tr>
		</tbody>
	</table>
	</body></html>`

	stats := New().ExtractBoxScore([]byte(payload), boxScoreContext())
	require.Len(t, stats, 2)
	assert.Equal(t, "duke", stats[0].TeamID)
	assert.Equal(t, "unc", stats[1].TeamID)
	assert.Equal(t, "Morgan Lee", stats[1].PlayerName)
}

func TestExtractBoxScoreSkipsShortRows(t *testing.T) {
	payload := `<html><body>
	<table class="sidearm-table">
		<caption>Duke Stats</caption>
		<tbody>
			<tr><td>2</td><td>Short, Row</td><td>1</td><td>2</td><td>0</td></tr>
			<tr><td>7</td><td>Smith, Jane</td><td>4</td><td>2</td><td>1</td><td>1</td><td>3</td><td>90</td></tr>
		</tbody>
	</table>
	</body></html>`

	stats := New().ExtractBoxScore([]byte(payload), boxScoreContext())
	require.Len(t, stats, 1, "a five-column row cannot be a stat line")
	assert.Equal(t, "Jane Smith", stats[0].PlayerName)
}

func TestExtractBoxScoreIgnoresCaptionlessTables(t *testing.T) {
	payload := `<html><body>
	<table class="sidearm-table">
		<tbody>
			<tr><td>7</td><td>Smith, Jane</td><td>4</td><td>2</td><td>1</td><td>1</td><td>3</td><td>90</td></tr>
		</tbody>
	</table>
	</body></html>`

	stats := New().ExtractBoxScore([]byte(payload), boxScoreContext())
	assert.Empty(t, stats)
}

func TestExtractBoxScoreEmptyPage(t *testing.T) {
	stats := New().ExtractBoxScore([]byte("<html><body><p>No stats yet</p></body></html>"), boxScoreContext())
	assert.Empty(t, stats)
}

func TestTeamFromCaption(t *testing.T) {
	assert.Equal(t, "Duke", teamFromCaption("Duke Individual Statistics"))
	assert.Equal(t, "Duke", teamFromCaption("Duke Statistics"))
	assert.Equal(t, "Wake Forest", teamFromCaption("  Wake Forest Stats "))
	assert.Equal(t, "", teamFromCaption(""))
}
