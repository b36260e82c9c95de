package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/talon/internal/ingest"
	"github.com/fortuna/talon/internal/store"
)

func testHandler(t *testing.T, trigger TriggerFunc) (*Handler, *store.MergeStore) {
	t.Helper()
	st, err := store.NewMergeStore(t.TempDir())
	require.NoError(t, err)
	return NewHandler(st, ingest.NewRunLog(), trigger), st
}

func TestHealthCheck(t *testing.T) {
	h, _ := testHandler(t, nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestGetSeasonGames(t *testing.T) {
	h, st := testHandler(t, nil)

	_, err := st.UpsertGames([]store.Game{{
		GameID: "7", Date: "2024-10-15",
		HomeTeamName: "Duke", AwayTeamName: "UNC",
		Status: store.StatusFinal, LocationType: store.LocationHome,
		DedupeKey: "2024-10-15|duke|unc",
	}}, "2024-25")
	require.NoError(t, err)

	req := mux.SetURLVars(httptest.NewRequest("GET", "/api/v1/seasons/2024-25/games", nil),
		map[string]string{"season": "2024-25"})
	rec := httptest.NewRecorder()
	h.GetSeasonGames(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Season string       `json:"season"`
		Count  int          `json:"count"`
		Games  []store.Game `json:"games"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-25", body.Season)
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Games, 1)
	assert.Equal(t, "Duke", body.Games[0].HomeTeamName)
}

func TestGetSeasonGamesEmptySeason(t *testing.T) {
	h, _ := testHandler(t, nil)

	req := mux.SetURLVars(httptest.NewRequest("GET", "/api/v1/seasons/1999-00/games", nil),
		map[string]string{"season": "1999-00"})
	rec := httptest.NewRecorder()
	h.GetSeasonGames(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
	assert.Contains(t, rec.Body.String(), `"games":[]`)
}

func TestTriggerRun(t *testing.T) {
	var triggered string
	h, _ := testHandler(t, func(kind string) error {
		triggered = kind
		return nil
	})

	rec := httptest.NewRecorder()
	h.TriggerRun(rec, httptest.NewRequest("POST", "/api/v1/runs", strings.NewReader(`{"kind":"schedules"}`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "schedules", triggered)
}

func TestTriggerRunRejectsUnknownKind(t *testing.T) {
	h, _ := testHandler(t, func(string) error { return nil })

	rec := httptest.NewRecorder()
	h.TriggerRun(rec, httptest.NewRequest("POST", "/api/v1/runs", strings.NewReader(`{"kind":"everything"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRunConflictWhileBusy(t *testing.T) {
	h, _ := testHandler(t, func(string) error { return errors.New("a run is already in progress") })

	rec := httptest.NewRecorder()
	h.TriggerRun(rec, httptest.NewRequest("POST", "/api/v1/runs", strings.NewReader(`{"kind":"boxscores"}`)))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTriggerRunUnavailableWithoutTrigger(t *testing.T) {
	h, _ := testHandler(t, nil)

	rec := httptest.NewRecorder()
	h.TriggerRun(rec, httptest.NewRequest("POST", "/api/v1/runs", strings.NewReader(`{"kind":"schedules"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
