package rest

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/talon/internal/ingest"
	"github.com/fortuna/talon/internal/store"
)

// Handler serves the merged dataset and run status.
type Handler struct {
	store   *store.MergeStore
	runs    *ingest.RunLog
	trigger TriggerFunc
}

// NewHandler creates a handler.
func NewHandler(st *store.MergeStore, runs *ingest.RunLog, trigger TriggerFunc) *Handler {
	return &Handler{store: st, runs: runs, trigger: trigger}
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetSeasonGames returns a season partition, ordered as persisted
// (ascending by date).
func (h *Handler) GetSeasonGames(w http.ResponseWriter, r *http.Request) {
	season := mux.Vars(r)["season"]
	games, err := h.store.LoadGames(season)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("loading season %s: %v", season, err))
		return
	}
	if games == nil {
		games = []store.Game{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"season": season,
		"count":  len(games),
		"games":  games,
	})
}

// GetSeasonStats returns a season's player stat partition.
func (h *Handler) GetSeasonStats(w http.ResponseWriter, r *http.Request) {
	season := mux.Vars(r)["season"]
	stats, err := h.store.LoadPlayerStats(season)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("loading season %s stats: %v", season, err))
		return
	}
	if stats == nil {
		stats = []store.PlayerStat{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"season": season,
		"count":  len(stats),
		"stats":  stats,
	})
}

// GetLatestRuns returns the most recent report per run kind.
func (h *Handler) GetLatestRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runs.Latest())
}

type triggerRequest struct {
	Kind string `json:"kind"`
}

// TriggerRun starts an ingestion run in the background.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "runs are not triggerable on this instance")
		return
	}
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind != "schedules" && req.Kind != "boxscores" {
		writeError(w, http.StatusBadRequest, "kind must be 'schedules' or 'boxscores'")
		return
	}
	if err := h.trigger(req.Kind); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "kind": req.Kind})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[rest] encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// RecoveryMiddleware turns handler panics into 500s instead of dropped
// connections.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[rest] panic serving %s: %v", r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[rest] %s %s (%v)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

// CORSMiddleware allows the dashboard origin.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
