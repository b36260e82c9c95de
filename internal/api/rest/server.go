package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fortuna/talon/internal/ingest"
	"github.com/fortuna/talon/internal/store"
)

// TriggerFunc asks the service to start a run of the given kind
// ("schedules" or "boxscores"). It must not block.
type TriggerFunc func(kind string) error

// Server is the REST surface over the merge store.
type Server struct {
	server  *http.Server
	handler *Handler
}

// NewServer builds the router. trigger may be nil for read-only deployments.
func NewServer(port string, st *store.MergeStore, runs *ingest.RunLog, trigger TriggerFunc) *Server {
	handler := NewHandler(st, runs, trigger)

	router := mux.NewRouter()
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/seasons/{season}/games", handler.GetSeasonGames).Methods("GET")
	api.HandleFunc("/seasons/{season}/stats", handler.GetSeasonStats).Methods("GET")
	api.HandleFunc("/runs/latest", handler.GetLatestRuns).Methods("GET")
	api.HandleFunc("/runs", handler.TriggerRun).Methods("POST")

	return &Server{
		handler: handler,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: router,
		},
	}
}

// Start starts the REST API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
