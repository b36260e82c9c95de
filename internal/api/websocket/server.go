// Package websocket streams run-progress events to dashboard clients.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/fortuna/talon/internal/ingest"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard runs on a different origin in development
	},
}

// Server pushes pipeline events over websockets.
type Server struct {
	server *http.Server
	hub    *Hub
}

// NewServer creates the server and its hub.
func NewServer() *Server {
	return &Server{hub: NewHub()}
}

// Start listens on the given port.
func (s *Server) Start(port string) error {
	go s.hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/runs", s.handleRuns)
	mux.HandleFunc("/ws/health", s.handleHealth)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: mux,
	}
	log.Printf("[ws] listening on :%s", port)
	return s.server.ListenAndServe()
}

// BroadcastEvent serializes a pipeline event to every client. Wire it to
// ingest.Runner.OnEvent.
func (s *Server) BroadcastEvent(e ingest.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("[ws] encoding event: %v", err)
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "clients": %d}`, s.hub.ClientCount())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
