// Package webhook receives push notifications from Home Assistant
// automations and hands them to triage.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hearthd/hearth/internal/triage"
)

// dispatcher is the triage entry point the server hands events to.
type dispatcher interface {
	Dispatch(ctx context.Context, event triage.Event)
}

// Server accepts alert webhooks on POST /alert.
type Server struct {
	address    string
	port       int
	dispatcher dispatcher
	logger     *slog.Logger
	server     *http.Server
}

// NewServer creates a webhook server.
func NewServer(address string, port int, d dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:    address,
		port:       port,
		dispatcher: d,
		logger:     logger.With("component", "webhook"),
	}
}

// alertPayload is the inbound webhook body.
type alertPayload struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	EntityID string `json:"entity_id"`
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/alert", s.handleAlert)
	r.Get("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.logger.Info("webhook server listening", "address", s.address, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleAlert acknowledges immediately and triages in the background, so
// a slow model never blocks the HA automation that fired the webhook.
func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	var payload alertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if payload.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	s.logger.Info("webhook alert received",
		"title", payload.Title,
		"entity_id", payload.EntityID,
	)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.dispatcher.Dispatch(ctx, triage.Event{
			Title:    payload.Title,
			Message:  payload.Message,
			EntityID: payload.EntityID,
		})
	}()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"healthy"}`)
}
