// Package api exposes the interview engine over HTTP for the clinic's
// kiosk and web clients.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/voight/internal/dialog"
	"github.com/MikeSquared-Agency/voight/internal/session"
	"github.com/MikeSquared-Agency/voight/internal/slack"
	"github.com/MikeSquared-Agency/voight/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type Server struct {
	router     *chi.Mux
	port       int
	logger     *slog.Logger
	manager    *session.Manager
	controller *dialog.Controller
	db         *store.Store  // nil when persistence is disabled
	poster     *slack.Poster // nil when slack is disabled
	events     dialog.Events // nil when the bus is disabled

	mu      sync.Mutex
	current map[uuid.UUID]string // session id -> slot currently being asked
}

func NewServer(port int, apiToken string, manager *session.Manager, controller *dialog.Controller, db *store.Store, poster *slack.Poster, events dialog.Events, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:     router,
		port:       port,
		logger:     logger,
		manager:    manager,
		controller: controller,
		db:         db,
		poster:     poster,
		events:     events,
		current:    make(map[uuid.UUID]string),
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/voight/status", s.status)

	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/", s.createSession)
		r.Post("/{id}/turns", s.processTurn)
		r.Post("/{id}/reset", s.resetSession)
		r.Post("/{id}/skip", s.skipSlot)
		r.Get("/{id}/stats", s.sessionStats)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// BearerAuthMiddleware rejects requests without the expected bearer token.
// An empty token disables auth, for local development.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":         "voight",
		"status":        "active",
		"live_sessions": s.manager.Count(),
	})
}

func (s *Server) setCurrent(id uuid.UUID, slotID string) {
	s.mu.Lock()
	if slotID == "" {
		delete(s.current, id)
	} else {
		s.current[id] = slotID
	}
	s.mu.Unlock()
}

func (s *Server) currentSlot(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[id]
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
