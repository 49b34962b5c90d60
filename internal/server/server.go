// Package server sets up the HTTP router, middleware, and request handlers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/howard-nolan/llmproxy/internal/config"
	"github.com/howard-nolan/llmproxy/internal/orchestrator"
	"github.com/howard-nolan/llmproxy/internal/tokencount"
)

// Server holds the HTTP router and every dependency the handlers need.
type Server struct {
	router chi.Router
	cfg    *config.Config
	orch   *orchestrator.Orchestrator
	tokens *tokencount.Counter
}

// New creates a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler. tokens may be nil — when so, the
// count_tokens endpoint responds 501, per spec.md §6.
func New(cfg *config.Config, orch *orchestrator.Orchestrator, tokens *tokencount.Counter) *Server {
	s := &Server{cfg: cfg, orch: orch, tokens: tokens}
	s.routes()
	return s
}

// routes builds the chi router with all middleware and route definitions.
func (s *Server) routes() {
	r := chi.NewRouter()

	// middleware.Logger prints one log line per request (method, path,
	// status, duration) — the per-request logging hook spec.md §1 keeps in
	// scope as an ambient concern.
	r.Use(middleware.Logger)

	// middleware.Recoverer turns a handler panic into a 500 instead of
	// crashing the process.
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/v1/messages", s.handleMessages)
	r.Post("/v1/messages/count_tokens", s.handleCountTokens)

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
