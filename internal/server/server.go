// Package server exposes the Turn Engine over HTTP: the local
// control-plane surface a terminal or desktop frontend drives instead of
// embedding the engine in-process. It is one Integration surface among
// several the engine supports; nothing in internal/engine depends on it.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentcore/turnengine/internal/agent"
	"github.com/agentcore/turnengine/internal/checkpoint"
	"github.com/agentcore/turnengine/internal/engine"
	"github.com/agentcore/turnengine/internal/permission"
	"github.com/agentcore/turnengine/internal/store"
)

// Config configures the HTTP server. Zero value is not meaningful; use
// DefaultConfig.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig mirrors the teacher's default: long-lived SSE connections
// need WriteTimeout left at zero (no server-side deadline).
func DefaultConfig() Config {
	return Config{
		Port:         8765,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
	}
}

// Server is the HTTP control plane over one Engine, one Store, and one
// Arbiter. The Engine drives at most one active session at a time; this
// server's job is routing HTTP/SSE traffic to and from it, not managing
// concurrency the Engine doesn't support.
type Server struct {
	config Config
	router chi.Router
	httpSrv *http.Server

	store    *store.Store
	eng      *engine.Engine
	arbiter  *permission.Arbiter
	agents   *agent.Registry
	prompter *HTTPPrompter

	checkpointKeep int
}

// New builds a Server wired to the given collaborators and registers
// routes and middleware.
func New(cfg Config, st *store.Store, eng *engine.Engine, arbiter *permission.Arbiter, agents *agent.Registry, prompter *HTTPPrompter) *Server {
	s := &Server{
		config:         cfg,
		router:         chi.NewRouter(),
		store:          st,
		eng:            eng,
		arbiter:        arbiter,
		agents:         agents,
		prompter:       prompter,
		checkpointKeep: 10,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start runs the HTTP server, blocking until it stops.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// checkpointRecorderFor builds a Recorder rooted at session id's on-disk
// directory, used by the checkpoint list handler for sessions other than
// the one whose live Recorder the Engine holds.
func (s *Server) checkpointRecorderFor(sessionID string) *checkpoint.Recorder {
	return checkpoint.New(s.store.SessionDir(sessionID), s.checkpointKeep)
}
