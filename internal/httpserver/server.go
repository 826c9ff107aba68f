// internal/httpserver/server.go
//
// HTTP server wiring for the crossword backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/puzzles".
//   - Puzzle play endpoints (optional auth): /state, /puzzles/{name}/*.
//   - Daily endpoints (optional auth): mounted under /daily.
//   - Auth endpoints: /auth/*; saved progress: /progress/mine.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Every player (user or anonymous cookie) owns one engine session holding
//     the whole puzzle state; see sessions.go.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/apps/go-server/internal/catalog"
	"github.com/robalobadob/crossword/apps/go-server/internal/config"
	"github.com/robalobadob/crossword/apps/go-server/internal/fetch"
	"github.com/robalobadob/crossword/apps/go-server/internal/store"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config   config.Config
	DB       *store.SQLite // users and daily results
	Progress store.Store   // saved puzzle snapshots
	Fetcher  fetch.Fetcher
	Catalog  *catalog.Catalog // nil when puzzles come from a remote host
}

// Server bundles router, sessions and persistence.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	db       *store.SQLite
	progress store.Store
	fetcher  fetch.Fetcher
	catalog  *catalog.Catalog
	daily    *dailyServer
	sessions *sessions
}

// New constructs a Server, installs middleware, and registers routes.
// Sessions live until ctx ends.
func New(ctx context.Context, d Deps) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      d.Config,
		db:       d.DB,
		progress: d.Progress,
		fetcher:  d.Fetcher,
		catalog:  d.Catalog,
	}
	s.sessions = newSessions(ctx, s)

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(requestLogger)
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"crossword-go","endpoints":["/health","/puzzles","/state","/puzzles/{name}/*","/daily","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/puzzles", s.handleCatalog)

	// Websockets are long-lived; keep them out of the handler timeout.
	s.r.With(s.withOptionalAuth()).Get("/puzzles/{name}/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(s.withOptionalAuth())
		s.mountPuzzles(r)
		s.mountDaily(r)
		r.Get("/progress/mine", s.handleProgressMine)
	})

	s.mountAuthRoutes()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Router exposes the internal router (used by main and tests).
func (s *Server) Router() chi.Router { return s.r }

// Run evicts idle sessions and stale daily clocks until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.sessions.closeAll()
			return nil
		case <-t.C:
			s.daily.expireStarts()
			if n := s.sessions.reap(sessionIdle); n > 0 {
				log.Info().Int("sessions", n).Msg("evicted idle sessions")
			}
		}
	}
}

// handleCatalog lists the puzzles on offer.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if s.catalog != nil {
		names = s.catalog.Names()
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"puzzles": names})
}

// handleProgressMine lists the caller's saved puzzles.
func (s *Server) handleProgressMine(w http.ResponseWriter, r *http.Request) {
	list, err := s.progress.List(r.Context(), s.owner(w, r))
	if err != nil {
		log.Error().Err(err).Msg("list progress")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	type row struct {
		store.Progress
		Filled int `json:"filled"`
		Open   int `json:"open"`
	}
	out := make([]row, 0, len(list))
	for _, p := range list {
		pr := p.Puzzle.Progress()
		out = append(out, row{Progress: p, Filled: pr.Filled, Open: pr.Open})
	}
	_ = json.NewEncoder(w).Encode(out)
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one zerolog line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("reqId", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}

// writeError writes {"error": code} with status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `"}`))
}
