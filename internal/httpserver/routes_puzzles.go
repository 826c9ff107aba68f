// internal/httpserver/routes_puzzles.go
//
// Puzzle play endpoints. Every route works on the caller's session:
//   - GET  /state                     → whole state, every loaded puzzle
//   - GET  /puzzles/{name}            → one loaded puzzle
//   - POST /puzzles/{name}/fetch      → start loading (202); ?wait=1 blocks until done
//   - POST /puzzles/{name}/guess      {"guess":"a"}
//   - POST /puzzles/{name}/move       {"move":"up|down|left|right"}
//   - POST /puzzles/{name}/clue       {"move":"next|previous"}
//   - POST /puzzles/{name}/remove
//   - POST /puzzles/{name}/click      {"cellNumber":7}
//   - POST /puzzles/{name}/resume     → restore saved progress
//
// Action routes answer with the whole updated state. Puzzles that are not
// loaded give 404 not_loaded and leave the state untouched.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/apps/go-server/internal/game"
	"github.com/robalobadob/crossword/apps/go-server/internal/store"
)

// mountPuzzles registers the play routes on r.
func (s *Server) mountPuzzles(r chi.Router) {
	r.Get("/state", s.handleState)
	r.Get("/puzzles/{name}", s.handleGetPuzzle)
	r.Post("/puzzles/{name}/fetch", s.handleFetch)
	r.Post("/puzzles/{name}/resume", s.handleResume)
	for _, kind := range []string{msgGuess, msgMove, msgClue, msgRemove, msgClick} {
		r.Post("/puzzles/{name}/"+kind, s.handleAction(kind))
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(s.owner(w, r))
	_ = json.NewEncoder(w).Encode(stateView(sess.engine.State()))
}

func (s *Server) handleGetPuzzle(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(s.owner(w, r))
	p, ok := sess.engine.Puzzle(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_loaded")
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(p))
}

// handleFetch issues FetchPuzzle. Only the most recent fetch of a session is
// applied, whichever puzzle it names.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, err := actionMsg{Type: msgFetch}.action(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.catalog != nil && !s.catalog.Has(name) {
		writeError(w, http.StatusNotFound, "unknown_puzzle")
		return
	}

	sess := s.sessions.get(s.owner(w, r))
	st := sess.engine.Dispatch(a)
	if r.URL.Query().Get("wait") != "1" {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(stateView(st))
		return
	}

	if err := waitLoads(r.Context(), sess.engine); err != nil {
		writeError(w, http.StatusGatewayTimeout, "fetch_timeout")
		return
	}
	st = sess.engine.State()
	if _, ok := st[name]; !ok {
		writeError(w, http.StatusBadGateway, "fetch_failed")
		return
	}
	_ = json.NewEncoder(w).Encode(stateView(st))
}

// waitLoads blocks until the engine has no load in flight or ctx ends.
func waitLoads(ctx context.Context, e *game.Engine) error {
	select {
	case <-e.Idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleAction decodes the body of an action route and dispatches it.
func (s *Server) handleAction(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var msg actionMsg
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		msg.Type = kind
		a, err := msg.action(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		sess := s.sessions.get(s.owner(w, r))
		if _, ok := sess.engine.Puzzle(name); !ok {
			writeError(w, http.StatusNotFound, "not_loaded")
			return
		}
		st := sess.engine.Dispatch(a)
		if err := sess.flush(r.Context()); err != nil {
			log.Warn().Err(err).Str("puzzle", name).Msg("flush progress")
		}
		_ = json.NewEncoder(w).Encode(stateView(st))
	}
}

// handleResume restores the caller's saved snapshot of a puzzle.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	owner := s.owner(w, r)
	saved, err := s.progress.Get(r.Context(), owner, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no_progress")
			return
		}
		log.Error().Err(err).Str("puzzle", name).Msg("load progress")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if !game.ValidSnapshot(saved.Puzzle) {
		writeError(w, http.StatusUnprocessableEntity, "bad_snapshot")
		return
	}
	sess := s.sessions.get(owner)
	st := sess.engine.Dispatch(game.RestorePuzzle{PuzzleName: name, Snapshot: saved.Puzzle})
	if err := sess.flush(r.Context()); err != nil {
		log.Warn().Err(err).Str("puzzle", name).Msg("flush progress")
	}
	_ = json.NewEncoder(w).Encode(stateView(st))
}
