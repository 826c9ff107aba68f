// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily puzzle.
// Exposes three endpoints under /daily:
//   - GET  /daily             → today's puzzle name and whether the caller solved it
//   - POST /daily/start       → start the clock and load today's puzzle
//   - GET  /daily/leaderboard → fastest solves for today (or ?date=YYYY-MM-DD)
//
// The puzzle is picked from the catalog by HMAC(date, DAILY_SALT), so every
// player gets the same one. A solve counts once per player per day and only
// after /daily/start; the elapsed time runs from the first start.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/apps/go-server/internal/daily"
	"github.com/robalobadob/crossword/apps/go-server/internal/game"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv   *Server
	store *daily.Store
	salt  string
	now   func() time.Time

	mu     sync.Mutex
	starts map[string]time.Time // keyed by owner|date
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	s.daily = &dailyServer{
		srv:    s,
		store:  daily.NewStore(s.db.DB()),
		salt:   s.cfg.DailySalt,
		now:    time.Now,
		starts: make(map[string]time.Time),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Get("/", s.daily.handleToday)
		r.Post("/start", s.daily.handleStart)
		r.Get("/leaderboard", s.daily.handleLeaderboard)
	})
}

// today returns today's date key, catalog index and puzzle name.
func (d *dailyServer) today() (date string, idx int, name string, ok bool) {
	return d.puzzleOn(d.now())
}

// puzzleOn returns the date key, catalog index and puzzle name for now.
func (d *dailyServer) puzzleOn(now time.Time) (date string, idx int, name string, ok bool) {
	date = daily.DateKey(now)
	c := d.srv.catalog
	if c == nil || c.Len() == 0 {
		return date, 0, "", false
	}
	idx = daily.PuzzleIndex(now, d.salt, c.Len())
	return date, idx, c.At(idx), true
}

// todayRes is returned by GET /daily and POST /daily/start.
type todayRes struct {
	Date    string `json:"date"`
	Puzzle  string `json:"puzzle"`
	Played  bool   `json:"played"`
	Started bool   `json:"started"`
}

func (d *dailyServer) handleToday(w http.ResponseWriter, r *http.Request) {
	date, _, name, ok := d.today()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no_catalog")
		return
	}
	owner := d.srv.owner(w, r)
	played, err := d.store.AlreadyPlayed(r.Context(), owner, date)
	if err != nil {
		log.Error().Err(err).Msg("daily played check")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	d.mu.Lock()
	_, started := d.starts[owner+"|"+date]
	d.mu.Unlock()
	_ = json.NewEncoder(w).Encode(todayRes{Date: date, Puzzle: name, Played: played, Started: started})
}

// handleStart records the start time (first call wins) and loads the puzzle
// into the caller's session unless it is already there.
func (d *dailyServer) handleStart(w http.ResponseWriter, r *http.Request) {
	date, _, name, ok := d.today()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no_catalog")
		return
	}
	owner := d.srv.owner(w, r)
	if played, err := d.store.AlreadyPlayed(r.Context(), owner, date); err == nil && played {
		_ = json.NewEncoder(w).Encode(todayRes{Date: date, Puzzle: name, Played: true})
		return
	}

	key := owner + "|" + date
	d.mu.Lock()
	d.pruneStarts(date)
	if _, ok := d.starts[key]; !ok {
		d.starts[key] = d.now()
	}
	d.mu.Unlock()

	sess := d.srv.sessions.get(owner)
	if _, loaded := sess.engine.Puzzle(name); !loaded {
		sess.engine.Dispatch(game.FetchPuzzle{PuzzleName: name})
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(todayRes{Date: date, Puzzle: name, Started: true})
}

func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "bad_date")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := d.store.Leaderboard(r.Context(), date, limit)
	if err != nil {
		log.Error().Err(err).Msg("daily leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"date": date, "rows": rows})
}

// recordSolve stores a daily result if name was the daily puzzle at the
// time of the solve and owner started it.
func (d *dailyServer) recordSolve(ctx context.Context, owner, name string, at time.Time) {
	date, idx, today, ok := d.puzzleOn(at)
	if !ok || name != today {
		return
	}
	key := owner + "|" + date
	d.mu.Lock()
	start, started := d.starts[key]
	delete(d.starts, key)
	d.mu.Unlock()
	if !started {
		return
	}
	res := daily.Result{
		UserID:      owner,
		Date:        date,
		PuzzleIndex: idx,
		ElapsedMs:   at.Sub(start).Milliseconds(),
	}
	if err := d.store.InsertResult(ctx, res); err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("insert daily result")
	}
}

// pruneStarts forgets clocks started on any day but date. Called with d.mu
// held.
func (d *dailyServer) pruneStarts(date string) {
	for key := range d.starts {
		if !strings.HasSuffix(key, "|"+date) {
			delete(d.starts, key)
		}
	}
}

// expireStarts drops clocks left over from earlier days.
func (d *dailyServer) expireStarts() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneStarts(daily.DateKey(d.now()))
}

// claimStarts moves running daily clocks from an anonymous player to a user.
func (d *dailyServer) claimStarts(from, to string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	date := daily.DateKey(d.now())
	if start, ok := d.starts[from+"|"+date]; ok {
		delete(d.starts, from+"|"+date)
		if _, exists := d.starts[to+"|"+date]; !exists {
			d.starts[to+"|"+date] = start
		}
	}
}
