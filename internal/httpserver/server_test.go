package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalobadob/crossword/apps/go-server/assets"
	"github.com/robalobadob/crossword/apps/go-server/internal/catalog"
	"github.com/robalobadob/crossword/apps/go-server/internal/config"
	"github.com/robalobadob/crossword/apps/go-server/internal/fetch"
	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
	"github.com/robalobadob/crossword/apps/go-server/internal/store"
)

func testConfig() config.Config {
	return config.Config{
		Port:           "0",
		AppEnv:         "test",
		FetchTimeout:   time.Second,
		JWTSecret:      "test_secret",
		JWTExpiresDays: 1,
		CookieName:     "tok",
		AnonCookieName: "anon",
		ClientOrigin:   "http://localhost:5173",
		DailySalt:      "salt",
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	return newTestServerWith(t, store.NewMemoryStore())
}

// newTestServerWith builds a server that saves progress to progress.
func newTestServerWith(t *testing.T, progress store.Store) (*Server, *httptest.Server) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.New(assets.Puzzles())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(ctx, Deps{
		Config:   testConfig(),
		DB:       db,
		Progress: progress,
		Fetcher:  fetch.FSFetcher{FS: assets.Puzzles()},
		Catalog:  cat,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		srv.sessions.closeAll()
		_ = db.Close()
	})
	return srv, ts
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

// call performs a request and returns the status and raw body.
func call(t *testing.T, c *http.Client, method, url string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, out
}

func decodeState(t *testing.T, body []byte) map[string]puzzleView {
	t.Helper()
	var st map[string]puzzleView
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode state %s: %v", body, err)
	}
	return st
}

func expectError(t *testing.T, status int, body []byte, wantStatus int, code string) {
	t.Helper()
	if status != wantStatus || !strings.Contains(string(body), `"`+code+`"`) {
		t.Fatalf("expected %d %s, got %d %s", wantStatus, code, status, body)
	}
}

// answers loads the solution of a bundled puzzle.
func answers(t *testing.T, name string) puzzle.Puzzle {
	t.Helper()
	resp, err := fetch.FSFetcher{FS: assets.Puzzles()}.Fetch(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	p, err := puzzle.Initialize(resp[0])
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// solve types every answer of name through the HTTP routes.
func solve(t *testing.T, c *http.Client, base, name string) map[string]puzzleView {
	t.Helper()
	var st map[string]puzzleView
	for i, cell := range answers(t, name).Cells {
		if cell.IsBlocked() {
			continue
		}
		status, body := call(t, c, http.MethodPost, base+"/puzzles/"+name+"/click", map[string]int{"cellNumber": i})
		if status != http.StatusOK {
			t.Fatalf("click %d: %d %s", i, status, body)
		}
		status, body = call(t, c, http.MethodPost, base+"/puzzles/"+name+"/guess", map[string]string{"guess": strings.ToLower(cell.Answer)})
		if status != http.StatusOK {
			t.Fatalf("guess %d: %d %s", i, status, body)
		}
		st = decodeState(t, body)
	}
	return st
}

func TestDiagnostics(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t)

	status, body := call(t, c, http.MethodGet, ts.URL+"/health", nil)
	if status != http.StatusOK || string(body) != `{"ok":true}` {
		t.Fatalf("health: %d %s", status, body)
	}

	status, body = call(t, c, http.MethodGet, ts.URL+"/puzzles", nil)
	if status != http.StatusOK || !strings.Contains(string(body), "mini-001") {
		t.Fatalf("catalog: %d %s", status, body)
	}

	status, body = call(t, c, http.MethodGet, ts.URL+"/nope", nil)
	expectError(t, status, body, http.StatusNotFound, "not_found")

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/state", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("preflight: %d %v", resp.StatusCode, resp.Header)
	}
}

func TestPlayFlow(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t)
	base := ts.URL + "/puzzles/mini-002"

	// Nothing is loaded yet.
	status, body := call(t, c, http.MethodPost, base+"/guess", map[string]string{"guess": "c"})
	expectError(t, status, body, http.StatusNotFound, "not_loaded")
	status, body = call(t, c, http.MethodGet, ts.URL+"/state", nil)
	if status != http.StatusOK || len(decodeState(t, body)) != 0 {
		t.Fatalf("expected empty state, got %d %s", status, body)
	}

	status, body = call(t, c, http.MethodPost, base+"/fetch?wait=1", nil)
	if status != http.StatusOK {
		t.Fatalf("fetch: %d %s", status, body)
	}
	if strings.Contains(string(body), `"answer"`) {
		t.Fatalf("views must not expose answers: %s", body)
	}
	p := decodeState(t, body)["mini-002"]
	if p.Width != 5 || p.Height != 3 || p.ActiveCellNumber != 0 || p.ActiveDirection != puzzle.Across {
		t.Fatalf("unexpected initial view: %+v", p)
	}
	if !p.Cells[3].Blocked || p.Cells[0].ClueNumber != 1 || p.ActiveClue == nil || p.ActiveClue.Number != 1 {
		t.Fatalf("unexpected cells: %+v", p.Cells)
	}

	status, body = call(t, c, http.MethodPost, base+"/guess", map[string]string{"guess": "c"})
	if status != http.StatusOK {
		t.Fatalf("guess: %d %s", status, body)
	}
	p = decodeState(t, body)["mini-002"]
	if p.Cells[0].Guess != "C" || p.ActiveCellNumber != 1 || p.Progress.Filled != 1 {
		t.Fatalf("after guess: %+v", p)
	}

	// Arrow down from an across cursor switches direction and steps.
	status, body = call(t, c, http.MethodPost, base+"/move", map[string]string{"move": "down"})
	if status != http.StatusOK {
		t.Fatalf("move: %d %s", status, body)
	}
	p = decodeState(t, body)["mini-002"]
	if p.ActiveDirection != puzzle.Down {
		t.Fatalf("expected down, got %+v", p)
	}

	status, body = call(t, c, http.MethodPost, base+"/click", map[string]int{"cellNumber": 10})
	if status != http.StatusOK {
		t.Fatalf("click: %d %s", status, body)
	}
	p = decodeState(t, body)["mini-002"]
	if p.ActiveCellNumber != 10 {
		t.Fatalf("expected 10, got %d", p.ActiveCellNumber)
	}

	status, body = call(t, c, http.MethodPost, base+"/clue", map[string]string{"move": "next"})
	if status != http.StatusOK {
		t.Fatalf("clue: %d %s", status, body)
	}

	status, body = call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-002/remove", nil)
	if status != http.StatusOK {
		t.Fatalf("remove: %d %s", status, body)
	}

	status, body = call(t, c, http.MethodGet, base, nil)
	if status != http.StatusOK {
		t.Fatalf("get: %d %s", status, body)
	}
	var one puzzleView
	if err := json.Unmarshal(body, &one); err != nil {
		t.Fatal(err)
	}
	if one.Cells[0].Guess != "C" {
		t.Fatalf("expected guess to survive, got %+v", one.Cells[0])
	}

	// A second player does not see the first player's state.
	other := newClient(t)
	status, body = call(t, other, http.MethodGet, base, nil)
	expectError(t, status, body, http.StatusNotFound, "not_loaded")
}

func TestRejectsBadInput(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t)

	status, body := call(t, c, http.MethodPost, ts.URL+"/puzzles/bad.name/fetch", nil)
	expectError(t, status, body, http.StatusBadRequest, "bad_name")

	status, body = call(t, c, http.MethodPost, ts.URL+"/puzzles/missing/fetch", nil)
	expectError(t, status, body, http.StatusNotFound, "unknown_puzzle")

	status, body = call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-001/fetch?wait=1", nil)
	if status != http.StatusOK {
		t.Fatalf("fetch: %d %s", status, body)
	}

	status, body = call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-001/move", map[string]string{"move": "next"})
	expectError(t, status, body, http.StatusBadRequest, "bad_move")

	status, body = call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-001/clue", map[string]string{"move": "up"})
	expectError(t, status, body, http.StatusBadRequest, "bad_move")

	status, body = call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-001/click", map[string]string{})
	expectError(t, status, body, http.StatusBadRequest, "bad_cell")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/puzzles/mini-001/guess", strings.NewReader("{"))
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", resp.StatusCode)
	}
}

func TestFetchAcceptedWithoutWait(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t)

	status, _ := call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-003/fetch", nil)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", status)
	}
	// Poll until the background load lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		status, _ = call(t, c, http.MethodGet, ts.URL+"/puzzles/mini-003", nil)
		if status == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("puzzle never loaded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestResume(t *testing.T) {
	srv, ts := newTestServer(t)
	c := newClient(t)
	base := ts.URL + "/puzzles/mini-001"

	status, body := call(t, c, http.MethodPost, base+"/resume", nil)
	expectError(t, status, body, http.StatusNotFound, "no_progress")

	call(t, c, http.MethodPost, base+"/fetch?wait=1", nil)
	call(t, c, http.MethodPost, base+"/guess", map[string]string{"guess": "b"})
	call(t, c, http.MethodPost, base+"/guess", map[string]string{"guess": "x"})

	// Simulate the session being evicted.
	srv.sessions.closeAll()
	status, body = call(t, c, http.MethodGet, base, nil)
	expectError(t, status, body, http.StatusNotFound, "not_loaded")

	status, body = call(t, c, http.MethodPost, base+"/resume", nil)
	if status != http.StatusOK {
		t.Fatalf("resume: %d %s", status, body)
	}
	p := decodeState(t, body)["mini-001"]
	if p.Cells[0].Guess != "B" || p.Cells[1].Guess != "X" || p.ActiveCellNumber != 2 {
		t.Fatalf("unexpected resumed view: %+v", p)
	}

	status, body = call(t, c, http.MethodGet, ts.URL+"/progress/mine", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"puzzleName":"mini-001"`) {
		t.Fatalf("progress: %d %s", status, body)
	}
}

func TestAuthClaimsAnonymousProgress(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t)

	call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-001/fetch?wait=1", nil)
	call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-001/guess", map[string]string{"guess": "b"})

	status, body := call(t, c, http.MethodGet, ts.URL+"/auth/me", nil)
	expectError(t, status, body, http.StatusUnauthorized, "unauthorized")

	creds := map[string]string{"username": "solver", "password": "password1"}
	status, body = call(t, c, http.MethodPost, ts.URL+"/auth/signup", creds)
	if status != http.StatusCreated {
		t.Fatalf("signup: %d %s", status, body)
	}
	status, body = call(t, c, http.MethodPost, ts.URL+"/auth/signup", creds)
	expectError(t, status, body, http.StatusConflict, "username_taken")

	status, body = call(t, c, http.MethodGet, ts.URL+"/auth/me", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"username":"solver"`) {
		t.Fatalf("me: %d %s", status, body)
	}

	status, body = call(t, c, http.MethodGet, ts.URL+"/progress/mine", nil)
	if status != http.StatusOK || !strings.Contains(string(body), "mini-001") {
		t.Fatalf("claimed progress missing: %d %s", status, body)
	}

	// The anonymous session was dropped; the user resumes.
	status, body = call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-001/resume", nil)
	if status != http.StatusOK {
		t.Fatalf("resume: %d %s", status, body)
	}
	if decodeState(t, body)["mini-001"].Cells[0].Guess != "B" {
		t.Fatalf("resumed progress lost: %s", body)
	}

	status, _ = call(t, c, http.MethodPost, ts.URL+"/auth/logout", nil)
	if status != http.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	status, body = call(t, c, http.MethodGet, ts.URL+"/auth/me", nil)
	expectError(t, status, body, http.StatusUnauthorized, "unauthorized")

	status, body = call(t, c, http.MethodPost, ts.URL+"/auth/login", map[string]string{"username": "solver", "password": "wrong-password"})
	expectError(t, status, body, http.StatusUnauthorized, "invalid_credentials")

	status, body = call(t, c, http.MethodPost, ts.URL+"/auth/login", creds)
	if status != http.StatusOK {
		t.Fatalf("login: %d %s", status, body)
	}
}

func TestSolvingCountsForUser(t *testing.T) {
	srv, ts := newTestServer(t)
	c := newClient(t)

	status, body := call(t, c, http.MethodPost, ts.URL+"/auth/signup", map[string]string{"username": "finisher", "password": "password1"})
	if status != http.StatusCreated {
		t.Fatalf("signup: %d %s", status, body)
	}
	call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-001/fetch?wait=1", nil)
	st := solve(t, c, ts.URL, "mini-001")
	if !st["mini-001"].Solved {
		t.Fatalf("expected solved, got %+v", st["mini-001"])
	}
	// Retyping a correct letter keeps it solved without counting twice.
	call(t, c, http.MethodPost, ts.URL+"/puzzles/mini-001/guess", map[string]string{"guess": "n"})

	u, err := srv.db.FindUserByUsername(context.Background(), "finisher")
	if err != nil {
		t.Fatal(err)
	}
	if u.PuzzlesSolved != 1 {
		t.Fatalf("expected 1 solved puzzle, got %d", u.PuzzlesSolved)
	}
}

func TestDaily(t *testing.T) {
	srv, ts := newTestServer(t)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var clock atomic.Int64
	clock.Store(start.UnixNano())
	srv.daily.now = func() time.Time { return time.Unix(0, clock.Load()).UTC() }
	c := newClient(t)

	status, body := call(t, c, http.MethodGet, ts.URL+"/daily", nil)
	if status != http.StatusOK {
		t.Fatalf("daily: %d %s", status, body)
	}
	var today todayRes
	if err := json.Unmarshal(body, &today); err != nil {
		t.Fatal(err)
	}
	if today.Date != "2024-05-01" || !srv.catalog.Has(today.Puzzle) || today.Played || today.Started {
		t.Fatalf("unexpected daily: %+v", today)
	}

	// Solving before starting the clock does not count.
	call(t, c, http.MethodPost, ts.URL+"/puzzles/"+today.Puzzle+"/fetch?wait=1", nil)
	solve(t, c, ts.URL, today.Puzzle)
	status, body = call(t, c, http.MethodGet, ts.URL+"/daily/leaderboard", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"rows":[]`) {
		t.Fatalf("expected empty board, got %d %s", status, body)
	}

	status, body = call(t, c, http.MethodPost, ts.URL+"/daily/start", nil)
	if status != http.StatusAccepted {
		t.Fatalf("start: %d %s", status, body)
	}
	// Start a fresh copy and solve it 90 seconds later.
	call(t, c, http.MethodPost, ts.URL+"/puzzles/"+today.Puzzle+"/fetch?wait=1", nil)
	clock.Store(start.Add(90 * time.Second).UnixNano())
	solve(t, c, ts.URL, today.Puzzle)

	status, body = call(t, c, http.MethodGet, ts.URL+"/daily/leaderboard?date=2024-05-01", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"elapsedMs":90000`) {
		t.Fatalf("leaderboard: %d %s", status, body)
	}
	status, body = call(t, c, http.MethodGet, ts.URL+"/daily", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"played":true`) {
		t.Fatalf("expected played: %d %s", status, body)
	}

	status, body = call(t, c, http.MethodGet, ts.URL+"/daily/leaderboard?date=yesterday", nil)
	expectError(t, status, body, http.StatusBadRequest, "bad_date")
}

func TestDailyStartsExpire(t *testing.T) {
	srv, ts := newTestServer(t)
	var clock atomic.Int64
	day1 := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	clock.Store(day1.UnixNano())
	srv.daily.now = func() time.Time { return time.Unix(0, clock.Load()).UTC() }

	starts := func() int {
		srv.daily.mu.Lock()
		defer srv.daily.mu.Unlock()
		return len(srv.daily.starts)
	}

	for range 2 {
		c := newClient(t)
		if status, body := call(t, c, http.MethodPost, ts.URL+"/daily/start", nil); status != http.StatusAccepted {
			t.Fatalf("start: %d %s", status, body)
		}
	}
	if n := starts(); n != 2 {
		t.Fatalf("expected 2 running clocks, got %d", n)
	}

	// A start on the next day forgets yesterday's unsolved clocks.
	clock.Store(day1.Add(2 * time.Hour).UnixNano())
	if status, body := call(t, newClient(t), http.MethodPost, ts.URL+"/daily/start", nil); status != http.StatusAccepted {
		t.Fatalf("start: %d %s", status, body)
	}
	if n := starts(); n != 1 {
		t.Fatalf("expected only today's clock, got %d", n)
	}

	// The reaper tick does the same without any new start.
	clock.Store(day1.Add(26 * time.Hour).UnixNano())
	srv.daily.expireStarts()
	if n := starts(); n != 0 {
		t.Fatalf("expected no clocks left, got %d", n)
	}
}
