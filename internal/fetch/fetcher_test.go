package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
)

const miniJSON = `[{"title":"Mini","size":{"rows":1,"cols":3},"grid":["A","B","C"],"clues":{"across":["1. First three"],"down":[]}}]`

func TestDecode(t *testing.T) {
	got, err := Decode(strings.NewReader(miniJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Mini" || len(got[0].Grid) != 3 {
		t.Fatalf("unexpected payload: %+v", got)
	}

	// A bare object is accepted as a single-element payload.
	obj := strings.TrimSuffix(strings.TrimPrefix(miniJSON, "["), "]")
	got, err = Decode(strings.NewReader("\n  " + obj))
	if err != nil || len(got) != 1 {
		t.Fatalf("bare object: got %v, %v", got, err)
	}

	if _, err := Decode(strings.NewReader("[]")); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
	if _, err := Decode(strings.NewReader("   ")); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload for blank body, got %v", err)
	}
	if _, err := Decode(strings.NewReader(`[{"size":{"rows":2,"cols":2},"grid":["A"]}]`)); !errors.Is(err, puzzle.ErrInvalidPuzzle) {
		t.Fatalf("expected ErrInvalidPuzzle, got %v", err)
	}
	if _, err := Decode(strings.NewReader(`nope`)); err == nil {
		t.Fatal("expected error for garbage")
	}
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"mini-001", "Daily_2024", "a"} {
		if !ValidName(ok) {
			t.Errorf("expected %q to be valid", ok)
		}
	}
	for _, bad := range []string{"", "../etc", "a/b", "-lead", "sp ace", strings.Repeat("x", 65)} {
		if ValidName(bad) {
			t.Errorf("expected %q to be invalid", bad)
		}
	}
}

func TestHTTPFetcher(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path == "/puzzles/missing.json" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/puzzles/broken.json" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(miniJSON))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(ts.URL+"/", 0)

	got, err := f.Fetch(context.Background(), "mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/puzzles/mini.json" {
		t.Fatalf("expected /puzzles/mini.json, got %s", gotPath)
	}
	if got[0].Size.Cols != 3 {
		t.Fatalf("unexpected payload: %+v", got[0])
	}

	if _, err := f.Fetch(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), "broken"); err == nil {
		t.Fatal("expected error on 502")
	}
	if _, err := f.Fetch(context.Background(), "../x"); !errors.Is(err, ErrBadName) {
		t.Fatalf("expected ErrBadName, got %v", err)
	}
}

func TestFSFetcher(t *testing.T) {
	f := FSFetcher{FS: fstest.MapFS{
		"mini.json": {Data: []byte(miniJSON)},
	}}

	if _, err := f.Fetch(context.Background(), "mini"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.Fetch(context.Background(), "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, "mini"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// gateFetcher blocks fetches of gated names until the gate closes,
// ignoring cancellation, so superseded results really arrive late.
type gateFetcher struct {
	gates map[string]chan struct{}
}

func (g *gateFetcher) Fetch(ctx context.Context, name string) ([]puzzle.RawPuzzle, error) {
	if gate, ok := g.gates[name]; ok {
		<-gate
	}
	return []puzzle.RawPuzzle{{Title: name}}, nil
}

// ctxFetcher blocks gated names until their context ends and records why.
type ctxFetcher struct {
	mu   sync.Mutex
	errs map[string]error
}

func (c *ctxFetcher) Fetch(ctx context.Context, name string) ([]puzzle.RawPuzzle, error) {
	if name != "slow" {
		return []puzzle.RawPuzzle{{Title: name}}, nil
	}
	<-ctx.Done()
	c.mu.Lock()
	c.errs[name] = ctx.Err()
	c.mu.Unlock()
	return nil, ctx.Err()
}

func TestLatestDiscardsSupersededResult(t *testing.T) {
	gate := make(chan struct{})
	l := NewLatest(&gateFetcher{gates: map[string]chan struct{}{"slow": gate}})

	var delivered []string
	deliver := func(name string, resp []puzzle.RawPuzzle) {
		delivered = append(delivered, name+":"+resp[0].Title)
	}

	l.Load(context.Background(), "slow", deliver)
	l.Load(context.Background(), "fast", deliver)
	close(gate)
	l.Wait()

	if len(delivered) != 1 || delivered[0] != "fast:fast" {
		t.Fatalf("expected only the latest load delivered, got %v", delivered)
	}
}

func TestLatestCancelsInFlight(t *testing.T) {
	cf := &ctxFetcher{errs: map[string]error{}}
	l := NewLatest(cf)

	var delivered []string
	deliver := func(name string, _ []puzzle.RawPuzzle) { delivered = append(delivered, name) }

	l.Load(context.Background(), "slow", deliver)
	l.Load(context.Background(), "fast", deliver)
	l.Wait()

	if !errors.Is(cf.errs["slow"], context.Canceled) {
		t.Fatalf("expected slow fetch to be cancelled, got %v", cf.errs["slow"])
	}
	if len(delivered) != 1 || delivered[0] != "fast" {
		t.Fatalf("unexpected deliveries: %v", delivered)
	}
}

func TestLatestCancel(t *testing.T) {
	cf := &ctxFetcher{errs: map[string]error{}}
	l := NewLatest(cf)

	called := false
	l.Load(context.Background(), "slow", func(string, []puzzle.RawPuzzle) { called = true })
	l.Cancel()
	l.Wait()

	if called {
		t.Fatal("cancelled load must not deliver")
	}
}

func TestLatestIdleTracksLoads(t *testing.T) {
	gate := make(chan struct{})
	l := NewLatest(&gateFetcher{gates: map[string]chan struct{}{"slow": gate}})

	select {
	case <-l.Idle():
	default:
		t.Fatal("a fresh supervisor must be idle")
	}

	l.Load(context.Background(), "slow", func(string, []puzzle.RawPuzzle) {})
	idle := l.Idle()
	select {
	case <-idle:
		t.Fatal("idle while a load is in flight")
	default:
	}
	close(gate)
	select {
	case <-idle:
	case <-time.After(2 * time.Second):
		t.Fatal("idle channel not closed after the load finished")
	}
}

func TestLatestWaitWhileLoading(t *testing.T) {
	l := NewLatest(&gateFetcher{gates: map[string]chan struct{}{}})
	deliver := func(string, []puzzle.RawPuzzle) {}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 500 {
				l.Load(context.Background(), "fast", deliver)
			}
		}()
		go func() {
			defer wg.Done()
			for range 500 {
				l.Wait()
			}
		}()
	}
	wg.Wait()
	l.Wait()
}
