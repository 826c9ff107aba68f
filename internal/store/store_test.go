package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
)

func samplePuzzle(t *testing.T) puzzle.Puzzle {
	t.Helper()
	p, err := puzzle.Initialize(puzzle.RawPuzzle{
		Title: "tiny",
		Size:  puzzle.RawSize{Rows: 2, Cols: 2},
		Grid:  []string{"A", "B", "C", "D"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return p.Guess("a")
}

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStores(t *testing.T) {
	impls := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return openSQLite(t) },
	}
	for name, mk := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := mk(t)
			p := samplePuzzle(t)

			if _, err := st.Get(ctx, "anon", "tiny"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := st.Save(ctx, Progress{PuzzleName: "tiny", Puzzle: p}); err == nil {
				t.Fatal("expected error for missing owner")
			}

			old := time.Now().Add(-time.Hour).UTC()
			if err := st.Save(ctx, Progress{Owner: "anon", PuzzleName: "old", Puzzle: p, UpdatedAt: old}); err != nil {
				t.Fatal(err)
			}
			if err := st.Save(ctx, Progress{Owner: "anon", PuzzleName: "tiny", Puzzle: p}); err != nil {
				t.Fatal(err)
			}

			got, err := st.Get(ctx, "anon", "tiny")
			if err != nil {
				t.Fatal(err)
			}
			if got.Puzzle.Cells[0].Guess != "A" || got.Puzzle.ActiveCellNumber != p.ActiveCellNumber {
				t.Fatalf("snapshot did not round-trip: %+v", got.Puzzle)
			}
			if got.UpdatedAt.IsZero() {
				t.Fatal("expected UpdatedAt to be stamped")
			}

			// Save replaces.
			solved := p.Guess("b").Click(2).Guess("c").Guess("d")
			if err := st.Save(ctx, Progress{Owner: "anon", PuzzleName: "tiny", Puzzle: solved, Solved: solved.Solved()}); err != nil {
				t.Fatal(err)
			}
			got, _ = st.Get(ctx, "anon", "tiny")
			if !got.Solved {
				t.Fatal("expected solved flag to be replaced")
			}

			list, err := st.List(ctx, "anon")
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 || list[0].PuzzleName != "tiny" || list[1].PuzzleName != "old" {
				t.Fatalf("unexpected list order: %+v", list)
			}

			// The user already has "old"; theirs is kept.
			mine := p.Click(3)
			if err := st.Save(ctx, Progress{Owner: "user", PuzzleName: "old", Puzzle: mine}); err != nil {
				t.Fatal(err)
			}
			if err := st.Claim(ctx, "anon", "user"); err != nil {
				t.Fatal(err)
			}
			if list, _ := st.List(ctx, "anon"); len(list) != 0 {
				t.Fatalf("anonymous progress should be gone, got %d", len(list))
			}
			list, _ = st.List(ctx, "user")
			if len(list) != 2 {
				t.Fatalf("expected 2 claimed rows, got %d", len(list))
			}
			kept, _ := st.Get(ctx, "user", "old")
			if kept.Puzzle.ActiveCellNumber != 3 {
				t.Fatalf("claim overwrote the user's own progress: %d", kept.Puzzle.ActiveCellNumber)
			}
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	if err := migrate(db.DB(), migrations); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := db.DB().QueryRow(`SELECT COUNT(1) FROM _migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recorded migration, got %d", n)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	if _, err := db.CreateUser(ctx, "ab", "password1"); err == nil {
		t.Fatal("expected short username to be rejected")
	}
	if _, err := db.CreateUser(ctx, "solver", "short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}

	u, err := db.CreateUser(ctx, " Solver ", "password1")
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "Solver" || u.ID == "" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := db.CreateUser(ctx, "solver", "password2"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	found, err := db.FindUserByUsername(ctx, "SOLVER")
	if err != nil {
		t.Fatal(err)
	}
	if !found.CheckPassword("password1") || found.CheckPassword("password2") {
		t.Fatal("password check mismatch")
	}

	if err := db.IncrementSolved(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	byID, err := db.FindUserByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if byID.PuzzlesSolved != 1 {
		t.Fatalf("expected 1 solved, got %d", byID.PuzzlesSolved)
	}
	if _, err := db.FindUserByID(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
