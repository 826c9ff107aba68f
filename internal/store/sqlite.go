// internal/store/sqlite.go
//
// SQLite-backed Store.
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - Progress persistence; snapshots are stored as JSON.
//
// The *sql.DB is exposed through DB() so the daily and user tables can share
// the same handle.

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite implements Store on a SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open opens (and creates if missing) a SQLite database file and applies
// migrations. ":memory:" is accepted for tests.
func Open(dsn string) (*SQLite, error) {
	if dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrate(db, migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// DB returns the underlying handle.
func (s *SQLite) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// migrate applies every *.sql file under migrations/ in lexical order,
// each in its own transaction, skipping files already recorded.
func migrate(db *sql.DB, fsys fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		body, err := fs.ReadFile(fsys, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// Save upserts the progress row.
func (s *SQLite) Save(ctx context.Context, p Progress) error {
	if err := p.validate(); err != nil {
		return err
	}
	p = p.stamp()
	snap, err := json.Marshal(p.Puzzle)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO progress (owner, puzzle_name, snapshot, solved, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(owner, puzzle_name) DO UPDATE SET
            snapshot=excluded.snapshot,
            solved=excluded.solved,
            updated_at=excluded.updated_at`,
		p.Owner, p.PuzzleName, string(snap), p.Solved, p.UpdatedAt.UnixNano(),
	)
	return err
}

// Get loads one progress row.
func (s *SQLite) Get(ctx context.Context, owner, name string) (Progress, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT owner, puzzle_name, snapshot, solved, updated_at
        FROM progress WHERE owner=? AND puzzle_name=?`, owner, name)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{}, ErrNotFound
	}
	return p, err
}

// List loads the owner's progress rows, newest first.
func (s *SQLite) List(ctx context.Context, owner string) ([]Progress, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT owner, puzzle_name, snapshot, solved, updated_at
        FROM progress WHERE owner=? ORDER BY updated_at DESC LIMIT 100`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Progress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Claim moves anonymous progress to a user. Rows the user already has win.
func (s *SQLite) Claim(ctx context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE OR IGNORE progress SET owner=? WHERE owner=?`, to, from); err != nil {
		return fmt.Errorf("claim progress: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM progress WHERE owner=?`, from); err != nil {
		return fmt.Errorf("drop claimed duplicates: %w", err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(row scanner) (Progress, error) {
	var (
		p       Progress
		snap    string
		updated int64
	)
	if err := row.Scan(&p.Owner, &p.PuzzleName, &snap, &p.Solved, &updated); err != nil {
		return Progress{}, err
	}
	if err := json.Unmarshal([]byte(snap), &p.Puzzle); err != nil {
		return Progress{}, fmt.Errorf("decode snapshot %s/%s: %w", p.Owner, p.PuzzleName, err)
	}
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return p, nil
}
