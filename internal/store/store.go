// internal/store/store.go
//
// Persistence of puzzle progress.
// A Progress row is the last snapshot of one puzzle for one owner (a user ID
// or an anonymous player ID). Snapshots include answers and guesses so they
// can be restored into an engine later.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
)

// ErrNotFound is returned when no progress exists for an owner and puzzle.
var ErrNotFound = errors.New("store: not found")

// Progress is a saved puzzle snapshot.
type Progress struct {
	Owner      string        `json:"-"`
	PuzzleName string        `json:"puzzleName"`
	Puzzle     puzzle.Puzzle `json:"-"`
	Solved     bool          `json:"solved"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Store defines the persistence interface for puzzle progress.
// Implementations may be backed by memory (NewMemoryStore) or SQLite (Open).
type Store interface {
	// Save inserts or replaces the progress row for (Owner, PuzzleName).
	Save(ctx context.Context, p Progress) error

	// Get returns ErrNotFound if nothing was saved.
	Get(ctx context.Context, owner, name string) (Progress, error)

	// List returns all progress for an owner, most recent first.
	List(ctx context.Context, owner string) ([]Progress, error)

	// Claim reassigns progress from an anonymous owner to a user.
	Claim(ctx context.Context, from, to string) error
}

func (p Progress) validate() error {
	if p.Owner == "" || p.PuzzleName == "" {
		return errors.New("store: owner and puzzle name are required")
	}
	return nil
}

// stamp fills UpdatedAt when the caller left it zero.
func (p Progress) stamp() Progress {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	return p
}
