// internal/catalog/catalog.go
//
// Puzzle catalog: the set of puzzle names a server can offer.
//
// Responsibilities:
//   - Discover "<name>.json" files in a puzzle directory (embedded or on disk).
//   - Keep a sorted list plus a set for lookups.
//   - Supply Random (for "surprise me") and At (for the daily rotation).
//
// Constraints:
//   - Only names accepted by fetch.ValidName are listed.
//   - The catalog is read once at construction; restart to pick up new files.

package catalog

import (
	"crypto/rand"
	"errors"
	"io/fs"
	"math/big"
	"path"
	"sort"
	"strings"

	"github.com/robalobadob/crossword/apps/go-server/internal/fetch"
)

// ErrEmpty is returned when a directory holds no usable puzzles.
var ErrEmpty = errors.New("catalog: no puzzles found")

// Catalog is an immutable list of puzzle names.
type Catalog struct {
	names []string
	set   map[string]struct{}
}

// New scans the top level of fsys for puzzle files.
func New(fsys fs.FS) (*Catalog, error) {
	files, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}
	c := &Catalog{set: make(map[string]struct{}, len(files))}
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".json")
		if !fetch.ValidName(name) {
			continue
		}
		c.names = append(c.names, name)
		c.set[name] = struct{}{}
	}
	if len(c.names) == 0 {
		return nil, ErrEmpty
	}
	sort.Strings(c.names)
	return c, nil
}

// Names returns a copy of the sorted names.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Has reports whether name is in the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.set[name]
	return ok
}

// Len is the number of puzzles.
func (c *Catalog) Len() int { return len(c.names) }

// At returns the i-th name in sorted order, wrapping i into range.
func (c *Catalog) At(i int) string {
	n := len(c.names)
	return c.names[((i%n)+n)%n]
}

// Random returns a cryptographically random name.
func (c *Catalog) Random() string {
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(len(c.names))))
	if err != nil {
		return c.names[0]
	}
	return c.names[nBig.Int64()]
}
