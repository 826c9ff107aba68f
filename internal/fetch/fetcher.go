// internal/fetch/fetcher.go
//
// Puzzle retrieval collaborators.
// Responsibilities:
//   - Fetcher: load the raw payload for a puzzle name.
//   - HTTPFetcher: GET {base}/puzzles/{name}.json from a puzzle host.
//   - FSFetcher: read {name}.json from an fs.FS (embedded assets or a directory).
//   - Decode: parse a payload whose first element is the raw puzzle object.
//
// Payloads are JSON arrays; a bare object is accepted as a one-element array.

package fetch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
)

var (
	ErrEmptyPayload = errors.New("fetch: empty puzzle payload")
	ErrNotFound     = errors.New("fetch: puzzle not found")
	ErrBadName      = errors.New("fetch: invalid puzzle name")
)

// maxPayload bounds a single puzzle document.
const maxPayload = 4 << 20

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidName reports whether name is safe to use as a puzzle identifier
// in URLs and file paths.
func ValidName(name string) bool { return namePattern.MatchString(name) }

// Fetcher loads the raw payload of a named puzzle.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]puzzle.RawPuzzle, error)
}

// Decode parses a puzzle payload and checks its first element.
func Decode(r io.Reader) ([]puzzle.RawPuzzle, error) {
	br := bufio.NewReader(io.LimitReader(r, maxPayload))
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyPayload
		}
		return nil, err
	}

	var out []puzzle.RawPuzzle
	if first == '{' {
		var one puzzle.RawPuzzle
		if err := json.NewDecoder(br).Decode(&one); err != nil {
			return nil, fmt.Errorf("decode puzzle: %w", err)
		}
		out = []puzzle.RawPuzzle{one}
	} else if err := json.NewDecoder(br).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	if len(out) == 0 {
		return nil, ErrEmptyPayload
	}
	if err := out[0].Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != ' ' && b != '\n' && b != '\r' && b != '\t' {
			return b, br.UnreadByte()
		}
	}
}

// HTTPFetcher retrieves puzzles from a static puzzle host.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher returns a fetcher for baseURL with a per-request timeout.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// Fetch performs GET {base}/puzzles/{name}.json.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) ([]puzzle.RawPuzzle, error) {
	if !ValidName(name) {
		return nil, ErrBadName
	}
	u := f.BaseURL + "/puzzles/" + url.PathEscape(name) + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("get %s: status %d", u, resp.StatusCode)
	}
	return Decode(resp.Body)
}

// FSFetcher reads {name}.json from a file system.
type FSFetcher struct {
	FS fs.FS
}

// Fetch opens and decodes {name}.json. ctx is only checked up front since
// reads are local.
func (f FSFetcher) Fetch(ctx context.Context, name string) ([]puzzle.RawPuzzle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidName(name) {
		return nil, ErrBadName
	}
	file, err := f.FS.Open(name + ".json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer file.Close()
	return Decode(file)
}
