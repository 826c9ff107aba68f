// internal/puzzle/init.go
//
// Puzzle initializer: turns a raw puzzle object (as served in a puzzle JSON
// payload) into the in-memory Puzzle consumed by the navigation engine.
//
// Responsibilities:
//   - Validate dimensions and grid length.
//   - Derive clue spans (runs of 2+ open cells) and standard numbering.
//   - Attach clue text by number from "N. text" entries.
//   - Build the per-cell DefaultClues lookup and place the initial cursor.

package puzzle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPuzzle is wrapped by every Initialize validation failure.
var ErrInvalidPuzzle = errors.New("invalid puzzle")

// RawPuzzle is the raw puzzle object of a fetched payload.
type RawPuzzle struct {
	Title  string   `json:"title"`
	Author string   `json:"author"`
	Size   RawSize  `json:"size"`
	Grid   []string `json:"grid"`
	Clues  RawClues `json:"clues"`
}

// RawSize holds grid dimensions.
type RawSize struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// RawClues holds clue strings of the form "12. Clue text".
type RawClues struct {
	Across []string `json:"across"`
	Down   []string `json:"down"`
}

// Validate checks the structural contract Initialize relies on.
func (r RawPuzzle) Validate() error {
	if r.Size.Rows <= 0 || r.Size.Cols <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidPuzzle, r.Size.Rows, r.Size.Cols)
	}
	if len(r.Grid) != r.Size.Rows*r.Size.Cols {
		return fmt.Errorf("%w: grid has %d cells, want %d", ErrInvalidPuzzle, len(r.Grid), r.Size.Rows*r.Size.Cols)
	}
	for _, sq := range r.Grid {
		if !isBlockedSquare(sq) {
			return nil
		}
	}
	return fmt.Errorf("%w: no open cells", ErrInvalidPuzzle)
}

// Initialize builds a Puzzle from its raw definition.
func Initialize(raw RawPuzzle) (Puzzle, error) {
	if err := raw.Validate(); err != nil {
		return Puzzle{}, err
	}
	w, h := raw.Size.Cols, raw.Size.Rows

	cells := make([]Cell, w*h)
	for i, sq := range raw.Grid {
		if isBlockedSquare(sq) {
			cells[i] = Cell{Answer: Blocked}
			continue
		}
		cells[i] = Cell{Answer: strings.ToUpper(strings.TrimSpace(sq))}
	}
	open := func(i int) bool { return !cells[i].IsBlocked() }

	acrossText := parseClueText(raw.Clues.Across)
	downText := parseClueText(raw.Clues.Down)

	var across, down []Clue
	number := 0
	for i := range cells {
		if !open(i) {
			continue
		}
		row, col := i/w, i%w
		startsAcross := (col == 0 || !open(i-1)) && col+1 < w && open(i+1)
		startsDown := (row == 0 || !open(i-w)) && row+1 < h && open(i+w)
		if !startsAcross && !startsDown {
			continue
		}
		number++
		cells[i].ClueNumber = number
		if startsAcross {
			span := []int{}
			for j := i; j < row*w+w && open(j); j++ {
				span = append(span, j)
			}
			across = append(across, Clue{Number: number, Direction: Across, Text: acrossText[number], Cells: span})
		}
		if startsDown {
			span := []int{}
			for j := i; j < w*h && open(j); j += w {
				span = append(span, j)
			}
			down = append(down, Clue{Number: number, Direction: Down, Text: downText[number], Cells: span})
		}
	}

	clues := append(across, down...)
	defaults := make([]CellClues, len(cells))
	for i := range defaults {
		defaults[i] = CellClues{Across: -1, Down: -1}
	}
	for ci, c := range clues {
		for _, cell := range c.Cells {
			if c.Direction == Across {
				defaults[cell].Across = ci
			} else {
				defaults[cell].Down = ci
			}
		}
	}

	p := Puzzle{
		Title:        raw.Title,
		Author:       raw.Author,
		Width:        w,
		Height:       h,
		Cells:        cells,
		Clues:        clues,
		DefaultClues: defaults,
	}
	p.ActiveCellNumber, p.ActiveDirection = initialCursor(p)
	return p, nil
}

// initialCursor picks the first across clue, else the first open cell.
func initialCursor(p Puzzle) (int, Direction) {
	for _, c := range p.Clues {
		if c.Direction == Across {
			return c.Cells[0], Across
		}
	}
	for i, c := range p.Cells {
		if c.IsBlocked() {
			continue
		}
		if p.DefaultClues[i].Across < 0 && p.DefaultClues[i].Down >= 0 {
			return i, Down
		}
		return i, Across
	}
	return 0, Across
}

func isBlockedSquare(sq string) bool {
	sq = strings.TrimSpace(sq)
	return sq == "" || sq == Blocked
}

// parseClueText maps clue numbers to text for entries like "7. Opposite of down".
// Entries without a leading number are skipped.
func parseClueText(entries []string) map[int]string {
	out := make(map[int]string, len(entries))
	for _, e := range entries {
		num, text, ok := strings.Cut(e, ".")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil {
			continue
		}
		out[n] = strings.TrimSpace(text)
	}
	return out
}
