// internal/puzzle/transition.go
//
// Puzzle transitions: each takes the current Puzzle value and returns the
// next one. The receiver is never modified; when a guess changes, Cells is
// cloned before the write so earlier snapshots keep their contents.

package puzzle

import (
	"slices"
	"strings"
)

// Guess writes letter (upper-cased) into the active cell and advances the
// cursor along the active clue. Empty input or an unusable active cell
// returns p unchanged.
func (p Puzzle) Guess(letter string) Puzzle {
	g := strings.ToUpper(strings.TrimSpace(letter))
	a := p.ActiveCellNumber
	if g == "" || !p.inBounds(a) || p.Cells[a].IsBlocked() {
		return p
	}
	next := p.NextGuessCell()
	p.Cells = withGuess(p.Cells, a, g)
	p.ActiveCellNumber = next
	return p
}

// RemoveGuess clears the cell chosen by RemoveGuessCell and makes it active.
func (p Puzzle) RemoveGuess() Puzzle {
	target := p.RemoveGuessCell()
	if !p.inBounds(target) {
		return p
	}
	if p.Cells[target].Guess != "" {
		p.Cells = withGuess(p.Cells, target, "")
	}
	p.ActiveCellNumber = target
	return p
}

// MoveActiveCell applies an arrow move.
func (p Puzzle) MoveActiveCell(m Move) Puzzle {
	p.ActiveDirection, p.ActiveCellNumber = p.MoveCell(m)
	return p
}

// MoveActiveClue applies a next/previous clue move.
func (p Puzzle) MoveActiveClue(m Move) Puzzle {
	p.ActiveDirection, p.ActiveCellNumber = p.MoveClue(m)
	return p
}

// Click selects cell, or toggles the direction if it is already active.
// Blocked and out-of-range cells are ignored.
func (p Puzzle) Click(cell int) Puzzle {
	if !p.inBounds(cell) || p.Cells[cell].IsBlocked() {
		return p
	}
	p.ActiveDirection, p.ActiveCellNumber = ClickCell(p.ActiveCellNumber, p.ActiveDirection, cell)
	return p
}

func withGuess(cells []Cell, i int, guess string) []Cell {
	out := slices.Clone(cells)
	out[i].Guess = guess
	return out
}
