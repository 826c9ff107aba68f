// internal/game/reducer.go
//
// Whole-state reducer.
// Responsibilities:
//   - Hold every loaded puzzle in an immutable name -> Puzzle mapping.
//   - Apply one action and return the next mapping without mutating the input.
//
// Notes:
//   - Actions naming a puzzle that is not loaded return the state unchanged.
//   - FETCH_PUZZLE_RECEIVE replaces the entry outright; nothing is merged.

package game

import (
	"maps"

	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
)

// State maps puzzle names to their current state. A State value is never
// modified after it is returned; treat it as read-only.
type State map[string]puzzle.Puzzle

// Reduce applies a to s and returns the resulting state. Actions that cannot
// apply (unknown puzzle, unusable payload) return s itself.
func Reduce(s State, a Action) State {
	next, _ := apply(s, a)
	return next
}

// apply is Reduce that also reports whether the action took effect.
func apply(s State, a Action) (State, bool) {
	switch a := a.(type) {
	case FetchPuzzle:
		return s, false

	case FetchPuzzleReceive:
		if len(a.Response) == 0 {
			return s, false
		}
		p, err := puzzle.Initialize(a.Response[0])
		if err != nil {
			return s, false
		}
		return s.with(a.PuzzleName, p), true

	case RestorePuzzle:
		if !ValidSnapshot(a.Snapshot) {
			return s, false
		}
		return s.with(a.PuzzleName, a.Snapshot), true

	case GuessCell:
		return s.update(a.PuzzleName, func(p puzzle.Puzzle) puzzle.Puzzle { return p.Guess(a.Guess) })

	case MoveActiveCell:
		return s.update(a.PuzzleName, func(p puzzle.Puzzle) puzzle.Puzzle { return p.MoveActiveCell(a.Move) })

	case MoveActiveClue:
		return s.update(a.PuzzleName, func(p puzzle.Puzzle) puzzle.Puzzle { return p.MoveActiveClue(a.Move) })

	case RemoveGuess:
		return s.update(a.PuzzleName, puzzle.Puzzle.RemoveGuess)

	case CellClick:
		return s.update(a.PuzzleName, func(p puzzle.Puzzle) puzzle.Puzzle { return p.Click(a.CellNumber) })

	default:
		return s, false
	}
}

// update runs fn on the named puzzle if it is loaded.
func (s State) update(name string, fn func(puzzle.Puzzle) puzzle.Puzzle) (State, bool) {
	p, ok := s[name]
	if !ok {
		return s, false
	}
	return s.with(name, fn(p)), true
}

// with returns a copy of s with name set to p.
func (s State) with(name string, p puzzle.Puzzle) State {
	next := maps.Clone(s)
	if next == nil {
		next = State{}
	}
	next[name] = p
	return next
}

// ValidSnapshot checks the shape, clue and cursor invariants of a saved
// puzzle: every clue member and every default clue reference must point at
// an open cell or an existing clue of the right direction.
func ValidSnapshot(p puzzle.Puzzle) bool {
	n := p.Width * p.Height
	if n <= 0 || len(p.Cells) != n || len(p.DefaultClues) != n || !p.ActiveDirection.Valid() {
		return false
	}
	open := func(i int) bool { return i >= 0 && i < n && !p.Cells[i].IsBlocked() }
	for _, c := range p.Cells {
		if c.IsBlocked() && c.Guess != "" {
			return false
		}
	}
	for _, c := range p.Clues {
		if !c.Direction.Valid() || len(c.Cells) == 0 {
			return false
		}
		for _, i := range c.Cells {
			if !open(i) {
				return false
			}
		}
	}
	refers := func(ci int, dir puzzle.Direction) bool {
		return ci == -1 || (ci >= 0 && ci < len(p.Clues) && p.Clues[ci].Direction == dir)
	}
	for _, cc := range p.DefaultClues {
		if !refers(cc.Across, puzzle.Across) || !refers(cc.Down, puzzle.Down) {
			return false
		}
	}
	return open(p.ActiveCellNumber)
}
