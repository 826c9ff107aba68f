package puzzle

import "strings"

// Progress summarizes how far a player is through a puzzle.
type Progress struct {
	Open    int `json:"open"`
	Filled  int `json:"filled"`
	Correct int `json:"correct"`
}

// ActiveClue returns the clue owning the active cell in the active direction.
func (p Puzzle) ActiveClue() (Clue, bool) {
	a := p.ActiveCellNumber
	if !p.inBounds(a) || a >= len(p.DefaultClues) {
		return Clue{}, false
	}
	ci := p.DefaultClues[a].In(p.ActiveDirection)
	if ci < 0 || ci >= len(p.Clues) {
		return Clue{}, false
	}
	return p.Clues[ci], true
}

// Progress counts open, filled and correctly filled cells.
func (p Puzzle) Progress() Progress {
	var pr Progress
	for _, c := range p.Cells {
		if c.IsBlocked() {
			continue
		}
		pr.Open++
		if c.Guess == "" {
			continue
		}
		pr.Filled++
		if strings.EqualFold(c.Guess, c.Answer) {
			pr.Correct++
		}
	}
	return pr
}

// Complete reports whether every open cell holds a guess.
func (p Puzzle) Complete() bool {
	pr := p.Progress()
	return pr.Open > 0 && pr.Filled == pr.Open
}

// Solved reports whether every open cell holds its answer.
func (p Puzzle) Solved() bool {
	pr := p.Progress()
	return pr.Open > 0 && pr.Correct == pr.Open
}
