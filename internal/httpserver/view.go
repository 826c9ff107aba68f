package httpserver

import (
	"github.com/robalobadob/crossword/apps/go-server/internal/game"
	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
)

// cellView is a cell as players see it: no answer.
type cellView struct {
	Blocked    bool   `json:"blocked,omitempty"`
	Guess      string `json:"guess,omitempty"`
	ClueNumber int    `json:"clueNumber,omitempty"`
}

// puzzleView is the client-facing rendering of a puzzle.
type puzzleView struct {
	Title            string             `json:"title,omitempty"`
	Author           string             `json:"author,omitempty"`
	Width            int                `json:"width"`
	Height           int                `json:"height"`
	Cells            []cellView         `json:"cells"`
	Clues            []puzzle.Clue      `json:"clues"`
	DefaultClues     []puzzle.CellClues `json:"defaultClues"`
	ActiveCellNumber int                `json:"activeCellNumber"`
	ActiveDirection  puzzle.Direction   `json:"activeDirection"`
	ActiveClue       *puzzle.Clue       `json:"activeClue,omitempty"`
	Progress         puzzle.Progress    `json:"progress"`
	Complete         bool               `json:"complete"`
	Solved           bool               `json:"solved"`
}

func viewOf(p puzzle.Puzzle) puzzleView {
	cells := make([]cellView, len(p.Cells))
	for i, c := range p.Cells {
		cells[i] = cellView{Blocked: c.IsBlocked(), Guess: c.Guess, ClueNumber: c.ClueNumber}
	}
	v := puzzleView{
		Title:            p.Title,
		Author:           p.Author,
		Width:            p.Width,
		Height:           p.Height,
		Cells:            cells,
		Clues:            p.Clues,
		DefaultClues:     p.DefaultClues,
		ActiveCellNumber: p.ActiveCellNumber,
		ActiveDirection:  p.ActiveDirection,
		Progress:         p.Progress(),
		Complete:         p.Complete(),
		Solved:           p.Solved(),
	}
	if c, ok := p.ActiveClue(); ok {
		v.ActiveClue = &c
	}
	return v
}

func stateView(s game.State) map[string]puzzleView {
	out := make(map[string]puzzleView, len(s))
	for name, p := range s {
		out[name] = viewOf(p)
	}
	return out
}
