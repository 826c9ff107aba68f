package httpserver

import (
	"github.com/robalobadob/crossword/apps/go-server/internal/fetch"
	"github.com/robalobadob/crossword/apps/go-server/internal/game"
	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
)

// Action message types shared by the HTTP routes and the websocket.
const (
	msgFetch  = "fetch"
	msgGuess  = "guess"
	msgMove   = "move"
	msgClue   = "clue"
	msgRemove = "remove"
	msgClick  = "click"
)

// codeError is a client error reported as {"error": code}.
type codeError string

func (e codeError) Error() string { return string(e) }

const (
	errBadType codeError = "bad_type"
	errBadName codeError = "bad_name"
	errBadMove codeError = "bad_move"
	errBadCell codeError = "bad_cell"
)

// actionMsg is the wire form of a player action.
type actionMsg struct {
	Type       string      `json:"type"`
	Guess      string      `json:"guess,omitempty"`
	Move       puzzle.Move `json:"move,omitempty"`
	CellNumber *int        `json:"cellNumber,omitempty"`
}

// action converts m into an engine action on the named puzzle.
func (m actionMsg) action(name string) (game.Action, error) {
	if !fetch.ValidName(name) {
		return nil, errBadName
	}
	switch m.Type {
	case msgFetch:
		return game.FetchPuzzle{PuzzleName: name}, nil
	case msgGuess:
		return game.GuessCell{PuzzleName: name, Guess: m.Guess}, nil
	case msgMove:
		if !m.Move.IsCellMove() {
			return nil, errBadMove
		}
		return game.MoveActiveCell{PuzzleName: name, Move: m.Move}, nil
	case msgClue:
		if !m.Move.IsClueMove() {
			return nil, errBadMove
		}
		return game.MoveActiveClue{PuzzleName: name, Move: m.Move}, nil
	case msgRemove:
		return game.RemoveGuess{PuzzleName: name}, nil
	case msgClick:
		if m.CellNumber == nil {
			return nil, errBadCell
		}
		return game.CellClick{PuzzleName: name, CellNumber: *m.CellNumber}, nil
	default:
		return nil, errBadType
	}
}
