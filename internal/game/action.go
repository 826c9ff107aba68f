// internal/game/action.go
//
// Actions accepted by the puzzle state engine.
// Action is a closed set: every concrete type below implements the unexported
// isAction marker, and Reduce switches over all of them.

package game

import "github.com/robalobadob/crossword/apps/go-server/internal/puzzle"

// Action kinds, used for logging and wire messages.
const (
	KindFetchPuzzle        = "puzzle/FETCH_PUZZLE"
	KindFetchPuzzleReceive = "puzzle/FETCH_PUZZLE_RECEIVE"
	KindGuessCell          = "puzzle/GUESS_CELL"
	KindMoveActiveCell     = "puzzle/MOVE_ACTIVE_CELL"
	KindMoveActiveClue     = "puzzle/MOVE_ACTIVE_CLUE"
	KindRemoveGuess        = "puzzle/REMOVE_GUESS"
	KindCellClick          = "puzzle/CELL_CLICK"
	KindRestorePuzzle      = "puzzle/RESTORE_PUZZLE"
)

// Action is a request to transition the state of one puzzle.
type Action interface {
	Kind() string
	Puzzle() string
	isAction()
}

// FetchPuzzle asks for a puzzle to be loaded. It does not change state by
// itself; the engine turns it into a background fetch.
type FetchPuzzle struct {
	PuzzleName string
}

// FetchPuzzleReceive carries a fetched payload; its first element is the raw puzzle.
type FetchPuzzleReceive struct {
	PuzzleName string
	Response   []puzzle.RawPuzzle
}

// GuessCell types a letter into the active cell.
type GuessCell struct {
	PuzzleName string
	Guess      string
}

// MoveActiveCell is an arrow-key move.
type MoveActiveCell struct {
	PuzzleName string
	Move       puzzle.Move
}

// MoveActiveClue is a next/previous clue move.
type MoveActiveClue struct {
	PuzzleName string
	Move       puzzle.Move
}

// RemoveGuess is a backspace.
type RemoveGuess struct {
	PuzzleName string
}

// CellClick selects a cell, or toggles direction on the active cell.
type CellClick struct {
	PuzzleName string
	CellNumber int
}

// RestorePuzzle replaces a puzzle with a previously saved snapshot.
type RestorePuzzle struct {
	PuzzleName string
	Snapshot   puzzle.Puzzle
}

func (FetchPuzzle) Kind() string        { return KindFetchPuzzle }
func (FetchPuzzleReceive) Kind() string { return KindFetchPuzzleReceive }
func (GuessCell) Kind() string          { return KindGuessCell }
func (MoveActiveCell) Kind() string     { return KindMoveActiveCell }
func (MoveActiveClue) Kind() string     { return KindMoveActiveClue }
func (RemoveGuess) Kind() string        { return KindRemoveGuess }
func (CellClick) Kind() string          { return KindCellClick }
func (RestorePuzzle) Kind() string      { return KindRestorePuzzle }

func (a FetchPuzzle) Puzzle() string        { return a.PuzzleName }
func (a FetchPuzzleReceive) Puzzle() string { return a.PuzzleName }
func (a GuessCell) Puzzle() string          { return a.PuzzleName }
func (a MoveActiveCell) Puzzle() string     { return a.PuzzleName }
func (a MoveActiveClue) Puzzle() string     { return a.PuzzleName }
func (a RemoveGuess) Puzzle() string        { return a.PuzzleName }
func (a CellClick) Puzzle() string          { return a.PuzzleName }
func (a RestorePuzzle) Puzzle() string      { return a.PuzzleName }

func (FetchPuzzle) isAction()        {}
func (FetchPuzzleReceive) isAction() {}
func (GuessCell) isAction()          {}
func (MoveActiveCell) isAction()     {}
func (MoveActiveClue) isAction()     {}
func (RemoveGuess) isAction()        {}
func (CellClick) isAction()          {}
func (RestorePuzzle) isAction()      {}
