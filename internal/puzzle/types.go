// internal/puzzle/types.go
//
// Core type definitions for the crossword state engine.
// Defines:
//   - Direction: the two cursor orientations (across/down).
//   - Move: directional requests for cell and clue navigation.
//   - Cell, Clue, CellClues: the immutable grid structure plus per-cell guesses.
//   - Puzzle: one loaded puzzle with its cursor state.

package puzzle

// Direction is the orientation of the cursor and of a clue.
type Direction string

const (
	Across Direction = "across"
	Down   Direction = "down"
)

// OtherDirection returns across for down and down for anything else.
func OtherDirection(d Direction) Direction {
	if d == Down {
		return Across
	}
	return Down
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool { return d == Across || d == Down }

// Move is a navigation request. Cell moves are up/down/left/right,
// clue moves are next/previous.
type Move string

const (
	MoveUp       Move = "up"
	MoveDown     Move = "down"
	MoveLeft     Move = "left"
	MoveRight    Move = "right"
	MoveNext     Move = "next"
	MovePrevious Move = "previous"
)

// IsCellMove reports whether m is an arrow move.
func (m Move) IsCellMove() bool {
	return m == MoveUp || m == MoveDown || m == MoveLeft || m == MoveRight
}

// IsClueMove reports whether m is a next/previous clue move.
func (m Move) IsClueMove() bool { return m == MoveNext || m == MovePrevious }

// Blocked is the answer sentinel of an unusable (black) cell.
const Blocked = "."

// Cell is a single grid square.
type Cell struct {
	Answer     string `json:"answer"`               // Correct letter(s), or Blocked.
	Guess      string `json:"guess,omitempty"`      // Player entry, "" when unset.
	ClueNumber int    `json:"clueNumber,omitempty"` // Display number, 0 if no clue starts here.
}

// IsBlocked reports whether the cell is a black square.
func (c Cell) IsBlocked() bool { return c.Answer == Blocked }

// Clue is a numbered answer span.
type Clue struct {
	Number    int       `json:"number"`
	Direction Direction `json:"direction"`
	Text      string    `json:"text"`
	Cells     []int     `json:"cells"` // member cell indices, in reading order
}

// CellClues resolves which clue owns a cell in each direction.
// Values index Puzzle.Clues; -1 means the cell has no clue that way.
type CellClues struct {
	Across int `json:"across"`
	Down   int `json:"down"`
}

// In returns the clue index for direction d.
func (cc CellClues) In(d Direction) int {
	if d == Down {
		return cc.Down
	}
	return cc.Across
}

// Puzzle is the state of one loaded crossword.
//
// Cells, Clues and DefaultClues are fixed at load time; transitions only ever
// replace Cells (copy-on-write) and the two cursor fields.
type Puzzle struct {
	Title            string      `json:"title,omitempty"`
	Author           string      `json:"author,omitempty"`
	Width            int         `json:"width"`
	Height           int         `json:"height"`
	Cells            []Cell      `json:"cells"`
	Clues            []Clue      `json:"clues"`
	DefaultClues     []CellClues `json:"defaultClues"`
	ActiveCellNumber int         `json:"activeCellNumber"`
	ActiveDirection  Direction   `json:"activeDirection"`
}
