// internal/puzzle/navigate.go
//
// Cursor navigation rules. Every function here is pure: it reads a Puzzle
// value and returns the next (direction, cell) pair without touching the grid.
//
// Rules:
//   - The active cell is never moved onto a blocked or out-of-range cell.
//   - Cell moves skip blocked cells but stay inside the current row/column.
//   - Guess advance and backspace stay inside the active clue.
//   - Clue moves wrap around within the active direction.

package puzzle

// ClickCell decides the cursor after a click on cell clicked.
// Clicking the active cell toggles the direction; any other cell is selected
// with the direction unchanged.
func ClickCell(active int, dir Direction, clicked int) (Direction, int) {
	if clicked == active {
		return OtherDirection(dir), active
	}
	return dir, clicked
}

// NextGuessCell returns the cell that becomes active after a guess is typed
// into the active cell: the next member of the active clue, or the active
// cell itself at the end of the clue.
func (p Puzzle) NextGuessCell() int {
	span, pos := p.activeSpan()
	if pos < 0 || pos+1 >= len(span) {
		return p.ActiveCellNumber
	}
	return span[pos+1]
}

// RemoveGuessCell returns the cell a backspace erases: the active cell if it
// holds a guess, else the previous member of the active clue, else the active
// cell.
func (p Puzzle) RemoveGuessCell() int {
	a := p.ActiveCellNumber
	if p.inBounds(a) && p.Cells[a].Guess != "" {
		return a
	}
	span, pos := p.activeSpan()
	if pos <= 0 {
		return a
	}
	return span[pos-1]
}

// MoveCell computes the cursor after an arrow move. The direction becomes
// the move's axis; the cell steps to the nearest open cell that way or stays.
func (p Puzzle) MoveCell(m Move) (Direction, int) {
	a := p.ActiveCellNumber
	var axis Direction
	var dRow, dCol int
	switch m {
	case MoveLeft:
		axis, dCol = Across, -1
	case MoveRight:
		axis, dCol = Across, 1
	case MoveUp:
		axis, dRow = Down, -1
	case MoveDown:
		axis, dRow = Down, 1
	default:
		return p.ActiveDirection, a
	}
	if !p.inBounds(a) || p.Width <= 0 {
		return axis, a
	}

	row, col := a/p.Width, a%p.Width
	for {
		row, col = row+dRow, col+dCol
		if row < 0 || row >= p.Height || col < 0 || col >= p.Width {
			return axis, a
		}
		if n := row*p.Width + col; !p.Cells[n].IsBlocked() {
			return axis, n
		}
	}
}

// MoveClue computes the cursor after a next/previous clue request within the
// active direction. The selection wraps from last to first and back.
func (p Puzzle) MoveClue(m Move) (Direction, int) {
	dir, a := p.ActiveDirection, p.ActiveCellNumber
	if m != MoveNext && m != MovePrevious {
		return dir, a
	}

	var order []int // indices into p.Clues, in number order
	for i, c := range p.Clues {
		if c.Direction == dir && len(c.Cells) > 0 {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return dir, a
	}

	cur := -1
	if p.inBounds(a) && a < len(p.DefaultClues) {
		owner := p.DefaultClues[a].In(dir)
		for pos, ci := range order {
			if ci == owner {
				cur = pos
				break
			}
		}
	}

	var pos int
	switch {
	case cur < 0 && m == MoveNext:
		pos = 0
	case cur < 0:
		pos = len(order) - 1
	case m == MoveNext:
		pos = (cur + 1) % len(order)
	default:
		pos = (cur - 1 + len(order)) % len(order)
	}
	c := p.Clues[order[pos]]
	return c.Direction, c.Cells[0]
}

// activeSpan returns the cells of the clue owning the active cell in the
// active direction and the active cell's position in it (-1 if none).
func (p Puzzle) activeSpan() ([]int, int) {
	a := p.ActiveCellNumber
	if !p.inBounds(a) || a >= len(p.DefaultClues) {
		return nil, -1
	}
	ci := p.DefaultClues[a].In(p.ActiveDirection)
	if ci < 0 || ci >= len(p.Clues) {
		return nil, -1
	}
	span := p.Clues[ci].Cells
	for i, c := range span {
		if c == a {
			return span, i
		}
	}
	return nil, -1
}

func (p Puzzle) inBounds(i int) bool { return i >= 0 && i < len(p.Cells) }
