package game

import (
	"errors"
	"strings"
)

// Mark represents a cell state on the board
type Mark int

const (
	MarkEmpty Mark = iota
	MarkX
	MarkO
)

func (m Mark) String() string {
	switch m {
	case MarkEmpty:
		return " "
	case MarkX:
		return "X"
	case MarkO:
		return "O"
	default:
		return "?"
	}
}

// Opponent returns the opposing mark
func (m Mark) Opponent() Mark {
	switch m {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return MarkEmpty
	}
}

// Board sizes accepted by the engine. The win condition is always a full
// row, column or diagonal, so the size is also the win length.
const (
	MinBoardSize     = 3
	MaxBoardSize     = 5
	DefaultBoardSize = 3
)

// Common errors
var (
	ErrInvalidBoardSize = errors.New("invalid board size: must be between 3 and 5")
	ErrInvalidPosition  = errors.New("invalid position: out of bounds")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidMark      = errors.New("invalid mark")
)

// ValidSize reports whether size is a supported board size.
func ValidSize(size int) bool {
	return size >= MinBoardSize && size <= MaxBoardSize
}

// Board is a row-major grid of size*size cells.
//
// Boards are values: Place never touches the receiver and always hands back a
// fresh copy, so a Board recorded in history can be shared freely.
type Board struct {
	Size  int
	Cells []Mark
}

// NewBoard creates an empty board of the given size
func NewBoard(size int) (Board, error) {
	if !ValidSize(size) {
		return Board{}, ErrInvalidBoardSize
	}
	return emptyBoard(size), nil
}

func emptyBoard(size int) Board {
	return Board{Size: size, Cells: make([]Mark, size*size)}
}

// BoardFromCells builds a board from a row-major cell slice. The slice is
// copied. Used for foreign input, so any mark combination is accepted.
func BoardFromCells(cells []Mark) (Board, error) {
	size := 0
	for size*size < len(cells) {
		size++
	}
	if size*size != len(cells) || !ValidSize(size) {
		return Board{}, ErrInvalidBoardSize
	}
	b := emptyBoard(size)
	for i, c := range cells {
		if c < MarkEmpty || c > MarkO {
			return Board{}, ErrInvalidMark
		}
		b.Cells[i] = c
	}
	return b, nil
}

// Get returns the mark at the given row and column
func (b Board) Get(row, col int) (Mark, error) {
	if row < 0 || row >= b.Size || col < 0 || col >= b.Size {
		return MarkEmpty, ErrInvalidPosition
	}
	return b.Cells[row*b.Size+col], nil
}

// InBounds reports whether index addresses a cell of this board.
func (b Board) InBounds(index int) bool {
	return index >= 0 && index < len(b.Cells)
}

// Place returns a copy of the board with mark written at index.
func (b Board) Place(index int, mark Mark) (Board, error) {
	if !b.InBounds(index) {
		return Board{}, ErrInvalidPosition
	}
	if mark != MarkX && mark != MarkO {
		return Board{}, ErrInvalidMark
	}
	if b.Cells[index] != MarkEmpty {
		return Board{}, ErrCellOccupied
	}
	next := b.Clone()
	next.Cells[index] = mark
	return next, nil
}

// IsFull returns true if all cells are occupied
func (b Board) IsFull() bool {
	for _, cell := range b.Cells {
		if cell == MarkEmpty {
			return false
		}
	}
	return true
}

// EmptyCells returns the indices of unoccupied cells in index order.
func (b Board) EmptyCells() []int {
	empty := make([]int, 0, len(b.Cells))
	for i, cell := range b.Cells {
		if cell == MarkEmpty {
			empty = append(empty, i)
		}
	}
	return empty
}

// Center returns the index of the middle cell. For even sizes this is the
// cell just below and right of the geometric centre.
func (b Board) Center() int {
	return len(b.Cells) / 2
}

// Corners returns the corner indices: top-left, top-right, bottom-left,
// bottom-right.
func (b Board) Corners() [4]int {
	n := b.Size
	return [4]int{0, n - 1, n * (n - 1), n*n - 1}
}

// Clone creates a deep copy of the board
func (b Board) Clone() Board {
	cells := make([]Mark, len(b.Cells))
	copy(cells, b.Cells)
	return Board{Size: b.Size, Cells: cells}
}

// Key serializes the cells one character per cell ("-" for empty).
func (b Board) Key() string {
	var sb strings.Builder
	sb.Grow(len(b.Cells))
	for _, cell := range b.Cells {
		if cell == MarkEmpty {
			sb.WriteByte('-')
			continue
		}
		sb.WriteString(cell.String())
	}
	return sb.String()
}

// String returns a string representation of the board
func (b Board) String() string {
	var sb strings.Builder
	for row := 0; row < b.Size; row++ {
		for col := 0; col < b.Size; col++ {
			mark, _ := b.Get(row, col)
			sb.WriteString("[" + mark.String() + "]")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
