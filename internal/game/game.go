package game

// Status represents the outcome of a board position
type Status int

const (
	StatusInProgress Status = iota
	StatusXWon
	StatusOWon
	StatusDraw
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusXWon:
		return "X_WON"
	case StatusOWon:
		return "O_WON"
	case StatusDraw:
		return "DRAW"
	default:
		return "UNKNOWN"
	}
}

// IsFinished returns true if the game has ended
func (s Status) IsFinished() bool {
	return s == StatusXWon || s == StatusOWon || s == StatusDraw
}

// Winner returns the winning mark for a finished status, MarkEmpty otherwise.
func (s Status) Winner() Mark {
	switch s {
	case StatusXWon:
		return MarkX
	case StatusOWon:
		return MarkO
	default:
		return MarkEmpty
	}
}

// Evaluate classifies a board: a winner if any pattern is complete, a draw
// if the board is full without one, in progress otherwise.
func Evaluate(b Board, patterns []WinPattern) Status {
	switch Winner(b, patterns) {
	case MarkX:
		return StatusXWon
	case MarkO:
		return StatusOWon
	}
	if b.IsFull() {
		return StatusDraw
	}
	return StatusInProgress
}

// ToMove returns the side to move at the given ply. X always opens.
func ToMove(ply int) Mark {
	if ply%2 == 0 {
		return MarkX
	}
	return MarkO
}
