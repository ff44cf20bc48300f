package session

import (
	"fmt"
	"strings"

	"tttengine/internal/ai"
	"tttengine/internal/game"
)

// Mode selects who plays the second mark
type Mode int

const (
	ModeTwoPlayer Mode = iota
	ModeVsComputer
)

func (m Mode) String() string {
	switch m {
	case ModeTwoPlayer:
		return "two-player"
	case ModeVsComputer:
		return "vs-computer"
	default:
		return "unknown"
	}
}

// ParseMode accepts the names produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "two-player":
		return ModeTwoPlayer, nil
	case "vs-computer":
		return ModeVsComputer, nil
	default:
		return 0, ErrUnknownMode
	}
}

// Stats counts finished games by result
type Stats struct {
	X     int
	O     int
	Draws int
}

// Total returns the number of finished games
func (s Stats) Total() int {
	return s.X + s.O + s.Draws
}

// State is an immutable snapshot of a session. Every command returns a
// fresh one; boards in it are copies owned by the caller.
type State struct {
	ID               string
	Version          uint64 // increases with every command and computer move
	BoardSize        int
	Board            game.Board
	History          []game.Board
	Cursor           int
	ToMove           game.Mark
	Status           game.Status
	Winner           game.Mark
	Ascending        bool
	Stats            Stats
	ShowStats        bool
	Difficulty       ai.Difficulty
	Mode             Mode
	ViewingHistory   bool
	ComputerThinking bool
}

// Playing reports whether the position under the cursor accepts moves.
func (s State) Playing() bool {
	return !s.Status.IsFinished()
}

// StatusText is the one-line status shown above the board.
func (s State) StatusText() string {
	switch s.Status {
	case game.StatusXWon, game.StatusOWon:
		return fmt.Sprintf("Winner: %s", s.Winner)
	case game.StatusDraw:
		return "Game ended in a draw"
	default:
		return fmt.Sprintf("Next player: %s", s.ToMove)
	}
}

// MoveEntry is one line of the history list
type MoveEntry struct {
	Ply         int
	Description string
	Current     bool
}

// Moves lists the history entries in display order.
func (s State) Moves() []MoveEntry {
	moves := make([]MoveEntry, len(s.History))
	for ply := range s.History {
		desc := "Go to game start"
		if ply > 0 {
			desc = fmt.Sprintf("Go to move #%d", ply)
		}
		pos := ply
		if !s.Ascending {
			pos = len(s.History) - 1 - ply
		}
		moves[pos] = MoveEntry{Ply: ply, Description: desc, Current: ply == s.Cursor}
	}
	return moves
}

// Outcome describes a finished game, reported once per game.
type Outcome struct {
	SessionID  string
	Status     game.Status
	BoardSize  int
	Mode       Mode
	Difficulty ai.Difficulty
	Plies      int
}
