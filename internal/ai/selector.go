// Package ai picks moves for the computer player.
package ai

import (
	"errors"
	"math/rand/v2"
	"strings"

	"tttengine/internal/game"
)

// Difficulty selects the move selection strategy
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

var ErrUnknownDifficulty = errors.New("unknown difficulty")

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return "unknown"
	}
}

// ParseDifficulty accepts the names produced by String, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	default:
		return 0, ErrUnknownDifficulty
	}
}

// Selector chooses moves. It is not safe for concurrent use; each game
// session owns its own.
type Selector struct {
	rng *rand.Rand
}

// NewSelector returns a selector drawing randomness from rng. A nil rng
// gets a randomly seeded source.
func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{rng: rng}
}

// Select returns the cell the computer playing me should take. ok is false
// only when the board has no empty cell.
func (s *Selector) Select(b game.Board, me game.Mark, d Difficulty) (int, bool) {
	switch d {
	case Easy:
		return s.Random(b)
	case Medium:
		return s.medium(b, me)
	case Hard:
		return s.hard(b, me)
	default:
		return s.Random(b)
	}
}

// Random picks a uniformly random empty cell.
func (s *Selector) Random(b game.Board) (int, bool) {
	empty := b.EmptyCells()
	if len(empty) == 0 {
		return -1, false
	}
	return empty[s.rng.IntN(len(empty))], true
}

// ImmediateWin returns the first empty cell, in index order, that completes
// a line for mark.
func ImmediateWin(b game.Board, patterns []game.WinPattern, mark game.Mark) (int, bool) {
	for _, idx := range b.EmptyCells() {
		next, err := b.Place(idx, mark)
		if err != nil {
			continue
		}
		if game.Winner(next, patterns) == mark {
			return idx, true
		}
	}
	return -1, false
}

// tactical covers the first two steps shared by Medium and Hard: take a win,
// otherwise block one.
func tactical(b game.Board, patterns []game.WinPattern, me game.Mark) (int, bool) {
	if idx, ok := ImmediateWin(b, patterns, me); ok {
		return idx, true
	}
	return ImmediateWin(b, patterns, me.Opponent())
}

func (s *Selector) medium(b game.Board, me game.Mark) (int, bool) {
	patterns := game.Patterns(b.Size)
	if idx, ok := tactical(b, patterns, me); ok {
		return idx, true
	}
	if b.Size%2 != 0 {
		if center := b.Center(); b.Cells[center] == game.MarkEmpty {
			return center, true
		}
	}
	return s.Random(b)
}

func (s *Selector) hard(b game.Board, me game.Mark) (int, bool) {
	patterns := game.Patterns(b.Size)
	if idx, ok := tactical(b, patterns, me); ok {
		return idx, true
	}
	if idx, _, ok := s.Search(b, me, DepthLimit(b)); ok {
		return idx, true
	}
	return s.Random(b)
}
