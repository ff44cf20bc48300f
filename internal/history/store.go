// Package history records the boards of a game with a movable cursor.
package history

import (
	"errors"

	"tttengine/internal/game"
)

var ErrIndexOutOfRange = errors.New("history index out of range")

// Store is a single timeline of boards. Entry 0 is always the empty board.
// Appending while the cursor sits before the last entry discards everything
// after the cursor.
type Store struct {
	entries []game.Board
	cursor  int
}

// New returns a store holding one empty board of the given size.
func New(size int) (*Store, error) {
	s := &Store{}
	if err := s.Reset(size); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset replaces the timeline with a single empty board.
func (s *Store) Reset(size int) error {
	b, err := game.NewBoard(size)
	if err != nil {
		return err
	}
	s.entries = []game.Board{b}
	s.cursor = 0
	return nil
}

// Append truncates entries after the cursor, records b and moves the
// cursor onto it.
func (s *Store) Append(b game.Board) {
	s.entries = append(s.entries[:s.cursor+1:s.cursor+1], b)
	s.cursor = len(s.entries) - 1
}

// Jump moves the cursor. Out-of-range indices leave the store untouched.
func (s *Store) Jump(index int) error {
	if index < 0 || index >= len(s.entries) {
		return ErrIndexOutOfRange
	}
	s.cursor = index
	return nil
}

// Current returns the board under the cursor.
func (s *Store) Current() game.Board {
	return s.entries[s.cursor]
}

func (s *Store) Cursor() int { return s.cursor }

func (s *Store) Len() int { return len(s.entries) }

// Size is the board size of the timeline.
func (s *Store) Size() int { return s.entries[0].Size }

// IsViewingPast reports whether the cursor is before the last entry.
func (s *Store) IsViewingPast() bool {
	return s.cursor < len(s.entries)-1
}

// Entries returns a copy of the timeline.
func (s *Store) Entries() []game.Board {
	out := make([]game.Board, len(s.entries))
	for i, b := range s.entries {
		out[i] = b.Clone()
	}
	return out
}
