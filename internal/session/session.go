// Package session runs one game: turn order, history navigation, the
// computer opponent and cumulative statistics.
package session

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tttengine/internal/ai"
	"tttengine/internal/game"
	"tttengine/internal/history"
)

const (
	// DefaultThinkDelay is how long the computer pauses before moving.
	DefaultThinkDelay = 500 * time.Millisecond

	// ComputerMark is the side played by the computer in ModeVsComputer.
	ComputerMark = game.MarkO
)

var ErrUnknownMode = errors.New("unknown mode")

// Option configures a Session
type Option func(*Session)

// WithThinkDelay sets the pause before each computer move
func WithThinkDelay(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.thinkDelay = d
		}
	}
}

// WithRand seeds the computer opponent
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) { s.selector = ai.NewSelector(rng) }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithObserver registers fn to receive every new state, including the ones
// produced by delayed computer moves. States arrive in version order; a
// state overtaken by a newer one before delivery is skipped. fn runs without
// the session lock held but must not call session commands.
func WithObserver(fn func(State)) Option {
	return func(s *Session) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithOutcomeHook registers fn to be told about each finished game. fn runs
// with the session lock held and must not call back into the session.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(s *Session) { s.onOutcome = fn }
}

func WithBoardSize(size int) Option {
	return func(s *Session) { s.initialSize = size }
}

func WithDifficulty(d ai.Difficulty) Option {
	return func(s *Session) { s.difficulty = d }
}

func WithMode(m Mode) Option {
	return func(s *Session) { s.mode = m }
}

// Session is a single game table. All commands and the computer's timer
// serialize on one mutex, so the board only ever changes on one logical
// thread.
type Session struct {
	mu sync.Mutex

	id          string
	initialSize int
	history     *history.Store
	selector    *ai.Selector
	mode        Mode
	difficulty  ai.Difficulty
	ascending   bool
	showStats   bool
	viewing     bool
	stats       Stats
	thinkDelay  time.Duration
	log         zerolog.Logger
	observers   []func(State)
	onOutcome   func(Outcome)

	// version counts commands and computer moves; guarded by mu.
	version uint64

	publishMu     sync.Mutex
	lastPublished uint64

	// pending is the scheduled computer move; generation invalidates it.
	pending    *time.Timer
	generation uint64
	closed     bool
}

// New creates a session with an empty board. Defaults: 3x3, two players,
// medium difficulty, history ascending, stats hidden.
func New(id string, opts ...Option) (*Session, error) {
	s := &Session{
		id:          id,
		initialSize: game.DefaultBoardSize,
		mode:        ModeTwoPlayer,
		difficulty:  ai.Medium,
		ascending:   true,
		thinkDelay:  DefaultThinkDelay,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.selector == nil {
		s.selector = ai.NewSelector(nil)
	}
	if s.mode != ModeTwoPlayer && s.mode != ModeVsComputer {
		return nil, ErrUnknownMode
	}
	if _, err := ai.ParseDifficulty(s.difficulty.String()); err != nil {
		return nil, err
	}

	h, err := history.New(s.initialSize)
	if err != nil {
		return nil, err
	}
	s.history = h
	s.log = s.log.With().Str("session", id).Logger()
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// State returns the current snapshot
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// PlayAt places the side-to-move's mark at index on behalf of the human.
// Occupied cells, finished games, out-of-range indices and moves made while
// the computer is to move are ignored.
//
// While viewing an earlier position, the move branches from that position.
// If that position has the computer to move, the click hands the turn back
// to the computer instead.
func (s *Session) PlayAt(index int) State {
	return s.command(func() {
		current := s.history.Current()
		toMove := game.ToMove(s.history.Cursor())
		status := game.Evaluate(current, game.Patterns(current.Size))

		if s.viewing && s.mode == ModeVsComputer && toMove == ComputerMark && !status.IsFinished() {
			s.viewing = false
			s.scheduleComputerLocked()
			return
		}

		if status.IsFinished() {
			s.log.Debug().Int("index", index).Msg("move ignored: game over")
			return
		}
		if s.mode == ModeVsComputer && toMove == ComputerMark {
			s.log.Debug().Int("index", index).Msg("move ignored: computer to move")
			return
		}
		next, err := current.Place(index, toMove)
		if err != nil {
			s.log.Debug().Err(err).Int("index", index).Msg("move ignored")
			return
		}
		s.applyLocked(next)
	})
}

// JumpTo moves the history cursor. Viewing any entry but the last suspends
// the computer until play resumes. Out-of-range indices are ignored.
func (s *Session) JumpTo(index int) State {
	return s.command(func() {
		if index == s.history.Cursor() {
			return
		}
		if err := s.history.Jump(index); err != nil {
			s.log.Debug().Err(err).Int("index", index).Msg("jump ignored")
			return
		}
		s.cancelPendingLocked()
		s.viewing = s.history.IsViewingPast()
		s.scheduleComputerLocked()
	})
}

// NewGame clears the board, keeping size, mode, difficulty and stats.
func (s *Session) NewGame() State {
	return s.command(func() {
		s.resetLocked(s.history.Size())
	})
}

// ChangeBoardSize starts a new game on a size*size board. Choosing the
// current size changes nothing.
func (s *Session) ChangeBoardSize(size int) (State, error) {
	if !game.ValidSize(size) {
		return s.State(), game.ErrInvalidBoardSize
	}
	return s.command(func() {
		if size == s.history.Size() {
			return
		}
		s.resetLocked(size)
	}), nil
}

// ChangeDifficulty applies to the next computer move, including one that
// is already scheduled.
func (s *Session) ChangeDifficulty(d ai.Difficulty) (State, error) {
	if _, err := ai.ParseDifficulty(d.String()); err != nil {
		return s.State(), err
	}
	return s.command(func() {
		s.difficulty = d
	}), nil
}

// ToggleMode switches between two players and playing the computer, and
// starts a new game.
func (s *Session) ToggleMode() State {
	return s.command(func() {
		if s.mode == ModeTwoPlayer {
			s.mode = ModeVsComputer
		} else {
			s.mode = ModeTwoPlayer
		}
		s.resetLocked(s.history.Size())
	})
}

// ToggleHistorySortOrder flips the display order of the move list
func (s *Session) ToggleHistorySortOrder() State {
	return s.command(func() {
		s.ascending = !s.ascending
	})
}

// ToggleStatsVisibility flips the stats panel flag
func (s *Session) ToggleStatsVisibility() State {
	return s.command(func() {
		s.showStats = !s.showStats
	})
}

// Close cancels any scheduled computer move. Later commands still work but
// the computer no longer moves.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelPendingLocked()
}

// command runs fn under the lock and publishes the resulting state.
func (s *Session) command(fn func()) State {
	s.mu.Lock()
	fn()
	s.version++
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(st)
	return st
}

// publish delivers st unless a newer state has already gone out.
func (s *Session) publish(st State) {
	if len(s.observers) == 0 {
		return
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if st.Version <= s.lastPublished {
		return
	}
	s.lastPublished = st.Version
	for _, fn := range s.observers {
		fn(st)
	}
}

func (s *Session) resetLocked(size int) {
	s.cancelPendingLocked()
	if err := s.history.Reset(size); err != nil {
		s.log.Error().Err(err).Int("size", size).Msg("reset failed")
		return
	}
	s.viewing = false
}

// applyLocked records next as the new last position, settles the result
// and hands the turn to the computer when it is due.
func (s *Session) applyLocked(next game.Board) {
	s.history.Append(next)
	s.viewing = false

	status := game.Evaluate(next, game.Patterns(next.Size))
	if status.IsFinished() {
		s.recordLocked(status)
		return
	}
	s.scheduleComputerLocked()
}

func (s *Session) recordLocked(status game.Status) {
	switch status {
	case game.StatusXWon:
		s.stats.X++
	case game.StatusOWon:
		s.stats.O++
	case game.StatusDraw:
		s.stats.Draws++
	default:
		return
	}
	s.log.Info().
		Str("status", status.String()).
		Int("size", s.history.Size()).
		Str("mode", s.mode.String()).
		Msg("game finished")

	if s.onOutcome != nil {
		s.onOutcome(Outcome{
			SessionID:  s.id,
			Status:     status,
			BoardSize:  s.history.Size(),
			Mode:       s.mode,
			Difficulty: s.difficulty,
			Plies:      s.history.Cursor(),
		})
	}
}

func (s *Session) computerDueLocked() bool {
	if s.closed || s.mode != ModeVsComputer || s.viewing {
		return false
	}
	if game.ToMove(s.history.Cursor()) != ComputerMark {
		return false
	}
	current := s.history.Current()
	return !game.Evaluate(current, game.Patterns(current.Size)).IsFinished()
}

func (s *Session) scheduleComputerLocked() {
	if s.pending != nil || !s.computerDueLocked() {
		return
	}
	gen := s.generation
	s.pending = time.AfterFunc(s.thinkDelay, func() { s.computerMove(gen) })
}

func (s *Session) cancelPendingLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.generation++
}

// computerMove runs when the thinking delay expires. A timer from before a
// reset, size change, mode change or jump finds a newer generation and does
// nothing.
func (s *Session) computerMove(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	if !s.computerDueLocked() {
		s.mu.Unlock()
		return
	}

	current := s.history.Current()
	start := time.Now()
	idx, ok := s.selector.Select(current, ComputerMark, s.difficulty)
	if !ok {
		s.mu.Unlock()
		return
	}
	next, err := current.Place(idx, ComputerMark)
	if err != nil {
		s.log.Error().Err(err).Int("index", idx).Msg("computer chose an illegal move")
		s.mu.Unlock()
		return
	}
	s.log.Debug().
		Int("index", idx).
		Str("difficulty", s.difficulty.String()).
		Dur("elapsed", time.Since(start)).
		Msg("computer moved")
	s.applyLocked(next)
	s.version++
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(st)
}

func (s *Session) snapshotLocked() State {
	current := s.history.Current().Clone()
	cursor := s.history.Cursor()
	status := game.Evaluate(current, game.Patterns(current.Size))
	return State{
		ID:               s.id,
		Version:          s.version,
		BoardSize:        current.Size,
		Board:            current,
		History:          s.history.Entries(),
		Cursor:           cursor,
		ToMove:           game.ToMove(cursor),
		Status:           status,
		Winner:           status.Winner(),
		Ascending:        s.ascending,
		Stats:            s.stats,
		ShowStats:        s.showStats,
		Difficulty:       s.difficulty,
		Mode:             s.mode,
		ViewingHistory:   s.viewing,
		ComputerThinking: s.pending != nil,
	}
}
