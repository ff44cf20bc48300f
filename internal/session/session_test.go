package session

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tttengine/internal/ai"
	"tttengine/internal/game"
)

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithThinkDelay(0), WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	s, err := New("test", opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, s *Session, cond func(State) bool) State {
	t.Helper()
	require.Eventually(t, func() bool { return cond(s.State()) }, 5*time.Second, 5*time.Millisecond)
	return s.State()
}

// assertUnchanged compares two states ignoring the version, which every
// command advances.
func assertUnchanged(t *testing.T, want, got State, msgAndArgs ...any) {
	t.Helper()
	assert.LessOrEqual(t, want.Version, got.Version)
	want.Version, got.Version = 0, 0
	assert.Equal(t, want, got, msgAndArgs...)
}

func playAll(s *Session, moves ...int) State {
	var st State
	for _, m := range moves {
		st = s.PlayAt(m)
	}
	return st
}

func TestNew_Defaults(t *testing.T) {
	s := newSession(t)
	st := s.State()

	assert.Equal(t, "test", st.ID)
	assert.Equal(t, 3, st.BoardSize)
	assert.Len(t, st.History, 1)
	assert.Equal(t, 0, st.Cursor)
	assert.Equal(t, game.MarkX, st.ToMove)
	assert.Equal(t, game.StatusInProgress, st.Status)
	assert.True(t, st.Playing())
	assert.True(t, st.Ascending)
	assert.False(t, st.ShowStats)
	assert.Equal(t, ai.Medium, st.Difficulty)
	assert.Equal(t, ModeTwoPlayer, st.Mode)
	assert.Equal(t, "Next player: X", st.StatusText())
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New("bad", WithBoardSize(9))
	assert.ErrorIs(t, err, game.ErrInvalidBoardSize)

	_, err = New("bad", WithMode(Mode(7)))
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = New("bad", WithDifficulty(ai.Difficulty(7)))
	assert.ErrorIs(t, err, ai.ErrUnknownDifficulty)
}

func TestPlayAt_TwoPlayerAlternates(t *testing.T) {
	s := newSession(t)

	st := s.PlayAt(4)
	assert.Equal(t, game.MarkX, st.Board.Cells[4])
	assert.Equal(t, game.MarkO, st.ToMove)

	st = s.PlayAt(0)
	assert.Equal(t, game.MarkO, st.Board.Cells[0])
	assert.Equal(t, game.MarkX, st.ToMove)
	assert.Len(t, st.History, 3)
	assert.Equal(t, 2, st.Cursor)
}

func TestPlayAt_InvalidMovesAreIgnored(t *testing.T) {
	s := newSession(t)
	before := s.PlayAt(4)

	for _, idx := range []int{4, -1, 9, 100} {
		st := s.PlayAt(idx)
		assertUnchanged(t, before, st, "index %d", idx)
	}
}

func TestPlayAt_WinStopsGameAndCountsOnce(t *testing.T) {
	s := newSession(t)

	// X X X
	// O O .
	// . . .
	st := playAll(s, 0, 3, 1, 4, 2)
	assert.Equal(t, game.StatusXWon, st.Status)
	assert.Equal(t, game.MarkX, st.Winner)
	assert.Equal(t, "Winner: X", st.StatusText())
	assert.False(t, st.Playing())
	assert.Equal(t, Stats{X: 1}, st.Stats)

	after := s.PlayAt(5)
	assertUnchanged(t, st, after)

	// Revisiting the final position does not count it again.
	s.JumpTo(2)
	st = s.JumpTo(5)
	assert.Equal(t, Stats{X: 1}, st.Stats)
}

func TestPlayAt_DrawCountsOnce(t *testing.T) {
	s := newSession(t)

	// X O X
	// X X O
	// O X O
	st := playAll(s, 0, 1, 2, 5, 3, 6, 4, 8, 7)
	assert.Equal(t, game.StatusDraw, st.Status)
	assert.Equal(t, "Game ended in a draw", st.StatusText())
	assert.Equal(t, Stats{Draws: 1}, st.Stats)

	st = s.PlayAt(0)
	assert.Equal(t, Stats{Draws: 1}, st.Stats)
}

func TestJumpTo_BranchTruncation(t *testing.T) {
	s := newSession(t)
	st := playAll(s, 0, 4, 8)
	require.Len(t, st.History, 4)
	b0, b1 := st.History[0], st.History[1]

	st = s.JumpTo(1)
	assert.True(t, st.ViewingHistory)
	assert.Equal(t, game.MarkO, st.ToMove)
	assert.Len(t, st.History, 4)

	st = s.PlayAt(2)
	require.Len(t, st.History, 3)
	assert.Equal(t, 2, st.Cursor)
	assert.Equal(t, b0, st.History[0])
	assert.Equal(t, b1, st.History[1])
	assert.Equal(t, game.MarkO, st.Board.Cells[2])
	assert.Equal(t, game.MarkEmpty, st.Board.Cells[4])
	assert.False(t, st.ViewingHistory)
}

func TestJumpTo_Idempotent(t *testing.T) {
	s := newSession(t)
	playAll(s, 0, 4)
	before := s.JumpTo(1)

	after := s.JumpTo(before.Cursor)
	assertUnchanged(t, before, after)
}

func TestJumpTo_OutOfRangeIgnored(t *testing.T) {
	s := newSession(t)
	before := playAll(s, 0, 4)

	assertUnchanged(t, before, s.JumpTo(-1))
	assertUnchanged(t, before, s.JumpTo(3))
}

func TestJumpTo_FinishedPositionBlocksPlay(t *testing.T) {
	s := newSession(t)
	playAll(s, 0, 3, 1, 4, 2)

	st := s.JumpTo(3)
	assert.True(t, st.Playing())

	st = s.JumpTo(5)
	assert.False(t, st.Playing())
	assertUnchanged(t, st, s.PlayAt(8))
}

func TestChangeBoardSize_ResetsHistoryKeepsStats(t *testing.T) {
	s := newSession(t)
	playAll(s, 0, 3, 1, 4, 2)
	s.NewGame()
	s.PlayAt(4)

	st, err := s.ChangeBoardSize(5)
	require.NoError(t, err)
	assert.Equal(t, 5, st.BoardSize)
	assert.Len(t, st.History, 1)
	assert.Len(t, st.Board.EmptyCells(), 25)
	assert.Equal(t, 0, st.Cursor)
	assert.True(t, st.Playing())
	assert.Equal(t, Stats{X: 1}, st.Stats)
}

func TestChangeBoardSize_Validation(t *testing.T) {
	s := newSession(t)
	before := s.PlayAt(4)

	st, err := s.ChangeBoardSize(6)
	assert.ErrorIs(t, err, game.ErrInvalidBoardSize)
	assertUnchanged(t, before, st)

	st, err = s.ChangeBoardSize(3)
	require.NoError(t, err)
	assertUnchanged(t, before, st)
}

func TestNewGame_KeepsSettings(t *testing.T) {
	s := newSession(t)
	s.ToggleStatsVisibility()
	_, err := s.ChangeBoardSize(4)
	require.NoError(t, err)
	s.PlayAt(0)

	st := s.NewGame()
	assert.Equal(t, 4, st.BoardSize)
	assert.Len(t, st.History, 1)
	assert.True(t, st.ShowStats)
}

func TestToggles(t *testing.T) {
	s := newSession(t)
	playAll(s, 0, 1)

	st := s.ToggleHistorySortOrder()
	assert.False(t, st.Ascending)
	assert.Equal(t, []MoveEntry{
		{Ply: 2, Description: "Go to move #2", Current: true},
		{Ply: 1, Description: "Go to move #1"},
		{Ply: 0, Description: "Go to game start"},
	}, st.Moves())

	st = s.ToggleHistorySortOrder()
	assert.True(t, st.Ascending)
	assert.Equal(t, 0, st.Moves()[0].Ply)

	st = s.ToggleStatsVisibility()
	assert.True(t, st.ShowStats)
	st = s.ToggleStatsVisibility()
	assert.False(t, st.ShowStats)
}

func TestChangeDifficulty(t *testing.T) {
	s := newSession(t)
	st, err := s.ChangeDifficulty(ai.Hard)
	require.NoError(t, err)
	assert.Equal(t, ai.Hard, st.Difficulty)

	_, err = s.ChangeDifficulty(ai.Difficulty(9))
	assert.ErrorIs(t, err, ai.ErrUnknownDifficulty)
	assert.Equal(t, ai.Hard, s.State().Difficulty)
}

func TestToggleMode_StartsNewGame(t *testing.T) {
	s := newSession(t)
	playAll(s, 0, 1)

	st := s.ToggleMode()
	assert.Equal(t, ModeVsComputer, st.Mode)
	assert.Len(t, st.History, 1)

	st = s.ToggleMode()
	assert.Equal(t, ModeTwoPlayer, st.Mode)
}

func TestVsComputer_ComputerReplies(t *testing.T) {
	s := newSession(t, WithMode(ModeVsComputer))

	st := s.PlayAt(0)
	assert.Equal(t, game.MarkO, st.ToMove)

	assert.True(t, st.ComputerThinking)

	st = waitFor(t, s, func(st State) bool { return st.Cursor == 2 })
	assert.Equal(t, game.MarkX, st.ToMove)
	assert.False(t, st.ComputerThinking)
	assert.Equal(t, 1, countMarks(st.Board, game.MarkO))
}

func TestVsComputer_HumanCannotPlayComputersTurn(t *testing.T) {
	s := newSession(t, WithMode(ModeVsComputer), WithThinkDelay(time.Hour))

	st := s.PlayAt(0)
	require.True(t, st.ComputerThinking)

	after := s.PlayAt(1)
	assertUnchanged(t, st, after)
}

func TestVsComputer_StaleTimerIsDiscarded(t *testing.T) {
	tests := []struct {
		name  string
		reset func(s *Session)
	}{
		{"new game", func(s *Session) { s.NewGame() }},
		{"size change", func(s *Session) { _, _ = s.ChangeBoardSize(4) }},
		{"mode toggle", func(s *Session) { s.ToggleMode() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, WithMode(ModeVsComputer), WithThinkDelay(50*time.Millisecond))
			st := s.PlayAt(0)
			require.True(t, st.ComputerThinking)

			tt.reset(s)
			time.Sleep(200 * time.Millisecond)

			st = s.State()
			assert.Len(t, st.History, 1)
			assert.Zero(t, countMarks(st.Board, game.MarkO))
			assert.False(t, st.ComputerThinking)
		})
	}
}

func TestVsComputer_ViewingHistorySuspendsComputer(t *testing.T) {
	s := newSession(t, WithMode(ModeVsComputer))
	s.PlayAt(0)
	waitFor(t, s, func(st State) bool { return st.Cursor == 2 })
	s.PlayAt(firstEmpty(s.State().Board))
	waitFor(t, s, func(st State) bool { return st.Cursor == 4 })

	// Ply 1 has the computer to move; looking at it must not trigger a move.
	st := s.JumpTo(1)
	assert.True(t, st.ViewingHistory)
	assert.False(t, st.ComputerThinking)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, s.State().History, 5)

	// Clicking resumes play from the viewed position.
	st = s.PlayAt(8)
	assert.False(t, st.ViewingHistory)
	st = waitFor(t, s, func(st State) bool { return st.Cursor == 2 })
	assert.Len(t, st.History, 3)
}

func TestVsComputer_JumpBackToLatestResumes(t *testing.T) {
	s := newSession(t, WithMode(ModeVsComputer), WithThinkDelay(30*time.Millisecond))
	st := s.PlayAt(4)
	require.True(t, st.ComputerThinking)

	st = s.JumpTo(0)
	assert.False(t, st.ComputerThinking)

	st = s.JumpTo(1)
	assert.False(t, st.ViewingHistory)
	assert.True(t, st.ComputerThinking)
	waitFor(t, s, func(st State) bool { return st.Cursor == 2 })
}

func TestVsComputer_HardNeverLoses(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	var outcomes []Outcome
	var mu sync.Mutex
	s := newSession(t,
		WithMode(ModeVsComputer),
		WithDifficulty(ai.Hard),
		WithOutcomeHook(func(o Outcome) {
			mu.Lock()
			outcomes = append(outcomes, o)
			mu.Unlock()
		}),
	)

	for g := 0; g < 5; g++ {
		st := s.NewGame()
		for st.Playing() {
			empty := st.Board.EmptyCells()
			ply := st.Cursor
			s.PlayAt(empty[rng.IntN(len(empty))])
			st = waitFor(t, s, func(st State) bool {
				return !st.Playing() || st.Cursor == ply+2
			})
		}
		assert.NotEqual(t, game.StatusXWon, st.Status, "\n%s", st.Board)
	}

	st := s.State()
	assert.Equal(t, 5, st.Stats.Total())
	assert.Zero(t, st.Stats.X)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 5)
	for _, o := range outcomes {
		assert.Equal(t, "test", o.SessionID)
		assert.Equal(t, ModeVsComputer, o.Mode)
		assert.Equal(t, ai.Hard, o.Difficulty)
	}
}

func TestObserver_SeesComputerMoves(t *testing.T) {
	var mu sync.Mutex
	var seen []State
	s := newSession(t, WithMode(ModeVsComputer), WithObserver(func(st State) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	}))

	s.PlayAt(4)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 2 && seen[len(seen)-1].Cursor == 2
	}, 5*time.Second, 5*time.Millisecond)
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeTwoPlayer, ModeVsComputer} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMode("online")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func countMarks(b game.Board, mark game.Mark) int {
	n := 0
	for _, c := range b.Cells {
		if c == mark {
			n++
		}
	}
	return n
}

func firstEmpty(b game.Board) int {
	return b.EmptyCells()[0]
}

func TestObserver_SlowDeliveryKeepsOrder(t *testing.T) {
	var mu sync.Mutex
	var published []State
	var slowed bool
	s := newSession(t, WithMode(ModeVsComputer), WithObserver(func(st State) {
		mu.Lock()
		stall := st.Cursor == 1 && !slowed
		slowed = slowed || stall
		mu.Unlock()
		if stall {
			// Give the computer's reply time to reach publish first.
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		published = append(published, st)
		mu.Unlock()
	}))

	s.PlayAt(4)
	waitFor(t, s, func(st State) bool { return st.Cursor == 2 })
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, published)
	for i := 1; i < len(published); i++ {
		assert.Greater(t, published[i].Version, published[i-1].Version)
	}
	last := published[len(published)-1]
	assert.Equal(t, 2, last.Cursor)
	assert.False(t, last.ComputerThinking)
	assert.Equal(t, s.State().Version, last.Version)
}

func TestVersion_Increases(t *testing.T) {
	s := newSession(t)
	v0 := s.State().Version

	v1 := s.PlayAt(4).Version
	v2 := s.PlayAt(4).Version
	assert.Greater(t, v1, v0)
	assert.Greater(t, v2, v1)
	assert.Equal(t, v2, s.State().Version, "reading state does not advance the version")
}
