package ai

import (
	"math"
	"math/rand/v2"

	"tttengine/internal/game"
)

// winScore is the value of a win found at the root's children. Wins found
// deeper are worth less, losses found deeper cost less.
const winScore = 10

// DepthLimit returns the search depth for the Hard tier: shallow on boards
// larger than 3x3, exhaustive once a 3x3 board has six or fewer empty cells.
func DepthLimit(b game.Board) int {
	switch {
	case b.Size > 3:
		return 3
	case len(b.EmptyCells()) > 6:
		return 6
	default:
		return 9
	}
}

type boundFlag uint8

const (
	boundExact boundFlag = iota
	boundLower
	boundUpper
)

type cacheKey struct {
	cells      string
	maximizing bool
}

type cacheEntry struct {
	score int
	flag  boundFlag
}

// searcher holds the state of one move decision. The cache is dropped with
// it. Within one decision every board is reached at the same depth, since
// each ply adds exactly one mark, so a key never maps to two depths.
type searcher struct {
	patterns []game.WinPattern
	me       game.Mark
	maxDepth int
	rng      *rand.Rand
	prune    bool
	cache    map[cacheKey]cacheEntry
	nodes    int
}

// Search runs a depth-limited alpha-beta search for me and returns the
// best move with its score. Root candidates are scored with a full window
// and ties go to the earlier candidate in move order.
func (s *Selector) Search(b game.Board, me game.Mark, maxDepth int) (int, int, bool) {
	sr := &searcher{
		patterns: game.Patterns(b.Size),
		me:       me,
		maxDepth: maxDepth,
		rng:      s.rng,
		prune:    true,
		cache:    make(map[cacheKey]cacheEntry),
	}
	return sr.root(b)
}

func (sr *searcher) root(b game.Board) (int, int, bool) {
	best, bestScore := -1, math.MinInt
	for _, idx := range orderMoves(b, sr.rng) {
		child, err := b.Place(idx, sr.me)
		if err != nil {
			continue
		}
		score := sr.minimax(child, 0, false, math.MinInt, math.MaxInt)
		if score > bestScore {
			best, bestScore = idx, score
		}
	}
	return best, bestScore, best >= 0
}

func (sr *searcher) minimax(b game.Board, depth int, maximizing bool, alpha, beta int) int {
	sr.nodes++

	var key cacheKey
	if sr.cache != nil {
		key = cacheKey{cells: b.Key(), maximizing: maximizing}
		if e, ok := sr.cache[key]; ok {
			switch e.flag {
			case boundExact:
				return e.score
			case boundLower:
				alpha = max(alpha, e.score)
			case boundUpper:
				beta = min(beta, e.score)
			}
			if beta <= alpha {
				return e.score
			}
		}
	}

	switch game.Winner(b, sr.patterns) {
	case sr.me:
		return winScore - depth
	case sr.me.Opponent():
		return depth - winScore
	}
	if b.IsFull() {
		return 0
	}
	if depth >= sr.maxDepth {
		return game.Score(b, sr.patterns, sr.me)
	}

	lo, hi := alpha, beta
	mark := sr.me
	best := math.MinInt
	if !maximizing {
		mark = sr.me.Opponent()
		best = math.MaxInt
	}

	for _, idx := range orderMoves(b, sr.rng) {
		child, err := b.Place(idx, mark)
		if err != nil {
			continue
		}
		score := sr.minimax(child, depth+1, !maximizing, alpha, beta)
		if maximizing {
			best = max(best, score)
			alpha = max(alpha, score)
		} else {
			best = min(best, score)
			beta = min(beta, score)
		}
		if sr.prune && beta <= alpha {
			break
		}
	}

	if sr.cache != nil {
		flag := boundExact
		switch {
		case best <= lo:
			flag = boundUpper
		case best >= hi:
			flag = boundLower
		}
		sr.cache[key] = cacheEntry{score: best, flag: flag}
	}
	return best
}

// orderMoves lists the empty cells centre first, then the corners in
// top-left, top-right, bottom-left, bottom-right order, then the rest
// shuffled.
func orderMoves(b game.Board, rng *rand.Rand) []int {
	moves := make([]int, 0, len(b.Cells))
	center := b.Center()
	corners := b.Corners()
	if b.Cells[center] == game.MarkEmpty {
		moves = append(moves, center)
	}
	for _, c := range corners {
		if c != center && b.Cells[c] == game.MarkEmpty {
			moves = append(moves, c)
		}
	}

	head := len(moves)
	for i, cell := range b.Cells {
		if cell != game.MarkEmpty || i == center {
			continue
		}
		if i == corners[0] || i == corners[1] || i == corners[2] || i == corners[3] {
			continue
		}
		moves = append(moves, i)
	}
	rest := moves[head:]
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	return moves
}
