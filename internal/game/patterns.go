package game

// WinPattern is a set of board indices that must all hold the same mark.
type WinPattern []int

// patternCache holds the patterns of every supported size. Built once and
// never written afterwards.
var patternCache = func() map[int][]WinPattern {
	m := make(map[int][]WinPattern, MaxBoardSize-MinBoardSize+1)
	for size := MinBoardSize; size <= MaxBoardSize; size++ {
		m[size] = GeneratePatterns(size)
	}
	return m
}()

// GeneratePatterns returns the 2*size+2 winning lines of a size*size board
// in a fixed order: rows, columns, main diagonal, anti-diagonal.
func GeneratePatterns(size int) []WinPattern {
	if size <= 0 {
		return nil
	}
	patterns := make([]WinPattern, 0, 2*size+2)

	for r := 0; r < size; r++ {
		row := make(WinPattern, size)
		for c := 0; c < size; c++ {
			row[c] = r*size + c
		}
		patterns = append(patterns, row)
	}

	for c := 0; c < size; c++ {
		col := make(WinPattern, size)
		for r := 0; r < size; r++ {
			col[r] = r*size + c
		}
		patterns = append(patterns, col)
	}

	diag := make(WinPattern, size)
	anti := make(WinPattern, size)
	for i := 0; i < size; i++ {
		diag[i] = i*size + i
		anti[i] = i*size + (size - 1 - i)
	}
	return append(patterns, diag, anti)
}

// Patterns returns the shared patterns for size. The result must not be
// modified.
func Patterns(size int) []WinPattern {
	if p, ok := patternCache[size]; ok {
		return p
	}
	return GeneratePatterns(size)
}

// Winner returns the mark occupying every cell of the first complete
// pattern, in pattern order, or MarkEmpty if there is none.
func Winner(b Board, patterns []WinPattern) Mark {
	for _, p := range patterns {
		if len(p) == 0 || !b.InBounds(p[0]) {
			continue
		}
		first := b.Cells[p[0]]
		if first == MarkEmpty {
			continue
		}
		won := true
		for _, idx := range p[1:] {
			if !b.InBounds(idx) || b.Cells[idx] != first {
				won = false
				break
			}
		}
		if won {
			return first
		}
	}
	return MarkEmpty
}

// Score is the static heuristic used when a search stops short of a
// terminal position. Every line held only by me adds count², every line
// held only by the opponent subtracts count². Mixed and empty lines are
// worth nothing.
func Score(b Board, patterns []WinPattern, me Mark) int {
	opp := me.Opponent()
	score := 0
	for _, p := range patterns {
		mine, theirs := 0, 0
		for _, idx := range p {
			switch b.Cells[idx] {
			case me:
				mine++
			case opp:
				theirs++
			}
		}
		switch {
		case mine > 0 && theirs == 0:
			score += mine * mine
		case theirs > 0 && mine == 0:
			score -= theirs * theirs
		}
	}
	return score
}
