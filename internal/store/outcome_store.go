package store

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"tttengine/internal/game"
	"tttengine/internal/session"
)

// Tally holds finished-game counts for one bucket
type Tally struct {
	Key   string
	XWins int32
	OWins int32
	Draws int32
}

// Total returns the number of games counted
func (t *Tally) Total() int32 {
	return t.XWins + t.OWins + t.Draws
}

// OutcomeStore aggregates finished games across all sessions, bucketed by
// board size, mode and (against the computer) difficulty.
// Uses sharding similar to SessionStore for scalability
type OutcomeStore struct {
	shards []*outcomeShard
}

type outcomeShard struct {
	mu      sync.RWMutex
	tallies map[string]*Tally
}

// NewOutcomeStore creates a new outcome store with the specified number of shards
func NewOutcomeStore(numShards int) *OutcomeStore {
	if numShards < 1 {
		numShards = 64
	}

	shards := make([]*outcomeShard, numShards)
	for i := range shards {
		shards[i] = &outcomeShard{
			tallies: make(map[string]*Tally),
		}
	}
	return &OutcomeStore{shards: shards}
}

// OutcomeKey names the bucket an outcome is counted in, e.g. "3x3/vs-computer/hard".
func OutcomeKey(o session.Outcome) string {
	key := fmt.Sprintf("%dx%d/%s", o.BoardSize, o.BoardSize, o.Mode)
	if o.Mode == session.ModeVsComputer {
		key += "/" + o.Difficulty.String()
	}
	return key
}

// getOrCreate returns existing tally or creates a new one
func (s *OutcomeStore) getOrCreate(key string) *Tally {
	shard := s.shards[shardIndex(key, len(s.shards))]

	shard.mu.RLock()
	t, exists := shard.tallies[key]
	shard.mu.RUnlock()
	if exists {
		return t
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()

	// Double-check after acquiring write lock
	if t, exists = shard.tallies[key]; exists {
		return t
	}
	t = &Tally{Key: key}
	shard.tallies[key] = t
	return t
}

// Record counts a finished game. Unfinished statuses are ignored.
func (s *OutcomeStore) Record(o session.Outcome) {
	if !o.Status.IsFinished() {
		return
	}
	var field *int32
	t := s.getOrCreate(OutcomeKey(o))
	switch o.Status {
	case game.StatusXWon:
		field = &t.XWins
	case game.StatusOWon:
		field = &t.OWins
	case game.StatusDraw:
		field = &t.Draws
	default:
		return
	}
	atomic.AddInt32(field, 1)
}

// Get returns the tally for a bucket. Unknown buckets read as zero counts
// and are not created.
func (s *OutcomeStore) Get(key string) Tally {
	shard := s.shards[shardIndex(key, len(s.shards))]
	shard.mu.RLock()
	t, exists := shard.tallies[key]
	shard.mu.RUnlock()
	if !exists {
		return Tally{Key: key}
	}
	return load(t)
}

// All returns every non-empty tally, sorted by key
func (s *OutcomeStore) All() []Tally {
	var out []Tally
	for _, shard := range s.shards {
		shard.mu.RLock()
		for _, t := range shard.tallies {
			if snap := load(t); snap.Total() > 0 {
				out = append(out, snap)
			}
		}
		shard.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func load(t *Tally) Tally {
	return Tally{
		Key:   t.Key,
		XWins: atomic.LoadInt32(&t.XWins),
		OWins: atomic.LoadInt32(&t.OWins),
		Draws: atomic.LoadInt32(&t.Draws),
	}
}
