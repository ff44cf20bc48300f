package store

import (
	"errors"
	"hash/fnv"
	"sync"

	"tttengine/internal/session"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
)

// SessionStore provides thread-safe storage for sessions
// Uses sharding to reduce lock contention for scalability
type SessionStore struct {
	shards []*sessionShard
}

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewSessionStore creates a new session store with the specified number of shards
func NewSessionStore(numShards int) *SessionStore {
	if numShards < 1 {
		numShards = 64
	}

	shards := make([]*sessionShard, numShards)
	for i := range shards {
		shards[i] = &sessionShard{
			sessions: make(map[string]*session.Session),
		}
	}
	return &SessionStore{shards: shards}
}

func (s *SessionStore) getShard(id string) *sessionShard {
	return s.shards[shardIndex(id, len(s.shards))]
}

// Create stores a new session
func (s *SessionStore) Create(sess *session.Session) error {
	shard := s.getShard(sess.ID())
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, exists := shard.sessions[sess.ID()]; exists {
		return ErrSessionAlreadyExists
	}
	shard.sessions[sess.ID()] = sess
	return nil
}

// Get retrieves a session by ID
func (s *SessionStore) Get(id string) (*session.Session, error) {
	shard := s.getShard(id)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	sess, exists := shard.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes a session and cancels its pending computer move
func (s *SessionStore) Delete(id string) error {
	shard := s.getShard(id)
	shard.mu.Lock()
	sess, exists := shard.sessions[id]
	if exists {
		delete(shard.sessions, id)
	}
	shard.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	sess.Close()
	return nil
}

// Count returns the total number of sessions
func (s *SessionStore) Count() int {
	count := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		count += len(shard.sessions)
		shard.mu.RUnlock()
	}
	return count
}

// CloseAll cancels every pending computer move. Used on shutdown.
func (s *SessionStore) CloseAll() {
	for _, shard := range s.shards {
		shard.mu.RLock()
		for _, sess := range shard.sessions {
			sess.Close()
		}
		shard.mu.RUnlock()
	}
}

func shardIndex(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
