// Package sessionmem keeps short conversational memory for tutor sessions.
package sessionmem

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultMaxTurns = 10
	DefaultTTL      = 24 * time.Hour
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Store interface {
	// Recent returns up to the last max turns, oldest first.
	Recent(ctx context.Context, sessionID string) ([]Turn, error)
	Append(ctx context.Context, sessionID string, turns ...Turn) error
}

func key(sessionID string) string { return "tutor:session:" + sessionID }

type RedisStore struct {
	rdb      goredis.UniversalClient
	maxTurns int
	ttl      time.Duration
}

func NewRedisStore(rdb goredis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb, maxTurns: DefaultMaxTurns, ttl: DefaultTTL}
}

func (s *RedisStore) Recent(ctx context.Context, sessionID string) ([]Turn, error) {
	raw, err := s.rdb.LRange(ctx, key(sessionID), int64(-s.maxTurns), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session memory: %w", err)
	}
	out := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if json.Unmarshal([]byte(r), &t) == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		vals = append(vals, string(b))
	}
	k := key(sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, k, vals...)
	pipe.LTrim(ctx, k, int64(-s.maxTurns), -1)
	pipe.Expire(ctx, k, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append session memory: %w", err)
	}
	return nil
}

type entry struct {
	turns   []Turn
	expires time.Time
}

// MemoryStore is the single-instance fallback with the same trim and expiry rules.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*entry{},
		maxTurns: DefaultMaxTurns,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
}

func (s *MemoryStore) Recent(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if s.now().After(e.expires) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	return append([]Turn(nil), e.turns...), nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok || s.now().After(e.expires) {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	e.turns = append(e.turns, turns...)
	if len(e.turns) > s.maxTurns {
		e.turns = append([]Turn(nil), e.turns[len(e.turns)-s.maxTurns:]...)
	}
	e.expires = s.now().Add(s.ttl)
	return nil
}
