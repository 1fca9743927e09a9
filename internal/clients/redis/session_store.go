package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Travinkel/cortex-engine/internal/logger"
)

// SessionState is the rolling per-learner session context the diagnosis
// decision list reads: how deep into the session the learner is and how the
// last few responses went.
type SessionState struct {
	Position      int
	RecentCorrect []bool // most recent last
}

// SessionStore tracks live session state. Sessions are ephemeral; expiry is
// handled by TTL, not by explicit teardown.
type SessionStore interface {
	RecordOutcome(ctx context.Context, learnerID uuid.UUID, correct bool) (SessionState, error)
	Get(ctx context.Context, learnerID uuid.UUID) (SessionState, error)
	Reset(ctx context.Context, learnerID uuid.UUID) error
}

const (
	sessionTTL   = 4 * time.Hour
	recentWindow = 10
)

type sessionStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewSessionStore connects to Redis at REDIS_ADDR.
func NewSessionStore(log *logger.Logger) (SessionStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &sessionStore{
		log: log.With("service", "RedisSessionStore"),
		rdb: rdb,
	}, nil
}

// Client exposes the underlying connection for infrastructure health checks.
func (s *sessionStore) Client() goredis.UniversalClient {
	return s.rdb
}

func positionKey(learnerID uuid.UUID) string { return "session:pos:" + learnerID.String() }
func recentKey(learnerID uuid.UUID) string   { return "session:recent:" + learnerID.String() }

func (s *sessionStore) RecordOutcome(ctx context.Context, learnerID uuid.UUID, correct bool) (SessionState, error) {
	if learnerID == uuid.Nil {
		return SessionState{}, fmt.Errorf("learner id required")
	}
	val := "0"
	if correct {
		val = "1"
	}
	pipe := s.rdb.TxPipeline()
	pos := pipe.Incr(ctx, positionKey(learnerID))
	pipe.RPush(ctx, recentKey(learnerID), val)
	pipe.LTrim(ctx, recentKey(learnerID), -recentWindow, -1)
	pipe.Expire(ctx, positionKey(learnerID), sessionTTL)
	pipe.Expire(ctx, recentKey(learnerID), sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return SessionState{}, fmt.Errorf("record session outcome: %w", err)
	}
	recent, err := s.recent(ctx, learnerID)
	if err != nil {
		return SessionState{}, err
	}
	return SessionState{Position: int(pos.Val()), RecentCorrect: recent}, nil
}

func (s *sessionStore) Get(ctx context.Context, learnerID uuid.UUID) (SessionState, error) {
	if learnerID == uuid.Nil {
		return SessionState{}, fmt.Errorf("learner id required")
	}
	pos, err := s.rdb.Get(ctx, positionKey(learnerID)).Int()
	if err != nil && err != goredis.Nil {
		return SessionState{}, fmt.Errorf("get session position: %w", err)
	}
	recent, err := s.recent(ctx, learnerID)
	if err != nil {
		return SessionState{}, err
	}
	return SessionState{Position: pos, RecentCorrect: recent}, nil
}

func (s *sessionStore) Reset(ctx context.Context, learnerID uuid.UUID) error {
	if learnerID == uuid.Nil {
		return nil
	}
	return s.rdb.Del(ctx, positionKey(learnerID), recentKey(learnerID)).Err()
}

func (s *sessionStore) recent(ctx context.Context, learnerID uuid.UUID) ([]bool, error) {
	raw, err := s.rdb.LRange(ctx, recentKey(learnerID), 0, -1).Result()
	if err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("get session window: %w", err)
	}
	out := make([]bool, 0, len(raw))
	for _, v := range raw {
		out = append(out, v == "1")
	}
	return out, nil
}

// memorySessionStore is the single-process fallback when no Redis is
// configured (local development, tests).
type memorySessionStore struct {
	mu    sync.Mutex
	state map[uuid.UUID]*SessionState
}

// NewMemorySessionStore returns an in-process SessionStore.
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{state: make(map[uuid.UUID]*SessionState)}
}

func (m *memorySessionStore) RecordOutcome(_ context.Context, learnerID uuid.UUID, correct bool) (SessionState, error) {
	if learnerID == uuid.Nil {
		return SessionState{}, fmt.Errorf("learner id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.state[learnerID]
	if !ok {
		st = &SessionState{}
		m.state[learnerID] = st
	}
	st.Position++
	st.RecentCorrect = append(st.RecentCorrect, correct)
	if len(st.RecentCorrect) > recentWindow {
		st.RecentCorrect = st.RecentCorrect[len(st.RecentCorrect)-recentWindow:]
	}
	return m.copyLocked(st), nil
}

func (m *memorySessionStore) Get(_ context.Context, learnerID uuid.UUID) (SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.state[learnerID]
	if !ok {
		return SessionState{}, nil
	}
	return m.copyLocked(st), nil
}

func (m *memorySessionStore) Reset(_ context.Context, learnerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, learnerID)
	return nil
}

func (m *memorySessionStore) copyLocked(st *SessionState) SessionState {
	recent := make([]bool, len(st.RecentCorrect))
	copy(recent, st.RecentCorrect)
	return SessionState{Position: st.Position, RecentCorrect: recent}
}
