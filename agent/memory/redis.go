package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

const defaultRedisKeyPrefix = "wayfarer:"

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr      string        `envconfig:"ADDR" split_words:"true" required:"true"`
	Password  string        `envconfig:"PASSWORD" split_words:"true"`
	DB        int           `envconfig:"DB" split_words:"true" default:"0"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" split_words:"true"`
	TTL       time.Duration `envconfig:"TTL" split_words:"true" default:"168h"`
}

// RedisStore keeps short-term history in per-session lists and long-term
// cases in per-user hashes. The list trim keeps AppendTurn's FIFO bound
// atomic via a transactional pipeline.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	maxTurns  int
	ttl       time.Duration
}

func NewRedisStore(cfg RedisConfig, maxTurns int) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("%w: redis addr is required", contract.ErrValidation)
	}

	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisStore{
		client:    client,
		keyPrefix: prefix,
		maxTurns:  maxTurns,
		ttl:       cfg.TTL,
	}, nil
}

func (s *RedisStore) historyKey(userID, sessionID string) string {
	return s.keyPrefix + "history:" + userID + "/" + sessionID
}

func (s *RedisStore) casesKey(userID string) string {
	return s.keyPrefix + "cases:" + userID
}

func (s *RedisStore) AppendTurn(ctx context.Context, userID, sessionID string, turn contract.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := s.historyKey(userID, sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: append turn: %v", contract.ErrMemoryStore, err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, userID, sessionID string) ([]contract.Turn, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(userID, sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %v", contract.ErrMemoryStore, err)
	}

	turns := make([]contract.Turn, 0, len(raw))
	for _, item := range raw {
		var turn contract.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisStore) ClearHistory(ctx context.Context, userID, sessionID string) error {
	if err := s.client.Del(ctx, s.historyKey(userID, sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: clear history: %v", contract.ErrMemoryStore, err)
	}
	return nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return s.ClearHistory(ctx, userID, sessionID)
}

func (s *RedisStore) AddCase(ctx context.Context, userID string, c contract.Case) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}

	key := s.casesKey(userID)
	if err := s.client.HSet(ctx, key, c.ID, payload).Err(); err != nil {
		return fmt.Errorf("%w: add case: %v", contract.ErrMemoryStore, err)
	}
	return s.evictOldest(ctx, userID)
}

func (s *RedisStore) evictOldest(ctx context.Context, userID string) error {
	cases, err := s.loadCases(ctx, userID)
	if err != nil {
		return err
	}
	if len(cases) <= MaxCasesPerUser {
		return nil
	}

	oldest := cases[0]
	for _, c := range cases[1:] {
		if c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	if err := s.client.HDel(ctx, s.casesKey(userID), oldest.ID).Err(); err != nil {
		return fmt.Errorf("%w: evict case: %v", contract.ErrMemoryStore, err)
	}
	return nil
}

func (s *RedisStore) loadCases(ctx context.Context, userID string) ([]contract.Case, error) {
	raw, err := s.client.HGetAll(ctx, s.casesKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: load cases: %v", contract.ErrMemoryStore, err)
	}

	cases := make([]contract.Case, 0, len(raw))
	for _, item := range raw {
		var c contract.Case
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, fmt.Errorf("unmarshal case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func (s *RedisStore) QueryCases(ctx context.Context, userID, signature string, k int) ([]contract.Case, error) {
	cases, err := s.loadCases(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rankCases(cases, signature, k), nil
}

func (s *RedisStore) DeleteCase(ctx context.Context, userID, caseID string) error {
	removed, err := s.client.HDel(ctx, s.casesKey(userID), caseID).Result()
	if err != nil {
		return fmt.Errorf("%w: delete case: %v", contract.ErrMemoryStore, err)
	}
	if removed == 0 {
		return ErrCaseNotFound
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
