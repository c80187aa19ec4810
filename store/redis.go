package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dialogsdk "github.com/samparkhq/dialog-sdk-go"
)

// ──────────────────────────────────────────────
// Redis backends — durable history and state across restarts
// ──────────────────────────────────────────────

// RedisConfig configures the Redis-backed stores.
type RedisConfig struct {
	Prefix string        // key prefix, default "dialog"
	TTL    time.Duration // expiry for state and history keys, 0 = no expiry
	// MaxTurns trims each user's history list to the newest N turns.
	// 0 keeps everything.
	MaxTurns int
}

func (c *RedisConfig) applyDefaults() {
	if c.Prefix == "" {
		c.Prefix = "dialog"
	}
}

// RedisHistoryStore implements dialogsdk.HistoryStore on a Redis list per
// user. Turns are JSON-encoded; a shared INCR counter supplies the sequence
// numbers that break timestamp ties.
type RedisHistoryStore struct {
	client redis.UniversalClient
	cfg    RedisConfig
}

// NewRedisHistoryStore creates a history store backed by Redis.
func NewRedisHistoryStore(client redis.UniversalClient, config ...RedisConfig) *RedisHistoryStore {
	cfg := RedisConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg.applyDefaults()
	return &RedisHistoryStore{client: client, cfg: cfg}
}

func (s *RedisHistoryStore) histKey(userKey string) string {
	return fmt.Sprintf("%s:hist:%s", s.cfg.Prefix, userKey)
}

func (s *RedisHistoryStore) seqKey() string {
	return s.cfg.Prefix + ":hist:seq"
}

func (s *RedisHistoryStore) Append(ctx context.Context, turn dialogsdk.ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return err
	}
	turn.Seq = seq

	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	key := s.histKey(turn.UserKey)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return err
	}
	if s.cfg.MaxTurns > 0 {
		if err := s.client.LTrim(ctx, key, int64(-s.cfg.MaxTurns), -1).Err(); err != nil {
			return err
		}
	}
	if s.cfg.TTL > 0 {
		s.client.Expire(ctx, key, s.cfg.TTL)
	}
	return nil
}

func (s *RedisHistoryStore) Recent(ctx context.Context, userKey string, limit int) ([]dialogsdk.ConversationTurn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	items, err := s.client.LRange(ctx, s.histKey(userKey), start, -1).Result()
	if err != nil {
		return nil, err
	}
	turns := make([]dialogsdk.ConversationTurn, 0, len(items))
	for _, item := range items {
		var turn dialogsdk.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("corrupt turn for %s: %w", userKey, err)
		}
		turns = append(turns, turn)
	}
	// List order is insertion order; the store contract is (timestamp, seq)
	// ascending, which diverges when callers supply their own timestamps.
	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].Timestamp.Equal(turns[j].Timestamp) {
			return turns[i].Seq < turns[j].Seq
		}
		return turns[i].Timestamp.Before(turns[j].Timestamp)
	})
	return turns, nil
}

func (s *RedisHistoryStore) Purge(ctx context.Context, userKey string) (int, error) {
	key := s.histKey(userKey)
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// RedisStateStore implements dialogsdk.StateStore. The active state lives at
// one key per user; suspended states are shelved under per-intent keys.
type RedisStateStore struct {
	client redis.UniversalClient
	cfg    RedisConfig
}

// NewRedisStateStore creates a state store backed by Redis.
func NewRedisStateStore(client redis.UniversalClient, config ...RedisConfig) *RedisStateStore {
	cfg := RedisConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg.applyDefaults()
	return &RedisStateStore{client: client, cfg: cfg}
}

func (s *RedisStateStore) activeKey(userKey string) string {
	return fmt.Sprintf("%s:state:%s", s.cfg.Prefix, userKey)
}

func (s *RedisStateStore) shelfKey(userKey, intent string) string {
	return fmt.Sprintf("%s:shelf:%s:%s", s.cfg.Prefix, userKey, intent)
}

func (s *RedisStateStore) Load(ctx context.Context, userKey string) (*dialogsdk.DialogueState, error) {
	raw, err := s.client.Get(ctx, s.activeKey(userKey)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state dialogsdk.DialogueState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("corrupt state for %s: %w", userKey, err)
	}
	return &state, nil
}

func (s *RedisStateStore) Save(ctx context.Context, state *dialogsdk.DialogueState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.activeKey(state.UserKey), data, s.cfg.TTL).Err()
}

func (s *RedisStateStore) Delete(ctx context.Context, userKey string) error {
	return s.client.Del(ctx, s.activeKey(userKey)).Err()
}

func (s *RedisStateStore) Suspend(ctx context.Context, state *dialogsdk.DialogueState) error {
	shelved := state.Clone()
	shelved.Status = dialogsdk.StatusSuspended
	data, err := json.Marshal(shelved)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.shelfKey(state.UserKey, state.Intent), data, s.cfg.TTL).Err(); err != nil {
		return err
	}
	return s.Delete(ctx, state.UserKey)
}

func (s *RedisStateStore) Resume(ctx context.Context, userKey, intent string) (*dialogsdk.DialogueState, error) {
	key := s.shelfKey(userKey, intent)
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state dialogsdk.DialogueState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("corrupt shelved state for %s: %w", userKey, err)
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RedisStateStore) ActiveUsers(ctx context.Context) ([]string, error) {
	pattern := s.cfg.Prefix + ":state:*"
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}
	prefixLen := len(s.cfg.Prefix + ":state:")
	users := make([]string, 0, len(keys))
	for _, k := range keys {
		if len(k) > prefixLen {
			users = append(users, k[prefixLen:])
		}
	}
	return users, nil
}

// Compile-time interface checks.
var (
	_ dialogsdk.HistoryStore = (*RedisHistoryStore)(nil)
	_ dialogsdk.StateStore   = (*RedisStateStore)(nil)
)
