package dialogsdk

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// ──────────────────────────────────────────────
// Conversation History Store — append-only turn log per user
// ──────────────────────────────────────────────

// Direction marks which side of the conversation produced a turn.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ConversationTurn is one message exchanged with a user. Immutable once
// appended; removed only by Purge.
type ConversationTurn struct {
	ID        string    `json:"id"`
	UserKey   string    `json:"user_key"`
	Direction Direction `json:"direction"`
	Text      string    `json:"text"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// Seq breaks timestamp ties when the clock has coarse resolution.
	Seq int64 `json:"seq"`
}

// HistoryStore is the pluggable backend for the conversation log.
//
// Append is the only mutation besides Purge. Recent returns turns sorted by
// (timestamp, seq) ascending; the seq tie-break keeps ordering deterministic
// when two turns land on the same clock tick.
type HistoryStore interface {
	Append(ctx context.Context, turn ConversationTurn) error
	Recent(ctx context.Context, userKey string, limit int) ([]ConversationTurn, error)
	Purge(ctx context.Context, userKey string) (int, error)
}

// InMemoryHistoryStore is a thread-safe in-memory HistoryStore for
// development and tests. Data is lost on restart.
type InMemoryHistoryStore struct {
	mu    sync.RWMutex
	turns map[string][]ConversationTurn
	seq   *atomic.Int64
}

// NewInMemoryHistoryStore creates a new in-memory history store.
func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{
		turns: make(map[string][]ConversationTurn),
		seq:   atomic.NewInt64(0),
	}
}

func (s *InMemoryHistoryStore) Append(ctx context.Context, turn ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	turn.Seq = s.seq.Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.UserKey] = append(s.turns[turn.UserKey], turn)
	return nil
}

func (s *InMemoryHistoryStore) Recent(ctx context.Context, userKey string, limit int) ([]ConversationTurn, error) {
	s.mu.RLock()
	stored := s.turns[userKey]
	all := make([]ConversationTurn, len(stored))
	copy(all, stored)
	s.mu.RUnlock()

	sortTurns(all)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *InMemoryHistoryStore) Purge(ctx context.Context, userKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.turns[userKey])
	delete(s.turns, userKey)
	return n, nil
}

// sortTurns orders turns by timestamp ascending, seq breaking ties.
func sortTurns(turns []ConversationTurn) {
	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].Timestamp.Equal(turns[j].Timestamp) {
			return turns[i].Seq < turns[j].Seq
		}
		return turns[i].Timestamp.Before(turns[j].Timestamp)
	})
}

// Compile-time interface check.
var _ HistoryStore = (*InMemoryHistoryStore)(nil)
