package dialogsdk

import (
	"context"
	"sync"
	"time"
)

// ──────────────────────────────────────────────
// Dialogue State — per-user, per-intent working memory
// ──────────────────────────────────────────────

// DialogueStatus is the lifecycle phase of a dialogue.
type DialogueStatus string

const (
	StatusCollecting           DialogueStatus = "collecting"
	StatusAwaitingConfirmation DialogueStatus = "awaiting_confirmation"
	StatusCompleted            DialogueStatus = "completed"
	StatusAbandoned            DialogueStatus = "abandoned"
	StatusSuspended            DialogueStatus = "suspended"
)

// DialogueState tracks slot-filling progress for one user within one intent.
//
// Invariant: PendingSlot, when set, names a slot of the active intent whose
// DependsOn predicate currently holds and which is not yet filled.
type DialogueState struct {
	UserKey     string            `json:"user_key"`
	Intent      string            `json:"intent"`
	Filled      map[string]string `json:"filled"`
	PendingSlot string            `json:"pending_slot,omitempty"`
	Status      DialogueStatus    `json:"status"`
	// Confidence of the classification that opened (or last re-affirmed)
	// this dialogue. Used to gate intent switches.
	Confidence float64 `json:"confidence"`
	// FailStreak counts consecutive validation failures on the pending slot.
	FailStreak int       `json:"fail_streak"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (s *DialogueState) Clone() *DialogueState {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Filled = make(map[string]string, len(s.Filled))
	for k, v := range s.Filled {
		dup.Filled[k] = v
	}
	return &dup
}

// FilledSnapshot is the immutable view handed to intent handlers.
type FilledSnapshot struct {
	UserKey string
	Intent  string
	Values  map[string]string
}

// Snapshot builds a FilledSnapshot with a copied value map.
func (s *DialogueState) Snapshot() FilledSnapshot {
	values := make(map[string]string, len(s.Filled))
	for k, v := range s.Filled {
		values[k] = v
	}
	return FilledSnapshot{UserKey: s.UserKey, Intent: s.Intent, Values: values}
}

// StateStore is the pluggable backend for dialogue states. Each user has at
// most one active state plus any number of suspended states shelved by
// intent (the suspend-and-resume intent-switch policy).
type StateStore interface {
	// Load returns the user's active state, or nil.
	Load(ctx context.Context, userKey string) (*DialogueState, error)
	// Save stores the active state for state.UserKey.
	Save(ctx context.Context, state *DialogueState) error
	// Delete removes the user's active state.
	Delete(ctx context.Context, userKey string) error
	// Suspend shelves the state under (userKey, intent) and clears the
	// active slot.
	Suspend(ctx context.Context, state *DialogueState) error
	// Resume pops a shelved state for the intent, or returns nil.
	Resume(ctx context.Context, userKey, intent string) (*DialogueState, error)
	// ActiveUsers lists users with an active state. Used by idle sweeps.
	ActiveUsers(ctx context.Context) ([]string, error)
}

// InMemoryStateStore is a thread-safe in-memory StateStore.
type InMemoryStateStore struct {
	mu     sync.RWMutex
	active map[string]*DialogueState
	shelf  map[string]map[string]*DialogueState // userKey -> intent -> state
}

// NewInMemoryStateStore creates a new in-memory state store.
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{
		active: make(map[string]*DialogueState),
		shelf:  make(map[string]map[string]*DialogueState),
	}
}

func (s *InMemoryStateStore) Load(ctx context.Context, userKey string) (*DialogueState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[userKey].Clone(), nil
}

func (s *InMemoryStateStore) Save(ctx context.Context, state *DialogueState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[state.UserKey] = state.Clone()
	return nil
}

func (s *InMemoryStateStore) Delete(ctx context.Context, userKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, userKey)
	return nil
}

func (s *InMemoryStateStore) Suspend(ctx context.Context, state *DialogueState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shelf[state.UserKey] == nil {
		s.shelf[state.UserKey] = make(map[string]*DialogueState)
	}
	shelved := state.Clone()
	shelved.Status = StatusSuspended
	s.shelf[state.UserKey][state.Intent] = shelved
	delete(s.active, state.UserKey)
	return nil
}

func (s *InMemoryStateStore) Resume(ctx context.Context, userKey, intent string) (*DialogueState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shelved := s.shelf[userKey][intent]
	if shelved == nil {
		return nil, nil
	}
	delete(s.shelf[userKey], intent)
	return shelved.Clone(), nil
}

func (s *InMemoryStateStore) ActiveUsers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.active))
	for u := range s.active {
		users = append(users, u)
	}
	return users, nil
}

// Compile-time interface check.
var _ StateStore = (*InMemoryStateStore)(nil)
