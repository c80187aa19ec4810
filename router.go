package dialogsdk

import (
	"context"
	"fmt"
	"sync"
)

// ──────────────────────────────────────────────
// Router — intent handler registry and dispatch
// ──────────────────────────────────────────────

// HandlerOutcome is what an intent handler returns on success.
type HandlerOutcome struct {
	// Message is the user-facing completion message.
	Message string
}

// Handler runs the business logic for a completed dialogue. It receives an
// immutable snapshot of the filled slots; durable side effects are its own
// concern and are never retracted by the dialogue core.
type Handler interface {
	Handle(ctx context.Context, snapshot FilledSnapshot) (HandlerOutcome, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, snapshot FilledSnapshot) (HandlerOutcome, error)

func (f HandlerFunc) Handle(ctx context.Context, snapshot FilledSnapshot) (HandlerOutcome, error) {
	return f(ctx, snapshot)
}

// RouterConfig tunes routing policy.
type RouterConfig struct {
	// MinConfidence is the floor below which a classification routes to the
	// general intent instead of a specialized one. Default 0.7.
	MinConfidence float64
}

// DefaultRouterConfig returns sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{MinConfidence: 0.7}
}

// Router selects and invokes the handler registered for an intent.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	tracker  *Tracker
	config   RouterConfig
}

// NewRouter creates a router bound to the tracker that owns dialogue states.
func NewRouter(tracker *Tracker, config ...RouterConfig) *Router {
	cfg := DefaultRouterConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &Router{
		handlers: make(map[string]Handler),
		tracker:  tracker,
		config:   cfg,
	}
}

// Register binds a handler to an intent name.
func (r *Router) Register(intent string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[intent] = h
	componentLogger("router").Debug().Str("intent", intent).Msg("handler registered")
}

// RegisterFunc is Register for plain functions.
func (r *Router) RegisterFunc(intent string, fn HandlerFunc) {
	r.Register(intent, fn)
}

// Handler returns the handler for intent, or nil.
func (r *Router) Handler(intent string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[intent]
}

// ResolveIntent applies the confidence policy: classifications under the
// floor route to the general intent.
func (r *Router) ResolveIntent(result ClassificationResult) string {
	if result.Confidence < r.config.MinConfidence {
		return IntentGeneral
	}
	return result.Intent
}

// Dispatch invokes the handler for the state's intent with an immutable
// filled-slot snapshot. On success the dialogue transitions to completed; on
// handler failure it stays at awaiting_confirmation and the error wraps
// ErrHandlerFailure so the conversation can offer a retry.
func (r *Router) Dispatch(ctx context.Context, state *DialogueState) (HandlerOutcome, error) {
	if state.Status != StatusAwaitingConfirmation {
		return HandlerOutcome{}, fmt.Errorf("%w: dialogue for %s is still %s", ErrHandlerFailure, state.Intent, state.Status)
	}
	h := r.Handler(state.Intent)
	if h == nil {
		return HandlerOutcome{}, fmt.Errorf("%w: no handler for intent %s", ErrHandlerFailure, state.Intent)
	}

	outcome, err := h.Handle(ctx, state.Snapshot())
	if err != nil {
		componentLogger("router").Warn().
			Str("user", state.UserKey).Str("intent", state.Intent).Err(err).
			Msg("handler failed, dialogue stays awaiting confirmation")
		return outcome, fmt.Errorf("%w: %v", ErrHandlerFailure, err)
	}

	if err := r.tracker.Complete(ctx, state); err != nil {
		return outcome, err
	}
	return outcome, nil
}
