package dialogsdk

import (
	"context"
	"fmt"
	"time"
)

// ──────────────────────────────────────────────
// Dialogue State Tracker — slot fills, corrections, lifecycle
// ──────────────────────────────────────────────

// IntentSwitchPolicy decides what happens when a user opens a new intent
// while another dialogue is still incomplete.
type IntentSwitchPolicy int

const (
	// SwitchSuspend shelves the old dialogue and resumes it if the user's
	// later messages re-match that intent with higher confidence. Default.
	SwitchSuspend IntentSwitchPolicy = iota
	// SwitchAbandon discards the old dialogue.
	SwitchAbandon
	// SwitchReject refuses the new intent until the old one completes.
	SwitchReject
)

// TrackerConfig tunes tracker behavior.
type TrackerConfig struct {
	Policy IntentSwitchPolicy
	// MaxFailStreak abandons a dialogue after this many consecutive
	// validation failures on the same slot. 0 disables the guard.
	MaxFailStreak int
	// AbandonAfter marks a dialogue abandoned when idle longer than this.
	// Only enforced by SweepIdle. 0 disables.
	AbandonAfter time.Duration
}

// DefaultTrackerConfig returns sensible defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Policy:        SwitchSuspend,
		MaxFailStreak: 5,
		AbandonAfter:  30 * time.Minute,
	}
}

// Tracker owns DialogueState for the duration of an active dialogue.
type Tracker struct {
	registry *SchemaRegistry
	states   StateStore
	config   TrackerConfig
	now      func() time.Time
}

// NewTracker creates a tracker over the given registry and state store.
func NewTracker(registry *SchemaRegistry, states StateStore, config ...TrackerConfig) *Tracker {
	cfg := DefaultTrackerConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &Tracker{
		registry: registry,
		states:   states,
		config:   cfg,
		now:      time.Now,
	}
}

// Current returns the user's active dialogue state, or nil.
func (t *Tracker) Current(ctx context.Context, userKey string) (*DialogueState, error) {
	return t.states.Load(ctx, userKey)
}

// GetOrCreate loads the active state for (userKey, intent), applying the
// intent-switch policy when a different dialogue is in progress. A shelved
// state for the requested intent is resumed in preference to starting fresh.
func (t *Tracker) GetOrCreate(ctx context.Context, userKey, intent string, confidence float64) (*DialogueState, error) {
	def := t.registry.Get(intent)
	if def == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntent, intent)
	}

	cur, err := t.states.Load(ctx, userKey)
	if err != nil {
		return nil, err
	}
	if cur != nil && cur.Intent == intent {
		return cur, nil
	}
	if cur != nil {
		switch t.config.Policy {
		case SwitchReject:
			return nil, fmt.Errorf("%w: %s", ErrIntentBusy, cur.Intent)
		case SwitchAbandon:
			if err := t.Abandon(ctx, userKey); err != nil {
				return nil, err
			}
		default: // SwitchSuspend
			if err := t.states.Suspend(ctx, cur); err != nil {
				return nil, err
			}
			componentLogger("tracker").Debug().
				Str("user", userKey).Str("suspended", cur.Intent).Str("intent", intent).
				Msg("dialogue suspended for intent switch")
		}
	}

	// Prefer resuming a previously suspended dialogue for this intent.
	if resumed, err := t.states.Resume(ctx, userKey, intent); err != nil {
		return nil, err
	} else if resumed != nil {
		resumed.Confidence = confidence
		t.recompute(def, resumed)
		if err := t.states.Save(ctx, resumed); err != nil {
			return nil, err
		}
		return resumed, nil
	}

	now := t.now()
	state := &DialogueState{
		UserKey:    userKey,
		Intent:     intent,
		Filled:     make(map[string]string),
		Confidence: confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	t.recompute(def, state)
	if err := t.states.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// ApplyValue validates raw for the slot and, on success, fills it and
// recomputes the pending slot and status. On failure the filled set is
// untouched and PendingSlot is unchanged, so the caller re-prompts the same
// slot. Re-applying an identical value to an already-filled slot is a no-op.
func (t *Tracker) ApplyValue(ctx context.Context, state *DialogueState, slotID, raw string) (*DialogueState, error) {
	def, slot, err := t.lookupSlot(state, slotID)
	if err != nil {
		return state, err
	}

	normalized, err := t.runValidators(ctx, state, slot, raw)
	if err != nil {
		return t.recordFailure(ctx, state, err)
	}
	if existing, ok := state.Filled[slotID]; ok && existing == normalized {
		return state, nil
	}

	next := state.Clone()
	next.Filled[slotID] = normalized
	next.FailStreak = 0
	next.UpdatedAt = t.now()
	t.recompute(def, next)
	if err := t.states.Save(ctx, next); err != nil {
		return state, err
	}
	return next, nil
}

// OverwriteValue replaces an already-filled slot (a user correction), then
// re-walks the dependency graph: any filled slot whose DependsOn outcome
// changed under the new value is cleared, transitively, so no stale answer
// survives the correction. The pending slot is recomputed afterwards.
func (t *Tracker) OverwriteValue(ctx context.Context, state *DialogueState, slotID, raw string) (*DialogueState, error) {
	def, slot, err := t.lookupSlot(state, slotID)
	if err != nil {
		return state, err
	}

	// Validate against the filled set minus the slot being corrected, so an
	// exclusive-choice validator does not trip over the old value.
	scratch := state.Clone()
	delete(scratch.Filled, slotID)
	normalized, err := t.runValidators(ctx, scratch, slot, raw)
	if err != nil {
		return t.recordFailure(ctx, state, err)
	}

	next := state.Clone()
	next.Filled[slotID] = normalized
	invalidateDependents(def, next.Filled)
	next.FailStreak = 0
	next.UpdatedAt = t.now()
	t.recompute(def, next)
	if err := t.states.Save(ctx, next); err != nil {
		return state, err
	}
	return next, nil
}

// Complete marks the dialogue done and releases the active slot. Handler
// effects already dispatched are never retracted.
func (t *Tracker) Complete(ctx context.Context, state *DialogueState) error {
	state.Status = StatusCompleted
	state.UpdatedAt = t.now()
	return t.states.Delete(ctx, state.UserKey)
}

// Abandon terminates the user's active dialogue.
func (t *Tracker) Abandon(ctx context.Context, userKey string) error {
	cur, err := t.states.Load(ctx, userKey)
	if err != nil || cur == nil {
		return err
	}
	cur.Status = StatusAbandoned
	componentLogger("tracker").Debug().Str("user", userKey).Str("intent", cur.Intent).Msg("dialogue abandoned")
	return t.states.Delete(ctx, userKey)
}

// SweepIdle abandons dialogues idle longer than the configured AbandonAfter.
// Returns the number of dialogues abandoned.
func (t *Tracker) SweepIdle(ctx context.Context) (int, error) {
	if t.config.AbandonAfter <= 0 {
		return 0, nil
	}
	users, err := t.states.ActiveUsers(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := t.now().Add(-t.config.AbandonAfter)
	swept := 0
	for _, user := range users {
		cur, err := t.states.Load(ctx, user)
		if err != nil || cur == nil {
			continue
		}
		if cur.UpdatedAt.Before(cutoff) {
			if err := t.Abandon(ctx, user); err == nil {
				swept++
			}
		}
	}
	return swept, nil
}

// ─── internals ───

func (t *Tracker) lookupSlot(state *DialogueState, slotID string) (*IntentDefinition, *SlotDefinition, error) {
	def := t.registry.Get(state.Intent)
	if def == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownIntent, state.Intent)
	}
	slot := def.Slot(slotID)
	if slot == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSlot, slotID)
	}
	return def, slot, nil
}

// runValidators applies the slot's validator plus the cross-cutting
// self-reference guard.
func (t *Tracker) runValidators(ctx context.Context, state *DialogueState, slot *SlotDefinition, raw string) (string, error) {
	normalized := raw
	if slot.Validate != nil {
		var err error
		normalized, err = slot.Validate(ctx, raw, state.Filled)
		if err != nil {
			if verr, ok := err.(*ValidationError); ok && verr.Slot == "" {
				verr.Slot = slot.ID
			}
			return "", err
		}
	}
	if slot.RejectSelf && selfReference(state.UserKey, normalized) {
		return "", newValidationError(slot.ID, ErrSelfReference,
			"that looks like your own number; please send the other person's")
	}
	return normalized, nil
}

// selfReference compares a normalized value with the user's own key,
// tolerating formatting and country-code differences on phone-shaped keys.
func selfReference(userKey, value string) bool {
	if value == userKey {
		return true
	}
	uk, v := digitsOf(userKey), digitsOf(value)
	if uk == "" || v == "" {
		return false
	}
	if uk == v {
		return true
	}
	// Country-code prefix on either side.
	if len(uk) > len(v) && rightAligned(uk, v) {
		return true
	}
	if len(v) > len(uk) && rightAligned(v, uk) {
		return true
	}
	return false
}

func rightAligned(longer, shorter string) bool {
	return len(shorter) >= 10 && longer[len(longer)-len(shorter):] == shorter
}

// recordFailure bumps the fail streak and abandons the dialogue when the
// streak guard trips, so an unparseable user never loops forever on one slot.
func (t *Tracker) recordFailure(ctx context.Context, state *DialogueState, cause error) (*DialogueState, error) {
	next := state.Clone()
	next.FailStreak++
	next.UpdatedAt = t.now()
	if t.config.MaxFailStreak > 0 && next.FailStreak >= t.config.MaxFailStreak {
		next.Status = StatusAbandoned
		if err := t.states.Delete(ctx, next.UserKey); err != nil {
			return state, err
		}
		componentLogger("tracker").Info().
			Str("user", next.UserKey).Str("slot", next.PendingSlot).Int("streak", next.FailStreak).
			Msg("dialogue abandoned after repeated validation failures")
		return next, cause
	}
	if err := t.states.Save(ctx, next); err != nil {
		return state, err
	}
	return next, cause
}

// recompute derives PendingSlot and Status from the filled set.
func (t *Tracker) recompute(def *IntentDefinition, state *DialogueState) {
	if next := NextPendingSlot(def, state.Filled); next != nil {
		state.PendingSlot = next.ID
		state.Status = StatusCollecting
		return
	}
	state.PendingSlot = ""
	state.Status = StatusAwaitingConfirmation
}

// invalidateDependents clears filled slots whose DependsOn predicate no
// longer holds, iterating to a fixpoint since a cleared slot can cascade
// into further predicates.
func invalidateDependents(def *IntentDefinition, filled map[string]string) {
	for {
		changed := false
		for i := range def.Slots {
			slot := &def.Slots[i]
			if _, ok := filled[slot.ID]; !ok {
				continue
			}
			if !slot.applicable(filled) {
				delete(filled, slot.ID)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}
