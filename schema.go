package dialogsdk

import (
	"fmt"
	"sort"
	"sync"
)

// ──────────────────────────────────────────────
// Slot Schema Registry — declarative per-intent slot schemas
// ──────────────────────────────────────────────

// SlotType is the value type collected by a slot.
type SlotType string

const (
	SlotString SlotType = "string"
	SlotInt    SlotType = "int"
	SlotEnum   SlotType = "enum"
	SlotDate   SlotType = "date"
)

// Predicate decides whether a slot is applicable given the values filled so
// far. A slot whose predicate evaluates false is skipped entirely, not
// deferred; it only becomes applicable again if an upstream value changes.
type Predicate func(filled map[string]string) bool

// SlotEquals is true when the given slot is filled with exactly want.
func SlotEquals(slotID, want string) Predicate {
	return func(filled map[string]string) bool {
		return filled[slotID] == want
	}
}

// SlotFilled is true when the given slot holds any value.
func SlotFilled(slotID string) Predicate {
	return func(filled map[string]string) bool {
		return filled[slotID] != ""
	}
}

// SlotEmpty is true when the given slot holds no value.
func SlotEmpty(slotID string) Predicate {
	return func(filled map[string]string) bool {
		return filled[slotID] == ""
	}
}

// All combines predicates with logical AND.
func All(preds ...Predicate) Predicate {
	return func(filled map[string]string) bool {
		for _, p := range preds {
			if !p(filled) {
				return false
			}
		}
		return true
	}
}

// Any combines predicates with logical OR.
func Any(preds ...Predicate) Predicate {
	return func(filled map[string]string) bool {
		for _, p := range preds {
			if p(filled) {
				return true
			}
		}
		return false
	}
}

// SlotDefinition describes one field to collect from the user.
type SlotDefinition struct {
	// ID is unique within the intent.
	ID string
	// Prompt is the message sent when this slot becomes pending.
	Prompt string
	// Type of the collected value.
	Type SlotType
	// Values lists canonical values for SlotEnum slots.
	Values []string
	// Validate normalizes and gates the raw value. Nil accepts anything.
	Validate ValidateFunc
	// DependsOn controls applicability. Nil means always applicable.
	DependsOn Predicate
	// Optional slots never become pending; they are filled only on explicit
	// user input or correction.
	Optional bool
	// RejectSelf rejects values equal to the user's own identifier.
	RejectSelf bool
}

// applicable reports whether the slot's DependsOn holds under filled.
func (s *SlotDefinition) applicable(filled map[string]string) bool {
	return s.DependsOn == nil || s.DependsOn(filled)
}

// IntentDefinition is the static description of one conversational intent,
// loaded at process start.
type IntentDefinition struct {
	// Name is the unique intent key.
	Name string
	// StrongHints and WeakHints drive fallback keyword classification.
	// A strong hint match yields higher confidence than a weak one.
	StrongHints []string
	WeakHints   []string
	// Slots in the order they should be collected.
	Slots []SlotDefinition
	// NeedsConfirmation asks the user to confirm before dispatching.
	NeedsConfirmation bool
}

// Slot returns the definition for id, or nil.
func (d *IntentDefinition) Slot(id string) *SlotDefinition {
	for i := range d.Slots {
		if d.Slots[i].ID == id {
			return &d.Slots[i]
		}
	}
	return nil
}

// NextPendingSlot walks the declared slot order and returns the first slot
// that is required, applicable under filled, and not yet filled. Returns nil
// when collection is complete.
func NextPendingSlot(def *IntentDefinition, filled map[string]string) *SlotDefinition {
	for i := range def.Slots {
		slot := &def.Slots[i]
		if slot.Optional {
			continue
		}
		if !slot.applicable(filled) {
			continue
		}
		if _, ok := filled[slot.ID]; ok {
			continue
		}
		return slot
	}
	return nil
}

// IsComplete reports whether every required, applicable slot is filled.
func IsComplete(def *IntentDefinition, filled map[string]string) bool {
	return NextPendingSlot(def, filled) == nil
}

// SchemaRegistry holds all intent definitions. Registration happens at
// startup; lookups are concurrent-safe.
type SchemaRegistry struct {
	mu      sync.RWMutex
	intents map[string]*IntentDefinition
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{intents: make(map[string]*IntentDefinition)}
}

// Register adds an intent definition. Duplicate intent names or duplicate
// slot IDs within an intent are rejected.
func (r *SchemaRegistry) Register(def *IntentDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("intent name is empty")
	}
	seen := make(map[string]bool, len(def.Slots))
	for i := range def.Slots {
		id := def.Slots[i].ID
		if id == "" {
			return fmt.Errorf("intent %q: slot %d has empty ID", def.Name, i)
		}
		if seen[id] {
			return fmt.Errorf("intent %q: duplicate slot %q", def.Name, id)
		}
		seen[id] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.intents[def.Name]; exists {
		return fmt.Errorf("intent %q already registered", def.Name)
	}
	r.intents[def.Name] = def
	componentLogger("schema").Debug().Str("intent", def.Name).Int("slots", len(def.Slots)).Msg("intent registered")
	return nil
}

// Get returns the definition for name, or nil.
func (r *SchemaRegistry) Get(name string) *IntentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.intents[name]
}

// Names returns all registered intent names, sorted.
func (r *SchemaRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.intents))
	for name := range r.intents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered intents.
func (r *SchemaRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.intents)
}
