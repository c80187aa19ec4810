package dialogsdk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/atomic"
)

// ──────────────────────────────────────────────
// Engine — one inbound message in, one reply out
// ──────────────────────────────────────────────

// Reply is the engine's answer to one inbound message.
type Reply struct {
	Text   string
	Intent string
	Status DialogueStatus
}

// Engine wires the classifier, tracker, router, history store and outbound
// messenger into the full turn loop:
//
//	inbound → classify → per-user lock → state update → unlock
//	        → dispatch or re-prompt → history append → outbound send
//
// All messages for the same user key are serialized; the lock never spans
// the classifier, verifier or handler network calls.
type Engine struct {
	registry   *SchemaRegistry
	classifier Classifier
	tracker    *Tracker
	router     *Router
	history    HistoryStore
	messenger  Messenger
	locks      *KeyedMutex
	pipeline   turnPipeline

	historyLimit int
	processed    *atomic.Int64
}

// EngineOptions configures optional engine collaborators.
type EngineOptions struct {
	// Classifier defaults to the keyword classifier over the registry.
	Classifier Classifier
	// History defaults to an in-memory store.
	History HistoryStore
	// Messenger receives outbound replies. Nil means the caller delivers
	// the returned Reply itself.
	Messenger Messenger
	// HistoryLimit is how many turns feed the classifier. Default 20.
	HistoryLimit int
}

// NewEngine assembles an engine. registry, tracker and router are required.
func NewEngine(registry *SchemaRegistry, tracker *Tracker, router *Router, opts ...EngineOptions) *Engine {
	var o EngineOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Classifier == nil {
		o.Classifier = NewKeywordClassifier(registry)
	}
	if o.History == nil {
		o.History = NewInMemoryHistoryStore()
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 20
	}
	return &Engine{
		registry:     registry,
		classifier:   o.Classifier,
		tracker:      tracker,
		router:       router,
		history:      o.History,
		messenger:    o.Messenger,
		locks:        NewKeyedMutex(),
		historyLimit: o.HistoryLimit,
		processed:    atomic.NewInt64(0),
	}
}

// Use appends a turn middleware to the processing pipeline.
func (e *Engine) Use(mw TurnMiddleware) {
	e.pipeline.use(mw)
}

// History exposes the conversation log backing this engine.
func (e *Engine) History() HistoryStore { return e.history }

// Processed returns the number of turns handled since start.
func (e *Engine) Processed() int64 { return e.processed.Load() }

// Process handles one inbound message and returns the reply. The reply is
// also handed to the configured Messenger.
func (e *Engine) Process(ctx context.Context, userKey, text string) (Reply, error) {
	e.processed.Inc()

	recent, err := e.history.Recent(ctx, userKey, e.historyLimit)
	if err != nil {
		componentLogger("engine").Warn().Str("user", userKey).Err(err).Msg("history read failed")
	}

	// Classification runs outside the user lock; the fallback wrapper keeps
	// this path error-free.
	result, err := e.classifier.Classify(ctx, text, recent)
	if err != nil {
		result = ClassificationResult{Intent: IntentGeneral, Confidence: ConfidenceDefault}
	}

	tc := &TurnContext{
		UserKey:        userKey,
		Text:           text,
		Classification: result,
		Extra:          make(map[string]interface{}),
	}
	e.pipeline.execute(tc, func() {
		reply := e.processTurn(ctx, tc)
		tc.Reply = &reply
		tc.Handled = true
	})

	reply := Reply{Text: "sorry, something went wrong"}
	if tc.Reply != nil {
		reply = *tc.Reply
	}

	e.record(ctx, userKey, text, reply)
	return reply, nil
}

// Purge removes the user's conversation history. Returns removed turn count.
func (e *Engine) Purge(ctx context.Context, userKey string) (int, error) {
	return e.history.Purge(ctx, userKey)
}

// ─── turn core ───

// processTurn runs the locked read-interpret-write sequence and, when a
// dialogue is ready, dispatches its handler after releasing the lock.
func (e *Engine) processTurn(ctx context.Context, tc *TurnContext) Reply {
	userKey, text := tc.UserKey, tc.Text
	logger := componentLogger("engine")

	e.locks.Lock(userKey)
	state, reply, dispatch := e.advanceState(ctx, tc)
	e.locks.Unlock(userKey)

	if !dispatch {
		return reply
	}

	// Handler runs outside the lock; on failure the dialogue stays at
	// awaiting_confirmation so the user retries without re-filling slots.
	outcome, err := e.router.Dispatch(ctx, state)
	if err != nil {
		logger.Warn().Str("user", userKey).Str("intent", state.Intent).Err(err).Msg("dispatch failed")
		return Reply{
			Text:   "we could not complete that right now, please reply yes to try again",
			Intent: state.Intent,
			Status: StatusAwaitingConfirmation,
		}
	}

	msg := outcome.Message
	if msg == "" {
		msg = "done"
	}
	logger.Info().Str("user", userKey).Str("intent", state.Intent).Str("text", text).Msg("dialogue completed")
	return Reply{Text: msg, Intent: state.Intent, Status: StatusCompleted}
}

// advanceState holds the user lock. It loads or creates the dialogue state,
// interprets the message as a confirmation, correction or slot value, and
// reports whether the dialogue is ready for handler dispatch.
func (e *Engine) advanceState(ctx context.Context, tc *TurnContext) (state *DialogueState, reply Reply, dispatch bool) {
	userKey, text, result := tc.UserKey, tc.Text, tc.Classification

	cur, err := e.tracker.Current(ctx, userKey)
	if err != nil {
		return nil, Reply{Text: "sorry, something went wrong, please try again"}, false
	}

	resolved := e.router.ResolveIntent(result)
	fresh := false
	switch {
	case cur == nil:
		state, err = e.tracker.GetOrCreate(ctx, userKey, resolved, result.Confidence)
		fresh = true
	case resolved != cur.Intent && resolved != IntentGeneral && result.Confidence > cur.Confidence:
		// The new intent out-scores the active dialogue; the configured
		// switch policy (suspend by default) decides the old one's fate.
		state, err = e.tracker.GetOrCreate(ctx, userKey, resolved, result.Confidence)
		fresh = true
	default:
		state = cur
	}
	if err != nil {
		if errors.Is(err, ErrIntentBusy) {
			return nil, Reply{
				Text:   "please finish or cancel the current request first",
				Intent: cur.Intent,
				Status: cur.Status,
			}, false
		}
		return nil, Reply{Text: "sorry, I did not understand that"}, false
	}

	def := e.registry.Get(state.Intent)

	if fresh {
		// The opening message carries the intent, not a slot value.
		if state.Status == StatusAwaitingConfirmation && !def.NeedsConfirmation {
			return state, Reply{}, true
		}
		return state, e.promptReply(def, state), false
	}

	if state.Status == StatusAwaitingConfirmation {
		return e.handleConfirmation(ctx, def, state, text)
	}
	return e.handleCollecting(ctx, def, state, text)
}

func (e *Engine) handleConfirmation(ctx context.Context, def *IntentDefinition, state *DialogueState, text string) (*DialogueState, Reply, bool) {
	if !def.NeedsConfirmation || affirmative(text) {
		return state, Reply{}, true
	}
	if negative(text) {
		if err := e.tracker.Abandon(ctx, state.UserKey); err == nil {
			return state, Reply{Text: "okay, cancelled", Intent: state.Intent, Status: StatusAbandoned}, false
		}
		return state, Reply{Text: "sorry, something went wrong, please try again"}, false
	}
	if slotID, value, ok := detectCorrection(def, state, text); ok {
		return e.applyCorrection(ctx, def, state, slotID, value)
	}
	return state, e.promptReply(def, state), false
}

func (e *Engine) handleCollecting(ctx context.Context, def *IntentDefinition, state *DialogueState, text string) (*DialogueState, Reply, bool) {
	if slotID, value, ok := detectCorrection(def, state, text); ok {
		return e.applyCorrection(ctx, def, state, slotID, value)
	}
	if state.PendingSlot == "" {
		return state, e.promptReply(def, state), false
	}

	next, err := e.tracker.ApplyValue(ctx, state, state.PendingSlot, text)
	if err != nil {
		return e.validationReply(def, next, err)
	}
	if next.Status == StatusAwaitingConfirmation && !def.NeedsConfirmation {
		return next, Reply{}, true
	}
	return next, e.promptReply(def, next), false
}

func (e *Engine) applyCorrection(ctx context.Context, def *IntentDefinition, state *DialogueState, slotID, value string) (*DialogueState, Reply, bool) {
	next, err := e.tracker.OverwriteValue(ctx, state, slotID, value)
	if err != nil {
		return e.validationReply(def, next, err)
	}
	if next.Status == StatusAwaitingConfirmation && !def.NeedsConfirmation {
		return next, Reply{}, true
	}
	return next, e.promptReply(def, next), false
}

// validationReply turns a validation failure into a corrective re-prompt of
// the same slot, or a hand-off message when the fail-streak guard abandoned
// the dialogue.
func (e *Engine) validationReply(def *IntentDefinition, state *DialogueState, cause error) (*DialogueState, Reply, bool) {
	if state.Status == StatusAbandoned {
		return state, Reply{
			Text:   "I am having trouble understanding; a teammate will follow up with you",
			Intent: state.Intent,
			Status: StatusAbandoned,
		}, false
	}
	hint := "that does not look right, please try again"
	var verr *ValidationError
	if errors.As(cause, &verr) && verr.Hint != "" {
		hint = verr.Hint
	}
	prompt := ""
	if slot := def.Slot(state.PendingSlot); slot != nil {
		prompt = " " + slot.Prompt
	}
	return state, Reply{
		Text:   hint + "." + prompt,
		Intent: state.Intent,
		Status: state.Status,
	}, false
}

// promptReply asks for the pending slot, or for confirmation when
// collection is complete.
func (e *Engine) promptReply(def *IntentDefinition, state *DialogueState) Reply {
	if state.PendingSlot != "" {
		text := state.PendingSlot + "?"
		if slot := def.Slot(state.PendingSlot); slot != nil && slot.Prompt != "" {
			text = slot.Prompt
		}
		return Reply{Text: text, Intent: state.Intent, Status: state.Status}
	}
	return Reply{Text: confirmationSummary(def, state), Intent: state.Intent, Status: state.Status}
}

// confirmationSummary lists the collected values in schema order.
func confirmationSummary(def *IntentDefinition, state *DialogueState) string {
	var b strings.Builder
	b.WriteString("Please confirm:\n")
	for i := range def.Slots {
		slot := &def.Slots[i]
		if value, ok := state.Filled[slot.ID]; ok {
			fmt.Fprintf(&b, "- %s: %s\n", slot.ID, value)
		}
	}
	b.WriteString("Reply yes to confirm or no to cancel.")
	return b.String()
}

// record appends the inbound and outbound turns. Appends are lock-free per
// the HistoryStore contract, and the outbound send goes through the
// messenger when one is configured.
func (e *Engine) record(ctx context.Context, userKey, inbound string, reply Reply) {
	logger := componentLogger("engine")
	if err := e.history.Append(ctx, ConversationTurn{
		UserKey:   userKey,
		Direction: DirectionInbound,
		Text:      inbound,
		Intent:    reply.Intent,
	}); err != nil {
		logger.Warn().Str("user", userKey).Err(err).Msg("history append failed")
	}
	if err := e.history.Append(ctx, ConversationTurn{
		UserKey:   userKey,
		Direction: DirectionOutbound,
		Text:      reply.Text,
		Intent:    reply.Intent,
	}); err != nil {
		logger.Warn().Str("user", userKey).Err(err).Msg("history append failed")
	}
	if e.messenger != nil {
		if err := e.messenger.Send(ctx, userKey, reply.Text); err != nil {
			logger.Warn().Str("user", userKey).Err(err).Msg("outbound send failed")
		}
	}
}

// ─── message interpretation ───

var affirmatives = []string{"yes", "y", "ok", "okay", "confirm", "confirmed", "sure", "haan", "ha", "theek hai", "done"}

var negatives = []string{"no", "n", "cancel", "cancelled", "stop", "nahi", "nah", "abort"}

func affirmative(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, a := range affirmatives {
		if lower == a {
			return true
		}
	}
	return false
}

func negative(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, n := range negatives {
		if lower == n {
			return true
		}
	}
	return false
}

var correctionMarkers = []string{"actually", "change", "instead", "make it", "not", "use"}

// detectCorrection conservatively maps a message onto a correction of an
// already-filled slot: it requires an explicit correction marker and an
// unambiguous enum value belonging to exactly one filled enum slot. Anything
// less explicit is treated as a normal slot value.
func detectCorrection(def *IntentDefinition, state *DialogueState, text string) (slotID, value string, ok bool) {
	lower := strings.ToLower(text)
	marked := false
	for _, m := range correctionMarkers {
		// Whole words only: "cannot" must not match "not".
		if containsWord(lower, m) {
			marked = true
			break
		}
	}
	if !marked {
		return "", "", false
	}

	for i := range def.Slots {
		slot := &def.Slots[i]
		if slot.Type != SlotEnum {
			continue
		}
		current, filled := state.Filled[slot.ID]
		if !filled {
			continue
		}
		for _, v := range slot.Values {
			if v != current && strings.Contains(lower, strings.ToLower(v)) {
				return slot.ID, v, true
			}
		}
	}
	return "", "", false
}

// containsWord reports whether word occurs in s bounded by non-word
// characters (or the string edges) on both sides.
func containsWord(s, word string) bool {
	for start := 0; ; {
		i := strings.Index(s[start:], word)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isWordChar(s[i-1])
		end := i + len(word)
		after := end == len(s) || !isWordChar(s[end])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
