package dialogsdk

import (
	"context"
	"strings"
)

// ──────────────────────────────────────────────
// Intent Classifier — keyword fallback path
// ──────────────────────────────────────────────

// IntentGeneral is the catch-all intent used when nothing matches.
const IntentGeneral = "general"

// Confidence levels produced by the deterministic keyword path.
const (
	ConfidenceStrong  = 0.95
	ConfidenceWeak    = 0.80
	ConfidenceDefault = 0.50
)

// ClassificationResult assigns an intent to one inbound message.
// Ephemeral; never persisted.
type ClassificationResult struct {
	Intent          string   `json:"intent"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// Classifier assigns an intent to a message given the user's recent history.
type Classifier interface {
	Classify(ctx context.Context, message string, history []ConversationTurn) (ClassificationResult, error)
}

// KeywordClassifier is the deterministic fallback classifier: pure keyword
// matching against each intent's hints. It never fails.
//
// Tie-breaking, in order: more matched keywords; longer (more specific)
// longest-matched keyword; the user's previously active intent (session
// stickiness, read from history); registration order by name.
type KeywordClassifier struct {
	registry *SchemaRegistry
}

// NewKeywordClassifier creates a keyword classifier over the registry.
func NewKeywordClassifier(registry *SchemaRegistry) *KeywordClassifier {
	return &KeywordClassifier{registry: registry}
}

type keywordScore struct {
	intent  string
	matches []string
	strong  bool
	longest int
}

func (c *KeywordClassifier) Classify(ctx context.Context, message string, history []ConversationTurn) (ClassificationResult, error) {
	lower := strings.ToLower(message)

	var best *keywordScore
	previous := lastIntent(history)
	for _, name := range c.registry.Names() {
		def := c.registry.Get(name)
		if def == nil {
			continue
		}
		score := scoreHints(lower, def)
		if len(score.matches) == 0 {
			continue
		}
		if best == nil || betterScore(score, *best, previous) {
			s := score
			best = &s
		}
	}

	if best == nil {
		return ClassificationResult{Intent: IntentGeneral, Confidence: ConfidenceDefault}, nil
	}
	confidence := ConfidenceWeak
	if best.strong {
		confidence = ConfidenceStrong
	}
	return ClassificationResult{
		Intent:          best.intent,
		Confidence:      confidence,
		MatchedKeywords: best.matches,
	}, nil
}

func scoreHints(lower string, def *IntentDefinition) keywordScore {
	score := keywordScore{intent: def.Name}
	for _, hint := range def.StrongHints {
		if strings.Contains(lower, strings.ToLower(hint)) {
			score.matches = append(score.matches, hint)
			score.strong = true
			if len(hint) > score.longest {
				score.longest = len(hint)
			}
		}
	}
	for _, hint := range def.WeakHints {
		if strings.Contains(lower, strings.ToLower(hint)) {
			score.matches = append(score.matches, hint)
			if len(hint) > score.longest {
				score.longest = len(hint)
			}
		}
	}
	return score
}

// betterScore reports whether a beats b under the tie-break rules.
func betterScore(a, b keywordScore, previous string) bool {
	if len(a.matches) != len(b.matches) {
		return len(a.matches) > len(b.matches)
	}
	if a.longest != b.longest {
		return a.longest > b.longest
	}
	if a.intent == previous && b.intent != previous {
		return true
	}
	return false
}

// lastIntent finds the most recent intent associated with a turn, newest
// first. Empty when the user has no classified history.
func lastIntent(history []ConversationTurn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Intent != "" {
			return history[i].Intent
		}
	}
	return ""
}

// FallbackClassifier chains a primary classifier with the keyword fallback.
// Primary failures are logged and degrade silently; Classify never returns
// an error to the caller.
type FallbackClassifier struct {
	primary  Classifier
	fallback Classifier
}

// NewFallbackClassifier wraps primary with fallback. A nil primary means the
// fallback runs directly.
func NewFallbackClassifier(primary, fallback Classifier) *FallbackClassifier {
	return &FallbackClassifier{primary: primary, fallback: fallback}
}

func (c *FallbackClassifier) Classify(ctx context.Context, message string, history []ConversationTurn) (ClassificationResult, error) {
	if c.primary != nil {
		result, err := c.primary.Classify(ctx, message, history)
		if err == nil {
			return result, nil
		}
		componentLogger("classifier").Warn().Err(err).Msg("primary classifier failed, using keyword fallback")
	}
	result, _ := c.fallback.Classify(ctx, message, history)
	return result, nil
}

// Compile-time interface checks.
var (
	_ Classifier = (*KeywordClassifier)(nil)
	_ Classifier = (*FallbackClassifier)(nil)
)
