package dialogsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tmc/langchaingo/llms"
)

// ──────────────────────────────────────────────
// Intent Classifier — LLM primary path
// ──────────────────────────────────────────────

// LLMClassifierConfig tunes the LLM-backed classifier.
type LLMClassifierConfig struct {
	// Timeout bounds each model call. Default 10s.
	Timeout time.Duration
	// MaxHistory limits how many recent turns are included in the prompt.
	// Default 10.
	MaxHistory int
	// MaxTokens caps the model response. Default 200.
	MaxTokens int
}

// DefaultLLMClassifierConfig returns sensible defaults.
func DefaultLLMClassifierConfig() LLMClassifierConfig {
	return LLMClassifierConfig{
		Timeout:    10 * time.Second,
		MaxHistory: 10,
		MaxTokens:  200,
	}
}

// LLMClassifier delegates intent classification to a hosted model through
// the langchaingo llms.Model abstraction. The model must answer with a JSON
// object matching ClassificationResult; malformed output is repaired with
// jsonrepair before decoding, and anything still untrustworthy is an error
// so the caller (FallbackClassifier) can degrade to the keyword path.
type LLMClassifier struct {
	model    llms.Model
	registry *SchemaRegistry
	config   LLMClassifierConfig
}

// NewLLMClassifier creates an LLM-backed classifier.
func NewLLMClassifier(model llms.Model, registry *SchemaRegistry, config ...LLMClassifierConfig) *LLMClassifier {
	cfg := DefaultLLMClassifierConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 10
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 200
	}
	return &LLMClassifier{model: model, registry: registry, config: cfg}
}

func (c *LLMClassifier) Classify(ctx context.Context, message string, history []ConversationTurn) (ClassificationResult, error) {
	cctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	prompt := c.buildPrompt(message, history)
	raw, err := llms.GenerateFromSinglePrompt(cctx, c.model, prompt,
		llms.WithTemperature(0),
		llms.WithMaxTokens(c.config.MaxTokens),
	)
	if err != nil {
		return ClassificationResult{}, fmt.Errorf("llm call: %w", err)
	}

	result, err := c.decode(raw)
	if err != nil {
		return ClassificationResult{}, err
	}
	return result, nil
}

// decode extracts and validates the model's JSON answer. The response shape
// is never trusted as-is.
func (c *LLMClassifier) decode(raw string) (ClassificationResult, error) {
	cleaned := stripCodeFence(raw)
	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return ClassificationResult{}, fmt.Errorf("unrepairable response: %w", err)
	}

	var result ClassificationResult
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return ClassificationResult{}, fmt.Errorf("decode response: %w", err)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return ClassificationResult{}, fmt.Errorf("confidence %v out of range", result.Confidence)
	}
	if result.Intent != IntentGeneral && c.registry.Get(result.Intent) == nil {
		return ClassificationResult{}, fmt.Errorf("%w: %s", ErrUnknownIntent, result.Intent)
	}
	return result, nil
}

func (c *LLMClassifier) buildPrompt(message string, history []ConversationTurn) string {
	var b strings.Builder
	b.WriteString("You classify one user message into exactly one intent.\n")
	b.WriteString("Known intents: ")
	b.WriteString(strings.Join(append(c.registry.Names(), IntentGeneral), ", "))
	b.WriteString("\n\n")

	recent := history
	if len(recent) > c.config.MaxHistory {
		recent = recent[len(recent)-c.config.MaxHistory:]
	}
	if len(recent) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, turn := range recent {
			role := "user"
			if turn.Direction == DirectionOutbound {
				role = "assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, turn.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Message: %s\n\n", message)
	b.WriteString(`Answer with only a JSON object: {"intent": "<name>", "confidence": <0..1>, "matched_keywords": []}`)
	return b.String()
}

// stripCodeFence removes a surrounding markdown fence if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Compile-time interface check.
var _ Classifier = (*LLMClassifier)(nil)
