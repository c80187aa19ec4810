package dialogsdk

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

func TestKeywordClassifier_StrongHint(t *testing.T) {
	c := NewKeywordClassifier(newTestRegistry())
	result, err := c.Classify(context.Background(), "I want to onboard my new maid", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Intent != "onboarding" || result.Confidence != ConfidenceStrong {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestKeywordClassifier_WeakHint(t *testing.T) {
	c := NewKeywordClassifier(newTestRegistry())
	result, _ := c.Classify(context.Background(), "need some paisa", nil)
	if result.Intent != "cash_advance" || result.Confidence != ConfidenceWeak {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestKeywordClassifier_NoMatchIsGeneral(t *testing.T) {
	c := NewKeywordClassifier(newTestRegistry())
	result, _ := c.Classify(context.Background(), "hello there", nil)
	if result.Intent != IntentGeneral || result.Confidence != ConfidenceDefault {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestKeywordClassifier_TiePrefersLongerKeyword(t *testing.T) {
	r := NewSchemaRegistry()
	r.Register(&IntentDefinition{Name: "alpha", WeakHints: []string{"pay"}})
	r.Register(&IntentDefinition{Name: "beta", WeakHints: []string{"payment"}})
	c := NewKeywordClassifier(r)

	// Both match once; "payment" is more specific.
	result, _ := c.Classify(context.Background(), "about the payment", nil)
	if result.Intent != "beta" {
		t.Fatalf("expected beta, got %+v", result)
	}
}

func TestKeywordClassifier_TiePrefersPreviousIntent(t *testing.T) {
	r := NewSchemaRegistry()
	r.Register(&IntentDefinition{Name: "alpha", WeakHints: []string{"credit"}})
	r.Register(&IntentDefinition{Name: "beta", WeakHints: []string{"refund"}})
	c := NewKeywordClassifier(r)

	history := []ConversationTurn{
		{UserKey: "u1", Direction: DirectionInbound, Text: "refund please", Intent: "beta"},
	}
	result, _ := c.Classify(context.Background(), "credit or refund question", history)
	if result.Intent != "beta" {
		t.Fatalf("expected sticky beta, got %+v", result)
	}
}

// fakeModel scripts llms.Model responses for classifier tests.
type fakeModel struct {
	response string
	err      error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.response}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func TestLLMClassifier_ValidResponse(t *testing.T) {
	registry := newTestRegistry()
	model := &fakeModel{response: `{"intent": "onboarding", "confidence": 0.88, "matched_keywords": ["onboard"]}`}
	c := NewLLMClassifier(model, registry)

	result, err := c.Classify(context.Background(), "please onboard asha", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Intent != "onboarding" || result.Confidence != 0.88 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestLLMClassifier_RepairsSloppyJSON(t *testing.T) {
	registry := newTestRegistry()
	// Code fence plus trailing comma: typical model sloppiness.
	model := &fakeModel{response: "```json\n{\"intent\": \"cash_advance\", \"confidence\": 0.9,}\n```"}
	c := NewLLMClassifier(model, registry)

	result, err := c.Classify(context.Background(), "advance", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Intent != "cash_advance" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestLLMClassifier_RejectsUnknownIntent(t *testing.T) {
	registry := newTestRegistry()
	model := &fakeModel{response: `{"intent": "made_up", "confidence": 0.9}`}
	c := NewLLMClassifier(model, registry)

	if _, err := c.Classify(context.Background(), "x", nil); !errors.Is(err, ErrUnknownIntent) {
		t.Fatalf("expected unknown intent, got %v", err)
	}
}

func TestLLMClassifier_RejectsOutOfRangeConfidence(t *testing.T) {
	registry := newTestRegistry()
	model := &fakeModel{response: `{"intent": "onboarding", "confidence": 7}`}
	c := NewLLMClassifier(model, registry)

	if _, err := c.Classify(context.Background(), "x", nil); err == nil {
		t.Fatal("expected error for out-of-range confidence")
	}
}

func TestFallbackClassifier_DegradesOnPrimaryFailure(t *testing.T) {
	registry := newTestRegistry()
	primary := NewLLMClassifier(&fakeModel{err: errors.New("timeout")}, registry)
	c := NewFallbackClassifier(primary, NewKeywordClassifier(registry))

	result, err := c.Classify(context.Background(), "onboard a worker", nil)
	if err != nil {
		t.Fatalf("fallback must never error, got %v", err)
	}
	if result.Intent != "onboarding" {
		t.Fatalf("expected keyword fallback result, got %+v", result)
	}
}

func TestFallbackClassifier_NilPrimary(t *testing.T) {
	registry := newTestRegistry()
	c := NewFallbackClassifier(nil, NewKeywordClassifier(registry))
	result, err := c.Classify(context.Background(), "advance please", nil)
	if err != nil || result.Intent != "cash_advance" {
		t.Fatalf("unexpected: %+v (%v)", result, err)
	}
}
