package dialogsdk

import (
	"context"
	"errors"
	"testing"
)

func TestRouter_ResolveIntentConfidenceFloor(t *testing.T) {
	r := NewRouter(newTestTracker())

	got := r.ResolveIntent(ClassificationResult{Intent: "onboarding", Confidence: 0.95})
	if got != "onboarding" {
		t.Fatalf("expected onboarding, got %s", got)
	}
	got = r.ResolveIntent(ClassificationResult{Intent: "onboarding", Confidence: 0.5})
	if got != IntentGeneral {
		t.Fatalf("expected general below floor, got %s", got)
	}
}

func TestRouter_DispatchCompletes(t *testing.T) {
	tr := newTestTracker()
	r := NewRouter(tr)
	ctx := context.Background()

	var seen FilledSnapshot
	r.RegisterFunc("cash_advance", func(ctx context.Context, snapshot FilledSnapshot) (HandlerOutcome, error) {
		seen = snapshot
		return HandlerOutcome{Message: "advance recorded"}, nil
	})

	state, _ := tr.GetOrCreate(ctx, "employer1", "cash_advance", 0.95)
	state, _ = tr.ApplyValue(ctx, state, "worker_phone", "9000000001")
	state, _ = tr.ApplyValue(ctx, state, "amount", "2000")
	if state.Status != StatusAwaitingConfirmation {
		t.Fatalf("expected awaiting confirmation, got %s", state.Status)
	}

	outcome, err := r.Dispatch(ctx, state)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Message != "advance recorded" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if seen.Values["amount"] != "2000" || seen.Values["worker_phone"] != "9000000001" {
		t.Fatalf("handler saw wrong snapshot: %+v", seen)
	}
	if cur, _ := tr.Current(ctx, "employer1"); cur != nil {
		t.Fatal("dialogue not completed after dispatch")
	}
}

func TestRouter_HandlerSnapshotIsImmutable(t *testing.T) {
	tr := newTestTracker()
	r := NewRouter(tr)
	ctx := context.Background()

	r.RegisterFunc("cash_advance", func(ctx context.Context, snapshot FilledSnapshot) (HandlerOutcome, error) {
		snapshot.Values["amount"] = "tampered"
		return HandlerOutcome{}, nil
	})

	state, _ := tr.GetOrCreate(ctx, "employer1", "cash_advance", 0.95)
	state, _ = tr.ApplyValue(ctx, state, "worker_phone", "9000000001")
	state, _ = tr.ApplyValue(ctx, state, "amount", "2000")

	r.Dispatch(ctx, state)
	if state.Filled["amount"] != "2000" {
		t.Fatal("handler mutated dialogue state through snapshot")
	}
}

func TestRouter_HandlerFailureKeepsAwaitingConfirmation(t *testing.T) {
	tr := newTestTracker()
	r := NewRouter(tr)
	ctx := context.Background()

	r.RegisterFunc("cash_advance", func(ctx context.Context, snapshot FilledSnapshot) (HandlerOutcome, error) {
		return HandlerOutcome{}, errors.New("payment gateway down")
	})

	state, _ := tr.GetOrCreate(ctx, "employer1", "cash_advance", 0.95)
	state, _ = tr.ApplyValue(ctx, state, "worker_phone", "9000000001")
	state, _ = tr.ApplyValue(ctx, state, "amount", "2000")

	_, err := r.Dispatch(ctx, state)
	if !errors.Is(err, ErrHandlerFailure) {
		t.Fatalf("expected handler failure, got %v", err)
	}
	cur, _ := tr.Current(ctx, "employer1")
	if cur == nil || cur.Status != StatusAwaitingConfirmation {
		t.Fatalf("dialogue must stay awaiting confirmation, got %+v", cur)
	}
}

func TestRouter_NoHandler(t *testing.T) {
	tr := newTestTracker()
	r := NewRouter(tr)
	ctx := context.Background()

	state, _ := tr.GetOrCreate(ctx, "employer1", "cash_advance", 0.95)
	if _, err := r.Dispatch(ctx, state); !errors.Is(err, ErrHandlerFailure) {
		t.Fatalf("expected handler failure, got %v", err)
	}
}
