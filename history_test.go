package dialogsdk

import (
	"context"
	"testing"
	"time"
)

func TestHistory_AppendRecent(t *testing.T) {
	s := NewInMemoryHistoryStore()
	ctx := context.Background()

	s.Append(ctx, ConversationTurn{UserKey: "u1", Direction: DirectionInbound, Text: "hi"})
	s.Append(ctx, ConversationTurn{UserKey: "u1", Direction: DirectionOutbound, Text: "hello"})
	s.Append(ctx, ConversationTurn{UserKey: "u2", Direction: DirectionInbound, Text: "other user"})

	turns, err := s.Recent(ctx, "u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 || turns[0].Text != "hi" || turns[1].Text != "hello" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
	if turns[0].ID == "" {
		t.Fatal("expected assigned turn ID")
	}
}

func TestHistory_Limit(t *testing.T) {
	s := NewInMemoryHistoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Append(ctx, ConversationTurn{UserKey: "u1", Text: string(rune('a' + i))})
	}
	turns, _ := s.Recent(ctx, "u1", 2)
	if len(turns) != 2 || turns[0].Text != "d" || turns[1].Text != "e" {
		t.Fatalf("expected newest two turns ascending, got %+v", turns)
	}
}

func TestHistory_SeqBreaksTimestampTies(t *testing.T) {
	s := NewInMemoryHistoryStore()
	ctx := context.Background()
	// A coarse clock can stamp several turns identically; order must still
	// be deterministic by insertion.
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, text := range []string{"first", "second", "third"} {
		s.Append(ctx, ConversationTurn{UserKey: "u1", Text: text, Timestamp: ts})
	}
	turns, _ := s.Recent(ctx, "u1", 0)
	if turns[0].Text != "first" || turns[1].Text != "second" || turns[2].Text != "third" {
		t.Fatalf("tie-break by seq failed: %+v", turns)
	}
	if turns[0].Seq >= turns[1].Seq || turns[1].Seq >= turns[2].Seq {
		t.Fatal("seq not monotone")
	}
}

func TestHistory_Purge(t *testing.T) {
	s := NewInMemoryHistoryStore()
	ctx := context.Background()
	s.Append(ctx, ConversationTurn{UserKey: "u1", Text: "a"})
	s.Append(ctx, ConversationTurn{UserKey: "u1", Text: "b"})

	n, err := s.Purge(ctx, "u1")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 purged, got %d (%v)", n, err)
	}
	turns, _ := s.Recent(ctx, "u1", 0)
	if len(turns) != 0 {
		t.Fatal("expected empty history after purge")
	}
	n, _ = s.Purge(ctx, "u1")
	if n != 0 {
		t.Fatal("expected 0 on second purge")
	}
}

func TestHistory_ConcurrentAppends(t *testing.T) {
	s := NewInMemoryHistoryStore()
	ctx := context.Background()
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		user := string(rune('a' + i))
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				s.Append(ctx, ConversationTurn{UserKey: user, Text: "x"})
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	for i := 0; i < 4; i++ {
		turns, _ := s.Recent(ctx, string(rune('a'+i)), 0)
		if len(turns) != 50 {
			t.Fatalf("lost writes: user %d has %d turns", i, len(turns))
		}
	}
}
