package dialogsdk

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("user1")
			counter++
			m.Unlock("user1")
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("lost updates: %d", counter)
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	m := NewKeyedMutex()
	m.Lock("user1")

	done := make(chan struct{})
	go func() {
		m.Lock("user2")
		m.Unlock("user2")
		close(done)
	}()
	<-done // user2 must not block behind user1

	m.Unlock("user1")
}

func TestKeyedMutex_EntriesReclaimed(t *testing.T) {
	m := NewKeyedMutex()
	m.Lock("user1")
	m.Unlock("user1")

	m.mu.Lock()
	n := len(m.entries)
	m.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected empty entry map, got %d", n)
	}
}

func TestKeyedMutex_UnlockUnlockedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewKeyedMutex().Unlock("nobody")
}
