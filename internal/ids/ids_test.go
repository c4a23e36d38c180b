package ids

import (
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestNewIsParseableAndOrdered(t *testing.T) {
	prev := New()
	if _, err := ulid.Parse(prev); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	for i := 0; i < 100; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("expected monotonic ids, %s <= %s", next, prev)
		}
		prev = next
	}
}

func TestNewConcurrentUnique(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := New()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 1600 {
		t.Fatalf("expected 1600 unique ids, got %d", len(seen))
	}
}
