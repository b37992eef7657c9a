package history

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAppendAndTurns(t *testing.T) {
	s := NewStore(5)
	s.Append("u1", "hello", "hi there")
	s.Append("u1", "how are you", "great")

	turns := s.Turns("u1")
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Question != "hello" || turns[0].Answer != "hi there" {
		t.Fatalf("first turn = %#v", turns[0])
	}

	if got := s.Turns("u2"); got != nil {
		t.Fatalf("expected no turns for unknown user, got %v", got)
	}

	s.Clear("u1")
	if got := len(s.Turns("u1")); got != 0 {
		t.Fatalf("len(turns) after clear = %d, want 0", got)
	}
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	const capacity = 3

	s := NewStore(capacity)
	for i := 0; i < capacity+1; i++ {
		s.Append("u1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	turns := s.Turns("u1")
	if len(turns) != capacity {
		t.Fatalf("len(turns) = %d, want %d", len(turns), capacity)
	}
	if turns[0].Question != "q1" {
		t.Fatalf("oldest turn = %q, want q1 (q0 evicted)", turns[0].Question)
	}
	if turns[capacity-1].Question != "q3" {
		t.Fatalf("newest turn = %q, want q3", turns[capacity-1].Question)
	}
}

func TestConcurrentAppendsAcrossUsers(t *testing.T) {
	s := NewStore(100)
	const n = 50

	var wg sync.WaitGroup
	wg.Add(2 * n)

	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			s.Append("a", fmt.Sprintf("q%d", i), "x")
		}(i)
		go func(i int) {
			defer wg.Done()
			s.Append("b", fmt.Sprintf("q%d", i), "x")
		}(i)
	}

	wg.Wait()

	if got := len(s.Turns("a")); got != n {
		t.Fatalf("user a turns = %d, want %d", got, n)
	}
	if got := len(s.Turns("b")); got != n {
		t.Fatalf("user b turns = %d, want %d", got, n)
	}
}

func TestLockSerializesPerUser(t *testing.T) {
	s := NewStore(10)

	unlock := s.Lock("u1")

	acquired := make(chan struct{})
	go func() {
		inner := s.Lock("u1")
		close(acquired)
		inner()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	// A different user must not be blocked.
	otherUnlock := s.Lock("u2")
	otherUnlock()

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}
}
