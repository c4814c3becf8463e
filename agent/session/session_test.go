package session

import (
	"sync"
	"testing"
)

func TestKeyPartitionsUsers(t *testing.T) {
	t.Parallel()

	if Key("u1", "shared") == Key("u2", "shared") {
		t.Fatalf("same session id under different users must not collide")
	}
}

func TestAcquireCreatesOnce(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	s1, l1 := tr.Acquire("u1", "s1")
	s2, l2 := tr.Acquire("u1", "s1")

	if s1 != s2 {
		t.Fatalf("expected the same session record")
	}
	if l1 != l2 {
		t.Fatalf("expected the same turn lock")
	}
}

func TestTurnSerializationPerSession(t *testing.T) {
	t.Parallel()

	tr := NewTracker()

	inTurn := 0
	maxInTurn := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, l := tr.Acquire("u1", "s1")
			l.Lock()
			defer l.Unlock()

			mu.Lock()
			inTurn++
			if inTurn > maxInTurn {
				maxInTurn = inTurn
			}
			mu.Unlock()

			mu.Lock()
			inTurn--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInTurn != 1 {
		t.Fatalf("turns of one session must not overlap, saw %d concurrent", maxInTurn)
	}
}

func TestReasoningModeDefaultsOff(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	if tr.ReasoningMode("u1", "unknown") {
		t.Fatalf("unknown session must default to fast mode")
	}

	tr.SetReasoningMode("u1", "s1", true)
	if !tr.ReasoningMode("u1", "s1") {
		t.Fatalf("expected deep reasoning on")
	}
	tr.SetReasoningMode("u1", "s1", false)
	if tr.ReasoningMode("u1", "s1") {
		t.Fatalf("expected deep reasoning off")
	}
}

func TestRemoveForgetsSession(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.SetReasoningMode("u1", "s1", true)
	tr.Remove("u1", "s1")

	if tr.ReasoningMode("u1", "s1") {
		t.Fatalf("removed session must lose its flags")
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	if Valid("  ", "s1") || Valid("u1", "") || !Valid("u1", "s1") {
		t.Fatalf("unexpected validation results")
	}
}
