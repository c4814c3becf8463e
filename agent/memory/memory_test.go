package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

func TestSignature(t *testing.T) {
	t.Parallel()

	a := Signature("Plan a trip to Kyoto!")
	b := Signature("to KYOTO, plan a trip")
	if a != b {
		t.Fatalf("signatures should collide: %q vs %q", a, b)
	}
	if a != "a kyoto plan to trip" {
		t.Fatalf("unexpected signature: %q", a)
	}
	if Signature("  ...  ") != "" {
		t.Fatalf("punctuation-only input must yield empty signature")
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	if got := Similarity("kyoto plan trip", "kyoto plan trip"); got != 1 {
		t.Fatalf("identical signatures: expected 1, got %v", got)
	}
	if got := Similarity("kyoto plan trip", "osaka hotel"); got != 0 {
		t.Fatalf("disjoint signatures: expected 0, got %v", got)
	}
	got := Similarity("kyoto plan trip", "kyoto plan hotel")
	if got <= 0 || got >= 1 {
		t.Fatalf("partial overlap must be in (0,1), got %v", got)
	}
	if Similarity("", "kyoto") != 0 {
		t.Fatalf("empty signature must score 0")
	}
}

func TestInMemoryHistoryBound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemory(3)

	for i := 0; i < 5; i++ {
		err := store.AppendTurn(ctx, "u1", "s1", contract.Turn{
			ID:      strconv.Itoa(i),
			Role:    contract.RoleUser,
			Content: strconv.Itoa(i),
		})
		if err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	turns, err := store.History(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected history trimmed to 3, got %d", len(turns))
	}
	if turns[0].ID != "2" || turns[2].ID != "4" {
		t.Fatalf("expected oldest evicted first, got %s..%s", turns[0].ID, turns[2].ID)
	}
}

func TestInMemoryUserPartition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemory(0)

	if err := store.AppendTurn(ctx, "u1", "shared", contract.Turn{ID: "a", Role: contract.RoleUser}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := store.AddCase(ctx, "u1", contract.Case{ID: "c1", UserID: "u1", Signature: "kyoto trip"}); err != nil {
		t.Fatalf("AddCase() error = %v", err)
	}

	turns, _ := store.History(ctx, "u2", "shared")
	if len(turns) != 0 {
		t.Fatalf("u2 must not see u1 history, got %d turns", len(turns))
	}
	cases, _ := store.QueryCases(ctx, "u2", "kyoto trip", 5)
	if len(cases) != 0 {
		t.Fatalf("u2 must not see u1 cases, got %d", len(cases))
	}
}

func TestInMemoryClearHistoryKeepsCases(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemory(0)

	if err := store.AppendTurn(ctx, "u1", "s1", contract.Turn{ID: "a", Role: contract.RoleUser}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := store.AddCase(ctx, "u1", contract.Case{ID: "c1", UserID: "u1", Signature: "kyoto trip"}); err != nil {
		t.Fatalf("AddCase() error = %v", err)
	}
	if err := store.ClearHistory(ctx, "u1", "s1"); err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}

	turns, _ := store.History(ctx, "u1", "s1")
	if len(turns) != 0 {
		t.Fatalf("expected empty history, got %d", len(turns))
	}
	cases, _ := store.QueryCases(ctx, "u1", "kyoto trip", 5)
	if len(cases) != 1 {
		t.Fatalf("cases must survive a history clear, got %d", len(cases))
	}
}

func TestInMemoryCaseCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemory(0)

	for i := 0; i < MaxCasesPerUser+10; i++ {
		err := store.AddCase(ctx, "u1", contract.Case{
			ID:        strconv.Itoa(i),
			UserID:    "u1",
			Signature: "kyoto trip " + strconv.Itoa(i),
			CreatedAt: time.Unix(int64(i), 0),
		})
		if err != nil {
			t.Fatalf("AddCase() error = %v", err)
		}
	}

	cases, _ := store.QueryCases(ctx, "u1", "kyoto trip", MaxCasesPerUser+10)
	if len(cases) != MaxCasesPerUser {
		t.Fatalf("expected cap at %d, got %d", MaxCasesPerUser, len(cases))
	}
	for _, c := range cases {
		if c.ID == "0" {
			t.Fatalf("oldest case must have been evicted")
		}
	}
}

func TestInMemoryDeleteCase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewInMemory(0)

	if err := store.AddCase(ctx, "u1", contract.Case{ID: "c1", UserID: "u1", Signature: "kyoto"}); err != nil {
		t.Fatalf("AddCase() error = %v", err)
	}
	if err := store.DeleteCase(ctx, "u1", "c1"); err != nil {
		t.Fatalf("DeleteCase() error = %v", err)
	}
	if err := store.DeleteCase(ctx, "u1", "c1"); !errors.Is(err, ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestRankCases(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cases := []contract.Case{
		{ID: "old", Signature: "kyoto plan trip", CreatedAt: now.Add(-time.Hour)},
		{ID: "new", Signature: "kyoto plan trip", CreatedAt: now},
		{ID: "weak", Signature: "kyoto hotel", CreatedAt: now},
		{ID: "miss", Signature: "berlin museum", CreatedAt: now},
	}

	got := rankCases(cases, "kyoto plan trip", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(got))
	}
	if got[0].ID != "new" {
		t.Fatalf("ties must prefer newer cases, got %s", got[0].ID)
	}
	if got[1].ID != "old" {
		t.Fatalf("expected second exact match, got %s", got[1].ID)
	}

	got = rankCases(cases, "berlin museum", 5)
	if len(got) != 1 || got[0].ID != "miss" {
		t.Fatalf("unexpected ranking: %+v", got)
	}

	if rankCases(cases, "zagreb", 5) != nil {
		t.Fatalf("no overlap must return nil")
	}
}

type flakyStore struct {
	*InMemory
	failAppend bool
	appends    int
}

func (s *flakyStore) AppendTurn(ctx context.Context, userID, sessionID string, turn contract.Turn) error {
	s.appends++
	if s.failAppend {
		return fmt.Errorf("%w: primary down", contract.ErrMemoryStore)
	}
	return s.InMemory.AppendTurn(ctx, userID, sessionID, turn)
}

func TestFallbackDegradesOnPrimaryFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := &flakyStore{InMemory: NewInMemory(0), failAppend: true}
	fb := NewFallback(primary)

	if err := fb.AppendTurn(ctx, "u1", "s1", contract.Turn{ID: "a", Role: contract.RoleUser}); err != nil {
		t.Fatalf("AppendTurn() must not fail the turn, got %v", err)
	}
	if !fb.Degraded() {
		t.Fatalf("expected degraded state after primary failure")
	}

	turns, err := fb.History(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 1 || turns[0].ID != "a" {
		t.Fatalf("shadow must hold the turn, got %+v", turns)
	}

	// Case writes are dropped, never surfaced as turn failures.
	if err := fb.AddCase(ctx, "u1", contract.Case{ID: "c1"}); err != nil {
		t.Fatalf("AddCase() while degraded must be silent, got %v", err)
	}
	cases, _ := primary.QueryCases(ctx, "u1", "", 5)
	if len(cases) != 0 {
		t.Fatalf("degraded case write must not reach the primary")
	}
}

func TestFallbackPassthroughWhenHealthy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := NewInMemory(0)
	fb := NewFallback(primary)

	if err := fb.AppendTurn(ctx, "u1", "s1", contract.Turn{ID: "a", Role: contract.RoleUser}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if fb.Degraded() {
		t.Fatalf("healthy primary must not degrade")
	}
	turns, _ := primary.History(ctx, "u1", "s1")
	if len(turns) != 1 {
		t.Fatalf("turn must land in the primary, got %d", len(turns))
	}
}
