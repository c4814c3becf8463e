package retrieval

import (
	"context"
	"testing"
)

func TestQueryRanksByOverlap(t *testing.T) {
	t.Parallel()

	idx := NewKeywordIndex()
	idx.Add("kyoto.md", "Kyoto temples are best visited early morning before the crowds.")
	idx.Add("osaka.md", "Osaka street food centers on Dotonbori.")
	idx.Add("kyoto-food.md", "Kyoto food markets open in the morning.")

	got, err := idx.Query(context.Background(), "kyoto morning temples", 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if got[0].Source != "kyoto.md" {
		t.Fatalf("expected best match first, got %s", got[0].Source)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores must be descending: %v then %v", got[0].Score, got[1].Score)
	}
}

func TestQueryNoOverlap(t *testing.T) {
	t.Parallel()

	idx := NewKeywordIndex()
	idx.Add("kyoto.md", "Kyoto temples.")

	got, err := idx.Query(context.Background(), "reykjavik glaciers", 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no passages, got %d", len(got))
	}
}

func TestQueryEmptyInputs(t *testing.T) {
	t.Parallel()

	idx := NewKeywordIndex()
	idx.Add("kyoto.md", "Kyoto temples.")

	if got, _ := idx.Query(context.Background(), "kyoto", 0); got != nil {
		t.Fatalf("k=0 must return nothing")
	}
	if got, _ := idx.Query(context.Background(), "  ... ", 3); got != nil {
		t.Fatalf("empty query must return nothing")
	}
}
