package prompt

import (
	"strings"
	"testing"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

func TestBuildSystemPlain(t *testing.T) {
	t.Parallel()

	got := BuildSystem(nil, nil)
	if got != System() {
		t.Fatalf("without context the system turn must be the base prompt")
	}
	if strings.Contains(got, "Similar solved requests") {
		t.Fatalf("empty case list must not add a section")
	}
}

func TestBuildSystemSections(t *testing.T) {
	t.Parallel()

	got := BuildSystem(
		[]contract.Case{{Signature: "kyoto plan trip", Solution: "Took the Haruka express."}},
		[]contract.Passage{{Source: "kyoto.md", Text: "Temples open at dawn."}},
	)
	if !strings.Contains(got, "Took the Haruka express.") {
		t.Fatalf("case solution missing:\n%s", got)
	}
	if !strings.Contains(got, "[kyoto.md] Temples open at dawn.") {
		t.Fatalf("passage missing:\n%s", got)
	}
}

func TestAssembleOrder(t *testing.T) {
	t.Parallel()

	history := []contract.Turn{
		{Role: contract.RoleUser, Content: "earlier question"},
		{Role: contract.RoleAssistant, Content: "earlier answer"},
	}
	msgs := Assemble("sys", history, "new question")

	if len(msgs) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(msgs))
	}
	if msgs[0].Role != contract.RoleSystem || msgs[0].Content != "sys" {
		t.Fatalf("system turn must come first")
	}
	if msgs[3].Role != contract.RoleUser || msgs[3].Content != "new question" {
		t.Fatalf("pending user message must come last")
	}
}
