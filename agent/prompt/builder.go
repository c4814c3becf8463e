package prompt

import (
	"fmt"
	"strings"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// BuildSystem assembles the system turn for one model call: the base
// prompt, then prior solved cases from long-term memory, then knowledge
// base passages retrieved for the current question. Both sections are
// omitted when empty so routine requests pay no prompt overhead.
func BuildSystem(cases []contract.Case, passages []contract.Passage) string {
	var b strings.Builder
	b.WriteString(System())

	if len(cases) > 0 {
		b.WriteString("\n\n## Similar solved requests\n")
		b.WriteString("Earlier requests from this user and how they were resolved. Reuse what fits; do not repeat verbatim.\n")
		for _, c := range cases {
			fmt.Fprintf(&b, "\n- Request: %s\n  Resolution: %s\n", c.Signature, c.Solution)
		}
	}

	if len(passages) > 0 {
		b.WriteString("\n\n## Reference material\n")
		for _, p := range passages {
			fmt.Fprintf(&b, "\n[%s] %s\n", p.Source, p.Text)
		}
	}

	return b.String()
}

// Assemble builds the full message sequence for a model call: system turn,
// bounded conversation history, then the pending user message. History is
// already trimmed by the memory store; this only prepends and appends.
func Assemble(system string, history []contract.Turn, userText string) []contract.Turn {
	msgs := make([]contract.Turn, 0, len(history)+2)
	msgs = append(msgs, contract.Turn{Role: contract.RoleSystem, Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, contract.Turn{Role: contract.RoleUser, Content: userText})
	return msgs
}
