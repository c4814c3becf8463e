package memory

import (
	"sort"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// rankCases orders a user's cases by signature similarity and returns the
// top k with any similarity at all. Fewer than k is fine.
func rankCases(cases []contract.Case, signature string, k int) []contract.Case {
	if k <= 0 || len(cases) == 0 {
		return nil
	}

	type scored struct {
		c     contract.Case
		score float64
	}
	ranked := make([]scored, 0, len(cases))
	for _, c := range cases {
		score := Similarity(c.Signature, signature)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{c: c, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].c.CreatedAt.After(ranked[j].c.CreatedAt)
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]contract.Case, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.c)
	}
	return out
}
