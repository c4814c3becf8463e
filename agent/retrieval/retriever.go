package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// KeywordIndex is an in-process retriever ranking passages by token
// overlap with the query. How passages are embedded or indexed externally
// is out of scope; this index serves as the default local knowledge base
// and as the reference implementation of the retrieval contract.
type KeywordIndex struct {
	mu       sync.RWMutex
	passages []indexed
}

type indexed struct {
	passage contract.Passage
	tokens  map[string]struct{}
}

func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{}
}

// Add indexes one passage.
func (i *KeywordIndex) Add(source, text string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.passages = append(i.passages, indexed{
		passage: contract.Passage{Source: source, Text: text},
		tokens:  tokenSet(text),
	})
}

func (i *KeywordIndex) Query(ctx context.Context, text string, k int) ([]contract.Passage, error) {
	if k <= 0 {
		return nil, nil
	}
	query := tokenSet(text)
	if len(query) == 0 {
		return nil, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	scored := make([]contract.Passage, 0, len(i.passages))
	for _, entry := range i.passages {
		overlap := 0
		for tok := range query {
			if _, ok := entry.tokens[tok]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		p := entry.passage
		p.Score = float64(overlap) / float64(len(query))
		scored = append(scored, p)
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range fields {
		set[tok] = struct{}{}
	}
	return set
}

var _ contract.Retriever = (*KeywordIndex)(nil)
