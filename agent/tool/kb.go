package tool

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// RegisterKnowledgeTool exposes the retrieval service as a callable tool so
// the model can look up the knowledge base mid-plan, in addition to the
// passages injected during planning.
func RegisterKnowledgeTool(reg *Registry, retriever contract.Retriever, k int, timeout time.Duration) error {
	if k <= 0 {
		k = 3
	}

	return reg.Register(Definition{
		Name: "kb.search",
		Desc: "Search the local travel knowledge base for destination facts.",
		Params: map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "Knowledge base query", Required: true},
		},
		Timeout: timeout,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			passages, err := retriever.Query(ctx, args["query"].(string), k)
			if err != nil {
				return nil, err
			}
			return passages, nil
		},
	})
}
