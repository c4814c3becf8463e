package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
	"github.com/wayfarerlabs/wayfarer/agent/memory"
	"github.com/wayfarerlabs/wayfarer/agent/stream"
)

// turnInput is what one HandleMessage call feeds the graph. The fallback
// store and the mux are per turn; everything else on the Orchestrator is
// shared across turns.
type turnInput struct {
	userID    string
	sessionID string
	text      string
	now       time.Time

	store *memory.Fallback
	mux   *stream.Mux
}

type turnResult struct {
	Answer string
}

// turnState flows along the graph edges.
type turnState struct {
	turnInput

	signature string
	history   []contract.Turn
	cases     []contract.Case
	passages  []contract.Passage
	system    string

	outcome contract.TurnOutcome
}

func (o *Orchestrator) compileTurnGraph(ctx context.Context) (compose.Runnable[turnInput, turnResult], error) {
	graph := compose.NewGraph[turnInput, turnResult]()

	if err := graph.AddLambdaNode("load_context",
		compose.InvokableLambda(func(ctx context.Context, in turnInput) (*turnState, error) {
			return o.loadContext(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_context: %w", err)
	}

	if err := graph.AddLambdaNode("run_loop",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return o.runLoop(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_loop: %w", err)
	}

	if err := graph.AddLambdaNode("persist_outcome",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return o.persistOutcome(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node persist_outcome: %w", err)
	}

	if err := graph.AddLambdaNode("finalize",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (turnResult, error) {
			return turnResult{Answer: in.outcome.Answer}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize: %w", err)
	}

	edges := [][2]string{
		{compose.START, "load_context"},
		{"load_context", "run_loop"},
		{"run_loop", "persist_outcome"},
		{"persist_outcome", "finalize"},
		{"finalize", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
