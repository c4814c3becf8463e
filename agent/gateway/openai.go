package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog/log"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// OpenAI streams chat completions from an OpenAI-compatible endpoint and
// maps them onto the gateway event union. One Invoke is one model call;
// the returned channel closes when the call completes.
type OpenAI struct {
	client openaisdk.Client
	cfg    Config
	tools  []openaisdk.ChatCompletionToolUnionParam
}

func NewOpenAI(cfg Config, toolInfos []*schema.ToolInfo) (*OpenAI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	tools, err := buildTools(toolInfos)
	if err != nil {
		return nil, err
	}

	return &OpenAI{
		client: openaisdk.NewClient(opts...),
		cfg:    cfg,
		tools:  tools,
	}, nil
}

func (g *OpenAI) Invoke(ctx context.Context, backend contract.BackendID, history []contract.Turn) (<-chan contract.GatewayEvent, error) {
	msgs, err := buildMessages(history)
	if err != nil {
		return nil, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:       g.cfg.ModelFor(backend),
		Messages:    msgs,
		Temperature: openaisdk.Float(g.cfg.Temperature),
	}
	if g.cfg.MaxCompletionTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(g.cfg.MaxCompletionTokens))
	}
	if len(g.tools) > 0 {
		params.Tools = g.tools
	}

	out := make(chan contract.GatewayEvent, 32)
	go g.stream(ctx, params, out)
	return out, nil
}

type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

func (g *OpenAI) stream(ctx context.Context, params openaisdk.ChatCompletionNewParams, out chan<- contract.GatewayEvent) {
	defer close(out)

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	// Transport-level retries only apply before anything was emitted;
	// once deltas have flowed, a retry would duplicate output.
	var lastErr error
	for attempt := 0; attempt <= g.cfg.Retries; attempt++ {
		emitted, err := g.streamOnce(callCtx, params, out)
		if err == nil {
			return
		}
		lastErr = err
		if emitted || callCtx.Err() != nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Str("model", params.Model).
			Msg("gateway call failed, retrying")
	}
	// The terminal error goes out on the caller's context: the call context
	// may already be expired, and that expiry is exactly what is reported.
	emit(ctx, out, contract.GatewayEvent{
		Err: fmt.Errorf("%w: %v", contract.ErrGatewayFailure, lastErr),
	})
}

func (g *OpenAI) streamOnce(ctx context.Context, params openaisdk.ChatCompletionNewParams, out chan<- contract.GatewayEvent) (bool, error) {
	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	emitted := false
	pending := make(map[int64]*pendingToolCall)

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			emitted = true
			if !emit(ctx, out, contract.GatewayEvent{Delta: delta.Content}) {
				return emitted, ctx.Err()
			}
		}

		for _, tc := range delta.ToolCalls {
			call, ok := pending[tc.Index]
			if !ok {
				call = &pendingToolCall{}
				pending[tc.Index] = call
			}
			if tc.ID != "" {
				call.id = tc.ID
			}
			if tc.Function.Name != "" {
				call.name = tc.Function.Name
			}
			call.args.WriteString(tc.Function.Arguments)
		}
	}
	if err := stream.Err(); err != nil {
		return emitted, err
	}

	// A completed stream with accumulated tool-call deltas is a structured
	// tool request; the turn re-enters planning after the observation.
	for i := int64(0); int(i) < len(pending); i++ {
		call, ok := pending[i]
		if !ok || call.name == "" {
			continue
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(call.args.String()); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return true, fmt.Errorf("invalid tool arguments for %s: %w", call.name, err)
			}
		}
		emitted = true
		if !emit(ctx, out, contract.GatewayEvent{ToolCall: &contract.ToolRequest{
			ID:   call.id,
			Tool: call.name,
			Args: args,
		}}) {
			return emitted, ctx.Err()
		}
	}
	return emitted, nil
}

func emit(ctx context.Context, out chan<- contract.GatewayEvent, ev contract.GatewayEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ contract.Gateway = (*OpenAI)(nil)
