package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
	openaisdk "github.com/openai/openai-go/v2"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// buildTools converts tool contracts to the wire-level function tool params.
func buildTools(infos []*schema.ToolInfo) ([]openaisdk.ChatCompletionToolUnionParam, error) {
	tools := make([]openaisdk.ChatCompletionToolUnionParam, 0, len(infos))
	for _, info := range infos {
		def := openaisdk.FunctionDefinitionParam{
			Name:        info.Name,
			Description: openaisdk.String(info.Desc),
		}
		if info.ParamsOneOf != nil {
			openAPIV3, err := info.ParamsOneOf.ToOpenAPIV3()
			if err != nil {
				return nil, fmt.Errorf("tool %s: convert params: %w", info.Name, err)
			}
			raw, err := json.Marshal(openAPIV3)
			if err != nil {
				return nil, fmt.Errorf("tool %s: marshal params: %w", info.Name, err)
			}
			params := openaisdk.FunctionParameters{}
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, fmt.Errorf("tool %s: decode params: %w", info.Name, err)
			}
			def.Parameters = params
		}
		tools = append(tools, openaisdk.ChatCompletionFunctionTool(def))
	}
	return tools, nil
}

// buildMessages maps conversation turns onto chat completion messages.
// Tool observation turns carry the originating call id so the model can
// match each result to its request.
func buildMessages(history []contract.Turn) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case contract.RoleSystem:
			msgs = append(msgs, openaisdk.SystemMessage(turn.Content))
		case contract.RoleUser:
			msgs = append(msgs, openaisdk.UserMessage(turn.Content))
		case contract.RoleAssistant:
			if turn.ToolCall != nil {
				msg, err := assistantToolCallMessage(turn)
				if err != nil {
					return nil, err
				}
				msgs = append(msgs, msg)
				continue
			}
			msgs = append(msgs, openaisdk.AssistantMessage(turn.Content))
		case contract.RoleTool:
			if turn.ToolCall == nil {
				return nil, fmt.Errorf("%w: tool turn without call record", contract.ErrValidation)
			}
			msgs = append(msgs, openaisdk.ToolMessage(turn.Content, turn.ToolCall.ID))
		default:
			return nil, fmt.Errorf("%w: unknown turn role %q", contract.ErrValidation, turn.Role)
		}
	}
	return msgs, nil
}

func assistantToolCallMessage(turn contract.Turn) (openaisdk.ChatCompletionMessageParamUnion, error) {
	args, err := json.Marshal(turn.ToolCall.Args)
	if err != nil {
		return openaisdk.ChatCompletionMessageParamUnion{}, fmt.Errorf("marshal tool args for %s: %w", turn.ToolCall.Tool, err)
	}

	asst := openaisdk.ChatCompletionAssistantMessageParam{
		ToolCalls: []openaisdk.ChatCompletionMessageToolCallUnionParam{{
			OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
				ID: turn.ToolCall.ID,
				Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      turn.ToolCall.Tool,
					Arguments: string(args),
				},
			},
		}},
	}
	if turn.Content != "" {
		asst.Content.OfString = openaisdk.String(turn.Content)
	}
	return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil
}
