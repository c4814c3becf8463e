package gateway

import (
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

func TestBuildMessagesRoles(t *testing.T) {
	t.Parallel()

	call := &contract.ToolCall{
		ID:     "call-1",
		Tool:   "maps.geocode",
		Args:   map[string]any{"address": "Kyoto"},
		Status: contract.ToolCallSucceeded,
	}
	history := []contract.Turn{
		{Role: contract.RoleSystem, Content: "system prompt"},
		{Role: contract.RoleUser, Content: "where is Kyoto"},
		{Role: contract.RoleAssistant, ToolCall: call},
		{Role: contract.RoleTool, Content: `{"location":"135.7,35.0"}`, ToolCall: call},
		{Role: contract.RoleAssistant, Content: "Kyoto is in Kansai."},
	}

	msgs, err := buildMessages(history)
	if err != nil {
		t.Fatalf("buildMessages() error = %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	if msgs[0].OfSystem == nil {
		t.Fatalf("expected system message first")
	}
	if msgs[1].OfUser == nil {
		t.Fatalf("expected user message second")
	}
	if msgs[2].OfAssistant == nil || len(msgs[2].OfAssistant.ToolCalls) != 1 {
		t.Fatalf("expected assistant tool-call message third")
	}
	if msgs[3].OfTool == nil || msgs[3].OfTool.ToolCallID != "call-1" {
		t.Fatalf("tool message must carry the originating call id")
	}
	if msgs[4].OfAssistant == nil {
		t.Fatalf("expected final assistant message")
	}
}

func TestBuildMessagesRejectsOrphanToolTurn(t *testing.T) {
	t.Parallel()

	_, err := buildMessages([]contract.Turn{
		{Role: contract.RoleTool, Content: "result"},
	})
	if !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBuildTools(t *testing.T) {
	t.Parallel()

	infos := []*schema.ToolInfo{
		{
			Name: "web.search",
			Desc: "Search the web.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Required: true},
			}),
		},
		{Name: "noop", Desc: "No parameters."},
	}

	tools, err := buildTools(infos)
	if err != nil {
		t.Fatalf("buildTools() error = %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	fn := tools[0].GetFunction()
	if fn == nil || fn.Name != "web.search" {
		t.Fatalf("unexpected first tool: %+v", tools[0])
	}
	if fn.Parameters == nil {
		t.Fatalf("parameter schema must be carried over")
	}
}

func TestConfigModelFor(t *testing.T) {
	t.Parallel()

	cfg := Config{FastModel: "fast-1", DeepModel: "deep-1", APIKey: "k"}
	if cfg.ModelFor(contract.BackendFast) != "fast-1" {
		t.Fatalf("fast backend must select the fast model")
	}
	if cfg.ModelFor(contract.BackendDeep) != "deep-1" {
		t.Fatalf("deep backend must select the deep model")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := (Config{FastModel: "f", DeepModel: "d"}).Validate(); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("missing api key must fail validation, got %v", err)
	}
}
