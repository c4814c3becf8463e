package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

func testRegistry(t *testing.T, defs ...Definition) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			t.Fatalf("Register(%s) error = %v", def.Name, err)
		}
	}
	return reg
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	def := Definition{
		Name:    "lookup",
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	}
	if err := reg.Register(def); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := reg.Register(def); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("expected ErrValidation for duplicate, got %v", err)
	}
}

func TestRegistryInfosKeepOrder(t *testing.T) {
	t.Parallel()

	handler := func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }
	reg := testRegistry(t,
		Definition{Name: "b.second", Handler: handler},
		Definition{Name: "a.first", Handler: handler},
	)

	infos := reg.Infos()
	if len(infos) != 2 || infos[0].Name != "b.second" || infos[1].Name != "a.first" {
		t.Fatalf("infos must keep registration order, got %v", infos)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(NewRegistry())
	call := d.Dispatch(context.Background(), "s1", &contract.ToolCall{ID: "1", Tool: "nope"})

	if call.Status != contract.ToolCallFailed {
		t.Fatalf("expected failed, got %s", call.Status)
	}
	if call.Reason == "" {
		t.Fatalf("failure must carry a reason")
	}
}

func TestDispatchValidatesArgs(t *testing.T) {
	t.Parallel()

	invoked := false
	reg := testRegistry(t, Definition{
		Name: "geocode",
		Params: map[string]*schema.ParameterInfo{
			"address": {Type: schema.String, Required: true},
			"limit":   {Type: schema.Integer},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			invoked = true
			return nil, nil
		},
	})
	d := NewDispatcher(reg)

	// Missing required argument.
	call := d.Dispatch(context.Background(), "s1", &contract.ToolCall{Tool: "geocode", Args: map[string]any{}})
	if call.Status != contract.ToolCallFailed {
		t.Fatalf("expected failed for missing arg, got %s", call.Status)
	}

	// Unknown argument.
	call = d.Dispatch(context.Background(), "s1", &contract.ToolCall{
		Tool: "geocode",
		Args: map[string]any{"address": "kyoto", "bogus": 1},
	})
	if call.Status != contract.ToolCallFailed {
		t.Fatalf("expected failed for unknown arg, got %s", call.Status)
	}

	// Wrong type: JSON numbers arrive as float64; a fractional value is not
	// an integer.
	call = d.Dispatch(context.Background(), "s1", &contract.ToolCall{
		Tool: "geocode",
		Args: map[string]any{"address": "kyoto", "limit": 1.5},
	})
	if call.Status != contract.ToolCallFailed {
		t.Fatalf("expected failed for non-integer, got %s", call.Status)
	}

	if invoked {
		t.Fatalf("handler must never run on invalid input")
	}

	call = d.Dispatch(context.Background(), "s1", &contract.ToolCall{
		Tool: "geocode",
		Args: map[string]any{"address": "kyoto", "limit": 3.0},
	})
	if call.Status != contract.ToolCallSucceeded {
		t.Fatalf("expected success, got %s (%s)", call.Status, call.Reason)
	}
	if !invoked {
		t.Fatalf("handler should have run for valid input")
	}
}

func TestDispatchTimeout(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, Definition{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	d := NewDispatcher(reg)

	call := d.Dispatch(context.Background(), "s1", &contract.ToolCall{Tool: "slow"})
	if call.Status != contract.ToolCallTimedOut {
		t.Fatalf("expected timed_out, got %s (%s)", call.Status, call.Reason)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, Definition{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			panic("kaboom")
		},
	})
	d := NewDispatcher(reg)

	call := d.Dispatch(context.Background(), "s1", &contract.ToolCall{Tool: "boom"})
	if call.Status != contract.ToolCallFailed {
		t.Fatalf("expected failed after panic, got %s", call.Status)
	}
}

func TestDispatchRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	reg := testRegistry(t, Definition{
		Name:    "flaky",
		Retries: 2,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("transient")
			}
			return "ok", nil
		},
	})
	d := NewDispatcher(reg)

	call := d.Dispatch(context.Background(), "s1", &contract.ToolCall{Tool: "flaky"})
	if call.Status != contract.ToolCallSucceeded {
		t.Fatalf("expected success after retries, got %s (%s)", call.Status, call.Reason)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDefinitionInfo(t *testing.T) {
	t.Parallel()

	def := Definition{
		Name: "web.search",
		Desc: "Search the web.",
		Params: map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Required: true},
		},
	}
	info := def.Info()
	if info.Name != "web.search" || info.Desc != "Search the web." {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.ParamsOneOf == nil {
		t.Fatalf("params must be carried into the tool schema")
	}
}
