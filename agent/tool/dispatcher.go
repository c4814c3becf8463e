package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

const defaultToolTimeout = 30 * time.Second

// Dispatcher executes tool calls against the registry. It always returns a
// completed ToolCall: validation errors, handler errors, timeouts, and
// panics all become a failure status with a human-readable reason. The
// orchestrator never sees an exception-shaped outcome.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch resolves one call. Arguments are validated against the tool's
// declared schema before the handler runs; invalid input never reaches the
// tool. The orchestrator serializes calls within a session, so a dispatcher
// is safely shared across sessions.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, call *contract.ToolCall) *contract.ToolCall {
	call.InvokedAt = time.Now().UTC()
	call.Status = contract.ToolCallPending

	def, ok := d.registry.Lookup(call.Tool)
	if !ok {
		call.Status = contract.ToolCallFailed
		call.Reason = fmt.Sprintf("tool %q is not registered", call.Tool)
		return call
	}

	if err := validateArgs(def.Params, call.Args); err != nil {
		call.Status = contract.ToolCallFailed
		call.Reason = err.Error()
		log.Debug().
			Str("session_id", sessionID).
			Str("tool", call.Tool).
			Str("reason", call.Reason).
			Msg("tool call rejected before invocation")
		return call
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}

	var (
		result any
		err    error
	)
	for attempt := 0; attempt <= def.Retries; attempt++ {
		result, err = d.invoke(ctx, def, call.Args, timeout)
		if err == nil {
			break
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			break
		}
	}

	switch {
	case err == nil:
		call.Status = contract.ToolCallSucceeded
		call.Result = result
	case errors.Is(err, context.DeadlineExceeded):
		call.Status = contract.ToolCallTimedOut
		call.Reason = fmt.Sprintf("tool %q timed out after %s", call.Tool, timeout)
	default:
		call.Status = contract.ToolCallFailed
		call.Reason = err.Error()
	}

	log.Debug().
		Str("session_id", sessionID).
		Str("tool", call.Tool).
		Str("status", string(call.Status)).
		Msg("tool call resolved")
	return call
}

func (d *Dispatcher) invoke(ctx context.Context, def Definition, args map[string]any, timeout time.Duration) (result any, err error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: tool=%s panicked: %v", contract.ErrToolFailure, def.Name, r)
		}
	}()

	result, err = def.Handler(callCtx, args)
	if err != nil && callCtx.Err() != nil {
		return nil, callCtx.Err()
	}
	return result, err
}

// validateArgs checks the argument mapping against the declared parameter
// schema: required fields present, no unknown fields, primitive types match.
func validateArgs(params map[string]*schema.ParameterInfo, args map[string]any) error {
	for name, info := range params {
		val, ok := args[name]
		if !ok {
			if info.Required {
				return fmt.Errorf("%w: missing required argument %q", contract.ErrValidation, name)
			}
			continue
		}
		if err := checkType(name, info.Type, val); err != nil {
			return err
		}
	}
	for name := range args {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("%w: unknown argument %q", contract.ErrValidation, name)
		}
	}
	return nil
}

func checkType(name string, want schema.DataType, val any) error {
	ok := true
	switch want {
	case schema.String:
		_, ok = val.(string)
	case schema.Boolean:
		_, ok = val.(bool)
	case schema.Number, schema.Integer:
		switch v := val.(type) {
		case float64:
			if want == schema.Integer && v != float64(int64(v)) {
				ok = false
			}
		case int, int64:
		default:
			ok = false
		}
	case schema.Array:
		_, ok = val.([]any)
	case schema.Object:
		_, ok = val.(map[string]any)
	}
	if !ok {
		return fmt.Errorf("%w: argument %q must be %s", contract.ErrValidation, name, want)
	}
	return nil
}
