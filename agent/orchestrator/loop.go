package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
	"github.com/wayfarerlabs/wayfarer/agent/memory"
	"github.com/wayfarerlabs/wayfarer/agent/prompt"
)

// loadContext gathers everything planning needs: similar solved cases from
// long-term memory, knowledge passages for the question, and the bounded
// session history. The user turn is appended before planning starts so an
// aborted turn still records what was asked.
func (o *Orchestrator) loadContext(ctx context.Context, in turnInput) (*turnState, error) {
	st := &turnState{turnInput: in}
	st.signature = memory.Signature(in.text)

	st.cases, _ = in.store.QueryCases(ctx, in.userID, st.signature, o.cfg.CaseTopK)

	if o.retriever != nil {
		passages, err := o.retriever.Query(ctx, in.text, o.cfg.PassageTopK)
		if err != nil {
			log.Warn().Err(err).Str("session_id", in.sessionID).Msg("retrieval failed, planning without passages")
		} else {
			st.passages = passages
		}
	}

	history, err := in.store.History(ctx, in.userID, in.sessionID)
	if err != nil {
		return nil, err
	}
	st.history = history
	st.system = prompt.BuildSystem(st.cases, st.passages)

	if err := in.store.AppendTurn(ctx, in.userID, in.sessionID, contract.Turn{
		ID:        ulid.Make().String(),
		Role:      contract.RoleUser,
		Content:   in.text,
		CreatedAt: in.now,
	}); err != nil {
		return nil, err
	}

	return st, nil
}

// runLoop is the plan, act, observe cycle. Each round makes one gateway
// call with the backend selected by the session's current reasoning flag.
// A round that requests tools executes them, records both sides of the
// exchange, and re-plans; a round without tool requests is the answer.
func (o *Orchestrator) runLoop(ctx context.Context, st *turnState) (*turnState, error) {
	msgs := prompt.Assemble(st.system, st.history, st.text)

	for round := 0; ; round++ {
		backend := contract.BackendFor(o.sessions.ReasoningMode(st.userID, st.sessionID))

		requests, err := o.planRound(ctx, backend, msgs, st)
		if err != nil {
			return nil, err
		}

		if len(requests) == 0 {
			st.outcome = contract.TurnOutcome{
				Question:     st.text,
				Answer:       st.mux.Answer(),
				ToolRounds:   round,
				FailedRounds: st.outcome.FailedRounds,
			}
			answerTurn := contract.Turn{
				ID:        ulid.Make().String(),
				Role:      contract.RoleAssistant,
				Content:   st.outcome.Answer,
				CreatedAt: o.now().UTC(),
			}
			if err := st.store.AppendTurn(ctx, st.userID, st.sessionID, answerTurn); err != nil {
				return nil, err
			}
			return st, nil
		}

		if round >= o.cfg.MaxToolDepth {
			return nil, fmt.Errorf("%w: %d tool rounds", contract.ErrDepthExceeded, round)
		}

		roundFailed := false
		for _, req := range requests {
			call := o.executeCall(ctx, st, req)
			if call.Status != contract.ToolCallSucceeded {
				roundFailed = true
			}

			callTurn := contract.Turn{
				ID:        ulid.Make().String(),
				Role:      contract.RoleAssistant,
				ToolCall:  call,
				CreatedAt: o.now().UTC(),
			}
			observation := contract.Turn{
				ID:        ulid.Make().String(),
				Role:      contract.RoleTool,
				Content:   observationText(call),
				ToolCall:  call,
				CreatedAt: o.now().UTC(),
			}

			// Both sides of a completed round land together; an abort
			// between rounds never leaves a dangling call record.
			if err := st.store.AppendTurn(ctx, st.userID, st.sessionID, callTurn); err != nil {
				return nil, err
			}
			if err := st.store.AppendTurn(ctx, st.userID, st.sessionID, observation); err != nil {
				return nil, err
			}
			msgs = append(msgs, callTurn, observation)
		}
		if roundFailed {
			st.outcome.FailedRounds++
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// planRound makes one gateway call, forwarding content deltas to the mux
// and collecting structured tool requests.
func (o *Orchestrator) planRound(ctx context.Context, backend contract.BackendID, msgs []contract.Turn, st *turnState) ([]*contract.ToolRequest, error) {
	events, err := o.gateway.Invoke(ctx, backend, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrGatewayFailure, err)
	}

	var requests []*contract.ToolRequest
	for ev := range events {
		switch {
		case ev.Err != nil:
			return nil, ev.Err
		case ev.ToolCall != nil:
			requests = append(requests, ev.ToolCall)
		case ev.Delta != "":
			st.mux.Content(ev.Delta)
		}
	}
	return requests, nil
}

// executeCall runs one tool request through the dispatcher, announcing the
// invocation before and the resolution after.
func (o *Orchestrator) executeCall(ctx context.Context, st *turnState, req *contract.ToolRequest) *contract.ToolCall {
	id := req.ID
	if id == "" {
		id = ulid.Make().String()
	}
	call := &contract.ToolCall{
		ID:     id,
		Tool:   req.Tool,
		Args:   req.Args,
		Status: contract.ToolCallPending,
	}

	invoked := *call
	st.mux.ToolInvoked(&invoked)

	call = o.dispatcher.Dispatch(ctx, st.sessionID, call)
	st.mux.ToolResult(call)
	return call
}

// persistOutcome asks the policy whether this turn is worth a long-term
// case. Case writes never fail the turn; the fallback store logs and drops
// them when degraded.
func (o *Orchestrator) persistOutcome(ctx context.Context, st *turnState) (*turnState, error) {
	if o.policy == nil || !o.policy.ShouldPersist(st.outcome) {
		return st, nil
	}

	c := contract.Case{
		ID:        ulid.Make().String(),
		UserID:    st.userID,
		Signature: st.signature,
		Solution:  st.outcome.Answer,
		Success:   st.outcome.FailedRounds == 0,
		CreatedAt: o.now().UTC(),
	}
	if err := st.store.AddCase(ctx, st.userID, c); err != nil {
		log.Error().Err(err).Str("user_id", st.userID).Msg("case persistence failed")
	}
	return st, nil
}

// observationText renders a resolved call for the model: the JSON result on
// success, the failure reason otherwise.
func observationText(call *contract.ToolCall) string {
	if call.Status != contract.ToolCallSucceeded {
		return fmt.Sprintf("tool %s %s: %s", call.Tool, call.Status, call.Reason)
	}
	if text, ok := call.Result.(string); ok {
		return text
	}
	raw, err := json.Marshal(call.Result)
	if err != nil {
		return fmt.Sprintf("%v", call.Result)
	}
	return string(raw)
}
