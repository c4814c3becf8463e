package orchestrator

import (
	"strings"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// DefaultPolicy persists a case when the turn produced a real answer and at
// least one tool round succeeded. Pure chit-chat turns and turns where every
// round failed teach nothing worth recalling.
type DefaultPolicy struct{}

func (DefaultPolicy) ShouldPersist(o contract.TurnOutcome) bool {
	if strings.TrimSpace(o.Answer) == "" {
		return false
	}
	return o.ToolRounds > o.FailedRounds
}

var _ contract.CasePolicy = DefaultPolicy{}
