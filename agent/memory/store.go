package memory

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

var (
	ErrCaseNotFound = errors.New("case not found")
)

// MaxCasesPerUser caps long-term memory; the oldest case is evicted first.
const MaxCasesPerUser = 100

// Store is the dual-tier memory contract. Short-term turn history is keyed
// by user and session; long-term cases are keyed by user only. Operations
// on one user's data must never observe or mutate another user's data, and
// a single AppendTurn or AddCase is atomic with respect to concurrent
// callers on the same key.
type Store interface {
	AppendTurn(ctx context.Context, userID, sessionID string, turn contract.Turn) error
	History(ctx context.Context, userID, sessionID string) ([]contract.Turn, error)
	ClearHistory(ctx context.Context, userID, sessionID string) error
	DeleteSession(ctx context.Context, userID, sessionID string) error

	AddCase(ctx context.Context, userID string, c contract.Case) error
	QueryCases(ctx context.Context, userID, signature string, k int) ([]contract.Case, error)
	DeleteCase(ctx context.Context, userID, caseID string) error
}

// Fallback wraps a persistent store for the duration of one turn. When the
// primary fails, history operations degrade to an in-memory shadow seeded
// lazily from whatever the turn has written so far, and case writes are
// skipped with a log line. The turn itself never fails on memory errors.
type Fallback struct {
	primary  Store
	shadow   Store
	degraded bool
}

func NewFallback(primary Store) *Fallback {
	return &Fallback{primary: primary, shadow: NewInMemory(0)}
}

// Degraded reports whether the primary has failed during this turn.
func (f *Fallback) Degraded() bool { return f.degraded }

func (f *Fallback) AppendTurn(ctx context.Context, userID, sessionID string, turn contract.Turn) error {
	if !f.degraded {
		err := f.primary.AppendTurn(ctx, userID, sessionID, turn)
		if err == nil {
			return nil
		}
		f.degrade(userID, sessionID, err)
	}
	return f.shadow.AppendTurn(ctx, userID, sessionID, turn)
}

func (f *Fallback) History(ctx context.Context, userID, sessionID string) ([]contract.Turn, error) {
	if !f.degraded {
		turns, err := f.primary.History(ctx, userID, sessionID)
		if err == nil {
			return turns, nil
		}
		f.degrade(userID, sessionID, err)
	}
	return f.shadow.History(ctx, userID, sessionID)
}

func (f *Fallback) ClearHistory(ctx context.Context, userID, sessionID string) error {
	if f.degraded {
		return f.shadow.ClearHistory(ctx, userID, sessionID)
	}
	return f.primary.ClearHistory(ctx, userID, sessionID)
}

func (f *Fallback) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if f.degraded {
		return f.shadow.DeleteSession(ctx, userID, sessionID)
	}
	return f.primary.DeleteSession(ctx, userID, sessionID)
}

func (f *Fallback) AddCase(ctx context.Context, userID string, c contract.Case) error {
	if f.degraded {
		log.Warn().Str("user_id", userID).Msg("memory degraded, skipping case write")
		return nil
	}
	if err := f.primary.AddCase(ctx, userID, c); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("case write failed, skipping")
	}
	return nil
}

func (f *Fallback) QueryCases(ctx context.Context, userID, signature string, k int) ([]contract.Case, error) {
	if f.degraded {
		return nil, nil
	}
	cases, err := f.primary.QueryCases(ctx, userID, signature, k)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("case query failed, continuing without cases")
		return nil, nil
	}
	return cases, nil
}

func (f *Fallback) DeleteCase(ctx context.Context, userID, caseID string) error {
	return f.primary.DeleteCase(ctx, userID, caseID)
}

func (f *Fallback) degrade(userID, sessionID string, err error) {
	f.degraded = true
	log.Error().Err(err).
		Str("user_id", userID).
		Str("session_id", sessionID).
		Msg("memory store unavailable, degrading to in-memory for this turn")
}
