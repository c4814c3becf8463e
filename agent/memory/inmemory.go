package memory

import (
	"context"
	"sync"

	"github.com/wayfarerlabs/wayfarer/agent/contract"

	sessionx "github.com/wayfarerlabs/wayfarer/agent/session"
)

// InMemory is the reference Store: mutex-guarded maps, strict per-user
// partitioning, FIFO history trimming inside AppendTurn.
type InMemory struct {
	mu       sync.RWMutex
	maxTurns int
	history  map[string][]contract.Turn // keyed by user/session
	cases    map[string][]contract.Case // keyed by user, append order
}

// NewInMemory creates a store bounding each session history at maxTurns.
// maxTurns <= 0 means unbounded.
func NewInMemory(maxTurns int) *InMemory {
	return &InMemory{
		maxTurns: maxTurns,
		history:  make(map[string][]contract.Turn),
		cases:    make(map[string][]contract.Case),
	}
}

func (s *InMemory) AppendTurn(ctx context.Context, userID, sessionID string, turn contract.Turn) error {
	key := sessionx.Key(userID, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.history[key], turn)
	if s.maxTurns > 0 && len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.history[key] = turns
	return nil
}

func (s *InMemory) History(ctx context.Context, userID, sessionID string) ([]contract.Turn, error) {
	key := sessionx.Key(userID, sessionID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.history[key]
	out := make([]contract.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemory) ClearHistory(ctx context.Context, userID, sessionID string) error {
	key := sessionx.Key(userID, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[key] = nil
	return nil
}

func (s *InMemory) DeleteSession(ctx context.Context, userID, sessionID string) error {
	key := sessionx.Key(userID, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, key)
	return nil
}

func (s *InMemory) AddCase(ctx context.Context, userID string, c contract.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cases := append(s.cases[userID], c)
	if len(cases) > MaxCasesPerUser {
		cases = cases[len(cases)-MaxCasesPerUser:]
	}
	s.cases[userID] = cases
	return nil
}

func (s *InMemory) QueryCases(ctx context.Context, userID, signature string, k int) ([]contract.Case, error) {
	s.mu.RLock()
	cases := make([]contract.Case, len(s.cases[userID]))
	copy(cases, s.cases[userID])
	s.mu.RUnlock()

	return rankCases(cases, signature, k), nil
}

func (s *InMemory) DeleteCase(ctx context.Context, userID, caseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cases := s.cases[userID]
	for i, c := range cases {
		if c.ID == caseID {
			s.cases[userID] = append(cases[:i:i], cases[i+1:]...)
			return nil
		}
	}
	return ErrCaseNotFound
}

var _ Store = (*InMemory)(nil)
