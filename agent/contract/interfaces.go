package contract

import "context"

// Gateway abstracts the inference backends. Invoke returns a stream of
// events for one model call; the channel is closed when the call completes.
type Gateway interface {
	Invoke(ctx context.Context, backend BackendID, history []Turn) (<-chan GatewayEvent, error)
}

// Retriever is the knowledge-base lookup consumed during planning,
// independent of case retrieval.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]Passage, error)
}

// CasePolicy decides whether a completed turn is worth persisting
// as a long-term case.
type CasePolicy interface {
	ShouldPersist(outcome TurnOutcome) bool
}

// ArtifactNotifier is told about newly generated artifacts so the
// presentation layer can pick them up. Best effort; failures are logged.
type ArtifactNotifier interface {
	NotifyArtifact(ctx context.Context, userID, sessionID string, artifact Artifact) error
}
