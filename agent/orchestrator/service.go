package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
	"github.com/wayfarerlabs/wayfarer/agent/memory"
	"github.com/wayfarerlabs/wayfarer/agent/session"
	"github.com/wayfarerlabs/wayfarer/agent/stream"
	"github.com/wayfarerlabs/wayfarer/agent/tool"
)

// Config bounds one turn of the control loop.
type Config struct {
	MaxToolDepth int `envconfig:"MAX_TOOL_DEPTH" split_words:"true" default:"6"`
	CaseTopK     int `envconfig:"CASE_TOP_K" split_words:"true" default:"3"`
	PassageTopK  int `envconfig:"PASSAGE_TOP_K" split_words:"true" default:"3"`
	StreamBuffer int `envconfig:"STREAM_BUFFER" split_words:"true" default:"64"`
}

func (c *Config) normalize() {
	if c.MaxToolDepth <= 0 {
		c.MaxToolDepth = 6
	}
	if c.CaseTopK <= 0 {
		c.CaseTopK = 3
	}
	if c.PassageTopK <= 0 {
		c.PassageTopK = 3
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = 64
	}
}

// Orchestrator drives the conversational control loop: one HandleMessage
// call is one turn, streamed back to the caller as ordered events. Turns of
// the same session are serialized; different sessions run in parallel.
type Orchestrator struct {
	cfg        Config
	gateway    contract.Gateway
	dispatcher *tool.Dispatcher
	store      memory.Store
	retriever  contract.Retriever
	policy     contract.CasePolicy
	notifier   contract.ArtifactNotifier
	sessions   *session.Tracker

	graphRunner compose.Runnable[turnInput, turnResult]

	mu           sync.Mutex
	fingerprints map[string]*stream.Fingerprints

	now func() time.Time
}

func New(
	gateway contract.Gateway,
	dispatcher *tool.Dispatcher,
	store memory.Store,
	retriever contract.Retriever,
	notifier contract.ArtifactNotifier,
	cfg Config,
) (*Orchestrator, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if dispatcher == nil {
		return nil, errors.New("tool dispatcher is required")
	}
	if store == nil {
		return nil, errors.New("memory store is required")
	}
	cfg.normalize()

	o := &Orchestrator{
		cfg:          cfg,
		gateway:      gateway,
		dispatcher:   dispatcher,
		store:        store,
		retriever:    retriever,
		policy:       DefaultPolicy{},
		notifier:     notifier,
		sessions:     session.NewTracker(),
		fingerprints: make(map[string]*stream.Fingerprints),
		now:          time.Now,
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// SetPolicy swaps the case-persistence policy. Not safe to call after
// turns have started.
func (o *Orchestrator) SetPolicy(p contract.CasePolicy) {
	if p != nil {
		o.policy = p
	}
}

// HandleMessage runs one turn. Validation errors are returned synchronously;
// everything after that arrives on the event channel, which is closed after
// a terminal done or error event.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, sessionID, text string) (<-chan contract.StreamEvent, error) {
	if err := validateIDs(userID, sessionID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, contract.ErrInvalidMessage
	}

	_, lock := o.sessions.Acquire(userID, sessionID)

	mux := stream.New(ctx, o.fingerprintsFor(userID, sessionID), o.cfg.StreamBuffer, func(a contract.Artifact) {
		o.notifyArtifact(ctx, userID, sessionID, a)
	})

	go func() {
		lock.Lock()
		defer lock.Unlock()

		o.sessions.Touch(userID, sessionID)
		_, err := o.graphRunner.Invoke(ctx, turnInput{
			userID:    userID,
			sessionID: sessionID,
			text:      text,
			now:       o.now().UTC(),
			store:     memory.NewFallback(o.store),
			mux:       mux,
		})
		if err != nil {
			log.Error().Err(err).
				Str("user_id", userID).
				Str("session_id", sessionID).
				Msg("turn failed")
			mux.Fail(err)
			return
		}
		mux.Done()
	}()

	return mux.Events(), nil
}

// SetReasoningMode flips the session's backend between fast and deep
// reasoning. Takes effect at the next planning phase, never mid-call.
func (o *Orchestrator) SetReasoningMode(userID, sessionID string, deep bool) error {
	if err := validateIDs(userID, sessionID); err != nil {
		return err
	}
	o.sessions.SetReasoningMode(userID, sessionID, deep)
	return nil
}

// ClearHistory wipes the session's short-term history. Long-term cases and
// the session itself survive.
func (o *Orchestrator) ClearHistory(ctx context.Context, userID, sessionID string) error {
	if err := validateIDs(userID, sessionID); err != nil {
		return err
	}
	return o.store.ClearHistory(ctx, userID, sessionID)
}

// DeleteSession removes the session record, its history, and its artifact
// dedup state. Cases are user-scoped and unaffected.
func (o *Orchestrator) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if err := validateIDs(userID, sessionID); err != nil {
		return err
	}
	if err := o.store.DeleteSession(ctx, userID, sessionID); err != nil {
		return err
	}
	o.sessions.Remove(userID, sessionID)

	o.mu.Lock()
	delete(o.fingerprints, session.Key(userID, sessionID))
	o.mu.Unlock()
	return nil
}

// DeleteCase removes one long-term case for the user.
func (o *Orchestrator) DeleteCase(ctx context.Context, userID, caseID string) error {
	if strings.TrimSpace(userID) == "" {
		return contract.ErrInvalidUser
	}
	if strings.TrimSpace(caseID) == "" {
		return contract.ErrValidation
	}
	return o.store.DeleteCase(ctx, userID, caseID)
}

func (o *Orchestrator) fingerprintsFor(userID, sessionID string) *stream.Fingerprints {
	key := session.Key(userID, sessionID)

	o.mu.Lock()
	defer o.mu.Unlock()
	fp, ok := o.fingerprints[key]
	if !ok {
		fp = stream.NewFingerprints()
		o.fingerprints[key] = fp
	}
	return fp
}

func (o *Orchestrator) notifyArtifact(ctx context.Context, userID, sessionID string, a contract.Artifact) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.NotifyArtifact(ctx, userID, sessionID, a); err != nil {
		log.Warn().Err(err).
			Str("session_id", sessionID).
			Str("location", a.Location).
			Msg("artifact notification failed")
	}
}

func validateIDs(userID, sessionID string) error {
	if strings.TrimSpace(userID) == "" {
		return contract.ErrInvalidUser
	}
	if strings.TrimSpace(sessionID) == "" {
		return contract.ErrInvalidSession
	}
	return nil
}
