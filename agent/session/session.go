package session

import (
	"strings"
	"sync"
	"time"
)

// Session tracks the per-conversation flags the orchestrator needs between
// turns. Turn history itself lives in the memory store; a Session only
// carries identity, the reasoning-mode flag, and the last-activity stamp.
type Session struct {
	ID            string
	UserID        string
	DeepReasoning bool
	LastActivity  time.Time
}

// Key identifies a session across users. User and session identifiers are
// always explicit; two users may reuse the same session id without sharing
// anything.
func Key(userID, sessionID string) string {
	return userID + "/" + sessionID
}

// Tracker owns the live Session set and serializes turns per session.
// Turns of different sessions run fully in parallel; turns of the same
// session never overlap.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
	now      func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

// Acquire returns the session (creating it on first use) and its turn lock.
// The caller holds the lock for the duration of one turn.
func (t *Tracker) Acquire(userID, sessionID string) (*Session, *sync.Mutex) {
	key := Key(userID, sessionID)

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[key]
	if !ok {
		s = &Session{ID: sessionID, UserID: userID, LastActivity: t.now().UTC()}
		t.sessions[key] = s
	}
	lock, ok := t.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[key] = lock
	}
	return s, lock
}

// Touch records session activity.
func (t *Tracker) Touch(userID, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[Key(userID, sessionID)]; ok {
		s.LastActivity = t.now().UTC()
	}
}

// SetReasoningMode flips the deep-reasoning flag. The new value is read at
// the start of the next planning phase; an in-flight gateway call is never
// interrupted.
func (t *Tracker) SetReasoningMode(userID, sessionID string, deep bool) {
	key := Key(userID, sessionID)

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[key]
	if !ok {
		s = &Session{ID: sessionID, UserID: userID, LastActivity: t.now().UTC()}
		t.sessions[key] = s
	}
	s.DeepReasoning = deep
}

// ReasoningMode reports the current flag; false for unknown sessions.
func (t *Tracker) ReasoningMode(userID, sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[Key(userID, sessionID)]; ok {
		return s.DeepReasoning
	}
	return false
}

// Remove destroys the in-process session record. Persisted history removal
// is the memory store's job.
func (t *Tracker) Remove(userID, sessionID string) {
	key := Key(userID, sessionID)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, key)
	delete(t.locks, key)
}

// Valid reports whether both identifiers are usable.
func Valid(userID, sessionID string) bool {
	return strings.TrimSpace(userID) != "" && strings.TrimSpace(sessionID) != ""
}
