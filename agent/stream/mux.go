package stream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

var (
	// Relative artifact paths under the well-known output directories.
	filePattern = regexp.MustCompile(`(?:artifacts|user_data)/[A-Za-z0-9_./\-]+\.(?:html|png|jpe?g|gif|svg)`)
	// Remote images referenced directly by the model or a tool result.
	httpImagePattern = regexp.MustCompile(`https?://[^\s)'"<>]+\.(?:png|jpe?g|gif)`)
)

// Fingerprints is the session-scoped set of artifact fingerprints already
// emitted. Muxes are per turn; the set outlives them.
type Fingerprints struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewFingerprints() *Fingerprints {
	return &Fingerprints{seen: make(map[string]struct{})}
}

// Add records a fingerprint and reports whether it was new.
func (f *Fingerprints) Add(fp string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[fp]; ok {
		return false
	}
	f.seen[fp] = struct{}{}
	return true
}

// Mux classifies the raw output of one turn into ordered StreamEvents.
// Content inside <think> delimiters becomes reasoning events; artifact
// references are extracted (and deduplicated against the session set) while
// the reference text still flows through inline. Sequence numbers are
// strictly increasing and never reused.
type Mux struct {
	ctx        context.Context
	out        chan contract.StreamEvent
	seq        uint64
	seen       *Fingerprints
	onArtifact func(contract.Artifact)

	inThinking bool
	carry      string
	answer     strings.Builder
}

// New creates a turn multiplexer. onArtifact, if set, is called once per
// newly emitted artifact.
func New(ctx context.Context, seen *Fingerprints, buffer int, onArtifact func(contract.Artifact)) *Mux {
	if seen == nil {
		seen = NewFingerprints()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Mux{
		ctx:        ctx,
		out:        make(chan contract.StreamEvent, buffer),
		seen:       seen,
		onArtifact: onArtifact,
	}
}

// Events is the caller-facing channel. Closed after Done or Fail.
func (m *Mux) Events() <-chan contract.StreamEvent {
	return m.out
}

// Answer returns the visible (non-reasoning) text emitted so far.
func (m *Mux) Answer() string {
	return m.answer.String()
}

// Content feeds one raw chunk from the gateway through classification.
// Thinking delimiters may span chunk boundaries; a partial delimiter at the
// end of a chunk is held back until the next one.
func (m *Mux) Content(chunk string) {
	m.carry += chunk
	for {
		delim := thinkOpen
		if m.inThinking {
			delim = thinkClose
		}

		if idx := strings.Index(m.carry, delim); idx >= 0 {
			m.emitSegment(m.carry[:idx])
			m.carry = m.carry[idx+len(delim):]
			m.inThinking = !m.inThinking
			continue
		}

		hold := partialSuffix(m.carry, delim)
		m.emitSegment(m.carry[:len(m.carry)-hold])
		m.carry = m.carry[len(m.carry)-hold:]
		return
	}
}

// ToolInvoked announces a dispatched tool call.
func (m *Mux) ToolInvoked(call *contract.ToolCall) {
	m.flush()
	m.emit(contract.StreamEvent{Kind: contract.EventToolInvoked, ToolCall: call})
}

// ToolResult announces the resolution of a previously invoked call and
// scans its payload for artifact references (file export, map rendering).
func (m *Mux) ToolResult(call *contract.ToolCall) {
	m.emit(contract.StreamEvent{Kind: contract.EventToolResult, ToolCall: call})
	if call != nil && call.Status == contract.ToolCallSucceeded {
		if text, ok := call.Result.(string); ok {
			m.extractArtifacts(text)
		}
	}
}

// Fail surfaces a terminal failure as a single error event and closes the
// stream. No done event follows.
func (m *Mux) Fail(err error) {
	m.flush()
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	m.emit(contract.StreamEvent{Kind: contract.EventError, Err: msg})
	close(m.out)
}

// Done flushes any held content, emits the terminal done event and closes
// the stream.
func (m *Mux) Done() {
	m.flush()
	m.emit(contract.StreamEvent{Kind: contract.EventDone})
	close(m.out)
}

func (m *Mux) flush() {
	if m.carry != "" {
		m.emitSegment(m.carry)
		m.carry = ""
	}
}

func (m *Mux) emitSegment(segment string) {
	if segment == "" {
		return
	}
	if m.inThinking {
		m.emit(contract.StreamEvent{Kind: contract.EventReasoning, Text: segment})
		return
	}
	m.answer.WriteString(segment)
	m.emit(contract.StreamEvent{Kind: contract.EventText, Text: segment})
	m.extractArtifacts(segment)
}

func (m *Mux) extractArtifacts(text string) {
	refs := filePattern.FindAllString(text, -1)
	refs = append(refs, httpImagePattern.FindAllString(text, -1)...)
	for _, ref := range refs {
		fp := fingerprint(ref)
		if !m.seen.Add(fp) {
			continue
		}
		artifact := contract.Artifact{
			Kind:        classifyArtifact(ref),
			Location:    ref,
			Fingerprint: fp,
		}
		m.emit(contract.StreamEvent{Kind: contract.EventArtifact, Artifact: &artifact})
		if m.onArtifact != nil {
			m.onArtifact(artifact)
		}
	}
}

func (m *Mux) emit(ev contract.StreamEvent) {
	m.seq++
	ev.Seq = m.seq
	select {
	case m.out <- ev:
	case <-m.ctx.Done():
		// Caller aborted: stop forwarding. The turn keeps running so the
		// memory store ends up consistent.
	}
}

func classifyArtifact(ref string) contract.ArtifactKind {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasSuffix(lower, ".html"):
		return contract.ArtifactMap
	case strings.HasSuffix(lower, ".svg"), strings.Contains(lower, "chart"):
		return contract.ArtifactChart
	default:
		return contract.ArtifactImage
	}
}

func fingerprint(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:])
}

// partialSuffix reports the length of the longest suffix of s that is a
// proper prefix of delim.
func partialSuffix(s, delim string) int {
	max := len(delim) - 1
	if len(s) < max {
		max = len(s)
	}
	for l := max; l > 0; l-- {
		if strings.HasSuffix(s, delim[:l]) {
			return l
		}
	}
	return 0
}
