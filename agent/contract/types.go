package contract

import "time"

// BackendID selects an inference backend on the Model Gateway.
type BackendID string

const (
	BackendFast BackendID = "fast"
	BackendDeep BackendID = "deep-reasoning"
)

// BackendFor maps a session's reasoning-mode flag to a backend.
func BackendFor(deepReasoning bool) BackendID {
	if deepReasoning {
		return BackendDeep
	}
	return BackendFast
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one entry in a session's short-term history. Immutable once appended.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ToolCall  *ToolCall `json:"tool_call,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Case is a long-term memory record of a previously resolved request,
// scoped to exactly one user and never mutated after creation.
type Case struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Signature string    `json:"signature"`
	Solution  string    `json:"solution"`
	Tags      []string  `json:"tags,omitempty"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallSucceeded ToolCallStatus = "succeeded"
	ToolCallFailed    ToolCallStatus = "failed"
	ToolCallTimedOut  ToolCallStatus = "timed_out"
)

// ToolCall is created by the orchestrator from a gateway tool request and
// resolved by the dispatcher. The dispatcher always returns a completed call;
// failures are carried in Status and Reason, never as a panic or a bare error.
type ToolCall struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args,omitempty"`
	Status    ToolCallStatus `json:"status"`
	Result    any            `json:"result,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	InvokedAt time.Time      `json:"invoked_at"`
}

type EventKind string

const (
	EventText        EventKind = "text"
	EventReasoning   EventKind = "reasoning"
	EventToolInvoked EventKind = "tool_invoked"
	EventToolResult  EventKind = "tool_result"
	EventArtifact    EventKind = "artifact"
	EventError       EventKind = "error"
	EventDone        EventKind = "done"
)

// StreamEvent is the caller-visible unit of output. Seq is strictly
// increasing within a turn; replaying events in Seq order reconstructs
// the full transcript.
type StreamEvent struct {
	Seq      uint64    `json:"seq"`
	Kind     EventKind `json:"kind"`
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	Artifact *Artifact `json:"artifact,omitempty"`
	Err      string    `json:"error,omitempty"`
}

type ArtifactKind string

const (
	ArtifactMap   ArtifactKind = "map"
	ArtifactImage ArtifactKind = "image"
	ArtifactChart ArtifactKind = "chart"
)

// Artifact is a generated visual side-product referenced by path or URL.
// Fingerprint deduplicates emissions within a session.
type Artifact struct {
	Kind        ArtifactKind `json:"kind"`
	Location    string       `json:"location"`
	Fingerprint string       `json:"fingerprint"`
}

// Passage is a ranked snippet returned by the retrieval service.
type Passage struct {
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

// ToolRequest is a structured tool invocation request emitted by the gateway.
type ToolRequest struct {
	ID   string         `json:"id"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// GatewayEvent is the union streamed by the Model Gateway: a content delta,
// a tool-call request, or a mid-stream error. The channel closes on completion.
type GatewayEvent struct {
	Delta    string
	ToolCall *ToolRequest
	Err      error
}

// TurnOutcome summarizes a completed turn for the case-persistence policy.
type TurnOutcome struct {
	Question     string
	Answer       string
	ToolRounds   int
	FailedRounds int
}
