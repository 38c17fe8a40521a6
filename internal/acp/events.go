package acp

import "time"

// Origin distinguishes locally produced events from ones relayed from a
// peer mesh node (the mesh transport itself is a named collaborator, out of
// scope here; only the Origin/SourceNode fields on the envelope are).
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// AgentEventKind is the closed set of event kinds the engine emits.
type AgentEventKind string

const (
	EventSessionCreated        AgentEventKind = "session_created"
	EventUserMessageStored     AgentEventKind = "user_message_stored"
	EventAssistantMessageStored AgentEventKind = "assistant_message_stored"
	EventAssistantContentDelta AgentEventKind = "assistant_content_delta"
	EventPromptReceived        AgentEventKind = "prompt_received"
	EventLlmRequestStart       AgentEventKind = "llm_request_start"
	EventLlmRequestEnd         AgentEventKind = "llm_request_end"
	EventToolCallStart         AgentEventKind = "tool_call_start"
	EventToolCallEnd           AgentEventKind = "tool_call_end"
	EventRateLimited           AgentEventKind = "rate_limited"
	EventRateLimitResume       AgentEventKind = "rate_limit_resume"
	EventCompactionStart       AgentEventKind = "compaction_start"
	EventCompactionEnd         AgentEventKind = "compaction_end"
	EventDelegationRequested   AgentEventKind = "delegation_requested"
	EventCancelled             AgentEventKind = "cancelled"
	EventError                 AgentEventKind = "error"
	// EventExt is the small extension point for subsystem-specific events
	// (e.g. snapshot/undo, doom-loop escalation) that don't warrant a new
	// top-level kind.
	EventExt AgentEventKind = "ext"
)

// Event is the envelope shared by durable and ephemeral events. Durable
// events have EventID and StreamSeq populated by the storage backend at
// append time; ephemeral events leave both zero/empty and are never
// persisted.
type Event struct {
	EventID    string
	StreamSeq  uint64
	SessionID  string
	Timestamp  time.Time
	Origin     Origin
	SourceNode string
	Kind       AgentEventKind
	Payload    any
}

// IsDurable reports whether this envelope was assigned a stream sequence by
// the storage backend.
func (e Event) IsDurable() bool {
	return e.EventID != ""
}

// LlmRequestEndPayload is the payload for EventLlmRequestEnd.
type LlmRequestEndPayload struct {
	InputTokens      int
	OutputTokens     int
	ContextTokens    int
	CostUSD          float64
	CumulativeCostUSD float64
	ToolCallCount    int
	FinishReason     string
}

// RateLimitedPayload is the payload for EventRateLimited.
type RateLimitedPayload struct {
	WaitSecs    float64
	Attempt     int
	MaxAttempts int
}

// RateLimitResumePayload is the payload for EventRateLimitResume.
type RateLimitResumePayload struct {
	Attempt int
}

// ToolCallPayload is the payload for EventToolCallStart/EventToolCallEnd.
type ToolCallPayload struct {
	CallID  string
	Tool    string
	IsError bool
}

// CompactionPayload is the payload for EventCompactionStart/EventCompactionEnd.
type CompactionPayload struct {
	TokenEstimate int
	SummaryLen    int
}

// ErrorPayload is the payload for EventError.
type ErrorPayload struct {
	Message string
}
