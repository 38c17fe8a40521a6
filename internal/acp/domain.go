// Package acp defines the data model and external-interface contracts named
// by the Agent Client Protocol: sessions, messages, message parts, LLM
// configs, and the durable/ephemeral event envelope. It intentionally stops
// at the contract boundary — the JSON-RPC wire codec, stdio/WebSocket
// transport, and concrete LLM-provider request/response shapes are named
// collaborators, not implemented here.
package acp

import "time"

// Mode is the agent operating mode a session is pinned to.
type Mode string

const (
	ModePlan  Mode = "plan"
	ModeBuild Mode = "build"
	ModeAsk   Mode = "ask"
)

// Role distinguishes who produced an AgentMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ForkOrigin records why a session was forked from a parent.
type ForkOrigin string

const (
	ForkOriginUser       ForkOrigin = "user"
	ForkOriginDelegation ForkOrigin = "delegation"
)

// Session is a long-lived unit of conversation.
type Session struct {
	// ID is the stable public identifier.
	ID string
	// InternalID is the backend's integer row id, used for joins and
	// cascading deletes; never exposed across the ACP boundary.
	InternalID int64

	Name string
	Cwd  *string

	ParentID        *string
	ForkPointMsgIdx *int
	ForkPointProgID *string
	ForkOrigin      ForkOrigin
	ForkInstructions string

	LLMConfigID int64
	Mode        Mode

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AgentMessage is an ordered, immutable-once-written record attached to a
// session.
type AgentMessage struct {
	ID              string
	InternalID      int64
	SessionID       string
	Role            Role
	CreatedAt       time.Time
	ParentMessageID *string
	Parts           []MessagePart
}

// MessagePart is the sum type of message content. Implementations are the
// tagged variants below; callers type-switch rather than relying on
// inheritance, matching the design note against modeling this as a class
// hierarchy.
type MessagePart interface {
	PartKind() PartKind
}

// PartKind names each MessagePart variant.
type PartKind string

const (
	PartText        PartKind = "text"
	PartReasoning   PartKind = "reasoning"
	PartStepStart   PartKind = "step_start"
	PartStepFinish  PartKind = "step_finish"
	PartToolUse     PartKind = "tool_use"
	PartToolResult  PartKind = "tool_result"
	PartPatch       PartKind = "patch"
	PartSnapshot    PartKind = "snapshot"
	PartCompaction  PartKind = "compaction"
)

// TextPart is plain assistant/user text.
type TextPart struct {
	Text string
}

func (TextPart) PartKind() PartKind { return PartText }

// ReasoningPart carries extended-thinking content.
type ReasoningPart struct {
	Text string
}

func (ReasoningPart) PartKind() PartKind { return PartReasoning }

// StepStartPart marks the beginning of one LLM-call/tool-dispatch step.
type StepStartPart struct{}

func (StepStartPart) PartKind() PartKind { return PartStepStart }

// StepFinishPart marks the end of one step, with the provider's finish reason.
type StepFinishPart struct {
	FinishReason string
}

func (StepFinishPart) PartKind() PartKind { return PartStepFinish }

// ToolCall is the invocation an assistant message asked for.
type ToolCall struct {
	ID        string
	ToolName  string
	Arguments map[string]any
}

// ToolUsePart records one tool invocation requested by the assistant.
type ToolUsePart struct {
	Call ToolCall
}

func (ToolUsePart) PartKind() PartKind { return PartToolUse }

// ToolResultPart records the outcome of a prior ToolUsePart, joined by
// CallID. Lives in a dedicated Tool-role message per the data model
// invariant ("exactly one message per role transition").
type ToolResultPart struct {
	CallID        string
	Content       string
	IsError       bool
	ToolName      string
	ToolArguments map[string]any
	// Compacted marks this result as pruned from LLM replay while
	// remaining in persistent storage for audit (opaque compaction
	// marking, set only via the store's mark-compacted operation).
	Compacted bool
}

func (ToolResultPart) PartKind() PartKind { return PartToolResult }

// PatchPart records a filesystem patch produced by a mutating tool call.
type PatchPart struct {
	Diff  string
	Files []string
}

func (PatchPart) PartKind() PartKind { return PartPatch }

// SnapshotPart records a workspace snapshot taken around a mutating tool
// call.
type SnapshotPart struct {
	RootHash    string
	DiffSummary string
}

func (SnapshotPart) PartKind() PartKind { return PartSnapshot }

// CompactionPart marks a logical truncation point in history: when
// rebuilding history for LLM replay, the reconstructor starts at the last
// CompactionPart and discards earlier messages for LLM consumption (they
// remain persisted for audit).
type CompactionPart struct {
	Summary            string
	OriginalTokenCount int
}

func (CompactionPart) PartKind() PartKind { return PartCompaction }

// LLMConfig is a content-addressed configuration record. Identical configs
// (provider, model, and parameter bag) share a row; the content hash of the
// canonicalized params is the natural dedup key.
type LLMConfig struct {
	ID       int64
	Provider string
	Model    string
	Params   map[string]any // system prompts, temperature, etc.
}
