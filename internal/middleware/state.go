// Package middleware implements the composable execution-state pipeline
// described in spec §4.4: a list of drivers, each `(ExecutionState) ->
// ExecutionState`, run in order around every LLM call and tool dispatch in
// a turn. Any driver producing a terminal state halts the pipeline.
package middleware

import (
	"github.com/agentrt/core/internal/acp"
)

// StopReason names why a turn stopped.
type StopReason string

const (
	StopEndTurn         StopReason = "end_turn"
	StopMaxTurnRequests StopReason = "max_turn_requests"
	StopMaxCost         StopReason = "max_cost"
)

// TurnStats accumulates per-turn counters carried in ConversationContext.
type TurnStats struct {
	Steps         int
	Turns         int
	InputTokens   int
	OutputTokens  int
	ContextTokens int
	CumulativeUSD float64
}

// ConversationContext is an immutable snapshot passed through the
// pipeline. Drivers that need to change it return a new value; the old one
// is never mutated in place.
type ConversationContext struct {
	SessionID string
	Messages  []*acp.AgentMessage // shared slice; never mutated by a driver
	Stats     TurnStats
	Provider  string
	Model     string
	Mode      acp.Mode
}

// WaitReason names why a state machine is parked in WaitingForEvent.
type WaitReason string

const (
	WaitPermission WaitReason = "permission"
	WaitQuestion   WaitReason = "question"
)

// Wait describes a WaitingForEvent state's correlation to whatever it's
// waiting on.
type Wait struct {
	Reason         WaitReason
	CorrelationIDs []string
}

// StateKind discriminates ExecutionState's variants, in lieu of a type
// switch on unexported marker methods for callers that only need to branch
// on shape (logging, metrics) without importing every variant type.
type StateKind string

const (
	KindBeforeTurn          StateKind = "before_turn"
	KindBeforeLlmCall       StateKind = "before_llm_call"
	KindCallLlm             StateKind = "call_llm"
	KindAfterLlm            StateKind = "after_llm"
	KindBeforeToolCall      StateKind = "before_tool_call"
	KindProcessingToolCalls StateKind = "processing_tool_calls"
	KindAfterTool           StateKind = "after_tool"
	KindWaitingForEvent     StateKind = "waiting_for_event"
	KindComplete            StateKind = "complete"
	KindStopped             StateKind = "stopped"
	KindCancelled           StateKind = "cancelled"
)

// ExecutionState is the sum type driving one turn's state machine. Callers
// type-switch on the concrete variant; Kind() is available for shape-only
// branching without an exhaustive switch.
type ExecutionState interface {
	Kind() StateKind
}

// BeforeTurn begins a new turn with a freshly assembled context.
type BeforeTurn struct{ Context ConversationContext }

func (BeforeTurn) Kind() StateKind { return KindBeforeTurn }

// BeforeLlmCall runs immediately before issuing the LLM request for this step.
type BeforeLlmCall struct{ Context ConversationContext }

func (BeforeLlmCall) Kind() StateKind { return KindBeforeLlmCall }

// ToolDefinition is the provider-visible shape of one dispatchable tool:
// name, human description, and a JSON Schema for its arguments. The
// schema-building and validation live in internal/tool; this package only
// needs to carry the already-built definitions through CallLlm.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      map[string]any
}

// CallLlm carries the tool definitions the engine will offer the provider.
type CallLlm struct {
	Context ConversationContext
	Tools   []ToolDefinition
}

func (CallLlm) Kind() StateKind { return KindCallLlm }

// AfterLlm carries the (already persisted) assistant reply.
type AfterLlm struct {
	Response *acp.AgentMessage
	Context  ConversationContext
}

func (AfterLlm) Kind() StateKind { return KindAfterLlm }

// BeforeToolCall runs immediately before dispatching one tool call.
type BeforeToolCall struct {
	Call    acp.ToolCall
	Context ConversationContext
}

func (BeforeToolCall) Kind() StateKind { return KindBeforeToolCall }

// ProcessingToolCalls tracks the remaining calls and accumulated results
// within one assistant message's tool-use batch.
type ProcessingToolCalls struct {
	Remaining []acp.ToolCall
	Results   []acp.ToolResultPart
	Context   ConversationContext
}

func (ProcessingToolCalls) Kind() StateKind { return KindProcessingToolCalls }

// AfterTool runs immediately after one tool call's result is known.
type AfterTool struct {
	Result  acp.ToolResultPart
	Context ConversationContext
}

func (AfterTool) Kind() StateKind { return KindAfterTool }

// WaitingForEvent parks the state machine on an external event (a
// permission decision, a question answer) without consuming a step.
type WaitingForEvent struct {
	Context ConversationContext
	Wait    Wait
}

func (WaitingForEvent) Kind() StateKind { return KindWaitingForEvent }

// Complete is the clean terminal state.
type Complete struct{}

func (Complete) Kind() StateKind { return KindComplete }

// Stopped is the terminal state produced when a driver or the engine ends
// the turn early for a named, non-error reason.
type Stopped struct {
	Reason  StopReason
	Message string
}

func (Stopped) Kind() StateKind { return KindStopped }

// Cancelled is the terminal state produced by a cancellation signal.
type Cancelled struct{}

func (Cancelled) Kind() StateKind { return KindCancelled }

// IsTerminal reports whether s is one of Complete, Stopped, or Cancelled.
func IsTerminal(s ExecutionState) bool {
	switch s.Kind() {
	case KindComplete, KindStopped, KindCancelled:
		return true
	default:
		return false
	}
}
