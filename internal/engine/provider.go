package engine

import (
	"context"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/middleware"
)

// CompletionRequest is what the engine hands the LLM layer for one step.
// The concrete provider wire shape stays a named collaborator out of
// scope (spec §1); this is the Go-value boundary the engine is allowed
// to depend on.
type CompletionRequest struct {
	Context middleware.ConversationContext
	Tools   []middleware.ToolDefinition
}

// CompletionResult is the provider's answer to one CompletionRequest.
type CompletionResult struct {
	// Message is the assistant reply, already shaped as an AgentMessage
	// (text/reasoning/tool-use parts); the engine persists it as-is.
	Message *acp.AgentMessage

	// FinishReason mirrors spec §4.6's step 3.3 usage payload field.
	// Typical values: "end_turn", "tool_calls", "max_tokens". The engine
	// only reports it in the LlmRequestEnd payload and does not branch on
	// it: a reply without tool calls ends the turn whatever its value.
	FinishReason string

	InputTokens       int
	OutputTokens      int
	ContextTokens     int
	CostUSD           float64
	CumulativeCostUSD float64
}

// Provider is the narrow contract the engine drives the LLM through for
// one step. Retry-on-rate-limit (spec §4.8) wraps calls to this interface
// from the outside; Complete itself should return an *apperr.Error with
// Kind == apperr.RateLimited (see internal/apperr.RateLimitedErr) when and
// only when the failure is a rate limit, per spec §4.8's "if and only if"
// rule — every other error is fatal to the step.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// PermissionRequester is the engine's hook into the SessionActor's client
// bridge (spec §4.7's RequestPermission round trip) for tool calls the
// policy evaluator marks Ask. When nil, Ask decisions default to Allow,
// matching spec §4.7's "when the bridge is absent... permissions default
// to allow" contract.
type PermissionRequester interface {
	RequestPermission(ctx context.Context, sessionID string, call acp.ToolCall, bashPatterns []string) (allow bool, always bool, err error)
}
