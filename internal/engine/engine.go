// Package engine implements the execution state machine described in spec
// §4.6: one call, run_prompt, that ingests a prompt, drives the middleware
// pipeline and LLM provider through a step loop, dispatches tool calls
// through policy evaluation, and returns once the turn reaches a terminal
// state. Grounded on the teacher's session/loop.go and session/processor.go
// (the agentic loop shape, retry-with-backoff, finish-reason switch),
// generalized from Eino/the teacher's own provider registry to the
// Provider/tool.Registry/middleware.Pipeline seams built in this tree.
package engine

import (
	"context"
	"encoding/json"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/eventbus"
	"github.com/agentrt/core/internal/middleware"
	"github.com/agentrt/core/internal/obslog"
	"github.com/agentrt/core/internal/ratelimit"
	"github.com/agentrt/core/internal/sessionstore"
	"github.com/agentrt/core/internal/snapshot"
	"github.com/agentrt/core/internal/tool"
	"github.com/agentrt/core/internal/toolpolicy"
)

// DefaultMaxSteps is the step-loop bound used when Deps.MaxSteps is unset,
// matching the teacher's own MaxSteps constant (session/loop.go).
const DefaultMaxSteps = 50

// Deps bundles the shared, session-independent collaborators the engine
// needs — the spec §4.7 "reference to the shared AgentConfig (provider,
// store, tool registry, middleware)" that every SessionActor holds.
type Deps struct {
	Provider    Provider
	Registry    *tool.Registry
	Policy      *toolpolicy.Evaluator
	Bus         *eventbus.Bus
	Retry       ratelimit.RetryConfig
	Limiter     *ratelimit.Limiter
	Permissions PermissionRequester // optional; nil means Ask defaults to Allow
	Log         *obslog.Logger
	MaxSteps    int
}

// Engine runs prompt turns against a Deps bundle. It carries no per-session
// state of its own; every per-session value (SessionContext, ToolContext,
// Config, Pipeline) is supplied by the caller (the actor package) per call.
type Engine struct {
	deps Deps
}

// New constructs an Engine. A zero-value Deps.Log is replaced with a
// default logger; a zero MaxSteps falls back to DefaultMaxSteps.
func New(deps Deps) *Engine {
	if deps.Log == nil {
		deps.Log = obslog.NewDefault()
	}
	if deps.MaxSteps <= 0 {
		deps.MaxSteps = DefaultMaxSteps
	}
	return &Engine{deps: deps}
}

// RunOpts bundles the per-session values RunPrompt needs beyond the
// prompt itself: the session's store façade, its tool-call context, its
// tool policy config, and the middleware pipeline to drive it through.
type RunOpts struct {
	Session  *sessionstore.SessionContext
	ToolCtx  *tool.Context
	Policy   toolpolicy.Config
	Pipeline *middleware.Pipeline
	Dedup    *middleware.Dedup // optional; RecordSuccess runs after each successful dispatch
	Prune    ratelimit.PruneConfig
	Snapshot *snapshot.Manager // optional; nil disables snapshot wrapping of mutating tool calls
}

// RunPrompt implements spec §4.6's algorithm: ingest, cycle start, step
// loop, terminal.
func (e *Engine) RunPrompt(ctx context.Context, opts RunOpts, req acp.PromptRequest) (acp.PromptResponse, error) {
	sc := opts.Session
	sessionID := sc.Session().ID
	log := e.deps.Log.WithSession(sessionID)

	// 1. Ingest.
	userMsg := &acp.AgentMessage{
		SessionID: sessionID,
		Role:      acp.RoleUser,
		Parts:     contentBlocksToParts(req.Prompt),
	}
	if err := sc.AddMessage(ctx, userMsg); err != nil {
		return acp.PromptResponse{}, err
	}
	e.publish(sessionID, acp.EventPromptReceived, nil)

	// 2. Cycle start.
	opts.Pipeline.Reset()

	stats := middleware.TurnStats{}

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			e.publish(sessionID, acp.EventCancelled, nil)
			return acp.PromptResponse{StopReason: acp.StopCancelled}, nil
		}
		if step >= e.deps.MaxSteps {
			return acp.PromptResponse{StopReason: acp.StopMaxTurnRequests, Message: "maximum turn requests reached"}, nil
		}

		history, err := sc.History(ctx)
		if err != nil {
			return acp.PromptResponse{}, err
		}
		stats.Steps = step
		convCtx := middleware.ConversationContext{SessionID: sessionID, Messages: history, Stats: stats}
		tools := toolDefinitions(e.deps.Registry)

		// 3.1 Run pipeline on BeforeTurn / BeforeLlmCall / CallLlm.
		if resp, ok := e.runTerminal(opts.Pipeline, middleware.BeforeTurn{Context: convCtx}); ok {
			return resp, nil
		}
		if resp, ok := e.runTerminal(opts.Pipeline, middleware.BeforeLlmCall{Context: convCtx}); ok {
			return resp, nil
		}
		if resp, ok := e.runTerminal(opts.Pipeline, middleware.CallLlm{Context: convCtx, Tools: tools}); ok {
			return resp, nil
		}

		// 3.2 LLM call with retry.
		result, err := e.completeWithRetry(ctx, convCtx, tools)
		if err != nil {
			if err == context.Canceled {
				e.publish(sessionID, acp.EventCancelled, nil)
				return acp.PromptResponse{StopReason: acp.StopCancelled}, nil
			}
			return acp.PromptResponse{StopReason: acp.StopError, Message: err.Error()}, nil
		}

		// 3.3 Persist assistant message.
		result.Message.SessionID = sessionID
		result.Message.Role = acp.RoleAssistant
		if err := sc.AddMessage(ctx, result.Message); err != nil {
			return acp.PromptResponse{}, err
		}
		stats.InputTokens += result.InputTokens
		stats.OutputTokens += result.OutputTokens
		stats.ContextTokens = result.ContextTokens
		stats.CumulativeUSD += result.CostUSD
		e.publish(sessionID, acp.EventLlmRequestEnd, acp.LlmRequestEndPayload{
			InputTokens: result.InputTokens, OutputTokens: result.OutputTokens,
			ContextTokens: result.ContextTokens, CostUSD: result.CostUSD,
			CumulativeCostUSD: stats.CumulativeUSD, ToolCallCount: countToolCalls(result.Message),
			FinishReason: result.FinishReason,
		})

		// 3.4 Run pipeline on AfterLlm.
		if resp, ok := e.runTerminal(opts.Pipeline, middleware.AfterLlm{Response: result.Message, Context: convCtx}); ok {
			return resp, nil
		}

		calls := toolCallsOf(result.Message)
		if len(calls) == 0 {
			// 3.8 No tool calls and a terminal finish reason.
			return acp.PromptResponse{StopReason: acp.StopEndTurn}, nil
		}

		// 3.5-3.6 Dispatch tool calls in call order, aggregate results.
		results := make([]acp.MessagePart, 0, len(calls))
		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				e.publish(sessionID, acp.EventCancelled, nil)
				return acp.PromptResponse{StopReason: acp.StopCancelled}, nil
			}

			before := opts.Pipeline.Run(middleware.BeforeToolCall{Call: call, Context: convCtx})
			if middleware.IsTerminal(before) {
				return stateToResponse(before), nil
			}

			var (
				result acp.ToolResultPart
				snap   *acp.SnapshotPart
			)
			if at, ok := before.(middleware.AfterTool); ok {
				// A driver (e.g. Dedup) short-circuited this call.
				result = at.Result
			} else {
				result, snap = e.dispatchOne(ctx, opts, call)
			}

			e.publish(sessionID, acp.EventToolCallEnd, acp.ToolCallPayload{CallID: call.ID, Tool: call.ToolName, IsError: result.IsError})
			if !result.IsError && opts.Dedup != nil {
				opts.Dedup.RecordSuccess(call.ToolName, call.Arguments)
			}

			after := opts.Pipeline.Run(middleware.AfterTool{Result: result, Context: convCtx})
			if middleware.IsTerminal(after) {
				return stateToResponse(after), nil
			}

			results = append(results, result)
			if snap != nil {
				results = append(results, *snap)
			}
		}

		// 3.6 Persist the aggregated Tool-role message in one call.
		toolMsg := &acp.AgentMessage{SessionID: sessionID, Role: acp.RoleTool, Parts: results}
		if err := sc.AddMessage(ctx, toolMsg); err != nil {
			return acp.PromptResponse{}, err
		}

		// 3.7 Post-step maintenance: plan which tool results are prunable
		// and log how many. The ids are not marked compacted in the store
		// here, so later replays still include those results.
		if full, herr := sc.History(ctx); herr == nil {
			if ids := ratelimit.PlanPrune(opts.Prune, full); len(ids) > 0 {
				log.Debug().Int("count", len(ids)).Msg("planned prunable tool results")
			}
		}
	}
}

// dispatchOne evaluates tool policy for one call and, if allowed, dispatches
// it through the registry. A successful dispatch of a mutating tool under
// opts.Snapshot is wrapped per spec §4.9, producing a SnapshotPart to file
// alongside the tool result.
func (e *Engine) dispatchOne(ctx context.Context, opts RunOpts, call acp.ToolCall) (acp.ToolResultPart, *acp.SnapshotPart) {
	sessionID := opts.Session.Session().ID
	e.publish(sessionID, acp.EventToolCallStart, acp.ToolCallPayload{CallID: call.ID, Tool: call.ToolName})

	base := acp.ToolResultPart{CallID: call.ID, ToolName: call.ToolName, ToolArguments: call.Arguments}

	t, ok := e.deps.Registry.Get(call.ToolName)
	if !ok {
		base.Content = "unknown tool " + call.ToolName
		base.IsError = true
		return base, nil
	}

	decision := e.deps.Policy.Evaluate(sessionID, call, opts.Policy, t.RequiredCapabilities(), opts.ToolCtx.HasCWD())

	switch decision.Action {
	case toolpolicy.ActionDeny:
		base.Content = "denied: " + decision.Reason
		base.IsError = true
		return base, nil
	case toolpolicy.ActionAsk:
		allow, always, err := e.requestPermission(ctx, sessionID, call, decision.BashPatterns)
		if err != nil || !allow {
			base.Content = "denied: permission not granted"
			base.IsError = true
			return base, nil
		}
		if always {
			e.deps.Policy.Approvals().Approve(sessionID, toolpolicy.CapabilityFilesystem, decision.BashPatterns)
		}
	}

	return opts.Snapshot.Wrap(ctx, opts.ToolCtx.CWD, call.ToolName, func() acp.ToolResultPart {
		return e.deps.Registry.Dispatch(ctx, call, opts.ToolCtx)
	})
}

func (e *Engine) requestPermission(ctx context.Context, sessionID string, call acp.ToolCall, patterns []string) (allow, always bool, err error) {
	if e.deps.Permissions == nil {
		return true, false, nil
	}
	return e.deps.Permissions.RequestPermission(ctx, sessionID, call, patterns)
}

// completeWithRetry calls the provider, retrying on rate-limit errors per
// spec §4.8.
func (e *Engine) completeWithRetry(ctx context.Context, convCtx middleware.ConversationContext, tools []middleware.ToolDefinition) (CompletionResult, error) {
	attempt := 0
	for {
		if e.deps.Limiter != nil {
			if err := e.deps.Limiter.Wait(ctx); err != nil {
				return CompletionResult{}, err
			}
		}

		result, err := e.deps.Provider.Complete(ctx, CompletionRequest{Context: convCtx, Tools: tools})
		if err == nil {
			return result, nil
		}

		attempt++
		decision := ratelimit.NextWait(e.deps.Retry, err, attempt)
		if !decision.Retry {
			return CompletionResult{}, err
		}

		sessionID := convCtx.SessionID
		e.publish(sessionID, acp.EventRateLimited, acp.RateLimitedPayload{
			WaitSecs: decision.Wait.Seconds(), Attempt: attempt, MaxAttempts: e.deps.Retry.MaxAttempts,
		})
		if !ratelimit.WaitWithCancel(ctx, decision.Wait) {
			return CompletionResult{}, context.Canceled
		}
		e.publish(sessionID, acp.EventRateLimitResume, acp.RateLimitResumePayload{Attempt: attempt})
	}
}

func (e *Engine) publish(sessionID string, kind acp.AgentEventKind, payload any) {
	if e.deps.Bus == nil {
		return
	}
	e.deps.Bus.Publish(acp.Event{SessionID: sessionID, Origin: acp.OriginLocal, Kind: kind, Payload: payload})
}

// runTerminal runs state through p and, if the result is terminal,
// translates it into a PromptResponse.
func (e *Engine) runTerminal(p *middleware.Pipeline, state middleware.ExecutionState) (acp.PromptResponse, bool) {
	out := p.Run(state)
	if middleware.IsTerminal(out) {
		return stateToResponse(out), true
	}
	return acp.PromptResponse{}, false
}

func stateToResponse(s middleware.ExecutionState) acp.PromptResponse {
	switch v := s.(type) {
	case middleware.Stopped:
		reason := acp.StopEndTurn
		if v.Reason == middleware.StopMaxTurnRequests || v.Reason == middleware.StopMaxCost {
			reason = acp.StopMaxTurnRequests
		}
		return acp.PromptResponse{StopReason: reason, Message: v.Message}
	case middleware.Cancelled:
		return acp.PromptResponse{StopReason: acp.StopCancelled}
	default:
		return acp.PromptResponse{StopReason: acp.StopEndTurn}
	}
}

func countToolCalls(msg *acp.AgentMessage) int {
	n := 0
	for _, part := range msg.Parts {
		if part.PartKind() == acp.PartToolUse {
			n++
		}
	}
	return n
}

func toolCallsOf(msg *acp.AgentMessage) []acp.ToolCall {
	var calls []acp.ToolCall
	for _, part := range msg.Parts {
		if tu, ok := part.(acp.ToolUsePart); ok {
			calls = append(calls, tu.Call)
		}
	}
	return calls
}

func toolDefinitions(reg *tool.Registry) []middleware.ToolDefinition {
	if reg == nil {
		return nil
	}
	defs := reg.Definitions()
	out := make([]middleware.ToolDefinition, 0, len(defs))
	for name, def := range defs {
		var schema map[string]any
		_ = json.Unmarshal(def.Schema, &schema)
		out = append(out, middleware.ToolDefinition{Name: name, Description: def.Description, Schema: schema})
	}
	return out
}

// contentBlocksToParts renders prompt content blocks into message parts.
// Only text-bearing blocks (Text, embedded text Resource, ResourceLink)
// become TextPart content; Image/Audio binary payloads are a named
// collaborator (spec §1) this engine doesn't render inline.
func contentBlocksToParts(blocks []acp.ContentBlock) []acp.MessagePart {
	parts := make([]acp.MessagePart, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case acp.ContentText:
			parts = append(parts, acp.TextPart{Text: b.Text})
		case acp.ContentResourceLink:
			parts = append(parts, acp.TextPart{Text: b.Name + ": " + b.URI})
		case acp.ContentResource:
			if b.ResourceIsText {
				parts = append(parts, acp.TextPart{Text: b.ResourceText})
			}
		}
	}
	return parts
}
