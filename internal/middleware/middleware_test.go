package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentrt/core/internal/acp"
)

func TestLimitsStopsOnMaxSteps(t *testing.T) {
	l := NewLimits(LimitsConfig{MaxSteps: 3})
	s := BeforeLlmCall{Context: ConversationContext{Stats: TurnStats{Steps: 3}}}

	out := l.Run(s)
	stopped, ok := out.(Stopped)
	if !ok {
		t.Fatalf("expected Stopped, got %#v", out)
	}
	assert.Equal(t, StopMaxTurnRequests, stopped.Reason)
}

func TestLimitsPassesThroughUnderLimit(t *testing.T) {
	l := NewLimits(LimitsConfig{MaxSteps: 3})
	s := BeforeLlmCall{Context: ConversationContext{Stats: TurnStats{Steps: 1}}}

	out := l.Run(s)
	assert.Equal(t, KindBeforeLlmCall, out.Kind())
}

func TestLimitsStopsOnMaxCost(t *testing.T) {
	l := NewLimits(LimitsConfig{MaxCostUSD: 1.0})
	s := BeforeLlmCall{Context: ConversationContext{Stats: TurnStats{CumulativeUSD: 1.5}}}

	out := l.Run(s)
	stopped, ok := out.(Stopped)
	if !ok {
		t.Fatalf("expected Stopped, got %#v", out)
	}
	assert.Equal(t, StopMaxCost, stopped.Reason)
}

func TestContextFlagsCompactionPastThreshold(t *testing.T) {
	c := NewContext(ContextConfig{Limit: 1000, WarnPercent: 0.5, AutoCompact: true, CompactPercent: 0.8}, nil)

	c.Run(BeforeLlmCall{Context: ConversationContext{Stats: TurnStats{ContextTokens: 400}}})
	assert.False(t, c.NeedsCompaction())

	c.Run(BeforeLlmCall{Context: ConversationContext{Stats: TurnStats{ContextTokens: 900}}})
	assert.True(t, c.NeedsCompaction())
	// Consumed by the prior call.
	assert.False(t, c.NeedsCompaction())
}

func TestContextResetClearsWarnedAndCompactionFlag(t *testing.T) {
	c := NewContext(ContextConfig{Limit: 1000, WarnPercent: 0.5, AutoCompact: true, CompactPercent: 0.5}, nil)
	c.Run(BeforeLlmCall{Context: ConversationContext{Stats: TurnStats{ContextTokens: 900}}})
	c.Reset()
	assert.False(t, c.NeedsCompaction())
}

func TestDedupBlocksNearIdenticalRecentCall(t *testing.T) {
	d := NewDedup(DedupConfig{SimilarityThreshold: 0.9})

	args := map[string]any{"path": "/tmp/a.txt"}
	d.RecordSuccess("read", args)

	out := d.Run(BeforeToolCall{Call: acp.ToolCall{ID: "c2", ToolName: "read", Arguments: args}})
	result, ok := out.(AfterTool)
	if !ok {
		t.Fatalf("expected AfterTool (blocked), got %#v", out)
	}
	assert.True(t, result.Result.IsError)
}

func TestDedupAllowsDistinctCall(t *testing.T) {
	d := NewDedup(DedupConfig{SimilarityThreshold: 0.9})
	d.RecordSuccess("read", map[string]any{"path": "/tmp/a.txt"})

	in := BeforeToolCall{Call: acp.ToolCall{ID: "c2", ToolName: "read", Arguments: map[string]any{"path": "/tmp/zzzzz-different.txt"}}}
	out := d.Run(in)
	assert.Equal(t, KindBeforeToolCall, out.Kind())
}

func TestPipelineStopsAtFirstTerminalDriver(t *testing.T) {
	alwaysStop := DriverFunc(func(s ExecutionState) ExecutionState {
		return Stopped{Reason: StopEndTurn, Message: "done"}
	})
	neverCalled := DriverFunc(func(s ExecutionState) ExecutionState {
		t.Fatal("this driver should not run after a terminal state")
		return s
	})

	p := NewPipeline(alwaysStop, neverCalled)
	out := p.Run(BeforeTurn{})
	assert.Equal(t, KindStopped, out.Kind())
}

func TestPipelineResetCallsEveryDriver(t *testing.T) {
	limits := NewLimits(LimitsConfig{MaxSteps: 1})
	dedup := NewDedup(DedupConfig{SimilarityThreshold: 0.9})
	dedup.RecordSuccess("read", map[string]any{"path": "/a"})

	p := NewPipeline(limits, dedup)
	p.Reset()

	// After reset, dedup's recent-call memory is cleared, so the same call
	// is no longer blocked.
	out := dedup.Run(BeforeToolCall{Call: acp.ToolCall{ID: "c1", ToolName: "read", Arguments: map[string]any{"path": "/a"}}})
	assert.Equal(t, KindBeforeToolCall, out.Kind())
}
