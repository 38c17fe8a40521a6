package ratelimit

import (
	"strings"
	"testing"

	"github.com/agentrt/core/internal/acp"
)

func msgWithToolResult(callID, toolName, content string) *acp.AgentMessage {
	return &acp.AgentMessage{
		Role: acp.RoleTool,
		Parts: []acp.MessagePart{
			acp.ToolResultPart{CallID: callID, ToolName: toolName, Content: content},
		},
	}
}

func TestPlanPrune_SkipsBelowMinimumTokens(t *testing.T) {
	history := []*acp.AgentMessage{msgWithToolResult("c1", "read", "tiny")}
	cfg := PruneConfig{MinimumTokens: 1000}
	got := PlanPrune(cfg, history)
	if len(got) != 0 {
		t.Errorf("expected nothing prunable, got %v", got)
	}
}

func TestPlanPrune_SkipsProtectedTools(t *testing.T) {
	big := strings.Repeat("x", 4000)
	history := []*acp.AgentMessage{msgWithToolResult("c1", "bash", big)}
	cfg := PruneConfig{MinimumTokens: 10, ProtectedTools: map[string]bool{"bash": true}}
	got := PlanPrune(cfg, history)
	if len(got) != 0 {
		t.Errorf("expected protected tool result to survive, got %v", got)
	}
}

func TestPlanPrune_SkipsAlreadyCompacted(t *testing.T) {
	big := strings.Repeat("x", 4000)
	history := []*acp.AgentMessage{{
		Role: acp.RoleTool,
		Parts: []acp.MessagePart{
			acp.ToolResultPart{CallID: "c1", ToolName: "read", Content: big, Compacted: true},
		},
	}}
	cfg := PruneConfig{MinimumTokens: 10}
	got := PlanPrune(cfg, history)
	if len(got) != 0 {
		t.Errorf("expected already-compacted result to be skipped, got %v", got)
	}
}

func TestPlanPrune_ProtectsTrailingWindow(t *testing.T) {
	big := strings.Repeat("x", 4000) // ~1000 tokens
	history := []*acp.AgentMessage{
		msgWithToolResult("old", "read", big),
		msgWithToolResult("recent", "read", big),
	}
	cfg := PruneConfig{MinimumTokens: 10, ProtectTokens: 1000}
	got := PlanPrune(cfg, history)
	if len(got) != 1 || got[0] != "old" {
		t.Errorf("expected only the older call to be prunable, got %v", got)
	}
}

func TestPlanPrune_NothingProtectedWhenWindowIsZero(t *testing.T) {
	big := strings.Repeat("x", 4000)
	history := []*acp.AgentMessage{
		msgWithToolResult("c1", "read", big),
		msgWithToolResult("c2", "read", big),
	}
	cfg := PruneConfig{MinimumTokens: 10, ProtectTokens: 0}
	got := PlanPrune(cfg, history)
	if len(got) != 2 {
		t.Errorf("expected both results prunable, got %v", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("expected empty string to estimate to 0 tokens")
	}
	if EstimateTokens("abcd") != 1 {
		t.Errorf("expected 4 chars to estimate to 1 token, got %d", EstimateTokens("abcd"))
	}
}
