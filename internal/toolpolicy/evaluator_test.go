package toolpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentrt/core/internal/acp"
)

func TestEvaluateDeniesWhenPolicyIsNone(t *testing.T) {
	e := NewEvaluator()
	cfg := Config{Policy: None}
	d := e.Evaluate("s1", acp.ToolCall{ID: "c1", ToolName: "read"}, cfg, nil, true)
	assert.Equal(t, ActionDeny, d.Action)
}

func TestEvaluateDeniesToolNotInAllowList(t *testing.T) {
	e := NewEvaluator()
	cfg := Config{Policy: BuiltInOnly, AllowedTools: map[string]bool{"read": true}}
	d := e.Evaluate("s1", acp.ToolCall{ID: "c1", ToolName: "bash"}, cfg, nil, true)
	assert.Equal(t, ActionDeny, d.Action)
}

func TestEvaluateDeniesFilesystemCapabilityWithoutCWD(t *testing.T) {
	e := NewEvaluator()
	cfg := Config{Policy: BuiltInOnly}
	d := e.Evaluate("s1", acp.ToolCall{ID: "c1", ToolName: "read"}, cfg, []Capability{CapabilityFilesystem}, false)
	assert.Equal(t, ActionDeny, d.Action)
}

func TestEvaluateAllowsPlainToolUnderDefaultPolicy(t *testing.T) {
	e := NewEvaluator()
	cfg := DefaultConfig()
	d := e.Evaluate("s1", acp.ToolCall{ID: "c1", ToolName: "glob"}, cfg, nil, true)
	assert.Equal(t, ActionAllow, d.Action)
}

func TestEvaluateBashAsksByDefaultThenAllowsAfterApproval(t *testing.T) {
	e := NewEvaluator()
	cfg := DefaultConfig()
	call := acp.ToolCall{ID: "c1", ToolName: "bash", Arguments: map[string]any{"command": "git commit -m x"}}

	d := e.Evaluate("s1", call, cfg, nil, true)
	assert.Equal(t, ActionAsk, d.Action)
	assert.Equal(t, []string{"git commit *"}, d.BashPatterns)

	e.Approvals().Approve("s1", CapabilityFilesystem, d.BashPatterns)

	d2 := e.Evaluate("s1", call, cfg, nil, true)
	assert.Equal(t, ActionAllow, d2.Action)
}

func TestEvaluateBashDeniesOnMatchingDenyPattern(t *testing.T) {
	e := NewEvaluator()
	cfg := DefaultConfig()
	cfg.Bash = BashPermissions{"rm *": ActionDeny}
	call := acp.ToolCall{ID: "c1", ToolName: "bash", Arguments: map[string]any{"command": "rm -rf /tmp/x"}}

	d := e.Evaluate("s1", call, cfg, nil, true)
	assert.Equal(t, ActionDeny, d.Action)
}

func TestEvaluateFlagsDoomLoopWithoutNecessarilyDenying(t *testing.T) {
	e := NewEvaluator()
	cfg := DefaultConfig()
	call := acp.ToolCall{ID: "c1", ToolName: "read", Arguments: map[string]any{"path": "/a"}}

	e.Evaluate("s1", call, cfg, nil, true)
	e.Evaluate("s1", call, cfg, nil, true)
	d := e.Evaluate("s1", call, cfg, nil, true)

	assert.True(t, d.DoomLoop)
	assert.Equal(t, ActionAllow, d.Action)
}

func TestEvaluateDeniesOnDoomLoopWhenConfigured(t *testing.T) {
	e := NewEvaluator()
	cfg := DefaultConfig()
	cfg.DoomLoop = ActionDeny
	call := acp.ToolCall{ID: "c1", ToolName: "read", Arguments: map[string]any{"path": "/a"}}

	e.Evaluate("s1", call, cfg, nil, true)
	e.Evaluate("s1", call, cfg, nil, true)
	d := e.Evaluate("s1", call, cfg, nil, true)

	assert.Equal(t, ActionDeny, d.Action)
}
