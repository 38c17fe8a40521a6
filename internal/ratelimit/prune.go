package ratelimit

import "github.com/agentrt/core/internal/acp"

// EstimateTokens is a char-count heuristic (~4 bytes/token), the same
// order-of-magnitude approximation the teacher's own token accounting
// falls back to when a provider doesn't report exact usage. No tokenizer
// library appears in the teacher's go.mod or the rest of the pack, so this
// stays a stdlib arithmetic helper rather than importing one out-of-pack.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// PruneConfig controls which tool-result parts are eligible for
// compaction-by-marking after a turn, per spec §4.8.
type PruneConfig struct {
	// ProtectTokens is the number of trailing tokens (most recent history)
	// that is never pruned regardless of tool name.
	ProtectTokens int
	// MinimumTokens is the size, in estimated tokens, a tool result must
	// reach before it's even considered for pruning.
	MinimumTokens int
	// ProtectedTools are tool names whose results are never pruned.
	ProtectedTools map[string]bool
}

// DefaultPruneConfig matches the teacher compaction config's order of
// magnitude (session/compact.go's DefaultCompactionConfig), scaled to
// tool-result-level pruning rather than whole-message summarization.
var DefaultPruneConfig = PruneConfig{
	ProtectTokens: 4000,
	MinimumTokens: 200,
}

// PlanPrune walks history oldest-first and returns the call ids of tool
// results eligible to be marked compacted: large enough, not in
// ProtectedTools, and outside the trailing ProtectTokens window.
func PlanPrune(cfg PruneConfig, history []*acp.AgentMessage) []string {
	type candidate struct {
		callID string
		tokens int
	}
	var candidates []candidate

	for _, msg := range history {
		for _, part := range msg.Parts {
			tr, ok := part.(acp.ToolResultPart)
			if !ok || tr.Compacted {
				continue
			}
			if cfg.ProtectedTools[tr.ToolName] {
				continue
			}
			tokens := EstimateTokens(tr.Content)
			if tokens < cfg.MinimumTokens {
				continue
			}
			candidates = append(candidates, candidate{callID: tr.CallID, tokens: tokens})
		}
	}

	// Walk from the end, accumulating the protected trailing window; once
	// the window is consumed, every earlier candidate is prunable.
	protected := cfg.ProtectTokens
	var prunable []string
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		if protected > 0 {
			protected -= c.tokens
			continue
		}
		prunable = append(prunable, c.callID)
	}
	return prunable
}
