package ratelimit

import (
	"context"
	"strings"

	"github.com/agentrt/core/internal/acp"
)

// CompactRetryConfig is the retry policy for the summarization call itself,
// per spec §4.8 ("retry policy {max_retries, initial_backoff_ms,
// backoff_multiplier}").
type CompactRetryConfig struct {
	MaxRetries        int
	InitialBackoffMs  int
	BackoffMultiplier float64
}

// DefaultCompactRetryConfig mirrors DefaultRetryConfig's order of magnitude.
var DefaultCompactRetryConfig = CompactRetryConfig{
	MaxRetries:        3,
	InitialBackoffMs:  1000,
	BackoffMultiplier: 2.0,
}

// Summarizer produces a short summary of a run of history, used by
// Compact to build the Compaction part's content. The concrete LLM wire
// shape behind it is a named collaborator (spec §1); this package only
// needs "hand it messages, get text back", matching
// sessionstore.Provider's narrow shape.
type Summarizer interface {
	Summarize(ctx context.Context, messages []*acp.AgentMessage) (string, error)
}

// BuildSummaryPrompt renders the messages being compacted into the plain-
// text prompt handed to the Summarizer, grounded on the teacher's
// buildSummaryPrompt (session/compact.go): focus on decisions, modified
// files, and context needed to continue.
func BuildSummaryPrompt(messages []*acp.AgentMessage) string {
	var b strings.Builder
	b.WriteString("Summarize the following conversation, focusing on:\n")
	b.WriteString("1. Key decisions and outcomes\n")
	b.WriteString("2. Files that were modified\n")
	b.WriteString("3. Important context for continuing the work\n\n")

	for _, msg := range messages {
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		for _, part := range msg.Parts {
			if tp, ok := part.(acp.TextPart); ok {
				b.WriteString(tp.Text)
				b.WriteString(" ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Compact runs the AI-compaction subsystem described in spec §4.8: it
// summarizes `toCompact` via summ and returns the CompactionPart to insert.
// Retry against CompactRetryConfig is the caller's concern (NextWait/
// WaitWithCancel apply identically here), since a summarization call fails
// the same way any other LLM call does.
func Compact(ctx context.Context, summ Summarizer, toCompact []*acp.AgentMessage) (acp.CompactionPart, error) {
	originalTokens := 0
	for _, msg := range toCompact {
		for _, part := range msg.Parts {
			if tp, ok := part.(acp.TextPart); ok {
				originalTokens += EstimateTokens(tp.Text)
			}
			if tr, ok := part.(acp.ToolResultPart); ok {
				originalTokens += EstimateTokens(tr.Content)
			}
		}
	}

	summary, err := summ.Summarize(ctx, toCompact)
	if err != nil {
		return acp.CompactionPart{}, err
	}

	return acp.CompactionPart{
		Summary:            summary,
		OriginalTokenCount: originalTokens,
	}, nil
}
