package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const batchDescription = `Executes multiple independent tool calls concurrently to reduce latency. Best used for gathering context (reads, searches, listings).

Payload Format (JSON array):
[{"tool": "read", "parameters": {"filePath": "src/index.ts", "limit": 350}},{"tool": "grep", "parameters": {"pattern": "foo", "glob": "**/*.go"}}]

Rules:
- 1-10 tool calls per batch
- All calls start in parallel; ordering is not guaranteed
- Partial failures do not stop others

Disallowed tools: batch (no nesting), edit (run edits separately so each is individually reviewable),
todoread (call directly, it is already lightweight).`

// maxBatchSize bounds how many calls run per batch invocation.
const maxBatchSize = 10

// disallowedTools cannot be dispatched from inside a batch.
var disallowedTools = map[string]bool{
	"batch":    true,
	"edit":     true,
	"todoread": true,
}

var batchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"tool_calls": {
			"type": "array",
			"description": "Tool calls to execute in parallel",
			"items": {
				"type": "object",
				"properties": {
					"tool": {"type": "string"},
					"parameters": {"type": "object"}
				},
				"required": ["tool", "parameters"]
			},
			"minItems": 1
		}
	},
	"required": ["tool_calls"]
}`)

// BatchTool dispatches several independent tool calls concurrently through
// the same registry the engine uses, per spec §4.5's batch built-in.
//
// Calls dispatched this way skip the engine's pre-dispatch policy
// evaluation (toolpolicy.Evaluator runs once, on the batch call itself).
// disallowedTools excludes only batch, edit and todoread; other tools,
// including mutating ones such as write and bash, can be batched and then
// run concurrently.
type BatchTool struct {
	registry *Registry
}

func NewBatchTool(registry *Registry) *BatchTool {
	return &BatchTool{registry: registry}
}

func (t *BatchTool) Name() string { return "batch" }

func (t *BatchTool) Definition() Definition {
	return Definition{Description: batchDescription, Schema: batchSchema}
}

func (t *BatchTool) RequiredCapabilities() []toolpolicy.Capability { return nil }

type batchCall struct {
	Tool       string          `json:"tool"`
	Parameters json.RawMessage `json:"parameters"`
}

type batchInput struct {
	ToolCalls []batchCall `json:"tool_calls"`
}

type batchResult struct {
	Index   int
	Tool    string
	Success bool
	Content string
	Time    time.Duration
}

func (t *BatchTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params batchInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid batch arguments: %v", err)
	}
	if len(params.ToolCalls) == 0 {
		return "", apperr.InvalidRequestf("tool_calls must contain at least one call")
	}

	calls := params.ToolCalls
	var discarded []batchCall
	if len(calls) > maxBatchSize {
		discarded = calls[maxBatchSize:]
		calls = calls[:maxBatchSize]
	}

	results := make([]*batchResult, len(calls))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			r := t.executeCall(gctx, i, call, tc)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for i, call := range discarded {
		results = append(results, &batchResult{
			Index:   maxBatchSize + i,
			Tool:    call.Tool,
			Success: false,
			Content: "maximum of 10 tool calls allowed per batch",
		})
	}

	return formatBatchResults(results), nil
}

func (t *BatchTool) executeCall(ctx context.Context, index int, call batchCall, tc *Context) *batchResult {
	start := time.Now()
	r := &batchResult{Index: index, Tool: call.Tool}
	defer func() { r.Time = time.Since(start) }()

	if disallowedTools[call.Tool] {
		r.Content = fmt.Sprintf("tool %q is not allowed inside batch: %s", call.Tool, strings.Join(disallowedToolsList(), ", "))
		return r
	}

	var args map[string]any
	if err := json.Unmarshal(call.Parameters, &args); err != nil {
		r.Content = fmt.Sprintf("invalid parameters: %v", err)
		return r
	}

	result := t.registry.Dispatch(ctx, acp.ToolCall{
		ID:        fmt.Sprintf("batch-%d", index),
		ToolName:  call.Tool,
		Arguments: args,
	}, tc)

	r.Success = !result.IsError
	r.Content = result.Content
	return r
}

func formatBatchResults(results []*batchResult) string {
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	successCount := 0
	var parts []string
	for _, r := range results {
		status := "failed"
		if r.Success {
			successCount++
			status = "success"
		}
		parts = append(parts, fmt.Sprintf("=== %s (%s, %dms) ===\n%s", r.Tool, status, r.Time.Milliseconds(), r.Content))
	}

	failed := len(results) - successCount
	header := fmt.Sprintf("All %d tools executed successfully.", successCount)
	if failed > 0 {
		header = fmt.Sprintf("Executed %d/%d tools successfully, %d failed.", successCount, len(results), failed)
	}
	return header + "\n\n" + strings.Join(parts, "\n\n")
}

func disallowedToolsList() []string {
	list := make([]string, 0, len(disallowedTools))
	for name := range disallowedTools {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
