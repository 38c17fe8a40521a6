package middleware

import (
	"encoding/json"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/agentrt/core/internal/acp"
)

// DedupConfig configures the optional Dedup driver.
type DedupConfig struct {
	// SimilarityThreshold in [0, 1]; two fingerprints are considered a
	// match when their normalized Levenshtein similarity is >= this value.
	SimilarityThreshold float64
	// WindowSize bounds how many recent successful calls per tool name are
	// remembered for comparison.
	WindowSize int
}

// Dedup blocks a tool call whose argument fingerprint closely matches a
// recent successful call to the same tool, per spec §4.4's optional
// "dedup check" driver.
type Dedup struct {
	cfg    DedupConfig
	recent map[string][]string // tool name -> recent canonicalized fingerprints
}

// NewDedup constructs a Dedup driver.
func NewDedup(cfg DedupConfig) *Dedup {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 8
	}
	return &Dedup{cfg: cfg, recent: make(map[string][]string)}
}

func (d *Dedup) Reset() {
	d.recent = make(map[string][]string)
}

func (d *Dedup) Run(s ExecutionState) ExecutionState {
	before, ok := s.(BeforeToolCall)
	if !ok {
		return s
	}

	fp := fingerprint(before.Call.Arguments)
	for _, prior := range d.recent[before.Call.ToolName] {
		if similarity(fp, prior) >= d.cfg.SimilarityThreshold {
			return AfterTool{
				Context: before.Context,
				Result: acp.ToolResultPart{
					CallID:        before.Call.ID,
					ToolName:      before.Call.ToolName,
					ToolArguments: before.Call.Arguments,
					IsError:       true,
					Content:       "blocked: duplicate of a recent call with near-identical arguments",
				},
			}
		}
	}

	return s
}

// RecordSuccess tells the driver a call completed successfully, so future
// near-duplicate calls to the same tool can be recognized. The engine
// calls this after a successful AfterTool, not from within Run, since Run
// only sees the call before dispatch.
func (d *Dedup) RecordSuccess(toolName string, args map[string]any) {
	fp := fingerprint(args)
	hist := append(d.recent[toolName], fp)
	if len(hist) > d.cfg.WindowSize {
		hist = hist[len(hist)-d.cfg.WindowSize:]
	}
	d.recent[toolName] = hist
}

func fingerprint(args map[string]any) string {
	b, err := json.Marshal(sortedMap(args))
	if err != nil {
		return ""
	}
	return string(b)
}

// sortedMap renders args as an ordered slice of key/value pairs so two
// maps with identical content always fingerprint identically regardless of
// Go's randomized map iteration order.
func sortedMap(args map[string]any) []struct {
	K string
	V any
} {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]struct {
		K string
		V any
	}, 0, len(keys))
	for _, k := range keys {
		out = append(out, struct {
			K string
			V any
		}{k, args[k]})
	}
	return out
}

func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}
