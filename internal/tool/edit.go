package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const editDescription = `Performs exact string replacements in a file, or a sequence of them via the edits array (multi-edit).

Usage:
- The filePath must exist and be readable
- Each oldString must exist in the file (exact match required) and is applied in order against the running result of prior edits
- Use replaceAll on an individual edit to replace every occurrence of that edit's oldString
- An edit fails the whole call if its oldString is not unique and replaceAll is false
- When no exact match is found, a line-ending-normalized and then a similarity-based fallback match is attempted before failing`

var editSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"filePath": {"type": "string", "description": "The path to the file to edit"},
		"oldString": {"type": "string", "description": "The exact text to replace (single-edit form)"},
		"newString": {"type": "string", "description": "The replacement text (single-edit form)"},
		"replaceAll": {"type": "boolean", "description": "Replace all occurrences (single-edit form)"},
		"edits": {
			"type": "array",
			"description": "A sequence of edits to apply in order (multi-edit form)",
			"items": {
				"type": "object",
				"properties": {
					"oldString": {"type": "string"},
					"newString": {"type": "string"},
					"replaceAll": {"type": "boolean"}
				},
				"required": ["oldString", "newString"]
			}
		}
	},
	"required": ["filePath"]
}`)

// EditTool implements exact-match (with fuzzy fallback) file editing, plus
// a multi-edit form that applies several replacements to one file in one
// pass, per spec §4.5.
type EditTool struct{}

func NewEditTool() *EditTool { return &EditTool{} }

func (t *EditTool) Name() string { return "edit" }

func (t *EditTool) Definition() Definition {
	return Definition{Description: editDescription, Schema: editSchema}
}

func (t *EditTool) RequiredCapabilities() []toolpolicy.Capability {
	return []toolpolicy.Capability{toolpolicy.CapabilityFilesystem}
}

type editOp struct {
	OldString  string `json:"oldString"`
	NewString  string `json:"newString"`
	ReplaceAll bool   `json:"replaceAll,omitempty"`
}

type editInput struct {
	FilePath   string   `json:"filePath"`
	OldString  string   `json:"oldString,omitempty"`
	NewString  string   `json:"newString,omitempty"`
	ReplaceAll bool     `json:"replaceAll,omitempty"`
	Edits      []editOp `json:"edits,omitempty"`
}

func (t *EditTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params editInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid edit arguments: %v", err)
	}

	edits := params.Edits
	if len(edits) == 0 {
		edits = []editOp{{OldString: params.OldString, NewString: params.NewString, ReplaceAll: params.ReplaceAll}}
	}
	for _, e := range edits {
		if e.OldString == e.NewString {
			return "", apperr.InvalidRequestf("oldString and newString must be different")
		}
	}

	path, err := tc.ResolvePath(params.FilePath)
	if err != nil {
		return "", err
	}
	if shouldBlockEnvFile(path) {
		return "", apperr.InvalidRequestf("editing %s is blocked", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", apperr.InvalidRequestf("failed to read file: %v", err)
	}
	text := string(content)

	total := 0
	for i, e := range edits {
		applied, count, err := applyEdit(text, e)
		if err != nil {
			return "", apperr.InvalidRequestf("edit %d: %v", i+1, err)
		}
		text = applied
		total += count
	}

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", apperr.Wrap(apperr.BackendError, "write file", err)
	}
	tc.publishFileEdited(path)

	_, additions, deletions := buildDiffMetadata(path, string(content), text, tc.CWD)
	return fmt.Sprintf("Applied %d edit(s), %d replacement(s) total (+%d -%d)", len(edits), total, additions, deletions), nil
}

// applyEdit runs one replacement against text, falling back to a line-ending-
// normalized match and then a similarity match when no exact match exists.
func applyEdit(text string, e editOp) (string, int, error) {
	count := strings.Count(text, e.OldString)
	if count > 0 {
		if e.ReplaceAll {
			return strings.ReplaceAll(text, e.OldString, e.NewString), count, nil
		}
		if count > 1 {
			return "", 0, fmt.Errorf("oldString appears %d times; use replaceAll or provide more context", count)
		}
		return strings.Replace(text, e.OldString, e.NewString, 1), 1, nil
	}

	normalizedOld := normalizeLineEndings(e.OldString)
	normalizedText := normalizeLineEndings(text)
	if strings.Contains(normalizedText, normalizedOld) {
		return strings.Replace(normalizedText, normalizedOld, e.NewString, 1), 1, nil
	}

	match, sim := findBestMatch(text, e.OldString)
	if match != "" && sim >= 0.7 {
		return strings.Replace(text, match, e.NewString, 1), 1, nil
	}

	return "", 0, fmt.Errorf("oldString not found in file")
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// findBestMatch finds the substring most similar to target.
func findBestMatch(text, target string) (string, float64) {
	lines := strings.Split(text, "\n")
	targetLines := strings.Split(target, "\n")

	if len(targetLines) == 1 {
		bestMatch := ""
		bestSimilarity := 0.0
		for _, line := range lines {
			if sim := similarity(line, target); sim > bestSimilarity {
				bestSimilarity = sim
				bestMatch = line
			}
		}
		return bestMatch, bestSimilarity
	}

	targetLen := len(targetLines)
	bestMatch := ""
	bestSimilarity := 0.0
	for i := 0; i <= len(lines)-targetLen; i++ {
		block := strings.Join(lines[i:i+targetLen], "\n")
		if sim := similarity(block, target); sim > bestSimilarity {
			bestSimilarity = sim
			bestMatch = block
		}
	}
	return bestMatch, bestSimilarity
}

// similarity computes normalized Levenshtein similarity in [0,1].
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if len(a) > 10000 || len(b) > 10000 {
		maxLen := max(len(a), len(b))
		minLen := min(len(a), len(b))
		return float64(minLen) / float64(maxLen)
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(dist)/float64(maxLen)
}
