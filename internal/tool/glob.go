package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const globToolDescription = `Fast file pattern matching, backed by ripgrep.

Usage:
- Supports glob patterns like "**/*.go" or "internal/**/*_test.go"
- Returns matching file paths
- Use this tool when you need to find files by name pattern rather than content`

var globToolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"pattern": {"type": "string", "description": "The glob pattern to match files against"},
		"path": {"type": "string", "description": "Directory to search in (default: session working directory)"}
	},
	"required": ["pattern"]
}`)

// GlobTool implements file pattern matching over the filesystem.
type GlobTool struct{}

func NewGlobTool() *GlobTool { return &GlobTool{} }

func (t *GlobTool) Name() string { return "glob" }

func (t *GlobTool) Definition() Definition {
	return Definition{Description: globToolDescription, Schema: globToolSchema}
}

func (t *GlobTool) RequiredCapabilities() []toolpolicy.Capability {
	return []toolpolicy.Capability{toolpolicy.CapabilityFilesystem}
}

type globInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

const maxGlobResults = 100

func (t *GlobTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params globInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid glob arguments: %v", err)
	}

	searchDir := tc.CWD
	if params.Path != "" {
		resolved, err := tc.ResolvePath(params.Path)
		if err != nil {
			return "", err
		}
		searchDir = resolved
	}

	cmd := exec.CommandContext(ctx, "rg", "--files", "--glob", params.Pattern)
	cmd.Dir = searchDir
	output, err := cmd.Output()
	if err != nil && len(output) == 0 {
		return "No files matched the pattern", nil
	}

	var files []string
	for _, f := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if f != "" {
			files = append(files, f)
		}
	}

	truncated := false
	if len(files) > maxGlobResults {
		files = files[:maxGlobResults]
		truncated = true
	}

	out := strings.Join(files, "\n")
	if truncated {
		out += fmt.Sprintf("\n\n(showing first %d matches)", maxGlobResults)
	}
	return out, nil
}
