package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const grepDescription = `A content search tool built on ripgrep.

Usage:
- Supports full regex syntax (e.g. "log.*Error", "func\\s+\\w+")
- Filter files with glob (e.g. "*.go", "**/*_test.go")
- Returns matching lines with file paths and line numbers`

var grepSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"pattern": {"type": "string", "description": "The regex pattern to search for in file contents"},
		"path": {"type": "string", "description": "The directory to search in. Defaults to the session working directory."},
		"glob": {"type": "string", "description": "File glob to restrict the search to (e.g. \"*.go\")"}
	},
	"required": ["pattern"]
}`)

// GrepTool implements content search.
type GrepTool struct{}

func NewGrepTool() *GrepTool { return &GrepTool{} }

func (t *GrepTool) Name() string { return "grep" }

func (t *GrepTool) Definition() Definition {
	return Definition{Description: grepDescription, Schema: grepSchema}
}

func (t *GrepTool) RequiredCapabilities() []toolpolicy.Capability {
	return []toolpolicy.Capability{toolpolicy.CapabilityFilesystem}
}

type grepInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Glob    string `json:"glob,omitempty"`
}

type grepMatch struct {
	File    string
	Line    int
	Content string
}

const maxGrepMatches = 100

func (t *GrepTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params grepInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid grep arguments: %v", err)
	}

	args := []string{"--line-number", "--with-filename", "--color=never"}
	if params.Glob != "" {
		args = append(args, "--glob", params.Glob)
	}
	args = append(args, params.Pattern)

	searchPath := tc.CWD
	if params.Path != "" {
		resolved, err := tc.ResolvePath(params.Path)
		if err != nil {
			return "", err
		}
		searchPath = resolved
	}
	args = append(args, searchPath)

	cmd := exec.CommandContext(ctx, "rg", args...)
	output, _ := cmd.Output()
	if len(output) == 0 {
		return "No matches found", nil
	}

	var matches []grepMatch
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		lineNum, _ := strconv.Atoi(parts[1])
		matches = append(matches, grepMatch{File: parts[0], Line: lineNum, Content: parts[2]})
	}

	truncated := false
	if len(matches) > maxGrepMatches {
		matches = matches[:maxGrepMatches]
		truncated = true
	}

	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "%s:%d: %s\n", m.File, m.Line, m.Content)
	}
	if truncated {
		fmt.Fprintf(&sb, "\n(showing first %d matches)", maxGrepMatches)
	}
	return sb.String(), nil
}
