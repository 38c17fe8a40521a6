package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const writeDescription = `Writes content to a file on the local filesystem.

Usage:
- The filePath parameter may be absolute, or relative to the session's working directory
- This tool will overwrite existing files
- Parent directories will be created if they don't exist
- ALWAYS prefer editing existing files over creating new ones`

var writeSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"filePath": {"type": "string", "description": "The path to the file to write"},
		"content": {"type": "string", "description": "The content to write to the file"}
	},
	"required": ["filePath", "content"]
}`)

// WriteTool implements file writing.
type WriteTool struct{}

func NewWriteTool() *WriteTool { return &WriteTool{} }

func (t *WriteTool) Name() string { return "write" }

func (t *WriteTool) Definition() Definition {
	return Definition{Description: writeDescription, Schema: writeSchema}
}

func (t *WriteTool) RequiredCapabilities() []toolpolicy.Capability {
	return []toolpolicy.Capability{toolpolicy.CapabilityFilesystem}
}

type writeInput struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

func (t *WriteTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params writeInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid write arguments: %v", err)
	}

	path, err := tc.ResolvePath(params.FilePath)
	if err != nil {
		return "", err
	}
	if shouldBlockEnvFile(path) {
		return "", apperr.InvalidRequestf("writing %s is blocked", path)
	}

	var before string
	if existing, err := os.ReadFile(path); err == nil {
		before = string(existing)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperr.Wrap(apperr.BackendError, "create parent directory", err)
	}
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return "", apperr.Wrap(apperr.BackendError, "write file", err)
	}

	tc.publishFileEdited(path)

	_, additions, deletions := buildDiffMetadata(path, before, params.Content, tc.CWD)
	if additions == 0 && deletions == 0 {
		return fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), path), nil
	}
	return fmt.Sprintf("Wrote %d bytes to %s (+%d -%d)", len(params.Content), path, additions, deletions), nil
}
