package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const listDescription = `Lists files and directories in a specified path.

Usage:
- Returns names, types (file/directory), and sizes
- Useful for exploring directory structure before reading specific files`

var listSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "The directory to list (default: session working directory)"},
		"ignore": {"type": "array", "items": {"type": "string"}, "description": "Additional glob patterns to ignore"}
	}
}`)

// defaultIgnorePatterns are always skipped from list output, to keep
// directory listings useful rather than noisy; the ignore argument adds
// patterns to them and cannot remove any.
var defaultIgnorePatterns = []string{
	"node_modules/", "__pycache__/", ".git/", "dist/", "build/", "target/",
	"vendor/", "bin/", "obj/", ".idea/", ".vscode/", ".cache/", "cache/",
	"tmp/", "temp/", "logs/", ".venv/", "venv/", "env/",
}

// ListTool implements directory listing.
type ListTool struct{}

func NewListTool() *ListTool { return &ListTool{} }

func (t *ListTool) Name() string { return "list" }

func (t *ListTool) Definition() Definition {
	return Definition{Description: listDescription, Schema: listSchema}
}

func (t *ListTool) RequiredCapabilities() []toolpolicy.Capability {
	return []toolpolicy.Capability{toolpolicy.CapabilityFilesystem}
}

type listInput struct {
	Path   string   `json:"path,omitempty"`
	Ignore []string `json:"ignore,omitempty"`
}

type fileEntry struct {
	Name        string
	IsDirectory bool
	Size        int64
}

func (t *ListTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params listInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid list arguments: %v", err)
	}

	listPath := tc.CWD
	if params.Path != "" {
		resolved, err := tc.ResolvePath(params.Path)
		if err != nil {
			return "", err
		}
		listPath = resolved
	}
	if listPath == "" {
		return "", errNoCWD
	}

	ignorePatterns := append(append([]string{}, defaultIgnorePatterns...), params.Ignore...)

	entries, err := os.ReadDir(listPath)
	if err != nil {
		return "", apperr.InvalidRequestf("failed to read directory: %v", err)
	}

	var files []fileEntry
	for _, entry := range entries {
		if shouldIgnore(entry.Name(), entry.IsDir(), ignorePatterns) {
			continue
		}
		info, _ := entry.Info()
		var size int64
		if info != nil {
			size = info.Size()
		}
		files = append(files, fileEntry{Name: entry.Name(), IsDirectory: entry.IsDir(), Size: size})
	}

	var sb strings.Builder
	for _, f := range files {
		typeStr := "file"
		if f.IsDirectory {
			typeStr = "dir "
		}
		fmt.Fprintf(&sb, "[%s] %s", typeStr, f.Name)
		if !f.IsDirectory {
			fmt.Fprintf(&sb, " (%d bytes)", f.Size)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// shouldIgnore checks whether a directory entry matches any ignore pattern.
func shouldIgnore(name string, isDir bool, patterns []string) bool {
	checkName := name
	if isDir {
		checkName = name + "/"
	}
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			if isDir && (checkName == pattern || name == strings.TrimSuffix(pattern, "/")) {
				return true
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if isDir {
			if matched, _ := filepath.Match(pattern, checkName); matched {
				return true
			}
		}
	}
	return false
}
