package tool

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const readDescription = `Reads a file from the local filesystem.

Usage:
- The filePath parameter must be an absolute path, or relative to the session's working directory
- By default, reads up to 2000 lines from the beginning
- You can optionally specify offset and limit for pagination
- Returns file contents with line numbers
- Can read image files and returns them as a base64 attachment`

var readSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"filePath": {"type": "string", "description": "The path to the file to read"},
		"offset": {"type": "integer", "description": "Line number to start reading from"},
		"limit": {"type": "integer", "description": "Number of lines to read (default: 2000)"}
	},
	"required": ["filePath"]
}`)

// ReadTool implements file reading.
type ReadTool struct{}

func NewReadTool() *ReadTool { return &ReadTool{} }

func (t *ReadTool) Name() string { return "read" }

func (t *ReadTool) Definition() Definition {
	return Definition{Description: readDescription, Schema: readSchema}
}

func (t *ReadTool) RequiredCapabilities() []toolpolicy.Capability {
	return []toolpolicy.Capability{toolpolicy.CapabilityFilesystem}
}

type readInput struct {
	FilePath string `json:"filePath"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (t *ReadTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params readInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid read arguments: %v", err)
	}
	if params.Limit <= 0 {
		params.Limit = 2000
	}

	path, err := tc.ResolvePath(params.FilePath)
	if err != nil {
		return "", err
	}

	if shouldBlockEnvFile(path) {
		return "", apperr.InvalidRequestf("reading %s is blocked", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", apperr.InvalidRequestf("file not found: %s", path)
	}
	if info.IsDir() {
		return "", apperr.InvalidRequestf("path is a directory, not a file: %s", path)
	}
	if isImageFile(path) {
		return t.readImage(path)
	}
	if isBinaryFile(path) {
		return "", apperr.InvalidRequestf("file appears to be binary: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", apperr.Wrap(apperr.BackendError, "open file", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	more := false
	for scanner.Scan() {
		lineNum++
		if params.Offset > 0 && lineNum < params.Offset {
			continue
		}
		if len(lines) >= params.Limit {
			more = true
			break
		}
		line := scanner.Text()
		if len(line) > 2000 {
			line = line[:2000] + "..."
		}
		lines = append(lines, fmt.Sprintf("%5d| %s", lineNum, line))
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(lines, "\n"))
	if more {
		// lineNum is the first line not returned.
		sb.WriteString(fmt.Sprintf("\n\n(file has more lines; use offset=%d to continue)", lineNum))
	} else {
		sb.WriteString(fmt.Sprintf("\n\n(end of file - %d lines total)", lineNum))
	}
	return sb.String(), nil
}

func (t *ReadTool) readImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperr.Wrap(apperr.BackendError, "read image", err)
	}
	mediaType := detectMediaType(path)
	return fmt.Sprintf("(image file, %s, %d bytes, base64: %s)", mediaType, len(data), base64.StdEncoding.EncodeToString(data)), nil
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}

func isBinaryFile(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	buf := make([]byte, 8000)
	n, _ := file.Read(buf)
	if n == 0 {
		return false
	}
	nonPrintable := 0
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true
		}
		if buf[i] < 32 && buf[i] != '\n' && buf[i] != '\r' && buf[i] != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(n) > 0.3
}

func detectMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// shouldBlockEnvFile blocks ".env" paths except the explicitly
// whitelisted sample/example suffixes.
func shouldBlockEnvFile(path string) bool {
	for _, w := range []string{".env.sample", ".example"} {
		if strings.HasSuffix(path, w) {
			return false
		}
	}
	return strings.Contains(path, ".env")
}
