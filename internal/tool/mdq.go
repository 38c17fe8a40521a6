package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const mdqDescription = `Queries a markdown file for the section under a given heading.

Usage:
- selector is heading text, with or without a leading "#" prefix (e.g. "Usage" or "## Usage")
- Returns the content from that heading up to (but not including) the next heading of equal or higher level
- Matching is case-insensitive and ignores surrounding whitespace`

var mdqSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"filePath": {"type": "string", "description": "The markdown file to query"},
		"selector": {"type": "string", "description": "Heading text to locate"}
	},
	"required": ["filePath", "selector"]
}`)

// MdqTool extracts one heading's section from a markdown file. There is no
// markdown AST library anywhere in this tree's stack to ground a parser-
// based implementation on, so this walks lines directly (see DESIGN.md).
type MdqTool struct{}

func NewMdqTool() *MdqTool { return &MdqTool{} }

func (t *MdqTool) Name() string { return "mdq" }

func (t *MdqTool) Definition() Definition {
	return Definition{Description: mdqDescription, Schema: mdqSchema}
}

func (t *MdqTool) RequiredCapabilities() []toolpolicy.Capability {
	return []toolpolicy.Capability{toolpolicy.CapabilityFilesystem}
}

type mdqInput struct {
	FilePath string `json:"filePath"`
	Selector string `json:"selector"`
}

func (t *MdqTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params mdqInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid mdq arguments: %v", err)
	}

	path, err := tc.ResolvePath(params.FilePath)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", apperr.InvalidRequestf("file not found: %s", path)
	}
	defer f.Close()

	wantLevel, wantText := parseHeadingSelector(params.Selector)

	scanner := bufio.NewScanner(f)
	var section []string
	inSection := false
	for scanner.Scan() {
		line := scanner.Text()
		level, text := parseHeadingLine(line)
		if level > 0 {
			if inSection && level <= wantLevel {
				break
			}
			if !inSection && level == wantLevel && strings.EqualFold(strings.TrimSpace(text), wantText) {
				inSection = true
				continue
			}
		}
		if inSection {
			section = append(section, line)
		}
	}
	if !inSection && len(section) == 0 {
		return "", apperr.InvalidRequestf("heading %q not found in %s", params.Selector, path)
	}
	return strings.TrimSpace(strings.Join(section, "\n")), nil
}

func parseHeadingSelector(selector string) (level int, text string) {
	trimmed := strings.TrimSpace(selector)
	level = 0
	for len(trimmed) > 0 && trimmed[0] == '#' {
		level++
		trimmed = trimmed[1:]
	}
	if level == 0 {
		level = 2
	}
	return level, strings.TrimSpace(trimmed)
}

func parseHeadingLine(line string) (level int, text string) {
	trimmed := strings.TrimLeft(line, " \t")
	n := 0
	for n < len(trimmed) && trimmed[n] == '#' {
		n++
	}
	if n == 0 || n > 6 || n >= len(trimmed) || trimmed[n] != ' ' {
		return 0, ""
	}
	return n, trimmed[n+1:]
}
