// Package tool implements the registry and built-in tools dispatched by
// the execution engine, per spec §4.5.
package tool

import (
	"context"
	"encoding/json"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/eventbus"
	"github.com/agentrt/core/internal/toolpolicy"
)

// Definition is what the provider sees: a human description and the
// JSON schema for the tool's arguments.
type Definition struct {
	Description string
	Schema      json.RawMessage
}

// Tool is one dispatchable unit: name, provider-facing definition,
// capability requirements, and the call itself.
type Tool interface {
	Name() string
	Definition() Definition
	RequiredCapabilities() []toolpolicy.Capability
	Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error)
}

// AgentResolver looks up named subagents for the task/delegate tools.
// Kept as a narrow interface since the concrete agent registry lives
// outside this package's concern (spec §4.5's "agent registry").
type AgentResolver interface {
	Resolve(name string) (description string, ok bool)
	Names() []string
}

// SessionForker lets the delegate tool create a child session, per
// SPEC_FULL.md's fork/delegation-origin supplement.
type SessionForker interface {
	ForkForDelegation(ctx context.Context, parentSessionID, prompt string) (childSessionID string, err error)
}

// AskQuestionFunc implements ToolContext's ask_question channel (spec
// §4.5): defaults to stdin/stdout, replaced by a client round trip in
// server mode.
type AskQuestionFunc func(ctx context.Context, id, text, header string, options []string, multiple bool) ([]string, error)

// Context is the ToolContext passed to every Call, per spec §4.5.
type Context struct {
	SessionID   string
	CWD         string
	Agents      AgentResolver
	Forker      SessionForker
	AskQuestion AskQuestionFunc
	Events      *eventbus.Bus
}

// FileEditedPayload is the acp.EventExt payload published whenever write or
// edit changes a file on disk.
type FileEditedPayload struct {
	File string `json:"file"`
}

func (c *Context) publishFileEdited(path string) {
	if c == nil || c.Events == nil {
		return
	}
	c.Events.Publish(acp.Event{
		SessionID: c.SessionID,
		Kind:      acp.EventExt,
		Payload:   FileEditedPayload{File: path},
	})
}

// HasCWD reports whether a working directory is set, used by capability
// gating before dispatch even reaches the tool.
func (c *Context) HasCWD() bool { return c != nil && c.CWD != "" }

// ResolvePath joins a relative path against cwd, erroring when cwd is
// absent, per spec §4.5's resolve_path contract.
func (c *Context) ResolvePath(path string) (string, error) {
	return resolvePath(c, path)
}
