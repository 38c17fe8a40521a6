package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/apperr"
)

// Registry holds every tool known to the engine, keyed by name, along
// with its compiled argument schema.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), schemas: make(map[string]*jsonschema.Schema)}
}

// Register adds a tool, compiling its declared schema so later calls can
// be validated before dispatch. A tool with an invalid schema is a
// programmer error, not a runtime one, so Register panics.
func (r *Registry) Register(t Tool) {
	def := t.Definition()

	var schemaDoc any
	if err := json.Unmarshal(def.Schema, &schemaDoc); err != nil {
		panic(fmt.Sprintf("tool %q: invalid schema: %v", t.Name(), err))
	}
	resource := t.Name() + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resource, schemaDoc); err != nil {
		panic(fmt.Sprintf("tool %q: add schema resource: %v", t.Name(), err))
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		panic(fmt.Sprintf("tool %q: compile schema: %v", t.Name(), err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.schemas[t.Name()] = compiled
}

// Get looks up a tool by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

// Definitions returns every tool's provider-facing definition, keyed by
// name, for building the LLM call's tool list.
func (r *Registry) Definitions() map[string]Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Definition, len(r.tools))
	for n, t := range r.tools {
		out[n] = t.Definition()
	}
	return out
}

// Dispatch looks up and invokes a tool call, per spec §4.5's dispatch
// rule: unknown names produce an InvalidRequest error result rather than
// a turn-ending failure, and argument validation happens before Call
// ever runs.
func (r *Registry) Dispatch(ctx context.Context, call acp.ToolCall, tc *Context) acp.ToolResultPart {
	base := acp.ToolResultPart{CallID: call.ID, ToolName: call.ToolName, ToolArguments: call.Arguments}

	t, ok := r.Get(call.ToolName)
	if !ok {
		base.IsError = true
		base.Content = apperr.InvalidRequestf("unknown tool %q", call.ToolName).Error()
		return base
	}

	argsJSON, err := json.Marshal(call.Arguments)
	if err != nil {
		base.IsError = true
		base.Content = fmt.Sprintf("encode arguments: %v", err)
		return base
	}

	r.mu.RLock()
	schema := r.schemas[call.ToolName]
	r.mu.RUnlock()
	if schema != nil {
		var decoded any
		if err := json.Unmarshal(argsJSON, &decoded); err == nil {
			if err := schema.Validate(decoded); err != nil {
				base.IsError = true
				base.Content = fmt.Sprintf("invalid arguments: %v", err)
				return base
			}
		}
	}

	output, err := t.Call(ctx, argsJSON, tc)
	if err != nil {
		base.IsError = true
		base.Content = err.Error()
		return base
	}
	base.Content = output
	return base
}
