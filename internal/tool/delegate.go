package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/storage"
	"github.com/agentrt/core/internal/toolpolicy"
)

const delegateDescription = `Forks a child session to handle a delegated piece of work autonomously, per the data model's delegation-origin forks.

Usage:
- prompt is the full instructions for the child session
- Delegation is recorded against the parent session for later review
- Each delegated session runs independently; its own turns are not visible in this one`

var delegateSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"prompt": {"type": "string", "description": "Instructions for the delegated child session"}
	},
	"required": ["prompt"]
}`)

// DelegateTool forks a child session for a subtask, per SPEC_FULL.md's
// fork/delegation-origin supplement.
type DelegateTool struct {
	storage *storage.Storage
}

func NewDelegateTool(store *storage.Storage) *DelegateTool {
	return &DelegateTool{storage: store}
}

func (t *DelegateTool) Name() string { return "delegate" }

func (t *DelegateTool) Definition() Definition {
	return Definition{Description: delegateDescription, Schema: delegateSchema}
}

func (t *DelegateTool) RequiredCapabilities() []toolpolicy.Capability { return nil }

type delegateInput struct {
	Prompt string `json:"prompt"`
}

func (t *DelegateTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params delegateInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid delegate arguments: %v", err)
	}
	if params.Prompt == "" {
		return "", apperr.InvalidRequestf("prompt is required")
	}
	if tc == nil || tc.Forker == nil {
		return "", apperr.InvalidRequestf("delegation is not configured for this session")
	}

	childID, err := tc.Forker.ForkForDelegation(ctx, tc.SessionID, params.Prompt)
	if err != nil {
		return "", err
	}
	if _, err := t.storage.CreateDelegation(ctx, tc.SessionID, childID, params.Prompt); err != nil {
		return "", err
	}
	return fmt.Sprintf("delegated to child session %s", childID), nil
}
