package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/storage"
	"github.com/agentrt/core/internal/toolpolicy"
)

const useRemoteProviderDescription = `Re-pins the session's active LLM config to a different provider/model for subsequent turns.

Usage:
- provider and model select the remote backend (e.g. "anthropic", "claude-opus")
- params carries provider-specific parameters (temperature, max_tokens, etc.)
- Prior turns keep the LLM config id they were generated under; only future turns use the new one`

var useRemoteProviderSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"provider": {"type": "string", "description": "Provider identifier"},
		"model": {"type": "string", "description": "Model identifier"},
		"params": {"type": "object", "description": "Provider-specific parameters"}
	},
	"required": ["provider", "model"]
}`)

// UseRemoteProviderTool switches a session's active LLMConfig, per spec
// §4.5's named built-in of the same name.
type UseRemoteProviderTool struct {
	storage *storage.Storage
}

func NewUseRemoteProviderTool(store *storage.Storage) *UseRemoteProviderTool {
	return &UseRemoteProviderTool{storage: store}
}

func (t *UseRemoteProviderTool) Name() string { return "use_remote_provider" }

func (t *UseRemoteProviderTool) Definition() Definition {
	return Definition{Description: useRemoteProviderDescription, Schema: useRemoteProviderSchema}
}

func (t *UseRemoteProviderTool) RequiredCapabilities() []toolpolicy.Capability { return nil }

type useRemoteProviderInput struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Params   map[string]any `json:"params,omitempty"`
}

func (t *UseRemoteProviderTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params useRemoteProviderInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid use_remote_provider arguments: %v", err)
	}
	if params.Provider == "" || params.Model == "" {
		return "", apperr.InvalidRequestf("provider and model are required")
	}

	configID, err := t.storage.CreateOrGetLLMConfig(ctx, storage.LLMParams{
		Provider: params.Provider,
		Model:    params.Model,
		Params:   params.Params,
	})
	if err != nil {
		return "", err
	}
	if err := t.storage.SetSessionLLMConfig(ctx, tc.SessionID, configID); err != nil {
		return "", err
	}
	return fmt.Sprintf("session now using %s/%s", params.Provider, params.Model), nil
}
