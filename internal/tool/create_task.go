package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/storage"
	"github.com/agentrt/core/internal/toolpolicy"
)

const createTaskDescription = `Creates a single tracked task for the current session and returns its id.

Prefer todowrite when managing several tasks at once; use create_task for a single one-off addition.`

var createTaskSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"title": {"type": "string", "description": "Short, actionable task title"}
	},
	"required": ["title"]
}`)

// CreateTaskTool creates one tracked task, per spec §4.5.
type CreateTaskTool struct {
	storage *storage.Storage
}

func NewCreateTaskTool(store *storage.Storage) *CreateTaskTool {
	return &CreateTaskTool{storage: store}
}

func (t *CreateTaskTool) Name() string { return "create_task" }

func (t *CreateTaskTool) Definition() Definition {
	return Definition{Description: createTaskDescription, Schema: createTaskSchema}
}

func (t *CreateTaskTool) RequiredCapabilities() []toolpolicy.Capability { return nil }

type createTaskInput struct {
	Title string `json:"title"`
}

func (t *CreateTaskTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params createTaskInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid create_task arguments: %v", err)
	}
	if params.Title == "" {
		return "", apperr.InvalidRequestf("title is required")
	}
	task, err := t.storage.CreateTask(ctx, tc.SessionID, params.Title)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("created task %s: %s", task.PublicID, task.Title), nil
}
