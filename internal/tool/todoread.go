package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/storage"
	"github.com/agentrt/core/internal/toolpolicy"
)

const todoreadDescription = `Reads the current session's structured task list.`

var todoreadSchema = json.RawMessage(`{"type": "object", "properties": {}}`)

// TodoReadTool reads the current task list for a session.
type TodoReadTool struct {
	storage *storage.Storage
}

func NewTodoReadTool(store *storage.Storage) *TodoReadTool {
	return &TodoReadTool{storage: store}
}

func (t *TodoReadTool) Name() string { return "todoread" }

func (t *TodoReadTool) Definition() Definition {
	return Definition{Description: todoreadDescription, Schema: todoreadSchema}
}

func (t *TodoReadTool) RequiredCapabilities() []toolpolicy.Capability { return nil }

func (t *TodoReadTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	tasks, err := t.storage.ListTasks(ctx, tc.SessionID)
	if err != nil {
		return "", err
	}
	nonCompleted := 0
	for _, task := range tasks {
		if task.Status != acp.TaskCompleted && task.Status != acp.TaskCancelled {
			nonCompleted++
		}
	}
	out, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return "", apperr.Wrap(apperr.SerializationError, "encode tasks", err)
	}
	return fmt.Sprintf("%s\n\n%d open", out, nonCompleted), nil
}
