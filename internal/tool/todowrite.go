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

const todowriteDescription = `Creates and updates the structured task list for the current session.

Usage:
- Each entry without an id creates a new task and returns its assigned id
- Each entry with an id updates that task's status (pending, in_progress, completed, cancelled)
- Keep at most one task in_progress at a time
- Mark a task completed immediately after finishing it, rather than batching completions`

var todowriteSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"todos": {
			"type": "array",
			"description": "The tasks to create or update",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string", "description": "Existing task id to update; omit to create a new task"},
					"content": {"type": "string", "description": "Task title (used only when creating)"},
					"status": {"type": "string", "enum": ["pending", "in_progress", "completed", "cancelled"]}
				},
				"required": ["status"]
			}
		}
	},
	"required": ["todos"]
}`)

// TodoWriteTool manages the structured task list backing a session, per
// spec §4.5's create_task/task-tracking surface.
type TodoWriteTool struct {
	storage *storage.Storage
}

func NewTodoWriteTool(store *storage.Storage) *TodoWriteTool {
	return &TodoWriteTool{storage: store}
}

func (t *TodoWriteTool) Name() string { return "todowrite" }

func (t *TodoWriteTool) Definition() Definition {
	return Definition{Description: todowriteDescription, Schema: todowriteSchema}
}

func (t *TodoWriteTool) RequiredCapabilities() []toolpolicy.Capability { return nil }

type todoEntry struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content,omitempty"`
	Status  string `json:"status"`
}

type todowriteInput struct {
	Todos []todoEntry `json:"todos"`
}

func (t *TodoWriteTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params todowriteInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid todowrite arguments: %v", err)
	}

	for _, entry := range params.Todos {
		status := acp.TaskStatus(entry.Status)
		if entry.ID == "" {
			if entry.Content == "" {
				return "", apperr.InvalidRequestf("content is required to create a new task")
			}
			task, err := t.storage.CreateTask(ctx, tc.SessionID, entry.Content)
			if err != nil {
				return "", err
			}
			if status != "" && status != acp.TaskPending {
				if err := t.storage.UpdateTaskStatus(ctx, task.PublicID, status); err != nil {
					return "", err
				}
			}
			continue
		}
		if err := t.storage.UpdateTaskStatus(ctx, entry.ID, status); err != nil {
			return "", err
		}
	}

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
	return fmt.Sprintf("%d open task(s)\n%s", nonCompleted, out), nil
}
