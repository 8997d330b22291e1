package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/internal/util"
	"github.com/Kochanac/pi-mono/taskstore"
	"github.com/Kochanac/pi-mono/tool"
)

// TasksTool exposes task-list storage to the model: create, list, update and
// delete tasks scoped to one conversation.
type TasksTool struct {
	store          taskstore.Store
	conversationID string
}

// NewTasksTool creates the tasks tool bound to a conversation.
func NewTasksTool(store taskstore.Store, conversationID string) *TasksTool {
	return &TasksTool{store: store, conversationID: conversationID}
}

// Name implements tool.Tool.
func (t *TasksTool) Name() string { return "tasks" }

// Label implements tool.Tool.
func (t *TasksTool) Label() string { return "Tasks" }

// Description implements tool.Tool.
func (t *TasksTool) Description() string {
	return "Manage the task list: action is one of create (requires subject), list, complete (requires id), delete (requires id)."
}

// Parameters implements tool.Tool.
func (t *TasksTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "Operation to perform.",
				"enum":        []any{"create", "list", "complete", "delete"},
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Task subject (create only).",
			},
			"id": map[string]any{
				"type":        "string",
				"description": "Task id (complete / delete).",
			},
		},
		"required": []string{"action"},
	}
}

// Execute implements tool.Tool.
func (t *TasksTool) Execute(ctx context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
	action, _ := args["action"].(string)

	switch action {
	case "create":
		subject, _ := args["subject"].(string)
		if subject == "" {
			return nil, fmt.Errorf("subject is required for create")
		}
		task := taskstore.Task{
			ID:             util.NewID(),
			ConversationID: t.conversationID,
			Subject:        subject,
		}
		if err := t.store.Create(ctx, task); err != nil {
			return nil, err
		}
		return tool.TextResult(fmt.Sprintf("Created task %s: %s", task.ID, subject)), nil

	case "list":
		tasks, err := t.store.List(ctx, t.conversationID)
		if err != nil {
			return nil, err
		}
		if len(tasks) == 0 {
			return tool.TextResult("No tasks."), nil
		}
		var lines []string
		for _, task := range tasks {
			lines = append(lines, fmt.Sprintf("[%s] %s — %s", task.Status, task.ID, task.Subject))
		}
		return &tool.Result{
			Content: []core.Part{core.TextPart{Text: strings.Join(lines, "\n")}},
			Details: map[string]any{"count": len(tasks)},
		}, nil

	case "complete":
		id, _ := args["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("id is required for complete")
		}
		if err := t.store.UpdateStatus(ctx, t.conversationID, id, taskstore.StatusCompleted); err != nil {
			return nil, err
		}
		return tool.TextResult(fmt.Sprintf("Completed task %s", id)), nil

	case "delete":
		id, _ := args["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("id is required for delete")
		}
		if err := t.store.Delete(ctx, t.conversationID, id); err != nil {
			return nil, err
		}
		return tool.TextResult(fmt.Sprintf("Deleted task %s", id)), nil

	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}
}
