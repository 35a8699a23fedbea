package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stepwise-ai/stepwise/internal/decompose"
	"github.com/stepwise-ai/stepwise/internal/model"
)

// ParseTasks extracts task descriptors from a model reply. It accepts
// {"tasks": [...]} or a bare array, with or without a markdown code fence,
// and rejects anything else so the caller can fall back. Results are
// trimmed and capped at decompose.MaxTasks.
func ParseTasks(raw string) ([]model.TaskDescriptor, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, fmt.Errorf("empty reply")
	}

	var wrapper struct {
		Tasks []model.TaskDescriptor `json:"tasks"`
	}
	var tasks []model.TaskDescriptor
	if err := json.Unmarshal([]byte(text), &wrapper); err == nil && wrapper.Tasks != nil {
		tasks = wrapper.Tasks
	} else if err := json.Unmarshal([]byte(text), &tasks); err != nil {
		return nil, fmt.Errorf("reply is not a task list: %w", err)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("reply contains no tasks")
	}
	for i := range tasks {
		tasks[i].Task = strings.TrimSpace(tasks[i].Task)
		if tasks[i].Task == "" {
			return nil, fmt.Errorf("task %d has no text", i)
		}
		tasks[i].Subtasks = trimNonEmpty(tasks[i].Subtasks)
	}
	if len(tasks) > decompose.MaxTasks {
		tasks = tasks[:decompose.MaxTasks]
	}
	return tasks, nil
}

func trimNonEmpty(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := items[:0]
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
