package model

// TaskDescriptor is one subtask in a decomposition result. The heuristic
// path never fills Subtasks; the model path may.
type TaskDescriptor struct {
	Task     string   `json:"task"`
	Subtasks []string `json:"subtasks,omitempty"`
}

// Decomposition is a persisted record of one decomposition call.
type Decomposition struct {
	DecompositionID string           `json:"decomposition_id"`
	Prompt          string           `json:"prompt"`
	Tasks           []TaskDescriptor `json:"tasks"`
	// Source is "model" when the provider call produced the tasks,
	// "heuristic" when the rule-based fallback did.
	Source     string `json:"source"`
	Model      string `json:"model,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"
)
