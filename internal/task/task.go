package task

import (
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusBlocked   Status = "blocked"
)

// Terminal reports whether the status is final. Blocked tasks may return to
// pending, so blocked is not terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Priority orders task selection; lower values are scheduled first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "low"
	}
}

// Action kind constants. The scheduler never interprets kinds; they exist so
// the executor and the safety layer can route commands and file mutations.
const (
	KindModifyFile       = "modify_file"
	KindCreateFile       = "create_file"
	KindRunCommand       = "run_command"
	KindRunTests         = "run_tests"
	KindScanFiles        = "scan_files"
	KindAnalyzeTarget    = "analyze_target"
	KindGenerateArtifact = "generate_artifact"
)

// Action is an opaque descriptor forwarded to the executor in order.
type Action struct {
	Kind    string            `json:"kind"`
	Target  string            `json:"target,omitempty"`  // file path for file-mutating kinds
	Command string            `json:"command,omitempty"` // command line for command kinds
	Params  map[string]string `json:"params,omitempty"`
}

// Task is the unit of work: identity, dependency set, ordered action list,
// lifecycle status, timing, and provenance.
type Task struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Phase         string         `json:"phase,omitempty"` // grouping label, never used for ordering
	Priority      Priority       `json:"priority"`
	Status        Status         `json:"status"`
	Dependencies  []string       `json:"dependencies,omitempty"`
	Actions       []Action       `json:"actions,omitempty"`
	EstimatedTime string         `json:"estimated_time,omitempty"` // informational only
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Error         string         `json:"error,omitempty"`
	Result        map[string]any `json:"result,omitempty"`
	GeneratedBy   string         `json:"generated_by,omitempty"` // id of the task whose analysis produced this one
	AutoGenerated bool           `json:"auto_generated"`
}

// DependsOn reports whether id is in the task's dependency set.
func (t *Task) DependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	cp := *t
	if t.Dependencies != nil {
		cp.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.Actions != nil {
		cp.Actions = make([]Action, len(t.Actions))
		for i, a := range t.Actions {
			cp.Actions[i] = a
			if a.Params != nil {
				cp.Actions[i].Params = make(map[string]string, len(a.Params))
				for k, v := range a.Params {
					cp.Actions[i].Params[k] = v
				}
			}
		}
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		cp.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		cp.CompletedAt = &completed
	}
	if t.Result != nil {
		cp.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			cp.Result[k] = v
		}
	}
	return &cp
}
