package action

import (
	"context"

	"github.com/floweriwe/stagehand/internal/task"
)

// Result is what the executor reports back for a single action.
type Result struct {
	Success  bool
	Output   string
	Err      string
	ExitCode int
	TimedOut bool
}

// Executor runs one opaque action descriptor. Implementations are
// side-effecting collaborators; the engine treats all kinds identically apart
// from routing command and file-mutating kinds through the safety guard
// before dispatch.
type Executor interface {
	Execute(ctx context.Context, act task.Action) Result
}

// FileActor handles the file-mutating action kinds (modify, create, generate,
// analyze). The concrete implementation lives outside the engine; tests and
// headless runs use a stub.
type FileActor interface {
	Apply(ctx context.Context, act task.Action) Result
}

// UnsupportedFileActor rejects every file action. It stands in when no real
// file-editing collaborator is wired.
type UnsupportedFileActor struct{}

// Apply implements FileActor.
func (UnsupportedFileActor) Apply(ctx context.Context, act task.Action) Result {
	return Result{
		Success: false,
		Err:     "no file actor configured for action kind " + act.Kind,
	}
}
