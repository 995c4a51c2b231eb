package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/floweriwe/stagehand/internal/task"
)

// DefaultCommandTimeout is the per-action watchdog ceiling for external
// commands when no override is configured.
const DefaultCommandTimeout = 5 * time.Minute

// ShellExecutor runs command-kind actions through a shell subprocess with a
// watchdog timeout, and delegates file-mutating kinds to a FileActor.
type ShellExecutor struct {
	WorkDir   string
	Timeout   time.Duration
	FileActor FileActor
}

// NewShellExecutor creates an executor rooted at workDir.
func NewShellExecutor(workDir string) *ShellExecutor {
	return &ShellExecutor{
		WorkDir:   workDir,
		Timeout:   DefaultCommandTimeout,
		FileActor: UnsupportedFileActor{},
	}
}

// Execute implements Executor.
func (e *ShellExecutor) Execute(ctx context.Context, act task.Action) Result {
	switch act.Kind {
	case task.KindRunCommand, task.KindRunTests, task.KindScanFiles:
		command := act.Command
		if command == "" {
			return Result{Err: "action has no command"}
		}
		return e.runCommand(ctx, command)
	case task.KindModifyFile, task.KindCreateFile, task.KindGenerateArtifact, task.KindAnalyzeTarget:
		if e.FileActor == nil {
			return UnsupportedFileActor{}.Apply(ctx, act)
		}
		return e.FileActor.Apply(ctx, act)
	default:
		return Result{Err: fmt.Sprintf("unknown action kind %q", act.Kind)}
	}
}

// runCommand executes the raw command line under `sh -c` with process group
// isolation. The watchdog is a context deadline: when the process has not
// returned by the ceiling, the whole process group is force-killed and the
// action is reported as a timeout failure.
func (e *ShellExecutor) runCommand(ctx context.Context, command string) Result {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "sh", "-c", command)
	cmd.Dir = e.WorkDir
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // own process group so the kill reaches the whole tree
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Err: fmt.Sprintf("creating stdout pipe: %v", err)}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{Err: fmt.Sprintf("creating stderr pipe: %v", err)}
	}

	if err := cmd.Start(); err != nil {
		return Result{Err: fmt.Sprintf("starting command: %v", err)}
	}

	// Drain both pipes before Wait so subprocess output larger than the pipe
	// buffer cannot deadlock the run.
	var stdoutBuf, stderrBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := stdoutBuf.ReadFrom(stdoutPipe)
		return err
	})
	g.Go(func() error {
		_, err := stderrBuf.ReadFrom(stderrPipe)
		return err
	})
	_ = g.Wait()

	waitErr := cmd.Wait()

	output := stdoutBuf.String()
	if stderrBuf.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += stderrBuf.String()
	}

	res := Result{Output: output}
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		res.Err = fmt.Sprintf("command timed out after %s", timeout)
		return res
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		res.Err = waitErr.Error()
		return res
	}

	res.Success = true
	res.ExitCode = 0
	return res
}
