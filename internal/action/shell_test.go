package action

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/floweriwe/stagehand/internal/task"
)

func TestRunCommandSuccess(t *testing.T) {
	e := NewShellExecutor(t.TempDir())
	res := e.Execute(context.Background(), task.Action{
		Kind:    task.KindRunCommand,
		Command: "echo hello",
	})

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(res.Output, "hello") {
		t.Errorf("output %q missing command output", res.Output)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestRunCommandFailure(t *testing.T) {
	e := NewShellExecutor(t.TempDir())
	res := e.Execute(context.Background(), task.Action{
		Kind:    task.KindRunCommand,
		Command: "echo doomed && exit 3",
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Output, "doomed") {
		t.Errorf("output %q lost despite failure", res.Output)
	}
}

func TestRunCommandCapturesStderr(t *testing.T) {
	e := NewShellExecutor(t.TempDir())
	res := e.Execute(context.Background(), task.Action{
		Kind:    task.KindRunCommand,
		Command: "echo out; echo err 1>&2",
	})

	if !strings.Contains(res.Output, "out") || !strings.Contains(res.Output, "err") {
		t.Errorf("output %q should contain both streams", res.Output)
	}
}

func TestRunCommandWatchdogTimeout(t *testing.T) {
	e := NewShellExecutor(t.TempDir())
	e.Timeout = 200 * time.Millisecond

	start := time.Now()
	res := e.Execute(context.Background(), task.Action{
		Kind:    task.KindRunCommand,
		Command: "sleep 30",
	})
	elapsed := time.Since(start)

	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if !res.TimedOut {
		t.Errorf("expected TimedOut, got %+v", res)
	}
	if !strings.Contains(res.Err, "timed out") {
		t.Errorf("error %q should name the timeout", res.Err)
	}
	if elapsed > 10*time.Second {
		t.Errorf("watchdog did not terminate promptly: %s", elapsed)
	}
}

func TestRunCommandEmpty(t *testing.T) {
	e := NewShellExecutor(t.TempDir())
	res := e.Execute(context.Background(), task.Action{Kind: task.KindRunTests})
	if res.Success {
		t.Fatal("empty command must fail")
	}
}

func TestFileActionsDelegated(t *testing.T) {
	e := NewShellExecutor(t.TempDir())
	res := e.Execute(context.Background(), task.Action{
		Kind:   task.KindCreateFile,
		Target: "app/models/show.py",
	})
	if res.Success {
		t.Fatal("stub file actor must report unsupported")
	}
	if !strings.Contains(res.Err, "no file actor") {
		t.Errorf("unexpected error %q", res.Err)
	}
}

func TestUnknownKind(t *testing.T) {
	e := NewShellExecutor(t.TempDir())
	res := e.Execute(context.Background(), task.Action{Kind: "teleport"})
	if res.Success || !strings.Contains(res.Err, "unknown action kind") {
		t.Errorf("unexpected result %+v", res)
	}
}
