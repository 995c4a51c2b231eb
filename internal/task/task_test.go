package task

import (
	"testing"
	"time"
)

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	orig := &Task{
		ID:           "t1",
		Name:         "seed venues",
		Dependencies: []string{"t0"},
		Actions: []Action{
			{Kind: KindRunCommand, Command: "python seed.py", Params: map[string]string{"count": "10"}},
		},
		StartedAt: &now,
		Result:    map[string]any{"output": "ok"},
	}

	cp := orig.Clone()
	cp.Dependencies[0] = "other"
	cp.Actions[0].Params["count"] = "99"
	cp.Result["output"] = "changed"
	*cp.StartedAt = now.Add(time.Hour)

	if orig.Dependencies[0] != "t0" {
		t.Errorf("dependencies shared between clone and original")
	}
	if orig.Actions[0].Params["count"] != "10" {
		t.Errorf("action params shared between clone and original")
	}
	if orig.Result["output"] != "ok" {
		t.Errorf("result map shared between clone and original")
	}
	if !orig.StartedAt.Equal(now) {
		t.Errorf("timestamps shared between clone and original")
	}
}

func TestCloneNil(t *testing.T) {
	var missing *Task
	if missing.Clone() != nil {
		t.Errorf("cloning nil task should return nil")
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:   false,
		StatusRunning:   false,
		StatusBlocked:   false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusSkipped:   true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("Terminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestDependsOn(t *testing.T) {
	task := &Task{Dependencies: []string{"a", "b"}}
	if !task.DependsOn("a") {
		t.Errorf("DependsOn(a) = false")
	}
	if task.DependsOn("c") {
		t.Errorf("DependsOn(c) = true")
	}
}
