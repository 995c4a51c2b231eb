package analyzer

import (
	"strings"
	"testing"

	"github.com/floweriwe/stagehand/internal/task"
)

func TestGenericScan(t *testing.T) {
	a := New()
	output := strings.Join([]string{
		"collecting tests",
		"ERROR: database connection refused",
		"WARNING: deprecated call in app/models.py",
		"ERROR: database connection refused", // duplicate, must be dropped
		"all done",
	}, "\n")

	res := a.Analyze(&task.Task{ID: "t1", Phase: "backend"}, output, 0)

	if len(res.Issues) != 1 {
		t.Fatalf("expected 1 de-duplicated issue, got %d: %v", len(res.Issues), res.Issues)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(res.Warnings), res.Warnings)
	}
	if len(res.NewTasks) != 0 {
		t.Errorf("no strategy matches phase backend, got %d tasks", len(res.NewTasks))
	}
}

func TestGenericScanNonZeroExitWithoutMarkers(t *testing.T) {
	a := New()
	res := a.Analyze(&task.Task{ID: "t1"}, "quiet output", 2)
	if len(res.Issues) != 1 || !strings.Contains(res.Issues[0], "exited with code 2") {
		t.Fatalf("expected synthetic exit-code issue, got %v", res.Issues)
	}
}

func TestGenericScanTruncatesLongLines(t *testing.T) {
	a := New()
	long := "ERROR: " + strings.Repeat("x", 500)
	res := a.Analyze(&task.Task{ID: "t1"}, long, 0)
	if len(res.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(res.Issues))
	}
	if got := len([]rune(res.Issues[0])); got > maxFindingLength+3 {
		t.Errorf("issue not truncated: %d runes", got)
	}
}

func TestCreateModelGeneratesChain(t *testing.T) {
	a := New()
	trigger := &task.Task{
		ID:    "2.2.create-widget",
		Name:  "Create Widget model",
		Phase: "database",
	}

	res := a.Analyze(trigger, "migration applied cleanly", 0)

	if len(res.NewTasks) != 4 {
		t.Fatalf("expected exactly 4 generated tasks, got %d", len(res.NewTasks))
	}

	// Linear chain: each task depends on the previous, plus everything
	// depends (directly or transitively) on the trigger.
	prev := trigger.ID
	for i, gen := range res.NewTasks {
		if !gen.AutoGenerated {
			t.Errorf("task %d not marked auto-generated", i)
		}
		if gen.GeneratedBy != trigger.ID {
			t.Errorf("task %d generated_by = %q, want %q", i, gen.GeneratedBy, trigger.ID)
		}
		if !gen.DependsOn(prev) {
			t.Errorf("task %d (%s) does not depend on %q: deps %v", i, gen.ID, prev, gen.Dependencies)
		}
		if !strings.Contains(gen.Name, "Widget") {
			t.Errorf("task %d name %q not entity-named", i, gen.Name)
		}
		prev = gen.ID
	}
}

func TestCreateModelNoChainOnFailure(t *testing.T) {
	a := New()
	trigger := &task.Task{ID: "t", Name: "Create Widget model", Phase: "database"}
	res := a.Analyze(trigger, "ERROR: migration failed", 1)
	if len(res.NewTasks) != 0 {
		t.Errorf("failed task must not expand, got %d tasks", len(res.NewTasks))
	}
}

func TestCreateModelNoChainWithoutPattern(t *testing.T) {
	a := New()
	trigger := &task.Task{ID: "t", Name: "Refactor widget queries", Phase: "database"}
	res := a.Analyze(trigger, "done", 0)
	if len(res.NewTasks) != 0 {
		t.Errorf("name without the create-model pattern must not expand, got %d tasks", len(res.NewTasks))
	}
}

func TestMultipleHeadsFollowUp(t *testing.T) {
	a := New()
	trigger := &task.Task{ID: "mig-7", Name: "Apply pending migrations", Phase: "migration"}
	output := "INFO migration ok\nMultiple head revisions are present"

	res := a.Analyze(trigger, output, 0)

	if len(res.NewTasks) != 1 {
		t.Fatalf("expected 1 follow-up, got %d", len(res.NewTasks))
	}
	gen := res.NewTasks[0]
	if gen.Priority != task.PriorityCritical {
		t.Errorf("merge-heads task priority = %v, want critical", gen.Priority)
	}
	if len(gen.Actions) != 2 {
		t.Fatalf("expected the two canonical resolution commands, got %d actions", len(gen.Actions))
	}
	if !gen.DependsOn(trigger.ID) {
		t.Errorf("follow-up must depend on its trigger: %v", gen.Dependencies)
	}
}

func TestHistoryAndTotals(t *testing.T) {
	a := New()
	a.Analyze(&task.Task{ID: "a"}, "ERROR: one", 0)
	a.Analyze(&task.Task{ID: "b", Name: "Create Show model", Phase: "database"}, "ok", 0)

	if len(a.History()) != 2 {
		t.Fatalf("history length = %d, want 2", len(a.History()))
	}
	issues, _, generated := a.Totals()
	if issues != 1 {
		t.Errorf("issues total = %d, want 1", issues)
	}
	if generated != 4 {
		t.Errorf("generated total = %d, want 4", generated)
	}
}
