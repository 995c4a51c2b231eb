package store

import (
	"path/filepath"
	"testing"

	"github.com/floweriwe/stagehand/internal/task"
)

func newTask(id string, priority task.Priority, deps ...string) *task.Task {
	return &task.Task{
		ID:           id,
		Name:         "task " + id,
		Priority:     priority,
		Dependencies: deps,
	}
}

func TestAddDuplicateIsNoOp(t *testing.T) {
	s := New()
	s.Add(newTask("a", task.PriorityHigh))

	dup := newTask("a", task.PriorityCritical)
	dup.Name = "different name"
	s.Add(dup)

	if got := len(s.Tasks()); got != 1 {
		t.Fatalf("expected 1 task after duplicate add, got %d", got)
	}
	stored, _ := s.Get("a")
	if stored.Name != "task a" {
		t.Errorf("duplicate add mutated stored task: name = %q", stored.Name)
	}
}

func TestNextReadyDependencyGating(t *testing.T) {
	s := New()
	s.Add(newTask("a", task.PriorityHigh))
	s.Add(newTask("b", task.PriorityCritical, "a"))

	// b has the smaller priority value but an incomplete dependency.
	next := s.NextReady()
	if next == nil || next.ID != "a" {
		t.Fatalf("expected a, got %+v", next)
	}

	if err := s.MarkRunning("a"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkCompleted("a", nil); err != nil {
		t.Fatal(err)
	}

	next = s.NextReady()
	if next == nil || next.ID != "b" {
		t.Fatalf("expected b after a completed, got %+v", next)
	}
}

func TestNextReadyForwardReference(t *testing.T) {
	s := New()
	// Dependency on an id that is not registered yet: unsatisfied, not missing.
	s.Add(newTask("child", task.PriorityCritical, "parent"))

	if next := s.NextReady(); next != nil {
		t.Fatalf("task with unregistered dependency must not be ready, got %q", next.ID)
	}

	s.Add(newTask("parent", task.PriorityHigh))
	if next := s.NextReady(); next == nil || next.ID != "parent" {
		t.Fatalf("expected parent to be ready, got %+v", next)
	}

	s.MarkRunning("parent")
	s.MarkCompleted("parent", nil)

	if next := s.NextReady(); next == nil || next.ID != "child" {
		t.Fatalf("expected child once parent completed, got %+v", next)
	}
}

func TestNextReadyPriorityAndInsertionOrder(t *testing.T) {
	s := New()
	s.Add(newTask("low", task.PriorityLow))
	s.Add(newTask("med-1", task.PriorityMedium))
	s.Add(newTask("med-2", task.PriorityMedium))
	s.Add(newTask("crit", task.PriorityCritical))

	want := []string{"crit", "med-1", "med-2", "low"}
	for _, expected := range want {
		next := s.NextReady()
		if next == nil || next.ID != expected {
			t.Fatalf("expected %q, got %+v", expected, next)
		}
		s.MarkRunning(next.ID)
		s.MarkCompleted(next.ID, nil)
	}
}

func TestFailedDependencyBlocksPermanently(t *testing.T) {
	s := New()
	s.Add(newTask("a", task.PriorityHigh))
	s.Add(newTask("b", task.PriorityHigh, "a"))

	s.MarkRunning("a")
	s.MarkFailed("a", "boom")

	// The scan that finds the failed dependency flips b to blocked.
	if next := s.NextReady(); next != nil {
		t.Fatalf("expected no ready task, got %q", next.ID)
	}
	b, _ := s.Get("b")
	if b.Status != task.StatusBlocked {
		t.Fatalf("expected b blocked, got %q", b.Status)
	}

	// Further scans never return it to pending: the failed dependency is
	// terminal.
	for i := 0; i < 3; i++ {
		s.NextReady()
	}
	b, _ = s.Get("b")
	if b.Status != task.StatusBlocked {
		t.Errorf("b must stay blocked, got %q", b.Status)
	}

	pending, blocked := s.Remaining()
	if pending != 0 || blocked != 1 {
		t.Errorf("Remaining() = (%d, %d), want (0, 1)", pending, blocked)
	}
}

func TestBlockedAddedAfterFailure(t *testing.T) {
	s := New()
	s.Add(newTask("a", task.PriorityHigh))
	s.MarkRunning("a")
	s.MarkFailed("a", "boom")

	s.Add(newTask("b", task.PriorityHigh, "a"))
	if next := s.NextReady(); next != nil {
		t.Fatalf("expected nothing ready, got %q", next.ID)
	}
	b, _ := s.Get("b")
	if b.Status != task.StatusBlocked {
		t.Errorf("expected b blocked immediately, got %q", b.Status)
	}
}

func TestUnblockWhenConditionClears(t *testing.T) {
	// A blocked task with two deps, one completed and one failed, stays
	// blocked; once its only failed dep is the one that completes elsewhere
	// the block lifts. Constructed via two independent deps.
	s := New()
	s.Add(newTask("ok", task.PriorityHigh))
	s.Add(newTask("child", task.PriorityHigh, "ok"))

	s.MarkRunning("ok")
	s.MarkCompleted("ok", nil)

	next := s.NextReady()
	if next == nil || next.ID != "child" {
		t.Fatalf("expected child ready, got %+v", next)
	}
}

func TestMarkSkipped(t *testing.T) {
	s := New()
	s.Add(newTask("a", task.PriorityHigh))
	if err := s.MarkSkipped("a"); err != nil {
		t.Fatal(err)
	}
	a, _ := s.Get("a")
	if a.Status != task.StatusSkipped {
		t.Errorf("expected skipped, got %q", a.Status)
	}

	// Terminal states cannot be skipped.
	if err := s.MarkSkipped("a"); err == nil {
		t.Error("expected error skipping a terminal task")
	}
}

func TestAddAllRejectsCycles(t *testing.T) {
	s := New()
	s.Add(newTask("seed", task.PriorityHigh))

	batch := []*task.Task{
		newTask("x", task.PriorityHigh, "y"),
		newTask("y", task.PriorityHigh, "x"),
	}
	if err := s.AddAll(batch); err == nil {
		t.Fatal("expected cycle rejection")
	}
	if got := len(s.Tasks()); got != 1 {
		t.Errorf("cyclic batch must not be inserted, store has %d tasks", got)
	}

	chain := []*task.Task{
		newTask("c1", task.PriorityHigh, "seed"),
		newTask("c2", task.PriorityHigh, "c1"),
	}
	if err := s.AddAll(chain); err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}
	if got := len(s.Tasks()); got != 3 {
		t.Errorf("expected 3 tasks after chain add, got %d", got)
	}
}

func TestSummarize(t *testing.T) {
	s := New()
	s.Add(newTask("a", task.PriorityHigh))
	gen := newTask("b", task.PriorityHigh)
	gen.AutoGenerated = true
	s.Add(gen)

	s.MarkRunning("a")
	s.MarkCompleted("a", nil)

	stats := s.Summarize()
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.ByStatus[task.StatusCompleted] != 1 {
		t.Errorf("completed count = %d, want 1", stats.ByStatus[task.StatusCompleted])
	}
	if stats.AutoGenerated != 1 {
		t.Errorf("AutoGenerated = %d, want 1", stats.AutoGenerated)
	}
	if stats.Progress != 50 {
		t.Errorf("Progress = %v, want 50", stats.Progress)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "tasks.json")

	s := Open(path)
	s.Add(newTask("a", task.PriorityCritical))
	s.Add(newTask("b", task.PriorityMedium, "a"))
	s.MarkRunning("a")
	s.MarkCompleted("a", map[string]any{"duration": "1s"})
	s.MarkRunning("b")
	s.MarkFailed("b", "exploded")

	reloaded := Open(path)
	tasks := reloaded.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks after reload, got %d", len(tasks))
	}

	a, ok := reloaded.Get("a")
	if !ok || a.Status != task.StatusCompleted {
		t.Errorf("a not restored as completed: %+v", a)
	}
	if a.StartedAt == nil || a.CompletedAt == nil {
		t.Error("timestamps lost in round trip")
	}

	b, _ := reloaded.Get("b")
	if b.Status != task.StatusFailed || b.Error != "exploded" {
		t.Errorf("b not restored as failed: %+v", b)
	}
	if len(b.Dependencies) != 1 || b.Dependencies[0] != "a" {
		t.Errorf("dependencies lost: %v", b.Dependencies)
	}

	stats := reloaded.Summarize()
	if stats.Progress != 50 {
		t.Errorf("Progress after reload = %v, want 50", stats.Progress)
	}
}

func TestOpenMissingOrCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()

	// Missing file: start empty.
	s := Open(filepath.Join(dir, "missing.json"))
	if len(s.Tasks()) != 0 {
		t.Error("expected empty store for missing snapshot")
	}

	// Corrupt file: logged, start empty, still usable.
	corrupt := filepath.Join(dir, "corrupt.json")
	if err := writeFile(corrupt, "{not json"); err != nil {
		t.Fatal(err)
	}
	s = Open(corrupt)
	if len(s.Tasks()) != 0 {
		t.Error("expected empty store for corrupt snapshot")
	}
	s.Add(newTask("a", task.PriorityHigh))
	if _, ok := s.Get("a"); !ok {
		t.Error("store unusable after corrupt load")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	long := make([]rune, 600)
	for i := range long {
		long[i] = 'x'
	}
	got := truncate(string(long), 500)
	if len([]rune(got)) != 503 {
		t.Errorf("truncated length = %d, want 503", len([]rune(got)))
	}
}
