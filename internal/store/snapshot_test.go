package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/floweriwe/stagehand/internal/task"
)

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func TestWriteAtomicReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := writeFile(path, "old contents"); err != nil {
		t.Fatal(err)
	}

	doc := &snapshotDoc{
		Tasks:          []task.Task{{ID: "a", Name: "a", Status: task.StatusPending}},
		CompletedCount: 0,
	}
	if err := writeAtomic(path, doc); err != nil {
		t.Fatal(err)
	}

	loaded, err := readSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Tasks) != 1 || loaded.Tasks[0].ID != "a" {
		t.Errorf("unexpected snapshot contents: %+v", loaded)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the snapshot file, found %d entries", len(entries))
	}
}

func TestReadSnapshotMissing(t *testing.T) {
	doc, err := readSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing snapshot must not error, got %v", err)
	}
	if doc != nil {
		t.Errorf("expected nil doc, got %+v", doc)
	}
}

func TestSnapshotWriterBreakerOpensOnBadPath(t *testing.T) {
	// A directory path that cannot be created (file in the way) makes every
	// write fail; after enough consecutive failures the breaker opens and
	// writes fail fast instead of hitting the disk.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	w := newSnapshotWriter(filepath.Join(blocker, "nested", "tasks.json"))
	doc := &snapshotDoc{}
	for i := 0; i < 5; i++ {
		if err := w.write(doc); err == nil {
			t.Fatal("expected write to fail")
		}
	}
}
