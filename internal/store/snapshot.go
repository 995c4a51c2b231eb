package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker"

	"github.com/floweriwe/stagehand/internal/task"
)

// snapshotDoc is the persisted queue document: the whole task collection plus
// running completion totals, rewritten after every mutation.
type snapshotDoc struct {
	Tasks          []task.Task `json:"tasks"`
	CompletedCount int         `json:"completed_count"`
	FailedCount    int         `json:"failed_count"`
}

// snapshotWriter writes the queue document atomically (temp file + rename) so
// a crash mid-write never corrupts the previous snapshot. Writes go through a
// circuit breaker: persistence is best effort, and a failing disk must not
// stall the scheduling loop on every mutation.
type snapshotWriter struct {
	path    string
	breaker *gobreaker.CircuitBreaker
}

func newSnapshotWriter(path string) *snapshotWriter {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "task-snapshot",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("WARNING: snapshot writer %q: %s -> %s", name, from, to)
		},
	})
	return &snapshotWriter{path: path, breaker: cb}
}

func (w *snapshotWriter) write(doc *snapshotDoc) error {
	_, err := w.breaker.Execute(func() (interface{}, error) {
		return nil, writeAtomic(w.path, doc)
	})
	return err
}

// writeAtomic marshals doc and replaces path in a single rename.
func writeAtomic(path string, doc *snapshotDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// readSnapshot loads the queue document. A missing file returns (nil, nil).
func readSnapshot(path string) (*snapshotDoc, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &doc, nil
}
