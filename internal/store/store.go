package store

import (
	"fmt"
	"log"
	"time"

	"github.com/gammazero/toposort"

	"github.com/floweriwe/stagehand/internal/task"
)

// Store owns the task collection. It computes readiness, performs status
// transitions, and writes a JSON snapshot after every mutation.
//
// The store has exactly one writer (the orchestrator loop); it is not safe
// for concurrent use and does not try to be.
type Store struct {
	tasks      map[string]*task.Task
	order      []string            // insertion order, breaks priority ties
	dependents map[string][]string // dep id -> ids of tasks that list it

	completedCount int
	failedCount    int

	snapshot *snapshotWriter // nil disables persistence
}

// New creates an empty store with persistence disabled.
func New() *Store {
	return &Store{
		tasks:      make(map[string]*task.Task),
		dependents: make(map[string][]string),
	}
}

// Open creates a store backed by the snapshot document at path. An existing
// document is loaded; load errors are logged and treated as "start empty"
// rather than failing the process.
func Open(path string) *Store {
	s := New()
	s.snapshot = newSnapshotWriter(path)

	doc, err := readSnapshot(path)
	if err != nil {
		log.Printf("WARNING: could not load task snapshot from %s, starting empty: %v", path, err)
		return s
	}
	if doc == nil {
		return s
	}

	for _, t := range doc.Tasks {
		tt := t
		s.tasks[tt.ID] = &tt
		s.order = append(s.order, tt.ID)
		for _, dep := range tt.Dependencies {
			s.dependents[dep] = append(s.dependents[dep], tt.ID)
		}
	}
	s.completedCount = doc.CompletedCount
	s.failedCount = doc.FailedCount
	return s
}

// Add inserts a task. Inserting a duplicate id is a no-op (logged, not an
// error). New tasks always start pending with created_at set.
func (s *Store) Add(t *task.Task) {
	if t == nil || t.ID == "" {
		return
	}
	if _, exists := s.tasks[t.ID]; exists {
		log.Printf("WARNING: task %q already registered, ignoring duplicate", t.ID)
		return
	}

	owned := t.Clone()
	owned.Status = task.StatusPending
	if owned.CreatedAt.IsZero() {
		owned.CreatedAt = time.Now()
	}

	// Dangling dependency ids are tolerated (treated as unsatisfied, not
	// missing) but a typo'd id stalls the task forever, so diagnose it once.
	for _, dep := range owned.Dependencies {
		if _, ok := s.tasks[dep]; !ok {
			log.Printf("WARNING: task %q depends on unregistered task %q", owned.ID, dep)
		}
	}

	s.tasks[owned.ID] = owned
	s.order = append(s.order, owned.ID)
	for _, dep := range owned.Dependencies {
		s.dependents[dep] = append(s.dependents[dep], owned.ID)
	}

	s.persist()
}

// AddAll inserts a batch of tasks after checking that the batch would not
// introduce a dependency cycle. A cyclic batch is rejected wholesale.
func (s *Store) AddAll(tasks []*task.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := s.validateBatch(tasks); err != nil {
		return err
	}
	for _, t := range tasks {
		s.Add(t)
	}
	return nil
}

// validateBatch runs a topological sort over the current graph plus the
// incoming batch. Edges to unregistered ids are skipped: a dangling
// dependency is unsatisfiable, not cyclic.
func (s *Store) validateBatch(batch []*task.Task) error {
	present := make(map[string]bool, len(s.tasks)+len(batch))
	for id := range s.tasks {
		present[id] = true
	}
	for _, t := range batch {
		if t != nil && t.ID != "" {
			present[t.ID] = true
		}
	}

	var edges []toposort.Edge
	addEdges := func(t *task.Task) {
		if len(t.Dependencies) == 0 {
			edges = append(edges, toposort.Edge{nil, t.ID})
			return
		}
		for _, dep := range t.Dependencies {
			if present[dep] {
				edges = append(edges, toposort.Edge{dep, t.ID})
			} else {
				edges = append(edges, toposort.Edge{nil, t.ID})
			}
		}
	}
	for _, t := range s.tasks {
		addEdges(t)
	}
	for _, t := range batch {
		if t != nil && t.ID != "" {
			addEdges(t)
		}
	}

	if _, err := toposort.Toposort(edges); err != nil {
		return fmt.Errorf("task batch would create a dependency cycle: %w", err)
	}
	return nil
}

// NextReady returns the next runnable task, or nil when no pending task has
// all dependencies completed. As a side effect of the same scan, any pending
// task with a failed dependency is flipped to blocked.
//
// Selection is by numerically smallest priority; ties go to the
// first-registered task.
func (s *Store) NextReady() *task.Task {
	var best *task.Task
	mutated := false

	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status != task.StatusPending {
			continue
		}

		if s.hasFailedDependency(t) {
			t.Status = task.StatusBlocked
			mutated = true
			continue
		}

		if !s.dependenciesSatisfied(t) {
			continue
		}

		if best == nil || t.Priority < best.Priority {
			best = t
		}
	}

	if mutated {
		s.persist()
	}
	if best == nil {
		return nil
	}
	return best.Clone()
}

// dependenciesSatisfied reports whether every dependency exists with status
// completed. An id not yet registered counts as unsatisfied.
func (s *Store) dependenciesSatisfied(t *task.Task) bool {
	for _, dep := range t.Dependencies {
		d, ok := s.tasks[dep]
		if !ok || d.Status != task.StatusCompleted {
			return false
		}
	}
	return true
}

func (s *Store) hasFailedDependency(t *task.Task) bool {
	for _, dep := range t.Dependencies {
		if d, ok := s.tasks[dep]; ok && d.Status == task.StatusFailed {
			return true
		}
	}
	return false
}

// MarkRunning transitions a task to running and stamps started_at.
func (s *Store) MarkRunning(id string) error {
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	now := time.Now()
	t.Status = task.StatusRunning
	t.StartedAt = &now
	s.persist()
	return nil
}

// MarkCompleted transitions a task to completed, stores the result payload,
// and re-examines blocked tasks whose blocking condition may have cleared.
func (s *Store) MarkCompleted(id string, result map[string]any) error {
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	now := time.Now()
	t.Status = task.StatusCompleted
	t.CompletedAt = &now
	t.Result = result
	s.completedCount++

	s.unblockCleared()
	s.persist()
	return nil
}

// MarkFailed transitions a task to failed with a truncated error payload.
func (s *Store) MarkFailed(id, errText string) error {
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	now := time.Now()
	t.Status = task.StatusFailed
	t.CompletedAt = &now
	t.Error = truncate(errText, 500)
	s.failedCount++
	s.persist()
	return nil
}

// MarkSkipped administratively skips a pending task.
func (s *Store) MarkSkipped(id string) error {
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	if t.Status != task.StatusPending && t.Status != task.StatusBlocked {
		return fmt.Errorf("task %q cannot be skipped from status %q", id, t.Status)
	}
	now := time.Now()
	t.Status = task.StatusSkipped
	t.CompletedAt = &now
	s.persist()
	return nil
}

// unblockCleared returns blocked tasks to pending once no dependency is
// failed. A permanently failed dependency keeps its dependents blocked.
func (s *Store) unblockCleared() {
	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status != task.StatusBlocked {
			continue
		}
		if !s.hasFailedDependency(t) {
			t.Status = task.StatusPending
		}
	}
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (*task.Task, bool) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Tasks returns copies of all tasks in insertion order.
func (s *Store) Tasks() []*task.Task {
	out := make([]*task.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id].Clone())
	}
	return out
}

// Failed returns copies of failed tasks in insertion order.
func (s *Store) Failed() []*task.Task {
	var out []*task.Task
	for _, id := range s.order {
		if t := s.tasks[id]; t.Status == task.StatusFailed {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Remaining reports whether any pending or blocked tasks are left. Callers
// use it to distinguish "queue drained" from "everything blocked or failed"
// when NextReady returns nil.
func (s *Store) Remaining() (pending, blocked int) {
	for _, t := range s.tasks {
		switch t.Status {
		case task.StatusPending:
			pending++
		case task.StatusBlocked:
			blocked++
		}
	}
	return pending, blocked
}

// Stats summarizes the store for reporting.
type Stats struct {
	Total         int                 `json:"total"`
	ByStatus      map[task.Status]int `json:"by_status"`
	AutoGenerated int                 `json:"auto_generated"`
	Progress      float64             `json:"progress"`
}

// Summarize computes per-status counts and overall progress.
func (s *Store) Summarize() Stats {
	stats := Stats{
		Total:    len(s.tasks),
		ByStatus: make(map[task.Status]int),
	}
	completed := 0
	for _, t := range s.tasks {
		stats.ByStatus[t.Status]++
		if t.AutoGenerated {
			stats.AutoGenerated++
		}
		if t.Status == task.StatusCompleted {
			completed++
		}
	}
	if stats.Total > 0 {
		stats.Progress = float64(completed) / float64(stats.Total) * 100
	}
	return stats
}

func (s *Store) persist() {
	if s.snapshot == nil {
		return
	}

	doc := snapshotDoc{
		Tasks:          make([]task.Task, 0, len(s.order)),
		CompletedCount: s.completedCount,
		FailedCount:    s.failedCount,
	}
	for _, id := range s.order {
		doc.Tasks = append(doc.Tasks, *s.tasks[id].Clone())
	}

	if err := s.snapshot.write(&doc); err != nil {
		log.Printf("WARNING: failed to persist task snapshot: %v", err)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
