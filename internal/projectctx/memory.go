package projectctx

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MemorySink is an in-memory Ledger for tests and database-less runs.
type MemorySink struct {
	Recorded   map[string]map[string]string
	Runs       map[string]string // run id -> stop reason ("" while open)
	Executions []ExecutionRecord
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		Recorded: make(map[string]map[string]string),
		Runs:     make(map[string]string),
	}
}

// Apply implements Sink.
func (m *MemorySink) Apply(ctx context.Context, taskID string, facts map[string]any) error {
	if len(facts) == 0 {
		return nil
	}
	bucket := m.Recorded[taskID]
	if bucket == nil {
		bucket = make(map[string]string)
		m.Recorded[taskID] = bucket
	}
	for k, v := range facts {
		bucket[k] = fmt.Sprint(v)
	}
	return nil
}

// BeginRun implements Ledger.
func (m *MemorySink) BeginRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	m.Runs[id] = ""
	return id, nil
}

// FinishRun implements Ledger.
func (m *MemorySink) FinishRun(ctx context.Context, runID, stopReason string, completed, failed, generated int) error {
	if _, ok := m.Runs[runID]; !ok {
		return fmt.Errorf("run %q not found", runID)
	}
	m.Runs[runID] = stopReason
	return nil
}

// RecordExecution implements Ledger.
func (m *MemorySink) RecordExecution(ctx context.Context, rec ExecutionRecord) error {
	m.Executions = append(m.Executions, rec)
	return nil
}

// Close implements Ledger.
func (m *MemorySink) Close() error { return nil }

var _ Ledger = (*MemorySink)(nil)
