package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/floweriwe/stagehand/internal/action"
	"github.com/floweriwe/stagehand/internal/analyzer"
	"github.com/floweriwe/stagehand/internal/checkpoint"
	"github.com/floweriwe/stagehand/internal/events"
	"github.com/floweriwe/stagehand/internal/projectctx"
	"github.com/floweriwe/stagehand/internal/safety"
	"github.com/floweriwe/stagehand/internal/store"
	"github.com/floweriwe/stagehand/internal/task"
)

// Stop reasons reported in the run summary.
const (
	StopQueueDrained = "queue drained"
	StopQueueStarved = "queue starved: remaining tasks are blocked or unsatisfiable"
	StopTimeBudget   = "time budget exceeded"
	StopIterationCap = "iteration cap reached"
	StopCancelled    = "cancelled"
)

// Checkpointer is the version-control collaborator the loop checkpoints and
// rolls back through.
type Checkpointer interface {
	Save(ctx context.Context, taskID string) (*checkpoint.Checkpoint, error)
	Rollback(ctx context.Context, cp *checkpoint.Checkpoint) error
	Release(ctx context.Context, cp *checkpoint.Checkpoint) error
}

// Config parameterizes a Runner.
type Config struct {
	SessionBudget time.Duration // 0 disables the wall-clock budget
	TickDelay     time.Duration // pacing delay between iterations
	MaxIterations int           // 0 disables the cap
	DryRun        bool          // skip checkpointing and execution entirely
}

// Runner is the single-threaded execution loop: it pulls one ready task at a
// time, checkpoints, dispatches actions, commits or rolls back, and feeds the
// output through analysis to grow the queue.
type Runner struct {
	cfg      Config
	store    *store.Store
	analyzer *analyzer.Analyzer
	guard    *safety.Guard
	executor action.Executor
	vcs      Checkpointer
	sink     projectctx.Ledger
	bus      *events.Bus
}

// NewRunner wires a runner from its collaborators.
func NewRunner(cfg Config, st *store.Store, an *analyzer.Analyzer, guard *safety.Guard,
	exec action.Executor, vcs Checkpointer, sink projectctx.Ledger, bus *events.Bus) *Runner {
	if cfg.TickDelay <= 0 {
		cfg.TickDelay = 500 * time.Millisecond
	}
	return &Runner{
		cfg:      cfg,
		store:    st,
		analyzer: an,
		guard:    guard,
		executor: exec,
		vcs:      vcs,
		sink:     sink,
		bus:      bus,
	}
}

// Summary is the end-of-run report data.
type Summary struct {
	RunID      string
	StopReason string
	Elapsed    time.Duration
	Iterations int
	Stats      store.Stats
	Issues     int
	Warnings   int
	Generated  int
	Failed     []*task.Task
}

// Run drives the loop until the queue drains, the budget expires, or the
// context is cancelled. Task failures never abort the loop.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	runID, err := r.sink.BeginRun(ctx)
	if err != nil {
		log.Printf("WARNING: could not open run ledger entry: %v", err)
	}

	stopReason := StopQueueDrained
	iterations := 0

	for {
		if ctx.Err() != nil {
			stopReason = StopCancelled
			break
		}
		if r.cfg.SessionBudget > 0 && time.Since(start) > r.cfg.SessionBudget {
			stopReason = StopTimeBudget
			break
		}
		if r.cfg.MaxIterations > 0 && iterations >= r.cfg.MaxIterations {
			stopReason = StopIterationCap
			break
		}

		next := r.store.NextReady()
		if next == nil {
			pending, blocked := r.store.Remaining()
			if pending == 0 && blocked == 0 {
				stopReason = StopQueueDrained
			} else {
				stopReason = StopQueueStarved
			}
			break
		}

		iterations++
		r.executeOne(ctx, runID, next)
		r.publishProgress()

		select {
		case <-ctx.Done():
		case <-time.After(r.cfg.TickDelay):
		}
	}

	summary := r.buildSummary(runID, stopReason, time.Since(start), iterations)

	if err := r.sink.FinishRun(ctx, runID, stopReason,
		summary.Stats.ByStatus[task.StatusCompleted],
		summary.Stats.ByStatus[task.StatusFailed],
		summary.Generated); err != nil {
		log.Printf("WARNING: could not close run ledger entry: %v", err)
	}

	return summary, nil
}

// executeOne runs a single task through checkpoint, dispatch, outcome, and
// analysis. Failures are recorded on the task, never returned.
func (r *Runner) executeOne(ctx context.Context, runID string, t *task.Task) {
	taskStart := time.Now()

	if err := r.store.MarkRunning(t.ID); err != nil {
		log.Printf("ERROR: failed to mark task %q running: %v", t.ID, err)
		return
	}
	r.publish(events.TopicTask, events.TaskStartedEvent{
		ID: t.ID, Name: t.Name, Phase: t.Phase, Priority: t.Priority, Timestamp: taskStart,
	})

	if r.cfg.DryRun {
		// Validate the queue and reporting pipeline without touching the
		// tree or dispatching anything.
		_ = r.store.MarkCompleted(t.ID, map[string]any{"dry_run": true})
		r.finishTask(ctx, runID, t, "", 0, time.Since(taskStart))
		return
	}

	cp, err := r.vcs.Save(ctx, t.ID)
	if err != nil {
		// Without a checkpoint a failed task could not be rolled back, so
		// the task is not executed at all.
		reason := fmt.Sprintf("checkpoint failed: %v", err)
		log.Printf("ERROR: %s (task %q)", reason, t.ID)
		_ = r.store.MarkFailed(t.ID, reason)
		r.publish(events.TopicTask, events.TaskFailedEvent{
			ID: t.ID, Reason: reason, Duration: time.Since(taskStart), Timestamp: time.Now(),
		})
		r.record(ctx, runID, t.ID, string(task.StatusFailed), time.Since(taskStart), false, reason)
		return
	}

	output, exitCode, failReason := r.dispatchActions(ctx, t)
	duration := time.Since(taskStart)

	if failReason == "" {
		_ = r.store.MarkCompleted(t.ID, map[string]any{
			"duration": duration.String(),
			"output":   truncateTail(output, 2000),
		})
		if err := r.vcs.Release(ctx, cp); err != nil {
			log.Printf("WARNING: could not release checkpoint for task %q: %v", t.ID, err)
		}
		r.publish(events.TopicTask, events.TaskCompletedEvent{
			ID: t.ID, Duration: duration, Timestamp: time.Now(),
		})
		r.record(ctx, runID, t.ID, string(task.StatusCompleted), duration, cp != nil, "")
	} else {
		_ = r.store.MarkFailed(t.ID, failReason)
		rolledBack := false
		if cp != nil {
			if err := r.vcs.Rollback(ctx, cp); err != nil {
				log.Printf("ERROR: rollback failed for task %q: %v", t.ID, err)
			} else {
				rolledBack = true
			}
		}
		r.publish(events.TopicTask, events.TaskFailedEvent{
			ID: t.ID, Reason: failReason, RolledBack: rolledBack,
			Duration: duration, Timestamp: time.Now(),
		})
		r.record(ctx, runID, t.ID, string(task.StatusFailed), duration, cp != nil, failReason)
	}

	r.finishTask(ctx, runID, t, output, exitCode, duration)
}

// dispatchActions forwards the task's actions to the executor strictly in
// order, aborting on the first failure. All output is concatenated in
// execution order.
func (r *Runner) dispatchActions(ctx context.Context, t *task.Task) (output string, exitCode int, failReason string) {
	var buf strings.Builder

	for i, act := range t.Actions {
		if reason, ok := r.checkSafety(act); !ok {
			return buf.String(), exitCode, fmt.Sprintf("action %d rejected by safety guard: %s", i+1, reason)
		}

		res := r.executor.Execute(ctx, act)
		if res.Output != "" {
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(res.Output)
		}
		exitCode = res.ExitCode

		if !res.Success {
			reason := res.Err
			if reason == "" {
				reason = fmt.Sprintf("action %d (%s) failed", i+1, act.Kind)
			}
			if res.TimedOut {
				reason = "timeout: " + reason
			}
			return buf.String(), exitCode, reason
		}
	}

	return buf.String(), exitCode, ""
}

// checkSafety routes command and file-mutating actions through the guard
// before dispatch. Other kinds pass untouched.
func (r *Runner) checkSafety(act task.Action) (string, bool) {
	switch act.Kind {
	case task.KindRunCommand, task.KindRunTests, task.KindScanFiles:
		if ok, reason := r.guard.CheckCommand(act.Command); !ok {
			return reason, false
		}
	case task.KindModifyFile, task.KindCreateFile, task.KindGenerateArtifact:
		if !r.guard.CheckPath(act.Target) {
			return fmt.Sprintf("path %q not allowed", act.Target), false
		}
	}
	return "", true
}

// finishTask runs the analysis pipeline that follows every execution,
// successful or not: extract findings, enqueue generated tasks, forward
// context facts.
func (r *Runner) finishTask(ctx context.Context, runID string, t *task.Task, output string, exitCode int, duration time.Duration) {
	res := r.analyzer.Analyze(t, output, exitCode)

	for _, issue := range res.Issues {
		log.Printf("WARNING: task %q issue: %s", t.ID, issue)
		r.publish(events.TopicTask, events.FindingEvent{
			ID: t.ID, Severity: "issue", Text: issue, Timestamp: time.Now(),
		})
	}
	for _, warning := range res.Warnings {
		log.Printf("WARNING: task %q warning: %s", t.ID, warning)
		r.publish(events.TopicTask, events.FindingEvent{
			ID: t.ID, Severity: "warning", Text: warning, Timestamp: time.Now(),
		})
	}

	if len(res.NewTasks) > 0 {
		if err := r.store.AddAll(res.NewTasks); err != nil {
			log.Printf("ERROR: rejected generated tasks from %q: %v", t.ID, err)
		} else {
			ids := make([]string, len(res.NewTasks))
			for i, gen := range res.NewTasks {
				ids[i] = gen.ID
			}
			r.publish(events.TopicTask, events.TasksGeneratedEvent{
				ID: t.ID, Generated: ids, Timestamp: time.Now(),
			})
		}
	}

	if len(res.Facts) > 0 {
		if err := r.sink.Apply(ctx, t.ID, res.Facts); err != nil {
			log.Printf("WARNING: could not record context facts for %q: %v", t.ID, err)
		}
	}

	if r.cfg.DryRun {
		r.record(ctx, runID, t.ID, string(task.StatusCompleted), duration, false, "")
	}
}

func (r *Runner) record(ctx context.Context, runID, taskID, status string, duration time.Duration, checkpointed bool, errText string) {
	if err := r.sink.RecordExecution(ctx, projectctx.ExecutionRecord{
		RunID:        runID,
		TaskID:       taskID,
		Status:       status,
		Duration:     duration,
		Checkpointed: checkpointed,
		Error:        errText,
	}); err != nil {
		log.Printf("WARNING: could not record execution of %q: %v", taskID, err)
	}
}

func (r *Runner) publish(topic string, ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(topic, ev)
	}
}

func (r *Runner) publishProgress() {
	if r.bus == nil {
		return
	}
	stats := r.store.Summarize()
	r.bus.Publish(events.TopicQueue, events.QueueProgressEvent{
		Total:     stats.Total,
		Completed: stats.ByStatus[task.StatusCompleted],
		Failed:    stats.ByStatus[task.StatusFailed],
		Pending:   stats.ByStatus[task.StatusPending],
		Blocked:   stats.ByStatus[task.StatusBlocked],
		Skipped:   stats.ByStatus[task.StatusSkipped],
		Progress:  stats.Progress,
		Timestamp: time.Now(),
	})
}

func (r *Runner) buildSummary(runID, stopReason string, elapsed time.Duration, iterations int) *Summary {
	issues, warnings, generated := r.analyzer.Totals()

	summary := &Summary{
		RunID:      runID,
		StopReason: stopReason,
		Elapsed:    elapsed,
		Iterations: iterations,
		Stats:      r.store.Summarize(),
		Issues:     issues,
		Warnings:   warnings,
		Generated:  generated,
	}
	summary.Failed = r.store.Failed()
	return summary
}

// truncateTail keeps the last limit runes of s; the end of the output is
// where failures explain themselves.
func truncateTail(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return "..." + string(runes[len(runes)-limit:])
}
