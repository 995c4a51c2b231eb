package analyzer

import (
	"github.com/floweriwe/stagehand/internal/task"
)

// Result is the outcome of analyzing one finished task.
type Result struct {
	TaskID   string
	Issues   []string
	Warnings []string
	NewTasks []*task.Task
	Facts    map[string]any
}

// Strategy is a phase-specific analysis pass. Strategies are independent and
// additive: each one appends to the shared result.
type Strategy interface {
	// Matches reports whether this strategy applies to the given phase label.
	Matches(phase string) bool

	// Analyze inspects a finished task's output and appends findings,
	// generated follow-up tasks, and context facts to res.
	Analyze(t *task.Task, output string, exitCode int, res *Result)
}

// Analyzer pattern-matches task output to extract issues and warnings and,
// for certain phases, synthesize follow-on tasks and context facts.
type Analyzer struct {
	strategies []Strategy
	history    []Result
}

// New creates an analyzer with the default strategy set.
func New() *Analyzer {
	return &Analyzer{
		strategies: []Strategy{
			&MigrationStrategy{},
			NewSeedingStrategy(),
			&VerificationStrategy{CoverageThreshold: defaultCoverageThreshold},
			&FrontendStrategy{},
		},
	}
}

// NewWithStrategies creates an analyzer with a custom strategy set.
func NewWithStrategies(strategies ...Strategy) *Analyzer {
	return &Analyzer{strategies: strategies}
}

// Analyze runs the generic pass and every strategy matching the task's phase.
// Generated tasks always gain the trigger task as a dependency so no chain
// can run before the task that produced it completed.
func (a *Analyzer) Analyze(t *task.Task, output string, exitCode int) Result {
	res := Result{
		TaskID: t.ID,
		Facts:  make(map[string]any),
	}

	scanGeneric(output, exitCode, &res)

	for _, s := range a.strategies {
		if s.Matches(t.Phase) {
			s.Analyze(t, output, exitCode, &res)
		}
	}

	for _, gen := range res.NewTasks {
		gen.AutoGenerated = true
		if gen.GeneratedBy == "" {
			gen.GeneratedBy = t.ID
		}
		if !gen.DependsOn(t.ID) {
			gen.Dependencies = append(gen.Dependencies, t.ID)
		}
	}

	a.history = append(a.history, res)
	return res
}

// History returns every analysis performed, in order.
func (a *Analyzer) History() []Result {
	return a.history
}

// Totals sums findings across the analysis history for end-of-run reporting.
func (a *Analyzer) Totals() (issues, warnings, generated int) {
	for _, res := range a.history {
		issues += len(res.Issues)
		warnings += len(res.Warnings)
		generated += len(res.NewTasks)
	}
	return issues, warnings, generated
}
