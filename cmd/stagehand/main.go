package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/floweriwe/stagehand/internal/action"
	"github.com/floweriwe/stagehand/internal/analyzer"
	"github.com/floweriwe/stagehand/internal/checkpoint"
	"github.com/floweriwe/stagehand/internal/config"
	"github.com/floweriwe/stagehand/internal/events"
	"github.com/floweriwe/stagehand/internal/orchestrator"
	"github.com/floweriwe/stagehand/internal/projectctx"
	"github.com/floweriwe/stagehand/internal/report"
	"github.com/floweriwe/stagehand/internal/safety"
	"github.com/floweriwe/stagehand/internal/store"
	"github.com/floweriwe/stagehand/internal/task"
	"github.com/floweriwe/stagehand/internal/tui"
)

func main() {
	projectRoot := flag.String("project-root", ".", "root of the project being worked on")
	queuePath := flag.String("queue", "", "JSON file with tasks to seed the queue")
	statePath := flag.String("state", "", "queue state file (default from config)")
	dbPath := flag.String("db", "", "project context database (default from config)")
	dryRun := flag.Bool("dry-run", false, "walk the queue without executing anything")
	startTask := flag.String("start-task", "", "skip every task queued before this id")
	budgetMinutes := flag.Int("budget", -1, "session budget in minutes (overrides config, 0 disables)")
	maxIterations := flag.Int("max-iterations", -1, "iteration cap (overrides config, 0 disables)")
	watch := flag.Bool("watch", false, "show the live watch view while running")
	initConfig := flag.Bool("init-config", false, "write the effective config to the project config file and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options{
		projectRoot:   *projectRoot,
		queuePath:     *queuePath,
		statePath:     *statePath,
		dbPath:        *dbPath,
		dryRun:        *dryRun,
		startTask:     *startTask,
		budgetMinutes: *budgetMinutes,
		maxIterations: *maxIterations,
		watch:         *watch,
		initConfig:    *initConfig,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	projectRoot   string
	queuePath     string
	statePath     string
	dbPath        string
	dryRun        bool
	startTask     string
	budgetMinutes int
	maxIterations int
	watch         bool
	initConfig    bool
}

func run(ctx context.Context, opts options) error {
	root, err := filepath.Abs(opts.projectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	cfg, err := config.LoadDefault(root)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.initConfig {
		path := filepath.Join(root, ".stagehand", "config.json")
		if err := config.Save(cfg, path); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("Wrote config to %s\n", path)
		return nil
	}

	statePath := opts.statePath
	if statePath == "" {
		statePath = cfg.Paths.StateFile
	}
	dbPath := opts.dbPath
	if dbPath == "" {
		dbPath = cfg.Paths.LedgerDB
	}
	statePath = resolveUnder(root, statePath)
	dbPath = resolveUnder(root, dbPath)

	st := store.Open(statePath)

	if opts.queuePath != "" {
		tasks, err := loadQueueFile(opts.queuePath)
		if err != nil {
			return err
		}
		if err := st.AddAll(tasks); err != nil {
			return fmt.Errorf("seeding queue from %s: %w", opts.queuePath, err)
		}
	}
	if len(st.Tasks()) == 0 {
		return fmt.Errorf("queue is empty; seed it with -queue")
	}

	if opts.startTask != "" {
		if err := skipUntil(st, opts.startTask); err != nil {
			return err
		}
	}

	sink, err := projectctx.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("opening project context database: %w", err)
	}
	defer sink.Close()

	executor := action.NewShellExecutor(root)
	if cfg.Budgets.CommandTimeoutSeconds > 0 {
		executor.Timeout = time.Duration(cfg.Budgets.CommandTimeoutSeconds) * time.Second
	}

	seeding := analyzer.NewSeedingStrategy()
	if cfg.Analyzer.SeedMinimum > 0 {
		seeding.Minimum = cfg.Analyzer.SeedMinimum
	}
	an := analyzer.NewWithStrategies(
		&analyzer.MigrationStrategy{},
		seeding,
		&analyzer.VerificationStrategy{CoverageThreshold: cfg.Analyzer.CoverageThreshold},
		&analyzer.FrontendStrategy{},
	)

	budget := time.Duration(cfg.Budgets.SessionMinutes) * time.Minute
	if opts.budgetMinutes >= 0 {
		budget = time.Duration(opts.budgetMinutes) * time.Minute
	}
	iterCap := cfg.Budgets.MaxIterations
	if opts.maxIterations >= 0 {
		iterCap = opts.maxIterations
	}

	bus := events.NewBus()
	defer bus.Close()

	runner := orchestrator.NewRunner(
		orchestrator.Config{
			SessionBudget: budget,
			TickDelay:     time.Duration(cfg.Budgets.TickDelayMillis) * time.Millisecond,
			MaxIterations: iterCap,
			DryRun:        opts.dryRun,
		},
		st,
		an,
		safety.NewGuard(cfg.Safety),
		executor,
		checkpoint.NewManager(root),
		sink,
		bus,
	)

	var summary *orchestrator.Summary
	if opts.watch {
		summary, err = runWithWatch(ctx, runner, bus)
	} else {
		summary, err = runner.Run(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Print(report.Render(summary))
	return nil
}

// runWithWatch runs the loop behind the live watch view. The view exits when
// the loop finishes or the user quits; quitting the view cancels the run.
func runWithWatch(ctx context.Context, runner *orchestrator.Runner, bus *events.Bus) (*orchestrator.Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.New(bus), tea.WithAltScreen())

	type runResult struct {
		summary *orchestrator.Summary
		err     error
	}
	done := make(chan runResult, 1)
	go func() {
		summary, err := runner.Run(runCtx)
		reason := ""
		if summary != nil {
			reason = summary.StopReason
		}
		p.Send(tui.RunFinishedMsg{StopReason: reason})
		done <- runResult{summary, err}
	}()

	if _, err := p.Run(); err != nil {
		log.Printf("WARNING: watch view failed: %v", err)
	}
	cancel() // user quit before the run finished

	res := <-done
	return res.summary, res.err
}

// loadQueueFile reads a JSON array of tasks.
func loadQueueFile(path string) ([]*task.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading queue file: %w", err)
	}
	var tasks []*task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parsing queue file %s: %w", path, err)
	}
	return tasks, nil
}

// skipUntil marks every pending task queued before the given id as skipped.
func skipUntil(st *store.Store, startID string) error {
	if _, ok := st.Get(startID); !ok {
		return fmt.Errorf("start task %q not found in queue", startID)
	}
	for _, t := range st.Tasks() {
		if t.ID == startID {
			return nil
		}
		if t.Status == task.StatusPending {
			if err := st.MarkSkipped(t.ID); err != nil {
				log.Printf("WARNING: could not skip task %q: %v", t.ID, err)
			}
		}
	}
	return nil
}

// resolveUnder joins a relative path to the project root.
func resolveUnder(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
