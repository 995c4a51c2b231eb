package config

import (
	"github.com/floweriwe/stagehand/internal/safety"
)

// BudgetConfig bounds a single orchestration session.
type BudgetConfig struct {
	SessionMinutes        int `json:"session_minutes"`         // wall-clock budget for the whole run
	CommandTimeoutSeconds int `json:"command_timeout_seconds"` // per-action watchdog ceiling
	TickDelayMillis       int `json:"tick_delay_millis"`       // pacing delay between iterations
	MaxIterations         int `json:"max_iterations"`          // 0 disables the cap
}

// PathConfig locates the engine's on-disk artifacts, relative to the project
// root unless absolute.
type PathConfig struct {
	StateFile string `json:"state_file"` // persisted queue document
	LedgerDB  string `json:"ledger_db"`  // project context + run ledger database
}

// AnalyzerConfig tunes the output-analysis thresholds.
type AnalyzerConfig struct {
	SeedMinimum       int     `json:"seed_minimum"`
	CoverageThreshold float64 `json:"coverage_threshold"`
}

// Config is the top-level engine configuration.
type Config struct {
	Safety   safety.Policy  `json:"safety"`
	Budgets  BudgetConfig   `json:"budgets"`
	Paths    PathConfig     `json:"paths"`
	Analyzer AnalyzerConfig `json:"analyzer"`
}
