package config

import (
	"github.com/floweriwe/stagehand/internal/safety"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Safety: safety.DefaultPolicy(),
		Budgets: BudgetConfig{
			SessionMinutes:        60,
			CommandTimeoutSeconds: 300,
			TickDelayMillis:       500,
			MaxIterations:         0,
		},
		Paths: PathConfig{
			StateFile: ".stagehand/tasks.json",
			LedgerDB:  ".stagehand/ledger.db",
		},
		Analyzer: AnalyzerConfig{
			SeedMinimum:       5,
			CoverageThreshold: 80,
		},
	}
}
