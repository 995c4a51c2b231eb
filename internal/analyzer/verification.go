package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/floweriwe/stagehand/internal/task"
)

const (
	defaultCoverageThreshold = 80.0
	maxFixTaskCount          = 3
)

var (
	passedPattern  = regexp.MustCompile(`(\d+) passed`)
	failedPattern  = regexp.MustCompile(`(\d+) failed`)
	skippedPattern = regexp.MustCompile(`(\d+) skipped`)

	// pytest failure lines: "FAILED tests/test_shows.py::test_create_show - ..."
	failedCasePattern = regexp.MustCompile(`FAILED\s+([\w./:\[\]-]+)`)

	// coverage.py "TOTAL  120  30  75%" or a bare "coverage: 75%"
	coveragePatterns = []*regexp.Regexp{
		regexp.MustCompile(`TOTAL\s+\d+\s+\d+\s+(\d+(?:\.\d+)?)%`),
		regexp.MustCompile(`(?i)coverage:?\s+(\d+(?:\.\d+)?)%`),
	}
)

// VerificationStrategy analyzes test-suite runs: it records the pass/fail
// tally as context facts, generates fix tasks for failing cases, and flags
// low coverage.
type VerificationStrategy struct {
	CoverageThreshold float64
}

// Matches selects verification phases.
func (s *VerificationStrategy) Matches(phase string) bool {
	switch strings.ToLower(phase) {
	case "verification", "testing", "tests":
		return true
	}
	return false
}

// Analyze implements Strategy.
func (s *VerificationStrategy) Analyze(t *task.Task, output string, exitCode int, res *Result) {
	passed, failed, skipped := parseSummary(output)
	if passed+failed+skipped > 0 {
		res.Facts["tests_passed"] = passed
		res.Facts["tests_failed"] = failed
		res.Facts["tests_skipped"] = skipped
	}

	// One fix task per distinct failing case, bounded so a broken suite does
	// not flood the queue.
	seen := make(map[string]bool)
	for _, m := range failedCasePattern.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if len(seen) > maxFixTaskCount {
			break
		}
		res.NewTasks = append(res.NewTasks, &task.Task{
			ID:          fmt.Sprintf("%s.fix-%d", t.ID, len(seen)),
			Name:        "Fix failing test " + name,
			Description: fmt.Sprintf("Test case %s failed during %s.", name, t.Name),
			Phase:       "backend",
			Priority:    task.PriorityHigh,
			Actions: []task.Action{
				{Kind: task.KindAnalyzeTarget, Target: name},
			},
		})
	}

	if pct, ok := parseCoverage(output); ok {
		res.Facts["coverage_percent"] = pct
		threshold := s.CoverageThreshold
		if threshold == 0 {
			threshold = defaultCoverageThreshold
		}
		if pct < threshold {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("coverage %.1f%% is below the %.0f%% threshold", pct, threshold))
			res.NewTasks = append(res.NewTasks, &task.Task{
				ID:       t.ID + ".improve-coverage",
				Name:     "Improve test coverage",
				Phase:    "verification",
				Priority: task.PriorityMedium,
				Actions: []task.Action{
					{Kind: task.KindRunTests, Command: "pytest --cov"},
				},
			})
		}
	}
}

func parseSummary(output string) (passed, failed, skipped int) {
	if m := passedPattern.FindStringSubmatch(output); m != nil {
		passed, _ = strconv.Atoi(m[1])
	}
	if m := failedPattern.FindStringSubmatch(output); m != nil {
		failed, _ = strconv.Atoi(m[1])
	}
	if m := skippedPattern.FindStringSubmatch(output); m != nil {
		skipped, _ = strconv.Atoi(m[1])
	}
	return passed, failed, skipped
}

func parseCoverage(output string) (float64, bool) {
	for _, pattern := range coveragePatterns {
		if m := pattern.FindStringSubmatch(output); m != nil {
			pct, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				return pct, true
			}
		}
	}
	return 0, false
}
