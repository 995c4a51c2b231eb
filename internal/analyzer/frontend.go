package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/floweriwe/stagehand/internal/task"
)

// maxDiagnosticTasks bounds fix-task generation per build analysis.
const maxDiagnosticTasks = 5

// tsc-style diagnostics: "src/App.tsx(12,5): error TS2322: Type 'X' is not..."
var diagnosticPattern = regexp.MustCompile(`(?m)^(.+?)\((\d+),(\d+)\):\s+error\s+(TS\d+):\s+(.+)$`)

// FrontendStrategy analyzes compiler output from frontend builds and emits
// one fix task per distinct diagnostic.
type FrontendStrategy struct{}

// Matches selects frontend-build phases.
func (s *FrontendStrategy) Matches(phase string) bool {
	switch strings.ToLower(phase) {
	case "frontend", "frontend-build", "build":
		return true
	}
	return false
}

// Diagnostic is one extracted compiler error.
type Diagnostic struct {
	File    string
	Line    string
	Column  string
	Code    string
	Message string
}

// Analyze implements Strategy.
func (s *FrontendStrategy) Analyze(t *task.Task, output string, exitCode int, res *Result) {
	diags := extractDiagnostics(output)
	if len(diags) == 0 {
		return
	}
	res.Facts["build_errors"] = len(diags)

	for i, d := range diags {
		if i >= maxDiagnosticTasks {
			break
		}
		res.NewTasks = append(res.NewTasks, &task.Task{
			ID:          fmt.Sprintf("%s.fix-diagnostic-%d", t.ID, i+1),
			Name:        fmt.Sprintf("Fix %s in %s", d.Code, d.File),
			Description: fmt.Sprintf("%s(%s,%s): %s %s", d.File, d.Line, d.Column, d.Code, d.Message),
			Phase:       "frontend",
			Priority:    task.PriorityHigh,
			Actions: []task.Action{
				// The execution layer decides how to touch the file; the
				// target is informational until then.
				{Kind: task.KindModifyFile, Target: d.File, Params: map[string]string{
					"line": d.Line,
					"code": d.Code,
				}},
			},
		})
	}
}

// extractDiagnostics parses compiler diagnostics, de-duplicated by file+code.
func extractDiagnostics(output string) []Diagnostic {
	var diags []Diagnostic
	seen := make(map[string]bool)
	for _, m := range diagnosticPattern.FindAllStringSubmatch(output, -1) {
		key := m[1] + "|" + m[4]
		if seen[key] {
			continue
		}
		seen[key] = true
		diags = append(diags, Diagnostic{
			File:    strings.TrimSpace(m[1]),
			Line:    m[2],
			Column:  m[3],
			Code:    m[4],
			Message: strings.TrimSpace(m[5]),
		})
	}
	return diags
}
